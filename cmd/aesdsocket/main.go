// Command aesdsocket runs the Accept Loop & Lifecycle of spec.md §4.G: a
// TCP line server on port 9000 backed by a shared Sink Coordinator, with an
// optional Timestamp Producer and an optional Prometheus /metrics endpoint.
//
// Usage: aesdsocket [-d] [-addr host:port] [-metrics-addr host:port] [-v]
//
// -d backgrounds the process the way the original C implementation does:
// fork, setsid, chdir("/"), close stdio, PID file — adapted for Go, which
// cannot safely fork a running runtime, by re-executing itself once as a
// detached child (internal/constants.DaemonEnvVar marks the child so it
// does not re-daemonize itself).
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	aesdlog "github.com/aesdlog/aesdlogd"
	"github.com/aesdlog/aesdlogd/internal/constants"
	"github.com/aesdlog/aesdlogd/internal/logging"
	"github.com/aesdlog/aesdlogd/internal/metricsserver"
	"github.com/aesdlog/aesdlogd/internal/server"
	"github.com/aesdlog/aesdlogd/internal/sink"
)

func main() {
	var (
		daemonize   = flag.Bool("d", false, "background the process and write a PID file")
		addr        = flag.String("addr", fmt.Sprintf(":%d", constants.ListenPort), "TCP address to listen on")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address")
		noTimestamp = flag.Bool("no-timestamp", false, "disable the Timestamp Producer (OQ4)")
		verbose     = flag.Bool("v", false, "debug-level logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *daemonize && os.Getenv(constants.DaemonEnvVar) == "" {
		if err := spawnDaemon(logger); err != nil {
			logger.Error("daemonize", "error", err)
			os.Exit(1)
		}
		return
	}

	if os.Getenv(constants.DaemonEnvVar) != "" {
		if err := detachFromTerminal(); err != nil {
			logger.Error("detach from terminal", "error", err)
			os.Exit(1)
		}
	}

	dev, err := aesdlog.OpenDevice(aesdlog.DefaultParams(), &aesdlog.Options{Logger: loggerAdapter{logger}})
	if err != nil {
		logger.Error("open device", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	s := sink.New(constants.SinkPath)
	srv := server.New(*addr, s, dev, logger)
	if *noTimestamp {
		srv.TimestampInterval = 0
	}

	var metricsSrv *metricsserver.Server
	if *metricsAddr != "" {
		metricsSrv = metricsserver.New(*metricsAddr, dev.Metrics())
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil {
				logger.Error("metrics server", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("caught signal, exiting", "signal", sig.String())
		cancel()
	}()

	runErr := srv.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	if runErr != nil {
		logger.Error("server exited", "error", runErr)
		os.Exit(1)
	}
	os.Exit(0)
}

// spawnDaemon re-executes the current binary with the same arguments plus
// constants.DaemonEnvVar set, detached into its own session, and writes the
// child's PID to constants.PIDFilePath before the parent returns. This is
// the Go analogue of the original's fork()+setsid(): Go's runtime cannot
// safely fork a multi-threaded process, so re-exec stands in for the
// child-continues-after-fork step.
func spawnDaemon(logger *logging.Logger) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exePath, os.Args[1:]...)
	cmd.Env = append(os.Environ(), constants.DaemonEnvVar+"=1")
	cmd.Dir = "/"
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon child: %w", err)
	}

	pidLine := fmt.Sprintf("%d\n", cmd.Process.Pid)
	if err := atomic.WriteFile(constants.PIDFilePath, bytes.NewReader([]byte(pidLine))); err != nil {
		logger.Warnf("write pid file %s: %v", constants.PIDFilePath, err)
	}

	return cmd.Process.Release()
}

// detachFromTerminal performs the remaining daemon setup that must run
// inside the child process itself: a fresh session (already granted by
// Setsid in spawnDaemon, reasserted here in case the child was launched
// some other way) and a working directory of "/".
func detachFromTerminal() error {
	_, err := unix.Setsid()
	if err != nil && err != unix.EPERM {
		return err
	}
	return os.Chdir("/")
}

// loggerAdapter adapts *logging.Logger to the aesdlog.Logger interface,
// which only needs Printf/Debugf (spec.md's Device Surface has no need for
// leveled Warn/Error at this boundary).
type loggerAdapter struct {
	l *logging.Logger
}

func (a loggerAdapter) Printf(format string, args ...interface{}) {
	a.l.Infof(format, args...)
}

func (a loggerAdapter) Debugf(format string, args ...interface{}) {
	a.l.Debugf(format, args...)
}
