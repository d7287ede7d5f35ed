package server

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	aesdlog "github.com/aesdlog/aesdlogd"
	"github.com/aesdlog/aesdlogd/internal/constants"
	"github.com/aesdlog/aesdlogd/internal/logging"
	"github.com/aesdlog/aesdlogd/internal/sink"
)

// Server owns the Accept Loop, the Handler Registry and the Timestamp
// Producer described in spec.md §4.G. Its zero value is not usable; build
// one with New.
type Server struct {
	Sink              sink.Interface
	Device            *aesdlog.Device
	Logger            *logging.Logger
	Addr              string
	TimestampInterval time.Duration // 0 disables the Timestamp Producer (OQ4)

	registry *Registry
	listener net.Listener
	ready    chan struct{}
}

// New returns a Server bound to addr (host:port, conventionally
// "0.0.0.0:9000" per constants.ListenPort), sharing sink and dev with every
// accepted connection.
func New(addr string, s sink.Interface, dev *aesdlog.Device, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		Sink:              s,
		Device:            dev,
		Logger:            logger,
		Addr:              addr,
		TimestampInterval: constants.TimestampInterval,
		registry:          NewRegistry(),
		ready:             make(chan struct{}),
	}
}

// WaitListening blocks until Run has bound its listener (or timeout
// elapses) and returns its address. Intended for tests and for callers that
// want to log the resolved port when Addr used ":0".
func (s *Server) WaitListening(timeout time.Duration) (net.Addr, bool) {
	select {
	case <-s.ready:
		return s.listener.Addr(), true
	case <-time.After(timeout):
		return nil, false
	}
}

// listenConfig sets SO_REUSEADDR on the listening socket before bind, the
// Go equivalent of the teacher's raw setsockopt call, so a restarted server
// can rebind a port still in TIME_WAIT.
var listenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	},
}

// Run resets the sink, binds the listener, and serves connections until ctx
// is cancelled (typically by a signal handler in cmd/aesdsocket). It blocks
// until the Accept Loop, every in-flight Connection Handler and the
// Timestamp Producer have all exited, then tears down the sink — mirroring
// spec.md §4.G's shutdown ordering.
func (s *Server) Run(ctx context.Context) error {
	s.Sink.Lock()
	err := s.Sink.Reset()
	s.Sink.Unlock()
	if err != nil {
		return aesdlog.WrapError("server: sink reset", err)
	}

	ln, err := listenConfig.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return aesdlog.WrapError("server: listen", err)
	}
	s.listener = ln
	close(s.ready)
	s.Logger.Infof("listening on %s", ln.Addr())

	group, gctx := errgroup.WithContext(ctx)

	if s.TimestampInterval > 0 {
		group.Go(func() error {
			RunTimestampProducer(gctx, s.TimestampInterval, s.Sink, s.Device.Metrics(), s.Logger)
			return nil
		})
	}

	group.Go(func() error {
		return s.acceptLoop(gctx)
	})

	<-gctx.Done()
	_ = ln.Close()

	s.Logger.Infof("draining %d in-flight connection(s)", s.registry.Len())
	drained := make(chan struct{})
	go func() {
		s.registry.WaitEmpty()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(constants.ShutdownDrainTimeout):
		s.Logger.Warnf("shutdown drain timed out with %d handler(s) still active", s.registry.Len())
	}

	if err := group.Wait(); err != nil {
		s.Logger.Errorf("server: %v", err)
	}

	s.Sink.Lock()
	err = s.Sink.Teardown()
	s.Sink.Unlock()
	if err != nil {
		return aesdlog.WrapError("server: sink teardown", err)
	}
	return nil
}

// acceptLoop accepts connections until ctx is cancelled, spawning one
// goroutine per connection and registering it in the Handler Registry.
func (s *Server) acceptLoop(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.Logger.Warnf("accept: %v", err)
				continue
			}
		}

		remote := conn.RemoteAddr().String()
		id := s.registry.Add(remote)
		s.Device.Metrics().ConnectionOpened()
		connLogger := s.Logger.WithConn(remote)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.registry.Remove(id)
			defer s.Device.Metrics().ConnectionClosed()

			if err := HandleConn(conn, s.Sink, s.Device, connLogger); err != nil {
				connLogger.Warnf("handler: %v", err)
			}
		}()
	}
}
