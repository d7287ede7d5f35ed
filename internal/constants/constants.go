// Package constants holds the compile-time bounds shared across the log,
// framer, device surface and server packages.
package constants

import "time"

const (
	// LogCapacity is the number of slots in the Circular Log (CAP).
	LogCapacity = 10

	// MaxWrite bounds the Write Framer's pending frame in bytes.
	MaxWrite = 1024

	// RecvBufferSize is the fixed size of a Connection Handler's receive
	// buffer.
	RecvBufferSize = 1024

	// ListenPort is the TCP port the Accept Loop binds.
	ListenPort = 9000

	// TimestampInterval is the cadence at which the Timestamp Producer
	// appends a formatted wall-clock line to the sink.
	TimestampInterval = 10 * time.Second

	// SinkPath is the on-disk path for the server-side shared sink.
	SinkPath = "/var/tmp/aesdsocketdata"

	// PIDFilePath is where the daemonized server records its PID.
	PIDFilePath = "/var/run/aesdsocket.pid"

	// SeekToPrefix is the literal ASCII prefix that marks an inline ioctl
	// directive on the wire instead of a line to append.
	SeekToPrefix = "AESDCHAR_IOCSEEKTO:"

	// ShutdownDrainTimeout is how long Run waits for the Handler Registry
	// to empty before logging a warning; Run still waits for every
	// handler goroutine to return after that.
	ShutdownDrainTimeout = 5 * time.Second

	// DaemonEnvVar marks a re-exec'd daemon child so it does not attempt to
	// daemonize itself a second time (cmd/aesdsocket's -d flag).
	DaemonEnvVar = "AESDSOCKET_DAEMON_CHILD"
)
