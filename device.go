package aesdlog

import (
	"sync"
	"time"

	"github.com/aesdlog/aesdlogd/internal/circularlog"
	"github.com/aesdlog/aesdlogd/internal/constants"
	"github.com/aesdlog/aesdlogd/internal/framer"
)

// Whence selects the reference point for Handle.Seek, mirroring the
// conventional io.Seeker constants.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// SeekTo is the decoded form of the ioctl(SEEK_TO) directive (spec.md
// §4.C, §6): Cmd names the Cmd-th live entry (oldest-first, per OQ1) and
// Offset names a byte within it.
type SeekTo struct {
	Cmd    uint32
	Offset uint32
}

// Device is the re-entrant Circular Log + Write Framer pair exposed by the
// Device Surface (spec.md §4.C). It corresponds to the teacher's ublk.Device
// — a single process-wide instance is the normal deployment shape (design
// note in spec.md §9), constructed once and shared by every Handle.
type Device struct {
	mu     sync.Mutex
	log    *circularlog.Log
	framer *framer.Framer

	logger   Logger
	observer Observer
	metrics  *Metrics

	closed bool
}

// DeviceParams configures a new Device.
type DeviceParams struct {
	// Capacity is the Circular Log's slot count (CAP).
	Capacity int
	// MaxWrite bounds the Write Framer's pending frame.
	MaxWrite int
}

// DefaultParams returns the spec.md defaults: CAP=10, MAX_WRITE=1024.
func DefaultParams() DeviceParams {
	return DeviceParams{
		Capacity: constants.LogCapacity,
		MaxWrite: constants.MaxWrite,
	}
}

// Options carries optional collaborators for a new Device.
type Options struct {
	Logger   Logger
	Observer Observer
}

// OpenDevice constructs a Device ready to serve Handles. This is the
// in-process analogue of the teacher's CreateAndServe — there is no kernel
// registration step because this log never attaches to a real block or
// character device (spec.md §1 scopes that out).
func OpenDevice(params DeviceParams, options *Options) (*Device, error) {
	if params.Capacity < 1 {
		return nil, NewError("open", CodeInvalidArg, "capacity must be >= 1")
	}
	if params.MaxWrite < 1 {
		return nil, NewError("open", CodeInvalidArg, "max write must be >= 1")
	}
	if options == nil {
		options = &Options{}
	}

	log := circularlog.New(params.Capacity)
	d := &Device{
		log:      log,
		framer:   framer.New(log, params.MaxWrite),
		logger:   options.Logger,
		observer: options.Observer,
		metrics:  NewMetrics(),
	}
	if d.observer == nil {
		d.observer = NewMetricsObserver(d.metrics)
	}
	return d, nil
}

// Metrics returns the Device's metrics instance.
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// TotalSize returns the current virtual-concatenation length under lock.
func (d *Device) TotalSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.log.TotalSize()
}

// Close tears down the Circular Log, destroying all live entries (spec.md
// §4.A teardown).
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.log.Teardown()
	d.closed = true
	if d.metrics != nil {
		d.metrics.Stop()
	}
	return nil
}

// Open returns a new Handle with its own file position, sharing this
// Device's Log and Framer. Each Handle is the per-connection/per-caller
// cursor state the spec calls fpos (spec.md §3 "Log Cursor").
func (d *Device) Open() *Handle {
	return &Handle{dev: d}
}

// Handle is a single cursor (fpos) over a shared Device, analogous to an
// open file descriptor on the Device Surface.
type Handle struct {
	dev  *Device
	fpos int
}

// Pos returns the handle's current file position.
func (h *Handle) Pos() int {
	return h.fpos
}

// Read copies min(len(buf), available-in-current-entry) bytes starting at
// the handle's fpos, advances fpos, and returns the count. It returns
// (0, nil) at end-of-log — spec.md §4.C treats that as EOF, not an error.
// Callers that want the full virtual concatenation loop until n==0.
func (h *Handle) Read(buf []byte) (int, error) {
	start := time.Now()
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, byteOff, ok := d.log.Locate(h.fpos)
	if !ok {
		d.observer.ObserveRead(0, uint64(time.Since(start)), true)
		return 0, nil
	}

	n := copy(buf, entry.Bytes()[byteOff:])
	h.fpos += n
	d.observer.ObserveRead(uint64(n), uint64(time.Since(start)), true)
	return n, nil
}

// ReadAll drains the handle from its current position to end-of-log and
// returns the bytes read. Used by the Connection Handler's ioctl-forward
// path (spec.md §4.D step 3).
func (h *Handle) ReadAll() ([]byte, error) {
	var out []byte
	buf := make([]byte, constants.RecvBufferSize)
	for {
		n, err := h.Read(buf)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n]...)
	}
}

// Write drives buf through the Write Framer, committing complete
// newline-terminated entries into the shared Log. It returns
// CodeFrameTooLarge if the pending frame reaches MAX_WRITE bytes before a
// newline is seen (spec.md §4.B, §9 OQ2): the pending frame is discarded
// and bytes consumed up to that point are already committed.
func (h *Handle) Write(buf []byte) (int, error) {
	start := time.Now()
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	n, evicted, err := d.framer.Push(buf)
	for i := 0; i < evicted; i++ {
		d.metrics.RecordEviction()
	}
	if err != nil {
		d.metrics.RecordFrameTooLarge()
		d.observer.ObserveWrite(uint64(n), uint64(time.Since(start)), false)
		return n, WrapError("write", err)
	}
	d.observer.ObserveWrite(uint64(n), uint64(time.Since(start)), true)
	return n, nil
}

// Seek repositions fpos relative to start/current/end, rejecting results
// outside [0, total_size()] with CodeInvalidArg (spec.md §4.C).
func (h *Handle) Seek(offset int64, whence Whence) (int64, error) {
	start := time.Now()
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = int64(h.fpos)
	case SeekEnd:
		base = int64(d.log.TotalSize())
	default:
		d.observer.ObserveSeek(uint64(time.Since(start)), false)
		return 0, NewError("seek", CodeInvalidArg, "unknown whence")
	}

	newPos := base + offset
	end := int64(d.log.TotalSize())
	if newPos < 0 || newPos > end {
		d.observer.ObserveSeek(uint64(time.Since(start)), false)
		return 0, NewError("seek", CodeInvalidArg, "position out of range")
	}
	h.fpos = int(newPos)
	d.observer.ObserveSeek(uint64(time.Since(start)), true)
	return newPos, nil
}

// Ioctl implements SEEK_TO: it sets fpos to the byte position identified by
// the Cmd-th live entry (oldest-first) and its Offset-th byte. Cmd must
// name a live entry and Offset must be a valid byte within it, else
// CodeInvalidArg (spec.md §4.C).
func (h *Handle) Ioctl(req SeekTo) error {
	start := time.Now()
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, err := d.log.EntryAt(int(req.Cmd))
	if err != nil {
		d.observer.ObserveIoctl(uint64(time.Since(start)), false)
		return NewError("ioctl", CodeInvalidArg, "cmd out of range")
	}
	if req.Offset >= uint32(entry.Size()) {
		d.observer.ObserveIoctl(uint64(time.Since(start)), false)
		return NewError("ioctl", CodeInvalidArg, "cmd_offset out of range")
	}

	base, err := d.log.CmdToOffset(int(req.Cmd))
	if err != nil {
		d.observer.ObserveIoctl(uint64(time.Since(start)), false)
		return NewError("ioctl", CodeInvalidArg, "cmd out of range")
	}
	h.fpos = base + int(req.Offset)
	d.observer.ObserveIoctl(uint64(time.Since(start)), true)
	return nil
}
