// Package framer implements the write-framing layer of spec.md §4.B: it
// accumulates byte chunks into a pending frame until a newline commits the
// frame as a new circularlog.Entry.
package framer

import (
	"errors"

	"github.com/aesdlog/aesdlogd/internal/circularlog"
)

// ErrFrameTooLarge is returned by Push when the pending frame reaches
// maxWrite bytes without a newline. Per spec.md §9 OQ2, the pending frame is reset
// before this error is returned — bytes accumulated before the failing byte
// are discarded, not retained for a follow-up call.
var ErrFrameTooLarge = errors.New("framer: pending frame exceeds maximum write size")

// Framer owns the Pending Frame described in spec.md §3 and commits
// completed frames into a Log. It is not internally synchronized; callers
// must serialize concurrent Push calls via a containing mutex (spec.md
// §4.B "Concurrent callers must serialize via the containing mutex").
type Framer struct {
	log      *circularlog.Log
	partial  []byte
	maxWrite int
}

// New returns a Framer that commits completed entries into log. maxWrite
// bounds the pending frame's length (MAX_WRITE in spec.md, default 1024).
func New(log *circularlog.Log, maxWrite int) *Framer {
	if maxWrite < 1 {
		maxWrite = 1
	}
	return &Framer{log: log, maxWrite: maxWrite}
}

// Pending returns the number of bytes currently buffered without a
// terminating newline.
func (f *Framer) Pending() int {
	return len(f.partial)
}

// Push scans in for newlines, committing one Entry into the Log per
// newline seen, and returns the number of bytes consumed and the number of
// entries evicted by those commits (each commit evicts one entry iff the
// Log was already full at that instant). It returns ErrFrameTooLarge if the
// pending frame reaches maxWrite bytes before a newline is seen; bytes
// consumed before the failing byte are already committed to the Log
// (commits are atomic per entry, spec.md §4.B "Contract").
func (f *Framer) Push(in []byte) (consumed int, evicted int, err error) {
	for _, b := range in {
		f.partial = append(f.partial, b)
		consumed++
		if b == '\n' {
			entry := circularlog.NewEntry(f.partial)
			if f.log.Append(entry) {
				evicted++
			}
			f.partial = nil
			continue
		}
		if len(f.partial) >= f.maxWrite {
			f.partial = nil
			return consumed, evicted, ErrFrameTooLarge
		}
	}
	return consumed, evicted, nil
}

// Reset discards any pending (uncommitted) bytes without error. Used by
// callers that need to abandon a partial frame explicitly (e.g. on
// connection teardown) rather than relying on FrameTooLarge.
func (f *Framer) Reset() {
	f.partial = nil
}
