// Package sink implements the Sink Coordinator of spec.md §4.E: the single
// shared on-disk append file the server-side Connection Handler and
// Timestamp Producer write into, protected by one mutex.
//
// Sink exposes the mutex directly (Lock/Unlock) rather than wrapping every
// read/append in its own locking, because spec.md is explicit that "Sink
// Coordinator... provides no other API; Handler and Timestamp Producer take
// sink_lock directly" — the serialization unit is "receive, append, read
// back" as one atomic block from the caller's point of view, not each I/O
// call individually.
package sink

import (
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Sink owns the path and mutex described in spec.md §4.E.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New returns a Sink bound to path. The file is not touched until Reset is
// called.
func New(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the sink's filesystem path.
func (s *Sink) Path() string {
	return s.path
}

// Lock acquires sink_lock. Callers must Unlock when done; see the package
// doc for why this lock spans multiple I/O calls.
func (s *Sink) Lock() {
	s.mu.Lock()
}

// Unlock releases sink_lock.
func (s *Sink) Unlock() {
	s.mu.Unlock()
}

// Reset truncates the sink to empty, creating it if necessary. Called once
// at server startup (spec.md §4.E). Caller must hold the lock.
func (s *Sink) Reset() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "sink: reset")
	}
	return f.Close()
}

// Teardown removes the sink file. Called once at server shutdown, after all
// handlers have joined (spec.md §4.E, §4.G). Caller must hold the lock.
func (s *Sink) Teardown() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "sink: teardown")
	}
	return nil
}

// Append opens the sink for append and writes data, flushing before
// returning. Caller must hold the lock.
func (s *Sink) Append(data []byte) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "sink: append")
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "sink: append write")
	}
	return f.Sync()
}

// ReadAll rewinds the sink to offset 0 and returns its entire current
// content. Caller must hold the lock.
func (s *Sink) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sink: read all")
	}
	return data, nil
}
