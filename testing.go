package aesdlog

import (
	"bytes"
	"sync"

	"github.com/aesdlog/aesdlogd/internal/sink"
)

// MockSink is a buffer-backed stand-in for the on-disk Sink Coordinator
// (internal/sink.Sink), for tests that want to exercise the Connection
// Handler or Timestamp Producer without touching a real filesystem path.
// It implements sink.Interface and tracks method calls for verification,
// mirroring the teacher's MockBackend (testing.go).
type MockSink struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	path string

	torndown bool

	appendCalls   int
	readAllCalls  int
	resetCalls    int
	teardownCalls int
}

// NewMockSink returns an empty MockSink identified by path for logging.
func NewMockSink(path string) *MockSink {
	return &MockSink{path: path}
}

// Lock and Unlock satisfy sink.Interface by taking MockSink's internal
// mutex. Reset, Teardown, Append and ReadAll do not lock it themselves, so
// callers hold the lock across those calls the way the real Sink requires;
// IsTornDown and CallCounts take the lock on their own.
func (m *MockSink) Lock()   { m.mu.Lock() }
func (m *MockSink) Unlock() { m.mu.Unlock() }

// Path returns the path this mock was constructed with.
func (m *MockSink) Path() string {
	return m.path
}

// Reset truncates the in-memory buffer to empty.
func (m *MockSink) Reset() error {
	m.resetCalls++
	m.buf.Reset()
	m.torndown = false
	return nil
}

// Teardown discards the buffer and marks the mock as torn down.
func (m *MockSink) Teardown() error {
	m.teardownCalls++
	m.buf.Reset()
	m.torndown = true
	return nil
}

// Append writes data to the in-memory buffer.
func (m *MockSink) Append(data []byte) error {
	m.appendCalls++
	m.buf.Write(data)
	return nil
}

// ReadAll returns a copy of the buffer's current content.
func (m *MockSink) ReadAll() ([]byte, error) {
	m.readAllCalls++
	out := make([]byte, m.buf.Len())
	copy(out, m.buf.Bytes())
	return out, nil
}

// IsTornDown reports whether Teardown has been called more recently than
// Reset.
func (m *MockSink) IsTornDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.torndown
}

// CallCounts returns the number of times each method has been called, for
// assertions that the expected lock/append/read-back discipline happened.
func (m *MockSink) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"append":   m.appendCalls,
		"read_all": m.readAllCalls,
		"reset":    m.resetCalls,
		"teardown": m.teardownCalls,
	}
}

var _ sink.Interface = (*MockSink)(nil)
