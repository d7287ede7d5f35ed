// Package server implements the Connection Handler, Timestamp Producer and
// Accept Loop of spec.md §4.D, §4.F and §4.G on top of the Sink Coordinator
// and Device Surface.
package server

import "sync"

// Registry tracks in-flight connection handlers so the Accept Loop can block
// at shutdown until every handler has joined, mirroring spec.md §4.G's
// "Handler Registry" plus condition-variable join. A real OS thread handle
// has no Go analogue, so each entry is identified by an opaque id and the
// peer's address, kept only for logging.
type Registry struct {
	mu    sync.Mutex
	cond  *sync.Cond
	conns map[uint64]string
	next  uint64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{conns: make(map[uint64]string)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Add registers a new in-flight handler for remoteAddr and returns its id.
func (r *Registry) Add(remoteAddr string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.conns[id] = remoteAddr
	return id
}

// Remove deregisters a handler and wakes any goroutine blocked in WaitEmpty.
func (r *Registry) Remove(id uint64) {
	r.mu.Lock()
	delete(r.conns, id)
	empty := len(r.conns) == 0
	r.mu.Unlock()
	if empty {
		r.cond.Broadcast()
	}
}

// Len reports the number of in-flight handlers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// WaitEmpty blocks until the registry holds no in-flight handlers.
func (r *Registry) WaitEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.conns) > 0 {
		r.cond.Wait()
	}
}
