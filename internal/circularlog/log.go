// Package circularlog implements the bounded, command-indexed ring of
// newline-terminated byte Entries described in spec.md §4.A. It carries no
// locking of its own: spec.md is explicit that "the Log itself is not
// internally synchronized" — single-writer/single-reader discipline is the
// caller's responsibility (the device surface in ../../device.go provides
// it).
package circularlog

import "errors"

// ErrOutOfRange is returned by CmdToOffset when the requested logical index
// does not name a live entry.
var ErrOutOfRange = errors.New("circularlog: command index out of range")

// Log is a fixed-capacity ring of Entry slots. The zero value is not usable;
// construct with New.
type Log struct {
	entries []*Entry
	cap     int
	in      int
	out     int
	full    bool
}

// New returns an empty Log with the given slot capacity. Capacity must be
// at least 1.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	l := &Log{cap: capacity}
	l.entries = make([]*Entry, capacity)
	return l
}

// Init resets the Log to empty, discarding any live entries without
// destroying them explicitly — Go's GC reclaims them once unreferenced.
// Teardown is an alias for Init.
func (l *Log) Init() {
	for i := range l.entries {
		l.entries[i] = nil
	}
	l.in = 0
	l.out = 0
	l.full = false
}

// Cap returns the Log's fixed slot capacity.
func (l *Log) Cap() int {
	return l.cap
}

// Count returns the number of live entries.
func (l *Log) Count() int {
	if l.full {
		return l.cap
	}
	return ((l.in - l.out) % l.cap + l.cap) % l.cap
}

// Append takes ownership of entry, placing it at the next write slot. If the
// Log was full, the oldest live entry (at the same slot) is evicted first —
// its storage is simply dropped; Go's GC reclaims it, which satisfies
// spec.md §9's "no leak or double-free on eviction" requirement by
// construction rather than by manual bookkeeping. Append reports whether an
// eviction occurred, so callers can track eviction counts without replaying
// Count() before and after.
func (l *Log) Append(entry *Entry) (evicted bool) {
	if l.full {
		l.entries[l.out] = nil
		l.out = (l.out + 1) % l.cap
		evicted = true
	}
	l.entries[l.in] = entry
	l.in = (l.in + 1) % l.cap
	if l.in == l.out {
		l.full = true
	}
	return evicted
}

// ForEach walks live entries from the oldest to the newest, invoking fn with
// the entry's logical index (0 = oldest) and the entry itself. It stops
// early if fn returns false. This is the Go analogue of the source's
// AESD_CIRCULAR_BUFFER_FOREACH macro (spec.md §9).
func (l *Log) ForEach(fn func(idx int, e *Entry) bool) {
	count := l.Count()
	slot := l.out
	for i := 0; i < count; i++ {
		if !fn(i, l.entries[slot]) {
			return
		}
		slot = (slot + 1) % l.cap
	}
}

// Locate resolves a byte offset into the virtual concatenation of live
// entries (in insertion order) to the entry containing it and the
// byte-within-entry offset. It returns ok=false for offsets at or past
// total_size(), which callers treat as EOF rather than an error (spec.md
// §4.A, §8 invariant 4).
func (l *Log) Locate(offset int) (entry *Entry, byteOffset int, ok bool) {
	if offset < 0 {
		return nil, 0, false
	}
	cum := 0
	var found *Entry
	var foundOff int
	hit := false
	l.ForEach(func(_ int, e *Entry) bool {
		if offset < cum+e.Size() {
			found = e
			foundOff = offset - cum
			hit = true
			return false
		}
		cum += e.Size()
		return true
	})
	if !hit {
		return nil, 0, false
	}
	return found, foundOff, true
}

// CmdToOffset maps the k-th live entry, counting from the oldest and
// zero-based, to the virtual-concatenation offset of its first byte. It
// fails with ErrOutOfRange if k is beyond the live count (an empty slot can
// never be addressed this way since Count() only reports live slots).
func (l *Log) CmdToOffset(k int) (int, error) {
	if k < 0 || k >= l.Count() {
		return 0, ErrOutOfRange
	}
	cum := 0
	result := -1
	l.ForEach(func(idx int, e *Entry) bool {
		if idx == k {
			result = cum
			return false
		}
		cum += e.Size()
		return true
	})
	if result < 0 {
		return 0, ErrOutOfRange
	}
	return result, nil
}

// EntryAt returns the k-th live entry (oldest-first, zero-based), or
// ErrOutOfRange if k is not a live index. This backs the device surface's
// ioctl path, which needs both the resolved offset and the entry's size to
// validate write_cmd_offset (spec.md §4.C).
func (l *Log) EntryAt(k int) (*Entry, error) {
	if k < 0 || k >= l.Count() {
		return nil, ErrOutOfRange
	}
	var result *Entry
	l.ForEach(func(idx int, e *Entry) bool {
		if idx == k {
			result = e
			return false
		}
		return true
	})
	if result == nil {
		return nil, ErrOutOfRange
	}
	return result, nil
}

// TotalSize returns the sum of live entry sizes — the length of the virtual
// concatenation.
func (l *Log) TotalSize() int {
	total := 0
	l.ForEach(func(_ int, e *Entry) bool {
		total += e.Size()
		return true
	})
	return total
}

// Snapshot returns the sizes of all live entries, oldest-first, without
// copying entry bytes. It is a supplemental read-only operation (not in
// spec.md) useful for metrics and tests — see SPEC_FULL.md §3.
func (l *Log) Snapshot() []int {
	sizes := make([]int, 0, l.Count())
	l.ForEach(func(_ int, e *Entry) bool {
		sizes = append(sizes, e.Size())
		return true
	})
	return sizes
}

// Teardown destroys all live entries and resets the Log to empty.
func (l *Log) Teardown() {
	l.Init()
}
