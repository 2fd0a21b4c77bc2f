package metrics

import "sync"

// Ring is a bounded in-memory buffer keeping the most recent records. It is
// written by the single pipeline goroutine and read concurrently by HTTP
// handlers, so access is mutex-guarded.
type Ring struct {
	mu   sync.RWMutex
	buf  []Record
	head int
	full bool
}

// NewRing returns a ring buffer holding at most capacity records.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]Record, capacity)}
}

func (r *Ring) Write(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.full = true
	}
	return nil
}

// Len returns the number of records currently retained.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.buf)
	}
	return r.head
}

// Snapshot returns the last n records in chronological order. n <= 0
// returns everything retained.
func (r *Ring) Snapshot(n int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.head
	if r.full {
		size = len(r.buf)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Record, 0, n)
	start := r.head - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Latest returns the most recent record, if any.
func (r *Ring) Latest() (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.head == 0 && !r.full {
		return Record{}, false
	}
	idx := r.head - 1
	if idx < 0 {
		idx += len(r.buf)
	}
	return r.buf[idx], true
}
