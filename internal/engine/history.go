package engine

// readingRing is a fixed-capacity circular buffer of data points with FIFO
// eviction. Append and evict are O(1); the slice-shift approach the naive
// implementation uses would be O(n) on every ingestion once the buffer fills.
// Not safe for concurrent use; callers hold the owning sensor's lock.
type readingRing struct {
	buf  []DataPoint
	head int // index of the oldest entry when size > 0
	size int
}

func newReadingRing(capacity int) *readingRing {
	return &readingRing{buf: make([]DataPoint, capacity)}
}

// Append adds p, evicting the oldest entry when the ring is full. It reports
// whether an eviction happened.
func (r *readingRing) Append(p DataPoint) bool {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = p
		r.size++
		return false
	}
	r.buf[r.head] = p
	r.head = (r.head + 1) % len(r.buf)
	return true
}

// Len returns the number of stored entries.
func (r *readingRing) Len() int { return r.size }

// Oldest returns the entry that would be evicted next.
func (r *readingRing) Oldest() (DataPoint, bool) {
	if r.size == 0 {
		return DataPoint{}, false
	}
	return r.buf[r.head], true
}

// Snapshot returns a copy of the entries in insertion order.
func (r *readingRing) Snapshot() []DataPoint {
	out := make([]DataPoint, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
