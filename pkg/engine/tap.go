package engine

import (
	"sync"
	"sync/atomic"
)

// Tap receives a copy of every published block through a bounded ring.
// The render thread never blocks on it: a block that does not fit is
// dropped and counted.
type Tap struct {
	mu      sync.Mutex
	ring    []float32
	r, n    int
	notify  chan struct{}
	dropped atomic.Uint64
}

// NewTap returns a tap holding up to capacity samples, at least one.
func NewTap(capacity int) *Tap {
	capacity = max(capacity, 1)
	return &Tap{
		ring:   make([]float32, capacity),
		notify: make(chan struct{}, 1),
	}
}

// Notify is signalled after blocks are written.
func (t *Tap) Notify() <-chan struct{} {
	return t.notify
}

// Dropped returns the number of blocks that did not fit.
func (t *Tap) Dropped() uint64 {
	return t.dropped.Load()
}

// Buffered returns the number of samples waiting to be read.
func (t *Tap) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Read moves up to len(dst) buffered samples into dst.
func (t *Tap) Read(dst []float32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for total < len(dst) && t.n > 0 {
		end := min(t.r+t.n, len(t.ring))
		c := copy(dst[total:], t.ring[t.r:end])
		total += c
		t.r = (t.r + c) % len(t.ring)
		t.n -= c
	}
	return total
}

func (t *Tap) write(block []float32) {
	if len(block) == 0 {
		return
	}
	t.mu.Lock()
	if len(block) > len(t.ring)-t.n {
		t.mu.Unlock()
		t.dropped.Add(1)
		return
	}
	w := (t.r + t.n) % len(t.ring)
	c := copy(t.ring[w:], block)
	copy(t.ring, block[c:])
	t.n += len(block)
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}
}
