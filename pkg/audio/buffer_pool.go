package audio

import "github.com/saker-ai/mixcore/internal/invariant"

type poolEntry struct {
	buf       Buffer
	available bool
	gen       uint32
}

// BufferPool recycles mixing buffers for the render thread.
//
// The pool is not safe for concurrent use. It never fails: when no
// available entry is large enough a new one is allocated, rounded up to a
// power of two of packs so the set of distinct sizes stays small.
type BufferPool struct {
	entries []poolEntry
	packs   int
}

// NewBufferPool returns an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// BufferRef is a checked-out pool buffer. Release it exactly once, usually
// with defer right after Acquire.
type BufferRef struct {
	pool *BufferPool
	slot int
	gen  uint32
	buf  Buffer
}

// Acquire checks out a buffer holding at least minSamples samples.
func (p *BufferPool) Acquire(minSamples int) BufferRef {
	need := PacksFor(minSamples)
	if need == 0 {
		need = 1
	}
	for i := range p.entries {
		e := &p.entries[i]
		if e.available && len(e.buf) >= need {
			e.available = false
			e.gen++
			return BufferRef{pool: p, slot: i, gen: e.gen, buf: e.buf}
		}
	}
	size := nextPowerOfTwo(need)
	p.entries = append(p.entries, poolEntry{buf: make(Buffer, size), gen: 1})
	p.packs += size
	slot := len(p.entries) - 1
	return BufferRef{pool: p, slot: slot, gen: 1, buf: p.entries[slot].buf}
}

// Len returns the number of entries owned by the pool.
func (p *BufferPool) Len() int {
	return len(p.entries)
}

// Packs returns the total number of packs owned by the pool.
func (p *BufferPool) Packs() int {
	return p.packs
}

// Available returns the number of entries not checked out.
func (p *BufferPool) Available() int {
	n := 0
	for i := range p.entries {
		if p.entries[i].available {
			n++
		}
	}
	return n
}

// Buffer returns the full backing buffer of the ref.
func (r *BufferRef) Buffer() Buffer {
	return r.buf
}

// Samples returns the first n samples of the ref as a flat slice.
func (r *BufferRef) Samples(n int) []float32 {
	return r.buf.Samples()[:n]
}

// Slot identifies the pool entry behind the ref.
func (r *BufferRef) Slot() int {
	return r.slot
}

// Valid reports whether the ref still owns its entry.
func (r *BufferRef) Valid() bool {
	if r.pool == nil {
		return false
	}
	e := &r.pool.entries[r.slot]
	return !e.available && e.gen == r.gen
}

// Release returns the buffer to the pool and clears the ref.
func (r *BufferRef) Release() {
	if !invariant.Check(r.Valid(), "buffer released twice or never acquired") {
		*r = BufferRef{}
		return
	}
	r.pool.entries[r.slot].available = true
	*r = BufferRef{}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
