package audio

import (
	"testing"

	"github.com/saker-ai/mixcore/internal/invariant"
)

func testingDebugChecks() bool {
	return invariant.Enabled
}

func TestBufferPoolAcquireCapacity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		samples int
		packs   int
	}{
		{samples: 1, packs: 1},
		{samples: 16, packs: 1},
		{samples: 17, packs: 2},
		{samples: 48, packs: 4},
		{samples: 100, packs: 8},
	}
	for _, tc := range cases {
		p := NewBufferPool()
		ref := p.Acquire(tc.samples)
		if got := len(ref.Buffer()); got != tc.packs {
			t.Fatalf("Acquire(%d) packs=%d, want %d", tc.samples, got, tc.packs)
		}
		if ref.Buffer().Len() < tc.samples {
			t.Fatalf("Acquire(%d) len=%d, too small", tc.samples, ref.Buffer().Len())
		}
		ref.Release()
	}
}

func TestBufferPoolReuseScenario(t *testing.T) {
	t.Parallel()
	p := NewBufferPool()
	a := p.Acquire(64)
	b := p.Acquire(64)
	if a.Slot() == b.Slot() {
		t.Fatalf("two live refs share slot %d", a.Slot())
	}
	if &a.Buffer()[0] == &b.Buffer()[0] {
		t.Fatal("two live refs share backing memory")
	}
	aMem, bMem := &a.Buffer()[0], &b.Buffer()[0]
	a.Release()
	b.Release()

	c := p.Acquire(32)
	defer c.Release()
	if got := &c.Buffer()[0]; got != aMem && got != bMem {
		t.Fatal("Acquire(32) allocated instead of reusing a released entry")
	}
	if p.Len() != 2 {
		t.Fatalf("entries=%d, want 2", p.Len())
	}
}

func TestBufferPoolNeverHandsOutLiveEntry(t *testing.T) {
	t.Parallel()
	p := NewBufferPool()
	live := p.Acquire(32)
	defer live.Release()
	for i := 0; i < 8; i++ {
		ref := p.Acquire(16)
		if ref.Slot() == live.Slot() {
			t.Fatalf("iteration %d reused live slot %d", i, live.Slot())
		}
		ref.Release()
	}
	if p.Len() != 2 {
		t.Fatalf("entries=%d, want 2", p.Len())
	}
}

func TestBufferPoolGrowsForLargerRequest(t *testing.T) {
	t.Parallel()
	p := NewBufferPool()
	small := p.Acquire(16)
	small.Release()
	big := p.Acquire(16 * 5)
	defer big.Release()
	if p.Len() != 2 {
		t.Fatalf("entries=%d, want 2", p.Len())
	}
	if got := len(big.Buffer()); got != 8 {
		t.Fatalf("packs=%d, want 8", got)
	}
	if p.Packs() != 9 {
		t.Fatalf("total packs=%d, want 9", p.Packs())
	}
}

func TestBufferRefDoubleRelease(t *testing.T) {
	if testingDebugChecks() {
		t.Skip("double release panics in debug builds")
	}
	p := NewBufferPool()
	ref := p.Acquire(16)
	stale := ref
	ref.Release()
	ref.Release()

	again := p.Acquire(16)
	stale.Release()
	if !again.Valid() {
		t.Fatal("stale release invalidated a newer ref")
	}
	again.Release()
	if p.Available() != 1 {
		t.Fatalf("available=%d, want 1", p.Available())
	}
}

func TestBufferPoolSteadyStateAllocs(t *testing.T) {
	p := NewBufferPool()
	warm := p.Acquire(512)
	warm.Release()
	allocs := testing.AllocsPerRun(100, func() {
		ref := p.Acquire(512)
		ref.Buffer().Zero()
		ref.Release()
	})
	if allocs != 0 {
		t.Fatalf("allocs=%v, want 0", allocs)
	}
}

func TestBufferSamplesView(t *testing.T) {
	t.Parallel()
	b := NewBuffer(40)
	if b.Len() != 48 {
		t.Fatalf("Len=%d, want 48", b.Len())
	}
	s := b.Samples()
	s[17] = 3
	if b[1][1] != 3 {
		t.Fatalf("view does not alias packs: %v", b[1][1])
	}
	b.Zero()
	if s[17] != 0 {
		t.Fatalf("Zero left %v", s[17])
	}
}
