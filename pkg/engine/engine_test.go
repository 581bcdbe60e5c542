package engine

import (
	"testing"
	"time"
)

func newTestEngine(block int) *Engine {
	return New(Config{SampleRate: testRate, Channels: 2, BlockSize: block}, nil)
}

func TestEngineRendersInterleaved(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	e.Add(NewEmitter(1, constClip(testRate, 64, 0.5), testRate, 0, EmitterOptions{Gain: 1, Position: UIPosition(-1)}))
	e.Generate()

	dst := make([]float32, e.BlockSamples())
	e.ServiceAudio(dst)
	for f := 0; f < 16; f++ {
		if dst[2*f] != 0.5 || dst[2*f+1] != 0 {
			t.Fatalf("frame %d=(%v,%v), want (0.5,0)", f, dst[2*f], dst[2*f+1])
		}
	}
}

func TestEngineStarvedWithoutBlock(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	dst := make([]float32, e.BlockSamples())
	for i := range dst {
		dst[i] = 1
	}
	e.ServiceAudio(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("dst[%d]=%v, want silence", i, v)
		}
	}
	if got := e.Stats().Starved; got != 1 {
		t.Fatalf("starved=%d, want 1", got)
	}

	e.Generate()
	e.ServiceAudio(dst)
	e.ServiceAudio(dst)
	if got := e.Stats().Starved; got != 2 {
		t.Fatalf("starved=%d, want 2", got)
	}
}

func TestEngineRemovesFinished(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	e.Add(NewEmitter(1, constClip(testRate, 16, 1), testRate, 0, EmitterOptions{Gain: 1}))
	e.Add(NewEmitter(2, constClip(testRate, 64, 1), testRate, 0, EmitterOptions{Gain: 1, Looping: true}))

	e.Generate()
	if got := e.AppendPlaying(nil); len(got) != 1 || got[0] != 2 {
		t.Fatalf("playing=%v, want [2]", got)
	}
	if e.Lookup(1) == nil {
		t.Fatal("finished emitter removed before the next block")
	}

	e.Generate()
	if e.Lookup(1) != nil {
		t.Fatal("finished emitter still live")
	}
	if e.Lookup(2) == nil {
		t.Fatal("looping emitter lost")
	}
	if got := e.Stats().Emitters; got != 1 {
		t.Fatalf("emitters=%d, want 1", got)
	}
}

func TestEngineAddOutOfOrder(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	for _, id := range []ID{6, 5, 9, 7} {
		e.Add(NewEmitter(id, constClip(testRate, 64, 0.1), testRate, 0, EmitterOptions{Gain: 1, Looping: true}))
	}
	e.Add(NewEmitter(7, constClip(testRate, 64, 0.1), testRate, 0, EmitterOptions{Gain: 1, Looping: true}))

	e.Generate()
	got := e.AppendPlaying(nil)
	want := []ID{5, 6, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("playing=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playing=%v, want %v", got, want)
		}
	}
	for _, id := range want {
		if e.Lookup(id) == nil {
			t.Fatalf("emitter %d not found", id)
		}
	}
}

func TestEngineWaitsForPendingClip(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	clip := NewPendingClip(testRate)
	e.Add(NewEmitter(1, clip, testRate, 0, EmitterOptions{Gain: 1}))

	e.Generate()
	if em := e.Lookup(1); em.State() != StateCreated {
		t.Fatalf("state=%s, want created", em.State())
	}
	clip.Load(make([]float32, 64))
	e.Generate()
	if em := e.Lookup(1); em.State() != StatePlaying {
		t.Fatalf("state=%s, want playing", em.State())
	}
}

func TestEngineCountsUnderruns(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	clip := constClip(testRate, 64, 1)
	e.Add(NewEmitter(1, clip, testRate, 0, EmitterOptions{Gain: 1, Looping: true}))
	e.Generate()
	clip.Unload()
	e.Generate()
	s := e.Stats()
	if s.Underruns != 1 || s.Playing != 0 {
		t.Fatalf("underruns=%d playing=%d, want 1 and 0", s.Underruns, s.Playing)
	}
}

func TestEngineMasterGain(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	e.Add(NewEmitter(1, constClip(testRate, 64, 0.5), testRate, 0, EmitterOptions{Gain: 1}))
	e.SetMasterGain(0.5)
	e.Generate()
	dst := make([]float32, e.BlockSamples())
	e.ServiceAudio(dst)
	if dst[0] != 0.25 || dst[1] != 0.25 {
		t.Fatalf("frame 0=(%v,%v), want (0.25,0.25)", dst[0], dst[1])
	}
}

func TestEngineStopAll(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	for id := ID(1); id <= 3; id++ {
		e.Add(NewEmitter(id, constClip(testRate, 64, 1), testRate, 0, EmitterOptions{Gain: 1, Looping: true}))
	}
	e.Generate()
	e.StopAll()
	e.Generate()
	if got := e.AppendPlaying(nil); len(got) != 0 {
		t.Fatalf("playing=%v, want none", got)
	}
}

func TestEngineTap(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	e.Add(NewEmitter(1, constClip(testRate, 64, 1), testRate, 0, EmitterOptions{Gain: 1, Looping: true}))
	tap := NewTap(2 * e.BlockSamples())
	e.AttachTap(tap)
	e.AttachTap(tap)

	e.Generate()
	select {
	case <-tap.Notify():
	default:
		t.Fatal("tap not notified")
	}
	e.Generate()
	e.Generate()
	if got := tap.Buffered(); got != 2*e.BlockSamples() {
		t.Fatalf("buffered=%d, want %d", got, 2*e.BlockSamples())
	}
	if got := tap.Dropped(); got != 1 {
		t.Fatalf("dropped=%d, want 1", got)
	}

	buf := make([]float32, 40)
	if n := tap.Read(buf); n != 40 || buf[39] != 1 {
		t.Fatalf("read n=%d last=%v, want 40 and 1", n, buf[39])
	}
	e.DetachTap(tap)
	e.Generate()
	if got := tap.Buffered(); got != 2*e.BlockSamples()-40 {
		t.Fatalf("buffered=%d after detach, want %d", got, 2*e.BlockSamples()-40)
	}
}

func TestTapZeroCapacity(t *testing.T) {
	t.Parallel()
	tap := NewTap(0)
	tap.write(nil)
	tap.write([]float32{0.25})
	tap.write([]float32{0.5})
	if got := tap.Dropped(); got != 1 {
		t.Fatalf("dropped=%d, want 1", got)
	}
	buf := make([]float32, 4)
	if n := tap.Read(buf); n != 1 || buf[0] != 0.25 {
		t.Fatalf("read n=%d first=%v, want 1 and 0.25", n, buf[0])
	}
	if n := tap.Read(buf); n != 0 {
		t.Fatalf("read n=%d from an empty tap", n)
	}
}

func TestEngineAwaitRequest(t *testing.T) {
	t.Parallel()
	e := newTestEngine(16)
	if !e.AwaitRequest() {
		t.Fatal("first AwaitRequest=false, want true")
	}

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	e.ServiceAudio(make([]float32, e.BlockSamples()))
	e.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	if e.AwaitRequest() {
		t.Fatal("AwaitRequest after Close=true, want false")
	}
}

func TestEngineGenerateDoesNotAllocate(t *testing.T) {
	e := newTestEngine(64)
	e.Add(NewEmitter(1, constClip(testRate, 1000, 0.2), testRate, 0.25, EmitterOptions{Gain: 1, Looping: true}))
	e.Add(NewEmitter(2, constClip(testRate, 100, 0.2), testRate, 0.25, EmitterOptions{Gain: 1, Looping: true, Position: UIPosition(0.3)}))
	e.Add(NewEmitter(3, constClip(testRate/2, 500, 0.2), testRate, 0.25, EmitterOptions{Gain: 1, Looping: true}))
	e.Add(NewEmitter(4, constClip(44100, 500, 0.2), testRate, 0.25, EmitterOptions{
		Gain:     1,
		Looping:  true,
		Position: PositionalAt(Vector3{X: 3, Z: -2}, 1, 50),
	}))
	for range 8 {
		e.Generate()
	}
	allocs := testing.AllocsPerRun(100, e.Generate)
	if allocs != 0 {
		t.Fatalf("Generate allocs=%v, want 0", allocs)
	}
}

func BenchmarkEngineGenerate(b *testing.B) {
	e := newTestEngine(512)
	for id := ID(1); id <= 32; id++ {
		rate := testRate
		if id%2 == 0 {
			rate = 44100
		}
		e.Add(NewEmitter(id, constClip(rate, 48000, 0.1), testRate, 0.25, EmitterOptions{
			Gain:     0.5,
			Looping:  true,
			Position: UIPosition(float32(id%5)/2 - 1),
		}))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		e.Generate()
	}
}
