package audio

import (
	"math"
	"testing"
)

func sine(n, rate int, hz float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * hz * float64(i) / float64(rate)))
	}
	return out
}

// resampleAll drives r in blocks of block outputs, feeding exactly the
// requested input each time, until src runs out.
func resampleAll(r *Resampler, src []float32, block int) (out []float32, read int) {
	dst := make([]float32, block)
	for {
		need := r.InputSamplesNeeded(0, block)
		if read+need > len(src) {
			return out, read
		}
		n, w := r.Resample(src[read:read+need], dst, 0)
		read += n
		out = append(out, dst[:w]...)
	}
}

func TestResamplerPassthroughIsExact(t *testing.T) {
	t.Parallel()
	r := NewResampler(48000, 48000, 0)
	src := sine(1000, 48000, 440)
	out, read := resampleAll(r, src, 64)
	if read != len(out) {
		t.Fatalf("read=%d written=%d, want equal", read, len(out))
	}
	for i := range out {
		if out[i] != src[i] {
			t.Fatalf("out[%d]=%v, want %v", i, out[i], src[i])
		}
	}
}

func TestResamplerRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		a, b   int
		block  int
		toneHz float64
	}{
		{name: "48k-44.1k", a: 48000, b: 44100, block: 128, toneHz: 440},
		{name: "44.1k-48k", a: 44100, b: 48000, block: 100, toneHz: 440},
		{name: "48k-32k", a: 48000, b: 32000, block: 64, toneHz: 220},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			src := sine(tc.a/4, tc.a, tc.toneHz)
			there, _ := resampleAll(NewResampler(tc.a, tc.b, 0), src, tc.block)
			back, _ := resampleAll(NewResampler(tc.b, tc.a, 0), there, tc.block)
			if len(back) < len(src)/2 {
				t.Fatalf("round trip produced %d of %d samples", len(back), len(src))
			}
			for i := range back {
				if d := math.Abs(float64(back[i] - src[i])); d > 0.01 {
					t.Fatalf("sample %d: got %v, want %v (diff %v)", i, back[i], src[i], d)
				}
			}
		})
	}
}

func TestResamplerChunkingMatchesSingleCall(t *testing.T) {
	t.Parallel()
	for _, smoothing := range []float32{0, 0.3} {
		src := make([]float32, 4000)
		for i := range src {
			src[i] = float32(i) * 0.001
		}
		chunked, read := resampleAll(NewResampler(44100, 48000, smoothing), src, 37)

		whole := make([]float32, len(src)*2)
		n, w := NewResampler(44100, 48000, smoothing).Resample(src[:read], whole, 0)
		if n != read {
			t.Fatalf("single call read=%d, want %d", n, read)
		}
		if w < len(chunked) {
			t.Fatalf("single call wrote %d, chunked wrote %d", w, len(chunked))
		}
		for i := range chunked {
			if d := math.Abs(float64(chunked[i] - whole[i])); d > 1e-5 {
				t.Fatalf("smoothing=%v sample %d: chunked=%v whole=%v", smoothing, i, chunked[i], whole[i])
			}
		}
	}
}

func TestResamplerLeftoverCarried(t *testing.T) {
	t.Parallel()
	r := NewResampler(24000, 48000, 0)
	src := []float32{0, 1, 2, 3}
	dst := make([]float32, 4)
	n, w := r.Resample(src, dst, 0)
	if n != 4 || w != 4 {
		t.Fatalf("read=%d written=%d, want 4 4", n, w)
	}
	if r.Leftover(0) != 3 {
		t.Fatalf("leftover=%d, want 3", r.Leftover(0))
	}
	if got := r.InputSamplesNeeded(0, 2); got != 0 {
		t.Fatalf("InputSamplesNeeded with enough leftover=%d, want 0", got)
	}
	dst = make([]float32, 3)
	_, w = r.Resample(nil, dst, 0)
	want := []float32{2, 2.5, 3}
	if w != 3 {
		t.Fatalf("written=%d, want 3", w)
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst=%v, want %v", dst, want)
		}
	}
}

func TestResamplerSkipMatchesResample(t *testing.T) {
	t.Parallel()
	a := NewResampler(44100, 48000, 0)
	b := NewResampler(44100, 48000, 0)
	src := make([]float32, 512)
	dst := make([]float32, 256)
	for i := 0; i < 20; i++ {
		needA := a.InputSamplesNeeded(0, 256)
		needB := b.InputSamplesNeeded(0, 256)
		if needA != needB {
			t.Fatalf("iteration %d: needs %d vs %d", i, needA, needB)
		}
		a.Resample(src[:needA], dst, 0)
		b.Skip(0, needB, 256)
		if math.Abs(a.ch[0].phase-b.ch[0].phase) > 1e-9 {
			t.Fatalf("iteration %d: phase %v vs %v", i, a.ch[0].phase, b.ch[0].phase)
		}
		if a.Leftover(0) != b.Leftover(0) {
			t.Fatalf("iteration %d: leftover %d vs %d", i, a.Leftover(0), b.Leftover(0))
		}
	}
}

func TestResamplerChannelsIndependent(t *testing.T) {
	t.Parallel()
	r := NewResampler(32000, 48000, 0)
	fresh := NewResampler(32000, 48000, 0)
	left := sine(300, 32000, 300)
	dst := make([]float32, 128)
	r.Resample(left[:r.InputSamplesNeeded(0, 128)], dst, 0)
	if got, want := r.InputSamplesNeeded(1, 128), fresh.InputSamplesNeeded(1, 128); got != want {
		t.Fatalf("channel 1 needs %d, want %d", got, want)
	}
	if r.Leftover(1) != 0 {
		t.Fatalf("channel 1 leftover=%d, want 0", r.Leftover(1))
	}
}

func TestResamplerResampleAllocs(t *testing.T) {
	r := NewResampler(44100, 48000, DefaultSmoothing)
	src := make([]float32, 1024)
	dst := make([]float32, 512)
	allocs := testing.AllocsPerRun(50, func() {
		r.Resample(src[:r.InputSamplesNeeded(0, 512)], dst, 0)
	})
	if allocs != 0 {
		t.Fatalf("allocs=%v, want 0", allocs)
	}
}
