package engine

import (
	"math"
	"testing"

	"github.com/saker-ai/mixcore/internal/invariant"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

var stereo = []DestinationChannel{{Pan: -1}, {Pan: 1}}

func TestGain2DPanLaw(t *testing.T) {
	t.Parallel()
	for _, p := range []float32{-1, -0.5, 0, 0.5, 1} {
		if got := Gain2DPan(p, p); got != 1 {
			t.Fatalf("Gain2DPan(%v,%v)=%v, want 1", p, p, got)
		}
		if p+2 <= 1 {
			if got := Gain2DPan(p, p+2); got != 0 {
				t.Fatalf("Gain2DPan(%v,%v)=%v, want 0", p, p+2, got)
			}
		}
		if p-2 >= -1 {
			if got := Gain2DPan(p, p-2); got != 0 {
				t.Fatalf("Gain2DPan(%v,%v)=%v, want 0", p, p-2, got)
			}
		}
	}
	if got := Gain2DPan(0, -1); got != 0.5 {
		t.Fatalf("centred source on a side channel=%v, want 0.5", got)
	}
	for src := float32(-1); src <= 1; src += 0.125 {
		for dst := float32(-1); dst <= 1; dst += 0.125 {
			g := Gain2DPan(src, dst)
			if g < 0 || g > 1 {
				t.Fatalf("Gain2DPan(%v,%v)=%v, outside [0,1]", src, dst, g)
			}
			if g != Gain2DPan(dst, src) {
				t.Fatalf("Gain2DPan(%v,%v) not symmetric", src, dst)
			}
		}
	}
}

func TestUIPositionStereoMix(t *testing.T) {
	t.Parallel()
	const gain = 0.8
	pos := UIPosition(0)
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, gain, &l, &m)

	if m.Src != 1 || m.Dst != 2 {
		t.Fatalf("matrix=%dx%d, want 1x2", m.Src, m.Dst)
	}
	left, right := m.At(0, 0), m.At(0, 1)
	if !approx(left, gain*Gain2DPan(0, -1)) {
		t.Fatalf("left=%v, want %v", left, gain*Gain2DPan(0, -1))
	}
	if !approx(right, gain*Gain2DPan(0, 1)) {
		t.Fatalf("right=%v, want %v", right, gain*Gain2DPan(0, 1))
	}
	for d, g := range []float32{left, right} {
		if g < 0 || g > gain {
			t.Fatalf("channel %d gain=%v, outside [0,%v]", d, g, gain)
		}
	}
}

func TestUIPositionHardPan(t *testing.T) {
	t.Parallel()
	pos := UIPosition(-3)
	if pos.Pan != -1 {
		t.Fatalf("pan=%v, want clamped -1", pos.Pan)
	}
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, 1, &l, &m)
	if m.At(0, 0) != 1 || m.At(0, 1) != 0 {
		t.Fatalf("gains=(%v,%v), want (1,0)", m.At(0, 0), m.At(0, 1))
	}
}

func TestDistanceFalloff(t *testing.T) {
	t.Parallel()
	const ref, maxDist = 2, 10
	cases := []struct {
		distance float32
		want     float32
	}{
		{distance: 0, want: 1},
		{distance: ref, want: 1},
		{distance: 6, want: 0.5},
		{distance: maxDist, want: 0},
		{distance: 50, want: 0},
	}
	for _, tc := range cases {
		if got := DistanceFalloff(tc.distance, ref, maxDist); !approx(got, tc.want) {
			t.Fatalf("DistanceFalloff(%v)=%v, want %v", tc.distance, got, tc.want)
		}
	}

	prev := DistanceFalloff(0, ref, maxDist)
	for d := float32(0.1); d < 15; d += 0.1 {
		g := DistanceFalloff(d, ref, maxDist)
		if g > prev {
			t.Fatalf("falloff rose from %v to %v at distance %v", prev, g, d)
		}
		prev = g
	}
}

func TestFixedPositionMono(t *testing.T) {
	t.Parallel()
	pos := FixedPosition()
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, 0.5, &l, &m)
	if m.At(0, 0) != 0.5 || m.At(0, 1) != 0.5 {
		t.Fatalf("gains=(%v,%v), want (0.5,0.5)", m.At(0, 0), m.At(0, 1))
	}
}

func TestFixedPositionMultiChannel(t *testing.T) {
	t.Parallel()
	pos := FixedPosition()
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(2, stereo, 1, &l, &m)
	want := [][]float32{{1, 0}, {0, 1}}
	for s := range want {
		for d := range want[s] {
			if got := m.At(s, d); got != want[s][d] {
				t.Fatalf("gain[%d][%d]=%v, want %v", s, d, got, want[s][d])
			}
		}
	}
}

func TestPositionalPansTowardSource(t *testing.T) {
	t.Parallel()
	pos := PositionalAt(Vector3{X: 5}, 1, 100)
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, 1, &l, &m)

	falloff := DistanceFalloff(5, 1, 100)
	if got := m.At(0, 1); !approx(got, falloff) {
		t.Fatalf("right=%v, want %v", got, falloff)
	}
	if got := m.At(0, 0); got != 0 {
		t.Fatalf("left=%v, want 0", got)
	}

	ahead := PositionalAt(Vector3{Z: -5}, 1, 100)
	ahead.ComputeMix(1, stereo, 1, &l, &m)
	if m.At(0, 0) != m.At(0, 1) {
		t.Fatalf("source ahead of listener panned (%v,%v)", m.At(0, 0), m.At(0, 1))
	}
}

func TestPositionalBeyondMaxIsSilent(t *testing.T) {
	t.Parallel()
	pos := PositionalAt(Vector3{Z: -200}, 1, 100)
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, 1, &l, &m)
	if m.Sum() != 0 {
		t.Fatalf("sum=%v, want 0", m.Sum())
	}
}

func TestCompositePositionClampedToGain(t *testing.T) {
	t.Parallel()
	const gain = 0.7
	pos := CompositePosition(1, 100,
		SpatialPoint{Point: Vector3{X: 0.5}, Weight: 1},
		SpatialPoint{Point: Vector3{X: 0.5}, Weight: 1},
		SpatialPoint{Point: Vector3{X: -0.5}, Weight: 1},
	)
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(1, stereo, gain, &l, &m)
	for d := 0; d < m.Dst; d++ {
		if g := m.At(0, d); g < 0 || g > gain {
			t.Fatalf("channel %d gain=%v, outside [0,%v]", d, g, gain)
		}
	}
}

func TestPanningMultiChannelFallsBackToFixed(t *testing.T) {
	if invariant.Enabled {
		t.Skip("checks panic in debug builds")
	}
	t.Parallel()
	pos := UIPosition(-1)
	l := DefaultListener()
	var m MixMatrix
	pos.ComputeMix(2, stereo, 1, &l, &m)
	if m.At(0, 0) != 1 || m.At(1, 1) != 1 || m.At(0, 1) != 0 {
		t.Fatalf("gains=%v, want identity", m.Gains[:4])
	}
}

func TestChannelLayout(t *testing.T) {
	t.Parallel()
	if got := ChannelLayout(1); len(got) != 1 || got[0].Pan != 0 {
		t.Fatalf("mono layout=%v, want centre", got)
	}
	got := ChannelLayout(2)
	if got[0].Pan != -1 || got[1].Pan != 1 {
		t.Fatalf("stereo layout=%v, want -1,+1", got)
	}
	if got := ChannelLayout(3); got[1].Pan != 0 {
		t.Fatalf("3ch centre=%v, want 0", got[1].Pan)
	}
}
