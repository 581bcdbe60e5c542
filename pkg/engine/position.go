package engine

import "github.com/saker-ai/mixcore/internal/invariant"

// MaxMixEntries bounds the size of a gain matrix.
const MaxMixEntries = 16

// MixMatrix maps each source channel to a gain per destination channel.
type MixMatrix struct {
	Src   int
	Dst   int
	Gains [MaxMixEntries]float32
}

// At returns the gain from source channel s to destination channel d.
func (m *MixMatrix) At(s, d int) float32 {
	return m.Gains[s*m.Dst+d]
}

func (m *MixMatrix) set(s, d int, g float32) {
	m.Gains[s*m.Dst+d] = g
}

// Sum returns the total of every gain in the matrix.
func (m *MixMatrix) Sum() float32 {
	var sum float32
	for _, g := range m.Gains[:m.Src*m.Dst] {
		sum += g
	}
	return sum
}

func (m *MixMatrix) reset(src, dst int) {
	if !invariant.Check(src*dst <= MaxMixEntries, "gain matrix exceeds entry limit") {
		for src > 1 && src*dst > MaxMixEntries {
			src--
		}
		for dst > 1 && src*dst > MaxMixEntries {
			dst--
		}
	}
	m.Src = src
	m.Dst = dst
	clear(m.Gains[:])
}

// PositionKind selects how a source is spatialized.
type PositionKind uint8

const (
	// PositionFixed passes channels through without spatialization.
	PositionFixed PositionKind = iota
	// PositionUI pans a mono source by a scalar in [-1, 1].
	PositionUI
	// PositionPositional places a mono source in world space.
	PositionPositional
)

func (k PositionKind) String() string {
	switch k {
	case PositionUI:
		return "ui"
	case PositionPositional:
		return "positional"
	default:
		return "fixed"
	}
}

// SpatialPoint is one weighted location of a positional source.
type SpatialPoint struct {
	Point  Vector3
	Weight float32
}

// Position is the spatial configuration of a source.
type Position struct {
	Kind PositionKind
	Pan  float32
	// Points has one entry for a point source and several for a composite
	// emitter spread over an area.
	Points      []SpatialPoint
	RefDistance float32
	MaxDistance float32
}

// FixedPosition disables spatialization.
func FixedPosition() Position {
	return Position{Kind: PositionFixed}
}

// UIPosition pans a mono source, -1 is full left.
func UIPosition(pan float32) Position {
	return Position{Kind: PositionUI, Pan: clamp(pan, -1, 1)}
}

// PositionalAt places a mono source at p. It plays at full volume up to
// ref and fades linearly to silence at maxDist.
func PositionalAt(p Vector3, ref, maxDist float32) Position {
	return CompositePosition(ref, maxDist, SpatialPoint{Point: p, Weight: 1})
}

// CompositePosition spreads a mono source over several weighted points.
func CompositePosition(ref, maxDist float32, points ...SpatialPoint) Position {
	return Position{
		Kind:        PositionPositional,
		Points:      append([]SpatialPoint(nil), points...),
		RefDistance: ref,
		MaxDistance: maxDist,
	}
}

// Gain2DPan is the triangular pan law between a source and a destination
// pan value, both in [-1, 1]. Full gain at zero distance falls linearly to
// silence at the maximum distance of 2. The distance is halved so a centred
// source reaches both stereo channels at half gain instead of neither.
func Gain2DPan(src, dst float32) float32 {
	d := src - dst
	if d < 0 {
		d = -d
	}
	return max(0, 1-d/2)
}

// DistanceFalloff returns 1 inside ref, 0 beyond maxDist and a linear ramp
// in between.
func DistanceFalloff(distance, ref, maxDist float32) float32 {
	if maxDist <= ref {
		if distance <= ref {
			return 1
		}
		return 0
	}
	return 1 - clamp((distance-ref)/(maxDist-ref), 0, 1)
}

// ComputeMix fills out with the gains for a source of srcChannels channels
// playing at gain into dst.
func (p *Position) ComputeMix(srcChannels int, dst []DestinationChannel, gain float32, l *Listener, out *MixMatrix) {
	out.reset(srcChannels, len(dst))
	kind := p.Kind
	if kind != PositionFixed && !invariant.Check(srcChannels == 1, "only mono sources can be panned or positioned") {
		kind = PositionFixed
	}
	switch kind {
	case PositionUI:
		for d := 0; d < out.Dst; d++ {
			out.set(0, d, gain*Gain2DPan(p.Pan, dst[d].Pan))
		}
	case PositionPositional:
		p.positionalMix(dst, gain, l, out)
	default:
		fixedMix(gain, out)
	}
}

func fixedMix(gain float32, out *MixMatrix) {
	if out.Src == 1 {
		for d := 0; d < out.Dst; d++ {
			out.set(0, d, gain)
		}
		return
	}
	for s := 0; s < out.Src && s < out.Dst; s++ {
		out.set(s, s, gain)
	}
}

func (p *Position) positionalMix(dst []DestinationChannel, gain float32, l *Listener, out *MixMatrix) {
	for _, sp := range p.Points {
		delta := sp.Point.Sub(l.Position)
		dist := delta.Length()
		falloff := DistanceFalloff(dist, p.RefDistance, p.MaxDistance)
		if falloff == 0 || sp.Weight == 0 {
			continue
		}
		pan := clamp(delta.Dot(l.Right)/max(dist, l.ReferenceDistance), -1, 1)
		w := gain * sp.Weight * falloff
		for d := 0; d < out.Dst; d++ {
			out.Gains[d] += w * Gain2DPan(pan, dst[d].Pan)
		}
	}
	for d := 0; d < out.Dst; d++ {
		out.Gains[d] = clamp(out.Gains[d], 0, gain)
	}
}
