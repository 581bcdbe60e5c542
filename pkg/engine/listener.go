package engine

// Listener is the reference point positional emitters are heard from.
type Listener struct {
	Position Vector3
	Velocity Vector3
	// Right is the unit lateral axis; pan +1 lies along it.
	Right             Vector3
	ReferenceDistance float32
	SpeedOfSound      float32
}

// DefaultListener sits at the origin facing -Z with +X to the right.
func DefaultListener() Listener {
	return Listener{
		Right:             Vector3{X: 1},
		ReferenceDistance: 1,
		SpeedOfSound:      343,
	}
}

// DestinationChannel describes one output channel for spatialization.
type DestinationChannel struct {
	Pan float32
}

// ChannelLayout spreads n output channels evenly across the pan range.
// Mono sits at the center and stereo at -1 and +1.
func ChannelLayout(n int) []DestinationChannel {
	if n <= 0 {
		return nil
	}
	out := make([]DestinationChannel, n)
	if n == 1 {
		return out
	}
	for i := range out {
		out[i].Pan = -1 + 2*float32(i)/float32(n-1)
	}
	return out
}
