//go:build !audiodebug

package audio

// DefaultSmoothing is the release one-pole coefficient applied after
// interpolation.
const DefaultSmoothing float32 = 0.25
