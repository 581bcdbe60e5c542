//go:build audiodebug

package audio

// DefaultSmoothing keeps debug builds bit-exact.
const DefaultSmoothing float32 = 0
