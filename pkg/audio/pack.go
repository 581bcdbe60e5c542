package audio

import "unsafe"

// PackSize is the number of samples in a SamplePack.
const PackSize = 16

// SamplePack is the unit of sample storage for every mixing buffer.
type SamplePack [PackSize]float32

// Buffer holds one channel of one render block as a run of packs.
type Buffer []SamplePack

// PacksFor returns the number of packs needed to hold samples.
func PacksFor(samples int) int {
	if samples <= 0 {
		return 0
	}
	return (samples + PackSize - 1) / PackSize
}

// RoundToPack rounds samples up to a whole number of packs.
func RoundToPack(samples int) int {
	return PacksFor(samples) * PackSize
}

// NewBuffer allocates a zeroed buffer large enough for samples.
func NewBuffer(samples int) Buffer {
	return make(Buffer, PacksFor(samples))
}

// Len returns the capacity of b in samples.
func (b Buffer) Len() int {
	return len(b) * PackSize
}

// Samples returns a flat view over the packs of b. The view aliases b.
func (b Buffer) Samples() []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice(&b[0][0], len(b)*PackSize)
}

// Zero clears every sample in b.
func (b Buffer) Zero() {
	clear(b)
}
