package audio

import "github.com/saker-ai/mixcore/internal/invariant"

// MixAudio adds src into dst, ramping the gain linearly from gainStart on
// the first sample to gainEnd on the last one.
func MixAudio(src, dst []float32, gainStart, gainEnd float32) {
	n := len(src)
	if !invariant.Check(len(dst) >= n, "mix destination shorter than source") {
		n = len(dst)
	}
	if n == 0 {
		return
	}
	src = src[:n]
	dst = dst[:n]
	if gainStart == gainEnd || n == 1 {
		g := gainStart
		for i, s := range src {
			dst[i] += s * g
		}
		return
	}
	step := (gainEnd - gainStart) / float32(n-1)
	for i, s := range src {
		dst[i] += s * (gainStart + step*float32(i))
	}
}

// MixBuffers is MixAudio over whole packs.
func MixBuffers(src, dst Buffer, gainStart, gainEnd float32) {
	MixAudio(src.Samples(), dst.Samples(), gainStart, gainEnd)
}

// Interleave writes the per-channel buffers into dst in channel-minor
// order: frame 0 of every channel, then frame 1, and so on.
func Interleave(dst []float32, channels [][]float32) {
	InterleaveGain(dst, channels, 1)
}

// InterleaveGain is Interleave with a constant gain applied to every sample.
func InterleaveGain(dst []float32, channels [][]float32, gain float32) {
	nch := len(channels)
	if nch == 0 {
		return
	}
	frames := len(dst) / nch
	for c, ch := range channels {
		if !invariant.Check(len(ch) >= frames, "interleave channel shorter than block") {
			return
		}
		ch = ch[:frames]
		if gain == 1 {
			for f, s := range ch {
				dst[f*nch+c] = s
			}
			continue
		}
		for f, s := range ch {
			dst[f*nch+c] = s * gain
		}
	}
}
