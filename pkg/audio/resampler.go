package audio

import (
	"math"

	"github.com/saker-ai/mixcore/internal/invariant"
)

const (
	// MaxResampleChannels bounds the channels one Resampler tracks.
	MaxResampleChannels = 16
	// LeftoverSize bounds the outputs carried between calls per channel.
	LeftoverSize = 8

	phaseEpsilon = 1e-9
)

type resampleChannel struct {
	phase     float64
	prev      float32
	smooth    float32
	leftover  [LeftoverSize]float32
	nLeftover int
}

// Resampler converts per-channel sample streams from one rate to another
// by linear interpolation followed by a one-pole smoothing filter.
//
// Every call consumes all of its input. Outputs that do not fit the
// destination are kept (at most LeftoverSize) and emitted first on the
// next call, so no sample is lost or duplicated across call boundaries.
// Size requests with InputSamplesNeeded to keep the carry bounded.
type Resampler struct {
	fromHz    int
	toHz      int
	step      float64
	smoothing float32
	ch        [MaxResampleChannels]resampleChannel
}

// NewResampler returns a resampler from fromHz to toHz. smoothing is the
// one-pole coefficient in [0, 1); zero disables the filter.
func NewResampler(fromHz, toHz int, smoothing float32) *Resampler {
	r := &Resampler{}
	r.Configure(fromHz, toHz, smoothing)
	return r
}

// Configure changes the rates and resets all channel state.
func (r *Resampler) Configure(fromHz, toHz int, smoothing float32) {
	invariant.Check(fromHz > 0 && toHz > 0, "resampler rates must be positive")
	invariant.Check(toHz <= fromHz*LeftoverSize, "upsampling ratio exceeds leftover capacity")
	if fromHz <= 0 {
		fromHz = 1
	}
	if toHz <= 0 {
		toHz = fromHz
	}
	if smoothing < 0 {
		smoothing = 0
	}
	if smoothing >= 1 {
		smoothing = 0.99
	}
	r.fromHz = fromHz
	r.toHz = toHz
	r.step = float64(fromHz) / float64(toHz)
	r.smoothing = smoothing
	r.Reset()
}

// Reset clears the interpolation state of every channel.
func (r *Resampler) Reset() {
	r.ch = [MaxResampleChannels]resampleChannel{}
}

// Step returns the input advance per output sample.
func (r *Resampler) Step() float64 {
	return r.step
}

// Rates returns the source and destination rates.
func (r *Resampler) Rates() (fromHz, toHz int) {
	return r.fromHz, r.toHz
}

// Passthrough reports whether input and output rates match.
func (r *Resampler) Passthrough() bool {
	return r.fromHz == r.toHz
}

// Leftover returns the number of carried outputs for channel.
func (r *Resampler) Leftover(channel int) int {
	if channel < 0 || channel >= MaxResampleChannels {
		return 0
	}
	return r.ch[channel].nLeftover
}

// InputSamplesNeeded returns how many input samples the next Resample call
// on channel must receive to fill nOut outputs.
func (r *Resampler) InputSamplesNeeded(channel, nOut int) int {
	if !invariant.Check(channel >= 0 && channel < MaxResampleChannels, "resampler channel out of range") {
		return 0
	}
	st := &r.ch[channel]
	need := nOut - st.nLeftover
	if need <= 0 {
		return 0
	}
	last := st.phase + float64(need-1)*r.step
	n := int(math.Ceil(last-phaseEpsilon)) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Resample consumes all of src for channel and writes outputs into dst,
// leftovers from the previous call first. It returns the number of input
// samples read and output samples written.
func (r *Resampler) Resample(src, dst []float32, channel int) (nRead, nWritten int) {
	if !invariant.Check(channel >= 0 && channel < MaxResampleChannels, "resampler channel out of range") {
		return 0, 0
	}
	st := &r.ch[channel]

	nWritten = copy(dst, st.leftover[:st.nLeftover])
	if nWritten < st.nLeftover {
		rest := copy(st.leftover[:], st.leftover[nWritten:st.nLeftover])
		st.nLeftover = rest
	} else {
		st.nLeftover = 0
	}

	n := len(src)
	if n == 0 {
		return 0, nWritten
	}

	last := float64(n - 1)
	t := st.phase
	for t <= last+phaseEpsilon {
		i := int(math.Floor(t))
		frac := float32(t - float64(i))
		var a, b float32
		switch {
		case i < 0:
			a, b = st.prev, src[0]
		case i >= n-1:
			a, b = src[n-1], src[n-1]
		default:
			a, b = src[i], src[i+1]
		}
		y := a + (b-a)*frac
		if r.smoothing > 0 {
			y = st.smooth + (1-r.smoothing)*(y-st.smooth)
			st.smooth = y
		}
		if nWritten < len(dst) {
			dst[nWritten] = y
			nWritten++
		} else if invariant.Check(st.nLeftover < LeftoverSize, "resampler leftover overflow") {
			st.leftover[st.nLeftover] = y
			st.nLeftover++
		}
		t += r.step
	}
	st.phase = t - float64(n)
	st.prev = src[n-1]
	return n, nWritten
}

// Skip advances channel as if nIn input samples had been resampled into a
// destination of nOut samples that is then thrown away. The carried
// output count evolves exactly as it would under Resample.
func (r *Resampler) Skip(channel, nIn, nOut int) {
	if !invariant.Check(channel >= 0 && channel < MaxResampleChannels, "resampler channel out of range") {
		return
	}
	st := &r.ch[channel]
	produced := 0
	if nIn > 0 {
		last := float64(nIn - 1)
		if st.phase <= last+phaseEpsilon {
			k := math.Floor((last-st.phase+phaseEpsilon)/r.step) + 1
			st.phase += k * r.step
			produced = int(k)
		}
		st.phase -= float64(nIn)
		st.prev = 0
	}
	carry := min(max(st.nLeftover+produced-nOut, 0), LeftoverSize)
	clear(st.leftover[:carry])
	st.nLeftover = carry
	st.smooth = 0
}
