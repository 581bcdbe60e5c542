package engine

import (
	"time"

	"github.com/saker-ai/mixcore/internal/invariant"
	"github.com/saker-ai/mixcore/pkg/audio"
)

// ID identifies an emitter for its whole life. Zero is never used.
type ID uint32

// State is the lifecycle stage of an emitter.
type State string

const (
	StateCreated State = "created"
	StatePlaying State = "playing"
	StateDone    State = "done"
)

// DefaultAudibilityThreshold is the gain below which a channel pair is
// treated as silent.
const DefaultAudibilityThreshold = 0.01

// EmitterOptions configures a new emitter.
type EmitterOptions struct {
	Gain      float32
	Looping   bool
	Position  Position
	Behaviour Behaviour
	// StartAt is the initial playback cursor in source samples.
	StartAt int
}

// Emitter is one playing instance of a clip. It is owned by the render
// thread once handed to the engine.
type Emitter struct {
	id        ID
	clip      Clip
	state     State
	gain      float32
	looping   bool
	position  Position
	behaviour Behaviour

	cursor  int
	length  int
	srcRate int

	cur, prev MixMatrix
	updated   bool

	sinceUpdate time.Duration
	elapsed     time.Duration

	threshold float32
	resampler audio.Resampler
	underrun  bool
}

// NewEmitter prepares an emitter for clip that will be rendered at outRate.
func NewEmitter(id ID, clip Clip, outRate int, smoothing float32, opts EmitterOptions) *Emitter {
	e := &Emitter{
		id:        id,
		clip:      clip,
		state:     StateCreated,
		gain:      max(opts.Gain, 0),
		looping:   opts.Looping,
		position:  opts.Position,
		behaviour: attachBehaviour(opts.Behaviour),
		cursor:    max(opts.StartAt, 0),
		srcRate:   clip.SampleRate(),
		threshold: DefaultAudibilityThreshold,
	}
	if e.srcRate <= 0 {
		e.srcRate = outRate
	}
	e.resampler.Configure(e.srcRate, outRate, smoothing)
	return e
}

func (e *Emitter) ID() ID { return e.id }
func (e *Emitter) State() State { return e.state }
func (e *Emitter) IsPlaying() bool { return e.state == StatePlaying }
func (e *Emitter) IsDone() bool { return e.state == StateDone }
func (e *Emitter) Gain() float32 { return e.gain }
func (e *Emitter) Looping() bool { return e.looping }
func (e *Emitter) Cursor() int { return e.cursor }
func (e *Emitter) PlaybackLength() int { return e.length }
func (e *Emitter) Elapsed() time.Duration { return e.elapsed }
func (e *Emitter) Position() Position { return e.position }
func (e *Emitter) Mix() (prev, cur MixMatrix) { return e.prev, e.cur }

// Underran reports whether the emitter stopped because its clip went away.
func (e *Emitter) Underran() bool { return e.underrun }

// Ready reports whether the emitter can start.
func (e *Emitter) Ready() bool {
	return e.state == StateCreated && e.clip.IsLoaded()
}

// SetAudibilityThreshold changes the silence threshold used by MixTo.
func (e *Emitter) SetAudibilityThreshold(v float32) { e.threshold = v }

func (e *Emitter) SetGain(g float32) { e.gain = max(g, 0) }
func (e *Emitter) SetLooping(loop bool) { e.looping = loop }
func (e *Emitter) SetBehaviour(b Behaviour) { e.behaviour = attachBehaviour(b) }

// SetPosition replaces the spatial configuration. Multi-channel sources
// stay fixed.
func (e *Emitter) SetPosition(p Position) {
	if e.state != StateCreated && e.clip.NumChannels() > 1 {
		p = FixedPosition()
	}
	e.position = p
}

// Seek moves the playback cursor. Positions past the end wrap for looping
// emitters and clamp otherwise.
func (e *Emitter) Seek(sample int) {
	sample = max(sample, 0)
	if e.length > 0 && sample >= e.length {
		if e.looping {
			sample %= e.length
		} else {
			sample = e.length
		}
	}
	e.cursor = sample
	e.resampler.Reset()
}

// Start moves a ready emitter to playing.
func (e *Emitter) Start() {
	if !invariant.Check(e.state == StateCreated, "start on an emitter that already started") {
		return
	}
	if !invariant.Check(e.clip.IsLoaded(), "start before the clip is loaded") {
		return
	}
	e.length = e.clip.Length()
	if e.clip.NumChannels() > 1 {
		e.position = FixedPosition()
	}
	e.state = StatePlaying
	if e.length == 0 || (e.cursor >= e.length && !e.looping) {
		e.Stop()
		return
	}
	e.cursor %= e.length
}

// Update runs the attached behaviour and recomputes the gain matrix.
func (e *Emitter) Update(dst []DestinationChannel, l *Listener) {
	if e.state == StateDone {
		return
	}
	if !invariant.Check(e.state == StatePlaying, "update on an emitter that is not playing") {
		return
	}
	if e.behaviour != nil {
		if !e.behaviour.advance(e, e.sinceUpdate) {
			e.behaviour = nil
		}
		if e.state == StateDone {
			return
		}
	}
	e.sinceUpdate = 0

	e.prev = e.cur
	e.position.ComputeMix(e.clip.NumChannels(), dst, e.gain, l, &e.cur)
	if !e.updated {
		e.prev = e.cur
		e.updated = true
	}
}

// MixTo renders frames output samples of the emitter into the channel
// buffers and returns the number of source samples the block consumed.
func (e *Emitter) MixTo(pool *audio.BufferPool, channels [][]float32, frames int) int {
	if !invariant.Check(e.state == StatePlaying, "mix on an emitter that is not playing") {
		return 0
	}
	if !e.clip.IsLoaded() {
		e.underrun = true
		e.Stop()
		return 0
	}

	nsrc := min(e.cur.Src, audio.MaxResampleChannels)
	consumed := e.blockInput(frames)

	// Coarse skip on the summed gains of the whole matrix, then per pair.
	if e.prev.Sum()+e.cur.Sum() < e.threshold {
		for s := 0; s < nsrc; s++ {
			e.skipChannel(s, consumed, frames)
		}
		return consumed
	}

	passthrough := e.resampler.Passthrough()
	direct := passthrough && e.cursor+frames <= e.length
	var scratch, out audio.BufferRef
	if !passthrough {
		scratch = pool.Acquire(consumed)
		defer scratch.Release()
		out = pool.Acquire(frames)
		defer out.Release()
	} else if !direct {
		scratch = pool.Acquire(frames)
		defer scratch.Release()
	}

	for s := 0; s < nsrc; s++ {
		if !e.channelAudible(s) {
			e.skipChannel(s, consumed, frames)
			continue
		}
		var block []float32
		switch {
		case direct:
			block = e.clip.ChannelData(s, e.cursor, frames)
		case passthrough:
			block = scratch.Samples(frames)
			e.readInto(block, s)
		default:
			in := scratch.Samples(consumed)
			e.readInto(in, s)
			block = out.Samples(frames)
			_, written := e.resampler.Resample(in, block, s)
			clear(block[written:])
		}
		for d := 0; d < e.cur.Dst && d < len(channels); d++ {
			g0, g1 := e.prev.At(s, d), e.cur.At(s, d)
			if g0 < e.threshold && g1 < e.threshold {
				continue
			}
			audio.MixAudio(block, channels[d][:frames], g0, g1)
		}
	}
	return consumed
}

// AdvancePlayback moves the cursor by samples source samples, wrapping
// when looping and finishing otherwise.
func (e *Emitter) AdvancePlayback(samples int) {
	if e.state != StatePlaying || samples <= 0 {
		return
	}
	dt := time.Duration(samples) * time.Second / time.Duration(e.srcRate)
	e.sinceUpdate += dt
	e.elapsed += dt
	e.cursor += samples
	if e.cursor < e.length {
		return
	}
	if e.looping && e.length > 0 {
		e.cursor %= e.length
		return
	}
	e.cursor = e.length
	e.Stop()
}

// Stop finishes the emitter immediately.
func (e *Emitter) Stop() {
	e.state = StateDone
	e.behaviour = nil
}

func (e *Emitter) blockInput(frames int) int {
	if e.resampler.Passthrough() {
		return frames
	}
	return e.resampler.InputSamplesNeeded(0, frames)
}

func (e *Emitter) channelAudible(s int) bool {
	for d := 0; d < e.cur.Dst; d++ {
		if e.prev.At(s, d) >= e.threshold || e.cur.At(s, d) >= e.threshold {
			return true
		}
	}
	return false
}

func (e *Emitter) skipChannel(s, consumed, frames int) {
	if !e.resampler.Passthrough() {
		e.resampler.Skip(s, consumed, frames)
	}
}

// readInto fills dst from the cursor, wrapping for looping emitters and
// padding with silence past the end otherwise.
func (e *Emitter) readInto(dst []float32, s int) {
	pos := e.cursor
	for n := 0; n < len(dst); {
		if pos >= e.length {
			if !e.looping || e.length == 0 {
				clear(dst[n:])
				return
			}
			pos = 0
		}
		span := e.clip.ChannelData(s, pos, min(len(dst)-n, e.length-pos))
		if len(span) == 0 {
			clear(dst[n:])
			return
		}
		n += copy(dst[n:], span)
		pos += len(span)
	}
}
