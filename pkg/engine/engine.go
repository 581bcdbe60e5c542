package engine

import (
	"cmp"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/internal/invariant"
	"github.com/saker-ai/mixcore/pkg/audio"
)

// Config fixes the shape of the blocks an Engine renders.
type Config struct {
	SampleRate int
	Channels   int
	// BlockSize is the number of frames per block.
	BlockSize           int
	AudibilityThreshold float32
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Blocks      uint64 `json:"blocks"`
	Starved     uint64 `json:"starved"`
	Underruns   uint64 `json:"underruns"`
	Emitters    int    `json:"emitters"`
	Playing     int    `json:"playing"`
	PoolEntries int    `json:"pool_entries"`
	PoolPacks   int    `json:"pool_packs"`
	TapDrops    uint64 `json:"tap_drops"`
}

// Engine owns the live emitters and renders interleaved blocks.
//
// Everything except ServiceAudio, AwaitRequest and Close must be called
// from the single render context.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	pool     *audio.BufferPool
	emitters []*Emitter
	layout   []DestinationChannel
	listener Listener
	master   float32
	taps     []*Tap

	channels [][]float32
	render   []float32

	mu          sync.Mutex
	cond        *sync.Cond
	back        []float32
	ready       bool
	needsBuffer bool
	closed      bool
	starved     uint64

	blocks      uint64
	underruns   uint64
	poolEntries int
}

// New returns an engine rendering blocks of cfg's shape.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BlockSize = audio.RoundToPack(max(cfg.BlockSize, 1))
	cfg.Channels = max(cfg.Channels, 1)
	if cfg.AudibilityThreshold <= 0 {
		cfg.AudibilityThreshold = DefaultAudibilityThreshold
	}
	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		pool:        audio.NewBufferPool(),
		layout:      ChannelLayout(cfg.Channels),
		listener:    DefaultListener(),
		master:      1,
		channels:    make([][]float32, cfg.Channels),
		render:      make([]float32, cfg.BlockSize*cfg.Channels),
		back:        make([]float32, cfg.BlockSize*cfg.Channels),
		needsBuffer: true,
	}
	e.cond = sync.NewCond(&e.mu)
	for i := range e.channels {
		e.channels[i] = audio.NewBuffer(cfg.BlockSize).Samples()
	}
	return e
}

// Config returns the normalised engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// BlockSamples returns the interleaved length of one block.
func (e *Engine) BlockSamples() int {
	return e.cfg.BlockSize * e.cfg.Channels
}

// Add takes ownership of em, keeping emitters sorted by id.
func (e *Engine) Add(em *Emitter) {
	em.SetAudibilityThreshold(e.cfg.AudibilityThreshold)
	if n := len(e.emitters); n == 0 || e.emitters[n-1].id < em.id {
		e.emitters = append(e.emitters, em)
		return
	}
	i, found := slices.BinarySearchFunc(e.emitters, em.id, func(x *Emitter, id ID) int {
		return cmp.Compare(x.id, id)
	})
	if !invariant.Check(!found, "emitter id already live") {
		return
	}
	e.emitters = slices.Insert(e.emitters, i, em)
}

// Lookup returns the live emitter with id, or nil.
func (e *Engine) Lookup(id ID) *Emitter {
	i, ok := slices.BinarySearchFunc(e.emitters, id, func(em *Emitter, id ID) int {
		return cmp.Compare(em.id, id)
	})
	if !ok {
		return nil
	}
	return e.emitters[i]
}

// Listener returns the current listener.
func (e *Engine) Listener() Listener {
	return e.listener
}

// SetListener replaces the listener used for spatialization.
func (e *Engine) SetListener(l Listener) {
	e.listener = l
}

// SetMasterGain scales every published block.
func (e *Engine) SetMasterGain(g float32) {
	e.master = max(g, 0)
}

// StopAll stops every live emitter.
func (e *Engine) StopAll() {
	for _, em := range e.emitters {
		em.Stop()
	}
}

// AttachTap starts copying published blocks into t.
func (e *Engine) AttachTap(t *Tap) {
	if slices.Contains(e.taps, t) {
		return
	}
	e.taps = append(e.taps, t)
}

// DetachTap stops copying blocks into t.
func (e *Engine) DetachTap(t *Tap) {
	e.taps = slices.DeleteFunc(e.taps, func(x *Tap) bool { return x == t })
}

// Generate renders one block and publishes it to the back buffer.
func (e *Engine) Generate() {
	e.emitters = slices.DeleteFunc(e.emitters, (*Emitter).IsDone)

	for _, em := range e.emitters {
		switch em.state {
		case StateCreated:
			if !em.Ready() {
				continue
			}
			em.Start()
			em.Update(e.layout, &e.listener)
		case StatePlaying:
			em.Update(e.layout, &e.listener)
		}
	}

	frames := e.cfg.BlockSize
	for _, ch := range e.channels {
		clear(ch)
	}
	for _, em := range e.emitters {
		if !em.IsPlaying() {
			continue
		}
		consumed := em.MixTo(e.pool, e.channels, frames)
		if em.Underran() {
			e.underruns++
			e.logger.Info("emitter stopped on clip underrun", zap.Uint32("id", uint32(em.id)))
			continue
		}
		em.AdvancePlayback(consumed)
	}

	audio.InterleaveGain(e.render, e.channels, e.master)
	for _, t := range e.taps {
		t.write(e.render)
	}
	e.blocks++

	if n := e.pool.Len(); n != e.poolEntries {
		e.poolEntries = n
		e.logger.Debug("buffer pool grew", zap.Int("entries", n), zap.Int("packs", e.pool.Packs()))
	}

	e.mu.Lock()
	e.render, e.back = e.back, e.render
	e.ready = true
	e.mu.Unlock()
}

// AwaitRequest blocks until a new block is wanted. It returns false once
// the engine is closed.
func (e *Engine) AwaitRequest() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.needsBuffer && !e.closed {
		e.cond.Wait()
	}
	if e.closed {
		return false
	}
	e.needsBuffer = false
	return true
}

// Run renders a block each time one is requested until Close.
func (e *Engine) Run() {
	for e.AwaitRequest() {
		e.Generate()
	}
}

// ServiceAudio copies the ready block into dst and requests the next one.
// Without a ready block dst is filled with silence.
func (e *Engine) ServiceAudio(dst []float32) {
	e.mu.Lock()
	if e.ready {
		n := copy(dst, e.back)
		clear(dst[n:])
		e.ready = false
	} else {
		clear(dst)
		e.starved++
	}
	e.needsBuffer = true
	e.mu.Unlock()
	e.cond.Signal()
}

// Close wakes any goroutine blocked in AwaitRequest.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// AppendPlaying appends the sorted ids of playing emitters to dst.
func (e *Engine) AppendPlaying(dst []ID) []ID {
	for _, em := range e.emitters {
		if em.IsPlaying() {
			dst = append(dst, em.id)
		}
	}
	return dst
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Blocks:      e.blocks,
		Underruns:   e.underruns,
		Emitters:    len(e.emitters),
		PoolEntries: e.pool.Len(),
		PoolPacks:   e.pool.Packs(),
	}
	for _, em := range e.emitters {
		if em.IsPlaying() {
			s.Playing++
		}
	}
	for _, t := range e.taps {
		s.TapDrops += t.Dropped()
	}
	e.mu.Lock()
	s.Starved = e.starved
	e.mu.Unlock()
	return s
}
