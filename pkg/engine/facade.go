package engine

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/pkg/audio"
	"github.com/saker-ai/mixcore/pkg/output"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine: already started")
	// ErrNotStarted is returned by Stop before Start.
	ErrNotStarted = errors.New("engine: not started")
)

// FacadeConfig configures a Facade.
type FacadeConfig struct {
	Spec                output.Spec
	Device              string
	AudibilityThreshold float32
	// Smoothing is the resampler one-pole coefficient. Negative selects
	// the build default.
	Smoothing float32
}

// PlayOptions configures a sound started through the Facade.
type PlayOptions struct {
	// Gain defaults to 1 when zero. Start silent with a Fade instead.
	Gain      float32
	Looping   bool
	Position  Position
	Behaviour Behaviour
	StartAt   int
}

// Facade is the thread-safe entry point to the engine. After Start any
// goroutine may call it; every mutation is queued and applied on the
// render thread before the next block.
type Facade struct {
	cfg     FacadeConfig
	backend output.Backend
	logger  *zap.Logger

	engine   *Engine
	spec     output.Spec
	threaded bool
	started  atomic.Bool
	wg       sync.WaitGroup

	nextID atomic.Uint32

	mu       sync.Mutex
	outbound []command
	inbound  []command

	snapMu  sync.Mutex
	playing []ID
	spare   []ID
	stats   Stats
}

// NewFacade returns a facade that renders into backend once started.
func NewFacade(backend output.Backend, cfg FacadeConfig, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Smoothing < 0 {
		cfg.Smoothing = audio.DefaultSmoothing
	}
	return &Facade{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		spec:    cfg.Spec,
	}
}

// Start opens the backend, builds the engine for the negotiated spec and
// begins rendering.
func (f *Facade) Start() error {
	if !f.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	req := f.cfg.Spec
	req.BlockSize = audio.RoundToPack(max(req.BlockSize, 1))
	spec, err := f.backend.Open(req, f.cfg.Device, f.prepare)
	if err != nil {
		f.started.Store(false)
		return fmt.Errorf("open output: %w", err)
	}
	f.spec = spec
	f.engine = New(Config{
		SampleRate:          spec.SampleRate,
		Channels:            spec.Channels,
		BlockSize:           spec.BlockSize,
		AudibilityThreshold: f.cfg.AudibilityThreshold,
	}, f.logger)

	f.threaded = f.backend.NeedsAudioThread()
	if f.threaded {
		f.wg.Add(1)
		go f.audioLoop()
	}
	if err := f.backend.Start(); err != nil {
		f.engine.Close()
		f.wg.Wait()
		_ = f.backend.Close()
		f.started.Store(false)
		return fmt.Errorf("start output: %w", err)
	}
	f.logger.Info("mixer started",
		zap.Int("sample_rate", spec.SampleRate),
		zap.Int("channels", spec.Channels),
		zap.Int("block_size", spec.BlockSize),
		zap.Bool("threaded", f.threaded),
	)
	return nil
}

// Stop halts rendering, joins the audio goroutine and closes the backend.
func (f *Facade) Stop() error {
	if !f.started.CompareAndSwap(true, false) {
		return ErrNotStarted
	}
	f.engine.Close()
	f.wg.Wait()
	if err := f.backend.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	f.logger.Info("mixer stopped")
	return nil
}

// Spec returns the negotiated output spec.
func (f *Facade) Spec() output.Spec {
	return f.spec
}

func (f *Facade) audioLoop() {
	defer f.wg.Done()
	for f.engine.AwaitRequest() {
		f.step()
	}
}

// prepare is the backend callback. In the pull model it renders the block
// itself before handing it out.
func (f *Facade) prepare(dst []float32) {
	if !f.threaded {
		f.step()
	}
	f.engine.ServiceAudio(dst)
}

// step drains queued commands, renders one block and publishes the
// playing-id snapshot.
func (f *Facade) step() {
	f.mu.Lock()
	f.inbound, f.outbound = f.outbound, f.inbound[:0]
	f.mu.Unlock()

	for i := range f.inbound {
		f.inbound[i].apply(f.engine)
		f.inbound[i] = command{}
	}

	f.engine.Generate()

	f.spare = f.engine.AppendPlaying(f.spare[:0])
	stats := f.engine.Stats()
	f.snapMu.Lock()
	f.playing, f.spare = f.spare, f.playing
	f.stats = stats
	f.snapMu.Unlock()
}

func (f *Facade) push(c command) {
	f.mu.Lock()
	f.outbound = append(f.outbound, c)
	f.mu.Unlock()
}

// Play starts clip and returns a handle to it. The sound stops when the
// handle is closed or collected unless the handle was detached.
func (f *Facade) Play(clip Clip, opts PlayOptions) *Handle {
	if opts.Gain == 0 {
		opts.Gain = 1
	}
	// Ids are drawn under the queue lock so plays reach the engine in id order.
	f.mu.Lock()
	id := ID(f.nextID.Add(1))
	em := NewEmitter(id, clip, f.spec.SampleRate, f.cfg.Smoothing, EmitterOptions{
		Gain:      opts.Gain,
		Looping:   opts.Looping,
		Position:  opts.Position,
		Behaviour: opts.Behaviour,
		StartAt:   opts.StartAt,
	})
	f.outbound = append(f.outbound, command{op: opPlay, emitter: em})
	f.mu.Unlock()

	h := &Handle{facade: f, id: id}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// SetListener replaces the listener for positional sounds.
func (f *Facade) SetListener(l Listener) {
	f.push(command{op: opSetListener, listener: l})
}

// SetMasterGain scales the whole mix.
func (f *Facade) SetMasterGain(g float32) {
	f.push(command{op: opSetMasterGain, f: g})
}

// StopAll stops every sound.
func (f *Facade) StopAll() {
	f.push(command{op: opStopAll})
}

// AttachTap starts copying published blocks into t.
func (f *Facade) AttachTap(t *Tap) {
	f.push(command{op: opAttachTap, tap: t})
}

// DetachTap stops copying blocks into t.
func (f *Facade) DetachTap(t *Tap) {
	f.push(command{op: opDetachTap, tap: t})
}

// Stats returns the counters published after the last block.
func (f *Facade) Stats() Stats {
	f.snapMu.Lock()
	defer f.snapMu.Unlock()
	return f.stats
}

// Playing returns the ids playing as of the last block.
func (f *Facade) Playing() []ID {
	f.snapMu.Lock()
	defer f.snapMu.Unlock()
	return slices.Clone(f.playing)
}

func (f *Facade) isPlaying(id ID) bool {
	f.snapMu.Lock()
	defer f.snapMu.Unlock()
	_, ok := slices.BinarySearch(f.playing, id)
	return ok
}
