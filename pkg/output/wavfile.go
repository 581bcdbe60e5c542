package output

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/internal/storage"
	"github.com/saker-ai/mixcore/pkg/audio"
)

// WAVCapture renders blocks into a 16-bit PCM WAV file.
//
// A realtime capture paces itself on a ticker of one block duration and
// pulls from the engine's render-ahead goroutine. An offline capture
// renders synchronously as fast as possible, which makes its output
// deterministic.
type WAVCapture struct {
	dir       string
	realtime  bool
	maxBlocks int
	logger    *zap.Logger

	mu      sync.Mutex
	spec    Spec
	prepare Callback
	file    *os.File
	enc     *wav.Encoder
	path    string
	blocks  int
	stop    chan struct{}
	done    chan struct{}
}

// WAVOption configures a WAVCapture.
type WAVOption func(*WAVCapture)

// WithRealtime paces rendering to wall-clock time.
func WithRealtime(realtime bool) WAVOption {
	return func(c *WAVCapture) { c.realtime = realtime }
}

// WithMaxBlocks ends the capture after n blocks. Zero means unbounded.
func WithMaxBlocks(n int) WAVOption {
	return func(c *WAVCapture) { c.maxBlocks = n }
}

// NewWAVCapture returns a capture writing into dir.
func NewWAVCapture(dir string, logger *zap.Logger, opts ...WAVOption) *WAVCapture {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &WAVCapture{dir: dir, realtime: true, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *WAVCapture) Open(spec Spec, _ string, prepare Callback) (Spec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		return Spec{}, ErrAlreadyOpen
	}
	path, err := storage.NewCapturePath(c.dir)
	if err != nil {
		return Spec{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return Spec{}, fmt.Errorf("create capture file: %w", err)
	}
	c.file = f
	c.path = path
	c.spec = spec
	c.prepare = prepare
	c.enc = wav.NewEncoder(f, spec.SampleRate, 16, spec.Channels, 1)
	c.logger.Info("capture opened", zap.String("path", path), zap.Bool("realtime", c.realtime))
	return spec, nil
}

func (c *WAVCapture) NeedsAudioThread() bool {
	return c.realtime
}

func (c *WAVCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return ErrNotOpen
	}
	if c.stop != nil {
		return nil
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(c.stop, c.done)
	return nil
}

func (c *WAVCapture) loop(stop, done chan struct{}) {
	defer close(done)
	block := make([]float32, c.spec.BlockSamples())
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: c.spec.Channels, SampleRate: c.spec.SampleRate},
		Data:           make([]int, len(block)),
		SourceBitDepth: 16,
	}

	var tick <-chan time.Time
	if c.realtime {
		ticker := time.NewTicker(c.spec.BlockDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		default:
		}
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		}

		c.prepare(block)
		audio.Float32SliceToIntInto(buf.Data, block)
		if err := c.enc.Write(buf); err != nil {
			c.logger.Error("capture write failed", zap.Error(err))
			return
		}

		c.mu.Lock()
		c.blocks++
		full := c.maxBlocks > 0 && c.blocks >= c.maxBlocks
		c.mu.Unlock()
		if full {
			return
		}
	}
}

// Wait blocks until the capture loop ends on its own or is stopped.
func (c *WAVCapture) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Blocks returns the number of blocks written.
func (c *WAVCapture) Blocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks
}

// Path returns the file being written.
func (c *WAVCapture) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Close stops the loop and finalises the WAV header.
func (c *WAVCapture) Close() error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	encErr := c.enc.Close()
	fileErr := c.file.Close()
	c.logger.Info("capture closed", zap.String("path", c.path), zap.Int("blocks", c.blocks))
	c.file = nil
	c.enc = nil
	if encErr != nil {
		return fmt.Errorf("finalise capture: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close capture file: %w", fileErr)
	}
	return nil
}
