package output

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Oto plays blocks on the default system device through oto.
type Oto struct {
	threaded bool
	logger   *zap.Logger

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	reader *BlockReader
	spec   Spec
}

// NewOto returns an oto backend. With threaded the engine renders ahead on
// its own goroutine; otherwise blocks are rendered inside oto's reads.
func NewOto(threaded bool, logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oto{threaded: threaded, logger: logger}
}

func (o *Oto) Open(spec Spec, device string, prepare Callback) (Spec, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		return Spec{}, ErrAlreadyOpen
	}
	var format oto.Format
	switch spec.Format {
	case FormatFloat32LE:
		format = oto.FormatFloat32LE
	case FormatInt16LE:
		format = oto.FormatSignedInt16LE
	default:
		return Spec{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, spec.Format)
	}
	if device != "" {
		o.logger.Warn("oto always uses the default device", zap.String("device", device))
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   spec.SampleRate,
		ChannelCount: spec.Channels,
		Format:       format,
		BufferSize:   2 * spec.BlockDuration(),
	})
	if err != nil {
		return Spec{}, fmt.Errorf("create oto context: %w", err)
	}
	<-ready

	o.ctx = ctx
	o.spec = spec
	o.reader = NewBlockReader(spec, prepare)
	o.logger.Info("audio device opened",
		zap.Int("sample_rate", spec.SampleRate),
		zap.Int("channels", spec.Channels),
		zap.Int("block_size", spec.BlockSize),
		zap.String("format", string(spec.Format)),
		zap.Bool("threaded", o.threaded),
	)
	return spec, nil
}

func (o *Oto) NeedsAudioThread() bool {
	return o.threaded
}

func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return ErrNotOpen
	}
	if o.player != nil {
		return nil
	}
	o.player = o.ctx.NewPlayer(o.reader)
	o.player.Play()
	return nil
}

// Close stops playback. oto allows one context per process, so the
// context is suspended rather than destroyed.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.logger.Warn("close oto player", zap.Error(err))
		}
		o.player = nil
	}
	if o.ctx != nil {
		if err := o.ctx.Suspend(); err != nil {
			return fmt.Errorf("suspend oto context: %w", err)
		}
		o.logger.Info("audio device closed")
	}
	return nil
}
