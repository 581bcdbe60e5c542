package audio

import (
	"fmt"
	"sync"

	"github.com/saker-ai/mixcore/pkg/audio/opusx"
)

const maxOpusPacket = 4000

// OpusEncoder packs fixed-size PCM16 frames into opus packets.
type OpusEncoder struct {
	encoder       *opusx.Encoder
	sampleRate    int
	channels      int
	frameDuration int
	frameSize     int
	opts          OpusOptions
	pcm           []int16
	opusBuffer    []byte
	mutex         sync.Mutex
}

// NewOpusEncoder returns an encoder for frames of frameDurationMs.
func NewOpusEncoder(sampleRate, channels, frameDurationMs int, opts OpusOptions) (*OpusEncoder, error) {
	enc, err := opusx.NewEncoder(sampleRate, channels, opusx.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if err := opts.apply(enc); err != nil {
		return nil, err
	}

	frameSize := sampleRate * frameDurationMs / 1000
	return &OpusEncoder{
		encoder:       enc,
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDurationMs,
		frameSize:     frameSize,
		opts:          opts,
		pcm:           make([]int16, frameSize*channels),
		opusBuffer:    make([]byte, maxOpusPacket),
	}, nil
}

// Encode encodes one frame. Short input is padded with silence and long
// input truncated. A nil packet means the encoder had nothing to send.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.encoder == nil {
		return nil, fmt.Errorf("opus encode: encoder closed")
	}

	if len(pcm) != len(e.pcm) {
		n := copy(e.pcm, pcm)
		clear(e.pcm[n:])
		pcm = e.pcm
	}

	n, err := e.encoder.Encode(pcm, e.opusBuffer)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	result := make([]byte, n)
	copy(result, e.opusBuffer[:n])
	return result, nil
}

// Close drops the codec state.
func (e *OpusEncoder) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.encoder = nil
	e.opusBuffer = nil
	return nil
}

// FrameSize returns the samples per channel in one frame.
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// FrameDuration returns the frame length in milliseconds.
func (e *OpusEncoder) FrameDuration() int {
	return e.frameDuration
}

// FrameSamples returns the interleaved samples in one frame.
func (e *OpusEncoder) FrameSamples() int {
	return e.frameSize * e.channels
}
