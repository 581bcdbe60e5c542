// Package output adapts hardware and file sinks to the block callback the
// mixing engine produces.
package output

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotOpen is returned by Start on a backend that was never opened.
	ErrNotOpen = errors.New("output: backend not open")
	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("output: backend already open")
	// ErrUnsupportedFormat is returned for an unknown sample format.
	ErrUnsupportedFormat = errors.New("output: unsupported sample format")
)

// SampleFormat is the on-the-wire encoding of output samples.
type SampleFormat string

const (
	FormatFloat32LE SampleFormat = "float32"
	FormatInt16LE   SampleFormat = "int16"
)

// ParseFormat maps a config string to a SampleFormat.
func ParseFormat(raw string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "float32", "f32", "float":
		return FormatFloat32LE, nil
	case "int16", "s16", "pcm16":
		return FormatInt16LE, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// BytesPerSample returns the encoded size of one sample.
func (f SampleFormat) BytesPerSample() int {
	if f == FormatInt16LE {
		return 2
	}
	return 4
}

// Spec describes the stream negotiated with a backend.
type Spec struct {
	SampleRate int          `json:"sample_rate"`
	Channels   int          `json:"channels"`
	BlockSize  int          `json:"block_size"`
	Format     SampleFormat `json:"format"`
}

// BlockSamples returns the interleaved length of one block.
func (s Spec) BlockSamples() int {
	return s.BlockSize * s.Channels
}

// BlockDuration returns the playback time of one block.
func (s Spec) BlockDuration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.BlockSize) * time.Second / time.Duration(s.SampleRate)
}

// Callback fills dst with exactly one interleaved block.
type Callback func(dst []float32)

// Backend is a sink the engine renders into.
type Backend interface {
	// Open prepares the device and returns the spec it accepted. prepare
	// is invoked each time the sink wants another block.
	Open(spec Spec, device string, prepare Callback) (Spec, error)
	// NeedsAudioThread reports whether blocks must be rendered ahead on a
	// dedicated goroutine. When false prepare may render synchronously.
	NeedsAudioThread() bool
	Start() error
	Close() error
}
