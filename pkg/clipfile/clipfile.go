// Package clipfile decodes audio files into in-memory clips.
//
// WAV and AIFF go through go-audio, MP3 through go-mp3 and Ogg Vorbis
// through oggvorbis. Every format ends up as one float32 slice per channel.
package clipfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/saker-ai/mixcore/pkg/engine"
)

var (
	// ErrUnsupportedFormat is returned for a format with no decoder.
	ErrUnsupportedFormat = errors.New("clipfile: unsupported format")
	// ErrInvalidFile is returned when a decoder rejects the header.
	ErrInvalidFile = errors.New("clipfile: invalid file")
	// ErrEmpty is returned for a file without samples.
	ErrEmpty = errors.New("clipfile: no samples")
)

// Decoder turns an encoded stream into a clip.
type Decoder interface {
	Decode(r io.ReadSeeker) (*engine.MemClip, error)
}

// Registry maps format keys such as "wav" to decoders.
type Registry struct {
	mu     sync.Mutex
	codecs map[string]Decoder
}

// NewRegistry returns a registry with no decoders.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for format.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[normalizeFormat(format)] = d
}

// Get returns the decoder for format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.codecs[normalizeFormat(format)]
	return d, ok
}

// Default holds the built-in decoders.
var Default = newDefault()

func newDefault() *Registry {
	r := NewRegistry()
	r.Register("wav", WAV{})
	r.Register("aiff", AIFF{})
	r.Register("aif", AIFF{})
	r.Register("mp3", MP3{})
	r.Register("ogg", Vorbis{})
	return r
}

func normalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// Load decodes the file at path with the Default registry, picking the
// decoder by extension.
func Load(path string) (*engine.MemClip, error) {
	return Default.Load(path)
}

// Load decodes the file at path, picking the decoder by extension.
func (r *Registry) Load(path string) (*engine.MemClip, error) {
	format := filepath.Ext(path)
	d, ok := r.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	clip, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return clip, nil
}

// WAV decodes PCM WAV files of any bit depth go-audio supports.
type WAV struct{}

func (WAV) Decode(r io.ReadSeeker) (*engine.MemClip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(buf, int(d.BitDepth))
}

// AIFF decodes AIFF and AIFF-C files.
type AIFF struct{}

func (AIFF) Decode(r io.ReadSeeker) (*engine.MemClip, error) {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(buf, int(d.BitDepth))
}

// MP3 decodes MPEG-1/2 layer III. go-mp3 always yields 16-bit stereo.
type MP3 struct{}

func (MP3) Decode(r io.ReadSeeker) (*engine.MemClip, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	frames := len(pcm) / 4
	if frames == 0 {
		return nil, ErrEmpty
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := range frames {
		left[i] = float32(int16(uint16(pcm[4*i])|uint16(pcm[4*i+1])<<8)) / 32768
		right[i] = float32(int16(uint16(pcm[4*i+2])|uint16(pcm[4*i+3])<<8)) / 32768
	}
	return engine.NewMemClip(d.SampleRate(), left, right), nil
}

// Vorbis decodes Ogg Vorbis streams.
type Vorbis struct{}

func (Vorbis) Decode(r io.ReadSeeker) (*engine.MemClip, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format.Channels <= 0 || len(samples) < format.Channels {
		return nil, ErrEmpty
	}
	return engine.NewMemClip(format.SampleRate, Deinterleave(samples, format.Channels)...), nil
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) (*engine.MemClip, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, ErrInvalidFile
	}
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	channels := buf.Format.NumChannels
	if len(buf.Data) < channels {
		return nil, ErrEmpty
	}
	scale := 1 / float32(int64(1)<<(bitDepth-1))
	interleaved := make([]float32, len(buf.Data)/channels*channels)
	for i := range interleaved {
		interleaved[i] = float32(buf.Data[i]) * scale
	}
	return engine.NewMemClip(buf.Format.SampleRate, Deinterleave(interleaved, channels)...), nil
}

// Deinterleave splits interleaved frames into one slice per channel.
// A trailing partial frame is dropped.
func Deinterleave(interleaved []float32, channels int) [][]float32 {
	if channels <= 0 {
		return nil
	}
	frames := len(interleaved) / channels
	out := make([][]float32, channels)
	for c := range out {
		ch := make([]float32, frames)
		for f := range ch {
			ch[f] = interleaved[f*channels+c]
		}
		out[c] = ch
	}
	return out
}
