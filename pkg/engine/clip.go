package engine

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/saker-ai/mixcore/pkg/audio"
)

// Clip is a readable PCM source. Reads never mutate the clip, so one clip
// can back any number of emitters.
type Clip interface {
	IsLoaded() bool
	NumChannels() int
	// Length is the number of samples per channel.
	Length() int
	SampleRate() int
	// ChannelData returns up to count samples of channel starting at start.
	ChannelData(channel, start, count int) []float32
}

// MemClip is a Clip held in memory, one slice per channel.
type MemClip struct {
	rate   int
	data   [][]float32
	length int
	loaded atomic.Bool
}

// NewMemClip returns a loaded clip over channels. All channels must have
// the same length.
func NewMemClip(rate int, channels ...[]float32) *MemClip {
	c := &MemClip{rate: rate}
	c.Load(channels...)
	return c
}

// NewPendingClip returns a clip that reports not loaded until Load.
func NewPendingClip(rate int) *MemClip {
	return &MemClip{rate: rate}
}

// Load publishes channel data and marks the clip loaded.
func (c *MemClip) Load(channels ...[]float32) {
	length := 0
	if len(channels) > 0 {
		length = len(channels[0])
		for _, ch := range channels[1:] {
			length = min(length, len(ch))
		}
	}
	c.data = channels
	c.length = length
	c.loaded.Store(true)
}

// Unload marks the clip unavailable. Emitters reading it stop on their
// next block.
func (c *MemClip) Unload() {
	c.loaded.Store(false)
}

func (c *MemClip) IsLoaded() bool { return c.loaded.Load() }
func (c *MemClip) NumChannels() int { return len(c.data) }
func (c *MemClip) Length() int { return c.length }
func (c *MemClip) SampleRate() int { return c.rate }

func (c *MemClip) ChannelData(channel, start, count int) []float32 {
	if channel < 0 || channel >= len(c.data) || start >= c.length || count <= 0 {
		return nil
	}
	start = max(start, 0)
	end := min(start+count, c.length)
	return c.data[channel][start:end]
}

// Duration returns the playback length of the clip at its own rate.
func (c *MemClip) Duration() time.Duration {
	if c.rate <= 0 {
		return 0
	}
	return time.Duration(c.length) * time.Second / time.Duration(c.rate)
}

// Tone synthesises a mono sine clip.
func Tone(rate int, hz float64, d time.Duration, gain float32) *MemClip {
	n := int(int64(rate) * int64(d) / int64(time.Second))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = gain * float32(math.Sin(2*math.Pi*hz*float64(i)/float64(rate)))
	}
	return NewMemClip(rate, samples)
}

// ConvertClip returns c resampled offline to rate, or c itself when the
// rates already match.
func ConvertClip(c *MemClip, rate int) (*MemClip, error) {
	if c.rate == rate {
		return c, nil
	}
	channels := make([][]float32, len(c.data))
	for i, ch := range c.data {
		out, err := audio.ResampleOffline(ch[:c.length], c.rate, rate)
		if err != nil {
			return nil, fmt.Errorf("convert clip channel %d: %w", i, err)
		}
		channels[i] = out
	}
	return NewMemClip(rate, channels...), nil
}
