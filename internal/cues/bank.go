package cues

import (
	"errors"
	"fmt"
	"time"

	"github.com/saker-ai/mixcore/internal/config"
	"github.com/saker-ai/mixcore/pkg/clipfile"
	"github.com/saker-ai/mixcore/pkg/engine"
)

var (
	// ErrUnknownCue is returned for a name the bank does not hold.
	ErrUnknownCue = errors.New("cues: unknown cue")
	// ErrInvalidGain is returned for a non-positive gain override.
	ErrInvalidGain = errors.New("cues: gain must be positive")
)

// Overrides replace cue settings for one play. Nil fields keep the cue's.
type Overrides struct {
	Gain *float32
	Pan  *float32
	Loop *bool
}

type entry struct {
	cue  config.Cue
	clip *engine.MemClip
}

// Bank holds the synthesised clip for every cue. It is immutable after
// NewBank and safe for concurrent use.
type Bank struct {
	order   []string
	entries map[string]*entry
}

// NewBank decodes file cues and synthesises the rest at their own sample
// rate. With convert set, clips whose rate differs from engineRate are
// resampled offline once; otherwise the engine resamples them while mixing.
func NewBank(list []config.Cue, engineRate int, convert bool) (*Bank, error) {
	b := &Bank{
		order:   make([]string, 0, len(list)),
		entries: make(map[string]*entry, len(list)),
	}
	for _, cue := range list {
		if _, ok := b.entries[cue.Name]; ok {
			continue
		}
		clip, err := loadClip(cue, engineRate)
		if err != nil {
			return nil, fmt.Errorf("cue %s: %w", cue.Name, err)
		}
		if convert && clip.SampleRate() != engineRate {
			converted, err := engine.ConvertClip(clip, engineRate)
			if err != nil {
				return nil, fmt.Errorf("cue %s: %w", cue.Name, err)
			}
			clip = converted
		}
		b.order = append(b.order, cue.Name)
		b.entries[cue.Name] = &entry{cue: cue, clip: clip}
	}
	return b, nil
}

func loadClip(cue config.Cue, engineRate int) (*engine.MemClip, error) {
	if cue.File != "" {
		return clipfile.Load(cue.File)
	}
	rate := cue.SampleRate
	if rate <= 0 {
		rate = engineRate
	}
	d := time.Duration(cue.DurationMs) * time.Millisecond
	return engine.Tone(rate, cue.ToneHz, d, 1), nil
}

// Names returns cue names in manifest order.
func (b *Bank) Names() []string {
	return append([]string(nil), b.order...)
}

// List returns the cues in manifest order.
func (b *Bank) List() []config.Cue {
	out := make([]config.Cue, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.entries[name].cue)
	}
	return out
}

// Get returns the cue called name.
func (b *Bank) Get(name string) (config.Cue, bool) {
	e, ok := b.entries[name]
	if !ok {
		return config.Cue{}, false
	}
	return e.cue, true
}

// Clip returns the clip synthesised for name.
func (b *Bank) Clip(name string) (*engine.MemClip, bool) {
	e, ok := b.entries[name]
	if !ok {
		return nil, false
	}
	return e.clip, true
}

// Autoplay returns the cues to start with the host, in manifest order.
func (b *Bank) Autoplay() []string {
	var names []string
	for _, name := range b.order {
		if b.entries[name].cue.Autoplay {
			names = append(names, name)
		}
	}
	return names
}

// Prepare returns the clip and play options for name. Each call builds a
// fresh fade, so the result must not be reused across plays.
func (b *Bank) Prepare(name string, o Overrides) (engine.Clip, engine.PlayOptions, error) {
	e, ok := b.entries[name]
	if !ok {
		return nil, engine.PlayOptions{}, fmt.Errorf("%w: %s", ErrUnknownCue, name)
	}
	cue := e.cue

	gain := cue.Gain
	if o.Gain != nil {
		if *o.Gain <= 0 {
			return nil, engine.PlayOptions{}, ErrInvalidGain
		}
		gain = *o.Gain
	}
	opts := engine.PlayOptions{Gain: gain, Looping: cue.Loop}
	if o.Loop != nil {
		opts.Looping = *o.Loop
	}

	switch {
	case o.Pan != nil:
		opts.Position = engine.UIPosition(*o.Pan)
	case cue.Pan != nil:
		opts.Position = engine.UIPosition(*cue.Pan)
	case cue.Position != nil:
		p := engine.Vector3{X: cue.Position.X, Y: cue.Position.Y, Z: cue.Position.Z}
		opts.Position = engine.PositionalAt(p, cue.RefDistance, cue.MaxDistance)
	default:
		opts.Position = engine.FixedPosition()
	}

	if cue.FadeInMs > 0 {
		opts.Behaviour = engine.NewFade(0, gain, time.Duration(cue.FadeInMs)*time.Millisecond, false)
	}
	return e.clip, opts, nil
}
