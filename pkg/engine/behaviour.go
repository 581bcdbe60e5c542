package engine

import "time"

// Behaviour is a time-driven mutator attached to an emitter. The set of
// behaviours is closed; Fade is the only one.
type Behaviour interface {
	// advance applies dt of elapsed time and reports whether the
	// behaviour stays attached.
	advance(e *Emitter, dt time.Duration) bool
	// attach returns the copy an emitter keeps, so one value can be
	// handed to several emitters without sharing progress.
	attach() Behaviour
}

// Fade ramps emitter gain linearly from From to To over Duration. Each
// emitter runs its own copy, starting from zero elapsed time.
type Fade struct {
	From      float32
	To        float32
	Duration  time.Duration
	StopAtEnd bool

	elapsed time.Duration
}

// NewFade returns a fade. With stopAtEnd the emitter stops when it ends.
func NewFade(from, to float32, d time.Duration, stopAtEnd bool) *Fade {
	return &Fade{From: from, To: to, Duration: d, StopAtEnd: stopAtEnd}
}

// FadeOut fades from the given gain to silence and stops.
func FadeOut(from float32, d time.Duration) *Fade {
	return NewFade(from, 0, d, true)
}

func (f *Fade) attach() Behaviour {
	if f == nil {
		return nil
	}
	c := *f
	c.elapsed = 0
	return &c
}

func (f *Fade) advance(e *Emitter, dt time.Duration) bool {
	f.elapsed += dt
	t := float32(1)
	if f.Duration > 0 {
		t = clamp(float32(f.elapsed)/float32(f.Duration), 0, 1)
	}
	e.gain = f.From + (f.To-f.From)*t
	if t < 1 {
		return true
	}
	if f.StopAtEnd {
		e.Stop()
	}
	return false
}

func attachBehaviour(b Behaviour) Behaviour {
	if b == nil {
		return nil
	}
	return b.attach()
}
