package engine

import (
	"runtime"
	"sync/atomic"
)

// Handle refers to a sound by id. Operations on a sound that has already
// finished are silently ignored.
type Handle struct {
	facade   *Facade
	id       ID
	detached atomic.Bool
	closed   atomic.Bool
}

// ID returns the emitter id behind h.
func (h *Handle) ID() ID {
	return h.id
}

func (h *Handle) SetGain(g float32) {
	h.facade.push(command{op: opSetGain, id: h.id, f: g})
}

func (h *Handle) SetPosition(p Position) {
	p.Points = append([]SpatialPoint(nil), p.Points...)
	h.facade.push(command{op: opSetPosition, id: h.id, position: p})
}

func (h *Handle) SetLooping(loop bool) {
	h.facade.push(command{op: opSetLooping, id: h.id, flag: loop})
}

// SetBehaviour attaches b, replacing any current behaviour. Nil detaches.
func (h *Handle) SetBehaviour(b Behaviour) {
	h.facade.push(command{op: opSetBehaviour, id: h.id, behaviour: b})
}

// Seek moves playback to sample, in the clip's own rate.
func (h *Handle) Seek(sample int) {
	h.facade.push(command{op: opSeek, id: h.id, n: sample})
}

func (h *Handle) Stop() {
	h.facade.push(command{op: opStop, id: h.id})
}

// IsPlaying reports whether the sound was playing after the last block.
func (h *Handle) IsPlaying() bool {
	return h.facade.isPlaying(h.id)
}

// Detach lets the sound play to its end after the handle is dropped.
func (h *Handle) Detach() {
	h.detached.Store(true)
}

// Close releases the handle, stopping the sound unless it was detached.
func (h *Handle) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	runtime.SetFinalizer(h, nil)
	if !h.detached.Load() {
		h.Stop()
	}
}
