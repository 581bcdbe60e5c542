package fsm

import (
	"fmt"
	"strings"
	"sync"
)

// State describes whether a monitor session is receiving audio.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateMuted     State = "muted"
	StateClosed    State = "closed"
)

// Mode decides whether a session ever receives audio.
type Mode string

const (
	ModeAudio   Mode = "audio"
	ModeControl Mode = "control"
)

// Machine tracks one monitor session. Closed is terminal.
type Machine struct {
	mu    sync.RWMutex
	state State
	mode  Mode
}

// New creates an idle machine in audio mode.
func New() *Machine {
	return &Machine{
		state: StateIdle,
		mode:  ModeAudio,
	}
}

// ParseMode maps a query value to a mode. Unknown values select audio.
func ParseMode(v string) Mode {
	if strings.TrimSpace(strings.ToLower(v)) == string(ModeControl) {
		return ModeControl
	}
	return ModeAudio
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode updates the mode. A streaming control session drops to idle.
func (m *Machine) SetMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = ParseMode(mode)
	if m.mode == ModeControl && m.state == StateStreaming {
		m.state = StateIdle
	}
}

// OnOpen runs after the hello message. Audio sessions start streaming.
func (m *Machine) OnOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	if m.mode == ModeAudio {
		m.state = StateStreaming
	}
}

// OnMute pauses audio for a streaming session.
func (m *Machine) OnMute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateStreaming {
		m.state = StateMuted
	}
}

// OnUnmute resumes audio. Control sessions stay idle.
func (m *Machine) OnUnmute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateMuted && m.mode == ModeAudio {
		m.state = StateStreaming
	}
}

// OnClose moves to the terminal state.
func (m *Machine) OnClose() {
	m.transition(StateClosed)
}

// Streaming reports whether audio frames should be sent.
func (m *Machine) Streaming() bool {
	return m.State() == StateStreaming
}

// Force sets state unconditionally unless the session is closed.
func (m *Machine) Force(state State) error {
	switch state {
	case StateIdle, StateStreaming, StateMuted, StateClosed:
		m.transition(state)
		return nil
	default:
		return fmt.Errorf("invalid state: %s", state)
	}
}

func (m *Machine) transition(state State) {
	m.mu.Lock()
	if m.state != StateClosed {
		m.state = state
	}
	m.mu.Unlock()
}
