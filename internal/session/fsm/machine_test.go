package fsm

import "testing"

func TestMachineDefault(t *testing.T) {
	m := New()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
	if got := m.Mode(); got != ModeAudio {
		t.Fatalf("mode=%s, want %s", got, ModeAudio)
	}
	if m.Streaming() {
		t.Fatal("streaming before open")
	}
}

func TestMachineLifecycleAudio(t *testing.T) {
	m := New()
	m.OnOpen()
	if got := m.State(); got != StateStreaming {
		t.Fatalf("state=%s, want %s", got, StateStreaming)
	}
	m.OnMute()
	if got := m.State(); got != StateMuted {
		t.Fatalf("state=%s, want %s", got, StateMuted)
	}
	m.OnUnmute()
	if !m.Streaming() {
		t.Fatalf("state=%s after unmute, want streaming", m.State())
	}
}

func TestMachineLifecycleControl(t *testing.T) {
	m := New()
	m.SetMode("CONTROL")
	m.OnOpen()
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
	m.OnMute()
	m.OnUnmute()
	if m.Streaming() {
		t.Fatal("control session streaming")
	}
}

func TestMachineSetModeStopsStream(t *testing.T) {
	m := New()
	m.OnOpen()
	m.SetMode("control")
	if got := m.State(); got != StateIdle {
		t.Fatalf("state=%s, want %s", got, StateIdle)
	}
}

func TestMachineClosedIsTerminal(t *testing.T) {
	m := New()
	m.OnOpen()
	m.OnClose()
	m.OnUnmute()
	if err := m.Force(StateStreaming); err != nil {
		t.Fatalf("Force: %v", err)
	}
	if got := m.State(); got != StateClosed {
		t.Fatalf("state=%s, want %s", got, StateClosed)
	}
}

func TestMachineInvalidForce(t *testing.T) {
	m := New()
	if err := m.Force(State("unknown")); err == nil {
		t.Fatal("Force(unknown) error=nil, want non-nil")
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"":         ModeAudio,
		"audio":    ModeAudio,
		" Control": ModeControl,
		"other":    ModeAudio,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Fatalf("ParseMode(%q)=%s, want %s", in, got, want)
		}
	}
}
