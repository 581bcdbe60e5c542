package protocol

import (
	"github.com/saker-ai/mixcore/internal/config"
	"github.com/saker-ai/mixcore/pkg/engine"
)

// Client command types accepted by the monitor.
const (
	TypePlay      = "play"
	TypeStop      = "stop"
	TypeGain      = "gain"
	TypePan       = "pan"
	TypeStopAll   = "stop-all"
	TypeListCues  = "list-cues"
	TypeStats     = "stats"
	TypeHeartbeat = "heartbeat"
	TypeMute      = "mute"
	TypeUnmute    = "unmute"
)

// Server message types.
const (
	TypeHello        = "hello"
	TypePlayed       = "played"
	TypeStopped      = "stopped"
	TypeCues         = "cues"
	TypeStatsReply   = "stats"
	TypeLevel        = "level"
	TypeError        = "error"
	TypeHeartbeatAck = "heartbeat-ack"
	TypeState        = "state"
)

// ClientCommand is a JSON command sent by a monitor client. Fields that do
// not apply to Type are ignored.
type ClientCommand struct {
	Type      string    `json:"type"`
	Cue       string    `json:"cue,omitempty"`
	Handle    engine.ID `json:"handle,omitempty"`
	Gain      *float32  `json:"gain,omitempty"`
	Pan       *float32  `json:"pan,omitempty"`
	Loop      *bool     `json:"loop,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Hello is sent once after the upgrade and describes the audio stream.
type Hello struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	Mode          string `json:"mode"`
	Codec         string `json:"codec"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"`
}

// State reports the session's stream state after mute or unmute.
type State struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// Played acknowledges a play command.
type Played struct {
	Type      string    `json:"type"`
	Cue       string    `json:"cue"`
	Handle    engine.ID `json:"handle"`
	RequestID string    `json:"request_id,omitempty"`
}

// Stopped acknowledges stop and stop-all.
type Stopped struct {
	Type      string      `json:"type"`
	Handles   []engine.ID `json:"handles"`
	RequestID string      `json:"request_id,omitempty"`
}

// Cues lists the playable cues.
type Cues struct {
	Type      string       `json:"type"`
	Cues      []config.Cue `json:"cues"`
	RequestID string       `json:"request_id,omitempty"`
}

// StatsReply carries the engine counters.
type StatsReply struct {
	Type      string       `json:"type"`
	Stats     engine.Stats `json:"stats"`
	Playing   []engine.ID  `json:"playing"`
	Sessions  int          `json:"sessions"`
	RequestID string       `json:"request_id,omitempty"`
}

// Level reports the RMS of recent monitor audio, in [0,1].
type Level struct {
	Type string  `json:"type"`
	RMS  float64 `json:"rms"`
}

// Error reports a rejected command.
type Error struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewError builds an error message for the command that caused it.
func NewError(message, requestID string) Error {
	return Error{Type: TypeError, Message: message, RequestID: requestID}
}
