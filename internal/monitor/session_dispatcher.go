package monitor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/internal/cues"
	"github.com/saker-ai/mixcore/internal/protocol"
	"github.com/saker-ai/mixcore/pkg/engine"
)

type incomingHandler func(context.Context, protocol.ClientCommand)

func (s *session) dispatchIncoming(ctx context.Context, cmd protocol.ClientCommand) {
	handlers := map[string]incomingHandler{
		protocol.TypePlay:      s.onPlay,
		protocol.TypeStop:      s.onStop,
		protocol.TypeStopAll:   s.onStopAll,
		protocol.TypeGain:      s.onGain,
		protocol.TypePan:       s.onPan,
		protocol.TypeListCues:  s.onListCues,
		protocol.TypeStats:     s.onStats,
		protocol.TypeMute:      s.onMute,
		protocol.TypeUnmute:    s.onUnmute,
		protocol.TypeHeartbeat: s.onHeartbeat,
	}

	if handler, ok := handlers[cmd.Type]; ok {
		handler(ctx, cmd)
		return
	}
	s.logger.Debug("monitor unknown command type",
		zap.String("session_id", s.id),
		zap.String("type", cmd.Type),
	)
	s.sendJSON(protocol.NewError("unknown command type: "+cmd.Type, cmd.RequestID))
}

func (s *session) onPlay(_ context.Context, cmd protocol.ClientCommand) {
	h := s.handler
	clip, opts, err := h.bank.Prepare(cmd.Cue, cues.Overrides{Gain: cmd.Gain, Pan: cmd.Pan, Loop: cmd.Loop})
	if err != nil {
		s.sendJSON(protocol.NewError(err.Error(), cmd.RequestID))
		return
	}
	handle := h.mixer.Play(clip, opts)
	h.registry.Register(s.id, handle)
	s.sendJSON(protocol.Played{
		Type:      protocol.TypePlayed,
		Cue:       cmd.Cue,
		Handle:    handle.ID(),
		RequestID: cmd.RequestID,
	})
}

var (
	errUnknownHandle = errors.New("unknown handle")
	errNotOwner      = errors.New("handle not owned by this session")
)

// owned returns the engine handle for id if this session started it.
func (s *session) owned(id engine.ID) (*engine.Handle, error) {
	handle, owner, ok := s.handler.registry.Lookup(id)
	if !ok {
		return nil, errUnknownHandle
	}
	if owner != s.id {
		return nil, errNotOwner
	}
	eh, ok := handle.(*engine.Handle)
	if !ok {
		return nil, errUnknownHandle
	}
	return eh, nil
}

func (s *session) onStop(_ context.Context, cmd protocol.ClientCommand) {
	if _, err := s.owned(cmd.Handle); err != nil {
		s.sendJSON(protocol.NewError(err.Error(), cmd.RequestID))
		return
	}
	s.handler.registry.Release(cmd.Handle)
	s.sendJSON(protocol.Stopped{
		Type:      protocol.TypeStopped,
		Handles:   []engine.ID{cmd.Handle},
		RequestID: cmd.RequestID,
	})
}

func (s *session) onStopAll(_ context.Context, cmd protocol.ClientCommand) {
	ids := s.handler.registry.RemoveOwner(s.id)
	s.sendJSON(protocol.Stopped{Type: protocol.TypeStopped, Handles: ids, RequestID: cmd.RequestID})
}

func (s *session) onGain(_ context.Context, cmd protocol.ClientCommand) {
	if cmd.Gain == nil || *cmd.Gain < 0 {
		s.sendJSON(protocol.NewError("gain must be zero or positive", cmd.RequestID))
		return
	}
	eh, err := s.owned(cmd.Handle)
	if err != nil {
		s.sendJSON(protocol.NewError(err.Error(), cmd.RequestID))
		return
	}
	eh.SetGain(*cmd.Gain)
}

func (s *session) onPan(_ context.Context, cmd protocol.ClientCommand) {
	if cmd.Pan == nil {
		s.sendJSON(protocol.NewError("pan is required", cmd.RequestID))
		return
	}
	eh, err := s.owned(cmd.Handle)
	if err != nil {
		s.sendJSON(protocol.NewError(err.Error(), cmd.RequestID))
		return
	}
	eh.SetPosition(engine.UIPosition(*cmd.Pan))
}

func (s *session) onListCues(_ context.Context, cmd protocol.ClientCommand) {
	s.sendJSON(protocol.Cues{Type: protocol.TypeCues, Cues: s.handler.bank.List(), RequestID: cmd.RequestID})
}

func (s *session) onStats(_ context.Context, cmd protocol.ClientCommand) {
	h := s.handler
	s.sendJSON(protocol.StatsReply{
		Type:      protocol.TypeStatsReply,
		Stats:     h.mixer.Stats(),
		Playing:   h.mixer.Playing(),
		Sessions:  h.Sessions(),
		RequestID: cmd.RequestID,
	})
}

func (s *session) onMute(_ context.Context, _ protocol.ClientCommand) {
	s.state.OnMute()
	s.sendJSON(protocol.State{Type: protocol.TypeState, State: string(s.state.State())})
}

func (s *session) onUnmute(_ context.Context, _ protocol.ClientCommand) {
	s.state.OnUnmute()
	s.sendJSON(protocol.State{Type: protocol.TypeState, State: string(s.state.State())})
}

func (s *session) onHeartbeat(_ context.Context, _ protocol.ClientCommand) {
	s.sendJSON(map[string]any{"type": protocol.TypeHeartbeatAck})
}
