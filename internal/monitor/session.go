package monitor

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/internal/session/fsm"
)

type session struct {
	id      string
	conn    *websocket.Conn
	sendMu  sync.Mutex
	logger  *zap.Logger
	handler *Handler
	state   *fsm.Machine
	audio   chan []byte
	dropped atomic.Uint64
}

func (s *session) sendJSON(payload any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("monitor send failed", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (s *session) sendBinary(data []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// writeAudio forwards queued frames until ctx ends or a write fails.
func (s *session) writeAudio(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-s.audio:
			if err := s.sendBinary(data); err != nil {
				s.logger.Debug("monitor audio send failed", zap.String("session_id", s.id), zap.Error(err))
				_ = s.conn.Close()
				return
			}
		}
	}
}

// rmsPCM16 returns the RMS of pcm scaled to [0,1].
func rmsPCM16(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	sum := 0.0
	for _, sample := range pcm {
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(pcm))) / 32768
}
