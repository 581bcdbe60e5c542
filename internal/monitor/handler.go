package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	appconfig "github.com/saker-ai/mixcore/internal/config"
	"github.com/saker-ai/mixcore/internal/cues"
	"github.com/saker-ai/mixcore/internal/group"
	"github.com/saker-ai/mixcore/internal/protocol"
	"github.com/saker-ai/mixcore/internal/session/fsm"
	"github.com/saker-ai/mixcore/internal/transport/monitor/codec"
	"github.com/saker-ai/mixcore/pkg/audio"
	"github.com/saker-ai/mixcore/pkg/engine"
	"github.com/saker-ai/mixcore/pkg/output"
)

// StreamRate is the sample rate of monitor audio. Opus runs at 48 kHz.
const StreamRate = 48000

const (
	writeTimeout  = 5 * time.Second
	audioQueueLen = 32
	levelInterval = 250 * time.Millisecond
)

// Mixer is the part of engine.Facade the monitor drives.
type Mixer interface {
	Play(clip engine.Clip, opts engine.PlayOptions) *engine.Handle
	Stats() engine.Stats
	Playing() []engine.ID
	AttachTap(t *engine.Tap)
	DetachTap(t *engine.Tap)
	Spec() output.Spec
}

// Handler upgrades monitor websocket connections and streams the mix to
// every listening session as opus frames.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	config   appconfig.MonitorConfig
	mixer    Mixer
	bank     *cues.Bank
	registry *group.Manager
	sessions map[string]*session
	mu       sync.Mutex

	inRate       int
	inChannels   int
	channels     int
	frameSamples int
}

// NewHandler builds a handler for mixer's negotiated output spec. Streams
// keep the mixer's channels when they are mono or stereo at 48 kHz and are
// downmixed to mono otherwise.
func NewHandler(logger *zap.Logger, cfg appconfig.MonitorConfig, mixer Mixer, bank *cues.Bank, registry *group.Manager) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20
	}
	spec := mixer.Spec()
	channels := spec.Channels
	if channels > 2 || spec.SampleRate != StreamRate {
		channels = 1
	}
	return &Handler{
		logger:       logger,
		config:       cfg,
		mixer:        mixer,
		bank:         bank,
		registry:     registry,
		sessions:     make(map[string]*session),
		inRate:       spec.SampleRate,
		inChannels:   spec.Channels,
		channels:     channels,
		frameSamples: StreamRate * cfg.FrameDuration / 1000 * channels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Channels returns the channel count of the monitor stream.
func (h *Handler) Channels() int {
	return h.channels
}

// Sessions returns the number of connected sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Handle serves one websocket connection until it closes. The mode query
// parameter selects "audio" (default) or "control".
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("monitor upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		logger:  h.logger,
		handler: h,
		state:   fsm.New(),
		audio:   make(chan []byte, audioQueueLen),
	}
	sess.state.SetMode(r.URL.Query().Get("mode"))

	sess.logger.Info("monitor session opened",
		zap.String("session_id", sess.id),
		zap.String("mode", string(sess.state.Mode())),
		zap.String("remote", r.RemoteAddr),
	)

	h.registerSession(sess)
	sess.sendJSON(protocol.Hello{
		Type:          protocol.TypeHello,
		SessionID:     sess.id,
		Mode:          string(sess.state.Mode()),
		Codec:         "opus",
		SampleRate:    StreamRate,
		Channels:      h.channels,
		FrameDuration: h.config.FrameDuration,
	})
	sess.state.OnOpen()

	go sess.writeAudio(ctx)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			sess.logger.Debug("monitor connection closed", zap.Error(err))
			break
		}
		cmd, err := decodeCommand(kind, data)
		if err != nil {
			sess.sendJSON(protocol.NewError(err.Error(), ""))
			continue
		}
		if cmd.Type != protocol.TypeHeartbeat {
			sess.logger.Debug("monitor incoming command",
				zap.String("session_id", sess.id),
				zap.String("type", cmd.Type),
			)
		}
		sess.dispatchIncoming(ctx, cmd)
	}

	sess.state.OnClose()
	h.unregisterSession(sess.id)
	sess.logger.Info("monitor session closed",
		zap.String("session_id", sess.id),
		zap.Uint64("dropped_frames", sess.dropped.Load()),
	)
}

func decodeCommand(kind int, data []byte) (protocol.ClientCommand, error) {
	var cmd protocol.ClientCommand
	if kind == websocket.BinaryMessage {
		frame, err := codec.Decode(data)
		if err != nil {
			return cmd, err
		}
		if frame.Kind != codec.PayloadKindCommand {
			return cmd, fmt.Errorf("unexpected %s frame", frame.Kind)
		}
		data = frame.Payload
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, errors.New("invalid json")
	}
	return cmd, nil
}

// Close disconnects every session. Their read loops then unregister them.
func (h *Handler) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.sessions))
	for _, sess := range h.sessions {
		conns = append(conns, sess.conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Run taps the mixer and streams until ctx is done. Audio is only encoded
// while at least one session is streaming.
func (h *Handler) Run(ctx context.Context) error {
	enc, err := audio.AcquireOpusEncoder(StreamRate, h.channels, h.config.FrameDuration, h.config.Opus)
	if err != nil {
		return err
	}
	defer audio.ReleaseOpusEncoder(enc)

	rs, err := audio.NewStreamResampler(h.inRate, StreamRate)
	if err != nil {
		return fmt.Errorf("monitor resampler: %w", err)
	}
	defer rs.Close()

	block := h.mixer.Spec().BlockSamples()
	tap := engine.NewTap(max(block*16, h.inRate*h.inChannels/4))
	h.mixer.AttachTap(tap)
	defer h.mixer.DetachTap(tap)

	h.logger.Info("monitor stream started",
		zap.Int("in_rate", h.inRate),
		zap.Int("in_channels", h.inChannels),
		zap.Int("channels", h.channels),
		zap.Int("frame_duration", h.config.FrameDuration),
	)

	p := &pump{
		handler:    h,
		enc:        enc,
		rs:         rs,
		read:       make([]float32, block*4),
		levelEvery: max(int(levelInterval/(time.Duration(h.config.FrameDuration)*time.Millisecond)), 1),
	}
	for {
		select {
		case <-ctx.Done():
			p.finish()
			h.logger.Info("monitor stream stopped", zap.Uint64("tap_drops", tap.Dropped()))
			return nil
		case <-tap.Notify():
		}
		p.drain(tap)
	}
}

type pump struct {
	handler    *Handler
	enc        *audio.OpusEncoder
	rs         *audio.StreamResampler
	read       []float32
	mono       []float32
	frames     int
	levelEvery int
	levelSum   float64
	levelN     int
}

func (p *pump) drain(tap *engine.Tap) {
	h := p.handler
	for {
		n := tap.Read(p.read)
		if n == 0 {
			return
		}
		if !h.anyStreaming() {
			continue
		}
		samples := p.read[:n]
		if h.channels != h.inChannels {
			p.mono = audio.Downmix(p.mono, samples, h.inChannels)
			samples = p.mono
		}
		if err := p.rs.Append(samples); err != nil {
			h.logger.Warn("monitor resample failed", zap.Error(err))
			continue
		}
		for {
			frame, ok := p.rs.PopFrame(h.frameSamples)
			if !ok {
				break
			}
			p.emit(frame)
			audio.ReleaseFrame(frame)
		}
	}
}

// finish sends what is left in the resampler as a final padded frame.
func (p *pump) finish() {
	if err := p.rs.Flush(); err != nil {
		p.handler.logger.Debug("monitor resampler flush failed", zap.Error(err))
	}
	frame := p.rs.PopRemainderPadded(p.handler.frameSamples)
	if frame == nil {
		return
	}
	defer audio.ReleaseFrame(frame)
	packet, err := p.enc.Encode(frame)
	if err != nil || len(packet) == 0 {
		return
	}
	if data, err := codec.AppendAudio(nil, codec.FlagFinal|codec.FlagPadded, packet); err == nil {
		p.handler.broadcastAudio(data)
	}
}

func (p *pump) emit(frame []int16) {
	h := p.handler
	p.levelSum += rmsPCM16(frame)
	p.levelN++
	p.frames++

	packet, err := p.enc.Encode(frame)
	if err != nil {
		h.logger.Warn("monitor encode failed", zap.Error(err))
		return
	}
	if len(packet) > 0 {
		data, err := codec.AppendAudio(nil, 0, packet)
		if err != nil {
			h.logger.Warn("monitor frame failed", zap.Error(err))
			return
		}
		h.broadcastAudio(data)
	}

	if p.frames%p.levelEvery == 0 {
		level := protocol.Level{Type: protocol.TypeLevel, RMS: p.levelSum / float64(p.levelN)}
		p.levelSum, p.levelN = 0, 0
		for _, sess := range h.streamingSessions() {
			sess.sendJSON(level)
		}
	}
}

func (h *Handler) registerSession(sess *session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()
}

func (h *Handler) unregisterSession(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
	if stopped := h.registry.RemoveOwner(id); len(stopped) > 0 {
		h.logger.Info("monitor session sounds stopped",
			zap.String("session_id", id),
			zap.Int("count", len(stopped)),
		)
	}
}

func (h *Handler) anyStreaming() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sess := range h.sessions {
		if sess.state.Streaming() {
			return true
		}
	}
	return false
}

func (h *Handler) streamingSessions() []*session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		if sess.state.Streaming() {
			out = append(out, sess)
		}
	}
	return out
}

func (h *Handler) broadcastAudio(data []byte) {
	for _, sess := range h.streamingSessions() {
		select {
		case sess.audio <- data:
		default:
			sess.dropped.Add(1)
		}
	}
}
