package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/mixcore/internal/config"
	"github.com/saker-ai/mixcore/internal/cues"
	"github.com/saker-ai/mixcore/internal/group"
	apphttp "github.com/saker-ai/mixcore/internal/http"
	applogger "github.com/saker-ai/mixcore/internal/logger"
	"github.com/saker-ai/mixcore/internal/monitor"
	"github.com/saker-ai/mixcore/pkg/engine"
	"github.com/saker-ai/mixcore/pkg/output"
)

// Owner of sounds started by the host itself.
const hostOwner = "host"

const pruneInterval = 5 * time.Second

// Server owns the mixer, its output and the control API.
type Server struct {
	cfg      appconfig.Config
	logger   *zap.Logger
	backend  output.Backend
	facade   *engine.Facade
	bank     *cues.Bank
	registry *group.Manager
	monitor  *monitor.Handler
	server   *http.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads the config, opens the output and starts the mixer. The HTTP
// API is served by Run.
func New(configPath string) (*Server, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load mixcore config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("mixcore logger configured",
		zap.String("level", cfg.Log.Level),
		zap.String("encoding", cfg.Log.Encoding),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	logger.Info("mixcore config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("backend", cfg.Audio.Backend),
		zap.String("cues_path", cfg.CuesPath),
	)

	spec, err := cfg.Audio.Spec()
	if err != nil {
		return nil, err
	}
	backend := newBackend(cfg.Audio, logger)
	facade := engine.NewFacade(backend, engine.FacadeConfig{
		Spec:                spec,
		Device:              cfg.Audio.Device,
		AudibilityThreshold: cfg.Audio.AudibilityThreshold,
		Smoothing:           cfg.Audio.ResamplerSmoothing,
	}, logger.Named("mixer"))
	if err := facade.Start(); err != nil {
		return nil, err
	}

	list, err := appconfig.ReadCues(cfg.CuesPath)
	if err != nil {
		_ = facade.Stop()
		return nil, err
	}
	bank, err := cues.NewBank(list, facade.Spec().SampleRate, cfg.Audio.ConvertCues)
	if err != nil {
		_ = facade.Stop()
		return nil, err
	}
	logger.Info("cues loaded", zap.Strings("names", bank.Names()))

	registry := group.NewManager()
	var mon *monitor.Handler
	if cfg.Monitor.Enabled {
		mon = monitor.NewHandler(logger.Named("monitor"), cfg.Monitor, facade, bank, registry)
	}

	deps := apphttp.Deps{
		Mixer:    facade,
		Bank:     bank,
		Registry: registry,
		Monitor:  mon,
	}
	if cfg.Audio.Backend == appconfig.BackendWAV {
		deps.CaptureDir = cfg.Audio.CaptureDir
	}
	router := apphttp.NewRouter(deps, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		facade:   facade,
		bank:     bank,
		registry: registry,
		monitor:  mon,
		server: &http.Server{
			Addr:    cfg.Monitor.Addr,
			Handler: router,
		},
	}, nil
}

func newBackend(cfg appconfig.AudioConfig, logger *zap.Logger) output.Backend {
	switch cfg.Backend {
	case appconfig.BackendWAV:
		return output.NewWAVCapture(cfg.CaptureDir, logger.Named("wav"), output.WithRealtime(true))
	case appconfig.BackendNull:
		n := output.NewNull()
		n.Threaded = cfg.Threaded
		return n
	default:
		return output.NewOto(cfg.Threaded, logger.Named("oto"))
	}
}

// Run starts the background loops and serves HTTP until Shutdown.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if n, ok := s.backend.(*output.Null); ok {
		s.goLoop(func() { s.clock(ctx, n) })
	}
	if s.monitor != nil {
		s.goLoop(func() {
			if err := s.monitor.Run(ctx); err != nil {
				s.logger.Error("monitor stream failed", zap.Error(err))
			}
		})
	}
	s.goLoop(func() { s.prune(ctx) })
	s.autoplay()

	s.logger.Info("starting http server", zap.String("addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) goLoop(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Server) autoplay() {
	for _, name := range s.bank.Autoplay() {
		clip, opts, err := s.bank.Prepare(name, cues.Overrides{})
		if err != nil {
			s.logger.Warn("autoplay failed", zap.String("cue", name), zap.Error(err))
			continue
		}
		h := s.facade.Play(clip, opts)
		s.registry.Register(hostOwner, h)
		s.logger.Info("autoplay started", zap.String("cue", name), zap.Uint32("handle", uint32(h.ID())))
	}
}

// clock pulls blocks from a null backend at the stream's real-time rate.
func (s *Server) clock(ctx context.Context, n *output.Null) {
	spec := n.Spec()
	period := time.Duration(spec.BlockSize) * time.Second / time.Duration(spec.SampleRate)
	buf := make([]float32, spec.BlockSamples())
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !n.Pull(buf) {
				return
			}
		}
	}
}

func (s *Server) prune(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := s.registry.Prune(pruneInterval); len(ids) > 0 {
				s.logger.Debug("finished handles pruned", zap.Int("count", len(ids)))
			}
		}
	}
}

// Addr returns the HTTP listen address.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Shutdown stops the API, the monitor and the mixer, in that order.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	err := ignoreServerClosed(s.server.Shutdown(ctx))
	if s.monitor != nil {
		s.monitor.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.registry.RemoveOwner(hostOwner)
	if stopErr := s.facade.Stop(); stopErr != nil && !errors.Is(stopErr, engine.ErrNotStarted) {
		err = errors.Join(err, stopErr)
	}
	if wav, ok := s.backend.(*output.WAVCapture); ok {
		s.logger.Info("capture written", zap.String("path", wav.Path()), zap.Int("blocks", wav.Blocks()))
	}
	_ = s.logger.Sync()
	return err
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
