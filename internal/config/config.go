package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/mixcore/config"
	"github.com/saker-ai/mixcore/internal/logger"
	"github.com/saker-ai/mixcore/pkg/audio"
	"github.com/saker-ai/mixcore/pkg/output"
)

const (
	envPrefix  = "mixcore"
	rootDirEnv = "MIXCORE_ROOT_DIR"
)

// Backend names accepted by audio.backend.
const (
	BackendOto  = "oto"
	BackendWAV  = "wav"
	BackendNull = "null"
)

// MaxChannels bounds audio.channels.
const MaxChannels = 8

// AudioConfig describes the output stream and mixer tuning.
type AudioConfig struct {
	SampleRate          int     `mapstructure:"sample_rate"`
	BufferSize          int     `mapstructure:"buffer_size"`
	Channels            int     `mapstructure:"channels"`
	Format              string  `mapstructure:"format"`
	Device              string  `mapstructure:"device"`
	Backend             string  `mapstructure:"backend"`
	Threaded            bool    `mapstructure:"threaded"`
	CaptureDir          string  `mapstructure:"capture_dir"`
	AudibilityThreshold float32 `mapstructure:"audibility_threshold"`
	ResamplerSmoothing  float32 `mapstructure:"resampler_smoothing"`
	ConvertCues         bool    `mapstructure:"convert_cues"`
}

// Spec returns the output spec requested by the config.
func (a AudioConfig) Spec() (output.Spec, error) {
	format, err := output.ParseFormat(a.Format)
	if err != nil {
		return output.Spec{}, err
	}
	return output.Spec{
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		BlockSize:  a.BufferSize,
		Format:     format,
	}, nil
}

// MonitorConfig configures the HTTP and websocket monitor.
type MonitorConfig struct {
	Enabled       bool              `mapstructure:"enabled"`
	Addr          string            `mapstructure:"addr"`
	FrameDuration int               `mapstructure:"frame_duration"`
	Opus          audio.OpusOptions `mapstructure:"opus"`
}

// Config represents a config.
type Config struct {
	RootDir  string        `mapstructure:"-"`
	Audio    AudioConfig   `mapstructure:"audio"`
	Monitor  MonitorConfig `mapstructure:"monitor"`
	CuesPath string        `mapstructure:"cues_path"`
	Log      logger.Config `mapstructure:"log"`
}

// Load reads the embedded defaults, then conf.yaml from the root dir when
// present, then MIXCORE_* environment overrides.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.SetConfigType("yaml")
	v.AddConfigPath(rootDir)

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read conf.yaml: %w", err)
		}
	}
	return finish(v, rootDir)
}

// LoadConfig is Load with an explicit config file. An empty path falls
// back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv(rootDirEnv))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, fmt.Errorf("read %s: %w", absPath, err)
	}
	return finish(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.buffer_size", 512)
	v.SetDefault("audio.channels", 2)
	v.SetDefault("audio.format", "float32")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.backend", BackendOto)
	v.SetDefault("audio.threaded", true)
	v.SetDefault("audio.capture_dir", "./data/captures")
	v.SetDefault("audio.audibility_threshold", 0.01)
	v.SetDefault("audio.resampler_smoothing", -1)
	v.SetDefault("audio.convert_cues", false)
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.addr", ":8102")
	v.SetDefault("monitor.frame_duration", 20)
	v.SetDefault("monitor.opus.bitrate", 64000)
	v.SetDefault("monitor.opus.complexity", 5)
	v.SetDefault("monitor.opus.vbr", true)
	v.SetDefault("monitor.opus.fec", false)
	v.SetDefault("monitor.opus.dtx", false)
	v.SetDefault("monitor.opus.packet_loss_perc", 0)
	v.SetDefault("monitor.opus.max_bandwidth", "auto")
	v.SetDefault("cues_path", "cues.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "mixcore.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.RootDir = rootDir
	normalize(&cfg)
	derivePaths(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	a := &cfg.Audio
	a.Backend = strings.ToLower(strings.TrimSpace(a.Backend))
	if a.BufferSize > 0 {
		a.BufferSize = audio.RoundToPack(a.BufferSize)
	}
	if a.ResamplerSmoothing < 0 {
		a.ResamplerSmoothing = audio.DefaultSmoothing
	}
	if cfg.Monitor.FrameDuration <= 0 {
		cfg.Monitor.FrameDuration = 20
	}
}

// Validate reports the first setting the engine cannot run with.
func (c Config) Validate() error {
	a := c.Audio
	if a.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("audio.buffer_size must be positive, got %d", a.BufferSize)
	}
	if a.Channels < 1 || a.Channels > MaxChannels {
		return fmt.Errorf("audio.channels must be in 1..%d, got %d", MaxChannels, a.Channels)
	}
	if _, err := output.ParseFormat(a.Format); err != nil {
		return fmt.Errorf("audio.format: %w", err)
	}
	switch a.Backend {
	case BackendOto, BackendWAV, BackendNull:
	default:
		return fmt.Errorf("audio.backend %q is not one of oto, wav, null", a.Backend)
	}
	if a.ResamplerSmoothing < 0 || a.ResamplerSmoothing >= 1 {
		return fmt.Errorf("audio.resampler_smoothing must be in [0,1), got %v", a.ResamplerSmoothing)
	}
	if err := c.Monitor.Opus.Validate(); err != nil {
		return fmt.Errorf("monitor.opus: %w", err)
	}
	return nil
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv(rootDirEnv)); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.Audio.CaptureDir = resolvePath(cfg.RootDir, cfg.Audio.CaptureDir, filepath.Join("data", "captures"))
	cfg.CuesPath = resolvePath(cfg.RootDir, cfg.CuesPath, "cues.yaml")
	if cfg.Log.File.Path != "" {
		cfg.Log.File.Path = resolvePath(cfg.RootDir, cfg.Log.File.Path, filepath.Join("data", "logs"))
	}
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
