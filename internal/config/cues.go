package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CueManifest is the on-disk list of playable cues.
type CueManifest struct {
	Cues []Cue `yaml:"cues"`
}

// CuePoint is a world-space location in a cue.
type CuePoint struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
	Z float32 `yaml:"z" json:"z"`
}

// Cue is a sound the host can play by name. A cue with File is decoded
// from disk; otherwise a tone is synthesised.
type Cue struct {
	Name        string    `yaml:"name" json:"name"`
	File        string    `yaml:"file" json:"file,omitempty"`
	ToneHz      float64   `yaml:"tone_hz" json:"tone_hz"`
	DurationMs  int       `yaml:"duration_ms" json:"duration_ms"`
	SampleRate  int       `yaml:"sample_rate" json:"sample_rate,omitempty"`
	Gain        float32   `yaml:"gain" json:"gain"`
	Loop        bool      `yaml:"loop" json:"loop"`
	Pan         *float32  `yaml:"pan" json:"pan,omitempty"`
	Position    *CuePoint `yaml:"position" json:"position,omitempty"`
	RefDistance float32   `yaml:"ref_distance" json:"ref_distance,omitempty"`
	MaxDistance float32   `yaml:"max_distance" json:"max_distance,omitempty"`
	FadeInMs    int       `yaml:"fade_in_ms" json:"fade_in_ms,omitempty"`
	Autoplay    bool      `yaml:"autoplay" json:"autoplay"`
}

const (
	defaultToneHz     = 440
	defaultDurationMs = 1000
)

// ReadCues loads the cue manifest at path. A missing file yields no cues.
// Entries without a name are skipped and later duplicates dropped.
func ReadCues(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cues: %w", err)
	}
	cues, err := ParseCues(data)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range cues {
		if cues[i].File != "" && !filepath.IsAbs(cues[i].File) {
			cues[i].File = filepath.Join(dir, cues[i].File)
		}
	}
	return cues, nil
}

// ParseCues decodes a YAML cue manifest.
func ParseCues(data []byte) ([]Cue, error) {
	var manifest CueManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse cues: %w", err)
	}

	seen := make(map[string]struct{}, len(manifest.Cues))
	cues := make([]Cue, 0, len(manifest.Cues))
	for _, cue := range manifest.Cues {
		cue.Name = strings.TrimSpace(cue.Name)
		if cue.Name == "" {
			continue
		}
		if _, ok := seen[cue.Name]; ok {
			continue
		}
		seen[cue.Name] = struct{}{}
		cue.File = strings.TrimSpace(cue.File)

		if cue.ToneHz <= 0 {
			cue.ToneHz = defaultToneHz
		}
		if cue.DurationMs <= 0 {
			cue.DurationMs = defaultDurationMs
		}
		if cue.Gain <= 0 {
			cue.Gain = 1
		}
		if cue.Position != nil && cue.MaxDistance <= 0 {
			cue.MaxDistance = 100
		}
		if cue.Position != nil && cue.RefDistance <= 0 {
			cue.RefDistance = 1
		}
		cues = append(cues, cue)
	}
	return cues, nil
}
