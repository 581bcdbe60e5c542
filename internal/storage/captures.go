package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CaptureInfo describes one recorded capture file.
type CaptureInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Timestamp string `json:"timestamp"`
}

const captureExt = ".wav"

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// NewCapturePath creates dir if needed and returns a fresh capture path.
func NewCapturePath(dir string) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	name := "capture_" + time.Now().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return filepath.Join(dir, name+captureExt), nil
}

// ListCaptures returns the captures in dir, newest first.
func ListCaptures(dir string) []CaptureInfo {
	list := []CaptureInfo{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return list
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), captureExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		list = append(list, CaptureInfo{
			Name:      strings.TrimSuffix(entry.Name(), captureExt),
			SizeBytes: info.Size(),
			Timestamp: info.ModTime().Format(time.RFC3339),
		})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Timestamp == list[j].Timestamp {
			return list[i].Name > list[j].Name
		}
		return list[i].Timestamp > list[j].Timestamp
	})

	return list
}

// CapturePath resolves a capture name from ListCaptures to its file.
func CapturePath(dir string, name string) (string, error) {
	if dir == "" {
		return "", errors.New("capture dir is empty")
	}
	if !safeNamePattern.MatchString(name) {
		return "", errors.New("invalid capture name")
	}
	return filepath.Join(dir, name+captureExt), nil
}

// DeleteCapture removes a capture by name.
func DeleteCapture(dir string, name string) bool {
	path, err := CapturePath(dir, name)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return os.Remove(path) == nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return errors.New("capture dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create capture dir %s: %w", dir, err)
	}
	return nil
}
