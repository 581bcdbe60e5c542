package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCapturePathCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "captures")
	path, err := NewCapturePath(dir)
	if err != nil {
		t.Fatalf("NewCapturePath error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("dir=%s, want %s", filepath.Dir(path), dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "capture_") || !strings.HasSuffix(path, ".wav") {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("capture dir not created: %v", err)
	}
}

func TestListAndDeleteCaptures(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewCapturePath(dir)
	second, _ := NewCapturePath(dir)
	if first == second {
		t.Fatal("two capture paths collided")
	}
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	list := ListCaptures(dir)
	if len(list) != 2 {
		t.Fatalf("len(list)=%d, want 2", len(list))
	}
	if list[0].SizeBytes != 4 {
		t.Fatalf("size=%d, want 4", list[0].SizeBytes)
	}
	if !DeleteCapture(dir, list[0].Name) {
		t.Fatal("DeleteCapture=false, want true")
	}
	if DeleteCapture(dir, "../escape") {
		t.Fatal("DeleteCapture accepted a path outside the dir")
	}
	if got := len(ListCaptures(dir)); got != 1 {
		t.Fatalf("len(list)=%d after delete, want 1", got)
	}
}
