package media

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadLibrary(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "music.yaml")

	yaml := `tracks:
  news: assets/music/news-bed.mp3
  History: assets/music/history-bed.mp3
  tech: ""
`
	if err := os.WriteFile(libPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write library file: %v", err)
	}

	lib, err := LoadLibrary(libPath)
	if err != nil {
		t.Fatalf("LoadLibrary failed: %v", err)
	}

	if track, ok := lib.TrackFor("news"); !ok || track != "assets/music/news-bed.mp3" {
		t.Errorf("news lookup failed: %q, %v", track, ok)
	}

	// Lookup is case-insensitive on both sides.
	if _, ok := lib.TrackFor("history"); !ok {
		t.Error("History entry should match lowercase lookup")
	}
	if _, ok := lib.TrackFor("NEWS"); !ok {
		t.Error("uppercase lookup should match")
	}

	// Empty track values mean "no music" for that niche.
	if _, ok := lib.TrackFor("tech"); ok {
		t.Error("tech has an empty track and should report no music")
	}
	if _, ok := lib.TrackFor("gaming"); ok {
		t.Error("absent niche should report no music")
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	lib, err := LoadLibrary(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing library file should not error: %v", err)
	}
	if _, ok := lib.TrackFor("news"); ok {
		t.Error("empty library should have no tracks")
	}
}

func TestLoadLibraryMalformed(t *testing.T) {
	libPath := filepath.Join(t.TempDir(), "music.yaml")
	if err := os.WriteFile(libPath, []byte("tracks: [not: a: map"), 0644); err != nil {
		t.Fatalf("failed to write library file: %v", err)
	}

	if _, err := LoadLibrary(libPath); err == nil {
		t.Error("malformed YAML should error")
	}
}

func TestNewLibrary(t *testing.T) {
	lib := NewLibrary(map[string]string{"News ": "bed.mp3", "tech": ""})

	if track, ok := lib.TrackFor(" news"); !ok || track != "bed.mp3" {
		t.Errorf("normalized lookup failed: %q, %v", track, ok)
	}
	if _, ok := lib.TrackFor("tech"); ok {
		t.Error("empty track should be dropped")
	}
}
