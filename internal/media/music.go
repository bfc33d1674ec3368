package media

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Music library: a static niche-to-track mapping loaded once at startup
// from a YAML file and shared read-only across jobs. Absent niches (and
// absent library files) simply mean "no music".
// ---------------------------------------------------------------------------

// Library maps lowercase niche names to background track paths.
type Library struct {
	tracks map[string]string
}

type libraryFile struct {
	Tracks map[string]string `yaml:"tracks"`
}

// LoadLibrary reads a YAML file of the form:
//
//	tracks:
//	  news: assets/music/news-bed.mp3
//	  history: assets/music/history-bed.mp3
//
// A missing file yields an empty library rather than an error, so deployments
// without music assets keep working.
func LoadLibrary(path string) (*Library, error) {
	if path == "" {
		return &Library{tracks: map[string]string{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[Music] Library file %s not found, compilations get no background music", path)
			return &Library{tracks: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("failed to read music library: %w", err)
	}

	var parsed libraryFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse music library: %w", err)
	}

	tracks := make(map[string]string, len(parsed.Tracks))
	for niche, track := range parsed.Tracks {
		if strings.TrimSpace(track) == "" {
			continue
		}
		tracks[normalizeNiche(niche)] = track
	}

	log.Printf("[Music] Loaded %d background track(s) from %s", len(tracks), path)
	return &Library{tracks: tracks}, nil
}

// NewLibrary builds a library from an in-memory mapping (used by tests and
// single-track setups).
func NewLibrary(tracks map[string]string) *Library {
	normalized := make(map[string]string, len(tracks))
	for niche, track := range tracks {
		if track == "" {
			continue
		}
		normalized[normalizeNiche(niche)] = track
	}
	return &Library{tracks: normalized}
}

// TrackFor returns the background track for a niche, if one is configured.
func (l *Library) TrackFor(niche string) (string, bool) {
	track, ok := l.tracks[normalizeNiche(niche)]
	return track, ok
}

func normalizeNiche(niche string) string {
	return strings.ToLower(strings.TrimSpace(niche))
}
