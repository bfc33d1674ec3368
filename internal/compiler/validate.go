package compiler

import (
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reelforge/reelforge/internal/models"
)

// ParseJob validates a raw scene graph and returns a CompilationJob with
// scenes sorted ascending by numeric id. It has no side effects and makes no
// external calls: every rule here fails the job before any provider is hit.
func ParseJob(id uuid.UUID, input *models.JobInput) (*models.CompilationJob, error) {
	if len(input.Scenes) == 0 {
		return nil, &ValidationError{Field: "scenes", Reason: "must not be empty"}
	}

	scenes := make([]models.SceneSpec, 0, len(input.Scenes))
	seen := make(map[int]string, len(input.Scenes))

	for key, raw := range input.Scenes {
		sceneID, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || sceneID <= 0 {
			return nil, &ValidationError{Field: "scenes", Reason: "scene key " + strconv.Quote(key) + " is not a positive integer"}
		}

		// Keys are unique as map entries, but "01" and "1" parse to the same id.
		if prev, dup := seen[sceneID]; dup {
			return nil, &ValidationError{
				SceneID: sceneID,
				Field:   "id",
				Reason:  "duplicate scene id (keys " + strconv.Quote(prev) + " and " + strconv.Quote(key) + ")",
			}
		}
		seen[sceneID] = key

		spec, err := parseScene(sceneID, raw)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, spec)
	}

	// Ids need not be contiguous; ascending id is the sole stitch order.
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].ID < scenes[j].ID })

	return &models.CompilationJob{
		ID:     id,
		Niche:  strings.TrimSpace(input.Niche),
		Scenes: scenes,
	}, nil
}

func parseScene(sceneID int, raw models.SceneInput) (models.SceneSpec, error) {
	if strings.TrimSpace(raw.Script) == "" {
		return models.SceneSpec{}, &ValidationError{SceneID: sceneID, Field: "script", Reason: "must not be empty"}
	}

	if raw.ImagePrompt == "" && raw.ImagePath == "" {
		return models.SceneSpec{}, &ValidationError{SceneID: sceneID, Field: "imagePrompt", Reason: "scene needs an image source (imagePrompt or imagePath)"}
	}

	if raw.ImagePath != "" {
		if err := checkImageSource(raw.ImagePath); err != nil {
			return models.SceneSpec{}, &ValidationError{SceneID: sceneID, Field: "imagePath", Reason: err.Error()}
		}
	}

	if raw.Duration <= 0 {
		return models.SceneSpec{}, &ValidationError{SceneID: sceneID, Field: "duration", Reason: "must be > 0 seconds"}
	}

	effect, err := models.ParseEffect(raw.Effect)
	if err != nil {
		return models.SceneSpec{}, &ValidationError{SceneID: sceneID, Field: "effect", Reason: err.Error()}
	}

	return models.SceneSpec{
		ID:                  sceneID,
		Script:              strings.TrimSpace(raw.Script),
		ImagePrompt:         raw.ImagePrompt,
		NegativeImagePrompt: raw.NegativeImagePrompt,
		ModelID:             raw.ModelID,
		ImagePath:           raw.ImagePath,
		Effect:              effect,
		DeclaredDuration:    time.Duration(raw.Duration * float64(time.Second)),
	}, nil
}

// checkImageSource accepts an existing local file or a well-formed http(s) URL.
func checkImageSource(path string) error {
	if isRemoteURL(path) {
		u, err := url.Parse(path)
		if err != nil || u.Host == "" {
			return &urlError{path}
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return &missingFileError{path}
	}
	if info.IsDir() {
		return &missingFileError{path}
	}
	return nil
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

type urlError struct{ url string }

func (e *urlError) Error() string { return "malformed URL " + strconv.Quote(e.url) }

type missingFileError struct{ path string }

func (e *missingFileError) Error() string { return "local file " + strconv.Quote(e.path) + " does not exist" }
