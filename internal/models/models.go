package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums
type CompilationStatus string

const (
	CompilationStatusQueued    CompilationStatus = "queued"
	CompilationStatusResolving CompilationStatus = "resolving"
	CompilationStatusRendering CompilationStatus = "rendering"
	CompilationStatusCompleted CompilationStatus = "completed"
	CompilationStatusFailed    CompilationStatus = "failed"
)

// Effect is the closed set of motion effects a scene can request.
// Unknown values are rejected during validation, before any asset work starts.
type Effect string

const (
	EffectZoomIn   Effect = "zoom_in"   // Crop window shrinks toward center
	EffectZoomOut  Effect = "zoom_out"  // Starts tight, ends at full bounds
	EffectPanLeft  Effect = "pan_left"  // Fixed window drifts right to left
	EffectPanRight Effect = "pan_right" // Fixed window drifts left to right
	EffectPanUp    Effect = "pan_up"    // Fixed window drifts bottom to top
	EffectPanDown  Effect = "pan_down"  // Fixed window drifts top to bottom
)

// allEffects lists every valid effect for validation and error messages.
var allEffects = []Effect{
	EffectZoomIn,
	EffectZoomOut,
	EffectPanLeft,
	EffectPanRight,
	EffectPanUp,
	EffectPanDown,
}

// ParseEffect validates a raw effect name against the closed enum.
func ParseEffect(raw string) (Effect, error) {
	for _, e := range allEffects {
		if raw == string(e) {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown effect %q (valid: %v)", raw, allEffects)
}

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ---------------------------------------------------------------------------
// Wire format — the scene graph as submitted by callers (or produced by the
// planner). Scene keys are string-encoded integers; ordering is by numeric id.
// ---------------------------------------------------------------------------

type JobInput struct {
	Niche  string                `json:"niche"`
	Scenes map[string]SceneInput `json:"scenes"`
}

type SceneInput struct {
	Script              string  `json:"script"`
	ImagePrompt         string  `json:"imagePrompt,omitempty"`
	NegativeImagePrompt string  `json:"negativeImagePrompt,omitempty"`
	ModelID             string  `json:"modelId,omitempty"`
	ImagePath           string  `json:"imagePath,omitempty"` // Local path or http(s) URL
	Effect              string  `json:"effect"`
	Duration            float64 `json:"duration"` // Seconds, pacing ceiling
}

// ---------------------------------------------------------------------------
// Validated domain types
// ---------------------------------------------------------------------------

// SceneSpec is one validated scene. Immutable after parsing; DeclaredDuration
// is a hard pacing ceiling — the rendered length is the narration length
// capped at this value.
type SceneSpec struct {
	ID                  int
	Script              string
	ImagePrompt         string
	NegativeImagePrompt string
	ModelID             string
	ImagePath           string
	Effect              Effect
	DeclaredDuration    time.Duration
}

// CompilationJob is a validated job: scenes sorted ascending by id, which is
// the sole stitch ordering key.
type CompilationJob struct {
	ID     uuid.UUID
	Niche  string
	Scenes []SceneSpec
}

// SceneAsset holds the resolved local files for one scene, owned by the job
// workspace. EffectiveDuration = min(measured narration, declared duration).
type SceneAsset struct {
	SceneID           int
	ImagePath         string
	AudioPath         string
	AudioDuration     time.Duration
	EffectiveDuration time.Duration
}

// ---------------------------------------------------------------------------
// Persistence model
// ---------------------------------------------------------------------------

type Compilation struct {
	ID             uuid.UUID         `json:"id"`
	Niche          string            `json:"niche"`
	SceneCount     int               `json:"scene_count"`
	Status         CompilationStatus `json:"status"`
	Spec           JSONB             `json:"spec,omitempty"`
	FinalVideoPath *string           `json:"final_video_path,omitempty"`
	DurationMs     *int              `json:"duration_ms,omitempty"` // Measured from the final artifact
	ErrorCode      *string           `json:"error_code,omitempty"`
	ErrorMessage   *string           `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// API DTOs
// ---------------------------------------------------------------------------

// CreateCompilationRequest accepts either a ready scene graph (Niche+Scenes)
// or an Article to be planned into one by the LLM planner.
type CreateCompilationRequest struct {
	Niche   string                `json:"niche"`
	Scenes  map[string]SceneInput `json:"scenes,omitempty"`
	Article string                `json:"article,omitempty"`
}

type CreateCompilationResponse struct {
	CompilationID uuid.UUID         `json:"compilation_id"`
	Status        CompilationStatus `json:"status"`
	SceneCount    int               `json:"scene_count"`
}

type CompilationResponse struct {
	Compilation
	DownloadURL *string `json:"download_url,omitempty"`
}

type ListCompilationsResponse struct {
	Compilations []Compilation `json:"compilations"`
	Total        int           `json:"total"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}
