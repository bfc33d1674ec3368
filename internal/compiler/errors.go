package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Error taxonomy
//
// Every failure surfaced from a compilation names the stage and, where it
// applies, the offending scene. The worker maps these to stable error codes
// on the compilation row; callers never see partial output, only one of
// these errors or the final artifact path.
// ---------------------------------------------------------------------------

// AssetKind identifies which per-scene asset failed to resolve.
type AssetKind string

const (
	AssetImage     AssetKind = "image"
	AssetNarration AssetKind = "narration"
)

// ValidationError reports a malformed scene graph. It is raised before any
// external call or filesystem work; SceneID 0 means the job as a whole.
type ValidationError struct {
	SceneID int
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.SceneID == 0 {
		return fmt.Sprintf("invalid job: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid scene %d: %s: %s", e.SceneID, e.Field, e.Reason)
}

// AssetError reports a per-scene asset that could not be resolved after
// retry exhaustion. It aborts the whole job.
type AssetError struct {
	SceneID int
	Kind    AssetKind
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("scene %d: %s resolution failed: %v", e.SceneID, e.Kind, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

// RenderError reports a codec or compositing failure. SceneID 0 means the
// failure happened at the final mix/stitch rather than in a single scene.
type RenderError struct {
	SceneID int
	Stage   string // "render", "mix", "stitch"
	Err     error
}

func (e *RenderError) Error() string {
	if e.SceneID == 0 {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("scene %d: %s failed: %v", e.SceneID, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// WorkspaceError reports a failure creating or tearing down the job's
// temporary directory.
type WorkspaceError struct {
	Op  string // "create", "seal", "discard"
	Err error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s failed: %v", e.Op, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }
