package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Workspace is the job-scoped directory holding every intermediate artifact
// of one compilation. Layout:
//
//	<root>/               — survives a successful job with exactly final.mp4
//	<root>/scratch/       — images, narration, clips, subtitle files, mixes
//
// Release runs exactly once on any exit path. On success the scratch
// directory is removed; on failure the whole workspace goes, so nothing
// partial is ever left behind.
type Workspace struct {
	root    string
	scratch string

	releaseOnce sync.Once
	releaseErr  error
}

const finalVideoName = "final.mp4"

// NewWorkspace creates the workspace directories under baseDir, namespaced
// by the job id so concurrent jobs never share files.
func NewWorkspace(baseDir string, jobID uuid.UUID) (*Workspace, error) {
	root := filepath.Join(baseDir, jobID.String())
	scratch := filepath.Join(root, "scratch")

	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, &WorkspaceError{Op: "create", Err: err}
	}

	return &Workspace{root: root, scratch: scratch}, nil
}

// Root returns the workspace directory that outlives a successful job.
func (w *Workspace) Root() string { return w.root }

// Deterministic per-scene file names, derived from scene id.

func (w *Workspace) ImagePath(sceneID int) string {
	return filepath.Join(w.scratch, fmt.Sprintf("image_%d.png", sceneID))
}

func (w *Workspace) AudioPath(sceneID int) string {
	return filepath.Join(w.scratch, fmt.Sprintf("audio_%d.mp3", sceneID))
}

func (w *Workspace) ClipPath(sceneID int) string {
	return filepath.Join(w.scratch, fmt.Sprintf("clip_%d.mp4", sceneID))
}

func (w *Workspace) SubtitlePath(sceneID int) string {
	return filepath.Join(w.scratch, fmt.Sprintf("subs_%d.ass", sceneID))
}

// Scratch paths for the join-phase intermediates.

func (w *Workspace) AudioTrackPath() string { return filepath.Join(w.scratch, "audio_track.m4a") }
func (w *Workspace) ConcatPath() string     { return filepath.Join(w.scratch, "concat.mp4") }
func (w *Workspace) MuxPath() string        { return filepath.Join(w.scratch, "muxed.mp4") }

// FinalPath is the single artifact that survives workspace teardown.
func (w *Workspace) FinalPath() string { return filepath.Join(w.root, finalVideoName) }

// Promote moves a fully encoded video from scratch to the final path. It is
// only called after the encode succeeded, so a crash mid-pipeline never
// leaves a half-written final.mp4.
func (w *Workspace) Promote(encodedPath string) error {
	if err := os.Rename(encodedPath, w.FinalPath()); err != nil {
		return &WorkspaceError{Op: "seal", Err: err}
	}
	return nil
}

// Release tears the workspace down. keepFinal=true removes only scratch,
// leaving root with exactly the final artifact; keepFinal=false removes the
// entire workspace. Safe to call multiple times; only the first call acts.
func (w *Workspace) Release(keepFinal bool) error {
	w.releaseOnce.Do(func() {
		var err error
		if keepFinal {
			err = os.RemoveAll(w.scratch)
			if err != nil {
				err = &WorkspaceError{Op: "seal", Err: err}
			}
		} else {
			err = os.RemoveAll(w.root)
			if err != nil {
				err = &WorkspaceError{Op: "discard", Err: err}
			}
		}
		w.releaseErr = err
	})
	return w.releaseErr
}
