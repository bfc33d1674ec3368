package compiler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Collaborator interfaces — the pipeline consumes external providers only
// through these. Concrete implementations live in internal/services and
// internal/media; tests swap in fakes.
// ---------------------------------------------------------------------------

// ImageProvider turns an image prompt into image bytes. May fail transiently.
type ImageProvider interface {
	GenerateImage(ctx context.Context, prompt, negativePrompt, modelID string) ([]byte, error)
}

// NarrationProvider synthesizes speech audio for a scene's script.
type NarrationProvider interface {
	Synthesize(ctx context.Context, script string) ([]byte, error)
}

// MusicLibrary is the static niche → background-track lookup. A missing
// niche means "no music"; the library is read-only shared data across jobs.
type MusicLibrary interface {
	TrackFor(niche string) (string, bool)
}

// MediaEngine is the codec/compositing toolchain boundary. The production
// implementation shells out to ffmpeg; tests fake it.
type MediaEngine interface {
	AudioDuration(ctx context.Context, path string) (time.Duration, error)
	VideoDuration(ctx context.Context, path string) (time.Duration, error)
	RenderSceneClip(ctx context.Context, req media.RenderRequest) error
	BuildAudioTrack(ctx context.Context, segments []media.NarrationSegment, musicPath, outputPath string) error
	ConcatenateClips(ctx context.Context, clipPaths []string, outputPath string) error
	AttachAudio(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Options tunes one Compiler instance. Zero values are replaced by defaults.
type Options struct {
	// WorkDir is the parent directory for per-job workspaces.
	WorkDir string

	// MaxSceneFetches bounds concurrent asset resolutions per job.
	MaxSceneFetches int

	// MaxSceneRenders bounds concurrent per-scene renders per job.
	MaxSceneRenders int

	// RetryAttempts bounds provider retries for transient failures.
	RetryAttempts int

	// StatusHook, when set, observes phase transitions (resolving, rendering).
	StatusHook func(jobID uuid.UUID, status models.CompilationStatus)
}

// Compiler drives one validated CompilationJob through asset resolution,
// per-scene rendering, audio mixing, and the final stitch, guaranteeing the
// workspace is torn down on every exit path.
type Compiler struct {
	images     ImageProvider
	narration  NarrationProvider
	music      MusicLibrary
	engine     MediaEngine
	httpClient *http.Client
	opts       Options
}

func New(images ImageProvider, narration NarrationProvider, music MusicLibrary, engine MediaEngine, opts Options) *Compiler {
	if opts.WorkDir == "" {
		opts.WorkDir = "/tmp/reelforge"
	}
	if opts.MaxSceneFetches <= 0 {
		opts.MaxSceneFetches = 4
	}
	if opts.MaxSceneRenders <= 0 {
		opts.MaxSceneRenders = 2
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}

	return &Compiler{
		images:     images,
		narration:  narration,
		music:      music,
		engine:     engine,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		opts:       opts,
	}
}

// Compile runs the full pipeline for one job and returns the final video
// path. On any error (including cancellation) the workspace is removed and
// nothing is left on disk; on success the workspace holds exactly final.mp4.
func (c *Compiler) Compile(ctx context.Context, job *models.CompilationJob) (string, error) {
	ws, err := NewWorkspace(c.opts.WorkDir, job.ID)
	if err != nil {
		return "", err
	}

	succeeded := false
	defer func() {
		if relErr := ws.Release(succeeded); relErr != nil {
			log.Printf("[Compile] Job %s: workspace teardown: %v", job.ID, relErr)
		}
	}()

	c.notify(job, models.CompilationStatusResolving)

	// Phase 1: per-scene assets, bounded fan-out.
	assets, err := c.resolveAssets(ctx, job, ws)
	if err != nil {
		return "", err
	}

	c.notify(job, models.CompilationStatusRendering)

	// Phase 2: per-scene clips, bounded fan-out. Each scene touches only its
	// own files, so renders are independent.
	clips, err := c.renderScenes(ctx, job, assets, ws)
	if err != nil {
		return "", err
	}

	// Join point: the mix and stitch are strictly sequential and need every
	// scene's output.
	if err := c.mixAudio(ctx, job, assets, ws); err != nil {
		return "", err
	}

	if err := c.stitch(ctx, clips, ws); err != nil {
		return "", err
	}

	succeeded = true
	log.Printf("[Compile] Job %s: final video at %s", job.ID, ws.FinalPath())
	return ws.FinalPath(), nil
}

// renderScenes produces one silent clip per scene, subtitles burned in,
// returning clip paths in ascending scene-id order (job.Scenes order).
func (c *Compiler) renderScenes(ctx context.Context, job *models.CompilationJob, assets []models.SceneAsset, ws *Workspace) ([]string, error) {
	clips := make([]string, len(job.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxSceneRenders)

	for i, scene := range job.Scenes {
		asset := assets[i]
		g.Go(func() error {
			subtitlePath := ws.SubtitlePath(scene.ID)
			if err := media.WriteSubtitles(scene.Script, asset.EffectiveDuration, subtitlePath); err != nil {
				return &RenderError{SceneID: scene.ID, Stage: "render", Err: fmt.Errorf("subtitles: %w", err)}
			}

			clipPath := ws.ClipPath(scene.ID)
			req := media.RenderRequest{
				ImagePath:    asset.ImagePath,
				OutputPath:   clipPath,
				SubtitlePath: subtitlePath,
				Effect:       scene.Effect,
				Duration:     asset.EffectiveDuration,
			}
			if err := c.engine.RenderSceneClip(gctx, req); err != nil {
				return &RenderError{SceneID: scene.ID, Stage: "render", Err: err}
			}

			clips[i] = clipPath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// mixAudio concatenates narration in stitch order and, when the niche has a
// background track, mixes it underneath at a fixed attenuation.
func (c *Compiler) mixAudio(ctx context.Context, job *models.CompilationJob, assets []models.SceneAsset, ws *Workspace) error {
	segments := make([]media.NarrationSegment, len(assets))
	for i, asset := range assets {
		segments[i] = media.NarrationSegment{
			Path:     asset.AudioPath,
			Duration: asset.EffectiveDuration,
		}
	}

	musicPath := ""
	if track, ok := c.music.TrackFor(job.Niche); ok {
		musicPath = track
		log.Printf("[Compile] Job %s: niche %q gets background track %s", job.ID, job.Niche, track)
	}

	if err := c.engine.BuildAudioTrack(ctx, segments, musicPath, ws.AudioTrackPath()); err != nil {
		return &RenderError{Stage: "mix", Err: err}
	}
	return nil
}

// stitch concatenates the clips, attaches the mixed audio, and promotes the
// encoded result to the final path only after the encode succeeded.
func (c *Compiler) stitch(ctx context.Context, clips []string, ws *Workspace) error {
	if err := c.engine.ConcatenateClips(ctx, clips, ws.ConcatPath()); err != nil {
		return &RenderError{Stage: "stitch", Err: err}
	}

	if err := c.engine.AttachAudio(ctx, ws.ConcatPath(), ws.AudioTrackPath(), ws.MuxPath()); err != nil {
		return &RenderError{Stage: "stitch", Err: err}
	}

	return ws.Promote(ws.MuxPath())
}

func (c *Compiler) notify(job *models.CompilationJob, status models.CompilationStatus) {
	if c.opts.StatusHook != nil {
		c.opts.StatusHook(job.ID, status)
	}
}
