package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/media"
	"github.com/reelforge/reelforge/internal/models"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeImages struct {
	mu       sync.Mutex
	calls    int
	failures int // fail the first N calls with a transient error
	err      error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt, _, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, fmt.Errorf("image backend timeout")
	}
	return []byte("img:" + prompt), nil
}

type fakeNarration struct {
	mu    sync.Mutex
	calls int
	err   error
	hook  func() // runs before each call
}

func (f *fakeNarration) Synthesize(_ context.Context, script string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hook != nil {
		f.hook()
	}
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("voice:" + script), nil
}

type fakeMusic map[string]string

func (f fakeMusic) TrackFor(niche string) (string, bool) {
	track, ok := f[niche]
	return track, ok
}

// fakeEngine records every call and writes placeholder output files so the
// pipeline's filesystem flow (promote, teardown) runs for real.
type fakeEngine struct {
	mu sync.Mutex

	// narration durations per scene id; sceneDefaultDur when absent
	durations map[int]time.Duration

	rendered   map[int]media.RenderRequest
	concatced  []string
	segments   []media.NarrationSegment
	musicPath  string
	attached   bool
	failRender int // scene id to fail at render, 0 = never
	failStage  string
}

const sceneDefaultDur = 10 * time.Second

func newFakeEngine() *fakeEngine {
	return &fakeEngine{rendered: make(map[int]media.RenderRequest)}
}

func sceneIDFromPath(path, pattern string) int {
	var id int
	fmt.Sscanf(filepath.Base(path), pattern, &id)
	return id
}

func (f *fakeEngine) AudioDuration(_ context.Context, path string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := sceneIDFromPath(path, "audio_%d.mp3")
	if d, ok := f.durations[id]; ok {
		return d, nil
	}
	return sceneDefaultDur, nil
}

func (f *fakeEngine) VideoDuration(_ context.Context, _ string) (time.Duration, error) {
	return 0, nil
}

func (f *fakeEngine) RenderSceneClip(_ context.Context, req media.RenderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := sceneIDFromPath(req.OutputPath, "clip_%d.mp4")
	if f.failRender != 0 && f.failRender == id {
		return fmt.Errorf("encoder exploded")
	}
	f.rendered[id] = req
	return os.WriteFile(req.OutputPath, []byte("clip"), 0644)
}

func (f *fakeEngine) BuildAudioTrack(_ context.Context, segments []media.NarrationSegment, musicPath, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStage == "mix" {
		return fmt.Errorf("mix exploded")
	}
	f.segments = append([]media.NarrationSegment(nil), segments...)
	f.musicPath = musicPath
	return os.WriteFile(outputPath, []byte("audio"), 0644)
}

func (f *fakeEngine) ConcatenateClips(_ context.Context, clipPaths []string, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStage == "stitch" {
		return fmt.Errorf("concat exploded")
	}
	f.concatced = append([]string(nil), clipPaths...)
	return os.WriteFile(outputPath, []byte("video"), 0644)
}

func (f *fakeEngine) AttachAudio(_ context.Context, _, _, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = true
	return os.WriteFile(outputPath, []byte("muxed"), 0644)
}

// ---------------------------------------------------------------------------
// Test scaffolding
// ---------------------------------------------------------------------------

func testJob(t *testing.T, niche string, durations map[string]float64) *models.CompilationJob {
	t.Helper()

	scenes := make(map[string]models.SceneInput, len(durations))
	for key, dur := range durations {
		scenes[key] = models.SceneInput{
			Script:      "Narration for scene " + key + ".",
			ImagePrompt: "scene " + key,
			Effect:      "zoom_in",
			Duration:    dur,
		}
	}

	job, err := ParseJob(uuid.New(), &models.JobInput{Niche: niche, Scenes: scenes})
	if err != nil {
		t.Fatalf("ParseJob failed: %v", err)
	}
	return job
}

func newTestCompiler(t *testing.T, engine *fakeEngine, music fakeMusic, opts Options) (*Compiler, string) {
	t.Helper()
	workDir := t.TempDir()
	opts.WorkDir = workDir
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	return New(&fakeImages{}, &fakeNarration{}, music, engine, opts), workDir
}

func assertWorkDirEmpty(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("failed to read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir should be empty after failure, found %v", names(entries))
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestCompileProducesFinalVideo(t *testing.T) {
	engine := newFakeEngine()
	engine.durations = map[int]time.Duration{
		1:  8 * time.Second,  // shorter than declared: narration wins
		2:  20 * time.Second, // longer than declared: declared caps it
		10: 5 * time.Second,
	}

	music := fakeMusic{"news": "/music/news.mp3"}
	compiler, _ := newTestCompiler(t, engine, music, Options{})

	job := testJob(t, "news", map[string]float64{"2": 15, "10": 5, "1": 10})

	var statuses []models.CompilationStatus
	compiler.opts.StatusHook = func(_ uuid.UUID, s models.CompilationStatus) {
		statuses = append(statuses, s)
	}

	finalPath, err := compiler.Compile(context.Background(), job)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if _, err := os.Stat(finalPath); err != nil {
		t.Fatalf("final video missing: %v", err)
	}

	// Workspace holds exactly the final artifact.
	entries, err := os.ReadDir(filepath.Dir(finalPath))
	if err != nil {
		t.Fatalf("failed to read workspace: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "final.mp4" {
		t.Errorf("workspace should hold exactly final.mp4, got %v", names(entries))
	}

	// Effective duration is min(measured narration, declared).
	wantDur := map[int]time.Duration{
		1:  8 * time.Second,
		2:  15 * time.Second,
		10: 5 * time.Second,
	}
	for id, want := range wantDur {
		req, ok := engine.rendered[id]
		if !ok {
			t.Fatalf("scene %d was never rendered", id)
		}
		if req.Duration != want {
			t.Errorf("scene %d rendered for %v, want %v", id, req.Duration, want)
		}
		if req.SubtitlePath == "" {
			t.Errorf("scene %d rendered without subtitles", id)
		}
	}

	// Clips concatenate in ascending scene-id order.
	if len(engine.concatced) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(engine.concatced))
	}
	for i, wantID := range []int{1, 2, 10} {
		if got := sceneIDFromPath(engine.concatced[i], "clip_%d.mp4"); got != wantID {
			t.Errorf("concat position %d has scene %d, want %d", i, got, wantID)
		}
	}

	// Narration segments follow the same order with effective durations.
	gotSegs := make([]time.Duration, len(engine.segments))
	for i, seg := range engine.segments {
		gotSegs[i] = seg.Duration
	}
	wantSegs := []time.Duration{8 * time.Second, 15 * time.Second, 5 * time.Second}
	for i := range wantSegs {
		if gotSegs[i] != wantSegs[i] {
			t.Errorf("segment %d duration = %v, want %v", i, gotSegs[i], wantSegs[i])
		}
	}

	if engine.musicPath != "/music/news.mp3" {
		t.Errorf("music path = %q, want the news track", engine.musicPath)
	}
	if !engine.attached {
		t.Error("audio was never attached to the stitched video")
	}

	wantStatuses := []models.CompilationStatus{models.CompilationStatusResolving, models.CompilationStatusRendering}
	if len(statuses) != len(wantStatuses) {
		t.Fatalf("statuses = %v", statuses)
	}
	for i := range wantStatuses {
		if statuses[i] != wantStatuses[i] {
			t.Errorf("status %d = %q, want %q", i, statuses[i], wantStatuses[i])
		}
	}
}

func TestCompileUnknownNicheGetsNoMusic(t *testing.T) {
	engine := newFakeEngine()
	compiler, _ := newTestCompiler(t, engine, fakeMusic{"news": "/music/news.mp3"}, Options{})

	job := testJob(t, "underwater-basket-weaving", map[string]float64{"1": 10})

	if _, err := compiler.Compile(context.Background(), job); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if engine.musicPath != "" {
		t.Errorf("unexpected music track %q", engine.musicPath)
	}
}

func TestCompileNarrationFailureNamesSceneAndCleansUp(t *testing.T) {
	engine := newFakeEngine()
	compiler, workDir := newTestCompiler(t, engine, fakeMusic{}, Options{})
	compiler.narration = &fakeNarration{err: fmt.Errorf("voice model rejected input")}

	job := testJob(t, "news", map[string]float64{"1": 10})

	_, err := compiler.Compile(context.Background(), job)

	var aerr *AssetError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AssetError, got %v", err)
	}
	if aerr.SceneID != 1 || aerr.Kind != AssetNarration {
		t.Errorf("error should name scene 1 narration, got %+v", aerr)
	}

	assertWorkDirEmpty(t, workDir)
}

func TestCompileRenderFailureCleansUp(t *testing.T) {
	engine := newFakeEngine()
	engine.failRender = 2
	compiler, workDir := newTestCompiler(t, engine, fakeMusic{}, Options{})

	job := testJob(t, "news", map[string]float64{"1": 10, "2": 10, "3": 10})

	_, err := compiler.Compile(context.Background(), job)

	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if rerr.SceneID != 2 || rerr.Stage != "render" {
		t.Errorf("error should name scene 2 render, got %+v", rerr)
	}

	assertWorkDirEmpty(t, workDir)
}

func TestCompileMixFailureCleansUp(t *testing.T) {
	engine := newFakeEngine()
	engine.failStage = "mix"
	compiler, workDir := newTestCompiler(t, engine, fakeMusic{}, Options{})

	job := testJob(t, "news", map[string]float64{"1": 10})

	_, err := compiler.Compile(context.Background(), job)

	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if rerr.Stage != "mix" || rerr.SceneID != 0 {
		t.Errorf("error should be a job-level mix failure, got %+v", rerr)
	}

	assertWorkDirEmpty(t, workDir)
}

func TestCompileRetriesTransientImageFailure(t *testing.T) {
	engine := newFakeEngine()
	compiler, _ := newTestCompiler(t, engine, fakeMusic{}, Options{RetryAttempts: 2})

	images := &fakeImages{failures: 1}
	compiler.images = images

	job := testJob(t, "news", map[string]float64{"1": 10})

	if _, err := compiler.Compile(context.Background(), job); err != nil {
		t.Fatalf("Compile should recover from one transient failure: %v", err)
	}
	if images.calls != 2 {
		t.Errorf("image provider called %d times, want 2", images.calls)
	}
}

func TestCompileCancellationCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine := newFakeEngine()
	compiler, workDir := newTestCompiler(t, engine, fakeMusic{}, Options{})
	compiler.narration = &fakeNarration{
		err:  context.Canceled,
		hook: cancel,
	}

	job := testJob(t, "news", map[string]float64{"1": 10})

	if _, err := compiler.Compile(ctx, job); err == nil {
		t.Fatal("Compile should fail once the context is cancelled")
	}

	assertWorkDirEmpty(t, workDir)
}

func TestCompileUsesLocalImageSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "provided.png")
	if err := os.WriteFile(src, []byte("provided-bytes"), 0644); err != nil {
		t.Fatalf("failed to write source image: %v", err)
	}

	engine := newFakeEngine()
	compiler, _ := newTestCompiler(t, engine, fakeMusic{}, Options{})

	images := &fakeImages{}
	compiler.images = images

	input := &models.JobInput{
		Niche: "news",
		Scenes: map[string]models.SceneInput{
			"1": {
				Script:    "Scene with a caller-provided image.",
				ImagePath: src,
				Effect:    "pan_left",
				Duration:  10,
			},
		},
	}
	job, err := ParseJob(uuid.New(), input)
	if err != nil {
		t.Fatalf("ParseJob failed: %v", err)
	}

	if _, err := compiler.Compile(context.Background(), job); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if images.calls != 0 {
		t.Errorf("image provider should not run for local sources, called %d times", images.calls)
	}

	// The render consumed the workspace copy, not the caller's file.
	req := engine.rendered[1]
	if req.ImagePath == src {
		t.Error("render used the caller-owned file directly")
	}
	if filepath.Base(req.ImagePath) != "image_1.png" {
		t.Errorf("render image path = %q", req.ImagePath)
	}
}
