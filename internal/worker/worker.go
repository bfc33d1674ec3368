package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/compiler"
	"github.com/reelforge/reelforge/internal/db"
	"github.com/reelforge/reelforge/internal/models"
	"github.com/reelforge/reelforge/internal/queue"
	"github.com/reelforge/reelforge/internal/storage"
)

type Worker struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage
	compiler  *compiler.Compiler
	engine    compiler.MediaEngine
	uploadSem chan struct{} // Limits concurrent Supabase uploads to prevent congestion
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	comp *compiler.Compiler,
	engine compiler.MediaEngine,
) *Worker {
	return &Worker{
		db:        database,
		queue:     q,
		storage:   stor,
		compiler:  comp,
		engine:    engine,
		uploadSem: make(chan struct{}, 2),
	}
}

// Start begins processing compile jobs. Each of the concurrency goroutines
// runs one compilation at a time end to end.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx)
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error dequeuing: %v", err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing compile job %s (compilation: %s)", job.ID, job.CompilationID)

			if err := w.handleCompile(ctx, job); err != nil {
				log.Printf("Compilation %s failed: %v", job.CompilationID, err)
			} else {
				log.Printf("Compilation %s completed successfully", job.CompilationID)
			}
		}
	}
}

// handleCompile runs one compilation end to end: re-parse the stored scene
// graph, compile, publish the artifact, record the outcome.
func (w *Worker) handleCompile(ctx context.Context, qjob *queue.CompileJob) error {
	compilation, err := w.db.GetCompilation(ctx, qjob.CompilationID)
	if err != nil {
		return fmt.Errorf("failed to load compilation: %w", err)
	}

	input, err := sceneGraphFromSpec(compilation.Spec)
	if err != nil {
		w.db.MarkCompilationFailed(ctx, compilation.ID, "invalid_scene_graph", err.Error())
		return fmt.Errorf("failed to decode stored scene graph: %w", err)
	}

	// The graph was validated at submission; this re-parse guards against
	// rows written by older builds.
	job, err := compiler.ParseJob(compilation.ID, input)
	if err != nil {
		w.db.MarkCompilationFailed(ctx, compilation.ID, errorCode(err), err.Error())
		return fmt.Errorf("stored scene graph invalid: %w", err)
	}

	finalPath, err := w.compiler.Compile(ctx, job)
	if err != nil {
		w.db.MarkCompilationFailed(ctx, compilation.ID, errorCode(err), err.Error())
		return err
	}

	return w.publish(ctx, compilation.ID, finalPath)
}

// publish uploads the final video and marks the row completed. The local
// workspace is removed afterwards either way: on upload failure the row
// records the failure and a retry recompiles from the stored spec.
func (w *Worker) publish(ctx context.Context, compilationID uuid.UUID, finalPath string) error {
	defer os.RemoveAll(filepath.Dir(finalPath))

	durationMs := 0
	if dur, err := w.engine.VideoDuration(ctx, finalPath); err != nil {
		log.Printf("[Publish] Compilation %s: could not measure final duration: %v", compilationID, err)
	} else {
		durationMs = int(dur / time.Millisecond)
	}

	storagePath := storage.VideoStoragePath(compilationID)
	err := w.uploadWithLimit(ctx, fmt.Sprintf("compilation %s", compilationID), func() error {
		return w.storage.UploadFile(ctx, storagePath, finalPath, "video/mp4")
	})
	if err != nil {
		w.db.MarkCompilationFailed(ctx, compilationID, "publish_failed", err.Error())
		return fmt.Errorf("failed to publish video: %w", err)
	}

	if err := w.db.MarkCompilationCompleted(ctx, compilationID, storagePath, durationMs); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	log.Printf("[Publish] Compilation %s published to %s (%dms)", compilationID, storagePath, durationMs)
	return nil
}

func sceneGraphFromSpec(spec models.JSONB) (*models.JobInput, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}

	var input models.JobInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	if len(input.Scenes) == 0 {
		return nil, fmt.Errorf("stored spec has no scenes")
	}
	return &input, nil
}

// uploadWithLimit wraps an upload call with a semaphore so concurrent jobs
// don't saturate the storage backend.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// errorCode maps a pipeline error to the stable code stored on the row.
func errorCode(err error) string {
	var verr *compiler.ValidationError
	if errors.As(err, &verr) {
		return "invalid_scene_graph"
	}

	var aerr *compiler.AssetError
	if errors.As(err, &aerr) {
		switch aerr.Kind {
		case compiler.AssetImage:
			return "image_resolution_failed"
		case compiler.AssetNarration:
			return "narration_failed"
		}
		return "asset_resolution_failed"
	}

	var rerr *compiler.RenderError
	if errors.As(err, &rerr) {
		switch rerr.Stage {
		case "mix":
			return "mix_failed"
		case "stitch":
			return "stitch_failed"
		}
		return "render_failed"
	}

	var werr *compiler.WorkspaceError
	if errors.As(err, &werr) {
		return "workspace_failed"
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}

	return "internal_error"
}
