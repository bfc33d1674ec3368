package compiler

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelforge/reelforge/internal/models"
)

const (
	baseRetryDelay = 1 * time.Second
	maxRetryDelay  = 15 * time.Second
)

// resolveAssets runs phase 1: every scene's image and narration fetched
// concurrently, bounded by MaxSceneFetches. The first failure cancels the
// group; remaining in-flight resolutions are abandoned through the context.
func (c *Compiler) resolveAssets(ctx context.Context, job *models.CompilationJob, ws *Workspace) ([]models.SceneAsset, error) {
	assets := make([]models.SceneAsset, len(job.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxSceneFetches)

	for i, scene := range job.Scenes {
		g.Go(func() error {
			asset, err := c.resolveScene(gctx, scene, ws)
			if err != nil {
				return err
			}
			assets[i] = asset
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return assets, nil
}

// resolveScene obtains one scene's local image and narration audio and
// measures the narration's real duration. The effective rendered duration is
// the measured narration capped at the declared duration.
func (c *Compiler) resolveScene(ctx context.Context, scene models.SceneSpec, ws *Workspace) (models.SceneAsset, error) {
	imagePath := ws.ImagePath(scene.ID)
	if err := c.resolveImage(ctx, scene, imagePath); err != nil {
		return models.SceneAsset{}, &AssetError{SceneID: scene.ID, Kind: AssetImage, Err: err}
	}

	audioPath := ws.AudioPath(scene.ID)
	if err := c.resolveNarration(ctx, scene, audioPath); err != nil {
		return models.SceneAsset{}, &AssetError{SceneID: scene.ID, Kind: AssetNarration, Err: err}
	}

	measured, err := c.engine.AudioDuration(ctx, audioPath)
	if err != nil {
		return models.SceneAsset{}, &AssetError{SceneID: scene.ID, Kind: AssetNarration, Err: fmt.Errorf("measure duration: %w", err)}
	}
	if measured <= 0 {
		return models.SceneAsset{}, &AssetError{SceneID: scene.ID, Kind: AssetNarration, Err: fmt.Errorf("narration has zero duration")}
	}

	effective := measured
	if scene.DeclaredDuration < measured {
		effective = scene.DeclaredDuration
	}

	log.Printf("[Resolve] Scene %d ready (narration=%s, declared=%s, effective=%s)",
		scene.ID, measured.Round(time.Millisecond), scene.DeclaredDuration, effective.Round(time.Millisecond))

	return models.SceneAsset{
		SceneID:           scene.ID,
		ImagePath:         imagePath,
		AudioPath:         audioPath,
		AudioDuration:     measured,
		EffectiveDuration: effective,
	}, nil
}

func (c *Compiler) resolveImage(ctx context.Context, scene models.SceneSpec, dest string) error {
	switch {
	case scene.ImagePath != "" && isRemoteURL(scene.ImagePath):
		return c.withRetry(ctx, fmt.Sprintf("scene %d image fetch", scene.ID), func() error {
			return c.fetchImage(ctx, scene.ImagePath, dest)
		})

	case scene.ImagePath != "":
		// Local source: validated at parse time, copied into the workspace so
		// the job never touches caller-owned files again.
		return copyFile(scene.ImagePath, dest)

	default:
		return c.withRetry(ctx, fmt.Sprintf("scene %d image generation", scene.ID), func() error {
			data, err := c.images.GenerateImage(ctx, scene.ImagePrompt, scene.NegativeImagePrompt, scene.ModelID)
			if err != nil {
				return err
			}
			return os.WriteFile(dest, data, 0644)
		})
	}
}

func (c *Compiler) resolveNarration(ctx context.Context, scene models.SceneSpec, dest string) error {
	return c.withRetry(ctx, fmt.Sprintf("scene %d narration", scene.ID), func() error {
		data, err := c.narration.Synthesize(ctx, scene.Script)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("narration provider returned empty audio")
		}
		return os.WriteFile(dest, data, 0644)
	})
}

// fetchImage downloads a remote image source into the workspace.
func (c *Compiler) fetchImage(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("image fetch returned status %d", resp.StatusCode)
		if isRetryableStatus(resp.StatusCode) {
			return err
		}
		return permanent(err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}

// withRetry runs fn with bounded attempts and exponential backoff. Only
// transient failures are retried; permanent errors and context cancellation
// stop immediately.
func (c *Compiler) withRetry(ctx context.Context, label string, fn func() error) error {
	attempts := c.opts.RetryAttempts
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := retryDelay(attempt)
			log.Printf("[Resolve] %s retry %d/%d (waiting %v)...", label, attempt, attempts-1, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s cancelled: %w", label, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				log.Printf("[Resolve] %s succeeded on attempt %d", label, attempt+1)
			}
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", label, ctx.Err())
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
		log.Printf("[Resolve] %s attempt %d failed (retryable): %v", label, attempt+1, lastErr)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, attempts, lastErr)
}

// retryDelay calculates exponential backoff with jitter: base * 2^attempt + random jitter
func retryDelay(attempt int) time.Duration {
	delay := float64(baseRetryDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// Add 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// permanentError marks a failure that must not be retried (bad request,
// unreachable resource by design, unsupported format).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// isRetryableError checks if a provider or network error is worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := err.(*permanentError); ok {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "status 502") ||
		strings.Contains(errStr, "status 503") ||
		strings.Contains(errStr, "status 504")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source image: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create workspace copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy image: %w", err)
	}
	return nil
}
