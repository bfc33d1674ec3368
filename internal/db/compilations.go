package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelforge/reelforge/internal/models"
)

const compilationColumns = `
	id, niche, scene_count, status, spec,
	final_video_path, duration_ms, error_code, error_message,
	created_at, updated_at
`

func (db *DB) CreateCompilation(ctx context.Context, c *models.Compilation) error {
	query := `
		INSERT INTO compilations (
			id, niche, scene_count, status, spec
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		c.ID, c.Niche, c.SceneCount, c.Status, c.Spec,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (db *DB) GetCompilation(ctx context.Context, id uuid.UUID) (*models.Compilation, error) {
	query := `SELECT ` + compilationColumns + ` FROM compilations WHERE id = $1`

	c := &models.Compilation{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Niche, &c.SceneCount, &c.Status, &c.Spec,
		&c.FinalVideoPath, &c.DurationMs, &c.ErrorCode, &c.ErrorMessage,
		&c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("compilation not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compilation: %w", err)
	}

	return c, nil
}

func (db *DB) ListCompilations(ctx context.Context, limit, offset int) ([]models.Compilation, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compilations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count compilations: %w", err)
	}

	query := `
		SELECT ` + compilationColumns + `
		FROM compilations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query compilations: %w", err)
	}
	defer rows.Close()

	var compilations []models.Compilation
	for rows.Next() {
		var c models.Compilation
		err := rows.Scan(
			&c.ID, &c.Niche, &c.SceneCount, &c.Status, &c.Spec,
			&c.FinalVideoPath, &c.DurationMs, &c.ErrorCode, &c.ErrorMessage,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan compilation: %w", err)
		}
		compilations = append(compilations, c)
	}

	return compilations, total, nil
}

func (db *DB) UpdateCompilationStatus(ctx context.Context, id uuid.UUID, status models.CompilationStatus) error {
	query := `UPDATE compilations SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, status, time.Now(), id)
	return err
}

// MarkCompilationFailed records the failure with its stable error code and
// the human-readable message.
func (db *DB) MarkCompilationFailed(ctx context.Context, id uuid.UUID, errorCode, errorMessage string) error {
	query := `
		UPDATE compilations
		SET status = $1, error_code = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.CompilationStatusFailed, errorCode, errorMessage, time.Now(), id)
	return err
}

// MarkCompilationCompleted records the published video location and its
// measured duration.
func (db *DB) MarkCompilationCompleted(ctx context.Context, id uuid.UUID, finalVideoPath string, durationMs int) error {
	query := `
		UPDATE compilations
		SET status = $1, final_video_path = $2, duration_ms = $3,
		    error_code = NULL, error_message = NULL, updated_at = $4
		WHERE id = $5
	`
	_, err := db.ExecContext(ctx, query, models.CompilationStatusCompleted, finalVideoPath, durationMs, time.Now(), id)
	return err
}

func (db *DB) DeleteCompilation(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM compilations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete compilation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("compilation not found")
	}
	return nil
}
