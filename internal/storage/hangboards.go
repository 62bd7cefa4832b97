package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meltforce/hangtime/internal/models"
)

// CreateHangboard inserts a board and its holds.
func (db *DB) CreateHangboard(ctx context.Context, b *models.Hangboard) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO hangboards (id, user_id, name, image_url, width, height, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.UserID, b.Name, b.ImageURL, b.Width, b.Height, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting hangboard: %w", err)
	}

	rows := make([][]any, 0, len(b.Holds))
	for i := range b.Holds {
		h := &b.Holds[i]
		if h.ID == uuid.Nil {
			h.ID = uuid.New()
		}
		rows = append(rows, []any{h.ID, b.ID, h.Index, h.FingerCount, h.DepthMM, h.X, h.Y})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"holds"},
			[]string{"id", "hangboard_id", "idx", "finger_count", "depth_mm", "x", "y"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("inserting holds: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing hangboard: %w", err)
	}
	return nil
}

// ListHangboards returns the user's boards without their holds.
func (db *DB) ListHangboards(ctx context.Context, userID int) ([]models.Hangboard, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, image_url, width, height, created_at
		 FROM hangboards
		 WHERE user_id = $1
		 ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying hangboards: %w", err)
	}
	defer rows.Close()

	var result []models.Hangboard
	for rows.Next() {
		var b models.Hangboard
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.ImageURL, &b.Width, &b.Height, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning hangboard: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// GetHangboard retrieves a board with its holds ordered by index.
func (db *DB) GetHangboard(ctx context.Context, id uuid.UUID, userID int) (*models.Hangboard, error) {
	var b models.Hangboard
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, image_url, width, height, created_at
		 FROM hangboards
		 WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&b.ID, &b.UserID, &b.Name, &b.ImageURL, &b.Width, &b.Height, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying hangboard: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, idx, finger_count, depth_mm, x, y
		 FROM holds
		 WHERE hangboard_id = $1
		 ORDER BY idx`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying holds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.Hold
		if err := rows.Scan(&h.ID, &h.Index, &h.FingerCount, &h.DepthMM, &h.X, &h.Y); err != nil {
			return nil, fmt.Errorf("scanning hold: %w", err)
		}
		b.Holds = append(b.Holds, h)
	}
	return &b, rows.Err()
}
