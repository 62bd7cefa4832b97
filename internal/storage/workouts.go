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

// CreateWorkout inserts a workout with its sets and set holds in one
// transaction. Missing ids are generated and written back to w.
func (db *DB) CreateWorkout(ctx context.Context, w *models.Workout) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO workouts (id, user_id, name, description, hangboard_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.UserID, w.Name, w.Description, w.HangboardID, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting workout: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range w.Sets {
		s := &w.Sets[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.Position = i
		batch.Queue(
			`INSERT INTO sets (id, workout_id, position, hang_time, rest_time, rest_before_next_set,
			 reps, instructions, instruction_audio_url, weight, left_grip, right_grip)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			s.ID, w.ID, s.Position, s.HangTime, s.RestTime, s.RestBeforeNextSet,
			s.Reps, s.Instructions, s.InstructionAudioURL, s.Weight, string(s.LeftGrip), string(s.RightGrip))
		for _, h := range s.Holds {
			batch.Queue(
				`INSERT INTO set_holds (set_id, hold_id, hand) VALUES ($1, $2, $3)`,
				s.ID, h.HoldID, string(h.Hand))
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting sets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing workout: %w", err)
	}
	return nil
}

// ListWorkouts returns the user's workouts, newest first.
func (db *DB) ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT w.id, w.name, w.description, COUNT(s.id), w.created_at
		 FROM workouts w
		 LEFT JOIN sets s ON s.workout_id = w.id
		 WHERE w.user_id = $1
		 GROUP BY w.id
		 ORDER BY w.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutSummary
	for rows.Next() {
		var w models.WorkoutSummary
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.SetCount, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// GetWorkout retrieves a workout with its sets in order.
func (db *DB) GetWorkout(ctx context.Context, workoutID uuid.UUID, userID int) (*models.Workout, error) {
	var w models.Workout
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, description, hangboard_id, created_at
		 FROM workouts
		 WHERE id = $1 AND user_id = $2`,
		workoutID, userID).Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.HangboardID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying workout: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, position, hang_time, rest_time, rest_before_next_set, reps,
		 instructions, instruction_audio_url, weight, left_grip, right_grip
		 FROM sets
		 WHERE workout_id = $1
		 ORDER BY position ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer rows.Close()

	byID := map[uuid.UUID]int{}
	for rows.Next() {
		var s models.Set
		var left, right string
		if err := rows.Scan(&s.ID, &s.Position, &s.HangTime, &s.RestTime, &s.RestBeforeNextSet, &s.Reps,
			&s.Instructions, &s.InstructionAudioURL, &s.Weight, &left, &right); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		s.LeftGrip, s.RightGrip = models.GripType(left), models.GripType(right)
		byID[s.ID] = len(w.Sets)
		w.Sets = append(w.Sets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	holdRows, err := db.Pool.Query(ctx,
		`SELECT sh.set_id, sh.hold_id, sh.hand
		 FROM set_holds sh
		 JOIN sets s ON s.id = sh.set_id
		 WHERE s.workout_id = $1
		 ORDER BY s.position, sh.hand`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying set holds: %w", err)
	}
	defer holdRows.Close()

	for holdRows.Next() {
		var setID uuid.UUID
		var h models.SetHold
		var hand string
		if err := holdRows.Scan(&setID, &h.HoldID, &hand); err != nil {
			return nil, fmt.Errorf("scanning set hold: %w", err)
		}
		h.Hand = models.Hand(hand)
		if i, ok := byID[setID]; ok {
			w.Sets[i].Holds = append(w.Sets[i].Holds, h)
		}
	}
	return &w, holdRows.Err()
}
