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

// CreateSession stores a new session with its initial reps and returns the
// generated session id. The workout must belong to the user.
func (db *DB) CreateSession(ctx context.Context, userID int, s models.Session) (string, error) {
	id := uuid.New()
	if s.DateCompleted.IsZero() {
		s.DateCompleted = time.Now().UTC()
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO sessions (id, user_id, workout_id, date_completed)
		 SELECT $1, $2, w.id, $4 FROM workouts w WHERE w.id = $3 AND w.user_id = $2`,
		id, userID, s.WorkoutID, s.DateCompleted)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("workout %s: %w", s.WorkoutID, ErrNotFound)
	}

	for _, rep := range s.RepLog {
		if err := insertRep(ctx, tx, id, rep); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("committing session: %w", err)
	}
	return id.String(), nil
}

// AddRepetition appends a rep to an existing session of the user.
func (db *DB) AddRepetition(ctx context.Context, userID int, sessionID string, rep models.LoggedRep) error {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return ErrNotFound
	}

	var owner int
	err = db.Pool.QueryRow(ctx, `SELECT user_id FROM sessions WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying session: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertRep(ctx, tx, id, rep); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET date_completed = GREATEST(date_completed, NOW()) WHERE id = $1`, id); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return tx.Commit(ctx)
}

func insertRep(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, rep models.LoggedRep) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO session_reps (session_id, set_id, seconds_completed, percentage_completed)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, rep.SetID, rep.SecondsCompleted, rep.PercentageCompleted)
	if err != nil {
		return fmt.Errorf("inserting rep: %w", err)
	}
	return nil
}

// QuerySessions lists sessions completed in [start, end), newest first.
func (db *DB) QuerySessions(ctx context.Context, start, end time.Time, userID int) ([]models.SessionSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT se.id::text, se.workout_id, w.name, se.date_completed,
		        COUNT(r.id), COALESCE(SUM(r.seconds_completed), 0)
		 FROM sessions se
		 JOIN workouts w ON w.id = se.workout_id
		 LEFT JOIN session_reps r ON r.session_id = se.id
		 WHERE se.user_id = $3 AND se.date_completed >= $1 AND se.date_completed < $2
		 GROUP BY se.id, w.name
		 ORDER BY se.date_completed DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(&s.ID, &s.WorkoutID, &s.WorkoutName, &s.DateCompleted, &s.Reps, &s.HangSeconds); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// GetSession retrieves a session with its rep log in the order logged.
func (db *DB) GetSession(ctx context.Context, sessionID string, userID int) (*models.Session, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	s := models.Session{ID: id.String()}
	err = db.Pool.QueryRow(ctx,
		`SELECT workout_id, date_completed FROM sessions WHERE id = $1 AND user_id = $2`,
		id, userID).Scan(&s.WorkoutID, &s.DateCompleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT seconds_completed, percentage_completed, set_id
		 FROM session_reps
		 WHERE session_id = $1
		 ORDER BY id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying session reps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.LoggedRep
		if err := rows.Scan(&r.SecondsCompleted, &r.PercentageCompleted, &r.SetID); err != nil {
			return nil, fmt.Errorf("scanning session rep: %w", err)
		}
		s.RepLog = append(s.RepLog, r)
	}
	return &s, rows.Err()
}
