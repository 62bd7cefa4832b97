// Package spool keeps confirmed reps that could not be synced on disk so a
// later run can replay them to the session log.
package spool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/trainer"
)

// Entry is one spooled rep. Reps saved together share a Batch and belong to
// the same session.
type Entry struct {
	ID            int64
	Batch         string
	WorkoutID     uuid.UUID
	SessionID     string
	DateCompleted time.Time
	Rep           models.LoggedRep
}

// Result summarizes a replay.
type Result struct {
	Sent     int
	Sessions int
	Left     int
}

// Spool is a SQLite-backed queue of unsynced reps.
type Spool struct {
	db *sql.DB
}

// Open opens (or creates) the spool database at path.
func Open(path string) (*Spool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating spool dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening spool db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS spooled_reps (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		batch                TEXT NOT NULL,
		workout_id           TEXT NOT NULL,
		session_id           TEXT NOT NULL DEFAULT '',
		date_completed       TIMESTAMP NOT NULL,
		set_id               TEXT NOT NULL,
		seconds_completed    REAL NOT NULL,
		percentage_completed INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating spool table: %w", err)
	}

	return &Spool{db: db}, nil
}

// Close closes the spool database.
func (s *Spool) Close() error {
	return s.db.Close()
}

// Save stores reps in order. sessionID is empty when the server never
// accepted the session.
func (s *Spool) Save(workoutID uuid.UUID, sessionID string, date time.Time, reps []models.LoggedRep) error {
	if len(reps) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning spool transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	batch := uuid.NewString()
	for _, r := range reps {
		_, err := tx.Exec(
			`INSERT INTO spooled_reps (batch, workout_id, session_id, date_completed, set_id,
			 seconds_completed, percentage_completed) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batch, workoutID.String(), sessionID, date.UTC(), r.SetID.String(),
			r.SecondsCompleted, r.PercentageCompleted)
		if err != nil {
			return fmt.Errorf("spooling rep: %w", err)
		}
	}
	return tx.Commit()
}

// Pending returns spooled reps in the order they were saved.
func (s *Spool) Pending() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, batch, workout_id, session_id, date_completed, set_id,
		 seconds_completed, percentage_completed
		 FROM spooled_reps ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying spool: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var workoutID, setID string
		if err := rows.Scan(&e.ID, &e.Batch, &workoutID, &e.SessionID, &e.DateCompleted, &setID,
			&e.Rep.SecondsCompleted, &e.Rep.PercentageCompleted); err != nil {
			return nil, fmt.Errorf("scanning spooled rep: %w", err)
		}
		if e.WorkoutID, err = uuid.Parse(workoutID); err != nil {
			return nil, fmt.Errorf("spooled rep %d: %w", e.ID, err)
		}
		if e.Rep.SetID, err = uuid.Parse(setID); err != nil {
			return nil, fmt.Errorf("spooled rep %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Replay resubmits spooled reps batch by batch. A batch without a session
// id first creates one from its head rep. A failure stops that batch but
// not the others; all failures are returned combined.
func (s *Spool) Replay(ctx context.Context, sl trainer.SessionLog, log *slog.Logger) (Result, error) {
	entries, err := s.Pending()
	if err != nil {
		return Result{}, err
	}

	var res Result
	var errs error
	for _, batch := range groupBatches(entries) {
		sent, created, err := s.replayBatch(ctx, sl, batch)
		res.Sent += sent
		if created {
			res.Sessions++
		}
		if err != nil {
			log.Warn("replaying spooled batch", "batch", batch[0].Batch, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", batch[0].Batch, err))
		}
	}

	left, err := s.count()
	errs = multierr.Append(errs, err)
	res.Left = left
	return res, errs
}

func (s *Spool) replayBatch(ctx context.Context, sl trainer.SessionLog, batch []Entry) (sent int, created bool, err error) {
	sessionID := batch[0].SessionID
	if sessionID == "" {
		head := batch[0]
		sessionID, err = sl.SubmitSession(ctx, models.Session{
			WorkoutID:     head.WorkoutID,
			DateCompleted: head.DateCompleted,
			RepLog:        []models.LoggedRep{head.Rep},
		})
		if err != nil {
			return 0, false, fmt.Errorf("submitting session: %w", err)
		}
		if sessionID == "" {
			return 0, false, fmt.Errorf("session log returned an empty session id")
		}
		if err := s.attach(head.Batch, sessionID, head.ID); err != nil {
			return 0, true, err
		}
		sent, created = 1, true
		batch = batch[1:]
	}

	for _, e := range batch {
		if err := sl.SubmitRepetition(ctx, sessionID, e.Rep); err != nil {
			return sent, created, fmt.Errorf("submitting rep %d: %w", e.ID, err)
		}
		if err := s.remove(e.ID); err != nil {
			return sent, created, err
		}
		sent++
	}
	return sent, created, nil
}

// attach records the new session id on the rest of the batch and drops the
// rep that created it.
func (s *Spool) attach(batch, sessionID string, headID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning spool transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`UPDATE spooled_reps SET session_id = ? WHERE batch = ?`, sessionID, batch); err != nil {
		return fmt.Errorf("attaching session id: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM spooled_reps WHERE id = ?`, headID); err != nil {
		return fmt.Errorf("removing spooled rep: %w", err)
	}
	return tx.Commit()
}

func (s *Spool) remove(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM spooled_reps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("removing spooled rep %d: %w", id, err)
	}
	return nil
}

func (s *Spool) count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spooled_reps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting spool: %w", err)
	}
	return n, nil
}

func groupBatches(entries []Entry) [][]Entry {
	var out [][]Entry
	index := map[string]int{}
	for _, e := range entries {
		i, ok := index[e.Batch]
		if !ok {
			i = len(out)
			index[e.Batch] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], e)
	}
	return out
}
