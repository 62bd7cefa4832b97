package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/meltforce/hangtime/internal/models"
)

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*models.DataStats, error) {
	stats := &models.DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workouts WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(date_completed), MAX(date_completed)
		 FROM sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalSessions, &stats.EarliestSession, &stats.LatestSession)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(r.id), COALESCE(SUM(r.seconds_completed), 0)
		 FROM session_reps r
		 JOIN sessions se ON se.id = r.session_id
		 WHERE se.user_id = $1`, userID,
	).Scan(&stats.TotalReps, &stats.TotalHangSeconds)
	if err != nil {
		return nil, fmt.Errorf("summing reps: %w", err)
	}

	return stats, nil
}

// DailyHangTime sums hang seconds per day for sessions in [start, end).
func (db *DB) DailyHangTime(ctx context.Context, start, end time.Time, userID int) ([]models.DailyHangTime, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc('day', se.date_completed) AS day, SUM(r.seconds_completed)
		 FROM session_reps r
		 JOIN sessions se ON se.id = r.session_id
		 WHERE se.user_id = $3 AND se.date_completed >= $1 AND se.date_completed < $2
		 GROUP BY day
		 ORDER BY day`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying daily hang time: %w", err)
	}
	defer rows.Close()

	var result []models.DailyHangTime
	for rows.Next() {
		var d models.DailyHangTime
		if err := rows.Scan(&d.Day, &d.Seconds); err != nil {
			return nil, fmt.Errorf("scanning daily hang time: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// GripUsage counts logged reps per grip type in [start, end). A rep counts
// once for each hand that used the grip.
func (db *DB) GripUsage(ctx context.Context, start, end time.Time, userID int) ([]models.GripUsage, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT grip, COUNT(*) FROM (
			SELECT s.left_grip AS grip
			FROM session_reps r
			JOIN sessions se ON se.id = r.session_id
			JOIN sets s ON s.id = r.set_id
			WHERE se.user_id = $3 AND se.date_completed >= $1 AND se.date_completed < $2
			UNION ALL
			SELECT s.right_grip
			FROM session_reps r
			JOIN sessions se ON se.id = r.session_id
			JOIN sets s ON s.id = r.set_id
			WHERE se.user_id = $3 AND se.date_completed >= $1 AND se.date_completed < $2
		) g
		WHERE grip <> ''
		GROUP BY grip
		ORDER BY grip`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying grip usage: %w", err)
	}
	defer rows.Close()

	var result []models.GripUsage
	for rows.Next() {
		var g models.GripUsage
		var grip string
		if err := rows.Scan(&grip, &g.Reps); err != nil {
			return nil, fmt.Errorf("scanning grip usage: %w", err)
		}
		g.Grip = models.GripType(grip)
		result = append(result, g)
	}
	return result, rows.Err()
}
