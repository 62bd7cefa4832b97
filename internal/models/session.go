package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the record of one training run. ID is empty until the
// session log service has accepted the first repetition.
type Session struct {
	ID            string      `json:"id,omitempty"`
	WorkoutID     uuid.UUID   `json:"workout_id"`
	DateCompleted time.Time   `json:"date_completed"`
	RepLog        []LoggedRep `json:"rep_log"`
}

// TotalHangSeconds sums the seconds completed across the rep log.
func (s *Session) TotalHangSeconds() float64 {
	var total float64
	for _, r := range s.RepLog {
		total += r.SecondsCompleted
	}
	return total
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID            string    `json:"id"`
	WorkoutID     uuid.UUID `json:"workout_id"`
	WorkoutName   string    `json:"workout_name"`
	DateCompleted time.Time `json:"date_completed"`
	Reps          int       `json:"reps"`
	HangSeconds   float64   `json:"hang_seconds"`
}

// LoggedRep is a confirmed repetition.
type LoggedRep struct {
	SecondsCompleted    float64   `json:"seconds_completed"`
	PercentageCompleted int       `json:"percentage_completed"`
	SetID               uuid.UUID `json:"set_id"`
}

// NewLoggedRep converts a confirmed percentage of a set's hang time into
// a LoggedRep.
func NewLoggedRep(set Set, percentage int) LoggedRep {
	return LoggedRep{
		SecondsCompleted:    float64(set.HangTime) * float64(percentage) / 100,
		PercentageCompleted: percentage,
		SetID:               set.ID,
	}
}

// RepEntry is a completed repetition waiting for the user to confirm how
// much of it was actually held.
type RepEntry struct {
	RepIndex    int       `json:"rep_index"`
	Percentage  int       `json:"percentage"`
	SetIndex    int       `json:"set_index"`
	SetRepIndex int       `json:"set_rep_index"`
	TotalReps   int       `json:"total_reps"`
	SetID       uuid.UUID `json:"set_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// DailyHangTime is the number of seconds hung on a given day.
type DailyHangTime struct {
	Day     time.Time `json:"day"`
	Seconds float64   `json:"seconds"`
}

// GripUsage counts logged reps per grip type.
type GripUsage struct {
	Grip GripType `json:"grip"`
	Reps int      `json:"reps"`
}

// DataStats holds aggregate statistics about a user's training history.
type DataStats struct {
	TotalWorkouts    int64      `json:"total_workouts"`
	TotalSessions    int64      `json:"total_sessions"`
	TotalReps        int64      `json:"total_reps"`
	TotalHangSeconds float64    `json:"total_hang_seconds"`
	EarliestSession  *time.Time `json:"earliest_session"`
	LatestSession    *time.Time `json:"latest_session"`
}
