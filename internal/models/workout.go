package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GripType is the grip used by one hand during a hold.
type GripType string

const (
	GripFullCrimp GripType = "full_crimp"
	GripHalfCrimp GripType = "half_crimp"
	GripOpenHand  GripType = "open_hand"
)

// Valid reports whether g is a known grip. The empty grip is allowed and
// means "not specified".
func (g GripType) Valid() bool {
	switch g {
	case "", GripFullCrimp, GripHalfCrimp, GripOpenHand:
		return true
	}
	return false
}

// Hand identifies which hand a SetHold applies to.
type Hand string

const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
)

// Workout is an ordered sequence of Sets. The trainer only ever reads it.
type Workout struct {
	ID          uuid.UUID  `json:"id" yaml:"id,omitempty" toml:"id,omitempty"`
	UserID      int        `json:"user_id,omitempty" yaml:"-" toml:"-"`
	Name        string     `json:"name" yaml:"name" toml:"name"`
	Description string     `json:"description" yaml:"description" toml:"description"`
	HangboardID *uuid.UUID `json:"hangboard_id,omitempty" yaml:"hangboard_id,omitempty" toml:"hangboard_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"-" toml:"-"`
	Sets        []Set      `json:"sets" yaml:"sets" toml:"set"`
}

// Set is one block of repeated holds. Durations are whole seconds.
type Set struct {
	ID                  uuid.UUID `json:"id" yaml:"id,omitempty" toml:"id,omitempty"`
	Position            int       `json:"position" yaml:"-" toml:"-"`
	HangTime            int       `json:"hang_time" yaml:"hang_time" toml:"hang_time"`
	RestTime            int       `json:"rest_time" yaml:"rest_time" toml:"rest_time"`
	RestBeforeNextSet   int       `json:"rest_before_next_set" yaml:"rest_before_next_set" toml:"rest_before_next_set"`
	Reps                int       `json:"reps" yaml:"reps" toml:"reps"`
	Instructions        string    `json:"instructions" yaml:"instructions" toml:"instructions"`
	InstructionAudioURL string    `json:"instruction_audio_url,omitempty" yaml:"instruction_audio_url,omitempty" toml:"instruction_audio_url,omitempty"`
	Weight              float64   `json:"weight" yaml:"weight" toml:"weight"`
	LeftGrip            GripType  `json:"left_grip,omitempty" yaml:"left_grip,omitempty" toml:"left_grip,omitempty"`
	RightGrip           GripType  `json:"right_grip,omitempty" yaml:"right_grip,omitempty" toml:"right_grip,omitempty"`
	Holds               []SetHold `json:"holds,omitempty" yaml:"holds,omitempty" toml:"hold,omitempty"`
}

// SetHold assigns a board hold to a hand for a set.
type SetHold struct {
	HoldID uuid.UUID `json:"hold_id" yaml:"hold_id" toml:"hold_id"`
	Hand   Hand      `json:"hand" yaml:"hand" toml:"hand"`
}

// WorkoutSummary is the listing view of a workout.
type WorkoutSummary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SetCount    int       `json:"set_count"`
	CreatedAt   time.Time `json:"created_at"`
}

var errNoSets = errors.New("workout has no sets")

// Validate checks the invariants the trainer relies on.
func (w *Workout) Validate() error {
	if len(w.Sets) == 0 {
		return errNoSets
	}
	for i := range w.Sets {
		if err := w.Sets[i].Validate(); err != nil {
			return fmt.Errorf("set %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks a single set. Zero durations are legal.
func (s *Set) Validate() error {
	if s.Reps < 1 {
		return fmt.Errorf("reps must be at least 1, got %d", s.Reps)
	}
	if s.HangTime < 0 {
		return fmt.Errorf("hang_time must not be negative, got %d", s.HangTime)
	}
	if s.RestTime < 0 {
		return fmt.Errorf("rest_time must not be negative, got %d", s.RestTime)
	}
	if s.RestBeforeNextSet < 0 {
		return fmt.Errorf("rest_before_next_set must not be negative, got %d", s.RestBeforeNextSet)
	}
	if !s.LeftGrip.Valid() {
		return fmt.Errorf("unknown left_grip %q", s.LeftGrip)
	}
	if !s.RightGrip.Valid() {
		return fmt.Errorf("unknown right_grip %q", s.RightGrip)
	}
	for _, h := range s.Holds {
		if h.Hand != HandLeft && h.Hand != HandRight {
			return fmt.Errorf("hold %s: unknown hand %q", h.HoldID, h.Hand)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hold a workout that nobody
// else mutates.
func (w *Workout) Clone() Workout {
	c := *w
	c.Sets = make([]Set, len(w.Sets))
	for i, s := range w.Sets {
		s.Holds = append([]SetHold(nil), s.Holds...)
		c.Sets[i] = s
	}
	if w.HangboardID != nil {
		id := *w.HangboardID
		c.HangboardID = &id
	}
	return c
}

// TotalHangSeconds is the work time of the workout if every rep is completed.
func (w *Workout) TotalHangSeconds() int {
	total := 0
	for _, s := range w.Sets {
		total += s.HangTime * s.Reps
	}
	return total
}
