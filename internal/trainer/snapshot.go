package trainer

import (
	"time"

	"github.com/meltforce/hangtime/internal/models"
)

// Phase labels shown to the user.
const (
	LabelIntermission = "INTERMISSION"
	LabelHold         = "HOLD"
	LabelRest         = "REST"
	LabelDone         = "DONE"
)

// Snapshot is the view model of a running workout.
type Snapshot struct {
	Workout  string     `json:"workout"`
	Set      models.Set `json:"set"`
	SetIndex int        `json:"set_index"`
	SetCount int        `json:"set_count"`

	Phase      Phase     `json:"phase"`
	PhaseLabel string    `json:"phase_label"`
	Remaining  int       `json:"remaining"`
	Clock      time.Time `json:"clock"`
	Progress   float64   `json:"progress"`

	Running  bool `json:"running"`
	Paused   bool `json:"paused"`
	Started  bool `json:"started"`
	Finished bool `json:"finished"`

	RemainingReps int `json:"remaining_reps"`
	CurrentRep    int `json:"current_rep"`

	Pending   []models.RepEntry `json:"pending"`
	Logged    int               `json:"logged"`
	Synced    int               `json:"synced"`
	SessionID string            `json:"session_id,omitempty"`
	SyncError string            `json:"sync_error,omitempty"`
}

// project derives a Snapshot. It only reads its inputs.
func project(m *machine, ls ledgerState) Snapshot {
	set := m.cur.set()
	s := Snapshot{
		Workout:       m.workout.Name,
		Set:           set,
		SetIndex:      m.cur.index,
		SetCount:      len(m.workout.Sets),
		Phase:         m.phase,
		PhaseLabel:    phaseLabel(m),
		Remaining:     m.remaining,
		Clock:         time.Time{}.Add(time.Duration(m.remaining) * time.Second),
		Running:       m.running(),
		Paused:        m.paused,
		Started:       m.started,
		Finished:      m.finished,
		RemainingReps: m.cur.remaining,
		CurrentRep:    m.cur.repIndex() + 1,
		Pending:       ls.pending,
		Logged:        ls.logged,
		Synced:        ls.synced,
		SessionID:     ls.sessionID,
	}
	if m.total > 0 {
		s.Progress = 100 / float64(m.total) * float64(m.remaining)
	}
	if ls.err != nil {
		s.SyncError = ls.err.Error()
	}
	return s
}

func phaseLabel(m *machine) string {
	if m.finished {
		return LabelDone
	}
	switch m.phase {
	case PhaseCountdown:
		return LabelIntermission
	case PhaseWork:
		return LabelHold
	case PhaseRest:
		return LabelRest
	}
	return ""
}
