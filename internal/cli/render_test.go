package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/trainer"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

// TestProgressBar fills proportionally and clamps out-of-range values.
func TestProgressBar(t *testing.T) {
	tests := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{50, 10},
		{100, 20},
		{140, 20},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := progressBar(tt.pct)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("progressBar(%v) filled = %d, want %d", tt.pct, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != barWidth {
			t.Errorf("progressBar(%v) width = %d", tt.pct, got)
		}
	}
}

// TestRenderStatus shows phase, position, clock and confirmation state.
func TestRenderStatus(t *testing.T) {
	noColor(t)
	s := trainer.Snapshot{
		PhaseLabel:    trainer.LabelRest,
		SetIndex:      1,
		SetCount:      3,
		Set:           models.Set{Reps: 6},
		RemainingReps: 4,
		Clock:         time.Time{}.Add(75 * time.Second),
		Progress:      50,
		Paused:        true,
		Pending:       []models.RepEntry{{RepIndex: 7}, {RepIndex: 8}},
		Logged:        5,
		Synced:        4,
		SyncError:     "503",
	}
	got := renderStatus(s)
	for _, want := range []string{"REST", "set 2/3", "rep 3/6", "01:15", "PAUSED", "confirm: #7 #8", "synced 4/5", "sync failing"} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}
}

// TestRenderStatusBeforeStart labels an unstarted workout READY.
func TestRenderStatusBeforeStart(t *testing.T) {
	noColor(t)
	got := renderStatus(trainer.Snapshot{SetCount: 1, Set: models.Set{Reps: 1}, RemainingReps: 1})
	if !strings.HasPrefix(got, "READY") {
		t.Errorf("status = %q, want READY prefix", got)
	}
	if strings.Contains(got, "confirm:") || strings.Contains(got, "synced") {
		t.Errorf("status = %q, want no ledger fields", got)
	}
}

// TestRenderSummary lists the session id and reps still awaiting confirmation.
func TestRenderSummary(t *testing.T) {
	noColor(t)
	got := renderSummary(trainer.Snapshot{
		Workout:   "Repeaters",
		Logged:    3,
		Synced:    3,
		SessionID: "sess-9",
		Pending:   []models.RepEntry{{RepIndex: 5}},
	})
	for _, want := range []string{"Finished Repeaters", "reps logged: 3, synced: 3", "sess-9", "#5"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}
