package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/meltforce/hangtime/internal/trainer"
)

var (
	errorText = color.New(color.FgRed, color.Bold)
	okText    = color.New(color.FgGreen, color.Bold)
	dimText   = color.New(color.Faint)
	warnText  = color.New(color.FgYellow)
)

var phaseColors = map[string]*color.Color{
	trainer.LabelIntermission: color.New(color.FgYellow, color.Bold),
	trainer.LabelHold:         color.New(color.FgRed, color.Bold),
	trainer.LabelRest:         color.New(color.FgGreen, color.Bold),
	trainer.LabelDone:         color.New(color.FgCyan, color.Bold),
}

const barWidth = 20

// progressBar draws pct (0-100) of the current phase as remaining time.
func progressBar(pct float64) string {
	filled := int(pct/100*barWidth + 0.5)
	filled = min(max(filled, 0), barWidth)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

// renderStatus formats a snapshot as a single status line.
func renderStatus(s trainer.Snapshot) string {
	var b strings.Builder

	label := s.PhaseLabel
	if label == "" {
		label = "READY"
	}
	label = fmt.Sprintf("%-12s", label)
	if c, ok := phaseColors[s.PhaseLabel]; ok {
		label = c.Sprint(label)
	}
	b.WriteString(label + " ")

	fmt.Fprintf(&b, "set %d/%d  rep %d/%d  %s  %s",
		s.SetIndex+1, s.SetCount, repOfSet(s), s.Set.Reps,
		s.Clock.Format("04:05"), progressBar(s.Progress))

	if s.Paused {
		b.WriteString(warnText.Sprint("  PAUSED"))
	}
	if n := len(s.Pending); n > 0 {
		fmt.Fprintf(&b, "  confirm: %s", pendingList(s))
	}
	if s.Logged > 0 {
		fmt.Fprintf(&b, "  %s", dimText.Sprintf("synced %d/%d", s.Synced, s.Logged))
	}
	if s.SyncError != "" {
		fmt.Fprintf(&b, "  %s", errorText.Sprint("sync failing"))
	}
	return b.String()
}

// repOfSet is the 1-based rep within the current set.
func repOfSet(s trainer.Snapshot) int {
	rep := s.Set.Reps - s.RemainingReps + 1
	return min(max(rep, 1), s.Set.Reps)
}

func pendingList(s trainer.Snapshot) string {
	ids := make([]string, len(s.Pending))
	for i, e := range s.Pending {
		ids[i] = fmt.Sprintf("#%d", e.RepIndex)
	}
	return strings.Join(ids, " ")
}

// renderSummary describes the session once the workout is over.
func renderSummary(s trainer.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", okText.Sprint("Finished"), s.Workout)
	fmt.Fprintf(&b, "  reps logged: %d, synced: %d\n", s.Logged, s.Synced)
	if s.SessionID != "" {
		fmt.Fprintf(&b, "  session:     %s\n", s.SessionID)
	}
	if len(s.Pending) > 0 {
		fmt.Fprintf(&b, "  awaiting confirmation: %s (c <rep> <pct>, or q to discard)\n", pendingList(s))
	}
	return b.String()
}

const helpText = `commands:
  s            start
  p / r        pause / resume
  n / b        next / previous rep
  N / B        next / previous set
  c [rep] [%]  confirm a rep (default: oldest pending at 100)
  x            reset
  q            stop and quit
  ?            this help
`
