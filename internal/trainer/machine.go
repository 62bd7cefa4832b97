package trainer

import (
	"fmt"
	"time"

	"github.com/meltforce/hangtime/internal/models"
)

// driver is everything the machine needs from the outside world. The engine
// loop implements it with a real ticker and cue player; tests record calls.
type driver interface {
	armTicker()
	disarmTicker()
	cue(c cue)
	cueAfter(d time.Duration, c cue)
	stopCues()
	cancelDelayed()
	pending(e models.RepEntry)
	finished()
}

// machine is the phase state machine. It is not safe for concurrent use;
// the engine loop is its only caller.
type machine struct {
	workout models.Workout
	opts    Options
	drv     driver
	now     func() time.Time

	cur       cursor
	phase     Phase
	total     int
	remaining int
	elapsed   int

	started  bool
	paused   bool
	finished bool

	nextRepIndex int

	// instruction is the active set's delayed cue until it plays.
	instruction     *cue
	instructionDue  time.Time
	instructionLeft time.Duration
}

func newMachine(w models.Workout, opts Options, drv driver, now func() time.Time) *machine {
	return &machine{
		workout: w,
		opts:    opts,
		drv:     drv,
		now:     now,
		cur:     newCursor(w.Sets),
	}
}

func (m *machine) running() bool {
	return m.started && !m.paused && !m.finished && m.phase != PhaseNone
}

func (m *machine) start() error {
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.cur = newCursor(m.workout.Sets)
	m.beginSet(m.opts.CountdownSeconds)
	return nil
}

// beginSet schedules the active set's instructions and enters its
// countdown.
func (m *machine) beginSet(countdown int) {
	set := m.cur.set()
	m.instruction = nil
	switch {
	case set.InstructionAudioURL != "":
		m.scheduleInstruction(audioCue(set.InstructionAudioURL), m.opts.InstructionDelay)
	case set.Instructions != "":
		m.scheduleInstruction(speechCue(set.Instructions), m.opts.InstructionDelay)
	}
	m.enter(PhaseCountdown, countdown)
}

func (m *machine) scheduleInstruction(c cue, d time.Duration) {
	m.instruction = &c
	m.instructionDue = m.now().Add(d)
	m.drv.cueAfter(d, c)
}

// cuePlayed tells the machine a delayed cue went out.
func (m *machine) cuePlayed(c cue) {
	if m.instruction != nil && *m.instruction == c {
		m.instruction = nil
	}
}

// dropDelayed cancels delayed cues including an unplayed instruction.
func (m *machine) dropDelayed() {
	m.instruction = nil
	m.drv.cancelDelayed()
}

// enter makes p the active phase with a fresh counter. A phase with no
// duration expires immediately without arming the ticker.
func (m *machine) enter(p Phase, seconds int) {
	m.drv.stopCues()
	m.phase = p
	m.total = seconds
	m.remaining = seconds
	m.elapsed = 0
	if seconds <= 0 {
		m.total, m.remaining = 0, 0
		m.drv.disarmTicker()
		m.expire()
		return
	}
	m.phaseCue()
	m.drv.armTicker()
}

func (m *machine) phaseCue() {
	switch m.phase {
	case PhaseWork:
		m.drv.cue(toneCue(ToneHold))
	case PhaseRest:
		m.drv.cue(toneCue(ToneRest))
	}
}

func (m *machine) tick() {
	if !m.running() {
		return
	}
	m.remaining--
	m.elapsed++
	switch m.phase {
	case PhaseWork:
		if m.remaining > 0 {
			m.drv.cue(toneCue(ToneBeep))
		}
	case PhaseRest:
		if m.opts.AnnounceEvery > 0 && m.elapsed%m.opts.AnnounceEvery == 0 && m.remaining > 0 {
			m.drv.cue(speechCue(fmt.Sprintf("%d seconds left", m.remaining)))
		}
		if m.remaining > 0 && m.remaining <= m.opts.BeepLast {
			m.drv.cue(toneCue(ToneBeep))
		}
	}
	if m.remaining <= 0 {
		m.remaining = 0
		m.expire()
	}
}

func (m *machine) expire() {
	set := m.cur.set()
	switch m.phase {
	case PhaseCountdown:
		m.enter(PhaseWork, set.HangTime)
	case PhaseWork:
		m.recordRep()
		if m.cur.remaining <= 1 {
			m.finishSet()
			return
		}
		m.cur.remaining--
		m.enter(PhaseRest, set.RestTime)
	case PhaseRest:
		if m.cur.remaining <= 0 {
			m.finishSet()
			return
		}
		m.enter(PhaseWork, set.HangTime)
	}
}

// finishSet moves on after a set ends on its own. The intermission before
// the next set lasts as long as the finished set asks for.
func (m *machine) finishSet() {
	rest := m.cur.set().RestBeforeNextSet
	if !m.cur.advanceSet() {
		m.finish()
		return
	}
	m.beginSet(rest)
}

func (m *machine) recordRep() {
	set := m.cur.set()
	m.drv.pending(models.RepEntry{
		RepIndex:    m.nextRepIndex,
		Percentage:  100,
		SetIndex:    m.cur.index,
		SetRepIndex: m.cur.repIndex(),
		TotalReps:   set.Reps,
		SetID:       set.ID,
		CreatedAt:   m.now(),
	})
	m.nextRepIndex++
}

func (m *machine) finish() {
	m.drv.disarmTicker()
	m.dropDelayed()
	m.phase = PhaseNone
	m.total, m.remaining, m.elapsed = 0, 0, 0
	m.paused = false
	m.finished = true
	m.drv.finished()
}

func (m *machine) pause() {
	if !m.running() {
		return
	}
	m.paused = true
	m.drv.disarmTicker()
	m.drv.stopCues()
	m.drv.cancelDelayed()
	if m.instruction != nil {
		m.instructionLeft = max(m.instructionDue.Sub(m.now()), 0)
	}
}

func (m *machine) resume() {
	if !m.paused || m.finished {
		return
	}
	m.paused = false
	m.drv.stopCues()
	if m.instruction != nil {
		m.scheduleInstruction(*m.instruction, m.instructionLeft)
	}
	m.phaseCue()
	m.drv.armTicker()
}

// reset restarts the workout from the first set. Logged reps are kept.
func (m *machine) reset() error {
	if !m.started {
		return nil
	}
	if m.finished {
		return ErrFinished
	}
	m.paused = false
	m.dropDelayed()
	m.cur = newCursor(m.workout.Sets)
	m.beginSet(m.opts.CountdownSeconds)
	return nil
}

// stop ends the workout early.
func (m *machine) stop() {
	if m.finished {
		return
	}
	m.drv.stopCues()
	m.finish()
}

func (m *machine) navigable() bool {
	return m.started && !m.finished
}

// navigate drops delayed cues and unpauses before a manual jump.
func (m *machine) navigate() {
	m.paused = false
	m.dropDelayed()
}

func (m *machine) nextRep() {
	if !m.navigable() {
		return
	}
	m.navigate()
	if !m.cur.advanceRep() {
		m.jumpToNextSet()
		return
	}
	m.enter(PhaseRest, m.cur.set().RestTime)
}

func (m *machine) previousRep() {
	if !m.navigable() {
		return
	}
	if m.cur.firstRep() {
		if m.cur.index == 0 {
			return
		}
		m.navigate()
		m.cur.retreatSet()
		m.beginSet(m.opts.CountdownSeconds)
		return
	}
	m.navigate()
	m.cur.retreatRep()
	m.enter(PhaseRest, m.cur.set().RestTime)
}

func (m *machine) nextSet() {
	if !m.navigable() {
		return
	}
	m.navigate()
	m.jumpToNextSet()
}

func (m *machine) jumpToNextSet() {
	if !m.cur.advanceSet() {
		m.finish()
		return
	}
	m.beginSet(m.opts.CountdownSeconds)
}

func (m *machine) previousSet() {
	if !m.navigable() || m.cur.index == 0 {
		return
	}
	m.navigate()
	m.cur.retreatSet()
	m.beginSet(m.opts.CountdownSeconds)
}
