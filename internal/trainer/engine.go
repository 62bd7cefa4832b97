// Package trainer runs a hangboard workout: countdown, hold and rest
// timers, audio cues, manual navigation and logging of completed reps.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meltforce/hangtime/internal/models"
)

var (
	ErrAlreadyStarted    = errors.New("workout already started")
	ErrFinished          = errors.New("workout finished")
	ErrUnknownRep        = errors.New("unknown rep")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrClosed            = errors.New("trainer closed")
	ErrInvalidWorkout    = errors.New("invalid workout")
	ErrSyncStopped       = errors.New("session sync stopped")
)

// Options tunes the engine. Start from DefaultOptions.
type Options struct {
	// CountdownSeconds is the lead-in at the start of the workout and after
	// jumping between sets.
	CountdownSeconds int
	// AnnounceEvery speaks the remaining rest time every N seconds of rest.
	// Zero disables announcements.
	AnnounceEvery int
	// BeepLast beeps on each of the final N seconds of a rest.
	BeepLast int
	// InstructionDelay is how long after a set begins its instructions play.
	InstructionDelay time.Duration
	// AutoConfirmAfter confirms pending reps at 100% after this delay.
	// Zero leaves them for the user.
	AutoConfirmAfter time.Duration
	// TickInterval is the length of one timer second.
	TickInterval time.Duration
	// RetryMin and RetryMax bound the session sync backoff.
	RetryMin time.Duration
	RetryMax time.Duration
	// Permanent reports submission errors that retrying cannot fix. Sync
	// stops on the first one and Flush returns ErrSyncStopped. Nil retries
	// every error.
	Permanent func(error) bool

	Playback   Playback
	SessionLog SessionLog
	Clock      Clock
	Logger     *slog.Logger
}

// DefaultOptions returns the standard timings with no playback and no
// session log.
func DefaultOptions() Options {
	return Options{
		CountdownSeconds: 10,
		AnnounceEvery:    30,
		BeepLast:         5,
		InstructionDelay: 2 * time.Second,
		TickInterval:     time.Second,
		RetryMin:         time.Second,
		RetryMax:         30 * time.Second,
	}
}

func (o *Options) fill() {
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.RetryMin <= 0 {
		o.RetryMin = time.Second
	}
	if o.RetryMax < o.RetryMin {
		o.RetryMax = o.RetryMin
	}
	if o.CountdownSeconds < 0 {
		o.CountdownSeconds = 0
	}
}

type op int

const (
	opSnapshot op = iota
	opStart
	opPause
	opResume
	opReset
	opStop
	opNextRep
	opPreviousRep
	opNextSet
	opPreviousSet
	opConfirm
)

type command struct {
	op         op
	repIndex   int
	percentage int
	reply      chan result
}

type result struct {
	snap Snapshot
	err  error
}

type eventKind int

const (
	evCue eventKind = iota
	evAutoConfirm
)

type event struct {
	kind     eventKind
	gen      int
	cue      cue
	repIndex int
}

// Engine drives one workout. All state changes happen on a single loop
// goroutine; the exported methods are safe for concurrent use.
type Engine struct {
	opts   Options
	log    *slog.Logger
	clock  Clock
	m      *machine
	ledger *ledger
	cues   *cuePlayer

	cmds    chan command
	events  chan event
	refresh chan struct{}
	updates chan Snapshot
	quit    chan struct{}
	done    chan struct{}

	// Owned by the loop goroutine.
	ticker      Ticker
	tickC       <-chan time.Time
	cueGen      int
	cueTimers   []Timer
	confirmTmrs map[int]Timer

	last       atomic.Pointer[Snapshot]
	stopSync   context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
	finishOnce sync.Once
}

// New validates w and starts the engine loop. The workout is copied, so
// later changes to w do not affect training. Call Close when done.
func New(w *models.Workout, opts Options) (*Engine, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil workout", ErrInvalidWorkout)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkout, err)
	}
	opts.fill()
	workout := w.Clone()

	e := &Engine{
		opts:    opts,
		log:     opts.Logger,
		clock:   opts.Clock,
		cues:    newCuePlayer(opts.Playback, opts.Logger),
		cmds:    make(chan command),
		events:  make(chan event, 16),
		refresh: make(chan struct{}, 1),
		updates: make(chan Snapshot, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),

		confirmTmrs: make(map[int]Timer),
	}
	e.m = newMachine(workout, opts, e, opts.Clock.Now)
	e.ledger = newLedger(workout, opts.SessionLog, opts)
	e.ledger.onChange = e.poke

	snap := project(e.m, e.ledger.state())
	e.last.Store(&snap)

	syncCtx, cancel := context.WithCancel(context.Background())
	e.stopSync = cancel
	if opts.SessionLog != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.ledger.run(syncCtx)
		}()
	}

	e.wg.Add(1)
	go e.run()
	return e, nil
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			e.shutdown()
			return
		case c := <-e.cmds:
			r := result{err: e.apply(c)}
			r.snap = e.publish()
			c.reply <- r
		case <-e.tickC:
			e.m.tick()
			e.publish()
		case ev := <-e.events:
			e.handle(ev)
			e.publish()
		case <-e.refresh:
			e.publish()
		}
	}
}

func (e *Engine) apply(c command) error {
	switch c.op {
	case opStart:
		if err := e.m.start(); err != nil {
			return err
		}
		e.log.Info("workout started", "workout", e.m.workout.Name, "sets", len(e.m.workout.Sets))
	case opPause:
		e.m.pause()
	case opResume:
		e.m.resume()
	case opReset:
		if err := e.m.reset(); err != nil {
			return err
		}
		e.ledger.clearPending()
		e.stopAutoConfirms()
	case opStop:
		e.m.stop()
	case opNextRep:
		e.m.nextRep()
	case opPreviousRep:
		e.m.previousRep()
	case opNextSet:
		e.m.nextSet()
	case opPreviousSet:
		e.m.previousSet()
	case opConfirm:
		if err := e.ledger.confirm(c.repIndex, c.percentage); err != nil {
			return err
		}
		e.dropAutoConfirm(c.repIndex)
	}
	return nil
}

func (e *Engine) handle(ev event) {
	switch ev.kind {
	case evCue:
		if ev.gen == e.cueGen && e.m.running() {
			e.cues.fire(ev.cue)
			e.m.cuePlayed(ev.cue)
		}
	case evAutoConfirm:
		delete(e.confirmTmrs, ev.repIndex)
		err := e.ledger.confirm(ev.repIndex, 100)
		if err != nil && !errors.Is(err, ErrUnknownRep) {
			e.log.Warn("auto-confirm failed", "rep", ev.repIndex, "error", err)
		}
	}
}

// publish stores the current snapshot and offers it to Updates, replacing
// any value the consumer has not read yet.
func (e *Engine) publish() Snapshot {
	snap := project(e.m, e.ledger.state())
	e.last.Store(&snap)
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- snap:
	default:
	}
	return snap
}

func (e *Engine) shutdown() {
	e.disarmTicker()
	e.cancelDelayed()
	e.stopAutoConfirms()
	e.cues.close()
	e.stopSync()
	e.finished()
}

func (e *Engine) dropAutoConfirm(repIndex int) {
	if t, ok := e.confirmTmrs[repIndex]; ok {
		t.Stop()
		delete(e.confirmTmrs, repIndex)
	}
}

func (e *Engine) stopAutoConfirms() {
	for rep, t := range e.confirmTmrs {
		t.Stop()
		delete(e.confirmTmrs, rep)
	}
}

// poke asks the loop to republish. It never blocks.
func (e *Engine) poke() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

func (e *Engine) post(ev event) {
	select {
	case e.events <- ev:
	case <-e.quit:
	}
}

// driver implementation; called only from the loop.

func (e *Engine) armTicker() {
	e.disarmTicker()
	e.ticker = e.clock.NewTicker(e.opts.TickInterval)
	e.tickC = e.ticker.C()
}

func (e *Engine) disarmTicker() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
	e.ticker = nil
	e.tickC = nil
}

func (e *Engine) cue(c cue) { e.cues.fire(c) }

func (e *Engine) cueAfter(d time.Duration, c cue) {
	gen := e.cueGen
	t := e.clock.AfterFunc(d, func() {
		e.post(event{kind: evCue, gen: gen, cue: c})
	})
	e.cueTimers = append(e.cueTimers, t)
}

func (e *Engine) stopCues() { e.cues.stop() }

func (e *Engine) cancelDelayed() {
	e.cueGen++
	for _, t := range e.cueTimers {
		t.Stop()
	}
	e.cueTimers = nil
}

func (e *Engine) pending(entry models.RepEntry) {
	e.ledger.record(entry)
	if e.opts.AutoConfirmAfter <= 0 {
		return
	}
	rep := entry.RepIndex
	e.dropAutoConfirm(rep)
	e.confirmTmrs[rep] = e.clock.AfterFunc(e.opts.AutoConfirmAfter, func() {
		e.post(event{kind: evAutoConfirm, repIndex: rep})
	})
}

func (e *Engine) finished() {
	e.finishOnce.Do(func() {
		close(e.done)
		if e.m.finished {
			e.log.Info("workout finished", "workout", e.m.workout.Name)
		}
	})
}

func (e *Engine) do(c command) result {
	c.reply = make(chan result, 1)
	select {
	case e.cmds <- c:
	case <-e.quit:
		return result{snap: *e.last.Load(), err: ErrClosed}
	}
	return <-c.reply
}

// Start begins the workout with the opening countdown.
func (e *Engine) Start() error { return e.do(command{op: opStart}).err }

// Pause stops the timer and any playing cue.
func (e *Engine) Pause() error { return e.do(command{op: opPause}).err }

// Resume continues the paused phase where it stopped.
func (e *Engine) Resume() error { return e.do(command{op: opResume}).err }

// Reset restarts from the first set. Unconfirmed reps are discarded;
// confirmed reps stay in the session.
func (e *Engine) Reset() error { return e.do(command{op: opReset}).err }

// Stop ends the workout early. Confirmations are still accepted.
func (e *Engine) Stop() error { return e.do(command{op: opStop}).err }

func (e *Engine) NextRep() error     { return e.do(command{op: opNextRep}).err }
func (e *Engine) PreviousRep() error { return e.do(command{op: opPreviousRep}).err }
func (e *Engine) NextSet() error     { return e.do(command{op: opNextSet}).err }
func (e *Engine) PreviousSet() error { return e.do(command{op: opPreviousSet}).err }

// ConfirmRep logs the pending rep with the given id at percentage of its
// hang time and queues it for the session log.
func (e *Engine) ConfirmRep(repIndex, percentage int) error {
	return e.do(command{op: opConfirm, repIndex: repIndex, percentage: percentage}).err
}

// Snapshot returns the current view model. After Close it returns the last
// one published.
func (e *Engine) Snapshot() Snapshot { return e.do(command{op: opSnapshot}).snap }

// Updates delivers the latest snapshot after every change. Slow readers
// only see the most recent one.
func (e *Engine) Updates() <-chan Snapshot { return e.updates }

// Done is closed when the workout finishes, is stopped or the engine is
// closed.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Session returns the confirmed reps so far.
func (e *Engine) Session() models.Session { return e.ledger.snapshot() }

// Flush waits until every confirmed rep has been accepted by the session
// log.
func (e *Engine) Flush(ctx context.Context) error { return e.ledger.flush(ctx) }

// Unsynced returns confirmed reps the session log has not accepted.
func (e *Engine) Unsynced() []models.LoggedRep { return e.ledger.unsynced() }

// SessionID is the id assigned by the session log, or "" before the first
// successful submission.
func (e *Engine) SessionID() string { return e.ledger.state().sessionID }

// Err returns the last session sync error, cleared by the next success.
func (e *Engine) Err() error { return e.ledger.err() }

// Close stops the engine and waits for its goroutines to exit.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.quit)
		e.wg.Wait()
	})
	return nil
}
