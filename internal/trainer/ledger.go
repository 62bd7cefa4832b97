package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/hangtime/internal/models"
)

// SessionLog is the remote service that stores finished reps. The first
// submission creates the session and returns its id.
type SessionLog interface {
	SubmitSession(ctx context.Context, s models.Session) (string, error)
	SubmitRepetition(ctx context.Context, sessionID string, rep models.LoggedRep) error
}

// WorkoutSource loads a workout by id.
type WorkoutSource interface {
	FetchWorkout(ctx context.Context, id string) (*models.Workout, error)
}

var errEmptySessionID = errors.New("session log returned an empty session id")

// ledger holds reps waiting for confirmation, the session built from
// confirmed reps and the outbox of reps not yet accepted by the session
// log. A single worker drains the outbox in order.
type ledger struct {
	workout  models.Workout
	sessions SessionLog
	log      *slog.Logger
	now      func() time.Time
	onChange func()

	permanent func(error) bool
	retryMin  time.Duration
	retryMax  time.Duration

	mu        sync.Mutex
	pending   []models.RepEntry
	session   models.Session
	outbox    []models.LoggedRep
	synced    int
	sessionID string
	lastErr   error
	halted    error
	changed   chan struct{}

	wake chan struct{}
}

func newLedger(w models.Workout, sessions SessionLog, opts Options) *ledger {
	return &ledger{
		workout:  w,
		sessions: sessions,
		log:      opts.Logger,
		now:      opts.Clock.Now,
		onChange: func() {},
		session:  models.Session{WorkoutID: w.ID},
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),

		permanent: opts.Permanent,
		retryMin:  opts.RetryMin,
		retryMax:  opts.RetryMax,
	}
}

// notifyLocked wakes Flush waiters. Callers hold l.mu.
func (l *ledger) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *ledger) record(e models.RepEntry) {
	l.mu.Lock()
	l.pending = append(l.pending, e)
	l.mu.Unlock()
}

func (l *ledger) clearPending() {
	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

// confirm turns a pending entry into a logged rep and queues it for sync.
func (l *ledger) confirm(repIndex, percentage int) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercentage, percentage)
	}

	l.mu.Lock()
	at := -1
	for i, e := range l.pending {
		if e.RepIndex == repIndex {
			at = i
			break
		}
	}
	if at < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownRep, repIndex)
	}
	entry := l.pending[at]
	l.pending = append(l.pending[:at:at], l.pending[at+1:]...)

	rep := models.NewLoggedRep(l.workout.Sets[entry.SetIndex], percentage)
	l.session.RepLog = append(l.session.RepLog, rep)
	l.outbox = append(l.outbox, rep)
	l.notifyLocked()
	l.mu.Unlock()

	l.kick()
	return nil
}

func (l *ledger) kick() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run drains the outbox until ctx is cancelled. A failed submission stays
// at the head and is retried with backoff or as soon as another rep is
// confirmed. A permanent failure stops the worker for good.
func (l *ledger) run(ctx context.Context) {
	var backoff time.Duration
	for {
		rep, ok := l.head()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}

		err := l.submit(ctx, rep)
		if err == nil {
			backoff = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if l.permanent != nil && l.permanent(err) {
			l.halt(err)
			return
		}

		if backoff == 0 {
			backoff = l.retryMin
		} else {
			backoff = min(backoff*2, l.retryMax)
		}
		l.fail(err, backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-l.wake:
			t.Stop()
		case <-t.C:
		}
	}
}

func (l *ledger) head() (models.LoggedRep, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.outbox) == 0 {
		return models.LoggedRep{}, false
	}
	return l.outbox[0], true
}

func (l *ledger) submit(ctx context.Context, rep models.LoggedRep) error {
	l.mu.Lock()
	id := l.sessionID
	l.mu.Unlock()

	if id == "" {
		newID, err := l.sessions.SubmitSession(ctx, models.Session{
			WorkoutID:     l.workout.ID,
			DateCompleted: l.now(),
			RepLog:        []models.LoggedRep{rep},
		})
		if err != nil {
			return fmt.Errorf("submitting session: %w", err)
		}
		if newID == "" {
			return errEmptySessionID
		}
		l.mu.Lock()
		l.sessionID = newID
		l.session.ID = newID
		l.mu.Unlock()
		l.log.Info("session created", "session_id", newID)
	} else if err := l.sessions.SubmitRepetition(ctx, id, rep); err != nil {
		return fmt.Errorf("submitting repetition to session %s: %w", id, err)
	}

	l.mu.Lock()
	l.outbox = l.outbox[1:]
	l.synced++
	l.lastErr = nil
	l.notifyLocked()
	l.mu.Unlock()
	l.onChange()
	return nil
}

func (l *ledger) fail(err error, retryIn time.Duration) {
	l.log.Warn("session sync failed", "error", err, "retry_in", retryIn)
	l.mu.Lock()
	l.lastErr = err
	l.notifyLocked()
	l.mu.Unlock()
	l.onChange()
}

func (l *ledger) halt(err error) {
	l.log.Error("session sync stopped", "error", err)
	l.mu.Lock()
	l.lastErr = err
	l.halted = err
	l.notifyLocked()
	l.mu.Unlock()
	l.onChange()
}

// flush blocks until the outbox is empty, sync has stopped or ctx is done.
func (l *ledger) flush(ctx context.Context) error {
	for {
		l.mu.Lock()
		if len(l.outbox) == 0 {
			l.mu.Unlock()
			return nil
		}
		if l.sessions == nil {
			n := len(l.outbox)
			l.mu.Unlock()
			return fmt.Errorf("%d reps queued with no session log configured", n)
		}
		if l.halted != nil {
			n, err := len(l.outbox), l.halted
			l.mu.Unlock()
			return fmt.Errorf("%w with %d reps queued: %w", ErrSyncStopped, n, err)
		}
		ch, lastErr := l.changed, l.lastErr
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("flushing session log: %w (last error: %v)", ctx.Err(), lastErr)
			}
			return fmt.Errorf("flushing session log: %w", ctx.Err())
		case <-ch:
		}
	}
}

func (l *ledger) unsynced() []models.LoggedRep {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.LoggedRep(nil), l.outbox...)
}

func (l *ledger) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// snapshot returns a copy of the session stamped with the current time.
func (l *ledger) snapshot() models.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.session
	s.RepLog = append([]models.LoggedRep(nil), l.session.RepLog...)
	s.DateCompleted = l.now()
	return s
}

// ledgerState is what the projector reads from the ledger.
type ledgerState struct {
	pending   []models.RepEntry
	logged    int
	synced    int
	sessionID string
	err       error
}

func (l *ledger) state() ledgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledgerState{
		pending:   append([]models.RepEntry(nil), l.pending...),
		logged:    len(l.session.RepLog),
		synced:    l.synced,
		sessionID: l.sessionID,
		err:       l.lastErr,
	}
}
