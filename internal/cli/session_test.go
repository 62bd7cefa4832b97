package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meltforce/hangtime/internal/models"
	"github.com/meltforce/hangtime/internal/trainer"
)

// fakeController records calls and serves a settable snapshot.
type fakeController struct {
	mu        sync.Mutex
	calls     []string
	snap      trainer.Snapshot
	confirmed [][2]int
	err       error
}

func (f *fakeController) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) Start() error       { return f.record("start") }
func (f *fakeController) Pause() error       { return f.record("pause") }
func (f *fakeController) Resume() error      { return f.record("resume") }
func (f *fakeController) Reset() error       { return f.record("reset") }
func (f *fakeController) NextRep() error     { return f.record("next-rep") }
func (f *fakeController) PreviousRep() error { return f.record("previous-rep") }
func (f *fakeController) NextSet() error     { return f.record("next-set") }
func (f *fakeController) PreviousSet() error { return f.record("previous-set") }

func (f *fakeController) Stop() error {
	f.mu.Lock()
	f.snap.Finished = true
	f.mu.Unlock()
	return f.record("stop")
}

func (f *fakeController) ConfirmRep(repIndex, percentage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, [2]int{repIndex, percentage})
	for i, e := range f.snap.Pending {
		if e.RepIndex == repIndex {
			f.snap.Pending = append(f.snap.Pending[:i:i], f.snap.Pending[i+1:]...)
			return nil
		}
	}
	return trainer.ErrUnknownRep
}

func (f *fakeController) Snapshot() trainer.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.snap
	s.Pending = append([]models.RepEntry(nil), f.snap.Pending...)
	return s
}

func (f *fakeController) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// TestParseInput covers every command form.
func TestParseInput(t *testing.T) {
	tests := []struct {
		line string
		want input
	}{
		{"", input{act: actNone}},
		{"   ", input{act: actNone}},
		{"s", input{act: actStart}},
		{"start", input{act: actStart}},
		{"p", input{act: actPause}},
		{"r", input{act: actResume}},
		{"x", input{act: actReset}},
		{"q", input{act: actQuit}},
		{"stop", input{act: actQuit}},
		{"n", input{act: actNextRep}},
		{"b", input{act: actPreviousRep}},
		{"N", input{act: actNextSet}},
		{"B", input{act: actPreviousSet}},
		{"?", input{act: actHelp}},
		{"c", input{act: actConfirm, rep: -1, pct: 100}},
		{"c 80", input{act: actConfirm, rep: -1, pct: 80}},
		{"c 80%", input{act: actConfirm, rep: -1, pct: 80}},
		{"confirm 3 50", input{act: actConfirm, rep: 3, pct: 50}},
	}
	for _, tt := range tests {
		got, err := parseInput(tt.line)
		if err != nil {
			t.Errorf("parseInput(%q) error: %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInput(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

// TestParseInputErrors rejects unknown commands and malformed confirms.
func TestParseInputErrors(t *testing.T) {
	for _, line := range []string{"jump", "s now", "c x", "c 1 2 3", "c 1 half"} {
		if _, err := parseInput(line); err == nil {
			t.Errorf("parseInput(%q) succeeded, want error", line)
		}
	}
}

// TestExecuteDispatch maps each action to the matching engine call.
func TestExecuteDispatch(t *testing.T) {
	f := &fakeController{}
	acts := []action{actStart, actPause, actResume, actNextRep, actPreviousRep, actNextSet, actPreviousSet, actReset}
	for _, a := range acts {
		quit, err := execute(f, input{act: a}, io.Discard)
		if err != nil || quit {
			t.Fatalf("execute(%v) = %v, %v", a, quit, err)
		}
	}
	want := []string{"start", "pause", "resume", "next-rep", "previous-rep", "next-set", "previous-set", "reset"}
	got := f.callList()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

// TestExecuteConfirmOldest confirms the first pending rep when none is named.
func TestExecuteConfirmOldest(t *testing.T) {
	f := &fakeController{snap: trainer.Snapshot{Pending: []models.RepEntry{{RepIndex: 4}, {RepIndex: 5}}}}

	if _, err := execute(f, input{act: actConfirm, rep: -1, pct: 70}, io.Discard); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(f.confirmed) != 1 || f.confirmed[0] != [2]int{4, 70} {
		t.Fatalf("confirmed = %v, want [[4 70]]", f.confirmed)
	}
}

// TestExecuteConfirmNothingPending reports an error instead of calling the engine.
func TestExecuteConfirmNothingPending(t *testing.T) {
	f := &fakeController{}
	if _, err := execute(f, input{act: actConfirm, rep: -1, pct: 100}, io.Discard); err == nil {
		t.Fatal("expected error with nothing pending")
	}
	if len(f.confirmed) != 0 {
		t.Fatalf("confirmed = %v, want none", f.confirmed)
	}
}

// TestExecuteQuitIgnoresFinished treats stopping a finished workout as a clean quit.
func TestExecuteQuitIgnoresFinished(t *testing.T) {
	f := &fakeController{err: trainer.ErrFinished}
	quit, err := execute(f, input{act: actQuit}, io.Discard)
	if !quit || err != nil {
		t.Fatalf("execute(quit) = %v, %v; want true, nil", quit, err)
	}
}

// TestExecuteHelp prints the command list.
func TestExecuteHelp(t *testing.T) {
	var buf bytes.Buffer
	if _, err := execute(&fakeController{}, input{act: actHelp}, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "confirm a rep") {
		t.Fatalf("help output = %q", buf.String())
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runSession(t *testing.T, s *session) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- s.run(context.Background()) }()
	return errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not return")
		return nil
	}
}

func waitOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output never contained %q: %q", want, out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSessionQuit stops the engine and returns on q.
func TestSessionQuit(t *testing.T) {
	f := &fakeController{}
	s := &session{
		eng:     f,
		updates: make(chan trainer.Snapshot),
		done:    make(chan struct{}),
		in:      strings.NewReader("s\nq\n"),
		out:     io.Discard,
	}
	if err := waitErr(t, runSession(t, s)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Join(f.callList(), ","); got != "start,stop" {
		t.Fatalf("calls = %s, want start,stop", got)
	}
}

// TestSessionRendersUpdates draws each snapshot on the status line.
func TestSessionRendersUpdates(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	updates := make(chan trainer.Snapshot)
	out := &syncBuffer{}
	f := &fakeController{}
	s := &session{eng: f, updates: updates, done: make(chan struct{}), in: pr, out: out}
	errc := runSession(t, s)

	updates <- trainer.Snapshot{PhaseLabel: trainer.LabelHold, SetCount: 2, Set: models.Set{Reps: 3}, RemainingReps: 3}
	if _, err := io.WriteString(pw, "q\n"); err != nil {
		t.Fatal(err)
	}
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "HOLD") {
		t.Fatalf("output missing status line: %q", out.String())
	}
}

// TestSessionEndsWhenSettled returns once the finished workout has every rep confirmed.
func TestSessionEndsWhenSettled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan struct{})
	f := &fakeController{snap: trainer.Snapshot{
		Finished: true,
		Workout:  "Max hangs",
		Pending:  []models.RepEntry{{RepIndex: 0}, {RepIndex: 1}},
	}}
	out := &syncBuffer{}
	s := &session{eng: f, updates: make(chan trainer.Snapshot), done: done, in: pr, out: out}
	errc := runSession(t, s)

	close(done)
	waitOutput(t, out, "awaiting confirmation")
	for _, line := range []string{"c 0 100\n", "c 1 60\n"} {
		if _, err := io.WriteString(pw, line); err != nil {
			t.Fatal(err)
		}
	}
	if err := waitErr(t, errc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.confirmed) != 2 {
		t.Fatalf("confirmed = %v, want two reps", f.confirmed)
	}
	if !strings.Contains(out.String(), "all reps confirmed") {
		t.Fatalf("output = %q", out.String())
	}
}

// TestSessionCancel stops the engine when the context ends.
func TestSessionCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	f := &fakeController{}
	s := &session{eng: f, updates: make(chan trainer.Snapshot), done: make(chan struct{}), in: pr, out: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.run(ctx) }()
	cancel()

	if err := waitErr(t, errc); !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v, want context.Canceled", err)
	}
	if got := strings.Join(f.callList(), ","); got != "stop" {
		t.Fatalf("calls = %s, want stop", got)
	}
}

// TestSessionInputClosedAfterFinish returns when input ends after the
// workout finished with reps still awaiting confirmation.
func TestSessionInputClosedAfterFinish(t *testing.T) {
	pr, pw := io.Pipe()

	done := make(chan struct{})
	f := &fakeController{snap: trainer.Snapshot{
		Finished: true,
		Pending:  []models.RepEntry{{RepIndex: 0}},
	}}
	out := &syncBuffer{}
	s := &session{eng: f, updates: make(chan trainer.Snapshot), done: done, in: pr, out: out}
	errc := runSession(t, s)

	close(done)
	waitOutput(t, out, "awaiting confirmation")
	pw.Close()

	if err := waitErr(t, errc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.confirmed) != 0 {
		t.Fatalf("confirmed = %v, want none", f.confirmed)
	}
}
