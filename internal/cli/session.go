package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meltforce/hangtime/internal/trainer"
)

// controller is the part of *trainer.Engine the interactive loop drives.
type controller interface {
	Start() error
	Pause() error
	Resume() error
	Reset() error
	Stop() error
	NextRep() error
	PreviousRep() error
	NextSet() error
	PreviousSet() error
	ConfirmRep(repIndex, percentage int) error
	Snapshot() trainer.Snapshot
}

type action int

const (
	actStart action = iota
	actPause
	actResume
	actReset
	actQuit
	actNextRep
	actPreviousRep
	actNextSet
	actPreviousSet
	actConfirm
	actHelp
	actNone
)

type input struct {
	act action
	rep int // -1 means oldest pending
	pct int
}

// parseInput turns a typed line into an action. Blank lines are no-ops.
func parseInput(line string) (input, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return input{act: actNone}, nil
	}

	simple := map[string]action{
		"s": actStart, "start": actStart,
		"p": actPause, "pause": actPause,
		"r": actResume, "resume": actResume,
		"x": actReset, "reset": actReset,
		"q": actQuit, "quit": actQuit, "stop": actQuit,
		"n": actNextRep,
		"b": actPreviousRep,
		"N": actNextSet,
		"B": actPreviousSet,
		"?": actHelp, "h": actHelp, "help": actHelp,
	}
	if a, ok := simple[fields[0]]; ok {
		if len(fields) > 1 {
			return input{}, fmt.Errorf("%q takes no arguments", fields[0])
		}
		return input{act: a}, nil
	}

	if fields[0] != "c" && fields[0] != "confirm" {
		return input{}, fmt.Errorf("unknown command %q (? for help)", fields[0])
	}

	in := input{act: actConfirm, rep: -1, pct: 100}
	nums := make([]int, 0, 2)
	for _, f := range fields[1:] {
		n, err := strconv.Atoi(strings.TrimSuffix(f, "%"))
		if err != nil {
			return input{}, fmt.Errorf("not a number: %q", f)
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 0:
	case 1:
		in.pct = nums[0]
	case 2:
		in.rep, in.pct = nums[0], nums[1]
	default:
		return input{}, errors.New("usage: c [rep] [percent]")
	}
	return in, nil
}

// execute applies in to c. quit reports whether the loop should end.
func execute(c controller, in input, out io.Writer) (quit bool, err error) {
	switch in.act {
	case actStart:
		return false, c.Start()
	case actPause:
		return false, c.Pause()
	case actResume:
		return false, c.Resume()
	case actReset:
		return false, c.Reset()
	case actQuit:
		if err := c.Stop(); err != nil && !errors.Is(err, trainer.ErrFinished) {
			return true, err
		}
		return true, nil
	case actNextRep:
		return false, c.NextRep()
	case actPreviousRep:
		return false, c.PreviousRep()
	case actNextSet:
		return false, c.NextSet()
	case actPreviousSet:
		return false, c.PreviousSet()
	case actConfirm:
		rep := in.rep
		if rep < 0 {
			pending := c.Snapshot().Pending
			if len(pending) == 0 {
				return false, errors.New("nothing to confirm")
			}
			rep = pending[0].RepIndex
		}
		return false, c.ConfirmRep(rep, in.pct)
	case actHelp:
		fmt.Fprint(out, helpText)
	}
	return false, nil
}

// settled reports whether a finished workout has nothing left to confirm.
func settled(s trainer.Snapshot) bool {
	return s.Finished && len(s.Pending) == 0
}

// session is one interactive run of an engine.
type session struct {
	eng     controller
	updates <-chan trainer.Snapshot
	done    <-chan struct{}
	in      io.Reader
	out     io.Writer
}

// run reads commands from in and redraws the status line on every update
// until the user quits, ctx is cancelled or the workout is finished with
// every rep confirmed.
func (s *session) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(s.out, helpText)
	done := s.done
	for {
		select {
		case <-ctx.Done():
			if err := s.eng.Stop(); err != nil && !errors.Is(err, trainer.ErrFinished) {
				return err
			}
			return ctx.Err()

		case snap := <-s.updates:
			fmt.Fprint(s.out, "\r\033[K"+renderStatus(snap))

		case <-done:
			done = nil
			snap := s.eng.Snapshot()
			fmt.Fprint(s.out, "\n"+renderSummary(snap))
			if settled(snap) || lines == nil {
				return nil
			}

		case line, ok := <-lines:
			if !ok {
				// Input closed: keep running unattended until the workout ends.
				lines = nil
				if done == nil || settled(s.eng.Snapshot()) {
					return nil
				}
				continue
			}
			in, err := parseInput(line)
			if err != nil {
				fmt.Fprintln(s.out, errorText.Sprint(err.Error()))
				continue
			}
			quit, err := execute(s.eng, in, s.out)
			if err != nil {
				fmt.Fprintln(s.out, errorText.Sprint(err.Error()))
			}
			if quit {
				fmt.Fprintln(s.out)
				return nil
			}
			if in.act == actConfirm && settled(s.eng.Snapshot()) {
				fmt.Fprintln(s.out, okText.Sprint("all reps confirmed"))
				return nil
			}
		}
	}
}
