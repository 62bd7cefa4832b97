package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/meltforce/hangtime/internal/trainer"
)

var (
	_ trainer.Playback = (*Terminal)(nil)
	_ trainer.Playback = Nop{}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPlayToneRingsBell verifies tones write bell characters.
func TestPlayToneRingsBell(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, "", "", quietLogger())

	if err := term.PlayTone(context.Background(), trainer.ToneHold); err != nil {
		t.Fatalf("PlayTone: %v", err)
	}
	if err := term.PlayTone(context.Background(), trainer.ToneBeep); err != nil {
		t.Fatalf("PlayTone: %v", err)
	}
	if got := buf.String(); got != "\a\a\a" {
		t.Errorf("output = %q, want three bells", got)
	}
}

// TestPlayToneUnknown verifies an unknown tone is an error.
func TestPlayToneUnknown(t *testing.T) {
	term := NewTerminal(io.Discard, "", "", quietLogger())
	if err := term.PlayTone(context.Background(), "gong"); err == nil {
		t.Fatal("expected error for unknown tone")
	}
}

// TestDisabledCommands verifies empty commands report ErrDisabled.
func TestDisabledCommands(t *testing.T) {
	term := NewTerminal(io.Discard, "", "", quietLogger())
	if err := term.Speak(context.Background(), "hello"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Speak error = %v, want ErrDisabled", err)
	}
	if err := term.PlayAudio(context.Background(), "a.mp3"); !errors.Is(err, ErrDisabled) {
		t.Errorf("PlayAudio error = %v, want ErrDisabled", err)
	}
}

// TestSpeakRunsCommand verifies the text is passed to the speech command.
func TestSpeakRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	term := NewTerminal(io.Discard, "true --voice", "", quietLogger())
	if err := term.Speak(context.Background(), "10 seconds left"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
}

// TestMissingCommand verifies a missing binary surfaces as an error.
func TestMissingCommand(t *testing.T) {
	term := NewTerminal(io.Discard, "", "hangtime-no-such-player", quietLogger())
	if err := term.PlayAudio(context.Background(), "file:///tmp/a.mp3"); err == nil {
		t.Fatal("expected error for missing player")
	}
}

// TestStopAllKillsRunning verifies StopAll ends a long-running cue.
func TestStopAllKillsRunning(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	term := NewTerminal(io.Discard, "sleep", "", quietLogger())

	done := make(chan error, 1)
	go func() { done <- term.Speak(context.Background(), "30") }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		term.mu.Lock()
		n := len(term.running)
		term.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("command never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	term.StopAll()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected error from killed command")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("StopAll did not stop the command")
	}
}

// TestContextCancelStopsCommand verifies cancelling the cue context kills
// the command.
func TestContextCancelStopsCommand(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	term := NewTerminal(io.Discard, "sleep", "", quietLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := term.Speak(ctx, "30"); err == nil {
		t.Fatal("expected error after cancel")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("command outlived its context")
	}
}
