// Package playback implements trainer cues for a terminal session.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/meltforce/hangtime/internal/trainer"
)

// ErrDisabled is returned when no command is configured for a cue kind.
var ErrDisabled = errors.New("playback command not configured")

// bells per tone, so hold and rest starts can be told apart by ear.
var bells = map[trainer.Tone]int{
	trainer.ToneHold: 2,
	trainer.ToneRest: 1,
	trainer.ToneBeep: 1,
}

// Terminal rings the terminal bell for tones and shells out for speech and
// audio files.
type Terminal struct {
	out    io.Writer
	speech []string
	player []string
	log    *slog.Logger

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
}

// NewTerminal creates a Terminal. speech and player are command lines the
// text or file path is appended to; an empty string disables that cue kind.
func NewTerminal(out io.Writer, speech, player string, log *slog.Logger) *Terminal {
	return &Terminal{
		out:     out,
		speech:  strings.Fields(speech),
		player:  strings.Fields(player),
		log:     log,
		running: make(map[*exec.Cmd]struct{}),
	}
}

// DefaultSpeechCommand is the text-to-speech command for this platform.
func DefaultSpeechCommand() string {
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

// DefaultPlayerCommand is the audio player command for this platform.
func DefaultPlayerCommand() string {
	if runtime.GOOS == "darwin" {
		return "afplay"
	}
	return "ffplay -nodisp -autoexit -loglevel quiet"
}

func (t *Terminal) PlayTone(ctx context.Context, tone trainer.Tone) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, ok := bells[tone]
	if !ok {
		return fmt.Errorf("unknown tone %q", tone)
	}
	_, err := io.WriteString(t.out, strings.Repeat("\a", n))
	return err
}

func (t *Terminal) Speak(ctx context.Context, text string) error {
	return t.run(ctx, t.speech, text)
}

func (t *Terminal) PlayAudio(ctx context.Context, ref string) error {
	return t.run(ctx, t.player, strings.TrimPrefix(ref, "file://"))
}

// StopAll kills every command still running.
func (t *Terminal) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for cmd := range t.running {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}

func (t *Terminal) run(ctx context.Context, argv []string, arg string) error {
	if len(argv) == 0 {
		return ErrDisabled
	}
	args := append(append([]string(nil), argv[1:]...), arg)
	cmd := exec.CommandContext(ctx, argv[0], args...)

	t.mu.Lock()
	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	t.running[cmd] = struct{}{}
	t.mu.Unlock()
	t.log.Debug("playback command started", "cmd", argv[0], "arg", arg)

	err := cmd.Wait()

	t.mu.Lock()
	delete(t.running, cmd)
	t.mu.Unlock()

	if err != nil {
		return fmt.Errorf("running %s: %w", argv[0], err)
	}
	return nil
}

// Nop discards every cue.
type Nop struct{}

func (Nop) PlayTone(context.Context, trainer.Tone) error { return nil }
func (Nop) Speak(context.Context, string) error          { return nil }
func (Nop) PlayAudio(context.Context, string) error      { return nil }
func (Nop) StopAll()                                     {}
