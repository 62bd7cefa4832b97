package trainer

import (
	"context"
	"log/slog"
	"sync"
)

// Playback plays tones, speech and audio files. Implementations may block
// until playback ends and should return when ctx is cancelled.
type Playback interface {
	PlayTone(ctx context.Context, tone Tone) error
	Speak(ctx context.Context, text string) error
	PlayAudio(ctx context.Context, ref string) error
	StopAll()
}

// cuePlayer fires cues in the background. Failures are logged and dropped;
// a cue never holds up the engine loop.
type cuePlayer struct {
	play Playback
	log  *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newCuePlayer(play Playback, log *slog.Logger) *cuePlayer {
	ctx, cancel := context.WithCancel(context.Background())
	return &cuePlayer{play: play, log: log, ctx: ctx, cancel: cancel}
}

func (p *cuePlayer) fire(c cue) {
	if p.play == nil {
		return
	}
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.log.Warn("playback panicked", "panic", r)
			}
		}()
		var err error
		switch {
		case c.tone != "":
			err = p.play.PlayTone(ctx, c.tone)
		case c.speech != "":
			err = p.play.Speak(ctx, c.speech)
		case c.audio != "":
			err = p.play.PlayAudio(ctx, c.audio)
		}
		if err != nil && ctx.Err() == nil {
			p.log.Debug("playback failed", "tone", c.tone, "audio", c.audio, "error", err)
		}
	}()
}

// stop cancels every cue in flight and silences the device.
func (p *cuePlayer) stop() {
	p.mu.Lock()
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()
	if p.play != nil {
		p.play.StopAll()
	}
}

// close stops playback and waits for cue goroutines to return.
func (p *cuePlayer) close() {
	p.stop()
	p.mu.Lock()
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}
