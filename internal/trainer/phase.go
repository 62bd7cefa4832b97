package trainer

// Phase is the timer currently driving the workout.
type Phase int

const (
	// PhaseNone is the state before Start and after the workout ends.
	PhaseNone Phase = iota
	// PhaseCountdown is the lead-in before the first rep of a set.
	PhaseCountdown
	// PhaseWork is a timed hold.
	PhaseWork
	// PhaseRest is the pause between two holds of the same set.
	PhaseRest
)

func (p Phase) String() string {
	switch p {
	case PhaseCountdown:
		return "countdown"
	case PhaseWork:
		return "work"
	case PhaseRest:
		return "rest"
	}
	return "none"
}

// Tone names a short bundled sound.
type Tone string

const (
	ToneHold Tone = "hold_tone"
	ToneRest Tone = "rest_tone"
	ToneBeep Tone = "beep_tone"
)

// cue is a single playback request. Exactly one field is set.
type cue struct {
	tone   Tone
	speech string
	audio  string
}

func toneCue(t Tone) cue        { return cue{tone: t} }
func speechCue(text string) cue { return cue{speech: text} }
func audioCue(ref string) cue   { return cue{audio: ref} }
