package player

import "github.com/changdang/companion/internal/audio"

// DefaultRate is the playback rate of a fresh or reset controller.
const DefaultRate = 1.0

// State is the controller's view of playback. Times are in seconds.
type State struct {
	CurrentSource string // empty when idle
	CurrentTitle  string
	IsPlaying     bool
	PlaybackRate  float64
	Duration      float64
	CurrentTime   float64
}

// DefaultState returns the idle state.
func DefaultState() State {
	return State{PlaybackRate: DefaultRate}
}

// Phase is the conceptual state derived from State.
type Phase int

const (
	// PhaseIdle means no source is bound.
	PhaseIdle Phase = iota
	// PhaseLoaded means a source is bound but not playing.
	PhaseLoaded
	// PhasePlaying means the device reported playback.
	PhasePlaying
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoaded:
		return "paused"
	case PhasePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Phase reports which conceptual state s is in.
func (s State) Phase() Phase {
	switch {
	case s.IsPlaying:
		return PhasePlaying
	case s.CurrentSource != "":
		return PhaseLoaded
	default:
		return PhaseIdle
	}
}

// Readout is what the device reported for duration and position when an
// event was handled.
type Readout struct {
	Duration    float64
	CurrentTime float64
}

// Reduce applies one device event to s. It is pure: the caller supplies the
// device readout taken at event time.
func Reduce(s State, ev audio.Event, d Readout) State {
	switch ev.Type {
	case audio.EventPlay:
		s.IsPlaying = true
		if d.Duration > 0 {
			s.Duration = d.Duration
		}
	case audio.EventPause:
		s.IsPlaying = false
	case audio.EventStop:
		s.IsPlaying = false
		s.CurrentTime = 0
	case audio.EventEnded:
		s.IsPlaying = false
		if d.Duration > 0 {
			s.Duration = d.Duration
		}
		s.CurrentTime = s.Duration
	case audio.EventTimeUpdate:
		s.Duration = d.Duration
		s.CurrentTime = d.CurrentTime
	case audio.EventError:
		s.IsPlaying = false
	}
	return s
}
