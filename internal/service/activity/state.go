// Package activity tracks, per classifier label, whether an instrument is
// being played, with a stop grace period that absorbs brief confidence dips.
package activity

import (
	"fmt"
	"time"
)

// Phase is the variant tag of a label's State.
type Phase int

const (
	// PhaseIdle - not playing.
	PhaseIdle Phase = iota
	// PhasePlaying - confidence at or above threshold since Since.
	PhasePlaying
	// PhaseStopping - still playing, but confidence has been low since PendingSince.
	PhaseStopping
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePlaying:
		return "PLAYING"
	case PhaseStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// IsActive returns true while a play interval is open (PLAYING or STOPPING).
func (p Phase) IsActive() bool {
	return p == PhasePlaying || p == PhaseStopping
}

// State is a tagged union over the three phases. Since is set for PLAYING
// and STOPPING; PendingSince only for STOPPING.
//
// State transitions:
//
//	IDLE ──high──▶ PLAYING ──low──▶ STOPPING ──low, grace elapsed──▶ IDLE (interval recorded)
//	                  ▲                 │
//	                  └──────high───────┘ (false stop, interval continues)
type State struct {
	Phase        Phase
	Since        time.Time
	PendingSince time.Time
}

// Idle returns the IDLE state.
func Idle() State { return State{Phase: PhaseIdle} }

// Playing returns a PLAYING state started at since.
func Playing(since time.Time) State { return State{Phase: PhasePlaying, Since: since} }

// Stopping returns a STOPPING state for a play started at since with the
// first low reading at pending.
func Stopping(since, pending time.Time) State {
	return State{Phase: PhaseStopping, Since: since, PendingSince: pending}
}

// step is the outcome of feeding one reading into a State.
type step struct {
	next      State
	completed *PlayInterval
	falseStop bool
}

// advance applies one reading. playing is confidence >= playing threshold.
func (s State) advance(label string, playing bool, now time.Time, grace time.Duration) step {
	switch s.Phase {
	case PhaseIdle:
		if playing {
			return step{next: Playing(now)}
		}
		return step{next: s}

	case PhasePlaying:
		if playing {
			return step{next: s}
		}
		return step{next: Stopping(s.Since, now)}

	case PhaseStopping:
		if playing {
			return step{next: Playing(s.Since), falseStop: true}
		}
		if now.Sub(s.PendingSince) > grace {
			return step{
				next:      Idle(),
				completed: &PlayInterval{Start: s.Since, Stop: now, Label: label},
			}
		}
		// Within grace: the earliest pending stop is kept.
		return step{next: s}

	default:
		return step{next: Idle()}
	}
}
