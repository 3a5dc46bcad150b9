// Package schema checks outgoing events before they are published.
package schema

import (
	"errors"
	"fmt"

	"metronome-ingress-service/internal/models"
)

// ErrInvalidEvent is returned for events that must not be published.
var ErrInvalidEvent = errors.New("invalid event")

// Validator checks event payloads against their contract.
type Validator struct{}

// New returns a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate accepts TempoEvent and PlayIntervalEvent values or pointers.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TempoEvent:
		return validateTempo(&e)
	case *models.TempoEvent:
		if e == nil {
			return fmt.Errorf("%w: nil tempo event", ErrInvalidEvent)
		}
		return validateTempo(e)
	case models.PlayIntervalEvent:
		return validateInterval(&e)
	case *models.PlayIntervalEvent:
		if e == nil {
			return fmt.Errorf("%w: nil interval event", ErrInvalidEvent)
		}
		return validateInterval(e)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
}

func validateTempo(e *models.TempoEvent) error {
	if e.EventType != models.EventTypeTempo {
		return fmt.Errorf("%w: eventType %q", ErrInvalidEvent, e.EventType)
	}
	if e.SessionID == "" || e.EventID == "" {
		return fmt.Errorf("%w: missing session or event id", ErrInvalidEvent)
	}
	if e.BPM <= 0 {
		return fmt.Errorf("%w: bpm %d", ErrInvalidEvent, e.BPM)
	}
	if e.OnsetCount < 2 {
		return fmt.Errorf("%w: onset count %d", ErrInvalidEvent, e.OnsetCount)
	}
	return nil
}

func validateInterval(e *models.PlayIntervalEvent) error {
	if e.EventType != models.EventTypeInterval {
		return fmt.Errorf("%w: eventType %q", ErrInvalidEvent, e.EventType)
	}
	if e.SessionID == "" || e.EventID == "" {
		return fmt.Errorf("%w: missing session or event id", ErrInvalidEvent)
	}
	if e.Label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidEvent)
	}
	if e.StartMs >= e.StopMs {
		return fmt.Errorf("%w: start %d not before stop %d", ErrInvalidEvent, e.StartMs, e.StopMs)
	}
	if e.DurationMs != e.StopMs-e.StartMs {
		return fmt.Errorf("%w: duration %d does not match bounds", ErrInvalidEvent, e.DurationMs)
	}
	return nil
}
