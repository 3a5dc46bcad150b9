package schema

import (
	"errors"
	"testing"

	"metronome-ingress-service/internal/models"
)

func validTempo() models.TempoEvent {
	return models.TempoEvent{
		EventType:   models.EventTypeTempo,
		SessionID:   "sess",
		EventID:     "sess-bpm-1",
		Timestamp:   1718182800000,
		BPM:         120,
		BeatsPerBar: 4,
		OnsetCount:  4,
		MeanGapMs:   500,
	}
}

func validInterval() models.PlayIntervalEvent {
	return models.PlayIntervalEvent{
		EventType:  models.EventTypeInterval,
		SessionID:  "sess",
		EventID:    "sess-play-1",
		Timestamp:  1718182816000,
		Label:      "bowed_string_instrument",
		StartMs:    1718182800000,
		StopMs:     1718182816000,
		DurationMs: 16000,
	}
}

func TestValidate_Accepts(t *testing.T) {
	v := New()
	tempo := validTempo()
	interval := validInterval()

	for _, ev := range []any{tempo, &tempo, interval, &interval} {
		if err := v.Validate(ev); err != nil {
			t.Errorf("expected %T to validate, got %v", ev, err)
		}
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{"unsupported type", map[string]string{"a": "b"}},
		{"nil tempo pointer", (*models.TempoEvent)(nil)},
		{"nil interval pointer", (*models.PlayIntervalEvent)(nil)},
		{"tempo wrong type", func() any { e := validTempo(); e.EventType = "x"; return e }()},
		{"tempo zero bpm", func() any { e := validTempo(); e.BPM = 0; return e }()},
		{"tempo missing session", func() any { e := validTempo(); e.SessionID = ""; return e }()},
		{"tempo single onset", func() any { e := validTempo(); e.OnsetCount = 1; return e }()},
		{"interval empty label", func() any { e := validInterval(); e.Label = ""; return e }()},
		{"interval reversed", func() any { e := validInterval(); e.StartMs, e.StopMs = e.StopMs, e.StartMs; return e }()},
		{"interval empty", func() any { e := validInterval(); e.StopMs = e.StartMs; e.DurationMs = 0; return e }()},
		{"interval bad duration", func() any { e := validInterval(); e.DurationMs = 1; return e }()},
		{"interval missing event id", func() any { e := validInterval(); e.EventID = ""; return e }()},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
