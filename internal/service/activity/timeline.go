package activity

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by New for unusable thresholds.
var ErrInvalidConfig = errors.New("invalid activity configuration")

// DefaultLabel is the label of interest when none is configured.
const DefaultLabel = "bowed_string_instrument"

// Config holds tracker tuning. It is immutable once passed to New.
type Config struct {
	PlayingThreshold float64       // confidence at or above which a label is playing
	StopGrace        time.Duration // how long confidence must stay low before a stop counts
	CurrentLabel     string        // initial label of interest
}

// DefaultConfig returns the stock tracker settings.
func DefaultConfig() Config {
	return Config{
		PlayingThreshold: 0.5,
		StopGrace:        5 * time.Second,
		CurrentLabel:     DefaultLabel,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PlayingThreshold < 0 || c.PlayingThreshold > 1 {
		return fmt.Errorf("%w: playing threshold %v outside [0,1]", ErrInvalidConfig, c.PlayingThreshold)
	}
	if c.StopGrace < 0 {
		return fmt.Errorf("%w: negative stop grace %v", ErrInvalidConfig, c.StopGrace)
	}
	return nil
}

// Observation is one label's confidence within a classifier batch.
type Observation struct {
	Label      string
	Confidence float64
}

// PlayInterval is a closed range during which a label was continuously playing.
type PlayInterval struct {
	Start time.Time
	Stop  time.Time
	Label string
}

// Duration returns |Stop - Start|.
func (p PlayInterval) Duration() time.Duration {
	d := p.Stop.Sub(p.Start)
	if d < 0 {
		return -d
	}
	return d
}

// UpdateResult reports what a batch changed.
type UpdateResult struct {
	Completed  []PlayInterval
	Started    []string
	FalseStops int
}

// Timeline holds per-label play state and the append-only interval history.
// Not safe for concurrent use; callers serialize.
type Timeline struct {
	cfg     Config
	now     func() time.Time
	states  map[string]State
	history []PlayInterval
	current string
}

// Option customizes a Timeline.
type Option func(*Timeline)

// WithClock overrides the clock used by Update.
func WithClock(now func() time.Time) Option {
	return func(t *Timeline) { t.now = now }
}

// New validates cfg and returns an empty timeline.
func New(cfg Config, opts ...Option) (*Timeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	current := cfg.CurrentLabel
	if current == "" {
		current = DefaultLabel
	}
	t := &Timeline{
		cfg:     cfg,
		now:     time.Now,
		states:  make(map[string]State),
		current: current,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Update applies one classifier batch at the current instant.
func (t *Timeline) Update(observations []Observation) UpdateResult {
	return t.UpdateAt(t.now(), observations)
}

// UpdateAt applies one classifier batch observed at now.
func (t *Timeline) UpdateAt(now time.Time, observations []Observation) UpdateResult {
	var res UpdateResult
	for _, obs := range observations {
		prev := t.states[obs.Label]
		st := prev.advance(obs.Label, obs.Confidence >= t.cfg.PlayingThreshold, now, t.cfg.StopGrace)

		if st.completed != nil {
			t.history = append(t.history, *st.completed)
			res.Completed = append(res.Completed, *st.completed)
		}
		if st.falseStop {
			res.FalseStops++
		}
		if prev.Phase == PhaseIdle && st.next.Phase == PhasePlaying {
			res.Started = append(res.Started, obs.Label)
		}

		if st.next.Phase == PhaseIdle {
			delete(t.states, obs.Label)
		} else {
			t.states[obs.Label] = st.next
		}
	}
	return res
}

// State returns the current state of label (IDLE when never seen).
func (t *Timeline) State(label string) State {
	return t.states[label]
}

// States returns a copy of every non-idle label state.
func (t *Timeline) States() map[string]State {
	out := make(map[string]State, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// History returns a copy of the completed intervals in insertion order.
func (t *Timeline) History() []PlayInterval {
	out := make([]PlayInterval, len(t.history))
	copy(out, t.history)
	return out
}

// CurrentLabel returns the label of interest.
func (t *Timeline) CurrentLabel() string {
	return t.current
}

// SetCurrentLabel changes the label of interest. Existing state and history
// for other labels are kept.
func (t *Timeline) SetCurrentLabel(label string) {
	t.current = label
}

// PlayingThreshold returns the configured playing threshold.
func (t *Timeline) PlayingThreshold() float64 {
	return t.cfg.PlayingThreshold
}

// PlayTime is the summed duration of every recorded interval.
func (t *Timeline) PlayTime() time.Duration {
	return summarize(t.history).Play
}

// TotalTime spans from the earliest start to the latest stop, 0 when empty.
func (t *Timeline) TotalTime() time.Duration {
	return summarize(t.history).Total
}

// IdleTime is TotalTime minus PlayTime.
func (t *Timeline) IdleTime() time.Duration {
	return summarize(t.history).Idle()
}

// Stats returns all three totals computed in one pass.
func (t *Timeline) Stats() Stats {
	return summarize(t.history)
}

// StatsFor returns totals over the intervals of a single label.
func (t *Timeline) StatsFor(label string) Stats {
	var subset []PlayInterval
	for _, p := range t.history {
		if p.Label == label {
			subset = append(subset, p)
		}
	}
	return summarize(subset)
}
