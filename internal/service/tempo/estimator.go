// Package tempo turns a snap-class confidence stream into beats-per-minute
// estimates using rising-edge onset detection and inter-onset consistency.
package tempo

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by New for configuration that can never
// produce an estimate.
var ErrInvalidConfig = errors.New("invalid tempo configuration")

// Config holds estimator tuning. It is immutable once passed to New.
type Config struct {
	OnsetThreshold float64 // confidence at or above which a sample counts as "above"
	BeatsPerBar    int     // minimum onsets before an estimate is attempted
	GapTolerance   float64 // allowed fractional deviation of each gap from the mean
	ValidateGaps   bool    // apply the gap consistency policy
}

// DefaultConfig returns the stock snap detector settings.
func DefaultConfig() Config {
	return Config{
		OnsetThreshold: 0.85,
		BeatsPerBar:    4,
		GapTolerance:   0.10,
		ValidateGaps:   true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BeatsPerBar < 2 {
		return fmt.Errorf("%w: beatsPerBar must be at least 2, got %d", ErrInvalidConfig, c.BeatsPerBar)
	}
	if c.OnsetThreshold < 0 || c.OnsetThreshold > 1 {
		return fmt.Errorf("%w: onset threshold %v outside [0,1]", ErrInvalidConfig, c.OnsetThreshold)
	}
	if c.GapTolerance < 0 || c.GapTolerance >= 1 {
		return fmt.Errorf("%w: gap tolerance %v outside [0,1)", ErrInvalidConfig, c.GapTolerance)
	}
	return nil
}

// Estimate is a finalized tempo reading.
type Estimate struct {
	BPM     int
	At      time.Time // timestamp of the sample that completed the bar
	Onsets  int
	MeanGap time.Duration
}

// Outcome describes what a single Add did to the estimator.
type Outcome int

const (
	// OutcomeBuffered - sample kept, not enough onsets yet.
	OutcomeBuffered Outcome = iota
	// OutcomeEstimated - a new estimate was emitted and the buffer cleared.
	OutcomeEstimated
	// OutcomeRejectedInconsistent - a gap fell outside tolerance; buffer cleared.
	OutcomeRejectedInconsistent
	// OutcomeRejectedDegenerate - mean gap could not yield a tempo; buffer cleared.
	OutcomeRejectedDegenerate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBuffered:
		return "buffered"
	case OutcomeEstimated:
		return "estimated"
	case OutcomeRejectedInconsistent:
		return "inconsistent"
	case OutcomeRejectedDegenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Observer is notified synchronously, inline with Add, for every new estimate.
// It must not block and must not call back into the estimator.
type Observer func(Estimate)

// Estimator buffers snap confidences until a full bar of evenly spaced
// onsets is available. Not safe for concurrent use; callers serialize.
//
// Buffer lifecycle:
//
//	buffering ──(≥ beatsPerBar onsets, gaps consistent)──▶ emit, clear
//	    │
//	    └────(≥ beatsPerBar onsets, inconsistent or degenerate)──▶ clear
//
// Both exits are full resets; the next estimate is computed from fresh onsets only.
type Estimator struct {
	cfg      Config
	now      func() time.Time
	observer Observer
	samples  []Sample
	last     *Estimate
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithClock overrides the clock used by Add.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) { e.now = now }
}

// WithObserver registers the estimate callback.
func WithObserver(obs Observer) Option {
	return func(e *Estimator) { e.observer = obs }
}

// New validates cfg and returns an empty estimator.
func New(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Add records confidence at the current instant and re-evaluates the buffer.
func (e *Estimator) Add(confidence float64) Outcome {
	return e.AddAt(e.now(), confidence)
}

// AddAt records confidence at the given instant and re-evaluates the buffer.
func (e *Estimator) AddAt(at time.Time, confidence float64) Outcome {
	e.samples = append(e.samples, Sample{At: at, Confidence: confidence})
	return e.evaluate(at)
}

func (e *Estimator) evaluate(at time.Time) Outcome {
	onsets := ExtractOnsets(e.samples, e.cfg.OnsetThreshold)
	if len(onsets) < e.cfg.BeatsPerBar {
		return OutcomeBuffered
	}

	gaps := Gaps(onsets)
	mean := MeanGap(onsets)

	bpm, ok := BPMFromGap(mean)
	if !ok {
		e.reset()
		return OutcomeRejectedDegenerate
	}
	if e.cfg.ValidateGaps && !Consistent(gaps, mean, e.cfg.GapTolerance) {
		e.reset()
		return OutcomeRejectedInconsistent
	}

	est := Estimate{
		BPM:     bpm,
		At:      at,
		Onsets:  len(onsets),
		MeanGap: time.Duration(mean * float64(time.Second)),
	}
	e.last = &est
	e.reset()

	if e.observer != nil {
		e.observer(est)
	}
	return OutcomeEstimated
}

func (e *Estimator) reset() {
	e.samples = nil
}

// Last returns the most recent estimate, if any.
func (e *Estimator) Last() (Estimate, bool) {
	if e.last == nil {
		return Estimate{}, false
	}
	return *e.last, true
}

// Pending returns the number of buffered samples.
func (e *Estimator) Pending() int {
	return len(e.samples)
}

// BeatsPerBar returns the configured minimum onset count.
func (e *Estimator) BeatsPerBar() int {
	return e.cfg.BeatsPerBar
}
