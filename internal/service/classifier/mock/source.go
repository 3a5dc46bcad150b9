// Package mock provides a scripted classifier source for running the service
// without a real sound classifier. It cycles through a snapped bar at a fixed
// tempo, an instrument play phase with one brief dip, and a rest long enough
// for the stop grace to elapse.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/service/classifier"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("mock source already started")
	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("mock source closed")
)

// Script shapes the simulated performance.
type Script struct {
	Interval        time.Duration // cadence between results
	SnapLabel       string
	InstrumentLabel string
	BPM             int           // snapped tempo
	SnapBeats       int           // snaps per cycle
	PlayFor         time.Duration // instrument play phase length
	DipAt           time.Duration // offset of the dip within the play phase
	DipFor          time.Duration // dip length, kept shorter than the stop grace
	RestFor         time.Duration // idle tail of each cycle
}

// DefaultScript mirrors a 0.5s classifier window with 0.9 overlap.
func DefaultScript() Script {
	return Script{
		Interval:        50 * time.Millisecond,
		SnapLabel:       "finger_snapping",
		InstrumentLabel: "bowed_string_instrument",
		BPM:             100,
		SnapBeats:       8,
		PlayFor:         12 * time.Second,
		DipAt:           4 * time.Second,
		DipFor:          time.Second,
		RestFor:         8 * time.Second,
	}
}

func (s Script) beatGap() time.Duration {
	if s.BPM <= 0 {
		return time.Second
	}
	return time.Minute / time.Duration(s.BPM)
}

// Cycle returns the length of one full snap/play/rest cycle.
func (s Script) Cycle() time.Duration {
	return s.beatGap()*time.Duration(s.SnapBeats) + s.PlayFor + s.RestFor
}

// Classify returns the scores emitted at elapsed time into the script.
func (s Script) Classify(elapsed time.Duration) []models.Classification {
	if cycle := s.Cycle(); cycle > 0 {
		elapsed %= cycle
	}

	snap, instrument := 0.02, 0.05
	snapPhase := s.beatGap() * time.Duration(s.SnapBeats)

	switch {
	case elapsed < snapPhase:
		if elapsed%s.beatGap() < s.Interval {
			snap = 0.95
		}
	case elapsed < snapPhase+s.PlayFor:
		into := elapsed - snapPhase
		instrument = 0.8
		if into >= s.DipAt && into < s.DipAt+s.DipFor {
			instrument = 0.2
		}
	}

	return []models.Classification{
		{Label: s.SnapLabel, Confidence: snap},
		{Label: s.InstrumentLabel, Confidence: instrument},
		{Label: "speech", Confidence: 0.01},
	}
}

// Source implements classifier.Source with scripted results.
// Result timestamps are synthetic (start + n*Interval) so the downstream
// timing is deterministic regardless of ticker jitter.
type Source struct {
	script Script
	now    func() time.Time

	mu     sync.Mutex
	cb     classifier.Callback
	cancel context.CancelFunc
	done   chan struct{}
	ticks  int64
	start  time.Time
	closed bool
}

// New creates a mock source.
func New(script Script) *Source {
	if script.Interval <= 0 {
		script.Interval = DefaultScript().Interval
	}
	return &Source{script: script, now: time.Now}
}

// Start begins emitting results on a ticker until ctx is done or Close is called.
func (s *Source) Start(ctx context.Context, cb classifier.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.cb != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cb = cb
	s.cancel = cancel
	s.done = make(chan struct{})
	s.start = s.now()

	go s.run(runCtx)
	return nil
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.script.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit()
		}
	}
}

func (s *Source) emit() {
	s.mu.Lock()
	if s.closed || s.cb == nil {
		s.mu.Unlock()
		return
	}
	elapsed := time.Duration(s.ticks) * s.script.Interval
	s.ticks++
	cb := s.cb
	at := s.start.Add(elapsed)
	s.mu.Unlock()

	cb.OnResult(models.ClassificationResult{
		Timestamp:       at,
		Classifications: s.script.Classify(elapsed),
	})
}

// Emitted returns how many results have been delivered.
func (s *Source) Emitted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Close stops the source and waits for the emitter goroutine. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
