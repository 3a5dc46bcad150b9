// Package analysis provides the driver that feeds classifier results into
// the tempo estimator and the activity timeline and publishes what they emit.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/observability/logging"
	"metronome-ingress-service/internal/observability/metrics"
	"metronome-ingress-service/internal/schema"
	"metronome-ingress-service/internal/service/activity"
	"metronome-ingress-service/internal/service/session"
	"metronome-ingress-service/internal/service/tempo"
)

// ErrQueueFull is reported when a result is dropped because the consumer
// is behind.
var ErrQueueFull = errors.New("analysis queue full")

// Publisher sends finalized events downstream.
type Publisher interface {
	PublishTempo(ctx context.Context, event models.TempoEvent) error
	PublishInterval(ctx context.Context, event models.PlayIntervalEvent) error
}

// Broadcaster fans events out to live subscribers. It must not block.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// Config tunes the driver and the core it owns.
type Config struct {
	Tempo              tempo.Config
	Activity           activity.Config
	SnapLabel          string
	QueueSize          int
	AutoStartMetronome bool // an estimate starts the metronome, which gates further snaps
}

// DefaultConfig returns the stock driver configuration.
func DefaultConfig() Config {
	return Config{
		Tempo:              tempo.DefaultConfig(),
		Activity:           activity.DefaultConfig(),
		SnapLabel:          "finger_snapping",
		QueueSize:          256,
		AutoStartMetronome: true,
	}
}

// Handler owns one estimator and one timeline. It implements
// classifier.Callback: OnResult only enqueues, and Run drains the queue on a
// single goroutine so the core is never entered concurrently.
type Handler struct {
	cfg       Config
	session   *session.Session
	publisher Publisher
	validator *schema.Validator
	live      Broadcaster
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger

	queue chan models.ClassificationResult

	// mu guards the core and the flags below
	mu               sync.RWMutex
	estimator        *tempo.Estimator
	timeline         *activity.Timeline
	metronomeRunning bool
	estimates        []tempo.Estimate // filled by the estimator observer
	dropped          uint64
}

// Option customizes a Handler.
type Option func(*Handler)

// WithBroadcaster registers a live subscriber hub.
func WithBroadcaster(b Broadcaster) Option {
	return func(h *Handler) { h.live = b }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides the clock used for results that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler builds the core from cfg. It fails on invalid core configuration.
func NewHandler(cfg Config, sess *session.Session, publisher Publisher, opts ...Option) (*Handler, error) {
	if cfg.SnapLabel == "" {
		return nil, fmt.Errorf("%w: empty snap label", tempo.ErrInvalidConfig)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	h := &Handler{
		cfg:       cfg,
		session:   sess,
		publisher: publisher,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
		now:       time.Now,
		log:       logging.WithSession(sess.ID()),
		queue:     make(chan models.ClassificationResult, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(h)
	}

	est, err := tempo.New(cfg.Tempo,
		tempo.WithClock(h.now),
		tempo.WithObserver(func(e tempo.Estimate) {
			// Runs inline with AddAt under mu; publication happens after unlock.
			h.estimates = append(h.estimates, e)
		}),
	)
	if err != nil {
		return nil, err
	}
	tl, err := activity.New(cfg.Activity, activity.WithClock(h.now))
	if err != nil {
		return nil, err
	}
	h.estimator = est
	h.timeline = tl
	return h, nil
}

// --- classifier.Callback implementation ---

// OnResult enqueues a result without blocking. A full queue drops it.
func (h *Handler) OnResult(result models.ClassificationResult) {
	select {
	case h.queue <- result:
		h.metrics.RecordResultAccepted(len(h.queue))
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		h.metrics.RecordResultDropped("queue_full")
		h.log.Warn().Err(ErrQueueFull).Int("capacity", cap(h.queue)).Msg("Classifier result dropped")
	}
}

// OnError logs a classifier source failure. The core state is kept.
func (h *Handler) OnError(err error) {
	h.metrics.RecordSourceError("classifier")
	h.log.Error().Err(err).Msg("Classifier source error")
}

// Run consumes queued results until ctx is done.
func (h *Handler) Run(ctx context.Context) {
	h.log.Info().Int("queueSize", cap(h.queue)).Msg("Analysis driver started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Analysis driver stopped")
			return
		case res := <-h.queue:
			h.metrics.QueueDepth.Set(float64(len(h.queue)))
			h.process(ctx, res)
		}
	}
}

// process applies one result to the core, then publishes what it produced.
func (h *Handler) process(ctx context.Context, res models.ClassificationResult) {
	at := res.Timestamp
	if at.IsZero() {
		at = h.now()
	}

	h.mu.Lock()
	var (
		outcome   tempo.Outcome
		snapFed   bool
		pending   int
		estimates []tempo.Estimate
	)
	if snap, ok := res.Find(h.cfg.SnapLabel); ok && !h.metronomeRunning {
		outcome = h.estimator.AddAt(at, snap.Confidence)
		snapFed = true
		pending = h.estimator.Pending()
	}
	estimates, h.estimates = h.estimates, nil
	if len(estimates) > 0 && h.cfg.AutoStartMetronome {
		h.metronomeRunning = true
	}

	current := h.timeline.CurrentLabel()
	var obs []activity.Observation
	for _, c := range res.Classifications {
		if c.Label == current {
			obs = append(obs, activity.Observation{Label: c.Label, Confidence: c.Confidence})
		}
	}
	update := h.timeline.UpdateAt(at, obs)
	h.mu.Unlock()

	if snapFed {
		h.metrics.RecordSnapSample(outcome.String(), pending)
		if outcome == tempo.OutcomeRejectedInconsistent || outcome == tempo.OutcomeRejectedDegenerate {
			h.log.Debug().Str("outcome", outcome.String()).Msg("Tempo bar rejected")
		}
	}
	for _, label := range update.Started {
		h.metrics.RecordPlayStarted(label)
		logger := logging.WithLabel(h.session.ID(), label)
		logger.Info().Time("at", at).Msg("Play started")
	}
	h.metrics.RecordFalseStops(current, update.FalseStops)

	for _, est := range estimates {
		h.emitTempo(ctx, est)
	}
	for _, iv := range update.Completed {
		h.emitInterval(ctx, iv)
	}
}

func (h *Handler) emitTempo(ctx context.Context, est tempo.Estimate) {
	h.metrics.RecordTempo(est.BPM)

	ev := models.TempoEvent{
		EventType:   models.EventTypeTempo,
		SessionID:   h.session.ID(),
		EventID:     h.session.NextTempoID(),
		Timestamp:   est.At.UnixMilli(),
		BPM:         est.BPM,
		BeatsPerBar: h.cfg.Tempo.BeatsPerBar,
		OnsetCount:  est.Onsets,
		MeanGapMs:   est.MeanGap.Milliseconds(),
	}

	h.log.Info().
		Str("eventId", ev.EventID).
		Int("bpm", ev.BPM).
		Int("onsets", ev.OnsetCount).
		Msg("Tempo estimated")

	if err := h.validator.Validate(ev); err != nil {
		h.log.Error().Err(err).Str("eventId", ev.EventID).Msg("Tempo event failed validation")
		return
	}
	if err := h.publisher.PublishTempo(ctx, ev); err != nil {
		h.log.Error().Err(err).Str("eventId", ev.EventID).Msg("Failed to publish tempo")
	}
	if h.live != nil {
		h.live.Broadcast(ev.EventType, ev)
	}
}

func (h *Handler) emitInterval(ctx context.Context, iv activity.PlayInterval) {
	h.metrics.RecordPlayCompleted(iv.Label, iv.Duration().Seconds())

	ev := models.PlayIntervalEvent{
		EventType:  models.EventTypeInterval,
		SessionID:  h.session.ID(),
		EventID:    h.session.NextIntervalID(),
		Label:      iv.Label,
		StartMs:    iv.Start.UnixMilli(),
		StopMs:     ceilMillis(iv.Stop),
	}
	ev.Timestamp = ev.StopMs
	ev.DurationMs = ev.StopMs - ev.StartMs

	logger := logging.WithLabel(h.session.ID(), iv.Label)
	logger.Info().
		Str("eventId", ev.EventID).
		Dur("duration", iv.Duration()).
		Msg("Play interval completed")

	if err := h.validator.Validate(ev); err != nil {
		h.log.Error().Err(err).Str("eventId", ev.EventID).Msg("Interval event failed validation")
		return
	}
	if err := h.publisher.PublishInterval(ctx, ev); err != nil {
		h.log.Error().Err(err).Str("eventId", ev.EventID).Msg("Failed to publish interval")
	}
	if h.live != nil {
		h.live.Broadcast(ev.EventType, ev)
	}
}

// ceilMillis rounds t up to the next millisecond so an interval shorter
// than a millisecond still spans one on the wire.
func ceilMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

// SetMetronomeRunning gates snap ingestion. Stopping the metronome lets the
// next bar of snaps set a new tempo.
func (h *Handler) SetMetronomeRunning(running bool) {
	h.mu.Lock()
	h.metronomeRunning = running
	h.mu.Unlock()
	h.log.Info().Bool("running", running).Msg("Metronome state changed")
}

// MetronomeRunning reports whether snaps are currently ignored.
func (h *Handler) MetronomeRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.metronomeRunning
}

// SetCurrentLabel changes the label the timeline is fed. States and history
// recorded for the previous label are kept.
func (h *Handler) SetCurrentLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty label", activity.ErrInvalidConfig)
	}
	h.mu.Lock()
	h.timeline.SetCurrentLabel(label)
	h.mu.Unlock()
	h.log.Info().Str("label", label).Msg("Current label changed")
	return nil
}

// Dropped returns how many results were discarded on a full queue.
func (h *Handler) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// SessionID returns the session the handler publishes under.
func (h *Handler) SessionID() string {
	return h.session.ID()
}

// TempoSummary returns the tempo read model.
func (h *Handler) TempoSummary() models.TempoSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sum := models.TempoSummary{
		SessionID:        h.session.ID(),
		PendingSamples:   h.estimator.Pending(),
		BeatsPerBar:      h.estimator.BeatsPerBar(),
		MetronomeRunning: h.metronomeRunning,
	}
	if est, ok := h.estimator.Last(); ok {
		sum.HasEstimate = true
		sum.BPM = est.BPM
		sum.EstimatedAtMs = est.At.UnixMilli()
	}
	return sum
}

// ActivitySummary returns the activity read model.
func (h *Handler) ActivitySummary() models.ActivitySummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.timeline.Stats()
	history := h.timeline.History()
	states := h.timeline.States()

	sum := models.ActivitySummary{
		SessionID:    h.session.ID(),
		CurrentLabel: h.timeline.CurrentLabel(),
		PlayTimeMs:   stats.Play.Milliseconds(),
		IdleTimeMs:   stats.Idle().Milliseconds(),
		TotalTimeMs:  stats.Total.Milliseconds(),
		Intervals:    make([]models.PlayInterval, 0, len(history)),
		States:       make(map[string]models.LabelState, len(states)),
	}
	for _, iv := range history {
		sum.Intervals = append(sum.Intervals, models.PlayInterval{
			Label:      iv.Label,
			StartMs:    iv.Start.UnixMilli(),
			StopMs:     iv.Stop.UnixMilli(),
			DurationMs: iv.Duration().Milliseconds(),
		})
	}
	for label, st := range states {
		ls := models.LabelState{Phase: st.Phase.String()}
		if !st.Since.IsZero() {
			ls.SinceMs = st.Since.UnixMilli()
		}
		if !st.PendingSince.IsZero() {
			ls.PendingStopMs = st.PendingSince.UnixMilli()
		}
		sum.States[label] = ls
	}
	return sum
}
