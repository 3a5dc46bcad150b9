// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/observability/metrics"
)

// Publisher publishes tempo and activity events to separate Kafka topics.
type Publisher struct {
	writerTempo    *kafka.Writer
	writerActivity *kafka.Writer
	principal      string
	topicTempo     string
	topicActivity  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicTempo    string
	TopicActivity string
	Principal     string
	Enabled       bool
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a Kafka event publisher with one topic for tempo estimates
// and one for completed play intervals.
func New(cfg *Config, opts ...Option) *Publisher {
	p := &Publisher{metrics: metrics.DefaultMetrics}
	defer func() {
		for _, opt := range opts {
			opt(p)
		}
	}()

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return p
	}

	p.principal = cfg.Principal
	p.topicTempo = cfg.TopicTempo
	p.topicActivity = cfg.TopicActivity

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p.writerTempo = newWriter(cfg.Brokers, cfg.TopicTempo, transport)
	p.writerActivity = newWriter(cfg.Brokers, cfg.TopicActivity, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTempo", cfg.TopicTempo).
		Str("topicActivity", cfg.TopicActivity).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishTempo publishes a tempo estimate keyed by session.
func (p *Publisher) PublishTempo(ctx context.Context, event models.TempoEvent) error {
	return p.publish(ctx, p.writerTempo, p.topicTempo, models.EventTypeTempo, event.SessionID, event)
}

// PublishInterval publishes a completed play interval keyed by session.
func (p *Publisher) PublishInterval(ctx context.Context, event models.PlayIntervalEvent) error {
	return p.publish(ctx, p.writerActivity, p.topicActivity, models.EventTypeInterval, event.SessionID, event)
}

// Enabled reports whether events reach Kafka or are only logged.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// publish writes one event to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTempo != nil {
		if e := p.writerTempo.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing tempo writer")
			err = e
		}
	}
	if p.writerActivity != nil {
		if e := p.writerActivity.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing activity writer")
			err = e
		}
	}
	return err
}
