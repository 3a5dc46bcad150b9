// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"metronome-ingress-service/internal/service/activity"
	"metronome-ingress-service/internal/service/tempo"
)

// Classifier source kinds.
const (
	SourceGRPC = "grpc"
	SourceMock = "mock"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Classifier    ClassifierConfig
	Tempo         TempoConfig
	Activity      ActivityConfig
	Analysis      AnalysisConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
}

// ClassifierConfig selects where classification results come from.
type ClassifierConfig struct {
	Source          string // grpc or mock
	Interval        time.Duration
	SnapLabel       string
	InstrumentLabel string
}

// TempoConfig mirrors tempo.Config.
type TempoConfig struct {
	OnsetThreshold float64
	BeatsPerBar    int
	GapTolerance   float64
	ValidateGaps   bool
}

// ActivityConfig mirrors activity.Config.
type ActivityConfig struct {
	PlayingThreshold float64
	StopGrace        time.Duration
}

// AnalysisConfig tunes the analysis driver.
type AnalysisConfig struct {
	QueueSize int
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicTempo    string
	TopicActivity string
	Principal     string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	LogFile     string
	MetricsAddr string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-metronome-ingress")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Classifier: ClassifierConfig{
			Source:          strings.ToLower(envOrDefault("CLASSIFIER_SOURCE", SourceGRPC)),
			Interval:        envOrDefaultDuration("CLASSIFIER_INTERVAL", 50*time.Millisecond),
			SnapLabel:       envOrDefault("SNAP_LABEL", "finger_snapping"),
			InstrumentLabel: envOrDefault("INSTRUMENT_LABEL", activity.DefaultLabel),
		},
		Tempo: TempoConfig{
			OnsetThreshold: envOrDefaultFloat("TEMPO_ONSET_THRESHOLD", 0.85),
			BeatsPerBar:    envOrDefaultInt("TEMPO_BEATS_PER_BAR", 4),
			GapTolerance:   envOrDefaultFloat("TEMPO_GAP_TOLERANCE", 0.10),
			ValidateGaps:   envOrDefaultBool("TEMPO_VALIDATE_GAPS", true),
		},
		Activity: ActivityConfig{
			PlayingThreshold: envOrDefaultFloat("ACTIVITY_PLAYING_THRESHOLD", 0.5),
			StopGrace:        envOrDefaultDuration("ACTIVITY_STOP_GRACE", 5*time.Second),
		},
		Analysis: AnalysisConfig{
			QueueSize: envOrDefaultInt("ANALYSIS_QUEUE_SIZE", 256),
		},
		Kafka: KafkaConfig{
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envList("KAFKA_BROKERS"),
			TopicTempo:    envOrDefault("KAFKA_TOPIC_TEMPO", "metronome.tempo.estimated"),
			TopicActivity: envOrDefault("KAFKA_TOPIC_ACTIVITY", "metronome.activity.interval"),
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			LogFile:     os.Getenv("LOG_FILE"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

// TempoEstimator converts the tempo section to estimator configuration.
func (c *Config) TempoEstimator() tempo.Config {
	return tempo.Config{
		OnsetThreshold: c.Tempo.OnsetThreshold,
		BeatsPerBar:    c.Tempo.BeatsPerBar,
		GapTolerance:   c.Tempo.GapTolerance,
		ValidateGaps:   c.Tempo.ValidateGaps,
	}
}

// ActivityTimeline converts the activity section to timeline configuration.
func (c *Config) ActivityTimeline() activity.Config {
	return activity.Config{
		PlayingThreshold: c.Activity.PlayingThreshold,
		StopGrace:        c.Activity.StopGrace,
		CurrentLabel:     c.Classifier.InstrumentLabel,
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envList splits a comma separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
