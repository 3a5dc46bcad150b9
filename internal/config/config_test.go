package config

import (
	"os"
	"testing"
	"time"
)

var allEnvVars = []string{
	"SERVICE_PRINCIPAL", "GRPC_PORT", "HTTP_PORT", "METRICS_ADDR",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"CLASSIFIER_SOURCE", "CLASSIFIER_INTERVAL", "SNAP_LABEL", "INSTRUMENT_LABEL",
	"TEMPO_ONSET_THRESHOLD", "TEMPO_BEATS_PER_BAR", "TEMPO_GAP_TOLERANCE", "TEMPO_VALIDATE_GAPS",
	"ACTIVITY_PLAYING_THRESHOLD", "ACTIVITY_STOP_GRACE", "ANALYSIS_QUEUE_SIZE",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_TOPIC_TEMPO", "KAFKA_TOPIC_ACTIVITY", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range allEnvVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	// Service defaults
	if cfg.Service.Principal != "svc-metronome-ingress" {
		t.Errorf("expected default principal 'svc-metronome-ingress', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Service.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port '8080', got %s", cfg.Service.HTTPPort)
	}

	// Classifier defaults
	if cfg.Classifier.Source != SourceGRPC {
		t.Errorf("expected default source 'grpc', got %s", cfg.Classifier.Source)
	}
	if cfg.Classifier.Interval != 50*time.Millisecond {
		t.Errorf("expected default interval 50ms, got %v", cfg.Classifier.Interval)
	}
	if cfg.Classifier.SnapLabel != "finger_snapping" {
		t.Errorf("expected default snap label, got %s", cfg.Classifier.SnapLabel)
	}
	if cfg.Classifier.InstrumentLabel != "bowed_string_instrument" {
		t.Errorf("expected default instrument label, got %s", cfg.Classifier.InstrumentLabel)
	}

	// Core defaults
	if cfg.Tempo.OnsetThreshold != 0.85 || cfg.Tempo.BeatsPerBar != 4 ||
		cfg.Tempo.GapTolerance != 0.10 || !cfg.Tempo.ValidateGaps {
		t.Errorf("unexpected tempo defaults %+v", cfg.Tempo)
	}
	if cfg.Activity.PlayingThreshold != 0.5 || cfg.Activity.StopGrace != 5*time.Second {
		t.Errorf("unexpected activity defaults %+v", cfg.Activity)
	}
	if cfg.Analysis.QueueSize != 256 {
		t.Errorf("expected default queue size 256, got %d", cfg.Analysis.QueueSize)
	}

	// Kafka defaults
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.TopicTempo != "metronome.tempo.estimated" {
		t.Errorf("unexpected tempo topic %s", cfg.Kafka.TopicTempo)
	}
	if cfg.Kafka.TopicActivity != "metronome.activity.interval" {
		t.Errorf("unexpected activity topic %s", cfg.Kafka.TopicActivity)
	}

	// Observability defaults
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
	if cfg.Observability.MetricsAddr != ":9090" {
		t.Errorf("expected default metrics addr ':9090', got %s", cfg.Observability.MetricsAddr)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("CLASSIFIER_SOURCE", "MOCK")
	os.Setenv("CLASSIFIER_INTERVAL", "100ms")
	os.Setenv("INSTRUMENT_LABEL", "guitar")
	os.Setenv("TEMPO_BEATS_PER_BAR", "3")
	os.Setenv("TEMPO_GAP_TOLERANCE", "0.2")
	os.Setenv("TEMPO_VALIDATE_GAPS", "false")
	os.Setenv("ACTIVITY_PLAYING_THRESHOLD", "0.25")
	os.Setenv("ACTIVITY_STOP_GRACE", "2s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Classifier.Source != SourceMock {
		t.Errorf("expected source 'mock', got %s", cfg.Classifier.Source)
	}
	if cfg.Classifier.Interval != 100*time.Millisecond {
		t.Errorf("expected interval 100ms, got %v", cfg.Classifier.Interval)
	}

	tc := cfg.TempoEstimator()
	if tc.BeatsPerBar != 3 || tc.GapTolerance != 0.2 || tc.ValidateGaps {
		t.Errorf("unexpected tempo config %+v", tc)
	}
	if tc.OnsetThreshold != 0.85 {
		t.Errorf("expected untouched onset threshold, got %v", tc.OnsetThreshold)
	}

	ac := cfg.ActivityTimeline()
	if ac.PlayingThreshold != 0.25 || ac.StopGrace != 2*time.Second || ac.CurrentLabel != "guitar" {
		t.Errorf("unexpected activity config %+v", ac)
	}

	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "kafka-1:9092" || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("CLASSIFIER_INTERVAL", "invalid")
	os.Setenv("TEMPO_ONSET_THRESHOLD", "high")
	os.Setenv("TEMPO_BEATS_PER_BAR", "four")
	os.Setenv("TEMPO_VALIDATE_GAPS", "maybe")
	os.Setenv("ACTIVITY_STOP_GRACE", "5")
	os.Setenv("ANALYSIS_QUEUE_SIZE", "lots")
	defer clearEnv()

	cfg := Load()

	// Should fall back to defaults on parse errors
	if cfg.Classifier.Interval != 50*time.Millisecond {
		t.Errorf("expected default interval on invalid input, got %v", cfg.Classifier.Interval)
	}
	if cfg.Tempo.OnsetThreshold != 0.85 {
		t.Errorf("expected default threshold on invalid input, got %v", cfg.Tempo.OnsetThreshold)
	}
	if cfg.Tempo.BeatsPerBar != 4 {
		t.Errorf("expected default beats per bar on invalid input, got %d", cfg.Tempo.BeatsPerBar)
	}
	if !cfg.Tempo.ValidateGaps {
		t.Error("expected default gap validation on invalid input")
	}
	if cfg.Activity.StopGrace != 5*time.Second {
		t.Errorf("expected default grace on unitless input, got %v", cfg.Activity.StopGrace)
	}
	if cfg.Analysis.QueueSize != 256 {
		t.Errorf("expected default queue size on invalid input, got %d", cfg.Analysis.QueueSize)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvList(t *testing.T) {
	os.Setenv("TEST_LIST_VAR", " a , ,b")
	defer os.Unsetenv("TEST_LIST_VAR")

	got := envList("TEST_LIST_VAR")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected list %v", got)
	}
	if envList("TEST_LIST_UNSET") != nil {
		t.Error("expected nil for unset variable")
	}
}
