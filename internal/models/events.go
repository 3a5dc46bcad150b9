package models

// Event types carried in the eventType field and Kafka header.
const (
	EventTypeTempo    = "metronome.tempo.estimated"
	EventTypeInterval = "metronome.activity.interval"
)

// TempoEvent is published whenever a new tempo estimate is finalized.
type TempoEvent struct {
	EventType   string `json:"eventType"`
	SessionID   string `json:"sessionId"`
	EventID     string `json:"eventId"`
	Timestamp   int64  `json:"timestamp"`
	BPM         int    `json:"bpm"`
	BeatsPerBar int    `json:"beatsPerBar"`
	OnsetCount  int    `json:"onsetCount"`
	MeanGapMs   int64  `json:"meanGapMs"`
}

// PlayIntervalEvent is published when a label's play interval closes.
type PlayIntervalEvent struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	EventID    string `json:"eventId"`
	Timestamp  int64  `json:"timestamp"`
	Label      string `json:"label"`
	StartMs    int64  `json:"startMs"`
	StopMs     int64  `json:"stopMs"`
	DurationMs int64  `json:"durationMs"`
}

// PlayInterval is the read-model form of a completed interval.
type PlayInterval struct {
	Label      string `json:"label"`
	StartMs    int64  `json:"startMs"`
	StopMs     int64  `json:"stopMs"`
	DurationMs int64  `json:"durationMs"`
}

// LabelState is the read-model form of a label's activity state.
type LabelState struct {
	Phase         string `json:"phase"`
	SinceMs       int64  `json:"sinceMs,omitempty"`
	PendingStopMs int64  `json:"pendingStopMs,omitempty"`
}

// ActivitySummary is the read model served by the HTTP API.
type ActivitySummary struct {
	SessionID    string                `json:"sessionId"`
	CurrentLabel string                `json:"currentLabel"`
	PlayTimeMs   int64                 `json:"playTimeMs"`
	IdleTimeMs   int64                 `json:"idleTimeMs"`
	TotalTimeMs  int64                 `json:"totalTimeMs"`
	Intervals    []PlayInterval        `json:"intervals"`
	States       map[string]LabelState `json:"states"`
}

// TempoSummary is the tempo read model served by the HTTP API.
type TempoSummary struct {
	SessionID        string `json:"sessionId"`
	BPM              int    `json:"bpm,omitempty"`
	EstimatedAtMs    int64  `json:"estimatedAtMs,omitempty"`
	HasEstimate      bool   `json:"hasEstimate"`
	PendingSamples   int    `json:"pendingSamples"`
	BeatsPerBar      int    `json:"beatsPerBar"`
	MetronomeRunning bool   `json:"metronomeRunning"`
}
