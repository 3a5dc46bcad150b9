package grpcapi

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"metronome-ingress-service/internal/models"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestDecodeFrame_Valid(t *testing.T) {
	frame := mustStruct(t, map[string]any{
		"timestampMs": 1718182800500,
		"classifications": []any{
			map[string]any{"label": "finger_snapping", "confidence": 0.95},
			map[string]any{"label": "speech", "confidence": 0},
		},
	})

	res, err := DecodeFrame(frame, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Timestamp.Equal(time.UnixMilli(1718182800500)) {
		t.Errorf("unexpected timestamp %v", res.Timestamp)
	}
	if len(res.Classifications) != 2 {
		t.Fatalf("expected 2 classifications, got %d", len(res.Classifications))
	}
	if c, ok := res.Find("finger_snapping"); !ok || c.Confidence != 0.95 {
		t.Errorf("unexpected snap classification %+v", c)
	}
}

func TestDecodeFrame_MissingTimestampUsesNow(t *testing.T) {
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	frame := mustStruct(t, map[string]any{"classifications": []any{}})

	res, err := DecodeFrame(frame, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Timestamp.Equal(now) {
		t.Errorf("expected now, got %v", res.Timestamp)
	}
	if len(res.Classifications) != 0 {
		t.Errorf("expected no classifications, got %d", len(res.Classifications))
	}
}

func TestDecodeFrame_Invalid(t *testing.T) {
	entry := func(label any, conf any) map[string]any {
		return map[string]any{"label": label, "confidence": conf}
	}

	tests := []struct {
		name  string
		frame map[string]any
	}{
		{"empty", map[string]any{}},
		{"no classifications", map[string]any{"timestampMs": 1}},
		{"classifications not a list", map[string]any{"classifications": "x"}},
		{"timestamp string", map[string]any{"timestampMs": "now", "classifications": []any{}}},
		{"negative timestamp", map[string]any{"timestampMs": -5, "classifications": []any{}}},
		{"empty label", map[string]any{"classifications": []any{entry("", 0.5)}}},
		{"label not string", map[string]any{"classifications": []any{entry(3, 0.5)}}},
		{"confidence above one", map[string]any{"classifications": []any{entry("a", 1.5)}}},
		{"confidence negative", map[string]any{"classifications": []any{entry("a", -0.1)}}},
		{"confidence missing", map[string]any{"classifications": []any{map[string]any{"label": "a"}}}},
		{"entry not struct", map[string]any{"classifications": []any{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(mustStruct(t, tt.frame), time.Now())
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("expected ErrInvalidFrame, got %v", err)
			}
		})
	}
}

func TestDecodeFrame_Nil(t *testing.T) {
	if _, err := DecodeFrame(nil, time.Now()); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("expected ErrInvalidFrame, got %v", err)
	}
}

func TestEncodeFrame_RoundTrip(t *testing.T) {
	in := models.ClassificationResult{
		Timestamp: time.UnixMilli(1718182801250),
		Classifications: []models.Classification{
			{Label: "bowed_string_instrument", Confidence: 0.8},
		},
	}

	frame, err := EncodeFrame(in)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	out, err := DecodeFrame(frame, time.Time{})
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp %v, want %v", out.Timestamp, in.Timestamp)
	}
	if len(out.Classifications) != 1 || out.Classifications[0] != in.Classifications[0] {
		t.Errorf("classifications %+v, want %+v", out.Classifications, in.Classifications)
	}
}

func TestAck_RoundTrip(t *testing.T) {
	s, err := encodeAck(Ack{SessionID: "sess", FramesReceived: 10, FramesRejected: 2})
	if err != nil {
		t.Fatalf("encodeAck: %v", err)
	}
	ack := DecodeAck(s)
	if ack.SessionID != "sess" || ack.FramesReceived != 10 || ack.FramesRejected != 2 {
		t.Errorf("unexpected ack %+v", ack)
	}
}
