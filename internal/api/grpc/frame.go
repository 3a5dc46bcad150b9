package grpcapi

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"metronome-ingress-service/internal/models"
)

// ErrInvalidFrame is returned for frames that cannot be turned into a result.
var ErrInvalidFrame = errors.New("invalid classification frame")

// Frame and ack field names.
const (
	fieldTimestamp       = "timestampMs"
	fieldClassifications = "classifications"
	fieldLabel           = "label"
	fieldConfidence      = "confidence"
	fieldSessionID       = "sessionId"
	fieldFramesReceived  = "framesReceived"
	fieldFramesRejected  = "framesRejected"
)

// DecodeFrame converts a request frame into a classifier result. A frame
// without timestampMs is stamped with now.
func DecodeFrame(frame *structpb.Struct, now time.Time) (models.ClassificationResult, error) {
	fields := frame.GetFields()
	if fields == nil {
		return models.ClassificationResult{}, fmt.Errorf("%w: empty frame", ErrInvalidFrame)
	}

	at := now
	if v, ok := fields[fieldTimestamp]; ok {
		ms, ok := number(v)
		if !ok || ms < 0 {
			return models.ClassificationResult{}, fmt.Errorf("%w: bad %s", ErrInvalidFrame, fieldTimestamp)
		}
		at = time.UnixMilli(int64(ms))
	}

	list := fields[fieldClassifications].GetListValue()
	if list == nil {
		return models.ClassificationResult{}, fmt.Errorf("%w: missing %s", ErrInvalidFrame, fieldClassifications)
	}

	res := models.ClassificationResult{
		Timestamp:       at,
		Classifications: make([]models.Classification, 0, len(list.GetValues())),
	}
	for i, v := range list.GetValues() {
		entry := v.GetStructValue().GetFields()
		label := entry[fieldLabel].GetStringValue()
		if label == "" {
			return models.ClassificationResult{}, fmt.Errorf("%w: classification %d has no label", ErrInvalidFrame, i)
		}
		conf, ok := number(entry[fieldConfidence])
		if !ok || conf < 0 || conf > 1 {
			return models.ClassificationResult{}, fmt.Errorf("%w: classification %q confidence outside [0,1]", ErrInvalidFrame, label)
		}
		res.Classifications = append(res.Classifications, models.Classification{Label: label, Confidence: conf})
	}
	return res, nil
}

// EncodeFrame converts a classifier result into a request frame.
func EncodeFrame(res models.ClassificationResult) (*structpb.Struct, error) {
	cs := make([]any, 0, len(res.Classifications))
	for _, c := range res.Classifications {
		cs = append(cs, map[string]any{
			fieldLabel:      c.Label,
			fieldConfidence: c.Confidence,
		})
	}
	fields := map[string]any{fieldClassifications: cs}
	if !res.Timestamp.IsZero() {
		fields[fieldTimestamp] = res.Timestamp.UnixMilli()
	}
	return structpb.NewStruct(fields)
}

// Ack is the decoded stream response.
type Ack struct {
	SessionID      string
	FramesReceived int64
	FramesRejected int64
}

func encodeAck(a Ack) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldSessionID:      a.SessionID,
		fieldFramesReceived: a.FramesReceived,
		fieldFramesRejected: a.FramesRejected,
	})
}

// DecodeAck reads a stream response.
func DecodeAck(s *structpb.Struct) Ack {
	f := s.GetFields()
	return Ack{
		SessionID:      f[fieldSessionID].GetStringValue(),
		FramesReceived: int64(f[fieldFramesReceived].GetNumberValue()),
		FramesRejected: int64(f[fieldFramesRejected].GetNumberValue()),
	}
}

func number(v *structpb.Value) (float64, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	if math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
		return 0, false
	}
	return n.NumberValue, true
}
