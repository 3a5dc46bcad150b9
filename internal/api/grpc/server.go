// Package grpcapi exposes the classification ingress over gRPC.
package grpcapi

import (
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"metronome-ingress-service/internal/observability/logging"
	"metronome-ingress-service/internal/observability/metrics"
	"metronome-ingress-service/internal/service/classifier"
)

// Server receives classifier frames from remote clients and hands them to
// the analysis driver. Frames from every stream feed the same session.
type Server struct {
	sink      classifier.Callback
	sessionID string
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewServer creates the ingress server.
func NewServer(sink classifier.Callback, sessionID string, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Server{
		sink:      sink,
		sessionID: sessionID,
		metrics:   m,
		now:       time.Now,
	}
}

// Register attaches the ingress service to g.
func Register(g *grpc.Server, s *Server) {
	g.RegisterService(&ServiceDesc, s)
}

// StreamClassifications reads frames until the client half-closes, then
// acknowledges with the received and rejected counts. Malformed frames are
// counted and skipped.
func (s *Server) StreamClassifications(stream ClassificationStream) error {
	peerAddr := "unknown"
	if p, ok := peer.FromContext(stream.Context()); ok && p.Addr != nil {
		peerAddr = p.Addr.String()
	}
	logger := logging.WithStream(s.sessionID, peerAddr)
	logger.Info().Msg("Classification stream opened")

	var received, rejected int64
	for {
		frame, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if status.Code(err) == codes.Canceled {
				logger.Info().Int64("frames", received).Msg("Classification stream cancelled by client")
			} else {
				logger.Error().Err(err).Int64("frames", received).Msg("Classification stream receive failed")
			}
			return err
		}

		received++
		res, err := DecodeFrame(frame, s.now())
		if err != nil {
			rejected++
			s.metrics.RecordFrameRejected()
			logger.Debug().Err(err).Int64("frame", received).Msg("Frame rejected")
			continue
		}
		s.sink.OnResult(res)
	}

	logger.Info().
		Int64("framesReceived", received).
		Int64("framesRejected", rejected).
		Msg("Classification stream closed")

	ack, err := encodeAck(Ack{SessionID: s.sessionID, FramesReceived: received, FramesRejected: rejected})
	if err != nil {
		return status.Errorf(codes.Internal, "encode ack: %v", err)
	}
	return stream.SendAndClose(ack)
}
