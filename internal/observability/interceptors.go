package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"metronome-ingress-service/internal/observability/logging"
	"metronome-ingress-service/internal/observability/metrics"
)

// Health probes and reflection are polled constantly and carry no
// classifier traffic.
var infraMethodPrefixes = []string{
	"/grpc.health.v1.",
	"/grpc.reflection.",
}

func isInfraMethod(fullMethod string) bool {
	for _, prefix := range infraMethodPrefixes {
		if strings.HasPrefix(fullMethod, prefix) {
			return true
		}
	}
	return false
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}

// UnaryServerInterceptor counts unary calls per method and code. Health and
// reflection calls are counted but only logged at debug level.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err).String()
		m.RecordUnaryCall(info.FullMethod, code)

		level := zerolog.InfoLevel
		if isInfraMethod(info.FullMethod) {
			level = zerolog.DebugLevel
		}
		log.WithLevel(level).
			Str("method", info.FullMethod).
			Str("code", code).
			Str("peer", peerAddr(ctx)).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor tracks classification streams in the stream
// metrics and logs each one with the session and peer it belongs to.
// Reflection streams bypass both.
func StreamServerInterceptor(m *metrics.Metrics, sessionID string) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if isInfraMethod(info.FullMethod) {
			err := handler(srv, ss)
			log.Debug().
				Str("method", info.FullMethod).
				Str("code", status.Code(err).String()).
				Msg("gRPC infra stream completed")
			return err
		}

		start := time.Now()
		m.RecordStreamStart()

		err := handler(srv, ss)

		duration := time.Since(start)
		success := err == nil
		m.RecordStreamEnd(success, duration.Seconds())

		logger := logging.WithStream(sessionID, peerAddr(ss.Context()))
		logger.Info().
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}
