package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "metronome-ingress-service/internal/api/grpc"
	"metronome-ingress-service/internal/models"
)

func dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return conn, nil
}

// streamResults sends results as one client stream, sleeping pace between
// frames, and returns the server's ack.
func streamResults(ctx context.Context, cc grpc.ClientConnInterface, results []models.ClassificationResult, pace time.Duration) (grpcapi.Ack, error) {
	stream, err := grpcapi.NewClient(cc).StreamClassifications(ctx)
	if err != nil {
		return grpcapi.Ack{}, fmt.Errorf("open stream: %w", err)
	}

	for i, res := range results {
		frame, err := grpcapi.EncodeFrame(res)
		if err != nil {
			return grpcapi.Ack{}, fmt.Errorf("encode frame %d: %w", i, err)
		}
		if err := stream.Send(frame); err != nil {
			return grpcapi.Ack{}, fmt.Errorf("send frame %d: %w", i, err)
		}
		if (i+1)%100 == 0 {
			log.Info().Int("frames", i+1).Msg("Frames sent")
		}
		if pace > 0 {
			select {
			case <-ctx.Done():
				return grpcapi.Ack{}, ctx.Err()
			case <-time.After(pace):
			}
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return grpcapi.Ack{}, fmt.Errorf("receive ack: %w", err)
	}
	return grpcapi.DecodeAck(resp), nil
}

func logAck(ack grpcapi.Ack) {
	log.Info().
		Str("sessionId", ack.SessionID).
		Int64("framesReceived", ack.FramesReceived).
		Int64("framesRejected", ack.FramesRejected).
		Msg("Stream completed")
}
