package grpcapi

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/observability/metrics"
)

type sink struct {
	mu      sync.Mutex
	results []models.ClassificationResult
}

func (s *sink) OnResult(r models.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *sink) OnError(error) {}

func startServer(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	g := grpc.NewServer()
	Register(g, srv)
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_StreamClassifications(t *testing.T) {
	recv := &sink{}
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	conn := startServer(t, NewServer(recv, "sess", m))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := NewClient(conn).StreamClassifications(ctx)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	for i := 0; i < 3; i++ {
		frame, err := EncodeFrame(models.ClassificationResult{
			Timestamp:       time.UnixMilli(int64(1000 * (i + 1))),
			Classifications: []models.Classification{{Label: "finger_snapping", Confidence: 0.9}},
		})
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		if err := stream.Send(frame); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	bad, _ := structpb.NewStruct(map[string]any{
		"classifications": []any{map[string]any{"label": "finger_snapping", "confidence": 2}},
	})
	if err := stream.Send(bad); err != nil {
		t.Fatalf("Send bad frame: %v", err)
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}

	ack := DecodeAck(resp)
	if ack.SessionID != "sess" {
		t.Errorf("expected session 'sess', got %q", ack.SessionID)
	}
	if ack.FramesReceived != 4 || ack.FramesRejected != 1 {
		t.Errorf("expected 4 received / 1 rejected, got %+v", ack)
	}

	recv.mu.Lock()
	defer recv.mu.Unlock()
	if len(recv.results) != 3 {
		t.Fatalf("expected 3 results forwarded, got %d", len(recv.results))
	}
	if !recv.results[2].Timestamp.Equal(time.UnixMilli(3000)) {
		t.Errorf("unexpected timestamp %v", recv.results[2].Timestamp)
	}
	if got := testutil.ToFloat64(m.FramesRejected); got != 1 {
		t.Errorf("expected 1 rejected frame metric, got %v", got)
	}
}

func TestServer_EmptyStream(t *testing.T) {
	recv := &sink{}
	conn := startServer(t, NewServer(recv, "sess", metrics.NewMetricsWith(prometheus.NewRegistry())))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := NewClient(conn).StreamClassifications(ctx)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	resp, err := stream.CloseAndRecv()
	if err != nil {
		t.Fatalf("CloseAndRecv: %v", err)
	}
	if ack := DecodeAck(resp); ack.FramesReceived != 0 || ack.FramesRejected != 0 {
		t.Errorf("expected empty ack, got %+v", ack)
	}
}
