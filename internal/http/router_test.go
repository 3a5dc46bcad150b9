package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metronome-ingress-service/internal/app"
	"metronome-ingress-service/internal/config"
	"metronome-ingress-service/internal/models"
	"metronome-ingress-service/internal/observability/metrics"
	"metronome-ingress-service/internal/service/analysis"
	"metronome-ingress-service/internal/service/session"
)

type nopPublisher struct{}

func (nopPublisher) PublishTempo(context.Context, models.TempoEvent) error { return nil }

func (nopPublisher) PublishInterval(context.Context, models.PlayIntervalEvent) error { return nil }

func newTestAnalyzer(t *testing.T, opts ...analysis.Option) *analysis.Handler {
	t.Helper()
	opts = append([]analysis.Option{analysis.WithMetrics(metrics.NewMetricsWith(prometheus.NewRegistry()))}, opts...)
	h, err := analysis.NewHandler(analysis.DefaultConfig(), session.NewWithID("sess"), nopPublisher{}, opts...)
	require.NoError(t, err)
	return h
}

func newTestApp() *app.Application {
	return app.New(&config.Config{})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	application := newTestApp()
	router := NewRouter(application, newTestAnalyzer(t), nil)

	rec := do(t, router, http.MethodGet, "/v1/liveness", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/readiness", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, application.Start())
	rec = do(t, router, http.MethodGet, "/v1/readiness", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	application.Shutdown()
	rec = do(t, router, http.MethodGet, "/v1/readiness", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_TempoNotFoundBeforeEstimate(t *testing.T) {
	router := NewRouter(newTestApp(), newTestAnalyzer(t), nil)

	rec := do(t, router, http.MethodGet, "/v1/tempo", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var sum models.TempoSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.False(t, sum.HasEstimate)
	assert.Equal(t, "sess", sum.SessionID)
	assert.Equal(t, 4, sum.BeatsPerBar)
}

func TestRouter_TempoAfterEstimate(t *testing.T) {
	an := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go an.Run(ctx)

	base := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * 500 * time.Millisecond)
		an.OnResult(models.ClassificationResult{Timestamp: at, Classifications: []models.Classification{{Label: "finger_snapping", Confidence: 0.9}}})
		an.OnResult(models.ClassificationResult{Timestamp: at.Add(50 * time.Millisecond), Classifications: []models.Classification{{Label: "finger_snapping", Confidence: 0.1}}})
	}
	require.Eventually(t, func() bool { return an.TempoSummary().HasEstimate }, 2*time.Second, 5*time.Millisecond)

	router := NewRouter(newTestApp(), an, nil)
	rec := do(t, router, http.MethodGet, "/v1/tempo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var sum models.TempoSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 120, sum.BPM)
	assert.True(t, sum.MetronomeRunning)
}

func TestRouter_ActivitySummaryShape(t *testing.T) {
	router := NewRouter(newTestApp(), newTestAnalyzer(t), nil)

	rec := do(t, router, http.MethodGet, "/v1/activity", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	for _, key := range []string{"sessionId", "currentLabel", "playTimeMs", "idleTimeMs", "totalTimeMs", "intervals", "states"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, "bowed_string_instrument", body["currentLabel"])
	assert.Equal(t, []any{}, body["intervals"])
}

func TestRouter_SetLabel(t *testing.T) {
	router := NewRouter(newTestApp(), newTestAnalyzer(t), nil)

	rec := do(t, router, http.MethodPut, "/v1/activity/label", `{"label":"guitar"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var sum models.ActivitySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "guitar", sum.CurrentLabel)

	rec = do(t, router, http.MethodPut, "/v1/activity/label", `{"label":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/v1/activity/label", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SetMetronome(t *testing.T) {
	an := newTestAnalyzer(t)
	router := NewRouter(newTestApp(), an, nil)

	rec := do(t, router, http.MethodPut, "/v1/metronome", `{"running":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, an.MetronomeRunning())

	rec = do(t, router, http.MethodPut, "/v1/metronome", `{"running":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, an.MetronomeRunning())

	rec = do(t, router, http.MethodPut, "/v1/metronome", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_WebSocketFeed(t *testing.T) {
	hub := NewHub(metrics.NewMetricsWith(prometheus.NewRegistry()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(newTestApp(), newTestAnalyzer(t), hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Broadcast(models.EventTypeTempo, models.TempoEvent{EventType: models.EventTypeTempo, BPM: 96})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string            `json:"type"`
		Data models.TempoEvent `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.EventTypeTempo, msg.Type)
	assert.Equal(t, 96, msg.Data.BPM)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub(metrics.NewMetricsWith(prometheus.NewRegistry()))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Broadcast("x", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
}
