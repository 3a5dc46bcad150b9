package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metronome-ingress-service/internal/app"
	"metronome-ingress-service/internal/models"
)

// Analyzer is the analysis driver surface the API reads and controls.
type Analyzer interface {
	TempoSummary() models.TempoSummary
	ActivitySummary() models.ActivitySummary
	SetCurrentLabel(label string) error
	SetMetronomeRunning(running bool)
}

type labelRequest struct {
	Label string `json:"label"`
}

type metronomeRequest struct {
	Running *bool `json:"running"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service. hub may be nil,
// in which case /v1/ws is not served.
func NewRouter(application *app.Application, analyzer Analyzer, hub *Hub) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application != nil && !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tempo", func(w http.ResponseWriter, _ *http.Request) {
			sum := analyzer.TempoSummary()
			if !sum.HasEstimate {
				writeJSON(w, http.StatusNotFound, sum)
				return
			}
			writeJSON(w, http.StatusOK, sum)
		})

		r.Get("/activity", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, analyzer.ActivitySummary())
		})

		r.Put("/activity/label", func(w http.ResponseWriter, r *http.Request) {
			var req labelRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
				return
			}
			if err := analyzer.SetCurrentLabel(req.Label); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, analyzer.ActivitySummary())
		})

		r.Put("/metronome", func(w http.ResponseWriter, r *http.Request) {
			var req metronomeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Running == nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: `body must be {"running": bool}`})
				return
			}
			analyzer.SetMetronomeRunning(*req.Running)
			writeJSON(w, http.StatusOK, analyzer.TempoSummary())
		})

		if hub != nil {
			r.Get("/ws", hub.ServeWS)
		}
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
