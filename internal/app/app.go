package app

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"metronome-ingress-service/internal/config"
	"metronome-ingress-service/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
// logging.Init must have been called first.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
		Logger: logging.WithComponent("application").With().
			Str("service", "metronome-ingress-service").
			Logger(),
	}

	a.Logger.Info().
		Str("method", "New").
		Str("classifierSource", cfg.Classifier.Source).
		Str("currentLabel", cfg.Classifier.InstrumentLabel).
		Msg("Metronome ingress application created")
	return a
}

// Start marks the service ready to serve traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)

	a.Logger.Info().
		Str("method", "Start").
		Time("startupTime", a.StartupTime).
		Msg("Metronome ingress service starting")
	return nil
}

// Ready reports whether Start has run and Shutdown has not.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Uptime returns the time since Start, zero before it.
func (a *Application) Uptime() time.Duration {
	if a.StartupTime.IsZero() {
		return 0
	}
	return time.Since(a.StartupTime)
}

// Shutdown flips readiness off before the listeners drain.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().
		Str("method", "Shutdown").
		Dur("uptime", a.Uptime()).
		Msg("Metronome ingress service shutting down")
}
