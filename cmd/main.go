package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "metronome-ingress-service/internal/api/grpc"
	"metronome-ingress-service/internal/app"
	"metronome-ingress-service/internal/config"
	"metronome-ingress-service/internal/events"
	apihttp "metronome-ingress-service/internal/http"
	"metronome-ingress-service/internal/observability"
	"metronome-ingress-service/internal/observability/logging"
	"metronome-ingress-service/internal/observability/metrics"
	"metronome-ingress-service/internal/service/analysis"
	"metronome-ingress-service/internal/service/classifier/mock"
	"metronome-ingress-service/internal/service/session"
)

func main() {
	cfg := config.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logCfg.File = cfg.Observability.LogFile
	logging.Init(logCfg)

	application := app.New(cfg)
	m := metrics.DefaultMetrics
	sess := session.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create Kafka publisher with separate topics for tempo and activity events
	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicTempo:    cfg.Kafka.TopicTempo,
		TopicActivity: cfg.Kafka.TopicActivity,
		Principal:     cfg.Kafka.Principal,
	}, events.WithMetrics(m))
	defer publisher.Close()

	hub := apihttp.NewHub(m)
	go hub.Run(ctx)

	handler, err := analysis.NewHandler(analysis.Config{
		Tempo:              cfg.TempoEstimator(),
		Activity:           cfg.ActivityTimeline(),
		SnapLabel:          cfg.Classifier.SnapLabel,
		QueueSize:          cfg.Analysis.QueueSize,
		AutoStartMetronome: true,
	}, sess, publisher, analysis.WithBroadcaster(hub), analysis.WithMetrics(m))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid analysis configuration")
	}
	go handler.Run(ctx)

	// Observability server (/metrics, /healthz, /readyz)
	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)
	obsServer.Start()

	// HTTP API
	apiServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, handler, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", apiServer.Addr).Msg("Starting HTTP API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP API server error")
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m, sess.ID())),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Register application services
	grpcapi.Register(server, grpcapi.NewServer(handler, sess.ID(), m))

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Str("sessionId", sess.ID()).Msg("Metronome ingress gRPC server started")
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	var source *mock.Source
	if cfg.Classifier.Source == config.SourceMock {
		script := mock.DefaultScript()
		script.Interval = cfg.Classifier.Interval
		script.SnapLabel = cfg.Classifier.SnapLabel
		script.InstrumentLabel = cfg.Classifier.InstrumentLabel
		source = mock.New(script)
		if err := source.Start(ctx, handler); err != nil {
			log.Fatal().Err(err).Msg("Failed to start mock classifier")
		}
		log.Info().Dur("interval", script.Interval).Msg("Mock classifier source started")
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	application.Shutdown()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if source != nil {
		_ = source.Close()
	}
	server.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP API shutdown error")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown error")
	}
	cancel()
}
