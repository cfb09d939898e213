package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/translation-relay/internal/config"
	"github.com/lexiqai/translation-relay/internal/observability"
	"github.com/lexiqai/translation-relay/internal/relay"
	"github.com/lexiqai/translation-relay/internal/resilience"
	"github.com/lexiqai/translation-relay/internal/server"
	"github.com/lexiqai/translation-relay/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_provider", cfg.SpeechProvider).
		Str("audio_source", cfg.AudioSource).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Translation relay starting")

	translator, err := newTranslator(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create translator")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, only same-language pairs will produce output")
	}

	provider, err := newProvider(cfg, translator, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech provider")
	}

	breaker := resilience.NewCircuitBreaker(
		provider.Name(),
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		logger.Warn().
			Str("service", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})

	queue := relay.NewQueue(cfg.QueueCapacity)
	controller := session.NewController(provider, queue, breaker, logger)

	srv, err := server.New(controller, queue, server.Options{
		DefaultInputLanguage:  cfg.DefaultInputLanguage,
		DefaultOutputLanguage: cfg.DefaultOutputLanguage,
		PollInterval:          time.Duration(cfg.StreamPollInterval) * time.Millisecond,
		KeepAlive:             time.Duration(cfg.StreamKeepAliveSeconds) * time.Second,
		AudioPush:             cfg.AudioSource == config.AudioSourceWebSocket,
		SampleRate:            cfg.AudioSampleRate,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create HTTP server")
	}

	// Create HTTP server
	mux := http.NewServeMux()
	srv.Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - checks are built here to avoid import cycles
	providerCheck := func(ctx context.Context) (bool, error) {
		state, requests, failures, _ := breaker.GetStats()
		if state == resilience.StateOpen {
			return false, fmt.Errorf("%s circuit breaker is %s (%d of %d starts failed)", provider.Name(), state, failures, requests)
		}
		return true, nil
	}

	translatorCheck := func(ctx context.Context) (bool, error) {
		if cfg.GeminiAPIKey == "" {
			return false, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		// No API call to avoid costs
		return true, nil
	}

	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		provider.Name(): providerCheck,
		"translator":    translatorCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts; /stream clears its own write deadline
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.RequestLogger(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stopping the session first ends open streams so Shutdown can drain
	controller.Stop(ctx)

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
