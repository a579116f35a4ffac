// Package main provides the entrypoint for the breezyd refresh worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/bootstrap"
	"github.com/breezyweather/breezyd/internal/config"
	"github.com/breezyweather/breezyd/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "breezyd-worker"

	cfg, err := config.Load()
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, serviceName, Version, "info")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := bootstrap.NewLogger(os.Stdout, serviceName, Version, cfg.LogLevel)
	log.Info().Str("build_time", BuildTime).Msg("starting breezyd worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flushTelemetry, err := bootstrap.InitTelemetry(ctx, cfg, serviceName, Version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer flushTelemetry()

	services, err := bootstrap.NewServices(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer services.Close()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Concurrency: cfg.Poll.Concurrency,
			Timeout:     cfg.Poll.LocationTimeout,
		},
		Locations: services.Storage.Locations,
		Refresher: services.Aggregator,
		Logger:    log.With().Str("component", "refresh").Logger(),
	})

	var poller *worker.Poller
	if cfg.Poll.Enabled {
		poller = worker.NewPoller(worker.PollerConfig{
			Interval: cfg.Poll.Interval,
			Timeout:  cfg.Poll.Timeout,
		}, job, log.With().Str("component", "poller").Logger())
		if err := poller.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start poller")
		}
	} else {
		log.Info().Msg("periodic refresh disabled")
	}

	if cfg.PubSub.ProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSub.ProjectID,
			SubscriptionName: cfg.PubSub.Subscription,
			MaxOutstanding:   cfg.PubSub.MaxOutstanding,
			RefreshJob:       job,
			Health:           worker.NewProbeHealth(services.Aggregator, worker.DefaultProbePoint),
			Logger:           log.With().Str("component", "pubsub").Logger(),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()
		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Worker also exposes a health endpoint for Cloud Run
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      healthRouter(job, poller),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	if poller != nil {
		poller.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

// healthRouter reports liveness together with the refresh statistics.
func healthRouter(job *worker.RefreshJob, poller *worker.Poller) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		details := job.MetricsSnapshot()
		details["version"] = Version
		status := models.HealthStatusOK
		if poller != nil {
			if _, err := poller.LastRun(); err != nil {
				status = models.HealthStatusDegraded
				details["last_error"] = err.Error()
			}
		}
		response.JSON(w, req, http.StatusOK, models.Health{
			Status:  status,
			Time:    models.Timestamp(time.Now()),
			Details: details,
		})
	})
	return r
}
