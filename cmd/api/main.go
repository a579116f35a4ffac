// Package main provides the entrypoint for the breezyd API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/breezyweather/breezyd/internal/api"
	"github.com/breezyweather/breezyd/internal/api/middleware"
	"github.com/breezyweather/breezyd/internal/auth"
	"github.com/breezyweather/breezyd/internal/bootstrap"
	"github.com/breezyweather/breezyd/internal/config"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "breezyd-api"

	cfg, err := config.Load()
	if err != nil {
		bootLog := bootstrap.NewLogger(os.Stderr, serviceName, Version, "info")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := bootstrap.NewLogger(os.Stdout, serviceName, Version, cfg.LogLevel)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting breezyd API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushTelemetry, err := bootstrap.InitTelemetry(ctx, cfg, serviceName, Version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer flushTelemetry()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	services, err := bootstrap.NewServices(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer services.Close()
	log.Info().
		Int("sources", services.Sources.Registry.Len()).
		Str("storage", cfg.Storage).
		Msg("services initialized")

	routerCfg := api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		RequireTLS:   cfg.RequireTLS,
		RateLimits: middleware.RateLimits{
			Standard:  middleware.PerMinute(cfg.RateLimits.Standard),
			Expensive: middleware.PerMinute(cfg.RateLimits.Expensive),
			Admin:     middleware.PerMinute(cfg.RateLimits.Admin),
		},
		Sources:      services.Sources.Manager,
		Weather:      services.Aggregator,
		Locations:    services.Locations,
		FeatureFlags: services.FeatureFlags,
		Registry:     services.Sources.Registry,
		AirQuality:   services.Sources.AirQuality,
	}
	if services.Storage.Pool != nil {
		routerCfg.Database = services.Storage.Pool
	}
	if cfg.AdminJWTSecret != "" {
		routerCfg.Admin = auth.NewJWTService(auth.JWTConfig{SigningKey: cfg.AdminJWTSecret})
	} else {
		log.Warn().Msg("ADMIN_JWT_SECRET not set - admin endpoints are disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
		return
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server stopped")
}
