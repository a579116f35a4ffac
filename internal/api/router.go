// Package api provides the HTTP API for breezyd.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/api/handler"
	"github.com/breezyweather/breezyd/internal/api/middleware"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/featureflags"
	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
)

// WeatherService aggregates, stores and resolves weather.
type WeatherService interface {
	handler.PointWeather
	handler.LocationWeather
	handler.ReverseGeocoder
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool
	RateLimits  middleware.RateLimits

	// Admin validates admin tokens. Admin endpoints reject every request
	// when it is nil.
	Admin middleware.TokenValidator

	Sources      *source.Manager
	Weather      WeatherService
	Locations    handler.LocationService
	FeatureFlags *featureflags.Service

	// Optional status dependencies.
	Registry   *resilience.Registry
	Database   handler.Pinger
	AirQuality *airquality.Service
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "breezyd-api"
	}
	if cfg.Sources == nil {
		cfg.Sources = source.NewManager(source.ManagerConfig{})
	}
	if cfg.FeatureFlags == nil {
		cfg.FeatureFlags = featureflags.NewService(featureflags.ServiceConfig{
			Repository: featureflags.NewInMemoryRepository(),
			Logger:     cfg.Logger,
		})
	}

	// The request ID comes first so that spans, log lines and problems
	// written by later middleware all carry it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no route for "+req.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Database:   cfg.Database,
		Registry:   cfg.Registry,
		Flags:      cfg.FeatureFlags,
		AirQuality: cfg.AirQuality,
	})
	metadataHandler := handler.NewMetadataHandler(cfg.AirQuality)
	sourcesHandler := handler.NewSourcesHandler(cfg.Sources)
	geocodingHandler := handler.NewGeocodingHandler(cfg.Sources, cfg.Weather)
	weatherHandler := handler.NewWeatherHandler(cfg.Weather)
	locationsHandler := handler.NewLocationsHandler(cfg.Locations, cfg.Weather)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlags)

	adminAuth := middleware.AdminAuth(cfg.Admin)

	limits := cfg.RateLimits.WithDefaults()
	adminRateLimit := limits.Admin.BySubject()
	expensiveRateLimit := limits.Expensive.ByIP()
	standardRateLimit := limits.Standard.ByIP()

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public except status)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(adminAuth).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/air-quality/stations", metadataHandler.ListAirQualityStations)
			r.Get("/enums", metadataHandler.GetEnums)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", sourcesHandler.ListSources)
			r.Get("/priorities", sourcesHandler.FeaturePriorities)
		})

		r.Route("/geocoding", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/search", geocodingHandler.Search)
			r.Get("/reverse", geocodingHandler.Reverse)
		})

		// Ad-hoc weather fans out to every source.
		r.With(expensiveRateLimit).Get("/weather", weatherHandler.GetWeather)

		r.Route("/locations", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", locationsHandler.ListLocations)
			r.Post("/", locationsHandler.CreateLocation)
			r.Put("/current-position", locationsHandler.SetCurrentPosition)
			r.Route("/{locationId}", func(r chi.Router) {
				r.Get("/", locationsHandler.GetLocation)
				r.Put("/", locationsHandler.UpdateLocation)
				r.Delete("/", locationsHandler.DeleteLocation)
				r.Get("/weather", locationsHandler.GetWeather)
				r.With(expensiveRateLimit).Post("/refresh", locationsHandler.RefreshWeather)
			})
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminAuth)
			r.Use(adminRateLimit)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				r.Delete("/{key}", featureFlagsHandler.ResetFeatureFlag)
			})
		})
	})

	return r
}
