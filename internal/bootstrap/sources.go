// Package bootstrap wires the components shared by the breezyd binaries.
package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/airquality"
	aqluchtmeetnet "github.com/breezyweather/breezyd/internal/airquality/luchtmeetnet"
	"github.com/breezyweather/breezyd/internal/config"
	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/source/ambee"
	"github.com/breezyweather/breezyd/internal/source/luchtmeetnet"
	"github.com/breezyweather/breezyd/internal/source/nominatim"
	"github.com/breezyweather/breezyd/internal/source/nws"
	"github.com/breezyweather/breezyd/internal/source/openmeteo"
	"github.com/breezyweather/breezyd/internal/source/openweathermap"
)

// Sources is the registered set of weather sources.
type Sources struct {
	Manager  *source.Manager
	Registry *resilience.Registry

	// AirQuality is the station snapshot service behind the Luchtmeetnet
	// source, nil when that source is disabled.
	AirQuality *airquality.Service
}

// NewSources creates every enabled source from cfg and registers it.
// Sources that need an API key are registered even without one; they
// report themselves as not configured and are skipped.
func NewSources(cfg *config.Config, toggles source.Toggles, logger zerolog.Logger) (*Sources, error) {
	registry := resilience.NewRegistry()
	manager := source.NewManager(source.ManagerConfig{
		Toggles: toggles,
		Logger:  logger.With().Str("component", "sources").Logger(),
	})
	out := &Sources{Manager: manager, Registry: registry}

	httpClient := func(id, defaultUserAgent string) *resilience.Client {
		sc := cfg.Source(id)
		hc := resilience.DefaultClientConfig(id)
		if sc.Timeout > 0 {
			hc.Timeout = sc.Timeout
		}
		hc.UserAgent = sc.UserAgent
		if hc.UserAgent == "" {
			hc.UserAgent = defaultUserAgent
		}
		hc.Registry = registry
		hc.Logger = logger.With().Str("source", id).Logger()
		return resilience.NewClient(hc)
	}
	sourceLogger := func(id string) zerolog.Logger {
		return logger.With().Str("source", id).Logger()
	}

	var sources []source.Source

	if sc := cfg.Source(config.SourceOpenMeteo); sc.IsEnabled() {
		sources = append(sources, openmeteo.NewClient(openmeteo.ClientConfig{
			BaseURL:    sc.BaseURL,
			HTTPClient: httpClient(openmeteo.SourceID, ""),
			Logger:     sourceLogger(openmeteo.SourceID),
		}))
	}

	if sc := cfg.Source(config.SourceOpenWeatherMap); sc.IsEnabled() {
		sources = append(sources, openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     sc.APIKey,
			BaseURL:    sc.BaseURL,
			HTTPClient: httpClient(openweathermap.SourceID, ""),
			Logger:     sourceLogger(openweathermap.SourceID),
		}))
	}

	if sc := cfg.Source(config.SourceNWS); sc.IsEnabled() {
		sources = append(sources, nws.NewClient(nws.ClientConfig{
			BaseURL:    sc.BaseURL,
			UserAgent:  sc.UserAgent,
			HTTPClient: httpClient(nws.SourceID, nws.DefaultUserAgent),
			Logger:     sourceLogger(nws.SourceID),
		}))
	}

	if sc := cfg.Source(config.SourceAmbee); sc.IsEnabled() {
		sources = append(sources, ambee.NewClient(ambee.ClientConfig{
			APIKey:     sc.APIKey,
			BaseURL:    sc.BaseURL,
			HTTPClient: httpClient(ambee.SourceID, ""),
			Logger:     sourceLogger(ambee.SourceID),
		}))
	}

	if sc := cfg.Source(config.SourceLuchtmeetnet); sc.IsEnabled() {
		out.AirQuality = airquality.NewService(airquality.ServiceConfig{
			Provider: aqluchtmeetnet.NewClient(aqluchtmeetnet.ClientConfig{
				BaseURL:    sc.BaseURL,
				HTTPClient: httpClient(luchtmeetnet.SourceID, ""),
				Logger:     sourceLogger(luchtmeetnet.SourceID),
			}),
			Logger: sourceLogger(luchtmeetnet.SourceID),
		})
		sources = append(sources, luchtmeetnet.New(luchtmeetnet.Config{
			Service: out.AirQuality,
			Logger:  sourceLogger(luchtmeetnet.SourceID),
		}))
	}

	if sc := cfg.Source(config.SourceNominatim); sc.IsEnabled() {
		sources = append(sources, nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:    sc.BaseURL,
			UserAgent:  sc.UserAgent,
			HTTPClient: httpClient(nominatim.SourceID, nominatim.DefaultUserAgent),
			Logger:     sourceLogger(nominatim.SourceID),
		}))
	}

	for _, src := range sources {
		if err := manager.Register(src); err != nil {
			return nil, err
		}
	}
	return out, nil
}
