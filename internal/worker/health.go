package worker

import (
	"context"
	"fmt"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/weather"
)

// LocationRefresher aggregates weather for an unsaved location.
type LocationRefresher interface {
	Refresh(ctx context.Context, loc *weather.Location, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error)
}

// ProbeHealth checks the sources by aggregating a forecast for a fixed
// point, bypassing every cache.
type ProbeHealth struct {
	refresher LocationRefresher
	point     weather.Location
}

// DefaultProbePoint is Amsterdam.
var DefaultProbePoint = weather.Location{Lat: 52.3676, Lon: 4.9041, CountryCode: "NL"}

// NewProbeHealth creates a probe at point.
func NewProbeHealth(refresher LocationRefresher, point weather.Location) *ProbeHealth {
	return &ProbeHealth{refresher: refresher, point: point}
}

// CheckHealth fails when no forecast can be aggregated.
func (p *ProbeHealth) CheckHealth(ctx context.Context) error {
	loc := p.point
	_, report, err := p.refresher.Refresh(ctx, &loc, aggregator.Options{
		Features:             []weather.Feature{weather.FeatureForecast, weather.FeatureCurrent},
		SkipReverseGeocoding: true,
	})
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	if stale := report.StaleFeatures(); len(stale) > 0 {
		return fmt.Errorf("health probe: stale %v", stale)
	}
	return nil
}
