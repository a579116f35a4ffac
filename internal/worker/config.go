// Package worker refreshes the weather of saved locations in the background.
package worker

import (
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

// RefreshConfig holds configuration for the location refresh job.
type RefreshConfig struct {
	// Concurrency is the number of locations refreshed at once.
	// Default: 3
	Concurrency int

	// Timeout bounds the refresh of one location.
	// Default: 45 seconds
	Timeout time.Duration

	// PageSize is the number of locations listed per page.
	// Default: 100
	PageSize int

	// Features limits the refreshed features. Empty means all.
	Features []weather.Feature

	// SkipReverseGeocoding keeps current position names unchanged.
	SkipReverseGeocoding bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Concurrency: 3,
		Timeout:     45 * time.Second,
		PageSize:    100,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	d := DefaultRefreshConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	return c
}

// PollerConfig holds configuration for the periodic refresh.
type PollerConfig struct {
	// Interval between two runs.
	// Default: 1 hour
	Interval time.Duration

	// Timeout bounds a whole run.
	// Default: 10 minutes
	Timeout time.Duration

	// WaitForFirstInterval delays the first run by one interval instead
	// of running at start.
	WaitForFirstInterval bool
}

// DefaultPollerConfig returns the default poller configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: time.Hour,
		Timeout:  10 * time.Minute,
	}
}
