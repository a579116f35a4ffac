// Package weatherstore persists the last aggregated weather of each saved
// location.
package weatherstore

import (
	"context"
	"errors"

	"github.com/breezyweather/breezyd/internal/weather"
)

// ErrNotFound is returned when no weather is stored for a location.
var ErrNotFound = errors.New("stored weather not found")

// Repository defines the interface for weather persistence.
type Repository interface {
	// Save replaces the stored weather of a location.
	Save(ctx context.Context, locationID string, w *weather.Weather) error

	// Get returns the stored weather of a location or ErrNotFound.
	Get(ctx context.Context, locationID string) (*weather.Weather, error)

	// Delete removes the stored weather of a location. Deleting a missing
	// entry is not an error.
	Delete(ctx context.Context, locationID string) error
}
