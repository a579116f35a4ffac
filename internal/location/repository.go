// Package location manages saved locations and the sources chosen for them.
package location

import (
	"context"
	"errors"

	"github.com/breezyweather/breezyd/internal/weather"
)

// Repository errors.
var (
	ErrLocationNotFound = errors.New("location not found")
)

// ListOptions contains options for listing locations.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains the results of listing locations.
type ListResult struct {
	Items      []*weather.Location
	NextCursor string
}

// Repository defines the interface for location persistence.
type Repository interface {
	// Get retrieves a location by ID.
	Get(ctx context.Context, id string) (*weather.Location, error)

	// List retrieves locations ordered by creation time. Cursor is the ID
	// of the last location of the previous page.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// GetCurrentPosition returns the location that follows the device
	// position, or ErrLocationNotFound.
	GetCurrentPosition(ctx context.Context) (*weather.Location, error)

	// Create creates a new location.
	Create(ctx context.Context, loc *weather.Location) error

	// Update updates an existing location.
	Update(ctx context.Context, loc *weather.Location) error

	// Delete deletes a location by ID.
	Delete(ctx context.Context, id string) error
}

const defaultListLimit = 50
