package location

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/breezyweather/breezyd/internal/weather"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and single-node setups without a database.
type InMemoryRepository struct {
	mu        sync.RWMutex
	locations map[string]*weather.Location
}

// NewInMemoryRepository creates a new in-memory location repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locations: make(map[string]*weather.Location),
	}
}

func copyLocation(l *weather.Location) *weather.Location {
	cpy := *l
	cpy.FeatureSources = maps.Clone(l.FeatureSources)
	return &cpy
}

// Get retrieves a location by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*weather.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.locations[id]
	if !ok {
		return nil, ErrLocationNotFound
	}
	return copyLocation(l), nil
}

// List retrieves locations ordered by creation time.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	all := make([]*weather.Location, 0, len(r.locations))
	for _, l := range r.locations {
		all = append(all, copyLocation(l))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if opts.Cursor != "" {
		for i, l := range all {
			if l.ID == opts.Cursor {
				all = all[i+1:]
				break
			}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	result := &ListResult{Items: all}
	if len(all) > limit {
		result.Items = all[:limit]
		result.NextCursor = all[limit-1].ID
	}
	return result, nil
}

// GetCurrentPosition returns the current position location.
func (r *InMemoryRepository) GetCurrentPosition(_ context.Context) (*weather.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.locations {
		if l.IsCurrentPosition {
			return copyLocation(l), nil
		}
	}
	return nil, ErrLocationNotFound
}

// Create creates a new location.
func (r *InMemoryRepository) Create(_ context.Context, l *weather.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.locations[l.ID] = copyLocation(l)
	return nil
}

// Update updates an existing location.
func (r *InMemoryRepository) Update(_ context.Context, l *weather.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[l.ID]; !ok {
		return ErrLocationNotFound
	}
	r.locations[l.ID] = copyLocation(l)
	return nil
}

// Delete deletes a location by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locations, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
