package weatherstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/breezyweather/breezyd/internal/weather"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Entries are stored encoded so callers never share slices with the store.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewInMemoryRepository creates a new in-memory weather repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string][]byte)}
}

// Save replaces the stored weather of a location.
func (r *InMemoryRepository) Save(_ context.Context, locationID string, w *weather.Weather) error {
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding weather: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[locationID] = data
	return nil
}

// Get returns the stored weather of a location.
func (r *InMemoryRepository) Get(_ context.Context, locationID string) (*weather.Weather, error) {
	r.mu.RLock()
	data, ok := r.entries[locationID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var w weather.Weather
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding weather: %w", err)
	}
	return &w, nil
}

// Delete removes the stored weather of a location.
func (r *InMemoryRepository) Delete(_ context.Context, locationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, locationID)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
