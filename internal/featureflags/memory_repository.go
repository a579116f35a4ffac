package featureflags

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository keeps overrides in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

// NewInMemoryRepository returns a repository holding the given overrides.
func NewInMemoryRepository(seed ...*Flag) *InMemoryRepository {
	r := &InMemoryRepository{flags: make(map[string]Flag, len(seed))}
	for _, f := range seed {
		r.flags[f.Key] = *f
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context) ([]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Flag, 0, len(r.flags))
	for _, f := range r.flags {
		f := f
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *InMemoryRepository) Save(_ context.Context, flags ...*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range flags {
		r.flags[f.Key] = *f
	}
	return nil
}

func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flags[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.flags, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
