package featureflags

import (
	"context"
	"errors"
)

var (
	ErrFlagNotFound     = errors.New("feature flag not found")
	ErrInvalidFlagValue = errors.New("invalid feature flag value")
)

// Repository stores flag overrides. Keys absent from the repository take
// their default value.
type Repository interface {
	// List returns every stored flag ordered by key.
	List(ctx context.Context) ([]*Flag, error)

	// Save upserts flags in one transaction.
	Save(ctx context.Context, flags ...*Flag) error

	// Delete removes the override for key, or returns ErrFlagNotFound.
	Delete(ctx context.Context, key string) error
}
