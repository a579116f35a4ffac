package models

import "github.com/breezyweather/breezyd/internal/featureflags"

// FeatureFlags lists the effective feature flags.
type FeatureFlags struct {
	Flags []*featureflags.Flag `json:"flags"`
}

// FeatureFlagInput sets one flag. Value must be present but may be false.
type FeatureFlagInput struct {
	Key   string `json:"key" validate:"required,max=64"`
	Value any    `json:"value"`
}

// FeatureFlagsUpdateRequest sets several flags at once.
type FeatureFlagsUpdateRequest struct {
	Flags []FeatureFlagInput `json:"flags" validate:"required,min=1,dive"`
}
