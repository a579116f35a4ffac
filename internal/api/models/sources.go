package models

import (
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

// SourceList lists the registered sources.
type SourceList struct {
	Items []source.Info `json:"items"`
}

// PriorityCandidate is one source able to serve a feature at a point.
type PriorityCandidate struct {
	Source     string `json:"source"`
	Priority   int    `json:"priority"`
	Configured bool   `json:"configured"`
}

// FeaturePriorities lists, per feature, the candidate sources best first.
type FeaturePriorities struct {
	Lat         float64                                 `json:"lat"`
	Lon         float64                                 `json:"lon"`
	CountryCode string                                  `json:"countryCode,omitempty"`
	Features    map[weather.Feature][]PriorityCandidate `json:"features"`
}
