// Package featureflags provides runtime switches for the aggregation service.
package featureflags

import (
	"fmt"
	"time"
)

const (
	// FlagDisabledSources lists source IDs that must not be used.
	FlagDisabledSources = "disabled_sources"
	// FlagDisableAlerts stops requesting ALERT from sources.
	FlagDisableAlerts = "disable_alerts"
	// FlagCachedOnlyWeather serves stored weather without contacting sources.
	FlagCachedOnlyWeather = "cached_only_weather"
	// FlagDisableReverseGeocoding skips name lookups for current-position
	// locations.
	FlagDisableReverseGeocoding = "disable_reverse_geocoding"
)

type kind int

const (
	kindBool kind = iota
	kindStringList
)

// known are the flags the service reads, with their value kind and default.
var known = map[string]struct {
	kind kind
	def  any
}{
	FlagDisabledSources:         {kindStringList, []any{}},
	FlagDisableAlerts:           {kindBool, false},
	FlagCachedOnlyWeather:       {kindBool, false},
	FlagDisableReverseGeocoding: {kindBool, false},
}

// Flag is a runtime switch. Values decoded from JSON keep their JSON types:
// numbers are float64 and lists are []any.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BoolValue reads a boolean; non-zero numbers count as true. A nil flag or
// another type yields def.
func (f *Flag) BoolValue(def bool) bool {
	if f == nil {
		return def
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return def
}

func (f *Flag) StringValue(def string) string {
	if f == nil {
		return def
	}
	if v, ok := f.Value.(string); ok {
		return v
	}
	return def
}

// StringsValue reads a list of strings, skipping non-string items. A single
// non-empty string is a one-element list.
func (f *Flag) StringsValue() []string {
	if f == nil {
		return nil
	}
	switch v := f.Value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// ValidateFlag checks that a known flag carries a value of its kind.
// Unknown keys are accepted as-is.
func ValidateFlag(f *Flag) error {
	k, ok := known[f.Key]
	if !ok {
		return nil
	}
	switch k.kind {
	case kindBool:
		if _, ok := f.Value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidFlagValue, f.Key)
		}
	case kindStringList:
		if !isStringList(f.Value) {
			return fmt.Errorf("%w: %s must be a list of source IDs", ErrInvalidFlagValue, f.Key)
		}
	}
	return nil
}

func isStringList(v any) bool {
	switch v := v.(type) {
	case []string:
		return true
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// DefaultFlags returns the known flags at their default values.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	out := make(map[string]*Flag, len(known))
	for key, k := range known {
		out[key] = &Flag{Key: key, Value: k.def, UpdatedAt: now}
	}
	return out
}
