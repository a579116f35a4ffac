package weather

import "time"

// Severity is the severity of a weather alert.
type Severity string

const (
	SeverityExtreme  Severity = "EXTREME"
	SeveritySevere   Severity = "SEVERE"
	SeverityModerate Severity = "MODERATE"
	SeverityMinor    Severity = "MINOR"
	SeverityUnknown  Severity = "UNKNOWN"
)

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityExtreme:
		return 4
	case SeveritySevere:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Alert is an official weather warning.
type Alert struct {
	ID          string     `json:"id"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
	Headline    string     `json:"headline"`
	Description string     `json:"description,omitempty"`
	Instruction string     `json:"instruction,omitempty"`
	Severity    Severity   `json:"severity"`
	Source      string     `json:"source,omitempty"`
}

// ExpiredAt reports whether the alert has ended before t.
func (a *Alert) ExpiredAt(t time.Time) bool {
	return a.EndsAt != nil && a.EndsAt.Before(t)
}
