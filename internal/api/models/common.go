// Package models holds the request and response bodies of the breezyd API.
package models

import "time"

// PagedResponseMeta describes one page of a cursor listing.
type PagedResponseMeta struct {
	Limit      int     `json:"limit"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// Timestamp marshals as an RFC 3339 UTC instant with second precision.
type Timestamp time.Time

func (t Timestamp) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(time.RFC3339)+2)
	b = append(b, '"')
	b = time.Time(t).UTC().AppendFormat(b, time.RFC3339)
	return append(b, '"'), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var parsed time.Time
	if err := parsed.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Time(t) }

// TimestampPtr converts an optional time.
func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}
