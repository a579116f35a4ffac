package nws

import (
	"context"
	"fmt"
	"time"

	"github.com/breezyweather/breezyd/internal/weather"
)

type alertsResponse struct {
	Features []struct {
		Properties struct {
			ID          string     `json:"id"`
			Onset       *time.Time `json:"onset"`
			Effective   *time.Time `json:"effective"`
			Ends        *time.Time `json:"ends"`
			Expires     *time.Time `json:"expires"`
			Severity    string     `json:"severity"`
			Event       string     `json:"event"`
			Headline    string     `json:"headline"`
			Description string     `json:"description"`
			Instruction string     `json:"instruction"`
			SenderName  string     `json:"senderName"`
		} `json:"properties"`
	} `json:"features"`
}

func (c *Client) fetchAlerts(ctx context.Context, loc *weather.Location) ([]weather.Alert, error) {
	url := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", c.baseURL, loc.Lat, loc.Lon)

	var resp alertsResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetching alerts: %w", err)
	}

	alerts := make([]weather.Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		starts := p.Onset
		if starts == nil {
			starts = p.Effective
		}
		ends := p.Ends
		if ends == nil {
			ends = p.Expires
		}
		headline := p.Headline
		if headline == "" {
			headline = p.Event
		}
		alerts = append(alerts, weather.Alert{
			ID:          p.ID,
			StartsAt:    utc(starts),
			EndsAt:      utc(ends),
			Headline:    headline,
			Description: p.Description,
			Instruction: p.Instruction,
			Severity:    severityOf(p.Severity),
			Source:      p.SenderName,
		})
	}
	return alerts, nil
}

func severityOf(s string) weather.Severity {
	switch s {
	case "Extreme":
		return weather.SeverityExtreme
	case "Severe":
		return weather.SeveritySevere
	case "Moderate":
		return weather.SeverityModerate
	case "Minor":
		return weather.SeverityMinor
	default:
		return weather.SeverityUnknown
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return weather.Ptr(t.UTC())
}
