package openmeteo

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/breezyweather/breezyd/internal/weather"
)

const searchResults = 20

type searchResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Timezone    string  `json:"timezone"`
		Country     string  `json:"country"`
		CountryCode string  `json:"country_code"`
		Admin1      string  `json:"admin1"`
		Admin2      string  `json:"admin2"`
	} `json:"results"`
}

// SearchLocations finds places by name.
func (c *Client) SearchLocations(ctx context.Context, query, lang string) ([]weather.Location, error) {
	q := url.Values{}
	q.Set("name", query)
	q.Set("count", strconv.Itoa(searchResults))
	q.Set("format", "json")
	if lang != "" {
		q.Set("language", lang)
	}

	var resp searchResponse
	if err := c.httpClient.GetJSON(ctx, c.geocodingURL+"/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, wrap("search", err)
	}

	out := make([]weather.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, weather.Location{
			Name:        r.Name,
			District:    r.Admin2,
			Province:    r.Admin1,
			Country:     r.Country,
			CountryCode: strings.ToUpper(r.CountryCode),
			Lat:         r.Latitude,
			Lon:         r.Longitude,
			TimeZone:    r.Timezone,
		})
	}
	return out, nil
}
