// Package nominatim implements reverse geocoding and location search on
// OpenStreetMap Nominatim.
package nominatim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/provider/resilience"
	"github.com/breezyweather/breezyd/internal/source"
	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	// SourceID identifies this source.
	SourceID = "nominatim"

	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent is sent when none is configured. The usage policy
	// requires an identifying agent.
	DefaultUserAgent = "breezyd (https://github.com/breezyweather/breezyd)"

	searchLimit = 20

	// cityZoom limits reverse lookups to city level.
	cityZoom = 10
)

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *resilience.Client
	Logger     zerolog.Logger
}

// Client is the Nominatim source.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		hc := resilience.DefaultClientConfig(SourceID)
		hc.UserAgent = userAgent
		hc.Logger = cfg.Logger
		httpClient = resilience.NewClient(hc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ID returns the source ID.
func (c *Client) ID() string { return SourceID }

// Name returns the display name.
func (c *Client) Name() string { return "Nominatim" }

// SupportedFeatures lists the features of the source.
func (c *Client) SupportedFeatures() []weather.Feature {
	return []weather.Feature{weather.FeatureReverseGeocoding}
}

// IsFeatureSupportedForLocation reports whether f is available. Nominatim
// covers the whole world.
func (c *Client) IsFeatureSupportedForLocation(_ *weather.Location, f weather.Feature) bool {
	return f == weather.FeatureReverseGeocoding
}

// FeaturePriorityForLocation ranks the source for f.
func (c *Client) FeaturePriorityForLocation(loc *weather.Location, f weather.Feature) int {
	if !c.IsFeatureSupportedForLocation(loc, f) {
		return source.PriorityNone
	}
	return source.PriorityMedium
}

// SearchPriority ranks the source among location search sources.
func (c *Client) SearchPriority() int { return source.PriorityMedium }

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Municipality string `json:"municipality"`
	County       string `json:"county"`
	State        string `json:"state"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

func (a address) locality() string {
	for _, n := range []string{a.City, a.Town, a.Village, a.Municipality} {
		if n != "" {
			return n
		}
	}
	return ""
}

// ReverseGeocode returns loc with its place names resolved. Coordinates,
// ID and source choices are kept.
func (c *Client) ReverseGeocode(ctx context.Context, loc *weather.Location) (*weather.Location, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', 6, 64))
	q.Set("zoom", strconv.Itoa(cityZoom))
	q.Set("addressdetails", "1")

	var p place
	if err := c.get(ctx, "/reverse", q, &p); err != nil {
		return nil, err
	}
	if p.Error != "" {
		return nil, fmt.Errorf("nominatim reverse: %w: %s", weather.ErrNoDataForLocation, p.Error)
	}

	resolved := *loc
	resolved.Name = p.Address.locality()
	if resolved.Name == "" {
		resolved.Name = p.Name
	}
	resolved.District = p.Address.County
	resolved.Province = p.Address.State
	resolved.Country = p.Address.Country
	resolved.CountryCode = strings.ToUpper(p.Address.CountryCode)
	return &resolved, nil
}

// SearchLocations finds places by name.
func (c *Client) SearchLocations(ctx context.Context, query, lang string) ([]weather.Location, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", query)
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(searchLimit))
	if lang != "" {
		q.Set("accept-language", lang)
	}

	var places []place
	if err := c.get(ctx, "/search", q, &places); err != nil {
		return nil, err
	}

	out := make([]weather.Location, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lon, errLon := strconv.ParseFloat(p.Lon, 64)
		if err := errors.Join(errLat, errLon); err != nil {
			c.logger.Debug().Err(err).Str("place", p.DisplayName).Msg("skipping place without coordinates")
			continue
		}
		name := p.Address.locality()
		if name == "" {
			name = p.Name
		}
		out = append(out, weather.Location{
			Name:        name,
			District:    p.Address.County,
			Province:    p.Address.State,
			Country:     p.Address.Country,
			CountryCode: strings.ToUpper(p.Address.CountryCode),
			Lat:         lat,
			Lon:         lon,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if err := c.httpClient.GetJSON(ctx, c.baseURL+path+"?"+q.Encode(), header, out); err != nil {
		return fmt.Errorf("nominatim %s: %w", strings.TrimPrefix(path, "/"), err)
	}
	return nil
}
