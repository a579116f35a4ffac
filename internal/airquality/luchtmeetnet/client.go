// Package luchtmeetnet provides a client for the Dutch national air quality
// monitoring network.
package luchtmeetnet

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Luchtmeetnet API.
	DefaultBaseURL = "https://api.luchtmeetnet.nl/open_api"

	// ProviderName identifies this provider.
	ProviderName = "luchtmeetnet"

	// measurementWindow is how far back measurements are requested.
	measurementWindow = 3 * time.Hour
)

// ClientConfig holds configuration for the Luchtmeetnet client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the resilient client to use. If nil, a default one is created.
	HTTPClient *resilience.Client

	// DetailConcurrency bounds parallel station detail requests (default: 8).
	DetailConcurrency int

	Logger zerolog.Logger
}

// Client is a Luchtmeetnet API client. Station metadata is fetched once per
// station and reused across snapshots.
type Client struct {
	baseURL           string
	httpClient        *resilience.Client
	detailConcurrency int
	logger            zerolog.Logger
	now               func() time.Time

	mu       sync.Mutex
	stations map[string]*airquality.Station
}

// NewClient creates a new Luchtmeetnet client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	concurrency := cfg.DetailConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	return &Client{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        httpClient,
		detailConcurrency: concurrency,
		logger:            cfg.Logger,
		now:               time.Now,
		stations:          make(map[string]*airquality.Station),
	}
}

type paginationInfo struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type stationsResponse struct {
	Pagination paginationInfo `json:"pagination"`
	Data       []struct {
		Number   string `json:"number"`
		Location string `json:"location"`
	} `json:"data"`
}

type stationDetailResponse struct {
	Data struct {
		Location   string   `json:"location"`
		Components []string `json:"components"`
		Geometry   struct {
			// Coordinates are [lon, lat].
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"data"`
}

type measurementsResponse struct {
	Pagination paginationInfo    `json:"pagination"`
	Data       []measurementData `json:"data"`
}

type measurementData struct {
	StationNumber     string  `json:"station_number"`
	Formula           string  `json:"formula"`
	Value             float64 `json:"value"`
	TimestampMeasured string  `json:"timestamp_measured"`
}

// FetchStations retrieves all monitoring stations with their position.
// Stations without usable coordinates are skipped.
func (c *Client) FetchStations(ctx context.Context) ([]*airquality.Station, error) {
	var numbers []string
	names := make(map[string]string)

	for page := 1; ; page++ {
		var resp stationsResponse
		if err := c.httpClient.GetJSON(ctx, c.baseURL+"/stations?page="+strconv.Itoa(page), nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching stations page %d: %w", page, err)
		}
		for _, s := range resp.Data {
			numbers = append(numbers, s.Number)
			names[s.Number] = s.Location
		}
		if page >= resp.Pagination.LastPage {
			break
		}
	}

	if err := c.fetchMissingDetails(ctx, numbers); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stations := make([]*airquality.Station, 0, len(numbers))
	for _, n := range numbers {
		s, ok := c.stations[n]
		if !ok {
			continue
		}
		if s.Name == "" {
			s.Name = names[n]
		}
		stations = append(stations, s)
	}
	return stations, nil
}

func (c *Client) fetchMissingDetails(ctx context.Context, numbers []string) error {
	c.mu.Lock()
	var missing []string
	for _, n := range numbers {
		if _, ok := c.stations[n]; !ok {
			missing = append(missing, n)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.detailConcurrency)

	for _, number := range missing {
		g.Go(func() error {
			station, err := c.fetchStation(ctx, number)
			if err != nil {
				return err
			}
			if station == nil {
				c.logger.Debug().Str("station", number).Msg("station has no coordinates")
				return nil
			}
			c.mu.Lock()
			c.stations[number] = station
			c.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

func (c *Client) fetchStation(ctx context.Context, number string) (*airquality.Station, error) {
	var resp stationDetailResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/stations/"+url.PathEscape(number), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching station %s: %w", number, err)
	}

	coords := resp.Data.Geometry.Coordinates
	if len(coords) < 2 {
		return nil, nil
	}

	pollutants := make([]airquality.Pollutant, 0, len(resp.Data.Components))
	for _, comp := range resp.Data.Components {
		if p := toPollutant(comp); p != "" {
			pollutants = append(pollutants, p)
		}
	}

	return &airquality.Station{
		ID:         number,
		Name:       resp.Data.Location,
		Lat:        coords[1],
		Lon:        coords[0],
		Pollutants: pollutants,
		UpdatedAt:  c.now(),
	}, nil
}

// FetchLatestMeasurements retrieves the measurements of the last hours. The
// snapshot keeps only the newest one per station and pollutant.
func (c *Client) FetchLatestMeasurements(ctx context.Context) ([]*airquality.Measurement, error) {
	end := c.now().UTC()
	q := url.Values{}
	q.Set("start", end.Add(-measurementWindow).Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	q.Set("order_by", "timestamp_measured")
	q.Set("order_direction", "desc")

	var all []*airquality.Measurement
	for page := 1; ; page++ {
		q.Set("page", strconv.Itoa(page))

		var resp measurementsResponse
		if err := c.httpClient.GetJSON(ctx, c.baseURL+"/measurements?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("fetching measurements page %d: %w", page, err)
		}
		for i := range resp.Data {
			if m := toMeasurement(&resp.Data[i]); m != nil {
				all = append(all, m)
			}
		}
		if page >= resp.Pagination.LastPage {
			break
		}
	}

	return all, nil
}

// FetchSnapshot fetches a complete snapshot of stations and measurements.
func (c *Client) FetchSnapshot(ctx context.Context) (*airquality.Snapshot, error) {
	var (
		stations     []*airquality.Station
		measurements []*airquality.Measurement
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stations, err = c.FetchStations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		measurements, err = c.FetchLatestMeasurements(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := airquality.NewSnapshot(ProviderName)
	snapshot.FetchedAt = c.now()

	for _, s := range stations {
		snapshot.Stations[s.ID] = s
	}
	for _, m := range measurements {
		if _, ok := snapshot.Stations[m.StationID]; ok {
			snapshot.SetMeasurement(m)
		}
	}

	return snapshot, nil
}

func toMeasurement(m *measurementData) *airquality.Measurement {
	pollutant := toPollutant(m.Formula)
	if pollutant == "" {
		return nil
	}

	measuredAt, err := time.Parse(time.RFC3339, m.TimestampMeasured)
	if err != nil {
		return nil
	}

	value := m.Value
	if pollutant == airquality.PollutantCO {
		// Reported in µg/m³, indexed in mg/m³.
		value /= 1000
	}

	return &airquality.Measurement{
		StationID:  m.StationNumber,
		Pollutant:  pollutant,
		Value:      value,
		MeasuredAt: measuredAt,
	}
}

func toPollutant(formula string) airquality.Pollutant {
	switch strings.ToUpper(formula) {
	case "NO2":
		return airquality.PollutantNO2
	case "PM25":
		return airquality.PollutantPM25
	case "PM10":
		return airquality.PollutantPM10
	case "O3":
		return airquality.PollutantO3
	case "SO2":
		return airquality.PollutantSO2
	case "CO":
		return airquality.PollutantCO
	default:
		return ""
	}
}
