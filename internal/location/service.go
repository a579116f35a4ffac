package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/weather"
	"github.com/breezyweather/breezyd/internal/weatherstore"
)

// Service errors.
var (
	ErrInvalidSource = errors.New("invalid source for location")
	ErrConflict      = errors.New("location conflict")
)

// SourceChecker verifies that a source can serve a feature for a location.
type SourceChecker interface {
	CheckSource(ctx context.Context, loc *weather.Location, f weather.Feature, id string) error
}

// ServiceConfig holds configuration for the location service.
type ServiceConfig struct {
	Repository Repository

	// Weather is cleared when a location is deleted or moved.
	Weather weatherstore.Repository

	Sources SourceChecker
	Logger  zerolog.Logger
}

// Service provides location operations.
type Service struct {
	repo    Repository
	weather weatherstore.Repository
	sources SourceChecker
	logger  zerolog.Logger
}

// NewService creates a new location service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:    cfg.Repository,
		weather: cfg.Weather,
		sources: cfg.Sources,
		logger:  cfg.Logger,
	}
}

// List retrieves one page of saved locations.
func (s *Service) List(ctx context.Context, limit int, cursor string) (*models.PagedLocations, error) {
	result, err := s.repo.List(ctx, ListOptions{Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, err
	}

	items := result.Items
	if items == nil {
		items = []*weather.Location{}
	}

	var nextCursor *string
	if result.NextCursor != "" {
		nextCursor = &result.NextCursor
	}

	return &models.PagedLocations{
		Items: items,
		Meta: models.PagedResponseMeta{
			Limit:      limit,
			NextCursor: nextCursor,
		},
	}, nil
}

// Get retrieves a location by ID.
func (s *Service) Get(ctx context.Context, id string) (*weather.Location, error) {
	return s.repo.Get(ctx, id)
}

// Create saves a new location.
func (s *Service) Create(ctx context.Context, input *models.LocationCreateRequest) (*weather.Location, error) {
	if fieldErrors := models.Validate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now().UTC()
	loc := &weather.Location{
		ID:                newLocationID(),
		Name:              input.Name,
		District:          input.District,
		Province:          input.Province,
		Country:           input.Country,
		CountryCode:       strings.ToUpper(input.CountryCode),
		Lat:               *input.Lat,
		Lon:               *input.Lon,
		TimeZone:          input.TimeZone,
		IsCurrentPosition: input.IsCurrentPosition,
		ForecastSource:    input.ForecastSource,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.applySources(ctx, loc, input.FeatureSources); err != nil {
		return nil, err
	}
	if err := s.checkSources(ctx, loc); err != nil {
		return nil, err
	}

	if loc.IsCurrentPosition {
		if _, err := s.repo.GetCurrentPosition(ctx); err == nil {
			return nil, fmt.Errorf("%w: a current position location already exists", ErrConflict)
		}
	}

	if err := s.repo.Create(ctx, loc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("location_id", loc.ID).Msg("location created")
	return loc, nil
}

// Update changes names, coordinates or source choices of a location.
// Moving a location drops its stored weather.
func (s *Service) Update(ctx context.Context, id string, input *models.LocationUpdateRequest) (*weather.Location, error) {
	loc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if fieldErrors := models.Validate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	setIf(&loc.Name, input.Name)
	setIf(&loc.District, input.District)
	setIf(&loc.Province, input.Province)
	setIf(&loc.Country, input.Country)
	setIf(&loc.TimeZone, input.TimeZone)
	setIf(&loc.ForecastSource, input.ForecastSource)
	if input.CountryCode != nil {
		loc.CountryCode = strings.ToUpper(*input.CountryCode)
	}

	moved := false
	if input.Lat != nil && *input.Lat != loc.Lat {
		loc.Lat, moved = *input.Lat, true
	}
	if input.Lon != nil && *input.Lon != loc.Lon {
		loc.Lon, moved = *input.Lon, true
	}

	if err := s.applySources(ctx, loc, input.FeatureSources); err != nil {
		return nil, err
	}
	if err := s.checkSources(ctx, loc); err != nil {
		return nil, err
	}

	loc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, loc); err != nil {
		return nil, err
	}

	if moved {
		s.dropWeather(ctx, loc.ID)
	}
	return loc, nil
}

// Delete removes a location and its stored weather.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.dropWeather(ctx, id)

	s.logger.Info().Str("location_id", id).Msg("location deleted")
	return nil
}

// SetCurrentPosition moves the current position location to lat/lon,
// creating it on first use. Place names are cleared when it moves so they
// are resolved again on the next refresh.
func (s *Service) SetCurrentPosition(ctx context.Context, lat, lon float64) (*weather.Location, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loc, err := s.repo.GetCurrentPosition(ctx)
	switch {
	case errors.Is(err, ErrLocationNotFound):
		loc = &weather.Location{
			ID:                newLocationID(),
			Lat:               lat,
			Lon:               lon,
			IsCurrentPosition: true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.Create(ctx, loc); err != nil {
			return nil, err
		}
		return loc, nil
	case err != nil:
		return nil, err
	}

	if loc.Lat == lat && loc.Lon == lon {
		return loc, nil
	}

	loc.Lat, loc.Lon = lat, lon
	loc.Name, loc.District, loc.Province = "", "", ""
	loc.Country, loc.CountryCode, loc.TimeZone = "", "", ""
	loc.UpdatedAt = now
	if err := s.repo.Update(ctx, loc); err != nil {
		return nil, err
	}
	s.dropWeather(ctx, loc.ID)
	return loc, nil
}

// applySources merges per-feature source overrides into loc. An empty
// source ID removes the override.
func (s *Service) applySources(_ context.Context, loc *weather.Location, overrides map[string]string) error {
	if len(overrides) == 0 {
		return nil
	}

	var fieldErrors []models.FieldError
	for name, id := range overrides {
		f, err := weather.ParseFeature(name)
		if err != nil {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "featureSources." + name,
				Message: "unknown feature",
				Code:    "feature",
			})
			continue
		}
		if f == weather.FeatureForecast {
			loc.ForecastSource = id
			continue
		}
		if loc.FeatureSources == nil {
			loc.FeatureSources = make(map[weather.Feature]string)
		}
		if id == "" {
			delete(loc.FeatureSources, f)
			continue
		}
		loc.FeatureSources[f] = id
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Errors: fieldErrors}
	}
	return nil
}

// checkSources verifies every source chosen on loc.
func (s *Service) checkSources(ctx context.Context, loc *weather.Location) error {
	if s.sources == nil {
		return nil
	}
	if loc.ForecastSource != "" {
		if err := s.sources.CheckSource(ctx, loc, weather.FeatureForecast, loc.ForecastSource); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	}
	for f, id := range loc.FeatureSources {
		if err := s.sources.CheckSource(ctx, loc, f, id); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
	}
	return nil
}

func (s *Service) dropWeather(ctx context.Context, id string) {
	if s.weather == nil {
		return
	}
	if err := s.weather.Delete(ctx, id); err != nil && !errors.Is(err, weatherstore.ErrNotFound) {
		s.logger.Warn().Err(err).Str("location_id", id).Msg("failed to delete stored weather")
	}
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func newLocationID() string {
	return "loc_" + uuid.NewString()
}
