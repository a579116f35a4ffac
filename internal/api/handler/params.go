package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/weather"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// coordinates reads the lat and lon query parameters.
func coordinates(r *http.Request) (lat, lon float64, errs []models.FieldError) {
	lat, latErr := floatParam(r, "lat", -90, 90)
	lon, lonErr := floatParam(r, "lon", -180, 180)
	for _, fe := range []*models.FieldError{latErr, lonErr} {
		if fe != nil {
			errs = append(errs, *fe)
		}
	}
	return lat, lon, errs
}

func floatParam(r *http.Request, name string, lo, hi float64) (float64, *models.FieldError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &models.FieldError{Field: name, Message: "is required", Code: "required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.FieldError{Field: name, Message: "must be a number", Code: "number"}
	}
	if v < lo || v > hi {
		return 0, &models.FieldError{Field: name, Message: "is out of range", Code: "range"}
	}
	return v, nil
}

// pageSize reads the limit query parameter.
func pageSize(r *http.Request) (int, *models.FieldError) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxPageSize {
		return 0, &models.FieldError{
			Field:   "limit",
			Message: "must be between 1 and " + strconv.Itoa(maxPageSize),
			Code:    "range",
		}
	}
	return n, nil
}

// features parses a comma separated feature list. Only weather features are
// accepted.
func features(raw []string) ([]weather.Feature, []models.FieldError) {
	var (
		out  []weather.Feature
		errs []models.FieldError
	)
	for _, item := range raw {
		for _, name := range strings.Split(item, ",") {
			name = strings.ToUpper(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			f, err := weather.ParseFeature(name)
			if err != nil || !f.IsWeatherFeature() {
				errs = append(errs, models.FieldError{Field: "features", Message: "unknown feature " + name, Code: "feature"})
				continue
			}
			out = append(out, f)
		}
	}
	return out, errs
}

// decodeJSON decodes the request body into dst. An empty body is accepted
// when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}
