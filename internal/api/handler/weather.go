package handler

import (
	"context"
	"net/http"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/weather"
)

// PointWeather aggregates weather for ad-hoc coordinates.
type PointWeather interface {
	RefreshPoint(ctx context.Context, lat, lon float64, opts aggregator.Options) (*weather.Weather, *aggregator.Report, error)
}

// WeatherHandler serves weather for coordinates that are not saved.
type WeatherHandler struct {
	weather PointWeather
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(pw PointWeather) *WeatherHandler {
	return &WeatherHandler{weather: pw}
}

// GetWeather handles GET /v1/weather?lat&lon&features.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	lat, lon, errs := coordinates(r)
	fs, ferrs := features(r.URL.Query()["features"])
	errs = append(errs, ferrs...)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid query parameters", errs)
		return
	}

	wx, report, err := h.weather.RefreshPoint(r.Context(), lat, lon, aggregator.Options{Features: fs})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.WeatherResponse{Weather: wx, Report: report})
}
