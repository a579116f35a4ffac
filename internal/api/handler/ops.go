// Package handler provides HTTP handlers for the breezyd API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/breezyweather/breezyd/internal/airquality"
	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/api/response"
	"github.com/breezyweather/breezyd/internal/featureflags"
	"github.com/breezyweather/breezyd/internal/provider/resilience"
)

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradationFlags are the runtime switches reported by the status endpoint.
type DegradationFlags interface {
	DisabledSources(ctx context.Context) map[string]bool
	AlertsDisabled(ctx context.Context) bool
	CachedOnlyWeather(ctx context.Context) bool
	ReverseGeocodingDisabled(ctx context.Context) bool
}

// OpsConfig holds the dependencies of the ops endpoints. All but the
// version fields are optional.
type OpsConfig struct {
	Version    string
	BuildTime  string
	Database   Pinger
	Registry   *resilience.Registry
	Flags      DegradationFlags
	AirQuality *airquality.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if db := h.database(r.Context()); db.Status != models.HealthStatusOK {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"database": db.Detail}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - source and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.database(ctx)},
		Sources:    h.sources(),
	}
	if aq, ok := h.airQuality(); ok {
		status.Subsystems = append(status.Subsystems, aq)
	}
	status.ActiveDegradationFlags = h.activeFlags(ctx)

	for _, sub := range status.Subsystems {
		status.Status = status.Status.Worse(sub.Status)
	}
	for _, src := range status.Sources {
		if src.Status != models.HealthStatusOK {
			status.Status = status.Status.Worse(models.HealthStatusDegraded)
		}
	}
	if len(status.ActiveDegradationFlags) > 0 {
		status.Status = status.Status.Worse(models.HealthStatusDegraded)
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) database(ctx context.Context) models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
	if h.cfg.Database == nil {
		detail := "in-memory storage"
		sub.Detail = &detail
		return sub
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cfg.Database.Ping(ctx); err != nil {
		detail := err.Error()
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
	}
	return sub
}

func (h *OpsHandler) airQuality() (models.SubsystemStatus, bool) {
	if h.cfg.AirQuality == nil {
		return models.SubsystemStatus{}, false
	}
	cs := h.cfg.AirQuality.CacheStatus()
	sub := models.SubsystemStatus{Name: "air-quality-stations", Status: models.HealthStatusOK}
	switch {
	case !cs.HasData:
		detail := "no station snapshot loaded yet"
		sub.Detail = &detail
	case cs.IsStale:
		detail := "station snapshot is stale"
		sub.Status = models.HealthStatusDegraded
		sub.Detail = &detail
	}
	return sub, true
}

func (h *OpsHandler) sources() []models.SourceStatus {
	out := []models.SourceStatus{}
	if h.cfg.Registry == nil {
		return out
	}
	for _, ph := range h.cfg.Registry.All() {
		st := models.SourceStatus{
			Source:              ph.Source,
			Status:              sourceStatus(ph.Status()),
			CircuitState:        ph.CircuitState.String(),
			Requests:            ph.Counts.Requests,
			ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			TotalFailures:       ph.Failures,
			LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
		}
		if ph.LastError != "" {
			msg := ph.LastError
			st.Message = &msg
		}
		out = append(out, st)
	}
	return out
}

func (h *OpsHandler) activeFlags(ctx context.Context) []string {
	if h.cfg.Flags == nil {
		return nil
	}
	var active []string
	if len(h.cfg.Flags.DisabledSources(ctx)) > 0 {
		active = append(active, featureflags.FlagDisabledSources)
	}
	if h.cfg.Flags.AlertsDisabled(ctx) {
		active = append(active, featureflags.FlagDisableAlerts)
	}
	if h.cfg.Flags.CachedOnlyWeather(ctx) {
		active = append(active, featureflags.FlagCachedOnlyWeather)
	}
	if h.cfg.Flags.ReverseGeocodingDisabled(ctx) {
		active = append(active, featureflags.FlagDisableReverseGeocoding)
	}
	return active
}

func sourceStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
