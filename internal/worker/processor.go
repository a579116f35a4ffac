package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breezyweather/breezyd/internal/location"
	"github.com/breezyweather/breezyd/internal/weather"
)

// Job types accepted by the Processor.
const (
	JobRefreshAll      = "refresh_all"
	JobRefreshLocation = "refresh_location"
	JobHealthCheck     = "health_check"
)

const healthCheckTimeout = 30 * time.Second

// HealthChecker probes the upstream sources.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// RefreshMessage is a job request.
type RefreshMessage struct {
	JobType    string `json:"job_type"`
	LocationID string `json:"location_id,omitempty"`
}

// Outcome tells the transport what to do with a message.
type Outcome int

const (
	Ack  Outcome = iota // done, or not worth redelivering
	Nack                // redeliver
)

func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

var errMissingLocationID = errors.New("refresh_location requires location_id")

// Processor runs job messages independently of how they are delivered.
type Processor struct {
	job    *RefreshJob
	health HealthChecker
	logger zerolog.Logger
	tracer trace.Tracer
}

func NewProcessor(job *RefreshJob, health HealthChecker, logger zerolog.Logger) *Processor {
	return &Processor{job: job, health: health, logger: logger, tracer: otel.Tracer(meterName)}
}

// Process runs the job in data. Malformed messages, unknown job types and
// references to missing locations are acked since redelivery cannot fix
// them; other failures are nacked.
func (p *Processor) Process(ctx context.Context, data []byte) (Outcome, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Ack, fmt.Errorf("parsing message: %w", err)
	}

	ctx, span := p.tracer.Start(ctx, "worker.job "+msg.JobType,
		trace.WithAttributes(attribute.String("job.type", msg.JobType)))
	defer span.End()

	outcome, err := p.run(ctx, msg)
	span.SetAttributes(attribute.Stringer("job.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

func (p *Processor) run(ctx context.Context, msg RefreshMessage) (Outcome, error) {
	var err error
	switch msg.JobType {
	case JobRefreshAll:
		err = p.refreshAll(ctx)
	case JobRefreshLocation:
		err = p.refreshLocation(ctx, msg.LocationID)
		if errors.Is(err, location.ErrLocationNotFound) || errors.Is(err, errMissingLocationID) {
			return Ack, err
		}
	case JobHealthCheck:
		err = p.healthCheck(ctx)
	default:
		return Ack, fmt.Errorf("unknown job type %q", msg.JobType)
	}
	if err != nil {
		return Nack, err
	}
	return Ack, nil
}

func (p *Processor) refreshAll(ctx context.Context) error {
	result, err := p.job.Run(ctx)
	if err != nil {
		return err
	}
	if result.Failed > result.Successful+result.Partial {
		return fmt.Errorf("%w: %d/%d", ErrTooManyFailures, result.Failed, result.TotalLocations)
	}
	return nil
}

func (p *Processor) refreshLocation(ctx context.Context, id string) error {
	if id == "" {
		return errMissingLocationID
	}
	report, err := p.job.RefreshLocation(ctx, id)
	if err != nil {
		return err
	}
	p.logger.Info().
		Str("location_id", id).
		Strs("missing", featureNames(report.Missing())).
		Strs("stale", featureNames(report.StaleFeatures())).
		Msg("location refreshed")
	return nil
}

func (p *Processor) healthCheck(ctx context.Context) error {
	if p.health == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return p.health.CheckHealth(ctx)
}

func featureNames(fs []weather.Feature) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
