package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/breezyweather/breezyd/internal/worker"
)

func TestProcessor_TracesJobs(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	repo := seedLocations(t, 1)
	refresher := &fakeRefresher{failures: map[string]error{"loc_00": errUpstream}}
	p := worker.NewProcessor(newJob(repo, refresher, worker.RefreshConfig{}), nil, zerolog.Nop())

	outcome, err := p.Process(context.Background(),
		message(t, worker.RefreshMessage{JobType: worker.JobRefreshLocation, LocationID: "loc_00"}))
	require.Error(t, err)
	assert.Equal(t, worker.Nack, outcome)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "worker.job refresh_location", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
