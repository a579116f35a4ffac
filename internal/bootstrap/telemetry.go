package bootstrap

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/config"
	"github.com/breezyweather/breezyd/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// InitTelemetry installs the OpenTelemetry providers for serviceName and
// returns a func that flushes them. The returned func never fails; flush
// errors are logged.
func InitTelemetry(ctx context.Context, cfg *config.Config, serviceName, version string, log zerolog.Logger) (func(), error) {
	p, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.Endpoint).
			Float64("sample_ratio", cfg.Telemetry.SampleRatio).
			Msg("telemetry export enabled")
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("failed to flush telemetry")
		}
	}, nil
}
