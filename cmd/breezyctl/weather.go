package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/aggregator"
	"github.com/breezyweather/breezyd/internal/weather"
)

func newWeatherCmd(c *cli) *cobra.Command {
	var (
		lat, lon float64
		features []string
	)
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Aggregate the weather of a point and print it as JSON",
		Long: `Aggregates the weather of a point from the registered sources and
prints the result together with the per-feature report.

Example:
  breezyctl weather --lat 52.09 --lon 5.12 --features current,air_quality`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := parseFeatures(features)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			w, report, err := services.Aggregator.RefreshPoint(ctx, lat, lon, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"weather": w,
				"report":  report,
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to aggregate (default all)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func parseFeatures(names []string) (aggregator.Options, error) {
	var opts aggregator.Options
	for _, name := range names {
		f, err := weather.ParseFeature(strings.ToUpper(strings.TrimSpace(name)))
		if err != nil {
			return opts, err
		}
		if f.IsWeatherFeature() {
			opts.Features = append(opts.Features, f)
		}
	}
	return opts, nil
}
