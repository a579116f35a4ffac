package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/weather"
)

func newSourcesCmd(c *cli) *cobra.Command {
	var (
		lat, lon float64
		country  string
	)
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the registered weather sources",
		Long: `Lists every registered source with its features and state.

With --lat and --lon the candidates per feature for that point are listed
instead, highest priority first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx)
			if err != nil {
				return err
			}
			defer services.Close()
			manager := services.Sources.Manager

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if !cmd.Flags().Changed("lat") && !cmd.Flags().Changed("lon") {
				fmt.Fprintln(tw, "ID\tNAME\tCONFIGURED\tENABLED\tFEATURES")
				for _, info := range manager.Describe(ctx) {
					features := make([]string, 0, len(info.Features))
					for _, f := range info.Features {
						features = append(features, string(f))
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n",
						info.ID, info.Name, info.Configured, info.Enabled, strings.Join(features, ","))
				}
				return nil
			}

			if err := weather.ValidateCoordinates(lat, lon); err != nil {
				return err
			}
			loc := &weather.Location{Lat: lat, Lon: lon, CountryCode: strings.ToUpper(country)}
			fmt.Fprintln(tw, "FEATURE\tSOURCE\tPRIORITY\tCONFIGURED")
			for _, f := range weather.AllWeatherFeatures() {
				for _, cand := range manager.Candidates(ctx, loc, f) {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", f, cand.Source.ID(), cand.Priority, cand.Configured)
				}
			}
			for _, src := range manager.ReverseGeocodingCandidates(ctx, loc) {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", weather.FeatureReverseGeocoding, src.ID(),
					src.FeaturePriorityForLocation(loc, weather.FeatureReverseGeocoding), true)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the point")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude of the point")
	cmd.Flags().StringVar(&country, "country", "", "ISO 3166-1 alpha-2 country code of the point")
	return cmd
}
