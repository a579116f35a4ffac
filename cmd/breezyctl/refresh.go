package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/worker"
)

func newRefreshCmd(c *cli) *cobra.Command {
	var (
		all         bool
		enqueue     bool
		concurrency int
		features    []string
	)
	cmd := &cobra.Command{
		Use:   "refresh [location-id...]",
		Short: "Refresh the stored weather of saved locations",
		Long: `Refreshes the given saved locations, or every saved location with --all,
the same way the worker does. With --enqueue the jobs are published to the
worker's Pub/Sub topic instead of being run here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass location IDs or --all")
			}
			if enqueue {
				return c.enqueue(cmd, all, args)
			}
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

			job := worker.NewRefreshJob(worker.RefreshJobConfig{
				Config: worker.RefreshConfig{
					Concurrency: concurrency,
					Timeout:     c.cfg.Poll.LocationTimeout,
					Features:    opts.Features,
				},
				Locations: services.Storage.Locations,
				Refresher: services.Aggregator,
				Logger:    c.logger,
			})
			out := cmd.OutOrStdout()

			if all {
				result, err := job.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d locations: %d fresh, %d partial, %d failed in %s\n",
					result.TotalLocations, result.Successful, result.Partial, result.Failed, result.Duration)
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  %s: %s\n", e.LocationID, e.Error)
				}
				if result.Failed > 0 {
					return fmt.Errorf("%d locations failed", result.Failed)
				}
				return nil
			}

			var failed int
			for _, id := range args {
				report, err := job.RefreshLocation(ctx, id)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%s: missing %v, stale %v\n", id, report.Missing(), report.StaleFeatures())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d locations failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Refresh every saved location")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Publish refresh jobs for the worker instead of running them")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "Locations refreshed at once")
	cmd.Flags().StringSliceVar(&features, "features", nil, "Features to refresh (default all)")
	return cmd
}

func (c *cli) enqueue(cmd *cobra.Command, all bool, ids []string) error {
	if c.cfg.PubSub.ProjectID == "" {
		return errors.New("--enqueue needs PUBSUB_PROJECT_ID")
	}
	msgs := []worker.RefreshMessage{{JobType: worker.JobRefreshAll}}
	if !all {
		msgs = msgs[:0]
		for _, id := range ids {
			msgs = append(msgs, worker.RefreshMessage{JobType: worker.JobRefreshLocation, LocationID: id})
		}
	}

	ctx := cmd.Context()
	pub, err := worker.NewJobPublisher(ctx, c.cfg.PubSub.ProjectID, c.cfg.PubSub.Topic)
	if err != nil {
		return err
	}
	defer pub.Close()

	for _, msg := range msgs {
		id, err := pub.Enqueue(ctx, msg)
		if err != nil {
			return err
		}
		target := msg.LocationID
		if target == "" {
			target = "all locations"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s for %s (%s)\n", msg.JobType, target, id)
	}
	return nil
}
