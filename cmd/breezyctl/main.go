// Package main provides breezyctl, the operator CLI of breezyd.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/bootstrap"
	"github.com/breezyweather/breezyd/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// cli carries the state shared by the subcommands.
type cli struct {
	verbose bool
	cfg     *config.Config
	logger  zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "breezyctl",
		Short: "Operate a breezyd deployment",
		Long: `breezyctl runs maintenance tasks against the breezyd storage and
weather sources using the same configuration as the API and the worker.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			level := cfg.LogLevel
			if c.verbose {
				level = "debug"
			}
			c.logger = bootstrap.NewLogger(cmd.ErrOrStderr(), "breezyctl", Version, level)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newMigrateCmd(c),
		newTokenCmd(c),
		newSourcesCmd(c),
		newWeatherCmd(c),
		newRefreshCmd(c),
	)
	return root
}

// services opens storage and the sources.
func (c *cli) services(ctx context.Context) (*bootstrap.Services, error) {
	return bootstrap.NewServices(ctx, c.cfg, c.logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
