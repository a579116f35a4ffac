package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/breezyweather/breezyd/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for the admin API",
		Long: `Mints an HS256 admin token signed with ADMIN_JWT_SECRET.

Example:
  breezyctl token --subject ops@example.com --ttl 12h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			svc := auth.NewJWTService(auth.JWTConfig{SigningKey: c.cfg.AdminJWTSecret})
			token, expiresAt, err := svc.GenerateAdminToken(subject, ttl)
			if err != nil {
				return err
			}
			c.logger.Debug().
				Str("subject", subject).
				Time("expires_at", expiresAt).
				Msg("admin token minted")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	return cmd
}
