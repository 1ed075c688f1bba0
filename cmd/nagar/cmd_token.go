package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/config"
	"github.com/Subho98799/nagar/internal/service"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <reviewer-id>",
	Short: "Issue a reviewer bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		ttl := cfg.Auth.TokenTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}
		auth, err := service.NewAuthService(cfg.Auth.JWTSecret, ttl, clock.NewReal(), zap.NewNop())
		if err != nil {
			return err
		}
		token, expires, err := auth.IssueToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.token_ttl)")
}
