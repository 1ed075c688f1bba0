package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/crypto"
	"github.com/Subho98799/nagar/internal/gate"
	"github.com/Subho98799/nagar/internal/llm"
	"github.com/Subho98799/nagar/internal/server"
	"github.com/Subho98799/nagar/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	hasher, err := crypto.NewIdentityHasher(a.cfg.Identity.Salt)
	if err != nil {
		return fmt.Errorf("identity.salt: %w", err)
	}
	auth, err := service.NewAuthService(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL, a.clock, logger)
	if err != nil {
		return fmt.Errorf("auth.jwt_secret: %w", err)
	}

	var enricher service.Enricher
	if a.cfg.AI.Enabled {
		multiClient, err := llm.NewMultiProviderClient(a.cfg.ProvidersConfig(), logger)
		if err != nil {
			return fmt.Errorf("init enrichment providers: %w", err)
		}
		defer multiClient.Close()
		enricher = llm.NewEnricher(multiClient, a.cfg.AI.Timeout, a.clock, logger)
		logger.Info("AI enrichment enabled", zap.Duration("timeout", a.cfg.AI.Timeout))
	}

	g := gate.New(a.repo, a.clock, a.cfg.GateConfig(), logger)
	reports := service.NewReportService(a.repo, g, a.engines, enricher, a.clock, logger)
	reviewer := service.NewReviewerService(a.repo, a.engines, a.clock, logger)

	accessLog := logrus.New()
	accessLog.SetFormatter(&logrus.JSONFormatter{})

	srv := server.NewServer(":"+a.cfg.Server.Port, server.Deps{
		Reports:  reports,
		Reviewer: reviewer,
		Auth:     auth,
		Hasher:   hasher,
	}, accessLog, logger)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx, a.cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	logger.Info("Application stopped.")
	return nil
}
