package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Subho98799/nagar/internal/clock"
	"github.com/Subho98799/nagar/internal/config"
	"github.com/Subho98799/nagar/internal/repository"
	"github.com/Subho98799/nagar/internal/service"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	clock   clock.Clock
	db      *sqlx.DB
	repo    repository.ReportRepository
	engines service.Engines
}

func newApp() (*app, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, clock: clock.NewReal()}
	if err := a.openStore(); err != nil {
		_ = logger.Sync()
		return nil, err
	}
	a.engines = service.NewEngines(a.repo, a.clock, cfg.EscalationConfig(), logger)
	return a, nil
}

func (a *app) openStore() error {
	var err error
	switch a.cfg.Database.Type {
	case "postgres":
		a.db, err = repository.NewPostgresDB(a.cfg.Database.URL, a.logger)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		if err := repository.MigrateDB(a.db, a.cfg.Database.Migrations, a.logger); err != nil {
			a.db.Close()
			return err
		}
	default:
		if dir := filepath.Dir(a.cfg.Database.URL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}
		}
		a.db, err = repository.NewSQLiteDB(a.cfg.Database.URL, a.logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
	}
	a.repo = repository.NewReportRepository(a.db, a.logger)
	return nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
