package repository

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // Required for file source
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewPostgresDB establishes a new connection to the PostgreSQL database.
func NewPostgresDB(dataSourceName string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to the database!")
	return db, nil
}

// NewSQLiteDB opens (or creates) a SQLite file and ensures the reports schema.
// Writes are serialized through a single connection.
func NewSQLiteDB(path string, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite report store initialized", zap.String("db_path", path))
	return db, nil
}

// MigrateDB applies the PostgreSQL migrations found in dir.
func MigrateDB(db *sqlx.DB, dir string, logger *zap.Logger) error {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "nagar", driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully")
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL,
	issue_type TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL,
	locality TEXT NOT NULL DEFAULT '',
	lat REAL,
	lon REAL,
	reporter_identity_hash TEXT NOT NULL DEFAULT '',
	media_refs TEXT NOT NULL DEFAULT '[]',
	confidence TEXT NOT NULL,
	confidence_reason TEXT NOT NULL DEFAULT '',
	confidence_overridden BOOLEAN NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	status_history TEXT NOT NULL DEFAULT '[]',
	reviewer_notes TEXT NOT NULL DEFAULT '[]',
	priority_score INTEGER,
	priority_reason TEXT NOT NULL DEFAULT '',
	escalation_flag BOOLEAN NOT NULL DEFAULT 0,
	escalation_reason TEXT NOT NULL DEFAULT '',
	escalation_overridden BOOLEAN NOT NULL DEFAULT 0,
	escalation_history TEXT NOT NULL DEFAULT '[]',
	ai_metadata TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_locality ON reports(locality, created_at);
CREATE INDEX IF NOT EXISTS idx_reports_identity ON reports(reporter_identity_hash, created_at);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
`
