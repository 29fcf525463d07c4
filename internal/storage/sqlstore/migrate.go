package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*
var embedMigrations embed.FS

const (
	sqliteMigrationDir = "migrations/sqlite"
	mysqlMigrationDir  = "migrations/mysql"
)

func migrationFS(d Dialect) (fs.FS, goose.Dialect, error) {
	switch d {
	case DialectSQLite:
		sub, err := fs.Sub(embedMigrations, sqliteMigrationDir)
		return sub, goose.DialectSQLite3, err
	case DialectMySQL:
		sub, err := fs.Sub(embedMigrations, mysqlMigrationDir)
		return sub, goose.DialectMySQL, err
	default:
		return nil, "", fmt.Errorf("unsupported dialect: %s", d)
	}
}

// waitForDB pings until the database answers or timeout elapses.
func waitForDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = timeout
	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx))
}

// migrate brings the schema to the latest embedded version.
func migrate(ctx context.Context, db *sql.DB, d Dialect, logger *zap.Logger) error {
	fsys, dialect, err := migrationFS(d)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("init %s migrations: %w", d, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run %s migrations: %w", d, err)
	}
	for _, r := range results {
		logger.Debug("applied migration",
			zap.String("dialect", string(d)),
			zap.Int64("version", r.Source.Version),
			zap.Duration("took", r.Duration),
		)
	}
	if len(results) > 0 {
		logger.Info("schema migrated",
			zap.String("dialect", string(d)),
			zap.Int("applied", len(results)),
			zap.Int64("version", results[len(results)-1].Source.Version),
		)
	}
	return nil
}
