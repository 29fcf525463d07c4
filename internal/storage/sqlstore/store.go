// Package sqlstore provides a database/sql backed repository.
//
// Two dialects are supported: an embedded SQLite file (modernc.org/sqlite,
// no cgo) and MySQL-compatible servers, including a Dolt sql-server, through
// github.com/go-sql-driver/mysql. The schema is managed by goose migrations
// embedded in the binary.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// Dialect names a supported SQL engine.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultRetryMaxElapsed = 30 * time.Second
)

// Config configures how a Store is opened.
type Config struct {
	Dialect Dialect
	// DSN is a file path for SQLite or a go-sql-driver DSN for MySQL
	// (user:pass@tcp(host:3306)/db).
	DSN            string
	Logger         *zap.Logger
	ConnectTimeout time.Duration
	// RetryMaxElapsed bounds how long a conflicting transaction is retried.
	RetryMaxElapsed time.Duration
}

// Store is a SQL-backed implementation of storage.Storage.
type Store struct {
	*conn
	db     *sql.DB
	logger *zap.Logger
	cfg    Config

	mu     sync.Mutex
	closed bool
}

var _ storage.Storage = (*Store)(nil)

// PrepareSQLiteDSN adds default pragmas to a SQLite path unless the caller set them.
func PrepareSQLiteDSN(path string) (string, error) {
	path = strings.TrimPrefix(path, "file:")
	query := url.Values{}
	var err error
	if i := strings.Index(path, "?"); i != -1 {
		query, err = url.ParseQuery(path[i+1:])
		if err != nil {
			return path, fmt.Errorf("error parsing dsn: %w", err)
		}
		path = path[:i]
	}

	found := map[string]bool{}
	for _, val := range query["_pragma"] {
		for _, name := range []string{"journal_mode", "busy_timeout", "foreign_keys"} {
			if strings.HasPrefix(val, name) {
				found[name] = true
			}
		}
	}
	if !found["journal_mode"] {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !found["busy_timeout"] {
		query.Add("_pragma", "busy_timeout(5000)")
	}
	if !found["foreign_keys"] {
		query.Add("_pragma", "foreign_keys(1)")
	}
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + query.Encode(), nil
}

// Open connects to the database described by cfg and migrates its schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RetryMaxElapsed == 0 {
		cfg.RetryMaxElapsed = defaultRetryMaxElapsed
	}

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Dialect {
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(strings.TrimPrefix(cfg.DSN, "file:")), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn, dsnErr := PrepareSQLiteDSN(cfg.DSN)
		if dsnErr != nil {
			return nil, dsnErr
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}
	case DialectMySQL:
		db, err = sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql db: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", cfg.Dialect)
	}

	if err := waitForDB(ctx, db, cfg.ConnectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Dialect, err)
	}
	if err := migrate(ctx, db, cfg.Dialect, cfg.Logger); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Dialect == DialectSQLite {
		// SQLite has a single writer; one connection avoids SQLITE_BUSY churn
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return &Store{
		conn:   &conn{q: db},
		db:     db,
		logger: cfg.Logger,
		cfg:    cfg,
	}, nil
}

// OpenSQLite is shorthand for Open with the SQLite dialect.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	return Open(ctx, Config{Dialect: DialectSQLite, DSN: path, Logger: logger})
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced use.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports which engine the store talks to.
func (s *Store) Dialect() Dialect {
	return s.cfg.Dialect
}

// CreateItem inserts the item and its creation event atomically.
func (s *Store) CreateItem(ctx context.Context, item *types.WorkItem, actor string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.CreateItem(ctx, item, actor)
	})
}

// RunInTransaction executes fn within a database transaction.
// Lock contention and serialization conflicts retry the whole transaction
// with exponential backoff; any other error rolls back and is returned as is.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return storage.ErrClosed
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = s.cfg.RetryMaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := s.runTransactionOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			s.logger.Debug("retrying transaction after conflict",
				zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// runTransactionOnce executes a single transaction attempt
func (s *Store) runTransactionOnce(ctx context.Context, fn func(tx storage.Transaction) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&conn{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Both dialects use ? placeholders.
var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
