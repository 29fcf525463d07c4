// Package factory provides functions for creating storage backends based on configuration.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/telemetry"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// BackendFactory is a function that creates a storage backend
type BackendFactory func(ctx context.Context, opts Options) (storage.Storage, error)

// backendRegistry holds registered backend factories
var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures how the storage backend is opened
type Options struct {
	Path string // SQLite database file
	DSN  string // Full MySQL DSN; overrides the Server* fields

	// MySQL / dolt sql-server connection (used when DSN is empty)
	ServerHost string // default: 127.0.0.1
	ServerPort int    // default: 3306
	ServerUser string // default: root
	Password   string
	Database   string // default: wpgraph

	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// New creates a storage backend by name and decorates it with telemetry.
// An empty backend selects sqlite.
func New(ctx context.Context, backend string, opts Options) (storage.Storage, error) {
	if backend == "" {
		backend = BackendSQLite
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	factory, ok := backendRegistry[backend]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, strings.Join(Backends(), ", "))
	}
	s, err := factory(ctx, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("storage opened", zap.String("backend", backend))
	return telemetry.WrapStorage(s), nil
}
