package factory

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/storage/memory"
	"github.com/wpgraph/wpgraph/internal/storage/sqlstore"
)

func init() {
	RegisterBackend(BackendMemory, func(ctx context.Context, opts Options) (storage.Storage, error) {
		return memory.NewSeeded(), nil
	})
	RegisterBackend(BackendSQLite, func(ctx context.Context, opts Options) (storage.Storage, error) {
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		return sqlstore.Open(ctx, sqlstore.Config{
			Dialect:        sqlstore.DialectSQLite,
			DSN:            opts.Path,
			Logger:         opts.Logger,
			ConnectTimeout: opts.ConnectTimeout,
		})
	})
	RegisterBackend(BackendMySQL, func(ctx context.Context, opts Options) (storage.Storage, error) {
		return sqlstore.Open(ctx, sqlstore.Config{
			Dialect:        sqlstore.DialectMySQL,
			DSN:            MySQLDSN(opts),
			Logger:         opts.Logger,
			ConnectTimeout: opts.ConnectTimeout,
		})
	})
}

// MySQLDSN returns opts.DSN, or builds one from the server fields.
func MySQLDSN(opts Options) string {
	if opts.DSN != "" {
		return opts.DSN
	}
	host := opts.ServerHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.ServerPort
	if port == 0 {
		port = 3306
	}
	user := opts.ServerUser
	if user == "" {
		user = "root"
	}
	database := opts.Database
	if database == "" {
		database = "wpgraph"
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.User = user
	cfg.Passwd = opts.Password
	cfg.DBName = database
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}
