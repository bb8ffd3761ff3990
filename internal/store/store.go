// Package store selects and opens the invoicing store backend from a database URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/invoice-api/internal/invoicing"
	"github.com/noah-isme/invoice-api/internal/store/postgres"
	"github.com/noah-isme/invoice-api/internal/store/sqlite"
)

// Backend is an invoicing store owning a connection that must be closed.
type Backend interface {
	invoicing.Store
	Close() error
}

// Options configures Open.
type Options struct {
	URL             string
	AutoMigrate     bool
	ApplicationName string
	Tracer          pgx.QueryTracer
}

// Kind names the backend a URL selects.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// Detect reports which backend a database URL selects and the driver DSN for it.
func Detect(url string) (Kind, string, error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", "", errors.New("store: database url is empty")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return KindPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return KindSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return KindSQLite, strings.TrimPrefix(url, "sqlite:"), nil
	case url == ":memory:", strings.HasPrefix(url, "file:"):
		return KindSQLite, url, nil
	default:
		return "", "", fmt.Errorf("store: unsupported database url scheme in %q", redact(url))
	}
}

// Open connects to the backend selected by opts.URL.
func Open(ctx context.Context, opts Options) (Backend, Kind, error) {
	kind, dsn, err := Detect(opts.URL)
	if err != nil {
		return nil, "", err
	}
	switch kind {
	case KindSQLite:
		s, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, kind, err
		}
		return s, kind, nil
	default:
		if opts.AutoMigrate {
			if err := postgres.Migrate(dsn); err != nil {
				return nil, kind, err
			}
		}
		poolConfig, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, kind, fmt.Errorf("parse database config: %w", err)
		}
		if opts.Tracer != nil {
			poolConfig.ConnConfig.Tracer = opts.Tracer
		}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		if opts.ApplicationName != "" {
			poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, kind, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, kind, fmt.Errorf("ping database: %w", err)
		}
		return postgres.New(pool), kind, nil
	}
}

func redact(url string) string {
	if i := strings.Index(url, "@"); i >= 0 {
		if j := strings.Index(url, "://"); j >= 0 && j < i {
			return url[:j+3] + "***" + url[i:]
		}
	}
	return url
}
