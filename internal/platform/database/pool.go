// Package database opens the Postgres pool behind the credential and
// verification stores and keeps its schema current.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"certledger/internal/platform/config"
)

const connectTimeout = 5 * time.Second

var errNotConfigured = errors.New("database not configured")

// Pool owns the *sql.DB shared by the Postgres stores.
type Pool struct {
	db *sql.DB
}

// New opens the pool, pings it and, when cfg.AutoMigrate is set, applies the
// embedded migrations. An empty URL yields nil, nil and the server runs on
// the in-memory stores.
func New(ctx context.Context, cfg config.Database) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(cfg.URL); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, err
		}
	}
	return &Pool{db: db}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// RegisterMetrics exposes the sql.DBStats of the pool (open, idle and
// in-use connections, wait counts) under the given registerer.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(collectors.NewDBStatsCollector(p.db, "certledger"))
}

// Health pings the database. Used as the required readiness check.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errNotConfigured
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
