//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"certledger/internal/platform/database"
)

// storeTables lists every table the migrations create, children first.
var storeTables = []string{"verification_attempts", "credentials"}

// PostgresContainer is a migrated Postgres for the store integration tests.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and applies the embedded migrations
// the same way the server does at startup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:18-alpine",
		postgres.WithDatabase("certledger_test"),
		postgres.WithUsername("certledger"),
		postgres.WithPassword("certledger"),
		testcontainers.WithWaitStrategy(
			// The entrypoint restarts the server once after initdb.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	fail := func(format string, args ...any) {
		_ = container.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("failed to get postgres connection string: %v", err)
	}
	if err := database.Migrate(dsn); err != nil {
		fail("failed to migrate postgres: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fail("failed to open postgres: %v", err)
	}

	return &PostgresContainer{Container: container, DSN: dsn, DB: db}
}

// TruncateAll empties every store table. Suites call it between tests.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	stmt := "TRUNCATE TABLE " + strings.Join(storeTables, ", ")
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate store tables: %w", err)
	}
	return nil
}
