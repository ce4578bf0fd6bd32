//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"kycdesk/internal/platform/config"
	"kycdesk/internal/platform/postgres"
)

// PostgresContainer is a migrated database shared across integration suites.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

func startPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kycdesk"),
		tcpostgres.WithUsername("kycdesk"),
		tcpostgres.WithPassword("kycdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}
	db, err := postgres.Open(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 10, MaxIdleConns: 2})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open postgres: %v", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("ensure schema: %v", err)
	}
	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// TruncateTables empties every service table between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", strings.Join(postgres.Tables, ", ")))
	return err
}
