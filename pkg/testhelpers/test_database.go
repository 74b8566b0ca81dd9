// Package testhelpers spins up throwaway infrastructure for integration
// tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDatabase is a migrated Postgres instance running in a container.
type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts a Postgres container and applies the migrations
// from migrationsPath.
func NewTestDatabase(t *testing.T, migrationsPath string) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("auction_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(10*time.Second)),
		testcontainers.WithLogger(tclog.TestLogger(t)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to connect to database: %s", err)
	}
	if pingErr := pool.Ping(ctx); pingErr != nil {
		t.Fatalf("failed to ping database: %s", pingErr)
	}

	// Migrations run through database/sql; goose does not speak pgx pools.
	db, openErr := sql.Open("pgx", connStr)
	if openErr != nil {
		t.Fatalf("failed to open sql db for migrations: %s", openErr)
	}
	defer db.Close()

	if dialectErr := goose.SetDialect("postgres"); dialectErr != nil {
		t.Fatalf("failed to set goose dialect: %s", dialectErr)
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		t.Fatalf("failed to get absolute path for migrations: %s", err)
	}
	if err := goose.Up(db, absPath); err != nil {
		t.Fatalf("failed to run migrations: %s", err)
	}

	return &TestDatabase{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// Close tears down the pool and the container.
func (td *TestDatabase) Close() {
	ctx := context.Background()
	td.Pool.Close()
	if termErr := td.Container.Terminate(ctx); termErr != nil {
		fmt.Printf("failed to terminate container: %v\n", termErr)
	}
}

// SeedBidder inserts a bidder row and returns its ID. The status is taken
// as a plain string so this package stays importable from domain tests.
func (td *TestDatabase) SeedBidder(t *testing.T, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := td.Pool.Exec(context.Background(),
		`INSERT INTO bidders (id, status) VALUES ($1, $2)`, id, status)
	if err != nil {
		t.Fatalf("failed to seed bidder: %s", err)
	}
	return id
}

// SeedAuctionItem inserts an auction item owned by sellerID (who is also
// its uploader) running from one hour ago until end.
func (td *TestDatabase) SeedAuctionItem(t *testing.T, sellerID uuid.UUID, startingBid decimal.Decimal, end time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := td.Pool.Exec(context.Background(), `
		INSERT INTO items (id, seller_id, uploader_id, title, sale_type,
			starting_bid, currency, auction_start, auction_end, current_bid)
		VALUES ($1, $2, $2, 'test item', 'auction', $3, 'USD', $4, $5, 0)
	`, id, sellerID, startingBid.String(), time.Now().UTC().Add(-time.Hour), end)
	if err != nil {
		t.Fatalf("failed to seed item: %s", err)
	}
	return id
}
