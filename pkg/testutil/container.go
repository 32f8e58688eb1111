// Package testutil provides testing utilities for CuraMed backend services.
// It includes testcontainers for PostgreSQL, mock factories, and common test
// fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "curamed_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "curamed_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreatePharmacySchema creates the pharmacy service tables.
func (c *PostgresContainer) CreatePharmacySchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			code VARCHAR(100) UNIQUE NOT NULL,
			unit VARCHAR(50) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS stores (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			code VARCHAR(100) UNIQUE NOT NULL,
			is_main BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS batches (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL REFERENCES items(id),
			store_id UUID NOT NULL REFERENCES stores(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			expiry_date DATE,
			purchase_price_cents INTEGER NOT NULL DEFAULT 0,
			sale_price_cents INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT batches_quantity_non_negative CHECK (quantity >= 0),
			CONSTRAINT batches_item_store_number UNIQUE (item_id, store_id, batch_number)
		);

		CREATE INDEX IF NOT EXISTS idx_batches_allocation
			ON batches (item_id, store_id, expiry_date NULLS LAST, created_at, id)
			WHERE quantity > 0;

		CREATE TABLE IF NOT EXISTS stock_transactions (
			id UUID PRIMARY KEY,
			batch_id UUID NOT NULL REFERENCES batches(id),
			direction VARCHAR(3) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			reference_type VARCHAR(30) NOT NULL,
			reference_id UUID,
			performed_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_transactions_direction_valid CHECK (direction IN ('in', 'out')),
			CONSTRAINT stock_transactions_reference_type_valid CHECK (
				reference_type IN ('receipt', 'sale', 'ipd_issue', 'requisition_transfer')
			)
		);

		CREATE INDEX IF NOT EXISTS idx_stock_transactions_batch
			ON stock_transactions (batch_id, created_at);

		CREATE TABLE IF NOT EXISTS requisitions (
			id UUID PRIMARY KEY,
			from_store_id UUID NOT NULL REFERENCES stores(id),
			to_store_id UUID NOT NULL REFERENCES stores(id),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			requested_by UUID NOT NULL,
			approved_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			issued_at TIMESTAMPTZ,
			CONSTRAINT requisitions_status_valid CHECK (status IN ('pending', 'issued'))
		);

		CREATE TABLE IF NOT EXISTS requisition_items (
			id UUID PRIMARY KEY,
			requisition_id UUID NOT NULL REFERENCES requisitions(id),
			item_id UUID NOT NULL REFERENCES items(id),
			requested_quantity INTEGER NOT NULL CHECK (requested_quantity > 0),
			issued_quantity INTEGER NOT NULL DEFAULT 0 CHECK (issued_quantity >= 0),
			CONSTRAINT requisition_items_issued_within_requested
				CHECK (issued_quantity <= requested_quantity)
		);

		CREATE TABLE IF NOT EXISTS sales (
			id UUID PRIMARY KEY,
			store_id UUID NOT NULL REFERENCES stores(id),
			admission_id UUID,
			total_cents INTEGER NOT NULL DEFAULT 0,
			performed_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sale_items (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL REFERENCES sales(id),
			batch_id UUID NOT NULL REFERENCES batches(id),
			item_id UUID NOT NULL REFERENCES items(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price_cents INTEGER NOT NULL,
			line_total_cents INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS charges (
			id UUID PRIMARY KEY,
			admission_id UUID NOT NULL,
			sale_item_id UUID NOT NULL REFERENCES sale_items(id),
			amount_cents INTEGER NOT NULL,
			description VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_cache (
			user_id UUID PRIMARY KEY,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			email VARCHAR(255),
			role_name VARCHAR(100),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create pharmacy schema: %w", err)
	}

	return nil
}

// TruncatePharmacyTables wipes all pharmacy tables between tests.
func (c *PostgresContainer) TruncatePharmacyTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE charges, sale_items, sales, requisition_items, requisitions,
			stock_transactions, batches, items, stores, user_cache CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate pharmacy tables: %w", err)
	}
	return nil
}
