package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
)

// Store represents a physical stock location. Exactly one active store is
// flagged as the main pharmacy; POS sales default to it.
type Store struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	IsMain    bool      `db:"is_main" json:"is_main"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StoreRepository handles store persistence
type StoreRepository struct {
	db *database.DB
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(db *database.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

// Create creates a new store
func (r *StoreRepository) Create(ctx context.Context, store *Store) error {
	if store.ID == "" {
		store.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stores (id, name, code, is_main, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		store.ID, store.Name, store.Code, store.IsMain, store.IsActive,
	).Scan(&store.CreatedAt)
}

// GetByID gets a store by ID
func (r *StoreRepository) GetByID(ctx context.Context, id string) (*Store, error) {
	var store Store
	query := `SELECT * FROM stores WHERE id = $1`
	if err := r.db.GetContext(ctx, &store, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("store")
		}
		return nil, err
	}
	return &store, nil
}

// GetMain gets the main pharmacy store
func (r *StoreRepository) GetMain(ctx context.Context) (*Store, error) {
	var store Store
	query := `SELECT * FROM stores WHERE is_main = true AND is_active = true LIMIT 1`
	if err := r.db.GetContext(ctx, &store, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("main store")
		}
		return nil, err
	}
	return &store, nil
}

// List lists all active stores
func (r *StoreRepository) List(ctx context.Context) ([]*Store, error) {
	var stores []*Store
	query := `SELECT * FROM stores WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, err
	}
	return stores, nil
}
