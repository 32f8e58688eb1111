package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
)

// Item represents a drug or consumable in the pharmacy catalog.
// The catalog itself is managed upstream; the pharmacy service keeps local
// rows to join and validate against.
type Item struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Unit      string    `db:"unit" json:"unit"`
	Category  string    `db:"category" json:"category"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ItemRepository handles item persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO items (id, name, code, unit, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		item.ID, item.Name, item.Code, item.Unit, item.Category, item.IsActive,
	).Scan(&item.CreatedAt)
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	query := `SELECT * FROM items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// GetByCode gets an item by its catalog code
func (r *ItemRepository) GetByCode(ctx context.Context, code string) (*Item, error) {
	var item Item
	query := `SELECT * FROM items WHERE code = $1`
	if err := r.db.GetContext(ctx, &item, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// List lists active items
func (r *ItemRepository) List(ctx context.Context) ([]*Item, error) {
	var items []*Item
	query := `SELECT * FROM items WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}
