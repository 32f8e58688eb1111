package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
)

// Batch is the unit of stock tracking: the quantity of one item, in one
// store, belonging to one supplier batch. The same batch number can exist in
// several stores as separate rows with independent quantities.
type Batch struct {
	ID                 string     `db:"id" json:"id"`
	ItemID             string     `db:"item_id" json:"item_id"`
	StoreID            string     `db:"store_id" json:"store_id"`
	BatchNumber        string     `db:"batch_number" json:"batch_number"`
	Quantity           int        `db:"quantity" json:"quantity"`
	ExpiryDate         *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	PurchasePriceCents int        `db:"purchase_price_cents" json:"purchase_price_cents"`
	SalePriceCents     int        `db:"sale_price_cents" json:"sale_price_cents"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// StockLevel is an aggregated stock figure for one item in one store.
type StockLevel struct {
	ItemID   string `db:"item_id" json:"item_id"`
	ItemName string `db:"item_name" json:"item_name"`
	StoreID  string `db:"store_id" json:"store_id"`
	Quantity int    `db:"quantity" json:"quantity"`
}

// allocationOrder is the canonical ordering for FEFO allocation and for lock
// acquisition: earliest expiry first, undated batches last, ties broken by
// creation time then id. Locking in this fixed order keeps concurrent
// allocations for the same item/store from deadlocking each other.
const allocationOrder = `expiry_date ASC NULLS LAST, created_at ASC, id ASC`

// BatchRepository handles batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*Batch, error) {
	var batch Batch
	query := `SELECT * FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// GetByKeyTx locks and returns the batch identified by (item, store, batch
// number) within the transaction. Returns NotFound if no such row exists.
func (r *BatchRepository) GetByKeyTx(ctx context.Context, tx *sqlx.Tx, itemID, storeID, batchNumber string) (*Batch, error) {
	var batch Batch
	query := `
		SELECT * FROM batches
		WHERE item_id = $1 AND store_id = $2 AND batch_number = $3
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &batch, query, itemID, storeID, batchNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// CreateTx inserts a new batch within the transaction. Prices and expiry are
// fixed at creation; later receipts into the same batch only add quantity.
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}

	query := `
		INSERT INTO batches (
			id, item_id, store_id, batch_number, quantity, expiry_date,
			purchase_price_cents, sale_price_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	return tx.QueryRowxContext(ctx, query,
		batch.ID, batch.ItemID, batch.StoreID, batch.BatchNumber, batch.Quantity,
		batch.ExpiryDate, batch.PurchasePriceCents, batch.SalePriceCents,
	).Scan(&batch.CreatedAt, &batch.UpdatedAt)
}

// ListForAllocationTx locks and returns all batches with stock for the item
// in the store, in allocation order. Callers plan FEFO allocation over the
// returned slice while holding the row locks.
func (r *BatchRepository) ListForAllocationTx(ctx context.Context, tx *sqlx.Tx, itemID, storeID string) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT * FROM batches
		WHERE item_id = $1 AND store_id = $2 AND quantity > 0
		ORDER BY ` + allocationOrder + `
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &batches, query, itemID, storeID); err != nil {
		return nil, err
	}
	return batches, nil
}

// AddQuantityTx increments the batch quantity within the transaction.
func (r *BatchRepository) AddQuantityTx(ctx context.Context, tx *sqlx.Tx, batchID string, qty int) error {
	query := `UPDATE batches SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// DeductTx decrements the batch quantity within the transaction. The guard
// in the WHERE clause means a concurrent deduction can never push the row
// negative even if the caller's availability check was stale.
func (r *BatchRepository) DeductTx(ctx context.Context, tx *sqlx.Tx, batch *Batch, qty int) error {
	query := `
		UPDATE batches SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	result, err := tx.ExecContext(ctx, query, batch.ID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InsufficientStock(batch.ItemID, qty, batch.Quantity)
	}

	return nil
}

// ListExpiring returns batches with stock expiring within the given number
// of days, soonest first. Undated batches never expire and are excluded.
func (r *BatchRepository) ListExpiring(ctx context.Context, withinDays int, storeID string) ([]*Batch, error) {
	var batches []*Batch

	if storeID != "" {
		query := `
			SELECT * FROM batches
			WHERE store_id = $2 AND quantity > 0
			AND expiry_date IS NOT NULL
			AND expiry_date <= NOW() + INTERVAL '1 day' * $1
			ORDER BY expiry_date
		`
		if err := r.db.SelectContext(ctx, &batches, query, withinDays, storeID); err != nil {
			return nil, err
		}
		return batches, nil
	}

	query := `
		SELECT * FROM batches
		WHERE quantity > 0
		AND expiry_date IS NOT NULL
		AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// AggregateStock sums batch quantities per item and store, skipping empty
// batches. Pass an empty storeID for all stores.
func (r *BatchRepository) AggregateStock(ctx context.Context, storeID string) ([]*StockLevel, error) {
	var levels []*StockLevel

	if storeID != "" {
		query := `
			SELECT b.item_id, i.name AS item_name, b.store_id, SUM(b.quantity) AS quantity
			FROM batches b
			JOIN items i ON i.id = b.item_id
			WHERE b.store_id = $1 AND b.quantity > 0
			GROUP BY b.item_id, i.name, b.store_id
			ORDER BY i.name
		`
		if err := r.db.SelectContext(ctx, &levels, query, storeID); err != nil {
			return nil, err
		}
		return levels, nil
	}

	query := `
		SELECT b.item_id, i.name AS item_name, b.store_id, SUM(b.quantity) AS quantity
		FROM batches b
		JOIN items i ON i.id = b.item_id
		WHERE b.quantity > 0
		GROUP BY b.item_id, i.name, b.store_id
		ORDER BY i.name, b.store_id
	`
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, err
	}
	return levels, nil
}
