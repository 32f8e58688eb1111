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

// Requisition statuses
const (
	RequisitionPending = "pending"
	RequisitionIssued  = "issued"
)

// Requisition is a request by one store (from_store) to draw stock from
// another (to_store). Creation moves nothing; fulfillment transfers stock
// and flips the status to issued exactly once.
type Requisition struct {
	ID          string     `db:"id" json:"id"`
	FromStoreID string     `db:"from_store_id" json:"from_store_id"`
	ToStoreID   string     `db:"to_store_id" json:"to_store_id"`
	Status      string     `db:"status" json:"status"`
	RequestedBy string     `db:"requested_by" json:"requested_by"`
	ApprovedBy  *string    `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	IssuedAt    *time.Time `db:"issued_at" json:"issued_at,omitempty"`

	Items []*RequisitionItem `db:"-" json:"items,omitempty"`
}

// RequisitionItem is one requested line. IssuedQuantity records what was
// actually transferred and never exceeds RequestedQuantity.
type RequisitionItem struct {
	ID                string `db:"id" json:"id"`
	RequisitionID     string `db:"requisition_id" json:"requisition_id"`
	ItemID            string `db:"item_id" json:"item_id"`
	RequestedQuantity int    `db:"requested_quantity" json:"requested_quantity"`
	IssuedQuantity    int    `db:"issued_quantity" json:"issued_quantity"`
}

// FullyIssued reports whether every line was issued in full.
func (r *Requisition) FullyIssued() bool {
	for _, item := range r.Items {
		if item.IssuedQuantity < item.RequestedQuantity {
			return false
		}
	}
	return len(r.Items) > 0
}

// RequisitionRepository handles requisition persistence
type RequisitionRepository struct {
	db *database.DB
}

// NewRequisitionRepository creates a new requisition repository
func NewRequisitionRepository(db *database.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// CreateTx inserts the requisition header within the transaction
func (r *RequisitionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, req *Requisition) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = RequisitionPending
	}

	query := `
		INSERT INTO requisitions (id, from_store_id, to_store_id, status, requested_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		req.ID, req.FromStoreID, req.ToStoreID, req.Status, req.RequestedBy,
	).Scan(&req.CreatedAt)
}

// CreateItemTx inserts one requisition line within the transaction
func (r *RequisitionRepository) CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *RequisitionItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO requisition_items (id, requisition_id, item_id, requested_quantity, issued_quantity)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.RequisitionID, item.ItemID, item.RequestedQuantity, item.IssuedQuantity,
	)
	return err
}

// GetByID gets a requisition with its lines
func (r *RequisitionRepository) GetByID(ctx context.Context, id string) (*Requisition, error) {
	var req Requisition
	query := `SELECT * FROM requisitions WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("requisition")
		}
		return nil, err
	}

	itemsQuery := `SELECT * FROM requisition_items WHERE requisition_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &req.Items, itemsQuery, id); err != nil {
		return nil, err
	}

	return &req, nil
}

// GetForUpdateTx locks and returns the requisition header within the
// transaction, preventing concurrent fulfillment of the same requisition.
func (r *RequisitionRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Requisition, error) {
	var req Requisition
	query := `SELECT * FROM requisitions WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("requisition")
		}
		return nil, err
	}
	return &req, nil
}

// ItemsTx loads the requisition lines within the transaction
func (r *RequisitionRepository) ItemsTx(ctx context.Context, tx *sqlx.Tx, requisitionID string) ([]*RequisitionItem, error) {
	var items []*RequisitionItem
	query := `SELECT * FROM requisition_items WHERE requisition_id = $1 ORDER BY id`
	if err := tx.SelectContext(ctx, &items, query, requisitionID); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItemIssuedTx records the issued quantity for one line within the transaction
func (r *RequisitionRepository) SetItemIssuedTx(ctx context.Context, tx *sqlx.Tx, itemID string, issuedQty int) error {
	query := `UPDATE requisition_items SET issued_quantity = $2 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, itemID, issuedQty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("requisition item")
	}

	return nil
}

// MarkIssuedTx transitions the requisition from pending to issued. The
// status guard in the WHERE clause makes the transition single-shot even if
// two fulfillments race past the row lock.
func (r *RequisitionRepository) MarkIssuedTx(ctx context.Context, tx *sqlx.Tx, id, approvedBy string) error {
	query := `
		UPDATE requisitions
		SET status = $2, approved_by = $3, issued_at = NOW()
		WHERE id = $1 AND status = $4
	`
	result, err := tx.ExecContext(ctx, query, id, RequisitionIssued, approvedBy, RequisitionPending)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidState("requisition", RequisitionIssued, "fulfill")
	}

	return nil
}

// List lists requisitions, optionally filtered by status, newest first
func (r *RequisitionRepository) List(ctx context.Context, status string) ([]*Requisition, error) {
	var reqs []*Requisition

	if status != "" {
		query := `SELECT * FROM requisitions WHERE status = $1 ORDER BY created_at DESC`
		if err := r.db.SelectContext(ctx, &reqs, query, status); err != nil {
			return nil, err
		}
		return reqs, nil
	}

	query := `SELECT * FROM requisitions ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &reqs, query); err != nil {
		return nil, err
	}
	return reqs, nil
}
