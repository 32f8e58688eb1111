package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/pkg/database"
)

// Stock transaction directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Stock transaction reference types. Every movement names what caused it.
const (
	RefReceipt             = "receipt"
	RefSale                = "sale"
	RefIPDIssue            = "ipd_issue"
	RefRequisitionTransfer = "requisition_transfer"
)

// StockTransaction is one append-only ledger entry against a batch. The sum
// of in minus out entries for a batch always reconciles with its quantity.
type StockTransaction struct {
	ID            string    `db:"id" json:"id"`
	BatchID       string    `db:"batch_id" json:"batch_id"`
	Direction     string    `db:"direction" json:"direction"`
	Quantity      int       `db:"quantity" json:"quantity"`
	ReferenceType string    `db:"reference_type" json:"reference_type"`
	ReferenceID   *string   `db:"reference_id" json:"reference_id,omitempty"`
	PerformedBy   string    `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// TransactionRepository handles the stock transaction ledger
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateTx appends a ledger entry within the transaction. Always paired with
// the quantity mutation it records.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, txn *StockTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_transactions (
			id, batch_id, direction, quantity, reference_type, reference_id, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		txn.ID, txn.BatchID, txn.Direction, txn.Quantity,
		txn.ReferenceType, txn.ReferenceID, txn.PerformedBy,
	).Scan(&txn.CreatedAt)
}

// ListByBatch lists ledger entries for a batch, oldest first
func (r *TransactionRepository) ListByBatch(ctx context.Context, batchID string) ([]*StockTransaction, error) {
	var txns []*StockTransaction
	query := `SELECT * FROM stock_transactions WHERE batch_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &txns, query, batchID); err != nil {
		return nil, err
	}
	return txns, nil
}

// BalanceByBatch computes the net ledger balance for a batch (in minus out).
func (r *TransactionRepository) BalanceByBatch(ctx context.Context, batchID string) (int, error) {
	var balance int
	query := `
		SELECT COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity ELSE -quantity END), 0)
		FROM stock_transactions WHERE batch_id = $1
	`
	if err := r.db.GetContext(ctx, &balance, query, batchID); err != nil {
		return 0, err
	}
	return balance, nil
}
