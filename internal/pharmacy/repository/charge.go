package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/pkg/database"
)

// Charge is a billing entry raised against an admission when stock is issued
// to it. One charge per sale line.
type Charge struct {
	ID          string    `db:"id" json:"id"`
	AdmissionID string    `db:"admission_id" json:"admission_id"`
	SaleItemID  string    `db:"sale_item_id" json:"sale_item_id"`
	AmountCents int       `db:"amount_cents" json:"amount_cents"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChargeRepository handles charge persistence
type ChargeRepository struct {
	db *database.DB
}

// NewChargeRepository creates a new charge repository
func NewChargeRepository(db *database.DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

// CreateTx inserts a charge within the transaction
func (r *ChargeRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, charge *Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.New().String()
	}

	query := `
		INSERT INTO charges (id, admission_id, sale_item_id, amount_cents, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		charge.ID, charge.AdmissionID, charge.SaleItemID, charge.AmountCents, charge.Description,
	).Scan(&charge.CreatedAt)
}

// ListByAdmission lists charges for an admission, oldest first
func (r *ChargeRepository) ListByAdmission(ctx context.Context, admissionID string) ([]*Charge, error) {
	var charges []*Charge
	query := `SELECT * FROM charges WHERE admission_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &charges, query, admissionID); err != nil {
		return nil, err
	}
	return charges, nil
}
