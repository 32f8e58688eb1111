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

// Sale is the header of one dispensing act. AdmissionID is set for inpatient
// issues and nil for counter (POS) sales.
type Sale struct {
	ID          string    `db:"id" json:"id"`
	StoreID     string    `db:"store_id" json:"store_id"`
	AdmissionID *string   `db:"admission_id" json:"admission_id,omitempty"`
	TotalCents  int       `db:"total_cents" json:"total_cents"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	Items []*SaleItem `db:"-" json:"items,omitempty"`
}

// SaleItem is one (batch, quantity) allocation within a sale. A requested
// item spanning several batches produces one line per batch, each with the
// unit price snapshotted from the batch at allocation time.
type SaleItem struct {
	ID             string `db:"id" json:"id"`
	SaleID         string `db:"sale_id" json:"sale_id"`
	BatchID        string `db:"batch_id" json:"batch_id"`
	ItemID         string `db:"item_id" json:"item_id"`
	Quantity       int    `db:"quantity" json:"quantity"`
	UnitPriceCents int    `db:"unit_price_cents" json:"unit_price_cents"`
	LineTotalCents int    `db:"line_total_cents" json:"line_total_cents"`
}

// SaleRepository handles sale persistence
type SaleRepository struct {
	db *database.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *database.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// CreateTx inserts the sale header within the transaction
func (r *SaleRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, sale *Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sales (id, store_id, admission_id, total_cents, performed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		sale.ID, sale.StoreID, sale.AdmissionID, sale.TotalCents, sale.PerformedBy,
	).Scan(&sale.CreatedAt)
}

// CreateItemTx inserts one sale line within the transaction
func (r *SaleRepository) CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *SaleItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sale_items (id, sale_id, batch_id, item_id, quantity, unit_price_cents, line_total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.SaleID, item.BatchID, item.ItemID,
		item.Quantity, item.UnitPriceCents, item.LineTotalCents,
	)
	return err
}

// GetByID gets a sale with its lines
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*Sale, error) {
	var sale Sale
	query := `SELECT * FROM sales WHERE id = $1`
	if err := r.db.GetContext(ctx, &sale, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	itemsQuery := `SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &sale.Items, itemsQuery, id); err != nil {
		return nil, err
	}

	return &sale, nil
}
