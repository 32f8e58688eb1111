package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/internal/pharmacy/events"
	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// StockService handles goods receipts and stock queries
type StockService struct {
	db           *database.DB
	stores       *repository.StoreRepository
	items        *repository.ItemRepository
	batches      *repository.BatchRepository
	transactions *repository.TransactionRepository
	events       *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	db *database.DB,
	stores *repository.StoreRepository,
	items *repository.ItemRepository,
	batches *repository.BatchRepository,
	transactions *repository.TransactionRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		db:           db,
		stores:       stores,
		items:        items,
		batches:      batches,
		transactions: transactions,
		events:       publisher,
		logger:       log,
	}
}

// ReceiveStockInput is the input for a goods receipt
type ReceiveStockInput struct {
	StoreID            string
	ItemID             string
	BatchNumber        string
	Quantity           int
	ExpiryDate         *time.Time
	PurchasePriceCents int
	SalePriceCents     int
	ActorID            string
}

// ReceiveStock records a goods receipt: quantity is added to the batch
// identified by (item, store, batch number), creating the batch on first
// receipt. Prices and expiry are fixed when the batch is created; subsequent
// receipts into the same batch only top up quantity. Each call appends an
// inbound ledger entry, so repeating a receipt adds stock again.
func (s *StockService) ReceiveStock(ctx context.Context, input ReceiveStockInput) (*repository.Batch, error) {
	if input.Quantity <= 0 {
		return nil, errors.BadRequest("receipt quantity must be positive")
	}
	if input.BatchNumber == "" {
		return nil, errors.BadRequest("batch number is required")
	}

	store, err := s.stores.GetByID(ctx, input.StoreID)
	if err != nil {
		return nil, err
	}
	if !store.IsActive {
		return nil, errors.BadRequest("store is not active")
	}

	item, err := s.items.GetByID(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, errors.BadRequest("item is not active")
	}

	var batch *repository.Batch

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		batch, err = s.batches.GetByKeyTx(ctx, tx, input.ItemID, input.StoreID, input.BatchNumber)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return err
			}

			batch = &repository.Batch{
				ItemID:             input.ItemID,
				StoreID:            input.StoreID,
				BatchNumber:        input.BatchNumber,
				Quantity:           0,
				ExpiryDate:         input.ExpiryDate,
				PurchasePriceCents: input.PurchasePriceCents,
				SalePriceCents:     input.SalePriceCents,
			}
			if err := s.batches.CreateTx(ctx, tx, batch); err != nil {
				return err
			}
		}

		if err := s.batches.AddQuantityTx(ctx, tx, batch.ID, input.Quantity); err != nil {
			return err
		}
		batch.Quantity += input.Quantity

		txn := &repository.StockTransaction{
			BatchID:       batch.ID,
			Direction:     repository.DirectionIn,
			Quantity:      input.Quantity,
			ReferenceType: repository.RefReceipt,
			PerformedBy:   input.ActorID,
		}
		return s.transactions.CreateTx(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID).
		Str("item_id", input.ItemID).
		Str("store_id", input.StoreID).
		Int("quantity", input.Quantity).
		Msg("stock received")

	s.events.PublishStockReceived(ctx, batch, input.Quantity, input.ActorID)

	return batch, nil
}

// GetStock returns aggregated stock per item and store. Pass an empty
// storeID for all stores.
func (s *StockService) GetStock(ctx context.Context, storeID string) ([]*repository.StockLevel, error) {
	if storeID != "" {
		if _, err := s.stores.GetByID(ctx, storeID); err != nil {
			return nil, err
		}
	}
	return s.batches.AggregateStock(ctx, storeID)
}

// ListExpiring returns batches with stock expiring within the given window.
func (s *StockService) ListExpiring(ctx context.Context, withinDays int, storeID string) ([]*repository.Batch, error) {
	if withinDays <= 0 {
		return nil, errors.BadRequest("days must be positive")
	}
	if storeID != "" {
		if _, err := s.stores.GetByID(ctx, storeID); err != nil {
			return nil, err
		}
	}
	return s.batches.ListExpiring(ctx, withinDays, storeID)
}

// GetBatch returns a single batch
func (s *StockService) GetBatch(ctx context.Context, id string) (*repository.Batch, error) {
	return s.batches.GetByID(ctx, id)
}

// BatchTransactions returns the ledger for a batch, oldest entry first
func (s *StockService) BatchTransactions(ctx context.Context, batchID string) ([]*repository.StockTransaction, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.transactions.ListByBatch(ctx, batchID)
}
