package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/internal/pharmacy/events"
	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// RequisitionService handles the two-store transfer workflow
type RequisitionService struct {
	db           *database.DB
	stores       *repository.StoreRepository
	items        *repository.ItemRepository
	batches      *repository.BatchRepository
	transactions *repository.TransactionRepository
	requisitions *repository.RequisitionRepository
	events       *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewRequisitionService creates a new requisition service
func NewRequisitionService(
	db *database.DB,
	stores *repository.StoreRepository,
	items *repository.ItemRepository,
	batches *repository.BatchRepository,
	transactions *repository.TransactionRepository,
	requisitions *repository.RequisitionRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *RequisitionService {
	return &RequisitionService{
		db:           db,
		stores:       stores,
		items:        items,
		batches:      batches,
		transactions: transactions,
		requisitions: requisitions,
		events:       publisher,
		logger:       log,
	}
}

// RequisitionLine is one requested item and quantity
type RequisitionLine struct {
	ItemID   string
	Quantity int
}

// CreateRequisitionInput is the input for creating a requisition
type CreateRequisitionInput struct {
	FromStoreID string // the asking store, which will receive the stock
	ToStoreID   string // the issuing store, which the stock is drawn from
	Lines       []RequisitionLine
	ActorID     string
}

// CreateRequisition records a pending stock request from one store against
// another. No stock moves until fulfillment.
func (s *RequisitionService) CreateRequisition(ctx context.Context, input CreateRequisitionInput) (*repository.Requisition, error) {
	if len(input.Lines) == 0 {
		return nil, errors.BadRequest("requisition must contain at least one item")
	}
	if input.FromStoreID == input.ToStoreID {
		return nil, errors.BadRequest("requisition source and destination stores must differ")
	}

	for _, storeID := range []string{input.FromStoreID, input.ToStoreID} {
		store, err := s.stores.GetByID(ctx, storeID)
		if err != nil {
			return nil, err
		}
		if !store.IsActive {
			return nil, errors.BadRequest("store is not active")
		}
	}

	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, errors.BadRequest("line quantity must be positive")
		}
		if _, err := s.items.GetByID(ctx, line.ItemID); err != nil {
			return nil, err
		}
	}

	req := &repository.Requisition{
		FromStoreID: input.FromStoreID,
		ToStoreID:   input.ToStoreID,
		RequestedBy: input.ActorID,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.requisitions.CreateTx(ctx, tx, req); err != nil {
			return err
		}

		for _, line := range input.Lines {
			item := &repository.RequisitionItem{
				RequisitionID:     req.ID,
				ItemID:            line.ItemID,
				RequestedQuantity: line.Quantity,
			}
			if err := s.requisitions.CreateItemTx(ctx, tx, item); err != nil {
				return err
			}
			req.Items = append(req.Items, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("requisition_id", req.ID).
		Str("from_store_id", req.FromStoreID).
		Str("to_store_id", req.ToStoreID).
		Int("lines", len(req.Items)).
		Msg("requisition created")

	s.events.PublishRequisitionCreated(ctx, req)

	return req, nil
}

// Fulfill transfers stock for a pending requisition from the issuing store
// to the asking store, FEFO order, and marks it issued. A shortage in the
// issuing store is not an error: whatever could be taken is transferred and
// recorded per line as issued_quantity. The transition to issued happens
// exactly once; fulfilling again fails with INVALID_STATE.
func (s *RequisitionService) Fulfill(ctx context.Context, requisitionID, actorID string) (*repository.Requisition, error) {
	var req *repository.Requisition

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		req, err = s.requisitions.GetForUpdateTx(ctx, tx, requisitionID)
		if err != nil {
			return err
		}
		if req.Status != repository.RequisitionPending {
			return errors.InvalidState("requisition", req.Status, "fulfill")
		}

		req.Items, err = s.requisitions.ItemsTx(ctx, tx, req.ID)
		if err != nil {
			return err
		}

		for _, line := range req.Items {
			issued, err := s.transferLine(ctx, tx, req, line, actorID)
			if err != nil {
				return err
			}

			line.IssuedQuantity = issued
			if err := s.requisitions.SetItemIssuedTx(ctx, tx, line.ID, issued); err != nil {
				return err
			}
		}

		return s.requisitions.MarkIssuedTx(ctx, tx, req.ID, actorID)
	})
	if err != nil {
		return nil, err
	}

	req.Status = repository.RequisitionIssued
	req.ApprovedBy = &actorID

	s.logger.Info().
		Str("requisition_id", req.ID).
		Bool("fully_issued", req.FullyIssued()).
		Msg("requisition issued")

	s.events.PublishRequisitionIssued(ctx, req)

	return req, nil
}

// transferLine moves stock for one requisition line from the issuing store
// to the asking store, batch by batch in FEFO order. Each source batch maps
// to a batch with the same batch number in the destination store, created on
// first transfer with the expiry and prices carried over.
func (s *RequisitionService) transferLine(ctx context.Context, tx *sqlx.Tx, req *repository.Requisition, line *repository.RequisitionItem, actorID string) (int, error) {
	candidates, err := s.batches.ListForAllocationTx(ctx, tx, line.ItemID, req.ToStoreID)
	if err != nil {
		return 0, err
	}

	plan, issued := AllocatePartial(candidates, line.RequestedQuantity)

	for _, alloc := range plan {
		if err := s.batches.DeductTx(ctx, tx, alloc.Batch, alloc.Quantity); err != nil {
			return 0, err
		}

		outTxn := &repository.StockTransaction{
			BatchID:       alloc.Batch.ID,
			Direction:     repository.DirectionOut,
			Quantity:      alloc.Quantity,
			ReferenceType: repository.RefRequisitionTransfer,
			ReferenceID:   &req.ID,
			PerformedBy:   actorID,
		}
		if err := s.transactions.CreateTx(ctx, tx, outTxn); err != nil {
			return 0, err
		}

		dest, err := s.batches.GetByKeyTx(ctx, tx, line.ItemID, req.FromStoreID, alloc.Batch.BatchNumber)
		if err != nil {
			if !errors.Is(err, errors.ErrNotFound) {
				return 0, err
			}

			dest = &repository.Batch{
				ItemID:             line.ItemID,
				StoreID:            req.FromStoreID,
				BatchNumber:        alloc.Batch.BatchNumber,
				Quantity:           0,
				ExpiryDate:         alloc.Batch.ExpiryDate,
				PurchasePriceCents: alloc.Batch.PurchasePriceCents,
				SalePriceCents:     alloc.Batch.SalePriceCents,
			}
			if err := s.batches.CreateTx(ctx, tx, dest); err != nil {
				return 0, err
			}
		}

		if err := s.batches.AddQuantityTx(ctx, tx, dest.ID, alloc.Quantity); err != nil {
			return 0, err
		}

		inTxn := &repository.StockTransaction{
			BatchID:       dest.ID,
			Direction:     repository.DirectionIn,
			Quantity:      alloc.Quantity,
			ReferenceType: repository.RefRequisitionTransfer,
			ReferenceID:   &req.ID,
			PerformedBy:   actorID,
		}
		if err := s.transactions.CreateTx(ctx, tx, inTxn); err != nil {
			return 0, err
		}
	}

	return issued, nil
}

// GetRequisition returns a requisition with its lines
func (s *RequisitionService) GetRequisition(ctx context.Context, id string) (*repository.Requisition, error) {
	return s.requisitions.GetByID(ctx, id)
}

// ListRequisitions lists requisitions, optionally filtered by status
func (s *RequisitionService) ListRequisitions(ctx context.Context, status string) ([]*repository.Requisition, error) {
	if status != "" && status != repository.RequisitionPending && status != repository.RequisitionIssued {
		return nil, errors.BadRequest("status must be one of: pending, issued")
	}
	return s.requisitions.List(ctx, status)
}
