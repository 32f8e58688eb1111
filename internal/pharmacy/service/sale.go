package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/curamed/curamed-backend/internal/pharmacy/events"
	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/errors"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// SaleService handles dispensing: counter sales and admission issues
type SaleService struct {
	db           *database.DB
	stores       *repository.StoreRepository
	items        *repository.ItemRepository
	batches      *repository.BatchRepository
	transactions *repository.TransactionRepository
	sales        *repository.SaleRepository
	charges      *repository.ChargeRepository
	events       *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(
	db *database.DB,
	stores *repository.StoreRepository,
	items *repository.ItemRepository,
	batches *repository.BatchRepository,
	transactions *repository.TransactionRepository,
	sales *repository.SaleRepository,
	charges *repository.ChargeRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *SaleService {
	return &SaleService{
		db:           db,
		stores:       stores,
		items:        items,
		batches:      batches,
		transactions: transactions,
		sales:        sales,
		charges:      charges,
		events:       publisher,
		logger:       log,
	}
}

// SaleLine is one requested item and quantity
type SaleLine struct {
	ItemID   string
	Quantity int
}

// SellInput is the input for a counter (POS) sale
type SellInput struct {
	StoreID string // empty = main store
	Lines   []SaleLine
	ActorID string
}

// IssueInput is the input for dispensing to an admission
type IssueInput struct {
	AdmissionID string
	StoreID     string
	Lines       []SaleLine
	ActorID     string
}

// Sell dispenses stock over the counter. When no store is given the main
// pharmacy store is used. The sale is all-or-nothing: if any line cannot be
// covered in full, nothing moves.
func (s *SaleService) Sell(ctx context.Context, input SellInput) (*repository.Sale, error) {
	storeID := input.StoreID
	if storeID == "" {
		main, err := s.stores.GetMain(ctx)
		if err != nil {
			return nil, err
		}
		storeID = main.ID
	}

	sale, _, err := s.dispense(ctx, storeID, nil, input.Lines, input.ActorID)
	return sale, err
}

// IssueToAdmission dispenses stock to an inpatient admission from an
// explicit store. Stock movement rules match Sell; in addition each sale
// line raises a billing charge against the admission.
func (s *SaleService) IssueToAdmission(ctx context.Context, input IssueInput) (*repository.Sale, []*repository.Charge, error) {
	if input.AdmissionID == "" {
		return nil, nil, errors.BadRequest("admission id is required")
	}
	if input.StoreID == "" {
		return nil, nil, errors.BadRequest("store id is required")
	}

	return s.dispense(ctx, input.StoreID, &input.AdmissionID, input.Lines, input.ActorID)
}

// saleLinePlan is one validated request line with its planned allocations
type saleLinePlan struct {
	item        *repository.Item
	quantity    int
	allocations []Allocation
}

func (s *SaleService) dispense(ctx context.Context, storeID string, admissionID *string, lines []SaleLine, actorID string) (*repository.Sale, []*repository.Charge, error) {
	if len(lines) == 0 {
		return nil, nil, errors.BadRequest("sale must contain at least one item")
	}

	store, err := s.stores.GetByID(ctx, storeID)
	if err != nil {
		return nil, nil, err
	}
	if !store.IsActive {
		return nil, nil, errors.BadRequest("store is not active")
	}

	// Merge duplicate item lines and resolve the catalog entries up front,
	// outside the transaction.
	merged := make(map[string]int)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, errors.BadRequest("line quantity must be positive")
		}
		merged[line.ItemID] += line.Quantity
	}

	// Fixed item order keeps concurrent sales acquiring batch locks in the
	// same sequence.
	itemIDs := make([]string, 0, len(merged))
	for itemID := range merged {
		itemIDs = append(itemIDs, itemID)
	}
	sort.Strings(itemIDs)

	requested := make([]*saleLinePlan, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return nil, nil, err
		}
		requested = append(requested, &saleLinePlan{item: item, quantity: merged[itemID]})
	}

	sale := &repository.Sale{
		StoreID:     store.ID,
		AdmissionID: admissionID,
		PerformedBy: actorID,
	}
	var saleCharges []*repository.Charge

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// Lock and plan every line before moving anything, so a shortage on
		// the last item aborts the sale with no stock touched.
		total := 0
		for _, plan := range requested {
			candidates, err := s.batches.ListForAllocationTx(ctx, tx, plan.item.ID, store.ID)
			if err != nil {
				return err
			}

			plan.allocations, err = AllocateFEFO(plan.item.ID, candidates, plan.quantity)
			if err != nil {
				return err
			}

			for _, alloc := range plan.allocations {
				total += alloc.Quantity * alloc.Batch.SalePriceCents
			}
		}

		sale.TotalCents = total
		if err := s.sales.CreateTx(ctx, tx, sale); err != nil {
			return err
		}

		refType := repository.RefSale
		if admissionID != nil {
			refType = repository.RefIPDIssue
		}

		for _, plan := range requested {
			for _, alloc := range plan.allocations {
				if err := s.batches.DeductTx(ctx, tx, alloc.Batch, alloc.Quantity); err != nil {
					return err
				}

				txn := &repository.StockTransaction{
					BatchID:       alloc.Batch.ID,
					Direction:     repository.DirectionOut,
					Quantity:      alloc.Quantity,
					ReferenceType: refType,
					ReferenceID:   &sale.ID,
					PerformedBy:   actorID,
				}
				if err := s.transactions.CreateTx(ctx, tx, txn); err != nil {
					return err
				}

				saleItem := &repository.SaleItem{
					SaleID:         sale.ID,
					BatchID:        alloc.Batch.ID,
					ItemID:         plan.item.ID,
					Quantity:       alloc.Quantity,
					UnitPriceCents: alloc.Batch.SalePriceCents,
					LineTotalCents: alloc.Quantity * alloc.Batch.SalePriceCents,
				}
				if err := s.sales.CreateItemTx(ctx, tx, saleItem); err != nil {
					return err
				}
				sale.Items = append(sale.Items, saleItem)

				if admissionID != nil {
					charge := &repository.Charge{
						AdmissionID: *admissionID,
						SaleItemID:  saleItem.ID,
						AmountCents: saleItem.LineTotalCents,
						Description: fmt.Sprintf("%s x%d", plan.item.Name, alloc.Quantity),
					}
					if err := s.charges.CreateTx(ctx, tx, charge); err != nil {
						return err
					}
					saleCharges = append(saleCharges, charge)
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Str("store_id", store.ID).
		Int("lines", len(sale.Items)).
		Int("total_cents", sale.TotalCents).
		Msg("stock issued")

	s.events.PublishStockIssued(ctx, sale)
	for _, charge := range saleCharges {
		s.events.PublishChargeCreated(ctx, charge)
	}

	return sale, saleCharges, nil
}

// GetSale returns a sale with its lines
func (s *SaleService) GetSale(ctx context.Context, id string) (*repository.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

// AdmissionCharges lists charges raised against an admission
func (s *SaleService) AdmissionCharges(ctx context.Context, admissionID string) ([]*repository.Charge, error) {
	return s.charges.ListByAdmission(ctx, admissionID)
}
