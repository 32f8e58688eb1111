package events

import (
	"context"

	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/logger"
	"github.com/curamed/curamed-backend/pkg/messaging"
)

// PharmacyEventPublisher publishes pharmacy-related events. All publishing
// happens after the database transaction has committed; a publish failure is
// logged, never rolled into the stock operation's result.
type PharmacyEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPharmacyEventPublisher creates a new pharmacy event publisher
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &PharmacyEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockReceived publishes a stock received event
func (p *PharmacyEventPublisher) PublishStockReceived(ctx context.Context, batch *repository.Batch, quantity int, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		BatchID:     batch.ID,
		ItemID:      batch.ItemID,
		StoreID:     batch.StoreID,
		BatchNumber: batch.BatchNumber,
		Quantity:    quantity,
		ExpiryDate:  batch.ExpiryDate,
		PerformedBy: performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", batch.ID).Msg("failed to publish stock received event")
	}
}

// PublishStockIssued publishes a stock issued event for a sale or admission issue
func (p *PharmacyEventPublisher) PublishStockIssued(ctx context.Context, sale *repository.Sale) {
	if p == nil {
		return
	}

	lines := make([]messaging.StockIssuedLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, messaging.StockIssuedLine{
			BatchID:  item.BatchID,
			ItemID:   item.ItemID,
			Quantity: item.Quantity,
		})
	}

	data := messaging.StockIssuedEvent{
		SaleID:      sale.ID,
		StoreID:     sale.StoreID,
		AdmissionID: sale.AdmissionID,
		Lines:       lines,
		TotalCents:  sale.TotalCents,
		PerformedBy: sale.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockIssued, data); err != nil {
		p.logger.Error().Err(err).Str("sale_id", sale.ID).Msg("failed to publish stock issued event")
	}
}

// PublishRequisitionCreated publishes a requisition created event
func (p *PharmacyEventPublisher) PublishRequisitionCreated(ctx context.Context, req *repository.Requisition) {
	if p == nil {
		return
	}

	data := messaging.RequisitionCreatedEvent{
		RequisitionID: req.ID,
		FromStoreID:   req.FromStoreID,
		ToStoreID:     req.ToStoreID,
		ItemCount:     len(req.Items),
		RequestedBy:   req.RequestedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRequisitionCreated, data); err != nil {
		p.logger.Error().Err(err).Str("requisition_id", req.ID).Msg("failed to publish requisition created event")
	}
}

// PublishRequisitionIssued publishes a requisition issued event
func (p *PharmacyEventPublisher) PublishRequisitionIssued(ctx context.Context, req *repository.Requisition) {
	if p == nil {
		return
	}

	approvedBy := ""
	if req.ApprovedBy != nil {
		approvedBy = *req.ApprovedBy
	}

	data := messaging.RequisitionIssuedEvent{
		RequisitionID: req.ID,
		FromStoreID:   req.FromStoreID,
		ToStoreID:     req.ToStoreID,
		ApprovedBy:    approvedBy,
		FullyIssued:   req.FullyIssued(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventRequisitionIssued, data); err != nil {
		p.logger.Error().Err(err).Str("requisition_id", req.ID).Msg("failed to publish requisition issued event")
	}
}

// PublishChargeCreated publishes a charge created event
func (p *PharmacyEventPublisher) PublishChargeCreated(ctx context.Context, charge *repository.Charge) {
	if p == nil {
		return
	}

	data := messaging.ChargeCreatedEvent{
		ChargeID:    charge.ID,
		AdmissionID: charge.AdmissionID,
		SaleItemID:  charge.SaleItemID,
		AmountCents: charge.AmountCents,
		Description: charge.Description,
	}

	if err := p.publisher.Publish(ctx, messaging.EventChargeCreated, data); err != nil {
		p.logger.Error().Err(err).Str("charge_id", charge.ID).Msg("failed to publish charge created event")
	}
}
