package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed; the user service owns these)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Pharmacy events
	EventStockReceived      = "pharmacy.stock.received"
	EventStockIssued        = "pharmacy.stock.issued"
	EventRequisitionCreated = "pharmacy.requisition.created"
	EventRequisitionIssued  = "pharmacy.requisition.issued"
	EventChargeCreated      = "pharmacy.charge.created"
)

// Exchange names
const (
	ExchangeUserEvents     = "user.events"
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is published when a user is updated
type UserUpdatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Pharmacy Events

// StockReceivedEvent is published when a goods receipt lands in a store.
type StockReceivedEvent struct {
	BatchID     string     `json:"batch_id"`
	ItemID      string     `json:"item_id"`
	StoreID     string     `json:"store_id"`
	BatchNumber string     `json:"batch_number"`
	Quantity    int        `json:"quantity"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	PerformedBy string     `json:"performed_by"`
}

// StockIssuedLine describes one batch deduction within an issue.
type StockIssuedLine struct {
	BatchID  string `json:"batch_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// StockIssuedEvent is published when stock leaves a store through a sale or
// an admission issue.
type StockIssuedEvent struct {
	SaleID      string            `json:"sale_id"`
	StoreID     string            `json:"store_id"`
	AdmissionID *string           `json:"admission_id,omitempty"`
	Lines       []StockIssuedLine `json:"lines"`
	TotalCents  int               `json:"total_cents"`
	PerformedBy string            `json:"performed_by"`
}

// RequisitionCreatedEvent is published when a store requests stock from another.
type RequisitionCreatedEvent struct {
	RequisitionID string `json:"requisition_id"`
	FromStoreID   string `json:"from_store_id"`
	ToStoreID     string `json:"to_store_id"`
	ItemCount     int    `json:"item_count"`
	RequestedBy   string `json:"requested_by"`
}

// RequisitionIssuedEvent is published when a requisition is fulfilled,
// including partially.
type RequisitionIssuedEvent struct {
	RequisitionID string `json:"requisition_id"`
	FromStoreID   string `json:"from_store_id"`
	ToStoreID     string `json:"to_store_id"`
	ApprovedBy    string `json:"approved_by"`
	FullyIssued   bool   `json:"fully_issued"`
}

// ChargeCreatedEvent is published when dispensing to an admission creates a
// billing charge.
type ChargeCreatedEvent struct {
	ChargeID    string `json:"charge_id"`
	AdmissionID string `json:"admission_id"`
	SaleItemID  string `json:"sale_item_id"`
	AmountCents int    `json:"amount_cents"`
	Description string `json:"description"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
