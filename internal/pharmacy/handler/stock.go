package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/actor"
	"github.com/curamed/curamed-backend/pkg/httputil"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// StockHandler handles receipt and stock query endpoints
type StockHandler struct {
	service           *service.StockService
	expiryWarningDays int
	logger            *logger.Logger
}

// NewStockHandler creates a new stock handler. expiryWarningDays is the
// window used by the expiring report when the request does not give one.
func NewStockHandler(svc *service.StockService, expiryWarningDays int, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service:           svc,
		expiryWarningDays: expiryWarningDays,
		logger:            log,
	}
}

// ReceiveStockRequest is the payload for a goods receipt
type ReceiveStockRequest struct {
	StoreID            string     `json:"store_id" validate:"required,uuid"`
	ItemID             string     `json:"item_id" validate:"required,uuid"`
	BatchNumber        string     `json:"batch_number" validate:"required,max=100"`
	Quantity           int        `json:"quantity" validate:"required,gt=0"`
	ExpiryDate         *time.Time `json:"expiry_date,omitempty"`
	PurchasePriceCents int        `json:"purchase_price_cents" validate:"min=0"`
	SalePriceCents     int        `json:"sale_price_cents" validate:"min=0"`
}

// Receive records a goods receipt
func (h *StockHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.ReceiveStock(r.Context(), service.ReceiveStockInput{
		StoreID:            req.StoreID,
		ItemID:             req.ItemID,
		BatchNumber:        req.BatchNumber,
		Quantity:           req.Quantity,
		ExpiryDate:         req.ExpiryDate,
		PurchasePriceCents: req.PurchasePriceCents,
		SalePriceCents:     req.SalePriceCents,
		ActorID:            actor.MustFromContext(r.Context()).ID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// GetStock returns aggregated stock per item and store
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")

	levels, err := h.service.GetStock(r.Context(), storeID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// Expiring lists batches expiring within the requested window
func (h *StockHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days < 1 {
		days = h.expiryWarningDays
	}

	storeID := r.URL.Query().Get("store_id")

	batches, err := h.service.ListExpiring(r.Context(), days, storeID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// GetBatch gets a batch by ID
func (h *StockHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// BatchTransactions returns the stock transaction ledger for a batch
func (h *StockHandler) BatchTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	txns, err := h.service.BatchTransactions(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, txns)
}
