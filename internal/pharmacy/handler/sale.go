package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/actor"
	"github.com/curamed/curamed-backend/pkg/httputil"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// SaleHandler handles dispensing endpoints
type SaleHandler struct {
	service *service.SaleService
	logger  *logger.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(svc *service.SaleService, log *logger.Logger) *SaleHandler {
	return &SaleHandler{
		service: svc,
		logger:  log,
	}
}

// SaleLineRequest is one item line in a sale or issue payload
type SaleLineRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// SellRequest is the payload for a counter sale
type SellRequest struct {
	StoreID string            `json:"store_id,omitempty" validate:"omitempty,uuid"`
	Lines   []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// IssueRequest is the payload for dispensing to an admission
type IssueRequest struct {
	StoreID string            `json:"store_id" validate:"required,uuid"`
	Lines   []SaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// IssueResponse bundles the sale with the charges it raised
type IssueResponse struct {
	Sale    interface{} `json:"sale"`
	Charges interface{} `json:"charges"`
}

// Sell records a counter sale
func (h *SaleHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	sale, err := h.service.Sell(r.Context(), service.SellInput{
		StoreID: req.StoreID,
		Lines:   toSaleLines(req.Lines),
		ActorID: actor.MustFromContext(r.Context()).ID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, sale)
}

// Issue dispenses stock to an inpatient admission
func (h *SaleHandler) Issue(w http.ResponseWriter, r *http.Request) {
	admissionID := chi.URLParam(r, "admissionID")

	var req IssueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	sale, charges, err := h.service.IssueToAdmission(r.Context(), service.IssueInput{
		AdmissionID: admissionID,
		StoreID:     req.StoreID,
		Lines:       toSaleLines(req.Lines),
		ActorID:     actor.MustFromContext(r.Context()).ID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, IssueResponse{Sale: sale, Charges: charges})
}

// GetSale gets a sale by ID
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sale)
}

// AdmissionCharges lists charges raised against an admission
func (h *SaleHandler) AdmissionCharges(w http.ResponseWriter, r *http.Request) {
	admissionID := chi.URLParam(r, "admissionID")

	charges, err := h.service.AdmissionCharges(r.Context(), admissionID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, charges)
}

func toSaleLines(lines []SaleLineRequest) []service.SaleLine {
	out := make([]service.SaleLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, service.SaleLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return out
}
