package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/actor"
	"github.com/curamed/curamed-backend/pkg/httputil"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// RequisitionHandler handles inter-store requisition endpoints
type RequisitionHandler struct {
	service *service.RequisitionService
	logger  *logger.Logger
}

// NewRequisitionHandler creates a new requisition handler
func NewRequisitionHandler(svc *service.RequisitionService, log *logger.Logger) *RequisitionHandler {
	return &RequisitionHandler{
		service: svc,
		logger:  log,
	}
}

// RequisitionLineRequest is one requested item line
type RequisitionLineRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

// CreateRequisitionRequest is the payload for creating a requisition.
// FromStoreID is the asking store that will receive the stock; ToStoreID is
// the store the stock is drawn from.
type CreateRequisitionRequest struct {
	FromStoreID string                   `json:"from_store_id" validate:"required,uuid"`
	ToStoreID   string                   `json:"to_store_id" validate:"required,uuid"`
	Lines       []RequisitionLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Create records a pending requisition
func (h *RequisitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequisitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]service.RequisitionLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, service.RequisitionLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}

	requisition, err := h.service.CreateRequisition(r.Context(), service.CreateRequisitionInput{
		FromStoreID: req.FromStoreID,
		ToStoreID:   req.ToStoreID,
		Lines:       lines,
		ActorID:     actor.MustFromContext(r.Context()).ID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, requisition)
}

// Fulfill issues stock for a pending requisition
func (h *RequisitionHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requisition, err := h.service.Fulfill(r.Context(), id, actor.MustFromContext(r.Context()).ID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}

// Get gets a requisition by ID
func (h *RequisitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	requisition, err := h.service.GetRequisition(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisition)
}

// List lists requisitions, optionally filtered by status
func (h *RequisitionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	requisitions, err := h.service.ListRequisitions(r.Context(), status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, requisitions)
}
