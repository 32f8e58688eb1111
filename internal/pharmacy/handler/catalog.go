package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/httputil"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// CatalogHandler handles item and store read endpoints
type CatalogHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc *service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  log,
	}
}

// ListItems lists active items
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// GetItem gets an item by ID
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// ListStores lists stores
func (h *CatalogHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stores)
}
