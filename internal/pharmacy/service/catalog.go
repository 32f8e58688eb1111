package service

import (
	"context"

	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/pkg/logger"
)

// CatalogService exposes the read side of the local item and store catalog
type CatalogService struct {
	items  *repository.ItemRepository
	stores *repository.StoreRepository
	logger *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(items *repository.ItemRepository, stores *repository.StoreRepository, log *logger.Logger) *CatalogService {
	return &CatalogService{
		items:  items,
		stores: stores,
		logger: log,
	}
}

// ListItems lists active items
func (s *CatalogService) ListItems(ctx context.Context) ([]*repository.Item, error) {
	return s.items.List(ctx)
}

// GetItem gets an item by ID
func (s *CatalogService) GetItem(ctx context.Context, id string) (*repository.Item, error) {
	return s.items.GetByID(ctx, id)
}

// ListStores lists stores
func (s *CatalogService) ListStores(ctx context.Context) ([]*repository.Store, error) {
	return s.stores.List(ctx)
}
