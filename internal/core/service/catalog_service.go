package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

// CatalogService is the item surface. Reads go through whatever item
// repository the store hands out, which may be cached.
type CatalogService struct {
	store    port.Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewCatalogService(store port.Store, l *slog.Logger) *CatalogService {
	if l == nil {
		l = slog.Default()
	}
	return &CatalogService{
		store:    store,
		validate: newValidator(),
		logger:   l.With(slog.String("component", "catalog_service")),
	}
}

func (s *CatalogService) items() port.ItemRepository {
	return s.store.Repositories().Items
}

func (s *CatalogService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.items().GetItem(ctx, id)
}

func (s *CatalogService) GetBarcodeItem(ctx context.Context, code string) (*domain.Item, error) {
	return s.items().GetBarcodeItem(ctx, code)
}

func (s *CatalogService) GetItems(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	return s.items().GetItems(ctx, limit, offset)
}

func (s *CatalogService) GetLatestItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.items().GetLatestItems(ctx, limit)
}

func (s *CatalogService) GetPopularItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.items().GetPopularItems(ctx, limit)
}

// CreateItem stores the item and returns it as read back from storage.
func (s *CatalogService) CreateItem(ctx context.Context, input domain.ItemInput) (*domain.Item, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}

	items := s.items()
	id, err := items.CreateItem(ctx, input)
	if err != nil {
		return nil, err
	}

	item, err := items.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d vanished after insert", id)
	}
	return item, nil
}

func (s *CatalogService) UpdateItem(ctx context.Context, id int64, input domain.ItemInput) (*domain.Item, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}

	items := s.items()
	if err := items.UpdateItem(ctx, id, input); err != nil {
		return nil, err
	}
	return items.GetItem(ctx, id)
}

func (s *CatalogService) DeleteItem(ctx context.Context, id int64) error {
	if err := s.items().DeleteItem(ctx, id); err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("item deleted", slog.Int64("item_id", id))
	return nil
}
