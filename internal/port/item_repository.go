package port

import (
	"context"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
)

type ItemRepository interface {
	// GetItem returns nil when no item has the id
	GetItem(ctx context.Context, id int64) (*domain.Item, error)

	// GetBarcodeItem returns the item owning code, or nil
	GetBarcodeItem(ctx context.Context, code string) (*domain.Item, error)

	// GetItems pages through items ordered by id
	GetItems(ctx context.Context, limit, offset int) ([]*domain.Item, error)

	// GetLatestItems returns the most recently created items
	GetLatestItems(ctx context.Context, limit int) ([]*domain.Item, error)

	// GetPopularItems returns the most purchased items of the last 30 days
	GetPopularItems(ctx context.Context, limit int) ([]*domain.Item, error)

	// CreateItem inserts the item, its barcode row and optional image row atomically
	CreateItem(ctx context.Context, input domain.ItemInput) (int64, error)

	// UpdateItem overwrites the item fields and replaces its barcode row
	UpdateItem(ctx context.Context, id int64, input domain.ItemInput) error

	// DeleteItem removes the item with its barcode and image rows
	DeleteItem(ctx context.Context, id int64) error
}
