package port

import (
	"context"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
)

type CacheRepository interface {
	// GetItem returns the cached item, or nil on a miss
	GetItem(ctx context.Context, id int64) (*domain.Item, error)

	// SetItem caches the item and indexes its barcodes
	SetItem(ctx context.Context, item *domain.Item) error

	// LookupBarcode returns the item id indexed for code
	LookupBarcode(ctx context.Context, code string) (int64, bool, error)

	// InvalidateItem drops the item and every barcode indexed for it
	InvalidateItem(ctx context.Context, id int64) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a key after the guarded operation failed
	ClearIdempotency(ctx context.Context, key string) error
}
