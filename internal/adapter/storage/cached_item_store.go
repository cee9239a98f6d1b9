package storage

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

// CachedItemStore puts a read-through cache in front of an item repository.
// Cache failures are logged and the database answers instead.
//
// Invalidation runs after the write commits. A read that loaded the old row
// before the commit can still store it after the invalidation, leaving a
// stale item cached until the TTL expires. Ledger reads run inside
// transactions and never see this cache, so prices charged are unaffected.
type CachedItemStore struct {
	next   port.ItemRepository
	cache  port.CacheRepository
	logger *slog.Logger
}

func NewCachedItemStore(next port.ItemRepository, cache port.CacheRepository, l *slog.Logger) *CachedItemStore {
	if l == nil {
		l = slog.Default()
	}
	return &CachedItemStore{
		next:   next,
		cache:  cache,
		logger: l.With(slog.String("component", "item_cache")),
	}
}

var _ port.ItemRepository = (*CachedItemStore)(nil)

func (s *CachedItemStore) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cached, err := s.cache.GetItem(ctx, id)
	if err != nil {
		log.Warn("item cache read failed", slog.Int64("item_id", id), slog.String("error", err.Error()))
	} else if cached != nil {
		return cached, nil
	}

	item, err := s.next.GetItem(ctx, id)
	if err != nil || item == nil {
		return item, err
	}
	s.store(ctx, item)
	return item, nil
}

func (s *CachedItemStore) GetBarcodeItem(ctx context.Context, code string) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	code = strings.TrimSpace(code)

	id, ok, err := s.cache.LookupBarcode(ctx, code)
	if err != nil {
		log.Warn("barcode cache read failed", slog.String("barcode", code), slog.String("error", err.Error()))
	} else if ok {
		item, err := s.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		// the index can outlive a barcode change
		if item != nil && item.HasBarcode(code) {
			return item, nil
		}
	}

	item, err := s.next.GetBarcodeItem(ctx, code)
	if err != nil || item == nil {
		return item, err
	}
	s.store(ctx, item)
	return item, nil
}

func (s *CachedItemStore) store(ctx context.Context, item *domain.Item) {
	if err := s.cache.SetItem(ctx, item); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("item cache write failed",
			slog.Int64("item_id", item.ID),
			slog.String("error", err.Error()))
	}
}

func (s *CachedItemStore) invalidate(ctx context.Context, id int64) {
	if err := s.cache.InvalidateItem(ctx, id); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("item cache invalidation failed",
			slog.Int64("item_id", id),
			slog.String("error", err.Error()))
	}
}

func (s *CachedItemStore) GetItems(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	return s.next.GetItems(ctx, limit, offset)
}

func (s *CachedItemStore) GetLatestItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.next.GetLatestItems(ctx, limit)
}

func (s *CachedItemStore) GetPopularItems(ctx context.Context, limit int) ([]*domain.Item, error) {
	return s.next.GetPopularItems(ctx, limit)
}

func (s *CachedItemStore) CreateItem(ctx context.Context, input domain.ItemInput) (int64, error) {
	return s.next.CreateItem(ctx, input)
}

func (s *CachedItemStore) UpdateItem(ctx context.Context, id int64, input domain.ItemInput) error {
	if err := s.next.UpdateItem(ctx, id, input); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedItemStore) DeleteItem(ctx context.Context, id int64) error {
	if err := s.next.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}
