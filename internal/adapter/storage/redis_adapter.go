package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

const (
	itemKeyPrefix     = "item:"
	barcodeKeyPrefix  = "barcode:"
	idempotencyKeyTTL = 24 * time.Hour
)

// invalidateItemScript drops a cached item together with the barcode index
// entries that still point at it.
var invalidateItemScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
local removed = redis.call('DEL', KEYS[1])
if raw then
	local ok, item = pcall(cjson.decode, raw)
	if ok and type(item.barcodes) == 'table' then
		for _, code in ipairs(item.barcodes) do
			local key = ARGV[1] .. code
			if redis.call('GET', key) == ARGV[2] then
				redis.call('DEL', key)
			end
		end
	end
end
return removed
`)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func itemKey(id int64) string {
	return itemKeyPrefix + strconv.FormatInt(id, 10)
}

func (r *RedisAdapter) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	raw, err := r.client.Get(ctx, itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item domain.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode cached item %d: %w", id, err)
	}
	return &item, nil
}

func (r *RedisAdapter) SetItem(ctx context.Context, item *domain.Item) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %d: %w", item.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(item.ID), raw, r.ttl)
		for _, code := range item.Barcodes {
			pipe.Set(ctx, barcodeKeyPrefix+code, item.ID, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisAdapter) LookupBarcode(ctx context.Context, code string) (int64, bool, error) {
	id, err := r.client.Get(ctx, barcodeKeyPrefix+code).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *RedisAdapter) InvalidateItem(ctx context.Context, id int64) error {
	return invalidateItemScript.Run(ctx, r.client,
		[]string{itemKey(id)}, barcodeKeyPrefix, strconv.FormatInt(id, 10),
	).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
