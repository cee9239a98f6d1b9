package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func testItem(id int64, codes ...string) *domain.Item {
	return &domain.Item{
		ID:       id,
		Name:     "Club-Mate",
		Price:    decimal.RequireFromString("1.50"),
		Volume:   0.5,
		Barcodes: codes,
	}
}

func TestRedisAdapter_ItemRoundTrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, "item:9001", "barcode:4029764001807")

	if err := adapter.SetItem(ctx, testItem(9001, "4029764001807")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := adapter.GetItem(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached item")
	}
	if got.Name != "Club-Mate" || !got.Price.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("unexpected item %+v", got)
	}

	id, ok, err := adapter.LookupBarcode(ctx, "4029764001807")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || id != 9001 {
		t.Errorf("expected barcode to point at 9001, got %d (found=%v)", id, ok)
	}
}

func TestRedisAdapter_EntriesExpire(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, 30*time.Second)

	client.Del(ctx, "item:9005", "barcode:ttl-a")
	if err := adapter.SetItem(ctx, testItem(9005, "ttl-a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"item:9005", "barcode:ttl-a"} {
		ttl, err := client.TTL(ctx, key).Result()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ttl <= 0 || ttl > 30*time.Second {
			t.Errorf("expected %s to expire within 30s, got %v", key, ttl)
		}
	}
}

func TestRedisAdapter_Miss(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, "item:9002", "barcode:missing-code")

	got, err := adapter.GetItem(ctx, 9002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected miss, got %+v", got)
	}

	_, ok, err := adapter.LookupBarcode(ctx, "missing-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected barcode miss")
	}
}

func TestRedisAdapter_InvalidateItem(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, "item:9003", "item:9004", "barcode:inv-a", "barcode:inv-b")

	if err := adapter.SetItem(ctx, testItem(9003, "inv-a", "inv-b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// inv-b has moved to another item since
	client.Set(ctx, "barcode:inv-b", 9004, time.Minute)

	if err := adapter.InvalidateItem(ctx, 9003); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n, _ := client.Exists(ctx, "item:9003").Result(); n != 0 {
		t.Error("expected item key to be removed")
	}
	if n, _ := client.Exists(ctx, "barcode:inv-a").Result(); n != 0 {
		t.Error("expected barcode inv-a to be removed")
	}
	if id, _ := client.Get(ctx, "barcode:inv-b").Int64(); id != 9004 {
		t.Errorf("expected barcode inv-b to keep pointing at 9004, got %d", id)
	}

	// invalidating an uncached item is a no-op
	if err := adapter.InvalidateItem(ctx, 9003); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, "test-idem-key")

	ok, err := adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}

	if err := adapter.ClearIdempotency(ctx, "test-idem-key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected key to be reusable after clear")
	}
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client, time.Minute)

	client.Del(ctx, "concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}
