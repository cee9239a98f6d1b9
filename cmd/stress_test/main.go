package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/adapter/storage"
	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/core/service"
)

const (
	defaultDSN    = "root:root@tcp(localhost:3306)/kiosk?parseTime=true"
	redisAddr     = "localhost:6379"
	totalRequests = 50
	retriesPerReq = 3
	itemPrice     = "1.10"
)

func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = defaultDSN
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Initialize adapters and services
	redisAdapter := storage.NewRedisAdapter(rdb, time.Minute)
	mysqlAdapter := storage.NewMySQLAdapter(db, nil).WithItemCache(redisAdapter)
	ledger := service.NewLedgerService(mysqlAdapter, redisAdapter, 10, nil)
	catalog := service.NewCatalogService(mysqlAdapter, nil)

	userID := "stress-" + uuid.NewString()[:8]
	if _, err := ledger.CreateUser(ctx, domain.User{ID: userID, Name: "Stress Test"}); err != nil {
		log.Fatalf("failed to create user: %v", err)
	}
	item, err := catalog.CreateItem(ctx, domain.ItemInput{
		Name:     "Stress Mate",
		Price:    decimal.RequireFromString(itemPrice),
		Barcodes: []string{uuid.NewString()},
	})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	var successCount atomic.Int32
	var duplicateCount atomic.Int32
	var failCount atomic.Int32

	// Every request is sent several times with the same id; only one may debit.
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		requestID := uuid.NewString()
		for r := 0; r < retriesPerReq; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := ledger.CreatePurchaseOnce(ctx, requestID, userID, item.ID)
				switch {
				case err == nil:
					successCount.Add(1)
				case errors.Is(err, domain.ErrDuplicateRequest):
					duplicateCount.Add(1)
				default:
					failCount.Add(1)
					log.Printf("purchase failed: %v", err)
				}
			}()
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Requests:         %d (x%d sends)\n", totalRequests, retriesPerReq)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Duplicates:       %d\n", duplicateCount.Load())
	fmt.Printf("Failed:           %d\n", failCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == totalRequests {
		fmt.Printf("PASS: Exactly %d purchases succeeded\n", totalRequests)
	} else {
		fmt.Printf("FAIL: Expected %d purchases, got %d\n", totalRequests, success)
	}

	// Verify final debt against the purchase ledger
	user, err := ledger.GetUser(ctx, userID)
	if err != nil || user == nil {
		log.Fatalf("failed to read user: %v", err)
	}
	want := decimal.RequireFromString(itemPrice).Mul(decimal.NewFromInt(int64(success)))
	fmt.Printf("Final Debt:       %s\n", user.Debt)

	if user.Debt.Equal(want) {
		fmt.Printf("PASS: Debt equals %s\n", want)
	} else {
		fmt.Printf("FAIL: Expected debt %s, got %s\n", want, user.Debt)
	}

	discrepancies, err := ledger.Reconcile(ctx)
	if err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}
	for _, d := range discrepancies {
		if d.UserID == userID {
			fmt.Printf("FAIL: Ledger drift %s\n", d.Drift())
			return
		}
	}
	fmt.Println("PASS: Debt matches purchase ledger")
}
