package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/kiosk-ledger/internal/adapter/handler"
	"github.com/rl1809/kiosk-ledger/internal/adapter/storage"
	"github.com/rl1809/kiosk-ledger/internal/config"
	"github.com/rl1809/kiosk-ledger/internal/core/service"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
)

const pingTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("KIOSK_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Setup(cfg.Server.LogLevel)

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	log.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Info("connected to redis")

	// Initialize adapters and services
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Redis.ItemTTL)
	mysqlAdapter := storage.NewMySQLAdapter(db, log).WithItemCache(redisAdapter)
	ledger := service.NewLedgerService(mysqlAdapter, redisAdapter, cfg.Ledger.HighscoreLimit, log)

	// Background loops
	var wg sync.WaitGroup

	healthServer := health.NewServer()
	reporter := handler.NewHealthReporter(healthServer, pingTimeout, log,
		handler.Check{Name: "mysql", Pinger: mysqlAdapter},
		handler.Check{Name: "redis", Pinger: redisAdapter},
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(ctx, cfg.Ledger.HealthInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		reconcileLoop(ctx, ledger, cfg.Ledger.ReconcileInterval)
	}()

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("gRPC server listening", slog.Int("port", cfg.Server.GRPCPort))
		serveErr <- grpcServer.Serve(lis)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("gRPC server error", slog.String("error", err.Error()))
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	cancel()
	wg.Wait()
	log.Info("background loops stopped")
	return nil
}

// reconcileLoop periodically checks every user's debt against their
// purchases until ctx is done.
func reconcileLoop(ctx context.Context, ledger *service.LedgerService, interval time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			found, err := ledger.Reconcile(ctx)
			if err != nil {
				log.Error("reconcile failed", slog.String("error", err.Error()))
				continue
			}
			log.Info("reconcile finished", slog.Int("discrepancies", len(found)))
		}
	}
}
