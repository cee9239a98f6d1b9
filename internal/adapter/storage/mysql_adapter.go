package storage

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/rl1809/kiosk-ledger/internal/port"
)

// MySQLAdapter hands out stores bound either to the pool or to a single
// transaction.
type MySQLAdapter struct {
	db     *sql.DB
	cache  port.CacheRepository
	logger *slog.Logger
}

func NewMySQLAdapter(db *sql.DB, l *slog.Logger) *MySQLAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &MySQLAdapter{db: db, logger: l}
}

var _ port.Store = (*MySQLAdapter)(nil)

// WithItemCache puts cache in front of item reads made outside a
// transaction. Transaction-bound stores always read through to MySQL.
func (m *MySQLAdapter) WithItemCache(cache port.CacheRepository) *MySQLAdapter {
	m.cache = cache
	return m
}

func (m *MySQLAdapter) bind(q DBTX) port.Repositories {
	return port.Repositories{
		Items:     NewItemStore(q, m.logger),
		Purchases: NewPurchaseStore(q, m.logger),
		Users:     NewUserStore(q, m.logger),
	}
}

func (m *MySQLAdapter) Repositories() port.Repositories {
	repos := m.bind(m.db)
	if m.cache != nil {
		repos.Items = NewCachedItemStore(repos.Items, m.cache, m.logger)
	}
	return repos
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context, repos port.Repositories) error) error {
	return RunInTransaction(ctx, m.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, m.bind(tx))
	})
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
