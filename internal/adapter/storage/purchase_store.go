package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/core/mapper"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

// Item columns are prefixed with mapper.PurchaseItemPrefix so they can share
// a row with purchase and user columns.
const (
	purchaseItemColumns = `Items.name AS item_name, Items.price AS item_price,
		Items.volume AS item_volume, Items.alcohol AS item_alcohol,
		bc.codes AS item_codes, Images.thumbnail AS item_thumbnail, Images.large AS item_large`
	purchaseColumns = `Purchases.purchase_id, Purchases.user_id, Purchases.item_id,
		Purchases.price, Purchases.date, ` + purchaseItemColumns
	purchaseSource = `FROM Purchases
		JOIN Items ON Items.item_id = Purchases.item_id` + barcodeJoin + imageJoin
	newestFirst = `ORDER BY Purchases.date DESC, Purchases.purchase_id DESC`
)

type PurchaseStore struct {
	db     DBTX
	logger *slog.Logger
}

func NewPurchaseStore(db DBTX, l *slog.Logger) *PurchaseStore {
	if l == nil {
		l = slog.Default()
	}
	return &PurchaseStore{db: db, logger: l.With(slog.String("component", "purchase_store"))}
}

var _ port.PurchaseRepository = (*PurchaseStore)(nil)

func (s *PurchaseStore) queryPurchases(ctx context.Context, query string, args ...any) ([]*domain.Purchase, error) {
	rows, err := queryRows(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return mapper.PurchasesFromRows(rows)
}

func (s *PurchaseStore) GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	purchases, err := s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` `+purchaseSource+`
		WHERE Purchases.purchase_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query purchase: %w", err)
	}
	if len(purchases) == 0 {
		return nil, nil
	}
	return purchases[0], nil
}

func (s *PurchaseStore) GetUserPurchases(ctx context.Context, userID string, limit, offset int) ([]*domain.Purchase, error) {
	purchases, err := s.queryPurchases(ctx, `
		SELECT `+purchaseColumns+` `+purchaseSource+`
		WHERE Purchases.user_id = ?
		`+newestFirst+`
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query user purchases: %w", err)
	}
	return purchases, nil
}

func (s *PurchaseStore) GetLatestUserPurchase(ctx context.Context, userID string) (*domain.Purchase, error) {
	purchases, err := s.GetUserPurchases(ctx, userID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, nil
	}
	return purchases[0], nil
}

func (s *PurchaseStore) GetFeedPurchases(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := queryRows(ctx, s.db, `
		SELECT Users.name, Users.debt, Users.lobare, Users.admin, `+purchaseColumns+`
		`+purchaseSource+`
		JOIN Users ON Users.user_id = Purchases.user_id
		`+newestFirst+`
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query feed: %w", err)
	}
	return mapper.FeedUsersFromRows(rows)
}

func (s *PurchaseStore) GetUserTopItems(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	purchases, err := s.queryPurchases(ctx, `
		SELECT pc.item_id, pc.total, pc.date, `+purchaseItemColumns+`
		FROM (
			SELECT item_id, COUNT(*) AS total, MAX(date) AS date FROM Purchases
			WHERE user_id = ?
			GROUP BY item_id
		) AS pc
		JOIN Items ON Items.item_id = pc.item_id`+barcodeJoin+imageJoin+`
		ORDER BY pc.total DESC, pc.item_id
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query top items: %w", err)
	}
	for _, p := range purchases {
		p.UserID = userID
	}
	return purchases, nil
}

// CreatePurchase records the purchase at price, the item price at the time
// of purchase. The date is assigned by the database.
func (s *PurchaseStore) CreatePurchase(ctx context.Context, userID string, itemID int64, price decimal.Decimal) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO Purchases (user_id, item_id, price, date)
		VALUES (?, ?, ?, NOW())`,
		userID, itemID, price,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create purchase",
			slog.String("error", err.Error()),
			slog.String("user_id", userID),
			slog.Int64("item_id", itemID))
		return 0, fmt.Errorf("insert purchase: %w", MapError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert purchase id: %w", err)
	}
	return id, nil
}

func (s *PurchaseStore) DeletePurchase(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM Purchases WHERE purchase_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", MapError(err))
	}
	return checkRowsAffected(res, domain.ErrPurchaseNotFound)
}
