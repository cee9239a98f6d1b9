package port

import (
	"context"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

type PurchaseRepository interface {
	// GetPurchase returns the purchase with its item embedded, or nil
	GetPurchase(ctx context.Context, id int64) (*domain.Purchase, error)

	// GetUserPurchases pages through a user's purchases, newest first
	GetUserPurchases(ctx context.Context, userID string, limit, offset int) ([]*domain.Purchase, error)

	// GetLatestUserPurchase returns the user's newest purchase, or nil
	GetLatestUserPurchase(ctx context.Context, userID string) (*domain.Purchase, error)

	// GetFeedPurchases returns recent purchases across users, each as a user
	// carrying exactly one purchase
	GetFeedPurchases(ctx context.Context, limit, offset int) ([]*domain.User, error)

	// GetUserTopItems returns one purchase per item with TotalCount set,
	// most purchased first
	GetUserTopItems(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error)

	// CreatePurchase records a purchase at the given price and returns its id
	CreatePurchase(ctx context.Context, userID string, itemID int64, price decimal.Decimal) (int64, error)

	// DeletePurchase removes a purchase; missing purchases are an error
	DeletePurchase(ctx context.Context, id int64) error
}
