package port

import (
	"context"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	// GetUser returns nil when the user does not exist
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetUserForUpdate reads the user and locks its row until the
	// surrounding transaction ends
	GetUserForUpdate(ctx context.Context, id string) (*domain.User, error)

	GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error)

	// GetMonthlyHighscore ranks users by purchases in the current month
	GetMonthlyHighscore(ctx context.Context, limit int) ([]*domain.User, error)

	CreateUser(ctx context.Context, user domain.User) error

	// UpdateUser writes name and flags, never debt
	UpdateUser(ctx context.Context, user domain.User) error

	// AdjustDebt atomically adds delta to the user's debt
	AdjustDebt(ctx context.Context, userID string, delta decimal.Decimal) error

	// GetDebtDiscrepancies lists users whose debt differs from their purchase total
	GetDebtDiscrepancies(ctx context.Context) ([]domain.DebtDiscrepancy, error)
}
