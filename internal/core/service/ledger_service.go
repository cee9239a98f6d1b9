package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/kiosk-ledger/internal/core/domain"
	"github.com/rl1809/kiosk-ledger/internal/platform/logger"
	"github.com/rl1809/kiosk-ledger/internal/port"
)

const purchaseRequestPrefix = "purchase:"

// LedgerService owns users, their purchases and the debt derived from them.
// Every debt change runs in one transaction holding the user's row lock, so
// concurrent purchases by the same user serialize instead of losing updates.
type LedgerService struct {
	store          port.Store
	cache          port.CacheRepository
	highscoreLimit int
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewLedgerService(store port.Store, cache port.CacheRepository, highscoreLimit int, l *slog.Logger) *LedgerService {
	if l == nil {
		l = slog.Default()
	}
	return &LedgerService{
		store:          store,
		cache:          cache,
		highscoreLimit: highscoreLimit,
		validate:       newValidator(),
		logger:         l.With(slog.String("component", "ledger_service")),
	}
}

func (s *LedgerService) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

func (s *LedgerService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.store.Repositories().Users.GetUser(ctx, id)
}

func (s *LedgerService) GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return s.store.Repositories().Users.GetUsers(ctx, limit, offset)
}

// CreateUser stores a new user. Debt always starts at zero whatever the
// caller sent.
func (s *LedgerService) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if err := validateStruct(s.validate, user); err != nil {
		return nil, err
	}
	if err := s.store.Repositories().Users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	user.Debt = decimal.Zero
	user.Purchases = nil
	s.log(ctx).Info("user created", slog.String("user_id", user.ID))
	return &user, nil
}

// UpdateUser writes name and flags and returns the stored user. Debt is
// never written through this path.
func (s *LedgerService) UpdateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	if err := validateStruct(s.validate, user); err != nil {
		return nil, err
	}

	var updated *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		current, err := repos.Users.GetUserForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrUserNotFound
		}
		if err := repos.Users.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated, err = repos.Users.GetUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetUserPurchase returns the user carrying the one purchase, or nil when
// either does not exist or the purchase belongs to someone else.
func (s *LedgerService) GetUserPurchase(ctx context.Context, userID string, purchaseID int64) (*domain.User, error) {
	repos := s.store.Repositories()

	user, err := repos.Users.GetUser(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}

	purchase, err := repos.Purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil || purchase.UserID != userID {
		return nil, nil
	}

	user.Purchases = []*domain.Purchase{purchase}
	return user, nil
}

// GetUserPurchases returns the user with one page of purchases, newest
// first, or nil for an unknown user.
func (s *LedgerService) GetUserPurchases(ctx context.Context, userID string, limit, offset int) (*domain.User, error) {
	repos := s.store.Repositories()

	user, err := repos.Users.GetUser(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}

	purchases, err := repos.Purchases.GetUserPurchases(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []*domain.Purchase{}
	}
	user.Purchases = purchases
	return user, nil
}

func (s *LedgerService) GetUserTopItems(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	return s.store.Repositories().Purchases.GetUserTopItems(ctx, userID, limit)
}

func (s *LedgerService) GetFeedPurchases(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return s.store.Repositories().Purchases.GetFeedPurchases(ctx, limit, offset)
}

func (s *LedgerService) GetMonthlyHighscore(ctx context.Context) ([]*domain.User, error) {
	return s.store.Repositories().Users.GetMonthlyHighscore(ctx, s.highscoreLimit)
}

// CreatePurchase debits the item's current price to the user and returns
// the user with the new purchase attached. The price is read from the item
// inside the transaction; callers cannot supply it.
func (s *LedgerService) CreatePurchase(ctx context.Context, userID string, itemID int64) (*domain.User, error) {
	if userID == "" || itemID <= 0 {
		return nil, fmt.Errorf("%w: user and item are required", domain.ErrValidation)
	}

	var user *domain.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		var err error
		user, err = repos.Users.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}

		item, err := repos.Items.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}

		newDebt := user.Debt.Add(item.Price)
		if _, err := repos.Purchases.CreatePurchase(ctx, userID, item.ID, item.Price); err != nil {
			return err
		}
		if err := repos.Users.AdjustDebt(ctx, userID, item.Price); err != nil {
			return err
		}

		purchase, err := repos.Purchases.GetLatestUserPurchase(ctx, userID)
		if err != nil {
			return err
		}
		if purchase == nil {
			return fmt.Errorf("purchase by %s vanished after insert", userID)
		}

		user.Debt = newDebt
		user.Purchases = []*domain.Purchase{purchase}
		return nil
	})
	if err != nil {
		s.log(ctx).Warn("purchase failed",
			slog.String("user_id", userID),
			slog.Int64("item_id", itemID),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.log(ctx).Info("purchase created",
		slog.String("user_id", userID),
		slog.Int64("item_id", itemID),
		slog.String("debt", user.Debt.String()))
	return user, nil
}

// CreatePurchaseOnce is CreatePurchase guarded by a client request id, so a
// retried request debits at most once. The claim is released when the
// purchase fails, letting the client retry with the same id.
func (s *LedgerService) CreatePurchaseOnce(ctx context.Context, requestID, userID string, itemID int64) (*domain.User, error) {
	if _, err := uuid.Parse(requestID); err != nil {
		return nil, fmt.Errorf("%w: request id: %v", domain.ErrValidation, err)
	}
	if s.cache == nil {
		return nil, fmt.Errorf("idempotent purchases need a cache")
	}

	key := purchaseRequestPrefix + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	user, err := s.CreatePurchase(ctx, userID, itemID)
	if err != nil {
		if clearErr := s.cache.ClearIdempotency(ctx, key); clearErr != nil {
			s.log(ctx).Error("failed to release purchase request",
				slog.String("request_id", requestID),
				slog.String("error", clearErr.Error()))
		}
		return nil, err
	}
	return user, nil
}

// DeleteUserPurchase removes a purchase and credits its stored price back
// to the user. A purchase that does not exist, or belongs to another user,
// is ErrPurchaseNotFound and leaves the debt untouched.
func (s *LedgerService) DeleteUserPurchase(ctx context.Context, userID string, purchaseID int64) error {
	if userID == "" || purchaseID <= 0 {
		return fmt.Errorf("%w: user and purchase are required", domain.ErrValidation)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos port.Repositories) error {
		user, err := repos.Users.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}

		purchase, err := repos.Purchases.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase == nil || purchase.UserID != userID {
			return domain.ErrPurchaseNotFound
		}

		if err := repos.Purchases.DeletePurchase(ctx, purchaseID); err != nil {
			return err
		}
		return repos.Users.AdjustDebt(ctx, userID, purchase.Price.Neg())
	})
	if err != nil {
		s.log(ctx).Warn("purchase deletion failed",
			slog.String("user_id", userID),
			slog.Int64("purchase_id", purchaseID),
			slog.String("error", err.Error()))
		return err
	}

	s.log(ctx).Info("purchase deleted",
		slog.String("user_id", userID),
		slog.Int64("purchase_id", purchaseID))
	return nil
}

// Reconcile lists users whose stored debt differs from the sum of their
// purchase prices. It reports only; nothing is corrected.
func (s *LedgerService) Reconcile(ctx context.Context) ([]domain.DebtDiscrepancy, error) {
	found, err := s.store.Repositories().Users.GetDebtDiscrepancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	log := s.log(ctx)
	for _, d := range found {
		log.Warn("debt does not match purchases",
			slog.String("user_id", d.UserID),
			slog.String("debt", d.Debt.String()),
			slog.String("ledger_total", d.LedgerTotal.String()),
			slog.String("drift", d.Drift().String()))
	}
	return found, nil
}
