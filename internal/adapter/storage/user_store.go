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

const userColumns = `Users.user_id, Users.name, Users.debt, Users.lobare, Users.admin`

type UserStore struct {
	db     DBTX
	logger *slog.Logger
}

func NewUserStore(db DBTX, l *slog.Logger) *UserStore {
	if l == nil {
		l = slog.Default()
	}
	return &UserStore{db: db, logger: l.With(slog.String("component", "user_store"))}
}

var _ port.UserRepository = (*UserStore)(nil)

func (s *UserStore) queryUsers(ctx context.Context, query string, args ...any) ([]*domain.User, error) {
	rows, err := queryRows(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	return mapper.UsersFromRows(rows)
}

func (s *UserStore) getUser(ctx context.Context, query string, id string) (*domain.User, error) {
	users, err := s.queryUsers(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM Users WHERE user_id = ?`, id)
}

// GetUserForUpdate only holds its lock when the store runs inside a transaction.
func (s *UserStore) GetUserForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM Users WHERE user_id = ? FOR UPDATE`, id)
}

func (s *UserStore) GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	users, err := s.queryUsers(ctx, `
		SELECT `+userColumns+` FROM Users
		ORDER BY Users.user_id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return users, nil
}

func (s *UserStore) GetMonthlyHighscore(ctx context.Context, limit int) ([]*domain.User, error) {
	users, err := s.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM Users
		JOIN (
			SELECT user_id, COUNT(*) AS total FROM Purchases
			WHERE date >= DATE_FORMAT(NOW(), '%Y-%m-01')
			GROUP BY user_id
		) AS pc ON pc.user_id = Users.user_id
		ORDER BY pc.total DESC, Users.user_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query highscore: %w", err)
	}
	return users, nil
}

// CreateUser inserts the user with a zero debt.
func (s *UserStore) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO Users (user_id, name, debt, lobare, admin)
		VALUES (?, ?, 0, ?, ?)`,
		user.ID, user.Name, user.Lobare, user.Admin,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID))
		return fmt.Errorf("insert user: %w", MapError(err))
	}
	return nil
}

func (s *UserStore) UpdateUser(ctx context.Context, user domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE Users SET name = ?, lobare = ?, admin = ?
		WHERE user_id = ?`,
		user.Name, user.Lobare, user.Admin, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", MapError(err))
	}
	return nil
}

// AdjustDebt adds delta in a single statement. The driver sends delta as
// text; the cast keeps the addition in DECIMAL instead of DOUBLE. MySQL
// reports changed rows only, so a zero delta affects nothing; callers check
// the user exists.
func (s *UserStore) AdjustDebt(ctx context.Context, userID string, delta decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE Users SET debt = debt + CAST(? AS DECIMAL(10, 2)) WHERE user_id = ?`,
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("adjust debt: %w", MapError(err))
	}
	return nil
}

func (s *UserStore) GetDebtDiscrepancies(ctx context.Context) ([]domain.DebtDiscrepancy, error) {
	rows, err := queryRows(ctx, s.db, `
		SELECT Users.user_id, Users.debt, COALESCE(pc.total, 0) AS ledger_total
		FROM Users
		LEFT JOIN (
			SELECT user_id, SUM(price) AS total FROM Purchases GROUP BY user_id
		) AS pc ON pc.user_id = Users.user_id
		WHERE Users.debt <> COALESCE(pc.total, 0)
		ORDER BY Users.user_id`)
	if err != nil {
		return nil, fmt.Errorf("query discrepancies: %w", err)
	}
	return mapper.DiscrepanciesFromRows(rows)
}
