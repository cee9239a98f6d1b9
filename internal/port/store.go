package port

import "context"

// Repositories groups the stores bound to one connection or transaction.
type Repositories struct {
	Items     ItemRepository
	Purchases PurchaseRepository
	Users     UserRepository
}

type Store interface {
	// Repositories returns stores running on the connection pool
	Repositories() Repositories

	// WithinTx runs fn with stores bound to a single transaction, committing
	// when fn returns nil and rolling back otherwise
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
