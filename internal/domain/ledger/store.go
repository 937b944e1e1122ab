package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TillStore persists live tills and the closed-till history archive.
type TillStore interface {
	// CreateTill inserts a new till. It fails with ErrDuplicateKey when the
	// id exists, and with a *ConflictError when the owner already has an
	// open till and the backend enforces that constraint itself.
	CreateTill(ctx context.Context, t *Till) error
	// GetTill returns a till by id regardless of status.
	GetTill(ctx context.Context, id string) (*Till, error)
	ListTillsByStatus(ctx context.Context, status TillStatus) ([]Till, error)
	ListTillsByOwner(ctx context.Context, ownerID string) ([]Till, error)
	// SetTillSales overwrites the cached TotalSales projection of an open till.
	SetTillSales(ctx context.Context, id string, total decimal.Decimal) error
	// CloseTill atomically appends t to the history archive and replaces the
	// live record with it. It fails with a *NotFoundError when the live till
	// is no longer open.
	CloseTill(ctx context.Context, t *Till) error
	ListTillHistory(ctx context.Context) ([]Till, error)
}

// TransactionStore persists transactions and the annulled archive.
// Listings are returned in creation order.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactionsByTill(ctx context.Context, tillID string) ([]Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error)
	// ListTransactionsByRange returns transactions with from <= Timestamp <= to.
	ListTransactionsByRange(ctx context.Context, from, to time.Time) ([]Transaction, error)
	// AnnulTransaction atomically inserts tx into the annulled archive and
	// replaces the live record with it. It fails with *AlreadyAnnulledError
	// when the live record is not active.
	AnnulTransaction(ctx context.Context, tx *Transaction) error
	ListAnnulled(ctx context.Context) ([]Transaction, error)
}

// Store is the full ledger persistence contract.
type Store interface {
	TillStore
	TransactionStore
	Ping(ctx context.Context) error
}
