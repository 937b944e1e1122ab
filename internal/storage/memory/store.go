// Package memory implements the ledger, catalog and user stores in process
// memory. It backs single-device installations and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// Index and range names.
const (
	IndexStatus = "status"
	IndexOwner  = "owner"
	IndexTill   = "till"
	IndexKind   = "kind"
	IndexRole   = "role"
	RangeTime   = "timestamp"
)

// Store keeps every collection behind one lock, so multi-record writes are
// atomic with respect to readers.
type Store struct {
	mu           sync.RWMutex
	tills        *Collection[ledger.Till]
	history      *Collection[ledger.Till]
	transactions *Collection[ledger.Transaction]
	annulled     *Collection[ledger.Transaction]
	items        *Collection[catalog.Item]
	users        *Collection[auth.User]
}

var (
	_ ledger.Store       = (*Store)(nil)
	_ catalog.Repository = (*Store)(nil)
	_ auth.Repository    = (*Store)(nil)
)

func tillKey(t *ledger.Till) string { return t.ID }

func txKey(tx *ledger.Transaction) string { return tx.ID }

func itemKey(i *catalog.Item) string { return itemKeyOf(i.Kind, i.ID) }

func itemKeyOf(kind catalog.Kind, id string) string { return string(kind) + "/" + id }

func cloneItem(i *catalog.Item) *catalog.Item {
	c := *i
	return &c
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	return &c
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		tills: NewCollection(tillKey, (*ledger.Till).Clone).
			WithIndex(IndexStatus, func(t *ledger.Till) string { return string(t.Status) }).
			WithIndex(IndexOwner, func(t *ledger.Till) string { return t.OwnerID }),
		history: NewCollection(tillKey, (*ledger.Till).Clone),
		transactions: NewCollection(txKey, (*ledger.Transaction).Clone).
			WithIndex(IndexTill, func(tx *ledger.Transaction) string { return tx.TillID }).
			WithIndex(IndexStatus, func(tx *ledger.Transaction) string { return string(tx.Status) }).
			WithRange(RangeTime, func(tx *ledger.Transaction) time.Time { return tx.Timestamp }),
		annulled: NewCollection(txKey, (*ledger.Transaction).Clone),
		items: NewCollection(itemKey, cloneItem).
			WithIndex(IndexKind, func(i *catalog.Item) string { return string(i.Kind) }),
		users: NewCollection(func(u *auth.User) string { return u.ID }, cloneUser).
			WithIndex(IndexRole, func(u *auth.User) string { return string(u.Role) }),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// --- Tills ---

// CreateTill inserts t. The one-open-till-per-owner rule is checked in the
// same critical section as the insert.
func (s *Store) CreateTill(_ context.Context, t *ledger.Till) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.IsOpen() {
		owned, err := s.tills.GetAllByIndex(IndexOwner, t.OwnerID)
		if err != nil {
			return err
		}
		for _, o := range owned {
			if o.IsOpen() {
				return &ledger.ConflictError{OwnerID: t.OwnerID, TillID: o.ID}
			}
		}
	}
	return s.tills.Add(t)
}

func (s *Store) GetTill(_ context.Context, id string) (*ledger.Till, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tills.Get(id)
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "till", ID: id}
	}
	return t, nil
}

func (s *Store) ListTillsByStatus(_ context.Context, status ledger.TillStatus) ([]ledger.Till, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tills.GetAllByIndex(IndexStatus, string(status))
}

func (s *Store) ListTillsByOwner(_ context.Context, ownerID string) ([]ledger.Till, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tills.GetAllByIndex(IndexOwner, ownerID)
}

func (s *Store) SetTillSales(_ context.Context, id string, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tills.Get(id)
	if !ok || !t.IsOpen() {
		return &ledger.NotFoundError{Kind: "open till", ID: id}
	}
	t.TotalSales = total
	s.tills.Put(t)
	return nil
}

func (s *Store) CloseTill(_ context.Context, t *ledger.Till) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.tills.Get(t.ID)
	if !ok || !live.IsOpen() {
		return &ledger.NotFoundError{Kind: "open till", ID: t.ID}
	}
	if err := s.history.Add(t); err != nil {
		return err
	}
	s.tills.Put(t)
	return nil
}

func (s *Store) ListTillHistory(context.Context) ([]ledger.Till, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.GetAll(), nil
}

// --- Transactions ---

func (s *Store) CreateTransaction(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions.Add(tx)
}

func (s *Store) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions.Get(id)
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

func (s *Store) ListTransactionsByTill(_ context.Context, tillID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.GetAllByIndex(IndexTill, tillID)
}

func (s *Store) ListTransactionsByStatus(_ context.Context, status ledger.TransactionStatus) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.GetAllByIndex(IndexStatus, string(status))
}

func (s *Store) ListTransactionsByRange(_ context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.GetAllByRange(RangeTime, from, to)
}

func (s *Store) AnnulTransaction(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.transactions.Get(tx.ID)
	if !ok {
		return &ledger.NotFoundError{Kind: "transaction", ID: tx.ID}
	}
	if !live.IsActive() {
		e := &ledger.AlreadyAnnulledError{TransactionID: tx.ID}
		if live.Annulment != nil {
			e.AnnulledBy = live.Annulment.ByName
			e.AnnulledAt = live.Annulment.At
		}
		return e
	}
	if err := s.annulled.Add(tx); err != nil {
		return err
	}
	s.transactions.Put(tx)
	return nil
}

func (s *Store) ListAnnulled(context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annulled.GetAll(), nil
}

// --- Catalog ---

// PutItems inserts or replaces catalog items.
func (s *Store) PutItems(_ context.Context, items ...catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		if !items[i].Kind.Valid() {
			return &ledger.ValidationError{Field: "kind", Reason: "unknown catalog kind " + string(items[i].Kind)}
		}
		s.items.Put(&items[i])
	}
	return nil
}

func (s *Store) Services(context.Context) ([]catalog.Item, error) {
	return s.itemsOf(catalog.KindService)
}

func (s *Store) Products(context.Context) ([]catalog.Item, error) {
	return s.itemsOf(catalog.KindProduct)
}

func (s *Store) MiscItems(context.Context) ([]catalog.Item, error) {
	return s.itemsOf(catalog.KindMisc)
}

func (s *Store) GetByID(_ context.Context, kind catalog.Kind, id string) (*catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items.Get(itemKeyOf(kind, id))
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return item, nil
}

func (s *Store) itemsOf(kind catalog.Kind) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items.GetAllByIndex(IndexKind, string(kind))
}

// --- Users ---

// PutUsers inserts or replaces accounts.
func (s *Store) PutUsers(_ context.Context, users ...auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range users {
		s.users.Put(&users[i])
	}
	return nil
}

func (s *Store) ListByRole(_ context.Context, role auth.Role) ([]auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.GetAllByIndex(IndexRole, string(role))
}
