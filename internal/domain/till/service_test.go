package till

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// --- Mock implementations ---

type mockStore struct {
	tills   map[string]*ledger.Till
	order   []string
	history []ledger.Till
	txs     []ledger.Transaction

	listErr  error
	closeErr error
}

var _ ledger.Store = (*mockStore)(nil)

func newMockStore(tills ...*ledger.Till) *mockStore {
	m := &mockStore{tills: map[string]*ledger.Till{}}
	for _, t := range tills {
		m.tills[t.ID] = t
		m.order = append(m.order, t.ID)
	}
	return m
}

func (m *mockStore) CreateTill(_ context.Context, t *ledger.Till) error {
	if _, ok := m.tills[t.ID]; ok {
		return ledger.ErrDuplicateKey
	}
	m.tills[t.ID] = t.Clone()
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockStore) GetTill(_ context.Context, id string) (*ledger.Till, error) {
	t, ok := m.tills[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "till", ID: id}
	}
	return t.Clone(), nil
}

func (m *mockStore) ListTillsByStatus(_ context.Context, status ledger.TillStatus) ([]ledger.Till, error) {
	var out []ledger.Till
	for _, id := range m.order {
		if t := m.tills[id]; t.Status == status {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) ListTillsByOwner(_ context.Context, ownerID string) ([]ledger.Till, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []ledger.Till
	for _, id := range m.order {
		if t := m.tills[id]; t.OwnerID == ownerID {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) SetTillSales(_ context.Context, id string, total decimal.Decimal) error {
	t, ok := m.tills[id]
	if !ok || !t.IsOpen() {
		return &ledger.NotFoundError{Kind: "open till", ID: id}
	}
	t.TotalSales = total
	return nil
}

func (m *mockStore) CloseTill(_ context.Context, t *ledger.Till) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	live, ok := m.tills[t.ID]
	if !ok || !live.IsOpen() {
		return &ledger.NotFoundError{Kind: "open till", ID: t.ID}
	}
	m.history = append(m.history, *t.Clone())
	m.tills[t.ID] = t.Clone()
	return nil
}

func (m *mockStore) ListTillHistory(_ context.Context) ([]ledger.Till, error) {
	return m.history, nil
}

func (m *mockStore) CreateTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.txs = append(m.txs, *tx.Clone())
	return nil
}

func (m *mockStore) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	for i := range m.txs {
		if m.txs[i].ID == id {
			return m.txs[i].Clone(), nil
		}
	}
	return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
}

func (m *mockStore) ListTransactionsByTill(_ context.Context, tillID string) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := range m.txs {
		if m.txs[i].TillID == tillID {
			out = append(out, *m.txs[i].Clone())
		}
	}
	return out, nil
}

func (m *mockStore) ListTransactionsByStatus(context.Context, ledger.TransactionStatus) ([]ledger.Transaction, error) {
	return nil, nil
}

func (m *mockStore) ListTransactionsByRange(context.Context, time.Time, time.Time) ([]ledger.Transaction, error) {
	return nil, nil
}

func (m *mockStore) AnnulTransaction(context.Context, *ledger.Transaction) error { return nil }

func (m *mockStore) ListAnnulled(context.Context) ([]ledger.Transaction, error) { return nil, nil }

func (m *mockStore) Ping(context.Context) error { return nil }

// --- Helpers ---

var testNow = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func newTestService(store ledger.Store) *Service {
	s := NewService(store, Config{Tolerance: decimal.NewFromInt(1000), Currency: ledger.DefaultCurrency})
	s.now = func() time.Time { return testNow }
	s.newID = func() string { return "till-1" }
	return s
}

func openTill(id, owner string, float int64) *ledger.Till {
	return &ledger.Till{
		ID:           id,
		OwnerID:      owner,
		OpeningFloat: decimal.NewFromInt(float),
		Status:       ledger.TillOpen,
		TotalSales:   decimal.Zero,
	}
}

func cashTx(id, tillID string, total int64) ledger.Transaction {
	return ledger.Transaction{
		ID:            id,
		TillID:        tillID,
		Kind:          ledger.KindProduct,
		Total:         decimal.NewFromInt(total),
		PaymentMethod: ledger.PaymentCash,
		Status:        ledger.TransactionActive,
	}
}

// --- Tests ---

func TestOpenTill(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	till, err := svc.OpenTill(context.Background(), OpenRequest{
		OwnerID:      "maria",
		OwnerName:    "Maria",
		OpeningFloat: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)

	assert.Equal(t, "till-1", till.ID)
	assert.Equal(t, ledger.TillOpen, till.Status)
	assert.Equal(t, testNow, till.OpenedAt)
	assert.True(t, till.TotalSales.IsZero())
	assert.Contains(t, store.tills, "till-1")
}

func TestOpenTill_ZeroFloatAllowed(t *testing.T) {
	svc := newTestService(newMockStore())

	_, err := svc.OpenTill(context.Background(), OpenRequest{OwnerID: "maria", OpeningFloat: decimal.Zero})
	require.NoError(t, err)
}

func TestOpenTill_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   OpenRequest
		field string
	}{
		{name: "missing owner", req: OpenRequest{OpeningFloat: decimal.Zero}, field: "ownerId"},
		{name: "negative float", req: OpenRequest{OwnerID: "maria", OpeningFloat: decimal.NewFromInt(-1)}, field: "openingFloat"},
		{name: "fractional float", req: OpenRequest{OwnerID: "maria", OpeningFloat: decimal.RequireFromString("0.5")}, field: "openingFloat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newMockStore())

			_, err := svc.OpenTill(context.Background(), tt.req)

			var vErr *ledger.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestOpenTill_ConflictWhenOwnerHasOpenTill(t *testing.T) {
	store := newMockStore(openTill("existing", "maria", 0))
	svc := newTestService(store)

	_, err := svc.OpenTill(context.Background(), OpenRequest{OwnerID: "maria", OpeningFloat: decimal.Zero})

	var cErr *ledger.ConflictError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "existing", cErr.TillID)
	assert.Len(t, store.tills, 1)
}

func TestOpenTill_AfterCloseAllowed(t *testing.T) {
	closed := openTill("old", "maria", 0)
	closed.Status = ledger.TillClosed
	svc := newTestService(newMockStore(closed))

	_, err := svc.OpenTill(context.Background(), OpenRequest{OwnerID: "maria", OpeningFloat: decimal.Zero})
	require.NoError(t, err)
}

func TestOpenTill_StoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("boom")
	svc := newTestService(store)

	_, err := svc.OpenTill(context.Background(), OpenRequest{OwnerID: "maria", OpeningFloat: decimal.Zero})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list owner tills")
}

func TestCloseTill_Exact(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 50000))
	store.txs = []ledger.Transaction{cashTx("x1", "t1", 30000)}
	svc := newTestService(store)

	res, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.NewFromInt(80000)})
	require.NoError(t, err)

	till := res.Till
	assert.Equal(t, ledger.TillClosed, till.Status)
	assert.True(t, decimal.NewFromInt(80000).Equal(*till.ExpectedCash))
	assert.True(t, till.Discrepancy.IsZero())
	assert.True(t, decimal.NewFromInt(30000).Equal(till.TotalSales))
	require.NotNil(t, till.ClosedAt)
	assert.Equal(t, testNow, *till.ClosedAt)

	require.Len(t, store.history, 1)
	assert.Equal(t, "t1", store.history[0].ID)
	assert.Equal(t, ledger.TillClosed, store.tills["t1"].Status)
}

func TestCloseTill_Short(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 50000))
	store.txs = []ledger.Transaction{cashTx("x1", "t1", 30000)}
	svc := newTestService(store)

	res, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.NewFromInt(75000)})
	require.NoError(t, err)

	assert.Equal(t, ledger.TillPendingReview, res.Till.Status)
	assert.True(t, decimal.NewFromInt(-5000).Equal(*res.Till.Discrepancy))
}

func TestCloseTill_ToleranceOverride(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 50000))
	svc := newTestService(store)
	tol := decimal.NewFromInt(10000)

	res, err := svc.CloseTill(context.Background(), CloseRequest{
		TillID:      "t1",
		CountedCash: decimal.NewFromInt(45000),
		Tolerance:   &tol,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.TillClosed, res.Till.Status)
}

func TestCloseTill_IgnoresAnnulledAndNonCash(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 10000))
	annulled := cashTx("x2", "t1", 99000)
	annulled.Status = ledger.TransactionAnnulled
	card := cashTx("x3", "t1", 20000)
	card.PaymentMethod = ledger.PaymentCard
	split := cashTx("x4", "t1", 100000)
	split.PaymentMethod = ledger.PaymentSplit
	split.PaymentBreakdown = &ledger.Breakdown{
		Cash:     decimal.NewFromInt(40000),
		Card:     decimal.NewFromInt(40000),
		Transfer: decimal.NewFromInt(30000),
	}
	store.txs = []ledger.Transaction{cashTx("x1", "t1", 5000), annulled, card, split, cashTx("other", "t2", 7000)}
	svc := newTestService(store)

	res, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.NewFromInt(55000)})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(55000).Equal(*res.Till.ExpectedCash))
	assert.Equal(t, ledger.TillClosed, res.Till.Status)
	assert.True(t, decimal.NewFromInt(125000).Equal(res.Till.TotalSales))
	assert.Equal(t, 3, res.Summary.ActiveCount)
	assert.Equal(t, 1, res.Summary.AnnulledCount)
	assert.True(t, decimal.NewFromInt(60000).Equal(res.Summary.ByMethod.Card))
	assert.True(t, decimal.NewFromInt(30000).Equal(res.Summary.ByMethod.Transfer))
}

func TestCloseTill_NotOpen(t *testing.T) {
	closed := openTill("t1", "maria", 0)
	closed.Status = ledger.TillPendingReview
	store := newMockStore(closed)
	svc := newTestService(store)

	_, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.Zero})
	require.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, store.history)

	_, err = svc.CloseTill(context.Background(), CloseRequest{TillID: "missing", CountedCash: decimal.Zero})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCloseTill_NegativeCount(t *testing.T) {
	svc := newTestService(newMockStore(openTill("t1", "maria", 0)))

	_, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCloseTill_StoreError(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 0))
	store.closeErr = errors.New("tx aborted")
	svc := newTestService(store)

	_, err := svc.CloseTill(context.Background(), CloseRequest{TillID: "t1", CountedCash: decimal.Zero})
	require.Error(t, err)
	assert.Equal(t, ledger.TillOpen, store.tills["t1"].Status)
}

func TestClassify(t *testing.T) {
	tol := decimal.NewFromInt(1000)
	tests := []struct {
		d    int64
		want ledger.TillStatus
	}{
		{0, ledger.TillClosed},
		{1000, ledger.TillClosed},
		{-1000, ledger.TillClosed},
		{1001, ledger.TillPendingReview},
		{-1001, ledger.TillPendingReview},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(decimal.NewFromInt(tt.d), tol), "discrepancy %d", tt.d)
	}
}

func TestRefreshSales(t *testing.T) {
	store := newMockStore(openTill("t1", "maria", 0))
	annulled := cashTx("x2", "t1", 1000)
	annulled.Status = ledger.TransactionAnnulled
	store.txs = []ledger.Transaction{cashTx("x1", "t1", 30000), annulled}
	svc := newTestService(store)

	total, err := svc.RefreshSales(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30000).Equal(total))
	assert.True(t, total.Equal(store.tills["t1"].TotalSales))
}

func TestRefreshSales_ClosedTill(t *testing.T) {
	closed := openTill("t1", "maria", 0)
	closed.Status = ledger.TillClosed
	svc := newTestService(newMockStore(closed))

	_, err := svc.RefreshSales(context.Background(), "t1")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestQueries(t *testing.T) {
	closed := openTill("t2", "maria", 0)
	closed.Status = ledger.TillClosed
	store := newMockStore(openTill("t1", "pedro", 0), closed, openTill("t3", "maria", 0))
	svc := newTestService(store)
	ctx := context.Background()

	active, err := svc.ActiveTills(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "t1", active[0].ID)
	assert.Equal(t, "t3", active[1].ID)

	owned, err := svc.TillsByOwner(ctx, "maria")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	got, err := svc.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, ledger.TillClosed, got.Status)
}
