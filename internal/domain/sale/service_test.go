package sale

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

type mockLedger struct {
	tills     map[string]*ledger.Till
	txs       map[string]*ledger.Transaction
	created   []*ledger.Transaction
	createErr error
}

func newMockLedger(tills ...*ledger.Till) *mockLedger {
	m := &mockLedger{tills: map[string]*ledger.Till{}, txs: map[string]*ledger.Transaction{}}
	for _, t := range tills {
		m.tills[t.ID] = t
	}
	return m
}

func (m *mockLedger) GetTill(_ context.Context, id string) (*ledger.Till, error) {
	t, ok := m.tills[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "till", ID: id}
	}
	return t, nil
}

func (m *mockLedger) GetTransaction(_ context.Context, id string) (*ledger.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, nil
}

func (m *mockLedger) CreateTransaction(_ context.Context, tx *ledger.Transaction) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, tx)
	m.txs[tx.ID] = tx
	return nil
}

type mockProjector struct {
	calls []string
	err   error
}

func (m *mockProjector) RefreshSales(_ context.Context, tillID string) (decimal.Decimal, error) {
	m.calls = append(m.calls, tillID)
	return decimal.Zero, m.err
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func openTill(id string) *ledger.Till {
	return &ledger.Till{
		ID:           id,
		OwnerID:      "maria",
		OpeningFloat: decimal.NewFromInt(50000),
		Status:       ledger.TillOpen,
	}
}

func newTestService(l Ledger, p SalesProjector) *Service {
	s := NewService(l, p, ledger.DefaultCurrency)
	s.now = func() time.Time { return testNow }
	s.newID = func() string { return "tx-1" }
	return s
}

func cartWith(t *testing.T, prices ...int64) *Cart {
	t.Helper()
	c := newTestCart()
	for i, p := range prices {
		_, err := c.AddCatalogLine(productItem("P"+string(rune('1'+i)), p))
		require.NoError(t, err)
	}
	return c
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{TillID: "t1", Cart: newTestCart()})
	require.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCheckout_Cash(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	p := &mockProjector{}
	svc := newTestService(l, p)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1",
		Cart:   cartWith(t, 30000),
		Payment: Payment{
			Method:         ledger.PaymentCash,
			AmountReceived: decimal.NewFromInt(50000),
		},
	})
	require.NoError(t, err)

	tx := res.Transaction
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, "t1", tx.TillID)
	assert.Equal(t, testNow, tx.Timestamp)
	assert.Equal(t, ledger.TransactionActive, tx.Status)
	assert.Equal(t, ledger.KindProduct, tx.Kind)
	assert.Nil(t, tx.PaymentBreakdown)
	assert.True(t, decimal.NewFromInt(30000).Equal(tx.Total))
	assert.True(t, decimal.NewFromInt(20000).Equal(res.Change))
	assert.Empty(t, res.Warnings)

	require.Len(t, l.created, 1)
	assert.Equal(t, []string{"t1"}, p.calls)
}

func TestCheckout_CashExact(t *testing.T) {
	svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID:  "t1",
		Cart:    cartWith(t, 30000),
		Payment: Payment{Method: ledger.PaymentCash, AmountReceived: decimal.NewFromInt(30000)},
	})
	require.NoError(t, err)
	assert.True(t, res.Change.IsZero())
}

func TestCheckout_CashInsufficient(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	svc := newTestService(l, &mockProjector{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID:  "t1",
		Cart:    cartWith(t, 30000),
		Payment: Payment{Method: ledger.PaymentCash, AmountReceived: decimal.NewFromInt(20000)},
	})

	var ipErr *ledger.InsufficientPaymentError
	require.ErrorAs(t, err, &ipErr)
	assert.True(t, decimal.NewFromInt(10000).Equal(ipErr.Missing()))
	assert.Empty(t, l.created)
}

func TestCheckout_CardAndTransferAreExact(t *testing.T) {
	for _, m := range []ledger.PaymentMethod{ledger.PaymentCard, ledger.PaymentTransfer} {
		t.Run(string(m), func(t *testing.T) {
			svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})

			res, err := svc.Checkout(context.Background(), CheckoutRequest{
				TillID:  "t1",
				Cart:    cartWith(t, 45000),
				Payment: Payment{Method: m, AmountReceived: decimal.NewFromInt(1)},
			})
			require.NoError(t, err)
			assert.True(t, res.Change.IsZero())
			assert.True(t, res.Transaction.CashContribution().IsZero())
		})
	}
}

func TestCheckout_SplitStoredVerbatim(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	svc := newTestService(l, &mockProjector{})
	split := ledger.Breakdown{
		Cash:     decimal.NewFromInt(40000),
		Card:     decimal.NewFromInt(40000),
		Transfer: decimal.NewFromInt(30000),
	}

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID:  "t1",
		Cart:    cartWith(t, 60000, 40000),
		Payment: Payment{Method: ledger.PaymentSplit, Split: split},
	})
	require.NoError(t, err)

	tx := res.Transaction
	require.NotNil(t, tx.PaymentBreakdown)
	assert.True(t, split.Cash.Equal(tx.PaymentBreakdown.Cash))
	assert.True(t, split.Card.Equal(tx.PaymentBreakdown.Card))
	assert.True(t, split.Transfer.Equal(tx.PaymentBreakdown.Transfer))
	assert.True(t, decimal.NewFromInt(100000).Equal(tx.Total))
	assert.True(t, decimal.NewFromInt(40000).Equal(tx.CashContribution()))
	assert.True(t, res.Change.IsZero())
}

func TestCheckout_SplitInsufficient(t *testing.T) {
	svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1",
		Cart:   cartWith(t, 100000),
		Payment: Payment{Method: ledger.PaymentSplit, Split: ledger.Breakdown{
			Cash: decimal.NewFromInt(40000),
			Card: decimal.NewFromInt(40000),
		}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientPayment)
}

func TestCheckout_RejectsBadAmounts(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
	}{
		{name: "negative cash", payment: Payment{Method: ledger.PaymentCash, AmountReceived: decimal.NewFromInt(-1)}},
		{name: "fractional cash", payment: Payment{Method: ledger.PaymentCash, AmountReceived: decimal.RequireFromString("50000.5")}},
		{name: "negative split", payment: Payment{Method: ledger.PaymentSplit, Split: ledger.Breakdown{
			Cash: decimal.NewFromInt(200000), Card: decimal.NewFromInt(-1),
		}}},
		{name: "unknown method", payment: Payment{Method: "cheque"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})

			_, err := svc.Checkout(context.Background(), CheckoutRequest{TillID: "t1", Cart: cartWith(t, 1000), Payment: tt.payment})
			require.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestCheckout_TillNotOpen(t *testing.T) {
	closed := openTill("t1")
	closed.Status = ledger.TillClosed
	svc := newTestService(newMockLedger(closed), &mockProjector{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID:  "t1",
		Cart:    cartWith(t, 1000),
		Payment: Payment{Method: ledger.PaymentCard},
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCheckout_UnknownTill(t *testing.T) {
	svc := newTestService(newMockLedger(), &mockProjector{})

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID:  "nope",
		Cart:    cartWith(t, 1000),
		Payment: Payment{Method: ledger.PaymentCard},
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCheckout_ServiceKind(t *testing.T) {
	svc := newTestService(newMockLedger(openTill("t1")), &mockProjector{})
	c := newTestCart()
	_, err := c.AddCatalogLine(productItem("P1", 10000))
	require.NoError(t, err)
	_, err = c.AddServiceLine(serviceItem("S1", 50000), "pedro")
	require.NoError(t, err)

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: c, Payment: Payment{Method: ledger.PaymentCard},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindService, res.Transaction.Kind)
	assert.Len(t, res.Transaction.LineItems, 2)
}

func TestCheckout_ProjectionFailureIsWarning(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	svc := newTestService(l, &mockProjector{err: errors.New("store unavailable")})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: cartWith(t, 1000), Payment: Payment{Method: ledger.PaymentCard},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "store unavailable")
	assert.Len(t, l.created, 1)
}

func TestCheckout_CreateError(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	l.createErr = errors.New("disk full")
	p := &mockProjector{}
	svc := newTestService(l, p)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: cartWith(t, 1000), Payment: Payment{Method: ledger.PaymentCard},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create transaction")
	assert.Empty(t, p.calls)
}

func TestCheckout_Correction(t *testing.T) {
	l := newMockLedger(openTill("t1"))
	l.txs["old"] = &ledger.Transaction{ID: "old", TillID: "t1", Status: ledger.TransactionAnnulled}
	l.txs["live"] = &ledger.Transaction{ID: "live", TillID: "t1", Status: ledger.TransactionActive}
	svc := newTestService(l, &mockProjector{})

	res, err := svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: cartWith(t, 1000), Payment: Payment{Method: ledger.PaymentCard},
		CorrectsTransactionID: "old",
	})
	require.NoError(t, err)
	assert.Equal(t, "old", res.Transaction.CorrectsTransactionID)

	_, err = svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: cartWith(t, 1000), Payment: Payment{Method: ledger.PaymentCard},
		CorrectsTransactionID: "live",
	})
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = svc.Checkout(context.Background(), CheckoutRequest{
		TillID: "t1", Cart: cartWith(t, 1000), Payment: Payment{Method: ledger.PaymentCard},
		CorrectsTransactionID: "missing",
	})
	require.ErrorIs(t, err, ledger.ErrNotFound)
}
