package ledger

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", &ValidationError{Field: "staffId", Reason: "required"}, ErrValidation},
		{"conflict", &ConflictError{OwnerID: "u1", TillID: "t1"}, ErrConflict},
		{"insufficient", &InsufficientPaymentError{Method: PaymentCash, Total: d("10"), Paid: d("5")}, ErrInsufficientPayment},
		{"authorization", &AuthorizationError{Role: "admin"}, ErrUnauthorized},
		{"already annulled", &AlreadyAnnulledError{TransactionID: "tx1"}, ErrAlreadyAnnulled},
		{"not found", &NotFoundError{Kind: "till", ID: "t1"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Wrap(tt.err, "outer")
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotEmpty(t, wrapped.Error())
		})
	}
}

func TestInsufficientPaymentError_Missing(t *testing.T) {
	err := &InsufficientPaymentError{Method: PaymentSplit, Total: d("100000"), Paid: d("90000")}
	assert.True(t, d("10000").Equal(err.Missing()))
	assert.Contains(t, err.Error(), "missing 10000")
}

func TestAlreadyAnnulledError_Message(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	err := &AlreadyAnnulledError{TransactionID: "tx1", AnnulledBy: "Admin", AnnulledAt: at}
	assert.Equal(t, "transaction tx1 already annulled by Admin at 2025-03-01T10:00:00Z", err.Error())
}

func TestCurrency_CheckAmount(t *testing.T) {
	pyg := DefaultCurrency
	require.NoError(t, pyg.CheckAmount("openingFloat", d("50000")))
	require.NoError(t, pyg.CheckAmount("openingFloat", decimal.Zero))

	var verr *ValidationError
	require.ErrorAs(t, pyg.CheckAmount("openingFloat", d("-1")), &verr)
	assert.Equal(t, "openingFloat", verr.Field)
	require.ErrorAs(t, pyg.CheckAmount("countedCash", d("10.5")), &verr)
	assert.Equal(t, "countedCash", verr.Field)

	usd := Currency{Code: "USD", Scale: 2}
	require.NoError(t, usd.CheckAmount("amount", d("10.25")))
	assert.ErrorIs(t, usd.CheckAmount("amount", d("10.255")), ErrValidation)
}

func TestTransaction_Tendered(t *testing.T) {
	split := &Breakdown{Cash: d("40000"), Card: d("40000"), Transfer: d("30000")}
	tests := []struct {
		name     string
		tx       Transaction
		wantCash decimal.Decimal
		want     Breakdown
	}{
		{
			name:     "cash attributes full total",
			tx:       Transaction{Total: d("30000"), PaymentMethod: PaymentCash, Status: TransactionActive},
			wantCash: d("30000"),
			want:     Breakdown{Cash: d("30000")},
		},
		{
			name:     "card attributes nothing to cash",
			tx:       Transaction{Total: d("30000"), PaymentMethod: PaymentCard, Status: TransactionActive},
			wantCash: decimal.Zero,
			want:     Breakdown{Card: d("30000")},
		},
		{
			name:     "transfer attributes nothing to cash",
			tx:       Transaction{Total: d("30000"), PaymentMethod: PaymentTransfer, Status: TransactionActive},
			wantCash: decimal.Zero,
			want:     Breakdown{Transfer: d("30000")},
		},
		{
			name:     "split attributes its cash component",
			tx:       Transaction{Total: d("100000"), PaymentMethod: PaymentSplit, PaymentBreakdown: split, Status: TransactionActive},
			wantCash: d("40000"),
			want:     *split,
		},
		{
			name:     "annulled cash sale attributes nothing",
			tx:       Transaction{Total: d("30000"), PaymentMethod: PaymentCash, Status: TransactionAnnulled},
			wantCash: decimal.Zero,
		},
		{
			name:     "annulled split sale attributes nothing",
			tx:       Transaction{Total: d("100000"), PaymentMethod: PaymentSplit, PaymentBreakdown: split, Status: TransactionAnnulled},
			wantCash: decimal.Zero,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.wantCash.Equal(tt.tx.CashContribution()), "cash: got %s", tt.tx.CashContribution())
			got := tt.tx.Tendered()
			assert.True(t, tt.want.Cash.Equal(got.Cash))
			assert.True(t, tt.want.Card.Equal(got.Card))
			assert.True(t, tt.want.Transfer.Equal(got.Transfer))
		})
	}
}

func TestKindOfAndSumLines(t *testing.T) {
	lines := []LineItem{
		{ID: "P1", ItemID: "P1", UnitPrice: d("110000"), Quantity: 2},
		{ID: "M1", ItemID: "M1", UnitPrice: d("5000"), Quantity: 3},
	}
	assert.Equal(t, KindProduct, KindOf(lines))
	assert.True(t, d("235000").Equal(SumLines(lines)))

	lines = append(lines, LineItem{ID: "s-1", ItemID: "S1", UnitPrice: d("80000"), Quantity: 1, AttributedStaff: "ana"})
	assert.Equal(t, KindService, KindOf(lines))
	assert.True(t, d("315000").Equal(SumLines(lines)))
	assert.True(t, SumLines(nil).IsZero())
}

func TestClonesAreIndependent(t *testing.T) {
	expected := d("80000")
	closedAt := time.Now()
	till := &Till{ID: "t1", ExpectedCash: &expected, ClosedAt: &closedAt}
	tc := till.Clone()
	*tc.ExpectedCash = d("1")
	assert.True(t, d("80000").Equal(*till.ExpectedCash))

	tx := &Transaction{
		ID:               "tx1",
		LineItems:        []LineItem{{ID: "P1", Quantity: 1}},
		PaymentBreakdown: &Breakdown{Cash: d("1")},
		Annulment:        &Annulment{ByName: "Admin"},
	}
	cc := tx.Clone()
	cc.LineItems[0].Quantity = 9
	cc.PaymentBreakdown.Cash = d("2")
	cc.Annulment.ByName = "Other"
	assert.Equal(t, 1, tx.LineItems[0].Quantity)
	assert.True(t, d("1").Equal(tx.PaymentBreakdown.Cash))
	assert.Equal(t, "Admin", tx.Annulment.ByName)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, TillOpen.Valid())
	assert.False(t, TillStatus("abierta").Valid())
	assert.False(t, TillOpen.Terminal())
	assert.True(t, TillClosed.Terminal())
	assert.True(t, TillPendingReview.Terminal())
	assert.True(t, PaymentSplit.Valid())
	assert.False(t, PaymentMethod("cheque").Valid())
}
