package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a sale. A transaction is a service sale when any of its
// lines carries a staff attribution.
type Kind string

const (
	KindService Kind = "service"
	KindProduct Kind = "product"
)

// PaymentMethod is the instrument a transaction was settled with.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentSplit    PaymentMethod = "split"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentSplit:
		return true
	}
	return false
}

// TransactionStatus is Active until the one-way transition to Annulled.
type TransactionStatus string

const (
	TransactionActive   TransactionStatus = "active"
	TransactionAnnulled TransactionStatus = "annulled"
)

// Breakdown holds per-instrument amounts. For split payments it is exactly
// what was tendered, excess included.
type Breakdown struct {
	Cash     decimal.Decimal
	Card     decimal.Decimal
	Transfer decimal.Decimal
}

// Sum returns the total tendered across instruments.
func (b Breakdown) Sum() decimal.Decimal {
	return b.Cash.Add(b.Card).Add(b.Transfer)
}

// Add returns the component-wise sum of b and o.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Cash:     b.Cash.Add(o.Cash),
		Card:     b.Card.Add(o.Card),
		Transfer: b.Transfer.Add(o.Transfer),
	}
}

// LineItem is one priced line of a cart or transaction.
//
// UnitPrice is a snapshot of the catalog price taken when the line was added.
// Later catalog edits never reach lines that already exist, so a sale is
// always charged at the price the cashier saw.
//
// ItemKind and ItemID together identify the catalog item; ids are only unique
// within one kind.
type LineItem struct {
	ID              string
	ItemKind        string
	ItemID          string
	Name            string
	UnitPrice       decimal.Decimal
	Quantity        int
	AttributedStaff string
}

// Subtotal returns UnitPrice * Quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsService reports whether the line carries a staff attribution.
func (l LineItem) IsService() bool { return l.AttributedStaff != "" }

// Annulment records who annulled a transaction and when.
type Annulment struct {
	ByUserID string
	ByName   string
	At       time.Time
}

// Transaction is a completed sale recorded against a till.
type Transaction struct {
	ID               string
	TillID           string
	Timestamp        time.Time
	Kind             Kind
	LineItems        []LineItem
	Total            decimal.Decimal
	PaymentMethod    PaymentMethod
	PaymentBreakdown *Breakdown
	Status           TransactionStatus
	Annulment        *Annulment

	// CorrectsTransactionID links a correction sale to the annulled
	// transaction whose items it re-rings.
	CorrectsTransactionID string
}

// IsActive reports whether the transaction still counts towards till totals.
func (t *Transaction) IsActive() bool { return t.Status == TransactionActive }

// Tendered returns the per-instrument amounts attributed to the transaction.
// Split payments report their breakdown verbatim; single-instrument payments
// attribute the full total to their instrument. Annulled transactions
// attribute nothing.
func (t *Transaction) Tendered() Breakdown {
	if !t.IsActive() {
		return Breakdown{}
	}
	switch t.PaymentMethod {
	case PaymentCash:
		return Breakdown{Cash: t.Total}
	case PaymentCard:
		return Breakdown{Card: t.Total}
	case PaymentTransfer:
		return Breakdown{Transfer: t.Total}
	case PaymentSplit:
		if t.PaymentBreakdown != nil {
			return *t.PaymentBreakdown
		}
	}
	return Breakdown{}
}

// CashContribution is the amount of physical cash the transaction put in the
// drawer.
func (t *Transaction) CashContribution() decimal.Decimal {
	return t.Tendered().Cash
}

// KindOf derives the transaction kind from its lines.
func KindOf(lines []LineItem) Kind {
	for _, l := range lines {
		if l.IsService() {
			return KindService
		}
	}
	return KindProduct
}

// SumLines returns the sum of line subtotals.
func SumLines(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Clone returns a deep copy of t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.LineItems = append([]LineItem(nil), t.LineItems...)
	if t.PaymentBreakdown != nil {
		b := *t.PaymentBreakdown
		c.PaymentBreakdown = &b
	}
	if t.Annulment != nil {
		a := *t.Annulment
		c.Annulment = &a
	}
	return &c
}
