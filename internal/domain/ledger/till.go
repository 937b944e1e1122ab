// Package ledger defines the till and sales transaction records shared by the
// checkout, reconciliation and annulment services, together with the
// persistence contract they are stored through.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TillStatus is the lifecycle state of a cash register session.
type TillStatus string

const (
	// TillOpen accepts sales.
	TillOpen TillStatus = "open"
	// TillClosed was closed with a discrepancy within tolerance.
	TillClosed TillStatus = "closed"
	// TillPendingReview was closed with a discrepancy beyond tolerance.
	TillPendingReview TillStatus = "pending_review"
)

// Valid reports whether s is a known status.
func (s TillStatus) Valid() bool {
	switch s {
	case TillOpen, TillClosed, TillPendingReview:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s TillStatus) Terminal() bool {
	return s == TillClosed || s == TillPendingReview
}

// Till is a cash register session owned by one cashier.
//
// TotalSales is a cached projection of the active transactions recorded
// against the till. It is refreshed after every checkout and annulment and
// recomputed authoritatively at close; readers that need an exact figure
// should derive it from the transactions instead.
type Till struct {
	ID           string
	OwnerID      string
	OwnerName    string
	OpenedAt     time.Time
	OpeningFloat decimal.Decimal
	Status       TillStatus
	TotalSales   decimal.Decimal

	// Set at close.
	ClosedAt     *time.Time
	ExpectedCash *decimal.Decimal
	CountedCash  *decimal.Decimal
	Discrepancy  *decimal.Decimal
}

// IsOpen reports whether the till still accepts sales.
func (t *Till) IsOpen() bool { return t.Status == TillOpen }

// Clone returns a deep copy of t.
func (t *Till) Clone() *Till {
	c := *t
	if t.ClosedAt != nil {
		v := *t.ClosedAt
		c.ClosedAt = &v
	}
	c.ExpectedCash = cloneDecimal(t.ExpectedCash)
	c.CountedCash = cloneDecimal(t.CountedCash)
	c.Discrepancy = cloneDecimal(t.Discrepancy)
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
