package till

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// AuditSummary aggregates the closed-till archive.
type AuditSummary struct {
	ClosedExact      int
	ClosedWithinTol  int
	PendingReview    int
	TotalAbsVariance decimal.Decimal
}

// AuditSummary reports how the archived tills reconciled.
func (s *Service) AuditSummary(ctx context.Context) (AuditSummary, error) {
	history, err := s.store.ListTillHistory(ctx)
	if err != nil {
		return AuditSummary{}, errors.Wrap(err, "list till history")
	}
	return Audit(history), nil
}

// Audit computes an AuditSummary over closed tills.
func Audit(history []ledger.Till) AuditSummary {
	out := AuditSummary{TotalAbsVariance: decimal.Zero}
	for i := range history {
		t := &history[i]
		d := decimal.Zero
		if t.Discrepancy != nil {
			d = *t.Discrepancy
		}
		switch {
		case t.Status == ledger.TillPendingReview:
			out.PendingReview++
		case t.Status == ledger.TillClosed && d.IsZero():
			out.ClosedExact++
		case t.Status == ledger.TillClosed:
			out.ClosedWithinTol++
		default:
			continue
		}
		out.TotalAbsVariance = out.TotalAbsVariance.Add(d.Abs())
	}
	return out
}
