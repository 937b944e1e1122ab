// Package sale turns carts into persisted transactions.
package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

const instrumentation = "github.com/xenking/salon-pos/internal/domain/sale"

// Ledger is the subset of the ledger store checkout needs.
type Ledger interface {
	GetTill(ctx context.Context, id string) (*ledger.Till, error)
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
	CreateTransaction(ctx context.Context, tx *ledger.Transaction) error
}

// SalesProjector refreshes the cached running total of a till.
type SalesProjector interface {
	RefreshSales(ctx context.Context, tillID string) (decimal.Decimal, error)
}

// Payment carries what the customer tendered. AmountReceived applies to cash
// payments, Split to split payments; other fields are ignored.
type Payment struct {
	Method         ledger.PaymentMethod
	AmountReceived decimal.Decimal
	Split          ledger.Breakdown
}

// CheckoutRequest holds the input for finalizing a cart.
type CheckoutRequest struct {
	TillID  string
	Cart    *Cart
	Payment Payment
	// CorrectsTransactionID optionally names the annulled transaction this
	// sale re-rings.
	CorrectsTransactionID string
}

// CheckoutResult holds the persisted transaction and the change owed for a
// cash payment. Change is reported only, never persisted.
type CheckoutResult struct {
	Transaction *ledger.Transaction
	Change      decimal.Decimal
	// Warnings lists non-fatal problems, such as a failed running-total
	// refresh, that did not stop the sale from being recorded.
	Warnings []string
}

// Service encapsulates checkout business logic.
type Service struct {
	ledger    Ledger
	projector SalesProjector
	currency  ledger.Currency
	now       func() time.Time
	newID     func() string

	tracer    trace.Tracer
	checkouts metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(l Ledger, projector SalesProjector, currency ledger.Currency) *Service {
	meter := otel.Meter(instrumentation)
	checkouts, err := meter.Int64Counter("pos.checkouts",
		metric.WithDescription("Completed checkouts by payment method"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Service{
		ledger:    l,
		projector: projector,
		currency:  currency,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		tracer:    otel.Tracer(instrumentation),
		checkouts: checkouts,
	}
}

// Checkout validates payment sufficiency, persists an active transaction for
// the cart against an open till, and refreshes the till's running total.
// Overpayment never fails; the refresh is best-effort and reported as a
// warning when it fails, since the transaction is already committed.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "sale.Checkout",
		trace.WithAttributes(
			attribute.String("pos.till_id", req.TillID),
			attribute.String("pos.payment_method", string(req.Payment.Method)),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if req.Cart == nil || req.Cart.Len() == 0 {
		return nil, &ledger.ValidationError{Field: "lines", Reason: "cart is empty"}
	}
	lines := req.Cart.Lines()
	total := ComputeTotal(lines)

	change, breakdown, err := s.settle(req.Payment, total)
	if err != nil {
		return nil, err
	}

	till, err := s.ledger.GetTill(ctx, req.TillID)
	if err != nil {
		return nil, errors.Wrap(err, "get till")
	}
	if !till.IsOpen() {
		return nil, &ledger.NotFoundError{Kind: "open till", ID: req.TillID}
	}

	if req.CorrectsTransactionID != "" {
		orig, err := s.ledger.GetTransaction(ctx, req.CorrectsTransactionID)
		if err != nil {
			return nil, errors.Wrap(err, "get corrected transaction")
		}
		if orig.IsActive() {
			return nil, &ledger.ValidationError{
				Field:  "correctsTransactionId",
				Reason: "transaction " + orig.ID + " has not been annulled",
			}
		}
	}

	tx := &ledger.Transaction{
		ID:                    s.newID(),
		TillID:                till.ID,
		Timestamp:             s.now(),
		Kind:                  ledger.KindOf(lines),
		LineItems:             lines,
		Total:                 total,
		PaymentMethod:         req.Payment.Method,
		PaymentBreakdown:      breakdown,
		Status:                ledger.TransactionActive,
		CorrectsTransactionID: req.CorrectsTransactionID,
	}
	if err := s.ledger.CreateTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}
	if s.checkouts != nil {
		s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(tx.PaymentMethod))))
	}

	result := &CheckoutResult{Transaction: tx, Change: change}
	if _, err := s.projector.RefreshSales(ctx, till.ID); err != nil {
		zctx.From(ctx).Warn("Till running total not refreshed after checkout",
			zap.String("till_id", till.ID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, "till running total not refreshed: "+err.Error())
	}
	return result, nil
}

// settle checks that payment covers total and returns the change owed and
// the breakdown to persist.
func (s *Service) settle(p Payment, total decimal.Decimal) (decimal.Decimal, *ledger.Breakdown, error) {
	switch p.Method {
	case ledger.PaymentCash:
		if err := s.currency.CheckAmount("amountReceived", p.AmountReceived); err != nil {
			return decimal.Zero, nil, err
		}
		if p.AmountReceived.LessThan(total) {
			return decimal.Zero, nil, &ledger.InsufficientPaymentError{Method: p.Method, Total: total, Paid: p.AmountReceived}
		}
		return p.AmountReceived.Sub(total), nil, nil

	case ledger.PaymentCard, ledger.PaymentTransfer:
		return decimal.Zero, nil, nil

	case ledger.PaymentSplit:
		for _, c := range []struct {
			field string
			v     decimal.Decimal
		}{
			{"split.cash", p.Split.Cash},
			{"split.card", p.Split.Card},
			{"split.transfer", p.Split.Transfer},
		} {
			if err := s.currency.CheckAmount(c.field, c.v); err != nil {
				return decimal.Zero, nil, err
			}
		}
		if paid := p.Split.Sum(); paid.LessThan(total) {
			return decimal.Zero, nil, &ledger.InsufficientPaymentError{Method: p.Method, Total: total, Paid: paid}
		}
		b := p.Split
		return decimal.Zero, &b, nil
	}
	return decimal.Zero, nil, &ledger.ValidationError{Field: "paymentMethod", Reason: "unknown method " + string(p.Method)}
}
