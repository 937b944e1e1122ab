// Package till opens cash register sessions, keeps their running totals and
// reconciles the drawer count at close.
package till

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

const instrumentation = "github.com/xenking/salon-pos/internal/domain/till"

// Config holds reconciliation settings.
type Config struct {
	// Tolerance is the largest absolute discrepancy a till may close with
	// without being flagged for review.
	Tolerance decimal.Decimal
	Currency  ledger.Currency
}

// OpenRequest holds the input for opening a till.
type OpenRequest struct {
	OwnerID      string
	OwnerName    string
	OpeningFloat decimal.Decimal
}

// CloseRequest holds the input for closing a till.
type CloseRequest struct {
	TillID      string
	CountedCash decimal.Decimal
	// Tolerance overrides Config.Tolerance when set.
	Tolerance *decimal.Decimal
}

// CloseResult is the reconciled till plus the sales summary it was closed
// with.
type CloseResult struct {
	Till    *ledger.Till
	Summary Summary
}

// Service implements the till lifecycle.
type Service struct {
	store ledger.Store
	cfg   Config
	now   func() time.Time
	newID func() string

	tracer trace.Tracer
	closes metric.Int64Counter
}

// NewService creates a till Service.
func NewService(store ledger.Store, cfg Config) *Service {
	if cfg.Currency.Code == "" {
		cfg.Currency = ledger.DefaultCurrency
	}
	closes, err := otel.Meter(instrumentation).Int64Counter("pos.till.closes",
		metric.WithDescription("Closed tills by resulting status"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
		tracer: otel.Tracer(instrumentation),
		closes: closes,
	}
}

// OpenTill creates an open till for the owner. An owner may hold at most one
// open till at a time.
func (s *Service) OpenTill(ctx context.Context, req OpenRequest) (*ledger.Till, error) {
	if req.OwnerID == "" {
		return nil, &ledger.ValidationError{Field: "ownerId", Reason: "required"}
	}
	if err := s.cfg.Currency.CheckAmount("openingFloat", req.OpeningFloat); err != nil {
		return nil, err
	}

	owned, err := s.store.ListTillsByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "list owner tills")
	}
	for _, t := range owned {
		if t.IsOpen() {
			return nil, &ledger.ConflictError{OwnerID: req.OwnerID, TillID: t.ID}
		}
	}

	t := &ledger.Till{
		ID:           s.newID(),
		OwnerID:      req.OwnerID,
		OwnerName:    req.OwnerName,
		OpenedAt:     s.now(),
		OpeningFloat: req.OpeningFloat,
		Status:       ledger.TillOpen,
		TotalSales:   decimal.Zero,
	}
	if err := s.store.CreateTill(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create till")
	}

	zctx.From(ctx).Info("Till opened",
		zap.String("till_id", t.ID),
		zap.String("owner_id", t.OwnerID),
		zap.String("opening_float", t.OpeningFloat.String()),
	)
	return t, nil
}

// Get returns a till by id, live or closed.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Till, error) {
	t, err := s.store.GetTill(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get till")
	}
	return t, nil
}

// ActiveTills lists open tills.
func (s *Service) ActiveTills(ctx context.Context) ([]ledger.Till, error) {
	tills, err := s.store.ListTillsByStatus(ctx, ledger.TillOpen)
	if err != nil {
		return nil, errors.Wrap(err, "list open tills")
	}
	return tills, nil
}

// TillsByOwner lists every till, in any status, opened by ownerID.
func (s *Service) TillsByOwner(ctx context.Context, ownerID string) ([]ledger.Till, error) {
	tills, err := s.store.ListTillsByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list owner tills")
	}
	return tills, nil
}

// History lists the closed-till archive.
func (s *Service) History(ctx context.Context) ([]ledger.Till, error) {
	tills, err := s.store.ListTillHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list till history")
	}
	return tills, nil
}

// Summary recomputes the sales figures of a till from its transactions.
func (s *Service) Summary(ctx context.Context, tillID string) (Summary, error) {
	if _, err := s.store.GetTill(ctx, tillID); err != nil {
		return Summary{}, errors.Wrap(err, "get till")
	}
	txs, err := s.store.ListTransactionsByTill(ctx, tillID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "list till transactions")
	}
	return Summarize(txs), nil
}

// RefreshSales recomputes the cached running total of an open till from its
// active transactions and stores it.
func (s *Service) RefreshSales(ctx context.Context, tillID string) (decimal.Decimal, error) {
	txs, err := s.store.ListTransactionsByTill(ctx, tillID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "list till transactions")
	}
	total := Summarize(txs).TotalSales
	if err := s.store.SetTillSales(ctx, tillID, total); err != nil {
		return decimal.Zero, errors.Wrap(err, "set till sales")
	}
	return total, nil
}

// CloseTill reconciles the counted drawer against the cash the till should
// hold, records the discrepancy and moves the till to Closed, or to
// PendingReview when the discrepancy exceeds the tolerance.
func (s *Service) CloseTill(ctx context.Context, req CloseRequest) (_ *CloseResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "till.CloseTill",
		trace.WithAttributes(attribute.String("pos.till_id", req.TillID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := s.cfg.Currency.CheckAmount("countedCash", req.CountedCash); err != nil {
		return nil, err
	}
	tolerance := s.cfg.Tolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}
	if tolerance.IsNegative() {
		return nil, &ledger.ValidationError{Field: "tolerance", Reason: "must not be negative"}
	}

	t, err := s.store.GetTill(ctx, req.TillID)
	if err != nil {
		return nil, errors.Wrap(err, "get till")
	}
	if !t.IsOpen() {
		return nil, &ledger.NotFoundError{Kind: "open till", ID: req.TillID}
	}

	txs, err := s.store.ListTransactionsByTill(ctx, t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list till transactions")
	}
	summary := Summarize(txs)

	expected := t.OpeningFloat.Add(summary.CashAttribution)
	counted := req.CountedCash
	discrepancy := counted.Sub(expected)
	closedAt := s.now()

	t.Status = Classify(discrepancy, tolerance)
	t.TotalSales = summary.TotalSales
	t.ClosedAt = &closedAt
	t.ExpectedCash = &expected
	t.CountedCash = &counted
	t.Discrepancy = &discrepancy

	if err := s.store.CloseTill(ctx, t); err != nil {
		return nil, errors.Wrap(err, "close till")
	}
	if s.closes != nil {
		s.closes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(t.Status))))
	}

	zctx.From(ctx).Info("Till closed",
		zap.String("till_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.String("expected", expected.String()),
		zap.String("counted", counted.String()),
		zap.String("discrepancy", discrepancy.String()),
	)
	return &CloseResult{Till: t, Summary: summary}, nil
}

// Classify returns PendingReview when |discrepancy| exceeds tolerance and
// Closed otherwise. A discrepancy exactly equal to the tolerance is accepted.
func Classify(discrepancy, tolerance decimal.Decimal) ledger.TillStatus {
	if discrepancy.Abs().GreaterThan(tolerance) {
		return ledger.TillPendingReview
	}
	return ledger.TillClosed
}
