// Package annul implements the supervisor-authorized reversal of a recorded
// sale.
package annul

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/salon-pos/internal/domain/auth"
	"github.com/xenking/salon-pos/internal/domain/ledger"
)

const instrumentation = "github.com/xenking/salon-pos/internal/domain/annul"

// Authorizer resolves a principal holding role from a credential. It returns
// auth.ErrNoMatch when none matches.
type Authorizer interface {
	FindPrincipalByCredential(ctx context.Context, role auth.Role, credential string) (*auth.Principal, error)
}

// Store is the subset of the ledger store the workflow needs.
type Store interface {
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
	AnnulTransaction(ctx context.Context, tx *ledger.Transaction) error
}

// SalesProjector refreshes the cached running total of a till.
type SalesProjector interface {
	RefreshSales(ctx context.Context, tillID string) (decimal.Decimal, error)
}

// Authorization is a granted annulment request, ready to apply.
type Authorization struct {
	Transaction *ledger.Transaction
	Principal   *auth.Principal
}

// Result is an applied annulment.
type Result struct {
	Transaction *ledger.Transaction
	// Reload holds the annulled line items so the cashier can re-ring a
	// corrected sale. Using them is optional.
	Reload   []ledger.LineItem
	Warnings []string
}

// Workflow annuls transactions on behalf of an admin.
type Workflow struct {
	store      Store
	authorizer Authorizer
	projector  SalesProjector
	now        func() time.Time

	tracer    trace.Tracer
	annulment metric.Int64Counter
}

// NewWorkflow creates an annulment Workflow.
func NewWorkflow(store Store, authorizer Authorizer, projector SalesProjector) *Workflow {
	counter, err := otel.Meter(instrumentation).Int64Counter("pos.annulments",
		metric.WithDescription("Annulled transactions"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &Workflow{
		store:      store,
		authorizer: authorizer,
		projector:  projector,
		now:        time.Now,
		tracer:     otel.Tracer(instrumentation),
		annulment:  counter,
	}
}

// RequestAnnulment checks that the transaction is still active and that the
// credential belongs to an admin.
func (w *Workflow) RequestAnnulment(ctx context.Context, txID, credential string) (*Authorization, error) {
	tx, err := w.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, errors.Wrap(err, "get transaction")
	}
	if !tx.IsActive() {
		return nil, alreadyAnnulled(tx)
	}

	p, err := w.authorizer.FindPrincipalByCredential(ctx, auth.RoleAdmin, credential)
	switch {
	case errors.Is(err, auth.ErrNoMatch):
		return nil, &ledger.AuthorizationError{Role: string(auth.RoleAdmin)}
	case err != nil:
		return nil, errors.Wrap(err, "find principal")
	}
	return &Authorization{Transaction: tx, Principal: p}, nil
}

// ApplyAnnulment marks the transaction annulled by the authorized principal,
// archiving it and updating the live record in one atomic store write, then
// refreshes the till's running total. A failed refresh is reported as a
// warning.
func (w *Workflow) ApplyAnnulment(ctx context.Context, a *Authorization) (_ *Result, rerr error) {
	ctx, span := w.tracer.Start(ctx, "annul.ApplyAnnulment",
		trace.WithAttributes(
			attribute.String("pos.transaction_id", a.Transaction.ID),
			attribute.String("pos.till_id", a.Transaction.TillID),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	tx := a.Transaction.Clone()
	if !tx.IsActive() {
		return nil, alreadyAnnulled(tx)
	}
	tx.Status = ledger.TransactionAnnulled
	tx.Annulment = &ledger.Annulment{
		ByUserID: a.Principal.ID,
		ByName:   a.Principal.Name,
		At:       w.now(),
	}
	if err := w.store.AnnulTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "annul transaction")
	}
	if w.annulment != nil {
		w.annulment.Add(ctx, 1)
	}

	lg := zctx.From(ctx)
	lg.Info("Transaction annulled",
		zap.String("transaction_id", tx.ID),
		zap.String("till_id", tx.TillID),
		zap.String("annulled_by", a.Principal.ID),
	)

	res := &Result{
		Transaction: tx,
		Reload:      append([]ledger.LineItem(nil), tx.LineItems...),
	}
	if _, err := w.projector.RefreshSales(ctx, tx.TillID); err != nil {
		lg.Warn("Till running total not refreshed after annulment",
			zap.String("till_id", tx.TillID),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		res.Warnings = append(res.Warnings, "till running total not refreshed: "+err.Error())
	}
	return res, nil
}

// Annul runs RequestAnnulment followed by ApplyAnnulment.
func (w *Workflow) Annul(ctx context.Context, txID, credential string) (*Result, error) {
	a, err := w.RequestAnnulment(ctx, txID, credential)
	if err != nil {
		return nil, err
	}
	return w.ApplyAnnulment(ctx, a)
}

func alreadyAnnulled(tx *ledger.Transaction) error {
	e := &ledger.AlreadyAnnulledError{TransactionID: tx.ID}
	if tx.Annulment != nil {
		e.AnnulledBy = tx.Annulment.ByName
		e.AnnulledAt = tx.Annulment.At
	}
	return e
}
