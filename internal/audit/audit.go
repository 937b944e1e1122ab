// Package audit checks a ledger for records that disagree with each other:
// annulments missing from the archive, stale till projections and closes
// whose stored figures no longer match their transactions.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/till"
)

// Check names a consistency rule.
type Check string

const (
	// CheckArchiveMissing: a live transaction is annulled but has no archive copy.
	CheckArchiveMissing Check = "archive_missing"
	// CheckLiveNotAnnulled: an archive copy exists for a transaction that is
	// still active, or missing, in the live set.
	CheckLiveNotAnnulled Check = "live_not_annulled"
	// CheckProjectionDrift: an open till's cached total differs from its
	// active transactions.
	CheckProjectionDrift Check = "projection_drift"
	// CheckCloseMismatch: a closed till's stored expected cash, discrepancy
	// or status differs from a recomputation as of its close time.
	CheckCloseMismatch Check = "close_mismatch"
)

// Finding is one inconsistency.
type Finding struct {
	Check    Check
	Subject  string
	Detail   string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// Report is the outcome of Run.
type Report struct {
	Findings []Finding
	// Scanned counts records examined per record set.
	Scanned Counts
}

// Counts holds scan sizes.
type Counts struct {
	Annulled    int
	Archived    int
	OpenTills   int
	ClosedTills int
}

// Source is the read side of a ledger store.
type Source interface {
	ListTillsByStatus(ctx context.Context, status ledger.TillStatus) ([]ledger.Till, error)
	ListTillHistory(ctx context.Context) ([]ledger.Till, error)
	ListTransactionsByTill(ctx context.Context, tillID string) ([]ledger.Transaction, error)
	ListTransactionsByStatus(ctx context.Context, status ledger.TransactionStatus) ([]ledger.Transaction, error)
	ListAnnulled(ctx context.Context) ([]ledger.Transaction, error)
}

// Options tune an Auditor.
type Options struct {
	// Tolerance reclassifies closed tills. Closes made with a per-request
	// override show up as status mismatches.
	Tolerance decimal.Decimal
	// FalsePositiveRate sizes the archive membership filter.
	FalsePositiveRate float64
	// Workers bounds concurrent per-till scans.
	Workers int
}

// Auditor runs the consistency checks.
type Auditor struct {
	src  Source
	opts Options
}

// New creates an Auditor.
func New(src Source, opts Options) *Auditor {
	if opts.FalsePositiveRate <= 0 || opts.FalsePositiveRate >= 1 {
		opts.FalsePositiveRate = 0.001
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Auditor{src: src, opts: opts}
}

// Run executes every check and returns the findings grouped by check in a
// deterministic order.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	var (
		annul    []Finding
		drift    []Finding
		closes   []Finding
		counts   Counts
		countsMu sync.Mutex
	)
	record := func(fn func(c *Counts)) {
		countsMu.Lock()
		fn(&counts)
		countsMu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if annul, err = a.checkAnnulments(ctx, record); err != nil {
			return errors.Wrap(err, "annulments")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if drift, err = a.checkProjections(ctx, record); err != nil {
			return errors.Wrap(err, "projections")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if closes, err = a.checkCloses(ctx, record); err != nil {
			return errors.Wrap(err, "closes")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(annul)+len(drift)+len(closes))
	findings = append(findings, annul...)
	findings = append(findings, drift...)
	findings = append(findings, closes...)
	return &Report{Findings: findings, Scanned: counts}, nil
}

// checkAnnulments verifies the annulment dual write. Archive ids go into a
// bloom filter; a negative test proves a live annulled transaction was never
// archived, a positive one is confirmed against the exact id set.
func (a *Auditor) checkAnnulments(ctx context.Context, record func(func(*Counts))) ([]Finding, error) {
	archive, err := a.src.ListAnnulled(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list annulled archive")
	}
	live, err := a.src.ListTransactionsByStatus(ctx, ledger.TransactionAnnulled)
	if err != nil {
		return nil, errors.Wrap(err, "list annulled transactions")
	}
	record(func(c *Counts) {
		c.Annulled = len(live)
		c.Archived = len(archive)
	})

	filter := bloom.NewWithEstimates(uint(max(len(archive), 1)), a.opts.FalsePositiveRate)
	archived := make(map[string]struct{}, len(archive))
	for i := range archive {
		filter.AddString(archive[i].ID)
		archived[archive[i].ID] = struct{}{}
	}

	var out []Finding
	liveIDs := make(map[string]struct{}, len(live))
	for i := range live {
		id := live[i].ID
		liveIDs[id] = struct{}{}
		if filter.TestString(id) {
			if _, ok := archived[id]; ok {
				continue
			}
		}
		out = append(out, Finding{
			Check:   CheckArchiveMissing,
			Subject: id,
			Detail:  fmt.Sprintf("till %s", live[i].TillID),
		})
	}
	for i := range archive {
		if _, ok := liveIDs[archive[i].ID]; ok {
			continue
		}
		out = append(out, Finding{
			Check:   CheckLiveNotAnnulled,
			Subject: archive[i].ID,
			Detail:  fmt.Sprintf("till %s", archive[i].TillID),
		})
	}
	return out, nil
}

func (a *Auditor) checkProjections(ctx context.Context, record func(func(*Counts))) ([]Finding, error) {
	open, err := a.src.ListTillsByStatus(ctx, ledger.TillOpen)
	if err != nil {
		return nil, errors.Wrap(err, "list open tills")
	}
	record(func(c *Counts) { c.OpenTills = len(open) })

	return a.perTill(ctx, open, func(t *ledger.Till, txs []ledger.Transaction) []Finding {
		total := till.Summarize(txs).TotalSales
		if total.Equal(t.TotalSales) {
			return nil
		}
		return []Finding{{
			Check:    CheckProjectionDrift,
			Subject:  t.ID,
			Detail:   "cached total sales",
			Expected: total,
			Actual:   t.TotalSales,
		}}
	})
}

func (a *Auditor) checkCloses(ctx context.Context, record func(func(*Counts))) ([]Finding, error) {
	history, err := a.src.ListTillHistory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list till history")
	}
	record(func(c *Counts) { c.ClosedTills = len(history) })

	return a.perTill(ctx, history, a.reconcileClose)
}

// reconcileClose recomputes a close from the transactions that were active
// when the till closed. Annulments made afterwards do not change a close.
func (a *Auditor) reconcileClose(t *ledger.Till, txs []ledger.Transaction) []Finding {
	if t.ClosedAt == nil || t.CountedCash == nil {
		return []Finding{{Check: CheckCloseMismatch, Subject: t.ID, Detail: "archived without close figures"}}
	}

	asOfClose := make([]ledger.Transaction, 0, len(txs))
	for i := range txs {
		tx := txs[i]
		if !tx.IsActive() && tx.Annulment != nil && tx.Annulment.At.After(*t.ClosedAt) {
			tx.Status = ledger.TransactionActive
			tx.Annulment = nil
		}
		asOfClose = append(asOfClose, tx)
	}

	expected := t.OpeningFloat.Add(till.ComputeCashAttribution(asOfClose))
	discrepancy := t.CountedCash.Sub(expected)

	var out []Finding
	if t.ExpectedCash == nil || !t.ExpectedCash.Equal(expected) {
		out = append(out, Finding{
			Check:    CheckCloseMismatch,
			Subject:  t.ID,
			Detail:   "expected cash",
			Expected: expected,
			Actual:   deref(t.ExpectedCash),
		})
	}
	if t.Discrepancy == nil || !t.Discrepancy.Equal(discrepancy) {
		out = append(out, Finding{
			Check:    CheckCloseMismatch,
			Subject:  t.ID,
			Detail:   "discrepancy",
			Expected: discrepancy,
			Actual:   deref(t.Discrepancy),
		})
	}
	if status := till.Classify(discrepancy, a.opts.Tolerance); status != t.Status {
		out = append(out, Finding{
			Check:    CheckCloseMismatch,
			Subject:  t.ID,
			Detail:   fmt.Sprintf("status %s, recomputed %s", t.Status, status),
			Expected: discrepancy.Abs(),
			Actual:   a.opts.Tolerance,
		})
	}
	return out
}

// perTill loads each till's transactions concurrently and applies check.
// Findings keep the order of tills.
func (a *Auditor) perTill(
	ctx context.Context,
	tills []ledger.Till,
	check func(t *ledger.Till, txs []ledger.Transaction) []Finding,
) ([]Finding, error) {
	results := make([][]Finding, len(tills))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i := range tills {
		t := &tills[i]
		g.Go(func() error {
			txs, err := a.src.ListTransactionsByTill(ctx, t.ID)
			if err != nil {
				return errors.Wrapf(err, "list transactions of till %s", t.ID)
			}
			results[i] = check(t, txs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Finding
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
