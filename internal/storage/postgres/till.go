package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

const tillColumns = `id, owner_id, owner_name, opened_at, opening_float, status, total_sales,
	closed_at, expected_cash, counted_cash, discrepancy`

const (
	createTillSQL = `INSERT INTO tills (` + tillColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	getTillSQL = `SELECT ` + tillColumns + ` FROM tills WHERE id = $1`

	listTillsByStatusSQL = `SELECT ` + tillColumns + ` FROM tills WHERE status = $1 ORDER BY seq`

	listTillsByOwnerSQL = `SELECT ` + tillColumns + ` FROM tills WHERE owner_id = $1 ORDER BY seq`

	setTillSalesSQL = `UPDATE tills SET total_sales = $2 WHERE id = $1 AND status = 'open'`

	closeTillSQL = `UPDATE tills SET status = $2, total_sales = $3, closed_at = $4,
		expected_cash = $5, counted_cash = $6, discrepancy = $7
		WHERE id = $1 AND status = 'open'`

	archiveTillSQL = `INSERT INTO till_history (` + tillColumns + `)
		SELECT ` + tillColumns + ` FROM tills WHERE id = $1`

	listTillHistorySQL = `SELECT ` + tillColumns + ` FROM till_history ORDER BY seq`
)

const openTillConstraint = "tills_one_open_per_owner"

// CreateTill inserts a till. The partial unique index on open tills turns a
// second open till for the same owner into a *ledger.ConflictError.
func (s *Store) CreateTill(ctx context.Context, t *ledger.Till) error {
	_, err := s.pool.Exec(ctx, createTillSQL,
		t.ID, t.OwnerID, t.OwnerName, t.OpenedAt, t.OpeningFloat, string(t.Status), t.TotalSales,
		t.ClosedAt, nullable(t.ExpectedCash), nullable(t.CountedCash), nullable(t.Discrepancy),
	)
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == openTillConstraint {
			return &ledger.ConflictError{OwnerID: t.OwnerID}
		}
		return fmt.Errorf("creating till %q: %w", t.ID, ledger.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("creating till %q: %w", t.ID, err)
	}
	return nil
}

// GetTill returns a till by id regardless of status.
func (s *Store) GetTill(ctx context.Context, id string) (*ledger.Till, error) {
	rows, err := s.pool.Query(ctx, getTillSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting till %q: %w", id, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTill)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ledger.NotFoundError{Kind: "till", ID: id}
		}
		return nil, fmt.Errorf("getting till %q: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTillsByStatus(ctx context.Context, status ledger.TillStatus) ([]ledger.Till, error) {
	return s.listTills(ctx, listTillsByStatusSQL, string(status))
}

func (s *Store) ListTillsByOwner(ctx context.Context, ownerID string) ([]ledger.Till, error) {
	return s.listTills(ctx, listTillsByOwnerSQL, ownerID)
}

func (s *Store) ListTillHistory(ctx context.Context) ([]ledger.Till, error) {
	return s.listTills(ctx, listTillHistorySQL)
}

func (s *Store) listTills(ctx context.Context, query string, args ...any) ([]ledger.Till, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tills: %w", err)
	}
	return pgx.CollectRows(rows, scanTill)
}

// SetTillSales overwrites the running total of an open till.
func (s *Store) SetTillSales(ctx context.Context, id string, total decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, setTillSalesSQL, id, total)
	if err != nil {
		return fmt.Errorf("setting sales of till %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "open till", ID: id}
	}
	return nil
}

// CloseTill updates the live till and copies it into the history archive in
// one transaction.
func (s *Store) CloseTill(ctx context.Context, t *ledger.Till) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, closeTillSQL,
			t.ID, string(t.Status), t.TotalSales, t.ClosedAt,
			nullable(t.ExpectedCash), nullable(t.CountedCash), nullable(t.Discrepancy),
		)
		if err != nil {
			return fmt.Errorf("closing till %q: %w", t.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return &ledger.NotFoundError{Kind: "open till", ID: t.ID}
		}

		if _, err := tx.Exec(ctx, archiveTillSQL, t.ID); err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return fmt.Errorf("archiving till %q: %w", t.ID, ledger.ErrDuplicateKey)
			}
			return fmt.Errorf("archiving till %q: %w", t.ID, err)
		}
		return nil
	})
}

func scanTill(row pgx.CollectableRow) (ledger.Till, error) {
	var (
		t                             ledger.Till
		status                        string
		closedAt                      *time.Time
		expected, counted, difference decimal.NullDecimal
	)
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.OwnerName, &t.OpenedAt, &t.OpeningFloat, &status, &t.TotalSales,
		&closedAt, &expected, &counted, &difference,
	)
	t.Status = ledger.TillStatus(status)
	t.ClosedAt = closedAt
	t.ExpectedCash = fromNullable(expected)
	t.CountedCash = fromNullable(counted)
	t.Discrepancy = fromNullable(difference)
	return t, err
}
