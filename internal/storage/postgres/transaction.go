package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

const txColumns = `id, till_id, ts, kind, line_items, total, payment_method,
	split_cash, split_card, split_transfer, status,
	annulled_by_id, annulled_by_name, annulled_at, corrects_transaction_id`

const (
	createTransactionSQL = `INSERT INTO transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getTransactionSQL = `SELECT ` + txColumns + ` FROM transactions WHERE id = $1`

	listTransactionsByTillSQL = `SELECT ` + txColumns + ` FROM transactions WHERE till_id = $1 ORDER BY seq`

	listTransactionsByStatusSQL = `SELECT ` + txColumns + ` FROM transactions WHERE status = $1 ORDER BY seq`

	listTransactionsByRangeSQL = `SELECT ` + txColumns + ` FROM transactions
		WHERE ts >= $1 AND ts <= $2 ORDER BY seq`

	annulTransactionSQL = `UPDATE transactions
		SET status = 'annulled', annulled_by_id = $2, annulled_by_name = $3, annulled_at = $4
		WHERE id = $1 AND status = 'active'`

	archiveTransactionSQL = `INSERT INTO annulled_transactions (` + txColumns + `)
		SELECT ` + txColumns + ` FROM transactions WHERE id = $1`

	listAnnulledSQL = `SELECT ` + txColumns + ` FROM annulled_transactions ORDER BY seq`
)

// lineItemRow is the JSONB representation of a line item.
type lineItemRow struct {
	ID              string          `json:"id"`
	ItemKind        string          `json:"item_kind,omitempty"`
	ItemID          string          `json:"item_id"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	AttributedStaff string          `json:"attributed_staff,omitempty"`
}

func marshalLines(lines []ledger.LineItem) ([]byte, error) {
	rows := make([]lineItemRow, len(lines))
	for i, l := range lines {
		rows[i] = lineItemRow(l)
	}
	return json.Marshal(rows)
}

func unmarshalLines(data []byte) ([]ledger.LineItem, error) {
	var rows []lineItemRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	lines := make([]ledger.LineItem, len(rows))
	for i, r := range rows {
		lines[i] = ledger.LineItem(r)
	}
	return lines, nil
}

// CreateTransaction persists a transaction. Line items are serialized to
// JSON for the JSONB column.
func (s *Store) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	linesJSON, err := marshalLines(t.LineItems)
	if err != nil {
		return fmt.Errorf("marshaling line items: %w", err)
	}

	var split [3]decimal.NullDecimal
	if b := t.PaymentBreakdown; b != nil {
		split = [3]decimal.NullDecimal{nullable(&b.Cash), nullable(&b.Card), nullable(&b.Transfer)}
	}
	var byID, byName *string
	var at *time.Time
	if a := t.Annulment; a != nil {
		byID, byName, at = &a.ByUserID, &a.ByName, &a.At
	}

	_, err = s.pool.Exec(ctx, createTransactionSQL,
		t.ID, t.TillID, t.Timestamp, string(t.Kind), linesJSON, t.Total, string(t.PaymentMethod),
		split[0], split[1], split[2], string(t.Status),
		byID, byName, at, t.CorrectsTransactionID,
	)
	if _, ok := uniqueConstraint(err); ok {
		return fmt.Errorf("creating transaction %q: %w", t.ID, ledger.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("creating transaction %q: %w", t.ID, err)
	}
	return nil
}

// GetTransaction returns a transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	return getTransaction(ctx, s.pool, id)
}

func getTransaction(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, id string) (*ledger.Transaction, error) {
	rows, err := q.Query(ctx, getTransactionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanTransaction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
		}
		return nil, fmt.Errorf("getting transaction %q: %w", id, err)
	}
	return &t, nil
}

func (s *Store) ListTransactionsByTill(ctx context.Context, tillID string) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, listTransactionsByTillSQL, tillID)
}

func (s *Store) ListTransactionsByStatus(ctx context.Context, status ledger.TransactionStatus) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, listTransactionsByStatusSQL, string(status))
}

func (s *Store) ListTransactionsByRange(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, listTransactionsByRangeSQL, from, to)
}

func (s *Store) ListAnnulled(ctx context.Context) ([]ledger.Transaction, error) {
	return s.listTransactions(ctx, listAnnulledSQL)
}

func (s *Store) listTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return pgx.CollectRows(rows, scanTransaction)
}

// AnnulTransaction flips the live record to annulled and copies it into the
// annulled archive in one transaction.
func (s *Store) AnnulTransaction(ctx context.Context, t *ledger.Transaction) error {
	if t.Annulment == nil {
		return &ledger.ValidationError{Field: "annulment", Reason: "annulled-by and annulled-at are required"}
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, annulTransactionSQL, t.ID, t.Annulment.ByUserID, t.Annulment.ByName, t.Annulment.At)
		if err != nil {
			return fmt.Errorf("annulling transaction %q: %w", t.ID, err)
		}
		if tag.RowsAffected() == 0 {
			live, err := getTransaction(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			e := &ledger.AlreadyAnnulledError{TransactionID: t.ID}
			if live.Annulment != nil {
				e.AnnulledBy = live.Annulment.ByName
				e.AnnulledAt = live.Annulment.At
			}
			return e
		}

		if _, err := tx.Exec(ctx, archiveTransactionSQL, t.ID); err != nil {
			if _, ok := uniqueConstraint(err); ok {
				return fmt.Errorf("archiving transaction %q: %w", t.ID, ledger.ErrDuplicateKey)
			}
			return fmt.Errorf("archiving transaction %q: %w", t.ID, err)
		}
		return nil
	})
}

func scanTransaction(row pgx.CollectableRow) (ledger.Transaction, error) {
	var (
		t                    ledger.Transaction
		kind, method, status string
		linesJSON            []byte
		cash, card, transfer decimal.NullDecimal
		byID, byName         *string
		at                   *time.Time
	)
	err := row.Scan(
		&t.ID, &t.TillID, &t.Timestamp, &kind, &linesJSON, &t.Total, &method,
		&cash, &card, &transfer, &status,
		&byID, &byName, &at, &t.CorrectsTransactionID,
	)
	if err != nil {
		return t, err
	}

	t.Kind = ledger.Kind(kind)
	t.PaymentMethod = ledger.PaymentMethod(method)
	t.Status = ledger.TransactionStatus(status)
	if t.LineItems, err = unmarshalLines(linesJSON); err != nil {
		return t, fmt.Errorf("unmarshaling line items of %q: %w", t.ID, err)
	}
	if cash.Valid || card.Valid || transfer.Valid {
		t.PaymentBreakdown = &ledger.Breakdown{Cash: cash.Decimal, Card: card.Decimal, Transfer: transfer.Decimal}
	}
	if at != nil {
		t.Annulment = &ledger.Annulment{At: *at}
		if byID != nil {
			t.Annulment.ByUserID = *byID
		}
		if byName != nil {
			t.Annulment.ByName = *byName
		}
	}
	return t, nil
}
