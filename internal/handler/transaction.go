package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// listTransactions filters by ?tillId=, ?status= and an inclusive
// ?from=&to= RFC 3339 range. At least one filter is required.
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	tillID := q.Get("tillId")
	status := ledger.TransactionStatus(q.Get("status"))
	if status != "" && status != ledger.TransactionActive && status != ledger.TransactionAnnulled {
		writeError(ctx, w, &ledger.ValidationError{Field: "status", Reason: "unknown transaction status " + string(status)})
		return
	}
	from, to, hasRange, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var txs []ledger.Transaction
	switch {
	case tillID != "":
		txs, err = h.transactions.ListTransactionsByTill(ctx, tillID)
	case hasRange:
		txs, err = h.transactions.ListTransactionsByRange(ctx, from, to)
	case status != "":
		txs, err = h.transactions.ListTransactionsByStatus(ctx, status)
	default:
		err = &ledger.ValidationError{Field: "query", Reason: "one of tillId, status or from/to is required"}
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := txs[:0]
	for _, tx := range txs {
		if status != "" && tx.Status != status {
			continue
		}
		if hasRange && (tx.Timestamp.Before(from) || tx.Timestamp.After(to)) {
			continue
		}
		out = append(out, tx)
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTransactions(e, out) })
}

func parseRange(fromStr, toStr string) (from, to time.Time, ok bool, err error) {
	if fromStr == "" && toStr == "" {
		return from, to, false, nil
	}
	if fromStr == "" || toStr == "" {
		return from, to, false, &ledger.ValidationError{Field: "from", Reason: "from and to must be given together"}
	}
	if from, err = time.Parse(time.RFC3339, fromStr); err != nil {
		return from, to, false, &ledger.ValidationError{Field: "from", Reason: "must be an RFC 3339 timestamp"}
	}
	if to, err = time.Parse(time.RFC3339, toStr); err != nil {
		return from, to, false, &ledger.ValidationError{Field: "to", Reason: "must be an RFC 3339 timestamp"}
	}
	if to.Before(from) {
		return from, to, false, &ledger.ValidationError{Field: "to", Reason: "must not precede from"}
	}
	return from, to, true, nil
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tx, err := h.transactions.GetTransaction(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTransaction(e, tx) })
}

func (h *Handler) listAnnulled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txs, err := h.transactions.ListAnnulled(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTransactions(e, txs) })
}

func (h *Handler) annulTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	body, err := decodeAnnul(data)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.annulments.Annul(ctx, r.PathValue("id"), body.Credential)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAnnulResult(e, res) })
}
