package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/till"
)

func (h *Handler) openTill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	body, err := decodeOpenTill(data)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	t, err := h.tills.OpenTill(ctx, till.OpenRequest{
		OwnerID:      body.OwnerID,
		OwnerName:    body.OwnerName,
		OpeningFloat: body.OpeningFloat,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeTill(e, t) })
}

// listTills lists open tills, or every till of ?ownerId= optionally
// narrowed by ?status=.
func (h *Handler) listTills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	status := ledger.TillStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		writeError(ctx, w, &ledger.ValidationError{Field: "status", Reason: "unknown till status " + string(status)})
		return
	}

	var (
		tills []ledger.Till
		err   error
	)
	switch owner := q.Get("ownerId"); {
	case owner != "":
		tills, err = h.tills.TillsByOwner(ctx, owner)
	case status == "" || status == ledger.TillOpen:
		tills, err = h.tills.ActiveTills(ctx)
	default:
		err = &ledger.ValidationError{Field: "status", Reason: "closed tills are listed by ownerId or in the history"}
	}
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if status != "" {
		filtered := tills[:0]
		for _, t := range tills {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		tills = filtered
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTills(e, tills) })
}

func (h *Handler) getTill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.tills.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTill(e, t) })
}

func (h *Handler) tillSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.tills.Summary(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}

func (h *Handler) closeTill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	body, err := decodeCloseTill(data)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.tills.CloseTill(ctx, till.CloseRequest{
		TillID:      r.PathValue("id"),
		CountedCash: body.CountedCash,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCloseResult(e, res) })
}

func (h *Handler) tillHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tills, err := h.tills.History(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTills(e, tills) })
}

func (h *Handler) auditSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.tills.AuditSummary(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeAudit(e, a) })
}
