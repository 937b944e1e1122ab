// Package handler exposes the sales, till and annulment services as a JSON
// HTTP API.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/salon-pos/internal/domain/annul"
	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/sale"
	"github.com/xenking/salon-pos/internal/domain/till"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the /api routes, delegating business logic to the domain
// services. Transaction listings read the ledger store directly.
type Handler struct {
	catalog      catalog.Repository
	transactions ledger.TransactionStore
	sales        *sale.Service
	tills        *till.Service
	annulments   *annul.Workflow
}

// New constructs a Handler with the required domain dependencies.
func New(
	items catalog.Repository,
	transactions ledger.TransactionStore,
	sales *sale.Service,
	tills *till.Service,
	annulments *annul.Workflow,
) *Handler {
	return &Handler{
		catalog:      items,
		transactions: transactions,
		sales:        sales,
		tills:        tills,
		annulments:   annulments,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/catalog", h.getCatalog)

	mux.HandleFunc("POST /api/tills", h.openTill)
	mux.HandleFunc("GET /api/tills", h.listTills)
	mux.HandleFunc("GET /api/tills/history", h.tillHistory)
	mux.HandleFunc("GET /api/tills/{id}", h.getTill)
	mux.HandleFunc("GET /api/tills/{id}/summary", h.tillSummary)
	mux.HandleFunc("POST /api/tills/{id}/close", h.closeTill)
	mux.HandleFunc("POST /api/tills/{id}/checkout", h.checkout)

	mux.HandleFunc("GET /api/transactions", h.listTransactions)
	mux.HandleFunc("GET /api/transactions/annulled", h.listAnnulled)
	mux.HandleFunc("GET /api/transactions/{id}", h.getTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/annul", h.annulTransaction)

	mux.HandleFunc("GET /api/audit/summary", h.auditSummary)
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps domain errors to status codes. Unclassified errors are
// logged and reported as a generic 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })

			var vErr *ledger.ValidationError
			if errors.As(err, &vErr) {
				e.Field("field", func(e *jx.Encoder) { e.Str(vErr.Field) })
			}
			var ipErr *ledger.InsufficientPaymentError
			if errors.As(err, &ipErr) {
				e.Field("missing", func(e *jx.Encoder) { encodeAmount(e, ipErr.Missing()) })
			}
		})
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, errMessage[*ledger.ValidationError](err)
	case errors.Is(err, ledger.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity, errMessage[*ledger.InsufficientPaymentError](err)
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict, errMessage[*ledger.ConflictError](err)
	case errors.Is(err, ledger.ErrAlreadyAnnulled):
		return http.StatusConflict, errMessage[*ledger.AlreadyAnnulledError](err)
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, errMessage[*ledger.AuthorizationError](err)
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, errMessage[*ledger.NotFoundError](err)
	}
	return http.StatusInternalServerError, err.Error()
}

// errMessage returns the message of the typed error in err's chain, without
// the wrapping context added on the way up.
func errMessage[T error](err error) string {
	var target T
	if errors.As(err, &target) {
		return target.Error()
	}
	return err.Error()
}
