package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services, err := h.catalog.Services(ctx)
	if err != nil {
		writeError(ctx, w, errors.Wrap(err, "list services"))
		return
	}
	products, err := h.catalog.Products(ctx)
	if err != nil {
		writeError(ctx, w, errors.Wrap(err, "list products"))
		return
	}
	misc, err := h.catalog.MiscItems(ctx)
	if err != nil {
		writeError(ctx, w, errors.Wrap(err, "list misc items"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("services", func(e *jx.Encoder) { encodeItems(e, services) })
			e.Field("products", func(e *jx.Encoder) { encodeItems(e, products) })
			e.Field("misc", func(e *jx.Encoder) { encodeItems(e, misc) })
		})
	})
}
