package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/sale"
)

// maxLineQuantity bounds the quantity of a single requested line.
const maxLineQuantity = 1000

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := readBody(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	body, err := decodeCheckout(data)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	cart, err := h.buildCart(ctx, body.Lines)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	res, err := h.sales.Checkout(ctx, sale.CheckoutRequest{
		TillID: r.PathValue("id"),
		Cart:   cart,
		Payment: sale.Payment{
			Method:         body.PaymentMethod,
			AmountReceived: body.AmountReceived,
			Split:          body.Split,
		},
		CorrectsTransactionID: body.CorrectsTransactionID,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCheckoutResult(e, res) })
}

// buildCart resolves requested lines against the catalog at current prices.
// Service lines are always quantity 1; repeat the line to sell a service
// twice.
func (h *Handler) buildCart(ctx context.Context, lines []checkoutLine) (*sale.Cart, error) {
	cart := sale.NewCart()
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if !l.Kind.Valid() {
			return nil, &ledger.ValidationError{Field: field + ".kind", Reason: "unknown kind " + string(l.Kind)}
		}
		if l.Quantity < 1 || l.Quantity > maxLineQuantity {
			return nil, &ledger.ValidationError{Field: field + ".quantity", Reason: fmt.Sprintf("must be between 1 and %d", maxLineQuantity)}
		}

		item, err := h.catalog.GetByID(ctx, l.Kind, l.ItemID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, &ledger.ValidationError{Field: field + ".itemId", Reason: fmt.Sprintf("unknown %s %q", l.Kind, l.ItemID)}
		}
		if err != nil {
			return nil, errors.Wrap(err, "get catalog item")
		}

		if item.Kind == catalog.KindService {
			if l.Quantity != 1 {
				return nil, &ledger.ValidationError{Field: field + ".quantity", Reason: "a service line sells exactly one service"}
			}
			if _, err := cart.AddServiceLine(*item, l.StaffID); err != nil {
				return nil, err
			}
			continue
		}
		line, err := cart.AddCatalogLine(*item)
		if err != nil {
			return nil, err
		}
		if l.Quantity > 1 {
			if err := cart.SetLineQuantity(line.ID, line.Quantity+l.Quantity-1); err != nil {
				return nil, err
			}
		}
	}
	return cart, nil
}
