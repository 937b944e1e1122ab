package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/annul"
	"github.com/xenking/salon-pos/internal/domain/catalog"
	"github.com/xenking/salon-pos/internal/domain/ledger"
	"github.com/xenking/salon-pos/internal/domain/sale"
	"github.com/xenking/salon-pos/internal/domain/till"
)

// --- Encoding ---

func encodeAmount(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.Format(time.RFC3339Nano))
}

func encodeBreakdown(e *jx.Encoder, b ledger.Breakdown) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("cash", func(e *jx.Encoder) { encodeAmount(e, b.Cash) })
		e.Field("card", func(e *jx.Encoder) { encodeAmount(e, b.Card) })
		e.Field("transfer", func(e *jx.Encoder) { encodeAmount(e, b.Transfer) })
	})
}

func encodeTill(e *jx.Encoder, t *ledger.Till) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(t.ID) })
		e.Field("ownerId", func(e *jx.Encoder) { e.Str(t.OwnerID) })
		e.Field("ownerName", func(e *jx.Encoder) { e.Str(t.OwnerName) })
		e.Field("openedAt", func(e *jx.Encoder) { encodeTime(e, t.OpenedAt) })
		e.Field("openingFloat", func(e *jx.Encoder) { encodeAmount(e, t.OpeningFloat) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(t.Status)) })
		e.Field("totalSales", func(e *jx.Encoder) { encodeAmount(e, t.TotalSales) })
		if t.ClosedAt != nil {
			e.Field("closedAt", func(e *jx.Encoder) { encodeTime(e, *t.ClosedAt) })
		}
		for _, f := range []struct {
			name string
			v    *decimal.Decimal
		}{
			{"expectedCash", t.ExpectedCash},
			{"countedCash", t.CountedCash},
			{"discrepancy", t.Discrepancy},
		} {
			if f.v != nil {
				e.Field(f.name, func(e *jx.Encoder) { encodeAmount(e, *f.v) })
			}
		}
	})
}

func encodeTills(e *jx.Encoder, tills []ledger.Till) {
	e.Arr(func(e *jx.Encoder) {
		for i := range tills {
			encodeTill(e, &tills[i])
		}
	})
}

func encodeLines(e *jx.Encoder, lines []ledger.LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
				if l.ItemKind != "" {
					e.Field("kind", func(e *jx.Encoder) { e.Str(l.ItemKind) })
				}
				e.Field("itemId", func(e *jx.Encoder) { e.Str(l.ItemID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
				e.Field("unitPrice", func(e *jx.Encoder) { encodeAmount(e, l.UnitPrice) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
				if l.AttributedStaff != "" {
					e.Field("attributedStaff", func(e *jx.Encoder) { e.Str(l.AttributedStaff) })
				}
			})
		}
	})
}

func encodeTransaction(e *jx.Encoder, tx *ledger.Transaction) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(tx.ID) })
		e.Field("tillId", func(e *jx.Encoder) { e.Str(tx.TillID) })
		e.Field("timestamp", func(e *jx.Encoder) { encodeTime(e, tx.Timestamp) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(tx.Kind)) })
		e.Field("lineItems", func(e *jx.Encoder) { encodeLines(e, tx.LineItems) })
		e.Field("total", func(e *jx.Encoder) { encodeAmount(e, tx.Total) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(tx.PaymentMethod)) })
		if tx.PaymentBreakdown != nil {
			e.Field("paymentBreakdown", func(e *jx.Encoder) { encodeBreakdown(e, *tx.PaymentBreakdown) })
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(string(tx.Status)) })
		if a := tx.Annulment; a != nil {
			e.Field("annulledBy", func(e *jx.Encoder) { e.Str(a.ByUserID) })
			e.Field("annulledByName", func(e *jx.Encoder) { e.Str(a.ByName) })
			e.Field("annulledAt", func(e *jx.Encoder) { encodeTime(e, a.At) })
		}
		if tx.CorrectsTransactionID != "" {
			e.Field("correctsTransactionId", func(e *jx.Encoder) { e.Str(tx.CorrectsTransactionID) })
		}
	})
}

func encodeTransactions(e *jx.Encoder, txs []ledger.Transaction) {
	e.Arr(func(e *jx.Encoder) {
		for i := range txs {
			encodeTransaction(e, &txs[i])
		}
	})
}

func encodeWarnings(e *jx.Encoder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	e.Field("warnings", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, w := range warnings {
				e.Str(w)
			}
		})
	})
}

func encodeCheckoutResult(e *jx.Encoder, res *sale.CheckoutResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("transaction", func(e *jx.Encoder) { encodeTransaction(e, res.Transaction) })
		e.Field("change", func(e *jx.Encoder) { encodeAmount(e, res.Change) })
		encodeWarnings(e, res.Warnings)
	})
}

func encodeAnnulResult(e *jx.Encoder, res *annul.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("transaction", func(e *jx.Encoder) { encodeTransaction(e, res.Transaction) })
		e.Field("reload", func(e *jx.Encoder) { encodeLines(e, res.Reload) })
		encodeWarnings(e, res.Warnings)
	})
}

func encodeSummary(e *jx.Encoder, s till.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalSales", func(e *jx.Encoder) { encodeAmount(e, s.TotalSales) })
		e.Field("cashAttribution", func(e *jx.Encoder) { encodeAmount(e, s.CashAttribution) })
		e.Field("byMethod", func(e *jx.Encoder) { encodeBreakdown(e, s.ByMethod) })
		e.Field("serviceSales", func(e *jx.Encoder) { encodeAmount(e, s.ServiceSales) })
		e.Field("productSales", func(e *jx.Encoder) { encodeAmount(e, s.ProductSales) })
		e.Field("activeCount", func(e *jx.Encoder) { e.Int(s.ActiveCount) })
		e.Field("annulledCount", func(e *jx.Encoder) { e.Int(s.AnnulledCount) })
	})
}

func encodeCloseResult(e *jx.Encoder, res *till.CloseResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("till", func(e *jx.Encoder) { encodeTill(e, res.Till) })
		e.Field("summary", func(e *jx.Encoder) { encodeSummary(e, res.Summary) })
	})
}

func encodeAudit(e *jx.Encoder, a till.AuditSummary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("closedExact", func(e *jx.Encoder) { e.Int(a.ClosedExact) })
		e.Field("closedWithinTolerance", func(e *jx.Encoder) { e.Int(a.ClosedWithinTol) })
		e.Field("pendingReview", func(e *jx.Encoder) { e.Int(a.PendingReview) })
		e.Field("totalAbsVariance", func(e *jx.Encoder) { encodeAmount(e, a.TotalAbsVariance) })
	})
}

func encodeItems(e *jx.Encoder, items []catalog.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
				e.Field("kind", func(e *jx.Encoder) { e.Str(string(it.Kind)) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
				e.Field("price", func(e *jx.Encoder) { encodeAmount(e, it.Price) })
				if it.Category != "" {
					e.Field("category", func(e *jx.Encoder) { e.Str(it.Category) })
				}
				if it.Kind == catalog.KindService {
					e.Field("durationMinutes", func(e *jx.Encoder) { e.Int(it.DurationMinutes) })
					return
				}
				e.Field("stock", func(e *jx.Encoder) { e.Int(it.Stock) })
				e.Field("minStock", func(e *jx.Encoder) { e.Int(it.MinStock) })
			})
		}
	})
}

// --- Decoding ---

// decodeAmount accepts a JSON number or a numeric string.
func decodeAmount(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, &ledger.ValidationError{Field: field, Reason: "must be a number"}
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ledger.ValidationError{Field: field, Reason: "must be a number"}
	}
	return v, nil
}

type openTillBody struct {
	OwnerID      string
	OwnerName    string
	OpeningFloat decimal.Decimal
}

func decodeOpenTill(data []byte) (openTillBody, error) {
	var b openTillBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "ownerId":
			b.OwnerID, err = d.Str()
		case "ownerName":
			b.OwnerName, err = d.Str()
		case "openingFloat":
			b.OpeningFloat, err = decodeAmount(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	return b, wrapBodyErr(err)
}

type closeTillBody struct {
	CountedCash decimal.Decimal
	hasCounted  bool
}

func decodeCloseTill(data []byte) (closeTillBody, error) {
	var b closeTillBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "countedCash":
			v, err := decodeAmount(d, key)
			b.CountedCash, b.hasCounted = v, true
			return err
		default:
			return d.Skip()
		}
	})
	if err == nil && !b.hasCounted {
		err = &ledger.ValidationError{Field: "countedCash", Reason: "required"}
	}
	return b, wrapBodyErr(err)
}

type checkoutLine struct {
	Kind     catalog.Kind
	ItemID   string
	StaffID  string
	Quantity int
}

type checkoutBody struct {
	Lines                 []checkoutLine
	PaymentMethod         ledger.PaymentMethod
	AmountReceived        decimal.Decimal
	Split                 ledger.Breakdown
	CorrectsTransactionID string
}

func decodeCheckout(data []byte) (checkoutBody, error) {
	var b checkoutBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeCheckoutLine(d)
				b.Lines = append(b.Lines, l)
				return err
			})
		case "paymentMethod":
			s, err := d.Str()
			b.PaymentMethod = ledger.PaymentMethod(s)
			return err
		case "amountReceived":
			v, err := decodeAmount(d, key)
			b.AmountReceived = v
			return err
		case "split":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "cash":
					b.Split.Cash, err = decodeAmount(d, "split.cash")
				case "card":
					b.Split.Card, err = decodeAmount(d, "split.card")
				case "transfer":
					b.Split.Transfer, err = decodeAmount(d, "split.transfer")
				default:
					err = d.Skip()
				}
				return err
			})
		case "correctsTransactionId":
			s, err := d.Str()
			b.CorrectsTransactionID = s
			return err
		default:
			return d.Skip()
		}
	})
	return b, wrapBodyErr(err)
}

func decodeCheckoutLine(d *jx.Decoder) (checkoutLine, error) {
	l := checkoutLine{Quantity: 1}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "kind":
			var s string
			s, err = d.Str()
			l.Kind = catalog.Kind(s)
		case "itemId":
			l.ItemID, err = d.Str()
		case "staffId":
			l.StaffID, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

type annulBody struct {
	Credential string
}

func decodeAnnul(data []byte) (annulBody, error) {
	var b annulBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "credential" {
			return d.Skip()
		}
		var err error
		b.Credential, err = d.Str()
		return err
	})
	return b, wrapBodyErr(err)
}

// wrapBodyErr turns syntax errors into validation errors while keeping
// domain validation errors raised during decoding intact.
func wrapBodyErr(err error) error {
	if err == nil {
		return nil
	}
	var vErr *ledger.ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	return &ledger.ValidationError{Field: "body", Reason: err.Error()}
}
