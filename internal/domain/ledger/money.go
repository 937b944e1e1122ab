package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency describes the single currency the ledger operates in. Scale is the
// number of fractional digits an amount may carry; 0 means whole units only.
type Currency struct {
	Code  string
	Scale int32
}

// DefaultCurrency is the Paraguayan guaraní, which has no minor unit.
var DefaultCurrency = Currency{Code: "PYG", Scale: 0}

// CheckAmount reports a ValidationError for field when v is negative or has
// more fractional digits than the currency allows.
func (c Currency) CheckAmount(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	if !v.Round(c.Scale).Equal(v) {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%s allows at most %d decimal places", c.Code, c.Scale),
		}
	}
	return nil
}
