package till

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

// Summary aggregates the transactions of one till.
type Summary struct {
	// TotalSales sums the totals of active transactions.
	TotalSales decimal.Decimal
	// CashAttribution is the cash those transactions put in the drawer.
	CashAttribution decimal.Decimal
	// ByMethod holds the amounts tendered per instrument. Split payments
	// contribute their breakdown as tendered, so the sum may exceed
	// TotalSales when a split was overpaid.
	ByMethod ledger.Breakdown
	// ServiceSales and ProductSales split TotalSales by transaction kind.
	ServiceSales decimal.Decimal
	ProductSales decimal.Decimal

	ActiveCount   int
	AnnulledCount int
}

// ComputeCashAttribution returns the cash contributed by active transactions:
// the total of cash payments plus the cash component of split payments.
func ComputeCashAttribution(txs []ledger.Transaction) decimal.Decimal {
	cash := decimal.Zero
	for i := range txs {
		cash = cash.Add(txs[i].CashContribution())
	}
	return cash
}

// Summarize computes a Summary over txs. Annulled transactions are only
// counted.
func Summarize(txs []ledger.Transaction) Summary {
	s := Summary{
		TotalSales:      decimal.Zero,
		CashAttribution: decimal.Zero,
		ServiceSales:    decimal.Zero,
		ProductSales:    decimal.Zero,
	}
	for i := range txs {
		tx := &txs[i]
		if !tx.IsActive() {
			s.AnnulledCount++
			continue
		}
		s.ActiveCount++
		s.TotalSales = s.TotalSales.Add(tx.Total)
		s.ByMethod = s.ByMethod.Add(tx.Tendered())
		if tx.Kind == ledger.KindService {
			s.ServiceSales = s.ServiceSales.Add(tx.Total)
		} else {
			s.ProductSales = s.ProductSales.Add(tx.Total)
		}
	}
	s.CashAttribution = s.ByMethod.Cash
	return s
}
