// Package networth aggregates balances, receivables and card debt into a
// single net-worth figure.
package networth

import (
	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/installment"
	"finledger/internal/ledger"
	"finledger/internal/loan"

	"github.com/shopspring/decimal"
)

// Breakdown is net worth split by source.
type Breakdown struct {
	Accounts    decimal.Decimal `json:"accounts"`
	MoneyBoxes  decimal.Decimal `json:"moneyBoxes"`
	Receivables decimal.Decimal `json:"receivables"` // loan outstanding, each clamped at zero
	CardDebt    decimal.Decimal `json:"cardDebt"`
	Total       decimal.Decimal `json:"total"`
}

// Compute derives the breakdown for s. Overpaid loans count as zero here
// even though loan.Outstanding reports them as negative.
func Compute(s core.Snapshot) Breakdown {
	b := Breakdown{
		Accounts:    decimal.Zero,
		MoneyBoxes:  decimal.Zero,
		Receivables: decimal.Zero,
		CardDebt:    decimal.Zero,
	}
	for _, bal := range ledger.Balances(s.Accounts, s.Transactions) {
		b.Accounts = b.Accounts.Add(bal)
	}
	for _, box := range s.MoneyBoxes {
		b.MoneyBoxes = b.MoneyBoxes.Add(ledger.MoneyBoxBalance(box.ID, s.MoneyBoxTransactions))
	}
	for _, l := range s.Loans {
		if out := loan.Outstanding(l, s.LoanRepayments); out.IsPositive() {
			b.Receivables = b.Receivables.Add(out)
		}
	}
	for _, p := range s.Purchases {
		b.CardDebt = b.CardDebt.Add(installment.OutstandingDebt(p))
	}
	b.Total = b.Accounts.Add(b.MoneyBoxes).Add(b.Receivables).Sub(b.CardDebt)
	return b
}

// Calculator memoizes Compute by snapshot version. Snapshots without a
// version are always recomputed.
type Calculator struct {
	cache cache.Cache[Breakdown]
}

func NewCalculator(c cache.Cache[Breakdown]) *Calculator {
	return &Calculator{cache: c}
}

func (c *Calculator) Compute(s core.Snapshot) Breakdown {
	if c.cache == nil || s.Version == "" {
		return Compute(s)
	}
	if b, ok := c.cache.Get(s.Version); ok {
		return b
	}
	b := Compute(s)
	c.cache.Set(s.Version, b)
	return b
}
