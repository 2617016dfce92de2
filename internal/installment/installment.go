// Package installment amortizes credit-card purchases split into equal
// installments.
//
// The per-installment value is TotalAmount / NumberOfInstallments with no
// remainder correction on the last installment.
package installment

import (
	"time"

	"finledger/internal/calendar"
	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// Installment is one row of a purchase's payment schedule.
type Installment struct {
	Number  int // 1-based
	DueDate core.Date
	Amount  decimal.Decimal
	Paid    bool
}

// Value returns the amount of a single installment. A purchase with no
// installments contributes zero.
func Value(p core.InstallmentPurchase) decimal.Decimal {
	if p.NumberOfInstallments <= 0 {
		return decimal.Zero
	}
	return p.TotalAmount.Div(decimal.NewFromInt(int64(p.NumberOfInstallments)))
}

// Remaining returns how many installments are still unpaid.
func Remaining(p core.InstallmentPurchase) int {
	r := p.NumberOfInstallments - p.InstallmentsPaid
	if r < 0 {
		return 0
	}
	return r
}

// OutstandingDebt returns Value × Remaining.
func OutstandingDebt(p core.InstallmentPurchase) decimal.Decimal {
	return Value(p).Mul(decimal.NewFromInt(int64(Remaining(p))))
}

// CardDebt sums the outstanding debt of every purchase charged to card.
func CardDebt(card core.CreditCard, purchases []core.InstallmentPurchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range purchases {
		if p.CreditCardID == card.ID {
			total = total.Add(OutstandingDebt(p))
		}
	}
	return total
}

// AvailableLimit returns the card limit minus the outstanding debt of its
// purchases. It goes negative when the card is over its limit.
func AvailableLimit(card core.CreditCard, purchases []core.InstallmentPurchase) decimal.Decimal {
	return card.Limit.Sub(CardDebt(card, purchases))
}

// Utilization returns the share of the card limit in use. Cards without a
// limit report zero.
func Utilization(card core.CreditCard, purchases []core.InstallmentPurchase) decimal.Decimal {
	if !card.Limit.IsPositive() {
		return decimal.Zero
	}
	return CardDebt(card, purchases).Div(card.Limit)
}

// MarkPaid returns p with one more installment paid. It fails with
// core.ErrAlreadyFullyPaid when every installment is already paid.
func MarkPaid(p core.InstallmentPurchase) (core.InstallmentPurchase, error) {
	if p.NumberOfInstallments <= 0 {
		return p, core.Invalid("purchase", p.ID, "number of installments must be positive")
	}
	if p.InstallmentsPaid >= p.NumberOfInstallments {
		return p, &core.Error{Kind: core.ErrAlreadyFullyPaid, Entity: "purchase", ID: p.ID}
	}
	p.InstallmentsPaid++
	return p, nil
}

// dueDateFor returns the due date of the installment with zero-based index
// cycle: card.DueDay of the purchase month shifted by cycle months, clamped
// to the month's last day.
func dueDateFor(p core.InstallmentPurchase, card core.CreditCard, cycle int) core.Date {
	return calendar.DayInMonth(p.PurchaseDate.Year(), time.Month(p.PurchaseDate.Month()+cycle), card.DueDay)
}

// NextDueDate returns the due date of the next unpaid installment, or false
// when the purchase is fully paid.
func NextDueDate(p core.InstallmentPurchase, card core.CreditCard) (core.Date, bool) {
	if Remaining(p) == 0 {
		return core.Date{}, false
	}
	return dueDateFor(p, card, p.InstallmentsPaid), true
}

// Schedule lists every installment of p with its due date and paid flag.
func Schedule(p core.InstallmentPurchase, card core.CreditCard) []Installment {
	if p.NumberOfInstallments <= 0 {
		return nil
	}
	value := Value(p)
	out := make([]Installment, p.NumberOfInstallments)
	for i := range out {
		out[i] = Installment{
			Number:  i + 1,
			DueDate: dueDateFor(p, card, i),
			Amount:  value,
			Paid:    i < p.InstallmentsPaid,
		}
	}
	return out
}
