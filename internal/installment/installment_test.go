package installment

import (
	"testing"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func purchase(total string, n, paid int) core.InstallmentPurchase {
	return core.InstallmentPurchase{
		ID:                   "p1",
		CreditCardID:         "visa",
		Description:          "Laptop",
		PurchaseDate:         core.NewDate(2024, 1, 31),
		TotalAmount:          dec(total),
		NumberOfInstallments: n,
		InstallmentsPaid:     paid,
	}
}

var card = core.CreditCard{ID: "visa", Name: "Visa", Limit: dec("5000"), ClosingDay: 25, DueDay: 31}

func TestOutstandingDebt(t *testing.T) {
	tests := []struct {
		name      string
		p         core.InstallmentPurchase
		value     string
		remaining int
		debt      string
	}{
		{"nothing paid", purchase("1200", 12, 0), "100", 12, "1200"},
		{"partially paid", purchase("1200", 12, 5), "100", 7, "700"},
		{"fully paid", purchase("1200", 12, 12), "100", 0, "0"},
		{"single installment", purchase("99.90", 1, 0), "99.9", 1, "99.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Value(tt.p).Equal(dec(tt.value)), "value %s", Value(tt.p))
			assert.Equal(t, tt.remaining, Remaining(tt.p))
			assert.True(t, OutstandingDebt(tt.p).Equal(dec(tt.debt)), "debt %s", OutstandingDebt(tt.p))
		})
	}
}

func TestMarkPaid_DrivesDebtToZero(t *testing.T) {
	for _, n := range []int{1, 3, 7, 12} {
		p := purchase("100", n, 0)
		var err error
		for i := 0; i < n; i++ {
			p, err = MarkPaid(p)
			require.NoError(t, err)
		}
		assert.True(t, OutstandingDebt(p).IsZero(), "n=%d", n)
		assert.Equal(t, n, p.InstallmentsPaid)

		again, err := MarkPaid(p)
		assert.ErrorIs(t, err, core.ErrAlreadyFullyPaid)
		assert.Equal(t, n, again.InstallmentsPaid)
	}
}

func TestMarkPaid_DoesNotMutateInput(t *testing.T) {
	p := purchase("100", 2, 0)
	_, err := MarkPaid(p)
	require.NoError(t, err)
	assert.Equal(t, 0, p.InstallmentsPaid)
}

func TestMarkPaid_InvalidPurchase(t *testing.T) {
	_, err := MarkPaid(purchase("100", 0, 0))
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestAvailableLimit(t *testing.T) {
	purchases := []core.InstallmentPurchase{
		purchase("1200", 12, 2), // 1000 outstanding
		purchase("600", 3, 0),   // 600 outstanding
		{ID: "other", CreditCardID: "master", TotalAmount: dec("900"), NumberOfInstallments: 1},
	}
	assert.True(t, CardDebt(card, purchases).Equal(dec("1600")))
	assert.True(t, AvailableLimit(card, purchases).Equal(dec("3400")))
	assert.True(t, Utilization(card, purchases).Equal(dec("0.32")))
	assert.True(t, AvailableLimit(card, nil).Equal(dec("5000")))
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		paid int
		want string
	}{
		{0, "2024-01-31"},
		{1, "2024-02-29"},
		{2, "2024-03-31"},
		{3, "2024-04-30"},
	}
	for _, tt := range tests {
		got, ok := NextDueDate(purchase("400", 4, tt.paid), card)
		require.True(t, ok)
		assert.Equal(t, tt.want, got.String(), "paid=%d", tt.paid)
	}

	_, ok := NextDueDate(purchase("400", 4, 4), card)
	assert.False(t, ok)
}

func TestSchedule(t *testing.T) {
	s := Schedule(purchase("100", 3, 1), card)
	require.Len(t, s, 3)
	assert.True(t, s[0].Paid)
	assert.False(t, s[1].Paid)
	assert.Equal(t, 2, s[1].Number)
	assert.Equal(t, "2024-02-29", s[1].DueDate.String())

	// 100/3 is kept unrounded; the three rows do not add back to exactly 100.
	sum := decimal.Zero
	for _, row := range s {
		sum = sum.Add(row.Amount)
	}
	assert.True(t, sum.LessThan(dec("100")))
	assert.True(t, dec("100").Sub(sum).LessThan(dec("0.000001")))
}
