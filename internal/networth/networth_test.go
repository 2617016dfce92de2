package networth

import (
	"testing"
	"time"

	"finledger/internal/cache"
	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompute_SingleAccount(t *testing.T) {
	s := core.Snapshot{
		Accounts: []core.Account{{ID: "a1", Name: "Checking", InitialBalance: dec("100")}},
		Transactions: []core.Transaction{
			{ID: "t1", Type: core.Expense, Amount: dec("30"), Date: core.NewDate(2024, 1, 5), AccountID: "a1"},
		},
	}
	b := Compute(s)
	assert.True(t, b.Total.Equal(dec("70")), "total %s", b.Total)
	assert.True(t, b.Accounts.Equal(dec("70")))
}

func TestCompute_AllSources(t *testing.T) {
	s := core.Snapshot{
		Accounts: []core.Account{
			{ID: "a1", Name: "Checking", InitialBalance: dec("1000")},
			{ID: "a2", Name: "Savings", InitialBalance: dec("500")},
		},
		Transactions: []core.Transaction{
			{ID: "t1", Type: core.Transfer, Amount: dec("200"), AccountID: "a1", ToAccountID: "a2"},
			{ID: "t2", Type: core.Expense, Amount: dec("50"), AccountID: "a2"},
			{ID: "t3", Type: core.Income, Amount: dec("10"), AccountID: "deleted"},
		},
		MoneyBoxes: []core.MoneyBox{{ID: "m1", Name: "Trip"}},
		MoneyBoxTransactions: []core.MoneyBoxTransaction{
			{ID: "d1", MoneyBoxID: "m1", Type: core.Deposit, Amount: dec("300")},
			{ID: "w1", MoneyBoxID: "m1", Type: core.Withdrawal, Amount: dec("100")},
		},
		Loans: []core.Loan{
			{ID: "l1", TotalAmountToReimburse: dec("400"), RepaymentIDs: []string{"r1"}},
			{ID: "l2", TotalAmountToReimburse: dec("100"), RepaymentIDs: []string{"r2"}},
		},
		LoanRepayments: []core.LoanRepayment{
			{ID: "r1", LoanID: "l1", AmountPaid: dec("150")},
			{ID: "r2", LoanID: "l2", AmountPaid: dec("180")}, // overpaid
		},
		Purchases: []core.InstallmentPurchase{
			{ID: "p1", CreditCardID: "c1", TotalAmount: dec("1200"), NumberOfInstallments: 12, InstallmentsPaid: 3},
		},
	}

	b := Compute(s)
	assert.True(t, b.Accounts.Equal(dec("1450")), "accounts %s", b.Accounts)
	assert.True(t, b.MoneyBoxes.Equal(dec("200")), "boxes %s", b.MoneyBoxes)
	assert.True(t, b.Receivables.Equal(dec("250")), "receivables %s", b.Receivables)
	assert.True(t, b.CardDebt.Equal(dec("900")), "debt %s", b.CardDebt)
	assert.True(t, b.Total.Equal(dec("1000")), "total %s", b.Total)
}

func TestCompute_Empty(t *testing.T) {
	assert.True(t, Compute(core.Snapshot{}).Total.IsZero())
}

func TestCalculator_MemoizesByVersion(t *testing.T) {
	lru := cache.NewLRUCache[Breakdown](4, time.Hour)
	calc := NewCalculator(lru)

	s := core.Snapshot{
		Version:  "7",
		Accounts: []core.Account{{ID: "a1", Name: "Checking", InitialBalance: dec("100")}},
	}
	assert.True(t, calc.Compute(s).Total.Equal(dec("100")))

	// Same version, different content: the cached figure is returned.
	s.Accounts[0].InitialBalance = dec("999")
	assert.True(t, calc.Compute(s).Total.Equal(dec("100")))

	s.Version = "8"
	assert.True(t, calc.Compute(s).Total.Equal(dec("999")))
	assert.Equal(t, 2, lru.Size())

	s.Version = ""
	s.Accounts[0].InitialBalance = dec("5")
	assert.True(t, calc.Compute(s).Total.Equal(dec("5")))
	assert.Equal(t, 2, lru.Size())
}
