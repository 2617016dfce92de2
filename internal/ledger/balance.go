// Package ledger derives account and money-box balances from their
// transaction histories.
//
// Balances are never stored. Every function here is a commutative fold over
// the collection it receives, so the result does not depend on input order.
package ledger

import (
	"finledger/internal/core"

	"github.com/shopspring/decimal"
)

// AccountBalance returns the current balance of account: its opening balance
// plus incomes, minus expenses, minus transfers out, plus transfers in.
func AccountBalance(account core.Account, transactions []core.Transaction) decimal.Decimal {
	balance := account.InitialBalance
	for _, tx := range transactions {
		balance = balance.Add(effect(account.ID, tx))
	}
	return balance
}

// effect is the signed contribution of tx to the balance of accountID.
func effect(accountID string, tx core.Transaction) decimal.Decimal {
	switch tx.Type {
	case core.Income:
		if tx.AccountID == accountID {
			return tx.Amount
		}
	case core.Expense:
		if tx.AccountID == accountID {
			return tx.Amount.Neg()
		}
	case core.Transfer:
		out := tx.AccountID == accountID
		in := tx.ToAccountID == accountID
		switch {
		case out && !in:
			return tx.Amount.Neg()
		case in && !out:
			return tx.Amount
		}
	}
	return decimal.Zero
}

// Balances computes the balance of every account in a single pass over the
// transactions. Transactions referencing unknown accounts are ignored.
func Balances(accounts []core.Account, transactions []core.Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a.InitialBalance
	}
	credit := func(id string, amount decimal.Decimal) {
		if b, ok := out[id]; ok {
			out[id] = b.Add(amount)
		}
	}
	for _, tx := range transactions {
		switch tx.Type {
		case core.Income:
			credit(tx.AccountID, tx.Amount)
		case core.Expense:
			credit(tx.AccountID, tx.Amount.Neg())
		case core.Transfer:
			if tx.AccountID == tx.ToAccountID {
				continue
			}
			credit(tx.AccountID, tx.Amount.Neg())
			credit(tx.ToAccountID, tx.Amount)
		}
	}
	return out
}

// AccountInUse reports whether any transaction references accountID as its
// source or destination. Accounts in use must not be deleted.
func AccountInUse(accountID string, transactions []core.Transaction) bool {
	for _, tx := range transactions {
		if tx.AccountID == accountID || tx.ToAccountID == accountID {
			return true
		}
	}
	return false
}

// MoneyBoxBalance returns deposits minus withdrawals for the given box.
// A box without transactions has a zero balance.
func MoneyBoxBalance(moneyBoxID string, transactions []core.MoneyBoxTransaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range transactions {
		if tx.MoneyBoxID != moneyBoxID {
			continue
		}
		switch tx.Type {
		case core.Deposit:
			balance = balance.Add(tx.Amount)
		case core.Withdrawal:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}

// GoalProgress returns balance/goal capped to [0, 1]. Boxes without a goal
// report zero progress.
func GoalProgress(box core.MoneyBox, balance decimal.Decimal) decimal.Decimal {
	if box.GoalAmount == nil || !box.GoalAmount.IsPositive() || !balance.IsPositive() {
		return decimal.Zero
	}
	p := balance.Div(*box.GoalAmount)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return p
}
