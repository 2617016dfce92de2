package ledger

import (
	"finledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Movement is a requested deposit into or withdrawal from a money box.
type Movement struct {
	ID     string
	Amount decimal.Decimal
	Date   core.Date
	// AccountID optionally names the regular account that funds a deposit
	// or receives a withdrawal. When set, a linked account transaction is
	// produced alongside the money-box transaction.
	AccountID string
}

// Deposit builds the money-box transaction for a deposit, plus the EXPENSE
// posting on the funding account when m.AccountID is set.
func Deposit(box core.MoneyBox, accounts []core.Account, m Movement) (core.MoneyBoxTransaction, *core.Transaction, error) {
	return move(box, accounts, nil, m, core.Deposit)
}

// Withdraw builds the money-box transaction for a withdrawal, plus the INCOME
// posting on the receiving account when m.AccountID is set. A withdrawal
// larger than the box's current balance fails with core.ErrInsufficientBalance.
func Withdraw(box core.MoneyBox, history []core.MoneyBoxTransaction, accounts []core.Account, m Movement) (core.MoneyBoxTransaction, *core.Transaction, error) {
	return move(box, accounts, history, m, core.Withdrawal)
}

func move(box core.MoneyBox, accounts []core.Account, history []core.MoneyBoxTransaction, m Movement, typ core.MoneyBoxTransactionType) (core.MoneyBoxTransaction, *core.Transaction, error) {
	if m.ID == "" {
		return core.MoneyBoxTransaction{}, nil, core.Invalid("money box transaction", "", "id is required")
	}
	mbt := core.MoneyBoxTransaction{
		ID:         m.ID,
		MoneyBoxID: box.ID,
		Type:       typ,
		Amount:     m.Amount,
		Date:       m.Date,
	}
	if err := mbt.Validate(); err != nil {
		return core.MoneyBoxTransaction{}, nil, err
	}

	if typ == core.Withdrawal {
		if balance := MoneyBoxBalance(box.ID, history); m.Amount.GreaterThan(balance) {
			return core.MoneyBoxTransaction{}, nil, &core.Error{
				Kind:   core.ErrInsufficientBalance,
				Entity: "money box",
				ID:     box.ID,
				Msg:    "withdrawal of " + m.Amount.StringFixed(2) + " exceeds balance " + balance.StringFixed(2),
			}
		}
	}

	if m.AccountID == "" {
		return mbt, nil, nil
	}
	if !hasAccount(accounts, m.AccountID) {
		return core.MoneyBoxTransaction{}, nil, core.NotFound("account", m.AccountID)
	}

	tx := &core.Transaction{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("moneybox:"+m.ID)).String(),
		Amount:    m.Amount,
		Date:      m.Date,
		AccountID: m.AccountID,
	}
	if typ == core.Deposit {
		tx.Type = core.Expense
		tx.Description = "Deposit to " + box.Name
	} else {
		tx.Type = core.Income
		tx.Description = "Withdrawal from " + box.Name
	}
	mbt.LinkedTransactionID = tx.ID
	return mbt, tx, nil
}

func hasAccount(accounts []core.Account, id string) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}
