// Package loan derives the receivable state of peer loans from their
// repayments.
package loan

import (
	"finledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the repayment state of a loan.
type Status string

const (
	// Pending means nothing has been repaid yet.
	Pending Status = "PENDING"
	// PartiallyPaid means some but not all of the amount has been repaid.
	PartiallyPaid Status = "PARTIALLY_PAID"
	// Paid means the repayments reach or exceed the amount to reimburse.
	Paid Status = "PAID"
)

// RepaymentInput describes a repayment to record against a loan.
type RepaymentInput struct {
	ID                string
	AmountPaid        decimal.Decimal
	RepaymentDate     core.Date
	CreditedAccountID string
	Note              string
	// PostIncome requests the INCOME transaction on the credited account.
	PostIncome bool
}

// TotalPaid sums the repayments whose id is listed in l.RepaymentIDs.
// Repayments of other loans and unknown ids contribute nothing.
func TotalPaid(l core.Loan, repayments []core.LoanRepayment) decimal.Decimal {
	if len(l.RepaymentIDs) == 0 {
		return decimal.Zero
	}
	ids := make(map[string]struct{}, len(l.RepaymentIDs))
	for _, id := range l.RepaymentIDs {
		ids[id] = struct{}{}
	}
	total := decimal.Zero
	for _, r := range repayments {
		if _, ok := ids[r.ID]; ok {
			total = total.Add(r.AmountPaid)
			delete(ids, r.ID)
		}
	}
	return total
}

// Outstanding returns the amount still owed. Overpayment makes it negative;
// callers decide how to show that.
func Outstanding(l core.Loan, repayments []core.LoanRepayment) decimal.Decimal {
	return l.TotalAmountToReimburse.Sub(TotalPaid(l, repayments))
}

// StatusOf derives the loan status; the first matching rule wins.
func StatusOf(l core.Loan, repayments []core.LoanRepayment) Status {
	paid := TotalPaid(l, repayments)
	switch {
	case paid.IsZero():
		return Pending
	case paid.LessThan(l.TotalAmountToReimburse):
		return PartiallyPaid
	default:
		return Paid
	}
}

// CanDelete reports whether l may be deleted. A loan that has received some
// repayments but is not fully paid needs an explicit override.
func CanDelete(l core.Loan, repayments []core.LoanRepayment, override bool) bool {
	if override {
		return true
	}
	paid := TotalPaid(l, repayments)
	return !(paid.IsPositive() && StatusOf(l, repayments) != Paid)
}

// RecordRepayment validates in and returns the updated loan, the new
// repayment and, when requested, the INCOME transaction on the credited
// account. The input loan is not modified.
func RecordRepayment(l core.Loan, in RepaymentInput, accounts []core.Account) (core.Loan, core.LoanRepayment, *core.Transaction, error) {
	if in.ID == "" {
		return l, core.LoanRepayment{}, nil, core.Invalid("loan repayment", "", "id is required")
	}
	for _, id := range l.RepaymentIDs {
		if id == in.ID {
			return l, core.LoanRepayment{}, nil, core.Integrity("loan repayment", in.ID, "already recorded on loan "+l.ID)
		}
	}
	rep := core.LoanRepayment{
		ID:                in.ID,
		LoanID:            l.ID,
		AmountPaid:        in.AmountPaid,
		RepaymentDate:     in.RepaymentDate,
		CreditedAccountID: in.CreditedAccountID,
		Note:              in.Note,
	}
	if err := rep.Validate(); err != nil {
		return l, core.LoanRepayment{}, nil, err
	}
	if !hasAccount(accounts, in.CreditedAccountID) {
		return l, core.LoanRepayment{}, nil, core.NotFound("account", in.CreditedAccountID)
	}

	var tx *core.Transaction
	if in.PostIncome {
		tx = &core.Transaction{
			ID:              uuid.NewSHA1(uuid.NameSpaceOID, []byte("repayment:"+in.ID)).String(),
			Type:            core.Income,
			Amount:          in.AmountPaid,
			Date:            in.RepaymentDate,
			Description:     "Loan repayment from " + l.PersonName,
			AccountID:       in.CreditedAccountID,
			LoanRepaymentID: in.ID,
		}
		rep.TransactionID = tx.ID
	}

	updated := l
	updated.RepaymentIDs = append(append([]string(nil), l.RepaymentIDs...), in.ID)
	return updated, rep, tx, nil
}

// FundingTransaction returns the EXPENSE posting that moves the delivered
// amount plus its cost out of the source account. Loans funded by a credit
// card have no account posting and return nil.
func FundingTransaction(l core.Loan) *core.Transaction {
	if l.FundingSource != core.FundedByAccount || l.SourceAccountID == "" {
		return nil
	}
	amount := l.AmountDelivered.Add(l.CostAmount)
	if amount.IsZero() {
		amount = l.TotalAmountToReimburse
	}
	return &core.Transaction{
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte("loan:"+l.ID)).String(),
		Type:        core.Expense,
		Amount:      amount,
		Date:        l.LoanDate,
		Description: "Loan to " + l.PersonName,
		AccountID:   l.SourceAccountID,
	}
}

func hasAccount(accounts []core.Account, id string) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}
