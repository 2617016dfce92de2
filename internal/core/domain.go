package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income   TransactionType = "INCOME"
	Expense  TransactionType = "EXPENSE"
	Transfer TransactionType = "TRANSFER"

	Deposit    MoneyBoxTransactionType = "DEPOSIT"
	Withdrawal MoneyBoxTransactionType = "WITHDRAWAL"

	Daily      Frequency = "daily"
	Weekly     Frequency = "weekly"
	Monthly    Frequency = "monthly"
	Yearly     Frequency = "yearly"
	CustomDays Frequency = "custom_days"

	FundedByAccount    FundingSource = "account"
	FundedByCreditCard FundingSource = "credit_card"
)

type (
	TransactionType         string
	MoneyBoxTransactionType string
	Frequency               string
	FundingSource           string

	Account struct {
		ID             string          `json:"id" yaml:"id,omitempty"`
		Name           string          `json:"name" yaml:"name,omitempty"`
		InitialBalance decimal.Decimal `json:"initialBalance" yaml:"initialBalance,omitempty"`
	}

	Transaction struct {
		ID          string          `json:"id" yaml:"id,omitempty"`
		Type        TransactionType `json:"type" yaml:"type,omitempty"`
		Amount      decimal.Decimal `json:"amount" yaml:"amount,omitempty"`
		Date        Date            `json:"date" yaml:"date,omitempty"`
		Description string          `json:"description" yaml:"description,omitempty"`
		AccountID   string          `json:"accountId" yaml:"accountId,omitempty"`
		ToAccountID string          `json:"toAccountId,omitempty" yaml:"toAccountId,omitempty"` // TRANSFER only
		CategoryID  string          `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`   // never set on TRANSFER
		TagIDs      []string        `json:"tagIds,omitempty" yaml:"tagIds,omitempty"`

		// Origin links, set when the transaction was generated rather than typed in.
		RecurringID     string `json:"recurringId,omitempty" yaml:"recurringId,omitempty"`
		LoanRepaymentID string `json:"loanRepaymentId,omitempty" yaml:"loanRepaymentId,omitempty"`
	}

	MoneyBox struct {
		ID         string           `json:"id" yaml:"id,omitempty"`
		Name       string           `json:"name" yaml:"name,omitempty"`
		GoalAmount *decimal.Decimal `json:"goalAmount,omitempty" yaml:"goalAmount,omitempty"`
		CreatedAt  Date             `json:"createdAt" yaml:"createdAt,omitempty"`
	}

	MoneyBoxTransaction struct {
		ID                  string                  `json:"id" yaml:"id,omitempty"`
		MoneyBoxID          string                  `json:"moneyBoxId" yaml:"moneyBoxId,omitempty"`
		Type                MoneyBoxTransactionType `json:"type" yaml:"type,omitempty"`
		Amount              decimal.Decimal         `json:"amount" yaml:"amount,omitempty"`
		Date                Date                    `json:"date" yaml:"date,omitempty"`
		LinkedTransactionID string                  `json:"linkedTransactionId,omitempty" yaml:"linkedTransactionId,omitempty"`
	}

	CreditCard struct {
		ID         string          `json:"id" yaml:"id,omitempty"`
		Name       string          `json:"name" yaml:"name,omitempty"`
		Limit      decimal.Decimal `json:"limit" yaml:"limit,omitempty"`
		ClosingDay int             `json:"closingDay" yaml:"closingDay,omitempty"`
		DueDay     int             `json:"dueDay" yaml:"dueDay,omitempty"`
	}

	InstallmentPurchase struct {
		ID                   string          `json:"id" yaml:"id,omitempty"`
		CreditCardID         string          `json:"creditCardId" yaml:"creditCardId,omitempty"`
		Description          string          `json:"description" yaml:"description,omitempty"`
		PurchaseDate         Date            `json:"purchaseDate" yaml:"purchaseDate,omitempty"`
		TotalAmount          decimal.Decimal `json:"totalAmount" yaml:"totalAmount,omitempty"`
		NumberOfInstallments int             `json:"numberOfInstallments" yaml:"numberOfInstallments,omitempty"`
		InstallmentsPaid     int             `json:"installmentsPaid" yaml:"installmentsPaid,omitempty"`
	}

	Loan struct {
		ID                     string          `json:"id" yaml:"id,omitempty"`
		PersonName             string          `json:"personName" yaml:"personName,omitempty"`
		LoanDate               Date            `json:"loanDate" yaml:"loanDate,omitempty"`
		TotalAmountToReimburse decimal.Decimal `json:"totalAmountToReimburse" yaml:"totalAmountToReimburse,omitempty"`
		FundingSource          FundingSource   `json:"fundingSource" yaml:"fundingSource,omitempty"`
		SourceAccountID        string          `json:"sourceAccountId,omitempty" yaml:"sourceAccountId,omitempty"`
		SourceCreditCardID     string          `json:"sourceCreditCardId,omitempty" yaml:"sourceCreditCardId,omitempty"`
		AmountDelivered        decimal.Decimal `json:"amountDelivered" yaml:"amountDelivered,omitempty"`
		CostAmount             decimal.Decimal `json:"costAmount" yaml:"costAmount,omitempty"`
		RepaymentIDs           []string        `json:"repaymentIds" yaml:"repaymentIds,omitempty"`
		Notes                  string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	}

	LoanRepayment struct {
		ID                string          `json:"id" yaml:"id,omitempty"`
		LoanID            string          `json:"loanId" yaml:"loanId,omitempty"`
		AmountPaid        decimal.Decimal `json:"amountPaid" yaml:"amountPaid,omitempty"`
		RepaymentDate     Date            `json:"repaymentDate" yaml:"repaymentDate,omitempty"`
		CreditedAccountID string          `json:"creditedAccountId" yaml:"creditedAccountId,omitempty"`
		Note              string          `json:"note,omitempty" yaml:"note,omitempty"`
		TransactionID     string          `json:"transactionId,omitempty" yaml:"transactionId,omitempty"`
	}

	RecurringTransaction struct {
		ID                 string          `json:"id" yaml:"id,omitempty"`
		Description        string          `json:"description" yaml:"description,omitempty"`
		Amount             decimal.Decimal `json:"amount" yaml:"amount,omitempty"`
		Type               TransactionType `json:"type" yaml:"type,omitempty"`
		AccountID          string          `json:"accountId" yaml:"accountId,omitempty"`
		ToAccountID        string          `json:"toAccountId,omitempty" yaml:"toAccountId,omitempty"`
		CategoryID         string          `json:"categoryId,omitempty" yaml:"categoryId,omitempty"`
		Frequency          Frequency       `json:"frequency" yaml:"frequency,omitempty"`
		CustomIntervalDays int             `json:"customIntervalDays,omitempty" yaml:"customIntervalDays,omitempty"`
		StartDate          Date            `json:"startDate" yaml:"startDate,omitempty"`
		EndDate            Date            `json:"endDate" yaml:"endDate,omitempty"`         // zero means open-ended
		Occurrences        *int            `json:"occurrences" yaml:"occurrences,omitempty"` // nil means unbounded
		// RemainingOccurrences counts down on each posting; nil means unbounded.
		RemainingOccurrences *int `json:"remainingOccurrences" yaml:"remainingOccurrences,omitempty"`
		NextDueDate          Date `json:"nextDueDate" yaml:"nextDueDate,omitempty"`
		LastPostedDate       Date `json:"lastPostedDate" yaml:"lastPostedDate,omitempty"`
		IsPaused             bool `json:"isPaused" yaml:"isPaused,omitempty"`
	}

	// Snapshot is the full set of records the derivations run over.
	Snapshot struct {
		Version              string
		Accounts             []Account
		Transactions         []Transaction
		MoneyBoxes           []MoneyBox
		MoneyBoxTransactions []MoneyBoxTransaction
		CreditCards          []CreditCard
		Purchases            []InstallmentPurchase
		Loans                []Loan
		LoanRepayments       []LoanRepayment
		Recurring            []RecurringTransaction
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
)

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly, CustomDays:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return Invalid("account", "", "id is required")
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return Invalid("transaction", "", "id is required")
	}
	if !t.Type.IsValid() {
		return Invalid("transaction", t.ID, "unknown type "+string(t.Type))
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return validatePostingTarget("transaction", t.ID, t.Type, t.AccountID, t.ToAccountID, t.CategoryID)
}

// validatePostingTarget checks the account wiring shared by transactions and
// recurring templates.
func validatePostingTarget(entity, id string, typ TransactionType, accountID, toAccountID, categoryID string) error {
	if accountID == "" {
		return Invalid(entity, id, "account is required")
	}
	if typ != Transfer {
		if toAccountID != "" {
			return Invalid(entity, id, "destination account is only allowed on transfers")
		}
		return nil
	}
	if toAccountID == "" {
		return Invalid(entity, id, "transfer requires a destination account")
	}
	if toAccountID == accountID {
		return Integrity(entity, id, "transfer source and destination are the same account")
	}
	if categoryID != "" {
		return Invalid(entity, id, "transfers cannot carry a category")
	}
	return nil
}

func (m MoneyBox) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return Invalid("money box", "", "id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if m.GoalAmount != nil && !m.GoalAmount.IsPositive() {
		return Invalid("money box", m.ID, "goal amount must be positive")
	}
	return nil
}

func (m MoneyBoxTransaction) Validate() error {
	if m.MoneyBoxID == "" {
		return Invalid("money box transaction", m.ID, "money box is required")
	}
	if m.Type != Deposit && m.Type != Withdrawal {
		return Invalid("money box transaction", m.ID, "unknown type "+string(m.Type))
	}
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return m.Date.Validate()
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return Invalid("credit card", "", "id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.Limit.IsNegative() {
		return Invalid("credit card", c.ID, "limit cannot be negative")
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return Invalid("credit card", c.ID, "closing day must be between 1 and 31")
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return Invalid("credit card", c.ID, "due day must be between 1 and 31")
	}
	return nil
}

func (p InstallmentPurchase) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return Invalid("purchase", "", "id is required")
	}
	if p.CreditCardID == "" {
		return Invalid("purchase", p.ID, "credit card is required")
	}
	if !p.TotalAmount.IsPositive() {
		return Invalid("purchase", p.ID, "total amount must be positive")
	}
	if p.NumberOfInstallments <= 0 {
		return Invalid("purchase", p.ID, "number of installments must be positive")
	}
	if p.InstallmentsPaid < 0 || p.InstallmentsPaid > p.NumberOfInstallments {
		return Invalid("purchase", p.ID, "installments paid out of range")
	}
	return p.PurchaseDate.Validate()
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return Invalid("loan", "", "id is required")
	}
	if strings.TrimSpace(l.PersonName) == "" {
		return ErrEmptyName
	}
	if !l.TotalAmountToReimburse.IsPositive() {
		return Invalid("loan", l.ID, "amount to reimburse must be positive")
	}
	switch l.FundingSource {
	case FundedByAccount:
		if l.SourceAccountID == "" {
			return Invalid("loan", l.ID, "account-funded loan requires a source account")
		}
	case FundedByCreditCard:
		if l.SourceCreditCardID == "" {
			return Invalid("loan", l.ID, "card-funded loan requires a source credit card")
		}
	default:
		return Invalid("loan", l.ID, "unknown funding source "+string(l.FundingSource))
	}
	if l.AmountDelivered.IsNegative() || l.CostAmount.IsNegative() {
		return ErrInvalidAmount
	}
	return l.LoanDate.Validate()
}

func (r LoanRepayment) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return Invalid("loan repayment", "", "id is required")
	}
	if r.LoanID == "" {
		return Invalid("loan repayment", r.ID, "loan is required")
	}
	if !r.AmountPaid.IsPositive() {
		return Invalid("loan repayment", r.ID, "amount paid must be positive")
	}
	if r.CreditedAccountID == "" {
		return Invalid("loan repayment", r.ID, "credited account is required")
	}
	return r.RepaymentDate.Validate()
}

func (rt RecurringTransaction) Validate() error {
	if strings.TrimSpace(rt.ID) == "" {
		return Invalid("recurring transaction", "", "id is required")
	}
	if err := rt.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !rt.EndDate.IsEmpty() && rt.EndDate.Before(rt.StartDate) {
		return Invalid("recurring transaction", rt.ID, "end date must not be before start date")
	}
	if !rt.Frequency.IsValid() {
		return Invalid("recurring transaction", rt.ID, "unknown frequency "+string(rt.Frequency))
	}
	if rt.Frequency == CustomDays && rt.CustomIntervalDays < 1 {
		return Invalid("recurring transaction", rt.ID, "custom interval must be at least one day")
	}
	if rt.Occurrences != nil && *rt.Occurrences < 1 {
		return Invalid("recurring transaction", rt.ID, "occurrences must be positive")
	}
	if err := rt.validateRemaining(); err != nil {
		return err
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rt.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !rt.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !rt.Type.IsValid() {
		return Invalid("recurring transaction", rt.ID, "unknown type "+string(rt.Type))
	}
	return validatePostingTarget("recurring transaction", rt.ID, rt.Type, rt.AccountID, rt.ToAccountID, rt.CategoryID)
}

// A scheduled template with an occurrence cap must carry its countdown,
// otherwise it would post without limit.
func (rt RecurringTransaction) validateRemaining() error {
	if rt.RemainingOccurrences == nil {
		if rt.Occurrences != nil && !rt.NextDueDate.IsEmpty() {
			return Invalid("recurring transaction", rt.ID, "remaining occurrences missing for a capped template")
		}
		return nil
	}
	if rt.Occurrences == nil {
		return Invalid("recurring transaction", rt.ID, "remaining occurrences set without an occurrence cap")
	}
	if n := *rt.RemainingOccurrences; n < 0 || n > *rt.Occurrences {
		return Invalid("recurring transaction", rt.ID, "remaining occurrences out of range")
	}
	return nil
}
