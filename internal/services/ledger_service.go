package services

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/installment"
	"finledger/internal/ledger"
	"finledger/internal/loan"
	"finledger/internal/log"
	"finledger/internal/networth"
	"finledger/internal/scheduler"

	"github.com/shopspring/decimal"
)

// Store is the persistence LedgerService runs against.
type Store interface {
	LedgerStore
	SaveRepayment(ctx context.Context, l core.Loan, rep core.LoanRepayment, income *core.Transaction) error
	SavePurchase(ctx context.Context, p core.InstallmentPurchase) error
	SaveMoneyBoxTransaction(ctx context.Context, m core.MoneyBoxTransaction, linked *core.Transaction) error
	DeleteAccount(ctx context.Context, id string) error
	DeleteLoan(ctx context.Context, id string) error
}

// LedgerService applies user mutations through the derivation packages and
// builds the figures shown to the user.
type LedgerService struct {
	store    Store
	networth *networth.Calculator
}

// NewLedgerService creates a service. A nil calculator computes net worth
// without memoization.
func NewLedgerService(store Store, calc *networth.Calculator) *LedgerService {
	if calc == nil {
		calc = networth.NewCalculator(nil)
	}
	return &LedgerService{store: store, networth: calc}
}

type AccountSummary struct {
	Account core.Account
	Balance decimal.Decimal
}

type MoneyBoxSummary struct {
	Box      core.MoneyBox
	Balance  decimal.Decimal
	Progress decimal.Decimal
}

type CardSummary struct {
	Card           core.CreditCard
	Debt           decimal.Decimal
	AvailableLimit decimal.Decimal
	Utilization    decimal.Decimal
}

type PurchaseSummary struct {
	Purchase    core.InstallmentPurchase
	Installment decimal.Decimal
	Remaining   int
	Outstanding decimal.Decimal
	NextDue     core.Date // zero when fully paid or the card is unknown
}

type LoanSummary struct {
	Loan        core.Loan
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
	Status      loan.Status
}

type RecurringSummary struct {
	Template core.RecurringTransaction
	State    scheduler.State
	Upcoming []core.Date
}

// Summary is every derived figure of the ledger at one version.
type Summary struct {
	Version    string
	Accounts   []AccountSummary
	MoneyBoxes []MoneyBoxSummary
	Cards      []CardSummary
	Purchases  []PurchaseSummary
	Loans      []LoanSummary
	Recurring  []RecurringSummary
	NetWorth   networth.Breakdown
}

// upcomingPreview is how many due dates Summary previews per template.
const upcomingPreview = 3

// Summary derives balances, card limits, loan statuses, schedules and net
// worth from the current snapshot. Missing related records contribute
// nothing rather than failing.
func (s *LedgerService) Summary(ctx context.Context) (Summary, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load snapshot: %w", err)
	}

	out := Summary{Version: snap.Version}

	balances := ledger.Balances(snap.Accounts, snap.Transactions)
	for _, a := range snap.Accounts {
		out.Accounts = append(out.Accounts, AccountSummary{Account: a, Balance: balances[a.ID]})
	}

	for _, box := range snap.MoneyBoxes {
		bal := ledger.MoneyBoxBalance(box.ID, snap.MoneyBoxTransactions)
		out.MoneyBoxes = append(out.MoneyBoxes, MoneyBoxSummary{Box: box, Balance: bal, Progress: ledger.GoalProgress(box, bal)})
	}

	cards := make(map[string]core.CreditCard, len(snap.CreditCards))
	for _, c := range snap.CreditCards {
		cards[c.ID] = c
		out.Cards = append(out.Cards, CardSummary{
			Card:           c,
			Debt:           installment.CardDebt(c, snap.Purchases),
			AvailableLimit: installment.AvailableLimit(c, snap.Purchases),
			Utilization:    installment.Utilization(c, snap.Purchases),
		})
	}
	for _, p := range snap.Purchases {
		ps := PurchaseSummary{
			Purchase:    p,
			Installment: installment.Value(p),
			Remaining:   installment.Remaining(p),
			Outstanding: installment.OutstandingDebt(p),
		}
		if c, ok := cards[p.CreditCardID]; ok {
			if due, ok := installment.NextDueDate(p, c); ok {
				ps.NextDue = due
			}
		}
		out.Purchases = append(out.Purchases, ps)
	}

	for _, l := range snap.Loans {
		out.Loans = append(out.Loans, LoanSummary{
			Loan:        l,
			Paid:        loan.TotalPaid(l, snap.LoanRepayments),
			Outstanding: loan.Outstanding(l, snap.LoanRepayments),
			Status:      loan.StatusOf(l, snap.LoanRepayments),
		})
	}

	for _, rt := range snap.Recurring {
		rs := RecurringSummary{Template: rt, State: scheduler.StateOf(rt)}
		if rs.State == scheduler.Active {
			upcoming, err := scheduler.Upcoming(rt, upcomingPreview)
			if err != nil {
				slog.WarnContext(ctx, "Cannot preview recurring template",
					log.FieldTemplateID, rt.ID,
					log.FieldError, err)
			}
			rs.Upcoming = upcoming
		}
		out.Recurring = append(out.Recurring, rs)
	}

	out.NetWorth = s.networth.Compute(snap)
	return out, nil
}

// RecordLoanRepayment records a repayment against loanID and, when
// in.PostIncome is set, the matching income on the credited account.
func (s *LedgerService) RecordLoanRepayment(ctx context.Context, loanID string, in loan.RepaymentInput) (core.LoanRepayment, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return core.LoanRepayment{}, fmt.Errorf("load snapshot: %w", err)
	}
	l, ok := findLoan(snap.Loans, loanID)
	if !ok {
		return core.LoanRepayment{}, core.NotFound("loan", loanID)
	}

	updated, rep, income, err := loan.RecordRepayment(l, in, snap.Accounts)
	if err != nil {
		return core.LoanRepayment{}, err
	}
	if err := s.store.SaveRepayment(ctx, updated, rep, income); err != nil {
		return core.LoanRepayment{}, fmt.Errorf("save repayment: %w", err)
	}

	slog.InfoContext(ctx, "Loan repayment recorded",
		log.FieldOperation, log.OpRepay,
		log.FieldLoanID, loanID,
		log.FieldAmount, rep.AmountPaid.String(),
		"status", loan.StatusOf(updated, append(snap.LoanRepayments, rep)))
	return rep, nil
}

// MarkInstallmentPaid pays the next installment of a purchase.
func (s *LedgerService) MarkInstallmentPaid(ctx context.Context, purchaseID string) (core.InstallmentPurchase, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return core.InstallmentPurchase{}, fmt.Errorf("load snapshot: %w", err)
	}
	var (
		p     core.InstallmentPurchase
		found bool
	)
	for _, candidate := range snap.Purchases {
		if candidate.ID == purchaseID {
			p, found = candidate, true
			break
		}
	}
	if !found {
		return core.InstallmentPurchase{}, core.NotFound("purchase", purchaseID)
	}

	updated, err := installment.MarkPaid(p)
	if err != nil {
		return p, err
	}
	if err := s.store.SavePurchase(ctx, updated); err != nil {
		return p, fmt.Errorf("save purchase: %w", err)
	}

	slog.InfoContext(ctx, "Installment paid",
		log.FieldOperation, log.OpMarkPaid,
		log.FieldPurchaseID, purchaseID,
		"paid", updated.InstallmentsPaid,
		"of", updated.NumberOfInstallments)
	return updated, nil
}

// DepositToMoneyBox adds money to a box, debiting m.AccountID when set.
func (s *LedgerService) DepositToMoneyBox(ctx context.Context, boxID string, m ledger.Movement) (core.MoneyBoxTransaction, error) {
	return s.moveMoneyBox(ctx, boxID, m, core.Deposit)
}

// WithdrawFromMoneyBox takes money out of a box, crediting m.AccountID when
// set. It fails with core.ErrInsufficientBalance when the box holds less.
func (s *LedgerService) WithdrawFromMoneyBox(ctx context.Context, boxID string, m ledger.Movement) (core.MoneyBoxTransaction, error) {
	return s.moveMoneyBox(ctx, boxID, m, core.Withdrawal)
}

func (s *LedgerService) moveMoneyBox(ctx context.Context, boxID string, m ledger.Movement, typ core.MoneyBoxTransactionType) (core.MoneyBoxTransaction, error) {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return core.MoneyBoxTransaction{}, fmt.Errorf("load snapshot: %w", err)
	}
	var (
		box   core.MoneyBox
		found bool
	)
	for _, b := range snap.MoneyBoxes {
		if b.ID == boxID {
			box, found = b, true
			break
		}
	}
	if !found {
		return core.MoneyBoxTransaction{}, core.NotFound("money box", boxID)
	}

	var (
		mbt    core.MoneyBoxTransaction
		linked *core.Transaction
		op     = log.OpDeposit
	)
	if typ == core.Deposit {
		mbt, linked, err = ledger.Deposit(box, snap.Accounts, m)
	} else {
		op = log.OpWithdraw
		mbt, linked, err = ledger.Withdraw(box, snap.MoneyBoxTransactions, snap.Accounts, m)
	}
	if err != nil {
		return core.MoneyBoxTransaction{}, err
	}
	if err := s.store.SaveMoneyBoxTransaction(ctx, mbt, linked); err != nil {
		return core.MoneyBoxTransaction{}, fmt.Errorf("save money box transaction: %w", err)
	}

	slog.InfoContext(ctx, "Money box updated",
		log.FieldOperation, op,
		log.FieldMoneyBoxID, boxID,
		log.FieldAmount, mbt.Amount.String(),
		"linked_account", m.AccountID)
	return mbt, nil
}

// DeleteAccount deletes an account nothing refers to: no transaction, live
// recurring template, loan or loan repayment.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ledger.AccountInUse(id, snap.Transactions) {
		return core.Integrity("account", id, "referenced by transactions")
	}
	for _, rt := range snap.Recurring {
		if scheduler.StateOf(rt) != scheduler.Exhausted && (rt.AccountID == id || rt.ToAccountID == id) {
			return core.Integrity("account", id, "referenced by recurring transaction "+rt.ID)
		}
	}
	for _, l := range snap.Loans {
		if l.SourceAccountID == id {
			return core.Integrity("account", id, "funds loan "+l.ID)
		}
	}
	for _, rep := range snap.LoanRepayments {
		if rep.CreditedAccountID == id {
			return core.Integrity("account", id, "credited by loan repayment "+rep.ID)
		}
	}
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted", log.FieldOperation, log.OpDelete, log.FieldAccountID, id)
	return nil
}

// DeleteLoan deletes a loan and its repayments. Partially paid loans need
// override.
func (s *LedgerService) DeleteLoan(ctx context.Context, id string, override bool) error {
	snap, err := s.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	l, ok := findLoan(snap.Loans, id)
	if !ok {
		return core.NotFound("loan", id)
	}
	if !loan.CanDelete(l, snap.LoanRepayments, override) {
		return core.Integrity("loan", id, "partially paid, deleting needs override")
	}
	if err := s.store.DeleteLoan(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Loan deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldLoanID, id,
		"override", override)
	return nil
}

func findLoan(loans []core.Loan, id string) (core.Loan, bool) {
	for _, l := range loans {
		if l.ID == id {
			return l, true
		}
	}
	return core.Loan{}, false
}
