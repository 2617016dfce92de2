// Package seed imports ledger records from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/loan"
	"finledger/internal/scheduler"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// File is the document layout. Every collection is optional.
type File struct {
	Accounts     []core.Account              `yaml:"accounts"`
	Transactions []core.Transaction          `yaml:"transactions"`
	MoneyBoxes   []core.MoneyBox             `yaml:"moneyBoxes"`
	CreditCards  []core.CreditCard           `yaml:"creditCards"`
	Purchases    []core.InstallmentPurchase  `yaml:"purchases"`
	Loans        []core.Loan                 `yaml:"loans"`
	Recurring    []core.RecurringTransaction `yaml:"recurring"`
}

// Writer is the subset of the repository an import writes through.
type Writer interface {
	SaveAccount(ctx context.Context, a core.Account) error
	SaveTransaction(ctx context.Context, t core.Transaction) error
	SaveMoneyBox(ctx context.Context, m core.MoneyBox) error
	SaveCreditCard(ctx context.Context, c core.CreditCard) error
	SavePurchase(ctx context.Context, p core.InstallmentPurchase) error
	SaveLoan(ctx context.Context, l core.Loan, funding *core.Transaction) error
	SaveRecurring(ctx context.Context, rt core.RecurringTransaction) error
}

// Decode reads a File. Unknown keys are rejected so typos do not silently
// drop fields.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

// Prepare fills missing ids, initializes recurring templates that have no
// schedule yet and validates every record.
func (f *File) Prepare() error {
	for i := range f.Accounts {
		fillID(&f.Accounts[i].ID)
		if err := f.Accounts[i].Validate(); err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
	}
	for i := range f.Transactions {
		fillID(&f.Transactions[i].ID)
		if err := f.Transactions[i].Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	for i := range f.MoneyBoxes {
		fillID(&f.MoneyBoxes[i].ID)
		if err := f.MoneyBoxes[i].Validate(); err != nil {
			return fmt.Errorf("money box %d: %w", i, err)
		}
	}
	for i := range f.CreditCards {
		fillID(&f.CreditCards[i].ID)
		if err := f.CreditCards[i].Validate(); err != nil {
			return fmt.Errorf("credit card %d: %w", i, err)
		}
	}
	for i := range f.Purchases {
		fillID(&f.Purchases[i].ID)
		if err := f.Purchases[i].Validate(); err != nil {
			return fmt.Errorf("purchase %d: %w", i, err)
		}
	}
	for i := range f.Loans {
		fillID(&f.Loans[i].ID)
		if err := f.Loans[i].Validate(); err != nil {
			return fmt.Errorf("loan %d: %w", i, err)
		}
	}
	for i := range f.Recurring {
		rt := &f.Recurring[i]
		fillID(&rt.ID)
		if !rt.NextDueDate.IsEmpty() {
			if rt.Occurrences != nil && rt.RemainingOccurrences == nil {
				n := *rt.Occurrences
				rt.RemainingOccurrences = &n
			}
			if err := rt.Validate(); err != nil {
				return fmt.Errorf("recurring transaction %d: %w", i, err)
			}
			continue
		}
		initialized, err := scheduler.NewTemplate(*rt)
		if err != nil {
			return fmt.Errorf("recurring transaction %d: %w", i, err)
		}
		*rt = initialized
	}
	return nil
}

// Apply writes the prepared records, parents before children. It stops at
// the first failure; records already written stay.
func (f *File) Apply(ctx context.Context, w Writer) error {
	for _, a := range f.Accounts {
		if err := w.SaveAccount(ctx, a); err != nil {
			return err
		}
	}
	for _, t := range f.Transactions {
		if err := w.SaveTransaction(ctx, t); err != nil {
			return err
		}
	}
	for _, m := range f.MoneyBoxes {
		if err := w.SaveMoneyBox(ctx, m); err != nil {
			return err
		}
	}
	for _, c := range f.CreditCards {
		if err := w.SaveCreditCard(ctx, c); err != nil {
			return err
		}
	}
	for _, p := range f.Purchases {
		if err := w.SavePurchase(ctx, p); err != nil {
			return err
		}
	}
	for _, l := range f.Loans {
		if err := w.SaveLoan(ctx, l, loan.FundingTransaction(l)); err != nil {
			return err
		}
	}
	for _, rt := range f.Recurring {
		if err := w.SaveRecurring(ctx, rt); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "Seed imported",
		"accounts", len(f.Accounts),
		"transactions", len(f.Transactions),
		"money_boxes", len(f.MoneyBoxes),
		"credit_cards", len(f.CreditCards),
		"purchases", len(f.Purchases),
		"loans", len(f.Loans),
		"recurring", len(f.Recurring))
	return nil
}

func fillID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
