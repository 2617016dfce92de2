package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// SQLiteRepository persists ledger records in a single SQLite file. Every
// write bumps a version counter that LoadSnapshot reports as
// core.Snapshot.Version.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// write runs fn in a transaction and bumps the ledger version on success.
func (r *SQLiteRepository) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_meta SET value = value + 1 WHERE key = 'version'`); err != nil {
		return fmt.Errorf("bump ledger version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Version returns the current ledger version.
func (r *SQLiteRepository) Version(ctx context.Context) (string, error) {
	var v int64
	if err := r.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = 'version'`).Scan(&v); err != nil {
		return "", fmt.Errorf("read ledger version: %w", err)
	}
	return strconv.FormatInt(v, 10), nil
}

// LoadSnapshot reads every collection concurrently. If a write lands while
// loading, the snapshot is returned without a version so that nothing
// caches it.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (core.Snapshot, error) {
	var s core.Snapshot
	before, err := r.Version(ctx)
	if err != nil {
		return s, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.Accounts, err = queryAll(gctx, r.db, `SELECT id, name, initial_balance FROM accounts ORDER BY id`, scanAccount)
		return err
	})
	g.Go(func() (err error) {
		s.Transactions, err = queryAll(gctx, r.db, `SELECT `+transactionColumns+` FROM transactions ORDER BY date, id`, scanTransaction)
		return err
	})
	g.Go(func() (err error) {
		s.MoneyBoxes, err = queryAll(gctx, r.db, `SELECT id, name, goal_amount, created_at FROM money_boxes ORDER BY id`, scanMoneyBox)
		return err
	})
	g.Go(func() (err error) {
		s.MoneyBoxTransactions, err = queryAll(gctx, r.db,
			`SELECT id, money_box_id, type, amount, date, linked_transaction_id FROM money_box_transactions ORDER BY date, id`,
			scanMoneyBoxTransaction)
		return err
	})
	g.Go(func() (err error) {
		s.CreditCards, err = queryAll(gctx, r.db, `SELECT id, name, credit_limit, closing_day, due_day FROM credit_cards ORDER BY id`, scanCreditCard)
		return err
	})
	g.Go(func() (err error) {
		s.Purchases, err = queryAll(gctx, r.db,
			`SELECT id, credit_card_id, description, purchase_date, total_amount, number_of_installments, installments_paid
			 FROM installment_purchases ORDER BY purchase_date, id`,
			scanPurchase)
		return err
	})
	g.Go(func() (err error) {
		s.Loans, err = queryAll(gctx, r.db, `SELECT `+loanColumns+` FROM loans ORDER BY loan_date, id`, scanLoan)
		return err
	})
	g.Go(func() (err error) {
		s.LoanRepayments, err = queryAll(gctx, r.db,
			`SELECT id, loan_id, amount_paid, repayment_date, credited_account_id, note, transaction_id
			 FROM loan_repayments ORDER BY repayment_date, id`,
			scanRepayment)
		return err
	})
	g.Go(func() (err error) {
		s.Recurring, err = queryAll(gctx, r.db, `SELECT `+recurringColumns+` FROM recurring_transactions ORDER BY id`, scanRecurring)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	after, err := r.Version(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	if before == after {
		s.Version = after
	} else {
		slog.DebugContext(ctx, "Ledger changed while loading snapshot", "before", before, "after", after)
	}
	return s, nil
}

func queryAll[T any](ctx context.Context, db *sql.DB, query string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Accounts

func scanAccount(row rowScanner) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.Name, &a.InitialBalance)
	return a, err
}

func (r *SQLiteRepository) SaveAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO accounts (id, name, initial_balance) VALUES (?, ?, ?)`,
			a.ID, a.Name, a.InitialBalance)
		if err != nil {
			return fmt.Errorf("save account %s: %w", a.ID, err)
		}
		return nil
	})
}

// DeleteAccount removes an account that no transaction references.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		checks := []struct {
			what, query string
			args        []any
		}{
			{"transactions", `SELECT EXISTS (SELECT 1 FROM transactions WHERE account_id = ? OR to_account_id = ?)`, []any{id, id}},
			{"loans", `SELECT EXISTS (SELECT 1 FROM loans WHERE source_account_id = ?)`, []any{id}},
			{"loan repayments", `SELECT EXISTS (SELECT 1 FROM loan_repayments WHERE credited_account_id = ?)`, []any{id}},
		}
		for _, c := range checks {
			var inUse bool
			if err := tx.QueryRowContext(ctx, c.query, c.args...).Scan(&inUse); err != nil {
				return fmt.Errorf("check account %s usage: %w", id, err)
			}
			if inUse {
				return core.Integrity("account", id, "referenced by "+c.what)
			}
		}
		return deleteByID(ctx, tx, "accounts", "account", id)
	})
}

// Transactions

const transactionColumns = `id, type, amount, date, description, account_id, to_account_id, category_id, tag_ids, recurring_id, loan_repayment_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t    core.Transaction
		tags string
	)
	err := row.Scan(&t.ID, &t.Type, &t.Amount, &t.Date, &t.Description, &t.AccountID, &t.ToAccountID,
		&t.CategoryID, &tags, &t.RecurringID, &t.LoanRepaymentID)
	if err != nil {
		return t, err
	}
	if err := decodeIDs(tags, &t.TagIDs); err != nil {
		return t, fmt.Errorf("transaction %s tags: %w", t.ID, err)
	}
	return t, nil
}

func saveTransaction(ctx context.Context, db execer, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	tags, err := encodeIDs(t.TagIDs)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Type, t.Amount, t.Date, t.Description, t.AccountID, t.ToAccountID, t.CategoryID, tags,
		t.RecurringID, t.LoanRepaymentID)
	if err != nil {
		return fmt.Errorf("save transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, t core.Transaction) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		return saveTransaction(ctx, tx, t)
	})
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		return deleteByID(ctx, tx, "transactions", "transaction", id)
	})
}

// Money boxes

func scanMoneyBox(row rowScanner) (core.MoneyBox, error) {
	var (
		m    core.MoneyBox
		goal decimal.NullDecimal
	)
	if err := row.Scan(&m.ID, &m.Name, &goal, &m.CreatedAt); err != nil {
		return m, err
	}
	if goal.Valid {
		m.GoalAmount = &goal.Decimal
	}
	return m, nil
}

func (r *SQLiteRepository) SaveMoneyBox(ctx context.Context, m core.MoneyBox) error {
	if err := m.Validate(); err != nil {
		return err
	}
	var goal decimal.NullDecimal
	if m.GoalAmount != nil {
		goal = decimal.NewNullDecimal(*m.GoalAmount)
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO money_boxes (id, name, goal_amount, created_at) VALUES (?, ?, ?, ?)`,
			m.ID, m.Name, goal, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("save money box %s: %w", m.ID, err)
		}
		return nil
	})
}

func scanMoneyBoxTransaction(row rowScanner) (core.MoneyBoxTransaction, error) {
	var m core.MoneyBoxTransaction
	err := row.Scan(&m.ID, &m.MoneyBoxID, &m.Type, &m.Amount, &m.Date, &m.LinkedTransactionID)
	return m, err
}

// SaveMoneyBoxTransaction stores a deposit or withdrawal together with the
// account transaction it is linked to, if any.
func (r *SQLiteRepository) SaveMoneyBoxTransaction(ctx context.Context, m core.MoneyBoxTransaction, linked *core.Transaction) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		if linked != nil {
			if err := saveTransaction(ctx, tx, *linked); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO money_box_transactions (id, money_box_id, type, amount, date, linked_transaction_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.MoneyBoxID, m.Type, m.Amount, m.Date, m.LinkedTransactionID)
		if err != nil {
			return fmt.Errorf("save money box transaction %s: %w", m.ID, err)
		}
		return nil
	})
}

// Credit cards and installment purchases

func scanCreditCard(row rowScanner) (core.CreditCard, error) {
	var c core.CreditCard
	err := row.Scan(&c.ID, &c.Name, &c.Limit, &c.ClosingDay, &c.DueDay)
	return c, err
}

func (r *SQLiteRepository) SaveCreditCard(ctx context.Context, c core.CreditCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO credit_cards (id, name, credit_limit, closing_day, due_day) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Limit, c.ClosingDay, c.DueDay)
		if err != nil {
			return fmt.Errorf("save credit card %s: %w", c.ID, err)
		}
		return nil
	})
}

func scanPurchase(row rowScanner) (core.InstallmentPurchase, error) {
	var p core.InstallmentPurchase
	err := row.Scan(&p.ID, &p.CreditCardID, &p.Description, &p.PurchaseDate, &p.TotalAmount,
		&p.NumberOfInstallments, &p.InstallmentsPaid)
	return p, err
}

func (r *SQLiteRepository) SavePurchase(ctx context.Context, p core.InstallmentPurchase) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO installment_purchases
			 (id, credit_card_id, description, purchase_date, total_amount, number_of_installments, installments_paid)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CreditCardID, p.Description, p.PurchaseDate, p.TotalAmount, p.NumberOfInstallments, p.InstallmentsPaid)
		if err != nil {
			return fmt.Errorf("save purchase %s: %w", p.ID, err)
		}
		return nil
	})
}

// Loans

const loanColumns = `id, person_name, loan_date, total_amount_to_reimburse, funding_source, source_account_id,
	source_credit_card_id, amount_delivered, cost_amount, repayment_ids, notes`

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l   core.Loan
		ids string
	)
	err := row.Scan(&l.ID, &l.PersonName, &l.LoanDate, &l.TotalAmountToReimburse, &l.FundingSource,
		&l.SourceAccountID, &l.SourceCreditCardID, &l.AmountDelivered, &l.CostAmount, &ids, &l.Notes)
	if err != nil {
		return l, err
	}
	if err := decodeIDs(ids, &l.RepaymentIDs); err != nil {
		return l, fmt.Errorf("loan %s repayment ids: %w", l.ID, err)
	}
	return l, nil
}

func saveLoan(ctx context.Context, db execer, l core.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	ids, err := encodeIDs(l.RepaymentIDs)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.PersonName, l.LoanDate, l.TotalAmountToReimburse, l.FundingSource, l.SourceAccountID,
		l.SourceCreditCardID, l.AmountDelivered, l.CostAmount, ids, l.Notes)
	if err != nil {
		return fmt.Errorf("save loan %s: %w", l.ID, err)
	}
	return nil
}

// SaveLoan stores a loan and, for account-funded loans, its funding posting.
func (r *SQLiteRepository) SaveLoan(ctx context.Context, l core.Loan, funding *core.Transaction) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		if err := saveLoan(ctx, tx, l); err != nil {
			return err
		}
		if funding != nil {
			return saveTransaction(ctx, tx, *funding)
		}
		return nil
	})
}

// DeleteLoan removes a loan and its repayments. Transactions already posted
// for those repayments stay on their accounts.
func (r *SQLiteRepository) DeleteLoan(ctx context.Context, id string) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM loan_repayments WHERE loan_id = ?`, id); err != nil {
			return fmt.Errorf("delete repayments of loan %s: %w", id, err)
		}
		return deleteByID(ctx, tx, "loans", "loan", id)
	})
}

func scanRepayment(row rowScanner) (core.LoanRepayment, error) {
	var p core.LoanRepayment
	err := row.Scan(&p.ID, &p.LoanID, &p.AmountPaid, &p.RepaymentDate, &p.CreditedAccountID, &p.Note, &p.TransactionID)
	return p, err
}

// SaveRepayment stores the updated loan, the repayment and its optional
// income posting atomically.
func (r *SQLiteRepository) SaveRepayment(ctx context.Context, l core.Loan, rep core.LoanRepayment, income *core.Transaction) error {
	if err := rep.Validate(); err != nil {
		return err
	}
	return r.write(ctx, func(tx *sql.Tx) error {
		if err := saveLoan(ctx, tx, l); err != nil {
			return err
		}
		if income != nil {
			if err := saveTransaction(ctx, tx, *income); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO loan_repayments (id, loan_id, amount_paid, repayment_date, credited_account_id, note, transaction_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rep.ID, rep.LoanID, rep.AmountPaid, rep.RepaymentDate, rep.CreditedAccountID, rep.Note, rep.TransactionID)
		if err != nil {
			return fmt.Errorf("save repayment %s: %w", rep.ID, err)
		}
		return nil
	})
}

// Recurring templates

const recurringColumns = `id, description, amount, type, account_id, to_account_id, category_id, frequency,
	custom_interval_days, start_date, end_date, occurrences, remaining_occurrences, next_due_date,
	last_posted_date, is_paused`

func scanRecurring(row rowScanner) (core.RecurringTransaction, error) {
	var (
		rt                     core.RecurringTransaction
		occurrences, remaining sql.NullInt64
	)
	err := row.Scan(&rt.ID, &rt.Description, &rt.Amount, &rt.Type, &rt.AccountID, &rt.ToAccountID, &rt.CategoryID,
		&rt.Frequency, &rt.CustomIntervalDays, &rt.StartDate, &rt.EndDate, &occurrences, &remaining,
		&rt.NextDueDate, &rt.LastPostedDate, &rt.IsPaused)
	if err != nil {
		return rt, err
	}
	rt.Occurrences = intPtr(occurrences)
	rt.RemainingOccurrences = intPtr(remaining)
	return rt, nil
}

func saveRecurring(ctx context.Context, db execer, rt core.RecurringTransaction) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recurring_transactions (`+recurringColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.Description, rt.Amount, rt.Type, rt.AccountID, rt.ToAccountID, rt.CategoryID, rt.Frequency,
		rt.CustomIntervalDays, rt.StartDate, rt.EndDate, nullInt(rt.Occurrences), nullInt(rt.RemainingOccurrences),
		rt.NextDueDate, rt.LastPostedDate, rt.IsPaused)
	if err != nil {
		return fmt.Errorf("save recurring transaction %s: %w", rt.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) SaveRecurring(ctx context.Context, rt core.RecurringTransaction) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		return saveRecurring(ctx, tx, rt)
	})
}

func (r *SQLiteRepository) DeleteRecurring(ctx context.Context, id string) error {
	return r.write(ctx, func(tx *sql.Tx) error {
		return deleteByID(ctx, tx, "recurring_transactions", "recurring transaction", id)
	})
}

// ApplyPosting stores the transactions produced by a scheduler run together
// with the templates it advanced. Either everything is written or nothing.
func (r *SQLiteRepository) ApplyPosting(ctx context.Context, posted []core.Transaction, templates []core.RecurringTransaction) error {
	if len(posted) == 0 && len(templates) == 0 {
		return nil
	}
	err := r.write(ctx, func(tx *sql.Tx) error {
		for _, t := range posted {
			if err := saveTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		for _, rt := range templates {
			if err := saveRecurring(ctx, tx, rt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring postings applied",
		"transactions", len(posted),
		"templates", len(templates))
	return nil
}

// helpers

func deleteByID(ctx context.Context, tx *sql.Tx, table, entity, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	if n == 0 {
		return core.NotFound(entity, id)
	}
	return nil
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode ids: %w", err)
	}
	return string(b), nil
}

func decodeIDs(s string, dst *[]string) error {
	if s == "" || s == "[]" {
		*dst = nil
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
