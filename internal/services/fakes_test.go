package services

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"finledger/internal/core"
)

// memStore keeps a snapshot in memory and applies writes the way the SQLite
// repository does: upserts by id, one version bump per write.
type memStore struct {
	mu      sync.Mutex
	snap    core.Snapshot
	version int

	loadErr  error
	applyErr error
	applied  int
}

func newMemStore(snap core.Snapshot) *memStore {
	return &memStore{snap: snap}
}

func (m *memStore) LoadSnapshot(ctx context.Context) (core.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return core.Snapshot{}, m.loadErr
	}
	s := m.snap
	s.Transactions = append([]core.Transaction(nil), m.snap.Transactions...)
	s.Recurring = append([]core.RecurringTransaction(nil), m.snap.Recurring...)
	s.Purchases = append([]core.InstallmentPurchase(nil), m.snap.Purchases...)
	s.Loans = append([]core.Loan(nil), m.snap.Loans...)
	s.LoanRepayments = append([]core.LoanRepayment(nil), m.snap.LoanRepayments...)
	s.MoneyBoxTransactions = append([]core.MoneyBoxTransaction(nil), m.snap.MoneyBoxTransactions...)
	s.Version = strconv.Itoa(m.version)
	return s, nil
}

func (m *memStore) bump() { m.version++ }

func (m *memStore) putTransaction(tx core.Transaction) {
	for i := range m.snap.Transactions {
		if m.snap.Transactions[i].ID == tx.ID {
			m.snap.Transactions[i] = tx
			return
		}
	}
	m.snap.Transactions = append(m.snap.Transactions, tx)
}

func (m *memStore) ApplyPosting(ctx context.Context, posted []core.Transaction, templates []core.RecurringTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	for _, tx := range posted {
		m.putTransaction(tx)
	}
	for _, rt := range templates {
		for i := range m.snap.Recurring {
			if m.snap.Recurring[i].ID == rt.ID {
				m.snap.Recurring[i] = rt
			}
		}
	}
	m.applied++
	m.bump()
	return nil
}

func (m *memStore) SaveRepayment(ctx context.Context, l core.Loan, rep core.LoanRepayment, income *core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snap.Loans {
		if m.snap.Loans[i].ID == l.ID {
			m.snap.Loans[i] = l
		}
	}
	m.snap.LoanRepayments = append(m.snap.LoanRepayments, rep)
	if income != nil {
		m.putTransaction(*income)
	}
	m.bump()
	return nil
}

func (m *memStore) SavePurchase(ctx context.Context, p core.InstallmentPurchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.snap.Purchases {
		if m.snap.Purchases[i].ID == p.ID {
			m.snap.Purchases[i] = p
		}
	}
	m.bump()
	return nil
}

func (m *memStore) SaveMoneyBoxTransaction(ctx context.Context, mbt core.MoneyBoxTransaction, linked *core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.MoneyBoxTransactions = append(m.snap.MoneyBoxTransactions, mbt)
	if linked != nil {
		m.putTransaction(*linked)
	}
	m.bump()
	return nil
}

func (m *memStore) DeleteAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.snap.Accounts {
		if a.ID == id {
			m.snap.Accounts = append(m.snap.Accounts[:i:i], m.snap.Accounts[i+1:]...)
			m.bump()
			return nil
		}
	}
	return core.NotFound("account", id)
}

func (m *memStore) DeleteLoan(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.snap.Loans {
		if l.ID == id {
			m.snap.Loans = append(m.snap.Loans[:i:i], m.snap.Loans[i+1:]...)
			var kept []core.LoanRepayment
			for _, rep := range m.snap.LoanRepayments {
				if rep.LoanID != id {
					kept = append(kept, rep)
				}
			}
			m.snap.LoanRepayments = kept
			m.bump()
			return nil
		}
	}
	return core.NotFound("loan", id)
}

type fakePublisher struct {
	published []core.Transaction
	err       error
}

func (p *fakePublisher) PublishTransactionPosted(ctx context.Context, tx core.Transaction) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, tx)
	return nil
}

var errStore = errors.New("store unavailable")
