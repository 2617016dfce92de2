package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cache"
	"finledger/internal/core"
	"finledger/internal/networth"
	"finledger/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	mu    sync.Mutex
	days  []core.Date
	err   error
	calls chan struct{}
}

func (p *stubProcessor) ProcessDue(ctx context.Context, today core.Date) (services.ProcessReport, error) {
	p.mu.Lock()
	p.days = append(p.days, today)
	p.mu.Unlock()
	if p.calls != nil {
		select {
		case p.calls <- struct{}{}:
		default:
		}
	}
	return services.ProcessReport{Today: today}, p.err
}

func TestRecurringWorker_RunOnceUsesLocalDate(t *testing.T) {
	proc := &stubProcessor{}
	w := NewRecurringWorker(proc)
	w.now = func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.Local) }

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", report.Today.String())
	require.Len(t, proc.days, 1)
}

func TestRecurringWorker_RunOnceReturnsError(t *testing.T) {
	boom := errors.New("boom")
	w := NewRecurringWorker(&stubProcessor{err: boom})
	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRecurringWorker_RunStopsOnCancel(t *testing.T) {
	proc := &stubProcessor{calls: make(chan struct{}, 8)}
	w := NewRecurringWorker(proc)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-proc.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("processor was not called")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type stubLoader struct {
	snap core.Snapshot
	err  error
}

func (l stubLoader) LoadSnapshot(ctx context.Context) (core.Snapshot, error) {
	return l.snap, l.err
}

func TestPostingWatcher_HandlePostedMessage(t *testing.T) {
	tx := core.Transaction{
		ID:        "tx-1",
		Type:      core.Expense,
		Amount:    decimal.NewFromInt(20),
		Date:      core.MustParseDate("2024-01-01"),
		AccountID: "checking",
	}
	snap := core.Snapshot{
		Accounts:     []core.Account{{ID: "checking", Name: "Checking", InitialBalance: decimal.NewFromInt(100)}},
		Transactions: []core.Transaction{tx},
	}

	t.Run("known transaction", func(t *testing.T) {
		lru := cache.NewLRUCache[networth.Breakdown](2, 0)
		snap := snap
		snap.Version = "7"
		w := NewPostingWatcher(stubLoader{snap: snap}, networth.NewCalculator(lru))
		msg := amqp.NewTransactionPostedMessage(tx)
		require.NoError(t, w.HandlePostedMessage(context.Background(), msg))
		require.NoError(t, w.HandlePostedMessage(context.Background(), msg))

		hits, misses := lru.Stats()
		assert.Equal(t, uint64(1), hits)
		assert.Equal(t, uint64(1), misses)
	})

	t.Run("unknown transaction is acknowledged", func(t *testing.T) {
		w := NewPostingWatcher(stubLoader{snap: snap}, nil)
		msg := &amqp.TransactionPostedMessage{TransactionID: "gone"}
		assert.NoError(t, w.HandlePostedMessage(context.Background(), msg))
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		boom := errors.New("db locked")
		w := NewPostingWatcher(stubLoader{err: boom}, nil)
		err := w.HandlePostedMessage(context.Background(), amqp.NewTransactionPostedMessage(tx))
		assert.ErrorIs(t, err, boom)
	})
}
