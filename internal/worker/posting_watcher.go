package worker

import (
	"context"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/ledger"
	"finledger/internal/networth"
)

// SnapshotLoader reads the current ledger state.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, error)
}

// PostingWatcher reacts to transaction.posted events by logging the posting
// together with the resulting account balances and net worth.
type PostingWatcher struct {
	store    SnapshotLoader
	networth *networth.Calculator
}

// NewPostingWatcher creates a watcher. A nil calculator computes net worth
// on every event.
func NewPostingWatcher(store SnapshotLoader, calc *networth.Calculator) *PostingWatcher {
	if calc == nil {
		calc = networth.NewCalculator(nil)
	}
	return &PostingWatcher{store: store, networth: calc}
}

// HandlePostedMessage handles one event. Events for transactions that no
// longer exist are acknowledged and only logged; storage failures are
// returned so the message is redelivered.
func (w *PostingWatcher) HandlePostedMessage(ctx context.Context, msg *amqp.TransactionPostedMessage) error {
	slog.InfoContext(ctx, "Processing posted message",
		"transaction_id", msg.TransactionID,
		"recurring_id", msg.RecurringID)

	snap, err := w.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	var found bool
	for _, tx := range snap.Transactions {
		if tx.ID == msg.TransactionID {
			found = true
			break
		}
	}
	if !found {
		slog.WarnContext(ctx, "Posted transaction not found, ignoring event",
			"transaction_id", msg.TransactionID)
		return nil
	}

	balances := ledger.Balances(snap.Accounts, snap.Transactions)
	attrs := []any{
		"transaction_id", msg.TransactionID,
		"amount", msg.Amount.String(),
		"account_id", msg.AccountID,
		"balance", balances[msg.AccountID].String(),
	}
	if msg.ToAccountID != "" {
		attrs = append(attrs, "to_account_id", msg.ToAccountID, "to_balance", balances[msg.ToAccountID].String())
	}
	attrs = append(attrs,
		"net_worth", w.networth.Compute(snap).Total.String(),
		"ledger_version", snap.Version)
	slog.InfoContext(ctx, "Posting applied", attrs...)
	return nil
}
