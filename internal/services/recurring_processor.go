package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/scheduler"
)

// LedgerStore is the persistence the scheduler run needs.
type LedgerStore interface {
	LoadSnapshot(ctx context.Context) (core.Snapshot, error)
	ApplyPosting(ctx context.Context, posted []core.Transaction, templates []core.RecurringTransaction) error
}

// EventPublisher announces postings to other processes.
type EventPublisher interface {
	PublishTransactionPosted(ctx context.Context, tx core.Transaction) error
}

// ProcessReport summarizes one ProcessDue run.
type ProcessReport struct {
	Today            core.Date
	Posted           []core.Transaction
	TemplatesUpdated int
	// Errors holds one entry per template that failed; the rest of the
	// batch was still applied.
	Errors          []string
	PublishFailures int
}

// RecurringProcessor materializes due recurring transactions and stores them.
type RecurringProcessor struct {
	store     LedgerStore
	publisher EventPublisher
}

// NewRecurringProcessor creates a processor. publisher may be nil to skip
// event publishing.
func NewRecurringProcessor(store LedgerStore, publisher EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		publisher: publisher,
	}
}

// ProcessDue posts every occurrence due on or before today. Postings and the
// advanced templates are stored in one write, so a crash never leaves a
// template pointing past a posting that was not saved. Running it again for
// the same day posts nothing.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (ProcessReport, error) {
	report := ProcessReport{Today: today}
	if p.store == nil {
		return report, errors.New("processor not properly initialized")
	}
	if err := today.Validate(); err != nil {
		return report, fmt.Errorf("today: %w", err)
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentScheduler)

	snap, err := p.store.LoadSnapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("load snapshot: %w", err)
	}

	logger.InfoContext(ctx, "Processing recurring transactions",
		"total_templates", len(snap.Recurring),
		log.FieldToday, today.String(),
		log.FieldVersion, snap.Version)

	res := scheduler.ProcessDue(snap.Recurring, snap.Accounts, today)
	report.Errors = res.Errors
	for _, msg := range res.Errors {
		logger.ErrorContext(ctx, "Recurring template failed", log.FieldError, msg)
	}

	if len(res.Posted) == 0 {
		logger.InfoContext(ctx, "No recurring transactions due", "errors", len(res.Errors))
		return report, nil
	}

	if err := p.store.ApplyPosting(ctx, res.Posted, res.UpdatedTemplates); err != nil {
		return report, fmt.Errorf("apply postings: %w", err)
	}
	report.Posted = res.Posted
	report.TemplatesUpdated = len(res.UpdatedTemplates)

	for _, tx := range res.Posted {
		logger.InfoContext(ctx, "Posted recurring transaction", log.NewFields().WithTransaction(tx).ToSlice()...)
		if p.publisher == nil {
			continue
		}
		// The posting is already stored; a lost event is only logged.
		if err := p.publisher.PublishTransactionPosted(ctx, tx); err != nil {
			report.PublishFailures++
			slog.WarnContext(ctx, "Failed to publish posted transaction",
				log.FieldTransactionID, tx.ID,
				log.FieldError, err)
		}
	}

	logger.InfoContext(ctx, "Recurring processing complete",
		"posted", len(report.Posted),
		"templates_updated", report.TemplatesUpdated,
		"errors", len(report.Errors),
		"publish_failures", report.PublishFailures)

	return report, nil
}
