package worker

import (
	"context"
	"log/slog"
	"time"

	"finledger/internal/core"
	"finledger/internal/services"
)

// DueProcessor posts due recurring transactions for a given day.
type DueProcessor interface {
	ProcessDue(ctx context.Context, today core.Date) (services.ProcessReport, error)
}

// RecurringWorker runs the recurring processor on a fixed interval.
type RecurringWorker struct {
	processor DueProcessor
	now       func() time.Time
}

func NewRecurringWorker(processor DueProcessor) *RecurringWorker {
	return &RecurringWorker{
		processor: processor,
		now:       time.Now,
	}
}

// RunOnce processes everything due as of the worker's current local date.
func (w *RecurringWorker) RunOnce(ctx context.Context) (services.ProcessReport, error) {
	today := core.DateOf(w.now())
	report, err := w.processor.ProcessDue(ctx, today)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err, "today", today.String())
		return report, err
	}
	return report, nil
}

// Run processes once on startup and then on every tick until ctx is
// cancelled. A failed run is logged and retried on the next tick.
func (w *RecurringWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Running initial recurring processing")
	if report, err := w.RunOnce(ctx); err == nil {
		slog.InfoContext(ctx, "Initial processing complete", "posted", len(report.Posted))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			report, err := w.RunOnce(ctx)
			if err != nil {
				continue
			}
			slog.InfoContext(ctx, "Periodic processing complete",
				"posted", len(report.Posted),
				"errors", len(report.Errors),
				"next_check", now.Add(interval).Format("15:04:05"))
		}
	}
}
