package log

import (
	"finledger/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldDuration      = "duration_ms"
	FieldTransactionID = "transaction_id"
	FieldTemplateID    = "template_id"
	FieldAccountID     = "account_id"
	FieldLoanID        = "loan_id"
	FieldPurchaseID    = "purchase_id"
	FieldMoneyBoxID    = "money_box_id"
	FieldAmount        = "amount"
	FieldType          = "type"
	FieldDueDate       = "due_date"
	FieldToday         = "today"
	FieldVersion       = "ledger_version"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentScheduler = "scheduler"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpProcessDue = "process_due"
	OpPublish    = "publish"
	OpRepay      = "record_repayment"
	OpMarkPaid   = "mark_installment_paid"
	OpDeposit    = "deposit"
	OpWithdraw   = "withdraw"
	OpDelete     = "delete"
	OpSummary    = "summary"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithTransaction adds the identifying fields of a posted transaction.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldTransactionID] = tx.ID
	f[FieldAccountID] = tx.AccountID
	f[FieldAmount] = tx.Amount.String()
	f[FieldType] = string(tx.Type)
	if tx.RecurringID != "" {
		f[FieldTemplateID] = tx.RecurringID
	}
	if !tx.Date.IsEmpty() {
		f[FieldDueDate] = tx.Date.String()
	}
	return f
}

func (f LogFields) WithTemplate(rt core.RecurringTransaction) LogFields {
	f[FieldTemplateID] = rt.ID
	if !rt.NextDueDate.IsEmpty() {
		f[FieldDueDate] = rt.NextDueDate.String()
	}
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
