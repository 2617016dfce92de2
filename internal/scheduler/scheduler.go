// Package scheduler materializes recurring-transaction templates into
// concrete transactions.
//
// A template moves through three states:
//
//	ACTIVE --pause--> PAUSED --resume--> ACTIVE
//	ACTIVE --post--> ACTIVE | EXHAUSTED
//
// EXHAUSTED is terminal: the occurrence budget is spent or the next due date
// lies past the end date. Posting only happens while NextDueDate <= today, so
// running ProcessDue again over the templates it returned posts nothing new.
package scheduler

import (
	"fmt"

	"finledger/internal/calendar"
	"finledger/internal/core"

	"github.com/google/uuid"
)

// State is the lifecycle state of a recurring template.
type State string

const (
	Active    State = "ACTIVE"
	Paused    State = "PAUSED"
	Exhausted State = "EXHAUSTED"
)

// Result is the outcome of a ProcessDue batch. UpdatedTemplates holds only
// templates that posted at least once; the caller must persist them together
// with Posted.
type Result struct {
	Posted           []core.Transaction
	UpdatedTemplates []core.RecurringTransaction
	Errors           []string
}

// StateOf derives the state of rt. Exhaustion wins over pausing.
func StateOf(rt core.RecurringTransaction) State {
	if rt.RemainingOccurrences != nil && *rt.RemainingOccurrences <= 0 {
		return Exhausted
	}
	if !rt.EndDate.IsEmpty() && !rt.NextDueDate.IsEmpty() && rt.NextDueDate.After(rt.EndDate) {
		return Exhausted
	}
	if rt.IsPaused {
		return Paused
	}
	return Active
}

// IsDue reports whether rt should post at least once for today.
func IsDue(rt core.RecurringTransaction, today core.Date) bool {
	return StateOf(rt) == Active && !rt.NextDueDate.IsEmpty() && rt.NextDueDate.OnOrBefore(today)
}

// NewTemplate validates rt and initializes its scheduling fields: the first
// due date is the start date and the remaining counter starts at the
// occurrence cap.
func NewTemplate(rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	rt.NextDueDate = rt.StartDate
	rt.LastPostedDate = core.Date{}
	rt.RemainingOccurrences = nil
	if rt.Occurrences != nil {
		n := *rt.Occurrences
		rt.RemainingOccurrences = &n
	}
	if err := rt.Validate(); err != nil {
		return rt, err
	}
	return rt, nil
}

// Pause stops an active template from posting.
func Pause(rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if StateOf(rt) == Exhausted {
		return rt, core.Invalid("recurring transaction", rt.ID, "exhausted templates cannot be paused")
	}
	rt.IsPaused = true
	return rt, nil
}

// Resume lets a paused template post again. NextDueDate is left as is, so
// cycles missed while paused are caught up by the next ProcessDue.
func Resume(rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if StateOf(rt) == Exhausted {
		return rt, core.Invalid("recurring transaction", rt.ID, "exhausted templates cannot be resumed")
	}
	rt.IsPaused = false
	return rt, nil
}

// Post materializes a single occurrence of rt dated at its NextDueDate and
// returns the transaction together with the advanced template.
func Post(rt core.RecurringTransaction, accounts []core.Account, today core.Date) (core.Transaction, core.RecurringTransaction, error) {
	return post(rt, indexAccounts(accounts), today)
}

// ProcessDue posts every occurrence that is due on or before today, across all
// templates. A template that fell behind posts once per missed cycle. A
// failing template stops at the failure and is reported in Errors; the
// postings it made before failing are kept and the rest of the batch goes on.
func ProcessDue(templates []core.RecurringTransaction, accounts []core.Account, today core.Date) Result {
	idx := indexAccounts(accounts)
	var res Result

	for _, rt := range templates {
		if rt.NextDueDate.IsEmpty() {
			rt.NextDueDate = rt.StartDate
		}
		if !IsDue(rt, today) {
			continue
		}

		current := rt
		posted := 0
		for IsDue(current, today) {
			tx, next, err := post(current, idx, today)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("recurring transaction %s (due %s): %v", rt.ID, current.NextDueDate, err))
				break
			}
			res.Posted = append(res.Posted, tx)
			current = next
			posted++
		}
		if posted > 0 {
			res.UpdatedTemplates = append(res.UpdatedTemplates, current)
		}
	}
	return res
}

// Upcoming previews the next n due dates of rt without changing it. The
// preview stops early when the template would become exhausted.
func Upcoming(rt core.RecurringTransaction, n int) ([]core.Date, error) {
	if rt.NextDueDate.IsEmpty() {
		rt.NextDueDate = rt.StartDate
	}
	var out []core.Date
	remaining := -1
	if rt.RemainingOccurrences != nil {
		remaining = *rt.RemainingOccurrences
	}
	next := rt.NextDueDate
	for len(out) < n && remaining != 0 {
		if !rt.EndDate.IsEmpty() && next.After(rt.EndDate) {
			break
		}
		out = append(out, next)
		if remaining > 0 {
			remaining--
		}
		var err error
		next, err = calendar.Advance(next, rt.Frequency, rt.CustomIntervalDays)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// PostingID is the deterministic id of the transaction materialized from
// template id for the given due date.
func PostingID(templateID string, due core.Date) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("recurring:"+templateID+":"+due.String())).String()
}

type accountIndex map[string]struct{}

func indexAccounts(accounts []core.Account) accountIndex {
	idx := make(accountIndex, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = struct{}{}
	}
	return idx
}

func (idx accountIndex) has(id string) bool {
	_, ok := idx[id]
	return ok
}

func post(rt core.RecurringTransaction, accounts accountIndex, today core.Date) (core.Transaction, core.RecurringTransaction, error) {
	switch StateOf(rt) {
	case Paused:
		return core.Transaction{}, rt, core.Invalid("recurring transaction", rt.ID, "template is paused")
	case Exhausted:
		return core.Transaction{}, rt, core.Invalid("recurring transaction", rt.ID, "template is exhausted")
	}
	due := rt.NextDueDate
	if due.IsEmpty() || due.After(today) {
		return core.Transaction{}, rt, core.Invalid("recurring transaction", rt.ID, "not due until "+due.String())
	}
	if err := checkTarget(rt, accounts); err != nil {
		return core.Transaction{}, rt, err
	}
	next, err := calendar.Advance(due, rt.Frequency, rt.CustomIntervalDays)
	if err != nil {
		return core.Transaction{}, rt, err
	}

	tx := core.Transaction{
		ID:          PostingID(rt.ID, due),
		Type:        rt.Type,
		Amount:      rt.Amount,
		Date:        due,
		Description: rt.Description,
		AccountID:   rt.AccountID,
		CategoryID:  rt.CategoryID,
		RecurringID: rt.ID,
	}
	if rt.Type == core.Transfer {
		tx.ToAccountID = rt.ToAccountID
		tx.CategoryID = ""
	}

	updated := rt
	if rt.RemainingOccurrences != nil {
		left := *rt.RemainingOccurrences - 1
		updated.RemainingOccurrences = &left
	}
	updated.LastPostedDate = due
	updated.NextDueDate = next
	return tx, updated, nil
}

// checkTarget verifies that the accounts a posting would touch still exist.
func checkTarget(rt core.RecurringTransaction, accounts accountIndex) error {
	if !rt.Type.IsValid() {
		return core.Invalid("recurring transaction", rt.ID, "unknown type "+string(rt.Type))
	}
	if !rt.Amount.IsPositive() {
		return core.Invalid("recurring transaction", rt.ID, "amount must be positive")
	}
	if !accounts.has(rt.AccountID) {
		return core.Integrity("recurring transaction", rt.ID, "account "+rt.AccountID+" does not exist")
	}
	if rt.Type != core.Transfer {
		return nil
	}
	if rt.ToAccountID == rt.AccountID {
		return core.Integrity("recurring transaction", rt.ID, "transfer source and destination are the same account")
	}
	if !accounts.has(rt.ToAccountID) {
		return core.Integrity("recurring transaction", rt.ID, "destination account "+rt.ToAccountID+" does not exist")
	}
	return nil
}
