package scheduler

import (
	"strings"
	"testing"

	"finledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accounts = []core.Account{
	{ID: "checking", Name: "Checking"},
	{ID: "savings", Name: "Savings"},
}

func intPtr(n int) *int { return &n }

func template(t *testing.T, mutate func(*core.RecurringTransaction)) core.RecurringTransaction {
	t.Helper()
	rt := core.RecurringTransaction{
		ID:          "rent",
		Description: "Rent",
		Amount:      decimal.NewFromInt(1500),
		Type:        core.Expense,
		AccountID:   "checking",
		CategoryID:  "housing",
		Frequency:   core.Monthly,
		StartDate:   core.MustParseDate("2024-01-01"),
	}
	if mutate != nil {
		mutate(&rt)
	}
	rt, err := NewTemplate(rt)
	require.NoError(t, err)
	return rt
}

func dates(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Date.String()
	}
	return out
}

func TestProcessDue_MonthlyCatchUp(t *testing.T) {
	rt := template(t, nil)

	res := ProcessDue([]core.RecurringTransaction{rt}, accounts, core.MustParseDate("2024-04-01"))

	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01"}, dates(res.Posted))
	require.Len(t, res.UpdatedTemplates, 1)
	updated := res.UpdatedTemplates[0]
	assert.Equal(t, "2024-05-01", updated.NextDueDate.String())
	assert.Equal(t, "2024-04-01", updated.LastPostedDate.String())
	assert.Nil(t, updated.RemainingOccurrences)
	assert.Equal(t, Active, StateOf(updated))

	for _, tx := range res.Posted {
		assert.Equal(t, "rent", tx.RecurringID)
		assert.Equal(t, "housing", tx.CategoryID)
		assert.NoError(t, tx.Validate())
	}
}

func TestProcessDue_RerunIsNoop(t *testing.T) {
	rt := template(t, nil)
	today := core.MustParseDate("2024-04-01")

	first := ProcessDue([]core.RecurringTransaction{rt}, accounts, today)
	require.Len(t, first.Posted, 4)

	second := ProcessDue(first.UpdatedTemplates, accounts, today)
	assert.Empty(t, second.Posted)
	assert.Empty(t, second.UpdatedTemplates)
	assert.Empty(t, second.Errors)
}

func TestProcessDue_OccurrencesExhaust(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) { rt.Occurrences = intPtr(2) })
	templates := []core.RecurringTransaction{rt}

	res := ProcessDue(templates, accounts, core.MustParseDate("2024-01-15"))
	require.Len(t, res.Posted, 1)
	templates = res.UpdatedTemplates
	assert.Equal(t, 1, *templates[0].RemainingOccurrences)
	assert.Equal(t, Active, StateOf(templates[0]))

	res = ProcessDue(templates, accounts, core.MustParseDate("2024-02-15"))
	require.Len(t, res.Posted, 1)
	templates = res.UpdatedTemplates
	assert.Equal(t, 0, *templates[0].RemainingOccurrences)
	assert.Equal(t, Exhausted, StateOf(templates[0]))

	res = ProcessDue(templates, accounts, core.MustParseDate("2025-12-31"))
	assert.Empty(t, res.Posted)
	assert.Empty(t, res.UpdatedTemplates)
}

func TestProcessDue_CatchUpStopsAtOccurrenceCap(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) { rt.Occurrences = intPtr(3) })

	res := ProcessDue([]core.RecurringTransaction{rt}, accounts, core.MustParseDate("2024-12-31"))
	assert.Equal(t, []string{"2024-01-01", "2024-02-01", "2024-03-01"}, dates(res.Posted))
	assert.Equal(t, Exhausted, StateOf(res.UpdatedTemplates[0]))
}

func TestProcessDue_EndDate(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) {
		rt.Frequency = core.Weekly
		rt.EndDate = core.MustParseDate("2024-01-20")
	})

	res := ProcessDue([]core.RecurringTransaction{rt}, accounts, core.MustParseDate("2024-03-01"))
	assert.Equal(t, []string{"2024-01-01", "2024-01-08", "2024-01-15"}, dates(res.Posted))
	updated := res.UpdatedTemplates[0]
	assert.Equal(t, "2024-01-22", updated.NextDueDate.String())
	assert.Equal(t, Exhausted, StateOf(updated))
}

func TestProcessDue_SkipsPausedAndFuture(t *testing.T) {
	paused := template(t, func(rt *core.RecurringTransaction) { rt.ID = "paused" })
	paused, err := Pause(paused)
	require.NoError(t, err)
	future := template(t, func(rt *core.RecurringTransaction) {
		rt.ID = "future"
		rt.StartDate = core.MustParseDate("2024-06-01")
	})

	res := ProcessDue([]core.RecurringTransaction{paused, future}, accounts, core.MustParseDate("2024-05-31"))
	assert.Empty(t, res.Posted)
	assert.Empty(t, res.UpdatedTemplates)
	assert.Empty(t, res.Errors)
}

func TestProcessDue_PartialFailure(t *testing.T) {
	good := template(t, nil)
	orphan := template(t, func(rt *core.RecurringTransaction) {
		rt.ID = "orphan"
		rt.AccountID = "closed-account"
	})
	badInterval := template(t, func(rt *core.RecurringTransaction) {
		rt.ID = "custom"
		rt.Frequency = core.CustomDays
		rt.CustomIntervalDays = 3
	})
	badInterval.CustomIntervalDays = 0 // corrupted after creation

	res := ProcessDue([]core.RecurringTransaction{orphan, badInterval, good}, accounts, core.MustParseDate("2024-02-01"))

	require.Len(t, res.Errors, 2)
	assert.True(t, strings.Contains(res.Errors[0], "orphan"), res.Errors[0])
	assert.True(t, strings.Contains(res.Errors[1], "custom"), res.Errors[1])
	assert.Equal(t, []string{"2024-01-01", "2024-02-01"}, dates(res.Posted))
	require.Len(t, res.UpdatedTemplates, 1)
	assert.Equal(t, "rent", res.UpdatedTemplates[0].ID)
}

func TestProcessDue_Transfer(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) {
		rt.Type = core.Transfer
		rt.ToAccountID = "savings"
		rt.CategoryID = ""
		rt.Frequency = core.CustomDays
		rt.CustomIntervalDays = 15
	})

	res := ProcessDue([]core.RecurringTransaction{rt}, accounts, core.MustParseDate("2024-01-31"))
	require.Empty(t, res.Errors)
	assert.Equal(t, []string{"2024-01-01", "2024-01-16", "2024-01-31"}, dates(res.Posted))
	for _, tx := range res.Posted {
		assert.Equal(t, "savings", tx.ToAccountID)
		assert.Empty(t, tx.CategoryID)
	}
}

func TestPost(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) { rt.Occurrences = intPtr(5) })
	today := core.MustParseDate("2024-01-01")

	tx, updated, err := Post(rt, accounts, today)
	require.NoError(t, err)
	assert.Equal(t, PostingID("rent", today), tx.ID)
	assert.Equal(t, 4, *updated.RemainingOccurrences)
	assert.Equal(t, 5, *rt.RemainingOccurrences, "input template untouched")

	_, _, err = Post(updated, accounts, today)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration, "next cycle is not due yet")

	_, _, err = Post(rt, nil, today)
	assert.ErrorIs(t, err, core.ErrReferentialIntegrity)
}

func TestPauseResume(t *testing.T) {
	rt := template(t, nil)
	paused, err := Pause(rt)
	require.NoError(t, err)
	assert.Equal(t, Paused, StateOf(paused))
	assert.Equal(t, rt.NextDueDate, paused.NextDueDate)

	resumed, err := Resume(paused)
	require.NoError(t, err)
	assert.Equal(t, Active, StateOf(resumed))
	assert.Equal(t, rt.NextDueDate, resumed.NextDueDate)

	done := rt
	done.RemainingOccurrences = intPtr(0)
	_, err = Pause(done)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
	_, err = Resume(done)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestUpcoming(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) {
		rt.StartDate = core.MustParseDate("2024-01-31")
		rt.Occurrences = intPtr(3)
	})

	got, err := Upcoming(rt, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-31", got[0].String())
	assert.Equal(t, "2024-02-29", got[1].String())
	assert.Equal(t, "2024-03-29", got[2].String())
}

func TestNewTemplate(t *testing.T) {
	rt := template(t, func(rt *core.RecurringTransaction) { rt.Occurrences = intPtr(4) })
	assert.Equal(t, "2024-01-01", rt.NextDueDate.String())
	require.NotNil(t, rt.RemainingOccurrences)
	assert.Equal(t, 4, *rt.RemainingOccurrences)
	assert.NotSame(t, rt.Occurrences, rt.RemainingOccurrences)

	_, err := NewTemplate(core.RecurringTransaction{ID: "x"})
	assert.Error(t, err)
}
