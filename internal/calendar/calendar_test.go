package calendar

import (
	"testing"
	"time"

	"finledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	tests := []struct {
		name      string
		from      string
		frequency core.Frequency
		interval  int
		want      string
	}{
		{"daily", "2024-02-28", core.Daily, 0, "2024-02-29"},
		{"daily across year", "2023-12-31", core.Daily, 0, "2024-01-01"},
		{"weekly", "2024-01-29", core.Weekly, 0, "2024-02-05"},
		{"monthly plain", "2024-01-15", core.Monthly, 0, "2024-02-15"},
		{"monthly clamps in leap year", "2024-01-31", core.Monthly, 0, "2024-02-29"},
		{"monthly clamps in common year", "2023-01-31", core.Monthly, 0, "2023-02-28"},
		{"monthly clamps to 30", "2024-03-31", core.Monthly, 0, "2024-04-30"},
		{"monthly december rolls year", "2024-12-31", core.Monthly, 0, "2025-01-31"},
		{"yearly", "2024-06-15", core.Yearly, 0, "2025-06-15"},
		{"yearly leap day clamps", "2024-02-29", core.Yearly, 0, "2025-02-28"},
		{"custom days", "2024-01-01", core.CustomDays, 10, "2024-01-11"},
		{"custom single day", "2024-01-01", core.CustomDays, 1, "2024-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(core.MustParseDate(tt.from), tt.frequency, tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAdvance_InvalidConfiguration(t *testing.T) {
	_, err := Advance(core.NewDate(2024, 1, 1), core.CustomDays, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = Advance(core.NewDate(2024, 1, 1), core.CustomDays, -3)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = Advance(core.NewDate(2024, 1, 1), core.Frequency("fortnightly"), 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestRegisterStepper(t *testing.T) {
	fortnightly := core.Frequency("fortnightly")
	RegisterStepper(fortnightly, StepperFunc(func(d core.Date, _ int) (core.Date, error) {
		return d.AddDays(14), nil
	}))
	t.Cleanup(func() {
		mu.Lock()
		delete(steppers, fortnightly)
		mu.Unlock()
	})

	got, err := Advance(core.NewDate(2024, 1, 1), fortnightly, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.String())
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2100, time.February))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))
}

func TestAddMonthsClamped(t *testing.T) {
	start := core.MustParseDate("2024-01-31")
	tests := []struct {
		months int
		want   string
	}{
		{0, "2024-01-31"},
		{1, "2024-02-29"},
		{2, "2024-03-31"},
		{3, "2024-04-30"},
		{11, "2024-12-31"},
		{13, "2025-02-28"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddMonthsClamped(start, tt.months).String(), "months=%d", tt.months)
	}
}
