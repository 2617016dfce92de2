// Package calendar implements date-interval arithmetic over core.Date.
//
// Each frequency has its own Stepper that encapsulates how a due date moves
// forward by one period. Month and year steps keep the day of month and clamp
// it to the last valid day of the target month, so Jan 31 + 1 month is Feb 28
// (Feb 29 in leap years) and Feb 29 + 1 year is Feb 28 on non-leap years.
package calendar

import (
	"fmt"
	"sync"
	"time"

	"finledger/internal/core"
)

// Stepper advances a date by one period of a frequency.
type Stepper interface {
	// Step returns the date one period after d. interval is only meaningful
	// for frequencies that carry their own length (custom_days).
	Step(d core.Date, interval int) (core.Date, error)
}

// StepperFunc adapts a plain function to the Stepper interface.
type StepperFunc func(d core.Date, interval int) (core.Date, error)

func (f StepperFunc) Step(d core.Date, interval int) (core.Date, error) { return f(d, interval) }

// DailyStepper moves one calendar day forward.
type DailyStepper struct{}

func (DailyStepper) Step(d core.Date, _ int) (core.Date, error) { return d.AddDays(1), nil }

// WeeklyStepper moves seven calendar days forward.
type WeeklyStepper struct{}

func (WeeklyStepper) Step(d core.Date, _ int) (core.Date, error) { return d.AddDays(7), nil }

// MonthlyStepper moves to the same day of the next month, clamped.
type MonthlyStepper struct{}

func (MonthlyStepper) Step(d core.Date, _ int) (core.Date, error) { return AddMonthsClamped(d, 1), nil }

// YearlyStepper moves to the same month and day of the next year, clamped.
type YearlyStepper struct{}

func (YearlyStepper) Step(d core.Date, _ int) (core.Date, error) { return AddMonthsClamped(d, 12), nil }

// CustomDaysStepper moves interval days forward; interval must be at least 1.
type CustomDaysStepper struct{}

func (CustomDaysStepper) Step(d core.Date, interval int) (core.Date, error) {
	if interval < 1 {
		return core.Date{}, core.Invalid("frequency", string(core.CustomDays),
			fmt.Sprintf("custom interval must be at least 1 day, got %d", interval))
	}
	return d.AddDays(interval), nil
}

var (
	mu       sync.RWMutex
	steppers = map[core.Frequency]Stepper{
		core.Daily:      DailyStepper{},
		core.Weekly:     WeeklyStepper{},
		core.Monthly:    MonthlyStepper{},
		core.Yearly:     YearlyStepper{},
		core.CustomDays: CustomDaysStepper{},
	}
)

// GetStepper returns the stepper registered for a frequency.
func GetStepper(frequency core.Frequency) (Stepper, error) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := steppers[frequency]
	if !ok {
		return nil, core.Invalid("frequency", string(frequency), "unknown frequency")
	}
	return s, nil
}

// RegisterStepper installs a stepper for a new or existing frequency.
func RegisterStepper(frequency core.Frequency, s Stepper) {
	mu.Lock()
	defer mu.Unlock()
	steppers[frequency] = s
}

// Advance returns the next date after d for the given frequency.
// customIntervalDays is only read for core.CustomDays.
func Advance(d core.Date, frequency core.Frequency, customIntervalDays int) (core.Date, error) {
	s, err := GetStepper(frequency)
	if err != nil {
		return core.Date{}, err
	}
	return s.Step(d, customIntervalDays)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayInMonth builds year-month-day, clamping day to the month's last day.
// month may be outside 1..12; it is normalized first (13 is January of year+1).
func DayInMonth(year int, month time.Month, day int) core.Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	if last := DaysInMonth(y, m); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return core.NewDate(y, int(m), day)
}

// AddMonthsClamped adds n whole months to d keeping its day of month,
// clamped to the last day of the resulting month.
func AddMonthsClamped(d core.Date, n int) core.Date {
	return DayInMonth(d.Year(), time.Month(d.Month()+n), d.Day())
}
