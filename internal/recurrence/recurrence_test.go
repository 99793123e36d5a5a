package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmate/internal/task"
)

func date(t *testing.T, s string) task.Date {
	t.Helper()
	d, err := task.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name string
		from string
		rule task.Recurrence
		want string
	}{
		{"daily crosses month", "2024-01-31", task.Recurrence{Type: task.Daily}, "2024-02-01"},
		{"daily crosses year", "2023-12-31", task.Recurrence{Type: task.Daily}, "2024-01-01"},
		{"weekly crosses month", "2024-02-26", task.Recurrence{Type: task.Weekly}, "2024-03-04"},
		{"monthly plain", "2024-03-15", task.Recurrence{Type: task.Monthly}, "2024-04-15"},
		// February 31 does not exist; the overflow rolls into March.
		{"monthly month end rollover", "2024-01-31", task.Recurrence{Type: task.Monthly}, "2024-03-02"},
		{"custom days", "2024-03-01", task.Recurrence{Type: task.Custom, Interval: 10, Unit: task.Days}, "2024-03-11"},
		{"custom weeks", "2024-03-01", task.Recurrence{Type: task.Custom, Interval: 3, Unit: task.Weeks}, "2024-03-22"},
		{"custom months", "2024-11-15", task.Recurrence{Type: task.Custom, Interval: 2, Unit: task.Months}, "2025-01-15"},
		{"custom years leap day", "2024-02-29", task.Recurrence{Type: task.Custom, Interval: 1, Unit: task.Years}, "2025-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDueDate(date(t, tt.from), tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNextDueDate_IsPure(t *testing.T) {
	from := date(t, "2024-01-31")
	rules := []task.Recurrence{
		{Type: task.Daily},
		{Type: task.Weekly},
		{Type: task.Monthly},
		{Type: task.Custom, Interval: 5, Unit: task.Months},
	}
	for _, r := range rules {
		a, err := NextDueDate(from, r)
		require.NoError(t, err)
		b, err := NextDueDate(from, r)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, "2024-01-31", from.String())
	}
}

func TestNextDueDate_Invalid(t *testing.T) {
	rules := []task.Recurrence{
		{Type: "fortnightly"},
		{Type: task.Custom, Interval: 2, Unit: "decades"},
		{Type: task.Custom, Interval: 0, Unit: task.Days},
	}
	for _, r := range rules {
		_, err := NextDueDate(date(t, "2024-01-01"), r)
		var invalid *InvalidRecurrenceError
		require.True(t, errors.As(err, &invalid), "rule %+v", r)
		assert.Equal(t, r, invalid.Recurrence)
	}
	assert.Error(t, Validate(task.Recurrence{Type: "hourly"}))
	assert.NoError(t, Validate(task.Recurrence{Type: task.Weekly}))
}

func TestSuccessor(t *testing.T) {
	due := date(t, "2024-03-01")
	now := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	orig := task.Task{
		ID:         "first",
		Title:      "stand-up notes",
		Priority:   task.PriorityHigh,
		DueDate:    &due,
		Completed:  true,
		Recurrence: &task.Recurrence{Type: task.Custom, Interval: 3, Unit: task.Weeks},
		Reminder:   &task.ReminderSetting{Enabled: true, MinutesBefore: 15},
		CreatedAt:  now.Add(-72 * time.Hour),
	}

	next, err := Successor(orig, now)
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID, next.ID)
	assert.NotEmpty(t, next.ID)
	assert.Equal(t, "first", next.SeriesID)
	assert.False(t, next.Completed)
	assert.Equal(t, "2024-03-22", next.DueDate.String())
	assert.Equal(t, now, next.CreatedAt)
	assert.Equal(t, orig.Title, next.Title)
	assert.Equal(t, 15, next.Reminder.MinutesBefore)

	// the original is left as it was
	assert.True(t, orig.Completed)
	assert.Equal(t, "2024-03-01", orig.DueDate.String())

	again, err := Successor(next, now)
	require.NoError(t, err)
	assert.Equal(t, "first", again.SeriesID)
}

func TestSuccessor_Errors(t *testing.T) {
	_, err := Successor(task.Task{Title: "once"}, time.Now())
	assert.ErrorIs(t, err, ErrNotRecurring)

	_, err = Successor(task.Task{Title: "undated", Recurrence: &task.Recurrence{Type: task.Daily}}, time.Now())
	assert.ErrorIs(t, err, ErrNoDueDate)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Repeats daily", Describe(task.Recurrence{Type: task.Daily}))
	assert.Equal(t, "Repeats every 1 week", Describe(task.Recurrence{Type: task.Custom, Interval: 1, Unit: task.Weeks}))
	assert.Equal(t, "Repeats every 3 months", Describe(task.Recurrence{Type: task.Custom, Interval: 3, Unit: task.Months}))
}
