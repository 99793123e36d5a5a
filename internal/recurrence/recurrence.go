// Package recurrence computes the next occurrence of repeating tasks.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"taskmate/internal/task"
)

var (
	ErrNotRecurring = errors.New("task does not repeat")
	ErrNoDueDate    = errors.New("repeating task has no due date")
)

// InvalidRecurrenceError reports a recurrence rule that cannot be evaluated.
type InvalidRecurrenceError struct {
	Recurrence task.Recurrence
	Reason     string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence %+v: %s", e.Recurrence, e.Reason)
}

// NextDueDate advances current by one step of r. It works on the date's
// calendar fields only; month steps follow time.AddDate normalisation.
func NextDueDate(current task.Date, r task.Recurrence) (task.Date, error) {
	switch r.Type {
	case task.Daily:
		return current.AddDate(0, 0, 1), nil
	case task.Weekly:
		return current.AddDate(0, 0, 7), nil
	case task.Monthly:
		return current.AddDate(0, 1, 0), nil
	case task.Custom:
		if r.Interval < 1 {
			return task.Date{}, &InvalidRecurrenceError{Recurrence: r, Reason: "interval must be positive"}
		}
		switch r.Unit {
		case task.Days:
			return current.AddDate(0, 0, r.Interval), nil
		case task.Weeks:
			return current.AddDate(0, 0, 7*r.Interval), nil
		case task.Months:
			return current.AddDate(0, r.Interval, 0), nil
		case task.Years:
			return current.AddDate(r.Interval, 0, 0), nil
		default:
			return task.Date{}, &InvalidRecurrenceError{Recurrence: r, Reason: fmt.Sprintf("unknown unit %q", r.Unit)}
		}
	default:
		return task.Date{}, &InvalidRecurrenceError{Recurrence: r, Reason: fmt.Sprintf("unknown type %q", r.Type)}
	}
}

// Validate checks that r can be evaluated without computing anything useful.
func Validate(r task.Recurrence) error {
	_, err := NextDueDate(task.Date{Year: 2000, Month: time.January, Day: 1}, r)
	return err
}

// Successor builds the next occurrence of a repeating task. The returned task
// has a fresh id, is not completed and belongs to the same series as t.
// t itself is not modified.
func Successor(t task.Task, now time.Time) (task.Task, error) {
	if t.Recurrence == nil {
		return task.Task{}, ErrNotRecurring
	}
	if t.DueDate == nil {
		return task.Task{}, ErrNoDueDate
	}
	next, err := NextDueDate(*t.DueDate, *t.Recurrence)
	if err != nil {
		return task.Task{}, err
	}
	out := t.Clone()
	out.ID = task.NewID()
	out.SeriesID = t.Series()
	out.Completed = false
	out.DueDate = &next
	out.CreatedAt = now
	return out, nil
}

// Describe returns a short human-readable form of r.
func Describe(r task.Recurrence) string {
	switch r.Type {
	case task.Daily:
		return "Repeats daily"
	case task.Weekly:
		return "Repeats weekly"
	case task.Monthly:
		return "Repeats monthly"
	case task.Custom:
		unit := string(r.Unit)
		if r.Interval == 1 && len(unit) > 1 {
			unit = unit[:len(unit)-1]
		}
		return fmt.Sprintf("Repeats every %d %s", r.Interval, unit)
	default:
		return "Repeats"
	}
}
