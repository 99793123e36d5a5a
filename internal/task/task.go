package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyTitle      = errors.New("title cannot be empty")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidReminder = errors.New("invalid reminder")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities, high first when sorted descending.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func ParsePriority(v string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, v)
	}
}

type RecurrenceType string

const (
	Daily   RecurrenceType = "daily"
	Weekly  RecurrenceType = "weekly"
	Monthly RecurrenceType = "monthly"
	Custom  RecurrenceType = "custom"
)

type Unit string

const (
	Days   Unit = "days"
	Weeks  Unit = "weeks"
	Months Unit = "months"
	Years  Unit = "years"
)

// Recurrence describes how a completed task spawns its next occurrence.
// Interval and Unit are only read when Type is Custom.
type Recurrence struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval,omitempty"`
	Unit     Unit           `json:"unit,omitempty"`
}

// ReminderSetting is the user's reminder intent for a task. It has no effect
// unless the task has a due date.
type ReminderSetting struct {
	Enabled       bool `json:"enabled"`
	MinutesBefore int  `json:"minutesBefore"`
}

type Task struct {
	ID            string           `json:"id"`
	SeriesID      string           `json:"seriesId,omitempty"`
	Title         string           `json:"title"`
	Description   string           `json:"description,omitempty"`
	Priority      Priority         `json:"priority"`
	DueDate       *Date            `json:"dueDate,omitempty"`
	Completed     bool             `json:"completed"`
	Recurrence    *Recurrence      `json:"recurrence,omitempty"`
	Reminder      *ReminderSetting `json:"reminder,omitempty"`
	Category      string           `json:"category,omitempty"`
	CategoryColor string           `json:"categoryColor,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// NewID returns a fresh task identifier.
func NewID() string {
	return uuid.NewString()
}

func (t Task) IsRecurring() bool {
	return t.Recurrence != nil
}

// HasActiveReminder reports whether the task should have a scheduled reminder.
func (t Task) HasActiveReminder() bool {
	return t.DueDate != nil && t.Reminder != nil && t.Reminder.Enabled
}

// Series returns the id shared by every occurrence of a repeating task.
func (t Task) Series() string {
	if t.SeriesID != "" {
		return t.SeriesID
	}
	return t.ID
}

// Validate normalises the task in place and reports the first invalid field.
func (t *Task) Validate() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return ErrEmptyTitle
	}
	p, err := ParsePriority(string(t.Priority))
	if err != nil {
		return err
	}
	t.Priority = p
	if t.Reminder != nil && t.Reminder.MinutesBefore < 0 {
		return fmt.Errorf("%w: minutes before must not be negative", ErrInvalidReminder)
	}
	return nil
}

// Clone returns a deep copy so pointer fields can be edited independently.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.Recurrence != nil {
		r := *t.Recurrence
		out.Recurrence = &r
	}
	if t.Reminder != nil {
		r := *t.Reminder
		out.Reminder = &r
	}
	return out
}
