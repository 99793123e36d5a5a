// Package reminder schedules, persists and fires task reminders.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskmate/internal/task"
)

// StateKey is the key the reminder list is stored under.
const StateKey = "taskReminders"

type Reminder struct {
	TaskID        string    `json:"taskId"`
	SeriesID      string    `json:"seriesId,omitempty"`
	TaskTitle     string    `json:"taskTitle"`
	DueDate       task.Date `json:"dueDate"`
	MinutesBefore int       `json:"minutesBefore"`
	ReminderTime  time.Time `json:"reminderTime"`
	IsRecurring   bool      `json:"isRecurring"`
	Notified      bool      `json:"notified"`
}

// Message is the notification body shown when r fires.
func (r Reminder) Message() string {
	when := "now"
	switch {
	case r.MinutesBefore == 1:
		when = "in 1 minute"
	case r.MinutesBefore > 1:
		when = fmt.Sprintf("in %d minutes", r.MinutesBefore)
	}
	return fmt.Sprintf("%q is due %s!", r.TaskTitle, when)
}

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Platform delivers native notifications.
type Platform interface {
	QueryPermission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	ShowNotification(ctx context.Context, title, body string) error
}

// Revoker is implemented by platforms that let the user withdraw a grant
// from inside the app.
type Revoker interface {
	RevokePermission(ctx context.Context) error
}

var ErrRevokeUnsupported = errors.New("notification permission cannot be revoked on this platform")

// Prompter shows the explanatory prompt that precedes the platform
// permission dialog. It blocks until the user answers.
type Prompter interface {
	Confirm(ctx context.Context) (bool, error)
}

type PrompterFunc func(ctx context.Context) (bool, error)

func (f PrompterFunc) Confirm(ctx context.Context) (bool, error) {
	return f(ctx)
}

// StateStore persists the full reminder list. Load returns nil when nothing
// has been saved yet.
type StateStore interface {
	Load(ctx context.Context) ([]Reminder, error)
	Save(ctx context.Context, reminders []Reminder) error
}

// KV is a durable string key-value store.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// KVState stores reminders as a JSON array under StateKey.
type KVState struct {
	KV KV
}

func (s KVState) Load(ctx context.Context) ([]Reminder, error) {
	raw, ok, err := s.KV.Get(ctx, StateKey)
	if err != nil || !ok {
		return nil, err
	}
	var out []Reminder
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", StateKey, err)
	}
	return out, nil
}

func (s KVState) Save(ctx context.Context, reminders []Reminder) error {
	if reminders == nil {
		reminders = []Reminder{}
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return err
	}
	return s.KV.Put(ctx, StateKey, string(data))
}
