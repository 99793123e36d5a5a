package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmate/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_TaskLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	due, err := task.ParseDate("2024-06-10")
	require.NoError(t, err)
	created, err := s.CreateTask(ctx, task.Task{
		Title:      "file taxes",
		Priority:   task.PriorityHigh,
		DueDate:    &due,
		Recurrence: &task.Recurrence{Type: task.Custom, Interval: 1, Unit: task.Years},
		Reminder:   &task.ReminderSetting{Enabled: true, MinutesBefore: 30},
		Category:   "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	tasks, err := s.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "2024-06-10", got.DueDate.String())
	assert.Equal(t, task.Recurrence{Type: task.Custom, Interval: 1, Unit: task.Years}, *got.Recurrence)
	assert.Equal(t, 30, got.Reminder.MinutesBefore)
	assert.Equal(t, "admin", got.Category)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	got.Completed = true
	got.Reminder = nil
	got.Recurrence = nil
	_, err = s.UpdateTask(ctx, got)
	require.NoError(t, err)

	tasks, err = s.FetchTasks(ctx)
	require.NoError(t, err)
	assert.True(t, tasks[0].Completed)
	assert.Nil(t, tasks[0].Reminder)
	assert.Nil(t, tasks[0].Recurrence)

	require.NoError(t, s.DeleteTask(ctx, got.ID))
	tasks, err = s.FetchTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestStore_DisabledReminderKeepsMinutes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, task.Task{
		Title:    "water plants",
		Reminder: &task.ReminderSetting{Enabled: true, MinutesBefore: 45},
	})
	require.NoError(t, err)

	created.Reminder.Enabled = false
	_, err = s.UpdateTask(ctx, created)
	require.NoError(t, err)

	tasks, err := s.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].Reminder)
	assert.Equal(t, task.ReminderSetting{Enabled: false, MinutesBefore: 45}, *tasks[0].Reminder)
	assert.False(t, tasks[0].HasActiveReminder())
}

func TestStore_MissingTask(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateTask(ctx, task.Task{ID: "nope", Title: "ghost"})
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "update task", perr.Op)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteTask(ctx, "nope"), ErrNotFound)
}

func TestStore_FetchOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		_, err := s.CreateTask(ctx, task.Task{Title: title, Priority: task.PriorityLow, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	tasks, err := s.FetchTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[0].Title)
	assert.Equal(t, "first", tasks[2].Title)
}

func TestStore_KeyValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "taskReminders")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "taskReminders", "[]"))
	require.NoError(t, s.Put(ctx, "taskReminders", `[{"taskId":"a"}]`))
	v, ok, err := s.Get(ctx, "taskReminders")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"taskId":"a"}]`, v)
}

func TestFileKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "kv.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Put(ctx, "a", "1"))
	require.NoError(t, kv.Put(ctx, "b", "2"))

	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}
