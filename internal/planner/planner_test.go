package planner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmate/internal/recurrence"
	"taskmate/internal/reminder"
	"taskmate/internal/storage"
	"taskmate/internal/task"
)

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *reminder.Scheduler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := reminder.New(reminder.KVState{KV: store}, nil,
		reminder.WithClock(func() time.Time { return testNow }),
		reminder.WithLocation(time.UTC))
	t.Cleanup(sched.Close)

	svc := New(store, sched, nil)
	svc.now = func() time.Time { return testNow }
	return svc, sched, store
}

func date(t *testing.T, s string) *task.Date {
	t.Helper()
	d, err := task.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestCreate_SchedulesReminder(t *testing.T) {
	svc, sched, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.Task{
		Title:    "dentist",
		DueDate:  date(t, "2024-03-05"),
		Reminder: &task.ReminderSetting{Enabled: true, MinutesBefore: 60},
	})
	require.NoError(t, err)
	assert.Equal(t, task.PriorityMedium, created.Priority)
	assert.Equal(t, testNow, created.CreatedAt)

	rs := sched.Reminders()
	require.Len(t, rs, 1)
	assert.Equal(t, created.ID, rs[0].TaskID)
	assert.Equal(t, time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC), rs[0].ReminderTime)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, task.Task{Title: " "})
	assert.ErrorIs(t, err, task.ErrEmptyTitle)

	_, err = svc.Create(ctx, task.Task{Title: "x", Recurrence: &task.Recurrence{Type: task.Custom, Interval: 2, Unit: "fortnights"}})
	var invalid *recurrence.InvalidRecurrenceError
	assert.True(t, errors.As(err, &invalid))
}

func TestToggle_RepeatingTaskSpawnsNextOccurrence(t *testing.T) {
	svc, sched, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, task.Task{
		Title:      "review budget",
		DueDate:    date(t, "2024-03-01"),
		Recurrence: &task.Recurrence{Type: task.Custom, Interval: 3, Unit: task.Weeks},
		Reminder:   &task.ReminderSetting{Enabled: true, MinutesBefore: 30},
	})
	require.NoError(t, err)

	res, err := svc.Toggle(ctx, orig.ID)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	require.NotNil(t, res.Next)
	assert.Equal(t, "2024-03-22", res.Next.DueDate.String())
	assert.Equal(t, orig.ID, res.Next.SeriesID)
	assert.False(t, res.Next.Completed)

	tasks, err := svc.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	rs := sched.Reminders()
	require.Len(t, rs, 1)
	assert.Equal(t, res.Next.ID, rs[0].TaskID)
	assert.Equal(t, time.Date(2024, 3, 22, 23, 30, 0, 0, time.UTC), rs[0].ReminderTime)
}

func TestToggle_PlainTask(t *testing.T) {
	svc, sched, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, task.Task{
		Title:    "send invoice",
		DueDate:  date(t, "2024-03-04"),
		Reminder: &task.ReminderSetting{Enabled: true, MinutesBefore: 0},
	})
	require.NoError(t, err)

	res, err := svc.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	assert.Nil(t, res.Next)
	assert.Empty(t, sched.Reminders())

	res, err = svc.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, res.Task.Completed)
	assert.Len(t, sched.Reminders(), 1)
}

type brokenRecurrenceStore struct {
	Store
	updates int
}

func (b *brokenRecurrenceStore) FetchTasks(context.Context) ([]task.Task, error) {
	d := task.Date{Year: 2024, Month: time.March, Day: 1}
	return []task.Task{{ID: "x", Title: "legacy row", DueDate: &d, Recurrence: &task.Recurrence{Type: "hourly"}}}, nil
}

func (b *brokenRecurrenceStore) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	b.updates++
	return t, nil
}

func TestToggle_InvalidRecurrenceIsSurfaced(t *testing.T) {
	store := &brokenRecurrenceStore{}
	sched := reminder.New(nil, nil)
	t.Cleanup(sched.Close)
	svc := New(store, sched, nil)

	_, err := svc.Toggle(context.Background(), "x")
	var invalid *recurrence.InvalidRecurrenceError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, store.updates)
}

func TestDeleteAndClearCompleted(t *testing.T) {
	svc, sched, _ := newTestService(t)
	ctx := context.Background()

	keep, err := svc.Create(ctx, task.Task{Title: "keep"})
	require.NoError(t, err)
	done, err := svc.Create(ctx, task.Task{Title: "done"})
	require.NoError(t, err)
	gone, err := svc.Create(ctx, task.Task{
		Title:    "gone",
		DueDate:  date(t, "2024-03-09"),
		Reminder: &task.ReminderSetting{Enabled: true, MinutesBefore: 5},
	})
	require.NoError(t, err)
	require.Len(t, sched.Reminders(), 1)

	require.NoError(t, svc.Delete(ctx, gone.ID))
	assert.Empty(t, sched.Reminders())

	_, err = svc.Toggle(ctx, done.ID)
	require.NoError(t, err)
	n, err := svc.ClearCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := svc.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep.ID, tasks[0].ID)

	_, err = svc.Toggle(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpcoming(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, task.Task{Title: "today", DueDate: date(t, "2024-03-01")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, task.Task{Title: "next week", DueDate: date(t, "2024-03-08")})
	require.NoError(t, err)

	up, err := svc.Upcoming(ctx, 24)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "today", up[0].Title)
}

func TestStore_PersistsReminderState(t *testing.T) {
	svc, sched, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, task.Task{
		Title:    "pay rent",
		DueDate:  date(t, "2024-03-31"),
		Reminder: &task.ReminderSetting{Enabled: true, MinutesBefore: 120},
	})
	require.NoError(t, err)
	sched.Flush()

	raw, ok, err := store.Get(ctx, reminder.StateKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"taskTitle":"pay rent"`)
}
