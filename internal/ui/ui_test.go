package ui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmate/internal/config"
	"taskmate/internal/planner"
	"taskmate/internal/reminder"
	"taskmate/internal/storage"
	"taskmate/internal/task"
)

func newTestModel(t *testing.T) (Model, *planner.Service) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := reminder.New(reminder.KVState{KV: store}, nil, reminder.WithLocation(time.UTC))
	t.Cleanup(sched.Close)

	svc := planner.New(store, sched, nil)
	cfg, err := config.LoadOrCreate(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	return New(context.Background(), svc, sched, cfg), svc
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_AddTask(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, runes("a"), runes("buy milk"), tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, modeList, m.mode)
	assert.Equal(t, "Added task", m.status)
	require.Len(t, m.tasks, 1)
	assert.Equal(t, "buy milk", m.tasks[0].Title)
	assert.Contains(t, m.View(), "buy milk")
}

func TestModel_AddRejectsEmptyTitle(t *testing.T) {
	m, _ := newTestModel(t)

	m = press(t, m, runes("a"), tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, modeAdd, m.mode)
	assert.Contains(t, m.status, task.ErrEmptyTitle.Error())
	assert.Empty(t, m.tasks)
}

func TestModel_ToggleRepeatingTask(t *testing.T) {
	m, svc := newTestModel(t)
	due, err := task.ParseDate("2030-01-31")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), task.Task{
		Title:      "pay rent",
		DueDate:    &due,
		Recurrence: &task.Recurrence{Type: task.Monthly},
	})
	require.NoError(t, err)
	require.NoError(t, m.reload())

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})

	assert.Equal(t, `Completed. Next "pay rent" due 2030-03-03`, m.status)
	assert.Len(t, m.all, 2)
}

func TestModel_FilterAndSortCycle(t *testing.T) {
	m, svc := newTestModel(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, task.Task{Title: "b", Priority: task.PriorityLow})
	require.NoError(t, err)
	_, err = svc.Create(ctx, task.Task{Title: "a", Priority: task.PriorityHigh})
	require.NoError(t, err)
	require.NoError(t, m.reload())
	require.Len(t, m.tasks, 2)

	m = press(t, m, runes("f"))
	assert.Equal(t, task.FilterActive, m.filter)
	assert.Len(t, m.tasks, 2)

	m = press(t, m, runes("f"), runes("f"))
	assert.Equal(t, task.FilterHigh, m.filter)
	require.Len(t, m.tasks, 1)
	assert.Equal(t, "a", m.tasks[0].Title)

	m = press(t, m, runes("f"), runes("f"), runes("f"), runes("f"))
	assert.Equal(t, task.FilterAll, m.filter)

	m = press(t, m, runes("s"), runes("s"), runes("s"), runes("s"))
	assert.Equal(t, task.SortAlphabetical, m.sort)
	assert.Equal(t, "a", m.tasks[0].Title)
}

func TestModel_DeleteConfirm(t *testing.T) {
	m, svc := newTestModel(t)
	_, err := svc.Create(context.Background(), task.Task{Title: "old"})
	require.NoError(t, err)
	require.NoError(t, m.reload())

	m = press(t, m, runes("d"), runes("n"))
	assert.Equal(t, "Delete cancelled", m.status)
	assert.Len(t, m.tasks, 1)

	m = press(t, m, runes("d"), runes("y"))
	assert.Equal(t, "Deleted task", m.status)
	assert.Empty(t, m.tasks)
}

func TestModel_EditMetadata(t *testing.T) {
	m, svc := newTestModel(t)
	_, err := svc.Create(context.Background(), task.Task{Title: "gym"})
	require.NoError(t, err)
	require.NoError(t, m.reload())

	m = press(t, m, runes("e"))
	require.NotNil(t, m.meta)

	set := func(v string) {
		m.input.SetValue(v)
		m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	}
	set("gym")        // title
	set("leg day")    // description
	set("high")       // priority
	set("2030-02-01") // due
	set("custom")     // repeat
	set("2")          // interval
	set("weeks")      // unit
	set("")           // reminder
	set("health")     // category

	require.Nil(t, m.meta)
	assert.Equal(t, "Task saved", m.status)
	got := m.tasks[m.cursor]
	assert.Equal(t, "leg day", got.Description)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, "2030-02-01", got.DueDate.String())
	assert.Equal(t, task.Recurrence{Type: task.Custom, Interval: 2, Unit: task.Weeks}, *got.Recurrence)
	assert.Equal(t, "health", got.Category)
}

func TestModel_EditRejectsInvalidRepeat(t *testing.T) {
	m, svc := newTestModel(t)
	_, err := svc.Create(context.Background(), task.Task{Title: "gym"})
	require.NoError(t, err)
	require.NoError(t, m.reload())

	m = press(t, m, runes("e"))
	m.meta.values[fieldRepeat] = "custom"
	m.meta.values[fieldInterval] = "0"
	m.meta.index = fieldCategory
	m.input.SetValue("")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, m.meta)
	assert.Contains(t, m.status, "repeat rule is invalid")
}

func TestModel_PermissionPrompt(t *testing.T) {
	m, _ := newTestModel(t)
	reply := make(chan bool, 1)

	m = press(t, m, promptMsg{reply: reply})
	require.NotNil(t, m.prompt)
	assert.Contains(t, m.View(), "Enable notifications? y/n")

	m = press(t, m, runes("x"))
	require.NotNil(t, m.prompt)

	m = press(t, m, runes("y"))
	assert.Nil(t, m.prompt)
	assert.True(t, <-reply)
}

func TestModel_ReminderMessage(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, reminderMsg{reminder: reminder.Reminder{TaskTitle: "call mom", MinutesBefore: 15}})
	assert.Equal(t, `Reminder: "call mom" is due in 15 minutes!`, m.status)
}

func TestBridge_ConfirmWithoutProgram(t *testing.T) {
	ok, err := NewBridge().Confirm(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotRunning)
}

type stubEngine struct {
	perm    reminder.Permission
	revoked bool
}

func (e *stubEngine) Start(context.Context, []task.Task) {}

func (e *stubEngine) Permission() reminder.Permission { return e.perm }

func (e *stubEngine) RequestPermission(context.Context) bool {
	e.perm = reminder.PermissionGranted
	return true
}

func (e *stubEngine) RevokePermission(context.Context) error {
	e.revoked = true
	e.perm = reminder.PermissionDefault
	return nil
}

func TestModel_NotificationsKeyToggles(t *testing.T) {
	m, _ := newTestModel(t)
	engine := &stubEngine{perm: reminder.PermissionDefault}
	m.engine = engine

	next, cmd := m.Update(runes("n"))
	require.NotNil(t, cmd)
	m = press(t, next.(Model), cmd())
	assert.Equal(t, "Desktop notifications enabled", m.status)
	assert.False(t, engine.revoked)

	next, cmd = m.Update(runes("n"))
	require.NotNil(t, cmd)
	m = press(t, next.(Model), cmd())
	assert.Equal(t, "Desktop notifications turned off", m.status)
	assert.True(t, engine.revoked)
	assert.Equal(t, reminder.PermissionDefault, engine.perm)
}
