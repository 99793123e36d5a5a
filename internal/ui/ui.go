package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskmate/internal/config"
	"taskmate/internal/planner"
	"taskmate/internal/recurrence"
	"taskmate/internal/reminder"
	"taskmate/internal/task"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeMetadata
)

// Engine is the part of the reminder scheduler the TUI drives directly.
type Engine interface {
	Start(ctx context.Context, tasks []task.Task)
	Permission() reminder.Permission
	RequestPermission(ctx context.Context) bool
	RevokePermission(ctx context.Context) error
}

type (
	startedMsg    struct{}
	reminderMsg   struct{ reminder reminder.Reminder }
	promptMsg     struct{ reply chan<- bool }
	permissionMsg struct{ granted bool }
	revokedMsg    struct{ err error }
)

type Model struct {
	ctx        context.Context
	planner    *planner.Service
	engine     Engine
	cfg        config.Config
	all        []task.Task
	tasks      []task.Task
	upcoming   []task.Task
	filter     task.Filter
	sort       task.Sort
	cursor     int
	mode       mode
	input      textinput.Model
	status     string
	confirmDel bool
	pendingDel *task.Task
	meta       *metaState
	prompt     chan<- bool
}

func New(ctx context.Context, svc *planner.Service, engine Engine, cfg config.Config) Model {
	ti := textinput.New()
	ti.Placeholder = "Task title"
	ti.CharLimit = 256
	ti.Width = 40

	f, err := task.ParseFilter(cfg.DefaultFilter)
	if err != nil {
		f = task.FilterAll
	}
	s, err := task.ParseSort(cfg.DefaultSort)
	if err != nil {
		s = task.SortNewest
	}

	m := Model{
		ctx:     ctx,
		planner: svc,
		engine:  engine,
		cfg:     cfg,
		filter:  f,
		sort:    s,
		status:  "Press 'a' to add, space to toggle, 'd' to delete.",
		input:   ti,
		mode:    modeList,
	}
	if err := m.reload(); err != nil {
		m.status = fmt.Sprintf("load failed: %v", err)
	}
	return m
}

// Run starts the program and blocks until the user quits. The scheduler is
// started from inside the program so fired reminders reach the status line.
func Run(ctx context.Context, svc *planner.Service, engine Engine, bridge *Bridge, cfg config.Config) error {
	m := New(ctx, svc, engine, cfg)
	program := tea.NewProgram(m, tea.WithContext(ctx))
	bridge.attach(program)
	defer bridge.attach(nil)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	all := m.all
	return func() tea.Msg {
		m.engine.Start(m.ctx, all)
		return startedMsg{}
	}
}

func (m Model) requestPermission() tea.Cmd {
	return func() tea.Msg {
		return permissionMsg{granted: m.engine.RequestPermission(m.ctx)}
	}
}

func (m Model) revokePermission() tea.Cmd {
	return func() tea.Msg {
		return revokedMsg{err: m.engine.RevokePermission(m.ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompt != nil {
			return m.updatePrompt(msg.String())
		}
		if m.meta != nil {
			return m.updateMetadataMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	case startedMsg:
		m.refresh()
	case reminderMsg:
		m.status = "Reminder: " + msg.reminder.Message()
		m.refresh()
	case promptMsg:
		m.prompt = msg.reply
		m.status = "Taskmate can show a desktop notification before a task is due. Enable notifications? y/n"
	case revokedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("could not turn notifications off: %v", msg.err)
		} else {
			m.status = "Desktop notifications turned off"
		}
	case permissionMsg:
		if msg.granted {
			m.status = "Desktop notifications enabled"
		} else {
			m.status = permissionHint(m.engine.Permission())
		}
	}
	return m, nil
}

func permissionHint(p reminder.Permission) string {
	if p == reminder.PermissionDenied {
		return "Notifications are blocked. Enable them in your system settings to get reminders."
	}
	return "Notifications not enabled; reminders will only show here"
}

func (m Model) updatePrompt(key string) (tea.Model, tea.Cmd) {
	var answer bool
	switch key {
	case "y", "Y":
		answer = true
	case "n", "N", "esc":
	default:
		return m, nil
	}
	m.prompt <- answer
	m.prompt = nil
	if answer {
		m.status = "Waiting for the system permission dialog..."
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.mode == modeAdd {
		return m.updateAddMode(key, msg)
	}
	return m.updateListMode(key)
}

func (m Model) updateAddMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		created, err := m.planner.Create(m.ctx, task.Task{Title: m.input.Value()})
		if err != nil {
			m.status = errorStatus("save failed", err)
			return m, nil
		}
		if err := m.reload(); err != nil {
			m.status = fmt.Sprintf("reload failed: %v", err)
		} else {
			m.status = "Added task"
			m.selectTask(created.ID)
		}
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(m.tasks) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.tasks))
		}
	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Task title"
		m.input.Focus()
		m.status = "Add mode: type a title and press Enter"
	case m.cfg.Keys.Toggle:
		if len(m.tasks) == 0 {
			return m, nil
		}
		return m.toggle(m.tasks[m.cursor])
	case m.cfg.Keys.Delete:
		if len(m.tasks) == 0 {
			return m, nil
		}
		t := m.tasks[m.cursor]
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete %q? y/n", t.Title)
	case m.cfg.Keys.Detail:
		if len(m.tasks) == 0 {
			m.status = "No tasks"
			return m, nil
		}
		m.status = detailLine(m.tasks[m.cursor])
	case m.cfg.Keys.Edit:
		if len(m.tasks) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		return m.startMetadataEdit(m.tasks[m.cursor])
	case m.cfg.Keys.Filter:
		m.filter = m.filter.Next()
		m.apply()
		m.status = "Filter: " + string(m.filter)
	case m.cfg.Keys.Sort:
		m.sort = m.sort.Next()
		m.apply()
		m.status = "Sort: " + string(m.sort)
	case m.cfg.Keys.ClearCompleted:
		n, err := m.planner.ClearCompleted(m.ctx)
		if err != nil {
			m.status = errorStatus("clear failed", err)
			return m, nil
		}
		m.refresh()
		m.status = fmt.Sprintf("Cleared %d completed task(s)", n)
	case m.cfg.Keys.Notifications:
		if m.engine.Permission() == reminder.PermissionGranted {
			return m, m.revokePermission()
		}
		return m, m.requestPermission()
	}
	return m, nil
}

func (m Model) toggle(t task.Task) (tea.Model, tea.Cmd) {
	res, err := m.planner.Toggle(m.ctx, t.ID)
	if err != nil {
		m.status = errorStatus("toggle failed", err)
		return m, nil
	}
	if err := m.reload(); err != nil {
		m.status = fmt.Sprintf("reload failed: %v", err)
		return m, nil
	}
	switch {
	case res.Next != nil:
		m.status = fmt.Sprintf("Completed. Next %q due %s", res.Next.Title, res.Next.DueDate)
	case res.Task.Completed:
		m.status = "Completed task"
	default:
		m.status = "Reopened task"
	}
	m.cursor = clampCursor(m.cursor, len(m.tasks))
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		if err := m.planner.Delete(m.ctx, m.pendingDel.ID); err != nil {
			m.status = errorStatus("delete failed", err)
			m.confirmDel = false
			m.pendingDel = nil
			return m, nil
		}
		if err := m.reload(); err == nil {
			m.cursor = clampCursor(m.cursor, len(m.tasks))
			m.status = "Deleted task"
		} else {
			m.status = fmt.Sprintf("reload failed: %v", err)
		}
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	default:
		return m, nil
	}
}

// reload fetches every task and rebuilds the visible list and the upcoming
// header.
func (m *Model) reload() error {
	all, err := m.planner.Tasks(m.ctx)
	if err != nil {
		return err
	}
	m.all = all
	m.apply()
	m.upcoming, err = m.planner.Upcoming(m.ctx, m.cfg.Reminders.UpcomingHours)
	return err
}

func (m *Model) refresh() {
	if err := m.reload(); err != nil {
		m.status = fmt.Sprintf("reload failed: %v", err)
	}
}

func (m *Model) apply() {
	m.tasks = task.Apply(m.all, m.filter, m.sort)
	m.cursor = clampCursor(m.cursor, len(m.tasks))
}

func (m *Model) selectTask(id string) {
	for i, t := range m.tasks {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

func errorStatus(prefix string, err error) string {
	var invalid *recurrence.InvalidRecurrenceError
	if errors.As(err, &invalid) {
		return fmt.Sprintf("%s: repeat rule is invalid (%s)", prefix, invalid.Reason)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}

func detailLine(t task.Task) string {
	info := fmt.Sprintf("%s • %s • %s", t.Title, humanDone(t.Completed), t.Priority)
	if t.Category != "" {
		info += " • category:" + t.Category
	}
	if t.DueDate != nil {
		info += " • due:" + t.DueDate.String()
	}
	if t.Recurrence != nil {
		info += " • " + recurrence.Describe(*t.Recurrence)
	}
	if t.HasActiveReminder() {
		info += fmt.Sprintf(" • remind %dm before", t.Reminder.MinutesBefore)
	}
	return info
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
