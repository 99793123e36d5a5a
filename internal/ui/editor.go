package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"taskmate/internal/reminder"
	"taskmate/internal/task"
)

const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	fieldDue
	fieldRepeat
	fieldInterval
	fieldUnit
	fieldReminder
	fieldCategory
	fieldCount
)

var metaLabels = [fieldCount]string{
	"title",
	"description",
	"priority (low/medium/high)",
	"due date (YYYY-MM-DD)",
	"repeat (none/daily/weekly/monthly/custom)",
	"every (custom)",
	"unit (days/weeks/months/years)",
	"remind minutes before",
	"category",
}

type metaState struct {
	task   task.Task
	values [fieldCount]string
	index  int
}

func newMetaState(t task.Task) *metaState {
	ms := &metaState{task: t.Clone()}
	ms.values[fieldTitle] = t.Title
	ms.values[fieldDescription] = t.Description
	ms.values[fieldPriority] = string(t.Priority)
	if t.DueDate != nil {
		ms.values[fieldDue] = t.DueDate.String()
	}
	ms.values[fieldRepeat] = "none"
	if r := t.Recurrence; r != nil {
		ms.values[fieldRepeat] = string(r.Type)
		if r.Type == task.Custom {
			ms.values[fieldInterval] = strconv.Itoa(r.Interval)
			ms.values[fieldUnit] = string(r.Unit)
		}
	}
	if t.Reminder != nil && t.Reminder.Enabled {
		ms.values[fieldReminder] = strconv.Itoa(t.Reminder.MinutesBefore)
	}
	ms.values[fieldCategory] = t.Category
	return ms
}

func (ms metaState) currentLabel() string {
	return metaLabels[ms.index]
}

func (ms metaState) currentValue() string {
	return ms.values[ms.index]
}

func (ms *metaState) setCurrentValue(v string) {
	ms.values[ms.index] = v
}

// build applies the edited fields to the task being edited.
func (ms metaState) build() (task.Task, error) {
	t := ms.task.Clone()
	t.Title = ms.values[fieldTitle]
	t.Description = strings.TrimSpace(ms.values[fieldDescription])
	t.Priority = task.Priority(strings.ToLower(strings.TrimSpace(ms.values[fieldPriority])))
	t.Category = strings.TrimSpace(ms.values[fieldCategory])

	t.DueDate = nil
	if v := strings.TrimSpace(ms.values[fieldDue]); v != "" {
		d, err := task.ParseDate(v)
		if err != nil {
			return task.Task{}, fmt.Errorf("due date invalid: %w", err)
		}
		t.DueDate = &d
	}

	t.Recurrence = nil
	switch v := strings.ToLower(strings.TrimSpace(ms.values[fieldRepeat])); v {
	case "", "none", "no", "n":
	default:
		r := task.Recurrence{Type: task.RecurrenceType(v)}
		if r.Type == task.Custom {
			r.Interval = 1
			if s := strings.TrimSpace(ms.values[fieldInterval]); s != "" {
				n, err := strconv.Atoi(s)
				if err != nil {
					return task.Task{}, fmt.Errorf("interval invalid: %w", err)
				}
				r.Interval = n
			}
			r.Unit = task.Unit(strings.ToLower(strings.TrimSpace(ms.values[fieldUnit])))
			if r.Unit == "" {
				r.Unit = task.Days
			}
		}
		t.Recurrence = &r
	}

	if s := strings.TrimSpace(ms.values[fieldReminder]); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return task.Task{}, fmt.Errorf("reminder minutes invalid: %w", err)
		}
		t.Reminder = &task.ReminderSetting{Enabled: true, MinutesBefore: n}
	} else if t.Reminder != nil {
		// an emptied field switches the reminder off but keeps its offset
		t.Reminder.Enabled = false
	}
	return t, nil
}

func (m Model) startMetadataEdit(t task.Task) (tea.Model, tea.Cmd) {
	m.meta = newMetaState(t)
	m.input.SetValue(m.meta.currentValue())
	m.input.Placeholder = m.meta.currentLabel()
	m.input.Focus()
	m.mode = modeMetadata
	m.status = "Edit task: tab to move, enter to save/next, esc to cancel"
	return m, nil
}

func (m Model) updateMetadataMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.meta = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		m.moveField(1)
		return m, nil
	case "shift+tab", "up":
		m.moveField(-1)
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.meta.setCurrentValue(m.input.Value())
		if m.meta.index >= fieldCount-1 {
			return m.saveMetadata()
		}
		m.meta.index++
		m.input.SetValue(m.meta.currentValue())
		m.input.Placeholder = m.meta.currentLabel()
		m.status = m.metaPrompt()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) moveField(delta int) {
	m.meta.setCurrentValue(m.input.Value())
	m.meta.index = wrapIndex(m.meta.index+delta, fieldCount)
	m.input.SetValue(m.meta.currentValue())
	m.input.Placeholder = m.meta.currentLabel()
	m.status = m.metaPrompt()
}

func (m Model) saveMetadata() (tea.Model, tea.Cmd) {
	edited, err := m.meta.build()
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	saved, err := m.planner.Update(m.ctx, edited)
	if err != nil {
		m.status = errorStatus("save failed", err)
		return m, nil
	}
	m.meta = nil
	m.mode = modeList
	m.input.Blur()

	if err := m.reload(); err != nil {
		m.status = fmt.Sprintf("reload failed: %v", err)
		return m, nil
	}
	m.selectTask(saved.ID)
	m.status = "Task saved"

	// Offer notifications when a reminder is first set.
	if saved.HasActiveReminder() && m.engine.Permission() == reminder.PermissionDefault {
		return m, m.requestPermission()
	}
	return m, nil
}

func (m Model) metaPrompt() string {
	if m.meta == nil {
		return ""
	}
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		m.meta.currentLabel(), m.meta.index+1, fieldCount)
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
