package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskmate/internal/config"
	"taskmate/internal/recurrence"
	"taskmate/internal/task"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	editorStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	priorityStyle = map[task.Priority]lipgloss.Style{
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		task.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
)

func (m Model) View() string {
	var b strings.Builder

	stats := task.Summarize(m.all)
	b.WriteString(titleStyle.Render("taskmate"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d open • %d done • filter:%s • sort:%s",
		stats.Active, stats.Completed, m.filter, m.sort)))
	b.WriteString("\n")
	b.WriteString(m.renderUpcoming())
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		if len(m.all) == 0 {
			b.WriteString("No tasks yet. Press 'a' to add one.")
		} else {
			b.WriteString("No tasks match this filter.")
		}
	} else {
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n---\n")

	switch {
	case m.meta != nil:
		b.WriteString(editorStyle.Render(m.renderMetaBox()))
		b.WriteString("\n")
		b.WriteString(m.input.View())
	case m.mode == modeAdd:
		b.WriteString(m.input.View())
	default:
		b.WriteString(m.renderMetadataPanel())
	}

	b.WriteString("\n\n")
	if m.prompt != nil {
		b.WriteString(promptStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s detail • space toggle • %s delete • %s edit • %s filter • %s sort • %s clear done • %s notifications • %s quit",
		k.Up, k.Down, k.Add, k.Detail, k.Delete, k.Edit, k.Filter, k.Sort, k.ClearCompleted, k.Notifications, k.Quit)
}

func (m Model) renderUpcoming() string {
	if len(m.upcoming) == 0 {
		return dimStyle.Render(fmt.Sprintf("Nothing due in the next %dh", m.cfg.Reminders.UpcomingHours))
	}
	titles := make([]string, 0, len(m.upcoming))
	for _, t := range m.upcoming {
		titles = append(titles, t.Title)
	}
	return headerStyle.Render(fmt.Sprintf("Due in the next %dh: %s", m.cfg.Reminders.UpcomingHours, strings.Join(titles, ", ")))
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	for i, t := range m.tasks {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = cursorStyle.Render(">")
		}

		checkbox := "[ ]"
		title := t.Title
		if t.Completed {
			checkbox = "[x]"
			title = doneStyle.Render(title)
		}

		var tags []string
		if st, ok := priorityStyle[t.Priority]; ok {
			tags = append(tags, st.Render(string(t.Priority)))
		}
		if t.DueDate != nil {
			tags = append(tags, "due "+t.DueDate.String())
		}
		if t.IsRecurring() {
			tags = append(tags, "↻")
		}
		if t.HasActiveReminder() {
			tags = append(tags, "⏰")
		}
		if t.Category != "" {
			cat := lipgloss.NewStyle()
			if t.CategoryColor != "" {
				cat = cat.Foreground(lipgloss.Color(t.CategoryColor))
			}
			tags = append(tags, cat.Render("#"+t.Category))
		}

		b.WriteString(fmt.Sprintf("%s %s %s  %s\n", cursor, checkbox, title, dimStyle.Render(strings.Join(tags, " "))))
	}
	return b.String()
}

func (m Model) renderMetaBox() string {
	var b strings.Builder
	for i, name := range metaLabels {
		prefix := " "
		if i == m.meta.index {
			prefix = ">"
		}
		b.WriteString(fmt.Sprintf("%s %-42s : %s\n", prefix, name, emptyPlaceholder(m.meta.values[i])))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderMetadataPanel() string {
	if len(m.tasks) == 0 {
		return "No task selected"
	}
	t := m.tasks[clampCursor(m.cursor, len(m.tasks))]
	due, repeat, remind := "(none)", "(none)", "(off)"
	if t.DueDate != nil {
		due = t.DueDate.String()
	}
	if t.Recurrence != nil {
		repeat = recurrence.Describe(*t.Recurrence)
	}
	if t.HasActiveReminder() {
		remind = fmt.Sprintf("%d minutes before", t.Reminder.MinutesBefore)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Title       : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Status      : %s\n", humanDone(t.Completed)))
	b.WriteString(fmt.Sprintf("Description : %s\n", emptyPlaceholder(t.Description)))
	b.WriteString(fmt.Sprintf("Priority    : %s\n", t.Priority))
	b.WriteString(fmt.Sprintf("Due         : %s\n", due))
	b.WriteString(fmt.Sprintf("Repeat      : %s\n", repeat))
	b.WriteString(fmt.Sprintf("Reminder    : %s\n", remind))
	b.WriteString(fmt.Sprintf("Category    : %s", emptyPlaceholder(t.Category)))
	return b.String()
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}
