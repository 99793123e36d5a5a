package ui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"taskmate/internal/reminder"
)

var ErrNotRunning = errors.New("ui is not running")

// Bridge forwards scheduler callbacks into a running program. It is created
// before the scheduler so it can be passed as both its prompter and its
// listener, and attached once the program exists.
type Bridge struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewBridge() *Bridge {
	return &Bridge{}
}

func (b *Bridge) attach(p *tea.Program) {
	b.mu.Lock()
	b.program = p
	b.mu.Unlock()
}

func (b *Bridge) send(msg tea.Msg) bool {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

// Notify shows a fired reminder in the status line.
func (b *Bridge) Notify(r reminder.Reminder) {
	b.send(reminderMsg{reminder: r})
}

// Confirm asks the user, inside the TUI, whether to go on to the system
// permission dialog. It blocks until they answer y or n.
func (b *Bridge) Confirm(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if !b.send(promptMsg{reply: reply}) {
		return false, ErrNotRunning
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
