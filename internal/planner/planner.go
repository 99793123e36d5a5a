// Package planner coordinates the task store with the reminder scheduler.
// Every change to a task goes through Service so its reminder stays in step.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"taskmate/internal/recurrence"
	"taskmate/internal/reminder"
	"taskmate/internal/task"
)

var ErrTaskNotFound = errors.New("task not found")

// Store is the task persistence the planner drives.
type Store interface {
	FetchTasks(ctx context.Context) ([]task.Task, error)
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Reminders is the part of the scheduler the planner notifies.
type Reminders interface {
	SetReminder(t task.Task) (reminder.Reminder, bool)
	CancelReminder(taskID string)
	UpcomingTasks(tasks []task.Task, withinHours int) []task.Task
}

type Service struct {
	store     Store
	reminders Reminders
	logger    *log.Logger
	now       func() time.Time
}

func New(store Store, reminders Reminders, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{store: store, reminders: reminders, logger: logger, now: time.Now}
}

// ToggleResult describes a completion toggle. Next is set when completing a
// repeating task produced its following occurrence.
type ToggleResult struct {
	Task task.Task  `json:"task"`
	Next *task.Task `json:"next,omitempty"`
}

func (s *Service) Tasks(ctx context.Context) ([]task.Task, error) {
	return s.store.FetchTasks(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (task.Task, error) {
	tasks, err := s.store.FetchTasks(ctx)
	if err != nil {
		return task.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

func validate(t *task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Recurrence != nil {
		if err := recurrence.Validate(*t.Recurrence); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := validate(&t); err != nil {
		return task.Task{}, err
	}
	t.Completed = false
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	s.reminders.SetReminder(created)
	s.logger.Info("task created", "task_id", created.ID, "title", created.Title)
	return created, nil
}

// Update saves t. Completed tasks lose their reminder; others are rescheduled.
func (s *Service) Update(ctx context.Context, t task.Task) (task.Task, error) {
	if err := validate(&t); err != nil {
		return task.Task{}, err
	}
	updated, err := s.store.UpdateTask(ctx, t)
	if err != nil {
		return task.Task{}, err
	}
	s.syncReminder(updated)
	return updated, nil
}

func (s *Service) syncReminder(t task.Task) {
	if t.Completed {
		s.reminders.CancelReminder(t.ID)
		return
	}
	s.reminders.SetReminder(t)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.reminders.CancelReminder(id)
	s.logger.Info("task deleted", "task_id", id)
	return nil
}

// Toggle flips a task's completion. Completing an open repeating task keeps
// it as history and creates the next occurrence. The successor is computed
// before anything is written, so an invalid rule leaves the store untouched.
func (s *Service) Toggle(ctx context.Context, id string) (ToggleResult, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return ToggleResult{}, err
	}

	if cur.IsRecurring() && !cur.Completed && cur.DueDate != nil {
		return s.completeOccurrence(ctx, cur)
	}

	cur.Completed = !cur.Completed
	updated, err := s.store.UpdateTask(ctx, cur)
	if err != nil {
		return ToggleResult{}, err
	}
	s.syncReminder(updated)
	return ToggleResult{Task: updated}, nil
}

func (s *Service) completeOccurrence(ctx context.Context, cur task.Task) (ToggleResult, error) {
	next, err := recurrence.Successor(cur, s.now().UTC())
	if err != nil {
		s.logger.Error("next occurrence", "task_id", cur.ID, "err", err)
		return ToggleResult{}, err
	}

	s.reminders.CancelReminder(cur.ID)
	cur.Completed = true
	if cur.SeriesID == "" {
		cur.SeriesID = cur.ID
	}
	done, err := s.store.UpdateTask(ctx, cur)
	if err != nil {
		return ToggleResult{}, err
	}

	created, err := s.store.CreateTask(ctx, next)
	if err != nil {
		return ToggleResult{Task: done}, fmt.Errorf("create next occurrence: %w", err)
	}
	s.reminders.SetReminder(created)
	s.logger.Info("recurring task completed", "task_id", done.ID, "next_id", created.ID, "next_due", created.DueDate)
	return ToggleResult{Task: done, Next: &created}, nil
}

// ClearCompleted deletes every completed task and returns how many went.
func (s *Service) ClearCompleted(ctx context.Context) (int, error) {
	tasks, err := s.store.FetchTasks(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			continue
		}
		if err := s.Delete(ctx, t.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Upcoming lists open tasks due within the next withinHours.
func (s *Service) Upcoming(ctx context.Context, withinHours int) ([]task.Task, error) {
	tasks, err := s.store.FetchTasks(ctx)
	if err != nil {
		return nil, err
	}
	return s.reminders.UpcomingTasks(tasks, withinHours), nil
}
