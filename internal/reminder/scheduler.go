package reminder

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"taskmate/internal/task"
)

const (
	DefaultPollInterval = time.Minute
	// DefaultDueTime places a bare due date at the end of that day.
	DefaultDueTime = 24 * time.Hour

	notificationTitle = "Task Reminder"
)

// Scheduler owns the set of pending reminders. Every mutating operation
// holds mu for its whole read-modify-write, so callers may use it from any
// goroutine.
type Scheduler struct {
	state    StateStore
	platform Platform
	prompter Prompter
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location
	dueTime  time.Duration
	interval time.Duration
	onFire   func(Reminder)
	// retainSuperseded keeps fired recurring reminders even after a later
	// occurrence of the same series gets its own reminder.
	retainSuperseded bool

	mu        sync.Mutex
	reminders map[string]Reminder
	// restored is set when Start found previously saved state. A missing
	// entry for an overdue reminder then means it already fired.
	restored bool

	permMu     sync.Mutex
	permission Permission
	permGroup  singleflight.Group

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writer *persister
}

type Option func(*Scheduler)

func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithPrompter(p Prompter) Option {
	return func(s *Scheduler) { s.prompter = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithDueTime sets the offset from local midnight at which a due date falls due.
func WithDueTime(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.dueTime = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithListener registers an in-app callback run for every fired reminder,
// regardless of native notification permission.
func WithListener(fn func(Reminder)) Option {
	return func(s *Scheduler) { s.onFire = fn }
}

func WithRetainSuperseded(retain bool) Option {
	return func(s *Scheduler) { s.retainSuperseded = retain }
}

// New builds a scheduler. state and platform may be nil: reminders then live
// only in memory, and native notifications are reported as unsupported.
func New(state StateStore, platform Platform, opts ...Option) *Scheduler {
	s := &Scheduler{
		state:      state,
		platform:   platform,
		logger:     log.New(io.Discard),
		now:        time.Now,
		loc:        time.Local,
		dueTime:    DefaultDueTime,
		interval:   DefaultPollInterval,
		reminders:  make(map[string]Reminder),
		permission: PermissionDefault,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.writer = newPersister(state, s.logger)
	return s
}

// Start restores persisted reminders, reconciles them with tasks, checks
// once and then polls until Stop, Close or ctx is done.
func (s *Scheduler) Start(ctx context.Context, tasks []task.Task) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		s.logger.Warn("reminder scheduler already running")
		return
	}

	s.restore(ctx)
	s.refreshPermission(ctx)
	s.Reconcile(tasks)
	s.CheckReminders()

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.poll(pollCtx)
	s.logger.Info("reminder scheduler started", "interval", s.interval, "reminders", len(s.Reminders()))
}

func (s *Scheduler) poll(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckReminders()
		}
	}
}

// Stop ends polling. Reminders stay in memory and can be restarted.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Close stops polling and writes any pending state.
func (s *Scheduler) Close() {
	s.Stop()
	s.writer.close()
}

// Flush waits until all state changes made so far have been handed to the store.
func (s *Scheduler) Flush() {
	s.writer.flush()
}

func (s *Scheduler) restore(ctx context.Context) {
	if s.state == nil {
		return
	}
	loaded, err := s.state.Load(ctx)
	if err != nil {
		s.logger.Error("load reminders", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = loaded != nil
	for _, r := range loaded {
		if r.TaskID == "" {
			continue
		}
		// reminders set before Start are newer than anything on disk
		if _, ok := s.reminders[r.TaskID]; ok {
			continue
		}
		s.reminders[r.TaskID] = r
	}
}

// Reconcile re-applies reminders from the authoritative task list. Tasks
// that are completed or unknown lose their reminder; a reminder that already
// fired for an unchanged due time is kept so it does not fire twice. When
// saved state was restored, an overdue task with no saved reminder is not
// rescheduled: its reminder fired and was cleaned up in an earlier run.
// A nil slice leaves the set untouched.
func (s *Scheduler) Reconcile(tasks []task.Task) {
	if tasks == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	changed := false
	known := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		known[t.ID] = struct{}{}
		if t.Completed || !t.HasActiveReminder() {
			changed = s.removeLocked(t.ID) || changed
			continue
		}
		want := s.build(t)
		cur, ok := s.reminders[t.ID]
		if ok && cur.Notified && cur.ReminderTime.Equal(want.ReminderTime) {
			continue
		}
		if !ok && s.restored && !want.ReminderTime.After(now) {
			continue
		}
		s.insertLocked(want)
		changed = true
	}
	for id := range s.reminders {
		if _, ok := known[id]; !ok {
			delete(s.reminders, id)
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}
}

// DueAt returns the instant a due date falls due under the scheduler's
// due-time convention.
func (s *Scheduler) DueAt(d task.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, int(s.dueTime/time.Second), 0, s.loc)
}

func (s *Scheduler) build(t task.Task) Reminder {
	due := *t.DueDate
	return Reminder{
		TaskID:        t.ID,
		SeriesID:      t.Series(),
		TaskTitle:     t.Title,
		DueDate:       due,
		MinutesBefore: t.Reminder.MinutesBefore,
		ReminderTime:  s.DueAt(due).Add(-time.Duration(t.Reminder.MinutesBefore) * time.Minute),
		IsRecurring:   t.IsRecurring(),
	}
}

// SetReminder schedules (or reschedules) the reminder for t. A task without
// a due date or enabled reminder has its reminder cancelled instead.
// A reminder time in the past is accepted and fires on the next check.
func (s *Scheduler) SetReminder(t task.Task) (Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !t.HasActiveReminder() {
		if s.removeLocked(t.ID) {
			s.persistLocked()
		}
		return Reminder{}, false
	}
	r := s.build(t)
	s.insertLocked(r)
	s.persistLocked()
	s.logger.Debug("reminder set", "task_id", r.TaskID, "at", r.ReminderTime)
	return r, true
}

func (s *Scheduler) insertLocked(r Reminder) {
	if !s.retainSuperseded && r.SeriesID != "" {
		for id, old := range s.reminders {
			if id != r.TaskID && old.Notified && old.SeriesID == r.SeriesID {
				delete(s.reminders, id)
			}
		}
	}
	s.reminders[r.TaskID] = r
}

func (s *Scheduler) CancelReminder(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(taskID) {
		s.persistLocked()
		s.logger.Debug("reminder cancelled", "task_id", taskID)
	}
}

func (s *Scheduler) removeLocked(taskID string) bool {
	if _, ok := s.reminders[taskID]; !ok {
		return false
	}
	delete(s.reminders, taskID)
	return true
}

// CheckReminders fires every due reminder that has not fired yet, drops fired
// non-recurring reminders and persists if anything changed.
func (s *Scheduler) CheckReminders() {
	s.mu.Lock()
	now := s.now()
	var due []Reminder
	changed := false
	for id, r := range s.reminders {
		if r.Notified || r.ReminderTime.After(now) {
			continue
		}
		r.Notified = true
		s.reminders[id] = r
		due = append(due, r)
		changed = true
	}
	for id, r := range s.reminders {
		if r.Notified && !r.IsRecurring {
			delete(s.reminders, id)
			changed = true
		}
	}
	if changed {
		s.persistLocked()
	}
	s.mu.Unlock()

	sortReminders(due)
	for _, r := range due {
		s.fire(r)
	}
}

func (s *Scheduler) fire(r Reminder) {
	s.logger.Info("reminder fired", "task_id", r.TaskID, "title", r.TaskTitle, "at", r.ReminderTime)
	if s.onFire != nil {
		s.onFire(r)
	}
	if s.platform == nil || s.Permission() != PermissionGranted {
		return
	}
	if err := s.platform.ShowNotification(context.Background(), notificationTitle, r.Message()); err != nil {
		s.logger.Warn("show notification", "task_id", r.TaskID, "err", err)
	}
}

func (s *Scheduler) persistLocked() {
	s.writer.enqueue(s.snapshotLocked())
}

func (s *Scheduler) snapshotLocked() []Reminder {
	out := make([]Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	sortReminders(out)
	return out
}

// Reminders returns the current set ordered by reminder time.
func (s *Scheduler) Reminders() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func sortReminders(rs []Reminder) {
	slices.SortFunc(rs, func(a, b Reminder) int {
		if c := a.ReminderTime.Compare(b.ReminderTime); c != 0 {
			return c
		}
		if a.TaskID < b.TaskID {
			return -1
		}
		if a.TaskID > b.TaskID {
			return 1
		}
		return 0
	})
}

// UpcomingTasks returns incomplete tasks falling due between now and
// withinHours from now, soonest first.
func (s *Scheduler) UpcomingTasks(tasks []task.Task, withinHours int) []task.Task {
	now := s.now()
	limit := now.Add(time.Duration(withinHours) * time.Hour)
	var out []task.Task
	for _, t := range tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		at := s.DueAt(*t.DueDate)
		if at.Before(now) || at.After(limit) {
			continue
		}
		out = append(out, t)
	}
	slices.SortStableFunc(out, func(a, b task.Task) int {
		return s.DueAt(*a.DueDate).Compare(s.DueAt(*b.DueDate))
	})
	return out
}
