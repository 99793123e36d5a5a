package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskmate/internal/task"
)

var ErrNotFound = errors.New("task not found")

// PersistenceError wraps a failed read or write against a backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	due TEXT DEFAULT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	repeat_type TEXT DEFAULT NULL,
	repeat_interval INTEGER NOT NULL DEFAULT 0,
	repeat_unit TEXT NOT NULL DEFAULT '',
	reminder_enabled INTEGER NOT NULL DEFAULT 0,
	reminder_minutes INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"series_id":      "ALTER TABLE tasks ADD COLUMN series_id TEXT NOT NULL DEFAULT '';",
		"category":       "ALTER TABLE tasks ADD COLUMN category TEXT NOT NULL DEFAULT '';",
		"category_color": "ALTER TABLE tasks ADD COLUMN category_color TEXT NOT NULL DEFAULT '';",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

const taskColumns = `id, series_id, title, description, priority, due, completed, repeat_type, repeat_interval, repeat_unit,
	reminder_enabled, reminder_minutes, category, category_color, created_at`

// FetchTasks returns every task, newest first.
func (s *Store) FetchTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id;`)
	if err != nil {
		return nil, wrap("fetch tasks", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrap("fetch tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("fetch tasks", err)
	}
	return tasks, nil
}

func scanTask(rows *sql.Rows) (task.Task, error) {
	var t task.Task
	var priority, createdStr, repeatUnit string
	var dueStr, repeatType sql.NullString
	var completed, reminderEnabled, reminderMinutes, repeatInterval int

	if err := rows.Scan(&t.ID, &t.SeriesID, &t.Title, &t.Description, &priority, &dueStr, &completed,
		&repeatType, &repeatInterval, &repeatUnit, &reminderEnabled, &reminderMinutes,
		&t.Category, &t.CategoryColor, &createdStr); err != nil {
		return task.Task{}, err
	}
	t.Priority = task.Priority(priority)
	t.Completed = completed == 1
	if dueStr.Valid {
		if d, err := task.ParseDate(dueStr.String); err == nil {
			t.DueDate = &d
		}
	}
	if repeatType.Valid && repeatType.String != "" {
		t.Recurrence = &task.Recurrence{
			Type:     task.RecurrenceType(repeatType.String),
			Interval: repeatInterval,
			Unit:     task.Unit(repeatUnit),
		}
	}
	if reminderEnabled == 1 || reminderMinutes != 0 {
		t.Reminder = &task.ReminderSetting{Enabled: reminderEnabled == 1, MinutesBefore: reminderMinutes}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdStr); err == nil {
		t.CreatedAt = created
	}
	return t, nil
}

type taskRow struct {
	due             sql.NullString
	repeatType      sql.NullString
	repeatInterval  int
	repeatUnit      string
	reminderEnabled int
	reminderMinutes int
	completed       int
}

func toRow(t task.Task) taskRow {
	var r taskRow
	if t.DueDate != nil {
		r.due = sql.NullString{String: t.DueDate.String(), Valid: true}
	}
	if t.Recurrence != nil {
		r.repeatType = sql.NullString{String: string(t.Recurrence.Type), Valid: true}
		r.repeatInterval = t.Recurrence.Interval
		r.repeatUnit = string(t.Recurrence.Unit)
	}
	if t.Reminder != nil {
		r.reminderMinutes = t.Reminder.MinutesBefore
		if t.Reminder.Enabled {
			r.reminderEnabled = 1
		}
	}
	if t.Completed {
		r.completed = 1
	}
	return r
}

// CreateTask inserts t, assigning an id and creation time when they are unset.
func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = task.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	r := toRow(t)
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		t.ID, t.SeriesID, t.Title, t.Description, string(t.Priority), r.due, r.completed,
		r.repeatType, r.repeatInterval, r.repeatUnit, r.reminderEnabled, r.reminderMinutes,
		t.Category, t.CategoryColor, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return task.Task{}, wrap("create task", err)
	}
	return t, nil
}

// UpdateTask overwrites every mutable column of the task with t's id.
func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	r := toRow(t)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET series_id = ?, title = ?, description = ?, priority = ?, due = ?,
	completed = ?, repeat_type = ?, repeat_interval = ?, repeat_unit = ?, reminder_enabled = ?, reminder_minutes = ?,
	category = ?, category_color = ? WHERE id = ?;`,
		t.SeriesID, t.Title, t.Description, string(t.Priority), r.due, r.completed,
		r.repeatType, r.repeatInterval, r.repeatUnit, r.reminderEnabled, r.reminderMinutes,
		t.Category, t.CategoryColor, t.ID)
	if err != nil {
		return task.Task{}, wrap("update task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Task{}, wrap("update task", fmt.Errorf("%w: %s", ErrNotFound, t.ID))
	}
	return t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		return wrap("delete task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return wrap("delete task", fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	return nil
}

// Get reads a value from the key-value table.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get "+key, err)
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`, key, value, now)
	return wrap("put "+key, err)
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
