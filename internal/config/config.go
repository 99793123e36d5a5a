package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todo.db"
	appDir                = "taskmate"
)

type Keymap struct {
	Quit           string `toml:"quit"`
	Add            string `toml:"add"`
	Up             string `toml:"up"`
	Down           string `toml:"down"`
	Toggle         string `toml:"toggle"`
	Delete         string `toml:"delete"`
	Detail         string `toml:"detail"`
	Confirm        string `toml:"confirm"`
	Cancel         string `toml:"cancel"`
	Edit           string `toml:"edit"`
	Filter         string `toml:"filter"`
	Sort           string `toml:"sort"`
	ClearCompleted string `toml:"clear_completed"`
	Notifications  string `toml:"notifications"`
}

type Reminders struct {
	PollInterval     string `toml:"poll_interval"`
	DueTime          string `toml:"due_time"`
	StateBackend     string `toml:"state_backend"`
	StatePath        string `toml:"state_path"`
	RetainSuperseded bool   `toml:"retain_superseded"`
	UpcomingHours    int    `toml:"upcoming_hours"`
}

type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

type Log struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type Server struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Config struct {
	DBPath        string    `toml:"db_path"`
	DefaultFilter string    `toml:"default_filter"`
	DefaultSort   string    `toml:"default_sort"`
	Keys          Keymap    `toml:"keys"`
	Reminders     Reminders `toml:"reminders"`
	Redis         Redis     `toml:"redis"`
	Log           Log       `toml:"log"`
	Server        Server    `toml:"server"`
}

// ResolveConfigPath picks the config file location: $TASKMATE_CONFIG, then
// the XDG config dir, then ~/.config, then the working directory.
func ResolveConfigPath() string {
	if p := os.Getenv("TASKMATE_CONFIG"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appDir, DefaultConfigFileName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", appDir, DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads path, writing a default config there first if it does
// not exist. Relative paths inside the file resolve against its directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg.resolve(filepath.Dir(path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.resolve(filepath.Dir(path)), nil
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) resolve(dir string) Config {
	c.DBPath = resolvePath(dir, c.DBPath)
	c.Reminders.StatePath = resolvePath(dir, c.Reminders.StatePath)
	c.Log.File = resolvePath(dir, c.Log.File)
	return c
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(dir, p)
}

func (c Config) Validate() error {
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.DueTime(); err != nil {
		return err
	}
	switch c.Reminders.StateBackend {
	case "", "sqlite", "file":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("reminders.state_backend is redis but redis.addr is empty")
		}
	default:
		return fmt.Errorf("unknown reminders.state_backend %q", c.Reminders.StateBackend)
	}
	return nil
}

func (c Config) PollInterval() (time.Duration, error) {
	if c.Reminders.PollInterval == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(c.Reminders.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("reminders.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("reminders.poll_interval must be positive, got %s", d)
	}
	return d, nil
}

// DueTime parses reminders.due_time ("HH:MM", up to "24:00") into an offset
// from midnight.
func (c Config) DueTime() (time.Duration, error) {
	v := strings.TrimSpace(c.Reminders.DueTime)
	if v == "" {
		return 24 * time.Hour, nil
	}
	hh, mm, ok := strings.Cut(v, ":")
	if !ok {
		return 0, fmt.Errorf("reminders.due_time %q: want HH:MM", v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("reminders.due_time %q: %w", v, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("reminders.due_time %q: %w", v, err)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if h < 0 || m < 0 || m > 59 || d > 24*time.Hour {
		return 0, fmt.Errorf("reminders.due_time %q out of range", v)
	}
	return d, nil
}

func defaultConfig() Config {
	return Config{
		DBPath:        DefaultDBName,
		DefaultFilter: "all",
		DefaultSort:   "newest",
		Keys: Keymap{
			Quit:           "q",
			Add:            "a",
			Up:             "k",
			Down:           "j",
			Toggle:         " ",
			Delete:         "d",
			Detail:         "enter",
			Confirm:        "enter",
			Cancel:         "esc",
			Edit:           "e",
			Filter:         "f",
			Sort:           "s",
			ClearCompleted: "c",
			Notifications:  "n",
		},
		Reminders: Reminders{
			PollInterval:  "60s",
			DueTime:       "24:00",
			StateBackend:  "sqlite",
			StatePath:     "reminders.json",
			UpcomingHours: 24,
		},
		Redis: Redis{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "taskmate:",
		},
		Log: Log{
			Level:      "info",
			Format:     "text",
			File:       "taskmate.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: Server{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
	}
}
