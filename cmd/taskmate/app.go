package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"taskmate/internal/api"
	"taskmate/internal/config"
	"taskmate/internal/logging"
	"taskmate/internal/notify"
	"taskmate/internal/planner"
	"taskmate/internal/reminder"
	"taskmate/internal/storage"
	"taskmate/internal/ui"
)

const shutdownTimeout = 5 * time.Second

// app holds everything one command needs, built from the config.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	store   *storage.Store
	sched   *reminder.Scheduler
	planner *planner.Service
	bridge  *ui.Bridge
	closers []io.Closer
	logFile io.Closer
}

func newApp(ctx context.Context, cfg config.Config, cmd string) (*app, error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Console:    cmd != "tui",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, logFile: logCloser}

	a.store, err = storage.Open(cfg.DBPath)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	kv, err := a.stateKV(ctx)
	if err != nil {
		a.store.Close()
		logCloser.Close()
		return nil, err
	}

	pollInterval, _ := cfg.PollInterval()
	dueTime, _ := cfg.DueTime()
	opts := []reminder.Option{
		reminder.WithLogger(logger.WithPrefix("reminders")),
		reminder.WithPollInterval(pollInterval),
		reminder.WithDueTime(dueTime),
		reminder.WithRetainSuperseded(cfg.Reminders.RetainSuperseded),
	}
	switch cmd {
	case "tui":
		a.bridge = ui.NewBridge()
		opts = append(opts, reminder.WithPrompter(a.bridge), reminder.WithListener(a.bridge.Notify))
	case "check":
		opts = append(opts, reminder.WithListener(func(r reminder.Reminder) {
			fmt.Println(r.Message())
		}))
	}

	a.sched = reminder.New(reminder.KVState{KV: kv}, notify.NewDesktop(kv), opts...)
	a.planner = planner.New(a.store, a.sched, logger.WithPrefix("planner"))
	return a, nil
}

// stateKV picks where reminder state and the notification permission live.
func (a *app) stateKV(ctx context.Context) (reminder.KV, error) {
	switch a.cfg.Reminders.StateBackend {
	case "file":
		kv, err := storage.NewFileKV(a.cfg.Reminders.StatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open reminder state: %w", err)
		}
		return kv, nil
	case "redis":
		kv, err := storage.OpenRedis(ctx, storage.RedisOptions{
			Addr:      a.cfg.Redis.Addr,
			Password:  a.cfg.Redis.Password,
			DB:        a.cfg.Redis.DB,
			KeyPrefix: a.cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect reminder state: %w", err)
		}
		a.closers = append(a.closers, kv)
		return kv, nil
	default:
		return a.store, nil
	}
}

// Close stops the scheduler, waits for its last write, then releases storage.
func (a *app) Close() {
	a.sched.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close", "err", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", "err", err)
	}
	a.logFile.Close()
}

func (a *app) tui(ctx context.Context) error {
	return ui.Run(ctx, a.planner, a.sched, a.bridge, a.cfg)
}

func (a *app) check(ctx context.Context) error {
	tasks, err := a.planner.Tasks(ctx)
	if err != nil {
		return err
	}
	a.sched.Start(ctx, tasks)
	a.sched.Stop()
	return nil
}

func (a *app) serve(ctx context.Context) error {
	tasks, err := a.planner.Tasks(ctx)
	if err != nil {
		return err
	}
	a.sched.Start(ctx, tasks)
	defer a.sched.Stop()

	if a.logger.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	h := api.NewHandler(a.planner, a.sched, a.logger.WithPrefix("api"), a.cfg.Reminders.UpcomingHours)
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(h, a.cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
