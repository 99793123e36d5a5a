package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskmate/internal/config"
)

const usage = `usage: taskmate [command]

commands:
  tui    interactive task list (default)
  serve  HTTP API with the reminder scheduler running
  check  fire any due reminders once and exit
`

func main() {
	cmd := "tui"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "tui", "serve", "check":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err := run(cmd); err != nil {
		fmt.Printf("taskmate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd string) error {
	configPath := config.ResolveConfigPath()
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.Debug("config loaded", "path", configPath, "command", cmd)

	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "check":
		return a.check(ctx)
	default:
		return a.tui(ctx)
	}
}
