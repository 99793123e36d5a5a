// Package notify delivers reminder notifications to the desktop.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"taskmate/internal/reminder"
)

const permissionKey = "notificationPermission"

// Desktop shows notifications through notify-send (or osascript on macOS).
// Neither tool has a permission dialog of its own, so the user's answer is
// recorded in a KV store and consulted on every query.
type Desktop struct {
	kv      reminder.KV
	command string
	run     func(ctx context.Context, name string, args ...string) error
}

// NewDesktop returns a platform bound to the notifier found on PATH. When no
// notifier exists, permission always reads as denied.
func NewDesktop(kv reminder.KV) *Desktop {
	name := "notify-send"
	if runtime.GOOS == "darwin" {
		name = "osascript"
	}
	command, err := exec.LookPath(name)
	if err != nil {
		command = ""
	}
	return &Desktop{kv: kv, command: command, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

func (d *Desktop) Supported() bool {
	return d.command != ""
}

func (d *Desktop) QueryPermission(ctx context.Context) (reminder.Permission, error) {
	if !d.Supported() {
		return reminder.PermissionDenied, nil
	}
	v, ok, err := d.kv.Get(ctx, permissionKey)
	if err != nil {
		return reminder.PermissionDefault, err
	}
	if !ok {
		return reminder.PermissionDefault, nil
	}
	switch p := reminder.Permission(v); p {
	case reminder.PermissionGranted, reminder.PermissionDenied:
		return p, nil
	default:
		return reminder.PermissionDefault, nil
	}
}

func (d *Desktop) RequestPermission(ctx context.Context) (reminder.Permission, error) {
	if !d.Supported() {
		return reminder.PermissionDenied, nil
	}
	if err := d.kv.Put(ctx, permissionKey, string(reminder.PermissionGranted)); err != nil {
		return reminder.PermissionDefault, err
	}
	return reminder.PermissionGranted, nil
}

// RevokePermission forgets an earlier grant. The user is asked again on the
// next request.
func (d *Desktop) RevokePermission(ctx context.Context) error {
	return d.kv.Put(ctx, permissionKey, string(reminder.PermissionDefault))
}

func (d *Desktop) ShowNotification(ctx context.Context, title, body string) error {
	if !d.Supported() {
		return fmt.Errorf("no desktop notifier available")
	}
	if runtime.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return d.run(ctx, d.command, "-e", script)
	}
	return d.run(ctx, d.command, "--app-name=taskmate", title, body)
}
