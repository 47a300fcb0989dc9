// Package supervisor adapts the orchestrator's start/stop/restart
// semantics onto a tmux session. It is a pure adapter: all state lives
// in the tmux session itself, never in this package.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/devservers/devserversd/internal/apierror"
)

const sessionName = "devservers"

var shellCommands = map[string]bool{
	"zsh": true, "bash": true, "sh": true, "fish": true,
}

// Status is the observed state of a service's tmux window.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// CmdRunner abstracts subprocess execution so the supervisor is
// unit-testable without a real tmux binary.
type CmdRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Sleeper abstracts time.Sleep for deterministic tests.
type Sleeper func(time.Duration)

// Supervisor drives a single tmux session named "devservers", one
// window per service.
type Supervisor struct {
	Runner CmdRunner
	Sleep  Sleeper
}

// New returns a Supervisor backed by a real tmux binary.
func New() *Supervisor {
	return &Supervisor{Runner: ExecRunner{}, Sleep: time.Sleep}
}

func (s *Supervisor) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (s *Supervisor) run(ctx context.Context, args ...string) (string, error) {
	return s.Runner.Run(ctx, "tmux", args...)
}

// EnsureSession creates the devservers session, detached, if absent.
func (s *Supervisor) EnsureSession(ctx context.Context) error {
	if _, err := s.run(ctx, "has-session", "-t", sessionName); err == nil {
		return nil
	}
	if _, err := s.run(ctx, "new-session", "-d", "-s", sessionName); err != nil {
		return apierror.Wrap(apierror.KindSupervisor, "creating tmux session", err)
	}
	return nil
}

// ListWindows returns the set of window names in the session, empty on
// any error (e.g. the session does not exist yet).
func (s *Supervisor) ListWindows(ctx context.Context) map[string]bool {
	out, err := s.run(ctx, "list-windows", "-t", sessionName, "-F", "#{window_name}")
	windows := map[string]bool{}
	if err != nil {
		return windows
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			windows[line] = true
		}
	}
	return windows
}

func (s *Supervisor) windowTarget(name string) string {
	return sessionName + ":" + name
}

func (s *Supervisor) windowExists(ctx context.Context, name string) bool {
	return s.ListWindows(ctx)[name]
}

// paneCurrentCommand returns the current foreground command of the
// window's pane, or "" if unknown.
func (s *Supervisor) paneCurrentCommand(ctx context.Context, name string) string {
	out, err := s.run(ctx, "display-message", "-p", "-t", s.windowTarget(name), "#{pane_current_command}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (s *Supervisor) paneDead(ctx context.Context, name string) bool {
	out, err := s.run(ctx, "display-message", "-p", "-t", s.windowTarget(name), "#{pane_dead}")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "1"
}

// GetStatus maps a window's observed pane state onto Status.
func (s *Supervisor) GetStatus(ctx context.Context, name string) Status {
	if !s.windowExists(ctx, name) {
		return StatusStopped
	}
	if s.paneDead(ctx, name) {
		return StatusError
	}
	if shellCommands[s.paneCurrentCommand(ctx, name)] {
		return StatusStopped
	}
	return StatusRunning
}

// isRunningCommand reports whether the window's pane is alive and
// currently executing something other than an idle shell.
func (s *Supervisor) isRunningCommand(ctx context.Context, name string) bool {
	if s.paneDead(ctx, name) {
		return false
	}
	return !shellCommands[s.paneCurrentCommand(ctx, name)]
}

// ShellQuote wraps value in single quotes, escaping embedded quotes.
func ShellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// MaterializeCommand prefixes command with KEY='VALUE' assignments
// derived from env, in sorted key order for determinism.
func MaterializeCommand(command string, env map[string]string) string {
	if len(env) == 0 {
		return command
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(ShellQuote(env[k]))
		b.WriteByte(' ')
	}
	b.WriteString(command)
	return b.String()
}

// Start issues a tmux window start for the service unless one is
// already running a non-shell command, in which case it is a no-op
// returning false.
func (s *Supervisor) Start(ctx context.Context, name, cwd, resolvedCommand string) (bool, error) {
	if s.windowExists(ctx, name) && s.isRunningCommand(ctx, name) {
		return false, nil
	}

	if s.windowExists(ctx, name) {
		if _, err := s.run(ctx, "kill-window", "-t", s.windowTarget(name)); err != nil {
			return false, apierror.Wrap(apierror.KindSupervisor, fmt.Sprintf("killing existing window %q", name), err)
		}
	}

	if _, err := s.run(ctx, "new-window", "-d", "-t", sessionName, "-n", name, "-c", cwd); err != nil {
		return false, apierror.Wrap(apierror.KindSupervisor, fmt.Sprintf("creating window %q", name), err)
	}

	if _, err := s.run(ctx, "send-keys", "-t", s.windowTarget(name), resolvedCommand, "Enter"); err != nil {
		return false, apierror.Wrap(apierror.KindSupervisor, fmt.Sprintf("sending start command to %q", name), err)
	}
	return true, nil
}

// Stop interrupts then kills the service's window. A missing window is
// a silent no-op.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	if !s.windowExists(ctx, name) {
		return nil
	}
	// Errors tolerated: the window may already be in a state that
	// rejects the interrupt keystroke.
	_, _ = s.run(ctx, "send-keys", "-t", s.windowTarget(name), "C-c")
	s.sleep(200 * time.Millisecond)
	_, _ = s.run(ctx, "kill-window", "-t", s.windowTarget(name))
	return nil
}

// Restart stops then starts the service's window.
func (s *Supervisor) Restart(ctx context.Context, name, cwd, resolvedCommand string) (bool, error) {
	if err := s.Stop(ctx, name); err != nil {
		return false, err
	}
	s.sleep(300 * time.Millisecond)
	return s.Start(ctx, name, cwd, resolvedCommand)
}

// CapturePane returns the last `lines` rows of the window's pane
// scrollback, or "" when the window does not exist.
func (s *Supervisor) CapturePane(ctx context.Context, name string, lines int, ansi bool) string {
	if !s.windowExists(ctx, name) {
		return ""
	}
	args := []string{"capture-pane", "-p", "-t", s.windowTarget(name), "-S", fmt.Sprintf("-%d", lines)}
	if ansi {
		args = append(args, "-e")
	}
	out, err := s.run(ctx, args...)
	if err != nil {
		return ""
	}
	return out
}
