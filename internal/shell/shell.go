// Package shell runs external tools (rsync, stow, make, apt) and reports
// their exit status.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Command describes one external process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner starts a command and waits for it. err is reserved for failures to
// start or wait (missing binary, cancelled context); a command that ran and
// failed reports a non-zero exitCode with a nil error.
type Runner interface {
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// ExitError is returned by Check for a command that exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	slog.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to run %s: %w", c.Name, err)
}

// Check runs cmd and turns a non-zero exit into an *ExitError.
func Check(ctx context.Context, r Runner, cmd Command) error {
	code, err := r.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return &ExitError{Command: cmd.String(), Code: code}
	}
	return nil
}

// LookPath reports whether name resolves to an executable on PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
