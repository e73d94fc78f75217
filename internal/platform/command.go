package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds every external tool invocation.
const DefaultCommandTimeout = 30 * time.Second

// commandFunc builds a command bound to a context.
type commandFunc func(ctx context.Context) *exec.Cmd

func command(name string, args ...string) commandFunc {
	return func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, name, args...)
	}
}

// runCommand runs build under its own timeout and returns combined output.
// Known failure texts are mapped to error classes.
func runCommand(ctx context.Context, timeout time.Duration, build commandFunc) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := build(ctx)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	name := filepath.Base(cmd.Path)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out.Bytes(), fmt.Errorf("%s timed out after %s", name, timeout)
	}
	if err != nil {
		return out.Bytes(), fmt.Errorf("%s: %w", name, outputClass(out.String(), err))
	}
	return out.Bytes(), nil
}

// outputClass maps the diagnostic text of an external tool to an error
// class, since exit codes are not specific enough.
func outputClass(output string, err error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "cannot find"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "no rules match"):
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(output))
	case strings.Contains(lower, "access is denied"),
		strings.Contains(lower, "requires elevation"):
		return fmt.Errorf("%w: %s", ErrAccessDenied, strings.TrimSpace(output))
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && strings.TrimSpace(output) != "" {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(output))
	}
	return err
}
