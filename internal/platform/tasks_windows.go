package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// SchTasks is the native TaskScheduler, driving schtasks.exe.
type SchTasks struct {
	Timeout time.Duration
}

// List returns every registered task.
func (s SchTasks) List(ctx context.Context) ([]Task, error) {
	out, err := runCommand(ctx, s.Timeout, command("schtasks.exe", "/Query", "/FO", "CSV", "/V", "/NH"))
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return parseTasksCSV(bytes.NewReader(out))
}

// Delete removes the task at path without prompting.
func (s SchTasks) Delete(ctx context.Context, path string) error {
	if _, err := runCommand(ctx, s.Timeout, command("schtasks.exe", "/Delete", "/TN", path, "/F")); err != nil {
		return fmt.Errorf("delete task %s: %w", path, err)
	}
	return nil
}

// NetshFirewall is the native Firewall, driving netsh advfirewall.
type NetshFirewall struct {
	Timeout time.Duration
}

// List returns every rule with its program.
func (n NetshFirewall) List(ctx context.Context) ([]FirewallRule, error) {
	out, err := runCommand(ctx, n.Timeout,
		command("netsh.exe", "advfirewall", "firewall", "show", "rule", "name=all", "verbose"))
	if err != nil {
		return nil, fmt.Errorf("show firewall rules: %w", err)
	}
	return parseNetshRules(bytes.NewReader(out))
}

// Delete removes every rule called name. netsh needs the name quoted inside
// the name= argument, so the command line is built by hand.
func (n NetshFirewall) Delete(ctx context.Context, name string) error {
	build := func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "netsh.exe")
		cmd.SysProcAttr = &syscall.SysProcAttr{
			CmdLine: fmt.Sprintf(`netsh.exe advfirewall firewall delete rule name="%s"`, name),
		}
		return cmd
	}
	if _, err := runCommand(ctx, n.Timeout, build); err != nil {
		return fmt.Errorf("delete firewall rule %q: %w", name, err)
	}
	return nil
}
