package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessList is the native ProcessTable.
type ProcessList struct{}

// List returns every process whose name could be read. The executable
// path is best effort; protected and foreign-session processes often hide
// it even from administrators.
func (ProcessList) List(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		out = append(out, ProcessInfo{PID: p.Pid, Name: name, Exe: exe})
	}
	return out, nil
}

// Kill terminates pid forcibly.
func (ProcessList) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return fmt.Errorf("pid %d: %w", pid, ErrNotFound)
		}
		return fmt.Errorf("open pid %d: %w", pid, classify(err))
	}
	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, classify(err))
	}
	return nil
}

// IsSystemPID reports the idle and kernel pseudo-processes, which can never
// be terminated.
func IsSystemPID(pid int32) bool {
	return pid == 0 || pid == 4
}
