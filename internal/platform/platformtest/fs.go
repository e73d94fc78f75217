package platformtest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
)

// FS wraps the real filesystem (tests point it at a temp directory) and
// injects the failures that are hard to produce portably: locked files,
// access-denied files and delete-on-restart scheduling.
type FS struct {
	platform.OSFileSystem

	// Procs, when set, decides lock lifetime: a locked path stays locked
	// while any of its holders is alive.
	Procs *Processes

	// CannotOwn makes TakeOwnership fail.
	CannotOwn bool

	// CannotSchedule makes ScheduleDelete fail.
	CannotSchedule bool

	mu        sync.Mutex
	locked    map[string][]platform.ProcessInfo
	denied    map[string]bool
	owned     map[string]bool
	scheduled []string
	removed   []string
}

// NewFS returns an FS with no injected failures.
func NewFS() *FS {
	return &FS{
		locked: make(map[string][]platform.ProcessInfo),
		denied: make(map[string]bool),
		owned:  make(map[string]bool),
	}
}

func key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Lock marks path as held open by holders. Without holders, or without
// Procs, the lock never releases.
func (f *FS) Lock(path string, holders ...platform.ProcessInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[key(path)] = holders
}

// Deny makes Remove fail with access denied until ownership is taken.
func (f *FS) Deny(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[key(path)] = true
}

func (f *FS) isLocked(k string) bool {
	holders, ok := f.locked[k]
	if !ok {
		return false
	}
	if f.Procs == nil || len(holders) == 0 {
		return true
	}
	for _, h := range holders {
		if f.Procs.Alive(h.PID) {
			return true
		}
	}
	return false
}

func (f *FS) Remove(path string) error {
	k := key(path)
	f.mu.Lock()
	if f.denied[k] && !f.owned[k] {
		f.mu.Unlock()
		return fmt.Errorf("remove %s: %w", path, platform.ErrAccessDenied)
	}
	if f.isLocked(k) {
		f.mu.Unlock()
		return fmt.Errorf("remove %s: %w", path, platform.ErrLocked)
	}
	f.mu.Unlock()

	if err := f.OSFileSystem.Remove(path); err != nil {
		return err
	}
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()
	return nil
}

func (f *FS) TakeOwnership(path string) error {
	if f.CannotOwn {
		return fmt.Errorf("take ownership of %s: %w", path, platform.ErrAccessDenied)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owned[key(path)] = true
	return nil
}

func (f *FS) ScheduleDelete(path string) error {
	if f.CannotSchedule {
		return fmt.Errorf("schedule %s: %w", path, platform.ErrAccessDenied)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, path)
	return nil
}

// Lockers implements platform.LockFinder from the injected locks.
func (f *FS) Lockers(_ context.Context, path string) ([]platform.ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.ProcessInfo(nil), f.locked[key(path)]...), nil
}

// Scheduled returns the paths passed to ScheduleDelete, in order.
func (f *FS) Scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scheduled...)
}

// Removed returns the paths actually deleted, in order.
func (f *FS) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}
