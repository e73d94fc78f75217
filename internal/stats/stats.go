// Package stats holds the run-wide counters and the set of resources that
// could only be scheduled for removal at the next restart.
package stats

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Stats is shared by every phase. Counters only ever increase; the pending
// set only ever grows. All methods are safe for concurrent use.
type Stats struct {
	FilesDeleted         atomic.Int64
	DirsDeleted          atomic.Int64
	BytesFreed           atomic.Int64
	ProcessesKilled      atomic.Int64
	ConfigKeysDeleted    atomic.Int64
	ConfigValuesDeleted  atomic.Int64
	ServicesDeleted      atomic.Int64
	TasksDeleted         atomic.Int64
	FirewallRulesDeleted atomic.Int64
	ShortcutsRemoved     atomic.Int64
	UninstallersRun      atomic.Int64
	Matched              atomic.Int64
	SubtreesSkipped      atomic.Int64
	Failures             atomic.Int64

	mu      sync.Mutex
	pending map[string]string
}

// New returns an empty Stats.
func New() *Stats {
	return &Stats{pending: make(map[string]string)}
}

// AddPending records path as scheduled for removal at restart. Paths are
// de-duplicated case-insensitively; the first spelling wins. It reports
// whether the path was new.
func (s *Stats) AddPending(path string) bool {
	key := strings.ToLower(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]string)
	}
	if _, ok := s.pending[key]; ok {
		return false
	}
	s.pending[key] = path
	return true
}

// Pending returns the scheduled paths in sorted order.
func (s *Stats) Pending() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// PendingCount returns the number of scheduled paths.
func (s *Stats) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	FilesDeleted         int64 `json:"files_deleted"`
	DirsDeleted          int64 `json:"dirs_deleted"`
	BytesFreed           int64 `json:"bytes_freed"`
	ProcessesKilled      int64 `json:"processes_killed"`
	ConfigKeysDeleted    int64 `json:"config_keys_deleted"`
	ConfigValuesDeleted  int64 `json:"config_values_deleted"`
	ServicesDeleted      int64 `json:"services_deleted"`
	TasksDeleted         int64 `json:"tasks_deleted"`
	FirewallRulesDeleted int64 `json:"firewall_rules_deleted"`
	ShortcutsRemoved     int64 `json:"shortcuts_removed"`
	UninstallersRun      int64 `json:"uninstallers_run"`
	Matched              int64 `json:"matched"`
	SubtreesSkipped      int64 `json:"subtrees_skipped"`
	Failures             int64 `json:"failures"`
	PendingReboot        int64 `json:"pending_reboot"`
}

// Snapshot reads every counter.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		FilesDeleted:         s.FilesDeleted.Load(),
		DirsDeleted:          s.DirsDeleted.Load(),
		BytesFreed:           s.BytesFreed.Load(),
		ProcessesKilled:      s.ProcessesKilled.Load(),
		ConfigKeysDeleted:    s.ConfigKeysDeleted.Load(),
		ConfigValuesDeleted:  s.ConfigValuesDeleted.Load(),
		ServicesDeleted:      s.ServicesDeleted.Load(),
		TasksDeleted:         s.TasksDeleted.Load(),
		FirewallRulesDeleted: s.FirewallRulesDeleted.Load(),
		ShortcutsRemoved:     s.ShortcutsRemoved.Load(),
		UninstallersRun:      s.UninstallersRun.Load(),
		Matched:              s.Matched.Load(),
		SubtreesSkipped:      s.SubtreesSkipped.Load(),
		Failures:             s.Failures.Load(),
		PendingReboot:        int64(s.PendingCount()),
	}
}

// Removed is the total number of resources actually deleted. Shortcuts
// are already included in the file and directory counts.
func (s Snapshot) Removed() int64 {
	return s.FilesDeleted + s.DirsDeleted + s.ProcessesKilled +
		s.ConfigKeysDeleted + s.ConfigValuesDeleted + s.ServicesDeleted +
		s.TasksDeleted + s.FirewallRulesDeleted
}
