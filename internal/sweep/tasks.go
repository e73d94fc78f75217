package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// TaskSweeper deletes the target's scheduled tasks.
type TaskSweeper struct {
	Env
	Tasks platform.TaskScheduler
}

// Sweep deletes tasks whose path or action matches, outside protected task
// folders, and returns how many were deleted.
func (s *TaskSweeper) Sweep(ctx context.Context) (int, error) {
	tasks, err := s.Tasks.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}

	deleted := 0
	for _, task := range tasks {
		if !s.Terms.MatchAny(task.Path, task.Action) {
			continue
		}
		if s.Oracle.IsProtectedTask(task.Path) {
			s.log().WithField("task", task.Path).Debug("protected task skipped")
			continue
		}
		if s.dryRun("task %s", task.Path) {
			continue
		}
		if err := s.Tasks.Delete(ctx, task.Path); err != nil {
			s.failed(err, "task", task.Path)
			continue
		}
		s.Stats.TasksDeleted.Add(1)
		deleted++
		s.Reporter.Tag(ui.TagTask, "%s", task.Path)
	}
	return deleted, nil
}

// FirewallSweeper deletes the target's firewall rules.
type FirewallSweeper struct {
	Env
	Firewall platform.Firewall
}

// Sweep deletes rules whose name or program matches. Rules are deleted by
// name, once per distinct name. A rule for a program in a protected
// location is only deleted when its own name matches.
func (s *FirewallSweeper) Sweep(ctx context.Context) (int, error) {
	rules, err := s.Firewall.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list firewall rules: %w", err)
	}

	seen := make(map[string]bool)
	deleted := 0
	for _, rule := range rules {
		key := strings.ToLower(rule.Name)
		if rule.Name == "" || seen[key] {
			continue
		}
		byName := s.Terms.Match(rule.Name)
		byProgram := s.Terms.Match(rule.Program) && !s.Oracle.Denies(rule.Program)
		if !byName && !byProgram {
			continue
		}
		seen[key] = true
		if s.dryRun("firewall rule %s", rule.Name) {
			continue
		}
		if err := s.Firewall.Delete(ctx, rule.Name); err != nil {
			s.failed(err, "rule", rule.Name)
			continue
		}
		s.Stats.FirewallRulesDeleted.Add(1)
		deleted++
		s.Reporter.Tag(ui.TagFirewall, "%s", rule.Name)
	}
	return deleted, nil
}
