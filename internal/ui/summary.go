package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
)

// Summary is what the final report block shows.
type Summary struct {
	RunID       string
	Terms       []string
	Elapsed     time.Duration
	Stats       stats.Snapshot
	Pending     []string
	DeadlineHit bool
	DryRun      bool
}

// RenderSummary formats the report block. color selects lipgloss styling.
func RenderSummary(s Summary, color bool) string {
	style := func(c lipgloss.TerminalColor, bold bool) func(string) string {
		if !color {
			return func(v string) string { return v }
		}
		st := lipgloss.NewStyle().Foreground(c).Bold(bold)
		return func(v string) string { return st.Render(v) }
	}
	title := style(ColorPrimary, true)
	muted := style(ColorMuted, false)
	warn := style(ColorWarning, true)

	var b strings.Builder
	heading := "Reclamation report"
	if s.DryRun {
		heading += " (dry run)"
	}
	b.WriteString(title(heading) + "\n")
	b.WriteString(muted(fmt.Sprintf("  run %s · terms %s · %s", s.RunID,
		strings.Join(s.Terms, ", "), s.Elapsed.Round(time.Millisecond))) + "\n\n")

	rows := []struct {
		label string
		n     int64
	}{
		{"Processes killed", s.Stats.ProcessesKilled},
		{"Services removed", s.Stats.ServicesDeleted},
		{"Scheduled tasks removed", s.Stats.TasksDeleted},
		{"Firewall rules removed", s.Stats.FirewallRulesDeleted},
		{"Shortcuts removed", s.Stats.ShortcutsRemoved},
		{"Config keys removed", s.Stats.ConfigKeysDeleted},
		{"Config values removed", s.Stats.ConfigValuesDeleted},
		{"Files deleted", s.Stats.FilesDeleted},
		{"Directories deleted", s.Stats.DirsDeleted},
		{"Uninstallers run", s.Stats.UninstallersRun},
		{"Subtrees skipped", s.Stats.SubtreesSkipped},
		{"Failures", s.Stats.Failures},
	}
	if s.DryRun {
		rows = append(rows, struct {
			label string
			n     int64
		}{"Matches", s.Stats.Matched})
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %-26s %d\n", IconBullet, r.label, r.n)
	}
	fmt.Fprintf(&b, "  %s %-26s %s\n", IconBullet, "Space freed", core.FormatSize(s.Stats.BytesFreed))

	if s.DeadlineHit {
		b.WriteString("\n" + warn(IconWarning+" Time budget exhausted; some subtrees were not visited.") + "\n")
	}
	if len(s.Pending) > 0 {
		b.WriteString("\n" + warn(fmt.Sprintf("%s %d item(s) will be removed at the next restart. Restart required.",
			IconWarning, len(s.Pending))) + "\n")
		for _, p := range s.Pending {
			b.WriteString(muted("    "+IconArrow+" "+p) + "\n")
		}
	}
	return b.String()
}

// Summary writes the report block.
func (r *Reporter) Summary(s Summary) {
	if r == nil {
		return
	}
	r.Println(strings.TrimRight(RenderSummary(s, r.color), "\n"))
}
