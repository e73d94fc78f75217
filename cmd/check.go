package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/winreclaim/internal/config"
	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

var (
	checkTerms  []string
	checkPolicy string
)

// Verdicts printed by check.
const (
	verdictProtected  = "protected"
	verdictDescend    = "protected, contents scanned"
	verdictDeletable  = "deletable"
	verdictNotMatched = "not matched"
)

var checkCmd = &cobra.Command{
	Use:   "check <path> [path...]",
	Short: "Show how the protection policy treats paths",
	Long: `Check paths against the protection policy without touching anything.

With --term, unprotected paths are also tested against the target terms,
showing exactly what a run with those terms would delete.`,
	Example: `  wr check "C:\Program Files\Acme" C:\Windows\System32
  wr check --term acme "C:\ProgramData\Acme\cache"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.Load(config.LoadOptions{PolicyFile: checkPolicy})
		if err != nil {
			return usageError(err)
		}
		terms := match.NewTerms(checkTerms...)
		oracle := protect.New(p.ProtectionRules(), terms, core.Deadline{})

		out := cmd.OutOrStdout()
		color := ui.NewReporter(out).Colored()
		for _, path := range args {
			v := verdictFor(oracle, terms, path)
			fmt.Fprintf(out, "%s  %s\n", styleVerdict(v, color), path)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkTerms, "term", nil, "Target term to test unprotected paths against (repeatable)")
	checkCmd.Flags().StringVar(&checkPolicy, "policy", "", "YAML policy file")
}

func verdictFor(o *protect.Oracle, terms match.Terms, path string) string {
	if o.Denies(path) {
		if o.MayDescend(path) {
			return verdictDescend
		}
		return verdictProtected
	}
	if o.IsProtectedName(core.Base(path)) {
		return verdictDescend
	}
	if terms.Len() == 0 {
		return verdictDeletable
	}
	if terms.Match(path) {
		return verdictDeletable
	}
	return verdictNotMatched
}

func styleVerdict(v string, color bool) string {
	label := fmt.Sprintf("%-27s", v)
	if !color {
		return label
	}
	c := ui.ColorMuted
	switch v {
	case verdictProtected:
		c = ui.ColorSuccess
	case verdictDescend:
		c = ui.ColorInfo
	case verdictDeletable:
		c = ui.ColorDanger
	}
	return lipgloss.NewStyle().Foreground(c).Render(label)
}
