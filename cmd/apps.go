package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
	"github.com/lakshaymaurya-felt/winreclaim/internal/uninstall"
)

var (
	appsSearch  string
	appsShowAll bool
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications",
	Long: `List the applications recorded in the uninstall registry, largest first.
Use it to pick the terms for a reclamation run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := nativeSystem().Config
		if store == nil {
			return fmt.Errorf("no configuration store on this platform")
		}
		apps := uninstall.GetInstalledApps(store, appsShowAll)
		if appsSearch != "" {
			apps = filterApps(apps, match.NewTerms(appsSearch))
		}
		renderApps(cmd.OutOrStdout(), apps, ui.NewReporter(cmd.OutOrStdout()).Colored())
		return nil
	},
}

func init() {
	appsCmd.Flags().BoolVar(&appsShowAll, "show-all", false, "Show system components too")
	appsCmd.Flags().StringVar(&appsSearch, "search", "", "Search for apps by name or publisher")
}

func filterApps(apps []uninstall.InstalledApp, terms match.Terms) []uninstall.InstalledApp {
	var out []uninstall.InstalledApp
	for _, app := range apps {
		if terms.MatchAny(app.Name, app.Publisher, app.KeyName()) {
			out = append(out, app)
		}
	}
	return out
}

func renderApps(w io.Writer, apps []uninstall.InstalledApp, color bool) {
	if len(apps) == 0 {
		fmt.Fprintln(w, "No matching applications.")
		return
	}
	name, muted := lipgloss.NewStyle(), lipgloss.NewStyle()
	if color {
		name = name.Bold(true).Foreground(ui.ColorText)
		muted = muted.Foreground(ui.ColorMuted)
	}
	for _, app := range apps {
		size := "-"
		if app.EstimatedSize > 0 {
			size = core.FormatSize(app.EstimatedSize)
		}
		fmt.Fprintf(w, "%s %s\n", name.Render(app.Name), muted.Render(app.Version))
		fmt.Fprintf(w, "    %s %-10s %s\n", ui.IconArrow, size, muted.Render(app.Publisher))
		if app.InstallLocation != "" {
			fmt.Fprintf(w, "    %s %s\n", ui.IconArrow, muted.Render(app.InstallLocation))
		}
	}
	fmt.Fprintf(w, "\n%d application(s)\n", len(apps))
}
