package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/winreclaim/internal/config"
	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/engine"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

var (
	// Global flags
	debug bool

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// Run flags.
var (
	dryRun          bool
	timeout         time.Duration
	maxDepth        int
	workers         int
	preset          string
	policyFile      string
	envFile         string
	logFile         string
	reportFile      string
	runUninstallers bool
	allDrives       bool
	assumeYes       bool
)

// Seams replaced in tests.
var (
	isElevated       = core.IsElevated
	nativeSystem     = platform.Native
	enablePrivileges = platform.EnablePrivileges
	stdinIsTerminal  = func() bool {
		fd := os.Stdin.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	confirm = ui.Confirm
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "wr <term> [term...]",
	Short: "Remove every trace of an application",
	Long: `WinReclaim - Remove every trace of an application.

Kills its processes, removes its services, scheduled tasks, firewall rules,
shortcuts and registry entries, deletes its install directories and then
scans the usual install and profile locations for leftovers. Protected
system locations are never touched and the whole run is bounded in time.`,
	Example: `  wr acme
  wr "Acme Suite" acmeupdater --dry-run
  wr acme --preset thorough --report acme.json`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReclaim,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")

	f := rootCmd.Flags()
	f.BoolVar(&dryRun, "dry-run", false, "Report matches without deleting anything")
	f.DurationVar(&timeout, "timeout", 0, "Time budget for the run (overrides the preset)")
	f.IntVar(&maxDepth, "max-depth", -1, "Recursion depth for the deep scan (overrides the preset)")
	f.IntVar(&workers, "workers", 0, "Deep scan worker pool size (overrides the preset)")
	f.StringVar(&preset, "preset", "", "Preset: "+strings.Join(config.PresetNames(), ", "))
	f.StringVar(&policyFile, "policy", "", "YAML policy file")
	f.StringVar(&envFile, "env-file", "", "Dotenv file with RECLAIM_* overrides")
	f.StringVar(&logFile, "log-file", "", "Rotating log file")
	f.StringVar(&reportFile, "report", "", "Write the JSON report to this path")
	f.BoolVar(&runUninstallers, "run-uninstallers", false, "Run vendor uninstallers for discovered products first")
	f.BoolVar(&allDrives, "all-drives", false, "Also scan every fixed drive (shallow)")
	f.BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	// Register all subcommands
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

// ─── Reclaim ─────────────────────────────────────────────────────────────────

func runReclaim(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageError(errors.New("at least one target term is required"))
	}

	policy, err := loadPolicy(cmd)
	if err != nil {
		return usageError(err)
	}
	terms, err := policy.Terms(args)
	if err != nil {
		return usageError(err)
	}

	if !isElevated() {
		return &ExitError{Code: ExitAborted, Err: errors.New("administrator privileges are required; rerun from an elevated prompt")}
	}

	out := cmd.OutOrStdout()
	reporter := ui.NewReporter(out)
	if !assumeYes && !dryRun && stdinIsTerminal() {
		details := []string{
			"Terms: " + terms.String(),
			fmt.Sprintf("Preset: %s, time budget %s", policy.Preset, policy.Timeout),
			"Matching processes, services, tasks, firewall rules, registry entries and files will be deleted.",
		}
		ok, err := confirm(cmd.InOrStdin(), out, "Reclaim everything matching these terms?", details)
		if err != nil {
			return &ExitError{Code: ExitAborted, Err: err}
		}
		if !ok {
			return &ExitError{Code: ExitAborted, Err: errors.New("aborted")}
		}
	}

	log, closer := logging.New(logging.Options{File: policy.LogFile, Debug: debug, Stderr: cmd.ErrOrStderr()})
	defer closer.Close()
	entry := logrus.NewEntry(log)
	entry.WithFields(logrus.Fields{"version": appVersion, "os": core.WindowsVersionString()}).Info("wr starting")

	if err := enablePrivileges(); err != nil {
		entry.WithError(err).Warn("could not enable backup/restore privileges")
	}

	cfg := engineConfig(policy)
	cfg.System = nativeSystem()
	cfg.Terms = terms
	cfg.DryRun = dryRun
	cfg.Reporter = reporter
	cfg.Log = entry

	report, err := engine.New(cfg).Run(context.Background())
	if err != nil {
		return err
	}
	reporter.Println("")
	reporter.Summary(report.Summary())

	if reportFile != "" {
		if err := report.WriteFile(reportFile); err != nil {
			entry.WithError(err).Error("writing report")
			reporter.Tag(ui.TagFail, "report: %v", err)
		}
	}
	return nil
}

// loadPolicy layers preset, policy file, environment and flags.
func loadPolicy(cmd *cobra.Command) (config.Policy, error) {
	p, err := config.Load(config.LoadOptions{Preset: preset, PolicyFile: policyFile, EnvFile: envFile})
	if err != nil {
		return config.Policy{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		p.Timeout = timeout
	}
	if flags.Changed("max-depth") {
		p.MaxDepth = maxDepth
	}
	if flags.Changed("workers") {
		p.Workers = workers
	}
	if flags.Changed("log-file") {
		p.LogFile = logFile
	}
	if runUninstallers {
		p.RunUninstallers = true
	}
	if allDrives {
		p.AllDrives = true
	}
	if err := p.Validate(); err != nil {
		return config.Policy{}, err
	}
	return p, nil
}

// engineConfig resolves the environment-dependent parts of a run.
func engineConfig(p config.Policy) engine.Config {
	roots := config.DeepScanRoots(p.MaxDepth, p.ExtraRoots)
	if p.AllDrives {
		for _, d := range config.FixedDrives() {
			roots = append(roots, config.ScanRoot{Path: d, Depth: p.DriveDepth})
		}
	}
	return engine.Config{
		Rules:           p.ProtectionRules(),
		Timeout:         p.Timeout,
		Workers:         p.Workers,
		WindowPass:      p.WindowPass,
		UseProducts:     p.UseWMI,
		RunUninstallers: p.RunUninstallers,
		ScanRoots:       roots,
		ShortcutDirs:    config.ShortcutDirs(),
	}
}
