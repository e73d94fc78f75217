package uninstall

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// uninstallTimeout bounds one vendor uninstaller.
const uninstallTimeout = 120 * time.Second

var (
	msiGUIDPattern         = regexp.MustCompile(`\{[0-9A-Fa-f-]+\}`)
	uninstallStringPattern = regexp.MustCompile(`[^\s"]+|"([^"]*)"`)
	// InnoSetup uninstallers are numbered: unins000.exe, unins001.exe...
	uninsPattern = regexp.MustCompile(`unins\d+\.exe`)
)

// InstallerType is the installer technology behind an uninstall command.
type InstallerType int

const (
	InstallerMSI InstallerType = iota
	InstallerSquirrel
	InstallerNSIS
	InstallerInnoSetup
	InstallerGenericEXE
)

// ─── Runner ──────────────────────────────────────────────────────────────────

// RunFunc executes one command and returns its combined output.
type RunFunc func(ctx context.Context, exe string, args ...string) ([]byte, error)

func execRun(ctx context.Context, exe string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, exe, args...).CombinedOutput()
}

// Runner runs vendor uninstallers silently before the forced sweep, so
// well-behaved installers get a chance to unregister themselves.
type Runner struct {
	Deadline core.Deadline
	Stats    *stats.Stats
	Reporter *ui.Reporter
	Log      *logrus.Entry
	DryRun   bool

	// Run executes commands; exec.CommandContext when nil.
	Run RunFunc
}

// RunAll uninstalls every app, then every product code not already covered
// by an app's uninstall command. Failures are logged and counted; the
// sweep that follows cleans up whatever the uninstaller left.
func (r *Runner) RunAll(ctx context.Context, apps []InstalledApp, productCodes []string) {
	done := make(map[string]bool)
	for _, app := range apps {
		if r.Deadline.Expired() {
			return
		}
		cmdStr := chooseUninstallCommand(app)
		if cmdStr == "" {
			continue
		}
		if guid := msiGUIDPattern.FindString(cmdStr); guid != "" {
			done[strings.ToUpper(guid)] = true
		}
		r.run(ctx, app.Name, cmdStr)
	}
	for _, code := range productCodes {
		if r.Deadline.Expired() {
			return
		}
		if done[strings.ToUpper(code)] {
			continue
		}
		done[strings.ToUpper(code)] = true
		r.run(ctx, code, "MsiExec.exe /X"+code)
	}
}

func (r *Runner) run(ctx context.Context, name, cmdStr string) {
	if r.DryRun {
		r.Reporter.Tag(ui.TagMatch, "uninstaller for %s: %s", name, cmdStr)
		return
	}
	ctx, cancel := r.Deadline.Bound(ctx, uninstallTimeout)
	defer cancel()

	log := r.Log
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("app", name)
	if err := r.uninstall(ctx, cmdStr); err != nil {
		if r.Stats != nil {
			r.Stats.Failures.Add(1)
		}
		log.WithError(err).Warn("vendor uninstaller failed")
		r.Reporter.Tag(ui.TagFail, "uninstaller for %s: %v", name, err)
		return
	}
	if r.Stats != nil {
		r.Stats.UninstallersRun.Add(1)
	}
	log.Info("vendor uninstaller finished")
	r.Reporter.Tag(ui.TagDelete, "uninstalled %s", name)
}

// uninstall runs one uninstall command silently.
func (r *Runner) uninstall(ctx context.Context, cmdStr string) error {
	run := r.Run
	if run == nil {
		run = execRun
	}

	installerType := detectInstallerType(cmdStr)
	if installerType == InstallerMSI {
		if guid := msiGUIDPattern.FindString(cmdStr); guid != "" {
			output, err := run(ctx, "msiexec.exe", "/x", guid, "/qn", "/norestart")
			return handleExitError(ctx, err, output)
		}
		// Without a GUID the raw command is the best we have.
		installerType = InstallerGenericEXE
	}

	exe, args := parseUninstallString(cmdStr)
	if exe == "" {
		return fmt.Errorf("unable to parse uninstall command: %q", cmdStr)
	}
	args = applySilentFlags(args, installerType)
	output, err := run(ctx, exe, args...)
	return handleExitError(ctx, err, output)
}

// ─── Command Lines ───────────────────────────────────────────────────────────

// parseUninstallString splits a command line into executable and
// arguments. Quoted segments keep their spaces and lose their quotes.
func parseUninstallString(cmdStr string) (string, []string) {
	var parts []string
	for _, m := range uninstallStringPattern.FindAllStringSubmatch(strings.TrimSpace(cmdStr), -1) {
		if m[1] != "" {
			parts = append(parts, m[1])
			continue
		}
		parts = append(parts, m[0])
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Trim(parts[0], `"`), parts[1:]
}

// binaryExts end the path in unquoted command lines.
var binaryExts = []string{".exe", ".dll", ".sys", ".ocx"}

// ExecutablePath returns the program or module a command line names.
// Unquoted paths with spaces, common in service ImagePath and COM server
// values, are cut after the first binary extension.
func ExecutablePath(cmdLine string) string {
	cmdLine = strings.TrimSpace(cmdLine)
	if !strings.HasPrefix(cmdLine, `"`) {
		lower := strings.ToLower(cmdLine)
		end := -1
		for _, ext := range binaryExts {
			i := strings.Index(lower, ext)
			for i >= 0 {
				after := i + len(ext)
				if after == len(lower) || lower[after] == ' ' {
					break
				}
				next := strings.Index(lower[after:], ext)
				if next < 0 {
					i = -1
					break
				}
				i = after + next
			}
			if i >= 0 && (end < 0 || i+len(ext) < end) {
				end = i + len(ext)
			}
		}
		if end > 0 {
			return cmdLine[:end]
		}
	}
	exe, _ := parseUninstallString(cmdLine)
	return exe
}

// detectInstallerType guesses the installer technology from the executable
// name alone. Directory names such as "update.exe stuff" must not count.
func detectInstallerType(cmdStr string) InstallerType {
	exe, _ := parseUninstallString(cmdStr)
	name := strings.ToLower(core.Base(exe))
	switch {
	case name == "msiexec.exe" || name == "msiexec":
		return InstallerMSI
	case name == "update.exe":
		return InstallerSquirrel
	case uninsPattern.MatchString(name):
		return InstallerInnoSetup
	case strings.Contains(name, "uninst"):
		return InstallerNSIS
	}
	return InstallerGenericEXE
}

// silentFlag is one flag an installer needs to run unattended. Any alias
// already on the command line counts as present.
type silentFlag struct {
	flag    string
	aliases []string
	// exact disables case folding; NSIS only honours an upper-case /S.
	exact bool
}

var silentFlags = map[InstallerType][]silentFlag{
	InstallerSquirrel: {
		{flag: "--uninstall", aliases: []string{"-uninstall"}},
		{flag: "-s", aliases: []string{"--silent"}},
	},
	InstallerNSIS: {{flag: "/S", exact: true}},
	InstallerInnoSetup: {
		{flag: "/VERYSILENT"},
		{flag: "/SUPPRESSMSGBOXES"},
		{flag: "/NORESTART"},
	},
	InstallerGenericEXE: {{flag: "/S"}},
}

func (f silentFlag) in(args []string) bool {
	for _, arg := range args {
		for _, name := range append([]string{f.flag}, f.aliases...) {
			if arg == name || (!f.exact && strings.EqualFold(arg, name)) {
				return true
			}
		}
	}
	return false
}

// applySilentFlags appends the flags installerType needs for an
// unattended run. MSI products go through msiexec and get nothing here.
func applySilentFlags(args []string, installerType InstallerType) []string {
	for _, f := range silentFlags[installerType] {
		if !f.in(args) {
			args = append(args, f.flag)
		}
	}
	return args
}

// chooseUninstallCommand prefers the vendor's quiet command line.
func chooseUninstallCommand(app InstalledApp) string {
	if app.QuietUninstallString != "" {
		return app.QuietUninstallString
	}
	return app.UninstallString
}

// MSI exit codes that mean the product is gone.
const (
	msiUnknownProduct   = 1605
	msiRebootInitiated  = 1641
	msiRebootRequired   = 3010
	maxFailureOutputLen = 200
)

// handleExitError turns a command failure into an error, or nil when the
// exit code still means the product is gone.
func handleExitError(ctx context.Context, err error, output []byte) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("uninstall timed out: %w", context.DeadlineExceeded)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("uninstall command error: %w", err)
	}
	code := exitErr.ExitCode()
	switch code {
	case msiUnknownProduct, msiRebootInitiated, msiRebootRequired:
		return nil
	}
	if out := truncateOutput(string(output)); out != "" {
		return fmt.Errorf("uninstall failed (exit code %d): %s", code, out)
	}
	return fmt.Errorf("uninstall failed (exit code %d)", code)
}

// truncateOutput trims s to maxFailureOutputLen bytes on a rune boundary.
func truncateOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxFailureOutputLen {
		return s
	}
	s = s[:maxFailureOutputLen]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "..."
}
