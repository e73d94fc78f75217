// Package sweep removes the non-filesystem traces of the target
// application: processes, services, scheduled tasks, firewall rules,
// shortcuts and configuration store entries. Every sweeper follows the same
// shape: enumerate, filter by terms, filter by protection, delete, count.
package sweep

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
	"github.com/lakshaymaurya-felt/winreclaim/internal/uninstall"
)

// Env is what every sweeper shares with the rest of the run.
type Env struct {
	Oracle   *protect.Oracle
	Terms    match.Terms
	Deadline core.Deadline
	Stats    *stats.Stats
	Reporter *ui.Reporter
	Log      *logrus.Entry
	DryRun   bool
}

func (e Env) log() *logrus.Entry {
	if e.Log == nil {
		return logging.Discard()
	}
	return e.Log
}

// dryRun reports a match instead of acting on it.
func (e Env) dryRun(format string, args ...any) bool {
	if !e.DryRun {
		return false
	}
	e.Stats.Matched.Add(1)
	e.Reporter.Tag(ui.TagMatch, format, args...)
	return true
}

// failed counts and logs a failed mutation. NotFound is not a failure: the
// resource is already gone.
func (e Env) failed(err error, what, name string) {
	if err == nil || errors.Is(err, platform.ErrNotFound) {
		return
	}
	e.Stats.Failures.Add(1)
	e.Reporter.Tag(ui.TagFail, "%s %s: %v", what, name, err)
	e.log().WithError(err).WithField(what, name).Warn("delete failed")
}

// installDir returns the directory of the program a command line runs when
// that directory itself matches a term and is not protected.
func (e Env) installDir(cmdLine string) string {
	exe := uninstall.ExecutablePath(cmdLine)
	if exe == "" {
		return ""
	}
	dir := core.CleanPath(core.Dir(exe))
	if len(dir) <= 3 || !e.Terms.Match(dir) || e.Oracle.Denies(dir) {
		return ""
	}
	return dir
}

// Result is what a process or service sweep killed and which install
// directories it learned about.
type Result struct {
	Count int
	Dirs  []string
}

func (r *Result) addDir(dir string) {
	if dir == "" {
		return
	}
	for _, d := range r.Dirs {
		if strings.EqualFold(d, dir) {
			return
		}
	}
	r.Dirs = append(r.Dirs, dir)
}
