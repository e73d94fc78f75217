// Package engine sequences one reclamation run: it owns the deadline, the
// shared counters and the priority path set, runs every phase in a fixed
// order and produces the final report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lakshaymaurya-felt/winreclaim/internal/clean"
	"github.com/lakshaymaurya-felt/winreclaim/internal/config"
	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
	"github.com/lakshaymaurya-felt/winreclaim/internal/sweep"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
	"github.com/lakshaymaurya-felt/winreclaim/internal/uninstall"
)

// Config is everything one run needs. The environment-dependent parts
// (scan roots, shortcut locations, drives) are resolved by the caller so
// the engine itself never reads the process environment.
type Config struct {
	System platform.System
	Terms  match.Terms
	Rules  protect.Rules

	Timeout time.Duration
	Workers int

	WindowPass      bool
	UseProducts     bool
	RunUninstallers bool
	DryRun          bool

	// ScanRoots are walked during DeepScan, collapsed when nested.
	ScanRoots []config.ScanRoot
	// ShortcutDirs are the shortcut locations.
	ShortcutDirs []string
	// Subtrees are the configuration subtrees; sweep.DefaultSubtrees when nil.
	Subtrees []sweep.Subtree

	Reporter *ui.Reporter
	Log      *logrus.Entry

	// OnPhase is called as each phase starts.
	OnPhase func(Phase)
	// Now is the clock; time.Now when nil.
	Now func() time.Time
	// Self is the PID never to terminate; the current process when zero.
	Self int32
	// Runner executes vendor uninstall commands; os/exec when nil.
	Runner uninstall.RunFunc
}

// Engine runs the phases of one reclamation.
type Engine struct {
	cfg Config
	log *logrus.Entry
	now func() time.Time

	runID     string
	deadline  core.Deadline
	stats     *stats.Stats
	oracle    *protect.Oracle
	env       sweep.Env
	reclaimer *clean.Reclaimer
	priority  pathSet
	discovery uninstall.Discovery
	results   []PhaseResult
}

// New prepares a run. Nothing is read or mutated until Run.
func New(cfg Config) *Engine {
	e := &Engine{cfg: cfg, now: cfg.Now, log: cfg.Log}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	if e.cfg.Workers < 1 {
		e.cfg.Workers = 1
	}
	return e
}

// Run executes every phase in order and returns the report. No phase is
// skipped because an earlier one failed; only the deadline shortens the
// traversal phases. The returned error is non-nil only when ctx was
// cancelled before the run could start.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := e.now()
	e.runID = uuid.NewString()
	e.log = e.log.WithField("run_id", e.runID)
	e.deadline = core.Deadline{}
	if e.cfg.Timeout > 0 {
		e.deadline = core.DeadlineAt(started.Add(e.cfg.Timeout), e.cfg.Now)
	}
	e.stats = stats.New()
	e.oracle = protect.New(e.cfg.Rules, e.cfg.Terms, e.deadline)
	e.env = sweep.Env{
		Oracle:   e.oracle,
		Terms:    e.cfg.Terms,
		Deadline: e.deadline,
		Stats:    e.stats,
		Reporter: e.cfg.Reporter,
		Log:      e.log,
		DryRun:   e.cfg.DryRun,
	}
	e.reclaimer = clean.New(clean.Config{
		FS:       e.cfg.System.FS,
		Locks:    e.cfg.System.Locks,
		Procs:    e.cfg.System.Processes,
		Oracle:   e.oracle,
		Terms:    e.cfg.Terms,
		Deadline: e.deadline,
		Stats:    e.stats,
		Reporter: e.cfg.Reporter,
		Log:      e.log,
		DryRun:   e.cfg.DryRun,
	})

	e.log.WithFields(logrus.Fields{
		"terms":    e.cfg.Terms.List(),
		"timeout":  e.cfg.Timeout,
		"dry_run":  e.cfg.DryRun,
		"workers":  e.cfg.Workers,
		"deadline": e.deadline.At(),
	}).Info("run started")

	e.phase(ctx, PhaseKillInitial, e.kill)
	e.phase(ctx, PhaseDiscover, e.discover)
	e.phase(ctx, PhaseKillPostDiscovery, e.kill)
	e.phase(ctx, PhaseStopServices, e.services)
	e.phase(ctx, PhaseKillPostServices, e.kill)
	e.phase(ctx, PhaseTasks, e.tasks)
	e.phase(ctx, PhaseFirewall, e.firewall)
	e.phase(ctx, PhaseShortcuts, e.shortcuts)
	e.phase(ctx, PhaseConfigStore, e.configStore)
	e.phase(ctx, PhaseDeletePriorityPaths, e.deletePriority)
	e.phase(ctx, PhaseDeepScan, e.deepScan)
	e.phase(ctx, PhaseKillFinal, e.kill)

	e.notify(PhaseReport)
	return e.report(started), nil
}

// Stats returns the counters of the current or last run.
func (e *Engine) Stats() *stats.Stats {
	return e.stats
}

// ─── Phase plumbing ──────────────────────────────────────────────────────────

type phaseFunc func(ctx context.Context) (int, error)

func (e *Engine) notify(p Phase) {
	if e.cfg.OnPhase != nil {
		e.cfg.OnPhase(p)
	}
}

// phase runs fn and records its result. Failures never propagate: an
// unsupported capability marks the phase skipped, anything else is logged.
func (e *Engine) phase(ctx context.Context, p Phase, fn phaseFunc) {
	e.notify(p)
	e.cfg.Reporter.Tag(ui.TagPhase, "%s", p)
	log := e.log.WithField("phase", p.String())
	start := e.now()

	n, err := fn(ctx)

	res := PhaseResult{Phase: p.String(), Count: n, Elapsed: e.now().Sub(start).Round(time.Millisecond).String()}
	switch {
	case err == nil:
		log.WithField("count", n).Debug("phase finished")
	case errors.Is(err, platform.ErrUnsupported):
		res.Skipped = true
		e.cfg.Reporter.Tag(ui.TagSkip, "%s: %v", p, err)
		log.WithError(err).Info("phase skipped")
	default:
		res.Error = err.Error()
		e.stats.Failures.Add(1)
		e.cfg.Reporter.Tag(ui.TagFail, "%s: %v", p, err)
		log.WithError(err).Warn("phase failed")
	}
	e.results = append(e.results, res)
}

func unsupported(capability string) error {
	return fmt.Errorf("%s: %w", capability, platform.ErrUnsupported)
}

// ─── Phases ──────────────────────────────────────────────────────────────────

func (e *Engine) kill(ctx context.Context) (int, error) {
	if e.cfg.System.Processes == nil {
		return 0, unsupported("process table")
	}
	s := &sweep.ProcessSweeper{
		Env:        e.env,
		Procs:      e.cfg.System.Processes,
		Windows:    e.cfg.System.Windows,
		WindowPass: e.cfg.WindowPass,
		Self:       e.cfg.Self,
	}
	res, err := s.Sweep(ctx)
	e.priority.add(res.Dirs...)
	return res.Count, err
}

func (e *Engine) discover(ctx context.Context) (int, error) {
	if e.cfg.System.Config == nil {
		return 0, unsupported("config store")
	}
	r := &uninstall.Resolver{
		Store: e.cfg.System.Config,
		Terms: e.cfg.Terms,
		Log:   e.log,
	}
	if e.cfg.UseProducts {
		r.Products = e.cfg.System.Products
	}
	e.discovery = r.Resolve(ctx)
	for _, p := range e.discovery.Paths {
		e.cfg.Reporter.Tag(ui.TagFound, "install location %s", p)
	}
	e.priority.add(e.discovery.Paths...)

	if e.cfg.RunUninstallers {
		runner := &uninstall.Runner{
			Deadline: e.deadline,
			Stats:    e.stats,
			Reporter: e.cfg.Reporter,
			Log:      e.log,
			DryRun:   e.cfg.DryRun,
			Run:      e.cfg.Runner,
		}
		runner.RunAll(ctx, e.discovery.Apps, e.discovery.ProductCodes)
	}
	return len(e.discovery.Paths), nil
}

func (e *Engine) services(ctx context.Context) (int, error) {
	if e.cfg.System.Services == nil {
		return 0, unsupported("service manager")
	}
	s := &sweep.ServiceSweeper{Env: e.env, Services: e.cfg.System.Services}
	res, err := s.Sweep(ctx)
	e.priority.add(res.Dirs...)
	return res.Count, err
}

func (e *Engine) tasks(ctx context.Context) (int, error) {
	if e.cfg.System.Tasks == nil {
		return 0, unsupported("task scheduler")
	}
	s := &sweep.TaskSweeper{Env: e.env, Tasks: e.cfg.System.Tasks}
	return s.Sweep(ctx)
}

func (e *Engine) firewall(ctx context.Context) (int, error) {
	if e.cfg.System.Firewall == nil {
		return 0, unsupported("firewall")
	}
	s := &sweep.FirewallSweeper{Env: e.env, Firewall: e.cfg.System.Firewall}
	return s.Sweep(ctx)
}

func (e *Engine) shortcuts(ctx context.Context) (int, error) {
	s := &sweep.ShortcutSweeper{
		Env:       e.env,
		Reclaimer: e.reclaimer,
		Dirs:      e.cfg.ShortcutDirs,
	}
	return s.Sweep(ctx), nil
}

func (e *Engine) configStore(ctx context.Context) (int, error) {
	if e.cfg.System.Config == nil {
		return 0, unsupported("config store")
	}
	s := &sweep.ConfigSweeper{Env: e.env, Store: e.cfg.System.Config, Subtrees: e.cfg.Subtrees}
	return s.Sweep(ctx)
}

// deletePriority removes every discovered install directory, outermost
// first, before the generic scan runs.
func (e *Engine) deletePriority(ctx context.Context) (int, error) {
	removed := 0
	for _, p := range collapsePaths(e.priority.list()) {
		if e.deadline.Expired() || ctx.Err() != nil {
			e.log.WithField("path", p).Warn("priority delete stopped at deadline")
			break
		}
		if e.oracle.IsProtected(p) {
			e.cfg.Reporter.Tag(ui.TagSkip, "protected: %s", p)
			continue
		}
		switch e.reclaimer.RemoveTree(ctx, p) {
		case clean.Removed:
			removed++
			if !e.cfg.DryRun {
				e.cfg.Reporter.Tag(ui.TagNuke, "%s", p)
			}
		case clean.Pending:
			removed++
		}
	}
	return removed, nil
}

// deepScan walks every scan root on a bounded worker pool. A shallow root
// may contain a deeper one (a drive root and its Program Files); each
// worker leaves the roots nested in its own to their workers, so no two
// workers ever remove the same entry. The count is the number of matching
// entries reclaimed, a removed directory counting once.
func (e *Engine) deepScan(ctx context.Context) (int, error) {
	roots := collapseRoots(e.cfg.ScanRoots)
	var reclaimed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, root := range roots {
		if e.deadline.Expired() {
			e.stats.SubtreesSkipped.Add(1)
			continue
		}
		nested := nestedRoots(roots, i)
		g.Go(func() error {
			e.log.WithField("path", root.Path).WithField("depth", root.Depth).Debug("scanning root")
			reclaimed.Add(int64(e.reclaimer.Reclaim(gctx, root.Path, root.Depth, nested...)))
			return nil
		})
	}
	err := g.Wait()
	return int(reclaimed.Load()), err
}

func (e *Engine) report(started time.Time) *Report {
	snap := e.stats.Snapshot()
	pending := e.stats.Pending()
	r := &Report{
		RunID:          e.runID,
		Terms:          e.cfg.Terms.List(),
		DryRun:         e.cfg.DryRun,
		Started:        started,
		Finished:       e.now(),
		Stats:          snap,
		Pending:        pending,
		RebootRequired: len(pending) > 0,
		DeadlineHit:    e.deadline.Expired(),
		PriorityPaths:  e.priority.list(),
		Phases:         append(e.results, PhaseResult{Phase: PhaseReport.String()}),
	}
	e.log.WithFields(logrus.Fields{
		"removed":  snap.Removed(),
		"pending":  len(pending),
		"failures": snap.Failures,
		"deadline": r.DeadlineHit,
	}).Info("run finished")
	return r
}
