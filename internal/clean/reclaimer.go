// Package clean removes filesystem traces of the target application. All
// traversals use an explicit work stack, never follow links and stop making
// progress once the run deadline has passed.
package clean

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/logging"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// Outcome is the result of removing one path.
type Outcome int

const (
	// Removed means the path is gone (or was already gone).
	Removed Outcome = iota
	// Pending means the path is scheduled for removal at restart.
	Pending
	// Kept means the path is still present: protected, skipped or failed.
	Kept
)

// Config wires a Reclaimer.
type Config struct {
	FS       platform.FileSystem
	Locks    platform.LockFinder
	Procs    platform.ProcessTable
	Oracle   *protect.Oracle
	Terms    match.Terms
	Deadline core.Deadline
	Stats    *stats.Stats
	Reporter *ui.Reporter
	Log      *logrus.Entry
	DryRun   bool
}

// Reclaimer deletes matching files and directories. It is safe for
// concurrent use by DeepScan workers.
type Reclaimer struct {
	fs       platform.FileSystem
	locks    platform.LockFinder
	procs    platform.ProcessTable
	oracle   *protect.Oracle
	terms    match.Terms
	deadline core.Deadline
	stats    *stats.Stats
	report   *ui.Reporter
	log      *logrus.Entry
	dryRun   bool
	self     int32
}

// New builds a Reclaimer. Missing optional capabilities degrade the
// escalation chain instead of failing.
func New(cfg Config) *Reclaimer {
	r := &Reclaimer{
		fs:       cfg.FS,
		locks:    cfg.Locks,
		procs:    cfg.Procs,
		oracle:   cfg.Oracle,
		terms:    cfg.Terms,
		deadline: cfg.Deadline,
		stats:    cfg.Stats,
		report:   cfg.Reporter,
		log:      cfg.Log,
		dryRun:   cfg.DryRun,
		self:     int32(os.Getpid()),
	}
	if r.fs == nil {
		r.fs = platform.OSFileSystem{}
	}
	if r.stats == nil {
		r.stats = stats.New()
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	return r
}

// Stats returns the counters the reclaimer updates.
func (r *Reclaimer) Stats() *stats.Stats {
	return r.stats
}

type scanFrame struct {
	path  string
	depth int
}

// Reclaim scans root for entries whose name matches a term and removes
// them. Non-matching directories are descended into while depth allows:
// maxDepth 0 inspects only root's direct children. Paths in exclude belong
// to another concurrent scan and are neither entered nor removed, and a
// matching directory that holds one is descended into instead of removed.
// It returns how many matching entries were removed, scheduled for
// restart or, in a dry run, matched.
func (r *Reclaimer) Reclaim(ctx context.Context, root string, maxDepth int, exclude ...string) int {
	root = filepath.Clean(root)
	if !r.oracle.MayDescend(root) {
		return 0
	}
	skip := make(map[string]bool, len(exclude))
	for _, x := range exclude {
		skip[protect.Normalize(filepath.Clean(x))] = true
	}

	reclaimed := 0
	stack := []scanFrame{{path: root, depth: maxDepth}}
	for len(stack) > 0 {
		if r.deadline.Expired() || ctx.Err() != nil {
			r.stats.SubtreesSkipped.Add(int64(len(stack)))
			r.log.WithField("root", root).WithField("frames", len(stack)).Warn("scan stopped at deadline")
			return reclaimed
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := r.fs.ReadDir(f.path)
		if err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				r.log.WithField("path", f.path).WithError(err).Debug("read dir")
			}
			continue
		}
		for _, e := range entries {
			full := filepath.Join(f.path, e.Name())
			if skip[protect.Normalize(full)] {
				continue
			}
			if !r.oracle.MayDescend(full) {
				continue
			}
			if r.tooLong(full) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			link := r.fs.IsLink(full, info)
			dir := info.IsDir() && !link

			if r.terms.Match(e.Name()) && r.deletable(full, dir) && !(dir && holdsAny(full, skip)) {
				r.report.Tag(ui.TagFound, "%s", full)
				var out Outcome
				switch {
				case link:
					out = r.removeEntry(ctx, full, 0, info.IsDir())
				case dir:
					out = r.RemoveTree(ctx, full)
				default:
					out = r.removeEntry(ctx, full, info.Size(), false)
				}
				if out != Kept {
					reclaimed++
				}
				continue
			}
			if dir && f.depth > 0 {
				stack = append(stack, scanFrame{path: full, depth: f.depth - 1})
			}
		}
	}
	return reclaimed
}

// holdsAny reports whether one of the normalised paths in set lies below dir.
func holdsAny(dir string, set map[string]bool) bool {
	if len(set) == 0 {
		return false
	}
	n := protect.Normalize(dir)
	for k := range set {
		if k != n && strings.HasPrefix(k, n) {
			return true
		}
	}
	return false
}

// deletable applies the mutation-side protection: exact roots and, for
// directories, protected names.
func (r *Reclaimer) deletable(path string, dir bool) bool {
	if r.oracle.IsProtected(path) {
		return false
	}
	return !(dir && r.oracle.IsProtectedName(filepath.Base(path)))
}

func (r *Reclaimer) tooLong(path string) bool {
	if len(path) <= platform.MaxPath {
		return false
	}
	r.stats.SubtreesSkipped.Add(1)
	r.report.Tag(ui.TagSkip, "path too long: %.80s...", path)
	r.log.WithField("path", path).Warn("path exceeds platform limit")
	return true
}
