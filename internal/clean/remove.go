package clean

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

type treeNode struct {
	path     string
	parent   *treeNode
	expanded bool
	kept     bool
	outcome  Outcome
}

func (n *treeNode) keep() {
	n.kept = true
}

// RemoveTree deletes path and everything below it, children before
// parents. Protected descendants are left in place together with every
// ancestor up to path. Links inside the tree are removed, not followed.
func (r *Reclaimer) RemoveTree(ctx context.Context, path string) Outcome {
	path = filepath.Clean(path)
	info, err := r.fs.Lstat(path)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return Removed
		}
		r.fail(path, err)
		return Kept
	}
	if !r.deletable(path, info.IsDir()) {
		r.report.Tag(ui.TagSkip, "protected: %s", path)
		return Kept
	}
	if !info.IsDir() || r.fs.IsLink(path, info) {
		return r.removeEntry(ctx, path, info.Size(), info.IsDir())
	}
	if r.dryRun {
		r.match(path)
		return Removed
	}

	root := &treeNode{path: path}
	stack := []*treeNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		if !n.expanded {
			n.expanded = true
			if r.deadline.Expired() || ctx.Err() != nil {
				r.stats.SubtreesSkipped.Add(1)
				n.keep()
				stack = stack[:len(stack)-1]
				r.propagate(n)
				continue
			}
			r.expand(ctx, n, &stack)
			continue
		}

		stack = stack[:len(stack)-1]
		if !n.kept {
			if n.outcome = r.removeDir(ctx, n.path); n.outcome == Kept {
				n.keep()
			}
		}
		r.propagate(n)
	}

	if root.kept {
		return Kept
	}
	return root.outcome
}

// expand lists n, removes its non-directory children and pushes its
// subdirectories.
func (r *Reclaimer) expand(ctx context.Context, n *treeNode, stack *[]*treeNode) {
	entries, err := r.fs.ReadDir(n.path)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			r.fail(n.path, err)
			n.keep()
		}
		return
	}
	for _, e := range entries {
		full := filepath.Join(n.path, e.Name())
		if r.oracle.IsProtected(full) {
			r.report.Tag(ui.TagSkip, "protected: %s", full)
			n.keep()
			continue
		}
		if r.tooLong(full) {
			n.keep()
			continue
		}
		info, err := e.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				n.keep()
			}
			continue
		}
		if info.IsDir() && !r.fs.IsLink(full, info) {
			*stack = append(*stack, &treeNode{path: full, parent: n})
			continue
		}
		if r.removeEntry(ctx, full, info.Size(), info.IsDir()) == Kept {
			n.keep()
		}
	}
}

func (r *Reclaimer) propagate(n *treeNode) {
	if n.kept && n.parent != nil {
		n.parent.keep()
	}
}

// RemoveFile deletes a single file through the full escalation chain.
func (r *Reclaimer) RemoveFile(ctx context.Context, path string) Outcome {
	path = filepath.Clean(path)
	info, err := r.fs.Lstat(path)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return Removed
		}
		r.fail(path, err)
		return Kept
	}
	if !r.deletable(path, false) {
		return Kept
	}
	return r.removeEntry(ctx, path, info.Size(), info.IsDir())
}

// removeEntry removes a file or link: clear attributes, delete, take
// ownership on access denied, terminate lock holders, and finally schedule
// the path for removal at restart.
func (r *Reclaimer) removeEntry(ctx context.Context, path string, size int64, dirLink bool) Outcome {
	if r.dryRun {
		r.match(path)
		return Removed
	}
	err := r.escalate(ctx, path)
	switch {
	case err == nil:
		if dirLink {
			r.stats.DirsDeleted.Add(1)
		} else {
			r.stats.FilesDeleted.Add(1)
			r.stats.BytesFreed.Add(size)
		}
		r.report.Tag(ui.TagDelete, "%s", path)
		return Removed
	case errors.Is(err, platform.ErrNotFound):
		return Removed
	}
	return r.schedule(path, err)
}

// removeDir removes an empty directory with the same escalation as files.
func (r *Reclaimer) removeDir(ctx context.Context, path string) Outcome {
	err := r.escalate(ctx, path)
	switch {
	case err == nil:
		r.stats.DirsDeleted.Add(1)
		r.report.Tag(ui.TagNuke, "%s", path)
		return Removed
	case errors.Is(err, platform.ErrNotFound):
		return Removed
	}
	return r.schedule(path, err)
}

func (r *Reclaimer) escalate(ctx context.Context, path string) error {
	err := r.removeOnce(path)
	if err == nil || errors.Is(err, platform.ErrNotFound) {
		return err
	}

	if errors.Is(err, platform.ErrAccessDenied) {
		if ownErr := r.fs.TakeOwnership(path); ownErr == nil {
			r.log.WithField("path", path).Debug("took ownership")
			if err = r.removeOnce(path); err == nil || errors.Is(err, platform.ErrNotFound) {
				return err
			}
		} else {
			r.log.WithField("path", path).WithError(ownErr).Debug("take ownership")
		}
	}

	if errors.Is(err, platform.ErrLocked) || errors.Is(err, platform.ErrAccessDenied) {
		if r.unlock(ctx, path) > 0 {
			err = r.removeOnce(path)
		}
	}
	return err
}

func (r *Reclaimer) removeOnce(path string) error {
	if err := r.fs.ClearAttributes(path); err != nil && errors.Is(err, platform.ErrNotFound) {
		return err
	}
	return r.fs.Remove(path)
}

// unlock terminates the processes holding path and returns how many were
// killed. Protected processes and the current process are never touched.
func (r *Reclaimer) unlock(ctx context.Context, path string) int {
	if r.locks == nil || r.procs == nil {
		return 0
	}
	holders, err := r.locks.Lockers(ctx, path)
	if err != nil {
		r.log.WithField("path", path).WithError(err).Debug("find lockers")
		return 0
	}
	killed := 0
	for _, h := range holders {
		if platform.IsSystemPID(h.PID) || h.PID == r.self {
			continue
		}
		if r.oracle.IsProtectedProcess(h.Name, h.Exe) {
			r.log.WithField("path", path).WithField("pid", h.PID).Info("lock held by protected process")
			continue
		}
		if err := r.procs.Kill(ctx, h.PID); err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				r.stats.Failures.Add(1)
				r.log.WithField("pid", h.PID).WithError(err).Debug("kill lock holder")
			}
			continue
		}
		killed++
		r.stats.ProcessesKilled.Add(1)
		r.report.Tag(ui.TagUnlock, "%s held by %s (pid %d)", path, h.Name, h.PID)
	}
	return killed
}

func (r *Reclaimer) schedule(path string, cause error) Outcome {
	if err := r.fs.ScheduleDelete(path); err != nil {
		r.fail(path, cause)
		return Kept
	}
	if r.stats.AddPending(path) {
		r.report.Tag(ui.TagPending, "%s", path)
		r.log.WithField("path", path).WithError(cause).Info("scheduled for removal at restart")
	}
	return Pending
}

func (r *Reclaimer) match(path string) {
	r.stats.Matched.Add(1)
	r.report.Tag(ui.TagMatch, "%s", path)
}

func (r *Reclaimer) fail(path string, err error) {
	r.stats.Failures.Add(1)
	r.report.Tag(ui.TagFail, "%s: %v", path, err)
	r.log.WithField("path", path).WithError(err).Warn("remove failed")
}
