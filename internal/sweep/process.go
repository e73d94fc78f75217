package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// ProcessSweeper terminates processes belonging to the target.
type ProcessSweeper struct {
	Env
	Procs platform.ProcessTable

	// Windows and WindowPass enable the third pass over visible window
	// titles.
	Windows    platform.WindowLister
	WindowPass bool

	// Self is the PID never to kill; the current process when zero.
	Self int32
}

// Sweep runs three passes: executable name, full executable path, and
// optionally window title. A process is considered at most once. Install
// directories seen in pass two are returned for the priority delete.
func (s *ProcessSweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	procs, err := s.Procs.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list processes: %w", err)
	}

	self := s.Self
	if self == 0 {
		self = int32(os.Getpid())
	}
	byPID := make(map[int32]platform.ProcessInfo, len(procs))
	for _, p := range procs {
		byPID[p.PID] = p
	}
	handled := make(map[int32]bool)
	consider := func(p platform.ProcessInfo, pass string) {
		if handled[p.PID] {
			return
		}
		handled[p.PID] = true
		if platform.IsSystemPID(p.PID) || p.PID == self || s.Oracle.IsProtectedProcess(p.Name, p.Exe) {
			s.log().WithFields(logrus.Fields{"pid": p.PID, "name": p.Name}).Debug("protected process skipped")
			return
		}
		s.kill(ctx, p, pass, &res)
	}

	for _, p := range procs {
		if s.Terms.Match(p.Name) {
			consider(p, "name")
		}
	}
	for _, p := range procs {
		if p.Exe == "" || !s.Terms.Match(p.Exe) {
			continue
		}
		res.addDir(s.installDir(p.Exe))
		consider(p, "path")
	}

	if s.WindowPass && s.Windows != nil {
		windows, err := s.Windows.Windows(ctx)
		if err != nil && !errors.Is(err, platform.ErrUnsupported) {
			s.log().WithError(err).Warn("window enumeration failed")
		}
		for _, w := range windows {
			if !s.Terms.Match(w.Title) {
				continue
			}
			// A PID missing from the snapshot cannot be checked against the
			// protected list; it may belong to a process started since.
			p, ok := byPID[w.PID]
			if !ok {
				s.log().WithFields(logrus.Fields{"pid": w.PID, "title": w.Title}).Debug("window owner not in process snapshot")
				continue
			}
			consider(p, "window")
		}
	}
	return res, nil
}

func (s *ProcessSweeper) kill(ctx context.Context, p platform.ProcessInfo, pass string, res *Result) {
	if s.dryRun("process %s (pid %d)", p.Name, p.PID) {
		return
	}
	if err := s.Procs.Kill(ctx, p.PID); err != nil {
		s.failed(err, "pid", fmt.Sprint(p.PID))
		return
	}
	s.Stats.ProcessesKilled.Add(1)
	res.Count++
	s.Reporter.Tag(ui.TagKill, "%s (pid %d, by %s)", p.Name, p.PID, pass)
	s.log().WithFields(logrus.Fields{"pid": p.PID, "name": p.Name, "pass": pass}).Info("process killed")
}
