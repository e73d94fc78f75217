package sweep

import (
	"context"

	"github.com/lakshaymaurya-felt/winreclaim/internal/clean"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// DefaultShortcutDepth covers Start Menu program folders and one level of
// vendor subfolder.
const DefaultShortcutDepth = 2

// ShortcutSweeper removes matching shortcuts and shortcut folders from the
// desktop, Start Menu, Startup and taskbar locations.
type ShortcutSweeper struct {
	Env
	Reclaimer *clean.Reclaimer
	Dirs      []string
	Depth     int
}

// Sweep walks each shortcut location and returns how many entries were
// removed. The reclaimer's file and directory counters include them too.
func (s *ShortcutSweeper) Sweep(ctx context.Context) int {
	depth := s.Depth
	if depth <= 0 {
		depth = DefaultShortcutDepth
	}
	var total int64
	for _, dir := range s.Dirs {
		if s.Deadline.Expired() || ctx.Err() != nil {
			break
		}
		before := s.removed()
		s.Reclaimer.Reclaim(ctx, dir, depth)
		if n := s.removed() - before; n > 0 {
			total += n
			s.Reporter.Tag(ui.TagShortcut, "%s: %d removed", dir, n)
		}
	}
	s.Stats.ShortcutsRemoved.Add(total)
	return int(total)
}

func (s *ShortcutSweeper) removed() int64 {
	st := s.Reclaimer.Stats()
	return st.FilesDeleted.Load() + st.DirsDeleted.Load()
}
