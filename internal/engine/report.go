package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/safefile"

	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
)

// Report is the outcome of one run. It is built only from the counters and
// the pending set once every other phase has finished.
type Report struct {
	RunID          string         `json:"run_id"`
	Terms          []string       `json:"terms"`
	DryRun         bool           `json:"dry_run"`
	Started        time.Time      `json:"started"`
	Finished       time.Time      `json:"finished"`
	Stats          stats.Snapshot `json:"stats"`
	Pending        []string       `json:"pending,omitempty"`
	RebootRequired bool           `json:"reboot_required"`
	DeadlineHit    bool           `json:"deadline_hit"`
	PriorityPaths  []string       `json:"priority_paths,omitempty"`
	Phases         []PhaseResult  `json:"phases"`
}

// Elapsed is the wall-clock duration of the run.
func (r *Report) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Summary converts the report for the terminal renderer.
func (r *Report) Summary() ui.Summary {
	return ui.Summary{
		RunID:       r.RunID,
		Terms:       r.Terms,
		Elapsed:     r.Elapsed(),
		Stats:       r.Stats,
		Pending:     r.Pending,
		DeadlineHit: r.DeadlineHit,
		DryRun:      r.DryRun,
	}
}

// WriteFile stores the report as indented JSON. The file is replaced
// atomically, so a reader never sees a partial report.
func (r *Report) WriteFile(path string) error {
	bs, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating folder for report: %w", err)
	}

	f, err := safefile.Create(path, 0o644)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(bs, '\n')); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	if err := f.Commit(); err != nil {
		return fmt.Errorf("committing report file: %w", err)
	}
	return nil
}
