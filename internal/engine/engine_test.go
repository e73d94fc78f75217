package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/winreclaim/internal/config"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform/platformtest"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
)

const uninstallKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`

// world is a temp-directory filesystem plus fake OS resources holding one
// installed application.
type world struct {
	root     string
	fs       *platformtest.FS
	procs    *platformtest.Processes
	services *platformtest.Services
	tasks    *platformtest.Tasks
	firewall *platformtest.Firewall
	store    *platformtest.MemStore
}

func (w *world) path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{root: t.TempDir(), fs: platformtest.NewFS(), store: platformtest.NewMemStore()}

	for _, p := range []string{
		w.path("pf", "AcmeSuite", "app.exe"),
		w.path("pf", "AcmeSuite", "updater.exe"),
		w.path("pf", "Other", "acme_notes.txt"),
		w.path("pf", "Other", "readme.txt"),
		w.path("pd", "Vendor", "cache", "acme.log"),
		w.path("Windows", "System32", "acme.dll"),
		w.path("Desktop", "Acme.lnk"),
		w.path("Desktop", "Other.lnk"),
	} {
		writeFile(t, p)
	}

	w.procs = platformtest.NewProcesses(
		platform.ProcessInfo{PID: 100, Name: "app.exe", Exe: w.path("pf", "AcmeSuite", "app.exe")},
		platform.ProcessInfo{PID: 200, Name: "notepad.exe", Exe: w.path("Tools", "notepad.exe")},
	)
	w.fs.Procs = w.procs
	w.services = platformtest.NewServices(
		platform.Service{Name: "AcmeUpdater", DisplayName: "Acme Updater", BinaryPath: w.path("pf", "AcmeSuite", "updater.exe")},
		platform.Service{Name: "Spooler", DisplayName: "Print Spooler"},
	)
	w.tasks = platformtest.NewTasks(
		platform.Task{Path: `\AcmeUpdateTask`, Action: w.path("pf", "AcmeSuite", "updater.exe")},
		platform.Task{Path: `\Microsoft\Windows\AcmeTelemetry`},
	)
	w.firewall = platformtest.NewFirewall(
		platform.FirewallRule{Name: "Acme Inbound", Program: w.path("pf", "AcmeSuite", "app.exe")},
		platform.FirewallRule{Name: "Core Networking"},
	)

	record := uninstallKey + `\{1111-ACME}`
	w.store.AddKey(platform.LocalMachine, record)
	w.store.Put(platform.LocalMachine, record, "DisplayName", "Acme Suite")
	w.store.Put(platform.LocalMachine, record, "InstallLocation", w.path("pf", "AcmeSuite"))
	w.store.Put(platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "AcmeTray", w.path("pf", "AcmeSuite", "app.exe"))
	w.store.Put(platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "SecurityHealth", `C:\Windows\System32\SecurityHealthSystray.exe`)
	return w
}

func (w *world) config(terms ...string) Config {
	rules := protect.DefaultRules().Merge(protect.Rules{
		Roots: []string{w.path("pf"), w.path("pd"), w.path("Desktop"), w.path("Windows")},
	})
	return Config{
		System: platform.System{
			FS:        w.fs,
			Locks:     w.fs,
			Processes: w.procs,
			Windows:   platformtest.Windows{},
			Services:  w.services,
			Tasks:     w.tasks,
			Firewall:  w.firewall,
			Config:    w.store,
			Products:  platformtest.Products{},
		},
		Terms:   match.NewTerms(terms...),
		Rules:   rules,
		Timeout: time.Minute,
		Workers: 2,

		ScanRoots: []config.ScanRoot{
			{Path: w.path("pf"), Depth: 5},
			{Path: w.path("pd"), Depth: 5},
			{Path: w.path("pd", "Vendor"), Depth: 1},
			{Path: w.path("Windows"), Depth: 5},
		},
		ShortcutDirs: []string{w.path("Desktop")},
		Self:         1,
	}
}

// ─── Runs ────────────────────────────────────────────────────────────────────

func TestRunRemovesEveryTrace(t *testing.T) {
	w := newWorld(t)

	rep, err := New(w.config("acme")).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, exists(w.path("pf", "AcmeSuite")))
	assert.False(t, exists(w.path("pf", "Other", "acme_notes.txt")))
	assert.True(t, exists(w.path("pf", "Other", "readme.txt")))
	assert.False(t, exists(w.path("pd", "Vendor", "cache", "acme.log")))
	assert.True(t, exists(w.path("Windows", "System32", "acme.dll")), "protected paths survive a term match")
	assert.False(t, exists(w.path("Desktop", "Acme.lnk")))
	assert.True(t, exists(w.path("Desktop", "Other.lnk")))

	assert.Equal(t, []int32{100}, w.procs.Killed())
	assert.Equal(t, []string{"AcmeUpdater"}, w.services.Deleted())
	assert.Equal(t, []string{`\AcmeUpdateTask`}, w.tasks.Deleted())
	assert.Equal(t, 1, w.firewall.Deletes())
	assert.False(t, w.store.HasKey(platform.LocalMachine, uninstallKey+`\{1111-ACME}`))
	_, ok := w.store.Get(platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "AcmeTray")
	assert.False(t, ok)
	_, ok = w.store.Get(platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "SecurityHealth")
	assert.True(t, ok)

	s := rep.Stats
	assert.Equal(t, int64(1), s.ProcessesKilled)
	assert.Equal(t, int64(1), s.ServicesDeleted)
	assert.Equal(t, int64(1), s.TasksDeleted)
	assert.Equal(t, int64(1), s.FirewallRulesDeleted)
	assert.Equal(t, int64(1), s.ShortcutsRemoved)
	assert.Equal(t, int64(1), s.ConfigKeysDeleted)
	assert.Equal(t, int64(1), s.ConfigValuesDeleted)
	assert.Zero(t, s.Failures)
	assert.Zero(t, s.Matched)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, []string{"acme"}, rep.Terms)
	assert.False(t, rep.RebootRequired)
	assert.False(t, rep.DeadlineHit)
	assert.Equal(t, []string{w.path("pf", "AcmeSuite")}, rep.PriorityPaths)
	assert.Len(t, rep.Phases, len(Phases()))
}

func TestPhasesRunInOrder(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	var seen []Phase
	cfg.OnPhase = func(p Phase) { seen = append(seen, p) }

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Phases(), seen)
}

func TestPriorityPathsDeletedBeforeDeepScan(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	var atDeepScan struct {
		install, marker bool
	}
	cfg.OnPhase = func(p Phase) {
		if p == PhaseDeepScan {
			atDeepScan.install = exists(w.path("pf", "AcmeSuite"))
			atDeepScan.marker = exists(w.path("pd", "Vendor", "cache", "acme.log"))
		}
	}

	_, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, atDeepScan.install, "discovered install location is gone before the scan")
	assert.True(t, atDeepScan.marker, "scan-only marker is still present when the scan starts")
	assert.False(t, exists(w.path("pd", "Vendor", "cache", "acme.log")))
}

func TestSecondRunIsANoOp(t *testing.T) {
	w := newWorld(t)

	_, err := New(w.config("acme")).Run(context.Background())
	require.NoError(t, err)
	rep, err := New(w.config("acme")).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, rep.Stats.Removed())
	assert.Zero(t, rep.Stats.Failures)
	assert.Zero(t, rep.Stats.ShortcutsRemoved)
	assert.Empty(t, rep.Pending)
}

func TestDryRunMutatesNothing(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	cfg.DryRun = true

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, exists(w.path("pf", "AcmeSuite", "app.exe")))
	assert.True(t, exists(w.path("pd", "Vendor", "cache", "acme.log")))
	assert.True(t, exists(w.path("Desktop", "Acme.lnk")))
	assert.True(t, w.procs.Alive(100))
	assert.Empty(t, w.services.Deleted())
	assert.Empty(t, w.tasks.Deleted())
	assert.True(t, w.store.HasKey(platform.LocalMachine, uninstallKey+`\{1111-ACME}`))

	assert.True(t, rep.DryRun)
	assert.Zero(t, rep.Stats.Removed())
	assert.Positive(t, rep.Stats.Matched)
}

func TestExpiredDeadlineStopsTraversal(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int64
	cfg.Now = func() time.Time {
		if calls.Add(1) == 1 {
			return start
		}
		return start.Add(time.Hour)
	}
	cfg.Timeout = time.Second

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rep.DeadlineHit)
	assert.Positive(t, rep.Stats.SubtreesSkipped)
	assert.True(t, exists(w.path("pf", "AcmeSuite", "app.exe")))
	assert.True(t, exists(w.path("pf", "Other", "acme_notes.txt")))
	assert.True(t, exists(w.path("pd", "Vendor", "cache", "acme.log")))
	assert.True(t, exists(w.path("Desktop", "Acme.lnk")))
	assert.Zero(t, rep.Stats.FilesDeleted)
	assert.Zero(t, rep.Stats.DirsDeleted)
	assert.Zero(t, rep.Stats.ConfigKeysDeleted)
}

func TestMissingCapabilitiesAreSkipped(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	cfg.System = platform.System{FS: w.fs, Services: platformtest.UnsupportedServices{}}

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	skipped := make(map[string]bool)
	for _, p := range rep.Phases {
		if p.Skipped {
			skipped[p.Phase] = true
		}
		assert.Empty(t, p.Error, p.Phase)
	}
	for _, p := range []Phase{PhaseKillInitial, PhaseDiscover, PhaseStopServices, PhaseTasks, PhaseFirewall, PhaseConfigStore, PhaseKillFinal} {
		assert.True(t, skipped[p.String()], p.String())
	}
	assert.Zero(t, rep.Stats.Failures)

	// The filesystem phases still ran.
	assert.False(t, exists(w.path("pf", "AcmeSuite")))
	assert.False(t, exists(w.path("Desktop", "Acme.lnk")))
}

func TestRunnerInvokedForDiscoveredApps(t *testing.T) {
	w := newWorld(t)
	record := uninstallKey + `\{1111-ACME}`
	w.store.Put(platform.LocalMachine, record, "UninstallString", `MsiExec.exe /X{11111111-2222-3333-4444-555555555555}`)

	cfg := w.config("acme")
	cfg.RunUninstallers = true
	var mu sync.Mutex
	var ran [][]string
	cfg.Runner = func(_ context.Context, exe string, args ...string) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, append([]string{exe}, args...))
		return nil, nil
	}

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ran, 1)
	assert.Equal(t, []string{"msiexec.exe", "/x", "{11111111-2222-3333-4444-555555555555}", "/qn", "/norestart"}, ran[0])
	assert.Equal(t, int64(1), rep.Stats.UninstallersRun)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// ─── Paths ───────────────────────────────────────────────────────────────────

func TestCollapsePaths(t *testing.T) {
	got := collapsePaths([]string{
		`C:\Program Files\Acme\bin`,
		`C:\Program Files\Acme`,
		`C:\Program Files\Acme2`,
		`c:\program files\acme\`,
		`D:\Acme`,
	})
	assert.Equal(t, []string{`C:\Program Files\Acme`, `C:\Program Files\Acme2`, `D:\Acme`}, got)
}

func TestCollapseRoots(t *testing.T) {
	got := collapseRoots([]config.ScanRoot{
		{Path: `C:\`, Depth: 2},
		{Path: `C:\Program Files`, Depth: 8},
		{Path: `C:\ProgramData`, Depth: 8},
		{Path: `C:\ProgramData\Vendor`, Depth: 1},
		{Path: `C:\ProgramData`, Depth: 8},
	})
	assert.Equal(t, []config.ScanRoot{
		{Path: `C:\`, Depth: 2},
		{Path: `C:\Program Files`, Depth: 8},
		{Path: `C:\ProgramData`, Depth: 8},
	}, got)
}

func TestNestedRoots(t *testing.T) {
	roots := []config.ScanRoot{
		{Path: `C:\`, Depth: 2},
		{Path: `C:\Program Files`, Depth: 8},
		{Path: `C:\ProgramData`, Depth: 8},
	}
	assert.Equal(t, []string{`C:\Program Files`, `C:\ProgramData`}, nestedRoots(roots, 0))
	assert.Empty(t, nestedRoots(roots, 1))
}

func phaseResult(t *testing.T, rep *Report, p Phase) PhaseResult {
	t.Helper()
	for _, r := range rep.Phases {
		if r.Phase == p.String() {
			return r
		}
	}
	t.Fatalf("no result for phase %s", p)
	return PhaseResult{}
}

func TestDeepScanNestedRootsScanEntriesOnce(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	cfg.DryRun = true
	// A shallow scan of the whole world reaches into pf, which has its own
	// deeper scan. Each match must be seen by exactly one worker.
	cfg.ScanRoots = []config.ScanRoot{
		{Path: w.root, Depth: 2},
		{Path: w.path("pf"), Depth: 5},
	}

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	// pf\AcmeSuite and pf\Other\acme_notes.txt from the pf scan,
	// Desktop\Acme.lnk from the world scan.
	assert.Equal(t, 3, phaseResult(t, rep, PhaseDeepScan).Count)
	assert.Empty(t, rep.Pending)
}

func TestDeepScanNestedRootsRemoveOnce(t *testing.T) {
	w := newWorld(t)
	cfg := w.config("acme")
	cfg.ScanRoots = []config.ScanRoot{
		{Path: w.root, Depth: 2},
		{Path: w.path("pf"), Depth: 5},
	}

	rep, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	notes := w.path("pf", "Other", "acme_notes.txt")
	assert.False(t, exists(notes))
	removed := 0
	for _, p := range w.fs.Removed() {
		if p == notes {
			removed++
		}
	}
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, phaseResult(t, rep, PhaseDeepScan).Count)
	assert.Empty(t, w.fs.Scheduled())
	assert.False(t, rep.RebootRequired)
	assert.Zero(t, rep.Stats.Failures)
}

func TestDepthBelow(t *testing.T) {
	assert.Equal(t, 0, depthBelow(`C:\Acme`, `c:\acme\`))
	assert.Equal(t, 2, depthBelow(`C:\Acme`, `C:\Acme\a\b`))
	assert.Equal(t, -1, depthBelow(`C:\Acme`, `C:\Acme2`))
	assert.Equal(t, 1, depthBelow(`/tmp/x`, `/tmp/x/y`))
}

// ─── Report ──────────────────────────────────────────────────────────────────

func TestReportWriteFile(t *testing.T) {
	w := newWorld(t)
	rep, err := New(w.config("acme")).Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, rep.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep.RunID, decoded["run_id"])
	assert.Contains(t, decoded, "stats")
	assert.Len(t, decoded["phases"], len(Phases()))

	sum := rep.Summary()
	assert.Equal(t, rep.RunID, sum.RunID)
	assert.Equal(t, rep.Stats, sum.Stats)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "kill-initial", PhaseKillInitial.String())
	assert.Equal(t, "deep-scan", PhaseDeepScan.String())
	assert.Equal(t, "report", PhaseReport.String())
	assert.Equal(t, "Phase(99)", Phase(99).String())
}
