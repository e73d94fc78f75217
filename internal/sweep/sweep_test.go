package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/winreclaim/internal/clean"
	"github.com/lakshaymaurya-felt/winreclaim/internal/core"
	"github.com/lakshaymaurya-felt/winreclaim/internal/match"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform/platformtest"
	"github.com/lakshaymaurya-felt/winreclaim/internal/protect"
	"github.com/lakshaymaurya-felt/winreclaim/internal/stats"
)

func newEnv(terms ...string) Env {
	t := match.NewTerms(terms...)
	return Env{
		Oracle: protect.New(protect.DefaultRules(), t, core.Deadline{}),
		Terms:  t,
		Stats:  stats.New(),
	}
}

// ─── Processes ───────────────────────────────────────────────────────────────

func sampleProcesses() *platformtest.Processes {
	return platformtest.NewProcesses(
		platform.ProcessInfo{PID: 4, Name: "acme"},
		platform.ProcessInfo{PID: 100, Name: "acme.exe", Exe: `C:\Program Files\Acme\acme.exe`},
		platform.ProcessInfo{PID: 101, Name: "helper.exe", Exe: `C:\Program Files\Acme\bin\helper.exe`},
		platform.ProcessInfo{PID: 102, Name: "tool.exe", Exe: `C:\Tools\tool.exe`},
		platform.ProcessInfo{PID: 103, Name: "acmesvc.exe", Exe: `C:\Windows\System32\acmesvc.exe`},
		platform.ProcessInfo{PID: 105, Name: "acme-cli.exe", Exe: `C:\Tools\acme-cli.exe`},
		platform.ProcessInfo{PID: 200, Name: "explorer.exe", Exe: `C:\Windows\explorer.exe`},
	)
}

func TestProcessSweepPasses(t *testing.T) {
	procs := sampleProcesses()
	s := &ProcessSweeper{
		Env:   newEnv("acme"),
		Procs: procs,
		Windows: platformtest.Windows{
			{PID: 102, Title: "ACME Dashboard"},
			{PID: 200, Title: "Acme - File Explorer"},
		},
		WindowPass: true,
		Self:       105,
	}

	res, err := s.Sweep(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []int32{100, 101, 102}, procs.Killed())
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, []string{`C:\Program Files\Acme`, `C:\Program Files\Acme\bin`}, res.Dirs)
	assert.Equal(t, int64(3), s.Stats.ProcessesKilled.Load())
	for _, pid := range []int32{4, 103, 105, 200} {
		assert.True(t, procs.Alive(pid), "pid %d", pid)
	}
}

func TestProcessSweepWithoutWindowPass(t *testing.T) {
	procs := sampleProcesses()
	s := &ProcessSweeper{
		Env:     newEnv("acme"),
		Procs:   procs,
		Windows: platformtest.Windows{{PID: 102, Title: "ACME Dashboard"}},
		Self:    105,
	}

	_, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.True(t, procs.Alive(102))
}

// killRecorder records every kill attempt, including ones for PIDs the
// fake does not know.
type killRecorder struct {
	*platformtest.Processes
	attempts []int32
}

func (k *killRecorder) Kill(ctx context.Context, pid int32) error {
	k.attempts = append(k.attempts, pid)
	return k.Processes.Kill(ctx, pid)
}

func TestProcessSweepIgnoresWindowsOutsideSnapshot(t *testing.T) {
	procs := &killRecorder{Processes: sampleProcesses()}
	s := &ProcessSweeper{
		Env:   newEnv("acme"),
		Procs: procs,
		Windows: platformtest.Windows{
			{PID: 102, Title: "ACME Dashboard"},
			{PID: 300, Title: "Acme Updater"},
		},
		WindowPass: true,
		Self:       105,
	}

	res, err := s.Sweep(t.Context())
	require.NoError(t, err)

	assert.NotContains(t, procs.attempts, int32(300))
	assert.Contains(t, procs.attempts, int32(102))
	assert.Equal(t, 3, res.Count)
	assert.Zero(t, s.Stats.Failures.Load())
}

func TestProcessKillFailures(t *testing.T) {
	procs := sampleProcesses()
	procs.KillErr = map[int32]error{
		100: errors.New("access is denied"),
		101: fmt.Errorf("pid 101: %w", platform.ErrNotFound),
	}
	s := &ProcessSweeper{Env: newEnv("acme"), Procs: procs, Self: 105}

	res, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Equal(t, int64(1), s.Stats.Failures.Load())
}

func TestProcessDryRun(t *testing.T) {
	procs := sampleProcesses()
	env := newEnv("acme")
	env.DryRun = true
	s := &ProcessSweeper{Env: env, Procs: procs, Self: 105}

	_, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Empty(t, procs.Killed())
	assert.Equal(t, int64(2), s.Stats.Matched.Load())
}

// ─── Services ────────────────────────────────────────────────────────────────

func sampleServices() *platformtest.Services {
	return platformtest.NewServices(
		platform.Service{Name: "AcmeSvc", DisplayName: "Acme Service", BinaryPath: `"C:\Program Files\Acme\svc.exe" -k run`},
		platform.Service{Name: "wuauserv", DisplayName: "Windows Update (acme edition)"},
		platform.Service{Name: "AcmeDriver", BinaryPath: `C:\Windows\System32\drivers\acme.sys`},
		platform.Service{Name: "Other", DisplayName: "Other"},
	)
}

func TestServiceSweep(t *testing.T) {
	services := sampleServices()
	s := &ServiceSweeper{Env: newEnv("acme"), Services: services}

	res, err := s.Sweep(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"AcmeSvc"}, services.Stopped())
	assert.Equal(t, []string{"AcmeSvc"}, services.Deleted())
	assert.Equal(t, []string{`C:\Program Files\Acme`}, res.Dirs)
	assert.Equal(t, int64(1), s.Stats.ServicesDeleted.Load())
}

func TestServiceThatWillNotStopIsStillDeleted(t *testing.T) {
	services := sampleServices()
	services.StopErr = map[string]error{"acmesvc": context.DeadlineExceeded}
	s := &ServiceSweeper{Env: newEnv("acme"), Services: services, StopTimeout: time.Millisecond}

	_, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"AcmeSvc"}, services.Deleted())
	assert.Zero(t, s.Stats.Failures.Load())
}

func TestServiceSweepUnsupported(t *testing.T) {
	s := &ServiceSweeper{Env: newEnv("acme"), Services: platformtest.UnsupportedServices{}}

	_, err := s.Sweep(t.Context())
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

// ─── Tasks and Firewall ──────────────────────────────────────────────────────

func TestTaskSweep(t *testing.T) {
	tasks := platformtest.NewTasks(
		platform.Task{Path: `\Acme\Updater`, Action: `C:\Acme\up.exe`},
		platform.Task{Path: `\Microsoft\Windows\AcmeTelemetry`, Action: `C:\Acme\t.exe`},
		platform.Task{Path: `\Nightly`, Action: `"C:\Program Files\Acme\acme.exe" /update`},
		platform.Task{Path: `\Other`, Action: `C:\Other\other.exe`},
	)
	s := &TaskSweeper{Env: newEnv("acme"), Tasks: tasks}

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{`\Acme\Updater`, `\Nightly`}, tasks.Deleted())
	assert.Equal(t, int64(2), s.Stats.TasksDeleted.Load())
}

func TestFirewallSweep(t *testing.T) {
	fw := platformtest.NewFirewall(
		platform.FirewallRule{Name: "Acme Inbound", Program: `C:\Program Files\Acme\acme.exe`},
		platform.FirewallRule{Name: "Acme Inbound", Program: `C:\Program Files\Acme\helper.exe`},
		platform.FirewallRule{Name: "Sync", Program: `C:\Program Files\Acme\sync.exe`},
		platform.FirewallRule{Name: "System Helper", Program: `C:\Windows\System32\acmehelper.exe`},
		platform.FirewallRule{Name: "Core Networking", Program: `C:\Windows\System32\svchost.exe`},
	)
	s := &FirewallSweeper{Env: newEnv("acme"), Firewall: fw}

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, fw.Deletes())

	left, err := fw.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

// ─── Shortcuts ───────────────────────────────────────────────────────────────

func TestShortcutSweep(t *testing.T) {
	root := t.TempDir()
	desktop := filepath.Join(root, "Desktop")
	startMenu := filepath.Join(root, "Start Menu")
	for _, p := range []string{
		filepath.Join(desktop, "Acme.lnk"),
		filepath.Join(desktop, "Other.lnk"),
		filepath.Join(startMenu, "Programs", "Acme", "Acme.lnk"),
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("lnk"), 0o644))
	}

	env := newEnv("acme")
	r := clean.New(clean.Config{Oracle: env.Oracle, Terms: env.Terms, Stats: env.Stats})
	s := &ShortcutSweeper{Env: env, Reclaimer: r, Dirs: []string{desktop, startMenu, filepath.Join(root, "Missing")}}

	n := s.Sweep(t.Context())
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), env.Stats.ShortcutsRemoved.Load())
	assert.FileExists(t, filepath.Join(desktop, "Other.lnk"))
	assert.NoDirExists(t, filepath.Join(startMenu, "Programs", "Acme"))
}

// ─── Configuration Store ─────────────────────────────────────────────────────

const (
	uninstallKey = `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`
	runKey       = `Software\Microsoft\Windows\CurrentVersion\Run`
	sharedDLLs   = `SOFTWARE\Microsoft\Windows\CurrentVersion\SharedDLLs`
)

func sampleStore() *platformtest.MemStore {
	st := platformtest.NewMemStore()
	hklm, hkcu, hkcr := platform.LocalMachine, platform.CurrentUser, platform.ClassesRoot

	st.Put(hklm, uninstallKey+`\{GUID-1}`, "DisplayName", "Acme Widgets")
	st.Put(hklm, uninstallKey+`\OtherApp`, "DisplayName", "Other")
	st.AddKey(hklm, `SOFTWARE\Acme`)
	st.AddKey(hklm, `SOFTWARE\VendorCorp\AcmePlugin`)
	st.AddKey(hklm, `SOFTWARE\VendorCorp\Keep`)
	st.AddKey(hklm, `SOFTWARE\Microsoft\AcmeInside`)
	st.Put(hklm, `SYSTEM\CurrentControlSet\Services\AcmeSvc`, "ImagePath", `C:\Program Files\Acme\svc.exe`)
	st.Put(hklm, `SYSTEM\CurrentControlSet\Services\wuauserv`, "DisplayName", "Acme-aware Update")

	st.Put(hkcu, runKey, "AcmeTray", `"C:\Acme\tray.exe"`)
	st.Put(hkcu, runKey, "OneDrive", `C:\Users\me\AppData\Local\Microsoft\OneDrive\OneDrive.exe`)
	st.Put(hkcu, runKey, "Updater", `C:\Program Files\Acme\upd.exe`)
	st.Put(hklm, sharedDLLs, `C:\Program Files\Acme\core.dll`, "1")
	st.Put(hklm, sharedDLLs, `C:\Windows\System32\acme.dll`, "1")

	st.AddKey(hkcr, `.acme`)
	st.AddKey(hkcr, `AcmeApp.Document`)
	st.Put(hkcr, `CLSID\{C1}`, "", "Acme Shell Extension")
	st.Put(hkcr, `CLSID\{C2}\InprocServer32`, "", `C:\Program Files\Acme\ext.dll`)
	st.Put(hkcr, `CLSID\{C3}`, "", "Acme proxy")
	st.Put(hkcr, `CLSID\{C3}\InprocServer32`, "", `C:\Windows\System32\acmeproxy.dll`)
	st.Put(hkcr, `CLSID\{C4}`, "", "Other")
	st.Put(hkcr, `TypeLib\{T1}\1.0`, "", "Acme Type Library")

	st.PutValue(hkcu, `Environment`, platform.Value{
		Name: "Path", Kind: platform.KindExpandString,
		Data: `C:\Tools;%LOCALAPPDATA%\Acme\bin;C:\Windows\System32`,
	})
	st.Put(hkcu, `Environment`, "ACME_HOME", `C:\Acme`)
	st.Put(hkcu, `Environment`, "TEMP", `C:\acme-temp`)
	return st
}

func TestConfigSweep(t *testing.T) {
	st := sampleStore()
	s := &ConfigSweeper{Env: newEnv("acme"), Store: st}

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)

	hklm, hkcu, hkcr := platform.LocalMachine, platform.CurrentUser, platform.ClassesRoot
	for _, gone := range []struct {
		root platform.Root
		path string
	}{
		{hklm, uninstallKey + `\{GUID-1}`},
		{hklm, `SOFTWARE\Acme`},
		{hklm, `SOFTWARE\VendorCorp\AcmePlugin`},
		{hklm, `SYSTEM\CurrentControlSet\Services\AcmeSvc`},
		{hkcr, `.acme`},
		{hkcr, `AcmeApp.Document`},
		{hkcr, `CLSID\{C1}`},
		{hkcr, `CLSID\{C2}`},
		{hkcr, `TypeLib\{T1}`},
	} {
		assert.False(t, st.HasKey(gone.root, gone.path), "%s should be deleted", gone.path)
	}
	for _, kept := range []struct {
		root platform.Root
		path string
	}{
		{hklm, uninstallKey + `\OtherApp`},
		{hklm, `SOFTWARE\VendorCorp\Keep`},
		{hklm, `SOFTWARE\Microsoft\AcmeInside`},
		{hklm, `SYSTEM\CurrentControlSet\Services\wuauserv`},
		{hkcr, `CLSID\{C3}`},
		{hkcr, `CLSID\{C4}`},
	} {
		assert.True(t, st.HasKey(kept.root, kept.path), "%s should be kept", kept.path)
	}

	_, ok := st.Get(hkcu, runKey, "AcmeTray")
	assert.False(t, ok)
	_, ok = st.Get(hkcu, runKey, "Updater")
	assert.False(t, ok)
	_, ok = st.Get(hkcu, runKey, "OneDrive")
	assert.True(t, ok)
	_, ok = st.Get(hklm, sharedDLLs, `C:\Program Files\Acme\core.dll`)
	assert.False(t, ok)
	_, ok = st.Get(hklm, sharedDLLs, `C:\Windows\System32\acme.dll`)
	assert.True(t, ok)

	path, ok := st.Get(hkcu, `Environment`, "Path")
	require.True(t, ok)
	assert.Equal(t, `C:\Tools;C:\Windows\System32`, path.Data)
	assert.Equal(t, platform.KindExpandString, path.Kind)
	_, ok = st.Get(hkcu, `Environment`, "ACME_HOME")
	assert.False(t, ok)
	_, ok = st.Get(hkcu, `Environment`, "TEMP")
	assert.True(t, ok)

	assert.Equal(t, int64(9), s.Stats.ConfigKeysDeleted.Load())
	assert.Equal(t, int64(5), s.Stats.ConfigValuesDeleted.Load())
	assert.Equal(t, 14, n)
}

func TestConfigSweepNeverDeletesProtectedNames(t *testing.T) {
	st := sampleStore()
	s := &ConfigSweeper{Env: newEnv("microsoft"), Store: st}

	_, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.True(t, st.HasKey(platform.LocalMachine, `SOFTWARE\Microsoft`))
}

func TestConfigSweepDryRun(t *testing.T) {
	st := sampleStore()
	env := newEnv("acme")
	env.DryRun = true
	s := &ConfigSweeper{Env: env, Store: st}

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(14), env.Stats.Matched.Load())
	assert.True(t, st.HasKey(platform.LocalMachine, `SOFTWARE\Acme`))
}

func TestConfigSweepStopsAtDeadline(t *testing.T) {
	st := sampleStore()
	env := newEnv("acme")
	env.Deadline = core.DeadlineAt(time.Now().Add(-time.Second), nil)
	s := &ConfigSweeper{Env: env, Store: st}

	n, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(len(DefaultSubtrees)), env.Stats.SubtreesSkipped.Load())
	assert.True(t, st.HasKey(platform.LocalMachine, `SOFTWARE\Acme`))
}

func TestConfigSweepDeleteFailureIsCounted(t *testing.T) {
	st := sampleStore()
	st.DeleteErr = map[string]error{`software\acme`: platform.ErrAccessDenied}
	s := &ConfigSweeper{Env: newEnv("acme"), Store: st}

	_, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Stats.Failures.Load())
	assert.True(t, st.HasKey(platform.LocalMachine, `SOFTWARE\Acme`))
}

type unsupportedStore struct{ *platformtest.MemStore }

func (unsupportedStore) SubKeys(platform.Root, string) ([]string, error) {
	return nil, platform.ErrUnsupported
}

func (unsupportedStore) Values(platform.Root, string) ([]platform.Value, error) {
	return nil, platform.ErrUnsupported
}

func TestConfigSweepUnsupported(t *testing.T) {
	s := &ConfigSweeper{Env: newEnv("acme"), Store: unsupportedStore{platformtest.NewMemStore()}}

	_, err := s.Sweep(t.Context())
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestIsPathList(t *testing.T) {
	assert.True(t, isPathList(platform.Value{Name: "Path"}))
	assert.True(t, isPathList(platform.Value{Name: "PSModulePath", Data: `C:\x`}))
	assert.True(t, isPathList(platform.Value{Name: "ACME_LIBPATH", Data: `a;b`}))
	assert.False(t, isPathList(platform.Value{Name: "ACME_LIBPATH", Data: `a`}))
	assert.False(t, isPathList(platform.Value{Name: "ACME_HOME", Data: `a;b`}))
}
