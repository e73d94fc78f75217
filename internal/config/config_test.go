package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every RECLAIM_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPreset, EnvTimeout, EnvMaxDepth, EnvWorkers, EnvLogFile} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// ─── Presets ─────────────────────────────────────────────────────────────────

func TestPresets(t *testing.T) {
	fast, err := Preset("fast")
	require.NoError(t, err)
	standard, err := Preset("Standard")
	require.NoError(t, err)
	thorough, err := Preset("thorough")
	require.NoError(t, err)

	assert.Equal(t, "standard", standard.Preset)
	assert.Less(t, fast.Timeout, standard.Timeout)
	assert.Less(t, standard.Timeout, thorough.Timeout)
	assert.Less(t, fast.MaxDepth, thorough.MaxDepth)
	assert.False(t, fast.AllDrives)
	assert.True(t, thorough.AllDrives)
	assert.True(t, thorough.UseWMI)
	assert.Equal(t, 3, standard.MinTermLength)
	assert.NotEmpty(t, standard.Protect.Fragments)

	for _, name := range PresetNames() {
		p, err := Preset(name)
		require.NoError(t, err)
		assert.NoError(t, p.Validate(), name)
	}
}

func TestUnknownPreset(t *testing.T) {
	_, err := Preset("ludicrous")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

// ─── Loading ─────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	p, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPreset, p.Preset)
	assert.Equal(t, 120*time.Second, p.Timeout)
}

func TestLoadPolicyFileOverlay(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "policy.yaml", `
preset: fast
timeout: 90s
workers: 2
extra_roots:
  - D:\Tools
protect:
  globs:
    - 'd:\backups\*'
  processes:
    - acme-guard.exe
`)

	p, err := Load(LoadOptions{PolicyFile: path})
	require.NoError(t, err)
	assert.Equal(t, "fast", p.Preset)
	assert.Equal(t, 90*time.Second, p.Timeout)
	assert.Equal(t, 2, p.Workers)
	assert.Equal(t, 6, p.MaxDepth, "unset keys keep the preset value")
	assert.Equal(t, []string{`D:\Tools`}, p.ExtraRoots)
	assert.Equal(t, []string{`d:\backups\*`}, p.Protect.Globs)
	assert.Contains(t, p.Protect.Processes, "acme-guard.exe")
	assert.Contains(t, p.Protect.Processes, "explorer.exe", "built-in rules are kept")
}

func TestLoadPresetPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "policy.yaml", "preset: fast\n")

	p, err := Load(LoadOptions{PolicyFile: path})
	require.NoError(t, err)
	assert.Equal(t, "fast", p.Preset)

	t.Setenv(EnvPreset, "standard")
	p, err = Load(LoadOptions{PolicyFile: path})
	require.NoError(t, err)
	assert.Equal(t, "standard", p.Preset)

	p, err = Load(LoadOptions{PolicyFile: path, Preset: "thorough"})
	require.NoError(t, err)
	assert.Equal(t, "thorough", p.Preset)
	assert.True(t, p.AllDrives)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "policy.yaml", "protect:\n  fragmets:\n    - x\n")

	_, err := Load(LoadOptions{PolicyFile: path})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestLoadEmptyPolicyFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "policy.yaml", "")

	p, err := Load(LoadOptions{PolicyFile: path})
	require.NoError(t, err)
	assert.Equal(t, DefaultPreset, p.Preset)
}

func TestLoadMissingFiles(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := Load(LoadOptions{PolicyFile: missing})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = Load(LoadOptions{EnvFile: missing})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = LoadPolicy(missing, Policy{})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "RECLAIM_TIMEOUT=45s\nRECLAIM_WORKERS=3\nRECLAIM_PRESET=thorough\n")

	p, err := Load(LoadOptions{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "thorough", p.Preset)
	assert.Equal(t, 45*time.Second, p.Timeout)
	assert.Equal(t, 3, p.Workers)
}

func TestLoadPolicy(t *testing.T) {
	base, err := Preset("standard")
	require.NoError(t, err)
	path := writeFile(t, "policy.yaml", "max_depth: 3\nrun_uninstallers: true\n")

	p, err := LoadPolicy(path, base)
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxDepth)
	assert.True(t, p.RunUninstallers)
	assert.Equal(t, base.Protect.Fragments, p.Protect.Fragments)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvTimeout:  "2m",
		EnvMaxDepth: "12",
		EnvWorkers:  " 6 ",
		EnvLogFile:  `C:\logs\wr.log`,
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	p, err := ApplyEnv(Policy{}, lookup)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, p.Timeout)
	assert.Equal(t, 12, p.MaxDepth)
	assert.Equal(t, 6, p.Workers)
	assert.Equal(t, `C:\logs\wr.log`, p.LogFile)

	env[EnvWorkers] = "many"
	_, err = ApplyEnv(Policy{}, lookup)
	assert.ErrorIs(t, err, ErrInvalidPolicy)

	env[EnvWorkers] = "1"
	env[EnvTimeout] = "soon"
	_, err = ApplyEnv(Policy{}, lookup)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

// ─── Validation ──────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid, err := Preset("standard")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"zero timeout", func(p *Policy) { p.Timeout = 0 }},
		{"negative depth", func(p *Policy) { p.MaxDepth = -1 }},
		{"no workers", func(p *Policy) { p.Workers = 0 }},
		{"no min term length", func(p *Policy) { p.MinTermLength = 0 }},
		{"negative drive depth", func(p *Policy) { p.DriveDepth = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy)
		})
	}
}

func TestTerms(t *testing.T) {
	p, err := Preset("standard")
	require.NoError(t, err)

	terms, err := p.Terms([]string{"Acme", " acme ", "Widget"})
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "widget"}, terms.List())

	_, err = p.Terms(nil)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = p.Terms([]string{"  "})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
	_, err = p.Terms([]string{"acme", "ab"})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

// ─── Paths ───────────────────────────────────────────────────────────────────

func TestDeepScanRoots(t *testing.T) {
	base := t.TempDir()
	pf := filepath.Join(base, "pf")
	pd := filepath.Join(base, "pd")
	extra := filepath.Join(base, "extra")
	for _, d := range []string{pf, pd, extra} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	t.Setenv("PROGRAMFILES", pf)
	t.Setenv("PROGRAMFILES(X86)", pf)
	t.Setenv("PROGRAMDATA", pd)
	t.Setenv("SYSTEMDRIVE", filepath.Join(base, "nodrive"))
	t.Setenv("USERPROFILE", "")
	t.Setenv("EXTRA_ROOT", extra)

	roots := DeepScanRoots(5, []string{"%EXTRA_ROOT%", filepath.Join(base, "missing"), "relative"})

	var paths []string
	for _, r := range roots {
		assert.Equal(t, 5, r.Depth)
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{pf, pd, extra}, paths)
}

func TestNeverDeletePathsIncludeProfiles(t *testing.T) {
	base := t.TempDir()
	profile := filepath.Join(base, "Users", "alice")
	require.NoError(t, os.MkdirAll(profile, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "Users", "Public"), 0o755))
	t.Setenv("SYSTEMDRIVE", base)
	t.Setenv("USERPROFILE", profile)

	assert.Equal(t, []string{profile}, Profiles())

	paths := GetNeverDeletePaths()
	assert.Contains(t, paths, profile)
	assert.Contains(t, paths, filepath.Join(profile, "AppData", "Roaming"))
	assert.Contains(t, paths, usersDir())
}

func TestProtectionRulesMergeRoots(t *testing.T) {
	p, err := Preset("fast")
	require.NoError(t, err)
	rules := p.ProtectionRules()

	assert.Equal(t, p.Protect.Fragments, rules.Fragments)
	assert.NotEmpty(t, rules.Roots)
	found := false
	for _, r := range rules.Roots {
		if strings.EqualFold(r, winDir()) {
			found = true
		}
	}
	assert.True(t, found)
}
