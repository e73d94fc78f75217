package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/winreclaim/internal/envutil"
	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
	"github.com/lakshaymaurya-felt/winreclaim/internal/ui"
	"github.com/lakshaymaurya-felt/winreclaim/internal/uninstall"
)

// Mode selects how a configuration subtree is swept.
type Mode int

const (
	// ModeKeys deletes child keys whose name (or a listed value) matches.
	ModeKeys Mode = iota
	// ModeValues deletes values whose name or string data matches.
	ModeValues
	// ModeCOM deletes class registrations whose name, default value or
	// server path matches.
	ModeCOM
	// ModeEnvironment cleans PATH-like lists and deletes matching variables.
	ModeEnvironment
)

func (m Mode) String() string {
	switch m {
	case ModeKeys:
		return "keys"
	case ModeValues:
		return "values"
	case ModeCOM:
		return "com"
	case ModeEnvironment:
		return "environment"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Subtree is one configuration location to sweep.
type Subtree struct {
	Root platform.Root
	Path string
	Mode Mode

	// Depth is how many levels below Path are searched in ModeKeys.
	Depth int
	// MatchValues name values whose data also identifies a child key.
	MatchValues []string
	// Services applies service protection to child keys.
	Services bool
}

const (
	currentVersion = `SOFTWARE\Microsoft\Windows\CurrentVersion`
	userVersion    = `Software\Microsoft\Windows\CurrentVersion`
	wowVersion     = `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion`
)

var uninstallValues = []string{"DisplayName", "InstallLocation"}

// DefaultSubtrees is the fixed sweep table.
var DefaultSubtrees = []Subtree{
	// Uninstall records and app registrations.
	{Root: platform.LocalMachine, Path: currentVersion + `\Uninstall`, Mode: ModeKeys, MatchValues: uninstallValues},
	{Root: platform.LocalMachine, Path: wowVersion + `\Uninstall`, Mode: ModeKeys, MatchValues: uninstallValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Uninstall`, Mode: ModeKeys, MatchValues: uninstallValues},
	{Root: platform.CurrentUser, Path: `Software\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`, Mode: ModeKeys, MatchValues: uninstallValues},
	{Root: platform.LocalMachine, Path: currentVersion + `\App Paths`, Mode: ModeKeys},
	{Root: platform.CurrentUser, Path: userVersion + `\App Paths`, Mode: ModeKeys},

	// Vendor and product keys.
	{Root: platform.LocalMachine, Path: `SOFTWARE`, Mode: ModeKeys, Depth: 1},
	{Root: platform.LocalMachine, Path: `SOFTWARE\WOW6432Node`, Mode: ModeKeys, Depth: 1},
	{Root: platform.CurrentUser, Path: `Software`, Mode: ModeKeys, Depth: 1},
	{Root: platform.LocalMachine, Path: `SOFTWARE\Classes\Applications`, Mode: ModeKeys},
	{Root: platform.CurrentUser, Path: `Software\Classes\Applications`, Mode: ModeKeys},
	{Root: platform.ClassesRoot, Path: ``, Mode: ModeKeys},

	// Service registrations left behind by a failed service delete.
	{Root: platform.LocalMachine, Path: `SYSTEM\CurrentControlSet\Services`, Mode: ModeKeys,
		MatchValues: []string{"DisplayName", "ImagePath"}, Services: true},

	// Autostart entries.
	{Root: platform.LocalMachine, Path: currentVersion + `\Run`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: currentVersion + `\RunOnce`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: wowVersion + `\Run`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: wowVersion + `\RunOnce`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Run`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\RunOnce`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: currentVersion + `\Explorer\StartupApproved\Run`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: currentVersion + `\Explorer\StartupApproved\Run32`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Explorer\StartupApproved\Run`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Explorer\StartupApproved\Run32`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Explorer\StartupApproved\StartupFolder`, Mode: ModeValues},

	// Reference counts, installer folders and shell caches.
	{Root: platform.LocalMachine, Path: currentVersion + `\SharedDLLs`, Mode: ModeValues},
	{Root: platform.LocalMachine, Path: currentVersion + `\Installer\Folders`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: `Software\Classes\Local Settings\Software\Microsoft\Windows\Shell\MuiCache`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Explorer\RunMRU`, Mode: ModeValues},
	{Root: platform.CurrentUser, Path: userVersion + `\Explorer\TypedPaths`, Mode: ModeValues},

	// COM registrations.
	{Root: platform.ClassesRoot, Path: `CLSID`, Mode: ModeCOM},
	{Root: platform.ClassesRoot, Path: `TypeLib`, Mode: ModeCOM},
	{Root: platform.ClassesRoot, Path: `AppID`, Mode: ModeCOM},
	{Root: platform.ClassesRoot, Path: `Interface`, Mode: ModeCOM},
	{Root: platform.LocalMachine, Path: `SOFTWARE\Classes\WOW6432Node\CLSID`, Mode: ModeCOM},

	// Environment variables.
	{Root: platform.LocalMachine, Path: `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`, Mode: ModeEnvironment},
	{Root: platform.CurrentUser, Path: `Environment`, Mode: ModeEnvironment},
}

// ConfigSweeper removes the target's configuration store entries.
type ConfigSweeper struct {
	Env
	Store    platform.ConfigStore
	Subtrees []Subtree // DefaultSubtrees when nil
}

// Sweep walks every subtree and returns how many keys and values were
// deleted or rewritten. Missing subtrees are skipped; a store that is not
// supported on this platform fails the whole sweep with ErrUnsupported.
func (s *ConfigSweeper) Sweep(ctx context.Context) (int, error) {
	subtrees := s.Subtrees
	if subtrees == nil {
		subtrees = DefaultSubtrees
	}

	total := 0
	for i, t := range subtrees {
		if s.expired(ctx) {
			s.Stats.SubtreesSkipped.Add(int64(len(subtrees) - i))
			s.log().WithField("remaining", len(subtrees)-i).Warn("config sweep stopped at deadline")
			break
		}
		var n int
		var err error
		switch t.Mode {
		case ModeKeys:
			n, err = s.sweepKeys(ctx, t)
		case ModeValues:
			n, err = s.sweepValues(t)
		case ModeCOM:
			n, err = s.sweepCOM(ctx, t)
		case ModeEnvironment:
			n, err = s.sweepEnvironment(t)
		}
		total += n
		switch {
		case err == nil, errors.Is(err, platform.ErrNotFound):
		case errors.Is(err, platform.ErrUnsupported):
			return total, err
		default:
			s.log().WithError(err).WithFields(logrus.Fields{
				"key":  s.keyName(t.Root, t.Path),
				"mode": t.Mode,
			}).Warn("config subtree skipped")
		}
	}
	return total, nil
}

func (s *ConfigSweeper) expired(ctx context.Context) bool {
	return s.Deadline.Expired() || ctx.Err() != nil
}

type keyFrame struct {
	path  string
	depth int
}

func (s *ConfigSweeper) sweepKeys(ctx context.Context, t Subtree) (int, error) {
	deleted := 0
	stack := []keyFrame{{path: t.Path, depth: t.Depth}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		names, err := s.Store.SubKeys(t.Root, f.path)
		if err != nil {
			if f.path == t.Path {
				return deleted, err
			}
			continue
		}
		for _, name := range names {
			if s.expired(ctx) {
				s.Stats.SubtreesSkipped.Add(int64(len(stack) + 1))
				return deleted, nil
			}
			path := joinKey(f.path, name)
			if s.Oracle.IsProtectedName(name) {
				continue
			}
			if s.keyMatches(t, path, name) {
				if !(t.Services && s.serviceProtected(t, path, name)) {
					deleted += s.deleteKey(t.Root, path)
				}
				continue
			}
			if f.depth > 0 {
				stack = append(stack, keyFrame{path: path, depth: f.depth - 1})
			}
		}
	}
	return deleted, nil
}

func (s *ConfigSweeper) keyMatches(t Subtree, path, name string) bool {
	if s.Terms.Match(name) {
		return true
	}
	for _, v := range t.MatchValues {
		if s.Terms.Match(platform.StringValue(s.Store, t.Root, path, v)) {
			return true
		}
	}
	return false
}

func (s *ConfigSweeper) serviceProtected(t Subtree, path, name string) bool {
	image := envutil.ExpandWindowsEnv(platform.StringValue(s.Store, t.Root, path, "ImagePath"))
	return s.Oracle.IsProtectedService(name, image)
}

func (s *ConfigSweeper) sweepValues(t Subtree) (int, error) {
	values, err := s.Store.Values(t.Root, t.Path)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, v := range values {
		if v.Name == "" {
			continue
		}
		if !s.Terms.Match(v.Name) && !(v.Kind.IsString() && s.Terms.Match(v.Data)) {
			continue
		}
		// Value names in reference-count tables are file paths.
		if looksLikePath(v.Name) && s.Oracle.Denies(v.Name) {
			continue
		}
		deleted += s.deleteValue(t.Root, t.Path, v.Name)
	}
	return deleted, nil
}

func (s *ConfigSweeper) sweepCOM(ctx context.Context, t Subtree) (int, error) {
	names, err := s.Store.SubKeys(t.Root, t.Path)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for i, name := range names {
		if s.expired(ctx) {
			s.Stats.SubtreesSkipped.Add(int64(len(names) - i))
			return deleted, nil
		}
		path := joinKey(t.Path, name)
		label := platform.DefaultValue(s.Store, t.Root, path)
		if label == "" {
			// TypeLib keys carry their name one level down, per version.
			if versions, err := s.Store.SubKeys(t.Root, path); err == nil && len(versions) > 0 {
				label = platform.DefaultValue(s.Store, t.Root, joinKey(path, versions[0]))
			}
		}
		server := platform.DefaultValue(s.Store, t.Root, path+`\InprocServer32`)
		if server == "" {
			server = platform.DefaultValue(s.Store, t.Root, path+`\LocalServer32`)
		}
		if !s.Terms.MatchAny(name, label, server) {
			continue
		}
		if server != "" && s.Oracle.Denies(uninstall.ExecutablePath(envutil.ExpandWindowsEnv(server))) {
			continue
		}
		deleted += s.deleteKey(t.Root, path)
	}
	return deleted, nil
}

func (s *ConfigSweeper) sweepEnvironment(t Subtree) (int, error) {
	values, err := s.Store.Values(t.Root, t.Path)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, v := range values {
		if !v.Kind.IsString() || v.Name == "" {
			continue
		}
		if isPathList(v) {
			changed += s.cleanPathList(t, v)
			continue
		}
		if !s.Terms.MatchAny(v.Name, v.Data) || s.Oracle.IsProtectedEnv(v.Name) {
			continue
		}
		changed += s.deleteValue(t.Root, t.Path, v.Name)
	}
	return changed, nil
}

// cleanPathList drops matching segments from a ';' list and rewrites the
// value only when something was dropped.
func (s *ConfigSweeper) cleanPathList(t Subtree, v platform.Value) int {
	segments := strings.Split(v.Data, ";")
	kept := segments[:0:0]
	var dropped []string
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed != "" && s.Terms.Match(trimmed) && !s.Oracle.Denies(envutil.ExpandWindowsEnv(trimmed)) {
			dropped = append(dropped, trimmed)
			continue
		}
		kept = append(kept, seg)
	}
	if len(dropped) == 0 {
		return 0
	}
	name := s.keyName(t.Root, t.Path) + `\` + v.Name
	if s.dryRun("%s segments %s", name, strings.Join(dropped, ";")) {
		return 0
	}
	err := s.Store.SetString(t.Root, t.Path, v.Name, strings.Join(kept, ";"), v.Kind == platform.KindExpandString)
	if err != nil {
		s.failed(err, "value", name)
		return 0
	}
	s.Stats.ConfigValuesDeleted.Add(1)
	s.Reporter.Tag(ui.TagEnv, "%s: removed %s", name, strings.Join(dropped, ";"))
	return 1
}

func (s *ConfigSweeper) deleteKey(root platform.Root, path string) int {
	name := s.keyName(root, path)
	if s.dryRun("key %s", name) {
		return 0
	}
	if err := s.Store.DeleteTree(root, path); err != nil {
		s.failed(err, "key", name)
		return 0
	}
	s.Stats.ConfigKeysDeleted.Add(1)
	s.Reporter.Tag(ui.TagReg, "%s", name)
	s.log().WithField("key", name).Info("key deleted")
	return 1
}

func (s *ConfigSweeper) deleteValue(root platform.Root, path, value string) int {
	name := s.keyName(root, path) + `\` + value
	if s.dryRun("value %s", name) {
		return 0
	}
	if err := s.Store.DeleteValue(root, path, value); err != nil {
		s.failed(err, "value", name)
		return 0
	}
	s.Stats.ConfigValuesDeleted.Add(1)
	s.Reporter.Tag(ui.TagReg, "%s", name)
	return 1
}

func (s *ConfigSweeper) keyName(root platform.Root, path string) string {
	return joinKey(root.String(), path)
}

func joinKey(parent, name string) string {
	if parent == "" {
		return name
	}
	if name == "" {
		return parent
	}
	return parent + `\` + name
}

func isPathList(v platform.Value) bool {
	name := strings.ToLower(v.Name)
	if name == "path" || name == "psmodulepath" {
		return true
	}
	return strings.HasSuffix(name, "path") && strings.Contains(v.Data, ";")
}

func looksLikePath(s string) bool {
	return strings.HasPrefix(s, `\\`) || (len(s) > 2 && s[1] == ':' && (s[2] == '\\' || s[2] == '/'))
}
