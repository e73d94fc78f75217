package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lakshaymaurya-felt/winreclaim/internal/envutil"
)

// ScanRoot is a directory the deep scan walks, to Depth levels below it.
type ScanRoot struct {
	Path  string
	Depth int
}

// expand resolves environment variables in a path, supporting both
// Windows %VAR% and Unix $VAR / ${VAR} syntax.
func expand(path string) string {
	return envutil.ExpandWindowsEnv(path)
}

// userProfile returns the user profile directory.
func userProfile() string {
	return os.Getenv("USERPROFILE")
}

// localAppData returns the local app data directory.
func localAppData() string {
	return os.Getenv("LOCALAPPDATA")
}

// appData returns the roaming app data directory.
func appData() string {
	return os.Getenv("APPDATA")
}

// publicDir returns the shared public profile (e.g., C:\Users\Public).
func publicDir() string {
	if p := os.Getenv("PUBLIC"); p != "" {
		return p
	}
	return filepath.Join(usersDir(), "Public")
}

// winDir returns the Windows directory (e.g., C:\Windows).
// Falls back to C:\Windows only if %WINDIR% is not set.
func winDir() string {
	if w := os.Getenv("WINDIR"); w != "" {
		return w
	}
	return `C:\Windows`
}

// programData returns the ProgramData directory (e.g., C:\ProgramData).
// Falls back to C:\ProgramData only if %PROGRAMDATA% is not set.
func programData() string {
	if p := os.Getenv("PROGRAMDATA"); p != "" {
		return p
	}
	return `C:\ProgramData`
}

// systemDrive returns the system drive letter with backslash (e.g., C:\).
// Falls back to C:\ only if %SYSTEMDRIVE% is not set.
func systemDrive() string {
	if d := os.Getenv("SYSTEMDRIVE"); d != "" {
		return d + `\`
	}
	return `C:\`
}

// usersDir returns the directory holding every profile.
func usersDir() string {
	return filepath.Join(systemDrive(), "Users")
}

// programFiles returns the Program Files directory.
func programFiles() string {
	if p := os.Getenv("PROGRAMFILES"); p != "" {
		return p
	}
	return `C:\Program Files`
}

// programFilesX86 returns the Program Files (x86) directory.
func programFilesX86() string {
	if p := os.Getenv("PROGRAMFILES(X86)"); p != "" {
		return p
	}
	return `C:\Program Files (x86)`
}

// skipProfiles are entries of the Users directory that are not real
// profiles.
var skipProfiles = map[string]bool{
	"public":       true,
	"default":      true,
	"default user": true,
	"all users":    true,
}

// Profiles returns every user profile directory under Users, plus the
// current profile when it lives elsewhere.
func Profiles() []string {
	var profiles []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[strings.ToLower(p)] {
			return
		}
		seen[strings.ToLower(p)] = true
		profiles = append(profiles, p)
	}

	if entries, err := os.ReadDir(usersDir()); err == nil {
		for _, e := range entries {
			if !e.IsDir() || skipProfiles[strings.ToLower(e.Name())] {
				continue
			}
			add(filepath.Join(usersDir(), e.Name()))
		}
	}
	add(userProfile())
	return profiles
}

// DeepScanRoots returns the directories the deep scan walks: the program
// directories, ProgramData, and each profile's AppData trees, followed by
// extra. Empty and missing entries are dropped.
func DeepScanRoots(depth int, extra []string) []ScanRoot {
	paths := []string{programFiles(), programFilesX86(), programData()}
	for _, profile := range Profiles() {
		paths = append(paths,
			filepath.Join(profile, "AppData", "Local"),
			filepath.Join(profile, "AppData", "LocalLow"),
			filepath.Join(profile, "AppData", "Roaming"),
		)
	}
	for _, p := range extra {
		paths = append(paths, expand(p))
	}

	var roots []ScanRoot
	for _, p := range existing(paths) {
		roots = append(roots, ScanRoot{Path: p, Depth: depth})
	}
	return roots
}

// ShortcutDirs returns the locations that hold shortcuts: desktops, Start
// Menu programs, Startup, Quick Launch and pinned items.
func ShortcutDirs() []string {
	roaming := appData()
	local := localAppData()
	menu := filepath.Join(roaming, "Microsoft", "Windows", "Start Menu", "Programs")
	commonMenu := filepath.Join(programData(), "Microsoft", "Windows", "Start Menu", "Programs")
	quickLaunch := filepath.Join(roaming, "Microsoft", "Internet Explorer", "Quick Launch")

	return existing([]string{
		filepath.Join(userProfile(), "Desktop"),
		filepath.Join(publicDir(), "Desktop"),
		menu,
		commonMenu,
		filepath.Join(menu, "Startup"),
		filepath.Join(commonMenu, "Startup"),
		quickLaunch,
		filepath.Join(quickLaunch, "User Pinned", "TaskBar"),
		filepath.Join(quickLaunch, "User Pinned", "StartMenu"),
		filepath.Join(local, "Microsoft", "Windows", "Shell"),
	})
}

// GetNeverDeletePaths returns paths that must NEVER be deleted under any
// circumstances. They may still be descended into. This list uses
// environment variables to support Windows installations on any drive
// letter (not just C:).
func GetNeverDeletePaths() []string {
	w := winDir()
	sd := systemDrive()
	paths := []string{
		w,
		filepath.Join(w, "System32"),
		filepath.Join(w, "SysWOW64"),
		filepath.Join(w, "WinSxS"),
		filepath.Join(w, "assembly"),
		filepath.Join(w, "System32", "config"),
		filepath.Join(sd, "Boot"),
		filepath.Join(sd, "bootmgr"),
		filepath.Join(sd, "EFI"),
		programFiles(),
		programFilesX86(),
		filepath.Join(programFiles(), "Common Files"),
		filepath.Join(programFilesX86(), "Common Files"),
		usersDir(),
		publicDir(),
		programData(),
		filepath.Join(programData(), "Microsoft"),
		filepath.Join(sd, "Recovery"),
		filepath.Join(w, "Installer"),
		filepath.Join(w, "servicing"),
		filepath.Join(w, "Prefetch"),
	}
	for _, profile := range Profiles() {
		paths = append(paths,
			profile,
			filepath.Join(profile, "AppData"),
			filepath.Join(profile, "AppData", "Local"),
			filepath.Join(profile, "AppData", "LocalLow"),
			filepath.Join(profile, "AppData", "Roaming"),
			filepath.Join(profile, "Desktop"),
			filepath.Join(profile, "Documents"),
		)
	}
	return append(paths, ShortcutDirs()...)
}

// existing returns the absolute paths that exist, de-duplicated
// case-insensitively, in order. Relative paths come from unset variables.
func existing(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if !filepath.IsAbs(p) || seen[strings.ToLower(p)] {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return out
}
