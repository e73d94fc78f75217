package uninstall

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
)

// InstalledApp represents an application found in an uninstall record.
type InstalledApp struct {
	Name                 string
	Version              string
	Publisher            string
	InstallDate          string
	EstimatedSize        int64
	UninstallString      string
	QuietUninstallString string
	InstallLocation      string
	DisplayIcon          string
	IsSystemComponent    bool

	// Root and Key locate the record itself.
	Root platform.Root
	Key  string
}

// KeyName returns the record's own key name (often a product GUID).
func (a InstalledApp) KeyName() string {
	if i := strings.LastIndex(a.Key, `\`); i >= 0 {
		return a.Key[i+1:]
	}
	return a.Key
}

// ─── Uninstall Sources ───────────────────────────────────────────────────────

// Source is one uninstall record location.
type Source struct {
	Root platform.Root
	Path string
}

// Sources are the per-machine and per-user record locations, in both
// registry views.
var Sources = []Source{
	{platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{platform.LocalMachine, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{platform.CurrentUser, `Software\Microsoft\Windows\CurrentVersion\Uninstall`},
	{platform.CurrentUser, `Software\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// kbPattern matches Windows update identifiers like KB1234567.
var kbPattern = regexp.MustCompile(`(?i)\bKB\d{6,}\b`)

// ─── Public API ──────────────────────────────────────────────────────────────

// ReadRecords returns every uninstall record, unfiltered, in source order.
// Missing sources (no WOW6432Node on 32-bit systems) are skipped.
func ReadRecords(store platform.ConfigStore) []InstalledApp {
	var apps []InstalledApp
	for _, src := range Sources {
		subkeys, err := store.SubKeys(src.Root, src.Path)
		if err != nil {
			continue
		}
		for _, name := range subkeys {
			apps = append(apps, readRecord(store, src.Root, src.Path+`\`+name))
		}
	}
	return apps
}

// GetInstalledApps lists installed applications for display, largest
// first. Unless showAll is set, unnamed entries, system components and
// Windows updates are hidden.
func GetInstalledApps(store platform.ConfigStore, showAll bool) []InstalledApp {
	seen := make(map[string]bool)
	var apps []InstalledApp

	for _, app := range ReadRecords(store) {
		if app.Name == "" {
			continue
		}
		key := strings.ToLower(app.Name + "|" + app.Version)
		if seen[key] {
			continue
		}
		seen[key] = true

		if !showAll && (app.IsSystemComponent || kbPattern.MatchString(app.Name)) {
			continue
		}
		apps = append(apps, app)
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].EstimatedSize > apps[j].EstimatedSize
	})
	return apps
}

// ─── Record Helpers ──────────────────────────────────────────────────────────

func readRecord(store platform.ConfigStore, root platform.Root, path string) InstalledApp {
	app := InstalledApp{Root: root, Key: path}
	values, err := store.Values(root, path)
	if err != nil {
		return app
	}
	for _, v := range values {
		switch strings.ToLower(v.Name) {
		case "displayname":
			app.Name = v.Data
		case "displayversion":
			app.Version = v.Data
		case "publisher":
			app.Publisher = v.Data
		case "installdate":
			app.InstallDate = v.Data
		case "uninstallstring":
			app.UninstallString = v.Data
		case "quietuninstallstring":
			app.QuietUninstallString = v.Data
		case "installlocation":
			app.InstallLocation = v.Data
		case "displayicon":
			app.DisplayIcon = v.Data
		case "estimatedsize":
			// Stored in KB as a DWORD.
			if kb, err := strconv.ParseInt(v.Data, 10, 64); err == nil {
				app.EstimatedSize = kb * 1024
			}
		case "systemcomponent":
			app.IsSystemComponent = v.Data == "1"
		}
	}
	return app
}
