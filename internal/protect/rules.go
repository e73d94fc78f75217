package protect

// Rules is the configurable part of the protection policy. Every list is
// matched case-insensitively; path fragments use backslash separators and
// are matched against both Windows and slash-separated paths.
type Rules struct {
	// Fragments are substrings that make a path protected unconditionally.
	Fragments []string `yaml:"fragments"`

	// Conditional are roots that are protected unless the full path also
	// matches a target term (side-by-side store, servicing packages).
	Conditional []string `yaml:"conditional"`

	// Roots are exact directories that may be descended into but never
	// removed themselves (Program Files, the Windows directory...).
	Roots []string `yaml:"roots"`

	// Globs are wildcard patterns (go-wildcard syntax) for paths that are
	// always protected, e.g. "d:\backups\*".
	Globs []string `yaml:"globs"`

	// Processes are executable names that are never terminated.
	Processes []string `yaml:"processes"`

	// Services are service short names that are never stopped or deleted.
	Services []string `yaml:"services"`

	// Names are configuration-store key names and directory names that are
	// never deleted as a whole, even when a term matches them. Their
	// contents are still visited.
	Names []string `yaml:"names"`

	// Env are environment value names that are never deleted. Path-like
	// values in this list may still have matching segments filtered out.
	Env []string `yaml:"env"`

	// TaskFolders are scheduled-task folders whose tasks are never deleted.
	TaskFolders []string `yaml:"task_folders"`
}

// Merge returns r with every list of o appended.
func (r Rules) Merge(o Rules) Rules {
	return Rules{
		Fragments:   append(append([]string(nil), r.Fragments...), o.Fragments...),
		Conditional: append(append([]string(nil), r.Conditional...), o.Conditional...),
		Roots:       append(append([]string(nil), r.Roots...), o.Roots...),
		Globs:       append(append([]string(nil), r.Globs...), o.Globs...),
		Processes:   append(append([]string(nil), r.Processes...), o.Processes...),
		Services:    append(append([]string(nil), r.Services...), o.Services...),
		Names:       append(append([]string(nil), r.Names...), o.Names...),
		Env:         append(append([]string(nil), r.Env...), o.Env...),
		TaskFolders: append(append([]string(nil), r.TaskFolders...), o.TaskFolders...),
	}
}

// DefaultRules returns the built-in denylists. Exact never-delete roots are
// environment dependent and are supplied by the config package.
func DefaultRules() Rules {
	return Rules{
		Fragments: []string{
			`\windows\system32\`,
			`\windows\syswow64\`,
			`\windows\boot\`,
			`\windows\fonts\`,
			`\windows\assembly\`,
			`\windows\microsoft.net\`,
			`\windows\systemapps\`,
			`\windows\explorer.exe`,
			`$recycle.bin`,
			`system volume information`,
			`:\boot\`,
			`:\efi\`,
			`:\recovery\`,
			`:\bootmgr`,
			`:\pagefile.sys`,
			`:\hiberfil.sys`,
			`:\swapfile.sys`,
		},
		Conditional: []string{
			`\windows\winsxs\`,
			`\windows\servicing\packages\`,
			`\windows\installer\`,
		},
		Processes: []string{
			"system", "registry", "idle", "system idle process", "secure system",
			"memory compression", "smss.exe", "csrss.exe", "wininit.exe",
			"services.exe", "lsass.exe", "lsaiso.exe", "svchost.exe", "dwm.exe",
			"explorer.exe", "winlogon.exe", "fontdrvhost.exe", "sihost.exe",
			"taskhostw.exe", "runtimebroker.exe", "conhost.exe", "ctfmon.exe",
			"searchindexer.exe", "securityhealthservice.exe", "msmpeng.exe",
			"nissrv.exe", "spoolsv.exe", "audiodg.exe", "wudfhost.exe",
		},
		Services: []string{
			"rpcss", "rpceptmapper", "dcomlaunch", "lsm", "eventlog", "plugplay",
			"power", "profsvc", "samss", "schedule", "winmgmt", "windefend",
			"wuauserv", "bfe", "mpssvc", "cryptsvc", "dhcp", "dnscache", "nsi",
			"lanmanserver", "lanmanworkstation", "trustedinstaller", "wscsvc",
			"sense", "audiosrv", "audioendpointbuilder", "themes", "usermanager",
			"coremessagingregistrar", "brokerinfrastructure",
			"systemeventsbroker", "msiserver", "appinfo", "netlogon",
			"termservice", "w32time", "spooler", "eventsystem", "gpsvc",
		},
		Names: []string{
			"microsoft", "windows", "windows nt", "classes", "policies",
			"wow6432node", "clients", "registeredapplications", "odbc",
			"currentversion", "controlset001", "currentcontrolset", "setup",
			"program files", "program files (x86)", "programdata", "users",
			"appdata", "local", "locallow", "roaming", "common files",
			"windowsapps", "packages", "temp", "system32",
		},
		Env: []string{
			"path", "pathext", "psmodulepath", "windir", "systemroot",
			"systemdrive", "comspec", "temp", "tmp", "os", "username",
			"userprofile", "programdata", "programfiles", "programfiles(x86)",
			"programw6432", "commonprogramfiles", "commonprogramfiles(x86)",
			"processor_architecture", "processor_identifier",
			"processor_level", "processor_revision", "number_of_processors",
			"driverdata", "appdata", "localappdata", "public",
		},
		TaskFolders: []string{
			`\microsoft\windows\`,
			`\microsoft\office\`,
		},
	}
}
