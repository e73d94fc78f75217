package platform

// Native returns the capabilities of the running operating system. On
// platforms without an implementation the capability reports
// ErrUnsupported and the corresponding phase is skipped.
func Native() System {
	return System{
		FS:        OSFileSystem{},
		Locks:     RestartManager{},
		Processes: ProcessList{},
		Windows:   DesktopWindows{},
		Services:  ServiceControl{},
		Tasks:     SchTasks{},
		Firewall:  NetshFirewall{},
		Config:    Registry{},
		Products:  WMIProducts{},
	}
}
