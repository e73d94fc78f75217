package platform

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Privileges enabled for a reclamation run.
var reclaimPrivileges = []string{
	"SeDebugPrivilege",
	"SeTakeOwnershipPrivilege",
	"SeRestorePrivilege",
	"SeBackupPrivilege",
	"SeSecurityPrivilege",
}

// EnablePrivileges turns on the privileges needed to terminate foreign
// processes and take ownership of files. Privileges the token does not hold
// are reported in the returned error; the others stay enabled.
func EnablePrivileges() error {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token); err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer token.Close()

	var missing []string
	for _, name := range reclaimPrivileges {
		if err := enablePrivilege(token, name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("privileges not held: %v: %w", missing, ErrAccessDenied)
	}
	return nil
}

func enablePrivilege(token windows.Token, name string) error {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, p, &luid); err != nil {
		return err
	}
	tp := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{{
			Luid:       luid,
			Attributes: windows.SE_PRIVILEGE_ENABLED,
		}},
	}
	return windows.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil)
}
