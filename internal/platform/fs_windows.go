package platform

import (
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// MaxPath is the longest path the native calls accept with the \\?\ prefix.
const MaxPath = 32767

const fileAttributeReparsePoint = 0x0400

// longPath adds the \\?\ prefix for paths exceeding MAX_PATH.
func longPath(path string) string {
	if len(path) >= 260 && !strings.HasPrefix(path, `\\?\`) {
		return `\\?\` + filepath.Clean(path)
	}
	return path
}

// ClearAttributes resets the path to FILE_ATTRIBUTE_NORMAL so read-only,
// hidden and system files can be deleted.
func (OSFileSystem) ClearAttributes(path string) error {
	p, err := windows.UTF16PtrFromString(longPath(path))
	if err != nil {
		return err
	}
	return classify(windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_NORMAL))
}

// TakeOwnership makes the administrators group the owner of path and grants
// it full control. The process needs SeTakeOwnershipPrivilege and
// SeRestorePrivilege, see EnablePrivileges.
func (OSFileSystem) TakeOwnership(path string) error {
	admins, err := windows.CreateWellKnownSid(windows.WinBuiltinAdministratorsSid)
	if err != nil {
		return err
	}
	name := longPath(path)
	if err := windows.SetNamedSecurityInfo(name, windows.SE_FILE_OBJECT,
		windows.OWNER_SECURITY_INFORMATION, admins, nil, nil, nil); err != nil {
		return classify(err)
	}

	acl, err := windows.ACLFromEntries([]windows.EXPLICIT_ACCESS{{
		AccessPermissions: windows.GENERIC_ALL,
		AccessMode:        windows.GRANT_ACCESS,
		Inheritance:       windows.SUB_CONTAINERS_AND_OBJECTS_INHERIT,
		Trustee: windows.TRUSTEE{
			TrusteeForm:  windows.TRUSTEE_IS_SID,
			TrusteeType:  windows.TRUSTEE_IS_WELL_KNOWN_GROUP,
			TrusteeValue: windows.TrusteeValueFromSID(admins),
		},
	}}, nil)
	if err != nil {
		return err
	}
	return classify(windows.SetNamedSecurityInfo(name, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION, nil, nil, acl, nil))
}

// ScheduleDelete registers path with MOVEFILE_DELAY_UNTIL_REBOOT. Directories
// must be empty by the time the session manager processes the entry, so
// children are scheduled before their parents.
func (OSFileSystem) ScheduleDelete(path string) error {
	p, err := windows.UTF16PtrFromString(longPath(path))
	if err != nil {
		return err
	}
	return classify(windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT))
}

// IsLink reports reparse points (symlinks, junctions, mount points).
func (OSFileSystem) IsLink(path string, info fs.FileInfo) bool {
	if info != nil {
		if info.Mode()&fs.ModeSymlink != 0 {
			return true
		}
		if data, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
			return data.FileAttributes&fileAttributeReparsePoint != 0
		}
	}
	p, err := windows.UTF16PtrFromString(longPath(path))
	if err != nil {
		return false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false
	}
	return attrs&fileAttributeReparsePoint != 0
}
