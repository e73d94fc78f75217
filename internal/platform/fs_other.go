//go:build !windows

package platform

import (
	"io/fs"
	"os"
)

// MaxPath is PATH_MAX on Unix-like systems.
const MaxPath = 4096

func longPath(path string) string { return path }

// ClearAttributes makes path owner-writable. Links are left alone since
// chmod would follow them.
func (OSFileSystem) ClearAttributes(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return classify(err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil
	}
	mode := info.Mode().Perm() | 0o600
	if info.IsDir() {
		mode |= 0o700
	}
	return classify(os.Chmod(path, mode))
}

// TakeOwnership has no equivalent without root-owned helpers.
func (OSFileSystem) TakeOwnership(string) error {
	return ErrUnsupported
}

// ScheduleDelete has no delete-on-restart facility outside Windows.
func (OSFileSystem) ScheduleDelete(string) error {
	return ErrUnsupported
}

// IsLink reports symlinks.
func (OSFileSystem) IsLink(path string, info fs.FileInfo) bool {
	if info == nil {
		var err error
		if info, err = os.Lstat(path); err != nil {
			return false
		}
	}
	return info.Mode()&fs.ModeSymlink != 0
}
