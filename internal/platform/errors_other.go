//go:build !windows

package platform

import "syscall"

var errnoClasses = map[syscall.Errno]error{
	syscall.ENOENT:  ErrNotFound,
	syscall.ENOTDIR: ErrNotFound,
	syscall.EACCES:  ErrAccessDenied,
	syscall.EPERM:   ErrAccessDenied,
	syscall.EROFS:   ErrAccessDenied,
	syscall.EBUSY:   ErrLocked,
	syscall.ETXTBSY: ErrLocked,
}
