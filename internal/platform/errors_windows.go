package platform

import (
	"syscall"

	"golang.org/x/sys/windows"
)

var errnoClasses = map[syscall.Errno]error{
	windows.ERROR_FILE_NOT_FOUND:            ErrNotFound,
	windows.ERROR_PATH_NOT_FOUND:            ErrNotFound,
	windows.ERROR_INVALID_NAME:              ErrNotFound,
	windows.ERROR_SERVICE_DOES_NOT_EXIST:    ErrNotFound,
	windows.ERROR_ACCESS_DENIED:             ErrAccessDenied,
	windows.ERROR_PRIVILEGE_NOT_HELD:        ErrAccessDenied,
	windows.ERROR_SHARING_VIOLATION:         ErrLocked,
	windows.ERROR_LOCK_VIOLATION:            ErrLocked,
	windows.ERROR_USER_MAPPED_FILE:          ErrLocked,
	windows.ERROR_SERVICE_MARKED_FOR_DELETE: ErrLocked,
}
