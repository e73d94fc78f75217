package platform

import (
	"context"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modUser32                = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = modUser32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = modUser32.NewProc("GetWindowTextLengthW")
)

// Callbacks are a finite resource, so one is created for the package and
// EnumWindows calls are serialised around it.
var (
	enumMu       sync.Mutex
	enumFound    []Window
	enumCallback = syscall.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if !windows.IsWindowVisible(hwnd) {
			return 1
		}
		n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
		if n == 0 {
			return 1
		}
		buf := make([]uint16, n+1)
		procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		var pid uint32
		if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
			return 1
		}
		enumFound = append(enumFound, Window{PID: int32(pid), Title: windows.UTF16ToString(buf)})
		return 1
	})
)

// DesktopWindows is the native WindowLister.
type DesktopWindows struct{}

// Windows returns every visible top-level window with a title.
func (DesktopWindows) Windows(ctx context.Context) ([]Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enumMu.Lock()
	defer enumMu.Unlock()
	enumFound = nil
	if err := windows.EnumWindows(enumCallback, nil); err != nil {
		return nil, classify(err)
	}
	out := enumFound
	enumFound = nil
	return out, nil
}
