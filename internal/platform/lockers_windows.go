package platform

import (
	"context"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

var (
	modRstrtmgr             = windows.NewLazySystemDLL("rstrtmgr.dll")
	procRmStartSession      = modRstrtmgr.NewProc("RmStartSession")
	procRmRegisterResources = modRstrtmgr.NewProc("RmRegisterResources")
	procRmGetList           = modRstrtmgr.NewProc("RmGetList")
	procRmEndSession        = modRstrtmgr.NewProc("RmEndSession")
)

const rmSessionKeyLen = 32 + 1

type rmUniqueProcess struct {
	ProcessID        uint32
	ProcessStartTime windows.Filetime
}

type rmProcessInfo struct {
	Process          rmUniqueProcess
	AppName          [256]uint16
	ServiceShortName [64]uint16
	ApplicationType  uint32
	AppStatus        uint32
	TSSessionID      uint32
	Restartable      int32
}

// RestartManager finds lock holders through the Restart Manager API.
type RestartManager struct{}

// Lockers returns the processes that hold path open.
func (RestartManager) Lockers(ctx context.Context, path string) ([]ProcessInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := modRstrtmgr.Load(); err != nil {
		return nil, fmt.Errorf("restart manager: %w", ErrUnsupported)
	}

	var session uint32
	key := make([]uint16, rmSessionKeyLen)
	if r, _, _ := procRmStartSession.Call(
		uintptr(unsafe.Pointer(&session)), 0, uintptr(unsafe.Pointer(&key[0]))); r != 0 {
		return nil, fmt.Errorf("RmStartSession: %w", classify(syscall.Errno(r)))
	}
	defer procRmEndSession.Call(uintptr(session))

	name, err := windows.UTF16PtrFromString(longPath(path))
	if err != nil {
		return nil, err
	}
	files := []*uint16{name}
	if r, _, _ := procRmRegisterResources.Call(uintptr(session),
		1, uintptr(unsafe.Pointer(&files[0])), 0, 0, 0, 0); r != 0 {
		return nil, fmt.Errorf("RmRegisterResources: %w", classify(syscall.Errno(r)))
	}

	var (
		infos   []rmProcessInfo
		count   uint32
		needed  uint32
		reasons uint32
	)
	for attempt := 0; attempt < 3; attempt++ {
		count = uint32(len(infos))
		var buf *rmProcessInfo
		if count > 0 {
			buf = &infos[0]
		}
		r, _, _ := procRmGetList.Call(uintptr(session),
			uintptr(unsafe.Pointer(&needed)), uintptr(unsafe.Pointer(&count)),
			uintptr(unsafe.Pointer(buf)), uintptr(unsafe.Pointer(&reasons)))
		if r == 0 {
			break
		}
		if syscall.Errno(r) != windows.ERROR_MORE_DATA {
			return nil, fmt.Errorf("RmGetList: %w", classify(syscall.Errno(r)))
		}
		infos = make([]rmProcessInfo, needed)
		count = 0
	}

	out := make([]ProcessInfo, 0, count)
	for i := uint32(0); i < count && int(i) < len(infos); i++ {
		pi := ProcessInfo{
			PID:  int32(infos[i].Process.ProcessID),
			Name: windows.UTF16ToString(infos[i].AppName[:]),
		}
		if p, err := process.NewProcessWithContext(ctx, pi.PID); err == nil {
			if n, err := p.NameWithContext(ctx); err == nil && n != "" {
				pi.Name = n
			}
			pi.Exe, _ = p.ExeWithContext(ctx)
		}
		out = append(out, pi)
	}
	return out, nil
}
