// Package platform defines the OS capabilities the reclaimer and sweepers
// depend on. Each capability is an interface with a native implementation
// per operating system and a fake in platformtest, so every phase can run
// against an in-memory or temp-directory environment.
package platform

import (
	"context"
	"errors"
	"io/fs"
)

// Error classes returned (wrapped) by every implementation. Callers test
// them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrLocked       = errors.New("resource locked")
	ErrUnsupported  = errors.New("not supported on this platform")
)

// FileSystem is the mutable filesystem view used by the reclaimer.
type FileSystem interface {
	ReadDir(path string) ([]fs.DirEntry, error)
	Lstat(path string) (fs.FileInfo, error)
	Remove(path string) error
	// ClearAttributes resets read-only, hidden and system attributes.
	ClearAttributes(path string) error
	// TakeOwnership assigns the path to the administrators group and grants
	// it full control.
	TakeOwnership(path string) error
	// ScheduleDelete registers path for removal at the next restart.
	ScheduleDelete(path string) error
	// IsLink reports symlinks, junctions and other reparse points.
	IsLink(path string, info fs.FileInfo) bool
}

// ProcessInfo identifies a running process.
type ProcessInfo struct {
	PID  int32
	Name string
	Exe  string
}

// ProcessTable lists and terminates processes.
type ProcessTable interface {
	List(ctx context.Context) ([]ProcessInfo, error)
	Kill(ctx context.Context, pid int32) error
}

// LockFinder discovers the processes holding a file open.
type LockFinder interface {
	Lockers(ctx context.Context, path string) ([]ProcessInfo, error)
}

// Window is a top-level visible window.
type Window struct {
	PID   int32
	Title string
}

// WindowLister enumerates visible top-level windows.
type WindowLister interface {
	Windows(ctx context.Context) ([]Window, error)
}

// Service describes an installed OS service.
type Service struct {
	Name        string
	DisplayName string
	BinaryPath  string
}

// ServiceManager stops and deletes services. Stop waits until the service
// reports stopped or ctx is done.
type ServiceManager interface {
	List(ctx context.Context) ([]Service, error)
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// Task is a scheduled task and the command it runs.
type Task struct {
	Path   string
	Action string
}

// TaskScheduler lists and deletes scheduled tasks.
type TaskScheduler interface {
	List(ctx context.Context) ([]Task, error)
	Delete(ctx context.Context, path string) error
}

// FirewallRule is a named firewall rule and the program it applies to.
type FirewallRule struct {
	Name    string
	Program string
}

// Firewall lists and deletes firewall rules by name.
type Firewall interface {
	List(ctx context.Context) ([]FirewallRule, error)
	Delete(ctx context.Context, name string) error
}

// Product is an installed MSI product.
type Product struct {
	Name              string
	Vendor            string
	InstallLocation   string
	IdentifyingNumber string
}

// ProductSource enumerates installed MSI products.
type ProductSource interface {
	Products(ctx context.Context) ([]Product, error)
}

// System bundles every capability for one run.
type System struct {
	FS        FileSystem
	Locks     LockFinder
	Processes ProcessTable
	Windows   WindowLister
	Services  ServiceManager
	Tasks     TaskScheduler
	Firewall  Firewall
	Config    ConfigStore
	Products  ProductSource
}
