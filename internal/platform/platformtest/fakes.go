package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lakshaymaurya-felt/winreclaim/internal/platform"
)

// Processes is a fake ProcessTable. Killed processes disappear from List.
type Processes struct {
	mu      sync.Mutex
	procs   []platform.ProcessInfo
	KillErr map[int32]error
	killed  []int32
}

// NewProcesses returns a table holding procs.
func NewProcesses(procs ...platform.ProcessInfo) *Processes {
	return &Processes{procs: procs}
}

func (p *Processes) List(context.Context) ([]platform.ProcessInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.ProcessInfo(nil), p.procs...), nil
}

func (p *Processes) Kill(_ context.Context, pid int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.KillErr[pid]; ok {
		return err
	}
	for i, proc := range p.procs {
		if proc.PID == pid {
			p.procs = append(p.procs[:i], p.procs[i+1:]...)
			p.killed = append(p.killed, pid)
			return nil
		}
	}
	return fmt.Errorf("pid %d: %w", pid, platform.ErrNotFound)
}

// Alive reports whether pid has not been killed.
func (p *Processes) Alive(pid int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, proc := range p.procs {
		if proc.PID == pid {
			return true
		}
	}
	return false
}

// Killed returns the PIDs terminated so far, in order.
func (p *Processes) Killed() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.killed...)
}

// Windows is a fake WindowLister.
type Windows []platform.Window

func (w Windows) Windows(context.Context) ([]platform.Window, error) {
	return append([]platform.Window(nil), w...), nil
}

// Services is a fake ServiceManager.
type Services struct {
	mu       sync.Mutex
	services []platform.Service
	StopErr  map[string]error
	stopped  []string
	deleted  []string
}

// NewServices returns a manager holding services.
func NewServices(services ...platform.Service) *Services {
	return &Services{services: services}
}

func (s *Services) List(context.Context) ([]platform.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]platform.Service(nil), s.services...), nil
}

func (s *Services) Stop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.StopErr[strings.ToLower(name)]; ok {
		return err
	}
	s.stopped = append(s.stopped, name)
	return nil
}

func (s *Services) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, svc := range s.services {
		if strings.EqualFold(svc.Name, name) {
			s.services = append(s.services[:i], s.services[i+1:]...)
			s.deleted = append(s.deleted, name)
			return nil
		}
	}
	return fmt.Errorf("service %s: %w", name, platform.ErrNotFound)
}

// Stopped returns the names passed to Stop.
func (s *Services) Stopped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stopped...)
}

// Deleted returns the names removed by Delete.
func (s *Services) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Tasks is a fake TaskScheduler.
type Tasks struct {
	mu      sync.Mutex
	tasks   []platform.Task
	deleted []string
}

// NewTasks returns a scheduler holding tasks.
func NewTasks(tasks ...platform.Task) *Tasks {
	return &Tasks{tasks: tasks}
}

func (t *Tasks) List(context.Context) ([]platform.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]platform.Task(nil), t.tasks...), nil
}

func (t *Tasks) Delete(_ context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, task := range t.tasks {
		if strings.EqualFold(task.Path, path) {
			t.tasks = append(t.tasks[:i], t.tasks[i+1:]...)
			t.deleted = append(t.deleted, path)
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", path, platform.ErrNotFound)
}

// Deleted returns the task paths removed so far.
func (t *Tasks) Deleted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.deleted...)
}

// Firewall is a fake Firewall. Delete removes every rule with the name.
type Firewall struct {
	mu      sync.Mutex
	rules   []platform.FirewallRule
	deletes int
}

// NewFirewall returns a firewall holding rules.
func NewFirewall(rules ...platform.FirewallRule) *Firewall {
	return &Firewall{rules: rules}
}

func (f *Firewall) List(context.Context) ([]platform.FirewallRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.FirewallRule(nil), f.rules...), nil
}

func (f *Firewall) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	kept := f.rules[:0]
	found := false
	for _, r := range f.rules {
		if strings.EqualFold(r.Name, name) {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	f.rules = kept
	if !found {
		return fmt.Errorf("rule %s: %w", name, platform.ErrNotFound)
	}
	return nil
}

// Deletes returns the number of Delete calls.
func (f *Firewall) Deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes
}

// Products is a fake ProductSource.
type Products []platform.Product

func (p Products) Products(context.Context) ([]platform.Product, error) {
	return append([]platform.Product(nil), p...), nil
}

// UnsupportedServices is a ServiceManager for platforms without one.
type UnsupportedServices struct{}

func (UnsupportedServices) List(context.Context) ([]platform.Service, error) {
	return nil, platform.ErrUnsupported
}

func (UnsupportedServices) Stop(context.Context, string) error { return platform.ErrUnsupported }

func (UnsupportedServices) Delete(context.Context, string) error { return platform.ErrUnsupported }
