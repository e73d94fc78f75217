package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// ServiceControl is the native ServiceManager backed by the service
// control manager.
type ServiceControl struct {
	// PollInterval between status queries while waiting for a stop.
	PollInterval time.Duration
}

// List returns every installed service with its configuration. Services
// whose configuration cannot be read are still returned by name.
func (sc ServiceControl) List(ctx context.Context) ([]Service, error) {
	m, err := mgr.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect service manager: %w", classify(err))
	}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return nil, fmt.Errorf("list services: %w", classify(err))
	}
	out := make([]Service, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		entry := Service{Name: name}
		if s, err := m.OpenService(name); err == nil {
			if cfg, err := s.Config(); err == nil {
				entry.DisplayName = cfg.DisplayName
				entry.BinaryPath = cfg.BinaryPathName
			}
			s.Close()
		}
		out = append(out, entry)
	}
	return out, nil
}

// Stop requests a stop and waits until the service reports stopped or ctx
// is done. A service that is not running is already stopped.
func (sc ServiceControl) Stop(ctx context.Context, name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect service manager: %w", classify(err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", name, classify(err))
	}
	defer s.Close()

	status, err := s.Control(svc.Stop)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
			return nil
		}
		return fmt.Errorf("stop service %s: %w", name, classify(err))
	}

	interval := sc.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for status.State != svc.Stopped {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stop service %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
		if status, err = s.Query(); err != nil {
			return fmt.Errorf("query service %s: %w", name, classify(err))
		}
	}
	return nil
}

// Delete marks the service for deletion. The SCM removes it once every
// handle is closed.
func (sc ServiceControl) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect service manager: %w", classify(err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", name, classify(err))
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_MARKED_FOR_DELETE) {
			return nil
		}
		return fmt.Errorf("delete service %s: %w", name, classify(err))
	}
	return nil
}
