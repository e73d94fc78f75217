//go:build !windows

package platform

import "context"

// ServiceControl is only available on Windows.
type ServiceControl struct{}

func (ServiceControl) List(context.Context) ([]Service, error) { return nil, ErrUnsupported }

func (ServiceControl) Stop(context.Context, string) error { return ErrUnsupported }

func (ServiceControl) Delete(context.Context, string) error { return ErrUnsupported }
