//go:build !windows

package platform

import (
	"context"
	"time"
)

// SchTasks is only available on Windows.
type SchTasks struct {
	Timeout time.Duration
}

func (SchTasks) List(context.Context) ([]Task, error) { return nil, ErrUnsupported }

func (SchTasks) Delete(context.Context, string) error { return ErrUnsupported }

// NetshFirewall is only available on Windows.
type NetshFirewall struct {
	Timeout time.Duration
}

func (NetshFirewall) List(context.Context) ([]FirewallRule, error) { return nil, ErrUnsupported }

func (NetshFirewall) Delete(context.Context, string) error { return ErrUnsupported }
