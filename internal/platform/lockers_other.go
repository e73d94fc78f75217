//go:build !windows

package platform

import "context"

// RestartManager is only available on Windows.
type RestartManager struct{}

// Lockers always reports ErrUnsupported.
func (RestartManager) Lockers(context.Context, string) ([]ProcessInfo, error) {
	return nil, ErrUnsupported
}
