//go:build !windows

package platform

import "context"

// DesktopWindows is only available on Windows.
type DesktopWindows struct{}

// Windows always reports ErrUnsupported.
func (DesktopWindows) Windows(context.Context) ([]Window, error) {
	return nil, ErrUnsupported
}
