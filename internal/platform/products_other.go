//go:build !windows

package platform

import "context"

// WMIProducts is only available on Windows.
type WMIProducts struct{}

func (WMIProducts) Products(context.Context) ([]Product, error) { return nil, ErrUnsupported }
