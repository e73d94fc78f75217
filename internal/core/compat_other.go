//go:build !windows

package core

import "runtime"

// WindowsVersionString reports the host OS on non-Windows builds.
func WindowsVersionString() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
