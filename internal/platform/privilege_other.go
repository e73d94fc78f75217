//go:build !windows

package platform

// EnablePrivileges is a no-op; effective root already carries every
// capability the reclaimer uses.
func EnablePrivileges() error {
	return nil
}
