//go:build !windows

package config

// FixedDrives returns nothing: there are no drive letters to enumerate.
func FixedDrives() []string {
	return nil
}
