package core

import "fmt"

// FormatWindowsVersion names an NT version triple, e.g.
// "Windows 11 (Build 22631)". Windows 11 still reports major version 10
// and is told apart by its build number.
func FormatWindowsVersion(major, minor, build uint32) string {
	name := fmt.Sprintf("Windows %d.%d", major, minor)
	switch {
	case major == 10 && build >= 22000:
		name = "Windows 11"
	case major == 10:
		name = "Windows 10"
	case major == 6 && minor == 3:
		name = "Windows 8.1"
	case major == 6 && minor == 2:
		name = "Windows 8"
	case major == 6 && minor == 1:
		name = "Windows 7"
	}
	return fmt.Sprintf("%s (Build %d)", name, build)
}
