package core

import "golang.org/x/sys/windows"

// WindowsVersionString describes the running Windows version. The version
// comes from RtlGetNtVersionNumbers, which is not subject to manifest-based
// version lies.
func WindowsVersionString() string {
	major, minor, build := windows.RtlGetNtVersionNumbers()
	return FormatWindowsVersion(major, minor, build&0xFFFF)
}
