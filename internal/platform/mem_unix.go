//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// LockMemory pins current and future pages so the interpreter hot path does
// not take page faults. Failure is reported, not fatal.
func LockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}

// PageSize returns the host page size in bytes.
func PageSize() int {
	return unix.Getpagesize()
}
