//go:build !linux && !darwin

package platform

import "os"

func LockMemory() error {
	return nil // page locking is best effort
}

func PageSize() int {
	return os.Getpagesize()
}
