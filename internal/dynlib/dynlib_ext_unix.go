//go:build !windows

package dynlib

const libraryExt = ".so"
