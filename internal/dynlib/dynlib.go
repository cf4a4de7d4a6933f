// Package dynlib defines the host-native library calling contract of the
// virtual machine and the process-wide dispatcher registry.
//
// A library exposes a dispatcher: function lookup by name, invocation by
// id, and identification entry points. System libraries are shared by every
// program in the process; user libraries are private to a program and, when
// file backed, first copied to a temporary path keyed by the library build
// number so the running program holds its own copy.
package dynlib

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

var log = logrus.WithField("component", "dynlib")

// Value is one marshalled call argument. Scalars normalize to long or
// float; strings and char payloads travel as byte slices. With Update the
// callee may replace Bytes (the replacement-pointer contract); without it
// writes must stay in place.
type Value struct {
	Type   cpu.DataType
	Lon    cpu.Lon
	Flo    cpu.Flo
	Bytes  []byte
	Len    cpu.Lon
	Update bool
}

// Library is one loaded dispatcher.
type Library interface {
	IsSystemLibrary() bool
	Architecture() int
	BuildNumber() string
	Init(dbg func(msg string)) error
	Search(function string) (id int, ok bool)
	Call(id int, args []*Value) error
	Close()
}

// Loader turns a library file into a dispatcher. The default build has no
// host loader; embedders register one when the platform supports it.
type Loader func(path string) (Library, error)

var (
	mu       sync.RWMutex
	registry = map[string]Library{}
	loader   Loader
)

// Register installs a system library dispatcher under its name.
func Register(name string, lib Library) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = lib
}

// Lookup finds a registered dispatcher.
func Lookup(name string) (Library, bool) {
	mu.RLock()
	defer mu.RUnlock()
	lib, ok := registry[name]
	return lib, ok
}

// SetLoader installs the host file loader.
func SetLoader(l Loader) {
	mu.Lock()
	defer mu.Unlock()
	loader = l
}

// Open resolves a library by name: the registry first, then the host
// loader against the library path. User libraries are copied to tmpPath
// before loading so the program keeps a private image.
func Open(name, libPath, tmpPath string) (Library, error) {
	if lib, ok := Lookup(name); ok {
		return lib, nil
	}
	mu.RLock()
	l := loader
	mu.RUnlock()
	if l == nil {
		return nil, errors.Errorf("no dispatcher registered for %s and host loading is unavailable", name)
	}
	src := filepath.Join(libPath, name+libraryExt)
	lib, err := l(src)
	if err != nil {
		return nil, err
	}
	if lib.IsSystemLibrary() {
		return lib, nil
	}
	// Private copy keyed by build number, then reopen from the copy.
	lib.Close()
	dst := filepath.Join(tmpPath, name+"-"+safeBuild(lib.BuildNumber())+libraryExt)
	if err := copyFile(src, dst); err != nil {
		return nil, errors.Wrap(err, "library temp copy")
	}
	log.Debugf("user library %s copied to %s", name, dst)
	return l(dst)
}

func safeBuild(b string) string {
	if b == "" {
		return "0"
	}
	return b
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
