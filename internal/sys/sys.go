// Package sys is the host facade of the virtual machine: console streams,
// the per-machine file-descriptor table, date/time services and external
// process execution. The interpreter reaches it only through system calls.
package sys

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

// consoleMu serializes console output across machines in the same process.
var consoleMu sync.Mutex

// Context owns the host resources of one machine.
type Context struct {
	stdout io.Writer
	stderr io.Writer
	files  map[cpu.Int]*file
	nxtHnd cpu.Int
	rnd    *rand.Rand
}

type file struct {
	handle *os.File
	path   string
	open   bool
}

// NewContext builds a host context writing to the given streams.
func NewContext(stdout, stderr io.Writer) *Context {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Context{
		stdout: stdout,
		stderr: stderr,
		files:  map[cpu.Int]*file{},
		rnd:    rand.New(rand.NewSource(1)),
	}
}

// Close releases every file still open.
func (c *Context) Close() {
	for _, f := range c.files {
		if f.open {
			f.handle.Close()
		}
	}
	c.files = map[cpu.Int]*file{}
}

// Console output. The lock keeps lines from interleaving when several
// machines share the process.

func (c *Context) Print(s string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	fmt.Fprint(c.stdout, s)
}

func (c *Context) PrintLine(s string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	fmt.Fprintln(c.stdout, s)
}

func (c *Context) PrintError(s string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	fmt.Fprint(c.stderr, s)
}

func (c *Context) PrintErrorLine(s string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	fmt.Fprintln(c.stderr, s)
}

// Seed reseeds the random source.
func (c *Context) Seed(seed cpu.Lon) {
	c.rnd = rand.New(rand.NewSource(seed))
}

// Rand returns a float in [0,1).
func (c *Context) Rand() cpu.Flo {
	return c.rnd.Float64()
}

var errBadHandler = errors.New("invalid file handler")

// GetHandler reserves a file handler.
func (c *Context) GetHandler() cpu.Int {
	c.nxtHnd++
	c.files[c.nxtHnd] = &file{}
	return c.nxtHnd
}

// FreeHandler releases a handler, closing its file if still open.
func (c *Context) FreeHandler(hnd cpu.Int) error {
	f, ok := c.files[hnd]
	if !ok {
		return errBadHandler
	}
	if f.open {
		f.handle.Close()
	}
	delete(c.files, hnd)
	return nil
}

func (c *Context) lookup(hnd cpu.Int) (*file, error) {
	f, ok := c.files[hnd]
	if !ok {
		return nil, errBadHandler
	}
	return f, nil
}

func (c *Context) openAs(hnd cpu.Int, path string, flag int) error {
	f, err := c.lookup(hnd)
	if err != nil {
		return err
	}
	if f.open {
		return errors.Errorf("handler %d already open on %s", hnd, f.path)
	}
	h, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	f.handle = h
	f.path = path
	f.open = true
	return nil
}

func (c *Context) OpenForRead(hnd cpu.Int, path string) error {
	return c.openAs(hnd, path, os.O_RDONLY)
}

func (c *Context) OpenForWrite(hnd cpu.Int, path string) error {
	return c.openAs(hnd, path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func (c *Context) OpenForAppend(hnd cpu.Int, path string) error {
	return c.openAs(hnd, path, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (c *Context) CloseFile(hnd cpu.Int) error {
	f, err := c.lookup(hnd)
	if err != nil {
		return err
	}
	if !f.open {
		return errors.Errorf("handler %d not open", hnd)
	}
	f.open = false
	return f.handle.Close()
}

// Hnd2File returns the path bound to a handler.
func (c *Context) Hnd2File(hnd cpu.Int) (string, error) {
	f, err := c.lookup(hnd)
	if err != nil {
		return "", err
	}
	return f.path, nil
}

// File2Hnd finds the handler bound to a path, -1 when none.
func (c *Context) File2Hnd(path string) cpu.Int {
	for hnd, f := range c.files {
		if f.path == path {
			return hnd
		}
	}
	return -1
}

func (c *Context) openFile(hnd cpu.Int) (*os.File, error) {
	f, err := c.lookup(hnd)
	if err != nil {
		return nil, err
	}
	if !f.open {
		return nil, errors.Errorf("handler %d not open", hnd)
	}
	return f.handle, nil
}

// ReadBytes reads up to length bytes.
func (c *Context) ReadBytes(hnd cpu.Int, length cpu.Lon) ([]byte, error) {
	h, err := c.openFile(hnd)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(h, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteBytes writes data fully.
func (c *Context) WriteBytes(hnd cpu.Int, data []byte) error {
	h, err := c.openFile(hnd)
	if err != nil {
		return err
	}
	_, err = h.Write(data)
	return err
}

// ReadAllBytes reads the remainder of the file.
func (c *Context) ReadAllBytes(hnd cpu.Int) ([]byte, error) {
	h, err := c.openFile(hnd)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(h)
}

// ReadAllLines reads the remainder of the file split in lines; the trailing
// newline does not produce an empty line.
func (c *Context) ReadAllLines(hnd cpu.Int) ([]string, error) {
	data, err := c.ReadAllBytes(hnd)
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

// WriteAllLines writes each line with a newline terminator.
func (c *Context) WriteAllLines(hnd cpu.Int, lines []string) error {
	h, err := c.openFile(hnd)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(h, line); err != nil {
			return err
		}
	}
	return nil
}

// ReadLine reads one line in byte mode.
func (c *Context) ReadLine(hnd cpu.Int) (string, error) {
	h, err := c.openFile(hnd)
	if err != nil {
		return "", err
	}
	var out []byte
	one := make([]byte, 1)
	for {
		n, err := h.Read(one)
		if n == 1 {
			if one[0] == '\n' {
				break
			}
			out = append(out, one[0])
			continue
		}
		if err == io.EOF {
			if len(out) == 0 {
				return "", io.EOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return string(out), nil
}

// WriteLine writes one line with a newline terminator.
func (c *Context) WriteLine(hnd cpu.Int, line string) error {
	h, err := c.openFile(hnd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(h, line)
	return err
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	if s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	line := s[start:]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return append(lines, line)
}

// GetFileSize returns the size of a file by path.
func (c *Context) GetFileSize(path string) (cpu.Lon, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// FileExists reports whether path names a regular file.
func (c *Context) FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// DirExists reports whether path names a directory.
func (c *Context) DirExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
