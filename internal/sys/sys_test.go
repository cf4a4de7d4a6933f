package sys

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewContext(&out, &errOut)
	c.Print("a")
	c.PrintLine("b")
	c.PrintError("x")
	c.PrintErrorLine("y")
	require.Equal(t, "ab\n", out.String())
	require.Equal(t, "xy\n", errOut.String())
}

func TestFileTableLifecycle(t *testing.T) {
	c := NewContext(io.Discard, io.Discard)
	defer c.Close()
	path := filepath.Join(t.TempDir(), "data.txt")

	hnd := c.GetHandler()
	require.NoError(t, c.OpenForWrite(hnd, path))
	require.Error(t, c.OpenForWrite(hnd, path), "handler already open")
	require.NoError(t, c.WriteBytes(hnd, []byte("line1\nline2\n")))
	require.NoError(t, c.CloseFile(hnd))
	require.Error(t, c.CloseFile(hnd), "already closed")

	require.NoError(t, c.OpenForRead(hnd, path))
	got, err := c.ReadAllBytes(hnd)
	require.NoError(t, err)
	require.Equal(t, "line1\nline2\n", string(got))
	require.NoError(t, c.CloseFile(hnd))

	p, err := c.Hnd2File(hnd)
	require.NoError(t, err)
	require.Equal(t, path, p)
	require.Equal(t, hnd, c.File2Hnd(path))
	require.NoError(t, c.FreeHandler(hnd))
	require.Error(t, c.FreeHandler(hnd))
}

func TestReadLines(t *testing.T) {
	c := NewContext(io.Discard, io.Discard)
	defer c.Close()
	path := filepath.Join(t.TempDir(), "lines.txt")
	hnd := c.GetHandler()
	require.NoError(t, c.OpenForWrite(hnd, path))
	require.NoError(t, c.WriteAllLines(hnd, []string{"one", "two", ""}))
	require.NoError(t, c.CloseFile(hnd))

	require.NoError(t, c.OpenForRead(hnd, path))
	lines, err := c.ReadAllLines(hnd)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", ""}, lines)
	require.NoError(t, c.CloseFile(hnd))

	require.NoError(t, c.OpenForRead(hnd, path))
	first, err := c.ReadLine(hnd)
	require.NoError(t, err)
	require.Equal(t, "one", first)
	require.NoError(t, c.CloseFile(hnd))
}

func TestAppendMode(t *testing.T) {
	c := NewContext(io.Discard, io.Discard)
	defer c.Close()
	path := filepath.Join(t.TempDir(), "log.txt")
	hnd := c.GetHandler()
	require.NoError(t, c.OpenForWrite(hnd, path))
	require.NoError(t, c.WriteBytes(hnd, []byte("a")))
	require.NoError(t, c.CloseFile(hnd))
	require.NoError(t, c.OpenForAppend(hnd, path))
	require.NoError(t, c.WriteBytes(hnd, []byte("b")))
	require.NoError(t, c.CloseFile(hnd))

	require.NoError(t, c.OpenForRead(hnd, path))
	got, err := c.ReadAllBytes(hnd)
	require.NoError(t, err)
	require.Equal(t, "ab", string(got))
}

func TestFileProbes(t *testing.T) {
	c := NewContext(io.Discard, io.Discard)
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.txt")
	require.False(t, c.FileExists(path))
	hnd := c.GetHandler()
	require.NoError(t, c.OpenForWrite(hnd, path))
	require.NoError(t, c.WriteBytes(hnd, []byte("xyz")))
	require.NoError(t, c.CloseFile(hnd))
	require.True(t, c.FileExists(path))
	require.True(t, c.DirExists(dir))
	require.False(t, c.DirExists(path))
	size, err := c.GetFileSize(path)
	require.NoError(t, err)
	require.Equal(t, int64(3), size)
}

func TestSeededRandIsDeterministic(t *testing.T) {
	a := NewContext(io.Discard, io.Discard)
	b := NewContext(io.Discard, io.Discard)
	a.Seed(7)
	b.Seed(7)
	for i := 0; i < 8; i++ {
		require.Equal(t, a.Rand(), b.Rand())
	}
}

func TestDateArithmetic(t *testing.T) {
	require.True(t, DateValid(2024, 2, 29))
	require.False(t, DateValid(2023, 2, 29))
	require.False(t, DateValid(2023, 13, 1))

	d := DateValue(2026, 8, 1)
	assert.Equal(t, int64(20260801), d)
	assert.Equal(t, int64(2026), DatePart(d, 1))
	assert.Equal(t, int64(8), DatePart(d, 2))
	assert.Equal(t, int64(1), DatePart(d, 3))
	assert.Equal(t, int64(20260831), EndOfMonth(d))
	assert.Equal(t, int64(20260801), BegOfMonth(DateValue(2026, 8, 23)))
	assert.Equal(t, int64(20260901), DateAdd(d, 31))
	assert.Equal(t, int64(31), DateDiff(DateAdd(d, 31), d))
}

func TestTimeArithmetic(t *testing.T) {
	require.True(t, TimeValid(23, 59, 59))
	require.False(t, TimeValid(24, 0, 0))

	tm := TimeValue(13, 30, 15)
	assert.Equal(t, int64(13), TimePart(tm, 1))
	assert.Equal(t, int64(30), TimePart(tm, 2))
	assert.Equal(t, int64(15), TimePart(tm, 3))
	assert.Equal(t, int64(0), TimePart(tm, 4))

	wrapped := TimeAdd(TimeValue(23, 59, 59), 2)
	assert.Equal(t, TimeValue(0, 0, 1), wrapped)
	back := TimeAdd(TimeValue(0, 0, 1), -2)
	assert.Equal(t, TimeValue(23, 59, 59), back)
	assert.Equal(t, int64(1e9), NanoSecAdd(0, 1e9))
}

func TestExecuteCapturesOutput(t *testing.T) {
	stdout, stderr, err := Execute("sh", []string{"-c", "echo out; echo err 1>&2"}, false)
	require.NoError(t, err)
	require.Equal(t, "out\n", stdout)
	require.Equal(t, "err\n", stderr)

	both, _, err := Execute("sh", []string{"-c", "echo out; echo err 1>&2"}, true)
	require.NoError(t, err)
	require.Contains(t, both, "out\n")
	require.Contains(t, both, "err\n")
}
