package arrcomp

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dungeonspells/dsvm/internal/auxmem"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/strcomp"
	"github.com/dungeonspells/dsvm/internal/sys"
)

func newTestComputer(t *testing.T) (*Computer, *strcomp.Computer, *auxmem.Manager) {
	t.Helper()
	aux, err := auxmem.Init(1, 64, 1024, 512, 64)
	require.NoError(t, err)
	stc := strcomp.Init(aux)
	stc.SetScope(1, 1)
	c := Init(aux, stc)
	c.DynSetScope(1, 1)
	return c, stc, aux
}

func mkStr(t *testing.T, stc *strcomp.Computer, s string) cpu.Mbl {
	t.Helper()
	var b cpu.Mbl
	require.Nil(t, stc.SCOPYData(&b, []byte(s)))
	return b
}

func absGeom(i int) cpu.Agx {
	return cpu.Agx(uint16(i) | cpu.ArrGeomMask80)
}

func TestFixedGeometryOffsets(t *testing.T) {
	c, _, _ := newTestComputer(t)
	require.Nil(t, c.FixStoreGeom(absGeom(0), 2, 4, cpu.ArrayIndexes{2, 3}))

	g := absGeom(0)
	elems, err := c.FixGetElements(g)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(6), elems)

	// offset(d1,d2) = d1*cell*dim2 + d2*cell
	require.Nil(t, c.AFIDX(g, 1, 1))
	require.Nil(t, c.AFIDX(g, 2, 2))
	off, err := c.AFOFN(g)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(1*4*3+2*4), off)

	require.Nil(t, c.AFIDX(g, 2, 3))
	_, err = c.AFOFN(g)
	require.NotNil(t, err)
	require.Equal(t, excep.ArrayIndexingOutOfBounds, err.Code)
}

func TestFixedGeometryBasePointer(t *testing.T) {
	c, _, _ := newTestComputer(t)
	require.Nil(t, c.FixStoreGeom(absGeom(3), 1, 8, cpu.ArrayIndexes{5}))
	c.FixSetBP(2)
	// Relative index 1 resolves against the base pointer.
	off, err := c.AF1OF(cpu.Agx(1), 4)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(32), off)
	// Absolute index ignores it.
	_, err = c.AF1OF(absGeom(3), 4)
	require.Nil(t, err)
}

func TestFixedLoopProtocol(t *testing.T) {
	c, _, _ := newTestComputer(t)
	require.Nil(t, c.FixStoreGeom(absGeom(0), 1, 2, cpu.ArrayIndexes{3}))
	g := absGeom(0)
	require.Nil(t, c.AF1RW(g, 0, cpu.LoclVar, 999))
	var offsets []cpu.Wrd
	for {
		off, exit, err := c.AF1FO(g)
		require.Nil(t, err)
		if exit != 0 {
			require.Equal(t, cpu.Adr(999), exit)
			break
		}
		offsets = append(offsets, off)
		_, _, err = c.AF1NX(g)
		require.Nil(t, err)
	}
	require.Equal(t, []cpu.Wrd{0, 2, 4}, offsets)
}

func TestDynAppendInsertDelete(t *testing.T) {
	c, _, aux := newTestComputer(t)
	var arr cpu.Mbl
	require.Nil(t, c.AD1EM(&arr, 8))
	for i := int64(1); i <= 3; i++ {
		off, err := c.AD1AP(arr, 8)
		require.Nil(t, err)
		binary.LittleEndian.PutUint64(aux.CharPtr(arr)[off:], uint64(i*10))
	}
	n, err := c.DynGetElements(arr)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(3), n)

	// Insert 99 before position 1, delete position 0: [10,99,20,30] -> [99,20,30]
	off, err := c.AD1IN(arr, 1, 8)
	require.Nil(t, err)
	binary.LittleEndian.PutUint64(aux.CharPtr(arr)[off:], 99)
	require.Nil(t, c.AD1DE(arr, 0))

	want := []uint64{99, 20, 30}
	for i, w := range want {
		off, err := c.AD1OF(arr, cpu.Wrd(i))
		require.Nil(t, err)
		assert.Equal(t, w, binary.LittleEndian.Uint64(aux.CharPtr(arr)[off:]))
	}
	_, err = c.AD1OF(arr, 3)
	require.NotNil(t, err)
	require.Equal(t, excep.ArrayIndexingOutOfBounds, err.Code)
}

// The 2-D resize scenario: a 2x3 array filled 1..6 grows to 3x4, existing
// cells keep their index positions and new cells read zero.
func TestDynTwoDimResize(t *testing.T) {
	c, _, aux := newTestComputer(t)
	var arr cpu.Mbl
	require.Nil(t, c.ADDEF(&arr, 2, 4))
	require.Nil(t, c.ADSET(&arr, 1, 2))
	require.Nil(t, c.ADSET(&arr, 2, 3))
	require.Nil(t, c.ADRSZ(&arr))
	data := aux.CharPtr(arr)
	for i := 0; i < 6; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i+1))
	}

	require.Nil(t, c.ADSET(&arr, 1, 3))
	require.Nil(t, c.ADSET(&arr, 2, 4))
	require.Nil(t, c.ADRSZ(&arr))

	readAt := func(d1, d2 cpu.Wrd) uint32 {
		require.Nil(t, c.ADIDX(arr, 1, d1))
		require.Nil(t, c.ADIDX(arr, 2, d2))
		off, err := c.ADOFN(arr)
		require.Nil(t, err)
		return binary.LittleEndian.Uint32(aux.CharPtr(arr)[off:])
	}
	assert.Equal(t, uint32(1), readAt(0, 0))
	assert.Equal(t, uint32(3), readAt(0, 2))
	assert.Equal(t, uint32(4), readAt(1, 0))
	assert.Equal(t, uint32(0), readAt(2, 3))
}

// The offset ADOFN computes from ADIDX indexes agrees with the offset formula
// computed by hand.
func TestDynOffsetFormulaEquivalence(t *testing.T) {
	c, _, aux := newTestComputer(t)
	rapid.Check(t, func(t *rapid.T) {
		dims := cpu.ArrayIndexes{
			rapid.Int64Range(1, 4).Draw(t, "d1"),
			rapid.Int64Range(1, 4).Draw(t, "d2"),
			rapid.Int64Range(1, 3).Draw(t, "d3"),
		}
		var arr cpu.Mbl
		require.Nil(t, c.ADDEF(&arr, 3, 2))
		for i := 0; i < 3; i++ {
			require.Nil(t, c.ADSET(&arr, cpu.Chr(i+1), dims[i]))
		}
		require.Nil(t, c.ADRSZ(&arr))
		data := aux.CharPtr(arr)
		for i := range data {
			data[i] = byte(i)
		}
		i1 := rapid.Int64Range(0, dims[0]-1).Draw(t, "i1")
		i2 := rapid.Int64Range(0, dims[1]-1).Draw(t, "i2")
		i3 := rapid.Int64Range(0, dims[2]-1).Draw(t, "i3")
		require.Nil(t, c.ADIDX(arr, 1, i1))
		require.Nil(t, c.ADIDX(arr, 2, i2))
		require.Nil(t, c.ADIDX(arr, 3, i3))
		off, err := c.ADOFN(arr)
		require.Nil(t, err)
		manual := i1*2*dims[1]*dims[2] + i2*2*dims[2] + i3*2
		assert.Equal(t, manual, off)
		aux.Free(arr)
	})
}

// String split then join reproduces the separator structure, empty fields
// included.
func TestSplitJoinRoundTrip(t *testing.T) {
	c, stc, _ := newTestComputer(t)
	s := mkStr(t, stc, "a,b,,c")
	sep := mkStr(t, stc, ",")
	var arr cpu.Mbl
	require.Nil(t, c.SSPL(&arr, s, sep))
	n, err := c.DynGetElements(arr)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(4), n)

	lines, err2 := c.STAOPR(arr)
	require.Nil(t, err2)
	require.Equal(t, cpu.Wrd(4), lines)
	var got []string
	for i := cpu.Wrd(0); i < lines; i++ {
		b, err := c.STARDL(i)
		require.Nil(t, err)
		got = append(got, stc.String(b))
	}
	require.Nil(t, c.STACLO())
	require.Equal(t, []string{"a", "b", "", "c"}, got)

	sep2 := mkStr(t, stc, ";")
	var joined cpu.Mbl
	require.Nil(t, c.AD1SJ(&joined, arr, sep2))
	require.Equal(t, "a;b;;c", stc.String(joined))
}

func TestCharArrayRoundTrip(t *testing.T) {
	c, stc, _ := newTestComputer(t)
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(t, "text")
		var s cpu.Mbl
		require.Nil(t, stc.SCOPYData(&s, text))
		var arr cpu.Mbl
		require.Nil(t, c.STOCA(&arr, s))
		var back cpu.Mbl
		require.Nil(t, c.SFRCA(&back, arr))
		assert.Equal(t, string(text), stc.String(back))
	})
}

func TestDynCastZeroFillsMissing(t *testing.T) {
	c, _, aux := newTestComputer(t)
	var src cpu.Mbl
	require.Nil(t, c.ADDEF(&src, 2, 1))
	require.Nil(t, c.ADSET(&src, 1, 2))
	require.Nil(t, c.ADSET(&src, 2, 2))
	require.Nil(t, c.ADRSZ(&src))
	copy(aux.CharPtr(src), []byte{1, 2, 3, 4})

	var dst cpu.Mbl
	require.Nil(t, c.ADDEF(&dst, 2, 1))
	require.Nil(t, c.ADSET(&dst, 1, 3))
	require.Nil(t, c.ADSET(&dst, 2, 3))
	require.Nil(t, c.ADRSZ(&dst))
	data := aux.CharPtr(dst)
	for i := range data {
		data[i] = 0xEE
	}

	require.Nil(t, c.AD2D(&dst, src))
	// Row-major 3x3 destination: overlapping 2x2 copied, the rest zero.
	want := []byte{1, 2, 0, 3, 4, 0, 0, 0, 0}
	assert.Equal(t, want, aux.CharPtr(dst)[:9])

	var wrongRank cpu.Mbl
	require.Nil(t, c.ADDEF(&wrongRank, 1, 1))
	err := c.AD2D(&wrongRank, src)
	require.NotNil(t, err)
	assert.Equal(t, excep.ArrayWrongDimension, err.Code)
}

func TestStaStateMachine(t *testing.T) {
	c, stc, _ := newTestComputer(t)

	_, err := c.STARDL(0)
	require.NotNil(t, err)
	assert.Equal(t, excep.StaOperationNotOpen, err.Code)
	err = c.STACLO()
	require.NotNil(t, err)
	assert.Equal(t, excep.StaOperationAlreadyClosed, err.Code)

	var arr cpu.Mbl
	require.Nil(t, c.STAOPW(&arr))
	err = c.STAOPW(&arr)
	require.NotNil(t, err)
	assert.Equal(t, excep.StaOperationAlreadyOpen, err.Code)
	require.Nil(t, c.STAWRLText("first"))
	require.Nil(t, c.STAWRL(mkStr(t, stc, "second")))
	require.Nil(t, c.STACLO())

	lines, err2 := c.STAOPR(arr)
	require.Nil(t, err2)
	require.Equal(t, cpu.Wrd(2), lines)
	b, err3 := c.STARDL(1)
	require.Nil(t, err3)
	require.Equal(t, "second", stc.String(b))
	require.Nil(t, c.STACLO())
}

// Char-array file hooks against real files: write, close, reopen, read all.
func TestCharArrayFileRoundTrip(t *testing.T) {
	c, stc, _ := newTestComputer(t)
	host := sys.NewContext(nil, nil)
	defer host.Close()
	c.SetFileStore(host)

	payload := []byte("spell book\x01\x02payload")
	var s cpu.Mbl
	require.Nil(t, stc.SCOPYData(&s, payload))
	var arr cpu.Mbl
	require.Nil(t, c.STOCA(&arr, s))

	path := filepath.Join(t.TempDir(), "dump.bin")
	hnd := host.GetHandler()
	require.NoError(t, host.OpenForWrite(hnd, path))
	ok, err := c.WRALCH(hnd, arr)
	require.Nil(t, err)
	require.Equal(t, cpu.Bol(1), ok)
	require.NoError(t, host.CloseFile(hnd))

	hnd2 := host.GetHandler()
	require.NoError(t, host.OpenForRead(hnd2, path))
	var back cpu.Mbl
	ok, err = c.RDALCH(hnd2, &back)
	require.Nil(t, err)
	require.Equal(t, cpu.Bol(1), ok)
	var backStr cpu.Mbl
	require.Nil(t, c.SFRCA(&backStr, back))
	require.Equal(t, string(payload), stc.String(backStr))
	require.NoError(t, host.CloseFile(hnd2))

	raw, rdErr := os.ReadFile(path)
	require.NoError(t, rdErr)
	require.Equal(t, payload, raw)
}

func TestStringArrayFileLines(t *testing.T) {
	c, stc, _ := newTestComputer(t)
	host := sys.NewContext(nil, nil)
	defer host.Close()
	c.SetFileStore(host)

	var arr cpu.Mbl
	require.Nil(t, c.STAOPW(&arr))
	require.Nil(t, c.STAWRLText("alpha"))
	require.Nil(t, c.STAWRLText("beta"))
	require.Nil(t, c.STACLO())

	path := filepath.Join(t.TempDir(), "lines.txt")
	hnd := host.GetHandler()
	require.NoError(t, host.OpenForWrite(hnd, path))
	ok, err := c.WRALST(hnd, arr)
	require.Nil(t, err)
	require.Equal(t, cpu.Bol(1), ok)
	require.NoError(t, host.CloseFile(hnd))

	hnd2 := host.GetHandler()
	require.NoError(t, host.OpenForRead(hnd2, path))
	var back cpu.Mbl
	ok, err = c.RDALST(hnd2, &back)
	require.Nil(t, err)
	require.Equal(t, cpu.Bol(1), ok)
	lines, err2 := c.STAOPR(back)
	require.Nil(t, err2)
	require.Equal(t, cpu.Wrd(2), lines)
	first, err3 := c.STARDL(0)
	require.Nil(t, err3)
	require.Equal(t, "alpha", stc.String(first))
	require.Nil(t, c.STACLO())
}

func TestGetArg(t *testing.T) {
	c, stc, _ := newTestComputer(t)
	var arr cpu.Mbl
	require.Nil(t, c.GETARG(&arr, []string{"prog", "--flag", "value"}))
	lines, err := c.STAOPR(arr)
	require.Nil(t, err)
	require.Equal(t, cpu.Wrd(3), lines)
	b, err2 := c.STARDL(1)
	require.Nil(t, err2)
	require.Equal(t, "--flag", stc.String(b))
	require.Nil(t, c.STACLO())
}
