// Package arrcomp implements the array computer: fixed-geometry arrays laid
// out in global or stack memory, and dynamic arrays backed by aux memory
// blocks. Both share the same dimension convention: up to five dimensions,
// row-major, offset(d1..dn) = sum(di * cellSize * prod of the later
// dimension sizes).
package arrcomp

import (
	"strconv"

	"github.com/dungeonspells/dsvm/internal/auxmem"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/strcomp"
)

// geometry is one fixed-array shape plus its loop state.
type geometry struct {
	used         bool
	dimNr        int32
	cellSize     cpu.Wrd
	dimSize      cpu.ArrayIndexes
	dimValue     cpu.ArrayIndexes
	loopIndex    cpu.Wrd
	indexVarAddr cpu.Adr
	indexVarMode cpu.DecMode
	exitAdr      cpu.Adr
}

// meta is the metadata record of one live dynamic array, keyed by the aux
// block arr-index.
type meta struct {
	scopeId      int32
	scopeNr      cpu.Lon
	used         bool
	dimNr        int32
	cellSize     cpu.Wrd
	prevSize     cpu.ArrayIndexes
	dimSize      cpu.ArrayIndexes
	dimValue     cpu.ArrayIndexes
	loopIndex    cpu.Wrd
	indexVarAddr cpu.Adr
	indexVarMode cpu.DecMode
	exitAdr      cpu.Adr
}

type staMode int

const (
	staClosed staMode = iota
	staOpenRead
	staOpenWrite
)

// FileStore is the slice of the host facade the char-array file hooks use.
type FileStore interface {
	ReadBytes(hnd cpu.Int, length cpu.Lon) ([]byte, error)
	WriteBytes(hnd cpu.Int, data []byte) error
	ReadAllBytes(hnd cpu.Int) ([]byte, error)
	ReadAllLines(hnd cpu.Int) ([]string, error)
	WriteAllLines(hnd cpu.Int, lines []string) error
}

// Computer is the array engine of one machine instance.
type Computer struct {
	geoms []geometry
	abp   cpu.Agx

	scopeId int32
	scopeNr cpu.Lon
	aux     *auxmem.Manager
	stc     *strcomp.Computer
	metas   []meta
	files   FileStore

	staState staMode
	staBlock cpu.Mbl
}

// Init binds the computer to aux memory and the string computer.
func Init(aux *auxmem.Manager, stc *strcomp.Computer) *Computer {
	return &Computer{aux: aux, stc: stc}
}

// SetFileStore wires the host file table for the char-array file hooks.
func (c *Computer) SetFileStore(fs FileStore) { c.files = fs }

// DynSetScope follows the machine scope.
func (c *Computer) DynSetScope(scopeId int32, scopeNr cpu.Lon) {
	c.scopeId = scopeId
	c.scopeNr = scopeNr
}

// FixSetBP sets the geometry base pointer (saved and restored around calls).
func (c *Computer) FixSetBP(bp cpu.Agx) { c.abp = bp }

// FixGetBP returns the geometry base pointer.
func (c *Computer) FixGetBP() cpu.Agx { return c.abp }

// fixDecode resolves a geometry index: absolute when the high bit is set,
// base-pointer relative otherwise.
func (c *Computer) fixDecode(g cpu.Agx) (int, *excep.Error) {
	var idx int
	if uint16(g)&cpu.ArrGeomMask80 != 0 {
		idx = int(uint16(g) & cpu.ArrGeomMask7F)
	} else {
		idx = int(c.abp) + int(g)
	}
	if idx < 0 || idx >= len(c.geoms) || !c.geoms[idx].used {
		return 0, excep.Throw(excep.ArrayGeometryInvalid, strconv.Itoa(idx))
	}
	return idx, nil
}

// fixEnsure grows the geometry table up to and including idx.
func (c *Computer) fixEnsure(idx int) {
	for len(c.geoms) <= idx {
		c.geoms = append(c.geoms, geometry{})
	}
}

// FixStoreGeom stores one geometry at the absolute index at (loader path),
// growing the table as needed.
func (c *Computer) FixStoreGeom(at cpu.Agx, dimNr int32, cellSize cpu.Wrd, dimSize cpu.ArrayIndexes) *excep.Error {
	if dimNr < 1 || dimNr > cpu.MaxArrayDims {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(dimNr), 10))
	}
	idx := int(uint16(at) & cpu.ArrGeomMask7F)
	c.fixEnsure(idx)
	c.geoms[idx] = geometry{used: true, dimNr: dimNr, cellSize: cellSize, dimSize: dimSize, indexVarMode: cpu.LoclVar}
	return nil
}

// FixGeomCount returns the geometry table size.
func (c *Computer) FixGeomCount() int { return len(c.geoms) }

func elements(dimNr int32, dims cpu.ArrayIndexes) cpu.Wrd {
	n := cpu.Wrd(1)
	for i := int32(0); i < dimNr; i++ {
		n *= dims[i]
	}
	return n
}

// factors fills the per-dimension offset multipliers.
func factors(dimNr int32, cellSize cpu.Wrd, dims cpu.ArrayIndexes) (f cpu.ArrayIndexes) {
	for i := dimNr - 1; i >= 0; i-- {
		if i == dimNr-1 {
			f[i] = cellSize
		} else {
			f[i] = f[i+1] * dims[i+1]
		}
	}
	return
}

func offsetOf(dimNr int32, f, index cpu.ArrayIndexes) cpu.Wrd {
	var off cpu.Wrd
	for i := int32(0); i < dimNr; i++ {
		off += index[i] * f[i]
	}
	return off
}

// copyElements walks the destination index space, copying cells present in
// the source and zeroing the rest. Used by resize and the casting family.
func copyElements(dimNr int32, cellSize cpu.Wrd, src []byte, srcDims cpu.ArrayIndexes, dst []byte, dstDims cpu.ArrayIndexes) {
	sf := factors(dimNr, cellSize, srcDims)
	df := factors(dimNr, cellSize, dstDims)
	var index cpu.ArrayIndexes
	if elements(dimNr, dstDims) == 0 {
		return
	}
	for {
		dOff := offsetOf(dimNr, df, index)
		inSrc := true
		for i := int32(0); i < dimNr; i++ {
			if index[i] >= srcDims[i] {
				inSrc = false
				break
			}
		}
		if inSrc {
			copy(dst[dOff:dOff+cellSize], src[offsetOf(dimNr, sf, index):])
		} else {
			for i := cpu.Wrd(0); i < cellSize; i++ {
				dst[dOff+i] = 0
			}
		}
		// Odometer step over the destination dimensions.
		d := dimNr - 1
		for d >= 0 {
			index[d]++
			if index[d] < dstDims[d] {
				break
			}
			index[d] = 0
			d--
		}
		if d < 0 {
			return
		}
	}
}

// FixGetCellSize returns the cell size of a geometry.
func (c *Computer) FixGetCellSize(g cpu.Agx) (cpu.Wrd, *excep.Error) {
	idx, err := c.fixDecode(g)
	if err != nil {
		return 0, err
	}
	return c.geoms[idx].cellSize, nil
}

// FixGetElements returns the element count of a geometry.
func (c *Computer) FixGetElements(g cpu.Agx) (cpu.Wrd, *excep.Error) {
	idx, err := c.fixDecode(g)
	if err != nil {
		return 0, err
	}
	return elements(c.geoms[idx].dimNr, c.geoms[idx].dimSize), nil
}

// AFDEF defines dimension count and cell size of a geometry.
func (c *Computer) AFDEF(g cpu.Agx, dimNr cpu.Chr, cellSize cpu.Wrd) *excep.Error {
	if dimNr < 1 || dimNr > cpu.MaxArrayDims {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(dimNr), 10))
	}
	var idx int
	if uint16(g)&cpu.ArrGeomMask80 != 0 {
		idx = int(uint16(g) & cpu.ArrGeomMask7F)
	} else {
		idx = int(c.abp) + int(g)
	}
	c.fixEnsure(idx)
	c.geoms[idx] = geometry{used: true, dimNr: int32(dimNr), cellSize: cellSize, indexVarMode: cpu.LoclVar}
	return nil
}

func (c *Computer) checkDim(dimNr int32, dimIndex cpu.Chr) *excep.Error {
	if int32(dimIndex) < 1 || int32(dimIndex) > dimNr {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(dimIndex), 10))
	}
	return nil
}

// AFSSZ sets one dimension size.
func (c *Computer) AFSSZ(g cpu.Agx, dimIndex cpu.Chr, size cpu.Wrd) *excep.Error {
	idx, err := c.fixDecode(g)
	if err != nil {
		return err
	}
	if err := c.checkDim(c.geoms[idx].dimNr, dimIndex); err != nil {
		return err
	}
	if size < 0 {
		return excep.Throw(excep.InvalidDimensionSize, strconv.FormatInt(int64(size), 10))
	}
	c.geoms[idx].dimSize[dimIndex-1] = size
	return nil
}

// AFGET reads one dimension size.
func (c *Computer) AFGET(g cpu.Agx, dimIndex cpu.Chr) (cpu.Wrd, *excep.Error) {
	idx, err := c.fixDecode(g)
	if err != nil {
		return 0, err
	}
	if err := c.checkDim(c.geoms[idx].dimNr, dimIndex); err != nil {
		return 0, err
	}
	return c.geoms[idx].dimSize[dimIndex-1], nil
}

// AFIDX sets one index value for the next offset computation.
func (c *Computer) AFIDX(g cpu.Agx, dimIndex cpu.Chr, value cpu.Wrd) *excep.Error {
	idx, err := c.fixDecode(g)
	if err != nil {
		return err
	}
	if err := c.checkDim(c.geoms[idx].dimNr, dimIndex); err != nil {
		return err
	}
	c.geoms[idx].dimValue[dimIndex-1] = value
	return nil
}

// AFOFN computes the offset of the indexes set through AFIDX.
func (c *Computer) AFOFN(g cpu.Agx) (cpu.Wrd, *excep.Error) {
	idx, err := c.fixDecode(g)
	if err != nil {
		return 0, err
	}
	ge := &c.geoms[idx]
	for i := int32(0); i < ge.dimNr; i++ {
		if ge.dimValue[i] < 0 || ge.dimValue[i] >= ge.dimSize[i] {
			return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
				strconv.FormatInt(int64(ge.dimValue[i]), 10), strconv.FormatInt(int64(ge.dimSize[i]), 10))
		}
	}
	f := factors(ge.dimNr, ge.cellSize, ge.dimSize)
	return offsetOf(ge.dimNr, f, ge.dimValue), nil
}

// AF1OF computes the offset of one index into a 1-dimensional geometry.
func (c *Computer) AF1OF(g cpu.Agx, value cpu.Wrd) (cpu.Wrd, *excep.Error) {
	idx, err := c.fixDecode(g)
	if err != nil {
		return 0, err
	}
	ge := &c.geoms[idx]
	if value < 0 || value >= ge.dimSize[0] {
		return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(value), 10), strconv.FormatInt(int64(ge.dimSize[0]), 10))
	}
	return ge.cellSize * value, nil
}

// AF1RW rewinds the loop state of a 1-dimensional geometry.
func (c *Computer) AF1RW(g cpu.Agx, indexVarAddr cpu.Adr, indexVarMode cpu.DecMode, exitAdr cpu.Adr) *excep.Error {
	idx, err := c.fixDecode(g)
	if err != nil {
		return err
	}
	ge := &c.geoms[idx]
	ge.loopIndex = 0
	ge.indexVarAddr = indexVarAddr
	ge.indexVarMode = indexVarMode
	ge.exitAdr = exitAdr
	return nil
}

// AF1FO returns the offset of the current loop element, or the exit address
// when the loop is exhausted.
func (c *Computer) AF1FO(g cpu.Agx) (off cpu.Wrd, exit cpu.Adr, err *excep.Error) {
	idx, e := c.fixDecode(g)
	if e != nil {
		return 0, 0, e
	}
	ge := &c.geoms[idx]
	if ge.loopIndex >= ge.dimSize[0] {
		return 0, ge.exitAdr, nil
	}
	return ge.cellSize * ge.loopIndex, 0, nil
}

// AF1NX advances the loop and names the user index variable to bump.
func (c *Computer) AF1NX(g cpu.Agx) (indexVarAddr cpu.Adr, indexVarMode cpu.DecMode, err *excep.Error) {
	idx, e := c.fixDecode(g)
	if e != nil {
		return 0, 0, e
	}
	ge := &c.geoms[idx]
	ge.loopIndex++
	return ge.indexVarAddr, ge.indexVarMode, nil
}
