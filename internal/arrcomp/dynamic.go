package arrcomp

import (
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// newArrIndex hands out a metadata slot, recycling records whose creating
// scope is dead before growing the table.
func (c *Computer) newArrIndex() int32 {
	idx := int32(-1)
	for i := range c.metas {
		m := &c.metas[i]
		if !m.used || m.scopeId > c.scopeId || (m.scopeId == c.scopeId && m.scopeNr != c.scopeNr) {
			idx = int32(i)
			break
		}
	}
	if idx == -1 {
		c.metas = append(c.metas, meta{})
		idx = int32(len(c.metas) - 1)
	}
	c.metas[idx] = meta{scopeId: c.scopeId, scopeNr: c.scopeNr, used: true, indexVarMode: cpu.LoclVar}
	return idx
}

func (c *Computer) freeArrIndex(idx int32) {
	c.metas[idx] = meta{}
}

// DynStoreMeta records the metadata of a pre-initialized array block (loader
// path) and returns its arr-index.
func (c *Computer) DynStoreMeta(scopeId int32, scopeNr cpu.Lon, dimNr int32, cellSize cpu.Wrd, dimSize cpu.ArrayIndexes) int32 {
	c.metas = append(c.metas, meta{
		scopeId: scopeId, scopeNr: scopeNr, used: true,
		dimNr: dimNr, cellSize: cellSize, prevSize: dimSize, dimSize: dimSize,
		indexVarMode: cpu.LoclVar,
	})
	return int32(len(c.metas) - 1)
}

// checkAsDestin validates an array block for writing, allocating block and
// metadata when the destination is still null.
func (c *Computer) checkAsDestin(arr *cpu.Mbl, initSize cpu.Wrd) (int32, *excep.Error) {
	if *arr == 0 {
		idx := c.newArrIndex()
		b, err := c.aux.Alloc(c.scopeId, c.scopeNr, initSize, idx)
		if err != nil {
			c.freeArrIndex(idx)
			return 0, excep.Throw(excep.ArrayAllocationError, strconv.FormatInt(int64(initSize), 10))
		}
		*arr = b
		return idx, nil
	}
	if !c.aux.IsValid(*arr) {
		return 0, excep.Throw(excep.InvalidArrayBlock, strconv.FormatInt(int64(*arr), 10))
	}
	idx := c.aux.ArrIndex(*arr)
	if idx < 0 || int(idx) >= len(c.metas) || !c.metas[idx].used {
		return 0, excep.Throw(excep.InvalidArrayBlock, strconv.FormatInt(int64(*arr), 10))
	}
	return idx, nil
}

// checkAsSource validates an array block for reading.
func (c *Computer) checkAsSource(arr cpu.Mbl) (int32, *excep.Error) {
	if arr == 0 || !c.aux.IsValid(arr) {
		return 0, excep.Throw(excep.InvalidArrayBlock, strconv.FormatInt(int64(arr), 10))
	}
	idx := c.aux.ArrIndex(arr)
	if idx < 0 || int(idx) >= len(c.metas) || !c.metas[idx].used {
		return 0, excep.Throw(excep.InvalidArrayBlock, strconv.FormatInt(int64(arr), 10))
	}
	return idx, nil
}

// DynGetCellSize returns the cell size of a dynamic array block.
func (c *Computer) DynGetCellSize(arr cpu.Mbl) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	return c.metas[idx].cellSize, nil
}

// DynGetElements returns the element count of a dynamic array block.
func (c *Computer) DynGetElements(arr cpu.Mbl) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	return elements(c.metas[idx].dimNr, c.metas[idx].dimSize), nil
}

func (c *Computer) dynSize(idx int32) cpu.Wrd {
	return c.metas[idx].cellSize * elements(c.metas[idx].dimNr, c.metas[idx].dimSize)
}

func (c *Computer) dynRealloc(arr cpu.Mbl, size cpu.Wrd) *excep.Error {
	if err := c.aux.Realloc(c.scopeId, c.scopeNr, arr, size); err != nil {
		return excep.Throw(excep.ArrayAllocationError, strconv.FormatInt(int64(size), 10))
	}
	return nil
}

// AD1EM makes *arr an empty 1-dimensional array with the given cell size.
func (c *Computer) AD1EM(arr *cpu.Mbl, cellSize cpu.Wrd) *excep.Error {
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = 1
	m.cellSize = cellSize
	m.dimSize[0] = 0
	m.prevSize[0] = 0
	return nil
}

// AD1DF defines *arr as 1-dimensional, zero elements when it did not exist.
func (c *Computer) AD1DF(arr *cpu.Mbl) *excep.Error {
	existed := *arr != 0
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = 1
	if !existed {
		m.dimSize[0] = 0
		m.prevSize[0] = 0
	}
	return nil
}

// AD1AP appends one element and returns the offset of the new cell, which is
// zero filled.
func (c *Computer) AD1AP(arr cpu.Mbl, cellSize cpu.Wrd) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	m.dimSize[0]++
	m.prevSize[0] = m.dimSize[0]
	m.cellSize = cellSize
	if err := c.dynRealloc(arr, c.dynSize(idx)); err != nil {
		return 0, err
	}
	off := cellSize * (m.dimSize[0] - 1)
	data := c.aux.CharPtr(arr)
	for i := cpu.Wrd(0); i < cellSize; i++ {
		data[off+i] = 0
	}
	return off, nil
}

// AD1IN inserts one element before position value and returns its offset.
func (c *Computer) AD1IN(arr cpu.Mbl, value cpu.Wrd, cellSize cpu.Wrd) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	if value < 0 || value > m.dimSize[0] {
		return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(value), 10), strconv.FormatInt(int64(m.dimSize[0]), 10))
	}
	prev := m.dimSize[0]
	m.dimSize[0]++
	m.prevSize[0] = m.dimSize[0]
	m.cellSize = cellSize
	if err := c.dynRealloc(arr, c.dynSize(idx)); err != nil {
		return 0, err
	}
	data := c.aux.CharPtr(arr)
	if prev-value > 0 {
		copy(data[(value+1)*cellSize:], data[value*cellSize:prev*cellSize])
	}
	off := value * cellSize
	for i := cpu.Wrd(0); i < cellSize; i++ {
		data[off+i] = 0
	}
	return off, nil
}

// AD1DE deletes the element at position value.
func (c *Computer) AD1DE(arr cpu.Mbl, value cpu.Wrd) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	if value < 0 || value > m.dimSize[0]-1 {
		return excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(value), 10), strconv.FormatInt(int64(m.dimSize[0]), 10))
	}
	prev := m.dimSize[0]
	cell := m.cellSize
	data := c.aux.CharPtr(arr)
	if prev-value-1 > 0 {
		copy(data[value*cell:], data[(value+1)*cell:prev*cell])
	}
	m.dimSize[0]--
	m.prevSize[0] = m.dimSize[0]
	return c.dynRealloc(arr, c.dynSize(idx))
}

// AD1OF computes the offset of one element.
func (c *Computer) AD1OF(arr cpu.Mbl, value cpu.Wrd) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	if value < 0 || value > m.dimSize[0]-1 {
		return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(value), 10), strconv.FormatInt(int64(m.dimSize[0]), 10))
	}
	return m.cellSize * value, nil
}

// AD1RS resets the array to zero elements.
func (c *Computer) AD1RS(arr *cpu.Mbl) *excep.Error {
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = 1
	m.dimSize[0] = 0
	m.prevSize[0] = 0
	return nil
}

// AD1RW rewinds the loop state of a dynamic array.
func (c *Computer) AD1RW(arr cpu.Mbl, indexVarAddr cpu.Adr, indexVarMode cpu.DecMode, exitAdr cpu.Adr) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.loopIndex = 0
	m.indexVarAddr = indexVarAddr
	m.indexVarMode = indexVarMode
	m.exitAdr = exitAdr
	return nil
}

// AD1FO returns the offset of the current loop element, or the exit address
// when the loop is exhausted.
func (c *Computer) AD1FO(arr cpu.Mbl) (off cpu.Wrd, exit cpu.Adr, err *excep.Error) {
	idx, e := c.checkAsSource(arr)
	if e != nil {
		return 0, 0, e
	}
	m := &c.metas[idx]
	if m.loopIndex >= m.dimSize[0] {
		return 0, m.exitAdr, nil
	}
	return m.cellSize * m.loopIndex, 0, nil
}

// AD1NX advances the loop and names the user index variable to bump.
func (c *Computer) AD1NX(arr cpu.Mbl) (indexVarAddr cpu.Adr, indexVarMode cpu.DecMode, err *excep.Error) {
	idx, e := c.checkAsSource(arr)
	if e != nil {
		return 0, 0, e
	}
	m := &c.metas[idx]
	m.loopIndex++
	return m.indexVarAddr, m.indexVarMode, nil
}

// ACOPY copies a dynamic array block: geometry and raw cell contents. Inner
// blocks of composite cells are handled by the replication engine on top.
func (c *Computer) ACOPY(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	sIdx, err := c.checkAsSource(src)
	if err != nil {
		return err
	}
	if *des == src {
		return nil
	}
	size := c.dynSize(sIdx)
	sm := c.metas[sIdx]
	dIdx, err := c.checkAsDestin(des, size)
	if err != nil {
		return err
	}
	if err := c.dynRealloc(*des, size); err != nil {
		return err
	}
	dm := &c.metas[dIdx]
	dm.dimNr = sm.dimNr
	dm.cellSize = sm.cellSize
	dm.dimSize = sm.dimSize
	dm.prevSize = sm.dimSize
	copy(c.aux.CharPtr(*des)[:size], c.aux.CharPtr(src)[:size])
	return nil
}

// ADEMP makes *des an empty array of the given shape.
func (c *Computer) ADEMP(des *cpu.Mbl, dimNr cpu.Chr, cellSize cpu.Wrd) *excep.Error {
	if dimNr < 1 || dimNr > cpu.MaxArrayDims {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(dimNr), 10))
	}
	idx, err := c.checkAsDestin(des, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = int32(dimNr)
	m.cellSize = cellSize
	m.dimSize = cpu.ArrayIndexes{}
	m.prevSize = cpu.ArrayIndexes{}
	return nil
}

// ADDEF defines shape and cell size of *arr, keeping existing contents.
func (c *Computer) ADDEF(arr *cpu.Mbl, dimNr cpu.Chr, cellSize cpu.Wrd) *excep.Error {
	if dimNr < 1 || dimNr > cpu.MaxArrayDims {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(dimNr), 10))
	}
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = int32(dimNr)
	m.cellSize = cellSize
	return nil
}

// ADSET records one pending dimension size; ADRSZ applies it.
func (c *Computer) ADSET(arr *cpu.Mbl, dimIndex cpu.Chr, size cpu.Wrd) *excep.Error {
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	if err := c.checkDim(m.dimNr, dimIndex); err != nil {
		return err
	}
	if size < 0 {
		return excep.Throw(excep.InvalidDimensionSize, strconv.FormatInt(int64(size), 10))
	}
	m.dimSize[dimIndex-1] = size
	return nil
}

// ADRSZ applies the sizes set through ADSET. A 1-dimensional array resizes
// in place; with more dimensions the linear positions of elements move, so a
// fresh buffer is filled element-wise and replaces the old one.
func (c *Computer) ADRSZ(arr *cpu.Mbl) *excep.Error {
	idx, err := c.checkAsSource(*arr)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	newSize := c.dynSize(idx)
	if m.dimNr == 1 {
		prev := m.prevSize[0]
		if err := c.dynRealloc(*arr, newSize); err != nil {
			return err
		}
		data := c.aux.CharPtr(*arr)
		for i := prev * m.cellSize; i < newSize; i++ {
			data[i] = 0
		}
		m.prevSize = m.dimSize
		return nil
	}
	old := make([]byte, c.aux.GetSize(*arr))
	copy(old, c.aux.CharPtr(*arr))
	if err := c.dynRealloc(*arr, newSize); err != nil {
		return err
	}
	copyElements(m.dimNr, m.cellSize, old, m.prevSize, c.aux.CharPtr(*arr)[:newSize], m.dimSize)
	m.prevSize = m.dimSize
	return nil
}

// ADGET reads one dimension size.
func (c *Computer) ADGET(arr cpu.Mbl, dimIndex cpu.Chr) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	if err := c.checkDim(m.dimNr, dimIndex); err != nil {
		return 0, err
	}
	return m.dimSize[dimIndex-1], nil
}

// ADRST resets every dimension to zero elements.
func (c *Computer) ADRST(arr *cpu.Mbl) *excep.Error {
	idx, err := c.checkAsDestin(arr, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimSize = cpu.ArrayIndexes{}
	m.prevSize = cpu.ArrayIndexes{}
	return c.dynRealloc(*arr, 0)
}

// ADIDX sets one index value for the next offset computation.
func (c *Computer) ADIDX(arr cpu.Mbl, dimIndex cpu.Chr, value cpu.Wrd) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	if err := c.checkDim(m.dimNr, dimIndex); err != nil {
		return err
	}
	m.dimValue[dimIndex-1] = value
	return nil
}

// ADOFN computes the offset of the indexes set through ADIDX.
func (c *Computer) ADOFN(arr cpu.Mbl) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	for i := int32(0); i < m.dimNr; i++ {
		if m.dimValue[i] < 0 || m.dimValue[i] >= m.dimSize[i] {
			return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
				strconv.FormatInt(int64(m.dimValue[i]), 10), strconv.FormatInt(int64(m.dimSize[i]), 10))
		}
	}
	f := factors(m.dimNr, m.cellSize, m.dimSize)
	return offsetOf(m.dimNr, f, m.dimValue), nil
}

// ADSIZ returns the total element count.
func (c *Computer) ADSIZ(arr cpu.Mbl) (cpu.Wrd, *excep.Error) {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	return elements(c.metas[idx].dimNr, c.metas[idx].dimSize), nil
}
