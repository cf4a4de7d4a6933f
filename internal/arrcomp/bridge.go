package arrcomp

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// newCharArray builds a 1-dimensional char array holding data.
func (c *Computer) newCharArray(des *cpu.Mbl, data []byte) *excep.Error {
	*des = 0
	idx, err := c.checkAsDestin(des, cpu.Wrd(len(data)))
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = 1
	m.cellSize = 1
	m.dimSize[0] = cpu.Wrd(len(data))
	m.prevSize[0] = m.dimSize[0]
	if err := c.dynRealloc(*des, cpu.Wrd(len(data))); err != nil {
		return err
	}
	copy(c.aux.CharPtr(*des), data)
	return nil
}

// TOCA copies length raw bytes into a char array.
func (c *Computer) TOCA(des *cpu.Mbl, data []byte, length cpu.Wrd) *excep.Error {
	if length < 0 || length > cpu.Wrd(len(data)) {
		return excep.Throw(excep.InvalidCallArgument, strconv.FormatInt(int64(length), 10))
	}
	old := *des
	if err := c.newCharArray(des, data[:length]); err != nil {
		*des = old
		return err
	}
	if old != 0 && c.aux.IsValid(old) {
		c.aux.Free(old)
	}
	return nil
}

// STOCA converts a string block into a char array.
func (c *Computer) STOCA(des *cpu.Mbl, s cpu.Mbl) *excep.Error {
	if s == 0 || !c.aux.IsValid(s) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(s), 10))
	}
	return c.TOCA(des, c.stc.Bytes(s), c.aux.GetLen(s))
}

// ATOCA flattens any dynamic array into a char array of its raw bytes.
func (c *Computer) ATOCA(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	idx, err := c.checkAsSource(src)
	if err != nil {
		return err
	}
	size := c.dynSize(idx)
	return c.TOCA(des, c.aux.CharPtr(src)[:size], size)
}

// FRCA copies length bytes out of a char array into a raw buffer.
func (c *Computer) FRCA(dst []byte, arr cpu.Mbl, length cpu.Wrd) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	have := c.dynSize(idx)
	if length < 0 || length > have || length > cpu.Wrd(len(dst)) {
		return excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(length), 10), strconv.FormatInt(int64(have), 10))
	}
	copy(dst[:length], c.aux.CharPtr(arr))
	return nil
}

// SFRCA converts a char array back into a string block.
func (c *Computer) SFRCA(des *cpu.Mbl, arr cpu.Mbl) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	size := c.dynSize(idx)
	return c.stc.SCOPYData(des, c.aux.CharPtr(arr)[:size])
}

// AFRCA fills an existing array block from a char array; the byte sizes must
// agree.
func (c *Computer) AFRCA(des cpu.Mbl, src cpu.Mbl) *excep.Error {
	dIdx, err := c.checkAsSource(des)
	if err != nil {
		return err
	}
	sIdx, err := c.checkAsSource(src)
	if err != nil {
		return err
	}
	dSize, sSize := c.dynSize(dIdx), c.dynSize(sIdx)
	if dSize != sSize {
		return excep.Throw(excep.ArrayWrongDimension,
			strconv.FormatInt(int64(sSize), 10), strconv.FormatInt(int64(dSize), 10))
	}
	copy(c.aux.CharPtr(des)[:dSize], c.aux.CharPtr(src)[:sSize])
	return nil
}

// ADVCP fills a dynamic array from a raw buffer of whole elements.
func (c *Computer) ADVCP(des *cpu.Mbl, data []byte, count cpu.Lon) *excep.Error {
	idx, err := c.checkAsDestin(des, 0)
	if err != nil {
		return err
	}
	m := &c.metas[idx]
	if m.cellSize <= 0 || m.dimNr != 1 {
		return excep.Throw(excep.InvalidArrayDimension, strconv.FormatInt(int64(m.dimNr), 10))
	}
	m.dimSize[0] = cpu.Wrd(count)
	m.prevSize[0] = m.dimSize[0]
	size := c.dynSize(idx)
	if size > cpu.Wrd(len(data)) {
		return excep.Throw(excep.InvalidCallArgument, strconv.FormatInt(int64(count), 10))
	}
	if err := c.dynRealloc(*des, size); err != nil {
		return err
	}
	copy(c.aux.CharPtr(*des)[:size], data)
	return nil
}

// SSPL splits a string by a separator into a 1-dimensional string array.
func (c *Computer) SSPL(des *cpu.Mbl, s, sep cpu.Mbl) *excep.Error {
	if s == 0 || !c.aux.IsValid(s) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(s), 10))
	}
	if sep == 0 || !c.aux.IsValid(sep) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(sep), 10))
	}
	text := c.stc.String(s)
	sepS := c.stc.String(sep)
	var parts []string
	if sepS == "" {
		parts = []string{text}
	} else {
		parts = strings.Split(text, sepS)
	}
	var arr cpu.Mbl
	if err := c.AD1EM(&arr, cpu.MblSize); err != nil {
		return err
	}
	for _, part := range parts {
		off, err := c.AD1AP(arr, cpu.MblSize)
		if err != nil {
			return err
		}
		var elem cpu.Mbl
		if err := c.stc.SCOPYData(&elem, []byte(part)); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(c.aux.CharPtr(arr)[off:], uint32(elem))
	}
	if *des != 0 && c.aux.IsValid(*des) {
		c.aux.Free(*des)
	}
	*des = arr
	return nil
}

// joinBlocks joins string blocks held in raw cell storage.
func (c *Computer) joinBlocks(des *cpu.Mbl, data []byte, count cpu.Wrd, sep cpu.Mbl) *excep.Error {
	sepB := c.stc.Bytes(sep)
	var out []byte
	for i := cpu.Wrd(0); i < count; i++ {
		elem := cpu.Mbl(binary.LittleEndian.Uint32(data[i*cpu.MblSize:]))
		if elem == 0 || !c.aux.IsValid(elem) {
			return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(elem), 10))
		}
		if i > 0 {
			out = append(out, sepB...)
		}
		out = append(out, c.stc.Bytes(elem)...)
	}
	return c.stc.SCOPYData(des, out)
}

// joinChars joins single-byte cells.
func (c *Computer) joinChars(des *cpu.Mbl, data []byte, count cpu.Wrd, sep cpu.Mbl) *excep.Error {
	sepB := c.stc.Bytes(sep)
	var out []byte
	for i := cpu.Wrd(0); i < count; i++ {
		if i > 0 {
			out = append(out, sepB...)
		}
		out = append(out, data[i])
	}
	return c.stc.SCOPYData(des, out)
}

// AD1SJ joins a 1-dimensional string array.
func (c *Computer) AD1SJ(des *cpu.Mbl, arr cpu.Mbl, sep cpu.Mbl) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	if sep == 0 || !c.aux.IsValid(sep) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(sep), 10))
	}
	m := &c.metas[idx]
	return c.joinBlocks(des, c.aux.CharPtr(arr), m.dimSize[0], sep)
}

// AD1CJ joins a 1-dimensional char array.
func (c *Computer) AD1CJ(des *cpu.Mbl, arr cpu.Mbl, sep cpu.Mbl) *excep.Error {
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return err
	}
	if sep == 0 || !c.aux.IsValid(sep) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(sep), 10))
	}
	m := &c.metas[idx]
	return c.joinChars(des, c.aux.CharPtr(arr), m.dimSize[0], sep)
}

// AF1SJ joins a 1-dimensional fixed string array held in raw memory.
func (c *Computer) AF1SJ(des *cpu.Mbl, data []byte, g cpu.Agx, sep cpu.Mbl) *excep.Error {
	idx, err := c.fixDecode(g)
	if err != nil {
		return err
	}
	if sep == 0 || !c.aux.IsValid(sep) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(sep), 10))
	}
	return c.joinBlocks(des, data, c.geoms[idx].dimSize[0], sep)
}

// AF1CJ joins a 1-dimensional fixed char array held in raw memory.
func (c *Computer) AF1CJ(des *cpu.Mbl, data []byte, g cpu.Agx, sep cpu.Mbl) *excep.Error {
	idx, err := c.fixDecode(g)
	if err != nil {
		return err
	}
	if sep == 0 || !c.aux.IsValid(sep) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(sep), 10))
	}
	return c.joinChars(des, data, c.geoms[idx].dimSize[0], sep)
}

// AF2F casts between two fixed arrays: overlapping cells copy, the rest of
// the destination is zeroed.
func (c *Computer) AF2F(dst []byte, dstG cpu.Agx, src []byte, srcG cpu.Agx) *excep.Error {
	dIdx, err := c.fixDecode(dstG)
	if err != nil {
		return err
	}
	sIdx, err := c.fixDecode(srcG)
	if err != nil {
		return err
	}
	dg, sg := &c.geoms[dIdx], &c.geoms[sIdx]
	if dg.dimNr != sg.dimNr {
		return excep.Throw(excep.ArrayWrongDimension,
			strconv.FormatInt(int64(sg.dimNr), 10), strconv.FormatInt(int64(dg.dimNr), 10))
	}
	copyElements(dg.dimNr, dg.cellSize, src, sg.dimSize, dst, dg.dimSize)
	return nil
}

// AF2D casts a fixed array into a dynamic one of the same shape.
func (c *Computer) AF2D(des *cpu.Mbl, src []byte, srcG cpu.Agx) *excep.Error {
	sIdx, err := c.fixDecode(srcG)
	if err != nil {
		return err
	}
	sg := &c.geoms[sIdx]
	size := sg.cellSize * elements(sg.dimNr, sg.dimSize)
	idx, err := c.checkAsDestin(des, size)
	if err != nil {
		return err
	}
	if err := c.dynRealloc(*des, size); err != nil {
		return err
	}
	m := &c.metas[idx]
	m.dimNr = sg.dimNr
	m.cellSize = sg.cellSize
	m.dimSize = sg.dimSize
	m.prevSize = sg.dimSize
	copy(c.aux.CharPtr(*des)[:size], src[:size])
	return nil
}

// AD2F casts a dynamic array into a fixed destination of matching rank.
func (c *Computer) AD2F(dst []byte, dstG cpu.Agx, src cpu.Mbl) *excep.Error {
	sIdx, err := c.checkAsSource(src)
	if err != nil {
		return err
	}
	dIdx, err := c.fixDecode(dstG)
	if err != nil {
		return err
	}
	sm, dg := &c.metas[sIdx], &c.geoms[dIdx]
	if sm.dimNr != dg.dimNr {
		return excep.Throw(excep.ArrayWrongDimension,
			strconv.FormatInt(int64(sm.dimNr), 10), strconv.FormatInt(int64(dg.dimNr), 10))
	}
	copyElements(dg.dimNr, dg.cellSize, c.aux.CharPtr(src), sm.dimSize, dst, dg.dimSize)
	return nil
}

// AD2D casts between dynamic arrays of matching rank: overlapping index
// ranges copy, the rest of the destination is zeroed. A null destination
// becomes a plain copy.
func (c *Computer) AD2D(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if *des == 0 {
		return c.ACOPY(des, src)
	}
	sIdx, err := c.checkAsSource(src)
	if err != nil {
		return err
	}
	dIdx, err := c.checkAsSource(*des)
	if err != nil {
		return err
	}
	sm, dm := &c.metas[sIdx], &c.metas[dIdx]
	if sm.dimNr != dm.dimNr {
		return excep.Throw(excep.ArrayWrongDimension,
			strconv.FormatInt(int64(sm.dimNr), 10), strconv.FormatInt(int64(dm.dimNr), 10))
	}
	size := c.dynSize(dIdx)
	if err := c.dynRealloc(*des, size); err != nil {
		return err
	}
	copyElements(dm.dimNr, dm.cellSize, c.aux.CharPtr(src), sm.dimSize, c.aux.CharPtr(*des)[:size], dm.dimSize)
	dm.prevSize = dm.dimSize
	return nil
}

// GETARG materializes the program arguments as a string array.
func (c *Computer) GETARG(des *cpu.Mbl, args []string) *excep.Error {
	var arr cpu.Mbl
	if err := c.AD1EM(&arr, cpu.MblSize); err != nil {
		return err
	}
	for _, a := range args {
		off, err := c.AD1AP(arr, cpu.MblSize)
		if err != nil {
			return err
		}
		var elem cpu.Mbl
		if err := c.stc.SCOPYData(&elem, []byte(a)); err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(c.aux.CharPtr(arr)[off:], uint32(elem))
	}
	*des = arr
	return nil
}
