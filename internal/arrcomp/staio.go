package arrcomp

import (
	"encoding/binary"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// string[] iterator. Only one operation can be open at a time; the state
// machine is Closed -> OpenRead -> Closed or Closed -> OpenWrite -> Closed.

// STAOPR opens a string array for sequential reads and returns its line
// count.
func (c *Computer) STAOPR(arr cpu.Mbl) (cpu.Wrd, *excep.Error) {
	if c.staState != staClosed {
		return 0, excep.Throw(excep.StaOperationAlreadyOpen)
	}
	idx, err := c.checkAsSource(arr)
	if err != nil {
		return 0, err
	}
	c.staState = staOpenRead
	c.staBlock = arr
	return c.metas[idx].dimSize[0], nil
}

// STARDL reads one line of the open string array.
func (c *Computer) STARDL(index cpu.Wrd) (cpu.Mbl, *excep.Error) {
	if c.staState != staOpenRead {
		return 0, excep.Throw(excep.StaOperationNotOpen)
	}
	idx, err := c.checkAsSource(c.staBlock)
	if err != nil {
		return 0, err
	}
	m := &c.metas[idx]
	if index < 0 || index >= m.dimSize[0] {
		return 0, excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(index), 10), strconv.FormatInt(int64(m.dimSize[0]), 10))
	}
	return cpu.Mbl(binary.LittleEndian.Uint32(c.aux.CharPtr(c.staBlock)[index*cpu.MblSize:])), nil
}

// STAOPW opens a fresh string array for sequential writes.
func (c *Computer) STAOPW(arr *cpu.Mbl) *excep.Error {
	if c.staState != staClosed {
		return excep.Throw(excep.StaOperationAlreadyOpen)
	}
	*arr = 0
	if err := c.AD1EM(arr, cpu.MblSize); err != nil {
		return err
	}
	c.staState = staOpenWrite
	c.staBlock = *arr
	return nil
}

// STAWRL appends one string block to the open string array.
func (c *Computer) STAWRL(s cpu.Mbl) *excep.Error {
	if c.staState != staOpenWrite {
		return excep.Throw(excep.StaOperationNotOpen)
	}
	if s == 0 || !c.aux.IsValid(s) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(s), 10))
	}
	off, err := c.AD1AP(c.staBlock, cpu.MblSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(c.aux.CharPtr(c.staBlock)[off:], uint32(s))
	return nil
}

// STAWRLText appends one host string as a fresh block.
func (c *Computer) STAWRLText(line string) *excep.Error {
	var s cpu.Mbl
	if err := c.stc.SCOPYData(&s, []byte(line)); err != nil {
		return err
	}
	return c.STAWRL(s)
}

// STACLO closes the open operation.
func (c *Computer) STACLO() *excep.Error {
	if c.staState == staClosed {
		return excep.Throw(excep.StaOperationAlreadyClosed)
	}
	c.staState = staClosed
	c.staBlock = 0
	return nil
}

// Char-array file hooks. Failures of the host side surface as a false
// return code, not an exception, so programs can probe.

// RDCH reads length bytes from a file handler into a char array.
func (c *Computer) RDCH(hnd cpu.Int, des *cpu.Mbl, length cpu.Lon) (cpu.Bol, *excep.Error) {
	data, err := c.files.ReadBytes(hnd, length)
	if err != nil {
		return 0, nil
	}
	if e := c.TOCA(des, data, cpu.Wrd(len(data))); e != nil {
		return 0, e
	}
	return 1, nil
}

// WRCH writes length bytes of a char array to a file handler.
func (c *Computer) WRCH(hnd cpu.Int, arr cpu.Mbl, length cpu.Lon) (cpu.Bol, *excep.Error) {
	idx, e := c.checkAsSource(arr)
	if e != nil {
		return 0, e
	}
	size := c.dynSize(idx)
	if cpu.Wrd(length) > size {
		length = cpu.Lon(size)
	}
	if err := c.files.WriteBytes(hnd, c.aux.CharPtr(arr)[:length]); err != nil {
		return 0, nil
	}
	return 1, nil
}

// RDALCH reads a whole file into a char array.
func (c *Computer) RDALCH(hnd cpu.Int, des *cpu.Mbl) (cpu.Bol, *excep.Error) {
	data, err := c.files.ReadAllBytes(hnd)
	if err != nil {
		return 0, nil
	}
	if e := c.TOCA(des, data, cpu.Wrd(len(data))); e != nil {
		return 0, e
	}
	return 1, nil
}

// WRALCH writes a whole char array to a file handler.
func (c *Computer) WRALCH(hnd cpu.Int, arr cpu.Mbl) (cpu.Bol, *excep.Error) {
	idx, e := c.checkAsSource(arr)
	if e != nil {
		return 0, e
	}
	if err := c.files.WriteBytes(hnd, c.aux.CharPtr(arr)[:c.dynSize(idx)]); err != nil {
		return 0, nil
	}
	return 1, nil
}

// RDALST reads a whole file as lines into a string array.
func (c *Computer) RDALST(hnd cpu.Int, des *cpu.Mbl) (cpu.Bol, *excep.Error) {
	lines, err := c.files.ReadAllLines(hnd)
	if err != nil {
		return 0, nil
	}
	var arr cpu.Mbl
	if e := c.AD1EM(&arr, cpu.MblSize); e != nil {
		return 0, e
	}
	for _, line := range lines {
		off, e := c.AD1AP(arr, cpu.MblSize)
		if e != nil {
			return 0, e
		}
		var s cpu.Mbl
		if e := c.stc.SCOPYData(&s, []byte(line)); e != nil {
			return 0, e
		}
		binary.LittleEndian.PutUint32(c.aux.CharPtr(arr)[off:], uint32(s))
	}
	*des = arr
	return 1, nil
}

// WRALST writes a string array as lines to a file handler.
func (c *Computer) WRALST(hnd cpu.Int, arr cpu.Mbl) (cpu.Bol, *excep.Error) {
	idx, e := c.checkAsSource(arr)
	if e != nil {
		return 0, e
	}
	m := &c.metas[idx]
	lines := make([]string, 0, m.dimSize[0])
	data := c.aux.CharPtr(arr)
	for i := cpu.Wrd(0); i < m.dimSize[0]; i++ {
		s := cpu.Mbl(binary.LittleEndian.Uint32(data[i*cpu.MblSize:]))
		if s == 0 || !c.aux.IsValid(s) {
			return 0, excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(s), 10))
		}
		lines = append(lines, c.stc.String(s))
	}
	if err := c.files.WriteAllLines(hnd, lines); err != nil {
		return 0, nil
	}
	return 1, nil
}
