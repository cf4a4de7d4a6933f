package vrm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// region names one of the three addressable memories.
type region int8

const (
	regGlob region = iota
	regStack
	regBlock
)

// loc is one resolved memory location: region plus byte offset, with the
// block number for aux memory. Locations are buffer relative, never host
// pointers, so stack reallocation cannot invalidate them.
type loc struct {
	reg region
	blk cpu.Mbl
	off cpu.Wrd
}

// view returns a bounds-checked byte window over a location. The window is
// only valid until the stack next grows.
func (m *Machine) view(l loc, size cpu.Wrd) ([]byte, *excep.Error) {
	var buf []byte
	var name string
	switch l.reg {
	case regGlob:
		buf, name = m.glob, "global memory"
	case regStack:
		buf, name = m.stack, "stack memory"
	case regBlock:
		if !m.aux.IsValid(l.blk) {
			return nil, m.throwf(excep.InvalidMemoryBlock, strconv.FormatInt(int64(l.blk), 10))
		}
		buf, name = m.aux.CharPtr(l.blk), fmt.Sprintf("block %d", l.blk)
	}
	if l.off < 0 || l.off+size > cpu.Wrd(len(buf)) {
		return nil, m.throwf(excep.InvalidMemoryAddress, name,
			fmt.Sprintf("%08Xh", uint64(l.off+size-1)), fmt.Sprintf("%08Xh", len(buf)))
	}
	return buf[l.off : l.off+size], nil
}

// deref resolves a reference into a location.
func (m *Machine) deref(r cpu.Ref) (loc, *excep.Error) {
	switch {
	case r.IsNull():
		return loc{}, m.throwf(excep.NullReferenceIndirection)
	case r.IsGlobal():
		return loc{reg: regGlob, off: r.Offset}, nil
	case r.IsBlock():
		return loc{reg: regBlock, blk: r.Block(), off: r.Offset}, nil
	default:
		return loc{reg: regStack, off: r.Offset}, nil
	}
}

// locForMode resolves an encoded offset under a decode mode.
func (m *Machine) locForMode(off cpu.Wrd, mode cpu.DecMode) (loc, *excep.Error) {
	switch mode {
	case cpu.GlobVar:
		return loc{reg: regGlob, off: off}, nil
	case cpu.LoclInd:
		r, err := m.ldRef(loc{reg: regStack, off: cpu.Wrd(m.bp) + off})
		if err != nil {
			return loc{}, err
		}
		return m.deref(r)
	case cpu.GlobInd:
		r, err := m.ldRef(loc{reg: regGlob, off: off})
		if err != nil {
			return loc{}, err
		}
		return m.deref(r)
	default:
		return loc{reg: regStack, off: cpu.Wrd(m.bp) + off}, nil
	}
}

// argLoc resolves address argument i of the running instruction under its
// current decode mode.
func (m *Machine) argLoc(it *instr, i int) (loc, *excep.Error) {
	a := &it.args[i]
	mode := cpu.LoclVar
	if i < len(m.modes) {
		mode = m.modes[i]
	}
	return m.locForMode(a.off, mode)
}

// argAsRef builds the reference a REFOF/REFPU-style operand takes from
// argument i: the address of the variable under direct modes, the stored
// reference itself under indirection modes.
func (m *Machine) argAsRef(it *instr, i int) (cpu.Ref, *excep.Error) {
	a := &it.args[i]
	mode := cpu.LoclVar
	if i < len(m.modes) {
		mode = m.modes[i]
	}
	switch mode {
	case cpu.GlobVar:
		return cpu.Ref{Id: cpu.GlobalScopeID, Offset: a.off}, nil
	case cpu.LoclInd:
		return m.ldRef(loc{reg: regStack, off: cpu.Wrd(m.bp) + a.off})
	case cpu.GlobInd:
		return m.ldRef(loc{reg: regGlob, off: a.off})
	default:
		return cpu.Ref{Id: cpu.Mbl(m.scopeId), Offset: cpu.Wrd(m.bp) + a.off}, nil
	}
}

// Typed loads and stores over locations.

func (m *Machine) ld1(l loc) (int8, *excep.Error) {
	b, err := m.view(l, 1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (m *Machine) st1(l loc, v int8) *excep.Error {
	b, err := m.view(l, 1)
	if err != nil {
		return err
	}
	b[0] = byte(v)
	return nil
}

func (m *Machine) ld2(l loc) (int16, *excep.Error) {
	b, err := m.view(l, 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

func (m *Machine) st2(l loc, v int16) *excep.Error {
	b, err := m.view(l, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, uint16(v))
	return nil
}

func (m *Machine) ld4(l loc) (int32, *excep.Error) {
	b, err := m.view(l, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (m *Machine) st4(l loc, v int32) *excep.Error {
	b, err := m.view(l, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
	return nil
}

func (m *Machine) ld8(l loc) (int64, *excep.Error) {
	b, err := m.view(l, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (m *Machine) st8(l loc, v int64) *excep.Error {
	b, err := m.view(l, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, uint64(v))
	return nil
}

func (m *Machine) ldFlo(l loc) (cpu.Flo, *excep.Error) {
	v, err := m.ld8(l)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

func (m *Machine) stFlo(l loc, v cpu.Flo) *excep.Error {
	return m.st8(l, int64(math.Float64bits(v)))
}

func (m *Machine) ldMbl(l loc) (cpu.Mbl, *excep.Error) {
	v, err := m.ld4(l)
	return cpu.Mbl(v), err
}

func (m *Machine) stMbl(l loc, v cpu.Mbl) *excep.Error {
	return m.st4(l, int32(v))
}

func (m *Machine) ldWrd(l loc) (cpu.Wrd, *excep.Error) {
	v, err := m.ld8(l)
	return cpu.Wrd(v), err
}

func (m *Machine) stWrd(l loc, v cpu.Wrd) *excep.Error {
	return m.st8(l, int64(v))
}

func (m *Machine) ldRef(l loc) (cpu.Ref, *excep.Error) {
	b, err := m.view(l, cpu.RefSize)
	if err != nil {
		return cpu.Ref{}, err
	}
	return cpu.Ref{
		Id:     cpu.Mbl(binary.LittleEndian.Uint32(b)),
		Offset: cpu.Wrd(binary.LittleEndian.Uint64(b[8:])),
	}, nil
}

func (m *Machine) stRef(l loc, r cpu.Ref) *excep.Error {
	b, err := m.view(l, cpu.RefSize)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, uint32(r.Id))
	binary.LittleEndian.PutUint32(b[4:], 0)
	binary.LittleEndian.PutUint64(b[8:], uint64(r.Offset))
	return nil
}

// ldIntW and stIntW give width-generic access for the arithmetic families:
// values travel sign extended to 64 bits and store truncated.
func (m *Machine) ldIntW(l loc, w byte) (int64, *excep.Error) {
	switch w {
	case 'b', 'c':
		v, err := m.ld1(l)
		return int64(v), err
	case 'w':
		v, err := m.ld2(l)
		return int64(v), err
	case 'i':
		v, err := m.ld4(l)
		return int64(v), err
	default:
		return m.ld8(l)
	}
}

func (m *Machine) stIntW(l loc, w byte, v int64) *excep.Error {
	switch w {
	case 'b', 'c':
		return m.st1(l, int8(v))
	case 'w':
		return m.st2(l, int16(v))
	case 'i':
		return m.st4(l, int32(v))
	default:
		return m.st8(l, v)
	}
}
