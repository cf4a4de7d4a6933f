// Package binary reads and writes the Dungeon Spells executable format:
// the fixed binary header followed by marked sections, strictly in order
// GLOB, CODE, FARR, DARR, BLCK, DLCA and the debug symbol tables.
package binary

import (
	"bytes"
	enc "encoding/binary"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/vrm"
)

var log = logrus.WithField("component", "loader")

// Record sizes of the opaque debug tables the runtime skips without keeping
// or interpreting them.
const (
	dbgTypSize = 83
	dbgVarSize = 87
	dbgFldSize = 77
	dbgParSize = 74
)

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, errors.Errorf("truncated image: need %d bytes at offset %d, have %d", n, r.pos, len(r.buf)-r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) mark(want string) error {
	b, err := r.take(4)
	if err != nil {
		return errors.Wrapf(err, "section mark %s", want)
	}
	if string(b) != want {
		return errors.Errorf("corrupted image: expected mark %s at offset %d, found %q", want, r.pos-4, b)
	}
	return nil
}

func (r *reader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) i16() (int16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return int16(enc.LittleEndian.Uint16(b)), nil
}

func (r *reader) i32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(enc.LittleEndian.Uint32(b)), nil
}

func (r *reader) i64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(enc.LittleEndian.Uint64(b)), nil
}

func (r *reader) fixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// DecodeFile loads an executable from disk.
func DecodeFile(path string) (*vrm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read executable %s", path)
	}
	return Decode(data)
}

// Decode parses an executable image held in memory (file or ROM buffer).
func Decode(data []byte) (*vrm.Program, error) {
	r := &reader{buf: data}
	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}
	prog := &vrm.Program{Hdr: *hdr}

	if err := r.mark(vrm.FileMarkGlob); err != nil {
		return nil, err
	}
	glob, err := r.take(int(hdr.GlobBufferNr))
	if err != nil {
		return nil, errors.Wrap(err, "global buffer")
	}
	prog.Glob = append([]byte(nil), glob...)

	if err := r.mark(vrm.FileMarkCode); err != nil {
		return nil, err
	}
	code, err := r.take(int(hdr.CodeBufferNr))
	if err != nil {
		return nil, errors.Wrap(err, "code buffer")
	}
	prog.Code = append([]byte(nil), code...)

	for i := cpu.Lon(0); i < hdr.ArrFixDefNr; i++ {
		if err := r.mark(vrm.FileMarkFArr); err != nil {
			return nil, err
		}
		fd, err := decodeFixDef(r)
		if err != nil {
			return nil, errors.Wrapf(err, "fixed array definition %d", i)
		}
		prog.ArrFix = append(prog.ArrFix, fd)
	}
	for i := cpu.Lon(0); i < hdr.ArrDynDefNr; i++ {
		if err := r.mark(vrm.FileMarkDArr); err != nil {
			return nil, err
		}
		dd, err := decodeDynDef(r)
		if err != nil {
			return nil, errors.Wrapf(err, "dynamic array definition %d", i)
		}
		prog.ArrDyn = append(prog.ArrDyn, dd)
	}
	for i := cpu.Lon(0); i < hdr.BlockNr; i++ {
		if err := r.mark(vrm.FileMarkBlck); err != nil {
			return nil, err
		}
		bd, err := decodeBlock(r)
		if err != nil {
			return nil, errors.Wrapf(err, "block %d", i)
		}
		prog.Blocks = append(prog.Blocks, bd)
	}
	for i := cpu.Lon(0); i < hdr.DlCallNr; i++ {
		if err := r.mark(vrm.FileMarkDlCa); err != nil {
			return nil, err
		}
		lib, err := r.fixedString(vrm.MaxIdLen + 1)
		if err != nil {
			return nil, err
		}
		fn, err := r.fixedString(vrm.MaxIdLen + 1)
		if err != nil {
			return nil, err
		}
		prog.DlCalls = append(prog.DlCalls, vrm.DlCallDef{Library: lib, Function: fn})
	}
	if hdr.DebugSymbols {
		dbg, err := decodeDebug(r, hdr)
		if err != nil {
			return nil, err
		}
		prog.Dbg = dbg
	}
	log.Debugf("loaded %s: %d code bytes, %d globals, %d blocks, %d geometries",
		hdr.FileMark, hdr.CodeBufferNr, hdr.GlobBufferNr, hdr.BlockNr, hdr.ArrFixDefNr)
	return prog, nil
}

func decodeHeader(r *reader) (*vrm.BinaryHeader, error) {
	var h vrm.BinaryHeader
	mark, err := r.fixedString(4)
	if err != nil {
		return nil, errors.Wrap(err, "file mark")
	}
	if mark != vrm.FileMarkExec && mark != vrm.FileMarkLibr {
		return nil, errors.Errorf("not a Dungeon Spells binary (mark %q)", mark)
	}
	h.FileMark = mark
	if v, err := r.i32(); err != nil {
		return nil, err
	} else if v != vrm.BinaryFormat {
		return nil, errors.Errorf("unsupported binary format %d", v)
	} else {
		h.BinFormat = v
	}
	arch, err := r.u8()
	if err != nil {
		return nil, err
	}
	if int(arch) != cpu.Architecture {
		return nil, errors.Errorf("architecture missmatch: binary is %d-bit, runtime is %d-bit", arch, cpu.Architecture)
	}
	h.Architecture = cpu.Chr(arch)
	if h.SysVersion, err = r.fixedString(vrm.VersionMaxLen + 1); err != nil {
		return nil, err
	}
	if h.SysBuildDate, err = r.fixedString(11); err != nil {
		return nil, err
	}
	if h.SysBuildTime, err = r.fixedString(9); err != nil {
		return nil, err
	}
	b, err := r.u8()
	if err != nil {
		return nil, err
	}
	h.IsBinLibrary = b != 0
	if b, err = r.u8(); err != nil {
		return nil, err
	}
	h.DebugSymbols = b != 0
	for _, dst := range []*cpu.Lon{
		&h.GlobBufferNr, &h.BlockNr, &h.ArrFixDefNr, &h.ArrDynDefNr, &h.CodeBufferNr, &h.DlCallNr,
		&h.MemUnitSize, &h.MemUnits, &h.ChunkMemUnits,
	} {
		if *dst, err = r.i64(); err != nil {
			return nil, err
		}
	}
	if h.BlockMax, err = r.i32(); err != nil {
		return nil, err
	}
	for _, dst := range []*cpu.Shr{&h.LibMajorVers, &h.LibMinorVers, &h.LibRevisionNr} {
		if *dst, err = r.i16(); err != nil {
			return nil, err
		}
	}
	if h.DependencyNr, err = r.i32(); err != nil {
		return nil, err
	}
	if h.UndefRefNr, err = r.i32(); err != nil {
		return nil, err
	}
	if h.RelocTableNr, err = r.i64(); err != nil {
		return nil, err
	}
	for _, dst := range []*cpu.Int{
		&h.DbgSymModNr, &h.DbgSymTypNr, &h.DbgSymVarNr, &h.DbgSymFldNr, &h.DbgSymFunNr, &h.DbgSymParNr, &h.DbgSymLinNr,
	} {
		if *dst, err = r.i32(); err != nil {
			return nil, err
		}
	}
	if h.SuperInitAdr, err = r.i64(); err != nil {
		return nil, err
	}
	if h.GlobBufferNr < 0 || h.CodeBufferNr < 0 || h.BlockNr < 0 || h.MemUnitSize <= 0 ||
		h.MemUnits <= 0 || h.ChunkMemUnits <= 0 || h.BlockMax <= 0 {
		return nil, errors.New("corrupted header: negative or zero section sizes")
	}
	return &h, nil
}

func decodeDims(r *reader) (cpu.ArrayIndexes, error) {
	var dims cpu.ArrayIndexes
	for i := range dims {
		v, err := r.i64()
		if err != nil {
			return dims, err
		}
		dims[i] = v
	}
	return dims, nil
}

func decodeFixDef(r *reader) (vrm.ArrayFixDef, error) {
	var fd vrm.ArrayFixDef
	gi, err := r.i16()
	if err != nil {
		return fd, err
	}
	fd.GeomIndex = cpu.Agx(gi)
	if fd.DimNr, err = r.i32(); err != nil {
		return fd, err
	}
	cell, err := r.i64()
	if err != nil {
		return fd, err
	}
	fd.CellSize = cell
	fd.DimSize, err = decodeDims(r)
	return fd, err
}

func decodeDynDef(r *reader) (vrm.ArrayDynDef, error) {
	var dd vrm.ArrayDynDef
	var err error
	if dd.DimNr, err = r.i32(); err != nil {
		return dd, err
	}
	cell, err := r.i64()
	if err != nil {
		return dd, err
	}
	dd.CellSize = cell
	dd.DimSize, err = decodeDims(r)
	return dd, err
}

func decodeBlock(r *reader) (vrm.BlockDef, error) {
	var bd vrm.BlockDef
	blk, err := r.i32()
	if err != nil {
		return bd, err
	}
	bd.Block = cpu.Mbl(blk)
	arrIdx, err := r.i64()
	if err != nil {
		return bd, err
	}
	bd.ArrIndex = arrIdx
	length, err := r.i64()
	if err != nil {
		return bd, err
	}
	if length < 0 || length > math.MaxInt32 {
		return bd, errors.Errorf("block %d carries invalid length %d", blk, length)
	}
	data, err := r.take(int(length))
	if err != nil {
		return bd, err
	}
	bd.Data = append([]byte(nil), data...)
	return bd, nil
}

func decodeDebug(r *reader, hdr *vrm.BinaryHeader) (*vrm.DbgSymbols, error) {
	dbg := &vrm.DbgSymbols{}
	for i := cpu.Int(0); i < hdr.DbgSymModNr; i++ {
		if err := r.mark(vrm.FileMarkDMod); err != nil {
			return nil, err
		}
		name, err := r.fixedString(vrm.MaxIdLen + 1)
		if err != nil {
			return nil, err
		}
		path, err := r.fixedString(256)
		if err != nil {
			return nil, err
		}
		dbg.Mod = append(dbg.Mod, vrm.DbgSymModule{Name: name, Path: path})
	}
	// Type, variable and field records are not kept: each record's mark is
	// checked and its body skipped. Parameter records are skipped the same
	// way below.
	for _, tbl := range []struct {
		mark string
		n    cpu.Int
		size int
	}{
		{vrm.FileMarkDTyp, hdr.DbgSymTypNr, dbgTypSize},
		{vrm.FileMarkDVar, hdr.DbgSymVarNr, dbgVarSize},
		{vrm.FileMarkDFld, hdr.DbgSymFldNr, dbgFldSize},
	} {
		for i := cpu.Int(0); i < tbl.n; i++ {
			if err := r.mark(tbl.mark); err != nil {
				return nil, err
			}
			if _, err := r.take(tbl.size); err != nil {
				return nil, err
			}
		}
	}
	for i := cpu.Int(0); i < hdr.DbgSymFunNr; i++ {
		if err := r.mark(vrm.FileMarkDFun); err != nil {
			return nil, err
		}
		fn, err := decodeDbgFun(r)
		if err != nil {
			return nil, err
		}
		dbg.Fun = append(dbg.Fun, fn)
	}
	for i := cpu.Int(0); i < hdr.DbgSymParNr; i++ {
		if err := r.mark(vrm.FileMarkDPar); err != nil {
			return nil, err
		}
		if _, err := r.take(dbgParSize); err != nil {
			return nil, err
		}
	}
	for i := cpu.Int(0); i < hdr.DbgSymLinNr; i++ {
		if err := r.mark(vrm.FileMarkDLin); err != nil {
			return nil, err
		}
		ln, err := decodeDbgLin(r)
		if err != nil {
			return nil, err
		}
		dbg.Lin = append(dbg.Lin, ln)
	}
	return dbg, nil
}

func decodeDbgFun(r *reader) (vrm.DbgSymFunction, error) {
	var fn vrm.DbgSymFunction
	kind, err := r.u8()
	if err != nil {
		return fn, err
	}
	fn.Kind = cpu.Chr(kind)
	if fn.Name, err = r.fixedString(vrm.MaxIdLen + 1); err != nil {
		return fn, err
	}
	if fn.ModIndex, err = r.i32(); err != nil {
		return fn, err
	}
	if fn.BegAddress, err = r.i64(); err != nil {
		return fn, err
	}
	if fn.EndAddress, err = r.i64(); err != nil {
		return fn, err
	}
	v, err := r.u8()
	if err != nil {
		return fn, err
	}
	fn.IsVoid = v != 0
	return fn, nil
}

func decodeDbgLin(r *reader) (vrm.DbgSymLine, error) {
	var ln vrm.DbgSymLine
	var err error
	if ln.ModIndex, err = r.i32(); err != nil {
		return ln, err
	}
	if ln.BegAddress, err = r.i64(); err != nil {
		return ln, err
	}
	if ln.EndAddress, err = r.i64(); err != nil {
		return ln, err
	}
	if ln.LineNr, err = r.i32(); err != nil {
		return ln, err
	}
	return ln, nil
}
