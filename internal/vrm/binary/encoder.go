package binary

import (
	"bytes"
	enc "encoding/binary"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/vrm"
)

type writer struct {
	buf bytes.Buffer
}

func (w *writer) mark(m string) { w.buf.WriteString(m) }

func (w *writer) u8(v byte) { w.buf.WriteByte(v) }

func (w *writer) i16(v int16) {
	var b [2]byte
	enc.LittleEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

func (w *writer) i32(v int32) {
	var b [4]byte
	enc.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *writer) i64(v int64) {
	var b [8]byte
	enc.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

func (w *writer) fixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	if len(s) >= n {
		b[n-1] = 0
	}
	w.buf.Write(b)
}

// Encode serializes a program image. Section counters in the header are
// refreshed from the program tables so callers only fill the memory
// parameters.
func Encode(prog *vrm.Program) []byte {
	h := prog.Hdr
	if h.FileMark == "" {
		h.FileMark = vrm.FileMarkExec
	}
	h.BinFormat = vrm.BinaryFormat
	h.Architecture = cpu.Architecture
	h.GlobBufferNr = cpu.Lon(len(prog.Glob))
	h.CodeBufferNr = cpu.Lon(len(prog.Code))
	h.ArrFixDefNr = cpu.Lon(len(prog.ArrFix))
	h.ArrDynDefNr = cpu.Lon(len(prog.ArrDyn))
	h.BlockNr = cpu.Lon(len(prog.Blocks))
	h.DlCallNr = cpu.Lon(len(prog.DlCalls))
	if prog.Dbg != nil {
		h.DebugSymbols = true
		h.DbgSymModNr = cpu.Int(len(prog.Dbg.Mod))
		h.DbgSymTypNr = 0
		h.DbgSymVarNr = 0
		h.DbgSymFldNr = 0
		h.DbgSymFunNr = cpu.Int(len(prog.Dbg.Fun))
		h.DbgSymParNr = 0
		h.DbgSymLinNr = cpu.Int(len(prog.Dbg.Lin))
	}

	w := &writer{}
	w.mark(h.FileMark)
	w.i32(h.BinFormat)
	w.u8(byte(h.Architecture))
	w.fixedString(h.SysVersion, vrm.VersionMaxLen+1)
	w.fixedString(h.SysBuildDate, 11)
	w.fixedString(h.SysBuildTime, 9)
	w.u8(boolU8(h.IsBinLibrary))
	w.u8(boolU8(h.DebugSymbols))
	for _, v := range []cpu.Lon{
		h.GlobBufferNr, h.BlockNr, h.ArrFixDefNr, h.ArrDynDefNr, h.CodeBufferNr, h.DlCallNr,
		h.MemUnitSize, h.MemUnits, h.ChunkMemUnits,
	} {
		w.i64(v)
	}
	w.i32(h.BlockMax)
	w.i16(h.LibMajorVers)
	w.i16(h.LibMinorVers)
	w.i16(h.LibRevisionNr)
	w.i32(h.DependencyNr)
	w.i32(h.UndefRefNr)
	w.i64(h.RelocTableNr)
	for _, v := range []cpu.Int{
		h.DbgSymModNr, h.DbgSymTypNr, h.DbgSymVarNr, h.DbgSymFldNr, h.DbgSymFunNr, h.DbgSymParNr, h.DbgSymLinNr,
	} {
		w.i32(v)
	}
	w.i64(h.SuperInitAdr)

	w.mark(vrm.FileMarkGlob)
	w.buf.Write(prog.Glob)
	w.mark(vrm.FileMarkCode)
	w.buf.Write(prog.Code)
	for _, fd := range prog.ArrFix {
		w.mark(vrm.FileMarkFArr)
		w.i16(int16(fd.GeomIndex))
		w.i32(fd.DimNr)
		w.i64(int64(fd.CellSize))
		for _, d := range fd.DimSize {
			w.i64(int64(d))
		}
	}
	for _, dd := range prog.ArrDyn {
		w.mark(vrm.FileMarkDArr)
		w.i32(dd.DimNr)
		w.i64(int64(dd.CellSize))
		for _, d := range dd.DimSize {
			w.i64(int64(d))
		}
	}
	for _, bd := range prog.Blocks {
		w.mark(vrm.FileMarkBlck)
		w.i32(int32(bd.Block))
		w.i64(int64(bd.ArrIndex))
		w.i64(int64(len(bd.Data)))
		w.buf.Write(bd.Data)
	}
	for _, dc := range prog.DlCalls {
		w.mark(vrm.FileMarkDlCa)
		w.fixedString(dc.Library, vrm.MaxIdLen+1)
		w.fixedString(dc.Function, vrm.MaxIdLen+1)
	}
	if prog.Dbg != nil {
		for _, mod := range prog.Dbg.Mod {
			w.mark(vrm.FileMarkDMod)
			w.fixedString(mod.Name, vrm.MaxIdLen+1)
			w.fixedString(mod.Path, 256)
		}
		for _, fn := range prog.Dbg.Fun {
			w.mark(vrm.FileMarkDFun)
			w.u8(byte(fn.Kind))
			w.fixedString(fn.Name, vrm.MaxIdLen+1)
			w.i32(fn.ModIndex)
			w.i64(int64(fn.BegAddress))
			w.i64(int64(fn.EndAddress))
			w.u8(boolU8(fn.IsVoid))
		}
		for _, ln := range prog.Dbg.Lin {
			w.mark(vrm.FileMarkDLin)
			w.i32(ln.ModIndex)
			w.i64(int64(ln.BegAddress))
			w.i64(int64(ln.EndAddress))
			w.i32(ln.LineNr)
		}
	}
	return w.buf.Bytes()
}

func boolU8(v bool) byte {
	if v {
		return 1
	}
	return 0
}
