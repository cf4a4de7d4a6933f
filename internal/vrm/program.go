// Package vrm implements the virtual runtime machine: the threaded
// dispatch loop, the argument decoder, the stack discipline, the
// replication and initialization engines, the system-call port and the
// dynamic-library calling contract.
package vrm

import (
	"github.com/dungeonspells/dsvm/internal/cpu"
)

// File marks of the executable format.
const (
	FileMarkExec = "DSXC"
	FileMarkLibr = "DSLB"
	FileMarkGlob = "GLOB"
	FileMarkCode = "CODE"
	FileMarkFArr = "FARR"
	FileMarkDArr = "DARR"
	FileMarkBlck = "BLCK"
	FileMarkDlCa = "DLCA"
	FileMarkDMod = "DMOD"
	FileMarkDTyp = "DTYP"
	FileMarkDVar = "DVAR"
	FileMarkDFld = "DFLD"
	FileMarkDFun = "DFUN"
	FileMarkDPar = "DPAR"
	FileMarkDLin = "DLIN"
)

// BinaryFormat is the format number this runtime reads and writes.
const BinaryFormat = 0

// VersionMaxLen bounds the version string in the header.
const VersionMaxLen = 10

// MaxIdLen bounds identifier names in binary tables.
const MaxIdLen = 64

// BinaryHeader is the fixed-layout head of executables and libraries.
type BinaryHeader struct {
	FileMark      string // DSXC or DSLB
	BinFormat     cpu.Int
	Architecture  cpu.Chr
	SysVersion    string
	SysBuildDate  string
	SysBuildTime  string
	IsBinLibrary  bool
	DebugSymbols  bool
	GlobBufferNr  cpu.Lon
	BlockNr       cpu.Lon
	ArrFixDefNr   cpu.Lon
	ArrDynDefNr   cpu.Lon
	CodeBufferNr  cpu.Lon
	DlCallNr      cpu.Lon
	MemUnitSize   cpu.Lon
	MemUnits      cpu.Lon
	ChunkMemUnits cpu.Lon
	BlockMax      cpu.Int
	LibMajorVers  cpu.Shr
	LibMinorVers  cpu.Shr
	LibRevisionNr cpu.Shr
	DependencyNr  cpu.Int
	UndefRefNr    cpu.Int
	RelocTableNr  cpu.Lon
	DbgSymModNr   cpu.Int
	DbgSymTypNr   cpu.Int
	DbgSymVarNr   cpu.Int
	DbgSymFldNr   cpu.Int
	DbgSymFunNr   cpu.Int
	DbgSymParNr   cpu.Int
	DbgSymLinNr   cpu.Int
	SuperInitAdr  cpu.Adr
}

// ArrayFixDef describes one fixed-array geometry of the global frame.
type ArrayFixDef struct {
	GeomIndex cpu.Agx
	DimNr     int32
	CellSize  cpu.Wrd
	DimSize   cpu.ArrayIndexes
}

// ArrayDynDef describes one pre-initialized dynamic array.
type ArrayDynDef struct {
	DimNr    int32
	CellSize cpu.Wrd
	DimSize  cpu.ArrayIndexes
}

// BlockDef is one pre-initialized aux block: the compiler assigns block
// numbers to constant strings and arrays, and the loader replays them.
type BlockDef struct {
	Block    cpu.Mbl
	ArrIndex cpu.Wrd // index into ArrDyn, -1 for strings
	Data     []byte
}

// DlCallDef names one dynamic-library call site.
type DlCallDef struct {
	Library  string
	Function string
}

// Debug symbol records. Only the tables the call-stack renderer consumes
// are kept; the loader skips the others.

type DbgSymModule struct {
	Name string
	Path string
}

type DbgSymFunction struct {
	Kind       cpu.Chr
	Name       string
	ModIndex   cpu.Int
	BegAddress cpu.Adr
	EndAddress cpu.Adr
	IsVoid     bool
}

type DbgSymLine struct {
	ModIndex   cpu.Int
	BegAddress cpu.Adr
	EndAddress cpu.Adr
	LineNr     cpu.Int
}

// DbgSymbols bundles the debug tables of one executable.
type DbgSymbols struct {
	Mod []DbgSymModule
	Fun []DbgSymFunction
	Lin []DbgSymLine
}

// Program is one loaded executable image, ready to run.
type Program struct {
	Hdr     BinaryHeader
	Glob    []byte
	Code    []byte
	ArrFix  []ArrayFixDef
	ArrDyn  []ArrayDynDef
	Blocks  []BlockDef
	DlCalls []DlCallDef
	Dbg     *DbgSymbols
}
