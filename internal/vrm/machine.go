package vrm

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/arrcomp"
	"github.com/dungeonspells/dsvm/internal/auxmem"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/dsdebug"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/strcomp"
	"github.com/dungeonspells/dsvm/internal/sys"
)

var log = logrus.WithField("component", "vrm")

// handler executes one instruction. A non-nil return aborts dispatch.
type handler func(m *Machine, it *instr) *excep.Error

// argSlot is one decoded instruction argument.
type argSlot struct {
	addr   bool
	letter byte
	off    cpu.Wrd // address arguments: encoded offset
	lit    int64   // literal arguments: raw little-endian value
}

// instr is one decoded instruction site. The first execution of a site
// resolves it and caches the record; the handler slot in code memory then
// names it directly.
type instr struct {
	code cpu.Icd
	size cpu.Adr
	fn   handler
	args []argSlot
}

// frame is one call-stack entry.
type frame struct {
	orgIP     cpu.Adr
	retIP     cpu.Adr
	bp        cpu.Adr
	stackSize cpu.Wrd
	scopeNr   cpu.Lon
	afBase    cpu.Agx
}

// replication rule modes.
type rpMode int8

const (
	rpFixed rpMode = iota
	rpDynamic
)

type rpRule struct {
	mode       rpMode
	baseOffset cpu.Wrd
	geom       cpu.Agx
}

type biRule struct {
	baseOffset cpu.Wrd
	geom       cpu.Agx
}

// Stats reports execution counters.
type Stats struct {
	Instructions int64
	Elapsed      time.Duration
}

// Config carries the runtime knobs the machine needs.
type Config struct {
	ProcessId  int
	Args       []string
	Stdout     io.Writer
	Stderr     io.Writer
	Trace      bool
	DynLibPath string
	TmpLibPath string
}

// Machine is one virtual machine instance. Machines share nothing but the
// process console lock; run one per goroutine.
type Machine struct {
	prog *Program
	cfg  Config

	glob   []byte
	stack  []byte
	code   []byte
	parmSt []byte
	callSt []frame

	ip cpu.Adr
	bp cpu.Adr

	scopeId     int32
	scopeNr     cpu.Lon
	cumulScope  cpu.Lon
	scopeLocked bool // one-shot, armed by SULOK

	aux  *auxmem.Manager
	stc  *strcomp.Computer
	arc  *arrcomp.Computer
	sysc *sys.Context

	decoded []instr
	modes   [4]cpu.DecMode
	next    [4]cpu.DecMode
	jumped  bool

	rpRules []rpRule
	rpSrc   loc
	rpDst   loc
	biRules []biRule
	biDst   loc

	dlParams []dlParam
	libs     map[string]*boundLibrary
	lastErr  cpu.Int

	excepts  []*excep.Error
	exiting  bool
	exitCode int

	instCount int64
	started   time.Time
	finished  time.Time
}

// NewMachine wires a machine around a loaded program.
func NewMachine(prog *Program, cfg Config) (*Machine, error) {
	aux, err := auxmem.Init(cfg.ProcessId, prog.Hdr.BlockMax,
		cpu.Wrd(prog.Hdr.MemUnits), cpu.Wrd(prog.Hdr.ChunkMemUnits), cpu.Wrd(prog.Hdr.MemUnitSize))
	if err != nil {
		return nil, err
	}
	stc := strcomp.Init(aux)
	arc := arrcomp.Init(aux, stc)
	sysc := sys.NewContext(cfg.Stdout, cfg.Stderr)
	arc.SetFileStore(sysc)

	m := &Machine{
		prog: prog,
		cfg:  cfg,
		glob: append([]byte(nil), prog.Glob...),
		code: append([]byte(nil), prog.Code...),
		aux:  aux,
		stc:  stc,
		arc:  arc,
		sysc: sysc,
		libs: map[string]*boundLibrary{},
	}
	m.scopeId = 1
	m.scopeNr = 1
	m.cumulScope = 1
	m.stc.SetScope(m.scopeId, m.scopeNr)
	m.arc.DynSetScope(m.scopeId, m.scopeNr)
	for i := range m.modes {
		m.modes[i] = cpu.LoclVar
		m.next[i] = cpu.LoclVar
	}

	for _, fd := range prog.ArrFix {
		if e := arc.FixStoreGeom(cpu.Agx(uint16(fd.GeomIndex)|cpu.ArrGeomMask80), fd.DimNr, fd.CellSize, fd.DimSize); e != nil {
			return nil, e
		}
	}
	for _, bd := range prog.Blocks {
		arrIndex := int32(-1)
		if bd.ArrIndex >= 0 {
			if bd.ArrIndex >= cpu.Wrd(len(prog.ArrDyn)) {
				return nil, fmt.Errorf("block %d references dynamic definition %d of %d", bd.Block, bd.ArrIndex, len(prog.ArrDyn))
			}
			dd := prog.ArrDyn[bd.ArrIndex]
			arrIndex = arc.DynStoreMeta(m.scopeId, m.scopeNr, dd.DimNr, dd.CellSize, dd.DimSize)
		}
		if e := aux.ForcedAlloc(m.scopeId, m.scopeNr, cpu.Wrd(len(bd.Data)), arrIndex, bd.Block); e != nil {
			return nil, e
		}
		copy(aux.CharPtr(bd.Block), bd.Data)
		if arrIndex == -1 && len(bd.Data) > 0 {
			aux.SetLen(bd.Block, cpu.Wrd(len(bd.Data))-1)
		}
	}
	return m, nil
}

// Aux exposes the aux memory manager (tests and stats).
func (m *Machine) Aux() *auxmem.Manager { return m.aux }

// Strings exposes the string computer.
func (m *Machine) Strings() *strcomp.Computer { return m.stc }

// Arrays exposes the array computer.
func (m *Machine) Arrays() *arrcomp.Computer { return m.arc }

// ScopeId returns the current scope depth.
func (m *Machine) ScopeId() int32 { return m.scopeId }

// CallDepth returns the live call-stack depth.
func (m *Machine) CallDepth() int { return len(m.callSt) }

// ExitCode returns the code set by the program exit service.
func (m *Machine) ExitCode() int { return m.exitCode }

// Stats returns execution counters of the last run.
func (m *Machine) Stats() Stats {
	return Stats{Instructions: m.instCount, Elapsed: m.finished.Sub(m.started)}
}

// RuntimeError carries the exception table and the symbolic call stack of a
// failed run.
type RuntimeError struct {
	Excepts []*excep.Error
	Trace   string
}

func (e *RuntimeError) Error() string {
	if e.Trace != "" {
		return e.Trace
	}
	if len(e.Excepts) > 0 {
		return e.Excepts[0].Error()
	}
	return "runtime error"
}

// Kind returns the first recorded failure kind.
func (e *RuntimeError) Kind() excep.Code {
	if len(e.Excepts) == 0 {
		return excep.CodeNone
	}
	return e.Excepts[0].Code
}

// throwf records an exception built in place.
func (m *Machine) throwf(code excep.Code, params ...string) *excep.Error {
	return excep.Throw(code, params...)
}

// Run executes the program until exit, completion or failure.
func (m *Machine) Run() error {
	m.started = time.Now()
	defer func() {
		m.finished = time.Now()
		m.sysc.Close()
		m.closeLibraries()
	}()
	if m.prog.Hdr.SuperInitAdr > 0 {
		m.ip = m.prog.Hdr.SuperInitAdr
	}
	for {
		if m.ip == cpu.Adr(len(m.code)) && len(m.callSt) == 0 {
			return nil // fell off the end of the outermost frame
		}
		it, err := m.fetch()
		if err != nil {
			return m.fail(err)
		}
		m.modes = m.next
		for i := range m.next {
			m.next[i] = cpu.LoclVar
		}
		m.jumped = false
		m.instCount++
		if m.cfg.Trace {
			log.Tracef("IP=%08X BP=%08X scope=%d/%d %s", m.ip, m.bp, m.scopeId, m.scopeNr, cpu.InstName(it.code))
		}
		if err := it.fn(m, it); err != nil {
			return m.fail(err)
		}
		if m.exiting {
			return nil
		}
		if !m.jumped {
			m.ip += it.size
		}
	}
}

// fail records the exception and renders the final report.
func (m *Machine) fail(e *excep.Error) error {
	m.excepts = append(m.excepts, e)
	m.lastErr = cpu.Int(e.Code)
	var b dsdebug.ErrorBuilder
	for _, ex := range m.excepts {
		b.AddException(ex)
	}
	b.AddFrame(0, m.resolveFrame(m.ip))
	for i := len(m.callSt) - 1; i >= 0; i-- {
		b.AddFrame(len(m.callSt)-i, m.resolveFrame(m.callSt[i].orgIP))
	}
	return &RuntimeError{Excepts: m.excepts, Trace: b.String()}
}

// resolveFrame maps a code address to a symbolic frame through the debug
// tables when present.
func (m *Machine) resolveFrame(addr cpu.Adr) dsdebug.Frame {
	f := dsdebug.Frame{Address: addr}
	if m.prog.Dbg == nil {
		return f
	}
	for _, fn := range m.prog.Dbg.Fun {
		if addr >= fn.BegAddress && addr <= fn.EndAddress {
			f.Function = fn.Name
			if int(fn.ModIndex) >= 0 && int(fn.ModIndex) < len(m.prog.Dbg.Mod) {
				f.Module = m.prog.Dbg.Mod[fn.ModIndex].Name
			}
			break
		}
	}
	for _, ln := range m.prog.Dbg.Lin {
		if addr >= ln.BegAddress && addr <= ln.EndAddress {
			f.Line = int32(ln.LineNr)
			break
		}
	}
	return f
}

// fetch resolves the instruction at IP, caching the decode on first
// execution by overwriting the handler slot with the record index.
func (m *Machine) fetch() (*instr, *excep.Error) {
	if m.ip < 0 || m.ip+cpu.InstHead > cpu.Adr(len(m.code)) {
		return nil, m.throwf(excep.InvalidMemoryAddress, "code",
			fmt.Sprintf("%08Xh", uint64(m.ip)), fmt.Sprintf("%08Xh", len(m.code)))
	}
	slot := binary.LittleEndian.Uint64(m.code[m.ip:])
	if slot != 0 {
		idx := int(slot - 1)
		if idx < len(m.decoded) {
			return &m.decoded[idx], nil
		}
	}
	code := cpu.Icd(binary.LittleEndian.Uint16(m.code[m.ip+cpu.HandlerSize:]))
	if int(code) < 0 || int(code) >= cpu.InstructionNr {
		return nil, m.throwf(excep.InvalidInstructionCode, strconv.Itoa(int(code)))
	}
	fn := handlers[code]
	if fn == nil {
		return nil, m.throwf(excep.InvalidInstructionCode, cpu.InstName(code))
	}
	it := instr{code: code, fn: fn}
	sig := cpu.InstSig(code)
	pos := m.ip + cpu.InstHead
	for i := 0; i < len(sig); i++ {
		s := sig[i]
		var a argSlot
		if s >= 'A' && s <= 'Z' {
			if pos+cpu.AdrSize > cpu.Adr(len(m.code)) {
				return nil, m.throwf(excep.InvalidMemoryAddress, "code",
					fmt.Sprintf("%08Xh", uint64(pos)), fmt.Sprintf("%08Xh", len(m.code)))
			}
			a = argSlot{addr: true, letter: s, off: cpu.Wrd(binary.LittleEndian.Uint64(m.code[pos:]))}
			pos += cpu.AdrSize
		} else {
			sz := cpu.LitSize(s)
			if pos+cpu.Adr(sz) > cpu.Adr(len(m.code)) {
				return nil, m.throwf(excep.InvalidMemoryAddress, "code",
					fmt.Sprintf("%08Xh", uint64(pos)), fmt.Sprintf("%08Xh", len(m.code)))
			}
			var v int64
			switch sz {
			case 1:
				v = int64(int8(m.code[pos]))
			case 2:
				v = int64(int16(binary.LittleEndian.Uint16(m.code[pos:])))
			case 4:
				v = int64(int32(binary.LittleEndian.Uint32(m.code[pos:])))
			case 8:
				v = int64(binary.LittleEndian.Uint64(m.code[pos:]))
			case cpu.RefSize:
				// Refs never travel as literals.
			}
			a = argSlot{letter: s, lit: v}
			pos += cpu.Adr(sz)
		}
		it.args = append(it.args, a)
	}
	it.size = pos - m.ip
	m.decoded = append(m.decoded, it)
	binary.LittleEndian.PutUint64(m.code[m.ip:], uint64(len(m.decoded)))
	return &m.decoded[len(m.decoded)-1], nil
}

// scopeUp runs the CALL side of the scope discipline.
func (m *Machine) scopeUp() *excep.Error {
	if m.scopeLocked {
		m.scopeLocked = false
		return nil
	}
	m.scopeId++
	m.cumulScope++
	m.scopeNr = m.cumulScope
	if m.scopeId == int32(cpu.GlobalScopeID) {
		return m.throwf(excep.SubroutineMaxNestingLevelReached, strconv.FormatInt(int64(cpu.GlobalScopeID), 10))
	}
	m.stc.SetScope(m.scopeId, m.scopeNr)
	m.arc.DynSetScope(m.scopeId, m.scopeNr)
	return nil
}

// scopeDown runs the RET side of the scope discipline.
func (m *Machine) scopeDown(restored cpu.Lon) {
	if m.scopeLocked {
		m.scopeLocked = false
		return
	}
	m.scopeNr = restored
	m.scopeId--
	m.stc.SetScope(m.scopeId, m.scopeNr)
	m.arc.DynSetScope(m.scopeId, m.scopeNr)
}

// growStack extends the stack to at least size bytes, zero filling the new
// region. Decoder caches hold buffer-relative indices, so a reallocation
// cannot strand them; relocation is a bookkeeping no-op.
func (m *Machine) growStack(size cpu.Wrd) {
	if n := size - cpu.Wrd(len(m.stack)); n > 0 {
		m.stack = append(m.stack, make([]byte, n)...)
	}
}
