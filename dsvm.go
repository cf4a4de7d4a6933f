// Package dsvm is the Dungeon Spells virtual machine runtime: it loads
// compiled .dex executables (or in-memory ROM images) and interprets them.
//
// The public surface is deliberately small: build a RuntimeConfig, create a
// Runtime, load a program and run it. Everything else lives under
// internal/.
package dsvm

import (
	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/platform"
	"github.com/dungeonspells/dsvm/internal/vrm"
	"github.com/dungeonspells/dsvm/internal/vrm/binary"
)

// Runtime loads and executes programs under one configuration.
type Runtime struct {
	cfg       RuntimeConfig
	processId int
}

// NewRuntime creates a runtime with the given configuration.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	logrus.SetLevel(cfg.logLevel)
	return &Runtime{cfg: cfg}
}

// CompiledProgram is one loaded executable image, reusable across runs.
type CompiledProgram struct {
	prog *vrm.Program
}

// ProgramInfo is the loadable summary of an executable header.
type ProgramInfo struct {
	IsLibrary    bool
	DebugSymbols bool
	Version      string
	BuildDate    string
	BuildTime    string
	Architecture int
	CodeBytes    int64
	GlobalBytes  int64
	Blocks       int64
	MemUnitSize  int64
	MemUnits     int64
	ChunkUnits   int64
	BlockMax     int32
	LibVersion   [3]int16
}

// Info reports the parsed header of the program.
func (p *CompiledProgram) Info() ProgramInfo {
	h := p.prog.Hdr
	return ProgramInfo{
		IsLibrary:    h.IsBinLibrary,
		DebugSymbols: h.DebugSymbols,
		Version:      h.SysVersion,
		BuildDate:    h.SysBuildDate,
		BuildTime:    h.SysBuildTime,
		Architecture: int(h.Architecture),
		CodeBytes:    h.CodeBufferNr,
		GlobalBytes:  h.GlobBufferNr,
		Blocks:       h.BlockNr,
		MemUnitSize:  h.MemUnitSize,
		MemUnits:     h.MemUnits,
		ChunkUnits:   h.ChunkMemUnits,
		BlockMax:     h.BlockMax,
		LibVersion:   [3]int16{h.LibMajorVers, h.LibMinorVers, h.LibRevisionNr},
	}
}

// LoadFile parses an executable from disk.
func (r *Runtime) LoadFile(path string) (*CompiledProgram, error) {
	prog, err := binary.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return r.prepare(prog)
}

// LoadImage parses an executable held in memory (application-package ROM
// buffers).
func (r *Runtime) LoadImage(data []byte) (*CompiledProgram, error) {
	prog, err := binary.Decode(data)
	if err != nil {
		return nil, err
	}
	return r.prepare(prog)
}

func (r *Runtime) prepare(prog *vrm.Program) (*CompiledProgram, error) {
	if r.cfg.memUnitSize > 0 {
		prog.Hdr.MemUnitSize = r.cfg.memUnitSize
	}
	if r.cfg.memUnits > 0 {
		prog.Hdr.MemUnits = r.cfg.memUnits
	}
	if r.cfg.chunkUnits > 0 {
		prog.Hdr.ChunkMemUnits = r.cfg.chunkUnits
	}
	if r.cfg.blockMax > 0 {
		prog.Hdr.BlockMax = r.cfg.blockMax
	}
	return &CompiledProgram{prog: prog}, nil
}

// Run interprets the program with the given command-line arguments. The
// returned error is a *vrm.RuntimeError when the program failed with a
// machine exception.
func (r *Runtime) Run(p *CompiledProgram, args ...string) (int, error) {
	if r.cfg.lockMemory {
		if err := platform.LockMemory(); err != nil {
			logrus.Warnf("memory lock unavailable: %v", err)
		}
	}
	r.processId++
	m, err := vrm.NewMachine(p.prog, vrm.Config{
		ProcessId:  r.processId,
		Args:       args,
		Stdout:     r.cfg.stdout,
		Stderr:     r.cfg.stderr,
		Trace:      r.cfg.trace,
		DynLibPath: r.cfg.dynLibPath,
		TmpLibPath: r.cfg.tmpLibPath,
	})
	if err != nil {
		return 1, err
	}
	if err := m.Run(); err != nil {
		return 1, err
	}
	return m.ExitCode(), nil
}
