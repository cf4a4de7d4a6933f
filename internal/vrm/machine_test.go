package vrm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

func testProgram(code []byte, blocks ...BlockDef) *Program {
	return &Program{
		Hdr: BinaryHeader{
			FileMark:      FileMarkExec,
			MemUnitSize:   64,
			MemUnits:      1024,
			ChunkMemUnits: 512,
			BlockMax:      64,
		},
		Code:   code,
		Blocks: blocks,
	}
}

func newTestMachine(t *testing.T, prog *Program) (*Machine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	m, err := NewMachine(prog, Config{ProcessId: 1, Stdout: &out, Stderr: &out})
	require.NoError(t, err)
	return m, &out
}

// The fib fixture exercises recursion, references, string conversion and
// console output in one program.
func fibCode() []byte {
	a := NewAsm()

	// main
	a.Op(cpu.STACK, 64)
	a.Op(cpu.LOADi, 0, 10)
	a.Op(cpu.REFPU, 4)
	a.Op(cpu.PUSHi, 0)
	callMain := a.Op(cpu.CALL, 0)
	a.Op(cpu.IN2ST, 8, 4)
	a.Op(cpu.REFPU, 8)
	a.Op(cpu.SCALL, int64(cpu.SysConsolePrintLine))
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	// fib(res &int, n int). Frame: res ref at 0, n at 16, locals above.
	a.Mark("fib")
	a.Op(cpu.STACK, 48)
	a.Op(cpu.LOADi, 32, 2)
	a.Op(cpu.LESi, 20, 16, 32)
	branch := a.Op(cpu.JMPFL, 20, 0)
	a.Op(cpu.DALI1, 0, 0)
	a.Op(cpu.MVi, 0, 16)
	a.Op(cpu.RET)
	a.Mark("else")
	a.Op(cpu.LOADi, 40, 1)
	a.Op(cpu.SUBi, 36, 16, 40)
	a.Op(cpu.REFPU, 24)
	a.Op(cpu.PUSHi, 36)
	rec1 := a.Op(cpu.CALL, 0)
	a.Op(cpu.LOADi, 40, 2)
	a.Op(cpu.SUBi, 36, 16, 40)
	a.Op(cpu.REFPU, 28)
	a.Op(cpu.PUSHi, 36)
	rec2 := a.Op(cpu.CALL, 0)
	a.Op(cpu.DALI1, 0, 0)
	a.Op(cpu.ADDi, 0, 24, 28)
	a.Op(cpu.RET)

	fib := a.Label("fib")
	a.Fix(callMain, 0, int64(fib))
	a.Fix(rec1, 0, int64(fib))
	a.Fix(rec2, 0, int64(fib))
	a.Fix(branch, 1, int64(a.Label("else")-branch))
	return a.Bytes()
}

func TestRunFib(t *testing.T) {
	m, out := newTestMachine(t, testProgram(fibCode()))
	require.NoError(t, m.Run())
	require.Equal(t, "55\n", out.String())

	// Post-conditions: balanced call stack, base scope, no zombies left.
	require.Zero(t, m.CallDepth())
	require.Equal(t, int32(1), m.ScopeId())
	require.Zero(t, m.Aux().ZombieCount(1, 1))
	require.Greater(t, m.Stats().Instructions, int64(100))
}

func TestDivideByZero(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADi, 0, 10)
	a.Op(cpu.LOADi, 4, 0)
	a.Op(cpu.LOADi, 8, 99)
	a.Op(cpu.DIVi, 8, 0, 4)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	err := m.Run()
	require.Error(t, err)
	rte, ok := err.(*RuntimeError)
	require.True(t, ok)
	require.Equal(t, excep.DivideByZero, rte.Kind())

	// The destination operand keeps its previous value.
	v, e := m.ld4(loc{reg: regStack, off: 8})
	require.Nil(t, e)
	require.Equal(t, int32(99), v)
}

func TestModulusResidue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(-1<<40, 1<<40).Draw(t, "a")
		b := rapid.Int64Range(1, 1<<20).Draw(t, "b")
		r, err := opMod(nil, a, b)
		require.Nil(t, err)
		assert.GreaterOrEqual(t, r, int64(0))
		assert.Less(t, r, b)
		assert.Equal(t, int64(0), ((a-r)%b+b)%b)
	})
	_, err := opMod(&Machine{}, 10, 0)
	require.NotNil(t, err)
	require.Equal(t, excep.DivideByZero, err.Code)
}

func TestJumpsAndCompare(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 32)
	a.Op(cpu.LOADl, 0, 7)
	a.Op(cpu.LOADl, 8, 7)
	a.Op(cpu.EQUl, 16, 0, 8)
	tr := a.Op(cpu.JMPTR, 16, 0)
	a.Op(cpu.LOADl, 24, 1) // skipped on the taken branch
	a.Mark("done")
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	a.Fix(tr, 1, int64(a.Label("done")-tr))

	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	v, e := m.ld8(loc{reg: regStack, off: 24})
	require.Nil(t, e)
	require.Zero(t, v)
}

func TestDecoderGlobalMode(t *testing.T) {
	prog := testProgram(nil)
	prog.Glob = make([]byte, 16)
	prog.Glob[0] = 41

	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.DAGV2, 1, 0) // argument 2 of the next instruction is global
	a.Op(cpu.MVc, 0, 0)   // stack[0] = glob[0]
	a.Op(cpu.INCc, 0)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	prog.Code = a.Bytes()

	m, _ := newTestMachine(t, prog)
	require.NoError(t, m.Run())
	v, e := m.ld1(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int8(42), v)
}

func TestIndirectionThroughRef(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 64)
	a.Op(cpu.LOADl, 0, 1234)
	a.Op(cpu.REFER, 16, 0) // ref at 16 points at the long at 0
	a.Op(cpu.DALI1, 0, 0)
	a.Op(cpu.LOADl, 16, 4321) // through the ref: overwrites the long at 0
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	v, e := m.ld8(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int64(4321), v)
}

func TestNullIndirectionFails(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 32)
	a.Op(cpu.DALI1, 0, 0)
	a.Op(cpu.LOADl, 0, 1) // the ref at 0 is all zero: null
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.NullReferenceIndirection, err.(*RuntimeError).Kind())
}

func TestStringOpcodesConcat(t *testing.T) {
	blocks := []BlockDef{
		{Block: 1, ArrIndex: -1, Data: []byte("foo\x00")},
		{Block: 2, ArrIndex: -1, Data: []byte("bar\x00")},
	}
	a := NewAsm()
	a.Op(cpu.STACK, 32)
	a.Op(cpu.LOADi, 0, 1)
	a.Op(cpu.LOADi, 4, 2)
	a.Op(cpu.SCONC, 8, 0, 4)
	a.Op(cpu.REFPU, 8)
	a.Op(cpu.SCALL, int64(cpu.SysConsolePrintLine))
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	m, out := newTestMachine(t, testProgram(a.Bytes(), blocks...))
	require.NoError(t, m.Run())
	require.Equal(t, "foobar\n", out.String())
}

func TestReplicationOfString(t *testing.T) {
	blocks := []BlockDef{{Block: 1, ArrIndex: -1, Data: []byte("hi\x00")}}
	a := NewAsm()
	a.Op(cpu.STACK, 64)
	a.Op(cpu.LOADi, 0, 1) // source struct holds the string handle at +0
	a.Op(cpu.RPBEG, 16, 0)
	a.Op(cpu.RPSTR, 0)
	a.Op(cpu.RPEND)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	m, _ := newTestMachine(t, testProgram(a.Bytes(), blocks...))
	require.NoError(t, m.Run())
	dup, e := m.ldMbl(loc{reg: regStack, off: 16})
	require.Nil(t, e)
	require.NotZero(t, dup)
	require.NotEqual(t, cpu.Mbl(1), dup, "replication must produce a fresh block")
	require.Equal(t, "hi", m.Strings().String(dup))
}

func TestInitializationOfString(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 32)
	a.Op(cpu.BIBEG, 0)
	a.Op(cpu.BISTR, 0)
	a.Op(cpu.BIEND)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	blk, e := m.ldMbl(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.NotZero(t, blk)
	require.Equal(t, "", m.Strings().String(blk))
}

func TestSULOKSuppressesOneScopeChange(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.SULOK)
	call := a.Op(cpu.CALL, 0)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	a.Mark("helper")
	a.Op(cpu.SULOK)
	a.Op(cpu.RET)
	a.Fix(call, 0, int64(a.Label("helper")))

	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	require.Equal(t, int32(1), m.ScopeId())
}

func TestCallStackUnderflow(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.RET)
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.CallStackUnderflow, err.(*RuntimeError).Kind())
}

func TestInvalidInstruction(t *testing.T) {
	code := make([]byte, cpu.InstHead)
	code[cpu.HandlerSize] = 0xFF
	code[cpu.HandlerSize+1] = 0x7F
	m, _ := newTestMachine(t, testProgram(code))
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.InvalidInstructionCode, err.(*RuntimeError).Kind())
}

func TestSafeAddressingViolation(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 8)
	a.Op(cpu.LOADl, 1<<20, 5) // far outside the frame
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.InvalidMemoryAddress, err.(*RuntimeError).Kind())
}

func TestStackGrowthKeepsLocations(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADl, 0, 77)
	a.Op(cpu.STACK, 1<<16) // force a reallocation of the backing array
	a.Op(cpu.LOADl, 60000, 1)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	v, e := m.ld8(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int64(77), v)
}

func TestProgramFallsOffEnd(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.NOP)
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
}
