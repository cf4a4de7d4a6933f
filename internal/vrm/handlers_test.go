package vrm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

// Every instruction code must resolve to a handler; a hole here means the
// dispatch loop can only fail at runtime.
func TestEveryInstructionHasAHandler(t *testing.T) {
	for code := 0; code < cpu.InstructionNr; code++ {
		require.NotNil(t, handlers[code], "no handler for %s", cpu.InstName(cpu.Icd(code)))
	}
}

// Arithmetic width behavior: char arithmetic wraps at 8 bits.
func TestCharArithmeticWraps(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 8)
	a.Op(cpu.LOADc, 0, 127)
	a.Op(cpu.INCc, 0)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	v, e := m.ld1(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int8(-128), v)
}

func TestPostIncrement(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADl, 0, 5)
	a.Op(cpu.PINCl, 8, 0)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	prev, e := m.ld8(loc{reg: regStack, off: 8})
	require.Nil(t, e)
	require.Equal(t, int64(5), prev)
	cur, e := m.ld8(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int64(6), cur)
}

func TestFloatToIntRangeCheck(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADf, 0, FloBits(3.0e10))
	a.Op(cpu.FL2IN, 8, 0)
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	err := m.Run()
	require.Error(t, err)
}

func TestCompoundAssign(t *testing.T) {
	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADi, 0, 6)
	a.Op(cpu.LOADi, 4, 7)
	a.Op(cpu.MVMUi, 0, 4)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	m, _ := newTestMachine(t, testProgram(a.Bytes()))
	require.NoError(t, m.Run())
	v, e := m.ld4(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, int32(42), v)
}
