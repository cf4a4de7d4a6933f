package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionTableIsComplete(t *testing.T) {
	require.Equal(t, 361, InstructionNr)
	seen := map[string]bool{}
	for code := Icd(0); int(code) < InstructionNr; code++ {
		name := InstName(code)
		require.NotEmpty(t, name, "instruction %d has no mnemonic", code)
		require.NotEqual(t, "???", name)
		require.False(t, seen[name], "mnemonic %s appears twice", name)
		seen[name] = true
		for i := 0; i < len(InstSig(code)); i++ {
			s := InstSig(code)[i]
			if s >= 'A' && s <= 'Z' {
				continue
			}
			require.NotZero(t, LitSize(s), "%s argument %d letter %c has no size", name, i, s)
		}
		require.GreaterOrEqual(t, InstLength(code), Adr(InstHead))
	}
}

func TestInstLength(t *testing.T) {
	assert.Equal(t, Adr(InstHead), InstLength(NOP))
	assert.Equal(t, Adr(InstHead+3*AdrSize), InstLength(ADDi))
	assert.Equal(t, Adr(InstHead+AdrSize+4), InstLength(LOADi))
	assert.Equal(t, Adr(InstHead+AdrSize), InstLength(CALL))
	assert.Equal(t, Adr(InstHead+2*2), InstLength(DAGV1))
}

func TestRefTagging(t *testing.T) {
	require.True(t, Ref{}.IsNull())
	g := Ref{Id: GlobalScopeID, Offset: 8}
	require.True(t, g.IsGlobal())
	require.False(t, g.IsBlock())

	b := BlockRef(7, 40)
	require.True(t, b.IsBlock())
	require.False(t, b.IsNull())
	require.Equal(t, Mbl(7), b.Block())
	require.Equal(t, Wrd(40), b.Offset)

	s := Ref{Id: 3, Offset: 16}
	require.False(t, s.IsNull() || s.IsGlobal() || s.IsBlock())
}

func TestSystemCallCount(t *testing.T) {
	require.Equal(t, 91, SystemCallNr)
	require.Equal(t, SysCall(10), SysConsolePrint)
	require.Equal(t, SysCall(14), SysGetFileName)
	require.Equal(t, SysCall(37), SysAbsChr)
	require.Equal(t, SysCall(76), SysDateValid)
}
