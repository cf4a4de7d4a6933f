package dsvm_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeonspells/dsvm"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/vrm"
	"github.com/dungeonspells/dsvm/internal/vrm/binary"
)

// helloImage builds a minimal executable that prints its only constant
// string and exits.
func helloImage(t *testing.T) []byte {
	t.Helper()
	a := vrm.NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADi, 0, 1)
	a.Op(cpu.REFPU, 0)
	a.Op(cpu.SCALL, int64(cpu.SysConsolePrintLine))
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	return binary.Encode(&vrm.Program{
		Hdr: vrm.BinaryHeader{
			SysVersion:    "0.9.0",
			MemUnitSize:   512,
			MemUnits:      1024,
			ChunkMemUnits: 512,
			BlockMax:      64,
		},
		Code:   a.Bytes(),
		Blocks: []vrm.BlockDef{{Block: 1, ArrIndex: -1, Data: []byte("hello spells\x00")}},
	})
}

func TestRunFromImage(t *testing.T) {
	var out bytes.Buffer
	rt := dsvm.NewRuntime(dsvm.NewRuntimeConfig().WithStdout(&out))
	prog, err := rt.LoadImage(helloImage(t))
	require.NoError(t, err)
	code, err := rt.Run(prog)
	require.NoError(t, err)
	require.Zero(t, code)
	require.Equal(t, "hello spells\n", out.String())
}

func TestRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.dex")
	require.NoError(t, os.WriteFile(path, helloImage(t), 0o644))

	var out bytes.Buffer
	rt := dsvm.NewRuntime(dsvm.NewRuntimeConfig().WithStdout(&out))
	prog, err := rt.LoadFile(path)
	require.NoError(t, err)

	info := prog.Info()
	assert.Equal(t, 64, info.Architecture)
	assert.Equal(t, "0.9.0", info.Version)
	assert.False(t, info.IsLibrary)
	assert.Equal(t, int64(1), info.Blocks)

	_, err = rt.Run(prog)
	require.NoError(t, err)
	require.Equal(t, "hello spells\n", out.String())
}

// A failing program surfaces the typed exception kind through the runtime
// error, together with a symbolic frame when debug symbols are present.
func TestRunSurfacesExceptionWithSymbols(t *testing.T) {
	a := vrm.NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADi, 0, 1)
	a.Op(cpu.LOADi, 4, 0)
	a.Op(cpu.DIVi, 8, 0, 4)
	end := a.Here()

	img := binary.Encode(&vrm.Program{
		Hdr: vrm.BinaryHeader{
			MemUnitSize:   512,
			MemUnits:      1024,
			ChunkMemUnits: 512,
			BlockMax:      64,
		},
		Code: a.Bytes(),
		Dbg: &vrm.DbgSymbols{
			Mod: []vrm.DbgSymModule{{Name: "demo", Path: "demo.ds"}},
			Fun: []vrm.DbgSymFunction{{Kind: 'F', Name: "main", BegAddress: 0, EndAddress: end}},
			Lin: []vrm.DbgSymLine{{ModIndex: 0, BegAddress: 0, EndAddress: end, LineNr: 7}},
		},
	})

	rt := dsvm.NewRuntime(dsvm.NewRuntimeConfig().WithStdout(bytes.NewBuffer(nil)))
	prog, err := rt.LoadImage(img)
	require.NoError(t, err)
	_, err = rt.Run(prog)
	require.Error(t, err)
	rte, ok := err.(*vrm.RuntimeError)
	require.True(t, ok)
	assert.Equal(t, excep.DivideByZero, rte.Kind())
	assert.Contains(t, err.Error(), "divide by zero")
	assert.Contains(t, err.Error(), "demo.main")
	assert.Contains(t, err.Error(), "line 7")
}

func TestProgramArgumentsReachTheMachine(t *testing.T) {
	// GetArg materializes the arguments, then the program joins and
	// prints them.
	a := vrm.NewAsm()
	a.Op(cpu.STACK, 32)
	a.Op(cpu.REFPU, 0) // string[] out
	a.Op(cpu.SCALL, int64(cpu.SysGetArg))
	a.Op(cpu.LOADi, 4, 1) // separator block
	a.Op(cpu.AD1SJ, 8, 0, 4)
	a.Op(cpu.REFPU, 8)
	a.Op(cpu.SCALL, int64(cpu.SysConsolePrintLine))
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))

	img := binary.Encode(&vrm.Program{
		Hdr: vrm.BinaryHeader{
			MemUnitSize:   512,
			MemUnits:      1024,
			ChunkMemUnits: 512,
			BlockMax:      64,
		},
		Code:   a.Bytes(),
		Blocks: []vrm.BlockDef{{Block: 1, ArrIndex: -1, Data: []byte(" \x00")}},
	})

	var out bytes.Buffer
	rt := dsvm.NewRuntime(dsvm.NewRuntimeConfig().WithStdout(&out))
	prog, err := rt.LoadImage(img)
	require.NoError(t, err)
	_, err = rt.Run(prog, "alpha", "beta")
	require.NoError(t, err)
	require.Equal(t, "alpha beta\n", out.String())
}
