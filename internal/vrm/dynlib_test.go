package vrm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/dynlib"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// fakeLib reverses, in place, every byte payload marked for update and
// leaves the other arguments untouched.
type fakeLib struct {
	calls int
}

func (f *fakeLib) IsSystemLibrary() bool       { return true }
func (f *fakeLib) Architecture() int           { return cpu.Architecture }
func (f *fakeLib) BuildNumber() string         { return "test" }
func (f *fakeLib) Init(func(msg string)) error { return nil }
func (f *fakeLib) Close()                      {}

func (f *fakeLib) Search(fn string) (int, bool) {
	if fn == "reverse" {
		return 1, true
	}
	return 0, false
}

func (f *fakeLib) Call(id int, args []*dynlib.Value) error {
	f.calls++
	for _, a := range args {
		if a.Bytes != nil && a.Update {
			for i, j := 0, len(a.Bytes)-1; i < j; i, j = i+1, j-1 {
				a.Bytes[i], a.Bytes[j] = a.Bytes[j], a.Bytes[i]
			}
		}
	}
	return nil
}

func TestNativeCallStringInOut(t *testing.T) {
	lib := &fakeLib{}
	dynlib.Register("strutil", lib)

	prog := testProgram(nil, BlockDef{Block: 1, ArrIndex: -1, Data: []byte("dungeon\x00")})
	prog.DlCalls = []DlCallDef{{Library: "strutil", Function: "reverse"}}

	a := NewAsm()
	a.Op(cpu.STACK, 16)
	a.Op(cpu.LOADi, 0, 1)
	a.Op(cpu.LRPUS, 0, 1) // in-out string: replacement-pointer contract
	a.Op(cpu.LCALL, 0)
	a.Op(cpu.SCALL, int64(cpu.SysProgramExit))
	prog.Code = a.Bytes()

	m, _ := newTestMachine(t, prog)
	require.NoError(t, m.Run())
	require.Equal(t, 1, lib.calls)
	blk, e := m.ldMbl(loc{reg: regStack, off: 0})
	require.Nil(t, e)
	require.Equal(t, "noegnud", m.Strings().String(blk))
}

func TestNativeCallUnknownFunction(t *testing.T) {
	dynlib.Register("strutil", &fakeLib{})
	prog := testProgram(nil)
	prog.DlCalls = []DlCallDef{{Library: "strutil", Function: "missing"}}
	a := NewAsm()
	a.Op(cpu.LCALL, 0)
	prog.Code = a.Bytes()

	m, _ := newTestMachine(t, prog)
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.DynLibFunctionNotFound, err.(*RuntimeError).Kind())
}

func TestNativeCallUnknownLibrary(t *testing.T) {
	prog := testProgram(nil)
	prog.DlCalls = []DlCallDef{{Library: "no-such-library", Function: "f"}}
	a := NewAsm()
	a.Op(cpu.LCALL, 0)
	prog.Code = a.Bytes()

	m, _ := newTestMachine(t, prog)
	err := m.Run()
	require.Error(t, err)
	require.Equal(t, excep.DynLibInit1Failed, err.(*RuntimeError).Kind())
}
