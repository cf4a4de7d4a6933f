package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/vrm"
)

func fixtureProgram() *vrm.Program {
	return &vrm.Program{
		Hdr: vrm.BinaryHeader{
			FileMark:      vrm.FileMarkExec,
			SysVersion:    "0.9.0",
			SysBuildDate:  "01.08.2026",
			SysBuildTime:  "12:00:00",
			MemUnitSize:   512,
			MemUnits:      8192,
			ChunkMemUnits: 4096,
			BlockMax:      4096,
			LibMajorVers:  1,
			LibMinorVers:  2,
			LibRevisionNr: 3,
			SuperInitAdr:  0,
		},
		Glob: []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Code: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0x01, 9, 9},
		ArrFix: []vrm.ArrayFixDef{
			{GeomIndex: 0, DimNr: 2, CellSize: 4, DimSize: cpu.ArrayIndexes{2, 3}},
		},
		ArrDyn: []vrm.ArrayDynDef{
			{DimNr: 1, CellSize: 8, DimSize: cpu.ArrayIndexes{4}},
		},
		Blocks: []vrm.BlockDef{
			{Block: 1, ArrIndex: -1, Data: []byte("constant\x00")},
			{Block: 2, ArrIndex: 0, Data: make([]byte, 32)},
		},
		DlCalls: []vrm.DlCallDef{
			{Library: "mathx", Function: "fastsqrt"},
		},
		Dbg: &vrm.DbgSymbols{
			Mod: []vrm.DbgSymModule{{Name: "main", Path: "main.ds"}},
			Fun: []vrm.DbgSymFunction{{Kind: 'F', Name: "main", BegAddress: 0, EndAddress: 12}},
			Lin: []vrm.DbgSymLine{{ModIndex: 0, BegAddress: 0, EndAddress: 12, LineNr: 3}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := Encode(fixtureProgram())
	prog, err := Decode(img)
	require.NoError(t, err)

	assert.Equal(t, vrm.FileMarkExec, prog.Hdr.FileMark)
	assert.Equal(t, cpu.Chr(cpu.Architecture), prog.Hdr.Architecture)
	assert.Equal(t, "0.9.0", prog.Hdr.SysVersion)
	assert.Equal(t, cpu.Lon(512), prog.Hdr.MemUnitSize)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, prog.Glob)
	assert.Equal(t, fixtureProgram().Code, prog.Code)

	require.Len(t, prog.ArrFix, 1)
	assert.Equal(t, int32(2), prog.ArrFix[0].DimNr)
	assert.Equal(t, cpu.ArrayIndexes{2, 3}, prog.ArrFix[0].DimSize)

	require.Len(t, prog.ArrDyn, 1)
	assert.Equal(t, cpu.Wrd(8), prog.ArrDyn[0].CellSize)

	require.Len(t, prog.Blocks, 2)
	assert.Equal(t, cpu.Mbl(1), prog.Blocks[0].Block)
	assert.Equal(t, []byte("constant\x00"), prog.Blocks[0].Data)
	assert.Equal(t, cpu.Wrd(0), prog.Blocks[1].ArrIndex)

	require.Len(t, prog.DlCalls, 1)
	assert.Equal(t, "mathx", prog.DlCalls[0].Library)
	assert.Equal(t, "fastsqrt", prog.DlCalls[0].Function)

	require.NotNil(t, prog.Dbg)
	require.Len(t, prog.Dbg.Fun, 1)
	assert.Equal(t, "main", prog.Dbg.Fun[0].Name)
	require.Len(t, prog.Dbg.Lin, 1)
	assert.Equal(t, cpu.Int(3), prog.Dbg.Lin[0].LineNr)
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	img := Encode(fixtureProgram())
	copy(img, "XXXX")
	_, err := Decode(img)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a Dungeon Spells binary")
}

func TestDecodeRejectsArchitectureMismatch(t *testing.T) {
	img := Encode(fixtureProgram())
	img[8] = 32 // architecture byte follows mark and format number
	_, err := Decode(img)
	require.Error(t, err)
	require.Contains(t, err.Error(), "architecture missmatch")
}

func TestDecodeDetectsCorruptedMark(t *testing.T) {
	img := Encode(fixtureProgram())
	// Corrupt the GLOB section mark right after the fixed header.
	for i := 0; i+4 <= len(img); i++ {
		if string(img[i:i+4]) == vrm.FileMarkGlob {
			img[i] = 'g'
			break
		}
	}
	_, err := Decode(img)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected mark GLOB")
}

func TestDecodeRejectsTruncatedImage(t *testing.T) {
	img := Encode(fixtureProgram())
	_, err := Decode(img[:len(img)/2])
	require.Error(t, err)
}

func TestDecodeLibraryMark(t *testing.T) {
	prog := fixtureProgram()
	prog.Hdr.FileMark = vrm.FileMarkLibr
	prog.Hdr.IsBinLibrary = true
	out, err := Decode(Encode(prog))
	require.NoError(t, err)
	assert.True(t, out.Hdr.IsBinLibrary)
	assert.Equal(t, vrm.FileMarkLibr, out.Hdr.FileMark)
}
