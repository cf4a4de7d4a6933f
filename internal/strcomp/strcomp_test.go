package strcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dungeonspells/dsvm/internal/auxmem"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

func newTestComputer(t *testing.T) *Computer {
	t.Helper()
	aux, err := auxmem.Init(1, 32, 256, 128, 64)
	require.NoError(t, err)
	c := Init(aux)
	c.SetScope(1, 1)
	return c
}

func mkStr(t *testing.T, c *Computer, s string) cpu.Mbl {
	t.Helper()
	var b cpu.Mbl
	require.Nil(t, c.SCOPYData(&b, []byte(s)))
	return b
}

// Every live string block keeps a zero byte after its payload.
func nulOK(c *Computer, b cpu.Mbl) bool {
	data := c.aux.CharPtr(b)
	return data[c.aux.GetLen(b)] == 0
}

func TestCopyPreservesLengthAndBytes(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "hello world")
	var d cpu.Mbl
	require.Nil(t, c.SCOPY(&d, s))
	require.Equal(t, "hello world", c.String(d))
	require.Equal(t, c.aux.GetLen(s), c.aux.GetLen(d))
	require.True(t, nulOK(c, d))
}

func TestCopyAliasedDestination(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "self")
	d := s
	require.Nil(t, c.SCOPY(&d, s))
	require.Equal(t, "self", c.String(d))
}

func TestConcatLaws(t *testing.T) {
	c := newTestComputer(t)
	for _, tc := range []struct{ a, b, want string }{
		{"abc", "def", "abcdef"},
		{"", "x", "x"},
		{"x", "", "x"},
		{"", "", ""},
	} {
		s1, s2 := mkStr(t, c, tc.a), mkStr(t, c, tc.b)
		var d cpu.Mbl
		require.Nil(t, c.SCONC(&d, s1, s2))
		assert.Equal(t, tc.want, c.String(d))
		assert.Equal(t, cpu.Wrd(len(tc.a)+len(tc.b)), c.aux.GetLen(d))
		assert.True(t, nulOK(c, d))
	}
}

func TestComparisons(t *testing.T) {
	c := newTestComputer(t)
	a, b := mkStr(t, c, "abc"), mkStr(t, c, "abd")
	var r cpu.Bol
	require.Nil(t, c.SLES(&r, a, b))
	assert.Equal(t, cpu.Bol(1), r)
	require.Nil(t, c.SGEQ(&r, a, b))
	assert.Equal(t, cpu.Bol(0), r)
	require.Nil(t, c.SEQU(&r, a, a))
	assert.Equal(t, cpu.Bol(1), r)
	require.Nil(t, c.SDIS(&r, a, b))
	assert.Equal(t, cpu.Bol(1), r)
}

func TestInvalidBlockFails(t *testing.T) {
	c := newTestComputer(t)
	var d cpu.Mbl
	err := c.SCOPY(&d, 17)
	require.NotNil(t, err)
	require.Equal(t, excep.InvalidStringBlock, err.Code)
}

func TestSubstringFamily(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "dungeon spells")
	var d cpu.Mbl
	require.Nil(t, c.SMID(&d, s, 8, 6))
	assert.Equal(t, "spells", c.String(d))
	require.Nil(t, c.SLEFT(&d, s, 7))
	assert.Equal(t, "dungeon", c.String(d))
	require.Nil(t, c.SRGHT(&d, s, 6))
	assert.Equal(t, "spells", c.String(d))
	require.Nil(t, c.SCUTR(&d, s, 7))
	assert.Equal(t, "dungeon", c.String(d))
	require.Nil(t, c.SCUTL(&d, s, 8))
	assert.Equal(t, "spells", c.String(d))
	require.Nil(t, c.SMID(&d, s, 100, 5))
	assert.Equal(t, "", c.String(d))
}

func TestIndexReference(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "abc")
	var r cpu.Ref
	require.Nil(t, c.SINDX(&r, s, 1))
	require.True(t, r.IsBlock())
	assert.Equal(t, s, r.Block())
	assert.Equal(t, cpu.Wrd(1), r.Offset)
	err := c.SINDX(&r, s, 3)
	require.NotNil(t, err)
	assert.Equal(t, excep.ArrayIndexingOutOfBounds, err.Code)
}

func TestFindAndReplace(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "one two one")
	sub := mkStr(t, c, "one")
	var pos cpu.Wrd
	require.Nil(t, c.SFIND(&pos, s, sub, 0))
	assert.Equal(t, cpu.Wrd(0), pos)
	require.Nil(t, c.SFIND(&pos, s, sub, 1))
	assert.Equal(t, cpu.Wrd(8), pos)
	missing := mkStr(t, c, "three")
	require.Nil(t, c.SFIND(&pos, s, missing, 0))
	assert.Equal(t, cpu.Wrd(-1), pos)

	repl := mkStr(t, c, "1")
	var d cpu.Mbl
	require.Nil(t, c.SSUBS(&d, s, sub, repl))
	assert.Equal(t, "1 two 1", c.String(d))
}

func TestTrimCaseJustify(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "  mixed Case  ")
	var d cpu.Mbl
	require.Nil(t, c.STRIM(&d, s))
	assert.Equal(t, "mixed Case", c.String(d))
	require.Nil(t, c.SUPPR(&d, d))
	assert.Equal(t, "MIXED CASE", c.String(d))
	require.Nil(t, c.SLOWR(&d, d))
	assert.Equal(t, "mixed case", c.String(d))

	short := mkStr(t, c, "ab")
	require.Nil(t, c.SLJUS(&d, short, 5, '.'))
	assert.Equal(t, "ab...", c.String(d))
	require.Nil(t, c.SRJUS(&d, short, 5, '.'))
	assert.Equal(t, "...ab", c.String(d))
	require.Nil(t, c.SRJUS(&d, short, 1, '.'))
	assert.Equal(t, "ab", c.String(d))
}

func TestMoveConcat(t *testing.T) {
	c := newTestComputer(t)
	d := mkStr(t, c, "head")
	tail := mkStr(t, c, "-tail")
	require.Nil(t, c.SMVCO(&d, tail))
	assert.Equal(t, "head-tail", c.String(d))
	assert.False(t, c.IsValid(tail), "source released by the move")

	front := mkStr(t, c, "pre-")
	require.Nil(t, c.SMVRC(&d, front))
	assert.Equal(t, "pre-head-tail", c.String(d))
	assert.False(t, c.IsValid(front))
}

func TestSwapMove(t *testing.T) {
	c := newTestComputer(t)
	var d cpu.Mbl
	s := mkStr(t, c, "payload")
	require.Nil(t, c.SSWCP(&d, s))
	assert.Equal(t, "payload", c.String(d))
	assert.False(t, c.IsValid(s))
}

func TestLikePatterns(t *testing.T) {
	c := newTestComputer(t)
	for _, tc := range []struct {
		s, p string
		want bool
	}{
		{"abc", "a*c", true},
		{"abc", "a?c", true},
		{"abc", "a?", false},
		{"abc", "*", true},
		{"", "*", true},
		{"", "?", false},
		{"axxc", "a*c", true},
		{"ac", "a*c", true},
		{"abd", "a?c", false},
		{"dungeon.ds", "*.ds", true},
		{"dungeon.dex", "*.ds", false},
	} {
		s, p := mkStr(t, c, tc.s), mkStr(t, c, tc.p)
		var r cpu.Bol
		require.Nil(t, c.SLIKE(&r, s, p))
		assert.Equal(t, tc.want, r != 0, "%q like %q", tc.s, tc.p)
	}
}

func TestRegexMatch(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "spell-42")
	re := mkStr(t, c, `^spell-\d+$`)
	var r cpu.Bol
	require.Nil(t, c.SMATC(&r, s, re))
	assert.Equal(t, cpu.Bol(1), r)

	bad := mkStr(t, c, "(unclosed")
	err := c.SMATC(&r, s, bad)
	require.NotNil(t, err)
	assert.Equal(t, excep.InvalidRegularExpression, err.Code)
}

func TestRepeat(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "ab")
	var d cpu.Mbl
	require.Nil(t, c.SREPL(&d, s, 3))
	assert.Equal(t, "ababab", c.String(d))
	assert.Equal(t, cpu.Wrd(6), c.aux.GetLen(d))
	require.Nil(t, c.SREPL(&d, s, 0))
	assert.Equal(t, "", c.String(d))
}

func TestStartsEndsWith(t *testing.T) {
	c := newTestComputer(t)
	s := mkStr(t, c, "filename.dex")
	pre, suf := mkStr(t, c, "file"), mkStr(t, c, ".dex")
	var r cpu.Bol
	require.Nil(t, c.SSTWI(&r, s, pre))
	assert.Equal(t, cpu.Bol(1), r)
	require.Nil(t, c.SENWI(&r, s, suf))
	assert.Equal(t, cpu.Bol(1), r)
	require.Nil(t, c.SSTWI(&r, s, suf))
	assert.Equal(t, cpu.Bol(0), r)
}

func TestParsePredicatesAndConversions(t *testing.T) {
	c := newTestComputer(t)
	var b cpu.Bol
	require.Nil(t, c.SISIN(&b, mkStr(t, c, " 123 ")))
	assert.Equal(t, cpu.Bol(1), b)
	require.Nil(t, c.SISIN(&b, mkStr(t, c, "12x")))
	assert.Equal(t, cpu.Bol(0), b)
	require.Nil(t, c.SISCH(&b, mkStr(t, c, "300")))
	assert.Equal(t, cpu.Bol(0), b, "out of char range")
	require.Nil(t, c.SISFL(&b, mkStr(t, c, "2.5e3")))
	assert.Equal(t, cpu.Bol(1), b)

	var i cpu.Int
	require.Nil(t, c.SST2I(&i, mkStr(t, c, "-42")))
	assert.Equal(t, cpu.Int(-42), i)
	err := c.SST2I(&i, mkStr(t, c, "2147483648"))
	require.NotNil(t, err)
	assert.Equal(t, excep.StringToIntegerConvFailure, err.Code)

	var f cpu.Flo
	require.Nil(t, c.SST2F(&f, mkStr(t, c, "3.25")))
	assert.Equal(t, cpu.Flo(3.25), f)

	var ch cpu.Chr
	err = c.SST2C(&ch, mkStr(t, c, "200"))
	require.NotNil(t, err)
	assert.Equal(t, excep.StringToCharConvFailure, err.Code)
}

func TestDefaultFormat(t *testing.T) {
	c := newTestComputer(t)
	var d cpu.Mbl
	require.Nil(t, c.SBO2S(&d, 1))
	assert.Equal(t, "true", c.String(d))
	require.Nil(t, c.SIN2S(&d, -7))
	assert.Equal(t, "-7", c.String(d))
	require.Nil(t, c.SFL2S(&d, 0.5))
	assert.Equal(t, "0.5", c.String(d))
}

func TestExplicitFormat(t *testing.T) {
	c := newTestComputer(t)
	var d cpu.Mbl
	require.Nil(t, c.SINFM(&d, 42, mkStr(t, c, "%05d")))
	assert.Equal(t, "00042", c.String(d))
	require.Nil(t, c.SFLFM(&d, 3.14159, mkStr(t, c, "%.2f")))
	assert.Equal(t, "3.14", c.String(d))
	err := c.SINFM(&d, 42, mkStr(t, c, "%s"))
	require.NotNil(t, err)
	assert.Equal(t, excep.InvalidStringFormat, err.Code)
}

// Round-trip laws over arbitrary inputs.
func TestRoundTrips(t *testing.T) {
	c := newTestComputer(t)
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int32Range(int32(cpu.MinInt), int32(cpu.MaxInt)).Draw(t, "n")
		var s cpu.Mbl
		require.Nil(t, c.SIN2S(&s, n))
		var back cpu.Int
		require.Nil(t, c.SST2I(&back, s))
		assert.Equal(t, n, back)
	})
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.SliceOfN(rapid.Byte().Filter(func(b byte) bool { return b != 0 }), 0, 64).Draw(t, "text")
		var s cpu.Mbl
		require.Nil(t, c.SCOPYData(&s, text))
		require.True(t, nulOK(c, s))
		var d cpu.Mbl
		require.Nil(t, c.SCOPY(&d, s))
		assert.Equal(t, string(text), c.String(d))
	})
}
