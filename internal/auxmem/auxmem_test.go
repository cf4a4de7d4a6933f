package auxmem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Init(1, 8, 64, 32, 64)
	require.NoError(t, err)
	return m
}

func TestAllocAssignsHandlesFromOne(t *testing.T) {
	m := newTestManager(t)
	b1, err := m.Alloc(1, 1, 32, -1)
	require.Nil(t, err)
	require.Equal(t, cpu.Mbl(1), b1)
	b2, err := m.Alloc(1, 1, 32, -1)
	require.Nil(t, err)
	require.Equal(t, cpu.Mbl(2), b2)
	require.True(t, m.IsValid(b1))
	require.False(t, m.IsValid(0), "block zero is the null handle")
}

func TestEmptyAllocHasNoStorage(t *testing.T) {
	m := newTestManager(t)
	b, err := m.EmptyAlloc(1, 1)
	require.Nil(t, err)
	require.True(t, m.IsValid(b))
	require.Nil(t, m.CharPtr(b))
}

func TestFreeReleasesHandle(t *testing.T) {
	m := newTestManager(t)
	b, err := m.Alloc(1, 1, 32, -1)
	require.Nil(t, err)
	m.Free(b)
	require.False(t, m.IsValid(b))
}

func TestClearKeepsHandle(t *testing.T) {
	m := newTestManager(t)
	b, err := m.Alloc(1, 1, 32, -1)
	require.Nil(t, err)
	m.Clear(b)
	require.True(t, m.IsValid(b))
	require.Nil(t, m.CharPtr(b))
	require.Zero(t, m.GetSize(b))
}

func TestHandleTableDoubles(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 20; i++ {
		_, err := m.Alloc(1, 1, 8, -1)
		require.Nil(t, err)
	}
	require.GreaterOrEqual(t, m.BlockMax(), cpu.Mbl(21))
}

func TestForcedAllocKeepsCompileTimeNumbers(t *testing.T) {
	m := newTestManager(t)
	require.Nil(t, m.ForcedAlloc(1, 1, 16, -1, 5))
	require.True(t, m.IsValid(5))
	require.NotNil(t, m.ForcedAlloc(1, 1, 16, -1, 5), "handle already in use")
	// Later sequential allocation must skip the forced handle.
	b, err := m.Alloc(1, 1, 8, -1)
	require.Nil(t, err)
	require.NotEqual(t, cpu.Mbl(5), b)
}

func TestIsZombie(t *testing.T) {
	m := newTestManager(t)
	b, err := m.Alloc(2, 7, 16, -1)
	require.Nil(t, err)
	require.True(t, m.IsZombie(b, 1, 1), "deeper scope died")
	require.True(t, m.IsZombie(b, 2, 9), "same depth, superseded activation")
	require.False(t, m.IsZombie(b, 2, 7))
	require.False(t, m.IsZombie(b, 3, 9), "parent frames stay live")
}

// A zombie whose size fits in [request, 2*request] is reused in place under
// allocation pressure: the handle number comes back and the pool does not
// grow.
func TestZombieReuseUnderPressure(t *testing.T) {
	m, err := Init(1, 8, 16, 8, 64) // tiny pool: 16 units of 64 bytes
	require.NoError(t, err)

	b, err := m.Alloc(2, 2, 768, -1)
	require.Nil(t, err)
	pagesBefore := m.Pool().PageCount()
	unitsBefore := m.Pool().TotalUnits()

	// Scope 2 returns; the block becomes a zombie for scope (1,1). The
	// next allocation cannot fit beside it, so the sweep reclaims it.
	b2, err := m.Alloc(1, 1, 512, -1)
	require.Nil(t, err)
	require.Equal(t, b, b2, "zombie handle is recycled")
	require.Equal(t, pagesBefore, m.Pool().PageCount())
	require.Equal(t, unitsBefore, m.Pool().TotalUnits(), "pool must not grow")
	require.False(t, m.IsZombie(b2, 1, 1))
}

func TestZombieReleaseWhenTooLarge(t *testing.T) {
	m, err := Init(1, 8, 16, 8, 64)
	require.NoError(t, err)
	big, err := m.Alloc(2, 2, 900, -1)
	require.Nil(t, err)
	// 900 > 2*128: not reusable in place, released instead.
	small, err := m.Alloc(1, 1, 128, -1)
	require.Nil(t, err)
	require.False(t, m.IsValid(big))
	require.True(t, m.IsValid(small))
}

func TestReallocPreservesData(t *testing.T) {
	m := newTestManager(t)
	b, err := m.Alloc(1, 1, 8, -1)
	require.Nil(t, err)
	copy(m.CharPtr(b), "abcdefgh")
	require.Nil(t, m.Realloc(1, 1, b, 300))
	require.Equal(t, "abcdefgh", string(m.CharPtr(b)[:8]))
	require.Equal(t, cpu.Wrd(300), m.GetSize(b))
}

func TestSwapPtr(t *testing.T) {
	m := newTestManager(t)
	a, err := m.Alloc(1, 1, 4, -1)
	require.Nil(t, err)
	b, err := m.Alloc(1, 1, 4, -1)
	require.Nil(t, err)
	copy(m.CharPtr(a), "aaaa")
	copy(m.CharPtr(b), "bbbb")
	m.SetLen(a, 4)
	m.SetLen(b, 4)
	m.SwapPtr(a, b)
	require.Equal(t, "bbbb", string(m.CharPtr(a)[:4]))
	require.Equal(t, "aaaa", string(m.CharPtr(b)[:4]))
}
