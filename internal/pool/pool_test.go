package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := New(64, 32, 16, 32, 16, -1)
	require.NoError(t, err)
	return p
}

func TestCreateRejectsSmallUnit(t *testing.T) {
	_, err := New(64, 32, 8, 32, 16, -1)
	require.ErrorIs(t, err, ErrSmallUnitSize)
}

func TestAllocateAndFree(t *testing.T) {
	p := newTestPool(t)
	b := p.Allocate(100, 1, false)
	require.NotNil(t, b)
	require.Equal(t, int64(100), int64(b.Size()))
	require.GreaterOrEqual(t, b.Capacity(), b.Size())
	require.Len(t, b.Bytes(), 100)
	require.NoError(t, p.Check())
	p.Free(b)
	require.NoError(t, p.Check())
}

func TestAllocateFailsWithoutExtend(t *testing.T) {
	p := newTestPool(t)
	require.Nil(t, p.Allocate(64*16+1, 1, false))
}

func TestAutoExtendGrowsByChunks(t *testing.T) {
	p := newTestPool(t)
	before := p.TotalUnits()
	b := p.Allocate(64*16+1, 1, true)
	require.NotNil(t, b)
	require.Greater(t, p.TotalUnits(), before)
	require.NoError(t, p.Check())
}

func TestCoalescingNeighbours(t *testing.T) {
	p := newTestPool(t)
	a := p.Allocate(16, 1, false)
	b := p.Allocate(16, 1, false)
	c := p.Allocate(16, 1, false)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)
	// Free in an order that exercises both next and prev joins.
	p.Free(a)
	p.Free(c)
	p.Free(b)
	require.NoError(t, p.Check())
	// The whole page must be one free region again.
	big := p.Allocate(64*16, 1, false)
	require.NotNil(t, big)
}

func TestReallocateGrowsInPlaceOverFreeNeighbour(t *testing.T) {
	p := newTestPool(t)
	a := p.Allocate(16, 1, false)
	b := p.Allocate(16, 1, false)
	require.NotNil(t, a)
	require.NotNil(t, b)
	copy(a.Bytes(), []byte("0123456789abcdef"))
	p.Free(b)
	grown, ok := p.Reallocate(a, 48, false)
	require.True(t, ok)
	require.Equal(t, []byte("0123456789abcdef"), grown.Bytes()[:16])
	require.NoError(t, p.Check())
}

func TestReallocateMovesAndPreservesContents(t *testing.T) {
	p := newTestPool(t)
	a := p.Allocate(16, 1, false)
	blocker := p.Allocate(16, 1, false)
	require.NotNil(t, blocker)
	copy(a.Bytes(), []byte("abcdefghijklmnop"))
	grown, ok := p.Reallocate(a, 300, true)
	require.True(t, ok)
	require.Equal(t, []byte("abcdefghijklmnop"), grown.Bytes()[:16])
	require.NoError(t, p.Check())
}

func TestReallocateShrinkKeepsData(t *testing.T) {
	p := newTestPool(t)
	a := p.Allocate(128, 1, false)
	copy(a.Bytes(), []byte("hello"))
	small, ok := p.Reallocate(a, 5, false)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), small.Bytes())
	require.NoError(t, p.Check())
}

// Random interleavings of allocate, reallocate and free must keep every
// pool invariant.
func TestPoolInvariantsRandomized(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p, err := New(128, 64, 16, 32, 16, -1)
		require.NoError(t, err)
		var live []*Block
		ops := rapid.IntRange(1, 60).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				size := rapid.Int64Range(1, 400).Draw(t, "size")
				if b := p.Allocate(size, 1, true); b != nil {
					live = append(live, b)
				}
			case 1:
				if len(live) > 0 {
					i := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
					p.Free(live[i])
					live = append(live[:i], live[i+1:]...)
				}
			case 2:
				if len(live) > 0 {
					i := rapid.IntRange(0, len(live)-1).Draw(t, "target")
					size := rapid.Int64Range(1, 500).Draw(t, "newsize")
					if nb, ok := p.Reallocate(live[i], size, true); ok {
						live[i] = nb
					}
				}
			}
			require.NoError(t, p.Check())
		}
	})
}
