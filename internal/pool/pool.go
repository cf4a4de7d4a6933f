// Package pool implements the first-level memory allocator of the virtual
// machine: a segregated free list over page-backed chunks measured in
// assignment units. The aux memory manager allocates every string and array
// body through a Pool.
package pool

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

var log = logrus.WithField("component", "mempool")

// Error codes reported by New and Check.
type Error int

const (
	ErrNone Error = iota
	ErrSmallUnitSize
	ErrAllocationError
	ErrPageLockFailure
	ErrRequestError
	ErrCheckFailure
)

func (e Error) Error() string {
	switch e {
	case ErrSmallUnitSize:
		return "memory unit size is too small"
	case ErrAllocationError:
		return "memory allocation error"
	case ErrPageLockFailure:
		return "page lock failure"
	case ErrRequestError:
		return "memory request error"
	case ErrCheckFailure:
		return "memory check failure"
	}
	return "no error"
}

// MinUnitSize is the smallest accepted assignment unit.
const MinUnitSize = cpu.Wrd(16)

// Block is the header of one allocated or free region inside a page. Headers
// are chained in physical order; free headers are additionally indexed by the
// pool free list.
type Block struct {
	used      bool
	owner     int
	pg        *page
	off       cpu.Wrd // first unit inside the page
	units     cpu.Wrd // size in units
	size      cpu.Wrd // requested bytes (used blocks only)
	freeIndex int
	prev      *Block
	next      *Block
}

// Bytes returns the data view of the block, capped at its requested size.
func (b *Block) Bytes() []byte {
	base := b.off * b.pg.unitSize
	return b.pg.mem[base : base+b.size]
}

// Capacity returns the capacity of the block in bytes.
func (b *Block) Capacity() cpu.Wrd { return b.units * b.pg.unitSize }

// Size returns the requested size in bytes.
func (b *Block) Size() cpu.Wrd { return b.size }

// Owner returns the tag given at allocation.
func (b *Block) Owner() int { return b.owner }

type page struct {
	mem      []byte
	unitSize cpu.Wrd
	units    cpu.Wrd
	blockNr  int
	usedNr   int
	first    *Block
}

// Pool is a memory pool instance. Not safe for concurrent use; each machine
// owns its pools.
type Pool struct {
	unitSize   cpu.Wrd
	chunkUnits cpu.Wrd
	units      cpu.Wrd
	blockCount int

	freeList  []*Block
	freeIndex int
	freeBits  int
	freeMap   uint64

	owner   int
	pages   []*page
	lastErr Error
}

// New creates a pool with the given starting units, extension chunk and unit
// size. freeListNr bounds the free block index and freeBits the recency
// bitmap width.
func New(units, chunkUnits, unitSize cpu.Wrd, freeListNr, freeBits, owner int) (*Pool, error) {
	if unitSize < MinUnitSize {
		return nil, ErrSmallUnitSize
	}
	if units <= 0 || chunkUnits <= 0 || freeListNr <= 0 {
		return nil, ErrRequestError
	}
	if freeBits <= 0 || freeBits > 64 {
		freeBits = 64
	}
	p := &Pool{
		unitSize:   unitSize,
		chunkUnits: chunkUnits,
		freeList:   make([]*Block, freeListNr),
		freeBits:   freeBits,
		owner:      owner,
	}
	if !p.addPage(units) {
		return nil, ErrAllocationError
	}
	return p, nil
}

// Destroy drops every page. The pool must not be used afterwards.
func (p *Pool) Destroy() {
	p.pages = nil
	p.freeList = nil
	p.units = 0
	p.blockCount = 0
}

// LastError returns the last recorded error code.
func (p *Pool) LastError() Error { return p.lastErr }

// TotalUnits returns the pool size in units.
func (p *Pool) TotalUnits() cpu.Wrd { return p.units }

// PageCount returns the number of pages backing the pool.
func (p *Pool) PageCount() int { return len(p.pages) }

func (p *Pool) addPage(units cpu.Wrd) bool {
	if units < p.chunkUnits {
		units = p.chunkUnits
	}
	pg := &page{
		mem:      make([]byte, units*p.unitSize),
		unitSize: p.unitSize,
		units:    units,
	}
	hdr := &Block{pg: pg, off: 0, units: units, freeIndex: -1}
	pg.first = hdr
	pg.blockNr = 1
	p.pages = append(p.pages, pg)
	p.units += units
	p.blockCount++
	p.freeListAdd(hdr)
	log.Tracef("pool(owner=%d): page added (units=%d, pages=%d)", p.owner, units, len(p.pages))
	return true
}

func (p *Pool) freeBitDistance(index int) int {
	if index <= p.freeIndex {
		return p.freeIndex - index
	}
	return len(p.freeList) - index + p.freeIndex + 1
}

func (p *Pool) freeBitSet(index int) {
	if d := p.freeBitDistance(index); d > 0 && d < p.freeBits {
		p.freeMap |= 1 << (d - 1)
	}
}

func (p *Pool) freeBitClr(index int) {
	if d := p.freeBitDistance(index); d > 0 && d < p.freeBits {
		p.freeMap &^= 1 << (d - 1)
	}
}

func (p *Pool) freeListAdd(b *Block) {
	if b.freeIndex == -1 || p.freeList[b.freeIndex] != b {
		p.freeIndex++
		if p.freeIndex > len(p.freeList)-1 {
			p.freeIndex = 0
		}
		if old := p.freeList[p.freeIndex]; old != nil && old.freeIndex == p.freeIndex {
			// Evicted from the index; still reachable through the
			// physical chain when neighbours coalesce.
			old.freeIndex = -1
		}
		p.freeList[p.freeIndex] = b
		b.freeIndex = p.freeIndex
	}
	p.freeBitSet(b.freeIndex)
}

func (p *Pool) freeListRemove(b *Block) {
	if b.freeIndex != -1 && p.freeList[b.freeIndex] == b {
		p.freeList[b.freeIndex] = nil
		p.freeBitClr(b.freeIndex)
	}
	b.freeIndex = -1
}

func (p *Pool) unitsFor(size cpu.Wrd) cpu.Wrd {
	u := (size + p.unitSize - 1) / p.unitSize
	if u == 0 {
		u = 1
	}
	return u
}

// bestFit scans the free index for the smallest free block holding the given
// units.
func (p *Pool) bestFit(units cpu.Wrd) *Block {
	var best *Block
	for i, b := range p.freeList {
		if b == nil || b.used || b.freeIndex != i {
			continue
		}
		if b.units < units {
			continue
		}
		if best == nil || b.units < best.units {
			best = b
			if b.units == units {
				break
			}
		}
	}
	return best
}

// split cuts a used region of the given units out of a free block, keeping
// the remainder free.
func (p *Pool) split(b *Block, units cpu.Wrd) {
	if b.units > units {
		rest := &Block{
			pg:        b.pg,
			off:       b.off + units,
			units:     b.units - units,
			freeIndex: -1,
			prev:      b,
			next:      b.next,
		}
		if b.next != nil {
			b.next.prev = rest
		}
		b.next = rest
		b.units = units
		b.pg.blockNr++
		p.blockCount++
		p.freeListAdd(rest)
	}
}

// Allocate reserves size bytes and returns the block header, or nil when the
// pool cannot serve the request. With autoExtend the pool grows by whole
// chunks on a miss.
func (p *Pool) Allocate(size cpu.Wrd, owner int, autoExtend bool) *Block {
	if size <= 0 {
		p.lastErr = ErrRequestError
		return nil
	}
	units := p.unitsFor(size)
	b := p.bestFit(units)
	if b == nil {
		if !autoExtend {
			return nil
		}
		chunks := (units + p.chunkUnits) / p.chunkUnits
		if !p.addPage(chunks * p.chunkUnits) {
			p.lastErr = ErrAllocationError
			return nil
		}
		if b = p.bestFit(units); b == nil {
			p.lastErr = ErrAllocationError
			return nil
		}
	}
	p.freeListRemove(b)
	p.split(b, units)
	b.used = true
	b.owner = owner
	b.size = size
	b.pg.usedNr++
	return b
}

// Reallocate resizes a used block, moving it when it cannot grow in place.
// The returned header replaces the given one.
func (p *Pool) Reallocate(b *Block, size cpu.Wrd, autoExtend bool) (*Block, bool) {
	if b == nil || !b.used || size <= 0 {
		p.lastErr = ErrRequestError
		return b, false
	}
	units := p.unitsFor(size)
	switch {
	case units <= b.units:
		// Fits; give back whole trailing units.
		if spare := b.units - units; spare > 0 {
			b.units = units
			rest := &Block{pg: b.pg, off: b.off + units, units: spare, freeIndex: -1, prev: b, next: b.next}
			if b.next != nil {
				b.next.prev = rest
			}
			b.next = rest
			b.pg.blockNr++
			p.blockCount++
			p.coalesceNext(rest)
			p.freeListAdd(rest)
		}
		b.size = size
		return b, true
	case b.next != nil && !b.next.used && b.units+b.next.units >= units:
		// Widen over the following free block.
		nxt := b.next
		p.freeListRemove(nxt)
		b.units += nxt.units
		b.next = nxt.next
		if nxt.next != nil {
			nxt.next.prev = b
		}
		b.pg.blockNr--
		p.blockCount--
		if b.units > units {
			p.split(b, units)
		}
		b.size = size
		return b, true
	}
	// Move.
	nb := p.Allocate(size, b.owner, autoExtend)
	if nb == nil {
		return b, false
	}
	copy(nb.Bytes(), b.pg.mem[b.off*p.unitSize:(b.off*p.unitSize)+b.size])
	p.Free(b)
	return nb, true
}

func (p *Pool) coalesceNext(b *Block) {
	for b.next != nil && !b.next.used {
		nxt := b.next
		p.freeListRemove(nxt)
		b.units += nxt.units
		b.next = nxt.next
		if nxt.next != nil {
			nxt.next.prev = b
		}
		b.pg.blockNr--
		p.blockCount--
	}
}

// Free releases a block and coalesces it with free neighbours.
func (p *Pool) Free(b *Block) {
	if b == nil || !b.used {
		return
	}
	b.used = false
	b.size = 0
	b.pg.usedNr--
	p.coalesceNext(b)
	if b.prev != nil && !b.prev.used {
		prv := b.prev
		p.freeListRemove(prv)
		p.freeListRemove(b)
		prv.units += b.units
		prv.next = b.next
		if b.next != nil {
			b.next.prev = prv
		}
		b.pg.blockNr--
		p.blockCount--
		b = prv
	}
	p.freeListAdd(b)
	p.releasePage(b.pg)
}

// releasePage drops a fully free page, keeping at least the first one.
func (p *Pool) releasePage(pg *page) {
	if pg.usedNr != 0 || pg.blockNr != 1 || len(p.pages) <= 1 || p.pages[0] == pg {
		return
	}
	p.freeListRemove(pg.first)
	for i, q := range p.pages {
		if q == pg {
			p.pages = append(p.pages[:i], p.pages[i+1:]...)
			break
		}
	}
	p.units -= pg.units
	p.blockCount--
	log.Tracef("pool(owner=%d): page released (units=%d, pages=%d)", p.owner, pg.units, len(p.pages))
}

// Check walks every page and validates the physical chains against the page
// and pool counters. It returns nil when the pool is consistent.
func (p *Pool) Check() error {
	blocks := 0
	var units cpu.Wrd
	for pi, pg := range p.pages {
		var sum cpu.Wrd
		n, used := 0, 0
		var prev *Block
		for b := pg.first; b != nil; b = b.next {
			if b.prev != prev {
				return fmt.Errorf("%w: broken back link on page %d", ErrCheckFailure, pi)
			}
			if b.off != sum {
				return fmt.Errorf("%w: block overlap on page %d (offset %d, expected %d)", ErrCheckFailure, pi, b.off, sum)
			}
			if b.used && b.size > b.units*p.unitSize {
				return fmt.Errorf("%w: size above capacity on page %d", ErrCheckFailure, pi)
			}
			if !b.used && prev != nil && !prev.used {
				return fmt.Errorf("%w: uncoalesced free blocks on page %d", ErrCheckFailure, pi)
			}
			sum += b.units
			n++
			if b.used {
				used++
			}
			prev = b
		}
		if sum != pg.units {
			return fmt.Errorf("%w: page %d units %d, blocks sum %d", ErrCheckFailure, pi, pg.units, sum)
		}
		if n != pg.blockNr || used != pg.usedNr {
			return fmt.Errorf("%w: page %d counters off (blocks %d/%d, used %d/%d)", ErrCheckFailure, pi, n, pg.blockNr, used, pg.usedNr)
		}
		blocks += n
		units += pg.units
	}
	if units != p.units || blocks != p.blockCount {
		return fmt.Errorf("%w: pool counters off", ErrCheckFailure)
	}
	return nil
}
