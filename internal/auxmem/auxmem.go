// Package auxmem implements the auxiliary memory manager: a table of
// numbered block handles whose storage lives in a memory pool. Strings and
// dynamic array bodies are aux blocks. Block 0 is reserved as null.
//
// Handles are tagged with the scope that created them. There is no tracing
// collector: when the pool cannot serve a request, the manager sweeps the
// handle table for zombies (blocks whose creating scope has exited or been
// superseded) and reclaims them before asking the pool to grow.
package auxmem

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/pool"
)

var log = logrus.WithField("component", "auxmem")

const (
	freeListNr = 256
	freeBits   = 64
)

type block struct {
	scopeId  int32
	scopeNr  cpu.Lon
	used     bool
	size     cpu.Wrd
	length   cpu.Wrd
	arrIndex int32
	mem      *pool.Block
}

// Manager is one aux memory manager instance.
type Manager struct {
	blocks    []block
	processId int
	lastAsg   cpu.Mbl
	pool      *pool.Pool
}

// Init creates the manager with its backing pool. blockMax is the starting
// handle table size; the table doubles on pressure.
func Init(processId int, blockMax cpu.Mbl, units, chunkUnits, unitSize cpu.Wrd) (*Manager, error) {
	if blockMax < 2 {
		blockMax = 2
	}
	p, err := pool.New(units, chunkUnits, unitSize, freeListNr, freeBits, processId)
	if err != nil {
		return nil, err
	}
	return &Manager{
		blocks:    make([]block, blockMax),
		processId: processId,
		pool:      p,
	}, nil
}

// Terminate drops the handle table and the backing pool.
func (m *Manager) Terminate() {
	m.blocks = nil
	if m.pool != nil {
		m.pool.Destroy()
	}
}

// Pool exposes the backing pool (pressure inspection in tests and stats).
func (m *Manager) Pool() *pool.Pool { return m.pool }

// BlockMax returns the current handle table size.
func (m *Manager) BlockMax() cpu.Mbl { return cpu.Mbl(len(m.blocks)) }

func (m *Manager) extendHandlers() bool {
	grown := make([]block, len(m.blocks)*2)
	copy(grown, m.blocks)
	m.blocks = grown
	return true
}

// getHandler finds a free handle, searching forward from the last assigned
// one before restarting at 1. Handle 0 is never assigned.
func (m *Manager) getHandler(scopeId int32, scopeNr cpu.Lon) (cpu.Mbl, bool) {
	n := cpu.Mbl(len(m.blocks))
	for b := m.lastAsg + 1; b < n; b++ {
		if !m.blocks[b].used {
			m.assign(b, scopeId, scopeNr)
			return b, true
		}
	}
	for b := cpu.Mbl(1); b <= m.lastAsg && b < n; b++ {
		if !m.blocks[b].used {
			m.assign(b, scopeId, scopeNr)
			return b, true
		}
	}
	prev := n
	if !m.extendHandlers() {
		return 0, false
	}
	m.assign(prev, scopeId, scopeNr)
	return prev, true
}

func (m *Manager) assign(b cpu.Mbl, scopeId int32, scopeNr cpu.Lon) {
	m.blocks[b] = block{scopeId: scopeId, scopeNr: scopeNr, used: true, arrIndex: -1}
	m.lastAsg = b
}

// EmptyAlloc reserves a handle with no storage.
func (m *Manager) EmptyAlloc(scopeId int32, scopeNr cpu.Lon) (cpu.Mbl, *excep.Error) {
	b, ok := m.getHandler(scopeId, scopeNr)
	if !ok {
		return 0, excep.Throw(excep.MemoryAllocationFailure, strconv.Itoa(len(m.blocks)))
	}
	return b, nil
}

// Alloc reserves a handle with size bytes of storage. arrIndex links array
// metadata, -1 for strings.
//
// Under pool pressure the handle table is swept for zombies first: a zombie
// whose storage fits the request in [size, 2*size] keeps its storage and
// its handle number, only the handle fields are reassigned. Anything else
// reclaimable is released for coalescing, and only then may the pool grow.
func (m *Manager) Alloc(scopeId int32, scopeNr cpu.Lon, size cpu.Wrd, arrIndex int32) (cpu.Mbl, *excep.Error) {
	if size < 1 {
		size = 1
	}
	mem := m.pool.Allocate(size, m.processId, false)
	if mem == nil {
		if b := m.sweep(scopeId, scopeNr, size, true); b != 0 {
			m.blocks[b].arrIndex = arrIndex
			return b, nil
		}
		if mem = m.pool.Allocate(size, m.processId, false); mem == nil {
			mem = m.pool.Allocate(size, m.processId, true)
		}
		if mem == nil {
			return 0, excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(size), 10))
		}
	}
	b, ok := m.getHandler(scopeId, scopeNr)
	if !ok {
		m.pool.Free(mem)
		return 0, excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(size), 10))
	}
	blk := &m.blocks[b]
	blk.size = size
	blk.length = 0
	blk.arrIndex = arrIndex
	blk.mem = mem
	return b, nil
}

// ForcedAlloc reserves the exact handle requested. The loader replays
// compile-time block numbers through it.
func (m *Manager) ForcedAlloc(scopeId int32, scopeNr cpu.Lon, size cpu.Wrd, arrIndex int32, b cpu.Mbl) *excep.Error {
	if size < 1 {
		size = 1
	}
	if b <= 0 {
		return excep.Throw(excep.InvalidMemoryBlock, strconv.FormatInt(int64(b), 10))
	}
	for cpu.Mbl(len(m.blocks)) <= b {
		if !m.extendHandlers() {
			return excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(b), 10))
		}
	}
	if m.blocks[b].used {
		return excep.Throw(excep.InvalidMemoryBlock, strconv.FormatInt(int64(b), 10))
	}
	mem := m.allocStorage(scopeId, scopeNr, size)
	if mem == nil {
		return excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(size), 10))
	}
	m.blocks[b] = block{scopeId: scopeId, scopeNr: scopeNr, used: true, size: size, arrIndex: arrIndex, mem: mem}
	if m.lastAsg < b {
		m.lastAsg = b
	}
	return nil
}

// sweep reclaims zombie blocks under allocation pressure. With reuse, a
// zombie sized in [size, 2*size] keeps storage and handle: the handle
// fields are reassigned to the current scope and its number returned.
// Every other zombie is released so the pool can coalesce.
func (m *Manager) sweep(scopeId int32, scopeNr cpu.Lon, size cpu.Wrd, reuse bool) cpu.Mbl {
	var fit cpu.Mbl
	for b := cpu.Mbl(1); b < cpu.Mbl(len(m.blocks)); b++ {
		blk := &m.blocks[b]
		if !blk.used || blk.mem == nil || !m.IsZombie(b, scopeId, scopeNr) {
			continue
		}
		if reuse && fit == 0 && blk.size >= size && blk.size <= 2*size {
			fit = b
			continue
		}
		log.Tracef("aux(process=%d): zombie %d released (scope %d/%d, size %d)",
			m.processId, b, blk.scopeId, blk.scopeNr, blk.size)
		m.pool.Free(blk.mem)
		*blk = block{}
	}
	if fit == 0 {
		return 0
	}
	if mem, ok := m.pool.Reallocate(m.blocks[fit].mem, size, false); ok {
		log.Tracef("aux(process=%d): zombie %d reused in place (size %d)", m.processId, fit, size)
		m.blocks[fit] = block{scopeId: scopeId, scopeNr: scopeNr, used: true, size: size, arrIndex: -1, mem: mem}
		if m.lastAsg < fit {
			m.lastAsg = fit
		}
		return fit
	}
	m.pool.Free(m.blocks[fit].mem)
	m.blocks[fit] = block{}
	return 0
}

// allocStorage takes storage from the pool, releasing zombies before the
// pool is allowed to grow. Used by the paths that must not recycle handles.
func (m *Manager) allocStorage(scopeId int32, scopeNr cpu.Lon, size cpu.Wrd) *pool.Block {
	if mem := m.pool.Allocate(size, m.processId, false); mem != nil {
		return mem
	}
	m.sweep(scopeId, scopeNr, size, false)
	if mem := m.pool.Allocate(size, m.processId, false); mem != nil {
		return mem
	}
	return m.pool.Allocate(size, m.processId, true)
}

// Realloc resizes the storage of a block.
func (m *Manager) Realloc(scopeId int32, scopeNr cpu.Lon, b cpu.Mbl, size cpu.Wrd) *excep.Error {
	if size < 1 {
		size = 1
	}
	if !m.IsValid(b) {
		return excep.Throw(excep.InvalidMemoryBlock, strconv.FormatInt(int64(b), 10))
	}
	blk := &m.blocks[b]
	if blk.mem == nil {
		mem := m.allocStorage(scopeId, scopeNr, size)
		if mem == nil {
			return excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(size), 10))
		}
		blk.mem = mem
		blk.size = size
		return nil
	}
	mem, ok := m.pool.Reallocate(blk.mem, size, true)
	if !ok {
		return excep.Throw(excep.MemoryAllocationFailure, strconv.FormatInt(int64(size), 10))
	}
	blk.mem = mem
	blk.size = size
	return nil
}

// Free releases handle and storage.
func (m *Manager) Free(b cpu.Mbl) {
	if !m.IsValid(b) {
		return
	}
	blk := &m.blocks[b]
	if blk.mem != nil {
		m.pool.Free(blk.mem)
	}
	*blk = block{}
}

// Clear drops the storage but keeps the handle.
func (m *Manager) Clear(b cpu.Mbl) {
	if !m.IsValid(b) {
		return
	}
	blk := &m.blocks[b]
	if blk.mem != nil {
		m.pool.Free(blk.mem)
		blk.mem = nil
	}
	blk.size = 0
	blk.length = 0
}

// Copy fills the block with src and refreshes its length.
func (m *Manager) Copy(b cpu.Mbl, src []byte) {
	data := m.CharPtr(b)
	copy(data, src)
	m.SetLen(b, cpu.Wrd(len(src)))
}

// CharPtr returns the data bytes of a block.
func (m *Manager) CharPtr(b cpu.Mbl) []byte {
	if m.blocks[b].mem == nil {
		return nil
	}
	return m.blocks[b].mem.Bytes()
}

// SwapPtr exchanges the storage of two blocks (string move support).
func (m *Manager) SwapPtr(a, b cpu.Mbl) {
	ba, bb := &m.blocks[a], &m.blocks[b]
	ba.mem, bb.mem = bb.mem, ba.mem
	ba.size, bb.size = bb.size, ba.size
	ba.length, bb.length = bb.length, ba.length
}

// IsValid reports whether the handle is inside the table and in use.
func (m *Manager) IsValid(b cpu.Mbl) bool {
	return b > 0 && b < cpu.Mbl(len(m.blocks)) && m.blocks[b].used
}

// IsZombie reports whether a block's creating scope is dead relative to the
// given running scope: created deeper, or at the same depth under another
// activation.
func (m *Manager) IsZombie(b cpu.Mbl, scopeId int32, scopeNr cpu.Lon) bool {
	blk := &m.blocks[b]
	return blk.scopeId > scopeId || (blk.scopeId == scopeId && blk.scopeNr != scopeNr)
}

// ZombieCount counts live blocks that are zombies for the given scope.
func (m *Manager) ZombieCount(scopeId int32, scopeNr cpu.Lon) int {
	n := 0
	for b := cpu.Mbl(1); b < cpu.Mbl(len(m.blocks)); b++ {
		if m.blocks[b].used && m.IsZombie(b, scopeId, scopeNr) {
			n++
		}
	}
	return n
}

func (m *Manager) ScopeId(b cpu.Mbl) int32    { return m.blocks[b].scopeId }
func (m *Manager) ScopeNr(b cpu.Mbl) cpu.Lon  { return m.blocks[b].scopeNr }
func (m *Manager) GetLen(b cpu.Mbl) cpu.Wrd   { return m.blocks[b].length }
func (m *Manager) GetSize(b cpu.Mbl) cpu.Wrd  { return m.blocks[b].size }
func (m *Manager) ArrIndex(b cpu.Mbl) int32   { return m.blocks[b].arrIndex }
func (m *Manager) SetLen(b cpu.Mbl, l cpu.Wrd) { m.blocks[b].length = l }
func (m *Manager) SetArrIndex(b cpu.Mbl, i int32) { m.blocks[b].arrIndex = i }
