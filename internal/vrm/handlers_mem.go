package vrm

import (
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

func locAdd(l loc, delta cpu.Wrd) loc {
	l.off += delta
	return l
}

func registerMemHandlers(h *[cpu.InstructionNr]handler) {
	h[cpu.REFOF] = hREFOF
	h[cpu.REFAD] = hREFAD
	h[cpu.REFER] = hREFER
	h[cpu.COPY] = hCOPY
	h[cpu.CLEAR] = hCLEAR
	h[cpu.STACK] = hSTACK
	h[cpu.JMP] = hJMP
	h[cpu.JMPTR] = hJMPTR
	h[cpu.JMPFL] = hJMPFL

	// Decoder patches: each arms the decode mode of one argument slot of
	// the immediately following instruction, restored after it executes.
	decoderOp := func(slot int, mode cpu.DecMode) handler {
		return func(m *Machine, it *instr) *excep.Error {
			m.next[slot] = mode
			return nil
		}
	}
	for i := 0; i < 4; i++ {
		h[cpu.DAGV1+cpu.Icd(i)] = decoderOp(i, cpu.GlobVar)
		h[cpu.DAGI1+cpu.Icd(i)] = decoderOp(i, cpu.GlobInd)
		h[cpu.DALI1+cpu.Icd(i)] = decoderOp(i, cpu.LoclInd)
	}

	h[cpu.RPBEG] = hRPBEG
	h[cpu.RPLOF] = hRPLOF
	h[cpu.RPLOD] = hRPLOD
	h[cpu.RPSTR] = hRPSTR
	h[cpu.RPARR] = hRPARR
	h[cpu.RPEND] = hRPEND
	h[cpu.BIBEG] = hBIBEG
	h[cpu.BILOF] = hBILOF
	h[cpu.BISTR] = hBISTR
	h[cpu.BIARR] = hBIARR
	h[cpu.BIEND] = hBIEND
}

// hREFOF stores a reference to argument 1 plus a literal offset.
func hREFOF(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	r, err := m.argAsRef(it, 1)
	if err != nil {
		return err
	}
	r.Offset += cpu.Wrd(it.args[2].lit)
	return m.stRef(d, r)
}

// hREFAD advances the stored reference by a literal offset.
func hREFAD(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	r, err := m.ldRef(d)
	if err != nil {
		return err
	}
	r.Offset += cpu.Wrd(it.args[1].lit)
	return m.stRef(d, r)
}

// hREFER stores a reference to argument 1.
func hREFER(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	r, err := m.argAsRef(it, 1)
	if err != nil {
		return err
	}
	return m.stRef(d, r)
}

func hCOPY(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	s, err := m.argLoc(it, 1)
	if err != nil {
		return err
	}
	size := cpu.Wrd(it.args[2].lit)
	src, err := m.view(s, size)
	if err != nil {
		return err
	}
	dst, err := m.view(d, size)
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func hCLEAR(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	size := cpu.Wrd(it.args[1].lit)
	dst, err := m.view(d, size)
	if err != nil {
		return err
	}
	for i := range dst {
		dst[i] = 0
	}
	return nil
}

// hSTACK reserves the local frame: the stack grows to BP plus the literal
// frame size. Resolved locations are buffer relative, so the reallocation
// needs no pointer re-encoding pass.
func hSTACK(m *Machine, it *instr) *excep.Error {
	n := cpu.Wrd(it.args[0].lit)
	if n < 0 {
		return m.throwf(excep.StackOverflow, strconv.FormatInt(int64(n), 10))
	}
	m.growStack(cpu.Wrd(m.bp) + n)
	return nil
}

func hJMP(m *Machine, it *instr) *excep.Error {
	m.ip += cpu.Adr(it.args[0].lit)
	m.jumped = true
	return nil
}

func hJMPTR(m *Machine, it *instr) *excep.Error {
	l, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	v, err := m.ld1(l)
	if err != nil {
		return err
	}
	if v != 0 {
		m.ip += cpu.Adr(it.args[1].lit)
		m.jumped = true
	}
	return nil
}

func hJMPFL(m *Machine, it *instr) *excep.Error {
	l, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	v, err := m.ld1(l)
	if err != nil {
		return err
	}
	if v == 0 {
		m.ip += cpu.Adr(it.args[1].lit)
		m.jumped = true
	}
	return nil
}

// Block replication: deep copy of a composite value whose strings and
// dynamic arrays need their own allocations. RPBEG pins the base cursors,
// RPLOF/RPLOD push the nesting path, RPSTR/RPARR enumerate the Cartesian
// product of the path and copy the innermost sub-blocks.

func hRPBEG(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	s, err := m.argLoc(it, 1)
	if err != nil {
		return err
	}
	m.rpDst = d
	m.rpSrc = s
	m.rpRules = m.rpRules[:0]
	return nil
}

func hRPLOF(m *Machine, it *instr) *excep.Error {
	off, err := m.wrdArg(it, 0)
	if err != nil {
		return err
	}
	if off < 0 {
		return m.throwf(excep.ReplicationRuleNegative)
	}
	m.rpRules = append(m.rpRules, rpRule{mode: rpFixed, baseOffset: off, geom: cpu.Agx(it.args[1].lit)})
	return nil
}

func hRPLOD(m *Machine, it *instr) *excep.Error {
	off, err := m.wrdArg(it, 0)
	if err != nil {
		return err
	}
	if off < 0 {
		return m.throwf(excep.ReplicationRuleNegative)
	}
	m.rpRules = append(m.rpRules, rpRule{mode: rpDynamic, baseOffset: off})
	return nil
}

func hRPSTR(m *Machine, it *instr) *excep.Error {
	return m.rpWalk(0, m.rpSrc, m.rpDst, cpu.Wrd(it.args[0].lit), true)
}

func hRPARR(m *Machine, it *instr) *excep.Error {
	return m.rpWalk(0, m.rpSrc, m.rpDst, cpu.Wrd(it.args[0].lit), false)
}

func hRPEND(m *Machine, it *instr) *excep.Error {
	m.rpRules = m.rpRules[:0]
	return nil
}

// rpWalk descends the rule vector, fanning out over every element of each
// array on the path, and copies the sub-block at the leaf offset.
func (m *Machine) rpWalk(rule int, src, dst loc, offset cpu.Wrd, forString bool) *excep.Error {
	if rule == len(m.rpRules) {
		return m.rpLeaf(src, dst, offset, forString)
	}
	r := m.rpRules[rule]
	switch r.mode {
	case rpFixed:
		elems, err := m.arc.FixGetElements(r.geom)
		if err != nil {
			return err
		}
		cell, err := m.arc.FixGetCellSize(r.geom)
		if err != nil {
			return err
		}
		for i := cpu.Wrd(0); i < elems; i++ {
			if err := m.rpWalk(rule+1,
				locAdd(src, r.baseOffset+i*cell),
				locAdd(dst, r.baseOffset+i*cell), offset, forString); err != nil {
				return err
			}
		}
	case rpDynamic:
		srcBlk, err := m.ldMbl(locAdd(src, r.baseOffset))
		if err != nil {
			return err
		}
		// The outer byte copy aliased the handle; replace it with a
		// fresh deep block before descending.
		var dstBlk cpu.Mbl
		if err := m.arc.ACOPY(&dstBlk, srcBlk); err != nil {
			return err
		}
		if err := m.stMbl(locAdd(dst, r.baseOffset), dstBlk); err != nil {
			return err
		}
		elems, err := m.arc.DynGetElements(srcBlk)
		if err != nil {
			return err
		}
		cell, err := m.arc.DynGetCellSize(srcBlk)
		if err != nil {
			return err
		}
		for i := cpu.Wrd(0); i < elems; i++ {
			if err := m.rpWalk(rule+1,
				loc{reg: regBlock, blk: srcBlk, off: i * cell},
				loc{reg: regBlock, blk: dstBlk, off: i * cell}, offset, forString); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Machine) rpLeaf(src, dst loc, offset cpu.Wrd, forString bool) *excep.Error {
	srcBlk, err := m.ldMbl(locAdd(src, offset))
	if err != nil {
		return err
	}
	var dstBlk cpu.Mbl
	if forString {
		if err := m.stc.SCOPY(&dstBlk, srcBlk); err != nil {
			return err
		}
	} else {
		if err := m.arc.ACOPY(&dstBlk, srcBlk); err != nil {
			return err
		}
	}
	return m.stMbl(locAdd(dst, offset), dstBlk)
}

// Block initialization mirrors replication but creates empty blocks.

func hBIBEG(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	m.biDst = d
	m.biRules = m.biRules[:0]
	return nil
}

func hBILOF(m *Machine, it *instr) *excep.Error {
	off, err := m.wrdArg(it, 0)
	if err != nil {
		return err
	}
	if off < 0 {
		return m.throwf(excep.InitializationRuleNegative)
	}
	m.biRules = append(m.biRules, biRule{baseOffset: off, geom: cpu.Agx(it.args[1].lit)})
	return nil
}

func hBISTR(m *Machine, it *instr) *excep.Error {
	return m.biWalk(0, m.biDst, cpu.Wrd(it.args[0].lit), func(l loc) *excep.Error {
		var b cpu.Mbl
		if err := m.stc.SEMP(&b); err != nil {
			return err
		}
		return m.stMbl(l, b)
	})
}

func hBIARR(m *Machine, it *instr) *excep.Error {
	dimNr := cpu.Chr(it.args[1].lit)
	cellSize := cpu.Wrd(it.args[2].lit)
	return m.biWalk(0, m.biDst, cpu.Wrd(it.args[0].lit), func(l loc) *excep.Error {
		var b cpu.Mbl
		if err := m.arc.ADEMP(&b, dimNr, cellSize); err != nil {
			return err
		}
		return m.stMbl(l, b)
	})
}

func hBIEND(m *Machine, it *instr) *excep.Error {
	m.biRules = m.biRules[:0]
	return nil
}

func (m *Machine) biWalk(rule int, dst loc, offset cpu.Wrd, leaf func(loc) *excep.Error) *excep.Error {
	if rule == len(m.biRules) {
		return leaf(locAdd(dst, offset))
	}
	r := m.biRules[rule]
	elems, err := m.arc.FixGetElements(r.geom)
	if err != nil {
		return err
	}
	cell, err := m.arc.FixGetCellSize(r.geom)
	if err != nil {
		return err
	}
	for i := cpu.Wrd(0); i < elems; i++ {
		if err := m.biWalk(rule+1, locAdd(dst, r.baseOffset+i*cell), offset, leaf); err != nil {
			return err
		}
	}
	return nil
}
