package vrm

import (
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// handlers is the dispatch table, indexed by instruction code.
var handlers = buildHandlers()

// Width-generic handler constructors. Integer values travel sign extended
// and store truncated, which reproduces two's-complement wraparound per
// width.

func binInt(w byte, f func(m *Machine, a, b int64) (int64, *excep.Error)) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l1, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		l2, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		a, err := m.ldIntW(l1, w)
		if err != nil {
			return err
		}
		b, err := m.ldIntW(l2, w)
		if err != nil {
			return err
		}
		r, err := f(m, a, b)
		if err != nil {
			return err
		}
		return m.stIntW(d, w, r)
	}
}

func binFlo(f func(m *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error)) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l1, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		l2, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		a, err := m.ldFlo(l1)
		if err != nil {
			return err
		}
		b, err := m.ldFlo(l2)
		if err != nil {
			return err
		}
		r, err := f(m, a, b)
		if err != nil {
			return err
		}
		return m.stFlo(d, r)
	}
}

func unInt(w byte, f func(int64) int64) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(l, w)
		if err != nil {
			return err
		}
		return m.stIntW(d, w, f(v))
	}
}

func unFlo(f func(cpu.Flo) cpu.Flo) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(l)
		if err != nil {
			return err
		}
		return m.stFlo(d, f(v))
	}
}

// incInt mutates its single operand in place.
func incInt(w byte, delta int64) handler {
	return func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(l, w)
		if err != nil {
			return err
		}
		return m.stIntW(l, w, v+delta)
	}
}

func incFlo(delta cpu.Flo) handler {
	return func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(l)
		if err != nil {
			return err
		}
		return m.stFlo(l, v+delta)
	}
}

// postInt stores the operand's previous value, then bumps the operand.
func postInt(w byte, delta int64) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(l, w)
		if err != nil {
			return err
		}
		if err := m.stIntW(d, w, v); err != nil {
			return err
		}
		return m.stIntW(l, w, v+delta)
	}
}

func postFlo(delta cpu.Flo) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(l)
		if err != nil {
			return err
		}
		if err := m.stFlo(d, v); err != nil {
			return err
		}
		return m.stFlo(l, v+delta)
	}
}

func cmpInt(w byte, f func(a, b int64) bool) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l1, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		l2, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		a, err := m.ldIntW(l1, w)
		if err != nil {
			return err
		}
		b, err := m.ldIntW(l2, w)
		if err != nil {
			return err
		}
		var r int8
		if f(a, b) {
			r = 1
		}
		return m.st1(d, r)
	}
}

func cmpFlo(f func(a, b cpu.Flo) bool) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		l1, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		l2, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		a, err := m.ldFlo(l1)
		if err != nil {
			return err
		}
		b, err := m.ldFlo(l2)
		if err != nil {
			return err
		}
		var r int8
		if f(a, b) {
			r = 1
		}
		return m.st1(d, r)
	}
}

// mv copies size bytes between two locations.
func mv(size cpu.Wrd) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
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
}

// loadLit stores the inline literal of argument 1.
func loadLit(w byte) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		v := it.args[1].lit
		if w == 'f' || w == 'l' {
			return m.st8(d, v)
		}
		return m.stIntW(d, w, v)
	}
}

// mvOpInt applies des = f(des, op) in place.
func mvOpInt(w byte, f func(m *Machine, a, b int64) (int64, *excep.Error)) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		a, err := m.ldIntW(d, w)
		if err != nil {
			return err
		}
		b, err := m.ldIntW(s, w)
		if err != nil {
			return err
		}
		r, err := f(m, a, b)
		if err != nil {
			return err
		}
		return m.stIntW(d, w, r)
	}
}

func mvOpFlo(f func(m *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error)) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		a, err := m.ldFlo(d)
		if err != nil {
			return err
		}
		b, err := m.ldFlo(s)
		if err != nil {
			return err
		}
		r, err := f(m, a, b)
		if err != nil {
			return err
		}
		return m.stFlo(d, r)
	}
}

// Arithmetic cores.

func opAdd(_ *Machine, a, b int64) (int64, *excep.Error) { return a + b, nil }
func opSub(_ *Machine, a, b int64) (int64, *excep.Error) { return a - b, nil }
func opMul(_ *Machine, a, b int64) (int64, *excep.Error) { return a * b, nil }

func opDiv(m *Machine, a, b int64) (int64, *excep.Error) {
	if b == 0 {
		return 0, m.throwf(excep.DivideByZero)
	}
	return a / b, nil
}

// opMod is the mathematical residue: non-negative for positive modulus.
func opMod(m *Machine, a, b int64) (int64, *excep.Error) {
	if b == 0 {
		return 0, m.throwf(excep.DivideByZero)
	}
	return ((a % b) + b) % b, nil
}

func opAddF(_ *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error) { return a + b, nil }
func opSubF(_ *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error) { return a - b, nil }
func opMulF(_ *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error) { return a * b, nil }

func opDivF(m *Machine, a, b cpu.Flo) (cpu.Flo, *excep.Error) {
	if b == 0 {
		return 0, m.throwf(excep.DivideByZero)
	}
	return a / b, nil
}

func shiftAmount(b int64) uint {
	if b < 0 {
		return 0
	}
	if b > 63 {
		return 63
	}
	return uint(b)
}

func opShl(_ *Machine, a, b int64) (int64, *excep.Error) { return a << shiftAmount(b), nil }
func opShr(_ *Machine, a, b int64) (int64, *excep.Error) { return a >> shiftAmount(b), nil }
func opAnd(_ *Machine, a, b int64) (int64, *excep.Error) { return a & b, nil }
func opOr(_ *Machine, a, b int64) (int64, *excep.Error)  { return a | b, nil }
func opXor(_ *Machine, a, b int64) (int64, *excep.Error) { return a ^ b, nil }

// conv registers widening/narrowing integer conversions.
func conv(dw, sw byte) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(s, sw)
		if err != nil {
			return err
		}
		return m.stIntW(d, dw, v)
	}
}

// convToBol stores 1 for any non-zero source value.
func convToBol(sw byte) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(s, sw)
		if err != nil {
			return err
		}
		var r int64
		if v != 0 {
			r = 1
		}
		return m.stIntW(d, 'b', r)
	}
}

// convToFlo widens an integer into a float.
func convToFlo(sw byte) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldIntW(s, sw)
		if err != nil {
			return err
		}
		return m.stFlo(d, cpu.Flo(v))
	}
}

// convFloInt narrows a float with a range check.
func convFloInt(dw byte, min, max int64, code excep.Code) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(s)
		if err != nil {
			return err
		}
		if v != v || v < cpu.Flo(min) || v > cpu.Flo(max) {
			return m.throwf(code, strconv.FormatFloat(float64(v), 'g', -1, 64))
		}
		return m.stIntW(d, dw, int64(v))
	}
}

func buildHandlers() [cpu.InstructionNr]handler {
	var h [cpu.InstructionNr]handler
	intW := []byte{'c', 'w', 'i', 'l'}

	// Arithmetic: the integer widths sit contiguously before the float
	// variant in every family.
	for i, w := range intW {
		d := cpu.Icd(i)
		h[cpu.NEGc+d] = unInt(w, func(v int64) int64 { return -v })
		h[cpu.ADDc+d] = binInt(w, opAdd)
		h[cpu.SUBc+d] = binInt(w, opSub)
		h[cpu.MULc+d] = binInt(w, opMul)
		h[cpu.DIVc+d] = binInt(w, opDiv)
		h[cpu.MODc+d] = binInt(w, opMod)
		h[cpu.INCc+d] = incInt(w, 1)
		h[cpu.DECc+d] = incInt(w, -1)
		h[cpu.PINCc+d] = postInt(w, 1)
		h[cpu.PDECc+d] = postInt(w, -1)
		h[cpu.BNOTc+d] = unInt(w, func(v int64) int64 { return ^v })
		h[cpu.BANDc+d] = binInt(w, opAnd)
		h[cpu.BORc+d] = binInt(w, opOr)
		h[cpu.BXORc+d] = binInt(w, opXor)
		h[cpu.SHLc+d] = binInt(w, opShl)
		h[cpu.SHRc+d] = binInt(w, opShr)
		h[cpu.MVADc+d] = mvOpInt(w, opAdd)
		h[cpu.MVSUc+d] = mvOpInt(w, opSub)
		h[cpu.MVMUc+d] = mvOpInt(w, opMul)
		h[cpu.MVDIc+d] = mvOpInt(w, opDiv)
		h[cpu.MVMOc+d] = mvOpInt(w, opMod)
		h[cpu.MVSLc+d] = mvOpInt(w, opShl)
		h[cpu.MVSRc+d] = mvOpInt(w, opShr)
		h[cpu.MVANc+d] = mvOpInt(w, opAnd)
		h[cpu.MVXOc+d] = mvOpInt(w, opXor)
		h[cpu.MVORc+d] = mvOpInt(w, opOr)
	}
	h[cpu.NEGf] = unFlo(func(v cpu.Flo) cpu.Flo { return -v })
	h[cpu.ADDf] = binFlo(opAddF)
	h[cpu.SUBf] = binFlo(opSubF)
	h[cpu.MULf] = binFlo(opMulF)
	h[cpu.DIVf] = binFlo(opDivF)
	h[cpu.INCf] = incFlo(1)
	h[cpu.DECf] = incFlo(-1)
	h[cpu.PINCf] = postFlo(1)
	h[cpu.PDECf] = postFlo(-1)
	h[cpu.MVADf] = mvOpFlo(opAddF)
	h[cpu.MVSUf] = mvOpFlo(opSubF)
	h[cpu.MVMUf] = mvOpFlo(opMulF)
	h[cpu.MVDIf] = mvOpFlo(opDivF)

	// Logical.
	h[cpu.LNOT] = unInt('b', func(v int64) int64 {
		if v == 0 {
			return 1
		}
		return 0
	})
	h[cpu.LAND] = binInt('b', func(_ *Machine, a, b int64) (int64, *excep.Error) {
		if a != 0 && b != 0 {
			return 1, nil
		}
		return 0, nil
	})
	h[cpu.LOR] = binInt('b', func(_ *Machine, a, b int64) (int64, *excep.Error) {
		if a != 0 || b != 0 {
			return 1, nil
		}
		return 0, nil
	})

	// Comparisons: b,c,w,i,l widths then float then string.
	cmpW := []byte{'b', 'c', 'w', 'i', 'l'}
	for i, w := range cmpW {
		d := cpu.Icd(i)
		h[cpu.LESb+d] = cmpInt(w, func(a, b int64) bool { return a < b })
		h[cpu.LEQb+d] = cmpInt(w, func(a, b int64) bool { return a <= b })
		h[cpu.GREb+d] = cmpInt(w, func(a, b int64) bool { return a > b })
		h[cpu.GEQb+d] = cmpInt(w, func(a, b int64) bool { return a >= b })
		h[cpu.EQUb+d] = cmpInt(w, func(a, b int64) bool { return a == b })
		h[cpu.DISb+d] = cmpInt(w, func(a, b int64) bool { return a != b })
	}
	h[cpu.LESf] = cmpFlo(func(a, b cpu.Flo) bool { return a < b })
	h[cpu.LEQf] = cmpFlo(func(a, b cpu.Flo) bool { return a <= b })
	h[cpu.GREf] = cmpFlo(func(a, b cpu.Flo) bool { return a > b })
	h[cpu.GEQf] = cmpFlo(func(a, b cpu.Flo) bool { return a >= b })
	h[cpu.EQUf] = cmpFlo(func(a, b cpu.Flo) bool { return a == b })
	h[cpu.DISf] = cmpFlo(func(a, b cpu.Flo) bool { return a != b })
	h[cpu.LESs] = hStrCmp(func(r int) bool { return r < 0 })
	h[cpu.LEQs] = hStrCmp(func(r int) bool { return r <= 0 })
	h[cpu.GREs] = hStrCmp(func(r int) bool { return r > 0 })
	h[cpu.GEQs] = hStrCmp(func(r int) bool { return r >= 0 })
	h[cpu.EQUs] = hStrCmp(func(r int) bool { return r == 0 })
	h[cpu.DISs] = hStrCmp(func(r int) bool { return r != 0 })

	// Moves and literal loads.
	h[cpu.MVb] = mv(1)
	h[cpu.MVc] = mv(1)
	h[cpu.MVw] = mv(2)
	h[cpu.MVi] = mv(4)
	h[cpu.MVl] = mv(8)
	h[cpu.MVf] = mv(8)
	h[cpu.MVr] = mv(cpu.RefSize)
	h[cpu.LOADb] = loadLit('b')
	h[cpu.LOADc] = loadLit('c')
	h[cpu.LOADw] = loadLit('w')
	h[cpu.LOADi] = loadLit('i')
	h[cpu.LOADl] = loadLit('l')
	h[cpu.LOADf] = loadLit('f')

	// Char case conversion.
	h[cpu.CUPPR] = unInt('c', func(v int64) int64 {
		if v >= 'a' && v <= 'z' {
			return v - 32
		}
		return v
	})
	h[cpu.CLOWR] = unInt('c', func(v int64) int64 {
		if v >= 'A' && v <= 'Z' {
			return v + 32
		}
		return v
	})

	// Data conversions.
	h[cpu.BO2CH] = conv('c', 'b')
	h[cpu.BO2SH] = conv('w', 'b')
	h[cpu.BO2IN] = conv('i', 'b')
	h[cpu.BO2LO] = conv('l', 'b')
	h[cpu.BO2FL] = convToFlo('b')
	h[cpu.CH2BO] = convToBol('c')
	h[cpu.CH2SH] = conv('w', 'c')
	h[cpu.CH2IN] = conv('i', 'c')
	h[cpu.CH2LO] = conv('l', 'c')
	h[cpu.CH2FL] = convToFlo('c')
	h[cpu.SH2BO] = convToBol('w')
	h[cpu.SH2CH] = conv('c', 'w')
	h[cpu.SH2IN] = conv('i', 'w')
	h[cpu.SH2LO] = conv('l', 'w')
	h[cpu.SH2FL] = convToFlo('w')
	h[cpu.IN2BO] = convToBol('i')
	h[cpu.IN2CH] = conv('c', 'i')
	h[cpu.IN2SH] = conv('w', 'i')
	h[cpu.IN2LO] = conv('l', 'i')
	h[cpu.IN2FL] = convToFlo('i')
	h[cpu.LO2BO] = convToBol('l')
	h[cpu.LO2CH] = conv('c', 'l')
	h[cpu.LO2SH] = conv('w', 'l')
	h[cpu.LO2IN] = conv('i', 'l')
	h[cpu.LO2FL] = convToFlo('l')
	h[cpu.FL2BO] = hFL2BO
	h[cpu.FL2CH] = convFloInt('c', int64(cpu.MinChr), int64(cpu.MaxChr), excep.FloatToCharConvFailure)
	h[cpu.FL2SH] = convFloInt('w', int64(cpu.MinShr), int64(cpu.MaxShr), excep.FloatToShortConvFailure)
	h[cpu.FL2IN] = convFloInt('i', int64(cpu.MinInt), int64(cpu.MaxInt), excep.FloatToIntegerConvFailure)
	h[cpu.FL2LO] = convFloInt('l', int64(cpu.MinLon), int64(cpu.MaxLon), excep.FloatToLongConvFailure)

	// String conversions live with the other string handlers.
	registerStrHandlers(&h)
	registerMemHandlers(&h)
	registerCallHandlers(&h)
	registerArrHandlers(&h)

	h[cpu.NOP] = func(*Machine, *instr) *excep.Error { return nil }
	return h
}

// hFL2BO is the only float conversion without a range check.
func hFL2BO(m *Machine, it *instr) *excep.Error {
	d, err := m.argLoc(it, 0)
	if err != nil {
		return err
	}
	s, err := m.argLoc(it, 1)
	if err != nil {
		return err
	}
	v, err := m.ldFlo(s)
	if err != nil {
		return err
	}
	var r int64
	if v != 0 {
		r = 1
	}
	return m.stIntW(d, 'b', r)
}
