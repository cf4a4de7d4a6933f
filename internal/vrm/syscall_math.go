package vrm

import (
	"math"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/sys"
)

// Math services. Integer variants read their width from the stack, float
// variants one or two doubles; the result returns through a reference.
func (m *Machine) sysMath(p *parmReader, n cpu.SysCall) *excep.Error {
	// Single-double functions share one table.
	if fn, ok := floFuncs[n]; ok {
		l, err := p.ref()
		if err != nil {
			return err
		}
		x, err := p.flo()
		if err != nil {
			return err
		}
		return m.stFlo(l, fn(x))
	}
	switch n {
	case cpu.SysAbsChr, cpu.SysAbsShr, cpu.SysAbsInt, cpu.SysAbsLon:
		l, err := p.ref()
		if err != nil {
			return err
		}
		v, err := p.intByCall(n, cpu.SysAbsChr)
		if err != nil {
			return err
		}
		if v < 0 {
			v = -v
		}
		return m.stIntByCall(l, n, cpu.SysAbsChr, v)
	case cpu.SysAbsFlo:
		l, err := p.ref()
		if err != nil {
			return err
		}
		x, err := p.flo()
		if err != nil {
			return err
		}
		return m.stFlo(l, math.Abs(x))
	case cpu.SysMinChr, cpu.SysMinShr, cpu.SysMinInt, cpu.SysMinLon,
		cpu.SysMaxChr, cpu.SysMaxShr, cpu.SysMaxInt, cpu.SysMaxLon:
		base := cpu.SysMinChr
		max := false
		if n >= cpu.SysMaxChr {
			base = cpu.SysMaxChr
			max = true
		}
		l, err := p.ref()
		if err != nil {
			return err
		}
		a, err := p.intByCall(n, base)
		if err != nil {
			return err
		}
		b, err := p.intByCall(n, base)
		if err != nil {
			return err
		}
		r := a
		if (max && b > a) || (!max && b < a) {
			r = b
		}
		return m.stIntByCall(l, n, base, r)
	case cpu.SysMinFlo, cpu.SysMaxFlo:
		l, err := p.ref()
		if err != nil {
			return err
		}
		a, err := p.flo()
		if err != nil {
			return err
		}
		b, err := p.flo()
		if err != nil {
			return err
		}
		if n == cpu.SysMinFlo {
			return m.stFlo(l, math.Min(a, b))
		}
		return m.stFlo(l, math.Max(a, b))
	case cpu.SysLogn, cpu.SysPow:
		l, err := p.ref()
		if err != nil {
			return err
		}
		a, err := p.flo()
		if err != nil {
			return err
		}
		b, err := p.flo()
		if err != nil {
			return err
		}
		if n == cpu.SysPow {
			return m.stFlo(l, math.Pow(a, b))
		}
		return m.stFlo(l, math.Log(b)/math.Log(a))
	case cpu.SysSeed:
		seed, err := p.lon()
		if err != nil {
			return err
		}
		m.sysc.Seed(seed)
		return nil
	case cpu.SysRand:
		l, err := p.ref()
		if err != nil {
			return err
		}
		return m.stFlo(l, m.sysc.Rand())
	}
	return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(n)))
}

var floFuncs = map[cpu.SysCall]func(float64) float64{
	cpu.SysExp:   math.Exp,
	cpu.SysLn:    math.Log,
	cpu.SysLog:   math.Log10,
	cpu.SysSqrt:  math.Sqrt,
	cpu.SysCbrt:  math.Cbrt,
	cpu.SysSin:   math.Sin,
	cpu.SysCos:   math.Cos,
	cpu.SysTan:   math.Tan,
	cpu.SysAsin:  math.Asin,
	cpu.SysAcos:  math.Acos,
	cpu.SysAtan:  math.Atan,
	cpu.SysSinh:  math.Sinh,
	cpu.SysCosh:  math.Cosh,
	cpu.SysTanh:  math.Tanh,
	cpu.SysAsinh: math.Asinh,
	cpu.SysAcosh: math.Acosh,
	cpu.SysAtanh: math.Atanh,
	cpu.SysCeil:  math.Ceil,
	cpu.SysFloor: math.Floor,
	cpu.SysRound: math.Round,
}

// intByCall reads the integer width selected by the call's offset from its
// family base (chr, shr, int, lon).
func (p *parmReader) intByCall(n, base cpu.SysCall) (int64, *excep.Error) {
	switch n - base {
	case 0:
		v, err := p.chr()
		return int64(v), err
	case 1:
		v, err := p.shr()
		return int64(v), err
	case 2:
		v, err := p.int_()
		return int64(v), err
	default:
		return p.lon()
	}
}

func (m *Machine) stIntByCall(l loc, n, base cpu.SysCall, v int64) *excep.Error {
	switch n - base {
	case 0:
		return m.st1(l, int8(v))
	case 1:
		return m.st2(l, int16(v))
	case 2:
		return m.st4(l, int32(v))
	default:
		return m.st8(l, v)
	}
}

// Date and time services over the packed encodings of the host facade.
func (m *Machine) sysDateTime(p *parmReader, n cpu.SysCall) *excep.Error {
	l, err := p.ref()
	if err != nil {
		return err
	}
	switch n {
	case cpu.SysDateValid:
		y, err := p.lon()
		if err != nil {
			return err
		}
		mo, err := p.lon()
		if err != nil {
			return err
		}
		d, err := p.lon()
		if err != nil {
			return err
		}
		return m.st1(l, boolByte(sys.DateValid(y, mo, d)))
	case cpu.SysDateValue:
		y, err := p.lon()
		if err != nil {
			return err
		}
		mo, err := p.lon()
		if err != nil {
			return err
		}
		d, err := p.lon()
		if err != nil {
			return err
		}
		if !sys.DateValid(y, mo, d) {
			return m.throwf(excep.InvalidDate,
				strconv.FormatInt(y, 10)+"-"+strconv.FormatInt(mo, 10)+"-"+strconv.FormatInt(d, 10))
		}
		return m.st8(l, sys.DateValue(y, mo, d))
	case cpu.SysBegOfMonth, cpu.SysEndOfMonth:
		date, err := p.lon()
		if err != nil {
			return err
		}
		if !sys.DateIsValid(date) {
			return m.throwf(excep.InvalidDate, strconv.FormatInt(date, 10))
		}
		if n == cpu.SysBegOfMonth {
			return m.st8(l, sys.BegOfMonth(date))
		}
		return m.st8(l, sys.EndOfMonth(date))
	case cpu.SysDatePart:
		date, err := p.lon()
		if err != nil {
			return err
		}
		part, err := p.lon()
		if err != nil {
			return err
		}
		return m.st8(l, sys.DatePart(date, part))
	case cpu.SysDateAdd:
		date, err := p.lon()
		if err != nil {
			return err
		}
		days, err := p.lon()
		if err != nil {
			return err
		}
		if !sys.DateIsValid(date) {
			return m.throwf(excep.InvalidDate, strconv.FormatInt(date, 10))
		}
		return m.st8(l, sys.DateAdd(date, days))
	case cpu.SysTimeValid:
		h, err := p.lon()
		if err != nil {
			return err
		}
		mi, err := p.lon()
		if err != nil {
			return err
		}
		s, err := p.lon()
		if err != nil {
			return err
		}
		return m.st1(l, boolByte(sys.TimeValid(h, mi, s)))
	case cpu.SysTimeValue:
		h, err := p.lon()
		if err != nil {
			return err
		}
		mi, err := p.lon()
		if err != nil {
			return err
		}
		s, err := p.lon()
		if err != nil {
			return err
		}
		if !sys.TimeValid(h, mi, s) {
			return m.throwf(excep.InvalidTime,
				strconv.FormatInt(h, 10)+":"+strconv.FormatInt(mi, 10)+":"+strconv.FormatInt(s, 10))
		}
		return m.st8(l, sys.TimeValue(h, mi, s))
	case cpu.SysTimePart:
		t, err := p.lon()
		if err != nil {
			return err
		}
		part, err := p.lon()
		if err != nil {
			return err
		}
		return m.st8(l, sys.TimePart(t, part))
	case cpu.SysTimeAdd, cpu.SysNanoSecAdd:
		t, err := p.lon()
		if err != nil {
			return err
		}
		delta, err := p.lon()
		if err != nil {
			return err
		}
		if !sys.TimeIsValid(t) {
			return m.throwf(excep.InvalidTime, strconv.FormatInt(t, 10))
		}
		if n == cpu.SysTimeAdd {
			return m.st8(l, sys.TimeAdd(t, delta))
		}
		return m.st8(l, sys.NanoSecAdd(t, delta))
	case cpu.SysGetDate:
		return m.st8(l, sys.GetDate())
	case cpu.SysGetTime:
		return m.st8(l, sys.GetTime())
	case cpu.SysDateDiff:
		d1, err := p.lon()
		if err != nil {
			return err
		}
		d2, err := p.lon()
		if err != nil {
			return err
		}
		return m.st8(l, sys.DateDiff(d1, d2))
	case cpu.SysTimeDiff:
		t1, err := p.lon()
		if err != nil {
			return err
		}
		t2, err := p.lon()
		if err != nil {
			return err
		}
		return m.st8(l, sys.TimeDiff(t1, t2))
	}
	return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(n)))
}
