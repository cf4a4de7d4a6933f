package vrm

import (
	"bytes"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// String opcode handlers. Destination handles live in machine memory, so
// every operation that can reallocate reads the handle, runs the string
// computer against a local copy and writes the handle back.

// mblArg reads the block handle stored at address argument i.
func (m *Machine) mblArg(it *instr, i int) (cpu.Mbl, loc, *excep.Error) {
	l, err := m.argLoc(it, i)
	if err != nil {
		return 0, loc{}, err
	}
	b, err := m.ldMbl(l)
	if err != nil {
		return 0, loc{}, err
	}
	return b, l, nil
}

func (m *Machine) checkStr(b cpu.Mbl) *excep.Error {
	if b == 0 || !m.aux.IsValid(b) {
		return m.throwf(excep.InvalidStringBlock, strconv.FormatInt(int64(b), 10))
	}
	return nil
}

func hStrCmp(f func(int) bool) handler {
	return func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s1, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		s2, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		if err := m.checkStr(s1); err != nil {
			return err
		}
		if err := m.checkStr(s2); err != nil {
			return err
		}
		var r int8
		if f(bytes.Compare(m.stc.Bytes(s1), m.stc.Bytes(s2))) {
			r = 1
		}
		return m.st1(d, r)
	}
}

// strOutOp runs f against the destination handle of argument 0 and writes
// the handle back.
func strOutOp(f func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error) handler {
	return func(m *Machine, it *instr) *excep.Error {
		des, dl, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		if err := f(m, it, &des); err != nil {
			return err
		}
		return m.stMbl(dl, des)
	}
}

// wrdArg reads a word operand: the inline literal for value arguments, the
// addressed word otherwise.
func (m *Machine) wrdArg(it *instr, i int) (cpu.Wrd, *excep.Error) {
	if !it.args[i].addr {
		return cpu.Wrd(it.args[i].lit), nil
	}
	l, err := m.argLoc(it, i)
	if err != nil {
		return 0, err
	}
	return m.ldWrd(l)
}

func registerStrHandlers(h *[cpu.InstructionNr]handler) {
	h[cpu.SEMP] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.stc.SEMP(des)
	})
	h[cpu.SCOPY] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.stc.SCOPY(des, src)
	})
	h[cpu.SSWCP] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.stc.SSWCP(des, src)
	})
	h[cpu.SLEN] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var n cpu.Wrd
		if err := m.stc.SLEN(&n, s); err != nil {
			return err
		}
		return m.stWrd(d, n)
	}
	h[cpu.SMID] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		pos, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		n, err := m.wrdArg(it, 3)
		if err != nil {
			return err
		}
		return m.stc.SMID(des, s, pos, n)
	})
	h[cpu.SINDX] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		idx, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		var r cpu.Ref
		if err := m.stc.SINDX(&r, s, idx); err != nil {
			return err
		}
		return m.stRef(d, r)
	}
	oneLenOp := func(f func(c *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error) handler {
		return strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
			s, _, err := m.mblArg(it, 1)
			if err != nil {
				return err
			}
			n, err := m.wrdArg(it, 2)
			if err != nil {
				return err
			}
			return f(m, des, s, n)
		})
	}
	h[cpu.SRGHT] = oneLenOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
		return m.stc.SRGHT(des, s, n)
	})
	h[cpu.SLEFT] = oneLenOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
		return m.stc.SLEFT(des, s, n)
	})
	h[cpu.SCUTR] = oneLenOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
		return m.stc.SCUTR(des, s, n)
	})
	h[cpu.SCUTL] = oneLenOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
		return m.stc.SCUTL(des, s, n)
	})
	h[cpu.SREPL] = oneLenOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
		return m.stc.SREPL(des, s, n)
	})
	h[cpu.SCONC] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s1, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		s2, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SCONC(des, s1, s2)
	})
	h[cpu.SMVCO] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.stc.SMVCO(des, src)
	})
	h[cpu.SMVRC] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.stc.SMVRC(des, src)
	})
	h[cpu.SFIND] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		sub, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		beg, err := m.wrdArg(it, 3)
		if err != nil {
			return err
		}
		var pos cpu.Wrd
		if err := m.stc.SFIND(&pos, s, sub, beg); err != nil {
			return err
		}
		return m.stWrd(d, pos)
	}
	h[cpu.SSUBS] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		old, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		repl, _, err := m.mblArg(it, 3)
		if err != nil {
			return err
		}
		return m.stc.SSUBS(des, s, old, repl)
	})
	oneSrcOp := func(f func(c *Machine, des *cpu.Mbl, s cpu.Mbl) *excep.Error) handler {
		return strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
			s, _, err := m.mblArg(it, 1)
			if err != nil {
				return err
			}
			return f(m, des, s)
		})
	}
	h[cpu.STRIM] = oneSrcOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl) *excep.Error { return m.stc.STRIM(des, s) })
	h[cpu.SUPPR] = oneSrcOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl) *excep.Error { return m.stc.SUPPR(des, s) })
	h[cpu.SLOWR] = oneSrcOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl) *excep.Error { return m.stc.SLOWR(des, s) })
	justOp := func(f func(c *Machine, des *cpu.Mbl, s cpu.Mbl, w cpu.Wrd, fill cpu.Chr) *excep.Error) handler {
		return strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
			s, _, err := m.mblArg(it, 1)
			if err != nil {
				return err
			}
			w, err := m.wrdArg(it, 2)
			if err != nil {
				return err
			}
			fl, err := m.argLoc(it, 3)
			if err != nil {
				return err
			}
			fill, err := m.ld1(fl)
			if err != nil {
				return err
			}
			return f(m, des, s, w, fill)
		})
	}
	h[cpu.SLJUS] = justOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, w cpu.Wrd, fill cpu.Chr) *excep.Error {
		return m.stc.SLJUS(des, s, w, fill)
	})
	h[cpu.SRJUS] = justOp(func(m *Machine, des *cpu.Mbl, s cpu.Mbl, w cpu.Wrd, fill cpu.Chr) *excep.Error {
		return m.stc.SRJUS(des, s, w, fill)
	})
	boolTwoStr := func(f func(c *Machine, res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error) handler {
		return func(m *Machine, it *instr) *excep.Error {
			d, err := m.argLoc(it, 0)
			if err != nil {
				return err
			}
			s1, _, err := m.mblArg(it, 1)
			if err != nil {
				return err
			}
			s2, _, err := m.mblArg(it, 2)
			if err != nil {
				return err
			}
			var r cpu.Bol
			if err := f(m, &r, s1, s2); err != nil {
				return err
			}
			return m.st1(d, r)
		}
	}
	h[cpu.SMATC] = boolTwoStr(func(m *Machine, r *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error { return m.stc.SMATC(r, s1, s2) })
	h[cpu.SLIKE] = boolTwoStr(func(m *Machine, r *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error { return m.stc.SLIKE(r, s1, s2) })
	h[cpu.SSTWI] = boolTwoStr(func(m *Machine, r *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error { return m.stc.SSTWI(r, s1, s2) })
	h[cpu.SENWI] = boolTwoStr(func(m *Machine, r *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error { return m.stc.SENWI(r, s1, s2) })
	boolOneStr := func(f func(c *Machine, res *cpu.Bol, s cpu.Mbl) *excep.Error) handler {
		return func(m *Machine, it *instr) *excep.Error {
			d, err := m.argLoc(it, 0)
			if err != nil {
				return err
			}
			s, _, err := m.mblArg(it, 1)
			if err != nil {
				return err
			}
			var r cpu.Bol
			if err := f(m, &r, s); err != nil {
				return err
			}
			return m.st1(d, r)
		}
	}
	h[cpu.SISBO] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISBO(r, s) })
	h[cpu.SISCH] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISCH(r, s) })
	h[cpu.SISSH] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISSH(r, s) })
	h[cpu.SISIN] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISIN(r, s) })
	h[cpu.SISLO] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISLO(r, s) })
	h[cpu.SISFL] = boolOneStr(func(m *Machine, r *cpu.Bol, s cpu.Mbl) *excep.Error { return m.stc.SISFL(r, s) })

	// String parses.
	h[cpu.ST2BO] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Bol
		if err := m.stc.SST2B(&v, s); err != nil {
			return err
		}
		return m.st1(d, v)
	}
	h[cpu.ST2CH] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Chr
		if err := m.stc.SST2C(&v, s); err != nil {
			return err
		}
		return m.st1(d, v)
	}
	h[cpu.ST2SH] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Shr
		if err := m.stc.SST2W(&v, s); err != nil {
			return err
		}
		return m.st2(d, v)
	}
	h[cpu.ST2IN] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Int
		if err := m.stc.SST2I(&v, s); err != nil {
			return err
		}
		return m.st4(d, v)
	}
	h[cpu.ST2LO] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Lon
		if err := m.stc.SST2L(&v, s); err != nil {
			return err
		}
		return m.st8(d, v)
	}
	h[cpu.ST2FL] = func(m *Machine, it *instr) *excep.Error {
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		var v cpu.Flo
		if err := m.stc.SST2F(&v, s); err != nil {
			return err
		}
		return m.stFlo(d, v)
	}

	// Default and format-driven renderings.
	h[cpu.BO2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld1(s)
		if err != nil {
			return err
		}
		return m.stc.SBO2S(des, v)
	})
	h[cpu.CH2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld1(s)
		if err != nil {
			return err
		}
		return m.stc.SCH2S(des, v)
	})
	h[cpu.SH2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld2(s)
		if err != nil {
			return err
		}
		return m.stc.SSH2S(des, v)
	})
	h[cpu.IN2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld4(s)
		if err != nil {
			return err
		}
		return m.stc.SIN2S(des, v)
	})
	h[cpu.LO2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld8(s)
		if err != nil {
			return err
		}
		return m.stc.SLO2S(des, v)
	})
	h[cpu.FL2ST] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(s)
		if err != nil {
			return err
		}
		return m.stc.SFL2S(des, v)
	})
	h[cpu.CHFMT] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld1(s)
		if err != nil {
			return err
		}
		f, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SCHFM(des, v, f)
	})
	h[cpu.SHFMT] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld2(s)
		if err != nil {
			return err
		}
		f, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SSHFM(des, v, f)
	})
	h[cpu.INFMT] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld4(s)
		if err != nil {
			return err
		}
		f, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SINFM(des, v, f)
	})
	h[cpu.LOFMT] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ld8(s)
		if err != nil {
			return err
		}
		f, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SLOFM(des, v, f)
	})
	h[cpu.FLFMT] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(s)
		if err != nil {
			return err
		}
		f, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.stc.SFLFM(des, v, f)
	})
}
