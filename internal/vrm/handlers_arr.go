package vrm

import (
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// geomView returns the raw byte window of a fixed array at a location.
func (m *Machine) geomView(l loc, g cpu.Agx) ([]byte, *excep.Error) {
	elems, err := m.arc.FixGetElements(g)
	if err != nil {
		return nil, err
	}
	cell, err := m.arc.FixGetCellSize(g)
	if err != nil {
		return nil, err
	}
	return m.view(l, elems*cell)
}

// arrOutOp runs f against the array handle of argument 0 and writes the
// handle back.
func arrOutOp(f func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error) handler {
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

func registerArrHandlers(h *[cpu.InstructionNr]handler) {
	// Fixed arrays.
	h[cpu.AFDEF] = func(m *Machine, it *instr) *excep.Error {
		g := cpu.Agx(it.args[0].lit)
		dl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		dim, err := m.ld1(dl)
		if err != nil {
			return err
		}
		cell, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AFDEF(g, dim, cell)
	}
	h[cpu.AFSSZ] = func(m *Machine, it *instr) *excep.Error {
		g := cpu.Agx(it.args[0].lit)
		dl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		dim, err := m.ld1(dl)
		if err != nil {
			return err
		}
		size, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AFSSZ(g, dim, size)
	}
	h[cpu.AFGET] = func(m *Machine, it *instr) *excep.Error {
		g := cpu.Agx(it.args[0].lit)
		size, err := m.arc.AFGET(g, cpu.Chr(it.args[1].lit))
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		return m.stWrd(d, size)
	}
	h[cpu.AFIDX] = func(m *Machine, it *instr) *excep.Error {
		g := cpu.Agx(it.args[0].lit)
		value, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AFIDX(g, cpu.Chr(it.args[1].lit), value)
	}
	h[cpu.AFREF] = func(m *Machine, it *instr) *excep.Error {
		off, err := m.arc.AFOFN(cpu.Agx(it.args[2].lit))
		if err != nil {
			return err
		}
		r, err := m.argAsRef(it, 1)
		if err != nil {
			return err
		}
		r.Offset += off
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, r)
	}
	h[cpu.AF1RF] = func(m *Machine, it *instr) *excep.Error {
		idx, err := m.wrdArg(it, 3)
		if err != nil {
			return err
		}
		off, err := m.arc.AF1OF(cpu.Agx(it.args[2].lit), idx)
		if err != nil {
			return err
		}
		r, err := m.argAsRef(it, 1)
		if err != nil {
			return err
		}
		r.Offset += off
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, r)
	}
	h[cpu.AF1RW] = func(m *Machine, it *instr) *excep.Error {
		g := cpu.Agx(it.args[0].lit)
		indexVar := cpu.Adr(it.args[1].lit)
		mode := m.modes[1]
		exit := m.ip + cpu.Adr(it.args[2].lit)
		if err := m.arc.AF1RW(g, indexVar, mode, exit); err != nil {
			return err
		}
		if indexVar != 0 {
			l, err := m.locForMode(cpu.Wrd(indexVar), mode)
			if err != nil {
				return err
			}
			return m.stWrd(l, 0)
		}
		return nil
	}
	h[cpu.AF1FO] = func(m *Machine, it *instr) *excep.Error {
		off, exit, err := m.arc.AF1FO(cpu.Agx(it.args[2].lit))
		if err != nil {
			return err
		}
		if exit != 0 {
			m.ip = exit
			m.jumped = true
			return nil
		}
		r, err := m.argAsRef(it, 1)
		if err != nil {
			return err
		}
		r.Offset += off
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, r)
	}
	h[cpu.AF1NX] = func(m *Machine, it *instr) *excep.Error {
		addr, mode, err := m.arc.AF1NX(cpu.Agx(it.args[0].lit))
		if err != nil {
			return err
		}
		if addr != 0 {
			l, err := m.locForMode(cpu.Wrd(addr), mode)
			if err != nil {
				return err
			}
			v, err := m.ldWrd(l)
			if err != nil {
				return err
			}
			if err := m.stWrd(l, v+1); err != nil {
				return err
			}
		}
		m.ip += cpu.Adr(it.args[1].lit)
		m.jumped = true
		return nil
	}
	h[cpu.AF1SJ] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		dl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		g := cpu.Agx(it.args[2].lit)
		data, err := m.geomView(dl, g)
		if err != nil {
			return err
		}
		sep, _, err := m.mblArg(it, 3)
		if err != nil {
			return err
		}
		return m.arc.AF1SJ(des, data, g, sep)
	})
	h[cpu.AF1CJ] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		dl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		g := cpu.Agx(it.args[2].lit)
		data, err := m.geomView(dl, g)
		if err != nil {
			return err
		}
		sep, _, err := m.mblArg(it, 3)
		if err != nil {
			return err
		}
		return m.arc.AF1CJ(des, data, g, sep)
	})

	// 1-dimensional dynamic arrays.
	h[cpu.AD1EM] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.AD1EM(des, cpu.Wrd(it.args[1].lit))
	})
	h[cpu.AD1DF] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.AD1DF(des)
	})
	h[cpu.AD1AP] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		off, err := m.arc.AD1AP(arr, cpu.Wrd(it.args[2].lit))
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, cpu.BlockRef(arr, off))
	}
	h[cpu.AD1IN] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		idx, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		off, err := m.arc.AD1IN(arr, idx, cpu.Wrd(it.args[3].lit))
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, cpu.BlockRef(arr, off))
	}
	h[cpu.AD1DE] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		idx, err := m.wrdArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.AD1DE(arr, idx)
	}
	h[cpu.AD1RF] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		idx, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		off, err := m.arc.AD1OF(arr, idx)
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, cpu.BlockRef(arr, off))
	}
	h[cpu.AD1RS] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.AD1RS(des)
	})
	h[cpu.AD1RW] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		indexVar := cpu.Adr(it.args[1].lit)
		mode := m.modes[1]
		exit := m.ip + cpu.Adr(it.args[2].lit)
		if err := m.arc.AD1RW(arr, indexVar, mode, exit); err != nil {
			return err
		}
		if indexVar != 0 {
			l, err := m.locForMode(cpu.Wrd(indexVar), mode)
			if err != nil {
				return err
			}
			return m.stWrd(l, 0)
		}
		return nil
	}
	h[cpu.AD1FO] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		off, exit, err := m.arc.AD1FO(arr)
		if err != nil {
			return err
		}
		if exit != 0 {
			m.ip = exit
			m.jumped = true
			return nil
		}
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, cpu.BlockRef(arr, off))
	}
	h[cpu.AD1NX] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		addr, mode, err := m.arc.AD1NX(arr)
		if err != nil {
			return err
		}
		if addr != 0 {
			l, err := m.locForMode(cpu.Wrd(addr), mode)
			if err != nil {
				return err
			}
			v, err := m.ldWrd(l)
			if err != nil {
				return err
			}
			if err := m.stWrd(l, v+1); err != nil {
				return err
			}
		}
		m.ip += cpu.Adr(it.args[1].lit)
		m.jumped = true
		return nil
	}
	h[cpu.AD1SJ] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		sep, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AD1SJ(des, arr, sep)
	})
	h[cpu.AD1CJ] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		sep, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AD1CJ(des, arr, sep)
	})

	// Multi-dimensional dynamic arrays.
	h[cpu.ADEMP] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.ADEMP(des, cpu.Chr(it.args[1].lit), cpu.Wrd(it.args[2].lit))
	})
	h[cpu.ADDEF] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.ADDEF(des, cpu.Chr(it.args[1].lit), cpu.Wrd(it.args[2].lit))
	})
	h[cpu.ADSET] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		size, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.ADSET(des, cpu.Chr(it.args[1].lit), size)
	})
	h[cpu.ADRSZ] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.ADRSZ(des)
	})
	h[cpu.ADGET] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		size, err := m.arc.ADGET(arr, cpu.Chr(it.args[1].lit))
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		return m.stWrd(d, size)
	}
	h[cpu.ADRST] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		return m.arc.ADRST(des)
	})
	h[cpu.ADIDX] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		value, err := m.wrdArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.ADIDX(arr, cpu.Chr(it.args[1].lit), value)
	}
	h[cpu.ADREF] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		off, err := m.arc.ADOFN(arr)
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.stRef(d, cpu.BlockRef(arr, off))
	}
	h[cpu.ADSIZ] = func(m *Machine, it *instr) *excep.Error {
		arr, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		size, err := m.arc.ADSIZ(arr)
		if err != nil {
			return err
		}
		d, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		return m.stWrd(d, size)
	}

	// Copies, casts and char-array bridges.
	h[cpu.ACOPY] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.ACOPY(des, src)
	})
	h[cpu.AF2F] = func(m *Machine, it *instr) *excep.Error {
		dl, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		dg := cpu.Agx(it.args[1].lit)
		dst, err := m.geomView(dl, dg)
		if err != nil {
			return err
		}
		sl, err := m.argLoc(it, 2)
		if err != nil {
			return err
		}
		sg := cpu.Agx(it.args[3].lit)
		src, err := m.geomView(sl, sg)
		if err != nil {
			return err
		}
		return m.arc.AF2F(dst, dg, src, sg)
	}
	h[cpu.AF2D] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		sl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		sg := cpu.Agx(it.args[2].lit)
		src, err := m.geomView(sl, sg)
		if err != nil {
			return err
		}
		return m.arc.AF2D(des, src, sg)
	})
	h[cpu.AD2F] = func(m *Machine, it *instr) *excep.Error {
		dl, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		dg := cpu.Agx(it.args[1].lit)
		dst, err := m.geomView(dl, dg)
		if err != nil {
			return err
		}
		src, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.AD2F(dst, dg, src)
	}
	h[cpu.AD2D] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.AD2D(des, src)
	})
	h[cpu.TOCA] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		sl, err := m.argLoc(it, 1)
		if err != nil {
			return err
		}
		length := cpu.Wrd(it.args[2].lit)
		data, err := m.view(sl, length)
		if err != nil {
			return err
		}
		return m.arc.TOCA(des, data, length)
	})
	h[cpu.STOCA] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.STOCA(des, s)
	})
	h[cpu.ATOCA] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.ATOCA(des, src)
	})
	h[cpu.FRCA] = func(m *Machine, it *instr) *excep.Error {
		dl, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		length := cpu.Wrd(it.args[2].lit)
		dst, err := m.view(dl, length)
		if err != nil {
			return err
		}
		return m.arc.FRCA(dst, arr, length)
	}
	h[cpu.SFRCA] = strOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		arr, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.SFRCA(des, arr)
	})
	h[cpu.AFRCA] = func(m *Machine, it *instr) *excep.Error {
		des, _, err := m.mblArg(it, 0)
		if err != nil {
			return err
		}
		src, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		return m.arc.AFRCA(des, src)
	}
	h[cpu.SSPLI] = arrOutOp(func(m *Machine, it *instr, des *cpu.Mbl) *excep.Error {
		s, _, err := m.mblArg(it, 1)
		if err != nil {
			return err
		}
		sep, _, err := m.mblArg(it, 2)
		if err != nil {
			return err
		}
		return m.arc.SSPL(des, s, sep)
	})
}
