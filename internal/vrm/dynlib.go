package vrm

import (
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/dynlib"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// dlParam kinds mirror the marshalling contract: scalars by value or
// through a location, strings and dynamic arrays as byte payloads with an
// optional copy-back, fixed arrays as raw windows.
type dlKind int8

const (
	dlScalarLon dlKind = iota
	dlScalarFlo
	dlRefScalar
	dlString
	dlDynArr
	dlFixArr
)

type dlParam struct {
	kind   dlKind
	lon    cpu.Lon
	flo    cpu.Flo
	typ    cpu.DataType
	l      loc
	blk    cpu.Mbl
	geom   cpu.Agx
	update bool
}

type boundLibrary struct {
	lib   dynlib.Library
	funcs map[string]int
}

func registerDlPushHandlers(h *[cpu.InstructionNr]handler) {
	pushScalar := func(w byte, typ cpu.DataType) handler {
		return func(m *Machine, it *instr) *excep.Error {
			l, err := m.argLoc(it, 0)
			if err != nil {
				return err
			}
			v, err := m.ldIntW(l, w)
			if err != nil {
				return err
			}
			m.dlParams = append(m.dlParams, dlParam{kind: dlScalarLon, lon: v, typ: typ})
			return nil
		}
	}
	h[cpu.LPUb] = pushScalar('b', cpu.TypeBoolean)
	h[cpu.LPUc] = pushScalar('c', cpu.TypeChar)
	h[cpu.LPUw] = pushScalar('w', cpu.TypeShort)
	h[cpu.LPUi] = pushScalar('i', cpu.TypeInteger)
	h[cpu.LPUl] = pushScalar('l', cpu.TypeLong)
	h[cpu.LPUf] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		v, err := m.ldFlo(l)
		if err != nil {
			return err
		}
		m.dlParams = append(m.dlParams, dlParam{kind: dlScalarFlo, flo: v, typ: cpu.TypeFloat})
		return nil
	}
	h[cpu.LPUr] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		r, err := m.ldRef(l)
		if err != nil {
			return err
		}
		pl, err := m.deref(r)
		if err != nil {
			return err
		}
		return m.dlPushRefScalar(pl)
	}
	h[cpu.LRPU] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.dlPushRefScalar(l)
	}
	h[cpu.LPUSr] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		r, err := m.ldRef(l)
		if err != nil {
			return err
		}
		pl, err := m.deref(r)
		if err != nil {
			return err
		}
		return m.dlPushString(pl, it.args[1].lit != 0)
	}
	h[cpu.LRPUS] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.dlPushString(l, it.args[1].lit != 0)
	}
	h[cpu.LPADr] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		r, err := m.ldRef(l)
		if err != nil {
			return err
		}
		pl, err := m.deref(r)
		if err != nil {
			return err
		}
		return m.dlPushDynArr(pl, it.args[1].lit != 0)
	}
	h[cpu.LRPAD] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.dlPushDynArr(l, it.args[1].lit != 0)
	}
	h[cpu.LPAFr] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		r, err := m.ldRef(l)
		if err != nil {
			return err
		}
		pl, err := m.deref(r)
		if err != nil {
			return err
		}
		return m.dlPushFixArr(pl, it.args[1].lit != 0, cpu.Agx(it.args[2].lit))
	}
	h[cpu.LRPAF] = func(m *Machine, it *instr) *excep.Error {
		l, err := m.argLoc(it, 0)
		if err != nil {
			return err
		}
		return m.dlPushFixArr(l, it.args[1].lit != 0, cpu.Agx(it.args[2].lit))
	}
}

func (m *Machine) dlPushRefScalar(l loc) *excep.Error {
	v, err := m.ld8(l)
	if err != nil {
		return err
	}
	m.dlParams = append(m.dlParams, dlParam{kind: dlRefScalar, lon: v, l: l, typ: cpu.TypeLong, update: true})
	return nil
}

func (m *Machine) dlPushString(l loc, update bool) *excep.Error {
	blk, err := m.ldMbl(l)
	if err != nil {
		return err
	}
	if err := m.checkStr(blk); err != nil {
		return err
	}
	m.dlParams = append(m.dlParams, dlParam{kind: dlString, blk: blk, l: l, typ: cpu.TypeStrBlk, update: update})
	return nil
}

func (m *Machine) dlPushDynArr(l loc, update bool) *excep.Error {
	blk, err := m.ldMbl(l)
	if err != nil {
		return err
	}
	if blk == 0 || !m.aux.IsValid(blk) {
		return m.throwf(excep.InvalidArrayBlock, strconv.FormatInt(int64(blk), 10))
	}
	m.dlParams = append(m.dlParams, dlParam{kind: dlDynArr, blk: blk, l: l, typ: cpu.TypeArrBlk, update: update})
	return nil
}

func (m *Machine) dlPushFixArr(l loc, update bool, g cpu.Agx) *excep.Error {
	m.dlParams = append(m.dlParams, dlParam{kind: dlFixArr, l: l, geom: g, typ: cpu.TypeArrBlk, update: update})
	return nil
}

// bindLibrary opens and initializes a dispatcher once per machine.
func (m *Machine) bindLibrary(name string) (*boundLibrary, *excep.Error) {
	if b, ok := m.libs[name]; ok {
		return b, nil
	}
	lib, err := dynlib.Open(name, m.cfg.DynLibPath, m.cfg.TmpLibPath)
	if err != nil {
		return nil, m.throwf(excep.DynLibInit1Failed, name)
	}
	if lib.Architecture() != cpu.Architecture {
		return nil, m.throwf(excep.DynLibArchMissmatch, name,
			strconv.Itoa(lib.Architecture()), strconv.Itoa(cpu.Architecture))
	}
	if err := lib.Init(func(msg string) { log.Debugf("dynlib %s: %s", name, msg) }); err != nil {
		return nil, m.throwf(excep.DynLibInit2Failed, name)
	}
	b := &boundLibrary{lib: lib, funcs: map[string]int{}}
	m.libs[name] = b
	return b, nil
}

func (m *Machine) closeLibraries() {
	for name, b := range m.libs {
		if !b.lib.IsSystemLibrary() {
			b.lib.Close()
		}
		delete(m.libs, name)
	}
}

// dlCall invokes call site id: marshal the pushed parameters, dispatch,
// then copy in-out strings and dynamic arrays back into their blocks.
func (m *Machine) dlCall(id cpu.Int) *excep.Error {
	if int(id) < 0 || int(id) >= len(m.prog.DlCalls) {
		return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(id)))
	}
	site := m.prog.DlCalls[id]
	b, err := m.bindLibrary(site.Library)
	if err != nil {
		return err
	}
	fid, ok := b.funcs[site.Function]
	if !ok {
		fid, ok = b.lib.Search(site.Function)
		if !ok {
			return m.throwf(excep.DynLibFunctionNotFound, site.Library, site.Function)
		}
		b.funcs[site.Function] = fid
	}

	args := make([]*dynlib.Value, len(m.dlParams))
	for i := range m.dlParams {
		p := &m.dlParams[i]
		v := &dynlib.Value{Type: p.typ, Update: p.update}
		switch p.kind {
		case dlScalarLon, dlRefScalar:
			v.Lon = p.lon
		case dlScalarFlo:
			v.Flo = p.flo
		case dlString:
			v.Bytes = append([]byte(nil), m.stc.Bytes(p.blk)...)
			v.Len = cpu.Lon(len(v.Bytes))
		case dlDynArr:
			elems, e := m.arc.DynGetElements(p.blk)
			if e != nil {
				return e
			}
			cell, e := m.arc.DynGetCellSize(p.blk)
			if e != nil {
				return e
			}
			v.Bytes = append([]byte(nil), m.aux.CharPtr(p.blk)[:elems*cell]...)
			v.Len = cpu.Lon(elems)
		case dlFixArr:
			elems, e := m.arc.FixGetElements(p.geom)
			if e != nil {
				return e
			}
			cell, e := m.arc.FixGetCellSize(p.geom)
			if e != nil {
				return e
			}
			w, e := m.view(p.l, elems*cell)
			if e != nil {
				return e
			}
			v.Bytes = append([]byte(nil), w...)
			v.Len = cpu.Lon(elems)
		}
		args[i] = v
	}

	if callErr := b.lib.Call(fid, args); callErr != nil {
		return m.throwf(excep.ExternalExecutionError, callErr.Error())
	}

	for i := range m.dlParams {
		p := &m.dlParams[i]
		v := args[i]
		switch p.kind {
		case dlRefScalar:
			if e := m.st8(p.l, v.Lon); e != nil {
				return e
			}
		case dlString:
			if !p.update {
				continue
			}
			blk := p.blk
			if e := m.stc.SCOPYData(&blk, v.Bytes); e != nil {
				return e
			}
			if e := m.stMbl(p.l, blk); e != nil {
				return e
			}
		case dlDynArr:
			if !p.update {
				continue
			}
			cell, e := m.arc.DynGetCellSize(p.blk)
			if e != nil {
				return e
			}
			if cell <= 0 {
				continue
			}
			blk := p.blk
			if e := m.arc.ADVCP(&blk, v.Bytes, cpu.Lon(cpu.Wrd(len(v.Bytes))/cell)); e != nil {
				return e
			}
			if e := m.stMbl(p.l, blk); e != nil {
				return e
			}
		case dlFixArr:
			if !p.update {
				continue
			}
			w, e := m.view(p.l, cpu.Wrd(len(v.Bytes)))
			if e != nil {
				return e
			}
			copy(w, v.Bytes)
		}
	}
	return nil
}
