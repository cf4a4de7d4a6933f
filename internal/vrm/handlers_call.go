package vrm

import (
	"encoding/binary"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

func registerCallHandlers(h *[cpu.InstructionNr]handler) {
	pushVal := func(size cpu.Wrd) handler {
		return func(m *Machine, it *instr) *excep.Error {
			l, err := m.argLoc(it, 0)
			if err != nil {
				return err
			}
			b, err := m.view(l, size)
			if err != nil {
				return err
			}
			m.parmSt = append(m.parmSt, b...)
			return nil
		}
	}
	h[cpu.PUSHb] = pushVal(1)
	h[cpu.PUSHc] = pushVal(1)
	h[cpu.PUSHw] = pushVal(2)
	h[cpu.PUSHi] = pushVal(4)
	h[cpu.PUSHl] = pushVal(8)
	h[cpu.PUSHf] = pushVal(8)
	h[cpu.PUSHr] = pushVal(cpu.RefSize)
	h[cpu.REFPU] = hREFPU
	h[cpu.CALL] = hCALL
	h[cpu.RET] = hRET
	h[cpu.CALLN] = hCALLN
	h[cpu.RETN] = hRETN
	h[cpu.SCALL] = hSCALL
	h[cpu.LCALL] = hLCALL
	h[cpu.SULOK] = hSULOK
	registerDlPushHandlers(h)
}

// hREFPU pushes a reference to its argument.
func hREFPU(m *Machine, it *instr) *excep.Error {
	r, err := m.argAsRef(it, 0)
	if err != nil {
		return err
	}
	var buf [cpu.RefSize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(r.Id))
	binary.LittleEndian.PutUint64(buf[8:], uint64(r.Offset))
	m.parmSt = append(m.parmSt, buf[:]...)
	return nil
}

// pushFrame saves the caller state for CALL and CALLN.
func (m *Machine) pushFrame(it *instr) {
	m.callSt = append(m.callSt, frame{
		orgIP:     m.ip,
		retIP:     m.ip + it.size,
		bp:        m.bp,
		stackSize: cpu.Wrd(len(m.stack)),
		scopeNr:   m.scopeNr,
		afBase:    m.arc.FixGetBP(),
	})
}

// hCALL transfers control to a function address, moving the parameter
// stack into the new frame.
func hCALL(m *Machine, it *instr) *excep.Error {
	m.pushFrame(it)
	if len(m.parmSt) != 0 {
		m.stack = append(m.stack, m.parmSt...)
	}
	m.bp = cpu.Adr(len(m.stack) - len(m.parmSt))
	m.ip = cpu.Adr(it.args[0].lit)
	m.parmSt = m.parmSt[:0]
	m.jumped = true
	return m.scopeUp()
}

func hRET(m *Machine, it *instr) *excep.Error {
	if len(m.callSt) == 0 {
		return m.throwf(excep.CallStackUnderflow)
	}
	f := m.callSt[len(m.callSt)-1]
	m.callSt = m.callSt[:len(m.callSt)-1]
	if f.stackSize > cpu.Wrd(len(m.stack)) {
		return m.throwf(excep.StackUnderflow)
	}
	m.stack = m.stack[:f.stackSize]
	m.ip = f.retIP
	m.bp = f.bp
	m.arc.FixSetBP(f.afBase)
	m.jumped = true
	m.scopeDown(f.scopeNr)
	return nil
}

// hCALLN calls without switching the frame base: the callee sees the
// caller's locals.
func hCALLN(m *Machine, it *instr) *excep.Error {
	m.pushFrame(it)
	if len(m.parmSt) != 0 {
		m.stack = append(m.stack, m.parmSt...)
	}
	m.ip = cpu.Adr(it.args[0].lit)
	m.parmSt = m.parmSt[:0]
	m.jumped = true
	return m.scopeUp()
}

func hRETN(m *Machine, it *instr) *excep.Error {
	if len(m.callSt) == 0 {
		return m.throwf(excep.CallStackUnderflow)
	}
	f := m.callSt[len(m.callSt)-1]
	m.callSt = m.callSt[:len(m.callSt)-1]
	m.ip = f.retIP
	m.jumped = true
	m.scopeDown(f.scopeNr)
	return nil
}

// hSULOK suppresses the scope change of the next CALL or RET, so helper
// frames can run without superseding the caller's blocks.
func hSULOK(m *Machine, it *instr) *excep.Error {
	m.scopeLocked = true
	return nil
}

func hSCALL(m *Machine, it *instr) *excep.Error {
	n := cpu.SysCall(it.args[0].lit)
	if int(n) < 0 || int(n) >= cpu.SystemCallNr {
		return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(n)))
	}
	err := m.sysCall(n)
	m.parmSt = m.parmSt[:0]
	return err
}

func hLCALL(m *Machine, it *instr) *excep.Error {
	err := m.dlCall(cpu.Int(it.args[0].lit))
	m.dlParams = m.dlParams[:0]
	m.parmSt = m.parmSt[:0]
	return err
}
