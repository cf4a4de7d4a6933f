package vrm

import (
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
	"github.com/dungeonspells/dsvm/internal/sys"
)

// parmReader walks the parameter stack of one system call: direct values
// for inputs, references for strings and outputs, in push order.
type parmReader struct {
	m   *Machine
	pos int
}

func (p *parmReader) bytes(n int) ([]byte, *excep.Error) {
	if p.pos+n > len(p.m.parmSt) {
		return nil, p.m.throwf(excep.ParameterStackUnderflow)
	}
	b := p.m.parmSt[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *parmReader) bol() (cpu.Bol, *excep.Error) {
	b, err := p.bytes(1)
	if err != nil {
		return 0, err
	}
	return cpu.Bol(b[0]), nil
}

func (p *parmReader) chr() (cpu.Chr, *excep.Error) {
	b, err := p.bytes(1)
	if err != nil {
		return 0, err
	}
	return cpu.Chr(b[0]), nil
}

func (p *parmReader) shr() (cpu.Shr, *excep.Error) {
	b, err := p.bytes(2)
	if err != nil {
		return 0, err
	}
	return cpu.Shr(le16(b)), nil
}

func (p *parmReader) int_() (cpu.Int, *excep.Error) {
	b, err := p.bytes(4)
	if err != nil {
		return 0, err
	}
	return cpu.Int(le32(b)), nil
}

func (p *parmReader) lon() (cpu.Lon, *excep.Error) {
	b, err := p.bytes(8)
	if err != nil {
		return 0, err
	}
	return cpu.Lon(le64(b)), nil
}

func (p *parmReader) flo() (cpu.Flo, *excep.Error) {
	b, err := p.bytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(le64(b))), nil
}

// ref reads a pushed reference and resolves it.
func (p *parmReader) ref() (loc, *excep.Error) {
	b, err := p.bytes(cpu.RefSize)
	if err != nil {
		return loc{}, err
	}
	r := cpu.Ref{Id: cpu.Mbl(le32(b)), Offset: cpu.Wrd(le64(b[8:]))}
	return p.m.deref(r)
}

// str reads a reference to a string variable and returns handle and
// location.
func (p *parmReader) str() (cpu.Mbl, loc, *excep.Error) {
	l, err := p.ref()
	if err != nil {
		return 0, loc{}, err
	}
	b, err := p.m.ldMbl(l)
	if err != nil {
		return 0, loc{}, err
	}
	return b, l, nil
}

// strIn reads and validates an input string, returning its text.
func (p *parmReader) strIn() (string, *excep.Error) {
	b, _, err := p.str()
	if err != nil {
		return "", err
	}
	if err := p.m.checkStr(b); err != nil {
		return "", err
	}
	return p.m.stc.String(b), nil
}

// strOut writes text through a string variable reference.
func (m *Machine) strOut(b cpu.Mbl, l loc, text string) *excep.Error {
	if err := m.stc.SCOPYData(&b, []byte(text)); err != nil {
		return err
	}
	return m.stMbl(l, b)
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	return uint64(le32(b)) | uint64(le32(b[4:]))<<32
}

// sysCall dispatches one system call number against the parameter stack.
func (m *Machine) sysCall(n cpu.SysCall) *excep.Error {
	p := &parmReader{m: m}
	switch n {
	case cpu.SysProgramExit:
		m.exiting = true
		return nil
	case cpu.SysPanic:
		msg, err := p.strIn()
		if err != nil {
			return err
		}
		return m.throwf(excep.SystemPanic, msg)
	case cpu.SysDelay:
		millis, err := p.lon()
		if err != nil {
			return err
		}
		time.Sleep(time.Duration(millis) * time.Millisecond)
		return nil
	case cpu.SysExecute1, cpu.SysExecute2:
		return m.sysExecute(p, n == cpu.SysExecute2)
	case cpu.SysError, cpu.SysLastError:
		l, err := p.ref()
		if err != nil {
			return err
		}
		return m.st4(l, int32(m.lastErr))
	case cpu.SysErrorText:
		b, sl, err := p.str()
		if err != nil {
			return err
		}
		code, err := p.int_()
		if err != nil {
			return err
		}
		return m.strOut(b, sl, excep.Code(code).Text())
	case cpu.SysGetArg:
		l, err := p.ref()
		if err != nil {
			return err
		}
		arr, err := m.ldMbl(l)
		if err != nil {
			return err
		}
		if err := m.arc.GETARG(&arr, m.cfg.Args); err != nil {
			return err
		}
		return m.stMbl(l, arr)
	case cpu.SysHostSystem:
		l, err := p.ref()
		if err != nil {
			return err
		}
		return m.st4(l, int32(hostSystem()))
	case cpu.SysConsolePrint, cpu.SysConsolePrintLine, cpu.SysConsolePrintError, cpu.SysConsolePrintErrorLine:
		text, err := p.strIn()
		if err != nil {
			return err
		}
		switch n {
		case cpu.SysConsolePrint:
			m.sysc.Print(text)
		case cpu.SysConsolePrintLine:
			m.sysc.PrintLine(text)
		case cpu.SysConsolePrintError:
			m.sysc.PrintError(text)
		default:
			m.sysc.PrintErrorLine(text)
		}
		return nil
	}
	if n >= cpu.SysGetFileName && n <= cpu.SysFile2Hnd {
		return m.sysFile(p, n)
	}
	if n >= cpu.SysAbsChr && n <= cpu.SysRand {
		return m.sysMath(p, n)
	}
	if n >= cpu.SysDateValid && n <= cpu.SysTimeDiff {
		return m.sysDateTime(p, n)
	}
	return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(n)))
}

func hostSystem() int {
	// Matches the executable header convention: 1 linux, 2 windows.
	if runtime.GOOS == "windows" {
		return 2
	}
	return 1
}

// sysExecute runs an external program: the argument set arrives as one
// string or as a string array, the captured streams return through string
// references.
func (m *Machine) sysExecute(p *parmReader, argArray bool) *excep.Error {
	okL, err := p.ref()
	if err != nil {
		return err
	}
	file, err := p.strIn()
	if err != nil {
		return err
	}
	var args []string
	if argArray {
		arrL, err := p.ref()
		if err != nil {
			return err
		}
		arr, err := m.ldMbl(arrL)
		if err != nil {
			return err
		}
		args, err = m.strArrayIn(arr)
		if err != nil {
			return err
		}
	} else {
		line, err := p.strIn()
		if err != nil {
			return err
		}
		args = strings.Fields(line)
	}
	redirect, err := p.bol()
	if err != nil {
		return err
	}
	outB, outL, err := p.str()
	if err != nil {
		return err
	}
	errB, errL, err := p.str()
	if err != nil {
		return err
	}
	stdout, stderr, runErr := sys.Execute(file, args, redirect != 0)
	if runErr != nil {
		return m.st1(okL, 0)
	}
	if err := m.strOut(outB, outL, stdout); err != nil {
		return err
	}
	if err := m.strOut(errB, errL, stderr); err != nil {
		return err
	}
	return m.st1(okL, 1)
}

// strArrayIn collects the elements of a string array block.
func (m *Machine) strArrayIn(arr cpu.Mbl) ([]string, *excep.Error) {
	elems, err := m.arc.DynGetElements(arr)
	if err != nil {
		return nil, err
	}
	data := m.aux.CharPtr(arr)
	out := make([]string, 0, elems)
	for i := cpu.Wrd(0); i < elems; i++ {
		b := cpu.Mbl(le32(data[i*cpu.MblSize:]))
		if err := m.checkStr(b); err != nil {
			return nil, err
		}
		out = append(out, m.stc.String(b))
	}
	return out, nil
}
