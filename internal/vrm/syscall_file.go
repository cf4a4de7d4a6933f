package vrm

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// File-system services. Operations that can fail against the host report
// through their boolean return flag instead of raising, so programs can
// probe for files.
func (m *Machine) sysFile(p *parmReader, n cpu.SysCall) *excep.Error {
	switch n {
	case cpu.SysGetFileName, cpu.SysGetFileNameNoExt, cpu.SysGetFileExtension, cpu.SysGetDirName:
		b, l, err := p.str()
		if err != nil {
			return err
		}
		path, err := p.strIn()
		if err != nil {
			return err
		}
		var out string
		switch n {
		case cpu.SysGetFileName:
			out = filepath.Base(path)
		case cpu.SysGetFileNameNoExt:
			out = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		case cpu.SysGetFileExtension:
			out = filepath.Ext(path)
		default:
			out = filepath.Dir(path)
		}
		return m.strOut(b, l, out)

	case cpu.SysFileExists, cpu.SysDirExists:
		l, err := p.ref()
		if err != nil {
			return err
		}
		path, err := p.strIn()
		if err != nil {
			return err
		}
		exists := m.sysc.FileExists(path)
		if n == cpu.SysDirExists {
			exists = m.sysc.DirExists(path)
		}
		return m.st1(l, boolByte(exists))

	case cpu.SysGetHandler:
		l, err := p.ref()
		if err != nil {
			return err
		}
		return m.st4(l, int32(m.sysc.GetHandler()))

	case cpu.SysFreeHandler:
		l, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		return m.st1(l, boolByte(m.sysc.FreeHandler(hnd) == nil))

	case cpu.SysGetFileSize:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		sizeL, err := p.ref()
		if err != nil {
			return err
		}
		path, err := p.strIn()
		if err != nil {
			return err
		}
		size, sErr := m.sysc.GetFileSize(path)
		if sErr != nil {
			return m.st1(okL, 0)
		}
		if err := m.st8(sizeL, size); err != nil {
			return err
		}
		return m.st1(okL, 1)

	case cpu.SysOpenForRead, cpu.SysOpenForWrite, cpu.SysOpenForAppend:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		path, err := p.strIn()
		if err != nil {
			return err
		}
		var opErr error
		switch n {
		case cpu.SysOpenForRead:
			opErr = m.sysc.OpenForRead(hnd, path)
		case cpu.SysOpenForWrite:
			opErr = m.sysc.OpenForWrite(hnd, path)
		default:
			opErr = m.sysc.OpenForAppend(hnd, path)
		}
		return m.st1(okL, boolByte(opErr == nil))

	case cpu.SysRead:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arrL, err := p.ref()
		if err != nil {
			return err
		}
		length, err := p.lon()
		if err != nil {
			return err
		}
		arr, err := m.ldMbl(arrL)
		if err != nil {
			return err
		}
		ok, e := m.arc.RDCH(hnd, &arr, length)
		if e != nil {
			return e
		}
		if err := m.stMbl(arrL, arr); err != nil {
			return err
		}
		return m.st1(okL, ok)

	case cpu.SysWrite:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arr, _, err := p.str()
		if err != nil {
			return err
		}
		length, err := p.lon()
		if err != nil {
			return err
		}
		ok, e := m.arc.WRCH(hnd, arr, length)
		if e != nil {
			return e
		}
		return m.st1(okL, ok)

	case cpu.SysReadAll:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arrL, err := p.ref()
		if err != nil {
			return err
		}
		arr, err := m.ldMbl(arrL)
		if err != nil {
			return err
		}
		ok, e := m.arc.RDALCH(hnd, &arr)
		if e != nil {
			return e
		}
		if err := m.stMbl(arrL, arr); err != nil {
			return err
		}
		return m.st1(okL, ok)

	case cpu.SysWriteAll:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arr, _, err := p.str()
		if err != nil {
			return err
		}
		ok, e := m.arc.WRALCH(hnd, arr)
		if e != nil {
			return e
		}
		return m.st1(okL, ok)

	case cpu.SysReadStr:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		b, l, err := p.str()
		if err != nil {
			return err
		}
		line, rErr := m.sysc.ReadLine(hnd)
		if rErr != nil {
			return m.st1(okL, 0)
		}
		if err := m.strOut(b, l, line); err != nil {
			return err
		}
		return m.st1(okL, 1)

	case cpu.SysWriteStr:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		line, err := p.strIn()
		if err != nil {
			return err
		}
		return m.st1(okL, boolByte(m.sysc.WriteLine(hnd, line) == nil))

	case cpu.SysReadStrAll:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arrL, err := p.ref()
		if err != nil {
			return err
		}
		arr, err := m.ldMbl(arrL)
		if err != nil {
			return err
		}
		ok, e := m.arc.RDALST(hnd, &arr)
		if e != nil {
			return e
		}
		if err := m.stMbl(arrL, arr); err != nil {
			return err
		}
		return m.st1(okL, ok)

	case cpu.SysWriteStrAll:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		arr, _, err := p.str()
		if err != nil {
			return err
		}
		ok, e := m.arc.WRALST(hnd, arr)
		if e != nil {
			return e
		}
		return m.st1(okL, ok)

	case cpu.SysCloseFile:
		okL, err := p.ref()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		return m.st1(okL, boolByte(m.sysc.CloseFile(hnd) == nil))

	case cpu.SysHnd2File:
		b, l, err := p.str()
		if err != nil {
			return err
		}
		hnd, err := p.int_()
		if err != nil {
			return err
		}
		path, hErr := m.sysc.Hnd2File(hnd)
		if hErr != nil {
			return m.throwf(excep.InvalidFileHandler, strconv.Itoa(int(hnd)))
		}
		return m.strOut(b, l, path)

	case cpu.SysFile2Hnd:
		l, err := p.ref()
		if err != nil {
			return err
		}
		path, err := p.strIn()
		if err != nil {
			return err
		}
		return m.st4(l, int32(m.sysc.File2Hnd(path)))
	}
	return m.throwf(excep.InvalidSystemCall, strconv.Itoa(int(n)))
}

func boolByte(v bool) int8 {
	if v {
		return 1
	}
	return 0
}
