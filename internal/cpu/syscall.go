package cpu

// SysCall numbers the services reachable through the SCALL instruction. The
// numbering is part of the executable format.
type SysCall int32

const (
	// System
	SysProgramExit SysCall = iota
	SysPanic
	SysDelay
	SysExecute1
	SysExecute2
	SysError
	SysErrorText
	SysLastError
	SysGetArg
	SysHostSystem
	// Console
	SysConsolePrint
	SysConsolePrintLine
	SysConsolePrintError
	SysConsolePrintErrorLine
	// File system
	SysGetFileName
	SysGetFileNameNoExt
	SysGetFileExtension
	SysGetDirName
	SysFileExists
	SysDirExists
	SysGetHandler
	SysFreeHandler
	SysGetFileSize
	SysOpenForRead
	SysOpenForWrite
	SysOpenForAppend
	SysRead
	SysWrite
	SysReadAll
	SysWriteAll
	SysReadStr
	SysWriteStr
	SysReadStrAll
	SysWriteStrAll
	SysCloseFile
	SysHnd2File
	SysFile2Hnd
	// Math
	SysAbsChr
	SysAbsShr
	SysAbsInt
	SysAbsLon
	SysAbsFlo
	SysMinChr
	SysMinShr
	SysMinInt
	SysMinLon
	SysMinFlo
	SysMaxChr
	SysMaxShr
	SysMaxInt
	SysMaxLon
	SysMaxFlo
	SysExp
	SysLn
	SysLog
	SysLogn
	SysPow
	SysSqrt
	SysCbrt
	SysSin
	SysCos
	SysTan
	SysAsin
	SysAcos
	SysAtan
	SysSinh
	SysCosh
	SysTanh
	SysAsinh
	SysAcosh
	SysAtanh
	SysCeil
	SysFloor
	SysRound
	SysSeed
	SysRand
	// Date & time
	SysDateValid
	SysDateValue
	SysBegOfMonth
	SysEndOfMonth
	SysDatePart
	SysDateAdd
	SysTimeValid
	SysTimeValue
	SysTimePart
	SysTimeAdd
	SysNanoSecAdd
	SysGetDate
	SysGetTime
	SysDateDiff
	SysTimeDiff
)

// SystemCallNr is the size of the system-call table.
const SystemCallNr = int(SysTimeDiff) + 1
