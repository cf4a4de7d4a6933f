package cpu

// Instruction codes, in binary order. The order is part of the executable
// format and must not change.
const (
	// Arithmetic
	NEGc Icd = iota
	NEGw
	NEGi
	NEGl
	NEGf
	ADDc
	ADDw
	ADDi
	ADDl
	ADDf
	SUBc
	SUBw
	SUBi
	SUBl
	SUBf
	MULc
	MULw
	MULi
	MULl
	MULf
	DIVc
	DIVw
	DIVi
	DIVl
	DIVf
	MODc
	MODw
	MODi
	MODl
	INCc
	INCw
	INCi
	INCl
	INCf
	DECc
	DECw
	DECi
	DECl
	DECf
	PINCc
	PINCw
	PINCi
	PINCl
	PINCf
	PDECc
	PDECw
	PDECi
	PDECl
	PDECf
	// Logical
	LNOT
	LAND
	LOR
	// Bitwise
	BNOTc
	BNOTw
	BNOTi
	BNOTl
	BANDc
	BANDw
	BANDi
	BANDl
	BORc
	BORw
	BORi
	BORl
	BXORc
	BXORw
	BXORi
	BXORl
	SHLc
	SHLw
	SHLi
	SHLl
	SHRc
	SHRw
	SHRi
	SHRl
	// Comparison
	LESb
	LESc
	LESw
	LESi
	LESl
	LESf
	LESs
	LEQb
	LEQc
	LEQw
	LEQi
	LEQl
	LEQf
	LEQs
	GREb
	GREc
	GREw
	GREi
	GREl
	GREf
	GREs
	GEQb
	GEQc
	GEQw
	GEQi
	GEQl
	GEQf
	GEQs
	EQUb
	EQUc
	EQUw
	EQUi
	EQUl
	EQUf
	EQUs
	DISb
	DISc
	DISw
	DISi
	DISl
	DISf
	DISs
	// Assignment
	MVb
	MVc
	MVw
	MVi
	MVl
	MVf
	MVr
	LOADb
	LOADc
	LOADw
	LOADi
	LOADl
	LOADf
	MVADc
	MVADw
	MVADi
	MVADl
	MVADf
	MVSUc
	MVSUw
	MVSUi
	MVSUl
	MVSUf
	MVMUc
	MVMUw
	MVMUi
	MVMUl
	MVMUf
	MVDIc
	MVDIw
	MVDIi
	MVDIl
	MVDIf
	MVMOc
	MVMOw
	MVMOi
	MVMOl
	MVSLc
	MVSLw
	MVSLi
	MVSLl
	MVSRc
	MVSRw
	MVSRi
	MVSRl
	MVANc
	MVANw
	MVANi
	MVANl
	MVXOc
	MVXOw
	MVXOi
	MVXOl
	MVORc
	MVORw
	MVORi
	MVORl
	// Inner block replication
	RPBEG
	RPSTR
	RPARR
	RPLOF
	RPLOD
	RPEND
	// Inner block initialization
	BIBEG
	BISTR
	BIARR
	BILOF
	BIEND
	// Memory
	REFOF
	REFAD
	REFER
	COPY
	SCOPY
	SSWCP
	ACOPY
	TOCA
	STOCA
	ATOCA
	FRCA
	SFRCA
	AFRCA
	CLEAR
	STACK
	// 1-dimensional fixed array
	AF1RF
	AF1RW
	AF1FO
	AF1NX
	AF1SJ
	AF1CJ
	// Fixed array
	AFDEF
	AFSSZ
	AFGET
	AFIDX
	AFREF
	// 1-dimensional dynamic array
	AD1EM
	AD1DF
	AD1AP
	AD1IN
	AD1DE
	AD1RF
	AD1RS
	AD1RW
	AD1FO
	AD1NX
	AD1SJ
	AD1CJ
	// Dynamic array
	ADEMP
	ADDEF
	ADSET
	ADRSZ
	ADGET
	ADRST
	ADIDX
	ADREF
	ADSIZ
	// Array casting
	AF2F
	AF2D
	AD2F
	AD2D
	// Function calls
	PUSHb
	PUSHc
	PUSHw
	PUSHi
	PUSHl
	PUSHf
	PUSHr
	REFPU
	LPUb
	LPUc
	LPUw
	LPUi
	LPUl
	LPUf
	LPUr
	LPUSr
	LPADr
	LPAFr
	LRPU
	LRPUS
	LRPAD
	LRPAF
	CALL
	RET
	CALLN
	RETN
	SCALL
	LCALL
	SULOK
	// Char
	CUPPR
	CLOWR
	// String
	SEMP
	SLEN
	SMID
	SINDX
	SRGHT
	SLEFT
	SCUTR
	SCUTL
	SCONC
	SMVCO
	SMVRC
	SFIND
	SSUBS
	STRIM
	SUPPR
	SLOWR
	SLJUS
	SRJUS
	SMATC
	SLIKE
	SREPL
	SSPLI
	SSTWI
	SENWI
	SISBO
	SISCH
	SISSH
	SISIN
	SISLO
	SISFL
	// Data conversions
	BO2CH
	BO2SH
	BO2IN
	BO2LO
	BO2FL
	BO2ST
	CH2BO
	CH2SH
	CH2IN
	CH2LO
	CH2FL
	CH2ST
	CHFMT
	SH2BO
	SH2CH
	SH2IN
	SH2LO
	SH2FL
	SH2ST
	SHFMT
	IN2BO
	IN2CH
	IN2SH
	IN2LO
	IN2FL
	IN2ST
	INFMT
	LO2BO
	LO2CH
	LO2SH
	LO2IN
	LO2FL
	LO2ST
	LOFMT
	FL2BO
	FL2CH
	FL2SH
	FL2IN
	FL2LO
	FL2ST
	FLFMT
	ST2BO
	ST2CH
	ST2SH
	ST2IN
	ST2LO
	ST2FL
	// Jumps
	JMPTR
	JMPFL
	JMP
	// Decoder
	DAGV1
	DAGV2
	DAGV3
	DAGV4
	DAGI1
	DAGI2
	DAGI3
	DAGI4
	DALI1
	DALI2
	DALI3
	DALI4
	// Other
	NOP
)

// InstructionNr is the size of the instruction set.
const InstructionNr = int(NOP) + 1

// instDef describes one instruction: its mnemonic and argument signature.
//
// Signature letters give one argument each. Upper case is an address
// argument: a word-wide offset resolved through the decoder (LoclVar by
// default, switched by the DAxx opcodes). Lower case is an inline literal of
// the letter's type. Types: b/B boolean, c/C char, w/W short, i/I integer,
// l/L long, f/F float, m/M block number, z/Z word offset, r/R reference,
// a/A code address, g/G geometry index, D untyped data address.
type instDef struct {
	Name string
	Sig  string
}

var instDefs = [InstructionNr]instDef{
	NEGc: {"NEGc", "CC"}, NEGw: {"NEGw", "WW"}, NEGi: {"NEGi", "II"}, NEGl: {"NEGl", "LL"}, NEGf: {"NEGf", "FF"},
	ADDc: {"ADDc", "CCC"}, ADDw: {"ADDw", "WWW"}, ADDi: {"ADDi", "III"}, ADDl: {"ADDl", "LLL"}, ADDf: {"ADDf", "FFF"},
	SUBc: {"SUBc", "CCC"}, SUBw: {"SUBw", "WWW"}, SUBi: {"SUBi", "III"}, SUBl: {"SUBl", "LLL"}, SUBf: {"SUBf", "FFF"},
	MULc: {"MULc", "CCC"}, MULw: {"MULw", "WWW"}, MULi: {"MULi", "III"}, MULl: {"MULl", "LLL"}, MULf: {"MULf", "FFF"},
	DIVc: {"DIVc", "CCC"}, DIVw: {"DIVw", "WWW"}, DIVi: {"DIVi", "III"}, DIVl: {"DIVl", "LLL"}, DIVf: {"DIVf", "FFF"},
	MODc: {"MODc", "CCC"}, MODw: {"MODw", "WWW"}, MODi: {"MODi", "III"}, MODl: {"MODl", "LLL"},
	INCc: {"INCc", "C"}, INCw: {"INCw", "W"}, INCi: {"INCi", "I"}, INCl: {"INCl", "L"}, INCf: {"INCf", "F"},
	DECc: {"DECc", "C"}, DECw: {"DECw", "W"}, DECi: {"DECi", "I"}, DECl: {"DECl", "L"}, DECf: {"DECf", "F"},
	PINCc: {"PINCc", "CC"}, PINCw: {"PINCw", "WW"}, PINCi: {"PINCi", "II"}, PINCl: {"PINCl", "LL"}, PINCf: {"PINCf", "FF"},
	PDECc: {"PDECc", "CC"}, PDECw: {"PDECw", "WW"}, PDECi: {"PDECi", "II"}, PDECl: {"PDECl", "LL"}, PDECf: {"PDECf", "FF"},
	LNOT: {"LNOT", "BB"}, LAND: {"LAND", "BBB"}, LOR: {"LOR", "BBB"},
	BNOTc: {"BNOTc", "CC"}, BNOTw: {"BNOTw", "WW"}, BNOTi: {"BNOTi", "II"}, BNOTl: {"BNOTl", "LL"},
	BANDc: {"BANDc", "CCC"}, BANDw: {"BANDw", "WWW"}, BANDi: {"BANDi", "III"}, BANDl: {"BANDl", "LLL"},
	BORc: {"BORc", "CCC"}, BORw: {"BORw", "WWW"}, BORi: {"BORi", "III"}, BORl: {"BORl", "LLL"},
	BXORc: {"BXORc", "CCC"}, BXORw: {"BXORw", "WWW"}, BXORi: {"BXORi", "III"}, BXORl: {"BXORl", "LLL"},
	SHLc: {"SHLc", "CCC"}, SHLw: {"SHLw", "WWW"}, SHLi: {"SHLi", "III"}, SHLl: {"SHLl", "LLL"},
	SHRc: {"SHRc", "CCC"}, SHRw: {"SHRw", "WWW"}, SHRi: {"SHRi", "III"}, SHRl: {"SHRl", "LLL"},
	LESb: {"LESb", "BBB"}, LESc: {"LESc", "BCC"}, LESw: {"LESw", "BWW"}, LESi: {"LESi", "BII"}, LESl: {"LESl", "BLL"}, LESf: {"LESf", "BFF"}, LESs: {"LESs", "BMM"},
	LEQb: {"LEQb", "BBB"}, LEQc: {"LEQc", "BCC"}, LEQw: {"LEQw", "BWW"}, LEQi: {"LEQi", "BII"}, LEQl: {"LEQl", "BLL"}, LEQf: {"LEQf", "BFF"}, LEQs: {"LEQs", "BMM"},
	GREb: {"GREb", "BBB"}, GREc: {"GREc", "BCC"}, GREw: {"GREw", "BWW"}, GREi: {"GREi", "BII"}, GREl: {"GREl", "BLL"}, GREf: {"GREf", "BFF"}, GREs: {"GREs", "BMM"},
	GEQb: {"GEQb", "BBB"}, GEQc: {"GEQc", "BCC"}, GEQw: {"GEQw", "BWW"}, GEQi: {"GEQi", "BII"}, GEQl: {"GEQl", "BLL"}, GEQf: {"GEQf", "BFF"}, GEQs: {"GEQs", "BMM"},
	EQUb: {"EQUb", "BBB"}, EQUc: {"EQUc", "BCC"}, EQUw: {"EQUw", "BWW"}, EQUi: {"EQUi", "BII"}, EQUl: {"EQUl", "BLL"}, EQUf: {"EQUf", "BFF"}, EQUs: {"EQUs", "BMM"},
	DISb: {"DISb", "BBB"}, DISc: {"DISc", "BCC"}, DISw: {"DISw", "BWW"}, DISi: {"DISi", "BII"}, DISl: {"DISl", "BLL"}, DISf: {"DISf", "BFF"}, DISs: {"DISs", "BMM"},
	MVb: {"MVb", "BB"}, MVc: {"MVc", "CC"}, MVw: {"MVw", "WW"}, MVi: {"MVi", "II"}, MVl: {"MVl", "LL"}, MVf: {"MVf", "FF"}, MVr: {"MVr", "RR"},
	LOADb: {"LOADb", "Bb"}, LOADc: {"LOADc", "Cc"}, LOADw: {"LOADw", "Ww"}, LOADi: {"LOADi", "Ii"}, LOADl: {"LOADl", "Ll"}, LOADf: {"LOADf", "Ff"},
	MVADc: {"MVADc", "CC"}, MVADw: {"MVADw", "WW"}, MVADi: {"MVADi", "II"}, MVADl: {"MVADl", "LL"}, MVADf: {"MVADf", "FF"},
	MVSUc: {"MVSUc", "CC"}, MVSUw: {"MVSUw", "WW"}, MVSUi: {"MVSUi", "II"}, MVSUl: {"MVSUl", "LL"}, MVSUf: {"MVSUf", "FF"},
	MVMUc: {"MVMUc", "CC"}, MVMUw: {"MVMUw", "WW"}, MVMUi: {"MVMUi", "II"}, MVMUl: {"MVMUl", "LL"}, MVMUf: {"MVMUf", "FF"},
	MVDIc: {"MVDIc", "CC"}, MVDIw: {"MVDIw", "WW"}, MVDIi: {"MVDIi", "II"}, MVDIl: {"MVDIl", "LL"}, MVDIf: {"MVDIf", "FF"},
	MVMOc: {"MVMOc", "CC"}, MVMOw: {"MVMOw", "WW"}, MVMOi: {"MVMOi", "II"}, MVMOl: {"MVMOl", "LL"},
	MVSLc: {"MVSLc", "CC"}, MVSLw: {"MVSLw", "WW"}, MVSLi: {"MVSLi", "II"}, MVSLl: {"MVSLl", "LL"},
	MVSRc: {"MVSRc", "CC"}, MVSRw: {"MVSRw", "WW"}, MVSRi: {"MVSRi", "II"}, MVSRl: {"MVSRl", "LL"},
	MVANc: {"MVANc", "CC"}, MVANw: {"MVANw", "WW"}, MVANi: {"MVANi", "II"}, MVANl: {"MVANl", "LL"},
	MVXOc: {"MVXOc", "CC"}, MVXOw: {"MVXOw", "WW"}, MVXOi: {"MVXOi", "II"}, MVXOl: {"MVXOl", "LL"},
	MVORc: {"MVORc", "CC"}, MVORw: {"MVORw", "WW"}, MVORi: {"MVORi", "II"}, MVORl: {"MVORl", "LL"},
	RPBEG: {"RPBEG", "DD"}, RPSTR: {"RPSTR", "z"}, RPARR: {"RPARR", "z"}, RPLOF: {"RPLOF", "Zg"}, RPLOD: {"RPLOD", "Z"}, RPEND: {"RPEND", ""},
	BIBEG: {"BIBEG", "D"}, BISTR: {"BISTR", "z"}, BIARR: {"BIARR", "zcz"}, BILOF: {"BILOF", "Zg"}, BIEND: {"BIEND", ""},
	REFOF: {"REFOF", "RDz"}, REFAD: {"REFAD", "Rz"}, REFER: {"REFER", "RD"},
	COPY: {"COPY", "DDz"}, SCOPY: {"SCOPY", "MM"}, SSWCP: {"SSWCP", "MM"}, ACOPY: {"ACOPY", "MM"},
	TOCA: {"TOCA", "MDz"}, STOCA: {"STOCA", "MM"}, ATOCA: {"ATOCA", "MM"},
	FRCA: {"FRCA", "DMz"}, SFRCA: {"SFRCA", "MM"}, AFRCA: {"AFRCA", "MM"},
	CLEAR: {"CLEAR", "Dz"}, STACK: {"STACK", "l"},
	AF1RF: {"AF1RF", "RDgZ"}, AF1RW: {"AF1RW", "gaa"}, AF1FO: {"AF1FO", "RDg"}, AF1NX: {"AF1NX", "ga"},
	AF1SJ: {"AF1SJ", "MDgM"}, AF1CJ: {"AF1CJ", "MDgM"},
	AFDEF: {"AFDEF", "gCZ"}, AFSSZ: {"AFSSZ", "gCZ"}, AFGET: {"AFGET", "gcZ"}, AFIDX: {"AFIDX", "gcZ"}, AFREF: {"AFREF", "RDg"},
	AD1EM: {"AD1EM", "Mz"}, AD1DF: {"AD1DF", "M"}, AD1AP: {"AD1AP", "RMz"}, AD1IN: {"AD1IN", "RMZz"}, AD1DE: {"AD1DE", "MZ"},
	AD1RF: {"AD1RF", "RMZ"}, AD1RS: {"AD1RS", "M"}, AD1RW: {"AD1RW", "Maa"}, AD1FO: {"AD1FO", "RM"}, AD1NX: {"AD1NX", "Ma"},
	AD1SJ: {"AD1SJ", "MMM"}, AD1CJ: {"AD1CJ", "MMM"},
	ADEMP: {"ADEMP", "Mcz"}, ADDEF: {"ADDEF", "Mcz"}, ADSET: {"ADSET", "McZ"}, ADRSZ: {"ADRSZ", "M"}, ADGET: {"ADGET", "McZ"},
	ADRST: {"ADRST", "M"}, ADIDX: {"ADIDX", "McZ"}, ADREF: {"ADREF", "RM"}, ADSIZ: {"ADSIZ", "MZ"},
	AF2F: {"AF2F", "DgDg"}, AF2D: {"AF2D", "MDg"}, AD2F: {"AD2F", "DgM"}, AD2D: {"AD2D", "MM"},
	PUSHb: {"PUSHb", "B"}, PUSHc: {"PUSHc", "C"}, PUSHw: {"PUSHw", "W"}, PUSHi: {"PUSHi", "I"}, PUSHl: {"PUSHl", "L"}, PUSHf: {"PUSHf", "F"}, PUSHr: {"PUSHr", "R"},
	REFPU: {"REFPU", "D"},
	LPUb:  {"LPUb", "B"}, LPUc: {"LPUc", "C"}, LPUw: {"LPUw", "W"}, LPUi: {"LPUi", "I"}, LPUl: {"LPUl", "L"}, LPUf: {"LPUf", "F"}, LPUr: {"LPUr", "R"},
	LPUSr: {"LPUSr", "Rb"}, LPADr: {"LPADr", "Rb"}, LPAFr: {"LPAFr", "Rbg"},
	LRPU: {"LRPU", "D"}, LRPUS: {"LRPUS", "Db"}, LRPAD: {"LRPAD", "Db"}, LRPAF: {"LRPAF", "Dbg"},
	CALL: {"CALL", "a"}, RET: {"RET", ""}, CALLN: {"CALLN", "a"}, RETN: {"RETN", ""},
	SCALL: {"SCALL", "i"}, LCALL: {"LCALL", "i"}, SULOK: {"SULOK", ""},
	CUPPR: {"CUPPR", "CC"}, CLOWR: {"CLOWR", "CC"},
	SEMP: {"SEMP", "M"}, SLEN: {"SLEN", "ZM"}, SMID: {"SMID", "MMZZ"}, SINDX: {"SINDX", "RMZ"},
	SRGHT: {"SRGHT", "MMZ"}, SLEFT: {"SLEFT", "MMZ"}, SCUTR: {"SCUTR", "MMZ"}, SCUTL: {"SCUTL", "MMZ"},
	SCONC: {"SCONC", "MMM"}, SMVCO: {"SMVCO", "MM"}, SMVRC: {"SMVRC", "MM"},
	SFIND: {"SFIND", "ZMMZ"}, SSUBS: {"SSUBS", "MMMM"},
	STRIM: {"STRIM", "MM"}, SUPPR: {"SUPPR", "MM"}, SLOWR: {"SLOWR", "MM"},
	SLJUS: {"SLJUS", "MMZC"}, SRJUS: {"SRJUS", "MMZC"},
	SMATC: {"SMATC", "BMM"}, SLIKE: {"SLIKE", "BMM"}, SREPL: {"SREPL", "MMZ"}, SSPLI: {"SSPLI", "MMM"},
	SSTWI: {"SSTWI", "BMM"}, SENWI: {"SENWI", "BMM"},
	SISBO: {"SISBO", "BM"}, SISCH: {"SISCH", "BM"}, SISSH: {"SISSH", "BM"}, SISIN: {"SISIN", "BM"}, SISLO: {"SISLO", "BM"}, SISFL: {"SISFL", "BM"},
	BO2CH: {"BO2CH", "CB"}, BO2SH: {"BO2SH", "WB"}, BO2IN: {"BO2IN", "IB"}, BO2LO: {"BO2LO", "LB"}, BO2FL: {"BO2FL", "FB"}, BO2ST: {"BO2ST", "MB"},
	CH2BO: {"CH2BO", "BC"}, CH2SH: {"CH2SH", "WC"}, CH2IN: {"CH2IN", "IC"}, CH2LO: {"CH2LO", "LC"}, CH2FL: {"CH2FL", "FC"}, CH2ST: {"CH2ST", "MC"}, CHFMT: {"CHFMT", "MCM"},
	SH2BO: {"SH2BO", "BW"}, SH2CH: {"SH2CH", "CW"}, SH2IN: {"SH2IN", "IW"}, SH2LO: {"SH2LO", "LW"}, SH2FL: {"SH2FL", "FW"}, SH2ST: {"SH2ST", "MW"}, SHFMT: {"SHFMT", "MWM"},
	IN2BO: {"IN2BO", "BI"}, IN2CH: {"IN2CH", "CI"}, IN2SH: {"IN2SH", "WI"}, IN2LO: {"IN2LO", "LI"}, IN2FL: {"IN2FL", "FI"}, IN2ST: {"IN2ST", "MI"}, INFMT: {"INFMT", "MIM"},
	LO2BO: {"LO2BO", "BL"}, LO2CH: {"LO2CH", "CL"}, LO2SH: {"LO2SH", "WL"}, LO2IN: {"LO2IN", "IL"}, LO2FL: {"LO2FL", "FL"}, LO2ST: {"LO2ST", "ML"}, LOFMT: {"LOFMT", "MLM"},
	FL2BO: {"FL2BO", "BF"}, FL2CH: {"FL2CH", "CF"}, FL2SH: {"FL2SH", "WF"}, FL2IN: {"FL2IN", "IF"}, FL2LO: {"FL2LO", "LF"}, FL2ST: {"FL2ST", "MF"}, FLFMT: {"FLFMT", "MFM"},
	ST2BO: {"ST2BO", "BM"}, ST2CH: {"ST2CH", "CM"}, ST2SH: {"ST2SH", "WM"}, ST2IN: {"ST2IN", "IM"}, ST2LO: {"ST2LO", "LM"}, ST2FL: {"ST2FL", "FM"},
	JMPTR: {"JMPTR", "Ba"}, JMPFL: {"JMPFL", "Ba"}, JMP: {"JMP", "a"},
	DAGV1: {"DAGV1", "ww"}, DAGV2: {"DAGV2", "ww"}, DAGV3: {"DAGV3", "ww"}, DAGV4: {"DAGV4", "ww"},
	DAGI1: {"DAGI1", "ww"}, DAGI2: {"DAGI2", "ww"}, DAGI3: {"DAGI3", "ww"}, DAGI4: {"DAGI4", "ww"},
	DALI1: {"DALI1", "ww"}, DALI2: {"DALI2", "ww"}, DALI3: {"DALI3", "ww"}, DALI4: {"DALI4", "ww"},
	NOP: {"NOP", ""},
}

// InstName returns the mnemonic of an instruction code.
func InstName(code Icd) string {
	if int(code) < 0 || int(code) >= InstructionNr {
		return "???"
	}
	return instDefs[code].Name
}

// InstSig returns the argument signature of an instruction code.
func InstSig(code Icd) string {
	if int(code) < 0 || int(code) >= InstructionNr {
		return ""
	}
	return instDefs[code].Sig
}

// LitSize returns the encoded size of a literal argument letter.
func LitSize(letter byte) Wrd {
	switch letter {
	case 'b', 'c':
		return 1
	case 'w', 'g':
		return 2
	case 'i':
		return 4
	case 'l', 'f', 'z', 'a':
		return 8
	case 'm':
		return 4
	case 'r':
		return RefSize
	}
	return 0
}

// InstLength returns the full encoded size of an instruction, arguments
// included.
func InstLength(code Icd) Adr {
	size := Adr(InstHead)
	for i := 0; i < len(instDefs[code].Sig); i++ {
		s := instDefs[code].Sig[i]
		if s >= 'A' && s <= 'Z' {
			size += AdrSize
		} else {
			size += Adr(LitSize(s))
		}
	}
	return size
}
