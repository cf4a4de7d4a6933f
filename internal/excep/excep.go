// Package excep defines the typed failure set of the virtual machine. Every
// runtime primitive that can fail returns *excep.Error; the interpreter
// records them in its exception table and leaves the dispatch loop.
package excep

import "strings"

// Code identifies a failure kind.
type Code int

const (
	CodeNone Code = iota
	SystemPanic
	ConsoleLockFailure
	MemoryAllocationFailure
	NullStringAllocationError
	StringAllocationError
	ArrayAllocationError
	InvalidStringBlock
	InvalidArrayBlock
	InvalidMemoryBlock
	DivideByZero
	InvalidInstructionCode
	InvalidSystemCall
	InvalidMemoryAddress
	NullReferenceIndirection
	StackOverflow
	StackUnderflow
	CallStackUnderflow
	ParameterStackUnderflow
	SubroutineMaxNestingLevelReached
	InvalidArrayDimension
	ArrayWrongDimension
	InvalidDimensionSize
	ArrayIndexingOutOfBounds
	ArrayGeometryInvalid
	ArrayGeometryAllocationError
	ArrayMetadataAllocationError
	ReplicationRuleNegative
	InitializationRuleNegative
	CharToIntegerConvFailure
	FloatToCharConvFailure
	FloatToShortConvFailure
	FloatToIntegerConvFailure
	FloatToLongConvFailure
	StringToBooleanConvFailure
	StringToCharConvFailure
	StringToShortConvFailure
	StringToIntegerConvFailure
	StringToLongConvFailure
	StringToFloatConvFailure
	InvalidStringFormat
	InvalidRegularExpression
	StaOperationAlreadyOpen
	StaOperationNotOpen
	StaOperationAlreadyClosed
	InvalidFileHandler
	FileNotOpen
	FileReadError
	FileWriteError
	ExternalExecutionError
	DynLibNotFound
	DynLibInit1Failed
	DynLibInit2Failed
	DynLibArchMissmatch
	DynLibFunctionNotFound
	DynLibTempCopyFailed
	InvalidDate
	InvalidTime
	InvalidCallArgument
)

var texts = map[Code]string{
	SystemPanic:                      "program panic: %p1",
	ConsoleLockFailure:               "cannot acquire console lock",
	MemoryAllocationFailure:          "memory allocation failure (%p1 bytes)",
	NullStringAllocationError:        "unable to allocate empty string block",
	StringAllocationError:            "unable to allocate string of %p1 bytes",
	ArrayAllocationError:             "unable to allocate array of %p1 bytes",
	InvalidStringBlock:               "invalid string block (%p1)",
	InvalidArrayBlock:                "invalid array block (%p1)",
	InvalidMemoryBlock:               "invalid memory block (%p1)",
	DivideByZero:                     "divide by zero",
	InvalidInstructionCode:           "invalid instruction code (%p1)",
	InvalidSystemCall:                "invalid system call (%p1)",
	InvalidMemoryAddress:             "invalid memory address on %p1 (address %p2, maximun %p3)",
	NullReferenceIndirection:         "null reference indirection",
	StackOverflow:                    "stack overflow (%p1 bytes requested)",
	StackUnderflow:                   "stack underflow",
	CallStackUnderflow:               "call stack underflow",
	ParameterStackUnderflow:          "parameter stack underflow",
	SubroutineMaxNestingLevelReached: "subroutine maximun nesting level reached (%p1)",
	InvalidArrayDimension:            "invalid array dimension (%p1)",
	ArrayWrongDimension:              "wrong array dimensions (%p1 given, %p2 defined)",
	InvalidDimensionSize:             "invalid dimension size (%p1)",
	ArrayIndexingOutOfBounds:         "array index out of bounds (index %p1, elements %p2)",
	ArrayGeometryInvalid:             "invalid array geometry (%p1)",
	ArrayGeometryAllocationError:     "unable to allocate array geometry",
	ArrayMetadataAllocationError:     "unable to allocate array metadata",
	ReplicationRuleNegative:          "negative offset on replication rule",
	InitializationRuleNegative:       "negative offset on initialization rule",
	CharToIntegerConvFailure:         "char to integer conversion failure (%p1)",
	FloatToCharConvFailure:           "float to char conversion failure (%p1)",
	FloatToShortConvFailure:          "float to short conversion failure (%p1)",
	FloatToIntegerConvFailure:        "float to integer conversion failure (%p1)",
	FloatToLongConvFailure:           "float to long conversion failure (%p1)",
	StringToBooleanConvFailure:       "string to boolean conversion failure (%p1)",
	StringToCharConvFailure:          "string to char conversion failure (%p1)",
	StringToShortConvFailure:         "string to short conversion failure (%p1)",
	StringToIntegerConvFailure:       "string to integer conversion failure (%p1)",
	StringToLongConvFailure:          "string to long conversion failure (%p1)",
	StringToFloatConvFailure:         "string to float conversion failure (%p1)",
	InvalidStringFormat:              "invalid format specification (%p1)",
	InvalidRegularExpression:         "invalid regular expression (%p1)",
	StaOperationAlreadyOpen:          "string array operation already open",
	StaOperationNotOpen:              "string array operation not open",
	StaOperationAlreadyClosed:        "string array operation already closed",
	InvalidFileHandler:               "invalid file handler (%p1)",
	FileNotOpen:                      "file not open (%p1)",
	FileReadError:                    "file read error on %p1: %p2",
	FileWriteError:                   "file write error on %p1: %p2",
	ExternalExecutionError:           "external execution error: %p1",
	DynLibNotFound:                   "dynamic library not found (%p1)",
	DynLibInit1Failed:                "dynamic library open failed (%p1)",
	DynLibInit2Failed:                "dynamic library dispatcher init failed (%p1)",
	DynLibArchMissmatch:              "dynamic library architecture missmatch (%p1: library %p2, runtime %p3)",
	DynLibFunctionNotFound:           "dynamic library function not found (%p1.%p2)",
	DynLibTempCopyFailed:             "dynamic library temporary copy failed (%p1)",
	InvalidDate:                      "invalid date (%p1)",
	InvalidTime:                      "invalid time (%p1)",
	InvalidCallArgument:              "invalid call argument (%p1)",
}

// Text renders the message of a code with up to five positional parameters.
func (c Code) Text(params ...string) string {
	msg, ok := texts[c]
	if !ok {
		return "unknown exception"
	}
	for i, p := range params {
		if i >= 5 {
			break
		}
		msg = strings.ReplaceAll(msg, "%p"+string(rune('1'+i)), p)
	}
	// Unfilled placeholders render empty.
	for i := 0; i < 5; i++ {
		msg = strings.ReplaceAll(msg, "%p"+string(rune('1'+i)), "")
	}
	return msg
}

// Error is one recorded failure with its stringified parameters.
type Error struct {
	Code   Code
	Params []string
}

// Throw builds an *Error. Parameters beyond the fifth are dropped.
func Throw(code Code, params ...string) *Error {
	if len(params) > 5 {
		params = params[:5]
	}
	return &Error{Code: code, Params: params}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code.Text(e.Params...)
}
