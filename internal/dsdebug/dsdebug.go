// Package dsdebug renders runtime failures for humans: the recorded
// exception table and a symbolic call stack reconstructed from debug
// symbols when the executable carries them.
package dsdebug

import (
	"fmt"
	"strings"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// Frame is one resolved call-stack entry.
type Frame struct {
	Address  cpu.Adr
	Function string
	Module   string
	Line     int32
}

// ErrorBuilder accumulates exceptions and frames into one report.
type ErrorBuilder struct {
	lines []string
}

// AddException appends one recorded failure.
func (b *ErrorBuilder) AddException(e *excep.Error) {
	b.lines = append(b.lines, fmt.Sprintf("runtime exception: %s", e.Error()))
}

// AddFrame appends one call-stack line, innermost first.
func (b *ErrorBuilder) AddFrame(depth int, f Frame) {
	loc := fmt.Sprintf("0x%08X", uint64(f.Address))
	if f.Function != "" {
		loc = f.Function
		if f.Module != "" {
			loc = f.Module + "." + loc
		}
		if f.Line > 0 {
			loc = fmt.Sprintf("%s (line %d)", loc, f.Line)
		}
	}
	b.lines = append(b.lines, fmt.Sprintf("  #%d %s", depth, loc))
}

// String renders the report.
func (b *ErrorBuilder) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n")
}
