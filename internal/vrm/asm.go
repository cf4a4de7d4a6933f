package vrm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dungeonspells/dsvm/internal/cpu"
)

// Asm emits code-buffer bytes instruction by instruction. It exists for the
// tool side of the runtime: fixture programs in tests and the standalone
// packager. Address arguments take encoded offsets, literal arguments take
// raw values; float literals go through FloBits.
type Asm struct {
	buf    []byte
	labels map[string]cpu.Adr
}

// NewAsm returns an empty code builder.
func NewAsm() *Asm {
	return &Asm{labels: map[string]cpu.Adr{}}
}

// Here returns the address the next instruction will land on.
func (a *Asm) Here() cpu.Adr { return cpu.Adr(len(a.buf)) }

// Mark places a label at the current address.
func (a *Asm) Mark(name string) {
	a.labels[name] = a.Here()
}

// Label returns a marked address.
func (a *Asm) Label(name string) cpu.Adr {
	adr, ok := a.labels[name]
	if !ok {
		panic(fmt.Sprintf("asm: unknown label %s", name))
	}
	return adr
}

// FloBits encodes a float literal argument.
func FloBits(v cpu.Flo) int64 {
	return int64(math.Float64bits(v))
}

// Op appends one instruction and returns its address. The argument count
// must match the signature.
func (a *Asm) Op(code cpu.Icd, args ...int64) cpu.Adr {
	sig := cpu.InstSig(code)
	if len(args) != len(sig) {
		panic(fmt.Sprintf("asm: %s takes %d arguments, got %d", cpu.InstName(code), len(sig), len(args)))
	}
	at := a.Here()
	var head [cpu.InstHead]byte
	binary.LittleEndian.PutUint16(head[cpu.HandlerSize:], uint16(code))
	a.buf = append(a.buf, head[:]...)
	for i := 0; i < len(sig); i++ {
		s := sig[i]
		v := args[i]
		var sz cpu.Wrd
		if s >= 'A' && s <= 'Z' {
			sz = cpu.AdrSize
		} else {
			sz = cpu.LitSize(s)
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		a.buf = append(a.buf, b[:sz]...)
	}
	return at
}

// Fix rewrites argument argIdx of the instruction at addr. Used to
// back-patch jump distances once labels are known.
func (a *Asm) Fix(addr cpu.Adr, argIdx int, v int64) {
	code := cpu.Icd(binary.LittleEndian.Uint16(a.buf[addr+cpu.HandlerSize:]))
	sig := cpu.InstSig(code)
	pos := addr + cpu.InstHead
	for i := 0; i < argIdx; i++ {
		if sig[i] >= 'A' && sig[i] <= 'Z' {
			pos += cpu.AdrSize
		} else {
			pos += cpu.Adr(cpu.LitSize(sig[i]))
		}
	}
	var sz cpu.Wrd
	if sig[argIdx] >= 'A' && sig[argIdx] <= 'Z' {
		sz = cpu.AdrSize
	} else {
		sz = cpu.LitSize(sig[argIdx])
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	copy(a.buf[pos:pos+cpu.Adr(sz)], b[:sz])
}

// Bytes returns the emitted code buffer.
func (a *Asm) Bytes() []byte { return a.buf }
