// Package strcomp implements the string computer: every string primitive of
// the virtual machine. A string is an aux memory block holding length bytes
// of payload plus a trailing zero byte; the encoding is byte transparent.
package strcomp

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/dungeonspells/dsvm/internal/auxmem"
	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// Computer is the string engine of one machine instance.
type Computer struct {
	scopeId int32
	scopeNr cpu.Lon
	aux     *auxmem.Manager
}

// Init binds the computer to its aux memory manager.
func Init(aux *auxmem.Manager) *Computer {
	return &Computer{aux: aux}
}

// SetScope follows the machine scope so new blocks are tagged correctly.
func (c *Computer) SetScope(scopeId int32, scopeNr cpu.Lon) {
	c.scopeId = scopeId
	c.scopeNr = scopeNr
}

// IsValid reports whether the block holds a live string.
func (c *Computer) IsValid(s cpu.Mbl) bool {
	return s != 0 && c.aux.IsValid(s)
}

func (c *Computer) check(s cpu.Mbl) *excep.Error {
	if !c.IsValid(s) {
		return excep.Throw(excep.InvalidStringBlock, strconv.FormatInt(int64(s), 10))
	}
	return nil
}

// Bytes returns the payload of a string block, zero terminator excluded.
func (c *Computer) Bytes(s cpu.Mbl) []byte {
	return c.aux.CharPtr(s)[:c.aux.GetLen(s)]
}

// String returns the payload as a Go string.
func (c *Computer) String(s cpu.Mbl) string { return string(c.Bytes(s)) }

func (c *Computer) newString(length cpu.Wrd) (cpu.Mbl, *excep.Error) {
	b, err := c.aux.Alloc(c.scopeId, c.scopeNr, length+1, -1)
	if err != nil {
		return 0, excep.Throw(excep.StringAllocationError, strconv.FormatInt(int64(length), 10))
	}
	return b, nil
}

// store places data into *des. An unaliased live destination is resized in
// place; an aliased or dead one is replaced by a fresh block, the old one
// released at the end so sources are never mutated mid-operation.
func (c *Computer) store(des *cpu.Mbl, data []byte, srcs ...cpu.Mbl) *excep.Error {
	aliased := false
	for _, s := range srcs {
		if s == *des {
			aliased = true
			break
		}
	}
	length := cpu.Wrd(len(data))
	if c.IsValid(*des) && !aliased {
		if err := c.aux.Realloc(c.scopeId, c.scopeNr, *des, length+1); err != nil {
			return excep.Throw(excep.StringAllocationError, strconv.FormatInt(int64(length), 10))
		}
		buf := c.aux.CharPtr(*des)
		copy(buf, data)
		buf[length] = 0
		c.aux.SetLen(*des, length)
		return nil
	}
	nb, err := c.newString(length)
	if err != nil {
		return err
	}
	buf := c.aux.CharPtr(nb)
	copy(buf, data)
	buf[length] = 0
	c.aux.SetLen(nb, length)
	if c.IsValid(*des) {
		c.aux.Free(*des)
	}
	*des = nb
	return nil
}

// SEMP makes *des the empty string.
func (c *Computer) SEMP(des *cpu.Mbl) *excep.Error {
	return c.store(des, nil)
}

// SCOPY copies a string block.
func (c *Computer) SCOPY(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if err := c.check(src); err != nil {
		return err
	}
	return c.store(des, c.Bytes(src), src)
}

// SCOPYData copies raw bytes into a string block.
func (c *Computer) SCOPYData(des *cpu.Mbl, src []byte) *excep.Error {
	return c.store(des, src)
}

// SSWCP moves src into *des by swapping storage, then releases src.
func (c *Computer) SSWCP(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if err := c.check(src); err != nil {
		return err
	}
	if *des == src {
		return nil
	}
	if !c.IsValid(*des) {
		nb, err := c.newString(0)
		if err != nil {
			return err
		}
		c.aux.CharPtr(nb)[0] = 0
		*des = nb
	}
	c.aux.SwapPtr(*des, src)
	c.aux.Free(src)
	return nil
}

func (c *Computer) compare(s1, s2 cpu.Mbl) (int, *excep.Error) {
	if err := c.check(s1); err != nil {
		return 0, err
	}
	if err := c.check(s2); err != nil {
		return 0, err
	}
	return bytes.Compare(c.Bytes(s1), c.Bytes(s2)), nil
}

func boolBol(v bool) cpu.Bol {
	if v {
		return 1
	}
	return 0
}

// Ordering and equality follow byte-wise comparison of the payloads.

func (c *Computer) SLES(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r < 0)
	return nil
}

func (c *Computer) SLEQ(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r <= 0)
	return nil
}

func (c *Computer) SGRE(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r > 0)
	return nil
}

func (c *Computer) SGEQ(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r >= 0)
	return nil
}

func (c *Computer) SEQU(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r == 0)
	return nil
}

func (c *Computer) SDIS(res *cpu.Bol, s1, s2 cpu.Mbl) *excep.Error {
	r, err := c.compare(s1, s2)
	if err != nil {
		return err
	}
	*res = boolBol(r != 0)
	return nil
}

// SLEN stores the byte length of the string.
func (c *Computer) SLEN(res *cpu.Wrd, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	*res = c.aux.GetLen(s)
	return nil
}

// SMID extracts len bytes starting at pos. Out-of-range spans clamp to the
// available payload.
func (c *Computer) SMID(res *cpu.Mbl, s cpu.Mbl, pos, length cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	n := cpu.Wrd(len(data))
	if pos < 0 || pos >= n || length <= 0 {
		return c.store(res, nil, s)
	}
	if pos+length > n {
		length = n - pos
	}
	return c.store(res, data[pos:pos+length], s)
}

// SINDX returns a reference to one byte of the string.
func (c *Computer) SINDX(res *cpu.Ref, s cpu.Mbl, idx cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if idx < 0 || idx >= c.aux.GetLen(s) {
		return excep.Throw(excep.ArrayIndexingOutOfBounds,
			strconv.FormatInt(int64(idx), 10), strconv.FormatInt(int64(c.aux.GetLen(s)), 10))
	}
	*res = cpu.BlockRef(s, idx)
	return nil
}

func (c *Computer) SRGHT(res *cpu.Mbl, s cpu.Mbl, length cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if length < 0 {
		length = 0
	}
	if length > cpu.Wrd(len(data)) {
		length = cpu.Wrd(len(data))
	}
	return c.store(res, data[cpu.Wrd(len(data))-length:], s)
}

func (c *Computer) SLEFT(res *cpu.Mbl, s cpu.Mbl, length cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if length < 0 {
		length = 0
	}
	if length > cpu.Wrd(len(data)) {
		length = cpu.Wrd(len(data))
	}
	return c.store(res, data[:length], s)
}

// SCUTR drops length bytes from the right end.
func (c *Computer) SCUTR(res *cpu.Mbl, s cpu.Mbl, length cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if length < 0 {
		length = 0
	}
	if length > cpu.Wrd(len(data)) {
		length = cpu.Wrd(len(data))
	}
	return c.store(res, data[:cpu.Wrd(len(data))-length], s)
}

// SCUTL drops length bytes from the left end.
func (c *Computer) SCUTL(res *cpu.Mbl, s cpu.Mbl, length cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if length < 0 {
		length = 0
	}
	if length > cpu.Wrd(len(data)) {
		length = cpu.Wrd(len(data))
	}
	return c.store(res, data[length:], s)
}

// SAPPN appends a string block to *des.
func (c *Computer) SAPPN(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if err := c.check(src); err != nil {
		return err
	}
	return c.SAPPNData(des, c.Bytes(src))
}

// SAPPNData appends raw bytes to *des.
func (c *Computer) SAPPNData(des *cpu.Mbl, src []byte) *excep.Error {
	var base []byte
	if c.IsValid(*des) {
		base = c.Bytes(*des)
	}
	out := make([]byte, 0, len(base)+len(src))
	out = append(out, base...)
	out = append(out, src...)
	return c.store(des, out)
}

// SCONC concatenates two strings.
func (c *Computer) SCONC(res *cpu.Mbl, s1, s2 cpu.Mbl) *excep.Error {
	if err := c.check(s1); err != nil {
		return err
	}
	if err := c.check(s2); err != nil {
		return err
	}
	b1, b2 := c.Bytes(s1), c.Bytes(s2)
	out := make([]byte, 0, len(b1)+len(b2))
	out = append(out, b1...)
	out = append(out, b2...)
	return c.store(res, out, s1, s2)
}

// SMVCO move-concatenates src at the end of *des and releases src.
func (c *Computer) SMVCO(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if err := c.check(src); err != nil {
		return err
	}
	if err := c.SAPPNData(des, c.Bytes(src)); err != nil {
		return err
	}
	if src != *des {
		c.aux.Free(src)
	}
	return nil
}

// SMVRC move-concatenates src in front of *des and releases src: the
// destination payload shifts right and the source bytes land before it.
func (c *Computer) SMVRC(des *cpu.Mbl, src cpu.Mbl) *excep.Error {
	if err := c.check(src); err != nil {
		return err
	}
	var base []byte
	if c.IsValid(*des) {
		base = c.Bytes(*des)
	}
	front := c.Bytes(src)
	out := make([]byte, 0, len(front)+len(base))
	out = append(out, front...)
	out = append(out, base...)
	if err := c.store(des, out); err != nil {
		return err
	}
	if src != *des {
		c.aux.Free(src)
	}
	return nil
}

// SFIND stores the position of sub inside s starting at beg, -1 when absent.
func (c *Computer) SFIND(res *cpu.Wrd, s, sub cpu.Mbl, beg cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(sub); err != nil {
		return err
	}
	data := c.Bytes(s)
	if beg < 0 || beg > cpu.Wrd(len(data)) {
		*res = -1
		return nil
	}
	if p := bytes.Index(data[beg:], c.Bytes(sub)); p >= 0 {
		*res = beg + cpu.Wrd(p)
	} else {
		*res = -1
	}
	return nil
}

// SSUBS replaces all occurrences of old by repl.
func (c *Computer) SSUBS(res *cpu.Mbl, s, old, repl cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(old); err != nil {
		return err
	}
	if err := c.check(repl); err != nil {
		return err
	}
	data := c.Bytes(s)
	oldB := c.Bytes(old)
	if len(oldB) == 0 {
		return c.store(res, data, s, old, repl)
	}
	out := bytes.ReplaceAll(data, oldB, c.Bytes(repl))
	return c.store(res, out, s, old, repl)
}

// STRIM removes leading and trailing blanks.
func (c *Computer) STRIM(res *cpu.Mbl, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	return c.store(res, bytes.TrimSpace(c.Bytes(s)), s)
}

func (c *Computer) SUPPR(res *cpu.Mbl, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	return c.store(res, bytes.ToUpper(c.Bytes(s)), s)
}

func (c *Computer) SLOWR(res *cpu.Mbl, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	return c.store(res, bytes.ToLower(c.Bytes(s)), s)
}

// SLJUS left-justifies into a field of the given width, padding with fill.
func (c *Computer) SLJUS(res *cpu.Mbl, s cpu.Mbl, width cpu.Wrd, fill cpu.Chr) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if cpu.Wrd(len(data)) >= width {
		return c.store(res, data, s)
	}
	out := make([]byte, width)
	copy(out, data)
	for i := cpu.Wrd(len(data)); i < width; i++ {
		out[i] = byte(fill)
	}
	return c.store(res, out, s)
}

// SRJUS right-justifies into a field of the given width, padding with fill.
func (c *Computer) SRJUS(res *cpu.Mbl, s cpu.Mbl, width cpu.Wrd, fill cpu.Chr) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	data := c.Bytes(s)
	if cpu.Wrd(len(data)) >= width {
		return c.store(res, data, s)
	}
	out := make([]byte, width)
	pad := width - cpu.Wrd(len(data))
	for i := cpu.Wrd(0); i < pad; i++ {
		out[i] = byte(fill)
	}
	copy(out[pad:], data)
	return c.store(res, out, s)
}

// SMATC matches the string against a regular expression.
func (c *Computer) SMATC(res *cpu.Bol, s, expr cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(expr); err != nil {
		return err
	}
	re, err := regexp.Compile(c.String(expr))
	if err != nil {
		return excep.Throw(excep.InvalidRegularExpression, c.String(expr))
	}
	*res = boolBol(re.MatchString(c.String(s)))
	return nil
}

// SLIKE matches the string against a pattern where '*' spans any run of
// bytes and '?' exactly one.
func (c *Computer) SLIKE(res *cpu.Bol, s, pattern cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(pattern); err != nil {
		return err
	}
	*res = boolBol(likeMatch(c.Bytes(s), c.Bytes(pattern)))
	return nil
}

func likeMatch(s, p []byte) bool {
	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]):
			si++
			pi++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// SREPL repeats the string n times.
func (c *Computer) SREPL(res *cpu.Mbl, s cpu.Mbl, n cpu.Wrd) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if n <= 0 {
		return c.store(res, nil, s)
	}
	data := c.Bytes(s)
	out := bytes.Repeat(data, int(n))
	return c.store(res, out, s)
}

func (c *Computer) SSTWI(res *cpu.Bol, s, sub cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(sub); err != nil {
		return err
	}
	*res = boolBol(bytes.HasPrefix(c.Bytes(s), c.Bytes(sub)))
	return nil
}

func (c *Computer) SENWI(res *cpu.Bol, s, sub cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	if err := c.check(sub); err != nil {
		return err
	}
	*res = boolBol(bytes.HasSuffix(c.Bytes(s), c.Bytes(sub)))
	return nil
}
