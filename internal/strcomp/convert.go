package strcomp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dungeonspells/dsvm/internal/cpu"
	"github.com/dungeonspells/dsvm/internal/excep"
)

// Predicates report whether the string parses as the given type without
// raising a conversion failure.

func (c *Computer) SISBO(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	_, ok := parseBool(c.String(s))
	*res = boolBol(ok)
	return nil
}

func (c *Computer) SISCH(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	return c.isInt(res, s, int64(cpu.MinChr), int64(cpu.MaxChr))
}

func (c *Computer) SISSH(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	return c.isInt(res, s, int64(cpu.MinShr), int64(cpu.MaxShr))
}

func (c *Computer) SISIN(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	return c.isInt(res, s, int64(cpu.MinInt), int64(cpu.MaxInt))
}

func (c *Computer) SISLO(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	return c.isInt(res, s, int64(cpu.MinLon), int64(cpu.MaxLon))
}

func (c *Computer) SISFL(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(c.String(s)), 64)
	*res = boolBol(err == nil)
	return nil
}

func (c *Computer) isInt(res *cpu.Bol, s cpu.Mbl, min, max int64) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.String(s)), 10, 64)
	*res = boolBol(err == nil && v >= min && v <= max)
	return nil
}

func parseBool(s string) (cpu.Bol, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return 1, true
	case "false", "0":
		return 0, true
	}
	return 0, false
}

// Parses with range check. Each failure carries the offending text.

func (c *Computer) SST2B(res *cpu.Bol, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	v, ok := parseBool(c.String(s))
	if !ok {
		return excep.Throw(excep.StringToBooleanConvFailure, c.String(s))
	}
	*res = v
	return nil
}

func (c *Computer) parseInt(s cpu.Mbl, min, max int64, code excep.Code) (int64, *excep.Error) {
	if err := c.check(s); err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(c.String(s)), 10, 64)
	if err != nil || v < min || v > max {
		return 0, excep.Throw(code, c.String(s))
	}
	return v, nil
}

func (c *Computer) SST2C(res *cpu.Chr, s cpu.Mbl) *excep.Error {
	v, err := c.parseInt(s, int64(cpu.MinChr), int64(cpu.MaxChr), excep.StringToCharConvFailure)
	if err != nil {
		return err
	}
	*res = cpu.Chr(v)
	return nil
}

func (c *Computer) SST2W(res *cpu.Shr, s cpu.Mbl) *excep.Error {
	v, err := c.parseInt(s, int64(cpu.MinShr), int64(cpu.MaxShr), excep.StringToShortConvFailure)
	if err != nil {
		return err
	}
	*res = cpu.Shr(v)
	return nil
}

func (c *Computer) SST2I(res *cpu.Int, s cpu.Mbl) *excep.Error {
	v, err := c.parseInt(s, int64(cpu.MinInt), int64(cpu.MaxInt), excep.StringToIntegerConvFailure)
	if err != nil {
		return err
	}
	*res = cpu.Int(v)
	return nil
}

func (c *Computer) SST2L(res *cpu.Lon, s cpu.Mbl) *excep.Error {
	v, err := c.parseInt(s, int64(cpu.MinLon), int64(cpu.MaxLon), excep.StringToLongConvFailure)
	if err != nil {
		return err
	}
	*res = v
	return nil
}

func (c *Computer) SST2F(res *cpu.Flo, s cpu.Mbl) *excep.Error {
	if err := c.check(s); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.String(s)), 64)
	if err != nil {
		return excep.Throw(excep.StringToFloatConvFailure, c.String(s))
	}
	*res = v
	return nil
}

// Default formatting.

func (c *Computer) SBO2S(res *cpu.Mbl, v cpu.Bol) *excep.Error {
	if v != 0 {
		return c.store(res, []byte("true"))
	}
	return c.store(res, []byte("false"))
}

func (c *Computer) SCH2S(res *cpu.Mbl, v cpu.Chr) *excep.Error {
	return c.store(res, []byte(strconv.FormatInt(int64(v), 10)))
}

func (c *Computer) SSH2S(res *cpu.Mbl, v cpu.Shr) *excep.Error {
	return c.store(res, []byte(strconv.FormatInt(int64(v), 10)))
}

func (c *Computer) SIN2S(res *cpu.Mbl, v cpu.Int) *excep.Error {
	return c.store(res, []byte(strconv.FormatInt(int64(v), 10)))
}

func (c *Computer) SLO2S(res *cpu.Mbl, v cpu.Lon) *excep.Error {
	return c.store(res, []byte(strconv.FormatInt(v, 10)))
}

func (c *Computer) SFL2S(res *cpu.Mbl, v cpu.Flo) *excep.Error {
	return c.store(res, []byte(strconv.FormatFloat(v, 'g', -1, 64)))
}

// Formatting with an explicit printf-style specification, interpreted with
// Go's fmt verbs (%d, %x, %o, %e, %f, %g and the like). C-only forms such as
// %i or %ld are rejected, as is a specification that does not consume the
// value.

func (c *Computer) formatWith(res *cpu.Mbl, fmtBlk cpu.Mbl, v interface{}) *excep.Error {
	if err := c.check(fmtBlk); err != nil {
		return err
	}
	spec := c.String(fmtBlk)
	out := fmt.Sprintf(spec, v)
	if strings.Contains(out, "%!") {
		return excep.Throw(excep.InvalidStringFormat, spec)
	}
	return c.store(res, []byte(out), fmtBlk)
}

func (c *Computer) SCHFM(res *cpu.Mbl, v cpu.Chr, f cpu.Mbl) *excep.Error {
	return c.formatWith(res, f, int64(v))
}

func (c *Computer) SSHFM(res *cpu.Mbl, v cpu.Shr, f cpu.Mbl) *excep.Error {
	return c.formatWith(res, f, int64(v))
}

func (c *Computer) SINFM(res *cpu.Mbl, v cpu.Int, f cpu.Mbl) *excep.Error {
	return c.formatWith(res, f, int64(v))
}

func (c *Computer) SLOFM(res *cpu.Mbl, v cpu.Lon, f cpu.Mbl) *excep.Error {
	return c.formatWith(res, f, v)
}

func (c *Computer) SFLFM(res *cpu.Mbl, v cpu.Flo, f cpu.Mbl) *excep.Error {
	return c.formatWith(res, f, v)
}
