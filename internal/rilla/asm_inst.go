package rilla

import (
	"fmt"
	"strconv"
	"strings"

	"rill/internal/hash"
	"rill/internal/source"
	"rill/internal/unit"
)

var mnemonics = map[string]unit.Op{
	"nop":             unit.OpNop,
	"unit":            unit.OpUnit,
	"bool":            unit.OpBool,
	"int":             unit.OpInt,
	"float":           unit.OpFloat,
	"byte":            unit.OpByte,
	"char":            unit.OpChar,
	"string":          unit.OpString,
	"copy":            unit.OpCopy,
	"move":            unit.OpMove,
	"replace":         unit.OpReplace,
	"drop":            unit.OpDrop,
	"dup":             unit.OpDup,
	"pop":             unit.OpPop,
	"popn":            unit.OpPopN,
	"clean":           unit.OpClean,
	"jump":            unit.OpJump,
	"jump-if":         unit.OpJumpIf,
	"jump-if-not":     unit.OpJumpIfNot,
	"call":            unit.OpCall,
	"not":             unit.OpNot,
	"neg":             unit.OpNeg,
	"add":             unit.OpAdd,
	"sub":             unit.OpSub,
	"mul":             unit.OpMul,
	"div":             unit.OpDiv,
	"rem":             unit.OpRem,
	"eq":              unit.OpEq,
	"ne":              unit.OpNe,
	"lt":              unit.OpLt,
	"le":              unit.OpLe,
	"gt":              unit.OpGt,
	"ge":              unit.OpGe,
	"vec":             unit.OpVec,
	"tuple":           unit.OpTuple,
	"object":          unit.OpObject,
	"index-get":       unit.OpIndexGet,
	"index-set":       unit.OpIndexSet,
	"tuple-index-get": unit.OpTupleIndexGet,
	"ret":             unit.OpReturn,
	"ret-unit":        unit.OpReturnUnit,
}

func (a *assembler) instruction(num int, line string, span source.Span) error {
	mnemonic, rest, _ := strings.Cut(line, " ")
	op, ok := mnemonics[mnemonic]
	if !ok {
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	rest = strings.TrimSpace(rest)
	inst := unit.Inst{Op: op}

	switch op {
	case unit.OpNop, unit.OpUnit, unit.OpDup, unit.OpPop, unit.OpNot,
		unit.OpNeg, unit.OpIndexSet, unit.OpReturn, unit.OpReturnUnit:
		if rest != "" {
			return fmt.Errorf("%s takes no operand", mnemonic)
		}

	case unit.OpBool:
		b, err := strconv.ParseBool(rest)
		if err != nil {
			return fmt.Errorf("invalid bool %q", rest)
		}
		if b {
			inst.Int = 1
		}

	case unit.OpInt, unit.OpByte:
		n, err := strconv.ParseInt(rest, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", rest)
		}
		if op == unit.OpByte && (n < 0 || n > 255) {
			return fmt.Errorf("byte %d out of range", n)
		}
		inst.Int = n

	case unit.OpFloat:
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q", rest)
		}
		inst.Float = f

	case unit.OpChar:
		r, err := parseCharLit(rest)
		if err != nil {
			return err
		}
		inst.Int = int64(r)

	case unit.OpString:
		s, err := strconv.Unquote(rest)
		if err != nil {
			return fmt.Errorf("invalid string literal %s", rest)
		}
		inst.N = a.b.StaticString(s)

	case unit.OpCopy, unit.OpMove, unit.OpReplace, unit.OpDrop,
		unit.OpPopN, unit.OpClean, unit.OpVec, unit.OpTuple, unit.OpObject:
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", rest)
		}
		inst.N = n

	case unit.OpJump, unit.OpJumpIf, unit.OpJumpIfNot:
		if target, ok := strings.CutPrefix(rest, "@"); ok {
			a.patches = append(a.patches, patchSite{ip: a.b.Len(), label: target, line: num})
		} else {
			n, err := strconv.Atoi(rest)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid jump target %q", rest)
			}
			inst.N = n
		}

	case unit.OpCall:
		name, argcStr, ok := strings.Cut(rest, "/")
		if !ok {
			return fmt.Errorf("expected call name/argc, got %q", rest)
		}
		argc, err := strconv.Atoi(strings.TrimSpace(argcStr))
		if err != nil || argc < 0 {
			return fmt.Errorf("invalid argument count %q", argcStr)
		}
		inst.Hash = hash.Name(strings.TrimSpace(name))
		inst.N = argc

	case unit.OpAdd, unit.OpSub, unit.OpMul, unit.OpDiv, unit.OpRem,
		unit.OpEq, unit.OpNe, unit.OpLt, unit.OpLe, unit.OpGt, unit.OpGe,
		unit.OpIndexGet:
		a1, a2, ok := strings.Cut(rest, ",")
		if !ok {
			return fmt.Errorf("%s expects two addresses", mnemonic)
		}
		var err error
		if inst.A, err = parseAddress(strings.TrimSpace(a1)); err != nil {
			return err
		}
		if inst.B, err = parseAddress(strings.TrimSpace(a2)); err != nil {
			return err
		}

	case unit.OpTupleIndexGet:
		a1, idx, ok := strings.Cut(rest, ",")
		if !ok {
			return fmt.Errorf("tuple-index-get expects address, index")
		}
		var err error
		if inst.A, err = parseAddress(strings.TrimSpace(a1)); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid tuple index %q", idx)
		}
		inst.N = n
	}

	a.b.Emit(inst, span)
	return nil
}

func parseAddress(s string) (unit.Address, error) {
	if s == "top" {
		return unit.Top(), nil
	}
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return unit.Address{}, fmt.Errorf("invalid frame offset %q", s)
		}
		return unit.Offset(n), nil
	}
	return unit.Address{}, fmt.Errorf("invalid address %q, want top or +N", s)
}

func parseCharLit(s string) (rune, error) {
	if len(s) < 3 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, fmt.Errorf("invalid char literal %s", s)
	}
	body, err := strconv.Unquote(`"` + strings.ReplaceAll(s[1:len(s)-1], `"`, `\"`) + `"`)
	if err != nil {
		return 0, fmt.Errorf("invalid char literal %s", s)
	}
	runes := []rune(body)
	if len(runes) != 1 {
		return 0, fmt.Errorf("char literal %s must be a single rune", s)
	}
	return runes[0], nil
}
