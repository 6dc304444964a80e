// Package unit defines the compiled unit a virtual machine executes: the
// instruction set, the function table keyed by item hash, the static string
// pool and the debug-info side table. Units are immutable once built and may
// be shared read-only between any number of machines.
package unit

import (
	"fmt"

	"rill/internal/hash"
)

// AddressKind selects how an instruction operand is resolved.
type AddressKind uint8

const (
	// AddressTop resolves the operand by popping the top of the stack.
	AddressTop AddressKind = iota
	// AddressOffset resolves the operand at a frame-relative offset without
	// consuming it.
	AddressOffset
)

// Address names one operand location for an instruction. The zero value is
// the implicit top-of-stack address.
type Address struct {
	Kind   AddressKind
	Offset int
}

// Top returns the implicit top-of-stack address.
func Top() Address {
	return Address{Kind: AddressTop}
}

// Offset returns a frame-relative operand address.
func Offset(n int) Address {
	return Address{Kind: AddressOffset, Offset: n}
}

func (a Address) String() string {
	switch a.Kind {
	case AddressTop:
		return "top"
	case AddressOffset:
		return fmt.Sprintf("+%d", a.Offset)
	default:
		return fmt.Sprintf("Address(%d)", a.Kind)
	}
}

// Op identifies a bytecode instruction.
type Op uint8

const (
	// OpNop does nothing.
	OpNop Op = iota

	// OpUnit pushes the unit value.
	OpUnit
	// OpBool pushes Int != 0 as a boolean.
	OpBool
	// OpInt pushes the Int immediate.
	OpInt
	// OpFloat pushes the Float immediate.
	OpFloat
	// OpByte pushes the low byte of the Int immediate.
	OpByte
	// OpChar pushes the Int immediate as a character.
	OpChar
	// OpString pushes a fresh managed string copied from static slot N.
	OpString

	// OpCopy clones the value at frame offset N onto the top of the stack.
	OpCopy
	// OpMove moves the value at frame offset N to the top, leaving unit.
	OpMove
	// OpReplace pops the top of the stack into frame offset N.
	OpReplace
	// OpDrop releases the value at frame offset N, leaving unit.
	OpDrop
	// OpDup clones the top of the stack.
	OpDup
	// OpPop discards the top of the stack.
	OpPop
	// OpPopN discards the top N values.
	OpPopN
	// OpClean discards the N values below the top, preserving the top.
	// Functions use it to drop arguments and locals before returning.
	OpClean

	// OpJump sets the instruction pointer to N.
	OpJump
	// OpJumpIf jumps to N when the popped condition is true.
	OpJumpIf
	// OpJumpIfNot jumps to N when the popped condition is false.
	OpJumpIfNot

	// OpCall calls the function table or native entry H with N arguments
	// taken from the top of the stack.
	OpCall

	// OpNot replaces the popped boolean with its negation.
	OpNot
	// OpNeg replaces the popped number with its negation.
	OpNeg

	// OpAdd through OpRem apply checked arithmetic to operands A and B and
	// push the result.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem

	// OpEq through OpGe compare operands A and B and push a boolean.
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// OpVec drains the top N values into a new vector.
	OpVec
	// OpTuple drains the top N values into a new tuple.
	OpTuple
	// OpObject drains the top 2*N values as key/value pairs into an object.
	OpObject

	// OpIndexGet pushes target[index] for operands A (target) and B (index).
	OpIndexGet
	// OpIndexSet pops value, index and target and stores target[index] = value.
	OpIndexSet
	// OpTupleIndexGet pushes field N of the tuple-like operand A.
	OpTupleIndexGet

	// OpReturn pops the return value and the current call frame.
	OpReturn
	// OpReturnUnit pops the current call frame and pushes unit.
	OpReturnUnit
)

var opNames = map[Op]string{
	OpNop:           "nop",
	OpUnit:          "unit",
	OpBool:          "bool",
	OpInt:           "int",
	OpFloat:         "float",
	OpByte:          "byte",
	OpChar:          "char",
	OpString:        "string",
	OpCopy:          "copy",
	OpMove:          "move",
	OpReplace:       "replace",
	OpDrop:          "drop",
	OpDup:           "dup",
	OpPop:           "pop",
	OpPopN:          "popn",
	OpClean:         "clean",
	OpJump:          "jump",
	OpJumpIf:        "jump-if",
	OpJumpIfNot:     "jump-if-not",
	OpCall:          "call",
	OpNot:           "not",
	OpNeg:           "neg",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpDiv:           "div",
	OpRem:           "rem",
	OpEq:            "eq",
	OpNe:            "ne",
	OpLt:            "lt",
	OpLe:            "le",
	OpGt:            "gt",
	OpGe:            "ge",
	OpVec:           "vec",
	OpTuple:         "tuple",
	OpObject:        "object",
	OpIndexGet:      "index-get",
	OpIndexSet:      "index-set",
	OpTupleIndexGet: "tuple-index-get",
	OpReturn:        "ret",
	OpReturnUnit:    "ret-unit",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Inst is one decoded bytecode instruction. Which fields are meaningful
// depends on the op; unused fields stay zero.
type Inst struct {
	Op    Op
	A     Address   // first operand (lhs / target)
	B     Address   // second operand (rhs / index)
	Int   int64     // immediate for OpBool/OpInt/OpByte/OpChar
	Float float64   // immediate for OpFloat
	N     int       // count, slot, jump target or argument count
	Hash  hash.Hash // call target for OpCall
}

func (i Inst) String() string {
	switch i.Op {
	case OpBool:
		return fmt.Sprintf("bool %t", i.Int != 0)
	case OpInt, OpByte:
		return fmt.Sprintf("%s %d", i.Op, i.Int)
	case OpChar:
		return fmt.Sprintf("char %q", rune(i.Int)) // #nosec G115 -- validated on emit
	case OpFloat:
		return fmt.Sprintf("float %v", i.Float)
	case OpString, OpCopy, OpMove, OpReplace, OpDrop, OpPopN, OpClean, OpVec, OpTuple, OpObject:
		return fmt.Sprintf("%s %d", i.Op, i.N)
	case OpJump, OpJumpIf, OpJumpIfNot:
		return fmt.Sprintf("%s ip=%d", i.Op, i.N)
	case OpCall:
		return fmt.Sprintf("call %s args=%d", i.Hash, i.N)
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIndexGet:
		return fmt.Sprintf("%s %s, %s", i.Op, i.A, i.B)
	case OpTupleIndexGet:
		return fmt.Sprintf("tuple-index-get %s, %d", i.A, i.N)
	default:
		return i.Op.String()
	}
}
