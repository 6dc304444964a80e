// Package vm implements the execution engine: a stack machine over
// dynamically-typed reference-counted values whose aliasing is checked at
// run time by per-payload access controllers.
package vm

import (
	"fmt"
	"strings"

	"rill/internal/hash"
	"rill/internal/unit"
)

// Kind identifies the class of a VM error.
type Kind int

// Stable error codes - do not change values.
const (
	// Access errors: a borrow request conflicts with an outstanding borrow.
	// Recoverable by the caller once the conflicting guard is released.
	KindNotAccessibleRef  Kind = 1001 // VM1001: shared borrow denied
	KindNotAccessibleMut  Kind = 1002 // VM1002: exclusive borrow denied
	KindNotAccessibleTake Kind = 1003 // VM1003: take denied

	// Stack errors: the stack shape no longer matches what the bytecode
	// expects. Fatal for the execution.
	KindStackUnderflow Kind = 1101 // VM1101: pop/drain below the frame bottom
	KindBadStackFrame  Kind = 1102 // VM1102: frame-relative access out of window
	KindFrameMismatch  Kind = 1103 // VM1103: stack length wrong on frame return

	// Arithmetic errors: recoverable at the script level.
	KindOverflow     Kind = 1201 // VM1201: numerical overflow
	KindUnderflow    Kind = 1202 // VM1202: numerical underflow
	KindDivideByZero Kind = 1203 // VM1203: division or remainder by zero

	// Dispatch and lookup errors: malformed or mismatched unit. Fatal.
	KindMissingFunction     Kind = 1301 // VM1301: function hash not in unit or context
	KindIpOutOfBounds       Kind = 1302 // VM1302: instruction pointer escaped the unit
	KindMissingStaticString Kind = 1303 // VM1303: static string slot absent
	KindBadInstruction      Kind = 1304 // VM1304: undecodable or unsupported instruction
	KindBadNativeResult     Kind = 1305 // VM1305: native function broke the call convention

	// Value errors: an operation was applied to the wrong kind of value.
	KindBadArgumentCount Kind = 1401 // VM1401: call arity mismatch
	KindUnsupported      Kind = 1402 // VM1402: unsupported operand types
	KindExpected         Kind = 1403 // VM1403: value of one kind where another was required

	// Execution control.
	KindLimited Kind = 1501 // VM1501: step budget exhausted
)

// String returns the code as "VM1001" format.
func (k Kind) String() string {
	return fmt.Sprintf("VM%d", int(k))
}

// Recoverable reports whether the error may be handled without abandoning
// the execution (access conflicts and arithmetic faults).
func (k Kind) Recoverable() bool {
	switch k {
	case KindNotAccessibleRef, KindNotAccessibleMut, KindNotAccessibleTake,
		KindOverflow, KindUnderflow, KindDivideByZero:
		return true
	default:
		return false
	}
}

// FrameInfo is one entry of an unwound error's call backtrace.
type FrameInfo struct {
	IP          int
	StackBottom int
}

// VmError is the single error type produced by the engine. Once unwound it
// carries the instruction pointer and unit active when it was first raised;
// unwinding an already-unwound error is a no-op.
type VmError struct {
	Kind    Kind
	Message string

	ip      int
	hasIP   bool
	unit    *unit.Unit
	frames  []FrameInfo
	unwound bool
}

// Error implements the error interface.
func (e *VmError) Error() string {
	if e.unwound {
		return fmt.Sprintf("%s: %s (at ip=%d)", e.Kind, e.Message, e.ip)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwind annotates the error with the failure point. The first call wins.
func (e *VmError) Unwind(ip int, u *unit.Unit, frames []FrameInfo) *VmError {
	if e.unwound {
		return e
	}
	e.ip = ip
	e.hasIP = true
	e.unit = u
	e.frames = append([]FrameInfo(nil), frames...)
	e.unwound = true
	return e
}

// IP returns the instruction pointer captured at unwind time.
func (e *VmError) IP() (int, bool) {
	return e.ip, e.hasIP
}

// Unit returns the unit captured at unwind time, if any.
func (e *VmError) Unit() *unit.Unit {
	return e.unit
}

// Frames returns the call backtrace captured at unwind time, innermost
// last.
func (e *VmError) Frames() []FrameInfo {
	return e.frames
}

// Format renders the error with source positions resolved through the
// unit's debug info, when available.
func (e *VmError) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "error %s: %s\n", e.Kind, e.Message)
	if !e.hasIP {
		return sb.String()
	}

	if e.unit != nil {
		fmt.Fprintf(&sb, "at ip=%d (%s)\n", e.ip, e.unit.FormatSpanAt(e.ip))
	} else {
		fmt.Fprintf(&sb, "at ip=%d\n", e.ip)
	}

	if len(e.frames) > 0 {
		sb.WriteString("backtrace:\n")
		for i := len(e.frames) - 1; i >= 0; i-- {
			f := e.frames[i]
			loc := ""
			if e.unit != nil {
				loc = " at " + e.unit.FormatSpanAt(f.IP)
			}
			fmt.Fprintf(&sb, "  %d: ip=%d%s\n", len(e.frames)-1-i, f.IP, loc)
		}
	}
	return sb.String()
}

// NewError builds a VmError, for native function authors.
func NewError(kind Kind, format string, args ...any) *VmError {
	return &VmError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func newError(kind Kind, format string, args ...any) *VmError {
	return NewError(kind, format, args...)
}

func errStackUnderflow() *VmError {
	return newError(KindStackUnderflow, "nothing left to pop in the active frame")
}

func errBadStackFrame(offset, bottom, length int) *VmError {
	return newError(KindBadStackFrame, "frame offset %d outside window [%d, %d)", offset, bottom, length)
}

func errMissingFunction(h hash.Hash) *VmError {
	return newError(KindMissingFunction, "missing function with hash %s", h)
}

func errBadArgumentCount(actual, expected int) *VmError {
	return newError(KindBadArgumentCount, "wrong number of arguments %d, expected %d", actual, expected)
}

func errUnsupportedBinary(op string, lhs, rhs Value) *VmError {
	return newError(KindUnsupported, "unsupported operation `%s %s %s`", lhs.TypeInfo(), op, rhs.TypeInfo())
}

func errExpected(expected string, actual Value) *VmError {
	return newError(KindExpected, "expected %s, got %s", expected, actual.TypeInfo())
}
