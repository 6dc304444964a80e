package vm

import (
	"strings"

	"rill/internal/unit"
)

// Stack is the operand stack. stackBottom is the window base of the
// current call frame: frame-relative reads cannot reach below it, and
// underflow is reported against it rather than the physical bottom.
type Stack struct {
	values      []Value
	stackBottom int
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Len returns the total number of values, including ones below the window.
func (s *Stack) Len() int {
	return len(s.values)
}

// Bottom returns the current window base.
func (s *Stack) Bottom() int {
	return s.stackBottom
}

// Push places a value on top of the stack.
func (s *Stack) Push(v Value) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value. Popping below the window base is
// an underflow.
func (s *Stack) Pop() (Value, *VmError) {
	if len(s.values) <= s.stackBottom {
		return Value{}, errStackUnderflow()
	}
	v := s.values[len(s.values)-1]
	s.values[len(s.values)-1] = Value{}
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

// PopN removes the top count values without returning them.
func (s *Stack) PopN(count int) *VmError {
	if count < 0 || len(s.values)-s.stackBottom < count {
		return errStackUnderflow()
	}
	for i := len(s.values) - count; i < len(s.values); i++ {
		s.values[i] = Value{}
	}
	s.values = s.values[:len(s.values)-count]
	return nil
}

// Drain removes the top count values and returns them in push order.
func (s *Stack) Drain(count int) ([]Value, *VmError) {
	if count < 0 || len(s.values)-s.stackBottom < count {
		return nil, errStackUnderflow()
	}
	out := make([]Value, count)
	copy(out, s.values[len(s.values)-count:])
	for i := len(s.values) - count; i < len(s.values); i++ {
		s.values[i] = Value{}
	}
	s.values = s.values[:len(s.values)-count]
	return out, nil
}

// At reads the value at a frame-relative offset without removing it.
func (s *Stack) At(offset int) (Value, *VmError) {
	idx := s.stackBottom + offset
	if offset < 0 || idx >= len(s.values) {
		return Value{}, errBadStackFrame(offset, s.stackBottom, len(s.values))
	}
	return s.values[idx], nil
}

// Set overwrites the value at a frame-relative offset.
func (s *Stack) Set(offset int, v Value) *VmError {
	idx := s.stackBottom + offset
	if offset < 0 || idx >= len(s.values) {
		return errBadStackFrame(offset, s.stackBottom, len(s.values))
	}
	s.values[idx] = v
	return nil
}

// Address resolves an instruction operand: the top of the stack is
// consumed, a frame offset is cloned in place.
func (s *Stack) Address(addr unit.Address) (Value, *VmError) {
	switch addr.Kind {
	case unit.AddressTop:
		return s.Pop()
	case unit.AddressOffset:
		v, err := s.At(addr.Offset)
		if err != nil {
			return Value{}, err
		}
		return v.Clone(), nil
	default:
		return Value{}, newError(KindBadInstruction, "bad address kind %d", addr.Kind)
	}
}

// SwapBottom moves the window base so that exactly count values remain
// visible, and returns the previous base. Used when entering a call frame:
// the callee sees only its arguments.
func (s *Stack) SwapBottom(count int) (int, *VmError) {
	if count < 0 || len(s.values)-s.stackBottom < count {
		return 0, errStackUnderflow()
	}
	old := s.stackBottom
	s.stackBottom = len(s.values) - count
	return old, nil
}

// CheckTop verifies that exactly n values sit above the window base.
func (s *Stack) CheckTop(n int) *VmError {
	if got := len(s.values) - s.stackBottom; got != n {
		return newError(KindFrameMismatch, "expected %d values above frame, found %d", n, got)
	}
	return nil
}

// PopFrame discards everything above the window base and restores the
// previous base. restore must not lie above the current base.
func (s *Stack) PopFrame(restore int) *VmError {
	if restore < 0 || restore > s.stackBottom {
		return errBadStackFrame(restore, s.stackBottom, len(s.values))
	}
	for i := s.stackBottom; i < len(s.values); i++ {
		s.values[i] = Value{}
	}
	s.values = s.values[:s.stackBottom]
	s.stackBottom = restore
	return nil
}

// Dump renders the visible window for traces, top last.
func (s *Stack) Dump() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := s.stackBottom; i < len(s.values); i++ {
		if i > s.stackBottom {
			b.WriteString(", ")
		}
		b.WriteString(s.values[i].DebugString())
	}
	b.WriteByte(']')
	return b.String()
}

// Values exposes the full backing slice for inspection tools.
func (s *Stack) Values() []Value {
	return s.values
}
