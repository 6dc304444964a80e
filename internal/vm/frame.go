package vm

import "rill/internal/unit"

// CallFrame records what a Call must restore on its matching Return: the
// caller's next instruction and the caller's stack window base. Fn is kept
// for diagnostics only.
type CallFrame struct {
	ReturnIP    int
	StackBottom int
	Fn          unit.FnInfo
}
