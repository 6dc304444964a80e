package vm

import "rill/internal/unit"

// binaryOperands resolves the operands of a two-address instruction. The
// rhs resolves first so that when both address the top of the stack, the
// rhs takes the most recent push.
func (vm *Vm) binaryOperands(inst unit.Inst) (lhs, rhs Value, err *VmError) {
	rhs, err = vm.stack.Address(inst.B)
	if err != nil {
		return Value{}, Value{}, err
	}
	lhs, err = vm.stack.Address(inst.A)
	if err != nil {
		rhs.Release()
		return Value{}, Value{}, err
	}
	return lhs, rhs, nil
}

func (vm *Vm) execNeg() *VmError {
	v, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	switch v.Kind() {
	case VKInt:
		n, _ := v.Int()
		out, ok := NegInt64Checked(n)
		if !ok {
			return newError(KindOverflow, "integer negation overflow")
		}
		vm.stack.Push(MakeInt(out))
		return nil
	case VKFloat:
		f, _ := v.Float()
		vm.stack.Push(MakeFloat(-f))
		return nil
	default:
		return errExpected("number", v)
	}
}

func (vm *Vm) execArith(inst unit.Inst) *VmError {
	lhs, rhs, err := vm.binaryOperands(inst)
	if err != nil {
		return err
	}
	defer lhs.Release()
	defer rhs.Release()

	switch {
	case lhs.Kind() == VKInt && rhs.Kind() == VKInt:
		a, _ := lhs.Int()
		b, _ := rhs.Int()
		out, err := intArith(inst.Op, a, b)
		if err != nil {
			return err
		}
		vm.stack.Push(MakeInt(out))
		return nil
	case lhs.Kind() == VKFloat && rhs.Kind() == VKFloat:
		a, _ := lhs.Float()
		b, _ := rhs.Float()
		out, err := floatArith(inst.Op, a, b)
		if err != nil {
			return err
		}
		vm.stack.Push(MakeFloat(out))
		return nil
	case inst.Op == unit.OpAdd && lhs.Kind() == VKString && rhs.Kind() == VKString:
		return vm.concatStrings(lhs, rhs)
	default:
		return errUnsupportedBinary(inst.Op.String(), lhs, rhs)
	}
}

func intArith(op unit.Op, a, b int64) (int64, *VmError) {
	switch op {
	case unit.OpAdd:
		out, ok := AddInt64Checked(a, b)
		if !ok {
			return 0, newError(KindOverflow, "integer addition overflow")
		}
		return out, nil
	case unit.OpSub:
		out, ok := SubInt64Checked(a, b)
		if !ok {
			return 0, newError(KindUnderflow, "integer subtraction overflow")
		}
		return out, nil
	case unit.OpMul:
		out, ok := MulInt64Checked(a, b)
		if !ok {
			return 0, newError(KindOverflow, "integer multiplication overflow")
		}
		return out, nil
	case unit.OpDiv:
		return DivInt64Checked(a, b)
	case unit.OpRem:
		return RemInt64Checked(a, b)
	default:
		return 0, newError(KindBadInstruction, "op %s is not integer arithmetic", op)
	}
}

func floatArith(op unit.Op, a, b float64) (float64, *VmError) {
	switch op {
	case unit.OpAdd:
		return a + b, nil
	case unit.OpSub:
		return a - b, nil
	case unit.OpMul:
		return a * b, nil
	case unit.OpDiv:
		if b == 0 {
			return 0, newError(KindDivideByZero, "float division by zero")
		}
		return a / b, nil
	case unit.OpRem:
		if b == 0 {
			return 0, newError(KindDivideByZero, "float remainder by zero")
		}
		return floatRem(a, b), nil
	default:
		return 0, newError(KindBadInstruction, "op %s is not float arithmetic", op)
	}
}

func floatRem(a, b float64) float64 {
	return a - b*float64(int64(a/b))
}

func (vm *Vm) concatStrings(lhs, rhs Value) *VmError {
	lr, err := lhs.BorrowStringRef()
	if err != nil {
		return err
	}
	defer lr.Release()
	rr, err := rhs.BorrowStringRef()
	if err != nil {
		return err
	}
	defer rr.Release()
	out := *lr.Get() + *rr.Get()
	vm.stack.Push(MakeString(&out))
	return nil
}

func (vm *Vm) execCompare(inst unit.Inst) *VmError {
	lhs, rhs, err := vm.binaryOperands(inst)
	if err != nil {
		return err
	}
	defer lhs.Release()
	defer rhs.Release()

	switch inst.Op {
	case unit.OpEq, unit.OpNe:
		eq, err := valueEq(lhs, rhs)
		if err != nil {
			return err
		}
		vm.stack.Push(MakeBool(eq == (inst.Op == unit.OpEq)))
		return nil
	default:
		ord, err := compareValues(lhs, rhs)
		if err != nil {
			return err
		}
		var out bool
		switch inst.Op {
		case unit.OpLt:
			out = ord < 0
		case unit.OpLe:
			out = ord <= 0
		case unit.OpGt:
			out = ord > 0
		case unit.OpGe:
			out = ord >= 0
		}
		vm.stack.Push(MakeBool(out))
		return nil
	}
}

// compareValues orders two values of the same scalar-comparable kind,
// returning -1, 0 or 1.
func compareValues(lhs, rhs Value) (int, *VmError) {
	if lhs.Kind() != rhs.Kind() {
		return 0, errUnsupportedBinary("cmp", lhs, rhs)
	}
	switch lhs.Kind() {
	case VKInt, VKByte, VKChar:
		a, b := lhs.n, rhs.n
		return orderInt64(a, b), nil
	case VKFloat:
		switch {
		case lhs.f < rhs.f:
			return -1, nil
		case lhs.f > rhs.f:
			return 1, nil
		default:
			return 0, nil
		}
	case VKString:
		lr, err := lhs.BorrowStringRef()
		if err != nil {
			return 0, err
		}
		defer lr.Release()
		rr, err := rhs.BorrowStringRef()
		if err != nil {
			return 0, err
		}
		defer rr.Release()
		switch {
		case *lr.Get() < *rr.Get():
			return -1, nil
		case *lr.Get() > *rr.Get():
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, errUnsupportedBinary("cmp", lhs, rhs)
	}
}

func orderInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
