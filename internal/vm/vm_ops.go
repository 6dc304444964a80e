package vm

import "rill/internal/unit"

// execInst performs one instruction's stack effect. next arrives as ip+1
// and may be redirected by jumps, calls and returns.
func (vm *Vm) execInst(inst unit.Inst, next *int) *VmError {
	switch inst.Op {
	case unit.OpNop:
		return nil

	case unit.OpUnit:
		vm.stack.Push(MakeUnit())
		return nil
	case unit.OpBool:
		vm.stack.Push(MakeBool(inst.Int != 0))
		return nil
	case unit.OpInt:
		vm.stack.Push(MakeInt(inst.Int))
		return nil
	case unit.OpFloat:
		vm.stack.Push(MakeFloat(inst.Float))
		return nil
	case unit.OpByte:
		vm.stack.Push(MakeByte(byte(inst.Int)))
		return nil
	case unit.OpChar:
		vm.stack.Push(MakeChar(rune(inst.Int)))
		return nil
	case unit.OpString:
		s, ok := vm.unit.StaticString(inst.N)
		if !ok {
			return newError(KindMissingStaticString, "no static string in slot %d", inst.N)
		}
		cp := s
		vm.stack.Push(MakeString(&cp))
		return nil

	case unit.OpCopy:
		v, err := vm.stack.At(inst.N)
		if err != nil {
			return err
		}
		vm.stack.Push(v.Clone())
		return nil
	case unit.OpMove:
		v, err := vm.stack.At(inst.N)
		if err != nil {
			return err
		}
		if err := vm.stack.Set(inst.N, MakeUnit()); err != nil {
			return err
		}
		vm.stack.Push(v)
		return nil
	case unit.OpReplace:
		v, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		old, err := vm.stack.At(inst.N)
		if err != nil {
			return err
		}
		old.Release()
		return vm.stack.Set(inst.N, v)
	case unit.OpDrop:
		v, err := vm.stack.At(inst.N)
		if err != nil {
			return err
		}
		v.Release()
		return vm.stack.Set(inst.N, MakeUnit())
	case unit.OpDup:
		v, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		vm.stack.Push(v)
		vm.stack.Push(v.Clone())
		return nil
	case unit.OpPop:
		v, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		v.Release()
		return nil
	case unit.OpPopN:
		dropped, err := vm.stack.Drain(inst.N)
		if err != nil {
			return err
		}
		for _, v := range dropped {
			v.Release()
		}
		return nil
	case unit.OpClean:
		top, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		dropped, err := vm.stack.Drain(inst.N)
		if err != nil {
			vm.stack.Push(top)
			return err
		}
		for _, v := range dropped {
			v.Release()
		}
		vm.stack.Push(top)
		return nil

	case unit.OpJump:
		*next = inst.N
		return nil
	case unit.OpJumpIf, unit.OpJumpIfNot:
		v, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		cond, err := v.Bool()
		if err != nil {
			return err
		}
		if cond == (inst.Op == unit.OpJumpIf) {
			*next = inst.N
		}
		return nil

	case unit.OpCall:
		return vm.call(inst.Hash, inst.N, next)

	case unit.OpNot:
		v, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		b, err := v.Bool()
		if err != nil {
			return err
		}
		vm.stack.Push(MakeBool(!b))
		return nil
	case unit.OpNeg:
		return vm.execNeg()

	case unit.OpAdd, unit.OpSub, unit.OpMul, unit.OpDiv, unit.OpRem:
		return vm.execArith(inst)
	case unit.OpEq, unit.OpNe, unit.OpLt, unit.OpLe, unit.OpGt, unit.OpGe:
		return vm.execCompare(inst)

	case unit.OpVec:
		items, err := vm.stack.Drain(inst.N)
		if err != nil {
			return err
		}
		vm.stack.Push(MakeVec(&items))
		return nil
	case unit.OpTuple:
		items, err := vm.stack.Drain(inst.N)
		if err != nil {
			return err
		}
		vm.stack.Push(MakeTuple(&items))
		return nil
	case unit.OpObject:
		return vm.execObject(inst.N)

	case unit.OpIndexGet:
		return vm.execIndexGet(inst)
	case unit.OpIndexSet:
		return vm.execIndexSet()
	case unit.OpTupleIndexGet:
		return vm.execTupleIndexGet(inst)

	case unit.OpReturn:
		result, err := vm.stack.Pop()
		if err != nil {
			return err
		}
		return vm.ret(result, next)
	case unit.OpReturnUnit:
		return vm.ret(MakeUnit(), next)

	default:
		return newError(KindBadInstruction, "unsupported op %s", inst.Op)
	}
}

func (vm *Vm) execObject(pairs int) *VmError {
	items, err := vm.stack.Drain(2 * pairs)
	if err != nil {
		return err
	}
	fields := make(Object, pairs)
	for i := 0; i < pairs; i++ {
		keyVal := items[2*i]
		ref, err := keyVal.BorrowStringRef()
		if err != nil {
			return err
		}
		key := *ref.Get()
		ref.Release()
		keyVal.Release()
		fields[key] = items[2*i+1]
	}
	vm.stack.Push(MakeObject(&fields))
	return nil
}

func (vm *Vm) execIndexGet(inst unit.Inst) *VmError {
	index, err := vm.stack.Address(inst.B)
	if err != nil {
		return err
	}
	target, err := vm.stack.Address(inst.A)
	if err != nil {
		return err
	}
	defer target.Release()
	defer index.Release()

	out, err := indexGet(target, index)
	if err != nil {
		return err
	}
	vm.stack.Push(out)
	return nil
}

func indexGet(target, index Value) (Value, *VmError) {
	switch target.Kind() {
	case VKVec:
		n, err := index.Int()
		if err != nil {
			return Value{}, err
		}
		ref, err := target.BorrowVecRef()
		if err != nil {
			return Value{}, err
		}
		defer ref.Release()
		items := *ref.Get()
		if n < 0 || n >= int64(len(items)) {
			return Value{}, newError(KindUnsupported, "vector index %d out of range %d", n, len(items))
		}
		return items[n].Clone(), nil
	case VKObject:
		keyRef, err := index.BorrowStringRef()
		if err != nil {
			return Value{}, err
		}
		key := *keyRef.Get()
		keyRef.Release()
		ref, err := target.BorrowObjectRef()
		if err != nil {
			return Value{}, err
		}
		defer ref.Release()
		v, ok := (*ref.Get())[key]
		if !ok {
			return Value{}, newError(KindUnsupported, "object has no key %q", key)
		}
		return v.Clone(), nil
	default:
		return Value{}, errExpected("indexable value", target)
	}
}

func (vm *Vm) execIndexSet() *VmError {
	value, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	index, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	target, err := vm.stack.Pop()
	if err != nil {
		return err
	}
	defer target.Release()
	defer index.Release()

	switch target.Kind() {
	case VKVec:
		n, err := index.Int()
		if err != nil {
			return err
		}
		mut, err := target.BorrowVecMut()
		if err != nil {
			return err
		}
		defer mut.Release()
		items := *mut.Get()
		if n < 0 || n >= int64(len(items)) {
			return newError(KindUnsupported, "vector index %d out of range %d", n, len(items))
		}
		items[n].Release()
		items[n] = value
		return nil
	case VKObject:
		keyRef, err := index.BorrowStringRef()
		if err != nil {
			return err
		}
		key := *keyRef.Get()
		keyRef.Release()
		mut, err := target.BorrowObjectMut()
		if err != nil {
			return err
		}
		defer mut.Release()
		if old, ok := (*mut.Get())[key]; ok {
			old.Release()
		}
		(*mut.Get())[key] = value
		return nil
	default:
		return errExpected("indexable value", target)
	}
}

func (vm *Vm) execTupleIndexGet(inst unit.Inst) *VmError {
	target, err := vm.stack.Address(inst.A)
	if err != nil {
		return err
	}
	defer target.Release()

	ref, err := target.BorrowTupleRef()
	if err != nil {
		return err
	}
	defer ref.Release()
	items := *ref.Get()
	if inst.N < 0 || inst.N >= len(items) {
		return newError(KindUnsupported, "tuple index %d out of range %d", inst.N, len(items))
	}
	vm.stack.Push(items[inst.N].Clone())
	return nil
}
