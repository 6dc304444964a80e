package vm

import (
	"fmt"
	"sort"
	"strings"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	VKUnit ValueKind = iota
	VKBool
	VKByte
	VKChar
	VKInt
	VKFloat
	VKString
	VKVec
	VKTuple
	VKObject
	VKInstance
	VKAny
)

func (k ValueKind) String() string {
	switch k {
	case VKUnit:
		return "unit"
	case VKBool:
		return "bool"
	case VKByte:
		return "byte"
	case VKChar:
		return "char"
	case VKInt:
		return "int"
	case VKFloat:
		return "float"
	case VKString:
		return "string"
	case VKVec:
		return "vec"
	case VKTuple:
		return "tuple"
	case VKObject:
		return "object"
	case VKInstance:
		return "instance"
	case VKAny:
		return "any"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Object is the payload of an object value: string keys to values.
type Object map[string]Value

// Instance is a named composite produced by user types.
type Instance struct {
	Type    string
	Variant string
	Fields  Object
}

// Cell is the shared allocation behind a managed value. Clones of a value
// point at the same cell; the access controller mediates every read and
// write of data.
type Cell struct {
	access Access
	refs   int32
	data   any
}

func newCell(data any) *Cell {
	return &Cell{refs: 1, data: data}
}

// Refs returns the current clone count, for introspection.
func (c *Cell) Refs() int32 {
	return c.refs
}

// Access exposes the cell's borrow controller.
func (c *Cell) Access() *Access {
	return &c.access
}

// Value is a VM value. Scalars are stored inline; managed kinds point at a
// shared Cell. The zero Value is unit.
type Value struct {
	kind ValueKind
	n    int64
	f    float64
	cell *Cell
}

func MakeUnit() Value {
	return Value{kind: VKUnit}
}

func MakeBool(b bool) Value {
	v := Value{kind: VKBool}
	if b {
		v.n = 1
	}
	return v
}

func MakeByte(b byte) Value {
	return Value{kind: VKByte, n: int64(b)}
}

func MakeChar(c rune) Value {
	return Value{kind: VKChar, n: int64(c)}
}

func MakeInt(n int64) Value {
	return Value{kind: VKInt, n: n}
}

func MakeFloat(f float64) Value {
	return Value{kind: VKFloat, f: f}
}

func MakeString(s *string) Value {
	return Value{kind: VKString, cell: newCell(s)}
}

func MakeVec(items *[]Value) Value {
	return Value{kind: VKVec, cell: newCell(items)}
}

func MakeTuple(items *[]Value) Value {
	return Value{kind: VKTuple, cell: newCell(items)}
}

func MakeObject(fields *Object) Value {
	return Value{kind: VKObject, cell: newCell(fields)}
}

func MakeInstance(inst *Instance) Value {
	return Value{kind: VKInstance, cell: newCell(inst)}
}

// MakeAny wraps an opaque host value. It compares by cell identity only.
func MakeAny(v *any) Value {
	return Value{kind: VKAny, cell: newCell(v)}
}

// Kind returns the runtime type of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsManaged reports whether the value points at a shared cell.
func (v Value) IsManaged() bool {
	return v.cell != nil
}

// Cell returns the shared allocation, or nil for scalars.
func (v Value) Cell() *Cell {
	return v.cell
}

// Clone returns a value aliasing the same cell. Scalars copy by value.
func (v Value) Clone() Value {
	if v.cell != nil {
		v.cell.refs++
	}
	return v
}

// Release drops one clone of the value. It does not free anything; the Go
// collector reclaims cells once unreachable, but the count keeps dumps and
// tests honest about aliasing.
func (v Value) Release() {
	if v.cell != nil {
		v.cell.refs--
	}
}

func (v Value) Bool() (bool, *VmError) {
	if v.kind != VKBool {
		return false, errExpected("bool", v)
	}
	return v.n != 0, nil
}

func (v Value) Int() (int64, *VmError) {
	if v.kind != VKInt {
		return 0, errExpected("int", v)
	}
	return v.n, nil
}

func (v Value) Float() (float64, *VmError) {
	if v.kind != VKFloat {
		return 0, errExpected("float", v)
	}
	return v.f, nil
}

func (v Value) Byte() (byte, *VmError) {
	if v.kind != VKByte {
		return 0, errExpected("byte", v)
	}
	return byte(v.n), nil
}

func (v Value) Char() (rune, *VmError) {
	if v.kind != VKChar {
		return 0, errExpected("char", v)
	}
	return rune(v.n), nil
}

// TypeInfo names the value's type for diagnostics.
func (v Value) TypeInfo() string {
	return v.kind.String()
}

// String renders scalars directly and managed values by kind only. It never
// borrows, so it is safe in error paths.
func (v Value) String() string {
	switch v.kind {
	case VKUnit:
		return "()"
	case VKBool:
		if v.n != 0 {
			return "true"
		}
		return "false"
	case VKByte:
		return fmt.Sprintf("0x%02x", byte(v.n))
	case VKChar:
		return fmt.Sprintf("%q", rune(v.n))
	case VKInt:
		return fmt.Sprintf("%d", v.n)
	case VKFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

const debugPreviewRunes = 32

// DebugString renders the value for traces and stack dumps. Managed values
// are borrowed shared for the duration of the render; if the borrow fails
// the current access state is shown instead.
func (v Value) DebugString() string {
	if v.cell == nil {
		return v.String()
	}
	guard, err := v.cell.access.Shared()
	if err != nil {
		return fmt.Sprintf("<%s>", v.cell.access.Snapshot())
	}
	defer guard.Release()

	switch v.kind {
	case VKString:
		s := v.cell.data.(*string)
		return fmt.Sprintf("%q", truncateRunes(*s, debugPreviewRunes))
	case VKVec:
		items := v.cell.data.(*[]Value)
		return fmt.Sprintf("vec(len=%d)", len(*items))
	case VKTuple:
		items := v.cell.data.(*[]Value)
		return fmt.Sprintf("tuple(len=%d)", len(*items))
	case VKObject:
		fields := v.cell.data.(*Object)
		return fmt.Sprintf("object{%s}", formatKeys(*fields))
	case VKInstance:
		inst := v.cell.data.(*Instance)
		if inst.Variant != "" {
			return fmt.Sprintf("%s::%s", inst.Type, inst.Variant)
		}
		return inst.Type
	case VKAny:
		return fmt.Sprintf("any(%T)", *v.cell.data.(*any))
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func formatKeys(fields Object) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// valueEq compares two values structurally. Managed operands are borrowed
// shared for the comparison; an inaccessible operand fails with the borrow
// error.
func valueEq(a, b Value) (bool, *VmError) {
	if a.kind != b.kind {
		return false, nil
	}
	switch a.kind {
	case VKUnit:
		return true, nil
	case VKBool, VKByte, VKChar, VKInt:
		return a.n == b.n, nil
	case VKFloat:
		return a.f == b.f, nil
	case VKAny:
		return a.cell == b.cell, nil
	}
	if a.cell == b.cell {
		return true, nil
	}
	ga, err := a.cell.access.Shared()
	if err != nil {
		return false, err
	}
	defer ga.Release()
	gb, err := b.cell.access.Shared()
	if err != nil {
		return false, err
	}
	defer gb.Release()

	switch a.kind {
	case VKString:
		return *a.cell.data.(*string) == *b.cell.data.(*string), nil
	case VKVec, VKTuple:
		return sliceEq(*a.cell.data.(*[]Value), *b.cell.data.(*[]Value))
	case VKObject:
		return objectEq(*a.cell.data.(*Object), *b.cell.data.(*Object))
	case VKInstance:
		ia := a.cell.data.(*Instance)
		ib := b.cell.data.(*Instance)
		if ia.Type != ib.Type || ia.Variant != ib.Variant {
			return false, nil
		}
		return objectEq(ia.Fields, ib.Fields)
	default:
		return false, newError(KindUnsupported, "cannot compare %s values", a.kind)
	}
}

func sliceEq(a, b []Value) (bool, *VmError) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, err := valueEq(a[i], b[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

func objectEq(a, b Object) (bool, *VmError) {
	if len(a) != len(b) {
		return false, nil
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false, nil
		}
		eq, err := valueEq(av, bv)
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}
