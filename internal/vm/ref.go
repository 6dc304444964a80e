package vm

// Ref is a shared borrow of a managed payload. The handle owns the guard;
// projections via MapRef/TryMapRef move the guard into the derived handle,
// so releasing the projection releases the original borrow.
type Ref[T any] struct {
	data  *T
	guard *SharedGuard
}

// Get returns the borrowed payload.
func (r *Ref[T]) Get() *T {
	return r.data
}

// Release returns the borrow. Idempotent.
func (r *Ref[T]) Release() {
	if r == nil {
		return
	}
	r.guard.Release()
}

// Mut is an exclusive borrow of a managed payload.
type Mut[T any] struct {
	data  *T
	guard *ExclusiveGuard
}

// Get returns the borrowed payload.
func (m *Mut[T]) Get() *T {
	return m.data
}

// Release returns the borrow. Idempotent.
func (m *Mut[T]) Release() {
	if m == nil {
		return
	}
	m.guard.Release()
}

// MapRef projects a shared borrow onto a component of its payload. The
// guard transfers to the returned handle; the input handle must not be
// used afterwards.
func MapRef[T, U any](r *Ref[T], project func(*T) *U) *Ref[U] {
	return &Ref[U]{data: project(r.data), guard: r.guard}
}

// TryMapRef is MapRef for fallible projections. On failure the original
// handle is returned unchanged so the caller can release or retry it.
func TryMapRef[T, U any](r *Ref[T], project func(*T) (*U, bool)) (*Ref[U], *Ref[T]) {
	u, ok := project(r.data)
	if !ok {
		return nil, r
	}
	return &Ref[U]{data: u, guard: r.guard}, nil
}

// MapMut projects an exclusive borrow onto a component of its payload.
func MapMut[T, U any](m *Mut[T], project func(*T) *U) *Mut[U] {
	return &Mut[U]{data: project(m.data), guard: m.guard}
}

// TryMapMut is MapMut for fallible projections. On failure the original
// handle is returned unchanged.
func TryMapMut[T, U any](m *Mut[T], project func(*T) (*U, bool)) (*Mut[U], *Mut[T]) {
	u, ok := project(m.data)
	if !ok {
		return nil, m
	}
	return &Mut[U]{data: u, guard: m.guard}, nil
}

func borrowRef[T any](v Value, kind ValueKind) (*Ref[T], *VmError) {
	if v.kind != kind || v.cell == nil {
		return nil, errExpected(kind.String(), v)
	}
	guard, err := v.cell.access.Shared()
	if err != nil {
		return nil, err
	}
	return &Ref[T]{data: v.cell.data.(*T), guard: guard}, nil
}

func borrowMut[T any](v Value, kind ValueKind) (*Mut[T], *VmError) {
	if v.kind != kind || v.cell == nil {
		return nil, errExpected(kind.String(), v)
	}
	guard, err := v.cell.access.Exclusive()
	if err != nil {
		return nil, err
	}
	return &Mut[T]{data: v.cell.data.(*T), guard: guard}, nil
}

func takePayload[T any](v Value, kind ValueKind) (T, *VmError) {
	var zero T
	if v.kind != kind || v.cell == nil {
		return zero, errExpected(kind.String(), v)
	}
	guard, err := v.cell.access.Take()
	if err != nil {
		return zero, err
	}
	out := *v.cell.data.(*T)
	guard.Commit()
	return out, nil
}

func (v Value) BorrowStringRef() (*Ref[string], *VmError) {
	return borrowRef[string](v, VKString)
}

func (v Value) BorrowStringMut() (*Mut[string], *VmError) {
	return borrowMut[string](v, VKString)
}

func (v Value) BorrowVecRef() (*Ref[[]Value], *VmError) {
	return borrowRef[[]Value](v, VKVec)
}

func (v Value) BorrowVecMut() (*Mut[[]Value], *VmError) {
	return borrowMut[[]Value](v, VKVec)
}

func (v Value) BorrowTupleRef() (*Ref[[]Value], *VmError) {
	return borrowRef[[]Value](v, VKTuple)
}

func (v Value) BorrowObjectRef() (*Ref[Object], *VmError) {
	return borrowRef[Object](v, VKObject)
}

func (v Value) BorrowObjectMut() (*Mut[Object], *VmError) {
	return borrowMut[Object](v, VKObject)
}

func (v Value) BorrowInstanceRef() (*Ref[Instance], *VmError) {
	return borrowRef[Instance](v, VKInstance)
}

func (v Value) BorrowInstanceMut() (*Mut[Instance], *VmError) {
	return borrowMut[Instance](v, VKInstance)
}

func (v Value) BorrowAnyRef() (*Ref[any], *VmError) {
	return borrowRef[any](v, VKAny)
}

// TakeString moves the string payload out, leaving the cell moved.
func (v Value) TakeString() (string, *VmError) {
	return takePayload[string](v, VKString)
}

// TakeVec moves the vector payload out, leaving the cell moved.
func (v Value) TakeVec() ([]Value, *VmError) {
	return takePayload[[]Value](v, VKVec)
}

// TakeObject moves the object payload out, leaving the cell moved.
func (v Value) TakeObject() (Object, *VmError) {
	return takePayload[Object](v, VKObject)
}
