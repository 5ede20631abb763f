// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "fmt"

// putEngine is implemented by every queue variant's internal engine; it
// lets PutTransaction commit or cancel without knowing which variant
// created it.
type putEngine interface {
	commitPut(pg *page, idx int)
	cancelPutLocked(pg *page, idx int)
	allocatorFor() *Allocator
}

// PutTransaction is an RAII-style handle for an in-progress put, per spec
// §4.4.4 and §6. The caller must call Commit or Cancel exactly once;
// calling neither leaks the claimed slot as permanently BUSY, which is a
// programming error the way an un-committed C++ transaction leaking past
// its destructor would be — Go has no destructors, so unlike the source
// this is not automatically cancelled on drop (see DESIGN.md).
type PutTransaction struct {
	eng       putEngine
	page      *page
	idx       int
	typ       RuntimeType
	external  bool
	val       any
	rawBlocks []any
	done      bool
}

func (t *PutTransaction) setValue(v any) {
	if t.external {
		box := t.allocExternal(v)
		t.page.slots[t.idx].ext = box
	} else {
		t.val = v
		t.page.slots[t.idx].val = v
	}
}

func (t *PutTransaction) allocExternal(v any) *externalBox {
	return t.eng.allocatorFor().AllocateExternal(t.typ, v)
}

// Type returns the transaction's runtime type.
func (t *PutTransaction) Type() RuntimeType { return t.typ }

// Element returns the transaction's payload as an interface value; the
// caller type-asserts it, and a failed assertion panics.
func (t *PutTransaction) Element() any {
	if t.external {
		return t.page.slots[t.idx].ext.obj
	}
	return t.val
}

// ElementPtr returns the same value as Element. It is not a pointer into
// the slot: the payload is stored as an interface value, and changing
// the returned value does not change what the slot holds.
func (t *PutTransaction) ElementPtr() any {
	return t.Element()
}

// RawAllocate reserves size bytes of raw storage sharing this element's
// lifecycle, per spec §4.4.4's raw_allocate. The Go rendition hands back
// an opaque handle (index into the transaction's raw-block list) rather
// than a byte pointer, since there is no inline byte arena to carve from
// (see DESIGN.md). The block is held by the transaction, not by the slot:
// a consumer cannot reach it, and it is not released on consume or
// cancel; the garbage collector reclaims it once the transaction is
// unreachable. No alignment can be requested.
func (t *PutTransaction) RawAllocate(size uintptr) int {
	block := make([]byte, size)
	t.rawBlocks = append(t.rawBlocks, block)
	return len(t.rawBlocks) - 1
}

// RawBlock returns the raw block previously reserved by RawAllocate at
// the given handle.
func (t *PutTransaction) RawBlock(handle int) []byte {
	return t.rawBlocks[handle].([]byte)
}

// Commit publishes the element: BUSY is cleared and the slot becomes
// visible to consumers. Panics if called twice.
func (t *PutTransaction) Commit() {
	if t.done {
		panic("hetq: PutTransaction committed or cancelled twice")
	}
	t.done = true
	t.eng.commitPut(t.page, t.idx)
}

// Cancel tombstones the slot: BUSY is cleared, DEAD is set, and the slot
// never becomes observable as live. Panics if called twice or after
// Commit.
func (t *PutTransaction) Cancel() {
	if t.done {
		panic("hetq: PutTransaction committed or cancelled twice")
	}
	t.done = true
	t.eng.cancelPutLocked(t.page, t.idx)
}

func (t *PutTransaction) String() string {
	return fmt.Sprintf("PutTransaction{type=%v done=%v}", t.typ.GoType(), t.done)
}

// Push constructs rt's runtime type from T, stores v, and commits
// immediately — the auto-commit put of spec §6's push(value).
func Push[T any](q rawQueue, v T) error {
	rt := MakeRuntimeType[T]()
	pt, err := q.startPush(rt, func() (any, error) { return v, nil })
	if err != nil {
		return err
	}
	pt.Commit()
	return nil
}

// Emplace constructs T via construct and commits it, mirroring spec §6's
// emplace<T>(args...). Go has no variadic generic constructor arguments,
// so the constructor is supplied as a closure instead of args; a panic
// or error returned from construct tombstones the slot and is reported
// as a *ConstructError, per spec §4.4.1 step 4 / §7 kind 2.
func Emplace[T any](q rawQueue, construct func() (T, error)) error {
	rt := MakeRuntimeType[T]()
	pt, err := q.startPush(rt, func() (any, error) {
		v, err := construct()
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	pt.Commit()
	return nil
}

// StartPush reserves a slot for v without publishing it, returning a
// transaction the caller commits or cancels explicitly.
func StartPush[T any](q rawQueue, v T) (*PutTransaction, error) {
	rt := MakeRuntimeType[T]()
	return q.startPush(rt, func() (any, error) { return v, nil })
}

// TryPush attempts Push under the given progress guarantee. Under
// ProgressBlocking it behaves exactly like Push; stronger guarantees may
// fail with ErrWouldBlock instead of contending indefinitely on variants
// whose engine has an unbounded retry loop (the lock-free variant).
func TryPush[T any](q rawQueue, guarantee ProgressGuarantee, v T) error {
	if pg, ok := q.(progressAwareQueue); ok {
		return pg.tryPush(guarantee, MakeRuntimeType[T](), v)
	}
	return Push(q, v)
}

// DynPush constructs no Go-side value: it pushes a runtime-type-tagged
// zero value, matching spec §6's dyn_push(type). Useful when the caller
// only has a RuntimeType at hand (e.g. forwarding between queues of
// different concrete element types).
func DynPush(q rawQueue, rt RuntimeType) error {
	pt, err := q.startPush(rt, func() (any, error) { return rt.DefaultConstruct(), nil })
	if err != nil {
		return err
	}
	pt.Commit()
	return nil
}

// DynPushCopy pushes a copy of src under rt, matching dyn_push_copy.
func DynPushCopy(q rawQueue, rt RuntimeType, src any) error {
	pt, err := q.startPush(rt, func() (any, error) { return rt.CopyConstruct(src), nil })
	if err != nil {
		return err
	}
	pt.Commit()
	return nil
}
