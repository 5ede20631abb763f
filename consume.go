// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "fmt"

// consumeEngine is implemented by every queue variant's internal engine;
// it lets ConsumeOperation commit or cancel without knowing which variant
// claimed the slot.
type consumeEngine interface {
	commitConsume(pg *page, idx int, destroy bool)
	cancelConsume(pg *page, idx int)
}

// ConsumeOperation is an RAII-style handle for a claimed, in-progress
// consume, per spec §4.5.5 and §6. The caller must call Commit,
// CommitNoDestroy, or Cancel exactly once.
type ConsumeOperation struct {
	eng  consumeEngine
	page *page
	idx  int
	typ  RuntimeType
	done bool
}

// CompleteType returns the claimed slot's runtime type, per
// complete_type().
func (c *ConsumeOperation) CompleteType() RuntimeType { return c.typ }

// Element returns the claimed slot's payload.
func (c *ConsumeOperation) Element() any {
	slot := &c.page.slots[c.idx]
	if slot.ext != nil {
		return slot.ext.obj
	}
	return slot.val
}

// UnalignedElementPtr returns the claimed slot's payload without type
// checking, matching spec §4.5.5's unaligned_element_ptr() — the source
// distinguishes it from element_ptr() by alignment guarantees that do
// not apply to Go's interface-boxed storage (see DESIGN.md), so both
// accessors return the same value here.
func (c *ConsumeOperation) UnalignedElementPtr() any { return c.Element() }

// Commit destroys the payload (via the type's destroy feature) and
// retires the slot. Panics if called twice.
func (c *ConsumeOperation) Commit() {
	if c.done {
		panic("hetq: ConsumeOperation committed or cancelled twice")
	}
	c.done = true
	c.eng.commitConsume(c.page, c.idx, true)
}

// CommitNoDestroy retires the slot without invoking the destroy feature,
// for callers that took ownership of the payload themselves.
func (c *ConsumeOperation) CommitNoDestroy() {
	if c.done {
		panic("hetq: ConsumeOperation committed or cancelled twice")
	}
	c.done = true
	c.eng.commitConsume(c.page, c.idx, false)
}

// Cancel releases the claim, restoring the slot to live so another
// consumer may claim it. Panics if called twice.
func (c *ConsumeOperation) Cancel() {
	if c.done {
		panic("hetq: ConsumeOperation committed or cancelled twice")
	}
	c.done = true
	c.eng.cancelConsume(c.page, c.idx)
}

func (c *ConsumeOperation) String() string {
	return fmt.Sprintf("ConsumeOperation{type=%v done=%v}", c.typ.GoType(), c.done)
}

// TryStartConsume claims the next live element without retiring it,
// matching spec §6's try_start_consume(). The caller commits or cancels
// the returned operation; ErrWouldBlock is returned if no live element
// was found.
func TryStartConsume(q rawQueue) (*ConsumeOperation, error) { return q.tryStartConsume() }

// ConsumeIs reports whether op's claimed slot holds a T, per spec
// §4.5.5/§6's is<T>() accessor family.
func ConsumeIs[T any](op *ConsumeOperation) bool { return Is[T](op.typ) }

// ConsumeElement returns op's claimed payload type-asserted to T. Panics
// if the slot does not hold a T — a programming error per spec §7 kind 4.
func ConsumeElement[T any](op *ConsumeOperation) T { return op.Element().(T) }

// TryConsume attempts to claim and retire one element in a single call,
// matching spec §6's try_consume() → bool. Returns the destroyed
// element's value before destruction and true on success; ok is false
// and the zero value is returned if the queue is (momentarily) empty.
func TryConsume[T any](q rawQueue) (v T, ok bool) {
	op, err := q.tryStartConsume()
	if err != nil {
		return v, false
	}
	v = ConsumeElement[T](op)
	op.Commit()
	return v, true
}
