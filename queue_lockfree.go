// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"sync/atomic"

	"code.hybscloud.com/spin"
)

// lockFreeEngine implements the multi-producer/multi-consumer algorithm
// of spec §4.4.2–§4.4.3 and §4.5.2–§4.5.4. Producers claim slots with a
// per-page FAA bump counter (grounded on the teacher's FAA-based MPMC,
// mpmc.go, generalized from a fixed ring to page-relative offsets with
// page-switch arbitration); consumers claim slots with CAS on the
// control word and cooperatively advance a per-page scan hint.
//
// Unlike *engine (shared by SingleThreaded/LockedQueue/SpinlockQueue),
// this type has no lock: every method is safe for concurrent use from
// any number of goroutines without one.
type lockFreeEngine struct {
	alloc *Allocator
	opts  Options

	tailPage atomic.Pointer[page]
	headPage atomic.Pointer[page]
}

func newLockFreeEngine(opts Options) *lockFreeEngine {
	return &lockFreeEngine{alloc: newAllocator(opts.pageSize), opts: opts}
}

func (e *lockFreeEngine) allocatorFor() *Allocator { return e.alloc }

func (e *lockFreeEngine) ensureInit() error {
	if e.tailPage.Load() != nil {
		return nil
	}
	p, err := e.alloc.AllocatePage()
	if err != nil {
		return err
	}
	if e.tailPage.CompareAndSwap(nil, p) {
		e.headPage.Store(p)
		return nil
	}
	// Lost the race to initialize; release the page we allocated.
	e.alloc.UnpinPage(p)
	e.alloc.DeallocatePage(p)
	return nil
}

// startPush claims a slot via FAA on the current tail page's bump
// counter. A claim landing at or past the page's capacity is wasted —
// the claimant does not write to it — and instead tries to win the page
// switch, matching the teacher's FAA-based MPMC's acceptance that some
// claims are discarded under contention (mpmc.go's cycle-mismatch path).
func (e *lockFreeEngine) startPush(rt RuntimeType, construct func() (any, error)) (*PutTransaction, error) {
	return e.startPushWithGuarantee(e.opts.progress, rt, construct)
}

// startPushWithGuarantee is startPush parameterized by an explicit
// ProgressGuarantee, so TryPush can honor a per-call guarantee without
// mutating the shared Options.progress field (which concurrent callers
// could otherwise race on).
func (e *lockFreeEngine) startPushWithGuarantee(guarantee ProgressGuarantee, rt RuntimeType, construct func() (any, error)) (*PutTransaction, error) {
	if err := e.ensureInit(); err != nil {
		return nil, err
	}
	budget := retryBudget(guarantee)
	sw := spin.Wait{}
	for attempts := 0; ; attempts++ {
		if budget >= 0 && attempts >= budget {
			return nil, ErrWouldBlock
		}
		pg := e.tailPage.Load()
		idx := int(pg.bump.AddAcqRel(1)) - 1
		if idx < pg.capacity() {
			external := rt.Size() > e.alloc.InlineLimit()
			flags := flagBusy
			if external {
				flags |= flagExternal
			}
			slot := &pg.slots[idx]
			slot.typ = rt
			e.publishNext(slot, packNext(idx+1, flags))

			pt := &PutTransaction{eng: e, page: pg, idx: idx, typ: rt, external: external}
			if construct == nil {
				return pt, nil
			}
			val, err := callConstruct(construct)
			if err != nil {
				e.cancelPut(pg, idx)
				return nil, err
			}
			pt.setValue(val)
			return pt, nil
		}
		e.tryAdvanceTailPage(pg)
		sw.Once()
	}
}

// tryAdvanceTailPage performs the page switch of spec §4.4.3: exactly
// one producer (the CAS winner on pg.switched) allocates and links the
// new page; the rest spin until tailPage visibly advances.
func (e *lockFreeEngine) tryAdvanceTailPage(pg *page) {
	if !pg.switched.CompareAndSwapAcqRel(false, true) {
		return
	}
	np, err := e.alloc.AllocatePage()
	if err != nil {
		pg.switched.StoreRelease(false)
		return
	}
	pg.next.Store(np)
	e.tailPage.CompareAndSwap(pg, np)
}

// publishNext and observeNext implement spec §5's two consistency
// models on the one path they actually distinguish: a producer
// publishing its claimed slot's next word, and a consumer's first look
// at it. ConsistencySequential uses release/acquire (ordered against
// every other producer's and consumer's use of the same ordering);
// ConsistencyRelaxed drops to plain loads/stores, ordered only within
// the producer that wrote it. Slot-claim CAS operations and page-switch
// arbitration keep acquire/release under both models — those establish
// exclusive ownership, not cross-producer visibility, and the spec's
// two models are not described as weakening mutual exclusion.
func (e *lockFreeEngine) publishNext(slot *controlBlock, word uint64) {
	if e.opts.consistency == ConsistencyRelaxed {
		slot.next.StoreRelaxed(word)
		return
	}
	slot.next.StoreRelease(word)
}

func (e *lockFreeEngine) observeNext(slot *controlBlock) uint64 {
	if e.opts.consistency == ConsistencyRelaxed {
		return slot.next.LoadRelaxed()
	}
	return slot.next.LoadAcquire()
}

func (e *lockFreeEngine) commitPut(pg *page, idx int) {
	slot := &pg.slots[idx]
	word := slot.next.LoadAcquire()
	slot.next.StoreRelease(packNext(nextIndex(word), nextFlags(word)&^flagBusy))
}

func (e *lockFreeEngine) cancelPut(pg *page, idx int) {
	slot := &pg.slots[idx]
	word := slot.next.LoadAcquire()
	slot.next.StoreRelease(packNext(nextIndex(word), (nextFlags(word)&^flagBusy)|flagDead))
	if slot.ext != nil {
		e.alloc.DeallocateExternal(slot.ext)
		slot.ext = nil
	}
	slot.val = nil
}

func (e *lockFreeEngine) cancelPutLocked(pg *page, idx int) { e.cancelPut(pg, idx) }

// tryStartConsume walks forward from a cooperative per-page scan hint,
// CAS-claiming the first live slot it finds.
//
// When it would otherwise need to conclude "empty" at a slot whose next
// word is still zero, it instead compares the slot's index against the
// page's bump counter (spec §4.5.4's reverse scan, reshaped: bump is a
// ready-made upper bound on how far any producer has reserved, so
// checking idx < bump tells us in one load what the source's backward
// walk exists to discover — see DESIGN.md for why this is treated as
// equivalent rather than merely a fast path).
func (e *lockFreeEngine) tryStartConsume() (*ConsumeOperation, error) {
	if e.tailPage.Load() == nil {
		return nil, ErrWouldBlock
	}
	budget := retryBudget(e.opts.progress)
	sw := spin.Wait{}
	hp := e.headPage.Load()
	idx := int(hp.headHint.LoadAcquire())
	for attempts := 0; ; attempts++ {
		if budget >= 0 && attempts >= budget {
			return nil, ErrWouldBlock
		}
		if idx >= hp.capacity() {
			np := hp.next.Load()
			if np == nil {
				if uint64(idx) < hp.bump.LoadAcquire() {
					sw.Once()
					continue
				}
				return nil, ErrWouldBlock
			}
			if e.headPage.CompareAndSwap(hp, np) {
				e.retirePage(hp)
			}
			hp = e.headPage.Load()
			idx = int(hp.headHint.LoadAcquire())
			continue
		}

		slot := &hp.slots[idx]
		word := e.observeNext(slot)
		if word == 0 {
			if uint64(idx) < hp.bump.LoadAcquire() {
				sw.Once() // claimed by a producer, not yet published
				continue
			}
			return nil, ErrWouldBlock // genuinely unclaimed so far
		}
		flags := nextFlags(word)
		if flags&flagDead != 0 {
			idx = nextIndex(word)
			hp.headHint.StoreRelease(uint64(idx))
			continue
		}
		if flags&flagBusy != 0 {
			idx = nextIndex(word)
			continue
		}
		if slot.next.CompareAndSwapAcqRel(word, packNext(nextIndex(word), flags|flagBusy)) {
			hp.headHint.StoreRelease(uint64(nextIndex(word)))
			return &ConsumeOperation{eng: e, page: hp, idx: idx, typ: slot.typ}, nil
		}
		sw.Once()
	}
}

// retirePage unpins a page the head cursor has left; returns it to the
// allocator once no pin remains, per spec §4.5.1 step 7 / §4.5.3.
func (e *lockFreeEngine) retirePage(pg *page) {
	if e.alloc.UnpinPage(pg) == 1 {
		e.alloc.DeallocatePage(pg)
	}
}

func (e *lockFreeEngine) commitConsume(pg *page, idx int, destroy bool) {
	slot := &pg.slots[idx]
	if destroy {
		if slot.ext != nil {
			slot.typ.Destroy(slot.ext.obj)
		} else {
			slot.typ.Destroy(slot.val)
		}
	}
	if slot.ext != nil {
		e.alloc.DeallocateExternal(slot.ext)
		slot.ext = nil
	}
	slot.val = nil
	word := slot.next.LoadAcquire()
	slot.next.StoreRelease(packNext(nextIndex(word), flagDead))
}

func (e *lockFreeEngine) cancelConsume(pg *page, idx int) {
	slot := &pg.slots[idx]
	word := slot.next.LoadAcquire()
	slot.next.StoreRelease(packNext(nextIndex(word), nextFlags(word)&^flagBusy))
}

// clear is a best-effort, non-linearizable drain used at shutdown, when
// the caller guarantees no concurrent producers or consumers remain —
// spec §9's cancellation/flow-control non-goals already put coordinating
// a linearizable Clear against live traffic out of scope.
func (e *lockFreeEngine) clear() {
	hp := e.headPage.Load()
	for hp != nil {
		bump := hp.bump.LoadAcquire()
		limit := uint64(hp.capacity())
		if bump < limit {
			limit = bump
		}
		for i := uint64(0); i < limit; i++ {
			slot := &hp.slots[i]
			word := slot.next.LoadAcquire()
			if word != 0 && nextFlags(word)&flagDead == 0 {
				if e.opts.requireDestructOnClear {
					if slot.ext != nil {
						slot.typ.Destroy(slot.ext.obj)
					} else {
						slot.typ.Destroy(slot.val)
					}
				}
				if slot.ext != nil {
					e.alloc.DeallocateExternal(slot.ext)
				}
			}
			*slot = controlBlock{}
		}
		next := hp.next.Load()
		e.retirePage(hp)
		hp = next
	}
	e.headPage.Store(nil)
	e.tailPage.Store(nil)
}

func (e *lockFreeEngine) empty() bool {
	hp := e.headPage.Load()
	for hp != nil {
		bump := hp.bump.LoadAcquire()
		limit := uint64(hp.capacity())
		if bump < limit {
			limit = bump
		}
		for i := uint64(0); i < limit; i++ {
			word := hp.slots[i].next.LoadAcquire()
			if word != 0 && nextFlags(word)&flagDead == 0 {
				return false
			}
		}
		if limit < uint64(hp.capacity()) {
			return true // unclaimed tail of this page, and it's the last page
		}
		hp = hp.next.Load()
	}
	return true
}

// tryPush implements progressAwareQueue: startPushWithGuarantee's retry
// loop already honors retryBudget, so tryPush forwards to it with the
// caller's guarantee, not the one set on the engine at construction time.
func (e *lockFreeEngine) tryPush(guarantee ProgressGuarantee, rt RuntimeType, v any) error {
	pt, err := e.startPushWithGuarantee(guarantee, rt, func() (any, error) { return v, nil })
	if err != nil {
		return err
	}
	pt.Commit()
	return nil
}
