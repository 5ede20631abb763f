// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// noopLocker is the locker used by SingleThreaded: used from one goroutine
// only, so the engine's critical sections need no protection at all.
type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// spinlock is a user-space CAS lock implementing sync.Locker, substituted
// for a *sync.Mutex by SpinlockQueue. Backs off with spin.Wait instead of
// yielding to the OS scheduler, trading CPU spin for avoiding a syscall —
// worthwhile when critical sections are short.
type spinlock struct {
	held atomix.Bool
}

func (s *spinlock) Lock() {
	sw := spin.Wait{}
	for !s.held.CompareAndSwapAcqRel(false, true) {
		sw.Once()
	}
}

func (s *spinlock) Unlock() {
	s.held.StoreRelease(false)
}

// engine implements the shared put/consume algorithm of spec §4.6 for the
// single-threaded, lock-based, and spin-lock variants: head, tail, and
// control words are plain, non-contended state, because every public
// call runs start-to-finish under mu (a no-op for SingleThreaded, a
// *sync.Mutex for LockedQueue, a *spinlock for SpinlockQueue). The
// lock-free variant's algorithm is different enough (CAS arbitration
// instead of full serialization) that it gets its own engine in
// queue_lockfree.go rather than a fourth locker implementation here.
type engine struct {
	mu    sync.Locker
	alloc *Allocator
	opts  Options

	headPage *page
	headIdx  int
	tailPage *page
	tailIdx  int
}

func newEngine(opts Options, mu sync.Locker) *engine {
	return &engine{mu: mu, alloc: newAllocator(opts.pageSize), opts: opts}
}

func (e *engine) allocatorFor() *Allocator { return e.alloc }

func (e *engine) ensureInit() error {
	if e.tailPage != nil {
		return nil
	}
	p, err := e.alloc.AllocatePage()
	if err != nil {
		return err
	}
	e.headPage, e.tailPage = p, p
	return nil
}

// switchTailPage installs the sentinel link from the current tail page to
// a freshly allocated one, per spec §4.4.3. On allocation failure the
// tail is left unchanged — no sentinel is installed — satisfying §4.4.5's
// "allocation failure during a page switch rewinds tail to its previous
// value".
func (e *engine) switchTailPage() error {
	np, err := e.alloc.AllocatePage()
	if err != nil {
		return ErrOutOfMemory
	}
	e.tailPage.next.Store(np)
	e.tailPage = np
	e.tailIdx = 0
	return nil
}

// startPush reserves the next slot, writes its type, and — if construct
// is non-nil — invokes it to obtain the payload, cancelling the slot on
// failure. construct may be nil, in which case the slot is reserved with
// no payload; every caller in this package passes a non-nil construct.
func (e *engine) startPush(rt RuntimeType, construct func() (any, error)) (*PutTransaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureInit(); err != nil {
		return nil, err
	}
	if e.tailIdx == e.tailPage.capacity() {
		if err := e.switchTailPage(); err != nil {
			return nil, err
		}
	}

	pg, idx := e.tailPage, e.tailIdx
	slot := &pg.slots[idx]
	external := rt.Size() > e.alloc.InlineLimit()
	flags := flagBusy
	if external {
		flags |= flagExternal
	}
	slot.next.StoreRelaxed(packNext(idx+1, flags))
	slot.typ = rt
	e.tailIdx = idx + 1

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

// callConstruct invokes construct, converting both a returned error and
// a recovered panic into a *ConstructError, per spec §4.4.1 step 4: "On
// exception, set DEAD and clear BUSY (cancel)".
func callConstruct(construct func() (any, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ConstructError{Cause: r}
		}
	}()
	v, cerr := construct()
	if cerr != nil {
		return nil, &ConstructError{Cause: cerr}
	}
	return v, nil
}

// commitPut clears BUSY on a slot the caller holds exclusively, per
// spec §4.4.1 step 5.
func (e *engine) commitPut(pg *page, idx int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	slot := &pg.slots[idx]
	word := slot.next.LoadRelaxed()
	slot.next.StoreRelease(packNext(nextIndex(word), nextFlags(word) &^ flagBusy))
}

// cancelPut tombstones a slot: BUSY cleared, DEAD set, per spec §4.4.2
// step 5. The caller must hold e.mu if called outside startPush's own
// construct-failure path (see PutTransaction.Cancel).
func (e *engine) cancelPut(pg *page, idx int) {
	slot := &pg.slots[idx]
	word := slot.next.LoadRelaxed()
	slot.next.StoreRelease(packNext(nextIndex(word), (nextFlags(word)&^flagBusy)|flagDead))
	if slot.ext != nil {
		e.alloc.DeallocateExternal(slot.ext)
		slot.ext = nil
	}
	slot.val = nil
}

func (e *engine) cancelPutLocked(pg *page, idx int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPut(pg, idx)
}

// tryStartConsume claims the next live slot starting at head, skipping
// tombstones and advancing head past them, per spec §4.5.1.
func (e *engine) tryStartConsume() (*ConsumeOperation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureInit(); err != nil {
		return nil, err
	}
	for {
		if e.headIdx == e.headPage.capacity() {
			np := e.headPage.next.Load()
			if np == nil {
				return nil, ErrWouldBlock
			}
			e.retireHeadPage()
			e.headPage, e.headIdx = np, 0
			continue
		}
		slot := &e.headPage.slots[e.headIdx]
		word := slot.next.LoadAcquire()
		if word == 0 {
			return nil, ErrWouldBlock
		}
		flags := nextFlags(word)
		if flags&flagDead != 0 {
			e.headIdx++
			continue
		}
		if flags&flagBusy != 0 {
			return nil, ErrWouldBlock
		}
		pg, idx := e.headPage, e.headIdx
		slot.next.StoreRelease(packNext(nextIndex(word), flags|flagBusy))
		e.headIdx++
		return &ConsumeOperation{eng: e, page: pg, idx: idx, typ: slot.typ}, nil
	}
}

// retireHeadPage unpins the page head is leaving; if that drops the pin
// count to zero it is returned to the allocator, per spec §4.5.1 step 7.
func (e *engine) retireHeadPage() {
	if e.alloc.UnpinPage(e.headPage) == 1 {
		e.alloc.DeallocatePage(e.headPage)
	}
}

// commitConsume destroys (unless skipped) and tombstones a claimed slot,
// per spec §4.5.5 commit/commit_nodestroy.
func (e *engine) commitConsume(pg *page, idx int, destroy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
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
	word := slot.next.LoadRelaxed()
	slot.next.StoreRelease(packNext(nextIndex(word), flagDead))
}

// cancelConsume releases a claim, restoring the slot to live so another
// consumer may claim it, per spec §4.5.5 cancel. Head is moved back to the
// slot while it is still on head's page; once head has left that page,
// head is not moved back.
func (e *engine) cancelConsume(pg *page, idx int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	slot := &pg.slots[idx]
	word := slot.next.LoadRelaxed()
	slot.next.StoreRelease(packNext(nextIndex(word), nextFlags(word)&^flagBusy))
	if pg == e.headPage && idx < e.headIdx {
		e.headIdx = idx
	}
}

// clear retires every live element without observing it through a
// consumer, honoring Options.RequireDestructOnClear.
func (e *engine) clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.headPage != nil {
		if e.headPage == e.tailPage && e.headIdx == e.tailIdx {
			break
		}
		if e.headIdx == e.headPage.capacity() {
			np := e.headPage.next.Load()
			e.retireHeadPage()
			if np == nil {
				e.headPage = nil
				break
			}
			e.headPage, e.headIdx = np, 0
			continue
		}
		slot := &e.headPage.slots[e.headIdx]
		word := slot.next.LoadRelaxed()
		if nextFlags(word)&flagDead == 0 {
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
		e.headIdx++
	}
	e.headPage, e.headIdx = e.tailPage, e.tailIdx
}

// empty reports whether every slot between head and tail is dead: a put
// not yet committed, or an element claimed by a consume not yet
// committed, makes it report false. Matches spec
// §6's empty(); length is intentionally not exposed.
func (e *engine) empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emptyLocked()
}

func (e *engine) emptyLocked() bool {
	hp, hi := e.headPage, e.headIdx
	for hp != nil {
		if hi == hp.capacity() {
			hp = hp.next.Load()
			hi = 0
			continue
		}
		if hp == e.tailPage && hi == e.tailIdx {
			return true
		}
		word := hp.slots[hi].next.LoadAcquire()
		if word != 0 && nextFlags(word)&flagDead == 0 {
			return false
		}
		hi++
	}
	return true
}
