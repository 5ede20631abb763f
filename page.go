// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Control-block next-word layout. Three state flags occupy the low bits;
// the remaining bits hold a slot index local to the page (never a raw
// pointer — see DESIGN.md "pointer tagging" entry for why). slotIndex+1
// is stored so that the all-zero word is distinguishable from "index 0,
// no flags": a zero next word means "reserved but not yet linked" per
// spec §4.4.2.
const (
	flagBusy     uint64 = 1 << 0
	flagDead     uint64 = 1 << 1
	flagExternal uint64 = 1 << 2
	flagBits     uint64 = 3
	flagMask     uint64 = flagBusy | flagDead | flagExternal
)

// packNext encodes a local slot index and a flag set into a control-block
// next word.
func packNext(index int, flags uint64) uint64 {
	return uint64(index+1)<<flagBits | (flags & flagMask)
}

// nextIndex extracts the local slot index from a next word. Returns -1 if
// the word is zero (unlinked).
func nextIndex(word uint64) int {
	return int(word>>flagBits) - 1
}

func nextFlags(word uint64) uint64 { return word & flagMask }

// externalBox is the legacy-heap indirection record for a payload whose
// size exceeds the page's inline limit, mirroring spec §4.3's "payload
// area holds {pointer, size, alignment}" for EXTERNAL slots. In Go the
// "pointer" is a GC-visible interface box rather than a raw allocation;
// size/alignment are retained for observability (tests assert on them)
// even though Go's allocator, not a manually managed heap, backs obj.
type externalBox struct {
	obj   any
	size  uintptr
	align uintptr
}

// controlBlock is one queued slot: the atomic next word, the slot's
// runtime type, and its payload. Real "pages" in this module are
// GC-managed Go values; tight byte packing of the payload is traded for
// GC-visibility of any pointers the payload holds (see DESIGN.md).
type controlBlock struct {
	next atomix.Uint64
	typ  RuntimeType
	val  any
	ext  *externalBox
	busy atomix.Bool // not read or written by any engine; claims use flagBusy in next
}

// page is a fixed-capacity run of control blocks plus the bookkeeping the
// allocator needs to reclaim it: a pin count (spec §4.1) and a link to
// its successor, published by whichever producer wins the page switch.
type page struct {
	id       uint64
	slots    []controlBlock
	pin      atomix.Uint32
	bump     atomix.Uint64 // FAA claim counter for lock-free tail allocation
	headHint atomix.Uint64 // cooperative consumer scan cursor (lock-free variant only)
	switched atomix.Bool   // true once a page switch has been claimed
	next     atomic.Pointer[page]
	freeNext atomic.Pointer[page] // overflow free-stack linkage only
}

func newPage(capacity int, id uint64) *page {
	return &page{id: id, slots: make([]controlBlock, capacity)}
}

// capacity returns the number of slots on the page. Crossing it is
// detected by comparing a cursor against this value directly, rather
// than by a dedicated sentinel slot at index capacity().
func (p *page) capacity() int { return len(p.slots) }

// Allocator supplies and reclaims pages and services legacy (external)
// payload allocations, per spec §4.1. All operations are safe for
// concurrent use from any number of goroutines.
type Allocator struct {
	pageSize int
	capacity int // slots per page, derived from pageSize and slot overhead

	freeStack atomic.Pointer[page] // process-wide lock-free free-page stack
	nextID    atomix.Uint64

	pagesAllocated atomix.Int64
	pagesFreed     atomix.Int64
	extAllocated   atomix.Int64
	extFreed       atomix.Int64
}

// newAllocator builds an Allocator for the given page size in bytes. The
// slot budget per page is derived as if control blocks were the
// pointer-sized C++ layout of spec §4.3, which is what "page size"
// continues to mean for AllocatePage's caller-visible accounting even
// though Go backs each slot with a GC-managed struct rather than raw
// bytes.
func newAllocator(pageSize int) *Allocator {
	const assumedControlBlockBytes = 32
	capacity := pageSize / assumedControlBlockBytes
	if capacity < 2 {
		capacity = 2
	}
	return &Allocator{pageSize: pageSize, capacity: capacity}
}

// InlineLimit is half the page's assumed usable bytes, per spec §4.3: "the
// inline limit (half the page's usable bytes, to guarantee that two
// control blocks always fit)".
func (a *Allocator) InlineLimit() uintptr { return uintptr(a.pageSize / 2) }

// AllocatePage returns a fresh page with pin count 1 (the caller's
// implicit pin), popped off the free stack when one is available.
//
// Spec §4.1 describes a thread-local free list spilling to a process-wide
// lock-free stack. sync.Pool would be the idiomatic per-P tier, but its
// GC-driven, non-deterministic eviction is a poor fit for tests (S3, S10)
// that assert on exact pin-count and allocation-count sequences; this
// implementation collapses the two tiers into the single CAS stack, which
// is deterministic and still lock-free. See DESIGN.md.
func (a *Allocator) AllocatePage() (*page, error) {
	p := a.popFree()
	if p == nil {
		p = newPage(a.capacity, 0)
	}
	a.resetPage(p)
	p.id = a.nextID.AddAcqRel(1)
	p.pin.StoreRelease(1)
	a.pagesAllocated.AddAcqRel(1)
	return p, nil
}

func (a *Allocator) resetPage(p *page) {
	for i := range p.slots {
		p.slots[i] = controlBlock{}
	}
	p.bump.StoreRelaxed(0)
	p.headHint.StoreRelease(0)
	p.switched.StoreRelease(false)
	p.next.Store(nil)
	p.pin.StoreRelease(1)
}

// popFree pops one page off the overflow stack, CAS-retrying on
// contention.
func (a *Allocator) popFree() *page {
	sw := spin.Wait{}
	for {
		head := a.freeStack.Load()
		if head == nil {
			return nil
		}
		next := head.freeNext.Load()
		if a.freeStack.CompareAndSwap(head, next) {
			head.freeNext.Store(nil)
			return head
		}
		sw.Once()
	}
}

func (a *Allocator) pushFree(p *page) {
	sw := spin.Wait{}
	for {
		head := a.freeStack.Load()
		p.freeNext.Store(head)
		if a.freeStack.CompareAndSwap(head, p) {
			return
		}
		sw.Once()
	}
}

// DeallocatePage returns p to the free list. Callers first release their
// last pin (UnpinPage returning 1), so p arrives with PinCount(p) == 0;
// the pin count is not checked here. A page is recycled through
// exactly one tier — the process-wide CAS stack — never both, since
// offering the same *page to sync.Pool and the stack simultaneously
// would let two concurrent AllocatePage calls hand out the same page.
func (a *Allocator) DeallocatePage(p *page) {
	a.pagesFreed.AddAcqRel(1)
	a.pushFree(p)
}

// PinPage increments p's pin count.
func (a *Allocator) PinPage(p *page) { p.pin.AddAcqRel(1) }

// UnpinPage decrements p's pin count and returns the previous value. If
// it returns 1, the caller observed the page drop to zero pins and — if
// it is also no longer logically live in any queue — should return it via
// DeallocatePage.
func (a *Allocator) UnpinPage(p *page) uint32 {
	return p.pin.AddAcqRel(^uint32(0)) + 1 // AddAcqRel(-1) via wraparound, returns prev value
}

// PinCount observes p's current pin count (advisory).
func (a *Allocator) PinCount(p *page) uint32 { return p.pin.LoadAcquire() }

// AllocateExternal boxes obj (whose erased type exceeds the inline
// limit) for indirect storage, and records the allocation for S5-style
// allocator accounting.
func (a *Allocator) AllocateExternal(rt RuntimeType, obj any) *externalBox {
	a.extAllocated.AddAcqRel(1)
	return &externalBox{obj: obj, size: rt.Size(), align: rt.Alignment()}
}

// DeallocateExternal releases a box obtained from AllocateExternal.
func (a *Allocator) DeallocateExternal(*externalBox) {
	a.extFreed.AddAcqRel(1)
}

// PagesAllocated returns the lifetime count of pages handed out by
// AllocatePage, for tests asserting on allocator behavior (spec S3).
func (a *Allocator) PagesAllocated() int64 { return a.pagesAllocated.LoadAcquire() }

// PagesFreed returns the lifetime count of pages returned via
// DeallocatePage.
func (a *Allocator) PagesFreed() int64 { return a.pagesFreed.LoadAcquire() }

// ExternalAllocations returns the lifetime count of legacy-heap boxes
// allocated for oversized payloads (spec S5).
func (a *Allocator) ExternalAllocations() int64 { return a.extAllocated.LoadAcquire() }

// ExternalDeallocations returns the lifetime count of legacy-heap boxes
// released.
func (a *Allocator) ExternalDeallocations() int64 { return a.extFreed.LoadAcquire() }
