// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hetq provides heterogeneous FIFO queues: a single queue instance
// may hold elements of different concrete types, each tracked with enough
// runtime type information to construct, copy, and destroy it correctly
// without the caller supplying a type parameter at consume time.
//
// Four queue variants share one paged allocator and one control-block
// layout, differing only in how they arbitrate concurrent access:
//
//   - SingleThreaded: no synchronization; used by exactly one goroutine
//   - LockedQueue: guarded by a sync.Mutex
//   - SpinlockQueue: guarded by a user-space CAS spinlock
//   - LockFreeQueue: no lock; CAS/FAA arbitration, any number of goroutines
//
// # Quick Start
//
// The Builder selects sensible defaults (64KiB pages, blocking progress,
// sequential consistency, destructors run on Clear):
//
//	q, err := hetq.New().BuildLockFree()
//	single, err := hetq.New().BuildSingleThreaded()
//
// Push a value of any type, consume it with the type you expect:
//
//	err := hetq.Push(q, 42)
//	err = hetq.Push(q, "or a string, same queue")
//
//	v, ok := hetq.TryConsume[int](q)
//	if !ok {
//	    // the queue is empty right now (an element at the head that is
//	    // not an int makes TryConsume[int] panic)
//	}
//
// # Basic Usage
//
// Push/TryConsume cover the common case. Transactions (StartPush/
// TryStartConsume) give the caller a window to inspect a value before
// committing it, and to cancel instead of committing:
//
//	pt, err := hetq.StartPush(q, LargeStruct{})
//	if err != nil {
//	    return err
//	}
//	if !valid(pt.Element().(LargeStruct)) {
//	    pt.Cancel()
//	    return nil
//	}
//	pt.Commit()
//
//	op, err := hetq.TryStartConsume(q)
//	if hetq.IsWouldBlock(err) {
//	    // queue is empty
//	}
//	if !hetq.ConsumeIs[LargeStruct](op) {
//	    op.Cancel() // wrong type at head; leave it for someone else
//	    return
//	}
//	v := hetq.ConsumeElement[LargeStruct](op)
//	op.Commit()
//
// Emplace constructs in place, tombstoning the slot if the constructor
// fails or panics:
//
//	err := hetq.Emplace(q, func() (Connection, error) {
//	    return dial(addr)
//	})
//
// # Common Patterns
//
// Bounded retry under a progress guarantee weaker than blocking:
//
//	err := hetq.TryPush(q, hetq.ProgressLockFree, job)
//	if hetq.IsWouldBlock(err) {
//	    // page-switch or allocator contention exhausted the retry budget
//	}
//
// Dynamic push when the producer only has a [RuntimeType], not a Go type
// parameter (e.g. forwarding an element between two heterogeneous queues):
//
//	rt := hetq.MakeRuntimeType[Event]()
//	err := hetq.DynPushCopy(dst, rt, srcEvent)
//
// Draining at shutdown, once no producer or consumer remains active:
//
//	q.Clear()
//
// # Error Handling
//
// Operations return [ErrWouldBlock] when they cannot proceed under the
// requested progress guarantee; it is a control flow signal, not a
// failure, and an alias of [code.hybscloud.com/iox]'s sentinel for
// ecosystem consistency:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := hetq.Push(q, item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !hetq.IsWouldBlock(err) {
//	        return err // unexpected error, e.g. a failed construction
//	    }
//	    backoff.Wait()
//	}
//
// A constructor's error or panic surfaces as [*ConstructError]; the slot
// under construction is tombstoned before the error is returned, so the
// queue is left consistent for the next push or consume:
//
//	hetq.IsWouldBlock(err)  // queue/page contention, try again
//	hetq.IsSemantic(err)    // true if control flow signal (delegates to iox)
//	hetq.IsOutOfMemory(err) // paged or external allocator exhausted
//
// # Progress Guarantees and Consistency
//
// [Builder.Progress] selects how long a lock-free operation retries before
// giving up with ErrWouldBlock instead of continuing to spin:
//
//	ProgressBlocking        - retries without bound
//	ProgressObstructionFree - large bounded retry budget
//	ProgressLockFree        - smaller bounded retry budget
//	ProgressWaitFree        - accepted, but downgrades to one attempt
//
// [Builder.Relaxed] weakens the memory ordering on LockFreeQueue's
// producer-publish/consumer-observe path from acquire-release to relaxed;
// slot-claim CAS and page-switch arbitration are unaffected, since those
// establish exclusive ownership rather than cross-goroutine visibility of
// a published value.
//
// # Thread Safety
//
//	SingleThreaded - one goroutine, for the queue's entire lifetime
//	LockedQueue    - any number of producer/consumer goroutines
//	SpinlockQueue  - any number of producer/consumer goroutines
//	LockFreeQueue  - any number of producer/consumer goroutines, no lock
//
// SingleThreaded is not a single-producer/single-consumer queue: even a
// strict producer-goroutine/consumer-goroutine pair requires the
// synchronization the other three variants provide. It exists purely to
// skip locking overhead when only one goroutine ever touches the queue.
//
// # Allocator Accounting
//
// [Allocator] exposes lifetime counters (PagesAllocated, PagesFreed,
// ExternalAllocations, ExternalDeallocations) for tests and diagnostics
// that need to assert on exact page and external-payload turnover rather
// than trusting an opaque queue to do the right thing internally.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit memory
// ordering, and [code.hybscloud.com/spin] for CPU pause/backoff.
package hetq
