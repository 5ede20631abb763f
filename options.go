// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "unsafe"

// minPageSize is the smallest page size the allocator accepts (§3: "Page
// size is a power of two ≥ 4 KiB").
const minPageSize = 4096

// defaultPageSize is used when a Builder is not given an explicit PageSize.
const defaultPageSize = 64 * 1024

// Options configures queue creation: page size, progress guarantee,
// consistency model, and whether Clear invokes destructors.
type Options struct {
	pageSize               int
	progress               ProgressGuarantee
	consistency            ConsistencyModel
	requireDestructOnClear bool
}

// Builder creates queues with fluent configuration.
//
// Builder provides a fluent API mirroring the options every queue variant
// shares: page size, progress guarantee, and consistency model. Unlike a
// bounded ring buffer, a heterogeneous queue has no fixed capacity to
// configure — it grows by linking additional pages.
//
// Example:
//
//	q, err := hetq.New().PageSize(1 << 16).BuildSingleThreaded()
//	q, err := hetq.New().Progress(hetq.ProgressWaitFree).BuildLockFree()
type Builder struct {
	opts Options
}

// New creates a queue builder with default options: a 64 KiB page size,
// ProgressBlocking, ConsistencySequential, and destructors run on Clear.
func New() *Builder {
	return &Builder{opts: Options{
		pageSize:               defaultPageSize,
		progress:               ProgressBlocking,
		consistency:            ConsistencySequential,
		requireDestructOnClear: true,
	}}
}

// PageSize sets the allocator's page size. Rounds up to the next power of
// two. Panics if the result is below 4 KiB.
func (b *Builder) PageSize(n int) *Builder {
	n = roundToPow2(n)
	if n < minPageSize {
		panic("hetq: page size must be >= 4096 bytes")
	}
	b.opts.pageSize = n
	return b
}

// Progress sets the progress guarantee CAS retry loops must honor. When a
// retry loop would need to iterate without bound to satisfy a stronger
// guarantee than the contended operation can deliver, it fails with
// [ErrWouldBlock] instead of degrading silently.
func (b *Builder) Progress(g ProgressGuarantee) *Builder {
	b.opts.progress = g
	return b
}

// Relaxed selects the relaxed consistency model: puts are ordered
// per-producer but not across producers. The default is Sequential.
func (b *Builder) Relaxed() *Builder {
	b.opts.consistency = ConsistencyRelaxed
	return b
}

// SkipDestructOnClear makes Clear retire pages without invoking each live
// element's destroy feature. Useful when elements are trivially
// destructible and Clear is on a hot shutdown path.
func (b *Builder) SkipDestructOnClear() *Builder {
	b.opts.requireDestructOnClear = false
	return b
}

// BuildSingleThreaded creates a queue with no synchronization on head,
// tail, or control words. Safe for exactly one goroutine, for the
// queue's entire lifetime; violating this causes data corruption and
// races.
func (b *Builder) BuildSingleThreaded() (*SingleThreaded, error) {
	return NewSingleThreaded(b.opts)
}

// BuildLocked creates a queue guarded by a single non-recursive mutex held
// for the duration of each put or consume.
func (b *Builder) BuildLocked() (*LockedQueue, error) {
	return NewLockedQueue(b.opts)
}

// BuildSpinlock creates a queue guarded by a user-space CAS spinlock
// instead of an OS mutex, trading blocking-primitive overhead for CPU
// spin under contention. Suitable for short critical sections.
func (b *Builder) BuildSpinlock() (*SpinlockQueue, error) {
	return NewSpinlockQueue(b.opts)
}

// BuildLockFree creates a queue with no locks: producers and consumers
// contend via CAS on the control-block chain and the page allocator's pin
// counts. Supports any number of concurrent producers and consumers.
func (b *Builder) BuildLockFree() (*LockFreeQueue, error) {
	return NewLockFreeQueue(b.opts)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// ptrSize is the size of a pointer in bytes.
const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// pad is cache line padding to prevent false sharing between hot fields
// such as head and tail cursors.
type pad [64]byte

// padShort is padding to fill a cache line after an 8-byte field.
type padShort [64 - 8]byte

// padPtr is padding to fill a cache line after a pointer-sized field.
type padPtr [64 - ptrSize]byte
