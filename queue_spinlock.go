// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

// SpinlockQueue is a heterogeneous FIFO queue guarded by a user-space CAS
// spinlock instead of an OS mutex, per spec §4.6's lock-based variant
// (elaborated with the spin-lock substitution named in §1). Worthwhile
// when critical sections are short enough that a mutex's syscall and
// scheduler overhead would dominate; under heavy, prolonged contention a
// LockedQueue's mutex (which parks waiters) is usually the better
// choice.
type SpinlockQueue struct {
	*engine
}

// NewSpinlockQueue creates a SpinlockQueue. Prefer
// [Builder.BuildSpinlock].
func NewSpinlockQueue(opts Options) (*SpinlockQueue, error) {
	return &SpinlockQueue{engine: newEngine(opts, &spinlock{})}, nil
}

// Clear retires every live element, honoring
// Builder.SkipDestructOnClear, and leaves the queue empty.
func (q *SpinlockQueue) Clear() { q.engine.clear() }

// Empty reports whether the queue currently holds no live element.
func (q *SpinlockQueue) Empty() bool { return q.engine.empty() }

// Allocator returns the queue's paged allocator.
func (q *SpinlockQueue) Allocator() *Allocator { return q.engine.alloc }
