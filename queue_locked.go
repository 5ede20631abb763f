// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "sync"

// LockedQueue is a heterogeneous FIFO queue guarded by a single
// non-recursive mutex held for the duration of each put or consume, per
// spec §4.6. Safe for any number of producer and consumer goroutines;
// simplest to reason about, at the cost of serializing all access.
type LockedQueue struct {
	*engine
}

// NewLockedQueue creates a LockedQueue. Prefer [Builder.BuildLocked].
func NewLockedQueue(opts Options) (*LockedQueue, error) {
	return &LockedQueue{engine: newEngine(opts, &sync.Mutex{})}, nil
}

// Clear retires every live element, honoring
// Builder.SkipDestructOnClear, and leaves the queue empty.
func (q *LockedQueue) Clear() { q.engine.clear() }

// Empty reports whether the queue currently holds no live element.
func (q *LockedQueue) Empty() bool { return q.engine.empty() }

// Allocator returns the queue's paged allocator.
func (q *LockedQueue) Allocator() *Allocator { return q.engine.alloc }
