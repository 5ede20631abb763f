// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

// SingleThreaded is a heterogeneous FIFO queue with no synchronization
// at all: head, tail, and every control word are touched by exactly one
// goroutine for the queue's entire lifetime. Fastest variant; unsafe to
// share across goroutines, even as producer-only from one and
// consumer-only from another — use LockedQueue or SpinlockQueue for
// that, per spec §4.6.
type SingleThreaded struct {
	*engine
}

// NewSingleThreaded creates a SingleThreaded queue. Prefer
// [Builder.BuildSingleThreaded].
func NewSingleThreaded(opts Options) (*SingleThreaded, error) {
	return &SingleThreaded{engine: newEngine(opts, noopLocker{})}, nil
}

// Clear retires every live element, honoring
// Builder.SkipDestructOnClear, and leaves the queue empty.
func (q *SingleThreaded) Clear() { q.engine.clear() }

// Empty reports whether the queue currently holds no live element.
func (q *SingleThreaded) Empty() bool { return q.engine.empty() }

// Allocator returns the queue's paged allocator, for tests and metrics
// that inspect page/pin counts directly (spec §8 scenarios S3, S10).
func (q *SingleThreaded) Allocator() *Allocator { return q.engine.alloc }
