// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed under the requested
// progress guarantee.
//
// For Push/StartPush: a wait-free or lock-free caller hit an unbounded
// retry loop (page-switch contention, allocator contention) and declined
// to degrade silently.
// For TryStartConsume: no live element was found (TryConsume reports the
// same case as ok == false).
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry with backoff, or fall back to a blocking progress guarantee.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := hetq.Push(q, item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if hetq.IsWouldBlock(err) {
//	        backoff.Wait()
//	        continue
//	    }
//	    return err // Unexpected error
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// ErrOutOfMemory indicates the paged allocator, or the legacy allocator
// backing external (oversized) payloads, could not supply backing memory.
//
// A failed Push/StartPush due to ErrOutOfMemory leaves the queue unchanged
// as observed by consumers: a page switch that fails to allocate its new
// page rewinds the tail to its pre-switch value before returning.
//
// iox's observed surface covers the would-block/semantic-signal family
// only; it has no out-of-memory classification, so this sentinel is
// package-local and follows the stdlib errors.Is/As contract instead.
var ErrOutOfMemory = errors.New("hetq: out of memory")

// ConstructError wraps an error returned by, or a panic recovered from, a
// value's construction during a put (Push, Emplace, StartPush, DynPush,
// DynPushCopy, TryPush). The slot under construction is tombstoned (BUSY
// cleared, DEAD set) before ConstructError is returned; the queue remains
// consistent.
type ConstructError struct {
	// Cause is the constructor's returned error or the recovered panic
	// value.
	Cause any
}

func (e *ConstructError) Error() string {
	return fmt.Sprintf("hetq: element construction failed: %v", e.Cause)
}

func (e *ConstructError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// IsOutOfMemory reports whether err is, or wraps, [ErrOutOfMemory].
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
