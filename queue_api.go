// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

// rawQueue is the minimal surface the package-level generic helpers
// (Push, Emplace, StartPush, TryConsume, ...) need from a queue variant.
// Every exported queue type satisfies it by embedding *engine or
// *lockFreeEngine.
type rawQueue interface {
	startPush(rt RuntimeType, construct func() (any, error)) (*PutTransaction, error)
	tryStartConsume() (*ConsumeOperation, error)
}

// progressAwareQueue is implemented by queue variants whose internal
// retry loops can honor a caller-supplied ProgressGuarantee weaker than
// "retry forever" — currently only LockFreeQueue. Variants that don't
// implement it are effectively always ProgressBlocking as far as TryPush
// is concerned: their single critical section either succeeds or fails
// with a real error (out of memory), never "would block" under
// contention.
type progressAwareQueue interface {
	tryPush(guarantee ProgressGuarantee, rt RuntimeType, v any) error
}
