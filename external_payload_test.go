// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "testing"

type largePayload struct {
	id   int
	blob [8192]byte
}

// S5: external payload.
func TestExternalPayloadRoundTrip(t *testing.T) {
	var destroyedIDs []int
	WithDestroyFeature(func(v *largePayload) { destroyedIDs = append(destroyedIDs, v.id) })

	q, err := New().PageSize(4096).BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}
	alloc := q.Allocator()

	rt := MakeRuntimeType[largePayload]()
	if rt.Size() <= alloc.InlineLimit() {
		t.Fatalf("test fixture drifted: largePayload size %d must exceed inline limit %d", rt.Size(), alloc.InlineLimit())
	}

	before := alloc.ExternalAllocations()
	want := largePayload{id: 7}
	if err := Push(q, want); err != nil {
		t.Fatalf("push: %v", err)
	}
	if alloc.ExternalAllocations() != before+1 {
		t.Fatalf("expected exactly one external allocation, delta=%d", alloc.ExternalAllocations()-before)
	}

	op, err := q.tryStartConsume()
	if err != nil {
		t.Fatalf("tryStartConsume: %v", err)
	}
	if op.page.slots[op.idx].ext == nil {
		t.Fatal("expected the claimed slot to carry an external box")
	}
	if !op.CompleteType().Equal(rt) {
		t.Fatal("expected claimed slot's runtime type to match largePayload")
	}
	got := ConsumeElement[largePayload](op)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	op.Commit()

	if len(destroyedIDs) != 1 || destroyedIDs[0] != 7 {
		t.Fatalf("expected destroy feature invoked once with id 7, got %v", destroyedIDs)
	}
	if alloc.ExternalDeallocations() != before+1 {
		t.Fatalf("expected matching external deallocation, got %d", alloc.ExternalDeallocations())
	}
}
