// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "testing"

// S3: page overflow.
func TestPageOverflowAndReclaim(t *testing.T) {
	q, err := New().PageSize(4096).BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}
	alloc := q.Allocator()

	// Push until a second page has been allocated.
	n := 0
	for alloc.PagesAllocated() < 2 {
		if err := Push(q, byte(0)); err != nil {
			t.Fatalf("push %d: %v", n, err)
		}
		n++
	}
	if alloc.PagesAllocated() != 2 {
		t.Fatalf("expected exactly 2 pages allocated, got %d", alloc.PagesAllocated())
	}
	if alloc.PagesFreed() != 0 {
		t.Fatalf("expected no pages freed yet, got %d", alloc.PagesFreed())
	}

	firstPage := q.headPage
	secondPage := q.tailPage
	if firstPage == secondPage {
		t.Fatal("expected head and tail to be on different pages")
	}

	for i := 0; i < n; i++ {
		if _, ok := TryConsume[byte](q); !ok {
			t.Fatalf("consume %d: queue unexpectedly empty", i)
		}
		if i == firstPage.capacity()-1 {
			if alloc.PagesFreed() != 0 {
				t.Fatalf("expected first page not yet freed right after its last element, got freed=%d", alloc.PagesFreed())
			}
		}
		if i == firstPage.capacity() {
			if alloc.PagesFreed() != 1 {
				t.Fatalf("expected first page freed exactly when head crosses into the second, got freed=%d", alloc.PagesFreed())
			}
		}
	}

	if alloc.PagesFreed() != 1 {
		t.Fatalf("expected first page returned to the allocator, got freed=%d", alloc.PagesFreed())
	}
	// The second (final) page is still both head's and tail's page, per
	// invariant 2 — it stays pinned until the queue itself releases it,
	// it does not reach zero merely because it is logically drained. See
	// DESIGN.md's pin-count note.
	if pc := alloc.PinCount(secondPage); pc != 1 {
		t.Fatalf("expected final page pin count 1 (queue's own reference), got %d", pc)
	}
	if !q.Empty() {
		t.Fatal("expected empty() true after draining both pages")
	}
}

// Invariant 9: a put that exactly fills the remainder of a page does not
// trigger page allocation; the next put does.
func TestPageBoundaryDoesNotOverAllocate(t *testing.T) {
	q, _ := New().PageSize(4096).BuildSingleThreaded()
	alloc := q.Allocator()

	if err := Push(q, byte(0)); err != nil {
		t.Fatalf("push 0: %v", err)
	}
	capacity := q.headPage.capacity()

	for i := 1; i < capacity; i++ {
		if err := Push(q, byte(0)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if alloc.PagesAllocated() != 1 {
		t.Fatalf("expected exactly 1 page after filling it exactly, got %d", alloc.PagesAllocated())
	}
	if err := Push(q, byte(0)); err != nil {
		t.Fatalf("push overflow element: %v", err)
	}
	if alloc.PagesAllocated() != 2 {
		t.Fatalf("expected a second page after overflowing, got %d", alloc.PagesAllocated())
	}
}

// Invariant 8: an element whose size equals the inline limit fits inline;
// one byte larger goes external.
func TestInlineLimitBoundary(t *testing.T) {
	q, _ := New().PageSize(4096).BuildSingleThreaded()
	alloc := q.Allocator()
	limit := alloc.InlineLimit()

	rtExact := MakeRuntimeType[exactlyInline]()
	rtOver := MakeRuntimeType[overInline]()
	if rtExact.Size() != limit {
		t.Fatalf("test fixture drifted: exactlyInline size %d != inline limit %d", rtExact.Size(), limit)
	}
	if rtOver.Size() != limit+1 {
		t.Fatalf("test fixture drifted: overInline size %d != inline limit+1 %d", rtOver.Size(), limit+1)
	}

	before := alloc.ExternalAllocations()
	if err := Push(q, exactlyInline{}); err != nil {
		t.Fatalf("push exactlyInline: %v", err)
	}
	if alloc.ExternalAllocations() != before {
		t.Fatal("expected an exactly-inline-sized element to stay inline")
	}

	if err := Push(q, overInline{}); err != nil {
		t.Fatalf("push overInline: %v", err)
	}
	if alloc.ExternalAllocations() != before+1 {
		t.Fatal("expected a one-byte-larger element to go external")
	}
}

type exactlyInline [2048]byte
type overInline [2049]byte
