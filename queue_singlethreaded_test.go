// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "testing"

// S1: single-threaded sequence.
func TestSingleThreadedSequence(t *testing.T) {
	q, err := New().BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}

	if err := Push(q, int32(1)); err != nil {
		t.Fatalf("push int32: %v", err)
	}
	if err := Push(q, "hello"); err != nil {
		t.Fatalf("push string: %v", err)
	}
	if err := Push(q, 3.14); err != nil {
		t.Fatalf("push float64: %v", err)
	}

	v1, ok := TryConsume[int32](q)
	if !ok || v1 != 1 {
		t.Fatalf("consume 1: got (%v, %v)", v1, ok)
	}
	v2, ok := TryConsume[string](q)
	if !ok || v2 != "hello" {
		t.Fatalf("consume 2: got (%v, %v)", v2, ok)
	}
	v3, ok := TryConsume[float64](q)
	if !ok || v3 != 3.14 {
		t.Fatalf("consume 3: got (%v, %v)", v3, ok)
	}

	if !q.Empty() {
		t.Fatal("expected queue empty after third consume")
	}
}

// S2: cancelled put.
func TestSingleThreadedCancelledPut(t *testing.T) {
	q, err := New().BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}

	pt, err := StartPush(q, int32(42))
	if err != nil {
		t.Fatalf("StartPush: %v", err)
	}
	pt.Cancel()

	if _, err := q.tryStartConsume(); err == nil {
		t.Fatal("expected try_start_consume to find nothing after cancel")
	}
	if !q.Empty() {
		t.Fatal("expected empty() true after cancel")
	}
}

// Invariant 6: cancel after no other commits leaves the queue empty.
func TestCancelThenEmptyInvariant(t *testing.T) {
	q, _ := New().BuildSingleThreaded()
	pt, err := StartPush(q, "abandoned")
	if err != nil {
		t.Fatalf("StartPush: %v", err)
	}
	pt.Cancel()
	if !q.Empty() {
		t.Fatal("expected empty() true; no other puts were committed")
	}
}

// Invariant 7: clear() then empty() returns true, and destructors run
// unless skipped.
func TestClearEmptiesQueue(t *testing.T) {
	destroyed := 0
	WithDestroyFeature(func(v *destroyProbe) { destroyed++ })

	q, _ := New().BuildSingleThreaded()
	for i := 0; i < 5; i++ {
		if err := Push(q, destroyProbe{id: i}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	q.Clear()
	if !q.Empty() {
		t.Fatal("expected empty() true after Clear")
	}
	if destroyed != 5 {
		t.Fatalf("expected 5 destructor calls, got %d", destroyed)
	}
}

type destroyProbe struct{ id int }

// Round-trip law 5: put then consume yields an equal value.
func TestPushConsumeRoundTrip(t *testing.T) {
	q, _ := New().BuildSingleThreaded()
	type point struct{ X, Y int }
	want := point{X: 7, Y: -3}
	if err := Push(q, want); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, ok := TryConsume[point](q)
	if !ok || got != want {
		t.Fatalf("got (%v, %v), want (%v, true)", got, ok, want)
	}
}

func TestEmplaceConstructsInPlace(t *testing.T) {
	q, _ := New().BuildSingleThreaded()
	err := Emplace(q, func() (int, error) { return 99, nil })
	if err != nil {
		t.Fatalf("Emplace: %v", err)
	}
	v, ok := TryConsume[int](q)
	if !ok || v != 99 {
		t.Fatalf("got (%v, %v)", v, ok)
	}
}

func TestWrongTypeConsumeIsFalse(t *testing.T) {
	q, _ := New().BuildSingleThreaded()
	_ = Push(q, "a string")
	op, err := q.tryStartConsume()
	if err != nil {
		t.Fatalf("tryStartConsume: %v", err)
	}
	if ConsumeIs[int](op) {
		t.Fatal("expected ConsumeIs[int] false for a string-typed slot")
	}
	op.Cancel()
}
