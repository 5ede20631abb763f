// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"errors"
	"testing"
)

// S6: constructor exception.
func TestConstructorFailureTombstonesSlot(t *testing.T) {
	q, err := New().BuildSingleThreaded()
	if err != nil {
		t.Fatalf("BuildSingleThreaded: %v", err)
	}

	attempt := 0
	construct := func() (int, error) {
		attempt++
		if attempt == 3 {
			return 0, errors.New("boom")
		}
		return attempt, nil
	}

	var pushErrs []error
	for i := 0; i < 5; i++ {
		pushErrs = append(pushErrs, Emplace(q, construct))
	}
	for i, err := range pushErrs {
		if i == 2 {
			if err == nil {
				t.Fatal("expected the 3rd push to fail")
			}
			var ce *ConstructError
			if !errors.As(err, &ce) {
				t.Fatalf("expected a *ConstructError, got %T: %v", err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("push %d: unexpected error: %v", i, err)
		}
	}

	var got []int
	for i := 0; i < 5; i++ {
		v, ok := TryConsume[int](q)
		if !ok {
			break
		}
		got = append(got, v)
	}
	want := []int{1, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !q.Empty() {
		t.Fatal("expected empty() true after draining all successful elements")
	}
}

func TestConstructorPanicAlsoTombstones(t *testing.T) {
	q, _ := New().BuildSingleThreaded()
	err := Emplace(q, func() (int, error) {
		panic("boom")
	})
	var ce *ConstructError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *ConstructError from a recovered panic, got %T: %v", err, err)
	}
	if !q.Empty() {
		t.Fatal("expected the tombstoned slot to not appear live")
	}
}
