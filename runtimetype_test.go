// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import "testing"

func TestRuntimeTypeIdentityIsCachedPerType(t *testing.T) {
	a := MakeRuntimeType[int64]()
	b := MakeRuntimeType[int64]()
	if !a.Equal(b) {
		t.Fatal("expected two MakeRuntimeType[int64]() calls to produce equal RuntimeTypes")
	}
	c := MakeRuntimeType[string]()
	if a.Equal(c) {
		t.Fatal("expected int64 and string RuntimeTypes to differ")
	}
}

func TestRuntimeTypeSizeAndAlignment(t *testing.T) {
	rt := MakeRuntimeType[struct {
		A int64
		B int32
	}]()
	if rt.Size() == 0 {
		t.Fatal("expected non-zero size for a non-empty struct")
	}
	if rt.Alignment() == 0 {
		t.Fatal("expected non-zero alignment")
	}
}

func TestIsGeneric(t *testing.T) {
	rt := MakeRuntimeType[float64]()
	if !Is[float64](rt) {
		t.Fatal("expected Is[float64] true")
	}
	if Is[int](rt) {
		t.Fatal("expected Is[int] false")
	}
}

func TestFeatureRegistrationAndRetrieval(t *testing.T) {
	type tagged struct{ N int }
	const nameTag FeatureTag = "name"
	RegisterFeature[tagged](nameTag, "tagged-type")

	rt := MakeRuntimeType[tagged]()
	name, ok := Feature[string](rt, nameTag)
	if !ok || name != "tagged-type" {
		t.Fatalf("got (%q, %v), want (tagged-type, true)", name, ok)
	}

	if _, ok := Feature[string](rt, "absent-tag"); ok {
		t.Fatal("expected absent tag to report ok=false")
	}
	if _, ok := Feature[int](rt, nameTag); ok {
		t.Fatal("expected a type-mismatched feature retrieval to report ok=false")
	}
}

func TestDestroyFeatureInvokedOnCommit(t *testing.T) {
	type resource struct{ id int }
	var destroyedIDs []int
	WithDestroyFeature(func(r *resource) { destroyedIDs = append(destroyedIDs, r.id) })

	q, _ := New().BuildSingleThreaded()
	_ = Push(q, resource{id: 11})
	v, ok := TryConsume[resource](q)
	if !ok || v.id != 11 {
		t.Fatalf("got (%v, %v)", v, ok)
	}
	if len(destroyedIDs) != 1 || destroyedIDs[0] != 11 {
		t.Fatalf("expected destroy feature invoked once with id 11, got %v", destroyedIDs)
	}
}

func TestAreEqualAndHashFeatures(t *testing.T) {
	rt := MakeRuntimeType[int]()
	if !rt.AreEqual(5, 5) {
		t.Fatal("expected 5 == 5")
	}
	if rt.AreEqual(5, 6) {
		t.Fatal("expected 5 != 6")
	}
	if rt.Hash(5) != rt.Hash(5) {
		t.Fatal("expected Hash to be stable across calls for equal values")
	}
}
