// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hetq

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"sync"
)

// FeatureTag names a user-extensible feature stored in a RuntimeType's
// feature table alongside the built-in ones.
type FeatureTag string

// featureTable is the per-concrete-type tuple of operations a RuntimeType
// points to. One instance is built per distinct Go type and cached for the
// lifetime of the process; RuntimeType equality is pointer equality of this
// table, matching runtime_type.h's "pointer to a statically allocated
// tuple... one static instance per concrete type".
type featureTable struct {
	typ   reflect.Type
	size  uintptr
	align uintptr

	defaultConstruct func(dst any) any
	copyConstruct    func(src any) any
	destroy          func(obj any)
	equal            func(a, b any) bool
	hash             func(seed maphash.Seed, obj any) uint64
	nothrowMove      bool

	extra map[FeatureTag]any
}

// RuntimeType is a compact type descriptor: a pointer to a type's feature
// table. The zero value is the "empty" runtime type; all non-empty
// operations on it are undefined, per spec.
type RuntimeType struct {
	table *featureTable
}

var featureTables sync.Map // reflect.Type -> *featureTable

var hashSeed = maphash.MakeSeed()

// MakeRuntimeType builds (or retrieves the cached) RuntimeType for T.
// Matches RuntimeType::make<T>() in the source: the table is built once per
// concrete type and every subsequent call for the same T returns a
// RuntimeType equal (by pointer) to the first.
func MakeRuntimeType[T any]() RuntimeType {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		// T is an interface type instantiated with a nil value; fall back
		// to the static type parameter via reflection on a pointer.
		typ = reflect.TypeOf(&zero).Elem()
	}
	if v, ok := featureTables.Load(typ); ok {
		return RuntimeType{table: v.(*featureTable)}
	}
	ft := &featureTable{
		typ:   typ,
		size:  typ.Size(),
		align: uintptr(typ.Align()),
		defaultConstruct: func(any) any {
			var v T
			return v
		},
		copyConstruct: func(src any) any {
			v := src.(T)
			return v
		},
		destroy:     func(any) {},
		nothrowMove: true,
		equal: func(a, b any) bool {
			return reflect.DeepEqual(a, b)
		},
		hash: func(seed maphash.Seed, obj any) uint64 {
			return hashAny(seed, obj)
		},
	}
	actual, _ := featureTables.LoadOrStore(typ, ft)
	return RuntimeType{table: actual.(*featureTable)}
}

// hashAny hashes an arbitrary value using its formatted representation.
// reflect lacks a generic structural hash; density's f_hash feature is
// opt-in per type in the source, so a %#v-based fallback (stable across
// calls, not across process restarts) is an acceptable default here.
func hashAny(seed maphash.Seed, obj any) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	_, _ = h.WriteString(fmt.Sprintf("%#v", obj))
	return h.Sum64()
}

// IsEmpty reports whether rt is the empty runtime type.
func (rt RuntimeType) IsEmpty() bool { return rt.table == nil }

// Size returns the erased type's size in bytes.
func (rt RuntimeType) Size() uintptr { return rt.table.size }

// Alignment returns the erased type's alignment in bytes.
func (rt RuntimeType) Alignment() uintptr { return rt.table.align }

// GoType returns the reflect.Type this RuntimeType erases.
func (rt RuntimeType) GoType() reflect.Type { return rt.table.typ }

// DefaultConstruct returns the zero value of the erased type.
func (rt RuntimeType) DefaultConstruct() any { return rt.table.defaultConstruct(nil) }

// CopyConstruct returns a copy of src, which must hold a value of the
// erased type.
func (rt RuntimeType) CopyConstruct(src any) any { return rt.table.copyConstruct(src) }

// Destroy invokes the erased type's destroy feature on obj. Required to
// never panic; built-in Go types have no-op destructors, so this is a
// hook for user-registered features (see [WithDestroyFeature]).
func (rt RuntimeType) Destroy(obj any) { rt.table.destroy(obj) }

// AreEqual reports whether a and b, both of the erased type, compare
// equal via the type's equal feature (reflect.DeepEqual by default).
func (rt RuntimeType) AreEqual(a, b any) bool { return rt.table.equal(a, b) }

// Hash returns obj's hash per the type's hash feature.
func (rt RuntimeType) Hash(obj any) uint64 { return rt.table.hash(hashSeed, obj) }

// NothrowMovable reports whether the erased type's move is required to be
// non-panicking. Go values are always movable without user code running
// (no move constructors), so this is always true; retained for parity
// with the source's static check at registration.
func (rt RuntimeType) NothrowMovable() bool { return rt.table.nothrowMove }

// Equal reports whether rt and other describe the same erased type.
// Pointer equality of the feature table, per spec §4.2.
func (rt RuntimeType) Equal(other RuntimeType) bool { return rt.table == other.table }

// Is reports whether rt erases the type T.
func Is[T any](rt RuntimeType) bool {
	return rt.table != nil && rt.table.typ == reflect.TypeOf((*T)(nil)).Elem()
}

// Feature retrieves a user-registered feature of type F stored under tag
// on rt's feature table. Returns ok=false if rt has no feature under that
// tag, or if the stored value is not assertable to F — mirroring
// runtime_type.h's has_features graceful-absence contract rather than
// panicking.
func Feature[F any](rt RuntimeType, tag FeatureTag) (f F, ok bool) {
	if rt.table == nil || rt.table.extra == nil {
		return f, false
	}
	v, found := rt.table.extra[tag]
	if !found {
		return f, false
	}
	f, ok = v.(F)
	return f, ok
}

// RegisterFeature attaches a user feature under tag to T's feature table.
// Must be called before the first MakeRuntimeType[T] call that needs it;
// the table is otherwise immutable after its first build, per spec §4.2's
// "feature table is immutable after initialization".
func RegisterFeature[T any](tag FeatureTag, feature any) {
	rt := MakeRuntimeType[T]()
	if rt.table.extra == nil {
		rt.table.extra = make(map[FeatureTag]any)
	}
	rt.table.extra[tag] = feature
}

// WithDestroyFeature registers a destroy callback for T, invoked by
// [RuntimeType.Destroy] and by the queue on a consume's Commit and on
// Clear; cancelling a put or a consume does not invoke it. Built-in
// Go types need none (the GC reclaims them); this is for types holding
// non-GC resources (file handles, native buffers).
func WithDestroyFeature[T any](fn func(*T)) {
	rt := MakeRuntimeType[T]()
	rt.table.destroy = func(obj any) {
		if obj == nil {
			return
		}
		v := obj.(T)
		fn(&v)
	}
}
