package foreman

import (
	"iter"

	"github.com/TheBitDrifter/bark"
)

// ReadSimple is the typed read handle a system receives for a simple
// component. Values yielded by a read handle must not be written through.
type ReadSimple[C any] struct {
	arch     *Archetype
	name     string
	must     bool
	required bool
	store    componentStorage[C]
}

// TryGet returns the component for the entity, or false if absent.
func (r ReadSimple[C]) TryGet(e Ref) (*C, bool) {
	c := r.store.get(e.Raw())
	return c, c != nil
}

// Get returns the component for the entity. Only components with the Must
// capability (Required presence or auto-init) support Get; absence then
// indicates a scheduler or lifecycle bug and panics.
func (r ReadSimple[C]) Get(e Ref) *C {
	if !r.must {
		panic(bark.AddTrace(NotMustError{Archetype: r.arch.name, Component: r.name}))
	}
	c := r.store.get(e.Raw())
	if c == nil {
		panic(bark.AddTrace(MustAbsentError{Archetype: r.arch.name, Component: r.name, Entity: e.Raw()}))
	}
	return c
}

// Iter yields every entity that has the component set, in ascending ID
// order.
func (r ReadSimple[C]) Iter() iter.Seq2[RawEntity, *C] {
	return func(yield func(RawEntity, *C) bool) {
		r.store.iterate(yield)
	}
}

// AccessChunk returns a chunked view. Panics for storages that do not store
// components densely, and for components without the Must capability.
func (r ReadSimple[C]) AccessChunk() ChunkRead[C] {
	if !r.must {
		panic(bark.AddTrace(UnchunkedStorageError{Archetype: r.arch.name, Component: r.name}))
	}
	return ChunkRead[C]{
		name:  r.name,
		arch:  r.arch.name,
		store: chunked(r.store, r.arch.name, r.name),
	}
}

// Access returns a zip accessor yielding the component for every entity,
// panicking on absence. Must-capability components only.
func (r ReadSimple[C]) Access() Acc[*C] {
	return Acc[*C]{arch: r.arch, fetch: func(e RawEntity) *C { return r.Get(e) }}
}

// TryAccess returns a zip accessor yielding nil for entities without the
// component.
func (r ReadSimple[C]) TryAccess() Acc[*C] {
	return Acc[*C]{arch: r.arch, fetch: func(e RawEntity) *C { return r.store.get(e) }}
}

// WriteSimple is the typed write handle a system receives for a simple
// component.
type WriteSimple[C any] struct {
	ReadSimple[C]
}

// TryGetMut returns a mutable reference to the component, or false.
func (w WriteSimple[C]) TryGetMut(e Ref) (*C, bool) {
	return w.TryGet(e)
}

// GetMut returns a mutable reference to the component. Must-capability
// components only; absence panics.
func (w WriteSimple[C]) GetMut(e Ref) *C {
	return w.Get(e)
}

// Set overwrites the component for the entity and returns the previous
// value, if any. Passing nil removes the component; removing a component
// with Required presence panics.
func (w WriteSimple[C]) Set(e Ref, value *C) *C {
	if value == nil && w.required {
		panic(bark.AddTrace(RequiredRemovalError{
			Archetype: w.arch.name, Component: w.name, Entity: e.Raw(),
		}))
	}
	return w.store.set(e.Raw(), value)
}

// IterMut yields every entity that has the component set, mutably.
func (w WriteSimple[C]) IterMut() iter.Seq2[RawEntity, *C] {
	return w.Iter()
}

// SplitAt partitions the handle into two disjoint halves covering entities
// below and at-or-above e, safe to hand to concurrent workers.
func (w WriteSimple[C]) SplitAt(e RawEntity) (WriteSimple[C], WriteSimple[C]) {
	left, right := w.store.splitAt(e)
	lw, rw := w, w
	lw.store, rw.store = left, right
	return lw, rw
}

// AccessChunkMut returns a mutable chunked view. Panics for storages that do
// not store components densely.
func (w WriteSimple[C]) AccessChunkMut() ChunkWrite[C] {
	if !w.must {
		panic(bark.AddTrace(UnchunkedStorageError{Archetype: w.arch.name, Component: w.name}))
	}
	return ChunkWrite[C]{
		name:  w.name,
		arch:  w.arch.name,
		store: chunked(w.store, w.arch.name, w.name),
	}
}

// AccessMut returns a zip accessor yielding the component mutably for every
// entity, panicking on absence. Must-capability components only.
func (w WriteSimple[C]) AccessMut() Acc[*C] {
	return Acc[*C]{arch: w.arch, fetch: func(e RawEntity) *C { return w.Get(e) }}
}

// TryAccessMut returns a zip accessor yielding nil for entities without the
// component.
func (w WriteSimple[C]) TryAccessMut() Acc[*C] {
	return w.TryAccess()
}

func newReadSimple[C any](meta *simpleMeta, store any) ReadSimple[C] {
	return ReadSimple[C]{
		arch:     meta.arch,
		name:     meta.name,
		must:     meta.must,
		required: meta.presence == Required,
		store:    store.(componentStorage[C]),
	}
}

func newWriteSimple[C any](meta *simpleMeta, store any) WriteSimple[C] {
	return WriteSimple[C]{ReadSimple: newReadSimple[C](meta, store)}
}
