package foreman

import (
	"iter"
	"sort"

	"github.com/TheBitDrifter/bark"
)

// ReadIsotope is the typed read handle a system receives for an isotope
// component family. Discriminant access follows the request: full access
// reaches any discriminant, partial access only the declared ones.
type ReadIsotope[C any] struct {
	arch *Archetype
	name string
	must bool
	auto func(Discrim) any

	// declared is nil for full access.
	declared map[Discrim]bool
	stores   map[Discrim]componentStorage[C]
}

func (r ReadIsotope[C]) storeFor(d Discrim) componentStorage[C] {
	if r.declared != nil && !r.declared[d] {
		panic(bark.AddTrace(UndeclaredDiscrimError{
			Archetype: r.arch.name, Component: r.name, Discrim: d,
		}))
	}
	return r.stores[d]
}

// TryGet returns the component for the entity and discriminant, or false.
func (r ReadIsotope[C]) TryGet(e Ref, d Discrim) (*C, bool) {
	store := r.storeFor(d)
	if store == nil {
		return nil, false
	}
	c := store.get(e.Raw())
	return c, c != nil
}

// Get returns the component for the entity and discriminant. For families
// with a per-discriminant initializer the missing value is synthesized;
// otherwise absence panics.
func (r ReadIsotope[C]) Get(e Ref, d Discrim) *C {
	if c, ok := r.TryGet(e, d); ok {
		return c
	}
	if r.auto != nil {
		return r.auto(d).(*C)
	}
	panic(bark.AddTrace(NotMustError{Archetype: r.arch.name, Component: r.name}))
}

// GetAll yields every discriminant present on the entity with its value, in
// ascending discriminant order.
func (r ReadIsotope[C]) GetAll(e Ref) iter.Seq2[Discrim, *C] {
	keys := make([]Discrim, 0, len(r.stores))
	for d := range r.stores {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return func(yield func(Discrim, *C) bool) {
		for _, d := range keys {
			if c := r.stores[d].get(e.Raw()); c != nil {
				if !yield(d, c) {
					return
				}
			}
		}
	}
}

// Iter yields every entity carrying the given discriminant, in ascending ID
// order.
func (r ReadIsotope[C]) Iter(d Discrim) iter.Seq2[RawEntity, *C] {
	store := r.storeFor(d)
	return func(yield func(RawEntity, *C) bool) {
		if store != nil {
			store.iterate(yield)
		}
	}
}

// Split returns one independently usable read view per key, letting a system
// treat each discriminant as a distinct simple component.
func (r ReadIsotope[C]) Split(keys ...Discrim) []ReadSimple[C] {
	views := make([]ReadSimple[C], len(keys))
	for i, d := range keys {
		store := r.storeFor(d)
		if store == nil {
			store = r.emptyStore()
		}
		views[i] = ReadSimple[C]{arch: r.arch, name: r.name, must: r.must, store: store}
	}
	return views
}

func (r ReadIsotope[C]) emptyStore() componentStorage[C] {
	return newSparseStorage[C]()
}

// WriteIsotope is the typed write handle a system receives for an isotope
// component family. Full-access writers create discriminant storages on
// demand.
type WriteIsotope[C any] struct {
	ReadIsotope[C]

	// create resolves a missing discriminant storage; nil for partial
	// access, whose discriminant set is fixed at declaration.
	create func(d Discrim) componentStorage[C]
}

func (w WriteIsotope[C]) storeOrCreate(d Discrim) componentStorage[C] {
	if store := w.storeFor(d); store != nil {
		return store
	}
	if w.create == nil {
		panic(bark.AddTrace(UndeclaredDiscrimError{
			Archetype: w.arch.name, Component: w.name, Discrim: d,
		}))
	}
	store := w.create(d)
	w.stores[d] = store
	return store
}

// TryGetMut returns a mutable reference to the component, or false.
func (w WriteIsotope[C]) TryGetMut(e Ref, d Discrim) (*C, bool) {
	return w.TryGet(e, d)
}

// GetMut returns a mutable reference to the component for the entity and
// discriminant, storing the initializer's value first when absent.
func (w WriteIsotope[C]) GetMut(e Ref, d Discrim) *C {
	if c, ok := w.TryGet(e, d); ok {
		return c
	}
	if w.auto == nil {
		panic(bark.AddTrace(NotMustError{Archetype: w.arch.name, Component: w.name}))
	}
	store := w.storeOrCreate(d)
	store.set(e.Raw(), w.auto(d).(*C))
	return store.get(e.Raw())
}

// Set overwrites the component for the entity and discriminant and returns
// the previous value, if any. Passing nil removes the member.
func (w WriteIsotope[C]) Set(e Ref, d Discrim, value *C) *C {
	if value == nil {
		store := w.storeFor(d)
		if store == nil {
			return nil
		}
		return store.set(e.Raw(), nil)
	}
	return w.storeOrCreate(d).set(e.Raw(), value)
}

// IterMut yields every entity carrying the given discriminant, mutably.
func (w WriteIsotope[C]) IterMut(d Discrim) iter.Seq2[RawEntity, *C] {
	return w.Iter(d)
}

// SplitIsotopes returns one independently usable write view per key,
// enabling zipped iteration that treats each discriminant as a distinct
// component.
func (w WriteIsotope[C]) SplitIsotopes(keys ...Discrim) []WriteSimple[C] {
	views := make([]WriteSimple[C], len(keys))
	for i, d := range keys {
		store := w.storeFor(d)
		if store == nil {
			store = w.storeOrCreate(d)
		}
		views[i] = WriteSimple[C]{ReadSimple: ReadSimple[C]{
			arch: w.arch, name: w.name, must: w.must, store: store,
		}}
	}
	return views
}
