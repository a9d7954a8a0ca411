package foreman

import (
	"reflect"

	"github.com/TheBitDrifter/bark"
)

// Presence describes whether a simple component must exist on every entity
// of its archetype.
type Presence int

const (
	// Optional components may be absent; access yields an ok-bool.
	Optional Presence = iota
	// Required components must be supplied or auto-initialized at entity
	// creation and cannot be removed afterwards.
	Required
)

// StorageKind selects the backend a component type is stored in.
type StorageKind int

const (
	// DenseStorage backs the component with a presence bitmap and a slot
	// array. Supports chunked access.
	DenseStorage StorageKind = iota
	// SparseStorage backs the component with an ordered tree. No chunks.
	SparseStorage
)

// Discrim is the small nonnegative integer key identifying one member of an
// isotope component family.
type Discrim int

type componentID uint32

// AnySimple is the untyped view of a simple component type token, used in
// heterogeneous lists such as system resource requests.
type AnySimple interface {
	simple() *simpleMeta
}

// AnyIsotope is the untyped view of an isotope component type token.
type AnyIsotope interface {
	isotope() *isotopeMeta
}

// simpleMeta is the registry record of a simple component type. The typed
// closures are bound by FactoryNewSimple so that the registry itself stays
// untyped, mirroring the fill-function-pointer layout of the storages.
type simpleMeta struct {
	arch      *Archetype
	id        componentID
	name      string
	presence  Presence
	finalizer bool
	kind      StorageKind

	// must components support infallible access: Required presence or an
	// auto-init strategy.
	must bool

	initDeps     []AnySimple
	autoPopulate func(m *ComponentMap)

	newStorage func() any
	fill       func(store any, e RawEntity, m *ComponentMap) bool
	clearAt    func(store any, e RawEntity) bool
	hasAt      func(store any, e RawEntity) bool
	moveEntity func(store any, from, to RawEntity)
	visitAll   func(store any, visit func(holder RawEntity, r Referrer))
}

// Simple is the type token for a simple component: a value type C with at
// most one instance per entity of its archetype.
type Simple[C any] struct {
	meta *simpleMeta
}

func (t *Simple[C]) simple() *simpleMeta { return t.meta }

// Name returns the component's debug name.
func (t *Simple[C]) Name() string { return t.meta.name }

type autoSpec struct {
	compType reflect.Type
	deps     []AnySimple
	build    func(m *ComponentMap, self *simpleMeta) any
}

type simpleOptions struct {
	presence  Presence
	finalizer bool
	kind      StorageKind
	auto      *autoSpec
}

// SimpleOption configures a simple component type at declaration.
type SimpleOption func(*simpleOptions)

// WithPresence sets the presence constraint.
func WithPresence(p Presence) SimpleOption {
	return func(o *simpleOptions) { o.presence = p }
}

// AsFinalizer marks the component as a finalizer: entities stay alive until
// it is explicitly removed. Finalizers must be Optional.
func AsFinalizer() SimpleOption {
	return func(o *simpleOptions) { o.finalizer = true }
}

// WithStorage selects the storage backend.
func WithStorage(k StorageKind) SimpleOption {
	return func(o *simpleOptions) { o.kind = k }
}

// WithInitValue auto-initializes the component from no dependencies when it
// is omitted from the creation payload.
func WithInitValue[C any](fn func() C) SimpleOption {
	return func(o *simpleOptions) {
		o.auto = &autoSpec{
			compType: reflect.TypeFor[C](),
			build: func(m *ComponentMap, self *simpleMeta) any {
				return fn()
			},
		}
	}
}

// WithInit auto-initializes the component from one other simple component.
func WithInit[C, D1 any](d1 *Simple[D1], fn func(*D1) C) SimpleOption {
	return func(o *simpleOptions) {
		o.auto = &autoSpec{
			compType: reflect.TypeFor[C](),
			deps:     []AnySimple{d1},
			build: func(m *ComponentMap, self *simpleMeta) any {
				return fn(initDep(m, d1, self))
			},
		}
	}
}

// WithInit2 auto-initializes the component from two other simple components.
func WithInit2[C, D1, D2 any](d1 *Simple[D1], d2 *Simple[D2], fn func(*D1, *D2) C) SimpleOption {
	return func(o *simpleOptions) {
		o.auto = &autoSpec{
			compType: reflect.TypeFor[C](),
			deps:     []AnySimple{d1, d2},
			build: func(m *ComponentMap, self *simpleMeta) any {
				return fn(initDep(m, d1, self), initDep(m, d2, self))
			},
		}
	}
}

// WithInit3 auto-initializes the component from three other simple components.
func WithInit3[C, D1, D2, D3 any](
	d1 *Simple[D1], d2 *Simple[D2], d3 *Simple[D3], fn func(*D1, *D2, *D3) C,
) SimpleOption {
	return func(o *simpleOptions) {
		o.auto = &autoSpec{
			compType: reflect.TypeFor[C](),
			deps:     []AnySimple{d1, d2, d3},
			build: func(m *ComponentMap, self *simpleMeta) any {
				return fn(initDep(m, d1, self), initDep(m, d2, self), initDep(m, d3, self))
			},
		}
	}
}

func initDep[D any](m *ComponentMap, dep *Simple[D], self *simpleMeta) *D {
	val, ok := m.rawSimple(dep.meta)
	if !ok {
		panic(MissingInitDepError{
			Archetype: self.arch.name,
			Component: self.name,
			Dep:       dep.meta.name,
		})
	}
	return val.(*D)
}

// FactoryNewSimple declares a simple component type C on the archetype.
// Declaration must happen before the world is built.
func FactoryNewSimple[C any](arch *Archetype, opts ...SimpleOption) *Simple[C] {
	o := simpleOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	meta := &simpleMeta{
		arch:      arch,
		name:      reflect.TypeFor[C]().String(),
		presence:  o.presence,
		finalizer: o.finalizer,
		kind:      o.kind,
		must:      o.presence == Required || o.auto != nil,
	}

	if o.finalizer && o.presence == Required {
		panic(FinalizerPresenceError{Archetype: arch.name, Component: meta.name})
	}
	if o.auto != nil {
		if o.auto.compType != reflect.TypeFor[C]() {
			panic(bark.AddTrace(SchedulerInvariantError{
				Detail: "auto-init produces " + o.auto.compType.String() + " for component " + meta.name,
			}))
		}
		meta.initDeps = o.auto.deps
		build := o.auto.build
		meta.autoPopulate = func(m *ComponentMap) {
			val := build(m, meta).(C)
			m.setRawSimple(meta, &val)
		}
	}

	switch o.kind {
	case DenseStorage:
		meta.newStorage = func() any { return newDenseStorage[C]() }
	case SparseStorage:
		meta.newStorage = func() any { return newSparseStorage[C]() }
	}
	meta.fill = func(store any, e RawEntity, m *ComponentMap) bool {
		val, ok := m.takeRawSimple(meta)
		if !ok {
			return false
		}
		store.(componentStorage[C]).set(e, val.(*C))
		return true
	}
	meta.clearAt = func(store any, e RawEntity) bool {
		return store.(componentStorage[C]).set(e, nil) != nil
	}
	meta.hasAt = func(store any, e RawEntity) bool {
		return store.(componentStorage[C]).get(e) != nil
	}
	meta.moveEntity = func(store any, from, to RawEntity) {
		st := store.(componentStorage[C])
		if val := st.set(from, nil); val != nil {
			st.set(to, val)
		}
	}
	meta.visitAll = func(store any, visit func(RawEntity, Referrer)) {
		store.(componentStorage[C]).iterate(func(e RawEntity, c *C) bool {
			if r, ok := any(c).(Referrer); ok {
				visit(e, r)
			}
			return true
		})
	}

	arch.registerSimple(meta)
	return &Simple[C]{meta: meta}
}

// isotopeMeta is the registry record of an isotope component type.
type isotopeMeta struct {
	arch *Archetype
	id   componentID
	name string
	kind StorageKind

	// must isotopes carry a per-discriminant initializer, making point
	// access infallible.
	must     bool
	autoInit func(d Discrim) any

	newStorage func() any
	fillRaw    func(store any, e RawEntity, val any)
	clearAt    func(store any, e RawEntity) bool
	hasAt      func(store any, e RawEntity) bool
	moveEntity func(store any, from, to RawEntity)
	visitAll   func(store any, visit func(holder RawEntity, r Referrer))
}

// Isotope is the type token for an isotope component: a family of C values
// per entity, keyed by a Discrim.
type Isotope[C any] struct {
	meta *isotopeMeta
}

func (t *Isotope[C]) isotope() *isotopeMeta { return t.meta }

// Name returns the component's debug name.
func (t *Isotope[C]) Name() string { return t.meta.name }

type isotopeOptions struct {
	kind     StorageKind
	autoInit func(d Discrim) any
	compType reflect.Type
}

// IsotopeOption configures an isotope component type at declaration.
type IsotopeOption func(*isotopeOptions)

// WithIsotopeStorage selects the storage backend for each discriminant.
func WithIsotopeStorage(k StorageKind) IsotopeOption {
	return func(o *isotopeOptions) { o.kind = k }
}

// WithIsotopeInit auto-initializes missing members of the family per
// discriminant, granting the component infallible access.
func WithIsotopeInit[C any](fn func(Discrim) C) IsotopeOption {
	return func(o *isotopeOptions) {
		o.compType = reflect.TypeFor[C]()
		o.autoInit = func(d Discrim) any {
			val := fn(d)
			return &val
		}
	}
}

// FactoryNewIsotope declares an isotope component type C on the archetype.
func FactoryNewIsotope[C any](arch *Archetype, opts ...IsotopeOption) *Isotope[C] {
	o := isotopeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	meta := &isotopeMeta{
		arch: arch,
		name: reflect.TypeFor[C]().String(),
		kind: o.kind,
		must: o.autoInit != nil,
	}
	if o.autoInit != nil {
		if o.compType != reflect.TypeFor[C]() {
			panic(bark.AddTrace(SchedulerInvariantError{
				Detail: "isotope initializer produces " + o.compType.String() + " for component " + meta.name,
			}))
		}
		meta.autoInit = o.autoInit
	}

	switch o.kind {
	case DenseStorage:
		meta.newStorage = func() any { return newDenseStorage[C]() }
	case SparseStorage:
		meta.newStorage = func() any { return newSparseStorage[C]() }
	}
	meta.fillRaw = func(store any, e RawEntity, val any) {
		store.(componentStorage[C]).set(e, val.(*C))
	}
	meta.clearAt = func(store any, e RawEntity) bool {
		return store.(componentStorage[C]).set(e, nil) != nil
	}
	meta.hasAt = func(store any, e RawEntity) bool {
		return store.(componentStorage[C]).get(e) != nil
	}
	meta.moveEntity = func(store any, from, to RawEntity) {
		st := store.(componentStorage[C])
		if val := st.set(from, nil); val != nil {
			st.set(to, val)
		}
	}
	meta.visitAll = func(store any, visit func(RawEntity, Referrer)) {
		store.(componentStorage[C]).iterate(func(e RawEntity, c *C) bool {
			if r, ok := any(c).(Referrer); ok {
				visit(e, r)
			}
			return true
		})
	}

	arch.registerIsotope(meta)
	return &Isotope[C]{meta: meta}
}
