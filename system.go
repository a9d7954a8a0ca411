package foreman

import (
	"github.com/TheBitDrifter/bark"
)

// Partition is a named synchronization point between groups of systems. Any
// comparable value works as a partition; two values are the same partition
// iff they compare equal. Partitions own no work of their own.
type Partition any

type resourceKind uint8

const (
	resSimple resourceKind = iota
	resIsotope
	resGlobal
)

// resourceKey identifies one lockable resource of the world.
type resourceKey struct {
	kind   resourceKind
	arch   uint32
	comp   componentID
	global int
}

// resourceAccess is one system's declared intent on a resource. For isotope
// resources, full access conflicts with any other access; partial accesses
// conflict only when their discriminant lists intersect.
type resourceAccess struct {
	write bool
	full  bool
	keys  []Discrim
}

func (a resourceAccess) conflictsWith(b resourceAccess) bool {
	if !a.write && !b.write {
		return false
	}
	if a.full || b.full {
		return true
	}
	for _, x := range a.keys {
		for _, y := range b.keys {
			if x == y {
				return true
			}
		}
	}
	return false
}

type request struct {
	key    resourceKey
	access resourceAccess

	simpleM *simpleMeta
	isoM    *isotopeMeta
	globalM *globalMeta
}

// SystemSpec is the metadata a system publishes: debug name, resource
// requests, ordering dependencies, partition membership and thread safety.
type SystemSpec struct {
	name     string
	fn       func(*SystemContext)
	sendable bool

	requests []request
	befores  []Partition
	afters   []Partition
}

// Name returns the system's debug name.
func (s *SystemSpec) Name() string { return s.name }

// SystemOption configures a system declaration.
type SystemOption func(*SystemSpec)

// NewSystem declares a system: a stateless procedure with declared resource
// intents, dispatched by the scheduler.
func NewSystem(name string, fn func(*SystemContext), opts ...SystemOption) *SystemSpec {
	s := &SystemSpec{name: name, fn: fn, sendable: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func simpleKey(meta *simpleMeta) resourceKey {
	return resourceKey{kind: resSimple, arch: meta.arch.id, comp: meta.id}
}

func isotopeKey(meta *isotopeMeta) resourceKey {
	return resourceKey{kind: resIsotope, arch: meta.arch.id, comp: meta.id}
}

func globalKey(meta *globalMeta) resourceKey {
	return resourceKey{kind: resGlobal, global: meta.id}
}

// Reads declares a shared-access request for a simple component.
func Reads(c AnySimple) SystemOption {
	return func(s *SystemSpec) {
		meta := c.simple()
		s.requests = append(s.requests, request{key: simpleKey(meta), simpleM: meta})
	}
}

// Writes declares an exclusive-access request for a simple component.
func Writes(c AnySimple) SystemOption {
	return func(s *SystemSpec) {
		meta := c.simple()
		s.requests = append(s.requests, request{
			key: simpleKey(meta), access: resourceAccess{write: true}, simpleM: meta,
		})
	}
}

// ReadsIsotope declares a shared request for every discriminant of an
// isotope family.
func ReadsIsotope(c AnyIsotope) SystemOption {
	return func(s *SystemSpec) {
		meta := c.isotope()
		s.requests = append(s.requests, request{
			key: isotopeKey(meta), access: resourceAccess{full: true}, isoM: meta,
		})
	}
}

// WritesIsotope declares an exclusive request for every discriminant of an
// isotope family.
func WritesIsotope(c AnyIsotope) SystemOption {
	return func(s *SystemSpec) {
		meta := c.isotope()
		s.requests = append(s.requests, request{
			key: isotopeKey(meta), access: resourceAccess{write: true, full: true}, isoM: meta,
		})
	}
}

// ReadsIsotopeKeys declares a shared request for an explicit discriminant
// list. An empty list is legal and yields empty iteration.
func ReadsIsotopeKeys(c AnyIsotope, keys ...Discrim) SystemOption {
	return func(s *SystemSpec) {
		meta := c.isotope()
		s.requests = append(s.requests, request{
			key: isotopeKey(meta), access: resourceAccess{keys: keys}, isoM: meta,
		})
	}
}

// WritesIsotopeKeys declares an exclusive request for an explicit
// discriminant list.
func WritesIsotopeKeys(c AnyIsotope, keys ...Discrim) SystemOption {
	return func(s *SystemSpec) {
		meta := c.isotope()
		s.requests = append(s.requests, request{
			key: isotopeKey(meta), access: resourceAccess{write: true, keys: keys}, isoM: meta,
		})
	}
}

// ReadsGlobal declares a shared request for a global.
func ReadsGlobal(g AnyGlobal) SystemOption {
	return func(s *SystemSpec) {
		meta := g.global()
		s.requests = append(s.requests, request{key: globalKey(meta), globalM: meta})
	}
}

// WritesGlobal declares an exclusive request for a global.
func WritesGlobal(g AnyGlobal) SystemOption {
	return func(s *SystemSpec) {
		meta := g.global()
		s.requests = append(s.requests, request{
			key: globalKey(meta), access: resourceAccess{write: true}, globalM: meta,
		})
	}
}

// Before schedules the system strictly before the partition completes.
func Before(p Partition) SystemOption {
	return func(s *SystemSpec) { s.befores = append(s.befores, p) }
}

// After schedules the system strictly after the partition completes.
func After(p Partition) SystemOption {
	return func(s *SystemSpec) { s.afters = append(s.afters, p) }
}

// Unsendable pins the system to the main thread. Only unsendable systems may
// request unsendable globals.
func Unsendable() SystemOption {
	return func(s *SystemSpec) { s.sendable = false }
}

// SystemContext carries the locked resources of one system run. Handles are
// constructed from it through the component type tokens.
type SystemContext struct {
	world  *World
	spec   *SystemSpec
	thread Thread

	releases []func()

	// isotope stores resolved per request, keyed by request index.
	isotopeStores map[int]map[Discrim]any
}

// World returns the world the system runs against. Entity creation and
// deletion through it are buffered until the cycle boundary.
func (ctx *SystemContext) World() *World { return ctx.world }

// Thread reports which executor thread runs the system.
func (ctx *SystemContext) Thread() Thread { return ctx.thread }

func (ctx *SystemContext) lookup(key resourceKey, write bool) int {
	for i := range ctx.spec.requests {
		req := &ctx.spec.requests[i]
		if req.key != key {
			continue
		}
		if write && !req.access.write {
			continue
		}
		return i
	}
	name := "resource"
	switch key.kind {
	case resSimple:
		name = ctx.world.archetypeByID(key.arch).simples[key.comp].name
	case resIsotope:
		name = ctx.world.archetypeByID(key.arch).isotopes[key.comp].name
	case resGlobal:
		name = ctx.world.globals[key.global].name
	}
	panic(bark.AddTrace(UndeclaredAccessError{System: ctx.spec.name, Resource: name, Write: write}))
}

func (ctx *SystemContext) checkGlobal(meta *globalMeta, write bool) {
	ctx.lookup(globalKey(meta), write)
}

// acquire locks every declared resource. The scheduler's exclusion graph
// guarantees no contention; a failed try-lock panics.
func (ctx *SystemContext) acquire() {
	ctx.isotopeStores = make(map[int]map[Discrim]any)
	for i := range ctx.spec.requests {
		req := &ctx.spec.requests[i]
		switch req.key.kind {
		case resSimple:
			slot := req.simpleM.arch.simpleSlot(req.simpleM)
			ctx.lockSlot(slot, req.simpleM.arch.name, req.simpleM.name, req.access.write)
		case resIsotope:
			ctx.acquireIsotope(i, req)
		case resGlobal:
			if req.access.write {
				ctx.releases = append(ctx.releases, req.globalM.tryWrite())
			} else {
				ctx.releases = append(ctx.releases, req.globalM.tryRead())
			}
		}
	}
}

func (ctx *SystemContext) lockSlot(slot *storageSlot, arch, comp string, write bool) {
	if write {
		ctx.releases = append(ctx.releases, slot.tryWrite(arch, comp))
	} else {
		ctx.releases = append(ctx.releases, slot.tryRead(arch, comp))
	}
}

func (ctx *SystemContext) acquireIsotope(i int, req *request) {
	fam := req.isoM.arch.isotopeFamily(req.isoM)
	stores := make(map[Discrim]any)
	if req.access.full {
		for _, d := range fam.discrims() {
			slot := fam.slot(d)
			ctx.lockSlot(slot, req.isoM.arch.name, req.isoM.name, req.access.write)
			stores[d] = slot.store
		}
	} else {
		for _, d := range req.access.keys {
			slot := fam.slotOrCreate(d)
			ctx.lockSlot(slot, req.isoM.arch.name, req.isoM.name, req.access.write)
			stores[d] = slot.store
		}
	}
	ctx.isotopeStores[i] = stores
}

func (ctx *SystemContext) release() {
	for i := len(ctx.releases) - 1; i >= 0; i-- {
		ctx.releases[i]()
	}
	ctx.releases = nil
}

// Read constructs the read handle for a simple component. The system must
// have declared a read or write request for it.
func (t *Simple[C]) Read(ctx *SystemContext) ReadSimple[C] {
	ctx.lookup(simpleKey(t.meta), false)
	return newReadSimple[C](t.meta, t.meta.arch.simpleSlot(t.meta).store)
}

// Write constructs the write handle for a simple component. The system must
// have declared a write request for it.
func (t *Simple[C]) Write(ctx *SystemContext) WriteSimple[C] {
	ctx.lookup(simpleKey(t.meta), true)
	return newWriteSimple[C](t.meta, t.meta.arch.simpleSlot(t.meta).store)
}

// ReadIso constructs the read handle for an isotope family, full or partial
// according to the declared request.
func (t *Isotope[C]) ReadIso(ctx *SystemContext) ReadIsotope[C] {
	i := ctx.lookup(isotopeKey(t.meta), false)
	return newReadIsotope[C](t.meta, &ctx.spec.requests[i], ctx.isotopeStores[i])
}

// WriteIso constructs the write handle for an isotope family.
func (t *Isotope[C]) WriteIso(ctx *SystemContext) WriteIsotope[C] {
	i := ctx.lookup(isotopeKey(t.meta), true)
	req := &ctx.spec.requests[i]
	w := WriteIsotope[C]{ReadIsotope: newReadIsotope[C](t.meta, req, ctx.isotopeStores[i])}
	if req.access.full {
		fam := t.meta.arch.isotopeFamily(t.meta)
		w.create = func(d Discrim) componentStorage[C] {
			slot := fam.slotOrCreate(d)
			ctx.lockSlot(slot, t.meta.arch.name, t.meta.name, true)
			return slot.store.(componentStorage[C])
		}
	}
	return w
}

func newReadIsotope[C any](meta *isotopeMeta, req *request, stores map[Discrim]any) ReadIsotope[C] {
	typed := make(map[Discrim]componentStorage[C], len(stores))
	for d, st := range stores {
		typed[d] = st.(componentStorage[C])
	}
	r := ReadIsotope[C]{
		arch:   meta.arch,
		name:   meta.name,
		must:   meta.must,
		auto:   meta.autoInit,
		stores: typed,
	}
	if !req.access.full {
		r.declared = make(map[Discrim]bool, len(req.access.keys))
		for _, d := range req.access.keys {
			r.declared[d] = true
		}
	}
	return r
}
