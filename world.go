package foreman

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// WorldBuilder accumulates archetypes, globals and systems, then computes
// the scheduling topology.
type WorldBuilder struct {
	archetypes []*Archetype
	globals    []*globalMeta
	systems    *registryCache[*SystemSpec]
	built      bool
}

func newWorldBuilder() *WorldBuilder {
	return &WorldBuilder{systems: newRegistryCache[*SystemSpec](256)}
}

// NewArchetype declares an archetype. Component types are declared against
// the returned value.
func (b *WorldBuilder) NewArchetype(name string) *Archetype {
	arch := newArchetype(uint32(len(b.archetypes)), name)
	b.archetypes = append(b.archetypes, arch)
	return arch
}

func (b *WorldBuilder) registerGlobal(meta *globalMeta) {
	if b.built {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "global " + meta.name + " declared after the world was built",
		}))
	}
	meta.id = len(b.globals)
	b.globals = append(b.globals, meta)
}

// Schedule registers a system. Registering two systems under the same name
// is a configuration error.
func (b *WorldBuilder) Schedule(sys *SystemSpec) *WorldBuilder {
	if _, dup := b.systems.GetIndex(sys.name); dup {
		panic(DuplicateSystemError{Name: sys.name})
	}
	if _, err := b.systems.Register(sys.name, sys); err != nil {
		panic(err)
	}
	return b
}

// Build seals the registries, computes the dependency and exclusion
// topology, and returns an executable world. Configuration errors panic
// here, before any cycle runs.
func (b *WorldBuilder) Build() *World {
	b.built = true
	for _, arch := range b.archetypes {
		arch.sealed = true
	}

	var sendSystems, unsendSystems []*SystemSpec
	b.systems.Each(func(_ int, sys *SystemSpec) {
		if sys.sendable {
			sendSystems = append(sendSystems, sys)
		} else {
			unsendSystems = append(unsendSystems, sys)
		}
	})

	for _, sys := range sendSystems {
		for _, req := range sys.requests {
			if req.key.kind == resGlobal && !req.globalM.sendable {
				panic(UnsendableGlobalError{System: sys.name, Global: req.globalM.name})
			}
		}
	}

	partitionIndices := make(map[Partition]int)
	var partitionNames []string
	partitionOf := func(p Partition) ScheduleNode {
		idx, ok := partitionIndices[p]
		if !ok {
			idx = len(partitionNames)
			partitionIndices[p] = idx
			partitionNames = append(partitionNames, fmt.Sprintf("%v", p))
		}
		return ScheduleNode{Kind: PartitionNode, Index: idx}
	}

	var orders []order
	resources := make(map[resourceKey]map[ScheduleNode][]resourceAccess)
	collect := func(n ScheduleNode, sys *SystemSpec) {
		for _, p := range sys.befores {
			orders = append(orders, order{before: n, after: partitionOf(p)})
		}
		for _, p := range sys.afters {
			orders = append(orders, order{before: partitionOf(p), after: n})
		}
		for _, req := range sys.requests {
			accessors, ok := resources[req.key]
			if !ok {
				accessors = make(map[ScheduleNode][]resourceAccess)
				resources[req.key] = accessors
			}
			accessors[n] = append(accessors[n], req.access)
		}
	}
	for i, sys := range sendSystems {
		collect(ScheduleNode{Kind: SendSystemNode, Index: i}, sys)
	}
	for i, sys := range unsendSystems {
		collect(ScheduleNode{Kind: UnsendSystemNode, Index: i}, sys)
	}

	sendNames := make([]string, len(sendSystems))
	for i, sys := range sendSystems {
		sendNames[i] = sys.name
	}
	unsendNames := make([]string, len(unsendSystems))
	for i, sys := range unsendSystems {
		unsendNames[i] = sys.name
	}

	w := &World{
		archetypes:    b.archetypes,
		globals:       b.globals,
		sendSystems:   sendSystems,
		unsendSystems: unsendSystems,
		topo:          newTopology(sendNames, unsendNames, partitionNames, orders, resources),
		queue:         &entityOperationsQueue{},
	}
	w.exec = &executor{
		world:         w,
		topo:          w.topo,
		sendSystems:   sendSystems,
		unsendSystems: unsendSystems,
	}
	return w
}

// World owns the storages and the scheduler. Outside a cycle it is accessed
// in offline mode; during Execute all component access flows through the
// locked access primitives.
type World struct {
	archetypes []*Archetype
	globals    []*globalMeta

	sendSystems   []*SystemSpec
	unsendSystems []*SystemSpec
	topo          *topology
	exec          *executor

	// locks carries one bit per archetype while a cycle runs; entity
	// lifecycle operations arriving meanwhile are queued.
	locks mask.Mask256

	mu    sync.Mutex
	queue *entityOperationsQueue
}

func (w *World) archetypeByID(id uint32) *Archetype {
	return w.archetypes[id]
}

// Locked reports whether a cycle is executing.
func (w *World) Locked() bool {
	return !w.locks.IsEmpty()
}

func (w *World) requireOffline(operation string) {
	if w.Locked() {
		panic(bark.AddTrace(LockedWorldError{Operation: operation}))
	}
}

// executingBit marks a running cycle even in worlds with no archetypes.
const executingBit = 255

func (w *World) lockAll() {
	w.locks.Mark(executingBit)
	for _, arch := range w.archetypes {
		w.locks.Mark(arch.id)
	}
}

func (w *World) unlockAll() {
	for _, arch := range w.archetypes {
		w.locks.Unmark(arch.id)
	}
	w.locks.Unmark(executingBit)
}

// Create allocates an entity and inserts the payload. Offline the entity is
// visible immediately; during a cycle the fill is buffered and the entity
// becomes visible at the next cycle boundary. The payload must supply every
// Required component that is not auto-initializable.
func (w *World) Create(arch *Archetype, payload *ComponentMap) Entity {
	return w.create(arch, payload, func() RawEntity { return arch.alloc.allocate() })
}

// CreateNear is Create with an allocation hint: the entity receives the
// recycled ID nearest to the hint, keeping related entities close together
// for chunked iteration.
func (w *World) CreateNear(arch *Archetype, hint Ref, payload *ComponentMap) Entity {
	return w.create(arch, payload, func() RawEntity { return arch.alloc.allocateNear(hint.Raw()) })
}

func (w *World) create(arch *Archetype, payload *ComponentMap, alloc func() RawEntity) Entity {
	if payload.arch != arch {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "payload built for archetype " + payload.arch.name + " used to create into " + arch.name,
		}))
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	id := alloc()
	if w.Locked() {
		w.queue.Enqueue(createOperation{arch: arch, id: id, payload: payload})
	} else {
		w.applyCreate(arch, id, payload)
	}
	return Entity{arch: arch, id: id}
}

// applyCreate runs auto-init closures in dependency order, validates
// required presence, and writes the payload into the storages.
func (w *World) applyCreate(arch *Archetype, id RawEntity, payload *ComponentMap) {
	payload.resolveAutoInit()
	payload.validateRequired()

	for _, meta := range arch.simples {
		meta.fill(arch.simpleSlot(meta).store, id, payload)
	}
	payload.eachIsotope(func(comp componentID, d Discrim, val any) {
		meta := arch.isotopes[comp]
		slot := arch.isotopeFamily(meta).slotOrCreate(d)
		meta.fillRaw(slot.store, id, val)
	})

	arch.live.Add(uint32(id))
}

// Delete marks an entity for deletion. The mark is applied at the next cycle
// boundary and the deletion is deferred while any finalizer component is set
// or a strong reference remains outside the about-to-be-deleted subgraph.
// Deferred deletions resolve breadth-first from the deletion roots as
// finalizers and references drop.
func (w *World) Delete(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Locked() {
		w.queue.Enqueue(deleteOperation{arch: e.arch, id: e.id})
		return
	}
	e.arch.pendingDeletes.Add(uint32(e.id))
	w.flushDeletes()
}

// Pin records an explicit strong reference held outside any component,
// deferring deletion like a component-held strong handle. Handles in plain
// variables are otherwise invisible to the runtime.
func (w *World) Pin(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e.arch.pinned[e.id]++
}

// Unpin releases an explicit strong reference.
func (w *World) Unpin(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := e.arch.pinned[e.id]; n > 1 {
		e.arch.pinned[e.id] = n - 1
	} else {
		delete(e.arch.pinned, e.id)
	}
}

// Alive reports whether the entity is currently visible.
func (w *World) Alive(e Ref, arch *Archetype) bool {
	return arch.live.Contains(uint32(e.Raw()))
}

// Execute runs exactly one cycle: queued lifecycle operations flush, the
// planner resets from the topology's initial state, and executor threads
// steal, run and complete systems until none remain. A panic inside a system
// aborts the cycle and is re-raised here after running systems quiesce.
func (w *World) Execute(tr Tracer) {
	w.requireOffline("execute")
	w.flushBoundary()

	w.lockAll()
	defer func() {
		w.unlockAll()
		w.flushBoundary()
	}()

	w.exec.execute(tr)
}

// flushBoundary applies buffered operations and resolves pending deletions.
func (w *World) flushBoundary() {
	w.queue.ProcessAll(w)
	w.mu.Lock()
	w.flushDeletes()
	w.mu.Unlock()
}

// flushDeletes deletes every marked entity not held alive by a finalizer, a
// pin, or a strong reference from outside the deletion set. The scan repeats
// until a fixpoint so that chains rooted at the deleted entities resolve in
// breadth-first waves.
func (w *World) flushDeletes() {
	for {
		progressed := false
		for _, arch := range w.archetypes {
			if arch.pendingDeletes.IsEmpty() {
				continue
			}
			held := w.heldEntities(arch)
			var deletable, stale []RawEntity
			arch.pendingDeletes.Iterate(func(id uint32) bool {
				if !arch.live.Contains(id) {
					stale = append(stale, RawEntity(id))
					return true
				}
				if !held.Contains(id) {
					deletable = append(deletable, RawEntity(id))
				}
				return true
			})
			for _, id := range stale {
				arch.pendingDeletes.Remove(uint32(id))
			}
			for _, id := range deletable {
				w.deleteNow(arch, id)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

// heldEntities returns the pending-delete entities of arch that must stay
// alive: finalizer still set, explicitly pinned, or strongly referenced from
// a holder outside the deletion set.
func (w *World) heldEntities(arch *Archetype) *roaring.Bitmap {
	held := roaring.New()

	arch.pendingDeletes.Iterate(func(id uint32) bool {
		e := RawEntity(id)
		for _, meta := range arch.simples {
			if meta.finalizer && meta.hasAt(arch.simpleSlot(meta).store, e) {
				held.Add(id)
				break
			}
		}
		if arch.pinned[e] > 0 {
			held.Add(id)
		}
		return true
	})

	visitor := visitorFuncs{strong: func(h *Entity) {
		if h.arch == arch && arch.pendingDeletes.Contains(uint32(h.id)) {
			held.Add(uint32(h.id))
		}
	}}
	w.visitHolders(func(holderArch *Archetype, holder RawEntity, r Referrer) {
		if holderArch == arch && arch.pendingDeletes.Contains(uint32(holder)) {
			// references inside the deleted subgraph do not hold it alive
			return
		}
		r.VisitHandles(visitor)
	})
	return held
}

// visitHolders invokes fn for every handle-bearing component value and
// global in the world. Globals pass a nil holder archetype.
func (w *World) visitHolders(fn func(holderArch *Archetype, holder RawEntity, r Referrer)) {
	for _, arch := range w.archetypes {
		for _, meta := range arch.simples {
			meta.visitAll(arch.simpleSlot(meta).store, func(holder RawEntity, r Referrer) {
				fn(arch, holder, r)
			})
		}
		for _, meta := range arch.isotopes {
			fam := arch.isotopeFamily(meta)
			for _, d := range fam.discrims() {
				meta.visitAll(fam.slot(d).store, func(holder RawEntity, r Referrer) {
					fn(arch, holder, r)
				})
			}
		}
	}
	for _, g := range w.globals {
		g.visitValue(func(r Referrer) {
			fn(nil, 0, r)
		})
	}
}

func (w *World) deleteNow(arch *Archetype, id RawEntity) {
	for _, meta := range arch.simples {
		meta.clearAt(arch.simpleSlot(meta).store, id)
	}
	for _, meta := range arch.isotopes {
		fam := arch.isotopeFamily(meta)
		for _, d := range fam.discrims() {
			meta.clearAt(fam.slot(d).store, id)
		}
	}
	arch.live.Remove(uint32(id))
	arch.pendingDeletes.Remove(uint32(id))
	delete(arch.pinned, id)
	arch.alloc.free(id)
}

// Compact defragments an archetype between cycles: entities with the highest
// IDs move into recycled gaps and every outstanding handle is rewritten
// through the Referrer protocol. Raw IDs are stable within a cycle; only
// equality on handles survives compaction.
func (w *World) Compact(arch *Archetype) {
	w.requireOffline("compact")
	w.mu.Lock()
	defer w.mu.Unlock()

	for !arch.live.IsEmpty() {
		from := RawEntity(arch.live.Maximum())
		to := arch.alloc.allocate()
		if to >= from {
			arch.alloc.free(to)
			return
		}
		w.moveEntity(arch, from, to)
	}
}

func (w *World) moveEntity(arch *Archetype, from, to RawEntity) {
	for _, meta := range arch.simples {
		meta.moveEntity(arch.simpleSlot(meta).store, from, to)
	}
	for _, meta := range arch.isotopes {
		fam := arch.isotopeFamily(meta)
		for _, d := range fam.discrims() {
			meta.moveEntity(fam.slot(d).store, from, to)
		}
	}

	arch.live.Remove(uint32(from))
	arch.live.Add(uint32(to))
	if n, ok := arch.pinned[from]; ok {
		arch.pinned[to] = n
		delete(arch.pinned, from)
	}
	if arch.pendingDeletes.Contains(uint32(from)) {
		arch.pendingDeletes.Remove(uint32(from))
		arch.pendingDeletes.Add(uint32(to))
	}
	arch.alloc.free(from)

	rewrite := visitorFuncs{
		strong: func(h *Entity) {
			if h.arch == arch && h.id == from {
				h.id = to
			}
		},
		weak: func(h *Weak) {
			if h.arch == arch && h.id == from {
				h.id = to
			}
		},
	}
	w.visitHolders(func(_ *Archetype, _ RawEntity, r Referrer) {
		r.VisitHandles(rewrite)
	})
}

// Offline returns a write handle bypassing the locking discipline, for use
// outside any cycle.
func (t *Simple[C]) Offline(w *World) WriteSimple[C] {
	w.requireOffline("component access")
	return newWriteSimple[C](t.meta, t.meta.arch.simpleSlot(t.meta).store)
}

// OfflineIso returns a full-access isotope write handle bypassing the
// locking discipline, for use outside any cycle.
func (t *Isotope[C]) OfflineIso(w *World) WriteIsotope[C] {
	w.requireOffline("component access")
	fam := t.meta.arch.isotopeFamily(t.meta)
	stores := make(map[Discrim]componentStorage[C])
	for _, d := range fam.discrims() {
		stores[d] = fam.slot(d).store.(componentStorage[C])
	}
	return WriteIsotope[C]{
		ReadIsotope: ReadIsotope[C]{
			arch:   t.meta.arch,
			name:   t.meta.name,
			must:   t.meta.must,
			auto:   t.meta.autoInit,
			stores: stores,
		},
		create: func(d Discrim) componentStorage[C] {
			return fam.slotOrCreate(d).store.(componentStorage[C])
		},
	}
}
