package foreman

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// Archetype is a tag partitioning the entity space. Entities of different
// archetypes never share IDs nor storages. Archetypes are declared on a
// WorldBuilder and carry the component registry and runtime storages for
// their slice of the world.
type Archetype struct {
	id   uint32
	name string

	sealed bool

	simples  []*simpleMeta
	isotopes []*isotopeMeta

	// requiredMask marks the registry bits of Required simple components;
	// creation validates payloads against it.
	requiredMask mask.Mask

	alloc *ealloc
	live  *roaring.Bitmap

	// pendingDeletes marks entities deleted during or between cycles,
	// resolved at the next boundary.
	pendingDeletes *roaring.Bitmap

	simpleSlots  []*storageSlot
	isotopeSlots []*isotopeFamily

	// pinned counts explicit strong pins per entity; see World.Pin.
	pinned map[RawEntity]int
}

// Name returns the archetype's debug name.
func (a *Archetype) Name() string { return a.name }

func newArchetype(id uint32, name string) *Archetype {
	return &Archetype{
		id:             id,
		name:           name,
		alloc:          newEalloc(),
		live:           roaring.New(),
		pendingDeletes: roaring.New(),
		pinned:         make(map[RawEntity]int),
	}
}

func (a *Archetype) registerSimple(meta *simpleMeta) {
	if a.sealed {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "component " + meta.name + " declared after the world was built",
		}))
	}
	meta.id = componentID(len(a.simples))
	a.simples = append(a.simples, meta)
	a.simpleSlots = append(a.simpleSlots, &storageSlot{store: meta.newStorage()})
	if meta.presence == Required {
		a.requiredMask.Mark(uint32(meta.id))
	}
}

func (a *Archetype) registerIsotope(meta *isotopeMeta) {
	if a.sealed {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "component " + meta.name + " declared after the world was built",
		}))
	}
	meta.id = componentID(len(a.isotopes))
	a.isotopes = append(a.isotopes, meta)
	a.isotopeSlots = append(a.isotopeSlots, newIsotopeFamily(meta))
}

func (a *Archetype) simpleSlot(meta *simpleMeta) *storageSlot {
	return a.simpleSlots[meta.id]
}

func (a *Archetype) isotopeFamily(meta *isotopeMeta) *isotopeFamily {
	return a.isotopeSlots[meta.id]
}

// storageSlot pairs one storage with its reader-writer lock. The scheduler's
// exclusion graph guarantees that try-acquisition always succeeds for
// correctly declared systems; a failed try is a scheduler bug.
type storageSlot struct {
	mu    sync.RWMutex
	store any
}

func (s *storageSlot) tryRead(arch, comp string) func() {
	if !s.mu.TryRLock() {
		panic(bark.AddTrace(StorageLockError{Archetype: arch, Component: comp}))
	}
	return s.mu.RUnlock
}

func (s *storageSlot) tryWrite(arch, comp string) func() {
	if !s.mu.TryLock() {
		panic(bark.AddTrace(StorageLockError{Archetype: arch, Component: comp}))
	}
	return s.mu.Unlock
}

// isotopeFamily holds the discriminant-keyed storages of one isotope
// component. Each discriminant has its own slot and lock; the map itself is
// guarded separately because full-access writers create storages on demand.
type isotopeFamily struct {
	meta *isotopeMeta

	mu    sync.RWMutex
	slots map[Discrim]*storageSlot
}

func newIsotopeFamily(meta *isotopeMeta) *isotopeFamily {
	return &isotopeFamily{meta: meta, slots: make(map[Discrim]*storageSlot)}
}

// slot returns the storage slot for a discriminant, or nil.
func (f *isotopeFamily) slot(d Discrim) *storageSlot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.slots[d]
}

// slotOrCreate returns the storage slot for a discriminant, creating it on
// demand through the family factory.
func (f *isotopeFamily) slotOrCreate(d Discrim) *storageSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[d]
	if !ok {
		slot = &storageSlot{store: f.meta.newStorage()}
		f.slots[d] = slot
	}
	return slot
}

// discrims returns the discriminants present in the family, in ascending
// order.
func (f *isotopeFamily) discrims() []Discrim {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]Discrim, 0, len(f.slots))
	for d := range f.slots {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
