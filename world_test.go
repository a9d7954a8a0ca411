package foreman

import "testing"

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Current, Max int
}

type Lifeline struct {
	Countdown int
}

type Bond struct {
	Other Entity
}

func (b *Bond) VisitHandles(v Visitor) {
	v.VisitStrong(&b.Other)
}

func TestCreateRoundTrip(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	health := FactoryNewSimple[Health](arch, WithStorage(SparseStorage))
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{X: 1, Y: 2})
	InsertSimple(payload, health, Health{Current: 10, Max: 10})
	e := world.Create(arch, payload)

	if !e.Valid() {
		t.Fatal("created entity handle is invalid")
	}
	if got := *position.Offline(world).Get(e); got != (Position{X: 1, Y: 2}) {
		t.Errorf("position = %+v, want {1 2}", got)
	}
	if got, ok := health.Offline(world).TryGet(e); !ok || got.Current != 10 {
		t.Errorf("health = %v, %v, want {10 10}, true", got, ok)
	}

	bare := Factory.NewComponentMap(arch)
	InsertSimple(bare, position, Position{})
	other := world.Create(arch, bare)
	if _, ok := health.Offline(world).TryGet(other); ok {
		t.Error("optional component present on an entity that never received it")
	}
}

func TestSetNilThenReset(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	health := FactoryNewSimple[Health](arch)
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, health, Health{Current: 5, Max: 9})
	e := world.Create(arch, payload)

	h := health.Offline(world)
	h.Set(e, nil)
	if _, ok := h.TryGet(e); ok {
		t.Error("TryGet after Set(nil) reports present")
	}
	h.Set(e, &Health{Current: 7, Max: 9})
	if got, ok := h.TryGet(e); !ok || got.Current != 7 {
		t.Errorf("TryGet after re-set = %v, %v, want {7 9}, true", got, ok)
	}
}

func TestRequiredRemovalPanics(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{})
	e := world.Create(arch, payload)

	defer func() {
		if recover() == nil {
			t.Error("removing a required component did not panic")
		}
	}()
	position.Offline(world).Set(e, nil)
}

func TestMissingRequiredPanics(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	FactoryNewSimple[Position](arch, WithPresence(Required))
	world := builder.Build()

	defer func() {
		if _, ok := recover().(MissingComponentError); !ok {
			t.Error("creating without a required component did not panic with MissingComponentError")
		}
	}()
	world.Create(arch, Factory.NewComponentMap(arch))
}

func TestAutoInitDependencyOrder(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	health := FactoryNewSimple[Health](arch, WithPresence(Required))
	position := FactoryNewSimple[Position](arch,
		WithPresence(Required),
		WithInit(health, func(h *Health) Position { return Position{X: float64(h.Current)} }),
	)
	// depends on another auto-initialized component
	lifeline := FactoryNewSimple[Lifeline](arch,
		WithPresence(Required),
		WithInit(position, func(p *Position) Lifeline { return Lifeline{Countdown: int(p.X) * 2} }),
	)
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, health, Health{Current: 3, Max: 8})
	e := world.Create(arch, payload)

	if got := position.Offline(world).Get(e); got.X != 3 {
		t.Errorf("auto-initialized position.X = %v, want 3", got.X)
	}
	if got := lifeline.Offline(world).Get(e); got.Countdown != 6 {
		t.Errorf("auto-initialized lifeline.Countdown = %v, want 6", got.Countdown)
	}
}

func TestAutoInitMissingDepPanics(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	health := FactoryNewSimple[Health](arch)
	FactoryNewSimple[Position](arch,
		WithPresence(Required),
		WithInit(health, func(h *Health) Position { return Position{} }),
	)
	world := builder.Build()

	defer func() {
		if _, ok := recover().(MissingInitDepError); !ok {
			t.Error("auto-init with a missing dependency did not panic with MissingInitDepError")
		}
	}()
	world.Create(arch, Factory.NewComponentMap(arch))
}

func TestDuplicateInsertPanics(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch)
	builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{})

	defer func() {
		if recover() == nil {
			t.Error("duplicate payload insert did not panic")
		}
	}()
	InsertSimple(payload, position, Position{})
}

func TestFinalizerMustBeOptional(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")

	defer func() {
		if _, ok := recover().(FinalizerPresenceError); !ok {
			t.Error("required finalizer declaration did not panic with FinalizerPresenceError")
		}
	}()
	FactoryNewSimple[Lifeline](arch, WithPresence(Required), AsFinalizer())
}

func TestDuplicateSystemPanics(t *testing.T) {
	builder := Factory.NewWorld()
	builder.Schedule(NewSystem("tick", func(*SystemContext) {}))

	defer func() {
		if _, ok := recover().(DuplicateSystemError); !ok {
			t.Error("duplicate system registration did not panic with DuplicateSystemError")
		}
	}()
	builder.Schedule(NewSystem("tick", func(*SystemContext) {}))
}

func TestIsotopeRoundTrip(t *testing.T) {
	const (
		crops Discrim = iota
		food
	)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Node")
	volume := FactoryNewIsotope[int](arch)
	world := builder.Build()

	first := Factory.NewComponentMap(arch)
	InsertIsotope(first, volume, crops, 50)
	a := world.Create(arch, first)

	second := Factory.NewComponentMap(arch)
	InsertIsotope(second, volume, food, 100)
	b := world.Create(arch, second)

	vol := volume.OfflineIso(world)
	gotA := map[Discrim]int{}
	for d, v := range vol.GetAll(a) {
		gotA[d] = *v
	}
	if len(gotA) != 1 || gotA[crops] != 50 {
		t.Errorf("GetAll(a) = %v, want {crops: 50}", gotA)
	}
	gotB := map[Discrim]int{}
	for d, v := range vol.GetAll(b) {
		gotB[d] = *v
	}
	if len(gotB) != 1 || gotB[food] != 100 {
		t.Errorf("GetAll(b) = %v, want {food: 100}", gotB)
	}

	if _, ok := vol.TryGet(a, food); ok {
		t.Error("TryGet(a, food) reports present")
	}
}

func TestDeleteDeferredByFinalizer(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	lifeline := FactoryNewSimple[Lifeline](arch, AsFinalizer())
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{})
	InsertSimple(payload, lifeline, Lifeline{Countdown: 1})
	e := world.Create(arch, payload)

	world.Delete(e)
	if !world.Alive(e, arch) {
		t.Fatal("entity with a set finalizer was deleted")
	}

	lifeline.Offline(world).Set(e, nil)
	world.Execute(NoopTracer{})
	if world.Alive(e, arch) {
		t.Error("entity survived after its finalizer was removed")
	}
}

func TestDeleteDeferredByStrongReference(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	bond := FactoryNewSimple[Bond](arch)
	world := builder.Build()

	newActor := func() Entity {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, position, Position{})
		return world.Create(arch, payload)
	}
	victim := newActor()
	holder := newActor()
	bond.Offline(world).Set(holder, &Bond{Other: victim})

	world.Delete(victim)
	if !world.Alive(victim, arch) {
		t.Fatal("strongly referenced entity was deleted")
	}

	bond.Offline(world).Set(holder, nil)
	world.Execute(NoopTracer{})
	if world.Alive(victim, arch) {
		t.Error("entity survived after the referencing component was removed")
	}
}

func TestDeleteSubgraphIgnoresInternalReferences(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	bond := FactoryNewSimple[Bond](arch)
	world := builder.Build()

	newActor := func() Entity {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, position, Position{})
		return world.Create(arch, payload)
	}
	a := newActor()
	b := newActor()
	bond.Offline(world).Set(a, &Bond{Other: b})
	bond.Offline(world).Set(b, &Bond{Other: a})

	world.Delete(a)
	world.Delete(b)
	world.Execute(NoopTracer{})

	if world.Alive(a, arch) || world.Alive(b, arch) {
		t.Error("mutually referencing entities deleted together stayed alive")
	}
}

func TestPinDefersDeletion(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{})
	e := world.Create(arch, payload)

	world.Pin(e)
	world.Delete(e)
	if !world.Alive(e, arch) {
		t.Fatal("pinned entity was deleted")
	}

	world.Unpin(e)
	world.Execute(NoopTracer{})
	if world.Alive(e, arch) {
		t.Error("entity survived after its pin was released")
	}
}

func TestCompactRenumbersAndRewritesHandles(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))
	bond := FactoryNewSimple[Bond](arch)
	world := builder.Build()

	entities := make([]Entity, 5)
	for i := range entities {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, position, Position{X: float64(i + 1)})
		entities[i] = world.Create(arch, payload)
	}
	// entity 1 references entity 5, which compaction will renumber
	bond.Offline(world).Set(entities[0], &Bond{Other: entities[4]})

	world.Delete(entities[1])
	world.Delete(entities[3])
	world.Execute(NoopTracer{})

	world.Compact(arch)

	if got := arch.live.GetCardinality(); got != 3 {
		t.Fatalf("live entities after compact = %d, want 3", got)
	}
	if max := RawEntity(arch.live.Maximum()); max != 3 {
		t.Errorf("max live ID after compact = %d, want 3", max)
	}

	moved, _ := bond.Offline(world).TryGet(entities[0])
	if moved == nil {
		t.Fatal("bond component lost during compaction")
	}
	if moved.Other.Raw() != 2 {
		t.Errorf("rewritten handle = %d, want 2", moved.Other.Raw())
	}
	if got := position.Offline(world).Get(moved.Other); got.X != 5 {
		t.Errorf("component did not travel with the renumbered entity: X = %v, want 5", got.X)
	}
}
