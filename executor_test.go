package foreman

import (
	"strings"
	"testing"
	"time"
)

func withWorkers(t *testing.T, n int) {
	t.Helper()
	prev := Config.workerCount
	Config.SetWorkerCount(n)
	t.Cleanup(func() { Config.SetWorkerCount(prev) })
}

// overlaps reports whether the runs of two systems interleave anywhere in
// the event sequence.
func overlaps(events []string, a, b string) bool {
	running := map[string]bool{}
	for _, ev := range events {
		switch {
		case ev == "start_run("+a+")":
			if running[b] {
				return true
			}
			running[a] = true
		case ev == "start_run("+b+")":
			if running[a] {
				return true
			}
			running[b] = true
		case ev == "end_run("+a+")":
			running[a] = false
		case ev == "end_run("+b+")":
			running[b] = false
		}
	}
	return false
}

func TestExclusiveSystemsNeverOverlap(t *testing.T) {
	withWorkers(t, 3)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))

	slowWriter := func(name string) *SystemSpec {
		return NewSystem(name, func(ctx *SystemContext) {
			pos := position.Write(ctx)
			for _, p := range pos.Iter() {
				p.X++
			}
			time.Sleep(time.Millisecond)
		}, Writes(position))
	}
	builder.Schedule(slowWriter("writerA"))
	builder.Schedule(slowWriter("writerB"))
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertSimple(payload, position, Position{})
	world.Create(arch, payload)

	for cycle := 0; cycle < 20; cycle++ {
		tr := &eventTracer{}
		world.Execute(tr)
		if overlaps(tr.snapshot(), "writerA", "writerB") {
			t.Fatalf("cycle %d: excluded systems ran concurrently: %v", cycle, tr.snapshot())
		}
	}
}

func TestOrderingThroughPartition(t *testing.T) {
	withWorkers(t, 2)

	builder := Factory.NewWorld()
	builder.Schedule(NewSystem("producer", func(*SystemContext) {
		time.Sleep(time.Millisecond)
	}, Before("sync")))
	builder.Schedule(NewSystem("consumer", func(*SystemContext) {}, After("sync")))
	world := builder.Build()

	for cycle := 0; cycle < 10; cycle++ {
		tr := &eventTracer{}
		world.Execute(tr)

		endA := tr.index(t, "end_run(producer)")
		par := tr.index(t, "partition(sync)")
		startB := tr.index(t, "start_run(consumer)")
		if !(endA < par && par < startB) {
			t.Fatalf("cycle %d: want end_run(producer) < partition(sync) < start_run(consumer), got %v",
				cycle, tr.snapshot())
		}
	}
}

func TestUnsendableRunsOnMainThread(t *testing.T) {
	withWorkers(t, 2)

	type Canvas struct {
		Draws int
	}

	builder := Factory.NewWorld()
	canvas := FactoryNewGlobal(builder, Canvas{}, UnsendableGlobal())

	var observed Thread
	builder.Schedule(NewSystem("render", func(ctx *SystemContext) {
		observed = ctx.Thread()
		canvas.Write(ctx).Draws++
	}, Unsendable(), WritesGlobal(canvas)))
	world := builder.Build()

	world.Execute(NoopTracer{})

	if observed != ThreadMain {
		t.Errorf("unsendable system ran on %v, want main", observed)
	}
	if got := canvas.Get(world).Draws; got != 1 {
		t.Errorf("canvas.Draws = %d, want 1", got)
	}
}

func TestSendableSystemRequestingUnsendableGlobalPanics(t *testing.T) {
	builder := Factory.NewWorld()
	type Canvas struct{ Draws int }
	canvas := FactoryNewGlobal(builder, Canvas{}, UnsendableGlobal())
	builder.Schedule(NewSystem("sneaky", func(*SystemContext) {}, ReadsGlobal(canvas)))

	defer func() {
		if _, ok := recover().(UnsendableGlobalError); !ok {
			t.Error("Build did not panic with UnsendableGlobalError")
		}
	}()
	builder.Build()
}

func TestPanicInSystemAbortsCycle(t *testing.T) {
	withWorkers(t, 2)

	builder := Factory.NewWorld()
	builder.Schedule(NewSystem("bomb", func(*SystemContext) {
		panic("boom")
	}))
	world := builder.Build()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Execute did not propagate the system panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "boom") {
			t.Errorf("propagated panic = %v, want the original value", r)
		}
	}()
	world.Execute(NoopTracer{})
}

func TestZeroSystemCycleCompletes(t *testing.T) {
	withWorkers(t, 2)

	world := Factory.NewWorld().Build()
	tr := &eventTracer{}
	world.Execute(tr)

	events := tr.snapshot()
	if len(events) == 0 || events[0] != "start_cycle" || events[len(events)-1] != "end_cycle" {
		t.Errorf("zero-system cycle events = %v, want start_cycle .. end_cycle", events)
	}
}

func TestBufferedCreationVisibleAtBoundary(t *testing.T) {
	withWorkers(t, 1)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Actor")
	position := FactoryNewSimple[Position](arch, WithPresence(Required))

	var seenDuringCycle uint64
	builder.Schedule(NewSystem("spawner", func(ctx *SystemContext) {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, position, Position{})
		ctx.World().Create(arch, payload)
		seenDuringCycle = arch.live.GetCardinality()
	}, Reads(position)))
	world := builder.Build()

	world.Execute(NoopTracer{})

	if seenDuringCycle != 0 {
		t.Errorf("entity visible during the creating cycle: live = %d, want 0", seenDuringCycle)
	}
	if got := arch.live.GetCardinality(); got != 1 {
		t.Errorf("entity not visible after the cycle: live = %d, want 1", got)
	}
}

func TestEmptyPartialIsotopeRequest(t *testing.T) {
	withWorkers(t, 1)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Node")
	volume := FactoryNewIsotope[int](arch)

	iterated := 0
	builder.Schedule(NewSystem("census", func(ctx *SystemContext) {
		vol := volume.ReadIso(ctx)
		for range vol.GetAll(RawEntity(1)) {
			iterated++
		}
	}, ReadsIsotopeKeys(volume)))
	world := builder.Build()

	payload := Factory.NewComponentMap(arch)
	InsertIsotope(payload, volume, 0, 42)
	world.Create(arch, payload)

	world.Execute(NoopTracer{})

	if iterated != 0 {
		t.Errorf("empty partial request iterated %d members, want 0", iterated)
	}
}

func TestIsotopeSystemFlow(t *testing.T) {
	withWorkers(t, 2)

	const (
		crops Discrim = iota
		food
	)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Node")
	volume := FactoryNewIsotope[int](arch)

	collected := make(map[RawEntity]map[Discrim]int)
	builder.Schedule(NewSystem("census", func(ctx *SystemContext) {
		vol := volume.ReadIso(ctx)
		arch.live.Iterate(func(id uint32) bool {
			e := RawEntity(id)
			got := make(map[Discrim]int)
			for d, v := range vol.GetAll(e) {
				got[d] = *v
			}
			collected[e] = got
			return true
		})
	}, ReadsIsotope(volume)))
	world := builder.Build()

	first := Factory.NewComponentMap(arch)
	InsertIsotope(first, volume, crops, 50)
	a := world.Create(arch, first)

	second := Factory.NewComponentMap(arch)
	InsertIsotope(second, volume, food, 100)
	b := world.Create(arch, second)

	world.Execute(NoopTracer{})

	if got := collected[a.Raw()]; len(got) != 1 || got[crops] != 50 {
		t.Errorf("entity a volumes = %v, want {crops: 50}", got)
	}
	if got := collected[b.Raw()]; len(got) != 1 || got[food] != 100 {
		t.Errorf("entity b volumes = %v, want {food: 100}", got)
	}
}
