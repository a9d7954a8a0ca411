package foreman

import "testing"

type PositionArray [3]float64

type VelocityArray [3]float64

func TestZippedComponentWiseAdd(t *testing.T) {
	withWorkers(t, 2)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Particle")
	positions := FactoryNewSimple[PositionArray](arch, WithPresence(Required))
	velocities := FactoryNewSimple[VelocityArray](arch, WithPresence(Required))

	builder.Schedule(NewSystem("integrate", func(ctx *SystemContext) {
		pos := positions.Write(ctx)
		vel := velocities.Read(ctx)
		Zip2(pos.AccessMut(), vel.Access()).Each(func(_ RawEntity, p *PositionArray, v *VelocityArray) {
			for i := range p {
				p[i] += v[i]
			}
		})
	}, Writes(positions), Reads(velocities)))
	world := builder.Build()

	const count = 16
	var created []Entity
	for i := 0; i < count; i++ {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, positions, PositionArray{float64(i), float64(i * 2), float64(i * 3)})
		InsertSimple(payload, velocities, VelocityArray{1, 2, 3})
		created = append(created, world.Create(arch, payload))
	}

	world.Execute(NoopTracer{})

	pos := positions.Offline(world)
	for i, e := range created {
		got := *pos.Get(e)
		want := PositionArray{float64(i) + 1, float64(i*2) + 2, float64(i*3) + 3}
		if got != want {
			t.Errorf("entity %d position = %v, want %v", i, got, want)
		}
	}
}

func TestZipSplitCoversDisjointHalves(t *testing.T) {
	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Particle")
	positions := FactoryNewSimple[PositionArray](arch, WithPresence(Required))
	world := builder.Build()

	for i := 0; i < 8; i++ {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, positions, PositionArray{})
		world.Create(arch, payload)
	}

	pos := positions.Offline(world)
	zip := Zip2(pos.TryAccess(), pos.TryAccess())
	left, right := zip.SplitAt(5)

	var leftIDs, rightIDs []RawEntity
	left.Each(func(e RawEntity, _, _ *PositionArray) { leftIDs = append(leftIDs, e) })
	right.Each(func(e RawEntity, _, _ *PositionArray) { rightIDs = append(rightIDs, e) })

	if len(leftIDs) != 4 || leftIDs[0] != 1 || leftIDs[3] != 4 {
		t.Errorf("left half = %v, want 1..4", leftIDs)
	}
	if len(rightIDs) != 4 || rightIDs[0] != 5 || rightIDs[3] != 8 {
		t.Errorf("right half = %v, want 5..8", rightIDs)
	}
}

func TestChunkedAccessOnRequiredDense(t *testing.T) {
	withWorkers(t, 1)

	builder := Factory.NewWorld()
	arch := builder.NewArchetype("Particle")
	positions := FactoryNewSimple[PositionArray](arch, WithPresence(Required))
	velocities := FactoryNewSimple[VelocityArray](arch, WithPresence(Required))

	builder.Schedule(NewSystem("integrate", func(ctx *SystemContext) {
		posChunks := positions.Write(ctx).AccessChunkMut()
		vel := velocities.Read(ctx).AccessChunk()
		posChunks.Chunks(func(ch Chunk, ps []PositionArray) bool {
			vs := vel.GetChunk(ch)
			for i := range ps {
				for j := range ps[i] {
					ps[i][j] += vs[i][j]
				}
			}
			return true
		})
	}, Writes(positions), Reads(velocities)))
	world := builder.Build()

	const count = 16
	for i := 0; i < count; i++ {
		payload := Factory.NewComponentMap(arch)
		InsertSimple(payload, positions, PositionArray{float64(i), 0, 0})
		InsertSimple(payload, velocities, VelocityArray{0.5, 0, 0})
		world.Create(arch, payload)
	}

	world.Execute(NoopTracer{})

	chunks := 0
	positions.Offline(world).AccessChunk().Chunks(func(ch Chunk, ps []PositionArray) bool {
		chunks++
		if ch.Len() != count {
			t.Errorf("chunk covers %d entities, want one contiguous run of %d", ch.Len(), count)
		}
		for i, p := range ps {
			if p[0] != float64(i)+0.5 {
				t.Errorf("entity %d position = %v, want %v", i+1, p[0], float64(i)+0.5)
			}
		}
		return true
	})
	if chunks != 1 {
		t.Errorf("required dense storage yielded %d chunks over contiguous entities, want 1", chunks)
	}
}

func TestZipAcrossArchetypesPanics(t *testing.T) {
	builder := Factory.NewWorld()
	archA := builder.NewArchetype("A")
	archB := builder.NewArchetype("B")
	pa := FactoryNewSimple[PositionArray](archA, WithPresence(Required))
	pb := FactoryNewSimple[PositionArray](archB, WithPresence(Required))
	world := builder.Build()

	defer func() {
		if recover() == nil {
			t.Error("zipping accessors of different archetypes did not panic")
		}
	}()
	Zip2(pa.Offline(world).TryAccess(), pb.Offline(world).TryAccess())
}
