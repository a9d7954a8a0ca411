package foreman_test

import (
	"fmt"

	"github.com/TheBitDrifter/foreman"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

func Example() {
	builder := foreman.Factory.NewWorld()
	arch := builder.NewArchetype("Particle")

	position := foreman.FactoryNewSimple[Position](arch, foreman.WithPresence(foreman.Required))
	velocity := foreman.FactoryNewSimple[Velocity](arch, foreman.WithPresence(foreman.Required))

	builder.Schedule(foreman.NewSystem("integrate", func(ctx *foreman.SystemContext) {
		pos := position.Write(ctx)
		vel := velocity.Read(ctx)
		foreman.Zip2(pos.AccessMut(), vel.Access()).Each(func(_ foreman.RawEntity, p *Position, v *Velocity) {
			p.X += v.X
			p.Y += v.Y
		})
	}, foreman.Writes(position), foreman.Reads(velocity)))

	world := builder.Build()

	for i := 0; i < 3; i++ {
		payload := foreman.Factory.NewComponentMap(arch)
		foreman.InsertSimple(payload, position, Position{X: float64(i)})
		foreman.InsertSimple(payload, velocity, Velocity{X: 10, Y: 1})
		world.Create(arch, payload)
	}

	world.Execute(foreman.NoopTracer{})

	for e, p := range position.Offline(world).Iter() {
		fmt.Printf("entity %d at (%v, %v)\n", e, p.X, p.Y)
	}

	// Output:
	// entity 1 at (10, 1)
	// entity 2 at (11, 1)
	// entity 3 at (12, 1)
}
