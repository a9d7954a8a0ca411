/*
Package foreman provides the scheduling and storage core for Entity-Component-System (ECS) engines.

Foreman dispatches systems -- stateless procedures that declare which components they
read and write -- across worker goroutines, pre-computing a conflict topology so that
no two systems ever touch the same mutable data concurrently. Component values live in
per-archetype storages behind reader-writer locks that the scheduler guarantees are
never contended.

Core Concepts:

  - Archetype: A tag partitioning the entity space; entities of different archetypes never share IDs.
  - Simple component: At most one value per entity.
  - Isotope component: A discriminant-indexed family of values per entity.
  - System: A procedure with declared resource intents, run once per cycle.
  - Partition: A named synchronization point between groups of systems.

Basic Usage:

	builder := foreman.Factory.NewWorld()
	arch := builder.NewArchetype("Bullet")

	position := foreman.FactoryNewSimple[Position](arch, foreman.WithPresence(foreman.Required))
	velocity := foreman.FactoryNewSimple[Velocity](arch, foreman.WithPresence(foreman.Required))

	builder.Schedule(foreman.NewSystem("motion", func(ctx *foreman.SystemContext) {
		pos := position.Write(ctx)
		vel := velocity.Read(ctx)
		foreman.Zip2(pos.AccessMut(), vel.Access()).Each(func(e foreman.RawEntity, p *Position, v *Velocity) {
			p.X += v.X
			p.Y += v.Y
		})
	}, foreman.Writes(position), foreman.Reads(velocity)))

	world := builder.Build()

	payload := foreman.Factory.NewComponentMap(arch)
	foreman.InsertSimple(payload, position, Position{X: 1})
	foreman.InsertSimple(payload, velocity, Velocity{X: 2})
	world.Create(arch, payload)

	world.Execute(foreman.NoopTracer{})

Foreman is the simulation substrate for the Bappa Framework but also works as a
standalone library.
*/
package foreman
