package foreman

// RawEntity is a dense nonzero identifier for an entity within its archetype.
// The zero value encodes "absent" in optional references.
type RawEntity uint32

// MinEntity is the smallest valid entity ID.
const MinEntity RawEntity = 1

// Ref is any reference to an entity: a strong Entity, a Weak handle, or a
// bare RawEntity obtained from iteration.
//
// Equality between handles is raw-ID equality. Ordering and hashing are
// deliberately not exposed: the world may renumber IDs during Compact, and
// only equality survives renumbering.
type Ref interface {
	Raw() RawEntity
}

// Entity is a strong, archetype-typed reference to an entity. Strong
// references reachable through the Referrer protocol (inside components and
// globals) participate in liveness: deletion is deferred until none remain
// outside the deleted subgraph. Handles held in plain variables are invisible
// to the runtime; use World.Pin for those.
type Entity struct {
	arch *Archetype
	id   RawEntity
}

// Raw returns the raw entity ID.
func (e Entity) Raw() RawEntity {
	return e.id
}

// Archetype returns the archetype this entity belongs to.
func (e Entity) Archetype() *Archetype {
	return e.arch
}

// Valid reports whether the handle refers to an entity at all.
func (e Entity) Valid() bool {
	return e.id != 0
}

// Weak downgrades the handle to a weak reference.
func (e Entity) Weak() Weak {
	return Weak{arch: e.arch, id: e.id}
}

// Weak refers to an entity by raw ID without participating in liveness.
type Weak struct {
	arch *Archetype
	id   RawEntity
}

// Raw returns the raw entity ID.
func (w Weak) Raw() RawEntity {
	return w.id
}

// Archetype returns the archetype this reference points into.
func (w Weak) Archetype() *Archetype {
	return w.arch
}

// Valid reports whether the reference refers to an entity at all.
func (w Weak) Valid() bool {
	return w.id != 0
}

// Raw implements Ref for bare IDs yielded by iteration.
func (r RawEntity) Raw() RawEntity {
	return r
}
