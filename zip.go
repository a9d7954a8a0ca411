package foreman

import "github.com/TheBitDrifter/bark"

// Acc is a per-entity accessor used to compose zipped iteration. Accessors
// are produced by the Access/TryAccess family on read and write handles.
type Acc[V any] struct {
	arch  *Archetype
	fetch func(RawEntity) V
}

func zipArch(archs ...*Archetype) *Archetype {
	for _, a := range archs[1:] {
		if a != archs[0] {
			panic(bark.AddTrace(SchedulerInvariantError{
				Detail: "zipped accessors span archetypes " + archs[0].name + " and " + a.name,
			}))
		}
	}
	return archs[0]
}

// zipIterate walks the archetype's live entities within [lo, hi), ascending.
// hi == 0 means unbounded.
func zipIterate(arch *Archetype, lo, hi RawEntity, fn func(RawEntity) bool) {
	arch.live.Iterate(func(id uint32) bool {
		e := RawEntity(id)
		if e < lo {
			return true
		}
		if hi != 0 && e >= hi {
			return false
		}
		return fn(e)
	})
}

// Zipped2 iterates two component accessors over the entities of one
// archetype, yielding per-entity tuples.
type Zipped2[V1, V2 any] struct {
	arch   *Archetype
	lo, hi RawEntity
	a1     Acc[V1]
	a2     Acc[V2]
}

// Zip2 composes two accessors. The accessors must target the same archetype.
func Zip2[V1, V2 any](a1 Acc[V1], a2 Acc[V2]) *Zipped2[V1, V2] {
	return &Zipped2[V1, V2]{arch: zipArch(a1.arch, a2.arch), lo: MinEntity, a1: a1, a2: a2}
}

// Each calls fn for every live entity in the zip's range, ascending.
func (z *Zipped2[V1, V2]) Each(fn func(RawEntity, V1, V2)) {
	zipIterate(z.arch, z.lo, z.hi, func(e RawEntity) bool {
		fn(e, z.a1.fetch(e), z.a2.fetch(e))
		return true
	})
}

// SplitAt partitions the zip into two zips over entities below and
// at-or-above the offset, covering disjoint state.
func (z *Zipped2[V1, V2]) SplitAt(offset RawEntity) (*Zipped2[V1, V2], *Zipped2[V1, V2]) {
	left, right := *z, *z
	left.hi = offset
	right.lo = offset
	return &left, &right
}

// Zipped3 iterates three component accessors over the entities of one
// archetype.
type Zipped3[V1, V2, V3 any] struct {
	arch   *Archetype
	lo, hi RawEntity
	a1     Acc[V1]
	a2     Acc[V2]
	a3     Acc[V3]
}

// Zip3 composes three accessors targeting the same archetype.
func Zip3[V1, V2, V3 any](a1 Acc[V1], a2 Acc[V2], a3 Acc[V3]) *Zipped3[V1, V2, V3] {
	return &Zipped3[V1, V2, V3]{
		arch: zipArch(a1.arch, a2.arch, a3.arch), lo: MinEntity, a1: a1, a2: a2, a3: a3,
	}
}

// Each calls fn for every live entity in the zip's range, ascending.
func (z *Zipped3[V1, V2, V3]) Each(fn func(RawEntity, V1, V2, V3)) {
	zipIterate(z.arch, z.lo, z.hi, func(e RawEntity) bool {
		fn(e, z.a1.fetch(e), z.a2.fetch(e), z.a3.fetch(e))
		return true
	})
}

// SplitAt partitions the zip into two zips covering disjoint state.
func (z *Zipped3[V1, V2, V3]) SplitAt(offset RawEntity) (*Zipped3[V1, V2, V3], *Zipped3[V1, V2, V3]) {
	left, right := *z, *z
	left.hi = offset
	right.lo = offset
	return &left, &right
}

// Zipped4 iterates four component accessors over the entities of one
// archetype. Wider compositions should nest zips or restructure into
// several systems; four is the supported arity.
type Zipped4[V1, V2, V3, V4 any] struct {
	arch   *Archetype
	lo, hi RawEntity
	a1     Acc[V1]
	a2     Acc[V2]
	a3     Acc[V3]
	a4     Acc[V4]
}

// Zip4 composes four accessors targeting the same archetype.
func Zip4[V1, V2, V3, V4 any](a1 Acc[V1], a2 Acc[V2], a3 Acc[V3], a4 Acc[V4]) *Zipped4[V1, V2, V3, V4] {
	return &Zipped4[V1, V2, V3, V4]{
		arch: zipArch(a1.arch, a2.arch, a3.arch, a4.arch), lo: MinEntity,
		a1: a1, a2: a2, a3: a3, a4: a4,
	}
}

// Each calls fn for every live entity in the zip's range, ascending.
func (z *Zipped4[V1, V2, V3, V4]) Each(fn func(RawEntity, V1, V2, V3, V4)) {
	zipIterate(z.arch, z.lo, z.hi, func(e RawEntity) bool {
		fn(e, z.a1.fetch(e), z.a2.fetch(e), z.a3.fetch(e), z.a4.fetch(e))
		return true
	})
}

// SplitAt partitions the zip into two zips covering disjoint state.
func (z *Zipped4[V1, V2, V3, V4]) SplitAt(offset RawEntity) (*Zipped4[V1, V2, V3, V4], *Zipped4[V1, V2, V3, V4]) {
	left, right := *z, *z
	left.hi = offset
	right.lo = offset
	return &left, &right
}
