package foreman

import (
	"github.com/TheBitDrifter/mask"
)

// mapKey identifies one entry of a creation payload. Simple components are
// keyed by type alone; isotope components additionally carry a discriminant.
type mapKey struct {
	comp    componentID
	discrim Discrim
	isotope bool
}

// ComponentMap is the entity-creation payload: an untyped collection of
// component values built before any storage is touched.
type ComponentMap struct {
	arch    *Archetype
	entries map[mapKey]any

	// given mirrors the simple entries as registry bits so that required
	// presence validates as a single mask containment check.
	given mask.Mask
}

func newComponentMap(arch *Archetype) *ComponentMap {
	return &ComponentMap{arch: arch, entries: make(map[mapKey]any)}
}

// Archetype returns the archetype this payload creates into.
func (m *ComponentMap) Archetype() *Archetype { return m.arch }

// Len returns the number of component values in the payload.
func (m *ComponentMap) Len() int { return len(m.entries) }

// InsertSimple adds a simple component value to the payload. Inserting the
// same component twice is an error.
func InsertSimple[C any](m *ComponentMap, t *Simple[C], value C) {
	m.setRawSimple(t.meta, &value)
}

// InsertIsotope adds one member of an isotope family to the payload.
// Inserting the same component and discriminant twice is an error.
func InsertIsotope[C any](m *ComponentMap, t *Isotope[C], d Discrim, value C) {
	key := mapKey{comp: t.meta.id, discrim: d, isotope: true}
	if _, dup := m.entries[key]; dup {
		panic(DuplicateInsertError{Component: t.meta.name})
	}
	m.entries[key] = &value
}

func (m *ComponentMap) setRawSimple(meta *simpleMeta, value any) {
	key := mapKey{comp: meta.id}
	if _, dup := m.entries[key]; dup {
		panic(DuplicateInsertError{Component: meta.name})
	}
	m.entries[key] = value
	m.given.Mark(uint32(meta.id))
}

func (m *ComponentMap) rawSimple(meta *simpleMeta) (any, bool) {
	val, ok := m.entries[mapKey{comp: meta.id}]
	return val, ok
}

func (m *ComponentMap) takeRawSimple(meta *simpleMeta) (any, bool) {
	key := mapKey{comp: meta.id}
	val, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return val, ok
}

func (m *ComponentMap) hasSimple(meta *simpleMeta) bool {
	_, ok := m.entries[mapKey{comp: meta.id}]
	return ok
}

// eachIsotope yields the isotope entries of the payload.
func (m *ComponentMap) eachIsotope(fn func(comp componentID, d Discrim, val any)) {
	for key, val := range m.entries {
		if key.isotope {
			fn(key.comp, key.discrim, val)
		}
	}
}

// resolveAutoInit runs the auto-init closures of components missing from the
// payload, in dependency order. A dependency cycle among initializers is a
// declaration bug and panics.
func (m *ComponentMap) resolveAutoInit() {
	const (
		unvisited = iota
		visiting
		done
	)
	states := make([]int, len(m.arch.simples))

	var resolve func(meta *simpleMeta)
	resolve = func(meta *simpleMeta) {
		switch states[meta.id] {
		case done:
			return
		case visiting:
			panic(InitCycleError{Archetype: m.arch.name, Component: meta.name})
		}
		states[meta.id] = visiting
		if !m.hasSimple(meta) && meta.autoPopulate != nil {
			for _, dep := range meta.initDeps {
				resolve(dep.simple())
			}
			meta.autoPopulate(m)
		}
		states[meta.id] = done
	}

	for _, meta := range m.arch.simples {
		resolve(meta)
	}
}

// validateRequired checks that every Required component is present after
// auto-init resolution.
func (m *ComponentMap) validateRequired() {
	if m.given.ContainsAll(m.arch.requiredMask) {
		return
	}
	for _, meta := range m.arch.simples {
		if meta.presence == Required && !m.hasSimple(meta) {
			panic(MissingComponentError{Archetype: m.arch.name, Component: meta.name})
		}
	}
}
