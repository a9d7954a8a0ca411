package foreman

// The Referrer protocol lets the runtime find every entity handle stored
// inside component and global values. Deletion uses it to compute the
// strong-reference closure; Compact uses it to rewrite IDs.
//
// Reference-counted sharing of handle-bearing values is deliberately
// unsupported: visitation must reach each handle exactly once, which shared
// ownership cannot guarantee.

// Visitor receives every entity handle contained in a value, with mutable
// access so that IDs can be rewritten in place.
type Visitor interface {
	VisitStrong(*Entity)
	VisitWeak(*Weak)
}

// Referrer is implemented by component and global types that transitively
// hold entity handles. Types that do not implement Referrer are treated as
// handle-free.
type Referrer interface {
	// VisitHandles calls the visitor for each contained handle exactly once.
	VisitHandles(v Visitor)
}

// VisitSlice propagates visitation to every element of a slice. Elements
// implement Referrer through their pointer, so handles are rewritten in place.
func VisitSlice[T any, P interface {
	*T
	Referrer
}](s []T, v Visitor) {
	for i := range s {
		P(&s[i]).VisitHandles(v)
	}
}

// VisitMap propagates visitation to every value of a map. Handles must not
// be used as map keys: rewriting a key in place is impossible.
func VisitMap[K comparable, T any, P interface {
	*T
	Referrer
}](m map[K]T, v Visitor) {
	for k := range m {
		val := m[k]
		P(&val).VisitHandles(v)
		m[k] = val
	}
}

// VisitPtr propagates visitation through an optional boxed value.
func VisitPtr[T any, P interface {
	*T
	Referrer
}](p *T, v Visitor) {
	if p != nil {
		P(p).VisitHandles(v)
	}
}

// visitorFuncs adapts two closures to the Visitor interface.
type visitorFuncs struct {
	strong func(*Entity)
	weak   func(*Weak)
}

func (f visitorFuncs) VisitStrong(e *Entity) {
	if f.strong != nil {
		f.strong(e)
	}
}

func (f visitorFuncs) VisitWeak(w *Weak) {
	if f.weak != nil {
		f.weak(w)
	}
}
