package foreman

// componentStorage is the contract shared by storage backends: a mapping
// from RawEntity to a component value.
//
// A storage never fabricates a value: get returns nil for entities whose
// component was never set.
type componentStorage[C any] interface {
	// get returns a pointer to the stored component, or nil.
	get(e RawEntity) *C

	// set overwrites the slot. A nil value clears it. The previous value,
	// if any, is returned by copy.
	set(e RawEntity, value *C) *C

	// iterate yields every set slot in ascending entity order.
	iterate(yield func(RawEntity, *C) bool)

	// splitAt partitions the storage into two disjoint views covering IDs
	// below and at-or-above e. Mutable access through one view never
	// aliases the other.
	splitAt(e RawEntity) (componentStorage[C], componentStorage[C])
}

// chunkedStorage is offered by backends that store components densely.
type chunkedStorage[C any] interface {
	componentStorage[C]

	// chunks yields maximal contiguous runs of set slots as slices.
	chunks(yield func(Chunk, []C) bool)

	// chunkSlice returns the slice backing one chunk. Every ID in the
	// chunk must have the component set.
	chunkSlice(ch Chunk) []C
}
