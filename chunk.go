package foreman

import "github.com/TheBitDrifter/bark"

// Chunk references a contiguous run of entities [From, To) in which every
// entity has the chunked component set. A chunk obtained from a Required
// dense storage covers a contiguous run of existing entities.
type Chunk struct {
	From, To RawEntity
}

// Len returns the number of entities covered by the chunk.
func (c Chunk) Len() int {
	return int(c.To - c.From)
}

// ChunkRead provides shared slice access to a densely stored component.
// The slices must not be written through.
type ChunkRead[C any] struct {
	name  string
	arch  string
	store chunkedStorage[C]
}

// Chunks yields every maximal contiguous run of set slots.
func (r ChunkRead[C]) Chunks(yield func(Chunk, []C) bool) {
	r.store.chunks(yield)
}

// GetChunk returns the slice covering the chunk.
func (r ChunkRead[C]) GetChunk(ch Chunk) []C {
	return r.store.chunkSlice(ch)
}

// ChunkWrite provides mutable slice access to a densely stored component.
type ChunkWrite[C any] struct {
	name  string
	arch  string
	store chunkedStorage[C]
}

// Chunks yields every maximal contiguous run of set slots mutably.
func (w ChunkWrite[C]) Chunks(yield func(Chunk, []C) bool) {
	w.store.chunks(yield)
}

// GetChunkMut returns the mutable slice covering the chunk.
func (w ChunkWrite[C]) GetChunkMut(ch Chunk) []C {
	return w.store.chunkSlice(ch)
}

// chunked asserts that a storage offers chunk access, panicking with the
// component name otherwise. Storages that cannot chunk fail loudly rather
// than degrading to element-wise iteration.
func chunked[C any](store componentStorage[C], arch, comp string) chunkedStorage[C] {
	ch, ok := store.(chunkedStorage[C])
	if !ok {
		panic(bark.AddTrace(UnchunkedStorageError{Archetype: arch, Component: comp}))
	}
	return ch
}
