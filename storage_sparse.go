package foreman

import (
	"github.com/TheBitDrifter/bark"
	"github.com/google/btree"
)

var _ componentStorage[int] = &sparseStorage[int]{}

// sparseEntry is one slot of the sparse backend. Entries order by entity ID.
type sparseEntry[C any] struct {
	id    RawEntity
	value *C
}

func sparseLess[C any](a, b sparseEntry[C]) bool {
	return a.id < b.id
}

// sparseStorage keeps components in a balanced ordered tree. Cheap when few
// entities carry the component; chunked iteration is not offered.
type sparseStorage[C any] struct {
	tree *btree.BTreeG[sparseEntry[C]]
}

func newSparseStorage[C any]() *sparseStorage[C] {
	return &sparseStorage[C]{tree: btree.NewG(8, sparseLess[C])}
}

func (s *sparseStorage[C]) get(e RawEntity) *C {
	entry, ok := s.tree.Get(sparseEntry[C]{id: e})
	if !ok {
		return nil
	}
	return entry.value
}

func (s *sparseStorage[C]) set(e RawEntity, value *C) *C {
	if value == nil {
		prev, ok := s.tree.Delete(sparseEntry[C]{id: e})
		if !ok {
			return nil
		}
		return prev.value
	}
	held := *value
	prev, existed := s.tree.ReplaceOrInsert(sparseEntry[C]{id: e, value: &held})
	if !existed {
		return nil
	}
	return prev.value
}

func (s *sparseStorage[C]) iterate(yield func(RawEntity, *C) bool) {
	s.tree.Ascend(func(entry sparseEntry[C]) bool {
		return yield(entry.id, entry.value)
	})
}

func (s *sparseStorage[C]) splitAt(e RawEntity) (componentStorage[C], componentStorage[C]) {
	return &sparseView[C]{s: s, lo: MinEntity, hi: e}, &sparseView[C]{s: s, lo: e, hi: 0}
}

// sparseView is one half of a split sparse storage. hi == 0 means unbounded.
type sparseView[C any] struct {
	s      *sparseStorage[C]
	lo, hi RawEntity
}

func (v *sparseView[C]) checkBounds(e RawEntity) {
	if e < v.lo || (v.hi != 0 && e >= v.hi) {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "access outside the bounds of a split storage view",
		}))
	}
}

func (v *sparseView[C]) get(e RawEntity) *C {
	v.checkBounds(e)
	return v.s.get(e)
}

func (v *sparseView[C]) set(e RawEntity, value *C) *C {
	v.checkBounds(e)
	return v.s.set(e, value)
}

func (v *sparseView[C]) iterate(yield func(RawEntity, *C) bool) {
	v.s.tree.AscendGreaterOrEqual(sparseEntry[C]{id: v.lo}, func(entry sparseEntry[C]) bool {
		if v.hi != 0 && entry.id >= v.hi {
			return false
		}
		return yield(entry.id, entry.value)
	})
}

func (v *sparseView[C]) splitAt(e RawEntity) (componentStorage[C], componentStorage[C]) {
	v.checkBounds(e)
	return &sparseView[C]{s: v.s, lo: v.lo, hi: e}, &sparseView[C]{s: v.s, lo: e, hi: v.hi}
}
