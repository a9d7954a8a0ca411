package foreman

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/TheBitDrifter/bark"
)

// Ensure the dense backend offers chunked access.
var _ chunkedStorage[int] = &denseStorage[int]{}

// denseStorage keeps a presence bitmap plus a parallel array of slots.
// Fast iteration and cheap chunked access; suited to components present on
// most entities and to Required components.
type denseStorage[C any] struct {
	present *roaring.Bitmap
	slots   []C
}

func newDenseStorage[C any]() *denseStorage[C] {
	return &denseStorage[C]{present: roaring.New()}
}

func (s *denseStorage[C]) get(e RawEntity) *C {
	if !s.present.Contains(uint32(e)) {
		return nil
	}
	return &s.slots[e-1]
}

func (s *denseStorage[C]) set(e RawEntity, value *C) *C {
	var prev *C
	if s.present.Contains(uint32(e)) {
		p := s.slots[e-1]
		prev = &p
	}
	if value == nil {
		if prev != nil {
			var zero C
			s.slots[e-1] = zero
			s.present.Remove(uint32(e))
		}
		return prev
	}
	if int(e) > len(s.slots) {
		grown := make([]C, e)
		copy(grown, s.slots)
		s.slots = grown
	}
	s.slots[e-1] = *value
	s.present.Add(uint32(e))
	return prev
}

func (s *denseStorage[C]) iterate(yield func(RawEntity, *C) bool) {
	s.present.Iterate(func(id uint32) bool {
		return yield(RawEntity(id), &s.slots[id-1])
	})
}

func (s *denseStorage[C]) splitAt(e RawEntity) (componentStorage[C], componentStorage[C]) {
	return &denseView[C]{s: s, lo: MinEntity, hi: e}, &denseView[C]{s: s, lo: e, hi: 0}
}

// runCount returns the number of set slots within [from, to].
func (s *denseStorage[C]) runCount(from, to RawEntity) uint64 {
	count := s.present.Rank(uint32(to))
	if from > MinEntity {
		count -= s.present.Rank(uint32(from - 1))
	}
	return count
}

func (s *denseStorage[C]) chunks(yield func(Chunk, []C) bool) {
	s.chunksWithin(MinEntity, 0, yield)
}

// chunksWithin yields runs restricted to [lo, hi). hi == 0 means unbounded.
func (s *denseStorage[C]) chunksWithin(lo, hi RawEntity, yield func(Chunk, []C) bool) {
	var run Chunk
	flush := func() bool {
		if run.From == 0 {
			return true
		}
		ch := run
		run = Chunk{}
		return yield(ch, s.slots[ch.From-1:ch.To-1])
	}

	it := s.present.Iterator()
	for it.HasNext() {
		id := RawEntity(it.Next())
		if id < lo {
			continue
		}
		if hi != 0 && id >= hi {
			break
		}
		switch {
		case run.From == 0:
			run = Chunk{From: id, To: id + 1}
		case id == run.To:
			run.To++
		default:
			if !flush() {
				return
			}
			run = Chunk{From: id, To: id + 1}
		}
	}
	flush()
}

func (s *denseStorage[C]) chunkSlice(ch Chunk) []C {
	if s.runCount(ch.From, ch.To-1) != uint64(ch.To-ch.From) {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "chunk covers an entity whose component is absent",
		}))
	}
	return s.slots[ch.From-1 : ch.To-1]
}

// denseView is one half of a split dense storage. hi == 0 means unbounded.
type denseView[C any] struct {
	s      *denseStorage[C]
	lo, hi RawEntity
}

func (v *denseView[C]) contains(e RawEntity) bool {
	return e >= v.lo && (v.hi == 0 || e < v.hi)
}

func (v *denseView[C]) checkBounds(e RawEntity) {
	if !v.contains(e) {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "access outside the bounds of a split storage view",
		}))
	}
}

func (v *denseView[C]) get(e RawEntity) *C {
	v.checkBounds(e)
	return v.s.get(e)
}

func (v *denseView[C]) set(e RawEntity, value *C) *C {
	v.checkBounds(e)
	return v.s.set(e, value)
}

func (v *denseView[C]) iterate(yield func(RawEntity, *C) bool) {
	v.s.present.Iterate(func(id uint32) bool {
		e := RawEntity(id)
		if e < v.lo {
			return true
		}
		if v.hi != 0 && e >= v.hi {
			return false
		}
		return yield(e, &v.s.slots[e-1])
	})
}

func (v *denseView[C]) splitAt(e RawEntity) (componentStorage[C], componentStorage[C]) {
	v.checkBounds(e)
	return &denseView[C]{s: v.s, lo: v.lo, hi: e}, &denseView[C]{s: v.s, lo: e, hi: v.hi}
}

func (v *denseView[C]) chunks(yield func(Chunk, []C) bool) {
	v.s.chunksWithin(v.lo, v.hi, yield)
}

func (v *denseView[C]) chunkSlice(ch Chunk) []C {
	v.checkBounds(ch.From)
	if v.hi != 0 && ch.To > v.hi {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "chunk crosses the bounds of a split storage view",
		}))
	}
	return v.s.chunkSlice(ch)
}
