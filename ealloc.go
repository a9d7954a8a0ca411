package foreman

import (
	"math"

	"github.com/TheBitDrifter/bark"
	"github.com/google/btree"
)

// ealloc issues and recycles entity IDs for one archetype.
//
// The gauge is the next never-used ID; freed IDs are kept in an ordered set
// and handed out again before the gauge advances.
type ealloc struct {
	gauge    RawEntity
	recycled *btree.BTreeG[RawEntity]
}

func newEalloc() *ealloc {
	return &ealloc{
		gauge:    MinEntity,
		recycled: btree.NewOrderedG[RawEntity](8),
	}
}

// allocate returns the smallest recycled ID, or advances the gauge.
func (a *ealloc) allocate() RawEntity {
	if id, ok := a.recycled.DeleteMin(); ok {
		return id
	}
	return a.pushGauge()
}

// allocateNear returns the recycled ID minimizing the distance to hint,
// preferring the smaller side on ties. Falls back to advancing the gauge.
func (a *ealloc) allocateNear(hint RawEntity) RawEntity {
	var left, right RawEntity
	var hasLeft, hasRight bool
	if hint > MinEntity {
		a.recycled.DescendLessOrEqual(hint-1, func(id RawEntity) bool {
			left, hasLeft = id, true
			return false
		})
	}
	a.recycled.AscendGreaterOrEqual(hint, func(id RawEntity) bool {
		right, hasRight = id, true
		return false
	})

	var selected RawEntity
	switch {
	case hasLeft && hasRight:
		if hint-left <= right-hint {
			selected = left
		} else {
			selected = right
		}
	case hasLeft:
		selected = left
	case hasRight:
		selected = right
	default:
		return a.pushGauge()
	}

	if _, removed := a.recycled.Delete(selected); !removed {
		panic(bark.AddTrace(AllocatorCorruptionError{ID: selected}))
	}
	return selected
}

// pushGauge advances the gauge and returns the previous value.
func (a *ealloc) pushGauge() RawEntity {
	if a.gauge == math.MaxUint32 {
		panic(bark.AddTrace(AllocatorExhaustedError{}))
	}
	next := a.gauge
	a.gauge++
	return next
}

// free returns an ID to the recycled set. Freeing the same ID twice signals
// corruption in the caller and is fatal.
func (a *ealloc) free(id RawEntity) {
	if _, existed := a.recycled.ReplaceOrInsert(id); existed {
		panic(bark.AddTrace(DoubleFreeError{ID: id}))
	}
}
