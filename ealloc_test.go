package foreman

import "testing"

func TestAllocateRecyclesSmallest(t *testing.T) {
	a := newEalloc()
	for want := RawEntity(1); want <= 5; want++ {
		if got := a.allocate(); got != want {
			t.Fatalf("allocate() = %d, want %d", got, want)
		}
	}

	a.free(2)
	a.free(4)

	if got := a.allocate(); got != 2 {
		t.Errorf("allocate() after free(2), free(4) = %d, want 2", got)
	}
	if got := a.allocate(); got != 4 {
		t.Errorf("second allocate() = %d, want 4", got)
	}
	if got := a.allocate(); got != 6 {
		t.Errorf("allocate() with empty recycled set = %d, want gauge 6", got)
	}
}

func TestAllocateNear(t *testing.T) {
	tests := []struct {
		name     string
		allocate int
		free     []RawEntity
		hint     RawEntity
		want     []RawEntity
	}{
		{
			name:     "closer right side wins",
			allocate: 10,
			free:     []RawEntity{2, 3, 7, 8},
			hint:     6,
			want:     []RawEntity{7},
		},
		{
			name:     "left preferred on tie",
			allocate: 10,
			free:     []RawEntity{4, 8},
			hint:     6,
			want:     []RawEntity{4},
		},
		{
			name:     "drains toward the hint",
			allocate: 4,
			free:     []RawEntity{2, 3},
			hint:     4,
			want:     []RawEntity{3, 2},
		},
		{
			name:     "hint below all recycled",
			allocate: 4,
			free:     []RawEntity{2, 3},
			hint:     1,
			want:     []RawEntity{2, 3},
		},
		{
			name:     "empty set falls back to gauge",
			allocate: 3,
			free:     nil,
			hint:     2,
			want:     []RawEntity{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newEalloc()
			for i := 0; i < tt.allocate; i++ {
				a.allocate()
			}
			for _, id := range tt.free {
				a.free(id)
			}
			for i, want := range tt.want {
				if got := a.allocateNear(tt.hint); got != want {
					t.Errorf("allocateNear(%d) #%d = %d, want %d", tt.hint, i, got, want)
				}
			}
		})
	}
}

func TestAllocateNeverRepeatsWithoutFree(t *testing.T) {
	a := newEalloc()
	seen := make(map[RawEntity]bool)
	for i := 0; i < 1000; i++ {
		id := a.allocate()
		if seen[id] {
			t.Fatalf("allocate() returned %d twice without an intervening free", id)
		}
		seen[id] = true
	}
}

func TestFreeThenAllocateReturnsFreed(t *testing.T) {
	a := newEalloc()
	for i := 0; i < 8; i++ {
		a.allocate()
	}
	a.free(5)
	a.free(3)
	if got := a.allocate(); got != 3 {
		t.Errorf("allocate() = %d, want the smaller recycled ID 3", got)
	}
}

func TestDoubleFreePanics(t *testing.T) {
	a := newEalloc()
	a.allocate()
	a.free(1)

	defer func() {
		if recover() == nil {
			t.Error("freeing the same ID twice did not panic")
		}
	}()
	a.free(1)
}

func TestGaugeExhaustionPanics(t *testing.T) {
	a := newEalloc()
	a.gauge = ^RawEntity(0)

	defer func() {
		if recover() == nil {
			t.Error("allocating past the domain maximum did not panic")
		}
	}()
	a.allocate()
}
