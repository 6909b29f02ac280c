package lattice

import (
	"math/rand"
	"testing"
)

func TestNewValidatesShape(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		wantErr bool
		size    int
	}{
		{"1d", []int{8}, false, 8},
		{"2d", []int{4, 6}, false, 24},
		{"no dims", nil, true, 0},
		{"zero extent", []int{4, 0}, true, 0},
		{"negative extent", []int{-2}, true, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f, err := New(test.shape...)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error for shape %v", test.shape)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Size() != test.size {
				t.Errorf("expected size %d, got %d", test.size, f.Size())
			}
			if !f.IsZero() {
				t.Error("new field should be the identity")
			}
		})
	}
}

func TestOfChecksLength(t *testing.T) {
	if _, err := Of([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected length mismatch error")
	}
	f, err := Of([]float64{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Data[3] != 4 {
		t.Errorf("expected last site 4, got %v", f.Data[3])
	}
}

func TestCloneIsIndependent(t *testing.T) {
	f, _ := Of([]float64{1, 2, 3, 4}, 4)
	c := f.Clone()
	c.Data[0] = 99
	c.Shape[0] = 1
	if f.Data[0] != 1 || f.Shape[0] != 4 {
		t.Error("mutating a clone must not touch the original")
	}
}

func TestIsZero(t *testing.T) {
	f, _ := New(3, 3)
	if !f.IsZero() {
		t.Error("zero field should report identity")
	}
	f.Data[4] = 1e-12
	if f.IsZero() {
		t.Error("non-zero site should break identity")
	}
	f.Zero()
	if !f.IsZero() {
		t.Error("Zero() should restore the identity")
	}
}

func TestHotIsDeterministicPerSeed(t *testing.T) {
	a, err := Hot(rand.New(rand.NewSource(7)), 4, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Hot(rand.New(rand.NewSource(7)), 4, 4)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("site %d differs across equal seeds", i)
		}
	}
	if a.IsZero() {
		t.Error("hot start should not be the identity")
	}
}

func TestIndexRoundTrip(t *testing.T) {
	shape := []int{3, 4, 5}
	size := 3 * 4 * 5
	for site := 0; site < size; site++ {
		coords := CoordsOf(site, shape)
		if got := IndexOf(coords, shape); got != site {
			t.Fatalf("site %d round-tripped to %d via %v", site, got, coords)
		}
	}
}

func TestIndexWrapsPeriodically(t *testing.T) {
	shape := []int{4, 4}
	if got := IndexOf([]int{-1, 0}, shape); got != IndexOf([]int{3, 0}, shape) {
		t.Errorf("negative coordinate should wrap: got %d", got)
	}
	if got := IndexOf([]int{0, 4}, shape); got != 0 {
		t.Errorf("overflow coordinate should wrap to 0: got %d", got)
	}
}

func TestNeighborTable1D(t *testing.T) {
	table := BuildNeighborTable([]int{4})
	// site 0: +x is 1, -x wraps to 3
	if table[0][0] != 1 || table[0][1] != 3 {
		t.Errorf("site 0 neighbors wrong: %v", table[0])
	}
	if table[3][0] != 0 || table[3][1] != 2 {
		t.Errorf("site 3 neighbors wrong: %v", table[3])
	}
}

func TestNeighborTable2D(t *testing.T) {
	shape := []int{3, 3}
	table := BuildNeighborTable(shape)
	center := IndexOf([]int{1, 1}, shape)
	want := []int{
		IndexOf([]int{2, 1}, shape),
		IndexOf([]int{0, 1}, shape),
		IndexOf([]int{1, 2}, shape),
		IndexOf([]int{1, 0}, shape),
	}
	for i, w := range want {
		if table[center][i] != w {
			t.Errorf("neighbor %d of center: expected %d, got %d", i, w, table[center][i])
		}
	}
}

func TestMean(t *testing.T) {
	f, _ := Of([]float64{1, 2, 3, 4}, 4)
	if got := f.Mean(); got != 2.5 {
		t.Errorf("expected mean 2.5, got %v", got)
	}
}
