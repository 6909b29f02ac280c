package observable

import (
	"math"
	"testing"

	"mlhmc/domain/lattice"
)

func TestMagnetization(t *testing.T) {
	f, _ := lattice.Of([]float64{1, -1, 2, 0}, 4)
	if got := Magnetization().Eval(f); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestMagnetizationSquared(t *testing.T) {
	f, _ := lattice.Of([]float64{1, -1, 2, 0}, 4)
	if got := MagnetizationSquared().Eval(f); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}

func TestFieldSquared(t *testing.T) {
	f, _ := lattice.Of([]float64{1, -1, 2, 0}, 4)
	if got := FieldSquared().Eval(f); math.Abs(got-1.5) > 1e-15 {
		t.Errorf("expected 1.5, got %v", got)
	}
}

func TestStandardNames(t *testing.T) {
	want := []string{"magnetization", "magnetization_squared", "field_squared"}
	obs := Standard()
	if len(obs) != len(want) {
		t.Fatalf("expected %d observables, got %d", len(want), len(obs))
	}
	for i, o := range obs {
		if o.Name != want[i] {
			t.Errorf("observable %d: expected %q, got %q", i, want[i], o.Name)
		}
		if o.Eval == nil {
			t.Errorf("observable %q has no evaluator", o.Name)
		}
	}
}
