package run

import (
	"testing"

	"mlhmc/domain/core"
)

func testModel() ModelSpec {
	return ModelSpec{Kind: "phi4", Shape: []int{8, 8}, M2: -0.5, Lambda: 1.2, H: 0.01}
}

func testCycle() CycleSpec {
	return CycleSpec{
		NuPre:         []int{2, 1},
		NuPost:        []int{2, 1},
		Gamma:         1,
		Interpolation: "linear",
		Steps:         []int{10, 10},
		StepSizes:     []float64{0.1, 0.2},
	}
}

// TestFingerprintDeterminism ensures identical inputs produce identical
// fingerprints across constructions
func TestFingerprintDeterminism(t *testing.T) {
	a := NewFingerprint(testModel(), testCycle(), 42, 10, 100, "v0.1.0")
	b := NewFingerprint(testModel(), testCycle(), 42, 10, 100, "v0.1.0")
	if a.Hash != b.Hash {
		t.Errorf("Expected identical fingerprints, got %s vs %s", a.Hash, b.Hash)
	}
}

// TestFingerprintSensitivity ensures every determinism parameter moves the hash
func TestFingerprintSensitivity(t *testing.T) {
	base := NewFingerprint(testModel(), testCycle(), 42, 10, 100, "v0.1.0")

	otherSeed := NewFingerprint(testModel(), testCycle(), 43, 10, 100, "v0.1.0")
	if base.Hash == otherSeed.Hash {
		t.Error("Seed change should change the fingerprint")
	}

	otherModel := testModel()
	otherModel.M2 = -0.4
	if NewFingerprint(otherModel, testCycle(), 42, 10, 100, "v0.1.0").Hash == base.Hash {
		t.Error("Model change should change the fingerprint")
	}

	otherCycle := testCycle()
	otherCycle.Gamma = 2
	if NewFingerprint(testModel(), otherCycle, 42, 10, 100, "v0.1.0").Hash == base.Hash {
		t.Error("Cycle change should change the fingerprint")
	}

	if NewFingerprint(testModel(), testCycle(), 42, 10, 100, "v0.2.0").Hash == base.Hash {
		t.Error("Code version change should change the fingerprint")
	}
}

// TestManifestValidate checks completeness enforcement
func TestManifestValidate(t *testing.T) {
	valid := NewManifest(core.RunID(core.NewID()), testModel(), testCycle(), 42, 10, 100, "v0.1.0")
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid manifest, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"empty run id", func(m *Manifest) { m.RunID = "" }},
		{"empty model kind", func(m *Manifest) { m.Model.Kind = "" }},
		{"empty shape", func(m *Manifest) { m.Model.Shape = nil }},
		{"no levels", func(m *Manifest) { m.Cycle.NuPre = nil }},
		{"negative samples", func(m *Manifest) { m.Samples = -1 }},
		{"empty code version", func(m *Manifest) { m.CodeVersion = "" }},
		{"missing fingerprint", func(m *Manifest) { m.Fingerprint.Hash = "" }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := NewManifest(core.RunID(core.NewID()), testModel(), testCycle(), 42, 10, 100, "v0.1.0")
			test.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// TestRecordConstructors checks status assignment
func TestRecordConstructors(t *testing.T) {
	manifest := NewManifest(core.RunID(core.NewID()), testModel(), testCycle(), 42, 10, 100, "v0.1.0")

	rec := NewRecord(*manifest, []float64{0.8, 0.9}, nil, 1500)
	if rec.Status != StatusCompleted {
		t.Errorf("Expected completed status, got %s", rec.Status)
	}
	if len(rec.Rates) != 2 {
		t.Errorf("Expected 2 rates, got %d", len(rec.Rates))
	}

	failed := NewFailedRecord(*manifest, core.ErrInvalidGamma)
	if failed.Status != StatusFailed {
		t.Errorf("Expected failed status, got %s", failed.Status)
	}
	if failed.Error == "" {
		t.Error("Expected error message on failed record")
	}
}
