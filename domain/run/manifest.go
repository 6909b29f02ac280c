package run

import (
	"crypto/sha256"
	"fmt"

	"mlhmc/domain/core"
)

// ModelSpec describes the sampled theory precisely enough to rebuild it
type ModelSpec struct {
	Kind   string  `json:"kind"`
	Shape  []int   `json:"shape"`
	M2     float64 `json:"m2"`
	Lambda float64 `json:"lambda"`
	H      float64 `json:"h"`
}

// CycleSpec describes the hierarchy and cycle shape of a run
type CycleSpec struct {
	NuPre         []int     `json:"nu_pre"`
	NuPost        []int     `json:"nu_post"`
	Gamma         int       `json:"gamma"`
	Interpolation string    `json:"interpolation"`
	Steps         []int     `json:"steps"`
	StepSizes     []float64 `json:"step_sizes"`
}

// Levels returns the hierarchy depth encoded in the cycle parameters
func (c CycleSpec) Levels() int {
	return len(c.NuPre)
}

// Manifest is the complete specification of a run - the truth source for
// replay. It must exist before any result is stored.
type Manifest struct {
	RunID          core.RunID     `json:"run_id"`
	Model          ModelSpec      `json:"model"`
	Cycle          CycleSpec      `json:"cycle"`
	Seed           int64          `json:"seed"`
	Thermalization int            `json:"thermalization"`
	Samples        int            `json:"samples"`
	CodeVersion    string         `json:"code_version"`
	Fingerprint    Fingerprint    `json:"fingerprint"`
	CreatedAt      core.Timestamp `json:"created_at"`
}

// NewManifest creates a manifest with a computed determinism fingerprint
func NewManifest(runID core.RunID, model ModelSpec, cycle CycleSpec, seed int64,
	therm, samples int, codeVersion string) *Manifest {

	return &Manifest{
		RunID:          runID,
		Model:          model,
		Cycle:          cycle,
		Seed:           seed,
		Thermalization: therm,
		Samples:        samples,
		CodeVersion:    codeVersion,
		Fingerprint:    NewFingerprint(model, cycle, seed, therm, samples, codeVersion),
		CreatedAt:      core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.Model.Kind == "" {
		return core.NewValidationError("run_manifest", "model kind cannot be empty")
	}
	if len(m.Model.Shape) == 0 {
		return core.NewValidationError("run_manifest", "model shape cannot be empty")
	}
	if m.Cycle.Levels() == 0 {
		return core.NewValidationError("run_manifest", "cycle has no levels")
	}
	if m.Samples < 0 || m.Thermalization < 0 {
		return core.NewValidationError("run_manifest", "sample counts cannot be negative")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	if m.Fingerprint.Hash.IsEmpty() {
		return core.NewValidationError("run_manifest", "fingerprint missing")
	}
	return nil
}

// Fingerprint ensures deterministic replay: equal fingerprints mean the run
// would reproduce bit-identically given the same build.
type Fingerprint struct {
	Params      core.ParamsHash `json:"params"`
	Seed        int64           `json:"seed"`
	CodeVersion string          `json:"code_version"`
	Hash        core.Hash       `json:"hash"`
}

// NewFingerprint creates a fingerprint from all determinism parameters
func NewFingerprint(model ModelSpec, cycle CycleSpec, seed int64, therm, samples int, codeVersion string) Fingerprint {
	params := core.ComputeParamsHash(map[string]any{
		"model_kind":     model.Kind,
		"shape":          model.Shape,
		"m2":             model.M2,
		"lambda":         model.Lambda,
		"h":              model.H,
		"nu_pre":         cycle.NuPre,
		"nu_post":        cycle.NuPost,
		"gamma":          cycle.Gamma,
		"interpolation":  cycle.Interpolation,
		"steps":          cycle.Steps,
		"step_sizes":     cycle.StepSizes,
		"thermalization": therm,
		"samples":        samples,
	})

	data := fmt.Sprintf("params:%s|seed:%d|code:%s", params, seed, codeVersion)
	sum := sha256.Sum256([]byte(data))

	return Fingerprint{
		Params:      params,
		Seed:        seed,
		CodeVersion: codeVersion,
		Hash:        core.Hash(fmt.Sprintf("%x", sum)),
	}
}
