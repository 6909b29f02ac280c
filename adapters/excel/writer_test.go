package excel

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
)

func testRecord() *run.Record {
	model := run.ModelSpec{Kind: "phi4", Shape: []int{8, 8}, M2: -0.5, Lambda: 1.5, H: 0.25}
	cycle := run.CycleSpec{
		NuPre:         []int{2, 2},
		NuPost:        []int{1, 1},
		Gamma:         2,
		Interpolation: "linear",
		Steps:         []int{10, 10},
		StepSizes:     []float64{0.125, 0.25},
	}
	manifest := run.NewManifest(core.RunID("run-excel-test"), model, cycle, 42, 100, 500, "v1")
	summaries := []run.ObservableSummary{
		{Name: "magnetization", Samples: 4, Mean: 0.25, StdError: 0.125, Variance: 0.0625, AutocorrTime: 0.5, EffectiveSamples: 4},
		{Name: "energy", Samples: 4, Mean: 1.5, StdError: 0.25, Variance: 0.25, AutocorrTime: 0.5, EffectiveSamples: 4},
	}
	return run.NewRecord(*manifest, []float64{0.75, 0.5}, summaries, 1200)
}

func findRow(rows [][]string, key string) []string {
	for _, row := range rows {
		if len(row) > 0 && row[0] == key {
			return row
		}
	}
	return nil
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")
	rec := testRecord()
	series := map[string][]float64{
		"magnetization": {0.5, 0.25, 0, 0.25},
		"energy":        {1.5, 1.5, 1.5, 1.5},
	}

	if err := NewWriter().WriteWorkbook(path, rec, series); err != nil {
		t.Fatalf("WriteWorkbook failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	for _, want := range []string{"Run", "Summary", "magnetization", "energy"} {
		found := false
		for _, s := range sheets {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Errorf("workbook missing sheet %q, have %v", want, sheets)
		}
	}

	runRows, err := f.GetRows("Run")
	if err != nil {
		t.Fatalf("failed to read Run sheet: %v", err)
	}
	if row := findRow(runRows, "gamma"); row == nil || row[1] != "2" {
		t.Errorf("gamma row = %v, want value 2", row)
	}
	if row := findRow(runRows, "shape"); row == nil || row[1] != "8,8" {
		t.Errorf("shape row = %v, want value 8,8", row)
	}
	if row := findRow(runRows, "interpolation"); row == nil || row[1] != "linear" {
		t.Errorf("interpolation row = %v, want linear", row)
	}
	if row := findRow(runRows, "step_sizes"); row == nil || row[1] != "0.125,0.25" {
		t.Errorf("step_sizes row = %v, want 0.125,0.25", row)
	}
	// Acceptance block: header then one row per level.
	if row := findRow(runRows, "Level"); row == nil {
		t.Fatal("Run sheet missing acceptance header")
	}
	if row := findRow(runRows, "0"); row == nil || row[1] != "0.75" {
		t.Errorf("level 0 acceptance row = %v, want 0.75", row)
	}

	sumRows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("failed to read Summary sheet: %v", err)
	}
	if len(sumRows) != 3 {
		t.Fatalf("Summary has %d rows, want header + 2 observables", len(sumRows))
	}
	if sumRows[1][0] != "magnetization" || sumRows[1][2] != "0.25" {
		t.Errorf("magnetization summary row = %v", sumRows[1])
	}
	if sumRows[2][0] != "energy" || sumRows[2][2] != "1.5" {
		t.Errorf("energy summary row = %v", sumRows[2])
	}

	magRows, err := f.GetRows("magnetization")
	if err != nil {
		t.Fatalf("failed to read magnetization sheet: %v", err)
	}
	if len(magRows) != 5 {
		t.Fatalf("magnetization sheet has %d rows, want header + 4 samples", len(magRows))
	}
	if magRows[0][1] != "magnetization" {
		t.Errorf("series header = %v", magRows[0])
	}
	if magRows[1][1] != "0.5" || magRows[2][1] != "0.25" {
		t.Errorf("series rows = %v %v", magRows[1], magRows[2])
	}
}

func TestWriteWorkbookWithoutSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.xlsx")

	if err := NewWriter().WriteWorkbook(path, testRecord(), nil); err != nil {
		t.Fatalf("WriteWorkbook without series failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("magnetization")
	if err != nil {
		t.Fatalf("failed to read observable sheet: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("observable sheet without series has %d rows, want header only", len(rows))
	}
}

func TestWriteWorkbookNilRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nil.xlsx")
	if err := NewWriter().WriteWorkbook(path, nil, nil); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestSheetNameFor(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"energy", "energy"},
		{"two/point[0]", "two_point_0_"},
		{"", "observable"},
		{"a_very_long_observable_name_that_overflows", "a_very_long_observable_name_tha"},
	}
	for _, c := range cases {
		if got := sheetNameFor(c.in); got != c.want {
			t.Errorf("sheetNameFor(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
