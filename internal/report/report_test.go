package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
)

func sampleRecord(id string, m2 float64) *run.Record {
	model := run.ModelSpec{Kind: "phi4", Shape: []int{16, 16}, M2: m2, Lambda: 1, H: 0}
	cycle := run.CycleSpec{
		NuPre:         []int{2, 2},
		NuPost:        []int{1, 1},
		Gamma:         2,
		Interpolation: "constant",
		Steps:         []int{10, 10},
		StepSizes:     []float64{0.1, 0.2},
	}
	manifest := run.NewManifest(core.RunID(id), model, cycle, 7, 50, 200, "v1")
	summaries := []run.ObservableSummary{
		{Name: "magnetization", Samples: 200, Mean: 0.125, StdError: 0.01, Variance: 0.02, AutocorrTime: 1.5, EffectiveSamples: 66.7},
	}
	return run.NewRecord(*manifest, []float64{0.8125, 0.625}, summaries, 900)
}

func TestMarkdownContent(t *testing.T) {
	md := Markdown(sampleRecord("run-report", -0.5))

	for _, want := range []string{
		"# Run run-report",
		"Status: **completed**",
		"16x16",
		"| 0 | 0.8125 |",
		"| 1 | 0.6250 |",
		"| magnetization | 0.125 |",
		"seed 7",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestMarkdownFailedRun(t *testing.T) {
	manifest := sampleRecord("run-bad", 1).Manifest
	rec := run.NewFailedRecord(manifest, os.ErrNotExist)

	md := Markdown(rec)
	if !strings.Contains(md, "Status: **failed**") {
		t.Errorf("failed status missing:\n%s", md)
	}
	if !strings.Contains(md, "file does not exist") {
		t.Errorf("error cause missing:\n%s", md)
	}
	if strings.Contains(md, "## Acceptance rates") {
		t.Error("failed run should have no rates table")
	}
}

func TestHTMLRendersTables(t *testing.T) {
	page := string(HTML(Markdown(sampleRecord("run-html", 0))))

	if !strings.Contains(page, "<!DOCTYPE html>") {
		t.Error("missing document shell")
	}
	if !strings.Contains(page, "<table>") {
		t.Error("markdown tables were not rendered to HTML")
	}
	if !strings.Contains(page, "run-html") {
		t.Error("run id missing from page")
	}
}

func TestSweepMarkdown(t *testing.T) {
	recs := []*run.Record{
		sampleRecord("p0", -1),
		sampleRecord("p1", -0.5),
		sampleRecord("p2", 0),
	}

	md := SweepMarkdown("m2", recs)
	if !strings.Contains(md, "# Sweep over m2 (3 points)") {
		t.Errorf("header missing:\n%s", md)
	}
	if !strings.Contains(md, "| 1 | -0.5 |") {
		t.Errorf("point row missing:\n%s", md)
	}
	if !strings.Contains(md, "magnetization") {
		t.Errorf("observable column missing:\n%s", md)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "report")
	if err := WriteFiles(dir, sampleRecord("run-files", 0.5)); err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("report.md missing: %v", err)
	}
	if !strings.Contains(string(md), "run-files") {
		t.Error("markdown file content wrong")
	}

	page, err := os.ReadFile(filepath.Join(dir, "report.html"))
	if err != nil {
		t.Fatalf("report.html missing: %v", err)
	}
	if !strings.Contains(string(page), "<table>") {
		t.Error("html file content wrong")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord("run-roundtrip", -0.3)
	if err := WriteRecord(dir, rec); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}

	loaded, err := ReadRecord(dir)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if loaded.Manifest.RunID != rec.Manifest.RunID {
		t.Errorf("run id = %s, want %s", loaded.Manifest.RunID, rec.Manifest.RunID)
	}
	if loaded.Manifest.Fingerprint.Hash != rec.Manifest.Fingerprint.Hash {
		t.Error("fingerprint not preserved across the round trip")
	}
	if len(loaded.Rates) != len(rec.Rates) || loaded.Rates[0] != rec.Rates[0] {
		t.Errorf("rates not preserved: %v", loaded.Rates)
	}

	if _, err := ReadRecord(t.TempDir()); err == nil {
		t.Error("expected error reading a directory without a record")
	}
}
