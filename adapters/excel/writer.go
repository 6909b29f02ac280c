// Package excel exports completed runs as xlsx workbooks for offline
// analysis. A workbook holds a Run sheet with the full parameter set and
// per-level acceptance rates, a Summary sheet with ensemble statistics,
// and one sheet per observable carrying the raw measurement series.
package excel

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"mlhmc/domain/run"
)

const (
	runSheet     = "Run"
	summarySheet = "Summary"

	maxSheetNameLen = 31
)

// Writer renders run records into xlsx workbooks.
type Writer struct{}

// NewWriter creates an xlsx run exporter.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteWorkbook writes the record and its measurement series to path.
// Series are keyed by observable name; observables without a series still
// appear on the Summary sheet.
func (w *Writer) WriteWorkbook(path string, rec *run.Record, series map[string][]float64) error {
	if rec == nil {
		return fmt.Errorf("cannot export nil run record")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", runSheet); err != nil {
		return fmt.Errorf("failed to name run sheet: %w", err)
	}
	if err := w.writeRunSheet(f, rec); err != nil {
		return err
	}
	if err := w.writeSummarySheet(f, rec); err != nil {
		return err
	}
	for _, s := range rec.Summaries {
		if err := w.writeObservableSheet(f, s.Name, series[s.Name]); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	log.Printf("[ExcelWriter] Wrote run %s to %s (%d observables)",
		rec.Manifest.RunID, path, len(rec.Summaries))
	return nil
}

func (w *Writer) writeRunSheet(f *excelize.File, rec *run.Record) error {
	m := rec.Manifest
	rows := [][]any{
		{"Parameter", "Value"},
		{"run_id", string(m.RunID)},
		{"status", string(rec.Status)},
		{"model_kind", m.Model.Kind},
		{"shape", intsToString(m.Model.Shape)},
		{"m2", m.Model.M2},
		{"lambda", m.Model.Lambda},
		{"h", m.Model.H},
		{"levels", m.Cycle.Levels()},
		{"gamma", m.Cycle.Gamma},
		{"interpolation", m.Cycle.Interpolation},
		{"nu_pre", intsToString(m.Cycle.NuPre)},
		{"nu_post", intsToString(m.Cycle.NuPost)},
		{"steps", intsToString(m.Cycle.Steps)},
		{"step_sizes", floatsToString(m.Cycle.StepSizes)},
		{"seed", m.Seed},
		{"thermalization", m.Thermalization},
		{"samples", m.Samples},
		{"code_version", m.CodeVersion},
		{"fingerprint", string(m.Fingerprint.Hash)},
		{"runtime_ms", rec.RuntimeMs},
	}
	if rec.Error != "" {
		rows = append(rows, []any{"error", rec.Error})
	}

	next, err := writeRows(f, runSheet, 1, rows)
	if err != nil {
		return err
	}

	// Acceptance block, one row per hierarchy level, finest first.
	rateRows := [][]any{{"Level", "AcceptanceRate"}}
	for i, r := range rec.Rates {
		rateRows = append(rateRows, []any{i, r})
	}
	if _, err := writeRows(f, runSheet, next+1, rateRows); err != nil {
		return err
	}
	return nil
}

func (w *Writer) writeSummarySheet(f *excelize.File, rec *run.Record) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][]any{
		{"Observable", "Samples", "Mean", "StdError", "Variance", "AutocorrTime", "EffectiveSamples"},
	}
	for _, s := range rec.Summaries {
		rows = append(rows, []any{
			s.Name, s.Samples, s.Mean, s.StdError, s.Variance, s.AutocorrTime, s.EffectiveSamples,
		})
	}
	_, err := writeRows(f, summarySheet, 1, rows)
	return err
}

func (w *Writer) writeObservableSheet(f *excelize.File, name string, values []float64) error {
	sheet := sheetNameFor(name)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet for %s: %w", name, err)
	}
	rows := [][]any{{"Sample", name}}
	for i, v := range values {
		rows = append(rows, []any{i, v})
	}
	_, err := writeRows(f, sheet, 1, rows)
	return err
}

// writeRows writes the rows starting at startRow and returns the row index
// after the last one written.
func writeRows(f *excelize.File, sheet string, startRow int, rows [][]any) (int, error) {
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, startRow+r)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return 0, fmt.Errorf("failed to write cell %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return startRow + len(rows), nil
}

// sheetNameFor makes an observable name safe for use as an xlsx sheet name:
// the characters : \ / ? * [ ] are forbidden and names cap at 31 runes.
func sheetNameFor(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if clean == "" {
		clean = "observable"
	}
	if len(clean) > maxSheetNameLen {
		clean = clean[:maxSheetNameLen]
	}
	return clean
}

func intsToString(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func floatsToString(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
