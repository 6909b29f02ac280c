// Package report renders human-readable summaries of completed runs.
// Reports are built as markdown and rendered to HTML, with both forms
// written next to the run's stored results.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"mlhmc/domain/run"
)

const (
	markdownFile = "report.md"
	htmlFile     = "report.html"
	recordFile   = "record.json"
)

// Markdown builds the markdown report for one run record.
func Markdown(rec *run.Record) string {
	var b strings.Builder
	m := rec.Manifest

	fmt.Fprintf(&b, "# Run %s\n\n", m.RunID)
	fmt.Fprintf(&b, "Status: **%s**", rec.Status)
	if rec.Error != "" {
		fmt.Fprintf(&b, " (%s)", rec.Error)
	}
	fmt.Fprintf(&b, "\n\n")

	b.WriteString("## Parameters\n\n")
	fmt.Fprintf(&b, "- model: %s on %s, spacing-free couplings m² = %g, λ = %g, h = %g\n",
		m.Model.Kind, shapeString(m.Model.Shape), m.Model.M2, m.Model.Lambda, m.Model.H)
	fmt.Fprintf(&b, "- cycle: %d levels, γ = %d, %s interpolation\n",
		m.Cycle.Levels(), m.Cycle.Gamma, m.Cycle.Interpolation)
	fmt.Fprintf(&b, "- sweeps per visit: pre %v, post %v\n", m.Cycle.NuPre, m.Cycle.NuPost)
	fmt.Fprintf(&b, "- integrator: steps %v, step sizes %v\n", m.Cycle.Steps, m.Cycle.StepSizes)
	fmt.Fprintf(&b, "- samples: %d (after %d thermalization), seed %d\n\n",
		m.Samples, m.Thermalization, m.Seed)

	if len(rec.Rates) > 0 {
		b.WriteString("## Acceptance rates\n\n")
		b.WriteString("| Level | Rate |\n|---|---|\n")
		for i, r := range rec.Rates {
			fmt.Fprintf(&b, "| %d | %.4f |\n", i, r)
		}
		b.WriteString("\n")
	}

	if len(rec.Summaries) > 0 {
		b.WriteString("## Observables\n\n")
		b.WriteString("| Observable | Mean | StdError | τ_int | ESS |\n|---|---|---|---|---|\n")
		for _, s := range rec.Summaries {
			fmt.Fprintf(&b, "| %s | %.6g | %.3g | %.2f | %.1f |\n",
				s.Name, s.Mean, s.StdError, s.AutocorrTime, s.EffectiveSamples)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\nFingerprint `%s`, code %s, runtime %d ms.\n",
		m.Fingerprint.Hash, m.CodeVersion, rec.RuntimeMs)

	return b.String()
}

// SweepMarkdown builds the combined report for a parameter sweep. Records
// are listed in point order; each row shows the swept couplings and the
// finest-level acceptance alongside every observable mean.
func SweepMarkdown(param string, recs []*run.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Sweep over %s (%d points)\n\n", param, len(recs))

	names := observableNames(recs)
	b.WriteString("| Point | m² | λ | h | Accept(0) |")
	for _, n := range names {
		fmt.Fprintf(&b, " %s |", n)
	}
	b.WriteString("\n|---|---|---|---|---|")
	for range names {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for i, rec := range recs {
		m := rec.Manifest.Model
		accept := "-"
		if len(rec.Rates) > 0 {
			accept = fmt.Sprintf("%.4f", rec.Rates[0])
		}
		fmt.Fprintf(&b, "| %d | %g | %g | %g | %s |", i, m.M2, m.Lambda, m.H, accept)
		byName := make(map[string]run.ObservableSummary, len(rec.Summaries))
		for _, s := range rec.Summaries {
			byName[s.Name] = s
		}
		for _, n := range names {
			if s, ok := byName[n]; ok {
				fmt.Fprintf(&b, " %.6g ± %.3g |", s.Mean, s.StdError)
			} else {
				b.WriteString(" - |")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders a markdown report into a standalone HTML page.
func HTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	body := markdown.Render(doc, renderer)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<style>body{font-family:sans-serif;max-width:70em;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #999;padding:0.3em 0.8em}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")

	return []byte(b.String())
}

// WriteFiles writes report.md and report.html for the record into dir.
func WriteFiles(dir string, rec *run.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	md := Markdown(rec)
	if err := os.WriteFile(filepath.Join(dir, markdownFile), []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, htmlFile), HTML(md), 0o644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	return nil
}

// WriteRecord stores the raw run record next to the reports, so they can be
// rebuilt later without access to the registry.
func WriteRecord(dir string, rec *run.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, recordFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// ReadRecord loads the run record stored by WriteRecord.
func ReadRecord(dir string) (*run.Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, recordFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}
	var rec run.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode run record: %w", err)
	}
	return &rec, nil
}

// WriteSweepFiles writes the combined sweep report into dir.
func WriteSweepFiles(dir, param string, recs []*run.Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	md := SweepMarkdown(param, recs)
	if err := os.WriteFile(filepath.Join(dir, "sweep.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("failed to write sweep markdown: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sweep.html"), HTML(md), 0o644); err != nil {
		return fmt.Errorf("failed to write sweep html: %w", err)
	}
	return nil
}

func observableNames(recs []*run.Record) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range recs {
		for _, s := range rec.Summaries {
			if !seen[s.Name] {
				seen[s.Name] = true
				names = append(names, s.Name)
			}
		}
	}
	return names
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, "x")
}
