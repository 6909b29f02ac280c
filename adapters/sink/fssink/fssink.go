// Package fssink persists sink namespaces as a directory tree: one
// directory per namespace, one JSON file per series, and a merged
// attrs.json per namespace. The layout is human-inspectable and is what
// the report command reads back.
package fssink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mlhmc/ports"
)

const attrsFile = "attrs.json"

// Sink is the root of a filesystem-backed namespace tree
type Sink struct {
	dir string
}

var _ ports.Sink = (*Sink)(nil)

// New creates (or reopens) a sink rooted at dir
func New(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("sink directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	return &Sink{dir: dir}, nil
}

// Dir returns the sink's root directory
func (s *Sink) Dir() string {
	return s.dir
}

// Has reports whether a child namespace exists
func (s *Sink) Has(name string) bool {
	return hasChild(s.dir, name)
}

// Namespace opens a child namespace, creating its directory if needed
func (s *Sink) Namespace(name string) (ports.Namespace, error) {
	return openChild(s.dir, name)
}

// Namespaces lists the child namespace names in sorted order
func (s *Sink) Namespaces() ([]string, error) {
	return listChildren(s.dir)
}

// Namespace is one directory of the tree
type Namespace struct {
	dir string
}

var _ ports.Namespace = (*Namespace)(nil)

// Has reports whether a child namespace exists
func (n *Namespace) Has(name string) bool {
	return hasChild(n.dir, name)
}

// Namespace opens a child namespace, creating it if needed
func (n *Namespace) Namespace(name string) (ports.Namespace, error) {
	return openChild(n.dir, name)
}

// Namespaces lists the child namespace names in sorted order
func (n *Namespace) Namespaces() ([]string, error) {
	return listChildren(n.dir)
}

// WriteSeries stores a float series as <name>.series.json, replacing any
// previous content
func (n *Namespace) WriteSeries(name string, values []float64) error {
	if err := validateName(name); err != nil {
		return err
	}
	if values == nil {
		values = []float64{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", name, err)
	}
	path := filepath.Join(n.dir, name+".series.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write series %s: %w", name, err)
	}
	return nil
}

// WriteAttrs merges attributes into the namespace's attrs.json
func (n *Namespace) WriteAttrs(attrs map[string]any) error {
	merged, err := n.ReadAttrs()
	if err != nil {
		return err
	}
	for k, v := range attrs {
		merged[k] = v
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	if err := os.WriteFile(filepath.Join(n.dir, attrsFile), data, 0o644); err != nil {
		return fmt.Errorf("write attributes: %w", err)
	}
	return nil
}

// ReadSeries loads a previously written series
func (n *Namespace) ReadSeries(name string) ([]float64, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(n.dir, name+".series.json"))
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", name, err)
	}
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode series %s: %w", name, err)
	}
	return values, nil
}

// ReadAttrs loads the namespace attributes; a missing file yields an empty map
func (n *Namespace) ReadAttrs() (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(n.dir, attrsFile))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}
	attrs := map[string]any{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return attrs, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

func hasChild(dir, name string) bool {
	if validateName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.IsDir()
}

func openChild(dir, name string) (*Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	child := filepath.Join(dir, name)
	if err := os.MkdirAll(child, 0o755); err != nil {
		return nil, fmt.Errorf("create namespace %s: %w", name, err)
	}
	return &Namespace{dir: child}, nil
}

func listChildren(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
