package ports

// Sink is a hierarchical destination for run output. Implementations decide
// the storage format; the sampling core only ever asks for the "level0"
// namespace and delegates.
type Sink interface {
	// Has reports whether a direct child namespace exists
	Has(name string) bool

	// Namespace returns the named child namespace, creating it if absent
	Namespace(name string) (Namespace, error)
}

// Namespace is a named sub-tree of a sink holding series data, attributes,
// and further nested namespaces.
type Namespace interface {
	Sink

	// WriteSeries stores a named float64 series
	WriteSeries(name string, values []float64) error

	// WriteAttrs merges scalar attributes into this namespace
	WriteAttrs(attrs map[string]any) error
}
