// Package badgersink stores sink namespaces in an embedded BadgerDB.
// Namespaces become key prefixes: a marker key per namespace, one key per
// series, and one merged attributes document per namespace. A single store
// can hold many runs.
package badgersink

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"mlhmc/ports"
)

// Sink is one namespace node backed by a shared BadgerDB handle. The root
// node owns the database; Close must be called on the root when done.
type Sink struct {
	db   *badger.DB
	path string
}

var (
	_ ports.Sink      = (*Sink)(nil)
	_ ports.Namespace = (*Sink)(nil)
)

// Open opens (or creates) a persistent store in dir
func Open(dir string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Sink{db: db}, nil
}

// OpenInMemory opens a volatile store, used by tests and dry runs
func OpenInMemory() (*Sink, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger store: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close releases the underlying database
func (s *Sink) Close() error {
	return s.db.Close()
}

// Has reports whether a direct child namespace exists
func (s *Sink) Has(name string) bool {
	if validateName(name) != nil {
		return false
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(nsKey(s.child(name)))
		return err
	})
	return err == nil
}

// Namespace returns the named child namespace, creating its marker if absent
func (s *Sink) Namespace(name string) (ports.Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	path := s.child(name)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nsKey(path), []byte{1})
	})
	if err != nil {
		return nil, fmt.Errorf("create namespace %s: %w", name, err)
	}
	return &Sink{db: s.db, path: path}, nil
}

// Namespaces lists the direct child namespace names in sorted order
func (s *Sink) Namespaces() ([]string, error) {
	prefix := []byte("ns:")
	if s.path != "" {
		prefix = []byte("ns:" + s.path + "/")
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			if !strings.Contains(rest, "/") {
				names = append(names, rest)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// WriteSeries stores a named float series, replacing any previous value
func (s *Sink) WriteSeries(name string, values []float64) error {
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
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seriesKey(s.path, name), data)
	})
	if err != nil {
		return fmt.Errorf("write series %s: %w", name, err)
	}
	return nil
}

// WriteAttrs merges attributes into this namespace's attribute document
func (s *Sink) WriteAttrs(attrs map[string]any) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		merged := map[string]any{}
		item, err := txn.Get(attrsKey(s.path))
		if err == nil {
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &merged)
			})
			if err != nil {
				return err
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		for k, v := range attrs {
			merged[k] = v
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return txn.Set(attrsKey(s.path), data)
	})
	if err != nil {
		return fmt.Errorf("write attributes: %w", err)
	}
	return nil
}

// ReadSeries loads a previously written series
func (s *Sink) ReadSeries(name string) ([]float64, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	var values []float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seriesKey(s.path, name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &values)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read series %s: %w", name, err)
	}
	return values, nil
}

// ReadAttrs loads this namespace's attributes; absent yields an empty map
func (s *Sink) ReadAttrs() (map[string]any, error) {
	attrs := map[string]any{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attrsKey(s.path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &attrs)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}
	return attrs, nil
}

func (s *Sink) child(name string) string {
	if s.path == "" {
		return name
	}
	return s.path + "/" + name
}

func nsKey(path string) []byte {
	return []byte("ns:" + path)
}

func seriesKey(path, name string) []byte {
	return []byte("series:" + path + ":" + name)
}

func attrsKey(path string) []byte {
	return []byte("attrs:" + path)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(name, "/\\:") || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}
