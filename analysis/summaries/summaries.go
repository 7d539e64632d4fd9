// Package summaries models the heap effects of external functions
// that have no body to analyze. The host loads a summary table once
// and shares it read-only across every analysis.
package summaries

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/verikit/memsplit/analysis/ir"
)

// EffectKind says whether an external function reads or writes the
// location.
type EffectKind string

const (
	Read  EffectKind = "read"
	Write EffectKind = "write"
)

// Effect is one memory access performed by an external function:
// Width bytes at offset Off from the pointer passed in Reg.
type Effect struct {
	Reg   ir.Reg     `yaml:"reg"`
	Off   int64      `yaml:"off"`
	Width uint32     `yaml:"width"`
	Kind  EffectKind `yaml:"kind"`
	// Type is the semantic type of the accessed slot, opaque to the
	// analysis and forwarded to the downstream verifier.
	Type string `yaml:"type,omitempty"`
}

func (e Effect) String() string {
	return fmt.Sprintf("%s.%d [%s%+d]", e.Kind, e.Width, e.Reg, e.Off)
}

// Summary describes one external function.
type Summary struct {
	Name string `yaml:"name"`
	// Alloc marks the function as an allocator: it returns a pointer
	// to a fresh object in R0, sized by R1.
	Alloc   bool     `yaml:"alloc,omitempty"`
	Effects []Effect `yaml:"effects,omitempty"`
}

// Table is the full summary table, keyed by function name.
// Immutable once loaded.
type Table struct {
	byName map[string]Summary
}

// NewTable builds a table from summaries. Duplicate names error.
func NewTable(sums []Summary) (*Table, error) {
	t := &Table{byName: make(map[string]Summary, len(sums))}
	for _, s := range sums {
		if s.Name == "" {
			return nil, fmt.Errorf("summary with empty function name")
		}
		if _, dup := t.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate summary for %q", s.Name)
		}
		t.byName[s.Name] = s
	}
	return t, nil
}

// Lookup finds the summary of an external function.
func (t *Table) Lookup(name string) (Summary, bool) {
	if t == nil {
		return Summary{}, false
	}
	s, ok := t.byName[name]
	return s, ok
}

// IsAlloc checks whether the named function is a summarized allocator.
func (t *Table) IsAlloc(name string) bool {
	s, ok := t.Lookup(name)
	return ok && s.Alloc
}

// Names returns the summarized function names in sorted order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// summaryFile is the on-disk layout of a summary table.
type summaryFile struct {
	Summaries []Summary `yaml:"summaries"`
}

// Load reads a summary table from YAML.
func Load(r io.Reader) (*Table, error) {
	var file summaryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing summary table: %w", err)
	}
	for _, s := range file.Summaries {
		for _, e := range s.Effects {
			if e.Kind != Read && e.Kind != Write {
				return nil, fmt.Errorf("summary %q: invalid effect kind %q", s.Name, e.Kind)
			}
			if e.Width == 0 {
				return nil, fmt.Errorf("summary %q: zero-width effect", s.Name)
			}
		}
	}
	return NewTable(file.Summaries)
}

// LoadFile reads a summary table from a YAML file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
