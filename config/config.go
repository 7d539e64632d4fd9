// Package config carries the host-supplied knobs of an analysis run.
// A config is loaded once, validated, and shared read-only.
package config

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the full set of analysis options.
type Config struct {
	// OptimisticOverlap relaxes summarized-overlap translation errors
	// into best-effort unknown-aliasing handling. Off by default; this
	// trades soundness for coverage and must be an explicit opt-in.
	OptimisticOverlap bool `yaml:"optimistic-overlap"`

	// WordSize is the byte width used to scalarize memcmp ranges.
	WordSize uint32 `yaml:"word-size"`

	// PreserveList names functions that survive call-graph pruning
	// even when unreachable from any root, together with everything
	// they transitively call.
	PreserveList []string `yaml:"preserve"`

	// WideningThreshold is how often a block may be re-entered before
	// joins turn into widenings. 0 selects the built-in default.
	WideningThreshold int `yaml:"widening-threshold"`

	// MaxOffsets bounds the cardinality of a tracked pointer offset
	// set before the object is summarized. 0 selects the built-in
	// default.
	MaxOffsets int `yaml:"max-offsets"`

	// Jobs is the number of functions analyzed concurrently. 0 selects
	// GOMAXPROCS.
	Jobs int `yaml:"jobs"`

	// TagMasks lists the masks/moduli the scalar domain recognizes as
	// tag extractions.
	TagMasks []uint64 `yaml:"tag-masks"`

	// SummaryFile points to the YAML table of external-function
	// summaries. Empty means no summaries.
	SummaryFile string `yaml:"summary-file"`

	// LogLevel selects logging verbosity (1 = errors only, 5 = trace).
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns a config with sensible defaults: 8-byte words,
// pessimistic overlap handling, warn-level logging.
func NewDefault() *Config {
	return &Config{
		WordSize: 8,
		LogLevel: int(WarnLevel),
	}
}

// Validate checks the option ranges.
func (c *Config) Validate() error {
	if c.WordSize == 0 {
		return fmt.Errorf("word-size must be positive")
	}
	if c.WideningThreshold < 0 {
		return fmt.Errorf("widening-threshold must not be negative")
	}
	if c.MaxOffsets < 0 {
		return fmt.Errorf("max-offsets must not be negative")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level %d outside [%d, %d]", c.LogLevel, ErrLevel, TraceLevel)
	}
	return nil
}

// NumJobs resolves the worker count.
func (c *Config) NumJobs() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// TagMaskSet converts the configured masks to the lookup form the
// scalar domain consumes.
func (c *Config) TagMaskSet() map[uint64]bool {
	if len(c.TagMasks) == 0 {
		return nil
	}
	m := make(map[uint64]bool, len(c.TagMasks))
	for _, mask := range c.TagMasks {
		m[mask] = true
	}
	return m
}

// Load reads a config from YAML, filling unset fields with defaults.
func Load(r io.Reader) (*Config, error) {
	c := NewDefault()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a config from a YAML file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
