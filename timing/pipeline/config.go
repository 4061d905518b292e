// Package pipeline configures the per-stage widths, branch predictor,
// hardware threads and trace granularity of simulated CPUs.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ivsim/timing/bpred"
)

// TraceGranularity selects how often trace and progress records are emitted.
type TraceGranularity string

// Trace granularities.
const (
	// TracePerCycle emits a record on every simulated cycle.
	TracePerCycle TraceGranularity = "per-cycle"
	// TraceCoarse leaves tracing at the engine's default cadence.
	TraceCoarse TraceGranularity = "coarse"
)

// Valid reports whether g is a known granularity.
func (g TraceGranularity) Valid() bool {
	return g == TracePerCycle || g == TraceCoarse
}

// Config holds the pipeline parameters applied to a CPU.
type Config struct {
	FetchWidth   int `json:"fetch_width" yaml:"fetch_width"`
	DecodeWidth  int `json:"decode_width" yaml:"decode_width"`
	IssueWidth   int `json:"issue_width" yaml:"issue_width"`
	ExecuteWidth int `json:"execute_width" yaml:"execute_width"`
	CommitWidth  int `json:"commit_width" yaml:"commit_width"`

	BranchPredictor bpred.Strategy `json:"branch_predictor" yaml:"branch_predictor"`

	// ThreadCount is the number of hardware threads. Values above 1 need a
	// CPU class with multithreading support.
	ThreadCount int `json:"thread_count" yaml:"thread_count"`

	TraceGranularity TraceGranularity `json:"trace_granularity" yaml:"trace_granularity"`
}

// DefaultConfig returns a 4-wide single-threaded configuration with a static
// predictor and per-cycle tracing.
func DefaultConfig() Config {
	return Config{
		FetchWidth:       4,
		DecodeWidth:      4,
		IssueWidth:       4,
		ExecuteWidth:     4,
		CommitWidth:      4,
		BranchPredictor:  bpred.Static,
		ThreadCount:      1,
		TraceGranularity: TracePerCycle,
	}
}

// Validate checks the parameters that do not depend on the target CPU.
func (c Config) Validate() error {
	widths := []struct {
		name  string
		value int
	}{
		{"fetch_width", c.FetchWidth},
		{"decode_width", c.DecodeWidth},
		{"issue_width", c.IssueWidth},
		{"execute_width", c.ExecuteWidth},
		{"commit_width", c.CommitWidth},
	}
	for _, w := range widths {
		if w.value <= 0 {
			return &ConfigurationError{
				CPU:    -1,
				Field:  w.name,
				Reason: fmt.Sprintf("must be > 0, got %d", w.value),
			}
		}
	}

	if c.ThreadCount < 1 {
		return &ConfigurationError{
			CPU:    -1,
			Field:  "thread_count",
			Reason: fmt.Sprintf("must be >= 1, got %d", c.ThreadCount),
		}
	}

	if !c.BranchPredictor.Valid() {
		return &ConfigurationError{
			CPU:    -1,
			Field:  "branch_predictor",
			Reason: fmt.Sprintf("unsupported strategy %q", c.BranchPredictor),
			Err:    bpred.ErrUnknownStrategy,
		}
	}

	if !c.TraceGranularity.Valid() {
		return &ConfigurationError{
			CPU:    -1,
			Field:  "trace_granularity",
			Reason: fmt.Sprintf("unsupported granularity %q", c.TraceGranularity),
		}
	}

	return nil
}

// Clone returns a copy of the configuration.
func (c Config) Clone() Config {
	return c
}

// LoadConfig reads a configuration file on top of DefaultConfig. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read pipeline config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// SaveConfig writes the configuration to a JSON file.
func (c Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize pipeline config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pipeline config file: %w", err)
	}

	return nil
}

// ConfigBuilder builds a validated Config.
type ConfigBuilder struct {
	config Config
}

// MakeConfigBuilder starts from DefaultConfig.
func MakeConfigBuilder() ConfigBuilder {
	return ConfigBuilder{config: DefaultConfig()}
}

// WithConfig replaces every parameter with those of c.
func (b ConfigBuilder) WithConfig(c Config) ConfigBuilder {
	b.config = c
	return b
}

// WithWidth sets all five stage widths to w.
func (b ConfigBuilder) WithWidth(w int) ConfigBuilder {
	return b.WithWidths(w, w, w, w, w)
}

// WithWidths sets each stage width.
func (b ConfigBuilder) WithWidths(fetch, decode, issue, execute, commit int) ConfigBuilder {
	b.config.FetchWidth = fetch
	b.config.DecodeWidth = decode
	b.config.IssueWidth = issue
	b.config.ExecuteWidth = execute
	b.config.CommitWidth = commit
	return b
}

// WithBranchPredictor sets the branch predictor strategy.
func (b ConfigBuilder) WithBranchPredictor(s bpred.Strategy) ConfigBuilder {
	b.config.BranchPredictor = s
	return b
}

// WithThreadCount sets the number of hardware threads.
func (b ConfigBuilder) WithThreadCount(n int) ConfigBuilder {
	b.config.ThreadCount = n
	return b
}

// WithTraceGranularity sets the trace granularity.
func (b ConfigBuilder) WithTraceGranularity(g TraceGranularity) ConfigBuilder {
	b.config.TraceGranularity = g
	return b
}

// Build validates and returns the configuration.
func (b ConfigBuilder) Build() (Config, error) {
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}
