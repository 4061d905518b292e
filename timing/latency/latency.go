// Package latency provides the operation timing model of the reference
// engine.
//
// The values can be configured via TimingConfig.
package latency

// OpClass is the coarse class of a synthetic instruction.
type OpClass uint8

// Operation classes.
const (
	OpALU OpClass = iota
	OpLoad
	OpStore
	OpBranch
)

// String returns the short name of the class.
func (o OpClass) String() string {
	switch o {
	case OpALU:
		return "alu"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpBranch:
		return "branch"
	}
	return "unknown"
}

// Table provides operation latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// Latency returns the execution latency in cycles of an operation that does
// not miss in the data cache.
func (t *Table) Latency(op OpClass) uint64 {
	switch op {
	case OpALU:
		return t.config.ALULatency
	case OpBranch:
		return t.config.BranchLatency
	case OpLoad:
		return t.config.LoadLatency
	case OpStore:
		return t.config.StoreLatency
	default:
		return 1
	}
}

// MissLatency returns the latency of a data cache miss.
func (t *Table) MissLatency() uint64 {
	return t.config.MemoryLatency
}

// MispredictPenalty returns the fetch bubble after a branch misprediction.
func (t *Table) MispredictPenalty() uint64 {
	return t.config.BranchMispredictPenalty
}

// IsMemoryOp returns true if the operation accesses memory.
func (t *Table) IsMemoryOp(op OpClass) bool {
	return op == OpLoad || op == OpStore
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
