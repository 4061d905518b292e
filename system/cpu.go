// Package system describes the simulated machine: CPU model classes, CPU
// instances, the processes they run, and the system that ties them together.
//
// A System is assembled and configured first, then handed to a simulation
// engine which freezes it on instantiation.
package system

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ivsim/timing/bpred"
)

// ErrUnknownCPUClass is returned when a CPU model name is not registered.
var ErrUnknownCPUClass = errors.New("unknown CPU class")

// CPUClass describes a CPU model.
type CPUClass struct {
	// Name is the model name, e.g. "DerivO3CPU".
	Name string
	// OutOfOrder reports whether the model executes out of order.
	OutOfOrder bool
	// MaxThreads is the largest number of hardware threads one core of
	// this model can run.
	MaxThreads int
	// Atomic models access memory atomically instead of with timing.
	Atomic bool
}

// SupportsMultithreading reports whether the class can run more than one
// hardware thread per core.
func (c CPUClass) SupportsMultithreading() bool {
	return c.MaxThreads > 1
}

func (c CPUClass) String() string {
	return c.Name
}

// Registered CPU classes.
var (
	AtomicSimpleCPU = CPUClass{Name: "AtomicSimpleCPU", MaxThreads: 1, Atomic: true}
	TimingSimpleCPU = CPUClass{Name: "TimingSimpleCPU", MaxThreads: 1}
	MinorCPU        = CPUClass{Name: "MinorCPU", MaxThreads: 1}
	DerivO3CPU      = CPUClass{Name: "DerivO3CPU", OutOfOrder: true, MaxThreads: 4}
)

// CPUClasses returns all registered CPU classes.
func CPUClasses() []CPUClass {
	return []CPUClass{AtomicSimpleCPU, TimingSimpleCPU, MinorCPU, DerivO3CPU}
}

// LookupCPUClass finds a registered CPU class by name.
func LookupCPUClass(name string) (CPUClass, error) {
	for _, c := range CPUClasses() {
		if c.Name == name {
			return c, nil
		}
	}
	return CPUClass{}, fmt.Errorf("%w: %q", ErrUnknownCPUClass, name)
}

// CPU is one simulated core. Its pipeline fields are written by the pipeline
// configurator and become read-only once the CPU is frozen.
type CPU struct {
	ID    int
	Class CPUClass

	FetchWidth   int
	DecodeWidth  int
	IssueWidth   int
	ExecuteWidth int
	CommitWidth  int

	// BranchPred is nil until the CPU is configured.
	BranchPred bpred.Predictor

	NumThreads int
	Workloads  []*Process

	// Tracer enables the execution trace.
	Tracer bool
	// ProgressInterval is the number of cycles between trace records; 0
	// disables periodic records.
	ProgressInterval uint64

	frozen bool
}

// NewCPU creates an unconfigured single-threaded CPU.
func NewCPU(id int, class CPUClass) *CPU {
	return &CPU{
		ID:         id,
		Class:      class,
		NumThreads: 1,
	}
}

// Name returns the hierarchical name of the CPU, e.g. "system.cpu0".
func (c *CPU) Name() string {
	return fmt.Sprintf("system.cpu%d", c.ID)
}

// Configured reports whether a branch predictor and widths have been set.
func (c *CPU) Configured() bool {
	return c.BranchPred != nil &&
		c.FetchWidth > 0 && c.DecodeWidth > 0 && c.IssueWidth > 0 &&
		c.ExecuteWidth > 0 && c.CommitWidth > 0
}

// Freeze marks the CPU as instantiated.
func (c *CPU) Freeze() {
	c.frozen = true
}

// Frozen reports whether the CPU belongs to an instantiated simulation.
func (c *CPU) Frozen() bool {
	return c.frozen
}
