package system

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
)

// Memory modes.
const (
	MemModeTiming = "timing"
	MemModeAtomic = "atomic"
)

// System is the assembled machine handed to the simulation engine.
type System struct {
	CPUs          []*CPU
	MemMode       string
	CacheLineSize int
	CPUFreq       sim.Freq
	Processes     []*Process
}

// Builder assembles a System.
type Builder struct {
	class         CPUClass
	numCPUs       int
	processes     []*Process
	freq          sim.Freq
	cacheLineSize int
}

// MakeBuilder creates a builder with default parameters: one DerivO3CPU at
// 1 GHz with 64-byte cache lines.
func MakeBuilder() Builder {
	return Builder{
		class:         DerivO3CPU,
		numCPUs:       1,
		freq:          1 * sim.GHz,
		cacheLineSize: 64,
	}
}

// WithCPUClass sets the CPU model of every core.
func (b Builder) WithCPUClass(class CPUClass) Builder {
	b.class = class
	return b
}

// WithNumCPUs sets the number of cores.
func (b Builder) WithNumCPUs(n int) Builder {
	b.numCPUs = n
	return b
}

// WithProcesses sets the workload processes.
func (b Builder) WithProcesses(processes []*Process) Builder {
	b.processes = processes
	return b
}

// WithCPUFreq sets the CPU clock frequency.
func (b Builder) WithCPUFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithCacheLineSize sets the cache line size in bytes.
func (b Builder) WithCacheLineSize(size int) Builder {
	b.cacheLineSize = size
	return b
}

// Build creates the system. With a single process every CPU runs it;
// otherwise CPU i runs process i.
func (b Builder) Build() (*System, error) {
	if b.numCPUs <= 0 {
		return nil, fmt.Errorf("number of CPUs must be positive, got %d", b.numCPUs)
	}
	if b.cacheLineSize <= 0 || b.cacheLineSize&(b.cacheLineSize-1) != 0 {
		return nil, fmt.Errorf("cache line size must be a power of 2, got %d", b.cacheLineSize)
	}
	if b.freq <= 0 {
		return nil, fmt.Errorf("CPU frequency must be positive")
	}
	if len(b.processes) == 0 {
		return nil, fmt.Errorf("no workload processes")
	}
	if len(b.processes) > 1 && len(b.processes) < b.numCPUs {
		return nil, fmt.Errorf("%d processes for %d CPUs",
			len(b.processes), b.numCPUs)
	}

	s := &System{
		MemMode:       MemModeTiming,
		CacheLineSize: b.cacheLineSize,
		CPUFreq:       b.freq,
		Processes:     b.processes,
	}
	if b.class.Atomic {
		s.MemMode = MemModeAtomic
	}

	for i := 0; i < b.numCPUs; i++ {
		cpu := NewCPU(i, b.class)
		if len(b.processes) == 1 {
			cpu.Workloads = []*Process{b.processes[0]}
		} else {
			cpu.Workloads = []*Process{b.processes[i]}
		}
		s.CPUs = append(s.CPUs, cpu)
	}

	return s, nil
}
