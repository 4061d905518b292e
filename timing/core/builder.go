package core

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/cache"
	"github.com/sarchlab/ivsim/timing/latency"
)

// Builder creates Cores.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	table       *latency.Table
	cacheConfig cache.Config
	trace       io.Writer
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:        1 * sim.GHz,
		table:       latency.NewTable(),
		cacheConfig: cache.DefaultL1DConfig(),
	}
}

// WithEngine sets the engine the core schedules its ticks on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the clock frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLatencyTable sets the operation latencies.
func (b Builder) WithLatencyTable(table *latency.Table) Builder {
	b.table = table
	return b
}

// WithCacheConfig sets the L1 data cache geometry.
func (b Builder) WithCacheConfig(config cache.Config) Builder {
	b.cacheConfig = config
	return b
}

// WithTraceWriter sets where per-cycle progress records go. Records are only
// written for CPUs with tracing enabled.
func (b Builder) WithTraceWriter(w io.Writer) Builder {
	b.trace = w
	return b
}

// Build creates the core of a configured CPU.
func (b Builder) Build(cpu *system.CPU) (*Core, error) {
	if b.engine == nil {
		return nil, fmt.Errorf("core %s: no engine", cpu.Name())
	}
	if !cpu.Configured() {
		return nil, fmt.Errorf("core %s: CPU is not configured", cpu.Name())
	}
	if len(cpu.Workloads) == 0 {
		return nil, fmt.Errorf("core %s: no workload", cpu.Name())
	}

	dcache, err := cache.New(b.cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("core %s: %w", cpu.Name(), err)
	}

	c := &Core{
		cpu:    cpu,
		table:  b.table,
		dcache: dcache,
		trace:  b.trace,
		bufCap: 2 * max(cpu.FetchWidth, cpu.DecodeWidth, cpu.IssueWidth,
			cpu.ExecuteWidth, cpu.CommitWidth),
	}

	for i := 0; i < cpu.NumThreads; i++ {
		p := cpu.Workloads[i%len(cpu.Workloads)]
		seed := uint64(p.PID)<<8 | uint64(i)<<4 | uint64(cpu.ID)
		c.threads = append(c.threads, &thread{stream: newStream(seed)})
	}
	c.stats.CommittedPerThread = make([]uint64, len(c.threads))

	c.TickingComponent = sim.NewTickingComponent(
		fmt.Sprintf("System.CPU[%d]", cpu.ID), b.engine, b.freq, c)

	return c, nil
}
