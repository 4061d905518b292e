// Package engine provides a reference implementation of the simulation
// control surface (instantiate, advance, dump statistics, reset statistics)
// on top of the Akita serial event engine.
//
// Statistics are appended to a single file, stats.txt, in the output
// directory, in the block format used by gem5.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/cache"
	"github.com/sarchlab/ivsim/timing/core"
	"github.com/sarchlab/ivsim/timing/latency"
)

const (
	// StatsFileName is the file every dump appends to.
	StatsFileName = "stats.txt"
	// TraceFileName is the per-cycle trace written when tracing is enabled.
	TraceFileName = "trace.out"
	// DefaultOutputDir is used when no output directory is given.
	DefaultOutputDir = "m5out"
)

var (
	// ErrNotInstantiated is returned when the simulation is driven before
	// Instantiate.
	ErrNotInstantiated = errors.New("simulation is not instantiated")
	// ErrAlreadyInstantiated is returned by a second Instantiate.
	ErrAlreadyInstantiated = errors.New("simulation is already instantiated")
)

// Option configures an Engine.
type Option func(*Engine)

// WithOutputDir sets the directory statistics and traces are written to.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outDir = dir
	}
}

// WithTimingConfig sets the operation latencies of the cores.
func WithTimingConfig(config *latency.TimingConfig) Option {
	return func(e *Engine) {
		e.timing = config
	}
}

// WithTraceWriter sends the trace to w instead of <outdir>/trace.out.
func WithTraceWriter(w io.Writer) Option {
	return func(e *Engine) {
		e.traceWriter = w
	}
}

// WithHostClock replaces the wall clock used for hostSeconds.
func WithHostClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine drives the cores of one system.
type Engine struct {
	system *system.System
	outDir string
	timing *latency.TimingConfig
	now    func() time.Time

	simEngine   sim.Engine
	cores       []*core.Core
	traceWriter io.Writer
	traceFile   *os.File

	instantiated bool
	closed       bool

	// cycle is the number of cycles simulated so far; resetCycle is the
	// cycle of the last statistics reset.
	cycle      uint64
	resetCycle uint64
	resetHost  time.Time
}

// New creates an engine for s. Nothing is built until Instantiate.
func New(s *system.System, opts ...Option) *Engine {
	e := &Engine{
		system: s,
		outDir: DefaultOutputDir,
		timing: latency.DefaultTimingConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// OutputDir returns the directory statistics are written to.
func (e *Engine) OutputDir() string {
	return e.outDir
}

// StatsPath returns the path every dump appends to.
func (e *Engine) StatsPath() string {
	return filepath.Join(e.outDir, StatsFileName)
}

// Cycle returns the number of cycles simulated so far.
func (e *Engine) Cycle() uint64 {
	return e.cycle
}

// Cores returns the per-CPU components. It is empty before Instantiate.
func (e *Engine) Cores() []*core.Core {
	return e.cores
}

// Instantiate freezes the system configuration and builds the simulation.
func (e *Engine) Instantiate() error {
	if e.instantiated {
		return ErrAlreadyInstantiated
	}
	if e.system == nil || len(e.system.CPUs) == 0 {
		return fmt.Errorf("cannot instantiate: system has no CPUs")
	}
	if err := e.timing.Validate(); err != nil {
		return fmt.Errorf("cannot instantiate: %w", err)
	}
	for _, cpu := range e.system.CPUs {
		if !cpu.Configured() {
			return fmt.Errorf("cannot instantiate: %s is not configured", cpu.Name())
		}
	}

	cacheConfig := cache.DefaultL1DConfig()
	cacheConfig.BlockSize = e.system.CacheLineSize
	cacheConfig.HitLatency = e.timing.LoadLatency
	cacheConfig.MissLatency = e.timing.MemoryLatency
	if err := cacheConfig.Validate(); err != nil {
		return fmt.Errorf("cannot instantiate: data cache: %w", err)
	}

	if err := os.MkdirAll(e.outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	e.simEngine = sim.NewSerialEngine()

	if err := e.setupTrace(); err != nil {
		return err
	}

	table := latency.NewTableWithConfig(e.timing.Clone())

	builder := core.MakeBuilder().
		WithEngine(e.simEngine).
		WithFreq(e.system.CPUFreq).
		WithLatencyTable(table).
		WithCacheConfig(cacheConfig).
		WithTraceWriter(e.traceWriter)

	for _, cpu := range e.system.CPUs {
		c, err := builder.Build(cpu)
		if err != nil {
			return fmt.Errorf("cannot instantiate: %w", err)
		}
		e.cores = append(e.cores, c)
	}

	for _, cpu := range e.system.CPUs {
		cpu.Freeze()
	}

	e.resetHost = e.now()
	e.instantiated = true

	return nil
}

func (e *Engine) tracing() bool {
	for _, cpu := range e.system.CPUs {
		if cpu.Tracer {
			return true
		}
	}
	return false
}

func (e *Engine) setupTrace() error {
	if !e.tracing() {
		e.traceWriter = nil
		return nil
	}

	if e.traceWriter == nil {
		f, err := os.Create(filepath.Join(e.outDir, TraceFileName))
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		e.traceFile = f
		e.traceWriter = f
	}

	e.simEngine.AcceptHook(sim.NewEventLogger(log.New(e.traceWriter, "", 0)))

	return nil
}

// Advance simulates n more cycles on every core. Advancing by zero cycles
// does not move time; it flushes the trace.
func (e *Engine) Advance(n uint64) error {
	if !e.instantiated {
		return ErrNotInstantiated
	}

	if n == 0 {
		return e.syncTrace()
	}

	for _, c := range e.cores {
		c.Advance(n)
	}

	if err := e.simEngine.Run(); err != nil {
		return fmt.Errorf("simulation failed at cycle %d: %w", e.cycle, err)
	}

	e.cycle += n

	return nil
}

func (e *Engine) syncTrace() error {
	if e.traceFile == nil {
		return nil
	}
	if err := e.traceFile.Sync(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	return nil
}

// DumpStats appends a statistics block to StatsPath.
func (e *Engine) DumpStats() error {
	if !e.instantiated {
		return ErrNotInstantiated
	}

	f, err := os.OpenFile(e.StatsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open stats file: %w", err)
	}

	werr := writeStats(f, e.snapshot())
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("failed to write stats: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("failed to close stats file: %w", cerr)
	}

	return nil
}

// ResetStats zeroes every counter so the next dump only covers activity
// from now on.
func (e *Engine) ResetStats() error {
	if !e.instantiated {
		return ErrNotInstantiated
	}

	for _, c := range e.cores {
		c.ResetStats()
	}
	e.resetCycle = e.cycle
	e.resetHost = e.now()

	return nil
}

// Close releases the trace file. It is safe to call more than once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.traceFile == nil {
		return nil
	}
	if err := e.traceFile.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}
