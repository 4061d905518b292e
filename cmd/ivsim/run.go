package main

import (
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/ivsim/checkpoint"
	"github.com/sarchlab/ivsim/engine"
	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/bpred"
	"github.com/sarchlab/ivsim/timing/latency"
	"github.com/sarchlab/ivsim/timing/pipeline"
)

type options struct {
	cmd             string
	cpuType         string
	numCPUs         int
	smt             bool
	cpuClockGHz     float64
	cacheLineSize   int
	outDir          string
	interval        uint64
	totalCycles     uint64
	pipelineConfig  string
	timingConfig    string
	branchPredictor string
	width           int
	threads         int
	trace           string
	strictSnapshots bool
	cpuProfile      string
	verbose         bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "ivsim",
		Short: "Interval-driven CPU pipeline statistics",
		Long: `ivsim simulates a synthetic workload on a configurable CPU pipeline.
The simulation runs in fixed-size cycle intervals; after each interval the
statistics are dumped, reset, and archived as
<outdir>/stats_<YYYYMMDD-HHMMSS>_cycle_<n>.txt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return run(opts, out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.cmd, "cmd", "c", "", "Workload commands, separated by ';'")
	f.StringVar(&opts.cpuType, "cpu-type", system.DerivO3CPU.Name, "CPU model")
	f.IntVarP(&opts.numCPUs, "num-cpus", "n", 1, "Number of CPUs")
	f.BoolVar(&opts.smt, "smt", false, "Run every workload as a hardware thread of CPU 0")
	f.Float64Var(&opts.cpuClockGHz, "cpu-clock", 1, "CPU clock in GHz")
	f.IntVar(&opts.cacheLineSize, "cacheline-size", 64, "Cache line size in bytes")
	f.StringVarP(&opts.outDir, "outdir", "d", engine.DefaultOutputDir, "Output directory")
	f.Uint64Var(&opts.interval, "interval", checkpoint.DefaultIntervalLength, "Cycles per statistics interval")
	f.Uint64Var(&opts.totalCycles, "total-cycles", checkpoint.DefaultTotalBudget, "Total cycles to simulate")
	f.StringVar(&opts.pipelineConfig, "pipeline-config", "", "Pipeline config file (JSON or YAML)")
	f.StringVar(&opts.timingConfig, "timing-config", "", "Timing config file (JSON)")
	f.StringVar(&opts.branchPredictor, "branch-predictor", "", "Branch predictor: static, always-taken or bimodal")
	f.IntVar(&opts.width, "width", 0, "Width of every pipeline stage")
	f.IntVar(&opts.threads, "threads", 0, "Hardware threads on CPU 0")
	f.StringVar(&opts.trace, "trace", "", "Trace granularity: per-cycle or coarse")
	f.BoolVar(&opts.strictSnapshots, "strict-snapshots", false, "Fail when a statistics snapshot is missing")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the run to this file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	_ = cmd.MarkFlagRequired("cmd")

	return cmd
}

func pipelineConfig(opts *options, threads int) (pipeline.Config, error) {
	base := pipeline.DefaultConfig()
	if opts.pipelineConfig != "" {
		var err error
		base, err = pipeline.LoadConfig(opts.pipelineConfig)
		if err != nil {
			return pipeline.Config{}, err
		}
	}

	b := pipeline.MakeConfigBuilder().WithConfig(base)
	if opts.width != 0 {
		b = b.WithWidth(opts.width)
	}
	if opts.branchPredictor != "" {
		b = b.WithBranchPredictor(bpred.Strategy(opts.branchPredictor))
	}
	if opts.trace != "" {
		b = b.WithTraceGranularity(pipeline.TraceGranularity(opts.trace))
	}
	switch {
	case opts.threads != 0:
		b = b.WithThreadCount(opts.threads)
	case opts.smt:
		b = b.WithThreadCount(threads)
	}

	return b.Build()
}

func buildSystem(opts *options) (*system.System, error) {
	class, err := system.LookupCPUClass(opts.cpuType)
	if err != nil {
		return nil, err
	}

	procs, threads, err := system.ParseWorkloads(opts.cmd, opts.smt, class)
	if err != nil {
		return nil, err
	}

	s, err := system.MakeBuilder().
		WithCPUClass(class).
		WithNumCPUs(opts.numCPUs).
		WithProcesses(procs).
		WithCPUFreq(sim.Freq(opts.cpuClockGHz) * sim.GHz).
		WithCacheLineSize(opts.cacheLineSize).
		Build()
	if err != nil {
		return nil, err
	}

	config, err := pipelineConfig(opts, threads)
	if err != nil {
		return nil, err
	}

	if err := pipeline.ConfigureSystem(s, config); err != nil {
		return nil, err
	}

	return s, nil
}

func run(opts *options, out io.Writer) error {
	schedule := checkpoint.Schedule{
		IntervalLength: opts.interval,
		TotalBudget:    opts.totalCycles,
	}
	if err := schedule.Validate(); err != nil {
		return err
	}

	timing := latency.DefaultTimingConfig()
	if opts.timingConfig != "" {
		var err error
		timing, err = latency.LoadConfig(opts.timingConfig)
		if err != nil {
			return err
		}
	}

	s, err := buildSystem(opts)
	if err != nil {
		return err
	}

	if opts.cpuProfile != "" {
		stop, err := startCPUProfile(opts.cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	if opts.verbose {
		printSystem(out, s)
	}

	e := engine.New(s,
		engine.WithOutputDir(opts.outDir),
		engine.WithTimingConfig(timing),
	)
	atexit.Register(func() { _ = e.Close() })
	defer e.Close()

	if err := e.Instantiate(); err != nil {
		return err
	}

	runner := &checkpoint.Runner{
		Control:         e,
		Sink:            checkpoint.NewFileSink(e.OutputDir(), engine.StatsFileName),
		Out:             out,
		StrictSnapshots: opts.strictSnapshots,
	}

	res, err := runner.Run(schedule)
	if err != nil {
		return err
	}

	if opts.verbose {
		fmt.Fprintf(out, "Intervals: %d\n", res.Intervals)
		fmt.Fprintf(out, "Simulated cycles: %d\n", res.Elapsed)
		fmt.Fprintf(out, "Archived snapshots: %d\n", len(res.Archived))
		fmt.Fprintf(out, "Missing snapshots: %d\n", res.Missing)
	}

	return e.Close()
}

func printSystem(out io.Writer, s *system.System) {
	fmt.Fprintf(out, "Memory mode: %s\n", s.MemMode)
	fmt.Fprintf(out, "Cache line size: %d\n", s.CacheLineSize)
	for _, cpu := range s.CPUs {
		fmt.Fprintf(out, "%s: %s, widths %d/%d/%d/%d/%d, predictor %s, threads %d\n",
			cpu.Name(), cpu.Class.Name,
			cpu.FetchWidth, cpu.DecodeWidth, cpu.IssueWidth,
			cpu.ExecuteWidth, cpu.CommitWidth,
			cpu.BranchPred.Strategy(), cpu.NumThreads)
	}
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
