package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/bpred"
)

// ConfigurationError reports pipeline parameters that cannot be applied.
type ConfigurationError struct {
	// CPU is the ID of the offending CPU, or -1 when the error does not
	// depend on a particular CPU.
	CPU    int
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.CPU < 0 {
		return fmt.Sprintf("invalid pipeline configuration: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid pipeline configuration for cpu%d: %s %s",
		e.CPU, e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// check verifies that config can be applied to cpu without touching it.
func check(cpu *system.CPU, config Config) error {
	if cpu == nil {
		return &ConfigurationError{CPU: -1, Field: "cpu", Reason: "is nil"}
	}

	if cpu.Frozen() {
		return &ConfigurationError{
			CPU:    cpu.ID,
			Field:  "cpu",
			Reason: "is already instantiated",
		}
	}

	if err := config.Validate(); err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			ce.CPU = cpu.ID
		}
		return err
	}

	class := cpu.Class
	if config.ThreadCount > 1 && !class.SupportsMultithreading() {
		return &ConfigurationError{
			CPU:   cpu.ID,
			Field: "thread_count",
			Reason: fmt.Sprintf("%d requires multithreading, which %s does not support",
				config.ThreadCount, class.Name),
		}
	}

	if config.ThreadCount > class.MaxThreads {
		return &ConfigurationError{
			CPU:   cpu.ID,
			Field: "thread_count",
			Reason: fmt.Sprintf("%d exceeds the %s maximum of %d",
				config.ThreadCount, class.Name, class.MaxThreads),
		}
	}

	return nil
}

// Configure applies config to cpu. All checks run before the CPU is touched,
// so a failed call leaves the CPU unchanged.
func Configure(cpu *system.CPU, config Config) error {
	if err := check(cpu, config); err != nil {
		return err
	}

	predictor, err := bpred.New(config.BranchPredictor)
	if err != nil {
		return &ConfigurationError{
			CPU:    cpu.ID,
			Field:  "branch_predictor",
			Reason: err.Error(),
			Err:    err,
		}
	}

	apply(cpu, config, predictor)

	return nil
}

func apply(cpu *system.CPU, config Config, predictor bpred.Predictor) {
	cpu.FetchWidth = config.FetchWidth
	cpu.DecodeWidth = config.DecodeWidth
	cpu.IssueWidth = config.IssueWidth
	cpu.ExecuteWidth = config.ExecuteWidth
	cpu.CommitWidth = config.CommitWidth

	cpu.BranchPred = predictor
	cpu.NumThreads = config.ThreadCount

	switch config.TraceGranularity {
	case TracePerCycle:
		cpu.Tracer = true
		cpu.ProgressInterval = 1
	default:
		cpu.Tracer = false
		cpu.ProgressInterval = 0
	}
}

// ConfigureSystem configures every CPU of s. Multithreading is enabled on
// CPU 0 only; the other CPUs run one thread. A multithreaded CPU 0 runs every
// process of the system. Every CPU is checked before any is modified.
func ConfigureSystem(s *system.System, config Config) error {
	if s == nil || len(s.CPUs) == 0 {
		return &ConfigurationError{CPU: -1, Field: "system", Reason: "has no CPUs"}
	}

	configs := make([]Config, len(s.CPUs))
	for i, cpu := range s.CPUs {
		c := config.Clone()
		if i > 0 {
			c.ThreadCount = 1
		}
		if err := check(cpu, c); err != nil {
			return err
		}
		configs[i] = c
	}

	if config.ThreadCount > 1 && len(s.Processes) > 1 &&
		len(s.Processes) > config.ThreadCount {
		return &ConfigurationError{
			CPU:   s.CPUs[0].ID,
			Field: "thread_count",
			Reason: fmt.Sprintf("%d is too small for %d workload processes",
				config.ThreadCount, len(s.Processes)),
		}
	}

	predictors := make([]bpred.Predictor, len(s.CPUs))
	for i := range s.CPUs {
		p, err := bpred.New(configs[i].BranchPredictor)
		if err != nil {
			return &ConfigurationError{
				CPU:    s.CPUs[i].ID,
				Field:  "branch_predictor",
				Reason: err.Error(),
				Err:    err,
			}
		}
		predictors[i] = p
	}

	for i, cpu := range s.CPUs {
		apply(cpu, configs[i], predictors[i])
	}

	if config.ThreadCount > 1 {
		s.CPUs[0].Workloads = append([]*system.Process(nil), s.Processes...)
	}

	return nil
}
