// Package checkpoint drives a simulation forward in fixed-size cycle
// intervals. After every interval it dumps statistics, resets the counters
// so each interval is measured on its own, and archives the dumped file
// under a unique, timestamp and cycle qualified name.
package checkpoint

import (
	"fmt"
	"math"
)

// Default schedule: ten intervals of ten cycles.
const (
	DefaultIntervalLength = 10
	DefaultTotalBudget    = 100
)

// Schedule is the interval plan of a run.
type Schedule struct {
	// IntervalLength is the number of cycles simulated between two dumps.
	IntervalLength uint64
	// TotalBudget is the number of cycles to simulate. When it is not a
	// multiple of IntervalLength the last interval still runs in full.
	TotalBudget uint64
}

// DefaultSchedule returns the default schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		IntervalLength: DefaultIntervalLength,
		TotalBudget:    DefaultTotalBudget,
	}
}

// Validate checks that both lengths are positive and that the elapsed cycle
// count cannot overflow.
func (s Schedule) Validate() error {
	if s.IntervalLength == 0 {
		return fmt.Errorf("interval length must be > 0")
	}
	if s.TotalBudget == 0 {
		return fmt.Errorf("total cycle budget must be > 0")
	}
	if s.TotalBudget > math.MaxUint64-s.IntervalLength {
		return fmt.Errorf("total cycle budget %d with interval length %d overflows the cycle counter",
			s.TotalBudget, s.IntervalLength)
	}
	return nil
}

// Intervals returns the number of intervals the schedule runs.
func (s Schedule) Intervals() uint64 {
	if s.IntervalLength == 0 {
		return 0
	}
	n := s.TotalBudget / s.IntervalLength
	if s.TotalBudget%s.IntervalLength != 0 {
		n++
	}
	return n
}
