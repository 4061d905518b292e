package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Control is the simulation-control surface the runner drives.
type Control interface {
	// Advance simulates the given number of cycles and blocks until done.
	Advance(cycles uint64) error
	// DumpStats writes a statistics snapshot.
	DumpStats() error
	// ResetStats zeroes the statistics accumulators.
	ResetStats() error
}

// Result summarizes a run.
type Result struct {
	// Intervals is the number of intervals simulated.
	Intervals uint64
	// Elapsed is the number of cycles simulated. It can exceed the budget
	// by up to one interval.
	Elapsed uint64
	// Archived lists the archived snapshots in interval order.
	Archived []string
	// Missing is the number of intervals whose snapshot was not found.
	Missing int
}

// Runner runs a schedule against a Control.
type Runner struct {
	Control Control
	Sink    Sink

	// Out receives progress messages. Defaults to os.Stdout.
	Out io.Writer
	// Now stamps archive names. Defaults to time.Now.
	Now func() time.Time

	// StrictSnapshots makes a missing snapshot fatal instead of a warning.
	StrictSnapshots bool
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Run simulates the schedule interval by interval, then performs a final
// dump that is not archived and a zero-cycle advance to close the
// simulation.
func (r *Runner) Run(schedule Schedule) (Result, error) {
	var res Result

	if err := schedule.Validate(); err != nil {
		return res, err
	}

	for res.Elapsed < schedule.TotalBudget {
		interval := res.Intervals + 1

		if err := r.Control.Advance(schedule.IntervalLength); err != nil {
			return res, fmt.Errorf("interval %d: advance: %w", interval, err)
		}
		if err := r.Control.DumpStats(); err != nil {
			return res, fmt.Errorf("interval %d: dump stats: %w", interval, err)
		}
		if err := r.Control.ResetStats(); err != nil {
			return res, fmt.Errorf("interval %d: reset stats: %w", interval, err)
		}

		res.Elapsed += schedule.IntervalLength
		res.Intervals = interval

		if err := r.archive(&res); err != nil {
			return res, fmt.Errorf("interval %d: %w", interval, err)
		}
	}

	if err := r.Control.DumpStats(); err != nil {
		return res, fmt.Errorf("final dump stats: %w", err)
	}
	if err := r.Control.Advance(0); err != nil {
		return res, fmt.Errorf("close out: %w", err)
	}

	fmt.Fprintln(r.out(), "Detailed cycle-by-cycle simulation complete.")

	return res, nil
}

func (r *Runner) archive(res *Result) error {
	name := ArchiveName(r.now(), res.Elapsed)

	snap, err := r.Sink.Latest()
	if err == nil {
		var path string
		path, err = r.Sink.Take(snap, name)
		if err == nil {
			res.Archived = append(res.Archived, path)
			fmt.Fprintf(r.out(), "Stats file saved as %s\n", path)
			return nil
		}
	}

	if !errors.Is(err, ErrSnapshotMissing) || r.StrictSnapshots {
		return fmt.Errorf("archive: %w", err)
	}

	res.Missing++
	fmt.Fprintf(r.out(), "stats.txt not found in %s.\n", r.Sink.Location())

	return nil
}
