package engine

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/ivsim/timing/bpred"
	"github.com/sarchlab/ivsim/timing/core"
)

const (
	statsBegin = "---------- Begin Simulation Statistics ----------"
	statsEnd   = "---------- End Simulation Statistics   ----------"
	// ticksPerSecond follows the picosecond tick of gem5.
	ticksPerSecond = 1e12
)

// cpuSnapshot is the statistics of one CPU at dump time.
type cpuSnapshot struct {
	name  string
	stats core.Stats
	bp    bpred.Stats
}

// snapshot is one statistics block.
type snapshot struct {
	cycles      uint64
	finalCycle  uint64
	freq        float64
	hostSeconds float64
	cpus        []cpuSnapshot
}

func (e *Engine) snapshot() snapshot {
	s := snapshot{
		cycles:      e.cycle - e.resetCycle,
		finalCycle:  e.cycle,
		freq:        float64(e.system.CPUFreq),
		hostSeconds: e.now().Sub(e.resetHost).Seconds(),
	}

	for _, c := range e.cores {
		s.cpus = append(s.cpus, cpuSnapshot{
			name:  c.CPU().Name(),
			stats: c.Stats(),
			bp:    c.CPU().BranchPred.Stats(),
		})
	}

	return s
}

type statsWriter struct {
	w   *bufio.Writer
	err error
}

func (sw *statsWriter) line(name string, value any, desc string) {
	if sw.err != nil {
		return
	}

	var v string
	switch x := value.(type) {
	case float64:
		v = fmt.Sprintf("%.6f", x)
	default:
		v = fmt.Sprintf("%v", x)
	}

	_, sw.err = fmt.Fprintf(sw.w, "%-50s %20s  # %s\n", name, v, desc)
}

func writeStats(w io.Writer, s snapshot) error {
	sw := &statsWriter{w: bufio.NewWriter(w)}

	simSeconds := float64(s.cycles) / s.freq
	_, sw.err = fmt.Fprintf(sw.w, "\n%s\n", statsBegin)
	sw.line("simSeconds", simSeconds, "Number of seconds simulated (Second)")
	sw.line("simTicks", uint64(simSeconds*ticksPerSecond+0.5),
		"Number of ticks simulated (Tick)")
	sw.line("simCycles", s.cycles, "Number of cycles simulated since the last reset (Cycle)")
	sw.line("finalCycle", s.finalCycle, "Number of cycles simulated in total (Cycle)")
	sw.line("hostSeconds", s.hostSeconds, "Real time elapsed on the host (Second)")

	for _, c := range s.cpus {
		st := c.stats
		p := c.name + "."
		sw.line(p+"numCycles", st.Cycles, "Number of cpu cycles simulated (Cycle)")
		sw.line(p+"idleCycles", st.IdleCycles, "Cycles without a committed instruction (Cycle)")
		sw.line(p+"fetch.insts", st.Fetched, "Number of instructions fetched (Count)")
		sw.line(p+"fetch.stallCycles", st.FetchStallCycles, "Cycles no thread could fetch (Cycle)")
		sw.line(p+"decode.insts", st.Decoded, "Number of instructions decoded (Count)")
		sw.line(p+"iew.issuedInsts", st.Issued, "Number of instructions issued (Count)")
		sw.line(p+"iew.executedInsts", st.Executed, "Number of instructions executed (Count)")
		sw.line(p+"iew.memStallCycles", st.MemStallCycles, "Cycles execute waited on memory (Cycle)")
		sw.line(p+"commit.insts", st.Committed, "Number of instructions committed (Count)")
		for t, n := range st.CommittedPerThread {
			sw.line(fmt.Sprintf("%scommit.insts::thread%d", p, t), n,
				"Number of instructions committed per thread (Count)")
		}
		sw.line(p+"ipc", st.IPC(), "IPC: instructions per cycle ((Count/Cycle))")
		sw.line(p+"cpi", st.CPI(), "CPI: cycles per instruction ((Cycle/Count))")
		sw.line(p+"branchPred.lookups", c.bp.Predictions, "Number of BP lookups (Count)")
		sw.line(p+"branchPred.condPredicted", st.Branches, "Number of conditional branches predicted (Count)")
		sw.line(p+"branchPred.condIncorrect", st.BranchMispredicts,
			"Number of conditional branches incorrect (Count)")
		sw.line(p+"branchPred.mispredicted", c.bp.Mispredictions, "Number of mispredicted branches (Count)")
		sw.line(p+"branchPred.accuracy", c.bp.Accuracy(), "Correct predictions ((Ratio) %)")
		sw.line(p+"branchPred.mispredictRate", c.bp.MispredictionRate(), "Mispredicted predictions ((Ratio) %)")
		sw.line(p+"branchPred.BTBHits", c.bp.BTBHits, "Number of BTB hits (Count)")
		sw.line(p+"branchPred.BTBMisses", c.bp.BTBMisses, "Number of BTB misses (Count)")
		sw.line(p+"lsq.loads", st.Loads, "Number of loads executed (Count)")
		sw.line(p+"lsq.stores", st.Stores, "Number of stores executed (Count)")
		sw.line(p+"dcache.hits", st.DCacheHits, "Number of data cache hits (Count)")
		sw.line(p+"dcache.misses", st.DCacheMisses, "Number of data cache misses (Count)")
		sw.line(p+"dcache.replacements", st.DCacheEvictions, "Number of valid blocks replaced (Count)")
		sw.line(p+"dcache.writebacks", st.DCacheWritebacks, "Number of dirty blocks written back (Count)")
	}

	if sw.err == nil {
		_, sw.err = fmt.Fprintf(sw.w, "\n%s\n\n", statsEnd)
	}
	if sw.err != nil {
		return sw.err
	}

	return sw.w.Flush()
}
