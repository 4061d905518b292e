// Package core provides the per-CPU component of the reference engine.
//
// A Core is an Akita ticking component that pushes a synthetic instruction
// stream through a fetch/decode/issue/execute/commit pipeline whose stage
// throughput is limited by the widths configured on its CPU. It models no
// instruction semantics; it only produces plausible per-stage counters.
package core

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/cache"
	"github.com/sarchlab/ivsim/timing/latency"
)

// Stats holds performance statistics for the core since the last reset.
type Stats struct {
	// Cycles is the number of cycles simulated.
	Cycles uint64
	// Fetched, Decoded, Issued, Executed and Committed count the
	// instructions that passed each stage.
	Fetched   uint64
	Decoded   uint64
	Issued    uint64
	Executed  uint64
	Committed uint64
	// CommittedPerThread splits Committed by hardware thread.
	CommittedPerThread []uint64
	// IdleCycles is the number of cycles in which nothing committed.
	IdleCycles uint64
	// MemStallCycles is the number of cycles execute waited on a miss.
	MemStallCycles uint64
	// FetchStallCycles is the number of cycles no thread could fetch.
	FetchStallCycles uint64
	Loads            uint64
	Stores           uint64
	Branches         uint64
	// BranchMispredicts is the number of branches whose direction was
	// mispredicted.
	BranchMispredicts uint64
	DCacheHits        uint64
	DCacheMisses      uint64
	DCacheEvictions   uint64
	DCacheWritebacks  uint64
}

// IPC returns the committed instructions per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Committed) / float64(s.Cycles)
}

// CPI returns the cycles per committed instruction.
func (s Stats) CPI() float64 {
	if s.Committed == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Committed)
}

type thread struct {
	stream     *stream
	fetchStall uint64
}

// Core simulates one CPU.
type Core struct {
	*sim.TickingComponent

	cpu    *system.CPU
	table  *latency.Table
	dcache *cache.Cache
	trace  io.Writer

	threads []*thread
	bufCap  int

	// Instructions waiting between stages.
	fetchQ  int
	decodeQ int
	issueQ  int
	commitQ int

	execStall   uint64
	fetchRR     int
	execRR      int
	commitRR    int
	cycle       uint64
	targetCycle uint64

	stats Stats
}

// CPU returns the simulated CPU the core belongs to.
func (c *Core) CPU() *system.CPU {
	return c.cpu
}

// Cycle returns the number of cycles simulated since the core was built.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Advance lets the core run for n more cycles once the engine runs.
func (c *Core) Advance(n uint64) {
	if n == 0 {
		return
	}
	c.targetCycle += n
	c.TickLater()
}

// Tick simulates one cycle. It reports false once the target cycle is
// reached so the engine runs out of events.
func (c *Core) Tick() bool {
	if c.cycle >= c.targetCycle {
		return false
	}

	c.step()
	c.cycle++

	return c.cycle < c.targetCycle
}

// Stats returns statistics accumulated since the last reset.
func (c *Core) Stats() Stats {
	s := c.stats
	s.CommittedPerThread = append([]uint64(nil), c.stats.CommittedPerThread...)
	ds := c.dcache.Stats()
	s.DCacheHits = ds.Hits
	s.DCacheMisses = ds.Misses
	s.DCacheEvictions = ds.Evictions
	s.DCacheWritebacks = ds.Writebacks
	return s
}

// ResetStats zeroes the statistics of the core, its predictor and its data
// cache. Queued instructions, predictor tables and cache contents are kept.
func (c *Core) ResetStats() {
	c.stats = Stats{CommittedPerThread: make([]uint64, len(c.threads))}
	c.cpu.BranchPred.ResetStats()
	c.dcache.ResetStats()
}

func (c *Core) step() {
	committed := c.commit()
	c.execute()
	c.issue()
	c.decode()
	c.fetch()

	for _, t := range c.threads {
		if t.fetchStall > 0 {
			t.fetchStall--
		}
	}

	c.stats.Cycles++
	if committed == 0 {
		c.stats.IdleCycles++
	}

	c.traceCycle(committed)
}

func (c *Core) commit() int {
	n := min(c.cpu.CommitWidth, c.commitQ)
	for i := 0; i < n; i++ {
		c.stats.CommittedPerThread[c.commitRR]++
		c.commitRR = (c.commitRR + 1) % len(c.threads)
	}
	c.commitQ -= n
	c.stats.Committed += uint64(n)
	return n
}

func (c *Core) execute() {
	if c.execStall > 0 {
		c.execStall--
		c.stats.MemStallCycles++
		return
	}

	for i := 0; i < c.cpu.ExecuteWidth && c.issueQ > 0; i++ {
		t := c.threads[c.execRR]
		c.execRR = (c.execRR + 1) % len(c.threads)

		in := t.stream.next()
		c.issueQ--
		c.commitQ++
		c.stats.Executed++

		if c.executeOne(t, in) {
			break
		}
	}
}

// executeOne reports whether the execute stage must stop for this cycle.
func (c *Core) executeOne(t *thread, in synthInst) bool {
	if c.table.IsMemoryOp(in.op) {
		var res cache.AccessResult
		if in.op == latency.OpLoad {
			c.stats.Loads++
			res = c.dcache.Read(in.addr)
		} else {
			c.stats.Stores++
			res = c.dcache.Write(in.addr)
		}

		if !res.Hit && !c.cpu.Class.OutOfOrder {
			c.execStall = c.table.MissLatency() - c.table.Latency(in.op)
			return true
		}
		return false
	}

	if in.op == latency.OpBranch {
		c.stats.Branches++
		pred := c.cpu.BranchPred.Predict(in.pc)
		c.cpu.BranchPred.Update(in.pc, in.taken, in.target)
		if pred.Taken != in.taken {
			c.stats.BranchMispredicts++
			t.fetchStall = c.table.MispredictPenalty()
		}
	}

	return false
}

func (c *Core) issue() {
	n := min(c.cpu.IssueWidth, c.decodeQ, c.bufCap-c.issueQ)
	c.decodeQ -= n
	c.issueQ += n
	c.stats.Issued += uint64(n)
}

func (c *Core) decode() {
	n := min(c.cpu.DecodeWidth, c.fetchQ, c.bufCap-c.decodeQ)
	c.fetchQ -= n
	c.decodeQ += n
	c.stats.Decoded += uint64(n)
}

func (c *Core) fetch() {
	for i := 0; i < len(c.threads); i++ {
		idx := (c.fetchRR + i) % len(c.threads)
		if c.threads[idx].fetchStall > 0 {
			continue
		}

		c.fetchRR = (idx + 1) % len(c.threads)
		n := min(c.cpu.FetchWidth, c.bufCap-c.fetchQ)
		c.fetchQ += n
		c.stats.Fetched += uint64(n)
		return
	}

	c.stats.FetchStallCycles++
}

func (c *Core) traceCycle(committed int) {
	if c.trace == nil || !c.cpu.Tracer || c.cpu.ProgressInterval == 0 {
		return
	}
	if c.cycle%c.cpu.ProgressInterval != 0 {
		return
	}

	fmt.Fprintf(c.trace,
		"%d: %s: fetchQ=%d decodeQ=%d issueQ=%d commitQ=%d committed=%d\n",
		c.cycle, c.cpu.Name(), c.fetchQ, c.decodeQ, c.issueQ, c.commitQ, committed)
}
