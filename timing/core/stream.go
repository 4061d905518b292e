package core

import "github.com/sarchlab/ivsim/timing/latency"

const (
	textBase      = 0x400000
	dataBase      = 0x10000000
	branchSites   = 16
	hotSetBytes   = 48 * 1024
	coldSetBytes  = 4 * 1024 * 1024
	hotAccessPct  = 90
	takenBiasPct  = 90
	loadPct       = 20
	storePct      = 10
	branchPct     = 15
	branchSiteGap = 64
)

// synthInst is one instruction drawn from a synthetic stream.
type synthInst struct {
	op     latency.OpClass
	pc     uint64
	addr   uint64
	taken  bool
	target uint64
}

// stream generates a deterministic instruction mix for one hardware thread.
// Even-numbered branch sites are mostly taken and odd ones mostly not taken,
// so history-based predictors can learn them.
type stream struct {
	state uint64
	pc    uint64
}

func newStream(seed uint64) *stream {
	return &stream{
		state: seed*0x9E3779B97F4A7C15 | 1,
		pc:    textBase,
	}
}

// xorshift64
func (s *stream) rand() uint64 {
	x := s.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.state = x
	return x
}

func (s *stream) next() synthInst {
	r := s.rand()
	kind := r % 100

	var in synthInst
	switch {
	case kind < loadPct:
		in = synthInst{op: latency.OpLoad, pc: s.pc, addr: s.dataAddr()}
	case kind < loadPct+storePct:
		in = synthInst{op: latency.OpStore, pc: s.pc, addr: s.dataAddr()}
	case kind < loadPct+storePct+branchPct:
		site := (r >> 8) % branchSites
		biasTaken := (r>>16)%100 < takenBiasPct
		in = synthInst{
			op:     latency.OpBranch,
			pc:     textBase + site*branchSiteGap,
			taken:  biasTaken == (site%2 == 0),
			target: textBase + site*branchSiteGap + 0x100,
		}
	default:
		in = synthInst{op: latency.OpALU, pc: s.pc}
	}

	s.pc += 4
	return in
}

func (s *stream) dataAddr() uint64 {
	r := s.rand()
	if r%100 < hotAccessPct {
		return dataBase + (r>>8)%hotSetBytes&^7
	}
	return dataBase + (r>>8)%coldSetBytes&^7
}
