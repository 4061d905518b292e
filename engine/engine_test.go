package engine_test

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ivsim/engine"
	"github.com/sarchlab/ivsim/system"
	"github.com/sarchlab/ivsim/timing/pipeline"
)

// statValue returns the value of name in the last statistics block of text.
func statValue(text, name string) string {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(name) + `\s+(\S+)\s+#`)
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

var _ = Describe("Engine", func() {
	var (
		outDir string
		sys    *system.System
		config pipeline.Config
	)

	buildSystem := func(cpus int) *system.System {
		procs, _, err := system.ParseWorkloads("hello", false, system.DerivO3CPU)
		Expect(err).NotTo(HaveOccurred())
		s, err := system.MakeBuilder().
			WithNumCPUs(cpus).
			WithProcesses(procs).
			Build()
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	readStats := func() string {
		data, err := os.ReadFile(filepath.Join(outDir, engine.StatsFileName))
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	BeforeEach(func() {
		outDir = filepath.Join(GinkgoT().TempDir(), "m5out")
		sys = buildSystem(2)
		config = pipeline.DefaultConfig()
	})

	Context("before instantiation", func() {
		It("should refuse to be driven", func() {
			e := engine.New(sys, engine.WithOutputDir(outDir))
			Expect(errors.Is(e.Advance(10), engine.ErrNotInstantiated)).To(BeTrue())
			Expect(errors.Is(e.DumpStats(), engine.ErrNotInstantiated)).To(BeTrue())
			Expect(errors.Is(e.ResetStats(), engine.ErrNotInstantiated)).To(BeTrue())
		})

		It("should refuse a cache line too large for the data cache", func() {
			procs, _, err := system.ParseWorkloads("hello", false, system.DerivO3CPU)
			Expect(err).NotTo(HaveOccurred())
			s, err := system.MakeBuilder().
				WithProcesses(procs).
				WithCacheLineSize(32768).
				Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(pipeline.ConfigureSystem(s, config)).To(Succeed())

			e := engine.New(s, engine.WithOutputDir(outDir))
			err = e.Instantiate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("data cache"))
			Expect(s.CPUs[0].Frozen()).To(BeFalse())

			Expect(func() {
				Expect(errors.Is(e.Advance(100), engine.ErrNotInstantiated)).To(BeTrue())
			}).NotTo(Panic())
		})

		It("should refuse an unconfigured system", func() {
			e := engine.New(sys, engine.WithOutputDir(outDir))
			Expect(e.Instantiate()).NotTo(Succeed())
			Expect(sys.CPUs[0].Frozen()).To(BeFalse())
		})
	})

	Context("after instantiation", func() {
		var e *engine.Engine

		BeforeEach(func() {
			Expect(pipeline.ConfigureSystem(sys, config)).To(Succeed())
			e = engine.New(sys, engine.WithOutputDir(outDir))
			Expect(e.Instantiate()).To(Succeed())
		})

		AfterEach(func() {
			Expect(e.Close()).To(Succeed())
		})

		It("should freeze the configuration", func() {
			for _, cpu := range sys.CPUs {
				Expect(cpu.Frozen()).To(BeTrue())
			}
			Expect(pipeline.Configure(sys.CPUs[0], config)).NotTo(Succeed())
		})

		It("should refuse a second instantiation", func() {
			Expect(errors.Is(e.Instantiate(), engine.ErrAlreadyInstantiated)).To(BeTrue())
		})

		It("should advance every core by exactly the requested cycles", func() {
			Expect(e.Advance(10)).To(Succeed())
			Expect(e.Advance(10)).To(Succeed())

			Expect(e.Cycle()).To(Equal(uint64(20)))
			Expect(e.Cores()).To(HaveLen(2))
			for _, c := range e.Cores() {
				Expect(c.Cycle()).To(Equal(uint64(20)))
			}
		})

		It("should not move time on a zero-cycle advance", func() {
			Expect(e.Advance(0)).To(Succeed())
			Expect(e.Cycle()).To(BeZero())
		})

		It("should append one block per dump", func() {
			Expect(e.Advance(10)).To(Succeed())
			Expect(e.DumpStats()).To(Succeed())
			Expect(e.DumpStats()).To(Succeed())

			text := readStats()
			Expect(strings.Count(text, "Begin Simulation Statistics")).To(Equal(2))
			Expect(strings.Count(text, "End Simulation Statistics")).To(Equal(2))
			Expect(statValue(text, "simCycles")).To(Equal("10"))
			Expect(statValue(text, "system.cpu1.numCycles")).To(Equal("10"))
			Expect(statValue(text, "simTicks")).To(Equal("10000"))
		})

		It("should report branch and data cache counters", func() {
			Expect(e.Advance(200)).To(Succeed())
			Expect(e.DumpStats()).To(Succeed())

			text := readStats()
			lookups := statValue(text, "system.cpu0.branchPred.lookups")
			Expect(lookups).NotTo(Equal("0"))
			Expect(statValue(text, "system.cpu0.branchPred.condPredicted")).To(Equal(lookups))
			Expect(statValue(text, "system.cpu0.branchPred.condIncorrect")).
				To(Equal(statValue(text, "system.cpu0.branchPred.mispredicted")))
			Expect(statValue(text, "system.cpu0.branchPred.accuracy")).NotTo(BeEmpty())
			Expect(statValue(text, "system.cpu0.branchPred.mispredictRate")).NotTo(BeEmpty())
			Expect(statValue(text, "system.cpu0.branchPred.BTBHits")).To(Equal("0"))
			Expect(statValue(text, "system.cpu0.dcache.replacements")).NotTo(BeEmpty())
			Expect(statValue(text, "system.cpu0.dcache.writebacks")).NotTo(BeEmpty())
		})

		It("should report only the activity since the last reset", func() {
			Expect(e.Advance(10)).To(Succeed())
			Expect(e.ResetStats()).To(Succeed())
			Expect(e.Advance(5)).To(Succeed())
			Expect(e.DumpStats()).To(Succeed())

			text := readStats()
			Expect(statValue(text, "simCycles")).To(Equal("5"))
			Expect(statValue(text, "finalCycle")).To(Equal("15"))
			Expect(statValue(text, "system.cpu0.numCycles")).To(Equal("5"))
		})

		It("should write a per-cycle trace", func() {
			Expect(e.Advance(3)).To(Succeed())
			Expect(e.Advance(0)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(outDir, engine.TraceFileName))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("2: system.cpu1:"))
		})

		It("should be safe to close twice", func() {
			Expect(e.Close()).To(Succeed())
			Expect(e.Close()).To(Succeed())
		})
	})

	It("should not create a trace with coarse granularity", func() {
		config.TraceGranularity = pipeline.TraceCoarse
		Expect(pipeline.ConfigureSystem(sys, config)).To(Succeed())

		e := engine.New(sys, engine.WithOutputDir(outDir))
		Expect(e.Instantiate()).To(Succeed())
		Expect(e.Advance(3)).To(Succeed())
		Expect(e.Close()).To(Succeed())

		_, err := os.Stat(filepath.Join(outDir, engine.TraceFileName))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
