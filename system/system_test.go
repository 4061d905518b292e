package system_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/ivsim/system"
)

var _ = Describe("CPU classes", func() {
	It("should look up registered classes by name", func() {
		class, err := system.LookupCPUClass("DerivO3CPU")
		Expect(err).NotTo(HaveOccurred())
		Expect(class.OutOfOrder).To(BeTrue())
		Expect(class.SupportsMultithreading()).To(BeTrue())
	})

	It("should report in-order classes as single-threaded", func() {
		Expect(system.MinorCPU.SupportsMultithreading()).To(BeFalse())
		Expect(system.TimingSimpleCPU.SupportsMultithreading()).To(BeFalse())
	})

	It("should reject unknown classes", func() {
		_, err := system.LookupCPUClass("X86KvmCPU")
		Expect(errors.Is(err, system.ErrUnknownCPUClass)).To(BeTrue())
	})
})

var _ = Describe("CPU", func() {
	It("should start unconfigured and unfrozen", func() {
		cpu := system.NewCPU(3, system.DerivO3CPU)
		Expect(cpu.Name()).To(Equal("system.cpu3"))
		Expect(cpu.NumThreads).To(Equal(1))
		Expect(cpu.Configured()).To(BeFalse())
		Expect(cpu.Frozen()).To(BeFalse())

		cpu.Freeze()
		Expect(cpu.Frozen()).To(BeTrue())
	})
})

var _ = Describe("ParseWorkloads", func() {
	It("should split commands and assign PIDs from 100", func() {
		procs, threads, err := system.ParseWorkloads("bin/a;bin/b", false, system.DerivO3CPU)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).To(Equal(1))
		Expect(procs).To(HaveLen(2))
		Expect(procs[0].PID).To(Equal(100))
		Expect(procs[1].PID).To(Equal(101))
		Expect(procs[1].Executable).To(Equal("bin/b"))
		Expect(procs[1].Cmd).To(Equal([]string{"bin/b"}))
		Expect(procs[0].Cwd).NotTo(BeEmpty())
	})

	It("should use one thread per process with SMT", func() {
		_, threads, err := system.ParseWorkloads("a;b;c", true, system.DerivO3CPU)
		Expect(err).NotTo(HaveOccurred())
		Expect(threads).To(Equal(3))
	})

	It("should refuse SMT on in-order classes", func() {
		_, _, err := system.ParseWorkloads("a;b", true, system.MinorCPU)
		Expect(errors.Is(err, system.ErrSMTUnsupported)).To(BeTrue())
	})

	It("should refuse an empty command", func() {
		_, _, err := system.ParseWorkloads(" ; ", false, system.MinorCPU)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Builder", func() {
	var procs []*system.Process

	BeforeEach(func() {
		var err error
		procs, _, err = system.ParseWorkloads("a;b", false, system.DerivO3CPU)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should assign process i to CPU i", func() {
		s, err := system.MakeBuilder().
			WithNumCPUs(2).
			WithProcesses(procs).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.CPUs).To(HaveLen(2))
		Expect(s.CPUs[0].Workloads).To(Equal([]*system.Process{procs[0]}))
		Expect(s.CPUs[1].Workloads).To(Equal([]*system.Process{procs[1]}))
		Expect(s.MemMode).To(Equal(system.MemModeTiming))
		Expect(s.CPUFreq).To(Equal(1 * sim.GHz))
	})

	It("should share a single process between CPUs", func() {
		s, err := system.MakeBuilder().
			WithNumCPUs(3).
			WithProcesses(procs[:1]).
			Build()
		Expect(err).NotTo(HaveOccurred())
		for _, cpu := range s.CPUs {
			Expect(cpu.Workloads).To(Equal([]*system.Process{procs[0]}))
		}
	})

	It("should use atomic memory for atomic CPUs", func() {
		s, err := system.MakeBuilder().
			WithCPUClass(system.AtomicSimpleCPU).
			WithProcesses(procs[:1]).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.MemMode).To(Equal(system.MemModeAtomic))
	})

	It("should reject too few processes", func() {
		_, err := system.MakeBuilder().
			WithNumCPUs(3).
			WithProcesses(procs).
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject a bad cache line size", func() {
		_, err := system.MakeBuilder().
			WithProcesses(procs).
			WithCacheLineSize(48).
			Build()
		Expect(err).To(HaveOccurred())
	})
})
