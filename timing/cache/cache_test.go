package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ivsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 4KB, 4-way, 64B lines, 16 sets
		var err error
		c, err = cache.New(cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Read operations", func() {
		It("should miss on cold cache", func() {
			result := c.Read(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit on a resident block", func() {
			c.Read(0x1000)

			result := c.Read(0x1000)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
		})

		It("should hit on different addresses in same cache line", func() {
			c.Read(0x1000)
			Expect(c.Read(0x1038).Hit).To(BeTrue())
			Expect(c.Read(0x1040).Hit).To(BeFalse())
		})
	})

	Describe("Write operations", func() {
		It("should write-allocate on miss", func() {
			result := c.Write(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(c.Read(0x1000).Hit).To(BeTrue())
		})
	})

	Describe("Eviction", func() {
		It("should evict when a set is full", func() {
			c.Write(0x0000)
			c.Write(0x0400)
			c.Write(0x0800)
			c.Write(0x0C00)

			result := c.Write(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint64(0x0000)))
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should count writebacks of dirty victims only", func() {
			c.Read(0x0000)
			c.Write(0x0400)
			c.Write(0x0800)
			c.Write(0x0C00)

			c.Read(0x1000) // evicts clean 0x0000
			Expect(c.Stats().Writebacks).To(BeZero())

			c.Read(0x1400) // evicts dirty 0x0400
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})
	})

	Describe("Reset", func() {
		It("should keep resident blocks across ResetStats", func() {
			c.Read(0x2000)
			c.ResetStats()

			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Read(0x2000).Hit).To(BeTrue())
		})
	})

	It("should provide an L1D default", func() {
		config := cache.DefaultL1DConfig()
		Expect(config.Size).To(Equal(64 * 1024))
		Expect(config.Associativity).To(Equal(4))
		Expect(config.BlockSize).To(Equal(64))
		Expect(config.NumSets()).To(Equal(256))

		c, err := cache.New(config)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Config()).To(Equal(config))
	})

	DescribeTable("should reject geometries without a usable set count",
		func(size, assoc, blockSize int) {
			config := cache.Config{
				Size:          size,
				Associativity: assoc,
				BlockSize:     blockSize,
				HitLatency:    1,
				MissLatency:   10,
			}
			Expect(config.Validate()).To(HaveOccurred())

			c, err := cache.New(config)
			Expect(err).To(HaveOccurred())
			Expect(c).To(BeNil())
		},
		Entry("block larger than a way", 64*1024, 4, 32768),
		Entry("zero associativity", 4096, 0, 64),
		Entry("zero block size", 4096, 4, 0),
		Entry("non-power-of-2 block", 4096, 4, 48),
		Entry("non-power-of-2 sets", 3*4096, 4, 64),
	)
})
