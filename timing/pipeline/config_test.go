package pipeline_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ivsim/timing/bpred"
	"github.com/sarchlab/ivsim/timing/pipeline"
)

var _ = Describe("Config", func() {
	It("should validate the default config", func() {
		Expect(pipeline.DefaultConfig().Validate()).To(Succeed())
	})

	It("should reject zero threads", func() {
		_, err := pipeline.MakeConfigBuilder().WithThreadCount(0).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should reject an unknown trace granularity", func() {
		_, err := pipeline.MakeConfigBuilder().
			WithTraceGranularity("every-other-cycle").
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("should build from an existing config", func() {
		base := pipeline.DefaultConfig()
		base.IssueWidth = 2

		config, err := pipeline.MakeConfigBuilder().
			WithConfig(base).
			WithBranchPredictor(bpred.AlwaysTaken).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(config.IssueWidth).To(Equal(2))
		Expect(config.FetchWidth).To(Equal(4))
		Expect(config.BranchPredictor).To(Equal(bpred.AlwaysTaken))
	})

	It("should set every width at once", func() {
		config, err := pipeline.MakeConfigBuilder().WithWidth(2).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(config.FetchWidth).To(Equal(2))
		Expect(config.CommitWidth).To(Equal(2))
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
		})

		It("should save and load JSON", func() {
			original := pipeline.DefaultConfig()
			original.DecodeWidth = 3
			original.BranchPredictor = bpred.Bimodal

			path := filepath.Join(tempDir, "pipeline.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := pipeline.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should load YAML over the defaults", func() {
			path := filepath.Join(tempDir, "pipeline.yaml")
			content := "issue_width: 8\nthread_count: 2\ntrace_granularity: coarse\n"
			Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())

			loaded, err := pipeline.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.IssueWidth).To(Equal(8))
			Expect(loaded.ThreadCount).To(Equal(2))
			Expect(loaded.TraceGranularity).To(Equal(pipeline.TraceCoarse))
			Expect(loaded.FetchWidth).To(Equal(4))
			Expect(loaded.BranchPredictor).To(Equal(bpred.Static))
		})

		It("should reject invalid values in files", func() {
			path := filepath.Join(tempDir, "bad.yml")
			Expect(os.WriteFile(path, []byte("fetch_width: 0\n"), 0644)).To(Succeed())

			_, err := pipeline.LoadConfig(path)
			var ce *pipeline.ConfigurationError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Field).To(Equal("fetch_width"))
		})

		It("should return error for malformed JSON", func() {
			path := filepath.Join(tempDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := pipeline.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})

		It("should return error for non-existent file", func() {
			_, err := pipeline.LoadConfig("/nonexistent/pipeline.json")
			Expect(err).To(HaveOccurred())
		})
	})
})
