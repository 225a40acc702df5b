package mcp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	memvidlogger "github.com/papercomputeco/memvid/pkg/logger"
	testutils "github.com/papercomputeco/memvid/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var memory *testutils.MockMemory

	BeforeEach(func() {
		memory = testutils.NewMockMemory()
	})

	Describe("NewServer", func() {
		It("returns an error when memory is nil", func() {
			_, err := NewServer(Config{Logger: memvidlogger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("memory is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Memory: memory})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with valid config", func() {
			server, err := NewServer(Config{Memory: memory, Logger: memvidlogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("creates an empty server in noop mode", func() {
			server, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).To(BeNil())
		})
	})
})
