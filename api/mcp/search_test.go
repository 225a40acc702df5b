package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/api/search"
	memvidlogger "github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/retriever"
	testutils "github.com/papercomputeco/memvid/pkg/utils/test"
)

var _ = Describe("Tools", func() {
	var (
		server *Server
		memory *testutils.MockMemory
		ctx    context.Context
	)

	BeforeEach(func() {
		memory = testutils.NewMockMemory(
			retriever.Result{RecordID: 3, Text: "frames hold text", Score: 0.8, FrameNumber: 1},
			retriever.Result{RecordID: 0, Text: "a", Score: 0.2, FrameNumber: 0},
		)
		var err error
		server, err = NewServer(Config{Memory: memory, Logger: memvidlogger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	textOf := func(res *mcp.CallToolResult) string {
		Expect(res.Content).To(HaveLen(1))
		tc, ok := res.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		return tc.Text
	}

	Describe("search", func() {
		It("returns structured and text output", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "frames", TopK: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].RecordID).To(Equal(3))

			var decoded search.Output
			Expect(json.Unmarshal([]byte(textOf(res)), &decoded)).To(Succeed())
			Expect(decoded.Results[0].Text).To(Equal("frames hold text"))
		})

		It("defaults topK", func() {
			_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "frames"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(2))
			Expect(memory.LastTopK()).To(Equal(search.DefaultTopK))
		})

		It("reports failures as tool errors", func() {
			memory.SearchErr = retriever.ErrNotReady
			res, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "frames"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("Search failed"))
		})

		It("reports an empty query as a tool error", func() {
			res, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})

	Describe("get_record", func() {
		It("returns the record", func() {
			res, out, err := server.handleGetRecord(ctx, nil, GetRecordInput{RecordID: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Text).To(Equal("a"))
		})

		It("reports unknown ids", func() {
			res, _, err := server.handleGetRecord(ctx, nil, GetRecordInput{RecordID: 42})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("not found"))
		})

		It("rejects negative ids", func() {
			res, _, err := server.handleGetRecord(ctx, nil, GetRecordInput{RecordID: -1})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})
})
