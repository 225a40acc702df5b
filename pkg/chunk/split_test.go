package chunk_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/chunk"
)

var _ = Describe("Split", func() {
	It("advances each chunk by size minus overlap", func() {
		text := "0123456789ABCDEF"
		chunks, err := chunk.Split(text, 10, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"0123456789", "789ABCDEF"}))

		for i, c := range chunks {
			Expect(utf8.RuneCountInString(c)).To(BeNumerically("<=", 10))
			Expect(strings.Index(text, c)).To(Equal(i * 7))
		}
	})

	It("is deterministic across calls", func() {
		text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
		first, err := chunk.Split(text, 37, 11)
		Expect(err).NotTo(HaveOccurred())

		for range 5 {
			again, err := chunk.Split(text, 37, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(first))
		}
	})

	It("covers the whole text when overlap is zero", func() {
		chunks, err := chunk.Split("abcdefghij", 3, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"abc", "def", "ghi", "j"}))
		Expect(strings.Join(chunks, "")).To(Equal("abcdefghij"))
	})

	It("counts runes rather than bytes", func() {
		chunks, err := chunk.Split("ééééé", 2, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"éé", "éé", "éé", "éé"}))
	})

	It("returns one chunk for short text", func() {
		chunks, err := chunk.Split("abc", 10, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(Equal([]string{"abc"}))
	})

	DescribeTable("rejects invalid windows",
		func(size, overlap int) {
			_, err := chunk.Split("abc", size, overlap)
			Expect(err).To(MatchError(chunk.ErrIngest))
		},
		Entry("zero size", 0, 0),
		Entry("negative overlap", 5, -1),
		Entry("overlap equal to size", 5, 5),
		Entry("overlap above size", 5, 9),
	)
})
