package record_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/record"
)

var _ = Describe("Record", func() {
	Describe("New", func() {
		It("computes rune and word counts", func() {
			r := record.New(3, "héllo  wörld again", nil)
			Expect(r.ID).To(Equal(3))
			Expect(r.CharCount).To(Equal(18))
			Expect(r.WordCount).To(Equal(3))
		})

		It("does not alias the caller's metadata", func() {
			md := record.Metadata{{Key: "source", Value: "a.txt"}}
			r := record.New(0, "text", md)
			md[0].Value = "b.txt"

			v, ok := r.Metadata.Get("source")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal("a.txt"))
		})
	})

	Describe("Preview", func() {
		It("truncates on rune boundaries", func() {
			Expect(record.Preview("ääää", 2)).To(Equal("ää"))
			Expect(record.Preview("short", 100)).To(Equal("short"))
			Expect(record.Preview("abc", 0)).To(Equal(""))
		})
	})
})

var _ = Describe("Metadata", func() {
	It("preserves key order through JSON", func() {
		md := record.Metadata{
			{Key: "z", Value: "last-alpha"},
			{Key: "a", Value: int64(7)},
			{Key: "m", Value: 1.5},
			{Key: "flag", Value: true},
			{Key: "none", Value: nil},
		}

		data, err := json.Marshal(md)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"z":"last-alpha","a":7,"m":1.5,"flag":true,"none":null}`))

		var back record.Metadata
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(back).To(Equal(md))
	})

	It("rejects nested values when decoding", func() {
		var md record.Metadata
		err := json.Unmarshal([]byte(`{"a":{"b":1}}`), &md)
		Expect(err).To(MatchError(record.ErrInvalidMetadata))
	})

	It("validates scalars and duplicate keys", func() {
		Expect(record.Metadata{{Key: "a", Value: 1}}.Validate()).To(Succeed())
		Expect(record.Metadata{{Key: "a", Value: []int{1}}}.Validate()).To(MatchError(record.ErrInvalidMetadata))
		Expect(record.Metadata{{Key: "a", Value: 1}, {Key: "a", Value: 2}}.Validate()).To(MatchError(record.ErrInvalidMetadata))
	})

	It("sets values in place or appends", func() {
		md := record.Metadata{}.Set("a", 1).Set("b", 2).Set("a", 3)
		Expect(md).To(HaveLen(2))
		v, _ := md.Get("a")
		Expect(v).To(Equal(3))
	})
})

var _ = Describe("Frame payload", func() {
	It("encodes a single record as an object", func() {
		data, err := record.MarshalFrame([]record.Payload{{ID: 0, Text: "a"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"id":0,"text":"a"}`))
	})

	It("encodes several records as an array and decodes them back", func() {
		in := []record.Payload{
			{ID: 4, Text: "four"},
			{ID: 5, Text: "five", Metadata: record.Metadata{{Key: "k", Value: "v"}}},
		}
		data, err := record.MarshalFrame(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(data[0]).To(Equal(byte('[')))

		out, err := record.UnmarshalFrame(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))

		p, ok := record.Find(out, 5)
		Expect(ok).To(BeTrue())
		Expect(p.Text).To(Equal("five"))
	})

	It("produces pure ASCII and round-trips non-ASCII text byte-exact", func() {
		text := "naïve café ✓ 𝄞 日本語"
		data, err := record.MarshalFrame([]record.Payload{{ID: 1, Text: text}})
		Expect(err).NotTo(HaveOccurred())
		for _, c := range data {
			Expect(c).To(BeNumerically("<", 0x80))
		}

		out, err := record.UnmarshalFrame(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(out[0].Text).To(Equal(text))
	})

	It("rejects garbage and empty frames", func() {
		_, err := record.UnmarshalFrame([]byte("not json"))
		Expect(err).To(MatchError(record.ErrInvalidPayload))

		_, err = record.UnmarshalFrame([]byte("[]"))
		Expect(err).To(MatchError(record.ErrInvalidPayload))

		_, err = record.MarshalFrame(nil)
		Expect(err).To(MatchError(record.ErrInvalidPayload))
	})
})
