package codec_test

import (
	"bytes"
	"image"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/codec"
)

var _ = Describe("Raw codec", func() {
	var c *codec.Raw

	BeforeEach(func() {
		c = codec.NewRaw(16, 128)
	})

	It("round-trips payloads byte-exact", func() {
		payload := []byte(`{"id":0,"text":"hello frames"}`)
		img, err := c.Encode(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(16))

		out, err := c.Decode(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(payload))
	})

	It("round-trips an empty payload", func() {
		img, err := c.Encode(nil)
		Expect(err).NotTo(HaveOccurred())
		out, err := c.Decode(img)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
	})

	It("refuses payloads above capacity instead of truncating", func() {
		_, err := c.Encode(bytes.Repeat([]byte("x"), 129))
		Expect(err).To(MatchError(codec.ErrCapacity))
		Expect(c.Capacity()).To(Equal(128))
	})

	It("detects corrupted pixels", func() {
		img, err := c.Encode([]byte("some payload bytes"))
		Expect(err).NotTo(HaveOccurred())

		g := img.(*image.Gray)
		g.Pix[10] ^= 0xFF

		_, err = c.Decode(g)
		Expect(err).To(MatchError(codec.ErrDecode))
	})

	It("rejects images that are too small or nil", func() {
		_, err := c.Decode(image.NewGray(image.Rect(0, 0, 2, 2)))
		Expect(err).To(MatchError(codec.ErrDecode))

		_, err = c.Decode(nil)
		Expect(err).To(MatchError(codec.ErrDecode))
	})

	It("decodes non-gray images by converting them", func() {
		img, err := c.Encode([]byte("converted"))
		Expect(err).NotTo(HaveOccurred())

		rgba := image.NewRGBA(img.Bounds())
		g := img.(*image.Gray)
		for y := 0; y < g.Bounds().Dy(); y++ {
			for x := 0; x < g.Bounds().Dx(); x++ {
				rgba.Set(x, y, g.At(x, y))
			}
		}

		out, err := c.Decode(rgba)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("converted"))
	})
})
