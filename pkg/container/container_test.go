package container_test

import (
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/container"
)

func frame(w, h int, seed byte) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = seed + byte(i%7)
	}
	return g
}

func noisy(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range g.Pix {
		g.Pix[i] = byte(rng.UintN(256))
	}
	return g
}

func writeFrames(path string, comp container.Compression, frames ...image.Image) *container.Writer {
	w, err := container.Create(path, container.WriterOptions{Compression: comp})
	Expect(err).NotTo(HaveOccurred())
	for i, f := range frames {
		n, err := w.Append(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(i))
	}
	return w
}

var _ = Describe("Frame container", func() {
	var (
		dir  string
		path string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "memory.mvf")
	})

	DescribeTable("round-trips frames by number",
		func(comp container.Compression) {
			frames := []image.Image{frame(8, 8, 10), noisy(21, 13), frame(8, 8, 200)}
			w := writeFrames(path, comp, frames...)
			Expect(w.Commit()).To(Succeed())

			r, err := container.Open(path)
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()

			Expect(r.TotalFrames()).To(Equal(3))
			Expect(r.Compression()).To(Equal(comp))
			Expect(r.BuildID()).To(Equal(w.BuildID().String()))

			for i := 2; i >= 0; i-- {
				img, err := r.Get(i)
				Expect(err).NotTo(HaveOccurred())
				Expect(img.(*image.Gray).Pix).To(Equal(frames[i].(*image.Gray).Pix))
				Expect(img.Bounds()).To(Equal(frames[i].Bounds()))
			}
		},
		Entry("zstd", container.CompressionZSTD),
		Entry("lz4", container.CompressionLZ4),
		Entry("none", container.CompressionNone),
	)

	It("keeps the container invisible until Commit", func() {
		w := writeFrames(path, container.CompressionZSTD, frame(4, 4, 1))
		Expect(w.Finish()).To(Succeed())

		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())

		Expect(w.Commit()).To(Succeed())
		_, err = os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("leaves no trace after Abort", func() {
		w := writeFrames(path, container.CompressionLZ4, frame(4, 4, 1))
		Expect(w.Abort()).To(Succeed())

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("does not replace an existing container when a rebuild is aborted", func() {
		Expect(writeFrames(path, container.CompressionZSTD, frame(4, 4, 1)).Commit()).To(Succeed())

		w := writeFrames(path, container.CompressionZSTD, frame(4, 4, 2), frame(4, 4, 3))
		Expect(w.Abort()).To(Succeed())

		r, err := container.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		Expect(r.TotalFrames()).To(Equal(1))
	})

	It("records the provided build id", func() {
		id := uuid.New()
		w, err := container.Create(path, container.WriterOptions{BuildID: id})
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Commit()).To(Succeed())

		r, err := container.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		Expect(r.BuildID()).To(Equal(id.String()))
		Expect(r.TotalFrames()).To(BeZero())
	})

	It("rejects out-of-range frame numbers", func() {
		Expect(writeFrames(path, container.CompressionZSTD, frame(4, 4, 1)).Commit()).To(Succeed())
		r, err := container.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()

		_, err = r.Get(1)
		Expect(err).To(MatchError(container.ErrFrameRange))
		_, err = r.Get(-1)
		Expect(err).To(MatchError(container.ErrFrameRange))
	})

	It("refuses appends after Finish", func() {
		w := writeFrames(path, container.CompressionZSTD)
		Expect(w.Finish()).To(Succeed())
		_, err := w.Append(frame(2, 2, 0))
		Expect(err).To(MatchError(container.ErrClosed))
		Expect(w.Abort()).To(Succeed())
	})

	It("returns ErrClosed after Close", func() {
		Expect(writeFrames(path, container.CompressionZSTD, frame(4, 4, 1)).Commit()).To(Succeed())
		r, err := container.Open(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Close()).To(Succeed())
		_, err = r.Get(0)
		Expect(err).To(MatchError(container.ErrClosed))
	})

	Context("with a damaged file", func() {
		BeforeEach(func() {
			Expect(writeFrames(path, container.CompressionNone, frame(16, 16, 5), frame(16, 16, 6)).Commit()).To(Succeed())
		})

		It("detects a truncated file", func() {
			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(path, data[:len(data)-5], 0o644)).To(Succeed())

			_, err = container.Open(path)
			Expect(err).To(MatchError(container.ErrCorrupt))
		})

		It("detects flipped pixel bytes", func() {
			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			data[40] ^= 0xFF
			Expect(os.WriteFile(path, data, 0o644)).To(Succeed())

			r, err := container.Open(path)
			Expect(err).NotTo(HaveOccurred())
			defer r.Close()

			_, err = r.Get(0)
			Expect(err).To(MatchError(container.ErrCorrupt))
			_, err = r.Get(1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects files that are not containers", func() {
			Expect(os.WriteFile(path, make([]byte, 128), 0o644)).To(Succeed())
			_, err := container.Open(path)
			Expect(err).To(MatchError(container.ErrCorrupt))
		})
	})

	It("parses compression names", func() {
		c, err := container.ParseCompression("LZ4")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(container.CompressionLZ4))

		c, err = container.ParseCompression("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(container.CompressionZSTD))

		_, err = container.ParseCompression("gzip")
		Expect(err).To(HaveOccurred())
	})
})
