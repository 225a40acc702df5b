package index_test

import (
	"context"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/index"
	"github.com/papercomputeco/memvid/pkg/record"
)

func entry(id, frame int, v ...float32) index.Entry {
	return index.Entry{RecordID: id, FrameNumber: frame, Embedding: v, Preview: "preview"}
}

func hitIDs(hits []index.Hit) []int {
	ids := make([]int, len(hits))
	for i, h := range hits {
		ids[i] = h.RecordID
	}
	return ids
}

func randomVectors(n, dim int) [][]float32 {
	rng := rand.New(rand.NewPCG(7, 11))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

// grouped inserts n records cycling through a few unit vectors, so record
// ids g, g+5, g+10, ... share a vector and score identically.
func grouped(m *index.Manager, n int) {
	bases := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
		{0.6, 0.8, 0, 0},
	}
	for i := range n {
		Expect(m.Insert(entry(i, i, bases[i%len(bases)]...))).To(Succeed())
	}
}

// expectRanked asserts hits are ordered by score descending with ties in
// ascending record id.
func expectRanked(hits []index.Hit) {
	for i := 1; i < len(hits); i++ {
		prev, cur := hits[i-1], hits[i]
		Expect(prev.Score).To(BeNumerically(">=", cur.Score))
		if prev.Score == cur.Score {
			Expect(prev.RecordID).To(BeNumerically("<", cur.RecordID))
		}
	}
}

var _ = Describe("Manager", func() {
	var (
		ctx context.Context
		mgr *index.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		mgr, err = index.New(index.Config{Type: index.TypeFlat, Dimension: 3})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(mgr.Close()).To(Succeed())
	})

	Describe("Insert", func() {
		It("maintains record and frame mappings as inverses", func() {
			Expect(mgr.Insert(entry(0, 0, 1, 0, 0))).To(Succeed())
			Expect(mgr.Insert(entry(1, 1, 0, 1, 0))).To(Succeed())
			Expect(mgr.Insert(entry(2, 1, 0, 0, 1))).To(Succeed())

			f, ok := mgr.FrameOf(2)
			Expect(ok).To(BeTrue())
			Expect(f).To(Equal(1))
			Expect(mgr.RecordsIn(1)).To(Equal([]int{1, 2}))
			Expect(mgr.RecordsIn(0)).To(Equal([]int{0}))
			Expect(mgr.RecordsIn(5)).To(BeNil())
			Expect(mgr.TotalFrames()).To(Equal(2))
			Expect(mgr.Len()).To(Equal(3))
		})

		It("rejects vectors of the wrong dimension", func() {
			err := mgr.Insert(entry(0, 0, 1, 2))
			Expect(err).To(MatchError(index.ErrDimensionMismatch))
			Expect(mgr.Len()).To(BeZero())
		})

		It("rejects duplicate record ids", func() {
			Expect(mgr.Insert(entry(0, 0, 1, 0, 0))).To(Succeed())
			Expect(mgr.Insert(entry(0, 1, 0, 1, 0))).NotTo(Succeed())
		})

		It("rejects inserts after Freeze", func() {
			Expect(mgr.Freeze()).To(Succeed())
			Expect(mgr.Insert(entry(0, 0, 1, 0, 0))).To(MatchError(index.ErrFrozen))
		})

		It("takes the dimension from the first insert when unset", func() {
			m, err := index.New(index.Config{})
			Expect(err).NotTo(HaveOccurred())
			defer m.Close()

			Expect(m.Insert(entry(0, 0, 1, 2, 3, 4))).To(Succeed())
			Expect(m.Dimension()).To(Equal(4))
			Expect(m.Insert(entry(1, 0, 1, 2, 3))).To(MatchError(index.ErrDimensionMismatch))
		})

		It("keeps a copy of the metadata", func() {
			md := record.Metadata{{Key: "source", Value: "a.txt"}}
			e := entry(0, 0, 1, 0, 0)
			e.Metadata = md
			Expect(mgr.Insert(e)).To(Succeed())
			md[0].Value = "changed"

			info, ok := mgr.Record(0)
			Expect(ok).To(BeTrue())
			v, _ := info.Metadata.Get("source")
			Expect(v).To(Equal("a.txt"))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(mgr.Insert(entry(0, 0, 1, 0, 0))).To(Succeed())
			Expect(mgr.Insert(entry(1, 1, 0, 1, 0))).To(Succeed())
			Expect(mgr.Insert(entry(2, 2, 0.9, 0.1, 0))).To(Succeed())
		})

		It("ranks by cosine similarity", func() {
			hits, err := mgr.Search(ctx, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(hitIDs(hits)).To(Equal([]int{0, 2}))
			Expect(hits[0].Score).To(BeNumerically("~", 1, 1e-6))
			Expect(hits[0].Score).To(BeNumerically(">=", hits[1].Score))
		})

		It("returns everything when topK exceeds the record count", func() {
			hits, err := mgr.Search(ctx, []float32{0, 1, 0}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].RecordID).To(Equal(1))
		})

		It("breaks score ties by ascending record id", func() {
			Expect(mgr.Insert(entry(4, 3, 0, 0, 2))).To(Succeed())
			Expect(mgr.Insert(entry(3, 4, 0, 0, 1))).To(Succeed())

			hits, err := mgr.Search(ctx, []float32{0, 0, 1}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(hitIDs(hits)).To(Equal([]int{3, 4}))
		})

		It("rejects a query of the wrong dimension", func() {
			_, err := mgr.Search(ctx, []float32{1, 0}, 1)
			Expect(err).To(MatchError(index.ErrDimensionMismatch))
		})

		It("rejects a non-positive topK", func() {
			_, err := mgr.Search(ctx, []float32{1, 0, 0}, 0)
			Expect(err).To(MatchError(index.ErrInvalidTopK))
		})
	})

	It("returns no hits from an empty index", func() {
		hits, err := mgr.Search(ctx, []float32{1, 0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(BeEmpty())
	})

	It("ranks by negated distance under l2", func() {
		m, err := index.New(index.Config{Metric: index.MetricL2, Dimension: 2})
		Expect(err).NotTo(HaveOccurred())
		defer m.Close()

		Expect(m.Insert(entry(0, 0, 10, 10))).To(Succeed())
		Expect(m.Insert(entry(1, 1, 1, 1))).To(Succeed())
		Expect(m.Insert(entry(2, 2, 2, 2))).To(Succeed())

		hits, err := m.Search(ctx, []float32{0, 0}, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(hitIDs(hits)).To(Equal([]int{1, 2, 0}))
		Expect(hits[0].Score).To(BeNumerically("~", -1.41421, 1e-4))
	})

	It("rejects unknown types and metrics", func() {
		_, err := index.New(index.Config{Type: "hnsw"})
		Expect(err).To(MatchError(index.ErrUnknownType))
		_, err = index.New(index.Config{Metric: "hamming"})
		Expect(err).To(MatchError(index.ErrUnknownType))
	})

	DescribeTable("returns ranked hits from every backend",
		func(t index.Type, n, k int, want []int) {
			m, err := index.New(index.Config{Type: t, Dimension: 4, NList: 10, NProbe: 1})
			Expect(err).NotTo(HaveOccurred())
			defer m.Close()
			grouped(m, n)
			Expect(m.Freeze()).To(Succeed())

			hits, err := m.Search(ctx, []float32{0, 0, 1, 0}, k)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(min(n, k)))
			expectRanked(hits)
			if want != nil {
				Expect(hitIDs(hits)[:len(want)]).To(Equal(want))
			}
		},
		Entry("flat, fewer records than topK", index.TypeFlat, 4, 10, []int{2}),
		Entry("flat, exactly topK", index.TypeFlat, 30, 12, []int{2, 7, 12, 17, 22, 27}),
		Entry("flat, ties cut by record id", index.TypeFlat, 30, 3, []int{2, 7, 12}),
		Entry("ivf, fewer records than topK", index.TypeIVF, 4, 10, []int{2}),
		Entry("ivf, exactly topK", index.TypeIVF, 30, 12, []int{2, 7, 12, 17, 22, 27}),
		Entry("ivf, ties cut by record id", index.TypeIVF, 30, 3, []int{2, 7, 12}),
		Entry("sqlite-vec, fewer records than topK", index.TypeSQLiteVec, 4, 10, []int{2}),
		Entry("sqlite-vec, exactly topK", index.TypeSQLiteVec, 30, 12, []int{2, 7, 12, 17, 22, 27}),
		Entry("sqlite-vec, ties cut by record id", index.TypeSQLiteVec, 30, 3, []int{2, 7, 12}),
	)

	Describe("sqlite-vec", func() {
		var m *index.Manager

		BeforeEach(func() {
			var err error
			m, err = index.New(index.Config{Type: index.TypeSQLiteVec, Dimension: 4})
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(m.Close()).To(Succeed())
		})

		It("returns more hits than a single KNN query allows", func() {
			grouped(m, 5000)
			hits, err := m.Search(ctx, []float32{0, 0, 1, 0}, 4500)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(4500))
			expectRanked(hits)
			Expect(hits[0].RecordID).To(Equal(2))
		})

		It("orders a tie run longer than a KNN query by record id", func() {
			for i := range 5000 {
				Expect(m.Insert(entry(i, i, 1, 1, 0, 0))).To(Succeed())
			}
			hits, err := m.Search(ctx, []float32{1, 1, 0, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(hitIDs(hits)).To(Equal([]int{0, 1, 2, 3, 4}))
		})
	})

	Describe("IVF", func() {
		It("fills topK when the nprobe closest lists hold fewer vectors", func() {
			ivf, err := index.New(index.Config{Type: index.TypeIVF, Dimension: 8, NList: 100, NProbe: 8})
			Expect(err).NotTo(HaveOccurred())
			defer ivf.Close()

			for i, v := range randomVectors(100, 8) {
				Expect(ivf.Insert(entry(i, i, v...))).To(Succeed())
			}
			Expect(ivf.Freeze()).To(Succeed())

			for _, q := range randomVectors(3, 8) {
				hits, err := ivf.Search(ctx, q, 20)
				Expect(err).NotTo(HaveOccurred())
				Expect(hits).To(HaveLen(20))
				expectRanked(hits)
			}
		})

		It("matches exhaustive search when nprobe covers every list", func() {
			vectors := randomVectors(200, 8)

			flat, err := index.New(index.Config{Type: index.TypeFlat, Dimension: 8})
			Expect(err).NotTo(HaveOccurred())
			defer flat.Close()
			ivf, err := index.New(index.Config{Type: index.TypeIVF, Dimension: 8, NList: 10, NProbe: 10})
			Expect(err).NotTo(HaveOccurred())
			defer ivf.Close()

			for i, v := range vectors {
				Expect(flat.Insert(entry(i, i, v...))).To(Succeed())
				Expect(ivf.Insert(entry(i, i, v...))).To(Succeed())
			}
			Expect(ivf.Freeze()).To(Succeed())

			for _, q := range randomVectors(5, 8) {
				want, err := flat.Search(ctx, q, 10)
				Expect(err).NotTo(HaveOccurred())
				got, err := ivf.Search(ctx, q, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(hitIDs(got)).To(Equal(hitIDs(want)))
			}
		})

		It("finds the exact vector scanning a single list", func() {
			vectors := randomVectors(100, 4)
			ivf, err := index.New(index.Config{Type: index.TypeIVF, Dimension: 4, NList: 8, NProbe: 1})
			Expect(err).NotTo(HaveOccurred())
			defer ivf.Close()

			for i, v := range vectors {
				Expect(ivf.Insert(entry(i, i, v...))).To(Succeed())
			}
			Expect(ivf.Freeze()).To(Succeed())

			hits, err := ivf.Search(ctx, vectors[42], 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].RecordID).To(Equal(42))
		})

		It("caps nlist at the number of vectors", func() {
			ivf, err := index.New(index.Config{Type: index.TypeIVF, Dimension: 2, NList: 100})
			Expect(err).NotTo(HaveOccurred())
			defer ivf.Close()

			Expect(ivf.Insert(entry(0, 0, 1, 0))).To(Succeed())
			Expect(ivf.Insert(entry(1, 1, 0, 1))).To(Succeed())
			Expect(ivf.Freeze()).To(Succeed())

			hits, err := ivf.Search(ctx, []float32{0, 1}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(hitIDs(hits)).To(Equal([]int{1}))
		})
	})
})
