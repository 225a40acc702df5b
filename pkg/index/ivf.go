package index

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"slices"
)

const (
	kmeansIterations = 20
	kmeansSeed       = 0x6d656d766964
)

// ivf is an inverted-file index. Vectors are partitioned into nlist clusters
// and a search scores the members of the nprobe closest clusters, widening
// to further clusters only when those hold fewer than k vectors.
// Before train it behaves like flat.
type ivf struct {
	flat

	nlist     int
	nprobe    int
	centroids []float32
	lists     [][]int
}

func newIVF(dim int, metric Metric, nlist, nprobe int) *ivf {
	return &ivf{
		flat:   flat{dim: dim, metric: metric},
		nlist:  nlist,
		nprobe: nprobe,
	}
}

func (x *ivf) trained() bool {
	return len(x.lists) > 0
}

func (x *ivf) train() error {
	n := len(x.keys)
	if n == 0 {
		return nil
	}
	k := min(x.nlist, n)
	x.centroids = kmeans(x.data, x.dim, k, x.metric)
	x.lists = make([][]int, k)
	for i := range n {
		c := nearestCentroid(x.vector(i), x.centroids, x.dim, x.metric)
		x.lists[c] = append(x.lists[c], i)
	}
	return nil
}

func (x *ivf) search(ctx context.Context, q []float32, k int) ([]Hit, error) {
	if !x.trained() {
		return x.flat.search(ctx, q, k)
	}

	// Scan the nprobe closest lists, then keep taking the next closest list
	// while fewer than k candidates have been collected.
	order := rankCentroids(q, x.centroids, x.dim, x.metric)
	var hits []Hit
	for i, c := range order {
		if i >= x.nprobe && len(hits) >= k {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pos := range x.lists[c] {
			hits = append(hits, Hit{RecordID: x.keys[pos], Score: score(x.metric, q, x.vector(pos))})
		}
	}
	return topHits(hits, k), nil
}

func (x *ivf) persist(w io.Writer, _ string) error {
	return writeVectors(w, vecHeader{
		kind:   kindIVF,
		metric: x.metric,
		dim:    x.dim,
		nlist:  len(x.lists),
		nprobe: x.nprobe,
	}, x.keys, x.data, &ivfLayout{centroids: x.centroids, lists: x.lists})
}

// kmeans trains k centroids with Lloyd's algorithm. Seeding is k-means++
// from a fixed source so identical inputs always produce identical clusters.
func kmeans(data []float32, dim, k int, metric Metric) []float32 {
	n := len(data) / dim
	rng := rand.New(rand.NewPCG(kmeansSeed, uint64(n)))
	vec := func(i int) []float32 { return data[i*dim : (i+1)*dim] }

	centroids := make([]float32, 0, k*dim)
	centroids = append(centroids, vec(rng.IntN(n))...)

	dist := make([]float64, n)
	for c := 1; c < k; c++ {
		var total float64
		for i := range n {
			d := math.MaxFloat64
			for j := 0; j < c; j++ {
				dd := float64(l2(vec(i), centroids[j*dim:(j+1)*dim]))
				d = min(d, dd*dd)
			}
			dist[i] = d
			total += d
		}

		next := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		} else {
			next = c % n
		}
		centroids = append(centroids, vec(next)...)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	sums := make([]float64, k*dim)
	counts := make([]int, k)

	for range kmeansIterations {
		changed := false
		for i := range n {
			c := nearestCentroid(vec(i), centroids, dim, metric)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		clear(sums)
		clear(counts)
		for i := range n {
			c := assign[i]
			for d, v := range vec(i) {
				sums[c*dim+d] += float64(v)
			}
			counts[c]++
		}
		for c := range k {
			if counts[c] == 0 {
				continue
			}
			cent := centroids[c*dim : (c+1)*dim]
			for d := range cent {
				cent[d] = float32(sums[c*dim+d] / float64(counts[c]))
			}
			if metric == MetricCosine {
				copy(cent, normalize(cent))
			}
		}
	}

	return centroids
}

func nearestCentroid(v, centroids []float32, dim int, metric Metric) int {
	best, bestScore := 0, float32(math.Inf(-1))
	for c := 0; c < len(centroids)/dim; c++ {
		s := score(metric, v, centroids[c*dim:(c+1)*dim])
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// rankCentroids returns centroid ids ordered from closest to furthest.
func rankCentroids(q, centroids []float32, dim int, metric Metric) []int {
	k := len(centroids) / dim
	ranked := make([]Hit, k)
	for c := range k {
		ranked[c] = Hit{RecordID: c, Score: score(metric, q, centroids[c*dim:(c+1)*dim])}
	}
	slices.SortFunc(ranked, compareHits)

	out := make([]int, k)
	for i, h := range ranked {
		out[i] = h.RecordID
	}
	return out
}
