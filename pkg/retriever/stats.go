package retriever

import (
	"github.com/papercomputeco/memvid/pkg/framecache"
	"github.com/papercomputeco/memvid/pkg/index"
)

// Stats describes a loaded Retriever.
type Stats struct {
	State          string           `json:"state"`
	ContainerPath  string           `json:"container_path,omitempty"`
	IndexBase      string           `json:"index_base,omitempty"`
	BuildID        string           `json:"build_id"`
	TotalRecords   int              `json:"total_records"`
	TotalFrames    int              `json:"total_frames"`
	Index          index.Stats      `json:"index"`
	Cache          framecache.Stats `json:"cache"`
	CacheHitRate   float64          `json:"cache_hit_rate"`
	DecodeFailures int64            `json:"decode_failure_count"`
	Searches       int64            `json:"searches"`
	Timeouts       int64            `json:"timeouts"`
	Workers        int              `json:"workers"`
}

// Stats returns counters and sizes. It fails with ErrNotReady unless loaded.
func (r *Retriever) Stats() (Stats, error) {
	done, err := r.begin()
	if err != nil {
		return Stats{}, err
	}
	defer done()

	cs := r.cache.Stats()
	var hitRate float64
	if lookups := cs.Hits + cs.Misses; lookups > 0 {
		hitRate = float64(cs.Hits) / float64(lookups)
	}

	return Stats{
		State:          r.State().String(),
		ContainerPath:  r.containerPath,
		IndexBase:      r.indexBase,
		BuildID:        r.frames.BuildID(),
		TotalRecords:   r.index.Len(),
		TotalFrames:    r.frames.TotalFrames(),
		Index:          r.index.Stats(),
		Cache:          cs,
		CacheHitRate:   hitRate,
		DecodeFailures: r.decodeFailures.Load(),
		Searches:       r.searches.Load(),
		Timeouts:       r.timeouts.Load(),
		Workers:        r.pool.Workers(),
	}, nil
}
