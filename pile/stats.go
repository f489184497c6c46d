package pile

import (
	"sync/atomic"

	"github.com/montanaflynn/stats"

	"github.com/Urs-Bruelhart/imagepile/blockhash"
)

// Stats accumulates the session counters a Store reports at the end of an
// ingest or reconstruction run. Fields are accessed with atomic operations
// so a future concurrent caller (e.g. the optional stats HTTP endpoint)
// can read them safely while a session is still in progress, even though
// the core ingest/read loop itself is single-threaded per §5.
type Stats struct {
	newBlocks    int64
	lookupHits   int64
	hashFailures int64
	blocksRead   int64
}

func (s *Stats) addNewBlock()    { atomic.AddInt64(&s.newBlocks, 1) }
func (s *Stats) addLookupHit()   { atomic.AddInt64(&s.lookupHits, 1) }
func (s *Stats) addHashFailure() { atomic.AddInt64(&s.hashFailures, 1) }
func (s *Stats) addBlockRead()   { atomic.AddInt64(&s.blocksRead, 1) }

// NewBlocks returns the number of candidate blocks admitted as new pool
// records so far.
func (s *Stats) NewBlocks() int64 { return atomic.LoadInt64(&s.newBlocks) }

// LookupHits returns the number of candidate blocks resolved to an
// existing pool offset by a verified fingerprint match.
func (s *Stats) LookupHits() int64 { return atomic.LoadInt64(&s.lookupHits) }

// HashFailures returns the number of fingerprint matches rejected by
// byte-wise verification, per the "hash failure" counter of §4.4.
func (s *Stats) HashFailures() int64 { return atomic.LoadInt64(&s.hashFailures) }

// BlocksRead returns the number of pool blocks read back during
// reconstruction.
func (s *Stats) BlocksRead() int64 { return atomic.LoadInt64(&s.blocksRead) }

// DedupRatio returns the fraction of admitted candidate blocks that were
// resolved as duplicates of an existing pool record, in [0, 1]. It returns
// 0 if no blocks have been processed yet.
func (s *Stats) DedupRatio() float64 {
	hits := float64(s.LookupHits())
	total := hits + float64(s.NewBlocks())
	if total == 0 {
		return 0
	}
	return hits / total
}

// BucketChainLengths walks every top-level bucket of idx and returns the
// number of nodes chained under each non-empty bucket, for reporting the
// index's load distribution.
func BucketChainLengths(idx *Index) []float64 {
	lengths := make([]float64, 0, BucketCount)
	for _, head := range idx.top {
		if head == nil {
			continue
		}
		var n int
		for l := head; l != nil; l = l.next {
			n += l.count
		}
		lengths = append(lengths, float64(n))
	}
	return lengths
}

// ChainLengthSummary reports descriptive statistics over the per-bucket
// chain lengths of idx, using stats.Float64Data the way a session summary
// would surface index health: mean chain length indicates average lookup
// cost, and the maximum flags a hot bucket.
type ChainLengthSummary struct {
	Buckets int
	Mean    float64
	Max     float64
	StdDev  float64
}

// Summarize computes a ChainLengthSummary over idx's current bucket
// population. Errors from the underlying stats calls only occur on an
// empty data set, which is reported as a zero-valued summary rather than
// propagated, since an empty index is a normal (not exceptional) state.
func Summarize(idx *Index) ChainLengthSummary {
	data := stats.Float64Data(BucketChainLengths(idx))
	if len(data) == 0 {
		return ChainLengthSummary{}
	}
	mean, _ := data.Mean()
	max, _ := data.Max()
	stddev, _ := data.StandardDeviation()
	return ChainLengthSummary{
		Buckets: len(data),
		Mean:    mean,
		Max:     max,
		StdDev:  stddev,
	}
}

// verifyDigestMatchesPool is a test/diagnostic helper implementing §8
// property 4 (index/pool agreement): it recomputes the fingerprint of the
// pool record at offset i and compares it against fp.
func verifyDigestMatchesPool(pool *Pool, offset uint32, fp blockhash.Fingerprint) (bool, error) {
	buf := make([]byte, BlockSize)
	if err := pool.ReadAt(offset, buf); err != nil {
		return false, err
	}
	return blockhash.Sum(buf) == fp, nil
}
