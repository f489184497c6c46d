package pile

import (
	"testing"

	"github.com/Urs-Bruelhart/imagepile/blockhash"
)

// TestDedupRatio checks the ratio calculation across the zero and mixed
// cases.
func TestDedupRatio(t *testing.T) {
	s := &Stats{}
	if r := s.DedupRatio(); r != 0 {
		t.Fatalf("expected 0 ratio on an empty Stats, got %v", r)
	}
	s.addNewBlock()
	s.addNewBlock()
	s.addLookupHit()
	if r := s.DedupRatio(); r != 1.0/3.0 {
		t.Fatalf("expected ratio 1/3, got %v", r)
	}
}

// TestBucketChainLengthsSkipsEmptyBuckets checks that only populated
// buckets contribute to the reported chain lengths.
func TestBucketChainLengthsSkipsEmptyBuckets(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Insert(1, 0, true); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(1, 1, true); err != nil {
		t.Fatal(err)
	}
	lengths := BucketChainLengths(idx)
	if len(lengths) != 1 || lengths[0] != 2 {
		t.Fatalf("expected a single bucket with chain length 2, got %v", lengths)
	}
}

// TestSummarizeEmptyIndex checks that Summarize degrades gracefully rather
// than erroring on an index with no entries.
func TestSummarizeEmptyIndex(t *testing.T) {
	idx := newTestIndex(t)
	summary := Summarize(idx)
	if summary.Buckets != 0 {
		t.Fatalf("expected 0 buckets for an empty index, got %d", summary.Buckets)
	}
}

// TestSummarizeReportsMean checks the aggregate statistics over several
// populated buckets.
func TestSummarizeReportsMean(t *testing.T) {
	idx := newTestIndex(t)
	// fingerprints 1 and 1<<48 have distinct high 16 bits, landing in
	// different buckets, with chain lengths 1 and 3 respectively.
	if err := idx.Insert(1, 0, true); err != nil {
		t.Fatal(err)
	}
	base := blockhash.Fingerprint(uint64(1) << 48)
	for i := 0; i < 3; i++ {
		if err := idx.Insert(base, uint32(i), true); err != nil {
			t.Fatal(err)
		}
	}
	summary := Summarize(idx)
	if summary.Buckets != 2 {
		t.Fatalf("expected 2 populated buckets, got %d", summary.Buckets)
	}
	if summary.Mean != 2 {
		t.Fatalf("expected mean chain length 2, got %v", summary.Mean)
	}
	if summary.Max != 3 {
		t.Fatalf("expected max chain length 3, got %v", summary.Max)
	}
}
