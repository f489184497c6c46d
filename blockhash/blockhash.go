// Package blockhash computes the 64-bit content fingerprint used to route
// and verify blocks in the pile block pool.
//
// The fingerprint is deliberately not collision-resistant: the pile
// deduplicator always verifies a fingerprint hit against the stored block
// byte-for-byte before reusing its offset (see pile.Deduplicator.Admit). The only
// properties this package must provide are determinism and a wide spread
// across the high 16 bits, since those bits select the in-memory index's
// top-level bucket. Swapping the hash function invalidates every existing
// pile, since fingerprints are persisted on disk and never recomputed.
package blockhash

import "github.com/cespare/xxhash/v2"

// Size is the number of bytes a Fingerprint occupies on disk.
const Size = 8

// Fingerprint is the 64-bit content digest of exactly one block.
type Fingerprint uint64

// Sum returns the fingerprint of block, which must be exactly the pile
// block size. Sum does not validate the length; callers that frame blocks
// (see pile.ManifestWriter) are responsible for always calling it with a
// full-size, zero-padded-if-necessary block.
func Sum(block []byte) Fingerprint {
	return Fingerprint(xxhash.Sum64(block))
}

// Bucket returns the top-level index bucket this fingerprint routes to: its
// high 16 bits.
func (f Fingerprint) Bucket() uint16 {
	return uint16(f >> 48)
}
