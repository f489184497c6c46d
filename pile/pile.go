// Package pile implements the deduplicating block-pool store described by
// the imagepile design: an append-only pool of fixed-size blocks, a
// fingerprint index over that pool, and the manifest codec that frames a
// disk image as a compact sequence of pool offsets.
//
// A Store owns exactly the two on-disk files the format requires
// (PoolFilename and IndexFilename, see SPEC_FULL §6) plus the in-memory
// fingerprint index rebuilt from the index file at Open time. All mutation
// happens through Store methods; Pool and Index are not meant to be driven
// directly outside this package except by tests.
package pile

import "github.com/uplo-tech/errors"

const (
	// BlockSize is B, the fixed size in bytes of every pool record and
	// every framed chunk of an input stream.
	BlockSize = 4096

	// HeaderSize is H, the size in bytes of a manifest's fixed header.
	HeaderSize = 12

	// FingerprintSize is the width in bytes of an on-disk fingerprint.
	FingerprintSize = 8

	// OffsetSize is the width in bytes of a pool offset as stored in a
	// manifest.
	OffsetSize = 4

	// BucketCount is the number of top-level slots in the in-memory
	// fingerprint index, keyed by a fingerprint's high 16 bits.
	BucketCount = 1 << 16

	// LeafCapacity is L, the number of (fingerprint, offset) nodes held by
	// a single index leaf before a new leaf is chained on.
	LeafCapacity = 64

	// PoolFilename is the name of the block pool file within the base
	// directory.
	PoolFilename = "imagepile.db"

	// IndexFilename is the name of the on-disk fingerprint log within the
	// base directory.
	IndexFilename = "imagepile.hash_index"

	// MaxPoolBlocks is the number of pool blocks the 4-byte on-disk manifest
	// field can address (offsets 0 to 2^32-1, about 16 TiB at BlockSize=4096).
	MaxPoolBlocks = 1 << 32
)

// Error kinds from SPEC_FULL §7. Each is a sentinel that call sites wrap
// with errors.AddContext to record the offending path or value.
var (
	// ErrShortRead is returned when a read from the pool, a manifest
	// header, or a mid-stream manifest body comes back short.
	ErrShortRead = errors.New("short read")

	// ErrShortWrite is returned when a write to the pool, index, or
	// manifest comes back short.
	ErrShortWrite = errors.New("short write")

	// ErrBadMagic is returned when a manifest's first four bytes are not
	// "IPIL".
	ErrBadMagic = errors.New("bad manifest magic")

	// ErrBadStartTrim is returned when a manifest's start_trim field is
	// not in [0, BlockSize).
	ErrBadStartTrim = errors.New("start_trim out of range")

	// ErrBadEndSize is returned when a manifest's end_size field is not in
	// (0, BlockSize].
	ErrBadEndSize = errors.New("end_size out of range")

	// ErrMidStreamShortRead is returned when a read from the input stream
	// during ingest is short but is neither the first nor the last chunk.
	ErrMidStreamShortRead = errors.New("short read but not start or end of image")

	// ErrPoolFull is returned when admitting a new block would push the
	// pool past MaxPoolBlocks, the largest offset a 4-byte manifest field
	// can represent.
	ErrPoolFull = errors.New("block pool has reached its 32-bit offset limit")

	// ErrSameInputOutput is returned when the input and output paths given
	// to add/read are identical.
	ErrSameInputOutput = errors.New("input and output files must be different")
)
