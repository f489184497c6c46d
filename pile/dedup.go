package pile

import (
	"bytes"
	"encoding/binary"

	"github.com/uplo-tech/errors"

	"github.com/Urs-Bruelhart/imagepile/blockhash"
)

// Deduplicator admits candidate blocks into a pool+index pair, returning an
// existing offset on a verified content match or a freshly appended one
// otherwise, per §4.4. It does not own the pool or index; Store wires one
// up over its own Pool and Index so their lifetimes and locking stay in one
// place.
type Deduplicator struct {
	pool  *Pool
	index *Index
	stats *Stats
}

// NewDeduplicator returns a Deduplicator over pool and index, recording
// counters into stats.
func NewDeduplicator(pool *Pool, index *Index, stats *Stats) *Deduplicator {
	return &Deduplicator{pool: pool, index: index, stats: stats}
}

// Admit runs the algorithm of §4.4 on candidate, which must be exactly
// BlockSize bytes: it looks for a verified match in the index, and failing
// that, appends candidate to the pool and records its fingerprint. The
// caller is responsible for invoking this inside the critical section
// described by §5 when pool/index mutation must be observed atomically by
// a termination signal.
func (d *Deduplicator) Admit(candidate []byte) (offset uint32, err error) {
	if len(candidate) != BlockSize {
		return 0, errors.New("Admit: candidate must be exactly BlockSize bytes")
	}
	fp := blockhash.Sum(candidate)

	cur := Cursor{}
	buf := make([]byte, BlockSize)
	for {
		off, found, next := d.index.Find(fp, cur)
		if !found {
			break
		}
		if err := d.pool.ReadAt(off, buf); err != nil {
			return 0, err
		}
		if blockEqual(buf, candidate) {
			d.stats.addLookupHit()
			return off, nil
		}
		d.stats.addHashFailure()
		cur = next
	}

	newOff, err := d.pool.Append(candidate)
	if err != nil {
		return 0, err
	}
	if err := d.index.Insert(fp, newOff, true); err != nil {
		return 0, errors.AddContext(err, "fatal: pool grew but index append failed")
	}
	d.stats.addNewBlock()
	return newOff, nil
}

// blockEqual compares two full-size blocks, using the first machine word as
// a cheap rejection test before falling back to a full byte comparison, per
// the "first-word shortcut" optimization of §4.4. This never changes the
// result, only the average cost of reaching it.
func blockEqual(a, b []byte) bool {
	const wordSize = 8
	if len(a) >= wordSize && len(b) >= wordSize {
		if binary.LittleEndian.Uint64(a[:wordSize]) != binary.LittleEndian.Uint64(b[:wordSize]) {
			return false
		}
	}
	return bytes.Equal(a, b)
}
