package pile

import (
	"io"
	"os"

	"github.com/uplo-tech/errors"

	"github.com/Urs-Bruelhart/imagepile/blockhash"
	"github.com/Urs-Bruelhart/imagepile/persist"
)

// node is one (fingerprint, pool offset) entry in the index, per SPEC_FULL
// §3's "Index entry" row.
type node struct {
	fp     blockhash.Fingerprint
	offset uint32
}

// leaf holds up to LeafCapacity nodes in insertion order, per the
// fixed-size-leaf design of §4.2.
type leaf struct {
	count int
	nodes [LeafCapacity]node
	next  *leaf
}

// Cursor resumes a Find search within the bucket it was last used on. The
// zero Cursor means "reset": start at the bucket head. Index.Find returns
// the cursor to resupply on the next call, as the Design Notes direct
// ("re-architect as an explicit cursor value returned to and re-supplied
// by the caller").
type Cursor struct {
	started bool
	leaf    *leaf
	pos     int
}

// Index is the in-memory two-level fingerprint multimap plus the on-disk
// fingerprint log backing it (§3, §4.2).
type Index struct {
	top     [BucketCount]*leaf
	logFile *os.File
	entries int64
}

// OpenIndex opens the fingerprint log at path (creating it if writable and
// absent) and rebuilds the in-memory index from it in a single sequential
// pass, per §4.2's boot procedure: each 8-byte fingerprint at file position
// p*8 is inserted with offset=p, persist=false.
func OpenIndex(path string, writable bool) (*Index, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, persist.DefaultFilePermissions)
	if err != nil {
		return nil, errors.AddContext(err, "could not open fingerprint index "+path)
	}
	idx := &Index{logFile: f}
	if err := idx.boot(); err != nil {
		f.Close()
		return nil, err
	}
	return idx, nil
}

// boot performs the sequential load described in §4.2.
func (idx *Index) boot() error {
	buf := make([]byte, FingerprintSize)
	var offset uint32
	for {
		n, err := io.ReadFull(idx.logFile, buf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return errors.AddContext(ErrShortRead, "fingerprint index truncated mid-entry")
		}
		if err != nil {
			return errors.AddContext(err, "could not read fingerprint index")
		}
		if n != FingerprintSize {
			return errors.AddContext(ErrShortRead, "fingerprint index truncated mid-entry")
		}
		fp := blockhash.Fingerprint(le64(buf))
		idx.insertMemory(fp, offset)
		idx.entries++
		offset++
	}
	return nil
}

// Entries returns the number of fingerprints currently recorded, both in
// memory and on disk.
func (idx *Index) Entries() int64 {
	return idx.entries
}

// Find looks for the next node matching fp, starting from cur's position
// (bucket head if cur is the zero Cursor). It returns the matching offset,
// whether a match was found, and the cursor to resupply for a subsequent
// resume search within the same bucket — used when the caller's byte-wise
// verification rejects a hit and must keep searching (§4.2, §4.4).
func (idx *Index) Find(fp blockhash.Fingerprint, cur Cursor) (offset uint32, found bool, next Cursor) {
	l := cur.leaf
	pos := cur.pos
	if !cur.started {
		l = idx.top[fp.Bucket()]
		pos = 0
	}
	for l != nil {
		for pos < l.count {
			if l.nodes[pos].fp == fp {
				match := l.nodes[pos]
				advanced := Cursor{started: true, leaf: l, pos: pos + 1}
				if advanced.pos >= l.count {
					advanced = Cursor{started: true, leaf: l.next, pos: 0}
				}
				return match.offset, true, advanced
			}
			pos++
		}
		l = l.next
		pos = 0
	}
	return 0, false, Cursor{started: true, leaf: nil, pos: 0}
}

// Insert appends (fp, offset) to fp's bucket, allocating a new leaf if the
// bucket's tail leaf is full. When persist is true, the 8 raw fingerprint
// bytes are also appended to the on-disk index file; a failure to persist
// is fatal, per §4.2 ("Failure to write the persistent half is fatal").
func (idx *Index) Insert(fp blockhash.Fingerprint, offset uint32, persist bool) error {
	idx.insertMemory(fp, offset)
	if !persist {
		return nil
	}
	var buf [FingerprintSize]byte
	putLE64(buf[:], uint64(fp))
	n, err := idx.logFile.Write(buf[:])
	if err != nil {
		return errors.AddContext(err, "could not append fingerprint index entry")
	}
	if n != FingerprintSize {
		return errors.AddContext(ErrShortWrite, "fingerprint index write short")
	}
	idx.entries++
	return nil
}

// insertMemory appends (fp, offset) to the in-memory bucket only.
func (idx *Index) insertMemory(fp blockhash.Fingerprint, offset uint32) {
	b := fp.Bucket()
	l := idx.top[b]
	if l == nil {
		l = &leaf{}
		idx.top[b] = l
	}
	tail := l
	for tail.count == LeafCapacity {
		if tail.next == nil {
			tail.next = &leaf{}
		}
		tail = tail.next
	}
	tail.nodes[tail.count] = node{fp: fp, offset: offset}
	tail.count++
}

// Sync forces the index log's writes to stable storage.
func (idx *Index) Sync() error {
	return idx.logFile.Sync()
}

// Close closes the underlying index file.
func (idx *Index) Close() error {
	return idx.logFile.Close()
}
