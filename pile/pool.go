package pile

import (
	"os"

	"github.com/uplo-tech/errors"

	"github.com/Urs-Bruelhart/imagepile/persist"
)

// Pool is the append-only file of fixed BlockSize records described by
// SPEC_FULL §4.3. The pool offset of a block is its record index, i.e.
// file_length_before_write / BlockSize.
type Pool struct {
	file *os.File
}

// OpenPool opens the block pool at path. In write mode the file is created
// if missing and opened for both append and random-access read, matching
// the ingest session's dual role (append new blocks, read back candidates
// for byte-wise verification). In read-only mode the file must already
// exist.
func OpenPool(path string, writable bool) (*Pool, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, persist.DefaultFilePermissions)
	if err != nil {
		return nil, errors.AddContext(err, "could not open block pool "+path)
	}
	return &Pool{file: f}, nil
}

// Blocks returns the number of B-byte records currently in the pool.
func (p *Pool) Blocks() (uint32, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, errors.AddContext(err, "could not stat block pool")
	}
	return uint32(info.Size() / BlockSize), nil
}

// ReadAt reads the block at the given pool offset into buf, which must be
// exactly BlockSize bytes. A short read is fatal: per SPEC_FULL §4.3, a
// truncated pool record would permanently corrupt the fingerprint/offset
// invariant.
func (p *Pool) ReadAt(offset uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return errors.New("ReadAt: buffer must be exactly BlockSize bytes")
	}
	n, err := p.file.ReadAt(buf, int64(offset)*BlockSize)
	if err != nil {
		return errors.AddContext(err, "could not read pool block")
	}
	if n != BlockSize {
		return errors.AddContext(ErrShortRead, "pool block read short")
	}
	return nil
}

// Append writes block, which must be exactly BlockSize bytes, to the end of
// the pool and returns its new offset. A short write is fatal (§4.3/§7).
func (p *Pool) Append(block []byte) (uint32, error) {
	if len(block) != BlockSize {
		return 0, errors.New("Append: block must be exactly BlockSize bytes")
	}
	info, err := p.file.Stat()
	if err != nil {
		return 0, errors.AddContext(err, "could not stat block pool")
	}
	blocks := info.Size() / BlockSize
	if blocks+1 > MaxPoolBlocks {
		return 0, ErrPoolFull
	}
	offsetBlocks := uint32(blocks)
	n, err := p.file.WriteAt(block, int64(offsetBlocks)*BlockSize)
	if err != nil {
		return 0, errors.AddContext(err, "could not append pool block")
	}
	if n != BlockSize {
		return 0, errors.AddContext(ErrShortWrite, "pool block write short")
	}
	return offsetBlocks, nil
}

// Sync forces the pool's writes to stable storage.
func (p *Pool) Sync() error {
	return p.file.Sync()
}

// Close closes the underlying pool file.
func (p *Pool) Close() error {
	return p.file.Close()
}
