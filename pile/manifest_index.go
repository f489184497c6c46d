package pile

import (
	"io"

	"github.com/uplo-tech/errors"
)

// ManifestIndex is a fully-parsed manifest: every pool offset held in
// memory, rather than streamed one at a time like ManifestReader. It gives
// random-access readers (the read-only FUSE mount in particular) a way to
// translate an arbitrary logical byte offset into a pool block and an
// intra-block position without replaying the whole manifest.
type ManifestIndex struct {
	StartTrim uint32
	EndSize   uint32
	Offsets   []uint32
}

// LoadManifestIndex reads and validates an IPIL manifest header from in,
// then reads every offset in its table into memory.
func LoadManifestIndex(in io.Reader) (*ManifestIndex, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(in, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.AddContext(ErrShortRead, "could not read manifest header")
		}
		return nil, errors.AddContext(err, "could not read manifest header")
	}
	if string(header[0:4]) != "IPIL" {
		return nil, ErrBadMagic
	}
	startTrim := le32(header[4:8])
	if startTrim >= BlockSize {
		return nil, errors.AddContext(ErrBadStartTrim, "manifest start_trim out of range")
	}
	endSize := le32(header[8:12])
	if endSize == 0 || endSize > BlockSize {
		return nil, errors.AddContext(ErrBadEndSize, "manifest end_size out of range")
	}

	var offsets []uint32
	var buf [OffsetSize]byte
	for {
		if _, err := io.ReadFull(in, buf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.AddContext(ErrShortRead, "could not read manifest offset table")
		}
		offsets = append(offsets, le32(buf[:]))
	}

	return &ManifestIndex{StartTrim: startTrim, EndSize: endSize, Offsets: offsets}, nil
}

// Size returns the total number of real data bytes the manifest
// reconstructs to.
func (m *ManifestIndex) Size() int64 {
	n := len(m.Offsets)
	switch n {
	case 0:
		return 0
	case 1:
		return int64(m.EndSize)
	default:
		first := int64(BlockSize - m.StartTrim)
		middle := int64(n-2) * BlockSize
		last := int64(m.EndSize)
		return first + middle + last
	}
}

// locate maps a logical byte offset into the reconstructed stream to a
// block index and an intra-block byte offset.
func (m *ManifestIndex) locate(off int64) (block int, within int64) {
	first := int64(BlockSize - m.StartTrim)
	if off < first {
		return 0, off
	}
	rest := off - first
	return 1 + int(rest/BlockSize), rest % BlockSize
}

// ReadAt fills dest with the reconstructed bytes starting at logical offset
// off, reading blocks from store as needed. It returns the number of bytes
// copied, which is less than len(dest) only at end of stream.
func (m *ManifestIndex) ReadAt(store *Store, dest []byte, off int64) (int, error) {
	total := m.Size()
	if off >= total {
		return 0, io.EOF
	}
	if int64(len(dest)) > total-off {
		dest = dest[:total-off]
	}

	block := make([]byte, BlockSize)
	var copied int
	for copied < len(dest) {
		b, within := m.locate(off + int64(copied))
		if b >= len(m.Offsets) {
			break
		}
		if err := store.ReadBlock(m.Offsets[b], block); err != nil {
			return copied, err
		}
		avail := int64(BlockSize) - within
		if b == 0 {
			avail = int64(BlockSize-m.StartTrim) - within
		}
		if b == len(m.Offsets)-1 {
			avail = int64(m.EndSize) - within
		}
		if avail <= 0 {
			break
		}
		n := int64(len(dest) - copied)
		if n > avail {
			n = avail
		}
		copy(dest[copied:int64(copied)+n], block[within:within+n])
		copied += int(n)
	}
	return copied, nil
}
