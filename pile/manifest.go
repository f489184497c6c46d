package pile

import (
	"bufio"
	"io"
	"time"

	"github.com/uplo-tech/errors"
)

// ManifestWriter frames a raw byte stream into the IPIL manifest format
// described by SPEC_FULL §6, deduplicating each fixed-size block through a
// Store as it goes.
//
// The first block of a stream may be misaligned: start_trim says how many
// trailing bytes of that block carry no real data. The writer always
// places real bytes at the *front* of a block buffer and zero-pads
// whatever is left at the tail, so the first block's real data spans
// [0, B-start_trim) and the trim hole sits at the end of the block.
type ManifestWriter struct {
	store     *Store
	out       io.WriteSeeker
	startTrim uint32

	blocks     uint32
	totalBytes int64
}

// NewManifestWriter writes the 12-byte IPIL header to out (magic,
// start_trim, and a placeholder end_size of BlockSize) and returns a
// ManifestWriter ready to frame a stream. startTrim must be in
// [0, BlockSize).
func NewManifestWriter(store *Store, out io.WriteSeeker, startTrim uint32) (*ManifestWriter, error) {
	if startTrim >= BlockSize {
		return nil, errors.AddContext(ErrBadStartTrim, "start_trim must be less than BlockSize")
	}
	var header [HeaderSize]byte
	copy(header[0:4], "IPIL")
	putLE32(header[4:8], startTrim)
	putLE32(header[8:12], BlockSize)
	if _, err := out.Write(header[:]); err != nil {
		return nil, errors.AddContext(err, "could not write manifest header")
	}
	return &ManifestWriter{store: store, out: out, startTrim: startTrim}, nil
}

// WriteStream reads in from r, frames it into fixed BlockSize chunks
// (the first chunk shortened by startTrim), deduplicates each chunk
// through the Store, and appends the resulting pool offsets to the
// manifest. It patches the header's end_size field once the true length of
// the final chunk is known.
//
// A stream that spans more than one block and whose length is an exact
// multiple of BlockSize (after compensating for startTrim) needs no patch:
// the placeholder end_size of BlockSize written by NewManifestWriter is
// already correct, since the final admitted block is full.
//
// The first chunk is a special case when startTrim > 0: its read length is
// always less than BlockSize, so a fully-satisfied read doesn't by itself
// mean more data follows (unlike every later chunk, where a full BlockSize
// read unambiguously means so). A one-byte peek after such a read settles
// it.
func (w *ManifestWriter) WriteStream(r io.Reader) error {
	br := bufio.NewReader(r)
	first := true
	for {
		length := BlockSize
		if first {
			length = int(BlockSize - w.startTrim)
		}
		buf := make([]byte, BlockSize)
		n, err := io.ReadFull(br, buf[:length])
		switch {
		case err == nil:
			if first && length < BlockSize {
				if _, peekErr := br.Peek(1); peekErr == io.EOF {
					return w.admitFinal(buf, uint32(n))
				}
			}
			offset, admitErr := w.store.Admit(buf)
			if admitErr != nil {
				return admitErr
			}
			if err := w.writeOffset(offset); err != nil {
				return err
			}
			w.blocks++
			w.totalBytes += int64(length)
			first = false
		case err == io.EOF:
			// clean end of stream at a block boundary; nothing left to frame.
			return nil
		case err == io.ErrUnexpectedEOF:
			return w.admitFinal(buf, uint32(n))
		default:
			return errors.AddContext(err, "could not read input stream")
		}
	}
}

// admitFinal writes the manifest's last offset and patches end_size to the
// raw byte count read for that final, partial chunk.
func (w *ManifestWriter) admitFinal(buf []byte, n uint32) error {
	offset, admitErr := w.store.Admit(buf)
	if admitErr != nil {
		return admitErr
	}
	if err := w.writeOffset(offset); err != nil {
		return err
	}
	w.blocks++
	w.totalBytes += int64(n)
	return w.patchEndSize(n)
}

func (w *ManifestWriter) writeOffset(offset uint32) error {
	var buf [OffsetSize]byte
	putLE32(buf[:], offset)
	n, err := w.out.Write(buf[:])
	if err != nil {
		return errors.AddContext(err, "could not write manifest offset")
	}
	if n != OffsetSize {
		return errors.AddContext(ErrShortWrite, "manifest offset write short")
	}
	return nil
}

func (w *ManifestWriter) patchEndSize(endSize uint32) error {
	var buf [OffsetSize]byte
	putLE32(buf[:], endSize)
	if _, err := w.out.Seek(8, io.SeekStart); err != nil {
		return errors.AddContext(err, "could not seek to patch manifest end_size")
	}
	if _, err := w.out.Write(buf[:]); err != nil {
		return errors.AddContext(err, "could not patch manifest end_size")
	}
	return nil
}

// ManifestSummary is the sidecar record persist.SaveBinary writes next to a
// completed manifest (SPEC_FULL §4.5), so a caller can learn how an add
// completed without re-reading and replaying the manifest itself.
type ManifestSummary struct {
	Blocks          uint32
	TotalBytes      int64
	StartTrim       uint32
	CompletedAtUnix int64
}

// Summary reports the stream length and block count accumulated by the
// most recent WriteStream call. It is only meaningful after WriteStream has
// returned successfully.
func (w *ManifestWriter) Summary() ManifestSummary {
	return ManifestSummary{
		Blocks:          w.blocks,
		TotalBytes:      w.totalBytes,
		StartTrim:       w.startTrim,
		CompletedAtUnix: time.Now().Unix(),
	}
}

// ManifestReader reverses ManifestWriter: it reads an IPIL manifest and
// reconstructs the original byte stream from the Store's block pool.
type ManifestReader struct {
	store     *Store
	in        *bufio.Reader
	startTrim uint32
	endSize   uint32
}

// NewManifestReader reads and validates the 12-byte IPIL header from in.
func NewManifestReader(store *Store, in io.Reader) (*ManifestReader, error) {
	br := bufio.NewReaderSize(in, OffsetSize*1024)
	var header [HeaderSize]byte
	n, err := io.ReadFull(br, header[:])
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.AddContext(ErrShortRead, "could not read manifest header")
		}
		return nil, errors.AddContext(err, "could not read manifest header")
	}
	if n != HeaderSize || string(header[0:4]) != "IPIL" {
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
	return &ManifestReader{store: store, in: br, startTrim: startTrim, endSize: endSize}, nil
}

// WriteStream reconstructs the original byte stream to out. It buffers one
// pool offset ahead of the one it is currently writing, so it always knows
// whether the block it is about to emit is the manifest's last one without
// relying on an EOF-after-batch heuristic (SPEC_FULL §9).
func (r *ManifestReader) WriteStream(out io.Writer) error {
	var offsetBuf [OffsetSize]byte
	n, err := io.ReadFull(r.in, offsetBuf[:])
	if err == io.EOF {
		return nil // empty manifest: no blocks to reconstruct
	}
	if err != nil {
		return errors.AddContext(ErrShortRead, "could not read manifest offset table")
	}
	pending := le32(offsetBuf[:n])

	block := make([]byte, BlockSize)
	first := true
	for {
		_, err := io.ReadFull(r.in, offsetBuf[:])
		var next uint32
		hasNext := false
		switch {
		case err == nil:
			next = le32(offsetBuf[:])
			hasNext = true
		case err == io.EOF:
			hasNext = false
		default:
			return errors.AddContext(ErrShortRead, "could not read manifest offset table")
		}

		if err := r.store.ReadBlock(pending, block); err != nil {
			return err
		}

		var chunk []byte
		switch {
		case first && !hasNext:
			chunk = block[0:r.endSize]
		case first:
			chunk = block[0 : BlockSize-r.startTrim]
		case !hasNext:
			chunk = block[:r.endSize]
		default:
			chunk = block
		}
		if _, err := out.Write(chunk); err != nil {
			return errors.AddContext(err, "could not write reconstructed stream")
		}

		if !hasNext {
			return nil
		}
		first = false
		pending = next
	}
}
