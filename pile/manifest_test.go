package pile

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), true, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func ingest(t *testing.T, s *Store, data []byte, trim uint32) []byte {
	t.Helper()
	sb := newSeekBuffer()
	w, err := NewManifestWriter(s, sb, trim)
	if err != nil {
		t.Fatalf("NewManifestWriter: %v", err)
	}
	if err := w.WriteStream(bytes.NewReader(data)); err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	return sb.Bytes()
}

func reconstruct(t *testing.T, s *Store, manifest []byte) []byte {
	t.Helper()
	r, err := NewManifestReader(s, bytes.NewReader(manifest))
	if err != nil {
		t.Fatalf("NewManifestReader: %v", err)
	}
	var out bytes.Buffer
	if err := r.WriteStream(&out); err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	return out.Bytes()
}

// TestScenarioAllZeroBlock covers §8 concrete scenario 1: a single
// all-zero block with trim=0 produces the exact 12-byte header plus one
// zero offset, and the pool/index grow by one record.
func TestScenarioAllZeroBlock(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, BlockSize)
	manifest := ingest(t, s, data, 0)

	want := []byte{'I', 'P', 'I', 'L', 0, 0, 0, 0, 0, 0x10, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(manifest, want) {
		t.Fatalf("manifest mismatch:\n got %x\nwant %x", manifest, want)
	}
	n, _ := s.Pool.Blocks()
	if n != 1 {
		t.Fatalf("expected pool to hold 1 block, got %d", n)
	}
	if s.Index.Entries() != 1 {
		t.Fatalf("expected index to hold 1 entry, got %d", s.Index.Entries())
	}
}

// TestScenarioReingestIsIdempotent covers §8 concrete scenario 2 and
// property 2: re-ingesting identical content does not grow the pool or
// index and yields a byte-identical manifest.
func TestScenarioReingestIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, BlockSize)
	first := ingest(t, s, data, 0)
	second := ingest(t, s, data, 0)

	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical manifests, got %x and %x", first, second)
	}
	n, _ := s.Pool.Blocks()
	if n != 1 {
		t.Fatalf("expected pool to stay at 1 block, got %d", n)
	}
	if s.Index.Entries() != 1 {
		t.Fatalf("expected index to stay at 1 entry, got %d", s.Index.Entries())
	}
}

// TestScenarioMultiBlockTail covers §8 concrete scenario 3: a 5000-byte
// all-zero stream produces a two-offset manifest with end_size=904, and
// reconstructing it reproduces all 5000 bytes without growing the pool
// beyond the single zero block already present.
func TestScenarioMultiBlockTail(t *testing.T) {
	s := newTestStore(t)
	// prime the pool with the same zero block scenario 1 would have left.
	ingest(t, s, make([]byte, BlockSize), 0)

	data := make([]byte, 5000)
	manifest := ingest(t, s, data, 0)

	endSize := le32(manifest[8:12])
	if endSize != 904 {
		t.Fatalf("expected end_size=904, got %d", endSize)
	}
	if len(manifest) != HeaderSize+2*OffsetSize {
		t.Fatalf("expected two offsets in manifest, got manifest of length %d", len(manifest))
	}
	offA := le32(manifest[12:16])
	offB := le32(manifest[16:20])
	if offA != 0 || offB != 0 {
		t.Fatalf("expected both offsets to be 0 (all-zero block reused), got %d and %d", offA, offB)
	}

	out := reconstruct(t, s, manifest)
	if !bytes.Equal(out, data) {
		t.Fatal("reconstructed stream does not match original 5000-byte input")
	}
	n, _ := s.Pool.Blocks()
	if n != 1 {
		t.Fatalf("expected pool to remain at 1 block, got %d", n)
	}
}

// TestScenarioSingleBlockWithTrim covers §8 concrete scenario 4: a
// 3000-byte stream with trim=1096 fits entirely in one block, and
// reconstructing the manifest reproduces exactly those 3000 bytes.
func TestScenarioSingleBlockWithTrim(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, 3000)
	if _, err := rand.Read(data); err != nil {
		t.Fatal(err)
	}
	manifest := ingest(t, s, data, 1096)

	if len(manifest) != HeaderSize+OffsetSize {
		t.Fatalf("expected a single-offset manifest, got length %d", len(manifest))
	}
	endSize := le32(manifest[8:12])
	if endSize != 3000 {
		t.Fatalf("expected end_size=3000 (the raw byte count of the only block), got %d", endSize)
	}

	out := reconstruct(t, s, manifest)
	if !bytes.Equal(out, data) {
		t.Fatalf("reconstructed stream (%d bytes) does not match the original 3000-byte input", len(out))
	}
}

// TestRoundTripIdentityRandom covers §8 property 1 across a range of
// stream lengths and trims.
func TestRoundTripIdentityRandom(t *testing.T) {
	lengths := []int{1, 100, BlockSize - 1, BlockSize, BlockSize + 1, 3 * BlockSize, 3*BlockSize + 17}
	for _, length := range lengths {
		for _, trim := range []uint32{0, 1, 1096, BlockSize - 1} {
			s := newTestStore(t)
			data := make([]byte, length)
			if _, err := rand.Read(data); err != nil {
				t.Fatal(err)
			}
			manifest := ingest(t, s, data, trim)
			out := reconstruct(t, s, manifest)
			if !bytes.Equal(out, data) {
				t.Fatalf("round trip failed for length=%d trim=%d: got %d bytes, want %d", length, trim, len(out), len(data))
			}
		}
	}
}

// TestBadMagicRejected covers §8 concrete scenario 6: a hand-written
// manifest with a bad magic fails with the format error.
func TestBadMagicRejected(t *testing.T) {
	s := newTestStore(t)
	bad := []byte{'X', 'P', 'I', 'L', 0, 0, 0, 0, 0, 0x10, 0, 0}
	_, err := NewManifestReader(s, bytes.NewReader(bad))
	if err == nil {
		t.Fatal("expected an error for bad manifest magic")
	}
}

// TestShortHeaderRejected checks that a truncated header is reported as a
// short read rather than silently accepted.
func TestShortHeaderRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := NewManifestReader(s, bytes.NewReader([]byte{'I', 'P', 'I', 'L'}))
	if err == nil {
		t.Fatal("expected an error for a truncated manifest header")
	}
}

// TestStartTrimOutOfRangeRejected checks header validation of start_trim.
func TestStartTrimOutOfRangeRejected(t *testing.T) {
	s := newTestStore(t)
	var header [HeaderSize]byte
	copy(header[0:4], "IPIL")
	putLE32(header[4:8], BlockSize) // == BlockSize, invalid (must be < BlockSize)
	putLE32(header[8:12], BlockSize)
	_, err := NewManifestReader(s, bytes.NewReader(header[:]))
	if err == nil {
		t.Fatal("expected an error for start_trim == BlockSize")
	}
}

// seekBuffer is an io.WriteSeeker backed by a growable byte slice, for
// exercising ManifestWriter without touching the filesystem.
type seekBuffer struct {
	data []byte
	pos  int
}

func newSeekBuffer() *seekBuffer {
	return &seekBuffer{}
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if s.pos+len(p) > len(s.data) {
		grown := make([]byte, s.pos+len(p))
		copy(grown, s.data)
		s.data = grown
	}
	n := copy(s.data[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = int(offset)
	case 1:
		s.pos += int(offset)
	case 2:
		s.pos = len(s.data) + int(offset)
	}
	return int64(s.pos), nil
}

func (s *seekBuffer) Bytes() []byte { return s.data }
