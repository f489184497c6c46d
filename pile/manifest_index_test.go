package pile

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestManifestIndexSizeAndReadAt checks that ManifestIndex's random-access
// view reconstructs the same bytes ManifestReader's streaming view does,
// across a range of lengths and trims.
func TestManifestIndexSizeAndReadAt(t *testing.T) {
	lengths := []int{1, 100, BlockSize - 1, BlockSize, BlockSize + 1, 3 * BlockSize, 3*BlockSize + 17}
	for _, length := range lengths {
		for _, trim := range []uint32{0, 1, 1096, BlockSize - 1} {
			s := newTestStore(t)
			data := make([]byte, length)
			_, err := rand.Read(data)
			require.NoError(t, err)

			manifest := ingest(t, s, data, trim)

			idx, err := LoadManifestIndex(bytes.NewReader(manifest))
			require.NoError(t, err)
			require.Equal(t, int64(length), idx.Size())

			out := make([]byte, length)
			n, err := idx.ReadAt(s, out, 0)
			require.NoError(t, err)
			require.Equal(t, length, n)
			require.True(t, bytes.Equal(out, data))
		}
	}
}

// TestManifestIndexReadAtOffset checks a read starting mid-stream, spanning
// a block boundary.
func TestManifestIndexReadAtOffset(t *testing.T) {
	s := newTestStore(t)
	data := make([]byte, 3*BlockSize)
	_, err := rand.Read(data)
	require.NoError(t, err)

	manifest := ingest(t, s, data, 1096)

	idx, err := LoadManifestIndex(bytes.NewReader(manifest))
	require.NoError(t, err)

	start := int64(BlockSize-1096) - 10 // first block holds BlockSize-1096 bytes
	out := make([]byte, 50)
	n, err := idx.ReadAt(s, out, start)
	require.NoError(t, err)
	require.Equal(t, 50, n)
	require.True(t, bytes.Equal(out, data[start:start+50]))
}

// TestManifestIndexReadAtPastEnd checks that a read entirely past the end
// of the stream returns an error with zero bytes copied.
func TestManifestIndexReadAtPastEnd(t *testing.T) {
	s := newTestStore(t)
	manifest := ingest(t, s, make([]byte, BlockSize), 0)

	idx, err := LoadManifestIndex(bytes.NewReader(manifest))
	require.NoError(t, err)

	out := make([]byte, 10)
	n, err := idx.ReadAt(s, out, int64(BlockSize))
	require.Error(t, err)
	require.Equal(t, 0, n)
}
