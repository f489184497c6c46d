package pile

import "encoding/binary"

// The on-disk formats this package reads and writes (the manifest header,
// the manifest offset table, and the fingerprint index log) are fixed-width
// little-endian layouts that must stay byte-compatible across versions, so
// they are encoded with encoding/binary directly rather than through the
// general-purpose struct marshaler used for sidecar metadata elsewhere in
// this module.

func le32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func putLE32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func le64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func putLE64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}
