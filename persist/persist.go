package persist

import (
	"bytes"
	"encoding/base32"
	"encoding/hex"
	"os"

	natomic "github.com/natefinch/atomic"
	"github.com/uplo-tech/encoding"
	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/fastrand"
)

const (
	// DefaultDiskPermissionsTest when creating files or directories in tests.
	DefaultDiskPermissionsTest = 0750

	// DefaultDirPermissions is the default permissions when creating dirs.
	DefaultDirPermissions = 0700

	// DefaultFilePermissions is the default permissions when creating files.
	DefaultFilePermissions = 0600

	// randomBytes is the number of bytes to use to ensure sufficient randomness.
	randomBytes = 20

	// tempSuffix is the suffix that is applied to the temporary/backup
	// versions of the files being persisted.
	tempSuffix = "_temp"
)

// ErrFileInUse reports that another operation is saving or loading the same
// file. SaveBinary and LoadBinary take no per-file lock and never return
// it; imagepile sessions are single-threaded (see SPEC_FULL §5).
var ErrFileInUse = errors.New("another operation is saving or loading this file")

// RandomSuffix returns a 20 character base32 suffix for a filename. There are
// 100 bits of entropy, and a very low probability of colliding with existing
// files unintentionally.
func RandomSuffix() string {
	str := base32.StdEncoding.EncodeToString(fastrand.Bytes(randomBytes))
	return str[:20]
}

// UID returns a hexadecimal encoded string that can be used as a unique ID.
func UID() string {
	return hex.EncodeToString(fastrand.Bytes(randomBytes))
}

// RemoveFile removes a persisted file from disk, along with any uncommitted
// or temporary versions of it.
func RemoveFile(filename string) error {
	if err := os.RemoveAll(filename); err != nil {
		return err
	}
	return os.RemoveAll(filename + tempSuffix)
}

// SaveBinary atomically replaces filename with the encoding.Marshal
// representation of v. Unlike the manifest and pool/index files, which have
// their own hand-rolled wire formats mandated by the IPIL contract, sidecar
// bookkeeping files (e.g. a manifest completion summary) use the corpus's
// general-purpose length-prefixed encoder and an atomic rename so a reader
// never observes a half-written file.
func SaveBinary(filename string, v interface{}) error {
	b := encoding.Marshal(v)
	return natomic.WriteFile(filename, bytes.NewReader(b))
}

// LoadBinary decodes the encoding.Marshal representation stored at filename
// into v.
func LoadBinary(filename string, v interface{}) error {
	b, err := os.ReadFile(filename)
	if err != nil {
		return errors.AddContext(err, "could not read "+filename)
	}
	if err := encoding.Unmarshal(b, v); err != nil {
		return errors.AddContext(err, "could not decode "+filename)
	}
	return nil
}
