package build

import (
	"os"
	"strconv"

	"github.com/uplo-tech/errors"
)

// ErrPileDirNotSet is returned by PileDir when the IMGDIR environment
// variable is unset. Unlike uplod's data directory, imagepile has no
// sensible default: the pool and index files are too large to place
// silently in the working directory.
var ErrPileDirNotSet = errors.New("IMGDIR environment variable not set")

// PileDir returns the base directory that holds imagepile.db and
// imagepile.hash_index, taken from the IMGDIR environment variable. This
// matches the original imagepile tool's out-of-band path discovery.
func PileDir() (string, error) {
	dir := os.Getenv(imgDirEnvVar)
	if dir == "" {
		return "", ErrPileDirNotSet
	}
	return dir, nil
}

// StatsAddr returns the IMAGEPILE_STATS_ADDR environment variable, the
// address on which "imagepile stats" serves the optional stats HTTP server.
// An empty value means no server is started.
func StatsAddr() string {
	return os.Getenv(statsAddrEnvVar)
}

// MaxMBPS returns the IMAGEPILE_MAX_MBPS environment variable parsed as an
// integer, the throughput cap the add and read commands apply to their
// streams. A missing or malformed value yields 0, meaning unlimited.
func MaxMBPS() int64 {
	v := os.Getenv(maxMBPSEnvVar)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
