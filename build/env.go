package build

var (
	// imgDirEnvVar is the environment variable that tells imagepile where
	// the block pool and fingerprint index live. It is named IMGDIR for
	// compatibility with the original imagepile tool.
	imgDirEnvVar = "IMGDIR"

	// statsAddrEnvVar is the environment variable that, when set, gives the
	// listen address of the optional stats HTTP server.
	statsAddrEnvVar = "IMAGEPILE_STATS_ADDR"

	// maxMBPSEnvVar is the environment variable that, when set, caps
	// ingest/reconstruction throughput in megabytes per second.
	maxMBPSEnvVar = "IMAGEPILE_MAX_MBPS"
)
