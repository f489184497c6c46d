package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/Urs-Bruelhart/imagepile/build"
	"github.com/Urs-Bruelhart/imagepile/persist"
	"github.com/Urs-Bruelhart/imagepile/pile"
)

// exit codes, inspired by sysexits.h
const (
	exitCodeGeneral = 1  // not in sysexits.h, but standard practice
	exitCodeUsage   = 64 // EX_USAGE in sysexits.h
)

// die prints its arguments to stderr and exits with exitCodeGeneral.
func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

// usage prints its arguments to stderr and exits with exitCodeUsage.
func usage(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeUsage)
}

func versionCmd(*cobra.Command, []string) {
	version := build.Version
	if build.ReleaseTag != "" {
		version += "-" + build.ReleaseTag
	}
	switch build.Release {
	case "dev":
		fmt.Println("imagepile v" + version + "-dev")
	case "testing":
		fmt.Println("imagepile v" + version + "-testing")
	default:
		fmt.Println("imagepile v" + version)
	}
}

// openInput opens path for reading, treating "-" as stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// openOutput creates path for writing, treating "-" as stdout.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

// nopWriteCloser adapts an io.ReadCloser to io.ReadWriteCloser for
// pile.Throttle, which expects a bidirectional stream even though only one
// direction of a given file handle is ever used.
type nopWriteCloser struct {
	io.ReadCloser
}

func (nopWriteCloser) Write(p []byte) (int, error) {
	return 0, errNotWritable
}

// nopReadCloser is nopWriteCloser's mirror image, for output streams.
type nopReadCloser struct {
	io.WriteCloser
}

func (nopReadCloser) Read(p []byte) (int, error) {
	return 0, errNotReadable
}

var (
	errNotWritable = fmt.Errorf("stream is read-only")
	errNotReadable = fmt.Errorf("stream is write-only")
)

func openStore(writable bool) (*pile.Store, *persist.Logger) {
	dir, err := build.PileDir()
	if err != nil {
		usage(err)
	}
	log, err := persist.NewLogger(os.Stderr)
	if err != nil {
		die("could not start logger:", err)
	}
	store, err := pile.NewStore(dir, writable, log)
	if err != nil {
		die("could not open image pile in", dir, ":", err)
	}
	return store, log
}

func addCmd(cmd *cobra.Command, args []string) {
	var trim uint32
	var input, output string
	switch len(args) {
	case 2:
		input, output = args[0], args[1]
	case 3:
		input, output = args[1], args[2]
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			usage("trim must be a non-negative integer:", err)
		}
		if v >= pile.BlockSize {
			usage("trim must be less than the block size", pile.BlockSize)
		}
		trim = uint32(v)
	default:
		usage("usage: imagepile add [trim] <input> <manifest>")
		return
	}
	if input == output {
		die(pile.ErrSameInputOutput)
	}

	store, log := openStore(true)
	pile.ShutdownOnSignal(store, log)
	defer store.Shutdown()

	inFile, err := openInput(input)
	if err != nil {
		die("cannot open input:", err)
	}
	defer inFile.Close()

	outFile, err := os.Create(output)
	if err != nil {
		die("cannot open manifest for writing:", err)
	}
	defer outFile.Close()

	rl := pile.NewRateLimit(build.MaxMBPS())
	in := pile.Throttle(nopWriteCloser{inFile}, rl, store.StopChan())

	var reader io.Reader = in
	if input != "-" {
		if info, err := os.Stat(input); err == nil && info.Size() > 0 {
			p := mpb.New(mpb.WithWidth(60))
			bar := p.AddBar(info.Size(),
				mpb.PrependDecorators(decor.Name("add")),
				mpb.AppendDecorators(
					decor.Counters(decor.UnitKiB, "% .1f / % .1f", decor.WC{W: 6}),
				),
			)
			reader = bar.ProxyReader(in)
		}
	} else {
		fmt.Fprintln(os.Stderr, "reading from stdin; progress display unavailable")
	}

	writer, err := pile.NewManifestWriter(store, outFile, trim)
	if err != nil {
		die("could not start manifest:", err)
	}
	if err := writer.WriteStream(reader); err != nil {
		die("ingest failed:", err)
	}
	if err := persist.SaveBinary(output+".summary", writer.Summary()); err != nil {
		die("could not write manifest summary:", err)
	}

	fmt.Fprintf(os.Stderr, "new blocks: %d, lookup hits: %d, hash failures: %d\n",
		store.Stats.NewBlocks(), store.Stats.LookupHits(), store.Stats.HashFailures())
}

func readCmd(cmd *cobra.Command, args []string) {
	if len(args) != 2 {
		usage("usage: imagepile read <manifest> <output>")
		return
	}
	manifestPath, output := args[0], args[1]
	if manifestPath == output {
		die(pile.ErrSameInputOutput)
	}

	store, log := openStore(false)
	pile.ShutdownOnSignal(store, log)
	defer store.Shutdown()

	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		die("cannot open manifest:", err)
	}
	defer manifestFile.Close()

	outFile, err := openOutput(output)
	if err != nil {
		die("cannot open output:", err)
	}
	defer outFile.Close()

	rl := pile.NewRateLimit(build.MaxMBPS())
	out := pile.Throttle(nopReadCloser{outFile}, rl, store.StopChan())

	reader, err := pile.NewManifestReader(store, manifestFile)
	if err != nil {
		die("bad manifest:", err)
	}
	if err := reader.WriteStream(out); err != nil {
		die("reconstruction failed:", err)
	}
}

// manifestStatsCmd reports a manifest's reconstructed length and block
// count from its header and offset table alone, without opening the pool.
func manifestStatsCmd(manifestPath string) {
	f, err := os.Open(manifestPath)
	if err != nil {
		die("cannot open manifest:", err)
	}
	defer f.Close()

	idx, err := pile.LoadManifestIndex(f)
	if err != nil {
		die("bad manifest:", err)
	}
	fmt.Printf("reconstructed size: %d bytes\n", idx.Size())
	fmt.Printf("blocks:             %d\n", len(idx.Offsets))
	fmt.Printf("start_trim:         %d\n", idx.StartTrim)
}

// storeStatsCmd reports index load distribution and pool size for the
// whole base directory, optionally serving them over HTTP per
// IMAGEPILE_STATS_ADDR.
func storeStatsCmd() {
	store, _ := openStore(false)
	defer store.Shutdown()

	summary := pile.Summarize(store.Index)
	fmt.Printf("index entries:        %d\n", store.Index.Entries())
	fmt.Printf("populated buckets:     %d\n", summary.Buckets)
	fmt.Printf("mean bucket chain:     %.2f\n", summary.Mean)
	fmt.Printf("longest bucket chain:  %.0f\n", summary.Max)
	fmt.Printf("bucket chain stddev:   %.2f\n", summary.StdDev)

	if n, err := store.Pool.Blocks(); err == nil {
		fmt.Printf("pool blocks:           %d\n", n)
		fmt.Printf("pool size:             %d bytes\n", int64(n)*pile.BlockSize)
	}

	if addr := build.StatsAddr(); addr != "" {
		fmt.Fprintln(os.Stderr, "serving stats and metrics on", addr)
		die(pile.ServeStats(addr, store))
	}
}

func statsCmd(cmd *cobra.Command, args []string) {
	switch len(args) {
	case 0:
		storeStatsCmd()
	case 1:
		manifestStatsCmd(args[0])
	default:
		usage("usage: imagepile stats [manifest]")
	}
}

func main() {
	root := &cobra.Command{
		Use:   "imagepile",
		Short: "Content-addressed deduplication store for disk images",
		Long:  "imagepile v" + build.Version + " manages a deduplicated pool of disk-image blocks.",
	}

	root.AddCommand(&cobra.Command{
		Use:   "add [trim] <input> <manifest>",
		Short: "Ingest an image into the block pool, producing a manifest",
		Run:   addCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "read <manifest> <output>",
		Short: "Reconstruct an image from its manifest",
		Run:   readCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "stats [manifest]",
		Short: "Print manifest or block-pool statistics",
		Run:   statsCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run:   versionCmd,
	})

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeUsage)
	}
}
