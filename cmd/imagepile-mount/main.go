// Command imagepile-mount exposes a single reconstructed manifest as a
// read-only file through FUSE, so tools that expect a regular block device
// or disk image on the filesystem can operate on a pile-backed image
// without a full "read" pass writing it out first.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/Urs-Bruelhart/imagepile/build"
	"github.com/Urs-Bruelhart/imagepile/persist"
	"github.com/Urs-Bruelhart/imagepile/pile"
)

func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

// imageFile is the single regular file node served under the mountpoint,
// backed by a ManifestIndex's random-access view of a Store.
type imageFile struct {
	fs.Inode
	idx   *pile.ManifestIndex
	store *pile.Store
}

var _ = (fs.NodeGetattrer)((*imageFile)(nil))
var _ = (fs.NodeOpener)((*imageFile)(nil))
var _ = (fs.NodeReader)((*imageFile)(nil))

func (f *imageFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | 0444
	out.Size = uint64(f.idx.Size())
	return 0
}

func (f *imageFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *imageFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := f.idx.ReadAt(f.store, dest, off)
	if err != nil && n == 0 {
		return fuse.ReadResultData(nil), 0
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// imageRoot is the mount's root directory; it exposes exactly one entry,
// named after the manifest file itself.
type imageRoot struct {
	fs.Inode
	name string
	file *imageFile
}

var _ = (fs.NodeOnAdder)((*imageRoot)(nil))

func (r *imageRoot) OnAdd(ctx context.Context) {
	child := r.NewPersistentInode(ctx, r.file, fs.StableAttr{Mode: fuse.S_IFREG})
	r.AddChild(r.name, child, false)
}

func main() {
	if len(os.Args) != 3 {
		die("usage: imagepile-mount <manifest> <mountpoint>")
	}
	manifestPath, mountpoint := os.Args[1], os.Args[2]

	dir, err := build.PileDir()
	if err != nil {
		die(err)
	}
	log, err := persist.NewLogger(os.Stderr)
	if err != nil {
		die("could not start logger:", err)
	}
	store, err := pile.NewStore(dir, false, log)
	if err != nil {
		die("could not open image pile in", dir, ":", err)
	}
	pile.ShutdownOnSignal(store, log)
	defer store.Shutdown()

	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		die("cannot open manifest:", err)
	}
	defer manifestFile.Close()

	idx, err := pile.LoadManifestIndex(manifestFile)
	if err != nil {
		die("bad manifest:", err)
	}

	root := &imageRoot{
		name: filepath.Base(manifestPath),
		file: &imageFile{idx: idx, store: store},
	}

	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "imagepile",
			Name:       "imagepile",
			Debug:      build.DEBUG,
			AllowOther: false,
		},
	})
	if err != nil {
		die("could not mount", mountpoint, ":", err)
	}

	fmt.Fprintf(os.Stderr, "serving %s (%d bytes) at %s\n", manifestPath, idx.Size(), mountpoint)
	server.Wait()
}
