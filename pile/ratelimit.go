package pile

import (
	"io"
	"net"
	"time"

	"github.com/uplo-tech/ratelimit"
)

// fileConn adapts a plain stream (an open file, or os.Stdin/os.Stdout) to
// the net.Conn interface ratelimit.NewRLConn expects. imagepile throttles
// local file I/O rather than a network socket, so the address and deadline
// methods are no-ops.
type fileConn struct {
	io.ReadWriteCloser
}

func (fileConn) LocalAddr() net.Addr             { return pileAddr{} }
func (fileConn) RemoteAddr() net.Addr            { return pileAddr{} }
func (fileConn) SetDeadline(time.Time) error     { return nil }
func (fileConn) SetReadDeadline(time.Time) error { return nil }
func (fileConn) SetWriteDeadline(time.Time) error {
	return nil
}

type pileAddr struct{}

func (pileAddr) Network() string { return "file" }
func (pileAddr) String() string  { return "imagepile" }

// NewRateLimit builds a ratelimit.RateLimit from a megabytes-per-second
// cap (see build.MaxMBPS). A non-positive cap means unlimited, reported as
// a nil RateLimit so callers can skip wrapping entirely.
func NewRateLimit(maxMBPS int64) *ratelimit.RateLimit {
	if maxMBPS <= 0 {
		return nil
	}
	bps := maxMBPS << 20
	return ratelimit.NewRateLimit(bps, bps, 0)
}

// Throttle wraps rw so its reads and writes are paced by rl, stopping
// early if stop closes. A nil rl returns rw unchanged.
func Throttle(rw io.ReadWriteCloser, rl *ratelimit.RateLimit, stop <-chan struct{}) io.ReadWriteCloser {
	if rl == nil {
		return rw
	}
	return ratelimit.NewRLConn(fileConn{rw}, rl, stop)
}
