package pile

import (
	"syscall"
	"testing"
	"time"
)

// TestShutdownOnSignalClosesStore checks that a signal delivered after
// ShutdownOnSignal is wired actually triggers a Store shutdown, observed
// through StopChan closing.
func TestShutdownOnSignalClosesStore(t *testing.T) {
	s, err := NewStore(t.TempDir(), true, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ShutdownOnSignal(s, nil)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("could not signal self: %v", err)
	}

	select {
	case <-s.StopChan():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal-triggered shutdown")
	}
}
