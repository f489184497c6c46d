package pile

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Urs-Bruelhart/imagepile/persist"
)

// WatchTerminationSignals installs handlers for interrupt, termination,
// abort, and hangup (SPEC_FULL §5) and returns a function that blocks
// until one arrives. Call the returned function in its own goroutine; when
// it returns, the caller should stop accepting new work and call
// Store.Shutdown.
//
// The deferred-termination guarantee from §5 is implemented by
// Store.Admit's use of its thread group rather than by this function: a
// signal observed here always triggers a clean Shutdown, which itself
// blocks on any in-flight Admit call finishing its pool/index append pair
// before the files are flushed and closed. This is option (b) from
// SPEC_FULL's Design Notes — an atomic flag respected by the handler,
// expressed with the thread group the rest of the package already uses
// instead of a bespoke signal/flag pair.
func WatchTerminationSignals(log *persist.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT, syscall.SIGHUP)
	return func() {
		sig := <-sigChan
		if log != nil {
			log.Printf("caught signal %v, terminating", sig)
		}
	}
}

// ShutdownOnSignal starts a goroutine that waits for a termination signal
// and shuts store down when one arrives, logging the outcome. It returns
// immediately. store.StopChan() closes as soon as that shutdown begins,
// before the pool and index files are synced and closed.
func ShutdownOnSignal(store *Store, log *persist.Logger) {
	wait := WatchTerminationSignals(log)
	go func() {
		wait()
		if err := store.Shutdown(); err != nil && log != nil {
			log.Printf("error during signal-triggered shutdown: %v", err)
		}
	}()
}
