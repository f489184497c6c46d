package pile

import (
	"os"
	"path/filepath"

	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/threadgroup"

	"github.com/Urs-Bruelhart/imagepile/persist"
)

// Store owns the two on-disk files a pile directory consists of (the block
// pool and the fingerprint index log), the in-memory index rebuilt from
// that log, and the counters accumulated during the current session. It
// replaces the module-scope globals (a bare 65536-bucket array and
// free-standing stats variables) that a straight port would otherwise
// carry forward: every operation takes a *Store by reference instead of
// touching package state, so nothing prevents two independent Stores from
// coexisting in one process (e.g. under test).
type Store struct {
	Pool  *Pool
	Index *Index
	Stats *Stats
	dedup *Deduplicator
	log   *persist.Logger

	tg threadgroup.ThreadGroup
}

// NewStore opens (or creates, if writable) the pool and index files inside
// dir and rebuilds the in-memory fingerprint index from the index log. dir
// is created, with any missing parents, if it does not exist.
func NewStore(dir string, writable bool, log *persist.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, persist.DefaultDirPermissions); err != nil {
		return nil, errors.AddContext(err, "could not create base directory")
	}
	pool, err := OpenPool(filepath.Join(dir, PoolFilename), writable)
	if err != nil {
		return nil, err
	}
	index, err := OpenIndex(filepath.Join(dir, IndexFilename), writable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	stats := &Stats{}
	s := &Store{
		Pool:  pool,
		Index: index,
		Stats: stats,
		dedup: NewDeduplicator(pool, index, stats),
		log:   log,
	}
	return s, nil
}

// Admit runs the critical section described in SPEC_FULL §5: the pool
// append and the index append that can follow it must be observed by a
// termination signal as an atomic pair. Admit registers with the Store's
// thread group for the duration of the pair so a concurrent Close (driven
// by a signal handler, see Store.Shutdown) blocks until the pair finishes
// rather than tearing down the files mid-write; once the pair is done the
// thread group is free to proceed with shutdown.
func (s *Store) Admit(candidate []byte) (uint32, error) {
	if err := s.tg.Add(); err != nil {
		return 0, errors.AddContext(err, "store is shutting down")
	}
	defer s.tg.Done()
	return s.dedup.Admit(candidate)
}

// ReadBlock reads the pool record at offset into buf, which must be
// BlockSize bytes. Used by manifest reconstruction, which does not need to
// participate in the ingest critical section since it never mutates the
// pool or index.
func (s *Store) ReadBlock(offset uint32, buf []byte) error {
	if err := s.Pool.ReadAt(offset, buf); err != nil {
		return err
	}
	s.Stats.addBlockRead()
	return nil
}

// OnShutdown registers fn to run when the Store begins shutting down, via
// the thread group's stop hook. A termination signal (see ShutdownOnSignal)
// calls Store.Shutdown, which runs every registered hook before waiting
// for in-flight critical sections to drain.
func (s *Store) OnShutdown(fn func() error) error {
	return s.tg.OnStop(fn)
}

// StopChan returns a channel that closes when Shutdown has been called,
// for long-running loops (e.g. the ingest loop over an input stream) that
// want to poll for termination between blocks without waiting on Admit's
// built-in serialization.
func (s *Store) StopChan() <-chan struct{} {
	return s.tg.StopChan()
}

// Shutdown blocks until any in-flight Admit call finishes, flushes both
// files to stable storage, and closes them. It is safe to call from a
// signal handler goroutine; it is idempotent.
func (s *Store) Shutdown() error {
	if err := s.tg.Stop(); err != nil {
		return errors.AddContext(err, "could not stop store thread group")
	}
	var errs []error
	if err := s.Pool.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Index.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Pool.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Index.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Compose(errs...)
}
