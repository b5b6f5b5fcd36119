package revocation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	lockRetryInterval = 10 * time.Millisecond
	lockTimeout       = 2 * time.Second
	lockStaleAfter    = 10 * time.Second
)

// Revoker serializes updates to the revocation artifact. A lock file next to
// the artifact guarantees a second revoke never reads a stale copy and loses
// the first one.
type Revoker struct {
	path   string
	logger *slog.Logger
}

// NewRevoker returns a Revoker for the artifact at path.
func NewRevoker(path string, logger *slog.Logger) *Revoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revoker{path: path, logger: logger}
}

// Revoke records the serial in the artifact. If the existing artifact is
// corrupt the update falls back to rebuilding it from just this serial:
// serials revoked between the corruption and the rebuild are lost from the
// artifact (though not from the store, which can regenerate it). Once Revoke
// returns, IsRevoked reports true for the serial across process restarts.
func (r *Revoker) Revoke(serial uint64) error {
	release, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	list, err := Load(r.path)
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		r.logger.Warn("revocation artifact corrupt, rebuilding from current entry",
			"path", r.path, "serial", serial)
		list = NewList()
	}

	list.Add(serial)
	return Save(r.path, list)
}

// IsRevoked reloads the artifact and reports whether the serial is revoked.
// A corrupt artifact reads as empty; the next Revoke or rebuild repairs it.
func (r *Revoker) IsRevoked(serial uint64) (bool, error) {
	list, err := Load(r.path)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			r.logger.Warn("revocation artifact corrupt, treating as empty", "path", r.path)
			return false, nil
		}
		return false, err
	}
	return list.Contains(serial), nil
}

// Count returns the number of serials in the artifact. Corrupt artifacts
// count as empty.
func (r *Revoker) Count() (int, error) {
	list, err := Load(r.path)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return 0, nil
		}
		return 0, err
	}
	return list.Len(), nil
}

// Rebuild replaces the artifact wholesale with the given serials. The store's
// revoked rows are the source of truth, so a rebuild from them recovers
// serials a corruption fallback may have dropped.
func (r *Revoker) Rebuild(serials []uint64) error {
	release, err := r.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	list := NewList()
	for _, s := range serials {
		list.Add(s)
	}
	return Save(r.path, list)
}

// acquireLock takes the exclusive artifact lock, waiting up to lockTimeout.
// A lock file older than lockStaleAfter is assumed abandoned by a crashed
// writer and is broken.
func (r *Revoker) acquireLock() (func(), error) {
	lockPath := r.path + ".lock"
	deadline := time.Now().Add(lockTimeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquiring revocation lock: %w", err)
		}

		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			r.logger.Warn("breaking stale revocation lock", "path", lockPath)
			os.Remove(lockPath)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquiring revocation lock: timed out after %s", lockTimeout)
		}
		time.Sleep(lockRetryInterval)
	}
}
