// Package fixture guarantees that files the test suites expect exist
// before any suite starts, and keeps concurrent runs of one project apart.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a blocked Lock polls for the lock.
const lockRetry = 50 * time.Millisecond

// Ensure creates path as an empty file, together with its parent directory,
// if it does not exist yet. An existing file is left untouched.
// It reports whether the file was created.
func Ensure(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("fixture path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating fixture directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, checkRegular(path)
		}
		return false, fmt.Errorf("creating fixture %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing fixture %s: %w", path, err)
	}
	return true, nil
}

func checkRegular(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking fixture %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("fixture %s exists but is not a regular file (%s)", path, info.Mode().Type())
	}
	return nil
}

// Lock takes an exclusive advisory lock on path, creating the file and its
// directory if needed. It waits until the lock is free or ctx is done.
// The returned function releases the lock; the lock file stays in place.
func Lock(ctx context.Context, path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("locking %s: %w", path, ctx.Err())
	}
	return fl.Unlock, nil
}
