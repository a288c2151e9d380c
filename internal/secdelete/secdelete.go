// Package secdelete overwrites scratch files holding source documents and
// extracted personal data before removing them, adapted from the teacher's
// internal/security.SecureDeleteFile. The per-run work directory holds a
// copy of the applicant's uploaded document plus any intermediate PDF, so a
// plain os.RemoveAll leaves recoverable plaintext on disk until the
// filesystem reuses those blocks; this package closes that gap.
package secdelete

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const overwritePasses = 3

// Dir securely deletes every regular file under dir, then removes dir
// itself. Errors deleting individual files are logged and aggregated but do
// not stop the walk, so a single unreadable file can't leave the rest of a
// run's scratch data behind.
func Dir(dir string, logger *zap.Logger) error {
	const operation = "secdelete.Dir"

	var firstErr error
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ferr := File(path); ferr != nil {
			logger.Warn("secure delete failed for file", zap.String("operation", operation), zap.String("path", path), zap.Error(ferr))
			if firstErr == nil {
				firstErr = ferr
			}
		}
		return nil
	})
	if err != nil && firstErr == nil {
		firstErr = err
	}

	if rmErr := os.RemoveAll(dir); rmErr != nil {
		logger.Warn("removing work directory failed", zap.String("operation", operation), zap.String("dir", dir), zap.Error(rmErr))
		if firstErr == nil {
			firstErr = rmErr
		}
	}
	return firstErr
}

// File overwrites path with random data overwritePasses times, truncates it,
// and removes it. Best-effort: true secure erasure depends on the
// underlying filesystem and storage medium (copy-on-write filesystems and
// SSD wear leveling can retain the original blocks regardless).
func File(path string) error {
	const operation = "secdelete.File"

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: stat: %w", operation, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s: %s is a directory", operation, path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%s: open: %w", operation, err)
	}
	defer f.Close()

	size := info.Size()
	for pass := 0; pass < overwritePasses; pass++ {
		if _, err := io.CopyN(f, rand.Reader, size); err != nil {
			return fmt.Errorf("%s: overwrite pass %d: %w", operation, pass+1, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("%s: sync pass %d: %w", operation, pass+1, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%s: seek pass %d: %w", operation, pass+1, err)
		}
	}

	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("%s: truncate: %w", operation, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: close before remove: %w", operation, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%s: remove: %w", operation, err)
	}
	return nil
}
