package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Rotate backs up the existing cache database to backupPath and removes the
// original so the next write starts from an empty store. Exactly one prior
// generation is retained; an older backup at backupPath is overwritten.
// A missing cache file is not an error. The caller treats a failure as a
// warning and proceeds without a backup.
//
// Not safe against a concurrent run touching the same paths; the scheduler
// must guarantee a single instance at a time.
func Rotate(cachePath, backupPath string) error {
	if _, err := os.Stat(cachePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat cache %s: %w", cachePath, err)
	}
	if err := copyFile(cachePath, backupPath); err != nil {
		return fmt.Errorf("backup cache to %s: %w", backupPath, err)
	}
	if err := os.Remove(cachePath); err != nil {
		return fmt.Errorf("remove old cache %s: %w", cachePath, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
