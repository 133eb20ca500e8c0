// Package local is sf_local/gf_local's transfer client: a same-host
// move within the work directory tree (§6, local protocol). It tries
// os.Rename first and falls back to a copy-then-remove whenever the
// rename fails (for example across filesystems), the fallback the
// teacher's local backend uses around its own os.Rename call.
package local

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Move relocates localPath to destPath, preferring a rename and
// falling back to copy+remove when the rename fails.
func Move(destPath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("local: mkdir %s: %w", filepath.Dir(destPath), err)
	}
	if err := os.Rename(localPath, destPath); err == nil {
		return nil
	}
	return copyThenRemove(destPath, localPath)
}

func copyThenRemove(destPath, localPath string) error {
	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("local: open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("local: create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("local: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("local: close destination: %w", err)
	}
	if err := os.Remove(localPath); err != nil {
		return fmt.Errorf("local: remove source: %w", err)
	}
	return nil
}
