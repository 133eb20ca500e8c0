package local

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMoveRenamesWithinSameDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "sub", "dst.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(dst, src); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("destination not readable: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected destination contents: %q", data)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, stat err=%v", err)
	}
}
