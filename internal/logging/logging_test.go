package logging

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestLogWritesToCategorySink(t *testing.T) {
	var buf bytes.Buffer
	h := NewHub(map[Category]io.Writer{System: &buf})

	h.SystemInfo("daemon ready on %s", "work_dir")

	if buf.Len() == 0 {
		t.Fatal("SystemInfo() wrote nothing to the system sink")
	}
}

func TestLogDoesNotWriteToOtherCategories(t *testing.T) {
	var sysBuf, transferBuf bytes.Buffer
	h := NewHub(map[Category]io.Writer{System: &sysBuf, Transfer: &transferBuf})

	h.SystemInfo("hello")

	if transferBuf.Len() != 0 {
		t.Errorf("transfer sink got %q, want empty", transferBuf.String())
	}
}

func TestLogSuppressesExactDuplicatesWithinWindow(t *testing.T) {
	var buf bytes.Buffer
	h := NewHub(map[Category]io.Writer{Transfer: &buf})

	h.TransferWarn("host-a", 0, "connection refused")
	firstLen := buf.Len()
	h.TransferWarn("host-a", 0, "connection refused")

	if buf.Len() != firstLen {
		t.Errorf("second identical message within the suppression window wrote %d more bytes, want 0", buf.Len()-firstLen)
	}

	time.Sleep(2 * suppressWindow)
	if buf.Len() <= firstLen {
		t.Error("coalesced duplicate summary was never emitted after the suppression window elapsed")
	}
}
