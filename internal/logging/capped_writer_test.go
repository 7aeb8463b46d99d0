package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCappedFileWriterTruncatesAtLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("newCappedFileWriter: %v", err)
	}
	defer w.Close()

	line := strings.Repeat("x", 1024)
	// One MB cap: 1024 lines fill it, the next write truncates first.
	for i := 0; i < 1025; i++ {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 1024 {
		t.Fatalf("file size = %d, want 1024 after truncation", info.Size())
	}
}

func TestCappedFileWriterAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("newCappedFileWriter: %v", err)
	}
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}
