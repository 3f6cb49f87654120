package logs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadMissingFile(t *testing.T) {
	lines, offset, err := Read(filepath.Join(t.TempDir(), "nope.log"), -1, 10)
	if err != nil {
		t.Fatalf("read missing: %v", err)
	}
	if len(lines) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %v at %d", lines, offset)
	}
}

func TestReadTailLimits(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	lines, offset, err := Read(path, -1, 2)
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if len(lines) != 2 || lines[0] != "three" || lines[1] != "four" {
		t.Fatalf("unexpected tail lines: %v", lines)
	}
	if offset == 0 {
		t.Fatal("expected resume offset at end of file")
	}

	// Resuming from the returned offset yields nothing until more is written.
	lines, _, err = Read(path, offset, 10)
	if err != nil {
		t.Fatalf("resume read: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("expected no new lines, got %v", lines)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("five\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	lines, next, err := Read(path, offset, 10)
	if err != nil {
		t.Fatalf("read appended: %v", err)
	}
	if len(lines) != 1 || lines[0] != "five" {
		t.Fatalf("expected appended line, got %v", lines)
	}
	if next <= offset {
		t.Fatalf("offset did not advance: %d -> %d", offset, next)
	}
}

func TestReadSkipsPartialTrailingLine(t *testing.T) {
	path := writeLog(t, "done\npart")

	lines, offset, err := Read(path, 0, 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 1 || lines[0] != "done" {
		t.Fatalf("unexpected lines: %v", lines)
	}
	if offset != int64(len("done\n")) {
		t.Fatalf("offset should stop before partial line, got %d", offset)
	}
}
