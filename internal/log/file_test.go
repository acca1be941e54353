package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileSinkWritesDayStampedFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink() error: %v", err)
	}
	defer sink.Close()

	if _, err := sink.Write([]byte(`{"msg":"hello"}` + "\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	want := filepath.Join(dir, "berm-"+time.Now().Format(time.DateOnly)+".jsonl")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("expected day-stamped file: %v", err)
	}
	if string(data) != `{"msg":"hello"}`+"\n" {
		t.Errorf("file contents = %q", data)
	}
}

func TestCleanupRemovesOnlyOldDebugFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "berm-2020-01-01.jsonl")
	recent := filepath.Join(dir, "berm-"+time.Now().Format(time.DateOnly)+".jsonl")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, recent, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	Cleanup(dir, 30)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old debug file should be removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("recent debug file should survive")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file should survive")
	}
}
