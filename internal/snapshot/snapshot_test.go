package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNameEmbedsUTCTimestamp(t *testing.T) {
	ts := time.Date(2025, 6, 1, 3, 15, 0, 0, time.FixedZone("CEST", 2*3600))
	got := Name("data", ts)
	want := "data.2025-06-01T01:15:00Z"
	if got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestParseNameRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 3, 15, 0, 0, time.UTC)
	name := Name("data", ts)

	parsed, ok := ParseName("data", name)
	if !ok {
		t.Fatalf("ParseName(%q) not ok", name)
	}
	if !parsed.Equal(ts) {
		t.Errorf("parsed = %v, want %v", parsed, ts)
	}
}

func TestParseNameRejectsForeignNames(t *testing.T) {
	cases := []string{
		"other.2025-06-01T03:15:00Z", // wrong base
		"data.not-a-timestamp",
		"data",
		"data.2025-06-01", // truncated timestamp
	}
	for _, name := range cases {
		if _, ok := ParseName("data", name); ok {
			t.Errorf("ParseName(%q) should not parse", name)
		}
	}
}

func TestNameOrderingMatchesTimeOrdering(t *testing.T) {
	older := Name("data", time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC))
	newer := Name("data", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if !(older < newer) {
		t.Errorf("lexical order should match time order: %q vs %q", older, newer)
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	mkdirs := []string{
		"data.2025-06-02T00:00:00Z",
		"data.2025-06-01T00:00:00Z",
		"other.2025-06-01T00:00:00Z", // different base
		"data.junk",                  // malformed timestamp
	}
	for _, name := range mkdirs {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// A plain file with a valid-looking name must not be listed.
	if err := os.WriteFile(filepath.Join(dir, "data.2025-06-03T00:00:00Z"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := List(dir, "data")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	want := []string{"data.2025-06-01T00:00:00Z", "data.2025-06-02T00:00:00Z"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	got, err := List(filepath.Join(t.TempDir(), "absent"), "data")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() = %v, want empty", got)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if !Exists(dir) {
		t.Error("Exists(dir) should be true")
	}
	if Exists(filepath.Join(dir, "nope")) {
		t.Error("Exists(missing) should be false")
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if Exists(file) {
		t.Error("Exists(regular file) should be false")
	}
}
