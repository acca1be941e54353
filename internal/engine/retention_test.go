package engine

import (
	"testing"
	"time"
)

func names(ts ...string) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = "data." + t
	}
	return out
}

func TestPruneVictimsRespectsCutoff(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	all := names(
		"2025-05-01T00:00:00Z",
		"2025-05-15T00:00:00Z",
		"2025-06-10T00:00:00Z",
		"2025-06-20T00:00:00Z",
	)

	victims := pruneVictims(all, "data", cutoff, 1)
	want := names("2025-05-01T00:00:00Z", "2025-05-15T00:00:00Z")
	if len(victims) != len(want) {
		t.Fatalf("victims = %v, want %v", victims, want)
	}
	for i := range want {
		if victims[i] != want[i] {
			t.Errorf("victims[%d] = %q, want %q", i, victims[i], want[i])
		}
	}
}

func TestPruneVictimsKeepsMinimumEvenWhenAllOld(t *testing.T) {
	// Property 5: the floor holds even when every snapshot is over-age.
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := names(
		"2025-05-01T00:00:00Z",
		"2025-05-15T00:00:00Z",
		"2025-06-10T00:00:00Z",
	)

	victims := pruneVictims(all, "data", cutoff, 2)
	if len(victims) != 1 {
		t.Fatalf("victims = %v, want exactly 1 so 2 remain", victims)
	}
	if victims[0] != "data.2025-05-01T00:00:00Z" {
		t.Errorf("victim = %q, want the oldest", victims[0])
	}
}

func TestPruneVictimsNoneWhenUnderFloor(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := names("2025-05-01T00:00:00Z")

	if victims := pruneVictims(all, "data", cutoff, 1); len(victims) != 0 {
		t.Errorf("victims = %v, want none", victims)
	}
}

func TestPruneVictimsSkipsMalformedNames(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := []string{
		"data.2025-05-01T00:00:00Z",
		"data.not-a-timestamp",
		"data.2025-06-10T00:00:00Z",
	}

	victims := pruneVictims(all, "data", cutoff, 1)
	for _, v := range victims {
		if v == "data.not-a-timestamp" {
			t.Error("malformed name must not be pruned by age")
		}
	}
}

func TestPruneVictimsFloorTreatsZeroAsOne(t *testing.T) {
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	all := names("2025-05-01T00:00:00Z", "2025-06-10T00:00:00Z")

	victims := pruneVictims(all, "data", cutoff, 0)
	if len(victims) != 1 {
		t.Errorf("victims = %v, want 1 so the newest survives", victims)
	}
}
