package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/majorcontext/berm/internal/units"
)

func testBar() *Bar {
	return &Bar{enabled: true, width: func() int { return 100 }}
}

func TestBarRenderShowsCountsAndPercent(t *testing.T) {
	b := testBar()
	line := b.render(units.GiB, 2*units.GiB, 100*float64(units.MiB), 10*time.Second)

	if !strings.Contains(line, "50%") {
		t.Errorf("render should show 50%%: %q", line)
	}
	if !strings.Contains(line, "1.0 GiB / 2.0 GiB") {
		t.Errorf("render should show byte counts: %q", line)
	}
	if !strings.Contains(line, "100 MiB/s") {
		t.Errorf("render should show throughput: %q", line)
	}
	if !strings.Contains(line, "ETA 00:10") {
		t.Errorf("render should show the ETA: %q", line)
	}
}

func TestBarRenderCapsAtFull(t *testing.T) {
	b := testBar()
	line := b.render(3*units.GiB, 2*units.GiB, 0, 0)
	if !strings.Contains(line, "100%") {
		t.Errorf("overshoot should cap at 100%%: %q", line)
	}
}

func TestBarRenderNarrowTerminal(t *testing.T) {
	b := testBar()
	b.width = func() int { return 20 }
	line := b.render(units.MiB, 10*units.MiB, 0, 0)
	if strings.Contains(line, "[") {
		t.Errorf("narrow terminal should drop the bar glyphs: %q", line)
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "--:--"},
		{-time.Second, "--:--"},
		{90 * time.Second, "01:30"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2:03:04"},
	}
	for _, tt := range tests {
		if got := formatETA(tt.in); got != tt.want {
			t.Errorf("formatETA(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
