package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/majorcontext/berm/internal/units"
)

// Bar renders a single-line progress bar on stderr, overwriting itself
// on each update. It degrades to nothing when stderr is not a terminal.
type Bar struct {
	out     io.Writer
	enabled bool
	width   func() int
	drawn   bool
	last    time.Time
}

// NewBar creates a progress bar. It renders only when enabled and stderr
// is a terminal.
func NewBar(enabled bool) *Bar {
	return &Bar{
		out:     os.Stderr,
		enabled: enabled && StderrIsTerminal(),
		width:   terminalWidth,
	}
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Update redraws the bar. Updates are throttled to one redraw per 100ms;
// the meter reports about once a second anyway.
func (b *Bar) Update(transferred, total int64, throughput float64, eta time.Duration) {
	if !b.enabled {
		return
	}
	if now := time.Now(); now.Sub(b.last) < 100*time.Millisecond {
		return
	} else {
		b.last = now
	}

	line := b.render(transferred, total, throughput, eta)
	fmt.Fprintf(b.out, "\r\033[K%s", line)
	b.drawn = true
}

func (b *Bar) render(transferred, total int64, throughput float64, eta time.Duration) string {
	counts := fmt.Sprintf("%s / %s", units.Format(transferred), units.Format(total))
	rate := units.FormatRate(throughput)
	tail := fmt.Sprintf("%s  %s  ETA %s", counts, rate, formatETA(eta))

	percent := 0.0
	if total > 0 {
		percent = float64(transferred) / float64(total)
		if percent > 1 {
			percent = 1
		}
	}

	// Leave room for the textual tail; shrink the bar to fit.
	barWidth := b.width() - len(tail) - 10
	if barWidth < 10 {
		return fmt.Sprintf("%3.0f%%  %s", percent*100, tail)
	}
	filled := int(percent * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	return fmt.Sprintf("[%s] %3.0f%%  %s", bar, percent*100, tail)
}

func formatETA(eta time.Duration) string {
	if eta <= 0 {
		return "--:--"
	}
	eta = eta.Round(time.Second)
	h := int(eta.Hours())
	m := int(eta.Minutes()) % 60
	s := int(eta.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Finish ends the bar's line so subsequent output starts clean.
func (b *Bar) Finish() {
	if b.enabled && b.drawn {
		fmt.Fprintln(b.out)
		b.drawn = false
	}
}
