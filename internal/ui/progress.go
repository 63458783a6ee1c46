// Package ui renders the run/distributed CLI commands' terminal output: a
// banner, a live progress bar, and the end-of-test summary table.
// Colorized and TTY-aware, it degrades to plain text when stdout isn't a
// terminal.
package ui

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
)

// Colors used for the banner/value/gray text.
var (
	BannerColor = color.New(color.FgCyan, color.Bold)
	ValueColor  = color.New(color.FgCyan)
	GrayColor   = color.New(color.FgBlack, color.Bold)
)

// Banner is printed at the start of a run/distributed invocation.
const Banner = `
   _____ ____  ____  ____  ___ ____   ___
  / ___// __ \/ __ \/ __ \/ _ `+"`"+`/ __ \ / _ \
 / /__ / /_/ / /_/ / /_/ /  __/ /_/ //  __/
 \___/ \____/_/ /_/_/ /_/\___/_____/ \___/  core`

// ProgressBar renders a width-bounded [===>   ] bar with optional
// left/right label callbacks.
type ProgressBar struct {
	Width    int
	Progress float64 // 0..1
	Left     func() string
	Right    func() string
}

// String renders the current state of the bar. It never panics on NaN/Inf
// progress values (a zero-duration phase would otherwise divide by zero).
func (b ProgressBar) String() string {
	width := b.Width
	if width <= 0 {
		width = 40
	}
	left := ""
	if b.Left != nil {
		left = b.Left()
	}
	right := ""
	if b.Right != nil {
		right = b.Right()
	}

	p := b.Progress
	if p < 0 || p > 1 || p != p { // NaN check
		p = 0
	}
	filled := int(p * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
	return fmt.Sprintf("%s [%s] %s", left, bar, right)
}

// AtomicFraction is a convenience for progress callbacks backed by atomic
// counters (current/total), avoiding a division-by-zero panic on an empty
// denominator.
func AtomicFraction(current, total *uint64) float64 {
	t := atomic.LoadUint64(total)
	if t == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(current)) / float64(t)
}
