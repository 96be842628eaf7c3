// Package progress renders serialization progress on the terminal.
package progress

import (
	"github.com/schollz/progressbar/v3"
)

// Bar is a nil-safe wrapper around a terminal progress bar. A nil *Bar
// discards all updates, so callers never need to branch on quiet mode.
type Bar struct {
	bar *progressbar.ProgressBar
}

const resolution = 1000

// New returns a progress bar with the given description, or nil when
// disabled.
func New(description string, enabled bool) *Bar {
	if !enabled {
		return nil
	}
	return &Bar{bar: progressbar.NewOptions(resolution,
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)}
}

// Set updates the bar to the given fraction done, in the range [0, 1].
func (b *Bar) Set(fraction float64) {
	if b == nil {
		return
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	_ = b.bar.Set(int(fraction * resolution))
}

// Finish completes and clears the bar.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
