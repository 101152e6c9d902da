// Package progress renders a terminal progress bar for training epochs.
package progress

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Bar reports per-step training progress on stderr. A disabled Bar is a
// no-op, so callers never need to branch on terminal state.
type Bar struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

// New returns a Bar that renders only when enabled.
func New(enabled bool) *Bar {
	return &Bar{enabled: enabled}
}

// Enabled reports whether stderr is a terminal.
func Enabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Start begins a new bar over total steps.
func (p *Bar) Start(total int) {
	if !p.enabled || total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("training"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Increment advances the bar by one step.
func (p *Bar) Increment() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

// Finish completes and clears the bar.
func (p *Bar) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
