// Package progress renders terminal progress for the CLI: a spinner while a
// search is polled and live bars for incoming transfers.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Spinner shows an indeterminate spinner on a terminal and plain status
// lines everywhere else.
type Spinner struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewSpinner starts a spinner writing to out.
func NewSpinner(out io.Writer, description string) *Spinner {
	s := &Spinner{out: out}
	if !IsTerminal(out) {
		fmt.Fprintln(out, description)
		return s
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	return s
}

// Describe replaces the spinner text.
func (s *Spinner) Describe(description string) {
	if s.bar == nil {
		fmt.Fprintln(s.out, description)
		return
	}
	s.bar.Describe(description)
	_ = s.bar.Add(1)
}

// Finish clears the spinner.
func (s *Spinner) Finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}
