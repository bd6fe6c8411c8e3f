package output

import (
	"fmt"
	"io"
)

// Progress writes stage notices to a side channel, normally stderr, so
// they never mix with JSON on stdout. A nil Progress discards everything.
type Progress struct {
	w     io.Writer
	quiet bool
}

// NewProgress returns a Progress writing to w. Quiet suppresses Step and
// Info but keeps warnings.
func NewProgress(w io.Writer, quiet bool) *Progress {
	return &Progress{w: w, quiet: quiet}
}

// Step announces a pipeline stage.
func (p *Progress) Step(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}
	_, _ = fmt.Fprintf(p.w, "==> "+format+"\n", args...)
}

// Info prints an informational line.
func (p *Progress) Info(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}
	_, _ = fmt.Fprintf(p.w, "    "+format+"\n", args...)
}

// Warn prints a warning. Warnings are never suppressed.
func (p *Progress) Warn(format string, args ...any) {
	if p == nil {
		return
	}
	_, _ = fmt.Fprintf(p.w, "warning: "+format+"\n", args...)
}
