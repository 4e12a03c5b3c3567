// Package progress renders transfer progress. The engine only reports
// byte-count deltas through the Sink interface; everything about how
// they are displayed lives here.
package progress

import "io"

// Sink consumes byte-count deltas from the copy engine.
type Sink interface {
	// Start announces the total number of bytes the run will move.
	Start(total int64)
	// Add records n more bytes written to the destination.
	Add(n int64)
	// Finish flushes pending output. Called on every exit path.
	Finish()
}

// Options select a sink for the run's output mode.
type Options struct {
	Out     io.Writer
	Verbose bool
	IsTTY   bool
	Width   int
}

// New returns the sink matching the run's output mode: silent when not
// verbose, an in-place bar on a terminal, periodic plain lines otherwise.
//
//nolint:ireturn // factory returns interface by design
func New(opts Options) Sink {
	if !opts.Verbose {
		return Nop{}
	}
	if opts.IsTTY {
		return newBar(opts.Out, opts.Width)
	}
	return newPlain(opts.Out)
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(int64) {}
func (Nop) Add(int64)   {}
func (Nop) Finish()     {}
