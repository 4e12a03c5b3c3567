package progress

import (
	"fmt"
	"io"
	"time"
)

const (
	redrawInterval = 100 * time.Millisecond
	maxBarWidth    = 40
)

// bar renders a single in-place progress line on a terminal.
type bar struct {
	w        io.Writer
	width    int
	meter    *Meter
	lastDraw time.Time
}

func newBar(w io.Writer, width int) *bar {
	return &bar{w: w, width: width}
}

func (b *bar) Start(total int64) {
	b.meter = NewMeter(total)
	b.draw()
}

func (b *bar) Add(n int64) {
	b.meter.Add(n)
	if time.Since(b.lastDraw) >= redrawInterval {
		b.draw()
	}
}

func (b *bar) Finish() {
	if b.meter == nil {
		return
	}
	b.draw()
	fmt.Fprintln(b.w)
}

func (b *bar) draw() {
	b.lastDraw = time.Now()
	m := b.meter

	tail := fmt.Sprintf(" %3.0f%%  %s / %s  %s  eta %s",
		m.Fraction()*100,
		FormatBytes(m.Done()), FormatBytes(m.Total()),
		FormatRate(m.Rate()),
		FormatETA(m.ETA()),
	)

	barWidth := b.width - len(tail) - 2
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}

	// \033[K clears to end of line so a shrinking tail leaves no residue.
	fmt.Fprintf(b.w, "\r%s%s\033[K", Bar(m.Fraction(), barWidth), tail)
}
