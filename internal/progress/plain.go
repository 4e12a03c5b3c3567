package progress

import (
	"fmt"
	"io"
	"time"
)

const plainInterval = 2 * time.Second

// plain prints a progress line every couple of seconds, for verbose
// runs whose output is not a terminal.
type plain struct {
	w        io.Writer
	meter    *Meter
	lastLine time.Time
}

func newPlain(w io.Writer) *plain {
	return &plain{w: w}
}

func (p *plain) Start(total int64) {
	p.meter = NewMeter(total)
	p.lastLine = time.Now()
}

func (p *plain) Add(n int64) {
	p.meter.Add(n)
	if time.Since(p.lastLine) >= plainInterval {
		p.print()
		p.lastLine = time.Now()
	}
}

func (p *plain) Finish() {
	if p.meter == nil {
		return
	}
	p.print()
}

func (p *plain) print() {
	m := p.meter
	fmt.Fprintf(p.w, "progress: %3.0f%% %s/%s %s eta %s\n",
		m.Fraction()*100,
		FormatBytes(m.Done()), FormatBytes(m.Total()),
		FormatRate(m.Rate()),
		FormatETA(m.ETA()),
	)
}
