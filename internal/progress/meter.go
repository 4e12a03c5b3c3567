package progress

import "time"

const ringSize = 30

// Meter tracks bytes moved against a known total and derives a rolling
// transfer rate from roughly one-second samples. It is written by a
// single goroutine; there is exactly one producer per run.
type Meter struct {
	total int64
	done  int64
	start time.Time

	lastTick  time.Time
	lastBytes int64
	samples   [ringSize]float64 // bytes per second
	ringIdx   int
	ringCount int
}

// NewMeter creates a Meter for a transfer of total bytes.
func NewMeter(total int64) *Meter {
	now := time.Now()
	return &Meter{total: total, start: now, lastTick: now}
}

// Add records n more bytes. Once a second the delta since the previous
// sample is folded into the ring.
func (m *Meter) Add(n int64) {
	m.done += n
	now := time.Now()
	if d := now.Sub(m.lastTick); d >= time.Second {
		m.samples[m.ringIdx] = float64(m.done-m.lastBytes) / d.Seconds()
		m.ringIdx = (m.ringIdx + 1) % ringSize
		if m.ringCount < ringSize {
			m.ringCount++
		}
		m.lastTick = now
		m.lastBytes = m.done
	}
}

// Done returns bytes recorded so far.
func (m *Meter) Done() int64 { return m.done }

// Total returns the announced transfer length.
func (m *Meter) Total() int64 { return m.total }

// Fraction returns completion in [0, 1].
func (m *Meter) Fraction() float64 {
	if m.total <= 0 {
		return 1
	}
	f := float64(m.done) / float64(m.total)
	if f > 1 {
		f = 1
	}
	return f
}

// Rate returns the rolling bytes-per-second average, falling back to
// the whole-run average until the first full sample exists.
func (m *Meter) Rate() float64 {
	if m.ringCount == 0 {
		elapsed := time.Since(m.start).Seconds()
		if elapsed <= 0 {
			return 0
		}
		return float64(m.done) / elapsed
	}
	var sum float64
	for i := 0; i < m.ringCount; i++ {
		sum += m.samples[(m.ringIdx-1-i+ringSize)%ringSize]
	}
	return sum / float64(m.ringCount)
}

// ETA estimates remaining time from the current rate.
func (m *Meter) ETA() time.Duration {
	rate := m.Rate()
	if rate <= 0 {
		return 0
	}
	remaining := m.total - m.done
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second))
}

// Elapsed returns time since the meter was created.
func (m *Meter) Elapsed() time.Duration {
	return time.Since(m.start)
}
