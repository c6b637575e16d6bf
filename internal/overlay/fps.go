package overlay

import (
	"sync"
	"time"
)

// FPSMeter derives an instantaneous frame rate from the wall-clock delta
// between consecutive ticks.
type FPSMeter struct {
	mu   sync.Mutex
	prev time.Time
	now  func() time.Time
}

// NewFPSMeter creates a meter backed by the system clock.
func NewFPSMeter() *FPSMeter {
	return &FPSMeter{now: time.Now}
}

// Tick records a frame and returns the truncated frames-per-second since the
// previous tick. The first tick, and any tick whose delta is not positive,
// returns 0.
func (m *FPSMeter) Tick() int {
	return m.tickAt(m.now())
}

func (m *FPSMeter) tickAt(t time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.prev
	m.prev = t

	if prev.IsZero() {
		return 0
	}
	delta := t.Sub(prev)
	if delta <= 0 {
		return 0
	}
	return int(float64(time.Second) / float64(delta))
}

// Reset forgets the previous tick.
func (m *FPSMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prev = time.Time{}
}
