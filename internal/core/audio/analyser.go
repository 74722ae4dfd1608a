package audio

import (
	"math"
	"strings"
	"sync"
)

// Levels is a snapshot of what an Analyser has seen.
type Levels struct {
	RMS   float64 // last block
	Peak  float64 // last block
	Bytes int64   // encoded bytes observed, for taps on compressed streams
}

// Analyser is a read-only tap on an audio path. Observing never alters the
// samples handed to it.
type Analyser struct {
	mu     sync.Mutex
	levels Levels
}

// NewAnalyser returns an empty tap.
func NewAnalyser() *Analyser {
	return &Analyser{}
}

// Observe records the level of one block of samples.
func (a *Analyser) Observe(samples []float32) {
	if a == nil || len(samples) == 0 {
		return
	}
	var sum, peak float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	a.mu.Lock()
	a.levels.RMS = math.Sqrt(sum / float64(len(samples)))
	a.levels.Peak = peak
	a.mu.Unlock()
}

// ObserveBytes counts n encoded bytes, used where samples are not decoded.
func (a *Analyser) ObserveBytes(n int) {
	if a == nil || n <= 0 {
		return
	}
	a.mu.Lock()
	a.levels.Bytes += int64(n)
	a.mu.Unlock()
}

// Levels returns the current snapshot. A nil Analyser reports zeros.
func (a *Analyser) Levels() Levels {
	if a == nil {
		return Levels{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels
}

// Bar renders the RMS level as a fixed-width meter.
func (l Levels) Bar(width int) string {
	if width <= 0 {
		return ""
	}
	n := int(math.Round(math.Min(l.RMS*4, 1) * float64(width)))
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}
