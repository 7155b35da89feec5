// Package perf keeps rolling windows of request durations for display.
package perf

import (
	"sync"
	"time"
)

// DefaultSize is the number of samples a window retains.
const DefaultSize = 50

// Window is a fixed-size rolling set of duration samples.
type Window struct {
	mu      sync.Mutex
	size    int
	samples []time.Duration
	total   int64
}

// Stats summarises a window.
type Stats struct {
	Count   int           `json:"count"`
	Total   int64         `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Last    time.Duration `json:"last"`
}

// NewWindow creates a window holding at most size samples.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{size: size, samples: make([]time.Duration, 0, size)}
}

// Record adds one sample, dropping the oldest when full.
func (w *Window) Record(d time.Duration) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total++
	if len(w.samples) == w.size {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = d
		return
	}
	w.samples = append(w.samples, d)
}

// Stats returns aggregate figures over the retained samples. Total counts
// every sample ever recorded.
func (w *Window) Stats() Stats {
	if w == nil {
		return Stats{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	stats := Stats{Count: len(w.samples), Total: w.total}
	if len(w.samples) == 0 {
		return stats
	}
	var sum time.Duration
	stats.Min = w.samples[0]
	for _, d := range w.samples {
		sum += d
		if d < stats.Min {
			stats.Min = d
		}
		if d > stats.Max {
			stats.Max = d
		}
	}
	stats.Average = sum / time.Duration(len(w.samples))
	stats.Last = w.samples[len(w.samples)-1]
	return stats
}
