// Package series holds the bounded, append-only time series of emotion
// observations collected during one recording session.
package series

import (
	"strings"
	"sync"
)

// DefaultCapacity is the number of observations retained before the oldest is evicted.
const DefaultCapacity = 800

// Emotion names tracked by the series, in canonical order.
const (
	Joy     = "joy"
	Sadness = "sadness"
	Anger   = "anger"
	Fear    = "fear"
	Disgust = "disgust"
)

// Emotions lists the tracked emotion names in canonical order. Ties in any
// ranking keep this order.
var Emotions = []string{Joy, Sadness, Anger, Fear, Disgust}

// Scores holds one score in [0,1] per tracked emotion.
type Scores struct {
	Joy     float64 `json:"joy"`
	Sadness float64 `json:"sadness"`
	Anger   float64 `json:"anger"`
	Fear    float64 `json:"fear"`
	Disgust float64 `json:"disgust"`
}

// Get returns the score for a canonical emotion name. Unknown names return 0.
func (s Scores) Get(name string) float64 {
	switch name {
	case Joy:
		return s.Joy
	case Sadness:
		return s.Sadness
	case Anger:
		return s.Anger
	case Fear:
		return s.Fear
	case Disgust:
		return s.Disgust
	default:
		return 0
	}
}

// Set assigns a score by name, matching case-insensitively. Unknown names are
// ignored. It reports whether the name was tracked.
func (s *Scores) Set(name string, value float64) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Joy:
		s.Joy = value
	case Sadness:
		s.Sadness = value
	case Anger:
		s.Anger = value
	case Fear:
		s.Fear = value
	case Disgust:
		s.Disgust = value
	default:
		return false
	}
	return true
}

// EmotionScore is one named score as returned by the inference service.
type EmotionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ScoresFrom maps service emotion entries onto the tracked set. Names missing
// from entries default to 0.
func ScoresFrom(entries []EmotionScore) Scores {
	var scores Scores
	for _, entry := range entries {
		scores.Set(entry.Name, clamp(entry.Score))
	}
	return scores
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Observation is one analysed frame. Timestamp is whole seconds elapsed since
// the session started.
type Observation struct {
	Timestamp int64 `json:"timestamp"`
	Scores
}

// Series is a capacity-bounded buffer of observations in insertion order.
type Series struct {
	mu       sync.Mutex
	capacity int
	items    []Observation
}

// New creates an empty series. Non-positive capacities use DefaultCapacity.
func New(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Series{capacity: capacity, items: make([]Observation, 0, capacity)}
}

// Append adds obs, evicting the oldest observation when the series is full.
func (s *Series) Append(obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == s.capacity {
		copy(s.items, s.items[1:])
		s.items[len(s.items)-1] = obs
		return
	}
	s.items = append(s.items, obs)
}

// Len returns the number of stored observations.
func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Capacity returns the eviction threshold.
func (s *Series) Capacity() int {
	return s.capacity
}

// Last returns the most recent observation.
func (s *Series) Last() (Observation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return Observation{}, false
	}
	return s.items[len(s.items)-1], true
}

// Snapshot returns a copy of the stored observations, oldest first.
func (s *Series) Snapshot() []Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observation, len(s.items))
	copy(out, s.items)
	return out
}

// Reset discards every observation.
func (s *Series) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
}
