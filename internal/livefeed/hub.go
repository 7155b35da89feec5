package livefeed

import (
	"sync"

	"emotrack/internal/metrics"
	"emotrack/internal/series"
)

const defaultBuffer = 16

// Event types carried by the feed.
const (
	EventObservation = "observation"
	EventStatus      = "status"
)

// Event is one message on the live feed.
type Event struct {
	Type        string              `json:"type"`
	SessionID   string              `json:"session_id,omitempty"`
	Status      string              `json:"status,omitempty"`
	Observation *series.Observation `json:"observation,omitempty"`
}

// ObservationEvent wraps an observation for sessionID.
func ObservationEvent(sessionID string, obs series.Observation) Event {
	return Event{Type: EventObservation, SessionID: sessionID, Observation: &obs}
}

// StatusEvent announces a session state change.
func StatusEvent(sessionID, status string) Event {
	return Event{Type: EventStatus, SessionID: sessionID, Status: status}
}

// Subscription receives events until cancelled.
type Subscription struct {
	id   uint64
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// Events returns the receive channel. It is closed on Cancel.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel detaches the subscription from the hub.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.hub.remove(s.id) })
}

// Hub fans events out to subscribers. Publish never blocks; a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	last   *Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscriber with the given buffer size. The most
// recent event, if any, is delivered first.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{id: h.nextID, hub: h, ch: make(chan Event, buffer)}
	if h.last != nil {
		sub.ch <- *h.last
	}
	h.subs[sub.id] = sub
	metrics.LiveSubscribers.Set(float64(len(h.subs)))
	return sub
}

// Publish delivers evt to every subscriber without blocking.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &evt
	for _, sub := range h.subs {
		select {
		case sub.ch <- evt:
		default:
			metrics.LiveDroppedTotal.Inc()
		}
	}
}

// Current returns the most recently published event.
func (h *Hub) Current() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	metrics.LiveSubscribers.Set(float64(len(h.subs)))
}
