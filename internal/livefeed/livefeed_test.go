package livefeed_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"emotrack/internal/livefeed"
	"emotrack/internal/series"
)

func TestHubFanOutAndReplay(t *testing.T) {
	hub := livefeed.NewHub()
	first := hub.Subscribe(4)
	defer first.Cancel()

	hub.Publish(livefeed.ObservationEvent("s1", series.Observation{Timestamp: 3, Scores: series.Scores{Joy: 0.4}}))

	evt := <-first.Events()
	if evt.Type != livefeed.EventObservation || evt.Observation.Timestamp != 3 {
		t.Fatalf("unexpected event: %+v", evt)
	}

	late := hub.Subscribe(4)
	defer late.Cancel()
	select {
	case evt := <-late.Events():
		if evt.Observation == nil || evt.Observation.Joy != 0.4 {
			t.Fatalf("late subscriber should receive the current event, got %+v", evt)
		}
	default:
		t.Fatal("late subscriber received nothing")
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := livefeed.NewHub()
	slow := hub.Subscribe(1)
	for i := 0; i < 5; i++ {
		hub.Publish(livefeed.StatusEvent("s", "recording"))
	}
	if len(slow.Events()) != 1 {
		t.Fatalf("buffer = %d, want 1", len(slow.Events()))
	}
	slow.Cancel()
	slow.Cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", hub.Subscribers())
	}
	if _, ok := <-slow.Events(); !ok {
		t.Fatal("buffered event should still be readable")
	}
	if _, ok := <-slow.Events(); ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	hub := livefeed.NewHub()
	server := httptest.NewServer(livefeed.NewWebsocketHandler(hub, nil, nil, nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(livefeed.ObservationEvent("abc", series.Observation{Timestamp: 7, Scores: series.Scores{Fear: 0.25}}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded struct {
		Type        string `json:"type"`
		SessionID   string `json:"session_id"`
		Observation struct {
			Timestamp int64   `json:"timestamp"`
			Fear      float64 `json:"fear"`
		} `json:"observation"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	if decoded.Type != "observation" || decoded.SessionID != "abc" || decoded.Observation.Timestamp != 7 || decoded.Observation.Fear != 0.25 {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestRedisPublisherBreakerOpens(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	pub, err := livefeed.NewRedisPublisher("redis://"+addr+"/0", "test:live", nil)
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	defer pub.Close()

	if got := pub.Channel("s1"); got != "test:live:s1" {
		t.Fatalf("channel = %s", got)
	}

	evt := livefeed.StatusEvent("s1", "recording")
	for i := 0; i < 3; i++ {
		if err := pub.Publish(context.Background(), evt); err == nil {
			t.Fatal("publish to a closed port should fail")
		}
	}
	if pub.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", pub.State())
	}
	if err := pub.Publish(context.Background(), evt); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected fast failure, got %v", err)
	}
}

func TestRedisURLValidation(t *testing.T) {
	if _, err := livefeed.NewRedisPublisher("http://not-redis", "", nil); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}
