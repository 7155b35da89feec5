package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emotrack/internal/config"
)

const userAgent = "emotrack/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventSessionStarted   Event = "session_started"
	EventSessionCompleted Event = "session_completed"
	EventSummaryFallback  Event = "summary_fallback"
	EventError            Event = "error"
	EventTest             Event = "test"
)

// Payload carries event fields. Values are formatted with %v.
type Payload map[string]any

// Service publishes session events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:         topic,
		client:           &http.Client{Timeout: timeout},
		sessionCompleted: cfg.Notifications.SessionCompleted,
		errors:           cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint         string
	client           *http.Client
	sessionCompleted bool
	errors           bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSessionCompleted:
		if !n.sessionCompleted {
			return message{}, false
		}
		label := field(payload, "participant")
		if label == "" {
			label = field(payload, "sessionID")
		}
		body := fmt.Sprintf("✅ Session complete: %s (%s, %s points)", label, field(payload, "duration"), field(payload, "points"))
		if top := field(payload, "topEmotion"); top != "" {
			body += "\nDominant emotion: " + top
		}
		return message{
			title: "emotrack - Session Complete",
			body:  body,
			tags:  []string{"emotrack", "session", "completed"},
		}, true
	case EventSummaryFallback:
		if !n.errors {
			return message{}, false
		}
		return message{
			title: "emotrack - Summary Fallback",
			body:  fmt.Sprintf("⚠️ AI summary unavailable for %s: %s", field(payload, "sessionID"), field(payload, "error")),
			tags:  []string{"emotrack", "summary", "fallback"},
		}, true
	case EventError:
		if !n.errors {
			return message{}, false
		}
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := field(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		if text := field(payload, "error"); text != "" {
			builder.WriteString(": ")
			builder.WriteString(text)
		}
		return message{
			title:    "emotrack - Error",
			body:     builder.String(),
			tags:     []string{"emotrack", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "emotrack - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"emotrack", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func field(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
