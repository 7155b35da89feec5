package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"emotrack/internal/config"
	"emotrack/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventSessionCompleted, notifications.Payload{"sessionID": "abc"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "session completed",
			event: notifications.EventSessionCompleted,
			payload: notifications.Payload{
				"participant": "p-07",
				"duration":    "2 minutes and 5 seconds",
				"points":      81,
				"topEmotion":  "Joy (42.0%)",
			},
			expectTitle:   "emotrack - Session Complete",
			expectMessage: "✅ Session complete: p-07 (2 minutes and 5 seconds, 81 points)\nDominant emotion: Joy (42.0%)",
			expectTags:    "emotrack,session,completed",
		},
		{
			name:  "session completed without participant",
			event: notifications.EventSessionCompleted,
			payload: notifications.Payload{
				"sessionID": "1234abcd",
				"duration":  "0 minutes and 9 seconds",
				"points":    6,
			},
			expectTitle:   "emotrack - Session Complete",
			expectMessage: "✅ Session complete: 1234abcd (0 minutes and 9 seconds, 6 points)",
			expectTags:    "emotrack,session,completed",
		},
		{
			name:  "summary fallback",
			event: notifications.EventSummaryFallback,
			payload: notifications.Payload{
				"sessionID": "1234abcd",
				"error":     "all 3 generation keys failed",
			},
			expectTitle:   "emotrack - Summary Fallback",
			expectMessage: "⚠️ AI summary unavailable for 1234abcd: all 3 generation keys failed",
			expectTags:    "emotrack,summary,fallback",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "session start",
				"error":   "camera unavailable",
			},
			expectTitle:    "emotrack - Error",
			expectMessage:  "❌ Error with session start: camera unavailable",
			expectTags:     "emotrack,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "emotrack - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "emotrack,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.SessionCompleted = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventSessionStarted,
		notifications.EventSessionCompleted,
		notifications.EventSummaryFallback,
		notifications.EventError,
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic muted", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for non-2xx ntfy response")
	}
}
