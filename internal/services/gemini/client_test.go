package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"emotrack/internal/services"
	"emotrack/internal/services/gemini"
)

func TestGenerateSendsRequestAndParsesText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-pro:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("key = %s", r.URL.Query().Get("key"))
		}
		var body struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				Temperature     float64 `json:"temperature"`
				MaxOutputTokens int     `json:"maxOutputTokens"`
			} `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Contents[0].Parts[0].Text != "analyse this" {
			t.Errorf("prompt = %q", body.Contents[0].Parts[0].Text)
		}
		if body.GenerationConfig.Temperature != 0.7 || body.GenerationConfig.MaxOutputTokens != 1000 {
			t.Errorf("generation config = %+v", body.GenerationConfig)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  three paragraphs  "}]}}]}`))
	}))
	defer server.Close()

	client := gemini.NewClient(gemini.Config{BaseURL: server.URL + "/v1beta/"})
	text, err := client.Generate(context.Background(), "g-key", "analyse this")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "three paragraphs" {
		t.Fatalf("text = %q", text)
	}
}

func TestGenerateQuotaClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		quota  bool
	}{
		{"429", http.StatusTooManyRequests, `{}`, true},
		{"402", http.StatusPaymentRequired, `{}`, true},
		{"status field", http.StatusForbidden, `{"error":{"code":403,"status":"RESOURCE_EXHAUSTED","message":"quota"}}`, true},
		{"string code", http.StatusBadRequest, `{"error":{"code":"RESOURCE_EXHAUSTED"}}`, true},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"status":"INTERNAL"}}`, false},
		{"not json", http.StatusBadGateway, `upstream down`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := gemini.NewClient(gemini.Config{BaseURL: server.URL}).Generate(context.Background(), "k", "p")
			var statusErr *gemini.StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tc.status {
				t.Fatalf("expected status error %d, got %v", tc.status, err)
			}
			if gemini.IsQuota(err) != tc.quota {
				t.Fatalf("IsQuota = %v, want %v", gemini.IsQuota(err), tc.quota)
			}
		})
	}
}

func TestGenerateEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := gemini.NewClient(gemini.Config{BaseURL: server.URL}).Generate(context.Background(), "k", "p")
	if !errors.Is(err, gemini.ErrNoText) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestGenerateNetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := gemini.NewClient(gemini.Config{BaseURL: server.URL}).Generate(context.Background(), "secret-key", "p")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("error leaks key: %v", err)
	}
}
