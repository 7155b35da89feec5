package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"emotrack/internal/credentials"
	"emotrack/internal/series"
	"emotrack/internal/server"
	"emotrack/internal/services"
	"emotrack/internal/services/hume"
	"emotrack/internal/session"
	"emotrack/internal/sessionstore"
	"emotrack/internal/testsupport"
)

type stubSubmitter struct {
	mu    sync.Mutex
	keys  []string
	image []byte
	data  json.RawMessage
	err   error
}

func (s *stubSubmitter) Submit(_ context.Context, key string, image []byte) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.image = image
	return s.data, s.err
}

func newProxyServer(t *testing.T, keys []string, secret string, sub *stubSubmitter) *server.Server {
	t.Helper()
	pool, _ := credentials.New("proxy", keys)
	return server.New(server.Options{
		Proxy:         server.NewProxy(pool, secret, sub, nil),
		RatePerSecond: 1000,
		Burst:         1000,
	})
}

func do(t *testing.T, srv *server.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestProxyOptionsSetsCORS(t *testing.T) {
	srv := newProxyServer(t, []string{"k1"}, "secret", &stubSubmitter{})
	rec := do(t, srv, http.MethodOptions, "/api/analyze-emotion", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET,OPTIONS,PATCH,DELETE,POST,PUT" {
		t.Fatalf("unexpected allow methods %q", got)
	}
}

func TestProxyRejectsOtherMethods(t *testing.T) {
	srv := newProxyServer(t, []string{"k1"}, "secret", &stubSubmitter{})
	rec := do(t, srv, http.MethodGet, "/api/analyze-emotion", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if body := decode(t, rec); body["error"] != "Method not allowed" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestProxyMissingImage(t *testing.T) {
	srv := newProxyServer(t, []string{"k1"}, "secret", &stubSubmitter{})
	for _, payload := range []string{`{}`, `{"imageData":""}`, `not json`} {
		rec := do(t, srv, http.MethodPost, "/api/analyze-emotion", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", payload, rec.Code)
		}
		if body := decode(t, rec); body["error"] != "No image data provided" {
			t.Fatalf("payload %q: unexpected body %v", payload, body)
		}
	}
}

func TestProxyConfigurationError(t *testing.T) {
	cases := []struct {
		name   string
		keys   []string
		secret string
	}{
		{name: "no keys", keys: nil, secret: "secret"},
		{name: "no secret", keys: []string{"k1"}, secret: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newProxyServer(t, tc.keys, tc.secret, &stubSubmitter{})
			rec := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"aGVsbG8="}`)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if body := decode(t, rec); body["error"] != "Server configuration error" {
				t.Fatalf("unexpected body %v", body)
			}
		})
	}
}

func TestProxySuccessStripsDataURL(t *testing.T) {
	sub := &stubSubmitter{data: json.RawMessage(`{"job_id":"abc"}`)}
	srv := newProxyServer(t, []string{"k1", "k2"}, "secret", sub)

	rec := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"data:image/jpeg;base64,aGVsbG8="}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Fatalf("expected success flag, got %v", body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["job_id"] != "abc" {
		t.Fatalf("unexpected data %v", body["data"])
	}
	if string(sub.image) != "hello" {
		t.Fatalf("expected decoded image bytes, got %q", sub.image)
	}
	if len(sub.keys) != 1 || sub.keys[0] != "k1" {
		t.Fatalf("expected first key, got %v", sub.keys)
	}
}

func TestProxyUpstreamErrorPassesThrough(t *testing.T) {
	sub := &stubSubmitter{err: &hume.UpstreamError{StatusCode: http.StatusUnauthorized, Body: "invalid key"}}
	srv := newProxyServer(t, []string{"k1"}, "secret", sub)

	rec := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"aGVsbG8="}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Hume API error" || body["details"] != "invalid key" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestProxyInternalError(t *testing.T) {
	sub := &stubSubmitter{err: errors.New("dial tcp: connection refused")}
	srv := newProxyServer(t, []string{"k1"}, "secret", sub)

	rec := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"aGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Internal server error" || body["message"] != "dial tcp: connection refused" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestProxyRateLimited(t *testing.T) {
	pool, _ := credentials.New("proxy", []string{"k1"})
	srv := server.New(server.Options{
		Proxy:         server.NewProxy(pool, "secret", &stubSubmitter{data: json.RawMessage(`{}`)}, nil),
		RatePerSecond: 0.001,
		Burst:         1,
	})
	first := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"aGVsbG8="}`)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := do(t, srv, http.MethodPost, "/api/analyze-emotion", `{"imageData":"aGVsbG8="}`)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

type stubController struct {
	startErr error
	stopErr  error
	snap     session.Snapshot
}

func (c *stubController) Start(_ context.Context, opts session.StartOptions) (session.Snapshot, error) {
	if c.startErr != nil {
		return session.Snapshot{}, c.startErr
	}
	c.snap = session.Snapshot{ID: "s-1", Status: session.StatusRecording, Participant: opts.Participant}
	return c.snap, nil
}

func (c *stubController) Stop(context.Context) (*session.Completed, error) {
	if c.stopErr != nil {
		return nil, c.stopErr
	}
	return &session.Completed{Session: sessionstore.Session{ID: "s-1", PointCount: 2}}, nil
}

func (c *stubController) Reset() error                       { return nil }
func (c *stubController) Snapshot() session.Snapshot         { return c.snap }
func (c *stubController) Observations() []series.Observation { return nil }

func TestSessionStartRoute(t *testing.T) {
	ctrl := &stubController{}
	srv := server.New(server.Options{Controller: ctrl})

	rec := do(t, srv, http.MethodPost, "/api/session/start", `{"participant":"p-2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != "recording" || body["participant"] != "p-2" {
		t.Fatalf("unexpected snapshot %v", body)
	}

	obs := do(t, srv, http.MethodGet, "/api/session/observations", "")
	if strings.TrimSpace(obs.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %q", obs.Body.String())
	}
}

func TestSessionErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"busy", services.Wrap(services.ErrValidation, "session", "start", "busy", session.ErrBusy), http.StatusConflict},
		{"configuration", services.Wrap(services.ErrConfiguration, "session", "start", "no keys", credentials.ErrNoKeys), http.StatusServiceUnavailable},
		{"device", services.Wrap(services.ErrDevice, "session", "open source", "camera", nil), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := server.New(server.Options{Controller: &stubController{startErr: tc.err}})
			rec := do(t, srv, http.MethodPost, "/api/session/start", "")
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestSessionHistoryRoutes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveSession(t, store, sessionstore.Session{
		ID:        "abcdef12-0000-0000-0000-000000000000",
		StartedAt: time.Now(),
		Summary:   "stored",
	}, testsupport.Observations(7))

	srv := server.New(server.Options{Archive: store})

	list := do(t, srv, http.MethodGet, "/api/sessions?limit=5", "")
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var sessions []sessionstore.Session
	if err := json.Unmarshal(list.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].PointCount != 7 {
		t.Fatalf("unexpected sessions %#v", sessions)
	}

	detail := do(t, srv, http.MethodGet, "/api/sessions/abcdef12", "")
	if detail.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", detail.Code, detail.Body.String())
	}
	body := decode(t, detail)
	if obs, ok := body["observations"].([]any); !ok || len(obs) != 7 {
		t.Fatalf("unexpected observations %v", body["observations"])
	}

	missing := do(t, srv, http.MethodGet, "/api/sessions/zzz", "")
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}

	bad := do(t, srv, http.MethodGet, "/api/sessions?limit=zero", "")
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", bad.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := server.New(server.Options{
		HealthChecks: []server.HealthCheck{{
			Name:  "inference_keys",
			Check: func(context.Context) error { return errors.New("no keys") },
		}},
	})

	live := do(t, srv, http.MethodGet, "/health/live", "")
	if live.Code != http.StatusOK || !strings.Contains(live.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected liveness %d %s", live.Code, live.Body.String())
	}
	ready := do(t, srv, http.MethodGet, "/health/ready", "")
	if ready.Code != http.StatusServiceUnavailable || !strings.Contains(ready.Body.String(), `"failed_check":"inference_keys"`) {
		t.Fatalf("unexpected readiness %d %s", ready.Code, ready.Body.String())
	}
	metricsRec := do(t, srv, http.MethodGet, "/metrics", "")
	if metricsRec.Code != http.StatusOK || !strings.Contains(metricsRec.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", metricsRec.Code)
	}
}
