package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emotrack/internal/credentials"
	"emotrack/internal/digest"
	"emotrack/internal/frames"
	"emotrack/internal/livefeed"
	"emotrack/internal/notifications"
	"emotrack/internal/retry"
	"emotrack/internal/series"
	"emotrack/internal/services"
	"emotrack/internal/services/hume"
	"emotrack/internal/session"
	"emotrack/internal/summary"
	"emotrack/internal/testsupport"
)

type joyAnalyzer struct{}

func (joyAnalyzer) Analyze(context.Context, string) (hume.Result, error) {
	return hume.Result{Outcome: hume.Success, Emotions: []series.EmotionScore{
		{Name: "Joy", Score: 0.7},
		{Name: "Fear", Score: 0.1},
	}}, nil
}

type cannedSummarizer struct {
	mu     sync.Mutex
	points int
}

func (s *cannedSummarizer) Summarize(_ context.Context, d digest.Digest, _ int64) summary.Result {
	s.mu.Lock()
	s.points = d.Count
	s.mu.Unlock()
	return summary.Result{Text: "canned narrative", Source: summary.SourceAI}
}

type failingSource struct {
	closed bool
}

func (s *failingSource) Open(context.Context) error {
	return errors.New("camera busy")
}
func (s *failingSource) Ready() bool                             { return false }
func (s *failingSource) Capture(context.Context) (string, error) { return "", errors.New("closed") }
func (s *failingSource) Close() error {
	s.closed = true
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) has(event notifications.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

func mustPool(t *testing.T, service string, keys ...string) *credentials.Pool {
	t.Helper()
	pool, err := credentials.New(service, keys)
	if err != nil && len(keys) > 0 {
		t.Fatalf("credentials.New: %v", err)
	}
	return pool
}

type fixture struct {
	ctrl       *session.Controller
	summarizer *cannedSummarizer
	notifier   *recordingNotifier
	hub        *livefeed.Hub
}

func newFixture(t *testing.T, inferenceKeys, generationKeys []string) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithFrameDir(3))
	store := testsupport.MustOpenStore(t, cfg)
	summarizer := &cannedSummarizer{}
	notifier := &recordingNotifier{}
	hub := livefeed.NewHub()

	ctrl := session.New(session.Options{
		Inference:  mustPool(t, "inference", inferenceKeys...),
		Generation: mustPool(t, "generation", generationKeys...),
		Analyzer:   joyAnalyzer{},
		Summarizer: summarizer,
		Sources: func() (frames.Source, error) {
			return frames.New(cfg.Capture.Source, cfg.Capture.JPEGQuality, nil)
		},
		Archive:        store,
		Notifier:       notifier,
		Hub:            hub,
		Series:         series.New(100),
		Retry:          retry.Policy{MaxAttempts: 1, Base: time.Millisecond},
		Interval:       5 * time.Millisecond,
		ReadinessDelay: time.Millisecond,
	})
	return fixture{ctrl: ctrl, summarizer: summarizer, notifier: notifier, hub: hub}
}

func waitForPoints(t *testing.T, ctrl *session.Controller, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.Snapshot().Points >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d points, have %d", want, ctrl.Snapshot().Points)
}

func TestStartRequiresInferenceKeys(t *testing.T) {
	f := newFixture(t, nil, []string{"g1"})

	_, err := f.ctrl.Start(context.Background(), session.StartOptions{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !services.UserVisible(err) {
		t.Fatal("expected configuration error to be user visible")
	}
	if got := f.ctrl.Status(); got != session.StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}

func TestStartRequiresGenerationKeys(t *testing.T) {
	f := newFixture(t, []string{"h1"}, nil)

	_, err := f.ctrl.Start(context.Background(), session.StartOptions{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestStartSourceFailureIsDeviceError(t *testing.T) {
	f := newFixture(t, []string{"h1"}, []string{"g1"})
	src := &failingSource{}

	_, err := f.ctrl.Start(context.Background(), session.StartOptions{Source: src})
	if !errors.Is(err, services.ErrDevice) {
		t.Fatalf("expected device error, got %v", err)
	}
	if !src.closed {
		t.Fatal("expected failed source to be closed")
	}
	if got := f.ctrl.Status(); got != session.StatusIdle {
		t.Fatalf("expected idle after failed start, got %s", got)
	}
	if !f.notifier.has(notifications.EventError) {
		t.Fatal("expected error notification")
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, []string{"h1", "h2"}, []string{"g1"})
	ctx := context.Background()
	sub := f.hub.Subscribe(1024)
	defer sub.Cancel()

	snap, err := f.ctrl.Start(ctx, session.StartOptions{Participant: " p-01 ", Notes: "baseline"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if snap.Status != session.StatusRecording || snap.ID == "" {
		t.Fatalf("unexpected start snapshot: %#v", snap)
	}
	if snap.Participant != "p-01" {
		t.Fatalf("expected trimmed participant, got %q", snap.Participant)
	}

	if _, err := f.ctrl.Start(ctx, session.StartOptions{}); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected busy error on second start, got %v", err)
	}
	if err := f.ctrl.Reset(); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected busy error on reset while recording, got %v", err)
	}

	waitForPoints(t, f.ctrl, 6)

	completed, err := f.ctrl.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if completed.Session.ID != snap.ID {
		t.Fatalf("expected session id %s, got %s", snap.ID, completed.Session.ID)
	}
	if completed.Session.Summary != "canned narrative" || completed.Session.SummarySource != "ai" {
		t.Fatalf("unexpected summary: %#v", completed.Session)
	}
	if !completed.Archived {
		t.Fatal("expected session to be archived")
	}
	if len(completed.Observations) != completed.Session.PointCount || completed.Session.PointCount < 6 {
		t.Fatalf("unexpected point count %d for %d observations", completed.Session.PointCount, len(completed.Observations))
	}
	if completed.Digest.Top()[0].Name != series.Joy {
		t.Fatalf("expected joy to rank first, got %#v", completed.Digest.Top())
	}
	if got := f.ctrl.Status(); got != session.StatusResults {
		t.Fatalf("expected results, got %s", got)
	}
	if !f.notifier.has(notifications.EventSessionCompleted) {
		t.Fatal("expected completion notification")
	}

	frozen := f.ctrl.Snapshot().Points
	time.Sleep(30 * time.Millisecond)
	if got := f.ctrl.Snapshot().Points; got != frozen {
		t.Fatalf("series changed after stop: %d -> %d", frozen, got)
	}

	if err := f.ctrl.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	after := f.ctrl.Snapshot()
	if after.Status != session.StatusIdle || after.Points != 0 || after.ID != "" {
		t.Fatalf("unexpected snapshot after reset: %#v", after)
	}

	statuses := map[string]bool{}
	observations := 0
	for {
		select {
		case evt := <-sub.Events():
			switch evt.Type {
			case livefeed.EventStatus:
				statuses[evt.Status] = true
			case livefeed.EventObservation:
				observations++
			}
			continue
		default:
		}
		break
	}
	for _, want := range []session.Status{session.StatusPreparing, session.StatusRecording, session.StatusProcessing, session.StatusResults, session.StatusIdle} {
		if !statuses[string(want)] {
			t.Fatalf("missing status event %s in %v", want, statuses)
		}
	}
	if observations == 0 {
		t.Fatal("expected observation events on the hub")
	}
}

func TestStopWhenIdleIsRejected(t *testing.T) {
	f := newFixture(t, []string{"h1"}, []string{"g1"})
	if _, err := f.ctrl.Stop(context.Background()); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestShutdownArchivesActiveSession(t *testing.T) {
	f := newFixture(t, []string{"h1"}, []string{"g1"})
	if _, err := f.ctrl.Start(context.Background(), session.StartOptions{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForPoints(t, f.ctrl, 1)

	f.ctrl.Shutdown(context.Background())
	result, ok := f.ctrl.Result()
	if !ok || !result.Archived {
		t.Fatalf("expected archived result after shutdown, got %#v", result)
	}
}
