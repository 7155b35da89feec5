package frames

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"emotrack/internal/services"
)

const (
	defaultSnapshotTimeout = 5 * time.Second
	maxSnapshotBytes       = 16 << 20
)

// SnapshotSource fetches a still image from an HTTP endpoint on every
// capture, as exposed by most IP cameras and webcam daemons.
type SnapshotSource struct {
	url        string
	quality    int
	httpClient *http.Client

	mu    sync.Mutex
	ready bool
}

// NewSnapshotSource creates a snapshot source. A nil client uses a 5s timeout.
func NewSnapshotSource(url string, quality int, httpClient *http.Client) *SnapshotSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSnapshotTimeout}
	}
	return &SnapshotSource{url: url, quality: quality, httpClient: httpClient}
}

func (s *SnapshotSource) Open(ctx context.Context) error {
	if _, err := s.fetch(ctx); err != nil {
		return services.Wrap(services.ErrDevice, "frames", "open snapshot", s.url, err)
	}
	return nil
}

func (s *SnapshotSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *SnapshotSource) Capture(ctx context.Context) (string, error) {
	frame, err := s.fetch(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "frames", "capture", s.url, err)
	}
	return frame, nil
}

func (s *SnapshotSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *SnapshotSource) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("snapshot: http %d", resp.StatusCode)
	}
	frame, bounds, err := Encode(io.LimitReader(resp.Body, maxSnapshotBytes), s.quality)
	if err != nil {
		return "", err
	}
	if usable(bounds) {
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
	}
	return frame, nil
}
