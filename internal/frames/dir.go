package frames

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"emotrack/internal/services"
)

var imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}}

// DirSource replays the images of a directory in name order, looping.
type DirSource struct {
	dir     string
	quality int

	mu    sync.Mutex
	files []string
	next  int
	ready bool
}

// NewDirSource creates a replay source over dir.
func NewDirSource(dir string, quality int) *DirSource {
	return &DirSource{dir: dir, quality: quality}
}

func (s *DirSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return services.Wrap(services.ErrDevice, "frames", "open directory", s.dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			files = append(files, filepath.Join(s.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return services.Wrap(services.ErrDevice, "frames", "open directory", "no jpeg or png images in "+s.dir, nil)
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.ready = false
	s.mu.Unlock()

	// Probe the first image so readiness reflects a decodable frame.
	if _, err := s.Capture(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.next = 0
	s.mu.Unlock()
	return nil
}

func (s *DirSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *DirSource) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if len(s.files) == 0 {
		s.mu.Unlock()
		return "", services.Wrap(services.ErrDevice, "frames", "capture", "source not open", nil)
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrDevice, "frames", "capture", path, err)
	}
	defer file.Close()

	frame, bounds, err := Encode(file, s.quality)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "frames", "capture", path, err)
	}
	if usable(bounds) {
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
	}
	return frame, nil
}

func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = nil
	s.ready = false
	return nil
}
