package frames

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"emotrack/internal/services"
)

// DefaultQuality is the JPEG quality frames are re-encoded at.
const DefaultQuality = 70

// Source produces frames for the capture loop.
type Source interface {
	// Open prepares the source. Failures are device errors and prevent the
	// session from starting.
	Open(ctx context.Context) error
	// Ready reports whether the source has produced a frame with known,
	// non-zero dimensions.
	Ready() bool
	// Capture returns one base64 encoded JPEG frame.
	Capture(ctx context.Context) (string, error)
	Close() error
}

// New selects a source from spec: an http(s) URL yields a snapshot source,
// anything else (optionally prefixed with "dir:") is a directory to replay.
func New(spec string, quality int, httpClient *http.Client) (Source, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, services.Wrap(services.ErrDevice, "frames", "select source", "no frame source configured", nil)
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return NewSnapshotSource(spec, quality, httpClient), nil
	default:
		return NewDirSource(strings.TrimPrefix(spec, "dir:"), quality), nil
	}
}

// Encode decodes an image (JPEG or PNG) and re-encodes it as base64 JPEG at
// quality. It also returns the decoded bounds.
func Encode(r io.Reader, quality int) (string, image.Rectangle, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", image.Rectangle{}, fmt.Errorf("decode image: %w", err)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", image.Rectangle{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), img.Bounds(), nil
}

func usable(bounds image.Rectangle) bool {
	return bounds.Dx() > 0 && bounds.Dy() > 0
}
