package hume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"emotrack/internal/services"
)

const (
	defaultBatchURL     = "https://api.hume.ai/v0/batch/jobs"
	defaultBatchTimeout = 30 * time.Second
	maxUpstreamBody     = 1 << 20
)

// UpstreamError carries a non-2xx batch response verbatim.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("hume batch: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// BatchClient submits single images to the batch jobs endpoint.
type BatchClient struct {
	url        string
	httpClient *http.Client
}

// NewBatchClient constructs a batch client. A nil httpClient uses a 30s timeout.
func NewBatchClient(batchURL string, httpClient *http.Client) *BatchClient {
	batchURL = strings.TrimSpace(batchURL)
	if batchURL == "" {
		batchURL = defaultBatchURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultBatchTimeout}
	}
	return &BatchClient{url: batchURL, httpClient: httpClient}
}

// Submit uploads image as frame.jpg with the face model enabled and returns
// the decoded response body. Non-2xx responses yield *UpstreamError.
func (b *BatchClient) Submit(ctx context.Context, key string, image []byte) (json.RawMessage, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.WriteField("models", `{"face":{}}`); err != nil {
		return nil, fmt.Errorf("write models field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("X-Hume-Api-Key", key)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "inference", "batch submit", "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "inference", "batch read", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if !json.Valid(payload) {
		return nil, services.Wrap(services.ErrValidation, "inference", "batch decode", "response is not json", nil)
	}
	return json.RawMessage(payload), nil
}
