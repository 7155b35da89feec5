package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"emotrack/internal/services"
)

const (
	defaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel           = "gemini-pro"
	defaultHTTPTimeout     = 30 * time.Second
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 1000
	maxErrorBody           = 64 << 10

	resourceExhausted = "RESOURCE_EXHAUSTED"
)

// ErrNoText is returned when a successful response carries no generated text.
var ErrNoText = errors.New("no text generated")

// Config captures the generateContent settings.
type Config struct {
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// Client wraps the generateContent endpoint. Keys are supplied per call so a
// caller can sweep a credential pool.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			BaseURL:         strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:           strings.TrimSpace(cfg.Model),
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			TimeoutSeconds:  cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultBaseURL
	}
	if c.cfg.Model == "" {
		c.cfg.Model = defaultModel
	}
	if c.cfg.Temperature <= 0 {
		c.cfg.Temperature = defaultTemperature
	}
	if c.cfg.MaxOutputTokens <= 0 {
		c.cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	return c
}

// StatusError is a non-2xx generateContent response.
type StatusError struct {
	StatusCode int
	Code       string
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	detail := strings.TrimSpace(e.Message)
	if e.Status != "" {
		detail = strings.TrimSpace(e.Status + " " + detail)
	}
	return fmt.Sprintf("gemini request: http %d: %s", e.StatusCode, detail)
}

// Quota reports whether the response signals an exhausted key.
func (e *StatusError) Quota() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusPaymentRequired ||
		e.Code == resourceExhausted ||
		e.Status == resourceExhausted
}

// IsQuota reports whether err is a quota-class StatusError.
func IsQuota(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Quota()
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorEnvelope struct {
	Error struct {
		// Code is numeric in current responses and a string in older ones.
		Code    json.RawMessage `json:"code"`
		Status  string          `json:"status"`
		Message string          `json:"message"`
	} `json:"error"`
}

// Generate sends prompt with key and returns the first candidate's text.
// Transport failures are wrapped with services.ErrTransient; HTTP failures
// are *StatusError.
func (c *Client) Generate(ctx context.Context, key, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, url.PathEscape(c.cfg.Model), url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "generation", "request", "", redact(err, key))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", parseStatusError(resp.StatusCode, payload)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "generation", "decode", "", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", services.Wrap(services.ErrValidation, "generation", "decode", "", ErrNoText)
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "generation", "decode", "", ErrNoText)
	}
	return text, nil
}

func parseStatusError(status int, payload []byte) *StatusError {
	out := &StatusError{StatusCode: status}
	var envelope errorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		out.Message = strings.TrimSpace(string(payload))
		return out
	}
	out.Status = envelope.Error.Status
	out.Message = envelope.Error.Message
	var code string
	if err := json.Unmarshal(envelope.Error.Code, &code); err == nil {
		out.Code = code
	}
	return out
}

// redact strips the key from URL errors, which embed the request URL.
func redact(err error, key string) error {
	if key == "" {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: strings.ReplaceAll(urlErr.URL, url.QueryEscape(key), "REDACTED"),
			Err: urlErr.Err,
		}
	}
	return err
}
