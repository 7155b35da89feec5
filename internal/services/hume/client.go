package hume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"emotrack/internal/credentials"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/perf"
	"emotrack/internal/series"
	"emotrack/internal/services"
)

const (
	defaultStreamURL = "wss://api.hume.ai/v0/stream/models"
	defaultTimeout   = 5 * time.Second
)

// Outcome classifies one exchange.
type Outcome int

// Unknown is the zero value so an unset Result never reports success.
const (
	Unknown Outcome = iota
	Success
	RateLimited
	Empty
	Timeout
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case RateLimited:
		return "rate_limited"
	case Empty:
		return "empty"
	case Timeout:
		return "timeout"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one exchange. Only Success carries emotions.
type Result struct {
	Outcome  Outcome
	Emotions []series.EmotionScore
	Err      error
	Duration time.Duration
}

// OK reports whether the exchange produced emotions.
func (r Result) OK() bool {
	return r.Outcome == Success
}

// Config captures the stream endpoint settings.
type Config struct {
	StreamURL string
	Timeout   time.Duration
}

// Client performs one websocket exchange per frame against the streaming
// models endpoint, rotating credentials on rate-limit and transport failures.
type Client struct {
	cfg    Config
	pool   *credentials.Pool
	dialer *websocket.Dialer
	perf   *perf.Window
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithPerfWindow records exchange durations into w.
func WithPerfWindow(w *perf.Window) Option {
	return func(c *Client) {
		if w != nil {
			c.perf = w
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client drawing keys from pool.
func NewClient(cfg Config, pool *credentials.Pool, opts ...Option) *Client {
	c := &Client{
		cfg: Config{
			StreamURL: strings.TrimSpace(cfg.StreamURL),
			Timeout:   cfg.Timeout,
		},
		pool:   pool,
		dialer: websocket.DefaultDialer,
		perf:   perf.NewWindow(perf.DefaultSize),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.StreamURL == "" {
		c.cfg.StreamURL = defaultStreamURL
	}
	if c.cfg.Timeout <= 0 {
		c.cfg.Timeout = defaultTimeout
	}
	c.logger = logging.NewComponentLogger(c.logger, "inference")
	return c
}

// Perf returns the exchange duration window.
func (c *Client) Perf() *perf.Window {
	return c.perf
}

type streamRequest struct {
	Models  map[string]struct{} `json:"models"`
	RawText bool                `json:"raw_text"`
	Data    string              `json:"data"`
}

// Analyze submits one base64 JPEG frame and waits for a single response. The
// returned error is non-nil only when no credential is configured; every
// other failure is reported through Result.Outcome.
func (c *Client) Analyze(ctx context.Context, frame string) (Result, error) {
	key, err := c.pool.Current()
	if err != nil {
		return Result{Outcome: Unknown, Err: err}, err
	}
	logger := logging.WithContext(ctx, c.logger)

	started := c.now()
	result := c.exchange(ctx, key, frame)
	result.Duration = c.now().Sub(started)
	c.perf.Record(result.Duration)
	metrics.InferenceDuration.Observe(result.Duration.Seconds())
	metrics.InferenceExchangesTotal.WithLabelValues(result.Outcome.String()).Inc()

	switch result.Outcome {
	case RateLimited:
		rotated := c.pool.Rotate()
		logging.WarnWithContext(logger, "inference rate limited", "inference_rate_limited",
			logging.Bool("rotated", rotated),
			logging.Int(logging.FieldKeyIndex, c.pool.Index()),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "add more inference keys or lower the capture rate"),
			logging.String(logging.FieldImpact, "frame skipped"),
		)
	case TransportError:
		rotated := c.pool.Rotate()
		logging.WarnWithContext(logger, "inference exchange failed", "inference_transport_error",
			logging.Bool("rotated", rotated),
			logging.Error(result.Err),
			logging.String(logging.FieldErrorHint, "check network connectivity and key validity"),
			logging.String(logging.FieldImpact, "frame skipped"),
		)
	case Timeout:
		logger.Debug("inference exchange timed out", logging.Duration("timeout", c.cfg.Timeout))
	case Empty:
		logger.Debug("no emotions in inference response", logging.Error(result.Err))
	}
	return result, nil
}

func (c *Client) exchange(ctx context.Context, key, frame string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint, err := c.endpoint(key)
	if err != nil {
		return Result{Outcome: TransportError, Err: err}
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return classifyTransport(ctx, services.Wrap(services.ErrTransient, "inference", "dial", "", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload := streamRequest{
		Models:  map[string]struct{}{"face": {}},
		RawText: false,
		Data:    frame,
	}
	if err := conn.WriteJSON(payload); err != nil {
		return classifyTransport(ctx, services.Wrap(services.ErrTransient, "inference", "write", "", err))
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		return classifyTransport(ctx, services.Wrap(services.ErrTransient, "inference", "read", "", err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	return classifyMessage(message)
}

func (c *Client) endpoint(key string) (string, error) {
	u, err := url.Parse(c.cfg.StreamURL)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("apikey", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func classifyMessage(message []byte) Result {
	resp, err := decodeResponse(message)
	if err != nil {
		return Result{Outcome: Empty, Err: services.Wrap(services.ErrValidation, "inference", "decode", "malformed response", err)}
	}
	msg := resp.ErrorMessage()
	if IsRateLimited(msg, resp.Code) {
		return Result{Outcome: RateLimited, Err: services.Wrap(services.ErrRateLimited, "inference", "exchange", describe(msg, resp.Code), nil)}
	}
	if emotions := resp.ExtractEmotions(); emotions != nil {
		return Result{Outcome: Success, Emotions: emotions}
	}
	detail := "no emotions in response"
	if msg != "" || resp.Code != "" {
		detail = describe(msg, resp.Code)
	}
	return Result{Outcome: Empty, Err: services.Wrap(services.ErrValidation, "inference", "exchange", detail, nil)}
}

func classifyTransport(ctx context.Context, err error) Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return Result{Outcome: Timeout, Err: services.Wrap(services.ErrTimeout, "inference", "exchange", "no response", err)}
	}
	return Result{Outcome: TransportError, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func describe(message, code string) string {
	switch {
	case message != "" && code != "":
		return fmt.Sprintf("%s (code %s)", message, code)
	case code != "":
		return "code " + code
	default:
		return message
	}
}
