package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"emotrack/internal/credentials"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services/hume"
)

var dataURLPrefix = regexp.MustCompile(`^data:image/\w+;base64,`)

// Submitter forwards one image to the batch endpoint.
type Submitter interface {
	Submit(ctx context.Context, key string, image []byte) (json.RawMessage, error)
}

// Proxy relays browser frames to the batch endpoint with server-held keys.
type Proxy struct {
	pool          *credentials.Pool
	secretPresent bool
	submitter     Submitter
	logger        *slog.Logger
}

// NewProxy builds a proxy. Requests fail with a configuration error unless
// the pool has keys and a secret key is present.
func NewProxy(pool *credentials.Pool, secretKey string, submitter Submitter, logger *slog.Logger) *Proxy {
	return &Proxy{
		pool:          pool,
		secretPresent: strings.TrimSpace(secretKey) != "",
		submitter:     submitter,
		logger:        logging.NewComponentLogger(logger, "proxy"),
	}
}

type analyzeRequest struct {
	ImageData string `json:"imageData"`
}

// Handle serves /api/analyze-emotion for every method.
func (p *Proxy) Handle(c echo.Context) error {
	req := c.Request()
	switch req.Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusOK)
	case http.MethodPost:
	default:
		return p.reply(c, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}

	var body analyzeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || strings.TrimSpace(body.ImageData) == "" {
		return p.reply(c, http.StatusBadRequest, map[string]any{"error": "No image data provided"})
	}

	if !p.secretPresent || p.pool.Size() == 0 {
		p.logger.Error("analysis proxy has no credentials",
			logging.String(logging.FieldEventType, "proxy_config_error"),
			logging.String(logging.FieldErrorHint, "set server.proxy_api_keys and server.proxy_secret_key or HUME_API_KEY and HUME_SECRET_KEY"),
		)
		return p.reply(c, http.StatusInternalServerError, map[string]any{"error": "Server configuration error"})
	}

	image, err := decodeImage(body.ImageData)
	if err != nil {
		return p.internalError(c, err)
	}

	key, err := p.pool.Current()
	if err != nil {
		return p.reply(c, http.StatusInternalServerError, map[string]any{"error": "Server configuration error"})
	}

	data, err := p.submitter.Submit(req.Context(), key, image)
	if err != nil {
		var upstream *hume.UpstreamError
		if errors.As(err, &upstream) {
			p.logger.Warn("upstream analysis error",
				logging.Int("status", upstream.StatusCode),
				logging.Int(logging.FieldKeyIndex, p.pool.Index()),
				logging.String(logging.FieldEventType, "proxy_upstream_error"),
			)
			if upstream.StatusCode == http.StatusTooManyRequests {
				p.pool.Rotate()
			}
			return p.reply(c, upstream.StatusCode, map[string]any{
				"error":   "Hume API error",
				"details": upstream.Body,
			})
		}
		return p.internalError(c, err)
	}

	return p.reply(c, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func (p *Proxy) internalError(c echo.Context, err error) error {
	logging.ErrorWithContext(p.logger, "analysis proxy failed", "proxy_internal_error", logging.Error(err))
	return p.reply(c, http.StatusInternalServerError, map[string]any{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}

func (p *Proxy) reply(c echo.Context, status int, body map[string]any) error {
	metrics.ProxyRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	return c.JSON(status, body)
}

func decodeImage(value string) ([]byte, error) {
	encoded := dataURLPrefix.ReplaceAllString(strings.TrimSpace(value), "")
	if image, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return image, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

// proxyCORS applies the permissive CORS headers browser clients expect.
func proxyCORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,OPTIONS,PATCH,DELETE,POST,PUT")
		h.Set("Access-Control-Allow-Headers", "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version")
		return next(c)
	}
}
