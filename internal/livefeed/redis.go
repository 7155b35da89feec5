package livefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"emotrack/internal/logging"
	"emotrack/internal/metrics"
)

const (
	defaultChannelPrefix = "emotrack:live"
	publishTimeout       = 2 * time.Second
	breakerFailures      = 3
	breakerOpenFor       = 30 * time.Second
)

// RedisPublisher mirrors hub events onto Redis pub/sub channels named
// <prefix>:<session id>. A circuit breaker stops publishing while Redis is
// unreachable so the capture loop never waits on it.
type RedisPublisher struct {
	rdb    *goredis.Client
	cb     *gobreaker.CircuitBreaker
	prefix string
	logger *slog.Logger
}

// NewRedisPublisher connects to redisURL (redis://host:port/db).
func NewRedisPublisher(redisURL, prefix string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := goredis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = publishTimeout
	opts.WriteTimeout = publishTimeout
	opts.MaxRetries = -1
	return NewRedisPublisherWithClient(goredis.NewClient(opts), prefix, logger), nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(rdb *goredis.Client, prefix string, logger *slog.Logger) *RedisPublisher {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	logger = logging.NewComponentLogger(logger, "livefeed")
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-live",
		MaxRequests: 1,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WarnWithContext(logger, "redis circuit breaker state changed", "circuit_breaker_state",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldImpact, "live observations are not mirrored to redis while open"),
			)
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateValue(to))
		},
	})
	return &RedisPublisher{rdb: rdb, cb: cb, prefix: prefix, logger: logger}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Channel returns the pub/sub channel for sessionID.
func (p *RedisPublisher) Channel(sessionID string) string {
	if sessionID == "" {
		sessionID = "default"
	}
	return p.prefix + ":" + sessionID
}

// State reports the breaker state.
func (p *RedisPublisher) State() gobreaker.State {
	return p.cb.State()
}

// Publish sends evt as JSON. Once the breaker opens, calls fail fast with
// gobreaker.ErrOpenState until the open period elapses.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, p.rdb.Publish(ctx, p.Channel(evt.SessionID), payload).Err()
	})
	switch {
	case err == nil:
		metrics.RedisPublishTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RedisPublishTotal.WithLabelValues("open").Inc()
	default:
		metrics.RedisPublishTotal.WithLabelValues("error").Inc()
	}
	return err
}

// Run mirrors hub events to Redis until ctx is cancelled.
func (p *RedisPublisher) Run(ctx context.Context, hub *Hub) {
	sub := hub.Subscribe(64)
	defer sub.Cancel()
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := p.Publish(ctx, evt); err != nil {
				p.logger.Debug("redis publish failed", logging.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close releases the Redis connection pool.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
