package credentials

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services"
)

// DefaultCooldown is the minimum spacing between two regular rotations.
const DefaultCooldown = time.Second

// ErrNoKeys is returned when a pool has no usable credential.
var ErrNoKeys = errors.New("no api keys configured")

// Pool holds the ordered credentials for one external service.
type Pool struct {
	service  string
	keys     []string
	cooldown time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu             sync.Mutex
	cursor         int
	lastRotationAt time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithCooldown overrides the rotation cooldown. Non-positive values disable it.
func WithCooldown(d time.Duration) Option {
	return func(p *Pool) {
		if d < 0 {
			d = 0
		}
		p.cooldown = d
	}
}

// WithClock injects the clock used for cooldown gating.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pool) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger attaches a logger for rotation events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// New builds a pool for service from keys, dropping blank entries. Duplicates
// are kept. An empty result yields ErrNoKeys wrapped as a configuration error.
func New(service string, keys []string, opts ...Option) (*Pool, error) {
	p := &Pool{
		service:  service,
		cooldown: DefaultCooldown,
		clock:    clockwork.NewRealClock(),
	}
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			p.keys = append(p.keys, trimmed)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "credentials").With(logging.String(logging.FieldService, service))
	if len(p.keys) == 0 {
		return p, services.Wrap(services.ErrConfiguration, "credentials", service, "pool empty", ErrNoKeys)
	}
	return p, nil
}

// Service returns the service name the pool serves.
func (p *Pool) Service() string {
	if p == nil {
		return ""
	}
	return p.service
}

// Size returns the number of usable keys.
func (p *Pool) Size() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Index returns the zero-based cursor position.
func (p *Pool) Index() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Current returns the active key without mutating the pool.
func (p *Pool) Current() (string, error) {
	if p == nil || len(p.keys) == 0 {
		return "", services.Wrap(services.ErrConfiguration, "credentials", p.Service(), "no key available", ErrNoKeys)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.cursor], nil
}

// Rotate advances to the next key unless the previous rotation happened less
// than the cooldown ago. It reports whether the cursor moved.
func (p *Pool) Rotate() bool {
	if p == nil || len(p.keys) == 0 {
		return false
	}
	p.mu.Lock()
	now := p.clock.Now()
	if !p.lastRotationAt.IsZero() && now.Sub(p.lastRotationAt) < p.cooldown {
		p.mu.Unlock()
		metrics.KeyRotationsSuppressed.WithLabelValues(p.service).Inc()
		p.logger.Debug("rotation suppressed by cooldown", logging.Duration("cooldown", p.cooldown))
		return false
	}
	p.cursor = (p.cursor + 1) % len(p.keys)
	p.lastRotationAt = now
	index := p.cursor
	p.mu.Unlock()

	metrics.KeyRotationsTotal.WithLabelValues(p.service, "rotate").Inc()
	p.logger.Info("api key rotated",
		logging.Int(logging.FieldKeyIndex, index),
		logging.Int("key_count", len(p.keys)),
	)
	return true
}

// Advance moves to the next key regardless of the cooldown. It is used by
// quota sweeps and leaves the cooldown timestamp untouched.
func (p *Pool) Advance() {
	if p == nil || len(p.keys) == 0 {
		return
	}
	p.mu.Lock()
	p.cursor = (p.cursor + 1) % len(p.keys)
	index := p.cursor
	p.mu.Unlock()

	metrics.KeyRotationsTotal.WithLabelValues(p.service, "advance").Inc()
	p.logger.Debug("api key advanced", logging.Int(logging.FieldKeyIndex, index))
}
