package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"

	"emotrack/internal/capture"
	"emotrack/internal/config"
	"emotrack/internal/credentials"
	"emotrack/internal/frames"
	"emotrack/internal/livefeed"
	"emotrack/internal/logging"
	"emotrack/internal/notifications"
	"emotrack/internal/perf"
	"emotrack/internal/retry"
	"emotrack/internal/series"
	"emotrack/internal/server"
	"emotrack/internal/services"
	"emotrack/internal/services/gemini"
	"emotrack/internal/services/hume"
	"emotrack/internal/session"
	"emotrack/internal/sessionstore"
	"emotrack/internal/summary"
)

// Daemon owns every long-lived component built from configuration and
// enforces a single active recorder per data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clockwork.Clock

	inference  *credentials.Pool
	generation *credentials.Pool
	inferPerf  *perf.Window
	genPerf    *perf.Window

	store      *sessionstore.Store
	hub        *livefeed.Hub
	controller *session.Controller
	server     *server.Server
	redis      *livefeed.RedisPublisher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool             `json:"running"`
	Session        session.Snapshot `json:"session"`
	InferenceKeys  int              `json:"inference_keys"`
	GenerationKeys int              `json:"generation_keys"`
	InferencePerf  *perf.Stats      `json:"inference_perf,omitempty"`
	GenerationPerf *perf.Stats      `json:"generation_perf,omitempty"`
	LiveRedis      bool             `json:"live_redis"`
	SessionDBPath  string           `json:"session_db_path"`
	LockFilePath   string           `json:"lock_file_path"`
}

type settings struct {
	analyzer  capture.Analyzer
	generator summary.Generator
	sources   session.SourceFactory
	notifier  notifications.Service
	clock     clockwork.Clock
}

// Option customizes component wiring, mainly for tests.
type Option func(*settings)

// WithAnalyzer replaces the streaming inference client.
func WithAnalyzer(a capture.Analyzer) Option {
	return func(s *settings) { s.analyzer = a }
}

// WithGenerator replaces the text-generation client.
func WithGenerator(g summary.Generator) Option {
	return func(s *settings) { s.generator = g }
}

// WithSources replaces the configured frame source.
func WithSources(f session.SourceFactory) Option {
	return func(s *settings) { s.sources = f }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n notifications.Service) Option {
	return func(s *settings) { s.notifier = n }
}

// WithClock overrides the clock shared by pools, the controller and the server.
func WithClock(c clockwork.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// New wires the runtime from cfg. Empty credential pools are allowed here;
// recordings fail to start until keys are configured.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	st := settings{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&st)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		clock:    st.clock,
		lockPath: cfg.RecorderLockPath(),
		lock:     flock.New(cfg.RecorderLockPath()),
		hub:      livefeed.NewHub(),
	}

	poolOpts := []credentials.Option{
		credentials.WithCooldown(cfg.RotationCooldown()),
		credentials.WithClock(st.clock),
		credentials.WithLogger(logger),
	}
	d.inference, _ = credentials.New("inference", cfg.Inference.APIKeys, poolOpts...)
	d.generation, _ = credentials.New("generation", cfg.Generation.APIKeys, poolOpts...)

	analyzer := st.analyzer
	if analyzer == nil {
		client := hume.NewClient(hume.Config{
			StreamURL: cfg.Inference.StreamURL,
			Timeout:   cfg.InferenceTimeout(),
		}, d.inference, hume.WithLogger(logger))
		d.inferPerf = client.Perf()
		analyzer = client
	}
	generator := st.generator
	if generator == nil {
		generator = gemini.NewClient(gemini.Config{
			BaseURL:         cfg.Generation.BaseURL,
			Model:           cfg.Generation.Model,
			Temperature:     cfg.Generation.Temperature,
			MaxOutputTokens: cfg.Generation.MaxOutputTokens,
			TimeoutSeconds:  cfg.Generation.TimeoutSeconds,
		})
	}
	requester := summary.NewRequester(generator, d.generation,
		summary.WithMinPoints(cfg.Generation.MinPoints),
		summary.WithLogger(logger),
	)
	d.genPerf = requester.Perf()

	sources := st.sources
	if sources == nil {
		spec, quality := cfg.Capture.Source, cfg.Capture.JPEGQuality
		sources = func() (frames.Source, error) {
			return frames.New(spec, quality, nil)
		}
	}
	notifier := st.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	store, err := sessionstore.Open(cfg.SessionDBPath())
	if err != nil {
		return nil, fmt.Errorf("open session archive: %w", err)
	}
	d.store = store

	if cfg.Live.RedisURL != "" {
		publisher, err := livefeed.NewRedisPublisher(cfg.Live.RedisURL, cfg.Live.ChannelPrefix, logger)
		if err != nil {
			_ = store.Close()
			return nil, services.Wrap(services.ErrConfiguration, "daemon", "live redis", "invalid redis_url", err)
		}
		d.redis = publisher
	}

	d.controller = session.New(session.Options{
		Inference:  d.inference,
		Generation: d.generation,
		Analyzer:   analyzer,
		Summarizer: requester,
		Sources:    sources,
		Archive:    store,
		Notifier:   notifier,
		Hub:        d.hub,
		Series:     series.New(cfg.Capture.SeriesCapacity),
		Retry: retry.Policy{
			MaxAttempts: cfg.Capture.MaxAttempts,
			Base:        cfg.BackoffBase(),
			Clock:       st.clock,
		},
		Interval:       cfg.CaptureInterval(),
		ReadinessDelay: cfg.ReadinessDelay(),
		Clock:          st.clock,
		Logger:         logger,
	})

	var proxy *server.Proxy
	if cfg.Server.ProxyEnabled {
		proxyPool, _ := credentials.New("proxy", cfg.Server.ProxyAPIKeys, poolOpts...)
		proxy = server.NewProxy(proxyPool, cfg.Server.ProxySecretKey, hume.NewBatchClient(cfg.Inference.BatchURL, nil), logger)
	}

	d.server = server.New(server.Options{
		Bind:          cfg.Server.Bind,
		Controller:    d.controller,
		Archive:       store,
		Proxy:         proxy,
		Live:          livefeed.NewWebsocketHandler(d.hub, st.clock, nil, logger),
		HealthChecks:  d.healthChecks(),
		RatePerSecond: cfg.Server.ProxyRatePerSecond,
		Burst:         cfg.Server.ProxyBurst,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Clock:         st.clock,
		Logger:        logger,
	})
	return d, nil
}

func (d *Daemon) healthChecks() []server.HealthCheck {
	return []server.HealthCheck{
		{Name: "session_archive", Check: func(ctx context.Context) error {
			_, err := d.store.List(ctx, 1)
			return err
		}},
		{Name: "inference_keys", Check: func(context.Context) error {
			if d.inference.Size() == 0 {
				return credentials.ErrNoKeys
			}
			return nil
		}},
		{Name: "generation_keys", Check: func(context.Context) error {
			if d.generation.Size() == 0 {
				return credentials.ErrNoKeys
			}
			return nil
		}},
	}
}

// Start acquires the recorder lock and starts background publishers.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "daemon", "acquire lock",
			"another emotrack recorder is already running", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if d.redis != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.redis.Run(runCtx, d.hub)
		}()
	}

	d.running.Store(true)
	d.logger.Info("emotrack daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("inference_keys", d.inference.Size()),
		logging.Int("generation_keys", d.generation.Size()),
		logging.Bool("live_redis", d.redis != nil),
	)
	return nil
}

// Serve runs the HTTP server until ctx is cancelled. Start must be called first.
func (d *Daemon) Serve(ctx context.Context) error {
	if !d.running.Load() {
		return errors.New("daemon not started")
	}
	return d.server.Run(ctx)
}

// Stop finalizes any active recording, stops background work and releases
// the recorder lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.controller.Shutdown(context.Background())
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release recorder lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no recorder is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("emotrack daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.redis != nil {
		errs = append(errs, d.redis.Close())
	}
	errs = append(errs, d.store.Close())
	return errors.Join(errs...)
}

// Controller returns the session controller.
func (d *Daemon) Controller() *session.Controller {
	return d.controller
}

// Store returns the session archive.
func (d *Daemon) Store() *sessionstore.Store {
	return d.store
}

// Hub returns the live observation feed.
func (d *Daemon) Hub() *livefeed.Hub {
	return d.hub
}

// Handler exposes the HTTP API.
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:        d.running.Load(),
		Session:        d.controller.Snapshot(),
		InferenceKeys:  d.inference.Size(),
		GenerationKeys: d.generation.Size(),
		LiveRedis:      d.redis != nil,
		SessionDBPath:  d.store.Path(),
		LockFilePath:   d.lockPath,
	}
	if d.inferPerf != nil {
		stats := d.inferPerf.Stats()
		status.InferencePerf = &stats
	}
	if d.genPerf != nil {
		stats := d.genPerf.Stats()
		status.GenerationPerf = &stats
	}
	return status
}
