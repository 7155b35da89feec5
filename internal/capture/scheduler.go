package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"emotrack/internal/frames"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/retry"
	"emotrack/internal/series"
	"emotrack/internal/services"
	"emotrack/internal/services/hume"
)

const (
	DefaultInterval       = 1500 * time.Millisecond
	DefaultReadinessDelay = 500 * time.Millisecond
)

// ErrRunning is returned by Start when the loop is already active.
var ErrRunning = errors.New("capture loop already running")

// Analyzer submits one frame for emotion inference.
type Analyzer interface {
	Analyze(ctx context.Context, frame string) (hume.Result, error)
}

// Subscriber receives every recorded observation on the loop goroutine. It
// must not block.
type Subscriber func(series.Observation)

// Stats counts loop activity since Start.
type Stats struct {
	Cycles        int64 `json:"cycles"`
	Successes     int64 `json:"successes"`
	NoResult      int64 `json:"no_result"`
	CaptureErrors int64 `json:"capture_errors"`
	Errors        int64 `json:"errors"`
}

// Options configures a Scheduler.
type Options struct {
	Source         frames.Source
	Analyzer       Analyzer
	Series         *series.Series
	Retry          retry.Policy
	Interval       time.Duration
	ReadinessDelay time.Duration
	Clock          clockwork.Clock
	Logger         *slog.Logger
}

// Scheduler runs the capture → analyze → ingest loop. Cycles are separated by
// a trailing delay so they never overlap.
type Scheduler struct {
	opts   Options
	clock  clockwork.Clock
	logger *slog.Logger

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	done        chan struct{}
	subscribers []Subscriber

	cycles        atomic.Int64
	successes     atomic.Int64
	noResult      atomic.Int64
	captureErrors atomic.Int64
	errorCount    atomic.Int64
}

// New builds a scheduler. Zero durations use the defaults.
func New(opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ReadinessDelay <= 0 {
		opts.ReadinessDelay = DefaultReadinessDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Retry.Clock == nil {
		opts.Retry.Clock = opts.Clock
	}
	done := make(chan struct{})
	close(done)
	return &Scheduler{
		opts:   opts,
		clock:  opts.Clock,
		logger: logging.NewComponentLogger(opts.Logger, "capture"),
		done:   done,
	}
}

// Subscribe registers fn for every recorded observation.
func (s *Scheduler) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the loop. Observation timestamps are measured from
// sessionStart. ctx bounds every exchange; cancel it only to abort the loop
// hard, and use Stop for a cooperative stop.
func (s *Scheduler) Start(ctx context.Context, sessionStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.cycles.Store(0)
	s.successes.Store(0)
	s.noResult.Store(0)
	s.captureErrors.Store(0)
	s.errorCount.Store(0)

	go s.loop(ctx, sessionStart, s.stopCh, s.done)
	return nil
}

// Stop asks the loop to exit before its next cycle. An exchange already in
// flight completes or times out on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// Wait blocks until the loop goroutine has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	<-done
}

// Stats returns the loop counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:        s.cycles.Load(),
		Successes:     s.successes.Load(),
		NoResult:      s.noResult.Load(),
		CaptureErrors: s.captureErrors.Load(),
		Errors:        s.errorCount.Load(),
	}
}

func (s *Scheduler) loop(ctx context.Context, sessionStart time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.markStopped(stop)
	s.logger.Debug("capture loop started", logging.Duration("interval", s.opts.Interval))

	for {
		select {
		case <-stop:
			s.logger.Debug("capture loop stopped", logging.Int64("cycles", s.cycles.Load()))
			return
		case <-ctx.Done():
			return
		default:
		}

		if !s.opts.Source.Ready() {
			if !s.sleep(ctx, stop, s.opts.ReadinessDelay) {
				return
			}
			continue
		}

		s.cycle(ctx, sessionStart)

		if !s.sleep(ctx, stop, s.opts.Interval) {
			return
		}
	}
}

// markStopped clears the running flag when the loop exits on its own.
func (s *Scheduler) markStopped(stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == stop && s.running {
		s.running = false
		close(s.stopCh)
	}
}

func (s *Scheduler) cycle(ctx context.Context, sessionStart time.Time) {
	n := s.cycles.Add(1)
	ctx = services.WithCycle(ctx, n)
	logger := logging.WithContext(ctx, s.logger)

	frame, err := s.opts.Source.Capture(ctx)
	if err != nil {
		s.captureErrors.Add(1)
		metrics.CaptureCyclesTotal.WithLabelValues("capture_error").Inc()
		logger.Debug("frame capture failed; cycle skipped", logging.Error(err))
		return
	}

	result, ok, err := retry.Invoke(ctx, s.opts.Retry, func(ctx context.Context) (hume.Result, bool, error) {
		res, err := s.opts.Analyzer.Analyze(ctx, frame)
		if err != nil {
			return res, false, err
		}
		return res, res.OK(), nil
	})
	switch {
	case err != nil:
		s.errorCount.Add(1)
		metrics.CaptureCyclesTotal.WithLabelValues("error").Inc()
		logging.ErrorWithContext(logger, "frame analysis failed", "capture_cycle_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check inference configuration"),
		)
		return
	case !ok:
		s.noResult.Add(1)
		metrics.CaptureCyclesTotal.WithLabelValues("no_result").Inc()
		logger.Debug("no result after retries; cycle skipped", logging.String("last_outcome", result.Outcome.String()))
		return
	}

	obs := series.Observation{
		Timestamp: int64(s.clock.Since(sessionStart) / time.Second),
		Scores:    series.ScoresFrom(result.Emotions),
	}
	s.opts.Series.Append(obs)
	s.successes.Add(1)
	metrics.CaptureCyclesTotal.WithLabelValues("success").Inc()
	metrics.SeriesPoints.Set(float64(s.opts.Series.Len()))

	s.mu.Lock()
	subscribers := append([]Subscriber(nil), s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subscribers {
		fn(obs)
	}
	logger.Debug("observation recorded",
		logging.Int64("timestamp", obs.Timestamp),
		logging.Float64("joy", obs.Joy),
		logging.Float64("fear", obs.Fear),
	)
}

func (s *Scheduler) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
