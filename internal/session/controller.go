package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"emotrack/internal/capture"
	"emotrack/internal/credentials"
	"emotrack/internal/digest"
	"emotrack/internal/frames"
	"emotrack/internal/livefeed"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/notifications"
	"emotrack/internal/retry"
	"emotrack/internal/series"
	"emotrack/internal/services"
	"emotrack/internal/sessionstore"
	"emotrack/internal/summary"
)

// ErrBusy is returned when an operation does not fit the current status.
var ErrBusy = errors.New("session controller busy")

// Options wires a Controller.
type Options struct {
	Inference  *credentials.Pool
	Generation *credentials.Pool
	Analyzer   capture.Analyzer
	Summarizer Summarizer
	Sources    SourceFactory
	Archive    Archive
	Notifier   notifications.Service
	Hub        *livefeed.Hub
	Series     *series.Series

	Retry          retry.Policy
	Interval       time.Duration
	ReadinessDelay time.Duration
	Clock          clockwork.Clock
	Logger         *slog.Logger
}

// Controller drives one recording at a time through
// idle → preparing → recording → processing → results.
type Controller struct {
	opts   Options
	clock  clockwork.Clock
	logger *slog.Logger

	mu          sync.Mutex
	status      Status
	id          string
	participant string
	notes       string
	startedAt   time.Time
	scheduler   *capture.Scheduler
	source      frames.Source
	stopTicker  context.CancelFunc
	tickerDone  chan struct{}
	result      *Completed

	elapsed atomic.Int64
}

// New builds an idle controller.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Series == nil {
		opts.Series = series.New(series.DefaultCapacity)
	}
	if opts.Hub == nil {
		opts.Hub = livefeed.NewHub()
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	return &Controller{
		opts:   opts,
		clock:  opts.Clock,
		logger: logging.NewComponentLogger(opts.Logger, "session"),
		status: StatusIdle,
	}
}

// Hub returns the live feed the controller publishes to.
func (c *Controller) Hub() *livefeed.Hub {
	return c.opts.Hub
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start begins a recording. Both credential pools must be non-empty and the
// frame source must open; otherwise the controller returns to idle.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (Snapshot, error) {
	c.mu.Lock()
	if c.status != StatusIdle {
		status := c.status
		c.mu.Unlock()
		return Snapshot{}, services.Wrap(services.ErrValidation, "session", "start", fmt.Sprintf("cannot start while %s", status), ErrBusy)
	}
	if err := c.validatePools(); err != nil {
		c.mu.Unlock()
		c.logger.Warn("session start rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "session_start_rejected"),
			logging.String(logging.FieldErrorHint, "configure inference.api_keys and generation.api_keys"),
		)
		return Snapshot{}, err
	}
	c.setStatusLocked(StatusPreparing, "")
	c.mu.Unlock()

	source, err := c.openSource(ctx, opts)
	if err != nil {
		c.mu.Lock()
		c.setStatusLocked(StatusIdle, "")
		c.mu.Unlock()
		c.notifyError(ctx, "session start", err)
		return Snapshot{}, err
	}

	id := uuid.NewString()
	startedAt := c.clock.Now()
	c.opts.Series.Reset()
	c.elapsed.Store(0)
	metrics.SeriesPoints.Set(0)

	loopCtx := services.WithSessionID(context.WithoutCancel(ctx), id)
	scheduler := capture.New(capture.Options{
		Source:         source,
		Analyzer:       c.opts.Analyzer,
		Series:         c.opts.Series,
		Retry:          c.opts.Retry,
		Interval:       c.opts.Interval,
		ReadinessDelay: c.opts.ReadinessDelay,
		Clock:          c.clock,
		Logger:         logging.WithSessionID(c.opts.Logger, id),
	})
	hub := c.opts.Hub
	scheduler.Subscribe(func(obs series.Observation) {
		hub.Publish(livefeed.ObservationEvent(id, obs))
	})

	tickerCtx, stopTicker := context.WithCancel(loopCtx)
	tickerDone := make(chan struct{})

	c.mu.Lock()
	c.id = id
	c.participant = strings.TrimSpace(opts.Participant)
	c.notes = strings.TrimSpace(opts.Notes)
	c.startedAt = startedAt
	c.scheduler = scheduler
	c.source = source
	c.stopTicker = stopTicker
	c.tickerDone = tickerDone
	c.result = nil
	c.setStatusLocked(StatusRecording, id)
	c.mu.Unlock()

	go c.tick(tickerCtx, tickerDone)
	if err := scheduler.Start(loopCtx, startedAt); err != nil {
		stopTicker()
		<-tickerDone
		_ = source.Close()
		c.mu.Lock()
		c.setStatusLocked(StatusIdle, id)
		c.mu.Unlock()
		return Snapshot{}, err
	}
	metrics.SessionRecording.Set(1)

	logging.WithSessionID(c.logger, id).Info("session recording",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String("participant", c.participant),
		logging.Int("inference_keys", c.opts.Inference.Size()),
		logging.Int("generation_keys", c.opts.Generation.Size()),
	)
	if err := c.opts.Notifier.Publish(ctx, notifications.EventSessionStarted, notifications.Payload{"sessionID": id}); err != nil {
		c.logger.Debug("session start notification failed", logging.Error(err))
	}
	return c.Snapshot(), nil
}

// Stop ends the recording, waits for the in-flight cycle, then digests,
// summarizes and archives the session.
func (c *Controller) Stop(ctx context.Context) (*Completed, error) {
	c.mu.Lock()
	if c.status != StatusRecording {
		status := c.status
		c.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "session", "stop", fmt.Sprintf("cannot stop while %s", status), ErrBusy)
	}
	c.setStatusLocked(StatusProcessing, c.id)
	id := c.id
	scheduler := c.scheduler
	source := c.source
	stopTicker := c.stopTicker
	tickerDone := c.tickerDone
	started := c.startedAt
	participant := c.participant
	notes := c.notes
	c.mu.Unlock()

	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, c.logger)

	scheduler.Stop()
	scheduler.Wait()
	stopTicker()
	<-tickerDone
	if err := source.Close(); err != nil {
		logger.Debug("frame source close failed", logging.Error(err))
	}
	metrics.SessionRecording.Set(0)

	ended := c.clock.Now()
	duration := int64(ended.Sub(started) / time.Second)
	observations := c.opts.Series.Snapshot()
	d := digest.Compute(observations)

	var result summary.Result
	if c.opts.Summarizer != nil {
		result = c.opts.Summarizer.Summarize(ctx, d, duration)
	} else {
		result = summary.Result{Text: summary.Fallback(d, duration), Source: summary.SourceFallback}
	}
	metrics.SessionsTotal.WithLabelValues(string(result.Source)).Inc()

	completed := &Completed{
		Session: sessionstore.Session{
			ID:              id,
			Participant:     participant,
			Notes:           notes,
			StartedAt:       started,
			EndedAt:         ended,
			DurationSeconds: duration,
			Summary:         result.Text,
			SummarySource:   string(result.Source),
			Volatility:      d.Volatility,
			Quality:         d.Quality,
			PointCount:      len(observations),
		},
		Digest:       d,
		Observations: observations,
		Stats:        scheduler.Stats(),
	}

	if c.opts.Archive != nil {
		if err := c.opts.Archive.Save(ctx, completed.Session, observations); err != nil {
			logging.WarnWithContext(logger, "session archive failed", "session_archive_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check data_dir permissions and disk space"),
				logging.String(logging.FieldImpact, "session results are only available until reset"),
			)
			c.notifyError(ctx, "session archive", err)
		} else {
			completed.Archived = true
		}
	}

	c.notifyCompleted(ctx, completed, result)

	c.mu.Lock()
	c.result = completed
	c.scheduler = nil
	c.source = nil
	c.setStatusLocked(StatusResults, id)
	c.mu.Unlock()

	logger.Info("session complete",
		logging.String(logging.FieldEventType, "session_completed"),
		logging.Int("points", completed.Session.PointCount),
		logging.Int64("duration_seconds", duration),
		logging.String("summary_source", string(result.Source)),
		logging.String("volatility", d.Volatility),
	)
	return completed, nil
}

// Reset clears the results and returns to idle.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusIdle:
		return nil
	case StatusResults:
	default:
		return services.Wrap(services.ErrValidation, "session", "reset", fmt.Sprintf("cannot reset while %s", c.status), ErrBusy)
	}
	c.opts.Series.Reset()
	c.elapsed.Store(0)
	metrics.SeriesPoints.Set(0)
	c.result = nil
	prev := c.id
	c.id = ""
	c.participant = ""
	c.notes = ""
	c.startedAt = time.Time{}
	c.setStatusLocked(StatusIdle, prev)
	return nil
}

// Shutdown stops an active recording so its results are archived.
func (c *Controller) Shutdown(ctx context.Context) {
	if c.Status() != StatusRecording {
		return
	}
	if _, err := c.Stop(ctx); err != nil {
		c.logger.Warn("session shutdown stop failed", logging.Error(err))
	}
}

// Result returns the last completed session while in results.
func (c *Controller) Result() (*Completed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil, false
	}
	return c.result, true
}

// Observations returns a copy of the active series.
func (c *Controller) Observations() []series.Observation {
	return c.opts.Series.Snapshot()
}

// Snapshot reports the controller state for display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		ID:          c.id,
		Status:      c.status,
		Participant: c.participant,
		StartedAt:   c.startedAt,
	}
	scheduler := c.scheduler
	result := c.result
	c.mu.Unlock()

	snap.Elapsed = c.elapsed.Load()
	snap.Points = c.opts.Series.Len()
	if last, ok := c.opts.Series.Last(); ok {
		snap.Current = &last
	}
	switch {
	case scheduler != nil:
		snap.Stats = scheduler.Stats()
	case result != nil:
		snap.Stats = result.Stats
		snap.Elapsed = result.Session.DurationSeconds
	}
	snap.InferenceKey = c.opts.Inference.Index()
	snap.GenerationKey = c.opts.Generation.Index()
	return snap
}

func (c *Controller) validatePools() error {
	if c.opts.Inference.Size() == 0 {
		return services.Wrap(services.ErrConfiguration, "session", "start", "no emotion inference api keys configured", credentials.ErrNoKeys)
	}
	if c.opts.Generation.Size() == 0 {
		return services.Wrap(services.ErrConfiguration, "session", "start", "no text generation api keys configured", credentials.ErrNoKeys)
	}
	if c.opts.Analyzer == nil {
		return services.Wrap(services.ErrConfiguration, "session", "start", "no analyzer configured", nil)
	}
	return nil
}

func (c *Controller) openSource(ctx context.Context, opts StartOptions) (frames.Source, error) {
	source := opts.Source
	if source == nil {
		if c.opts.Sources == nil {
			return nil, services.Wrap(services.ErrDevice, "session", "open source", "no frame source configured", nil)
		}
		created, err := c.opts.Sources()
		if err != nil {
			return nil, services.Wrap(services.ErrDevice, "session", "open source", "frame source unavailable", err)
		}
		source = created
	}
	if err := source.Open(ctx); err != nil {
		_ = source.Close()
		if errors.Is(err, services.ErrDevice) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrDevice, "session", "open source", "frame source unavailable", err)
	}
	return source, nil
}

func (c *Controller) tick(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.elapsed.Add(1)
		}
	}
}

// setStatusLocked must be called with c.mu held.
func (c *Controller) setStatusLocked(status Status, id string) {
	c.status = status
	c.opts.Hub.Publish(livefeed.StatusEvent(id, string(status)))
}

func (c *Controller) notifyCompleted(ctx context.Context, completed *Completed, result summary.Result) {
	payload := notifications.Payload{
		"sessionID":   shortID(completed.Session.ID),
		"participant": completed.Session.Participant,
		"duration":    digest.FormatDuration(completed.Session.DurationSeconds),
		"points":      completed.Session.PointCount,
	}
	if top := completed.Digest.Top(); len(top) > 0 {
		payload["topEmotion"] = fmt.Sprintf("%s (%s%%)", top[0].Label, top[0].Percent())
	}
	if err := c.opts.Notifier.Publish(ctx, notifications.EventSessionCompleted, payload); err != nil {
		c.logger.Debug("session completion notification failed", logging.Error(err))
	}
	if result.Source == summary.SourceFallback && result.Err != nil {
		if err := c.opts.Notifier.Publish(ctx, notifications.EventSummaryFallback, notifications.Payload{
			"sessionID": shortID(completed.Session.ID),
			"error":     result.Err,
		}); err != nil {
			c.logger.Debug("summary fallback notification failed", logging.Error(err))
		}
	}
}

func (c *Controller) notifyError(ctx context.Context, label string, err error) {
	if notifyErr := c.opts.Notifier.Publish(ctx, notifications.EventError, notifications.Payload{
		"context": label,
		"error":   err,
	}); notifyErr != nil {
		if errors.Is(notifyErr, context.Canceled) {
			c.logger.Debug("shutting down, could not send error notification")
			return
		}
		c.logger.Debug("error notification failed", logging.Error(notifyErr))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}
