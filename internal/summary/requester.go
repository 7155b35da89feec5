package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"emotrack/internal/credentials"
	"emotrack/internal/digest"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/perf"
	"emotrack/internal/services"
	"emotrack/internal/services/gemini"
)

// DefaultMinPoints is the smallest series that is sent for generation.
const DefaultMinPoints = 5

// Source records where a summary came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
	SourceSkipped  Source = "skipped"
)

// Generator produces text for a prompt with one credential.
type Generator interface {
	Generate(ctx context.Context, key, prompt string) (string, error)
}

// Result is a finished summary. Err holds the sweep failure that caused a
// fallback, if any; Summarize itself never fails.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Err    error  `json:"-"`
}

// Requester turns a digest into narrative text, sweeping the generation
// credential pool once before falling back to local text.
type Requester struct {
	gen       Generator
	pool      *credentials.Pool
	minPoints int
	perf      *perf.Window
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes a Requester.
type Option func(*Requester)

// WithMinPoints overrides the generation threshold.
func WithMinPoints(n int) Option {
	return func(r *Requester) {
		if n > 0 {
			r.minPoints = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Requester) {
		r.logger = logger
	}
}

// NewRequester builds a requester over gen and pool.
func NewRequester(gen Generator, pool *credentials.Pool, opts ...Option) *Requester {
	r := &Requester{
		gen:       gen,
		pool:      pool,
		minPoints: DefaultMinPoints,
		perf:      perf.NewWindow(perf.DefaultSize),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "summary")
	return r
}

// Perf returns the generation duration window.
func (r *Requester) Perf() *perf.Window {
	return r.perf
}

// Summarize produces the session summary. Sessions below the threshold,
// including empty ones, are answered locally; any sweep failure yields Fallback.
func (r *Requester) Summarize(ctx context.Context, d digest.Digest, durationSeconds int64) Result {
	logger := logging.WithContext(ctx, r.logger)
	if d.Count < r.minPoints {
		metrics.SummaryRequestsTotal.WithLabelValues(string(SourceSkipped)).Inc()
		logger.Info("summary generation skipped", logging.Int("points", d.Count), logging.Int("min_points", r.minPoints))
		return Result{Text: Skipped(d.Count, durationSeconds), Source: SourceSkipped}
	}

	text, err := r.Sweep(services.WithService(ctx, "generation"), BuildPrompt(d, durationSeconds))
	if err != nil {
		metrics.SummaryRequestsTotal.WithLabelValues(string(SourceFallback)).Inc()
		logging.WarnWithContext(logger, "summary generation failed; using local narrative", "summary_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check generation api keys and quota"),
			logging.String(logging.FieldImpact, "summary is a generic statistical narrative"),
		)
		return Result{Text: Fallback(d, durationSeconds), Source: SourceFallback, Err: err}
	}
	metrics.SummaryRequestsTotal.WithLabelValues(string(SourceAI)).Inc()
	return Result{Text: text, Source: SourceAI}
}

// Sweep tries each generation key once, starting at the current key. Quota
// and other failures advance the pool without cooldown; a success leaves the
// key in place for the next session. A transport failure on the final key is
// returned as is; otherwise the last recorded failure is.
func (r *Requester) Sweep(ctx context.Context, prompt string) (string, error) {
	if r.gen == nil || r.pool.Size() == 0 {
		return "", services.Wrap(services.ErrConfiguration, "summary", "sweep", "no generation keys", credentials.ErrNoKeys)
	}
	logger := logging.WithContext(ctx, r.logger)
	size := r.pool.Size()

	var lastErr error
	for attempt := 0; attempt < size; attempt++ {
		key, err := r.pool.Current()
		if err != nil {
			return "", err
		}
		index := r.pool.Index()

		started := r.now()
		text, err := r.gen.Generate(ctx, key, prompt)
		elapsed := r.now().Sub(started)
		r.perf.Record(elapsed)
		metrics.GenerationDuration.Observe(elapsed.Seconds())

		switch {
		case err == nil:
			logger.Info("summary generated", logging.Int(logging.FieldKeyIndex, index), logging.Duration("duration", elapsed))
			return text, nil
		case errors.Is(err, gemini.ErrNoText), errors.Is(err, services.ErrValidation):
			// The key worked; the reply is unusable and another key would not help.
			return "", err
		case gemini.IsQuota(err):
			logger.Warn("generation key exhausted; advancing",
				logging.Int(logging.FieldKeyIndex, index),
				logging.Error(err),
				logging.String(logging.FieldEventType, "generation_quota"),
			)
			lastErr = services.Wrap(services.ErrRateLimited, "summary", "sweep", fmt.Sprintf("key %d quota exhausted", index+1), err)
		case errors.Is(err, services.ErrTransient):
			lastErr = err
			if attempt == size-1 {
				return "", lastErr
			}
			logger.Warn("generation request failed", logging.Int(logging.FieldKeyIndex, index), logging.Error(err))
		default:
			logger.Warn("generation request rejected", logging.Int(logging.FieldKeyIndex, index), logging.Error(err))
			lastErr = err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r.pool.Advance()
	}
	return "", fmt.Errorf("all %d generation keys failed: %w", size, lastErr)
}
