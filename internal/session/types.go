package session

import (
	"context"
	"time"

	"emotrack/internal/capture"
	"emotrack/internal/digest"
	"emotrack/internal/frames"
	"emotrack/internal/series"
	"emotrack/internal/sessionstore"
	"emotrack/internal/summary"
)

// Status is the controller lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusPreparing  Status = "preparing"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusResults    Status = "results"
)

// StartOptions describes a new recording.
type StartOptions struct {
	Participant string `json:"participant"`
	Notes       string `json:"notes"`
	// Source overrides the configured frame source.
	Source frames.Source `json:"-"`
}

// Summarizer produces the end-of-session narrative.
type Summarizer interface {
	Summarize(ctx context.Context, d digest.Digest, durationSeconds int64) summary.Result
}

// Archive persists completed sessions.
type Archive interface {
	Save(ctx context.Context, sess sessionstore.Session, observations []series.Observation) error
}

// SourceFactory opens the configured frame source for a new session.
type SourceFactory func() (frames.Source, error)

// Completed is the outcome of a finished session.
type Completed struct {
	Session      sessionstore.Session `json:"session"`
	Digest       digest.Digest        `json:"digest"`
	Observations []series.Observation `json:"observations"`
	Stats        capture.Stats        `json:"stats"`
	Archived     bool                 `json:"archived"`
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	ID            string              `json:"id,omitempty"`
	Status        Status              `json:"status"`
	Participant   string              `json:"participant,omitempty"`
	StartedAt     time.Time           `json:"started_at,omitzero"`
	Elapsed       int64               `json:"elapsed_seconds"`
	Current       *series.Observation `json:"current,omitempty"`
	Points        int                 `json:"points"`
	Stats         capture.Stats       `json:"stats"`
	InferenceKey  int                 `json:"inference_key_index"`
	GenerationKey int                 `json:"generation_key_index"`
}
