package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"emotrack/internal/series"
	"emotrack/internal/services"
)

// timeLayout keeps a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sessionColumns = `id, participant, notes, started_at, ended_at, duration_seconds,
	summary, summary_source, volatility, quality, point_count`

// Session is an archived recording.
type Session struct {
	ID              string    `json:"id"`
	Participant     string    `json:"participant"`
	Notes           string    `json:"notes"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	Summary         string    `json:"summary"`
	SummarySource   string    `json:"summary_source"`
	Volatility      string    `json:"volatility"`
	Quality         string    `json:"quality"`
	PointCount      int       `json:"point_count"`
}

// Store persists sessions in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the archive at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps PRAGMA foreign_keys in effect for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes a session and replaces its observations.
func (s *Store) Save(ctx context.Context, sess Session, observations []series.Observation) error {
	if strings.TrimSpace(sess.ID) == "" {
		return services.Wrap(services.ErrValidation, "sessionstore", "save", "session id required", nil)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participant = excluded.participant,
			notes = excluded.notes,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			duration_seconds = excluded.duration_seconds,
			summary = excluded.summary,
			summary_source = excluded.summary_source,
			volatility = excluded.volatility,
			quality = excluded.quality,
			point_count = excluded.point_count`,
		sess.ID,
		sess.Participant,
		sess.Notes,
		formatTime(sess.StartedAt),
		formatTime(sess.EndedAt),
		sess.DurationSeconds,
		sess.Summary,
		sess.SummarySource,
		sess.Volatility,
		sess.Quality,
		len(observations),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO observations
		(session_id, seq, timestamp, joy, sadness, anger, fear, disgust)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()
	for i, obs := range observations {
		if _, err := stmt.ExecContext(ctx, sess.ID, i, obs.Timestamp, obs.Joy, obs.Sadness, obs.Anger, obs.Fear, obs.Disgust); err != nil {
			return fmt.Errorf("insert observation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Get loads one session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "sessionstore", "get", "session "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Resolve expands a unique ID prefix to a full session ID.
func (s *Store) Resolve(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", services.Wrap(services.ErrValidation, "sessionstore", "resolve", "empty session id", nil)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM sessions WHERE id LIKE ? ESCAPE '\\' LIMIT 2", escapeLike(prefix)+"%")
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate session ids: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", services.Wrap(services.ErrNotFound, "sessionstore", "resolve", "session "+prefix, nil)
	case 1:
		return ids[0], nil
	default:
		return "", services.Wrap(services.ErrValidation, "sessionstore", "resolve", "ambiguous session id "+prefix, nil)
	}
}

// List returns the most recent sessions first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// Observations returns a session's observations in recorded order.
func (s *Store) Observations(ctx context.Context, id string) ([]series.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, joy, sadness, anger, fear, disgust
		FROM observations WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []series.Observation
	for rows.Next() {
		var obs series.Observation
		if err := rows.Scan(&obs.Timestamp, &obs.Joy, &obs.Sadness, &obs.Anger, &obs.Fear, &obs.Disgust); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}

// Delete removes a session and its observations.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "sessionstore", "delete", "session "+id, nil)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess             Session
		started, stopped string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.Participant,
		&sess.Notes,
		&started,
		&stopped,
		&sess.DurationSeconds,
		&sess.Summary,
		&sess.SummarySource,
		&sess.Volatility,
		&sess.Quality,
		&sess.PointCount,
	); err != nil {
		return nil, err
	}
	sess.StartedAt = parseTime(started)
	sess.EndedAt = parseTime(stopped)
	return &sess, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
