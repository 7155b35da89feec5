package testsupport

import (
	"context"
	"testing"

	"emotrack/internal/config"
	"emotrack/internal/series"
	"emotrack/internal/sessionstore"
)

// MustOpenStore opens a sessionstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *sessionstore.Store {
	t.Helper()

	store, err := sessionstore.Open(cfg.SessionDBPath())
	if err != nil {
		t.Fatalf("sessionstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SaveSession archives a session with the given observations.
func SaveSession(t testing.TB, store *sessionstore.Store, sess sessionstore.Session, observations []series.Observation) {
	t.Helper()

	if err := store.Save(context.Background(), sess, observations); err != nil {
		t.Fatalf("store.Save: %v", err)
	}
}

// Observations builds count observations one second apart with a rising joy score.
func Observations(count int) []series.Observation {
	out := make([]series.Observation, 0, count)
	for i := 0; i < count; i++ {
		joy := 0.2 + 0.05*float64(i%10)
		out = append(out, series.Observation{
			Timestamp: int64(i),
			Scores: series.Scores{
				Joy:     joy,
				Sadness: 0.1,
				Anger:   0.05,
				Fear:    0.02 * float64(i%3),
				Disgust: 0.01,
			},
		})
	}
	return out
}
