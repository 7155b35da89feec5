package digest_test

import (
	"math"
	"reflect"
	"testing"

	"emotrack/internal/digest"
	"emotrack/internal/series"
)

func obs(ts int64, joy, fear float64) series.Observation {
	return series.Observation{Timestamp: ts, Scores: series.Scores{Joy: joy, Fear: fear}}
}

func TestVolatilityClassification(t *testing.T) {
	cases := []struct {
		name string
		joys []float64
		want string
	}{
		{"high", []float64{0.1, 0.9, 0.1, 0.9}, digest.VolatilityHigh},
		{"flat", []float64{0.5, 0.5, 0.5, 0.5}, digest.VolatilityLow},
		{"moderate", []float64{0.4, 0.6, 0.4, 0.6}, digest.VolatilityModerate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var observations []series.Observation
			for i, joy := range tc.joys {
				observations = append(observations, obs(int64(i), joy, 0))
			}
			d := digest.Compute(observations)
			if d.Volatility != tc.want {
				t.Fatalf("volatility = %s (variance %v), want %s", d.Volatility, d.JoyVariance, tc.want)
			}
		})
	}
}

func TestHighVarianceValue(t *testing.T) {
	d := digest.Compute([]series.Observation{obs(0, 0.1, 0), obs(1, 0.9, 0), obs(2, 0.1, 0), obs(3, 0.9, 0)})
	if math.Abs(d.JoyVariance-0.16) > 1e-9 {
		t.Fatalf("variance = %v, want 0.16", d.JoyVariance)
	}
}

func TestEmptyDigest(t *testing.T) {
	d := digest.Compute(nil)
	if d.Volatility != digest.VolatilityNone {
		t.Fatalf("volatility = %q", d.Volatility)
	}
	if d.KeyMomentsText() != "No emotional data collected" {
		t.Fatalf("moments = %q", d.KeyMomentsText())
	}
	if len(d.Top()) != 3 {
		t.Fatalf("Top should still list three emotions, got %d", len(d.Top()))
	}
}

func TestTopEmotionsAndTies(t *testing.T) {
	observations := []series.Observation{
		{Timestamp: 0, Scores: series.Scores{Joy: 0.2, Sadness: 0.5, Anger: 0.2, Fear: 0.2, Disgust: 0.1}},
	}
	d := digest.Compute(observations)
	var names []string
	for _, r := range d.Top() {
		names = append(names, r.Label)
	}
	if want := []string{"Sadness", "Joy", "Fear"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("top = %v, want %v", names, want)
	}
	if d.Top()[0].Percent() != "50.0" {
		t.Fatalf("percent = %s", d.Top()[0].Percent())
	}
}

func TestRankingEqualMeansPutsFearSecond(t *testing.T) {
	observations := []series.Observation{
		{Timestamp: 0, Scores: series.Scores{Joy: 0.2, Sadness: 0.2, Anger: 0.2, Fear: 0.2, Disgust: 0.2}},
	}
	d := digest.Compute(observations)
	var names []string
	for _, r := range d.Ranking {
		names = append(names, r.Name)
	}
	want := []string{series.Joy, series.Fear, series.Sadness, series.Anger, series.Disgust}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("ranking = %v, want %v", names, want)
	}
	if got := len(d.Top()); got != 3 {
		t.Fatalf("top length = %d, want 3", got)
	}
}

func TestKeyMoments(t *testing.T) {
	observations := []series.Observation{
		obs(5, 0.30, 0.60),
		obs(65, 0.90, 0.10),
		obs(130, 0.70, 0.80),
		obs(200, 0.10, 0.20),
	}
	d := digest.Compute(observations)
	want := []string{
		"High joy (90%) at 01:05",
		"High joy (70%) at 02:10",
		"High joy (30%) at 00:05",
		"Elevated anxiety (80%) at 02:10",
		"Elevated anxiety (60%) at 00:05",
	}
	if got := d.KeyMoments(); !reflect.DeepEqual(got, want) {
		t.Fatalf("moments = %v, want %v", got, want)
	}
}

func TestMinMaxAndQuality(t *testing.T) {
	var observations []series.Observation
	for i := 0; i < 101; i++ {
		observations = append(observations, obs(int64(i), float64(i%10)/10, 0.5))
	}
	d := digest.Compute(observations)
	if d.Min.Joy != 0 || d.Max.Joy != 0.9 {
		t.Fatalf("joy range = %v..%v", d.Min.Joy, d.Max.Joy)
	}
	if d.Min.Fear != 0.5 || d.Max.Fear != 0.5 {
		t.Fatalf("fear range = %v..%v", d.Min.Fear, d.Max.Fear)
	}
	if d.Quality != digest.QualityExcellent {
		t.Fatalf("quality = %s", d.Quality)
	}
	for points, want := range map[int]string{0: "Moderate", 50: "Moderate", 51: "Good", 100: "Good", 101: "Excellent"} {
		if got := digest.Quality(points); got != want {
			t.Fatalf("Quality(%d) = %s, want %s", points, got, want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	for seconds, want := range map[int64]string{0: "00:00", 9: "00:09", 75: "01:15", 3600: "60:00", -3: "00:00"} {
		if got := digest.FormatClock(seconds); got != want {
			t.Fatalf("FormatClock(%d) = %s, want %s", seconds, got, want)
		}
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	observations := []series.Observation{obs(1, 0.4, 0.2), obs(2, 0.6, 0.3), obs(3, 0.4, 0.2)}
	if !reflect.DeepEqual(digest.Compute(observations), digest.Compute(observations)) {
		t.Fatal("digest must be deterministic")
	}
}
