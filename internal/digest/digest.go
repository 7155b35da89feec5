// Package digest computes the statistical summary of a recorded series: means,
// dominant emotions, peaks, volatility, ranges, and session quality. Every
// function is pure so identical series always produce identical digests.
package digest

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"emotrack/internal/series"
)

const (
	VolatilityHigh     = "High"
	VolatilityModerate = "Moderate"
	VolatilityLow      = "Low"
	VolatilityNone     = "N/A"

	QualityExcellent = "Excellent"
	QualityGood      = "Good"
	QualityModerate  = "Moderate"

	highVarianceThreshold     = 0.015
	moderateVarianceThreshold = 0.008

	topEmotionCount = 3
	joyPeakCount    = 3
	fearPeakCount   = 2

	noMomentsText = "No emotional data collected"
)

// Ranked is an emotion with its mean score.
type Ranked struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Mean  float64 `json:"mean"`
}

// Percent renders the mean as a percentage with one decimal.
func (r Ranked) Percent() string {
	return fmt.Sprintf("%.1f", r.Mean*100)
}

// Peak is a single high reading.
type Peak struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Digest is the statistical summary of a series.
type Digest struct {
	Count       int           `json:"count"`
	Means       series.Scores `json:"means"`
	Min         series.Scores `json:"min"`
	Max         series.Scores `json:"max"`
	Ranking     []Ranked      `json:"ranking"`
	JoyPeaks    []Peak        `json:"joy_peaks"`
	FearPeaks   []Peak        `json:"fear_peaks"`
	JoyVariance float64       `json:"joy_variance"`
	Volatility  string        `json:"volatility"`
	Quality     string        `json:"quality"`
}

// Compute digests observations. An empty input yields zero statistics and a
// volatility of N/A.
func Compute(observations []series.Observation) Digest {
	d := Digest{Count: len(observations), Quality: Quality(len(observations))}
	if len(observations) == 0 {
		d.Ranking = rank(series.Scores{})
		d.Volatility = VolatilityNone
		return d
	}

	d.Min = observations[0].Scores
	d.Max = observations[0].Scores
	var sum series.Scores
	for _, obs := range observations {
		for _, name := range series.Emotions {
			v := obs.Get(name)
			sum.Set(name, sum.Get(name)+v)
			if v < d.Min.Get(name) {
				d.Min.Set(name, v)
			}
			if v > d.Max.Get(name) {
				d.Max.Set(name, v)
			}
		}
	}
	n := float64(len(observations))
	for _, name := range series.Emotions {
		d.Means.Set(name, sum.Get(name)/n)
	}

	d.Ranking = rank(d.Means)
	d.JoyPeaks = peaks(observations, series.Joy, joyPeakCount)
	d.FearPeaks = peaks(observations, series.Fear, fearPeakCount)

	var sq float64
	for _, obs := range observations {
		delta := obs.Joy - d.Means.Joy
		sq += delta * delta
	}
	d.JoyVariance = sq / n
	d.Volatility = ClassifyVolatility(d.JoyVariance)
	return d
}

// Top returns the three emotions with the highest means.
func (d Digest) Top() []Ranked {
	if len(d.Ranking) < topEmotionCount {
		return d.Ranking
	}
	return d.Ranking[:topEmotionCount]
}

// KeyMoments returns the peak lines: joy peaks first, then fear peaks.
func (d Digest) KeyMoments() []string {
	lines := make([]string, 0, len(d.JoyPeaks)+len(d.FearPeaks))
	for _, p := range d.JoyPeaks {
		lines = append(lines, fmt.Sprintf("High joy (%.0f%%) at %s", p.Value*100, FormatClock(p.Timestamp)))
	}
	for _, p := range d.FearPeaks {
		lines = append(lines, fmt.Sprintf("Elevated anxiety (%.0f%%) at %s", p.Value*100, FormatClock(p.Timestamp)))
	}
	return lines
}

// KeyMomentsText joins KeyMoments with newlines.
func (d Digest) KeyMomentsText() string {
	if d.Count == 0 {
		return noMomentsText
	}
	return strings.Join(d.KeyMoments(), "\n")
}

// ClassifyVolatility maps a joy variance onto High, Moderate, or Low.
func ClassifyVolatility(variance float64) string {
	switch {
	case variance > highVarianceThreshold:
		return VolatilityHigh
	case variance > moderateVarianceThreshold:
		return VolatilityModerate
	default:
		return VolatilityLow
	}
}

// Quality grades a session by the number of collected points.
func Quality(points int) string {
	switch {
	case points > 100:
		return QualityExcellent
	case points > 50:
		return QualityGood
	default:
		return QualityModerate
	}
}

// Label returns the display form of an emotion name. Casers hold state, so
// one is built per call.
func Label(name string) string {
	return cases.Title(language.English).String(name)
}

// FormatClock renders whole seconds as MM:SS.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatDuration renders seconds as "M minute and S second" for prose.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d minute and %d second", seconds/60, seconds%60)
}

// rankOrder breaks ties between equal means.
var rankOrder = []string{series.Joy, series.Fear, series.Sadness, series.Anger, series.Disgust}

func rank(means series.Scores) []Ranked {
	out := make([]Ranked, 0, len(rankOrder))
	for _, name := range rankOrder {
		out = append(out, Ranked{Name: name, Label: Label(name), Mean: means.Get(name)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	return out
}

func peaks(observations []series.Observation, emotion string, count int) []Peak {
	all := make([]Peak, 0, len(observations))
	for _, obs := range observations {
		all = append(all, Peak{Timestamp: obs.Timestamp, Value: obs.Get(emotion)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Value > all[j].Value })
	if len(all) > count {
		all = all[:count]
	}
	return all
}
