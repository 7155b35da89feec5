package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"emotrack/internal/digest"
	"emotrack/internal/series"
	"emotrack/internal/services"
	"emotrack/internal/sessionstore"
)

// Format selects a renderer.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// MaxTimelineRows bounds the sampled timeline.
const MaxTimelineRows = 40

const (
	title        = "Emotion Expression Analysis Report"
	anonymous    = "Anonymous"
	barWidth     = 30
	timeLayout   = "2006-01-02 15:04:05"
	noSummaryYet = "No summary recorded."
)

// statRows lists the statistics table rows with their display labels.
var statRows = []struct {
	name  string
	label string
}{
	{series.Joy, "Joy"},
	{series.Fear, "Fear/Anxiety"},
	{series.Sadness, "Sadness"},
	{series.Anger, "Anger"},
	{series.Disgust, "Disgust"},
}

// timelineColumns is the emotion order of timeline columns.
var timelineColumns = []string{series.Joy, series.Fear, series.Sadness, series.Disgust, series.Anger}

// Document is a rendered view of one session.
type Document struct {
	Session      sessionstore.Session
	Observations []series.Observation
	Digest       digest.Digest
	Generated    time.Time
}

// New builds a document, computing the digest from observations.
func New(sess sessionstore.Session, observations []series.Observation, generated time.Time) Document {
	return Document{
		Session:      sess,
		Observations: observations,
		Digest:       digest.Compute(observations),
		Generated:    generated,
	}
}

// ParseFormat validates a format name. Empty means table.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", services.Wrap(services.ErrValidation, "report", "parse format", fmt.Sprintf("unknown format %q (want table, markdown, or csv)", value), nil)
	}
}

// Render writes doc to w in format.
func Render(w io.Writer, doc Document, format Format) error {
	var out string
	switch format {
	case FormatTable, "":
		out = renderText(doc)
	case FormatMarkdown:
		out = renderMarkdown(doc)
	case FormatCSV:
		out = renderCSV(doc)
	default:
		return services.Wrap(services.ErrValidation, "report", "render", fmt.Sprintf("unknown format %q", format), nil)
	}
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Timeline samples observations evenly, keeping at most MaxTimelineRows.
func Timeline(observations []series.Observation) []series.Observation {
	if len(observations) == 0 {
		return nil
	}
	step := len(observations) / MaxTimelineRows
	if step < 1 {
		step = 1
	}
	out := make([]series.Observation, 0, MaxTimelineRows)
	for i := 0; i < len(observations) && len(out) < MaxTimelineRows; i += step {
		out = append(out, observations[i])
	}
	return out
}

func renderText(doc Document) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
	for _, line := range headerLines(doc) {
		b.WriteString(line + "\n")
	}

	section(&b, "AI-Generated Analysis", summaryText(doc))
	if notes := strings.TrimSpace(doc.Session.Notes); notes != "" {
		section(&b, "Session Notes", notes)
	}
	section(&b, "Emotional Intensity Overview", intensityBars(doc.Digest))

	stats := newTable(statsHeader(), statsBody(doc.Digest))
	section(&b, "Emotion Statistics", stats.Render())
	section(&b, "Key Insights", strings.Join(bullets(insights(doc)), "\n"))
	if moments := doc.Digest.KeyMoments(); len(moments) > 0 {
		section(&b, "Key Moments", strings.Join(bullets(moments), "\n"))
	}
	timeline := newTable(timelineHeader(), timelineBody(doc.Observations))
	section(&b, "Detailed Emotional Timeline", timeline.Render())
	return b.String()
}

func renderMarkdown(doc Document) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	for _, line := range headerLines(doc) {
		b.WriteString("- " + line + "\n")
	}
	mdSection(&b, "AI-Generated Analysis", summaryText(doc))
	if notes := strings.TrimSpace(doc.Session.Notes); notes != "" {
		mdSection(&b, "Session Notes", notes)
	}
	stats := newTable(statsHeader(), statsBody(doc.Digest))
	mdSection(&b, "Emotion Statistics", stats.RenderMarkdown())
	mdSection(&b, "Key Insights", strings.Join(bullets(insights(doc)), "\n"))
	if moments := doc.Digest.KeyMoments(); len(moments) > 0 {
		mdSection(&b, "Key Moments", strings.Join(bullets(moments), "\n"))
	}
	timeline := newTable(timelineHeader(), timelineBody(doc.Observations))
	mdSection(&b, "Detailed Emotional Timeline", timeline.RenderMarkdown())
	return b.String()
}

func renderCSV(doc Document) string {
	header := table.Row{"timestamp"}
	for _, name := range series.Emotions {
		header = append(header, name)
	}
	rows := make([]table.Row, 0, len(doc.Observations))
	for _, obs := range doc.Observations {
		row := table.Row{strconv.FormatInt(obs.Timestamp, 10)}
		for _, name := range series.Emotions {
			row = append(row, strconv.FormatFloat(obs.Get(name), 'f', 4, 64))
		}
		rows = append(rows, row)
	}
	tw := table.NewWriter()
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	return tw.RenderCSV() + "\n"
}

func headerLines(doc Document) []string {
	participant := strings.TrimSpace(doc.Session.Participant)
	if participant == "" {
		participant = anonymous
	}
	generated := doc.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	lines := []string{
		"Participant: " + participant,
		"Session Duration: " + digest.FormatClock(doc.Session.DurationSeconds),
		"Generated: " + generated.Local().Format(timeLayout),
		fmt.Sprintf("Total Data Points: %d", len(doc.Observations)),
	}
	if !doc.Session.StartedAt.IsZero() {
		lines = append(lines, "Recorded: "+doc.Session.StartedAt.Local().Format(timeLayout))
	}
	if doc.Session.ID != "" {
		lines = append(lines, "Session: "+doc.Session.ID)
	}
	return lines
}

func summaryText(doc Document) string {
	text := strings.TrimSpace(doc.Session.Summary)
	if text == "" {
		return noSummaryYet
	}
	if doc.Session.SummarySource != "" && doc.Session.SummarySource != "ai" {
		text += fmt.Sprintf("\n\n(summary source: %s)", doc.Session.SummarySource)
	}
	return text
}

func insights(doc Document) []string {
	top := doc.Digest.Top()
	parts := make([]string, 0, len(top))
	for _, r := range top {
		parts = append(parts, fmt.Sprintf("%s (%s%%)", r.Label, r.Percent()))
	}
	return []string{
		"Top Emotions: " + strings.Join(parts, ", "),
		"Emotional Volatility: " + doc.Digest.Volatility,
		fmt.Sprintf("Session Quality: %s (%d data points)", doc.Digest.Quality, doc.Digest.Count),
	}
}

func intensityBars(d digest.Digest) string {
	lines := make([]string, 0, len(d.Ranking))
	for _, r := range d.Ranking {
		filled := int(r.Mean*barWidth + 0.5)
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		lines = append(lines, fmt.Sprintf("%-8s %s %5s%%", r.Label, bar, r.Percent()))
	}
	return strings.Join(lines, "\n")
}

func statsHeader() table.Row {
	return table.Row{"Emotion", "Average", "Peak", "Lowest"}
}

func statsBody(d digest.Digest) []table.Row {
	rows := make([]table.Row, 0, len(statRows))
	for _, s := range statRows {
		rows = append(rows, table.Row{
			s.label,
			percent(d.Means.Get(s.name), 1),
			percent(d.Max.Get(s.name), 1),
			percent(d.Min.Get(s.name), 1),
		})
	}
	return rows
}

func timelineHeader() table.Row {
	header := table.Row{"Time"}
	for _, name := range timelineColumns {
		header = append(header, digest.Label(name))
	}
	return header
}

func timelineBody(observations []series.Observation) []table.Row {
	sampled := Timeline(observations)
	rows := make([]table.Row, 0, len(sampled))
	for _, obs := range sampled {
		row := table.Row{digest.FormatClock(obs.Timestamp)}
		for _, name := range timelineColumns {
			row = append(row, percent(obs.Get(name), 0))
		}
		rows = append(rows, row)
	}
	return rows
}

func newTable(header table.Row, rows []table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	configs := make([]table.ColumnConfig, 0, len(header))
	for i := range header {
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func percent(v float64, decimals int) string {
	return strconv.FormatFloat(v*100, 'f', decimals, 64) + "%"
}

func bullets(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = "- " + line
	}
	return out
}

func section(b *strings.Builder, heading, body string) {
	b.WriteString("\n" + heading + "\n")
	b.WriteString(strings.Repeat("-", len(heading)) + "\n")
	b.WriteString(body + "\n")
}

func mdSection(b *strings.Builder, heading, body string) {
	b.WriteString("\n## " + heading + "\n\n")
	b.WriteString(body + "\n")
}
