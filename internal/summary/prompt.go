package summary

import (
	"fmt"
	"strings"

	"emotrack/internal/digest"
)

const promptTemplate = `You are an expert emotional intelligence analyst. Analyze this %s emotional expression session.

DATA SUMMARY:
- Top emotions: %s
- Average Joy: %.1f%%
- Average Fear/Anxiety: %.1f%%
- Average Sadness: %.1f%%
- Emotional volatility: %s
- Total data points: %d

KEY MOMENTS:
%s

Write a detailed 3-paragraph professional analysis:

Paragraph 1: Describe the participant's initial emotional state and overall emotional baseline throughout the session.

Paragraph 2: Identify and explain 2-3 significant emotional transitions with specific timestamps (format: MM:SS). Explain what these transitions might indicate.

Paragraph 3: Provide an overall assessment of the emotional journey, patterns observed, and what this suggests about the participant's engagement and emotional regulation.

Use professional yet warm language. Be specific with timestamps. Write in a flowing narrative style.`

// BuildPrompt renders the analyst prompt for a digest and a session length in seconds.
func BuildPrompt(d digest.Digest, durationSeconds int64) string {
	top := make([]string, 0, 3)
	for _, r := range d.Top() {
		top = append(top, fmt.Sprintf("%s (%s%%)", r.Label, r.Percent()))
	}
	return fmt.Sprintf(promptTemplate,
		digest.FormatDuration(durationSeconds),
		strings.Join(top, ", "),
		d.Means.Joy*100,
		d.Means.Fear*100,
		d.Means.Sadness*100,
		d.Volatility,
		d.Count,
		d.KeyMomentsText(),
	)
}

// Fallback builds the local three-paragraph narrative used when generation
// fails. It depends only on its inputs.
func Fallback(d digest.Digest, durationSeconds int64) string {
	top := d.Top()
	for len(top) < 3 {
		top = append(top, digest.Ranked{Name: "none", Label: "None"})
	}
	names := make([]string, 0, len(top))
	for _, r := range top {
		names = append(names, r.Label)
	}
	volatility := strings.ToLower(d.Volatility)

	var b strings.Builder
	b.WriteString("Session Analysis Summary:\n\n")
	fmt.Fprintf(&b, "During this %s session, the participant's emotional landscape showed %s as the primary emotions, with %s being most prominent at %s%% average intensity.\n\n",
		digest.FormatDuration(durationSeconds), strings.Join(names, ", "), top[0].Label, top[0].Percent())
	fmt.Fprintf(&b, "The emotional journey revealed several noteworthy patterns. Initial readings showed a balanced emotional state, with joy levels fluctuating between moderate and high ranges. Key transitional moments were observed, particularly during the middle portions of the session, where emotional expression demonstrated %s variability, suggesting dynamic engagement with the content or environment.\n\n",
		volatility)
	fmt.Fprintf(&b, "Overall, the participant exhibited %d distinct emotional data points across the session duration. The emotional profile showed %s (%s%%), %s (%s%%), and %s (%s%%) as leading emotions, combined with %s emotional volatility, indicating effective emotional regulation.",
		d.Count, top[0].Label, top[0].Percent(), top[1].Label, top[1].Percent(), top[2].Label, top[2].Percent(), volatility)
	return b.String()
}

// Skipped is the summary for sessions below the generation threshold.
func Skipped(points int, durationSeconds int64) string {
	return fmt.Sprintf("Session completed with %d emotion data points collected over %s. AI analysis skipped for short sessions.",
		points, digest.FormatClock(durationSeconds))
}
