package ai

import (
	"fmt"
	"strings"
)

// BuildInsightsPrompt renders the user message for the summarizer.
func BuildInsightsPrompt(in InsightsInput) string {
	var b strings.Builder

	b.WriteString("Analyze the following journal entries and provide insights:\n\n")
	b.WriteString("Journal Entries:\n")
	if len(in.RecentEntries) == 0 {
		b.WriteString("No entries yet")
	} else {
		b.WriteString(strings.Join(in.RecentEntries, "\n\n"))
	}
	b.WriteString("\n\n")

	b.WriteString("Tasks Status: ")
	if in.TotalTasks == 0 {
		b.WriteString("No tasks")
	} else {
		fmt.Fprintf(&b, "%d completed out of %d tasks", in.CompletedTasks, in.TotalTasks)
	}
	b.WriteString("\n")

	b.WriteString("Health Mentions: ")
	if len(in.HealthMentions) == 0 {
		b.WriteString("No health data")
	} else {
		b.WriteString(strings.Join(in.HealthMentions, ", "))
	}
	b.WriteString("\n\n")

	b.WriteString(`Please provide:
1. Overall mood trend (positive, neutral, or negative)
2. A short, fun personality snapshot (2-3 sentences max, keep it light and engaging)
3. A motivational insight or quote tailored to this person
4. 2-3 concise growth suggestions (one sentence each, direct and actionable)

Format your response as JSON with these keys: mood, personality, motivation, suggestions (array)`)

	return b.String()
}
