package ai

import (
	"fmt"
	"time"
)

// extractionSystemPrompt anchors relative dates on ref.
func extractionSystemPrompt(ref time.Time) string {
	date := ref.Format("2006-01-02")
	clock := ref.Format("15:04")
	tomorrow := ref.AddDate(0, 0, 1).Format("2006-01-02")
	long := ref.Format("Monday, January 2, 2006 at 15:04")

	return fmt.Sprintf(`You are a smart journal assistant that analyzes daily journal entries and extracts actionable information.

IMPORTANT: The current date and time is %s (%s at %s).
Use this as the reference point for all relative dates and times mentioned in the journal entry.

Extract the following from the journal entry:
1. Tasks/To-dos (things to do, goals, intentions)
2. Calendar Events (specific dates, times, meetings, appointments)
3. Important Notes (insights, reflections, important information)
4. Health Mentions (exercise, diet, sleep, mood, symptoms, wellness activities)

Return ONLY one JSON object with these exact keys:
{
  "tasks": [{"title": "task description", "priority": "low|medium|high"}],
  "events": [{"title": "event name", "date": "YYYY-MM-DD", "time": "HH:MM"}],
  "notes": [{"content": "note content"}],
  "health": [{"content": "health mention"}]
}

Guidelines:
- Tasks: action items, todos, goals. Set priority from urgency and importance.
- Events: include date and time when mentioned. Convert relative dates (today, tomorrow, next week) to actual dates based on %s. If no time is mentioned, use %s.
- Notes: key insights, reflections or information worth remembering.
- Health: physical or mental health, exercise, diet, sleep, mood.
- If a category has no items, return an empty array. Never invent items.
- "tomorrow" means %s.
`, long, date, clock, date, clock, tomorrow)
}

const insightsSystemPrompt = `You are an insightful journal analyst. Provide thoughtful, encouraging analysis in valid JSON format only.`
