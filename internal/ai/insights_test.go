package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/models"
)

func TestSummarizeParsesBackendOutput(t *testing.T) {
	backend := &stubCompleter{out: "```json\n" + `{"mood":"Positive","personality":"Upbeat.","motivation":"Go on.","suggestions":["Sleep more"]}` + "\n```"}

	sum, err := NewSummarizer(backend).Summarize(context.Background(), InsightsInput{RecentEntries: []string{"good day"}})
	require.NoError(t, err)
	assert.False(t, sum.Fallback)
	assert.Equal(t, "positive", sum.Mood)
	assert.Equal(t, []string{"Sleep more"}, sum.Suggestions)
}

func TestSummarizeFallsBackOnMalformedOutput(t *testing.T) {
	backend := &stubCompleter{out: "I think you are doing great!"}

	sum, err := NewSummarizer(backend).Summarize(context.Background(), InsightsInput{})
	require.NoError(t, err)
	assert.Equal(t, FallbackSummary(), sum)
	assert.True(t, sum.Fallback)
}

func TestSummarizeReturnsTransportErrorWithFallback(t *testing.T) {
	backend := &stubCompleter{err: models.ErrUnknownBackend}

	sum, err := NewSummarizer(backend).Summarize(context.Background(), InsightsInput{})
	assert.ErrorIs(t, err, models.ErrUnknownBackend)
	assert.Equal(t, "neutral", sum.Mood)
}

func TestSummarizeCapsRecentEntries(t *testing.T) {
	backend := &stubCompleter{out: `{}`}
	entries := make([]string, 15)
	for i := range entries {
		entries[i] = "entry"
	}

	_, err := NewSummarizer(backend).Summarize(context.Background(), InsightsInput{RecentEntries: entries})
	require.NoError(t, err)
	assert.Equal(t, RecentEntryLimit, strings.Count(backend.last[1].Content, "entry"))
}

func TestBuildInsightsPromptEmptyInput(t *testing.T) {
	p := BuildInsightsPrompt(InsightsInput{})
	assert.Contains(t, p, "No entries yet")
	assert.Contains(t, p, "Tasks Status: No tasks")
	assert.Contains(t, p, "Health Mentions: No health data")

	p = BuildInsightsPrompt(InsightsInput{CompletedTasks: 2, TotalTasks: 5, HealthMentions: []string{"ran", "slept"}})
	assert.Contains(t, p, "2 completed out of 5 tasks")
	assert.Contains(t, p, "ran, slept")
}
