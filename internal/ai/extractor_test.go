package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/models"
)

type stubCompleter struct {
	out   string
	err   error
	calls int
	last  []Message
}

func (s *stubCompleter) Complete(_ context.Context, messages []Message, _ bool) (string, error) {
	s.calls++
	s.last = messages
	return s.out, s.err
}

var ref = time.Date(2025, 3, 9, 16, 45, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func TestExtractMalformedFencedOutput(t *testing.T) {
	backend := &stubCompleter{out: "```json\n{not valid}\n```"}
	_, err := NewExtractor(backend).Extract(context.Background(), "went running", ref)
	assert.ErrorIs(t, err, models.ErrExtractionMalformed)
	assert.Equal(t, 1, backend.calls)
}

func TestExtractEmptyTextSkipsBackend(t *testing.T) {
	backend := &stubCompleter{}
	_, err := NewExtractor(backend).Extract(context.Background(), "   ", ref)
	assert.ErrorIs(t, err, models.ErrEmptyContent)
	assert.Zero(t, backend.calls)
}

func TestExtractPropagatesBackendErrors(t *testing.T) {
	backend := &stubCompleter{err: models.ErrRateLimited}
	_, err := NewExtractor(backend).Extract(context.Background(), "hello", ref)
	assert.True(t, errors.Is(err, models.ErrRateLimited))
}

func TestExtractPromptAnchorsReferenceTime(t *testing.T) {
	backend := &stubCompleter{out: `{}`}
	_, err := NewExtractor(backend).Extract(context.Background(), "dentist tomorrow", ref)
	require.NoError(t, err)
	require.Len(t, backend.last, 2)
	assert.Contains(t, backend.last[0].Content, "2025-03-09 at 16:45")
	assert.Contains(t, backend.last[0].Content, `"tomorrow" means 2025-03-10`)
	assert.Equal(t, "dentist tomorrow", backend.last[1].Content)
}

func TestParseExtractionNormalizes(t *testing.T) {
	out := "```json\n" + `{
		"tasks": [
			{"title": "buy milk", "priority": "HIGH"},
			{"title": "call mom", "priority": "whenever"},
			{"title": "stretch"},
			{"title": "   "},
		],
		"events": [
			{"title": "dentist", "date": "2025-03-10", "time": "14:00:00"},
			{"title": "lunch", "date": "2025-03-11"},
			{"title": "someday", "date": "next week", "time": "9"},
		],
		// models sometimes comment their output
		"notes": [{"content": " sleep matters "}, {"content": ""}],
	}` + "\n```"

	got, err := ParseExtraction(out, ref)
	require.NoError(t, err)

	want := models.Extraction{
		Tasks: []models.ExtractedTask{
			{Title: "buy milk", Priority: models.PriorityHigh},
			{Title: "call mom", Priority: models.PriorityMedium},
			{Title: "stretch", Priority: models.PriorityMedium},
		},
		Events: []models.ExtractedEvent{
			{Title: "dentist", Date: strp("2025-03-10"), Time: strp("14:00")},
			{Title: "lunch", Date: strp("2025-03-11"), Time: strp("16:45")},
			{Title: "someday"},
		},
		Notes: []models.ExtractedText{{Content: "sleep matters"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extraction mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExtractionMissingCategoriesStayEmpty(t *testing.T) {
	got, err := ParseExtraction(`{"health": [{"content": "ran 5k"}]}`, ref)
	require.NoError(t, err)
	assert.Empty(t, got.Tasks)
	assert.Empty(t, got.Events)
	assert.Empty(t, got.Notes)
	require.Len(t, got.Health, 1)
	assert.Equal(t, "ran 5k", got.Health[0].Content)
}

func TestParseExtractionRejectsNonObject(t *testing.T) {
	_, err := ParseExtraction(`["tasks"]`, ref)
	assert.ErrorIs(t, err, models.ErrExtractionMalformed)

	_, err = ParseExtraction(``, ref)
	assert.ErrorIs(t, err, models.ErrExtractionMalformed)

	for _, out := range []string{`null`, `42`, `"tasks"`, "```json\nnull\n```"} {
		_, err = ParseExtraction(out, ref)
		assert.ErrorIs(t, err, models.ErrExtractionMalformed, out)
	}
}

func TestParseExtractionUnclosedFence(t *testing.T) {
	got, err := ParseExtraction("```json\n{\"tasks\": [{\"title\": \"call mom\"}]}", ref)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, "call mom", got.Tasks[0].Title)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}\n"))
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}"))
	assert.Equal(t, `{"a":1}`, StripFences("{\"a\":1}\n```"))
}
