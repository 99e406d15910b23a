package ai

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/tailscale/hujson"
)

// RecentEntryLimit is how many of the latest entries feed the summary.
const RecentEntryLimit = 10

type InsightsInput struct {
	RecentEntries  []string
	CompletedTasks int
	TotalTasks     int
	HealthMentions []string
}

type Summary struct {
	Mood        string   `json:"mood"`
	Personality string   `json:"personality"`
	Motivation  string   `json:"motivation"`
	Suggestions []string `json:"suggestions"`

	// Fallback is set when the backend output could not be used.
	Fallback bool `json:"-"`
}

// FallbackSummary is served whenever the backend returns something unusable.
func FallbackSummary() Summary {
	return Summary{
		Mood:        "neutral",
		Personality: "Thoughtful and curious, always exploring new ideas.",
		Motivation:  "Keep moving forward, one day at a time.",
		Suggestions: []string{"Continue journaling regularly", "Set small achievable goals"},
		Fallback:    true,
	}
}

type Summarizer struct {
	backend Completer
}

func NewSummarizer(backend Completer) *Summarizer {
	return &Summarizer{backend: backend}
}

// Summarize never fails on bad output; it returns FallbackSummary instead.
// Transport errors are returned together with the fallback.
func (s *Summarizer) Summarize(ctx context.Context, in InsightsInput) (Summary, error) {
	if len(in.RecentEntries) > RecentEntryLimit {
		in.RecentEntries = in.RecentEntries[:RecentEntryLimit]
	}

	out, err := s.backend.Complete(ctx, []Message{
		{Role: "system", Content: insightsSystemPrompt},
		{Role: "user", Content: BuildInsightsPrompt(in)},
	}, false)
	if err != nil {
		return FallbackSummary(), err
	}

	sum, ok := parseSummary(out)
	if !ok {
		log.Printf("[WARN] insights: unusable summary output, serving fallback")
		return FallbackSummary(), nil
	}
	return sum, nil
}

func parseSummary(out string) (Summary, bool) {
	std, err := hujson.Standardize([]byte(StripFences(out)))
	if err != nil {
		return Summary{}, false
	}
	var sum Summary
	if err := json.Unmarshal(std, &sum); err != nil {
		return Summary{}, false
	}
	sum.Mood = strings.ToLower(strings.TrimSpace(sum.Mood))
	if sum.Mood == "" || strings.TrimSpace(sum.Personality) == "" {
		return Summary{}, false
	}
	if sum.Suggestions == nil {
		sum.Suggestions = []string{}
	}
	return sum, true
}
