package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"zen-journal-backend/internal/models"
)

// Completer is the chat backend used by the extractor and summarizer.
type Completer interface {
	Complete(ctx context.Context, messages []Message, jsonMode bool) (string, error)
}

// Extractor turns free text into an Extraction bundle.
type Extractor struct {
	backend Completer
}

func NewExtractor(backend Completer) *Extractor {
	return &Extractor{backend: backend}
}

// Extract has no side effects beyond the backend call. An extraction that
// cannot be parsed fails with ErrExtractionMalformed; nothing is substituted.
func (e *Extractor) Extract(ctx context.Context, text string, ref time.Time) (models.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return models.Extraction{}, models.ErrEmptyContent
	}

	out, err := e.backend.Complete(ctx, []Message{
		{Role: "system", Content: extractionSystemPrompt(ref)},
		{Role: "user", Content: text},
	}, true)
	if err != nil {
		return models.Extraction{}, err
	}
	return ParseExtraction(out, ref)
}

var (
	openFenceRe  = regexp.MustCompile("^```[a-zA-Z]*[ \\t]*\\n?")
	closeFenceRe = regexp.MustCompile("\\n?```$")
)

// StripFences removes a leading and a trailing markdown code fence marker.
// Each is stripped on its own, so an unclosed fence still parses.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFenceRe.ReplaceAllString(s, "")
	s = closeFenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type rawExtraction struct {
	Tasks []struct {
		Title    string          `json:"title"`
		Priority json.RawMessage `json:"priority"`
	} `json:"tasks"`
	Events []struct {
		Title string  `json:"title"`
		Date  *string `json:"date"`
		Time  *string `json:"time"`
	} `json:"events"`
	Notes  []models.ExtractedText `json:"notes"`
	Health []models.ExtractedText `json:"health"`
}

// ParseExtraction decodes backend output. Items with no text are dropped,
// priorities are normalized, and event dates and times are validated. An
// event that has a date but no time takes ref's time of day.
func ParseExtraction(out string, ref time.Time) (models.Extraction, error) {
	body := StripFences(out)
	std, err := hujson.Standardize([]byte(body))
	if err != nil {
		return models.Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionMalformed, err)
	}

	if std = bytes.TrimSpace(std); len(std) == 0 || std[0] != '{' {
		return models.Extraction{}, fmt.Errorf("%w: top level is not an object", models.ErrExtractionMalformed)
	}

	var raw rawExtraction
	if err := json.Unmarshal(std, &raw); err != nil {
		return models.Extraction{}, fmt.Errorf("%w: %v", models.ErrExtractionMalformed, err)
	}

	var ex models.Extraction
	for _, t := range raw.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		ex.Tasks = append(ex.Tasks, models.ExtractedTask{Title: title, Priority: parseRawPriority(t.Priority)})
	}

	defaultTime := ref.Format(models.TimeLayout)
	for _, ev := range raw.Events {
		title := strings.TrimSpace(ev.Title)
		if title == "" {
			continue
		}
		item := models.ExtractedEvent{Title: title}
		if ev.Date != nil && models.ValidDate(strings.TrimSpace(*ev.Date)) {
			d := strings.TrimSpace(*ev.Date)
			item.Date = &d
		}
		if ev.Time != nil {
			if tm, ok := models.NormalizeTime(*ev.Time); ok {
				item.Time = &tm
			}
		}
		if item.Date != nil && item.Time == nil {
			tm := defaultTime
			item.Time = &tm
		}
		ex.Events = append(ex.Events, item)
	}

	ex.Notes = keepText(raw.Notes)
	ex.Health = keepText(raw.Health)
	return ex, nil
}

func parseRawPriority(b json.RawMessage) models.Priority {
	var s string
	if len(b) == 0 || json.Unmarshal(b, &s) != nil {
		return models.PriorityMedium
	}
	return models.ParsePriority(s)
}

func keepText(items []models.ExtractedText) []models.ExtractedText {
	var out []models.ExtractedText
	for _, it := range items {
		c := strings.TrimSpace(it.Content)
		if c == "" {
			continue
		}
		out = append(out, models.ExtractedText{Content: c})
	}
	return out
}
