// Package input collects journal text from the terminal. Every source
// yields the same plain content string the journal pipeline accepts.
package input

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"

	"zen-journal-backend/internal/models"
)

var ErrAborted = errors.New("input aborted")

type Source interface {
	Read(ctx context.Context) (string, error)
}

// Text is content passed on the command line.
type Text string

func (t Text) Read(context.Context) (string, error) { return string(t), nil }

type lineReader interface {
	Prompt(prompt string) (string, error)
}

// ReadEntry collects lines until a lone "." or end of input.
func ReadEntry(r lineReader) (string, error) {
	var lines []string
	for {
		prompt := "> "
		if len(lines) == 0 {
			prompt = "journal> "
		}
		line, err := r.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", ErrAborted
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Prompt reads an entry interactively with line editing.
type Prompt struct{}

func (Prompt) Read(context.Context) (string, error) {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)
	return ReadEntry(l)
}

// Dictated records one utterance, stopping when the recognizer finishes.
type Dictated struct {
	D *Dictation
}

func (s Dictated) Read(ctx context.Context) (string, error) {
	if err := s.D.Start(ctx); err != nil {
		return "", err
	}
	return s.D.Stop(ctx)
}

// Message is the user-facing text for an input error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Allow it in your system settings and try again."
	case errors.Is(err, ErrNoSpeech):
		return "No speech was detected. Please try again."
	case errors.Is(err, ErrAborted):
		return "Entry discarded."
	}
	return models.UserMessage(err)
}
