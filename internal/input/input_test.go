package input

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/models"
)

type scripted struct {
	lines []string
	end   error
}

func (s *scripted) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", s.end
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}

func TestReadEntry(t *testing.T) {
	got, err := ReadEntry(&scripted{lines: []string{"buy milk tomorrow", "dentist at 3pm", ".", "ignored"}})
	require.NoError(t, err)
	assert.Equal(t, "buy milk tomorrow\ndentist at 3pm", got)

	got, err = ReadEntry(&scripted{lines: []string{"  slept badly  "}, end: io.EOF})
	require.NoError(t, err)
	assert.Equal(t, "slept badly", got)

	_, err = ReadEntry(&scripted{lines: []string{"half"}, end: liner.ErrPromptAborted})
	assert.ErrorIs(t, err, ErrAborted)
}

type fakeRecognizer struct {
	text  string
	err   error
	block bool
}

func (f fakeRecognizer) Listen(ctx context.Context) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func TestDictationStates(t *testing.T) {
	ctx := context.Background()
	d := NewDictation(fakeRecognizer{text: " call mom \n"})
	assert.Equal(t, DictationIdle, d.State())

	_, err := d.Stop(ctx)
	assert.ErrorIs(t, err, ErrNotListening)

	require.NoError(t, d.Start(ctx))
	assert.Equal(t, DictationListening, d.State())
	assert.ErrorIs(t, d.Start(ctx), ErrAlreadyListening)

	text, err := d.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "call mom", text)
	assert.Equal(t, DictationStopped, d.State())

	require.NoError(t, d.Start(ctx), "a stopped dictation restarts")
	_, err = d.Stop(ctx)
	assert.NoError(t, err)
}

func TestDictationErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Dictated{D: NewDictation(fakeRecognizer{text: "   "})}.Read(ctx)
	assert.ErrorIs(t, err, ErrNoSpeech)

	_, err = Dictated{D: NewDictation(fakeRecognizer{err: ErrPermissionDenied})}.Read(ctx)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, Message(err), "Microphone access")

	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = Dictated{D: NewDictation(fakeRecognizer{block: true})}.Read(tctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCommandRecognizer(t *testing.T) {
	_, err := CommandRecognizer{}.Listen(context.Background())
	assert.Error(t, err)

	_, err = CommandRecognizer{Command: "/nonexistent/stt-binary"}.Listen(context.Background())
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "No speech was detected. Please try again.", Message(ErrNoSpeech))
	assert.Equal(t, models.UserMessage(models.ErrEmptyContent), Message(models.ErrEmptyContent))
}
