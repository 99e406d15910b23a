package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrNotListening     = errors.New("dictation is not listening")
	ErrAlreadyListening = errors.New("dictation is already listening")
)

type DictationState int

const (
	DictationIdle DictationState = iota
	DictationListening
	DictationStopped
)

func (s DictationState) String() string {
	switch s {
	case DictationIdle:
		return "idle"
	case DictationListening:
		return "listening"
	case DictationStopped:
		return "stopped"
	}
	return fmt.Sprintf("DictationState(%d)", int(s))
}

// Recognizer captures one utterance and returns its transcript. It returns
// when the speaker stops or ctx is cancelled.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

type result struct {
	text string
	err  error
}

// Dictation drives a Recognizer through Idle -> Listening -> Stopped. A
// stopped dictation can be started again.
type Dictation struct {
	rec Recognizer

	mu     sync.Mutex
	state  DictationState
	cancel context.CancelFunc
	done   chan result
}

func NewDictation(rec Recognizer) *Dictation {
	return &Dictation{rec: rec}
}

func (d *Dictation) State() DictationState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dictation) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DictationListening {
		return ErrAlreadyListening
	}

	lctx, cancel := context.WithCancel(ctx)
	done := make(chan result, 1)
	go func() {
		text, err := d.rec.Listen(lctx)
		done <- result{text: text, err: err}
	}()
	d.state, d.cancel, d.done = DictationListening, cancel, done
	return nil
}

// Stop waits for the transcript. Cancelling ctx abandons the capture.
func (d *Dictation) Stop(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.state != DictationListening {
		d.mu.Unlock()
		return "", ErrNotListening
	}
	cancel, done := d.cancel, d.done
	d.state = DictationStopped
	d.mu.Unlock()
	defer cancel()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		cancel()
		return "", ctx.Err()
	}
	if res.err != nil {
		return "", res.err
	}
	text := strings.TrimSpace(res.text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// CommandRecognizer runs an external speech-to-text program that prints
// the transcript on stdout.
type CommandRecognizer struct {
	Command string
}

func (c CommandRecognizer) Listen(ctx context.Context) (string, error) {
	args := strings.Fields(c.Command)
	if len(args) == 0 {
		return "", errors.New("no dictation command configured")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, os.ErrPermission) || strings.Contains(strings.ToLower(stderr.String()), "permission denied") {
			return "", ErrPermissionDenied
		}
		return "", fmt.Errorf("dictation command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
