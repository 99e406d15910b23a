// Package journal runs a submitted entry through extraction and persistence.
package journal

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/models"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateExtracting
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateExtracting:
		return "extracting"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var transitions = map[State][]State{
	StateIdle:       {StateSubmitting},
	StateSubmitting: {StateExtracting, StateFailed},
	StateExtracting: {StatePersisting, StateFailed},
	StatePersisting: {StateDone, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Extractor interface {
	Extract(ctx context.Context, text string, ref time.Time) (models.Extraction, error)
}

// Gateway is the subset of the store the pipeline writes through.
type Gateway interface {
	InsertJournalEntry(ctx context.Context, userID, content string) (models.JournalEntry, error)
	InsertTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error)
	InsertEvents(ctx context.Context, events []models.CalendarEvent) ([]models.CalendarEvent, error)
	InsertNotes(ctx context.Context, notes []models.Note) ([]models.Note, error)
	InsertHealthMentions(ctx context.Context, mentions []models.HealthMention) ([]models.HealthMention, error)
}

type Notifier interface {
	Notify(userID string)
}

// Observer sees every state change of a submission.
type Observer func(userID string, from, to State)

type Result struct {
	JournalEntryID string                   `json:"journal_entry_id"`
	Extracted      models.Extraction        `json:"extracted"`
	Warnings       []models.CategoryFailure `json:"warnings"`
}

type Pipeline struct {
	extractor Extractor
	gateway   Gateway
	notifier  Notifier
	recorder  *analytics.Recorder
	observer  Observer
	now       func() time.Time
}

type Option func(*Pipeline)

func WithNotifier(n Notifier) Option { return func(p *Pipeline) { p.notifier = n } }
func WithRecorder(r *analytics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func New(ex Extractor, gw Gateway, opts ...Option) *Pipeline {
	p := &Pipeline{extractor: ex, gateway: gw, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

type run struct {
	p      *Pipeline
	userID string
	state  State
}

func (r *run) to(next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("journal: illegal transition %s -> %s", r.state, next))
	}
	log.Printf("[INFO] journal: user=%s %s -> %s", r.userID, r.state, next)
	if r.p.observer != nil {
		r.p.observer(r.userID, r.state, next)
	}
	r.state = next
}

// Submit extracts and stores one journal entry. Extraction errors abort
// before anything is written. Once the entry is stored the submission
// succeeds; categories that fail to insert come back as warnings.
func (p *Pipeline) Submit(ctx context.Context, userID, content string) (Result, error) {
	r := &run{p: p, userID: userID, state: StateIdle}
	r.to(StateSubmitting)

	if strings.TrimSpace(content) == "" {
		r.to(StateFailed)
		return Result{}, models.ErrEmptyContent
	}

	r.to(StateExtracting)
	extracted, err := p.extractor.Extract(ctx, content, p.now())
	if err != nil {
		r.to(StateFailed)
		return Result{}, fmt.Errorf("extract: %w", err)
	}

	r.to(StatePersisting)
	// the write phase runs to completion even if the caller goes away
	wctx := context.WithoutCancel(ctx)

	entry, err := p.gateway.InsertJournalEntry(wctx, userID, content)
	if err != nil {
		r.to(StateFailed)
		return Result{}, fmt.Errorf("store journal entry: %w", err)
	}

	res := Result{
		JournalEntryID: entry.ID,
		Extracted:      nonNil(extracted),
		Warnings:       p.persistDerived(wctx, userID, entry.ID, extracted),
	}
	if res.Warnings == nil {
		res.Warnings = []models.CategoryFailure{}
	}
	r.to(StateDone)

	if p.notifier != nil {
		p.notifier.Notify(userID)
	}
	env := analytics.EnvelopeFromContext(ctx)
	env.UserID = userID
	p.recorder.Log(wctx, env, analytics.EventJournalSubmitted, map[string]any{
		"tasks":    len(extracted.Tasks),
		"events":   len(extracted.Events),
		"notes":    len(extracted.Notes),
		"health":   len(extracted.Health),
		"warnings": len(res.Warnings),
	}, "")
	return res, nil
}

// nonNil gives every category an empty slice so it encodes as [].
func nonNil(ex models.Extraction) models.Extraction {
	if ex.Tasks == nil {
		ex.Tasks = []models.ExtractedTask{}
	}
	if ex.Events == nil {
		ex.Events = []models.ExtractedEvent{}
	}
	if ex.Notes == nil {
		ex.Notes = []models.ExtractedText{}
	}
	if ex.Health == nil {
		ex.Health = []models.ExtractedText{}
	}
	return ex
}

// persistDerived inserts every non-empty category concurrently. A failing
// category never stops the others.
func (p *Pipeline) persistDerived(ctx context.Context, userID, entryID string, ex models.Extraction) []models.CategoryFailure {
	var (
		mu       sync.Mutex
		failures []models.CategoryFailure
		g        errgroup.Group
	)
	record := func(category string, count int, err error) {
		if err == nil {
			return
		}
		log.Printf("[WARN] journal: entry=%s insert %d %s failed: %v", entryID, count, category, err)
		mu.Lock()
		failures = append(failures, models.CategoryFailure{Category: category, Count: count, Err: err})
		mu.Unlock()
	}
	ref := &entryID

	if n := len(ex.Tasks); n > 0 {
		g.Go(func() error {
			tasks := make([]models.Task, n)
			for i, t := range ex.Tasks {
				tasks[i] = models.Task{UserID: userID, JournalEntryID: ref, Title: t.Title, Priority: t.Priority}
			}
			_, err := p.gateway.InsertTasks(ctx, tasks)
			record("tasks", n, err)
			return nil
		})
	}
	if n := len(ex.Events); n > 0 {
		g.Go(func() error {
			events := make([]models.CalendarEvent, n)
			for i, e := range ex.Events {
				events[i] = models.CalendarEvent{UserID: userID, JournalEntryID: ref, Title: e.Title, EventDate: e.Date, EventTime: e.Time}
			}
			_, err := p.gateway.InsertEvents(ctx, events)
			record("events", n, err)
			return nil
		})
	}
	if n := len(ex.Notes); n > 0 {
		g.Go(func() error {
			notes := make([]models.Note, n)
			for i, t := range ex.Notes {
				notes[i] = models.Note{UserID: userID, JournalEntryID: ref, Content: t.Content}
			}
			_, err := p.gateway.InsertNotes(ctx, notes)
			record("notes", n, err)
			return nil
		})
	}
	if n := len(ex.Health); n > 0 {
		g.Go(func() error {
			health := make([]models.HealthMention, n)
			for i, t := range ex.Health {
				health[i] = models.HealthMention{UserID: userID, JournalEntryID: ref, Content: t.Content}
			}
			_, err := p.gateway.InsertHealthMentions(ctx, health)
			record("health", n, err)
			return nil
		})
	}
	_ = g.Wait()
	return failures
}
