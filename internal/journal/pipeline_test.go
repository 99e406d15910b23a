package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/ai"
	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/db"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/store"
)

type fakeExtractor struct {
	out   models.Extraction
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string, time.Time) (models.Extraction, error) {
	f.calls++
	return f.out, f.err
}

type countingNotifier struct{ users []string }

func (n *countingNotifier) Notify(userID string) { n.users = append(n.users, userID) }

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Connect(db.DriverSQLite, filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	return d
}

func TestSubmitKeepsEntryWhenOneCategoryFails(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	st := store.New(d)
	rec := analytics.NewRecorder(d)
	notifier := &countingNotifier{}

	// "urgent" bypasses normalization and is rejected by the schema
	ex := &fakeExtractor{out: models.Extraction{
		Tasks: []models.ExtractedTask{
			{Title: "buy milk", Priority: "urgent"},
			{Title: "call mom", Priority: "urgent"},
		},
		Notes: []models.ExtractedText{{Content: "the sunrise was lovely"}},
	}}
	p := New(ex, st, WithNotifier(notifier), WithRecorder(rec))

	res, err := p.Submit(ctx, "alice", "buy milk, call mom, lovely sunrise")
	require.NoError(t, err)
	require.NotEmpty(t, res.JournalEntryID)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "tasks", res.Warnings[0].Category)
	assert.Equal(t, 2, res.Warnings[0].Count)
	assert.True(t, errors.Is(res.Warnings[0], models.ErrPartialInsertFailure))

	tasks, err := st.ListTasks(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	notes, err := st.ListNotes(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, res.JournalEntryID, *notes[0].JournalEntryID)

	entries, err := st.ListJournalEntries(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, []string{"alice"}, notifier.users)
	n, err := rec.Count(ctx, "alice", analytics.EventJournalSubmitted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmitMalformedExtractionWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := store.New(newTestDB(t))
	backend := stubCompleter("```json\n{not valid}\n```")

	var states []State
	p := New(ai.NewExtractor(backend), st, WithObserver(func(_ string, _, to State) {
		states = append(states, to)
	}))

	_, err := p.Submit(ctx, "alice", "went for a run")
	assert.ErrorIs(t, err, models.ErrExtractionMalformed)
	assert.Equal(t, []State{StateSubmitting, StateExtracting, StateFailed}, states)

	entries, err := st.ListJournalEntries(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitRejectsBlankContentWithoutExtracting(t *testing.T) {
	ex := &fakeExtractor{}
	p := New(ex, store.New(newTestDB(t)))

	_, err := p.Submit(context.Background(), "alice", " \n\t ")
	assert.ErrorIs(t, err, models.ErrEmptyContent)
	assert.Zero(t, ex.calls)
}

func TestSubmitPropagatesRateLimit(t *testing.T) {
	ctx := context.Background()
	st := store.New(newTestDB(t))
	p := New(&fakeExtractor{err: models.ErrRateLimited}, st)

	_, err := p.Submit(ctx, "alice", "hello")
	assert.ErrorIs(t, err, models.ErrRateLimited)

	entries, err := st.ListJournalEntries(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitMissingCategoriesCreateNothing(t *testing.T) {
	ctx := context.Background()
	st := store.New(newTestDB(t))
	var states []State
	p := New(&fakeExtractor{out: models.Extraction{
		Health: []models.ExtractedText{{Content: "slept 8 hours"}},
		Events: []models.ExtractedEvent{{Title: "dentist", Date: strp("2025-03-10"), Time: strp("14:00")}},
	}}, st, WithObserver(func(_ string, _, to State) { states = append(states, to) }))

	res, err := p.Submit(ctx, "alice", "slept 8 hours, dentist tomorrow at 2")
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []State{StateSubmitting, StateExtracting, StatePersisting, StateDone}, states)

	tasks, err := st.ListTasks(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	notes, err := st.ListNotes(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, notes)

	health, err := st.ListHealthMentions(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, health, 1)
	events, err := st.ListEvents(ctx, "alice", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-03-10", *events[0].EventDate)
	assert.Equal(t, "14:00", *events[0].EventTime)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StateSubmitting))
	assert.True(t, canTransition(StateExtracting, StateFailed))
	assert.False(t, canTransition(StateDone, StateFailed))
	assert.False(t, canTransition(StateIdle, StateDone))
	assert.Equal(t, "persisting", StatePersisting.String())
}

type stubCompleter string

func (s stubCompleter) Complete(context.Context, []ai.Message, bool) (string, error) {
	return string(s), nil
}

func strp(s string) *string { return &s }
