// Package views keeps per-user list caches in step with the store. Every
// mutation is followed by a full re-fetch; nothing is applied optimistically.
package views

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/store"
)

var (
	ErrNoNeighbour   = errors.New("no neighbour to swap with")
	ErrNotOrderable  = errors.New("list cannot be reordered manually")
	ErrNotEditable   = errors.New("list items cannot be edited")
	ErrNotToggleable = errors.New("list items have no completion flag")
)

// Ops are the store calls a view needs. Swap is nil for lists whose order
// is not manual, Toggle for lists without a completion flag. Edit replaces
// the title or the content, whichever the record carries.
type Ops[T Record] struct {
	List   func(ctx context.Context, userID string) ([]T, error)
	Delete func(ctx context.Context, userID, id string) error
	Swap   func(ctx context.Context, userID, idA, idB string) error
	Edit   func(ctx context.Context, userID, id, text string) error
	Toggle func(ctx context.Context, userID, id string) error
}

// View owns the full list for the session's user and the filtered list
// derived from it.
type View[T Record] struct {
	name    string
	ops     Ops[T]
	session *auth.Session
	now     func() time.Time

	mu       sync.RWMutex
	all      []T
	filtered []T
	filter   Filter
}

func New[T Record](name string, ops Ops[T], session *auth.Session) *View[T] {
	return &View[T]{name: name, ops: ops, session: session, now: time.Now}
}

func (v *View[T]) Name() string { return v.name }

// Refresh re-fetches the whole list for the current user.
func (v *View[T]) Refresh(ctx context.Context) error {
	uid, err := v.session.UserID()
	if err != nil {
		v.Clear()
		return err
	}
	items, err := v.ops.List(ctx, uid)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.all = items
	v.filtered = Apply(items, v.filter, v.now())
	v.mu.Unlock()
	return nil
}

func (v *View[T]) Clear() {
	v.mu.Lock()
	v.all, v.filtered = nil, nil
	v.mu.Unlock()
}

// SetFilter re-derives the filtered list without touching the store.
func (v *View[T]) SetFilter(f Filter) {
	v.mu.Lock()
	v.filter = f
	v.filtered = Apply(v.all, f, v.now())
	v.mu.Unlock()
}

// Items is the filtered list in display order.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.filtered...)
}

func (v *View[T]) All() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]T(nil), v.all...)
}

// Mutate runs fn for the current user and then refreshes. A failed
// mutation leaves the cached lists unchanged.
func (v *View[T]) Mutate(ctx context.Context, fn func(ctx context.Context, userID string) error) error {
	uid, err := v.session.UserID()
	if err != nil {
		return err
	}
	if err := fn(ctx, uid); err != nil {
		log.Printf("[WARN] %s: mutation failed: %v", v.name, err)
		return err
	}
	return v.Refresh(ctx)
}

func (v *View[T]) Delete(ctx context.Context, id string) error {
	return v.Mutate(ctx, func(ctx context.Context, uid string) error {
		return v.ops.Delete(ctx, uid, id)
	})
}

// Edit replaces the title or content of the item with the given id.
func (v *View[T]) Edit(ctx context.Context, id, text string) error {
	if v.ops.Edit == nil {
		return ErrNotEditable
	}
	return v.Mutate(ctx, func(ctx context.Context, uid string) error {
		return v.ops.Edit(ctx, uid, id, text)
	})
}

// Toggle flips the completion flag of the item with the given id.
func (v *View[T]) Toggle(ctx context.Context, id string) error {
	if v.ops.Toggle == nil {
		return ErrNotToggleable
	}
	return v.Mutate(ctx, func(ctx context.Context, uid string) error {
		return v.ops.Toggle(ctx, uid, id)
	})
}

// MoveUp swaps the item at displayed index i with the one above it.
func (v *View[T]) MoveUp(ctx context.Context, i int) error {
	return v.move(ctx, i, i-1)
}

// MoveDown swaps the item at displayed index i with the one below it.
func (v *View[T]) MoveDown(ctx context.Context, i int) error {
	return v.move(ctx, i, i+1)
}

func (v *View[T]) move(ctx context.Context, i, j int) error {
	if v.ops.Swap == nil {
		return ErrNotOrderable
	}
	items := v.Items()
	if i < 0 || i >= len(items) || j < 0 || j >= len(items) {
		return ErrNoNeighbour
	}
	a, b := items[i].RecordID(), items[j].RecordID()
	return v.Mutate(ctx, func(ctx context.Context, uid string) error {
		return v.ops.Swap(ctx, uid, a, b)
	})
}

// Watch keeps the view current: it refreshes on a refresh signal for the
// session's user and on sign-in, and clears on sign-out. The returned func
// stops watching.
func (v *View[T]) Watch(sig *Signal) (cancel func()) {
	refresh := func() {
		if err := v.Refresh(context.Background()); err != nil && !errors.Is(err, auth.ErrNoSession) {
			log.Printf("[WARN] %s: refresh failed: %v", v.name, err)
		}
	}

	stopSignal := sig.Subscribe(func(userID string) {
		if uid, err := v.session.UserID(); err == nil && uid == userID {
			refresh()
		}
	})
	stopSession := v.session.Subscribe(func(userID string) {
		if userID == "" {
			v.Clear()
			return
		}
		refresh()
	})
	return func() {
		stopSignal()
		stopSession()
	}
}

// Constructors for the five lists.

func Entries(st *store.Store, s *auth.Session) *View[models.JournalEntry] {
	return New("entries", Ops[models.JournalEntry]{
		List: func(ctx context.Context, uid string) ([]models.JournalEntry, error) {
			return st.ListJournalEntries(ctx, uid, store.ListOptions{})
		},
		Delete: st.DeleteJournalEntry,
	}, s)
}

func Tasks(st *store.Store, s *auth.Session) *View[models.Task] {
	return New("tasks", Ops[models.Task]{
		List: func(ctx context.Context, uid string) ([]models.Task, error) {
			return st.ListTasks(ctx, uid, store.ListOptions{})
		},
		Delete: st.DeleteTask,
		Swap:   swapper(st, store.TableTasks),
		Edit: func(ctx context.Context, uid, id, text string) error {
			return st.UpdateTask(ctx, uid, id, models.TaskPatch{Title: &text})
		},
		Toggle: func(ctx context.Context, uid, id string) error {
			_, err := st.ToggleTask(ctx, uid, id)
			return err
		},
	}, s)
}

func Events(st *store.Store, s *auth.Session) *View[models.CalendarEvent] {
	return New("events", Ops[models.CalendarEvent]{
		List: func(ctx context.Context, uid string) ([]models.CalendarEvent, error) {
			return st.ListEvents(ctx, uid, store.ListOptions{})
		},
		Delete: st.DeleteEvent,
		Edit: func(ctx context.Context, uid, id, text string) error {
			return st.UpdateEvent(ctx, uid, id, models.EventPatch{Title: &text})
		},
	}, s)
}

func Notes(st *store.Store, s *auth.Session) *View[models.Note] {
	return New("notes", Ops[models.Note]{
		List: func(ctx context.Context, uid string) ([]models.Note, error) {
			return st.ListNotes(ctx, uid, store.ListOptions{})
		},
		Delete: st.DeleteNote,
		Swap:   swapper(st, store.TableNotes),
		Edit:   contentEditor(st.UpdateNote),
	}, s)
}

func Health(st *store.Store, s *auth.Session) *View[models.HealthMention] {
	return New("health", Ops[models.HealthMention]{
		List: func(ctx context.Context, uid string) ([]models.HealthMention, error) {
			return st.ListHealthMentions(ctx, uid, store.ListOptions{})
		},
		Delete: st.DeleteHealthMention,
		Swap:   swapper(st, store.TableHealthMentions),
		Edit:   contentEditor(st.UpdateHealthMention),
	}, s)
}

func swapper(st *store.Store, table store.Table) func(ctx context.Context, uid, a, b string) error {
	return func(ctx context.Context, uid, a, b string) error {
		return st.SwapCreatedAt(ctx, table, uid, a, b)
	}
}

func contentEditor(update func(ctx context.Context, uid, id string, patch models.ContentPatch) error) func(ctx context.Context, uid, id, text string) error {
	return func(ctx context.Context, uid, id, text string) error {
		return update(ctx, uid, id, models.ContentPatch{Content: &text})
	}
}
