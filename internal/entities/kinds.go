package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

func decode(body json.RawMessage, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// list filters the full list, then applies the limit.
func list[T views.Record](items []T, err error, q Query) (any, error) {
	if err != nil {
		return nil, err
	}
	out := views.Apply(items, q.Filter, time.Now())
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// journal_entries: list and delete only.
type journalEntries struct{ st *store.Store }

func (journalEntries) Name() string { return "journal_entries" }

func (k journalEntries) List(ctx context.Context, uid string, q Query) (any, error) {
	items, err := k.st.ListJournalEntries(ctx, uid, store.ListOptions{Order: q.Order})
	return list(items, err, q)
}

func (k journalEntries) Delete(ctx context.Context, uid, id string) error {
	return k.st.DeleteJournalEntry(ctx, uid, id)
}

type tasks struct{ st *store.Store }

func (tasks) Name() string { return "tasks" }

func (k tasks) List(ctx context.Context, uid string, q Query) (any, error) {
	items, err := k.st.ListTasks(ctx, uid, store.ListOptions{Order: q.Order})
	return list(items, err, q)
}

func (k tasks) Create(ctx context.Context, uid string, body json.RawMessage) (any, error) {
	var in struct {
		Title    string          `json:"title"`
		Priority models.Priority `json:"priority"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	out, err := k.st.InsertTasks(ctx, []models.Task{{UserID: uid, Title: in.Title, Priority: in.Priority}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (k tasks) Update(ctx context.Context, uid, id string, body json.RawMessage) error {
	var patch models.TaskPatch
	if err := decode(body, &patch); err != nil {
		return err
	}
	return k.st.UpdateTask(ctx, uid, id, patch)
}

func (k tasks) Delete(ctx context.Context, uid, id string) error {
	return k.st.DeleteTask(ctx, uid, id)
}

func (k tasks) Swap(ctx context.Context, uid, a, b string) error {
	return k.st.SwapCreatedAt(ctx, store.TableTasks, uid, a, b)
}

// Toggle flips completion. Only tasks have it, so it is not a capability.
func (k tasks) Toggle(ctx context.Context, uid, id string) (models.Task, error) {
	return k.st.ToggleTask(ctx, uid, id)
}

// calendar_events are ordered by their date, so they are not Orderable.
type events struct{ st *store.Store }

func (events) Name() string { return "calendar_events" }

func (k events) List(ctx context.Context, uid string, q Query) (any, error) {
	items, err := k.st.ListEvents(ctx, uid, store.ListOptions{Order: q.Order})
	return list(items, err, q)
}

func (k events) Create(ctx context.Context, uid string, body json.RawMessage) (any, error) {
	var in struct {
		Title     string  `json:"title"`
		EventDate *string `json:"event_date"`
		EventTime *string `json:"event_time"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidInput)
	}
	out, err := k.st.InsertEvents(ctx, []models.CalendarEvent{{
		UserID:    uid,
		Title:     in.Title,
		EventDate: emptyToNil(in.EventDate),
		EventTime: emptyToNil(in.EventTime),
	}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Update distinguishes an absent field from an explicit null, which clears it.
func (k events) Update(ctx context.Context, uid, id string, body json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := decode(body, &fields); err != nil {
		return err
	}

	var patch models.EventPatch
	for name, raw := range fields {
		var v *string
		if err := decode(raw, &v); err != nil {
			return err
		}
		v = emptyToNil(v)
		switch name {
		case "title":
			if v == nil {
				return fmt.Errorf("%w: title cannot be empty", models.ErrInvalidInput)
			}
			patch.Title = v
		case "event_date":
			patch.EventDate, patch.ClearDate = v, v == nil
		case "event_time":
			patch.EventTime, patch.ClearTime = v, v == nil
		}
	}
	return k.st.UpdateEvent(ctx, uid, id, patch)
}

func (k events) Delete(ctx context.Context, uid, id string) error {
	return k.st.DeleteEvent(ctx, uid, id)
}

// Get is used by the calendar push around create and delete.
func (k events) Get(ctx context.Context, uid, id string) (models.CalendarEvent, error) {
	return k.st.GetEvent(ctx, uid, id)
}

type notes struct{ st *store.Store }

func (notes) Name() string { return "notes" }

func (k notes) List(ctx context.Context, uid string, q Query) (any, error) {
	items, err := k.st.ListNotes(ctx, uid, store.ListOptions{Order: q.Order})
	return list(items, err, q)
}

func (k notes) Create(ctx context.Context, uid string, body json.RawMessage) (any, error) {
	content, err := decodeContent(body)
	if err != nil {
		return nil, err
	}
	out, err := k.st.InsertNotes(ctx, []models.Note{{UserID: uid, Content: content}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (k notes) Update(ctx context.Context, uid, id string, body json.RawMessage) error {
	var patch models.ContentPatch
	if err := decode(body, &patch); err != nil {
		return err
	}
	return k.st.UpdateNote(ctx, uid, id, patch)
}

func (k notes) Delete(ctx context.Context, uid, id string) error {
	return k.st.DeleteNote(ctx, uid, id)
}

func (k notes) Swap(ctx context.Context, uid, a, b string) error {
	return k.st.SwapCreatedAt(ctx, store.TableNotes, uid, a, b)
}

type health struct{ st *store.Store }

func (health) Name() string { return "health_mentions" }

func (k health) List(ctx context.Context, uid string, q Query) (any, error) {
	items, err := k.st.ListHealthMentions(ctx, uid, store.ListOptions{Order: q.Order})
	return list(items, err, q)
}

func (k health) Create(ctx context.Context, uid string, body json.RawMessage) (any, error) {
	content, err := decodeContent(body)
	if err != nil {
		return nil, err
	}
	out, err := k.st.InsertHealthMentions(ctx, []models.HealthMention{{UserID: uid, Content: content}})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (k health) Update(ctx context.Context, uid, id string, body json.RawMessage) error {
	var patch models.ContentPatch
	if err := decode(body, &patch); err != nil {
		return err
	}
	return k.st.UpdateHealthMention(ctx, uid, id, patch)
}

func (k health) Delete(ctx context.Context, uid, id string) error {
	return k.st.DeleteHealthMention(ctx, uid, id)
}

func (k health) Swap(ctx context.Context, uid, a, b string) error {
	return k.st.SwapCreatedAt(ctx, store.TableHealthMentions, uid, a, b)
}

func decodeContent(body json.RawMessage) (string, error) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decode(body, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("%w: content is required", models.ErrInvalidInput)
	}
	return in.Content, nil
}

func emptyToNil(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}
