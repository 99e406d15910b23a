package entities

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"zen-journal-backend/internal/analytics"
	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/respond"
	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

// CalendarPusher mirrors local event writes to an external calendar. Its
// result is reported next to the local write and never replaces it.
type CalendarPusher interface {
	PushCreate(ctx context.Context, userID string, ev models.CalendarEvent) models.SyncReport
	PushDelete(ctx context.Context, userID string, ev models.CalendarEvent) models.SyncReport
}

type Notifier interface {
	Notify(userID string)
}

type Toggler interface {
	Toggle(ctx context.Context, userID, id string) (models.Task, error)
}

type Handlers struct {
	Registry *Registry
	Calendar CalendarPusher
	Notifier Notifier
	Recorder *analytics.Recorder
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownType):
		respond.JSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "kind": "UnknownEntityType"})
	case errors.Is(err, ErrUnsupported):
		respond.JSON(w, http.StatusMethodNotAllowed, map[string]string{"error": err.Error(), "kind": "UnsupportedOperation"})
	default:
		respond.Error(w, err)
	}
}

func (h Handlers) changed(uid string) {
	if h.Notifier != nil {
		h.Notifier.Notify(uid)
	}
}

// resolve reads the owner and the {type} path segment.
func (h Handlers) resolve(w http.ResponseWriter, r *http.Request) (string, Kind, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", nil, false
	}
	k, err := h.Registry.Resolve(r.PathValue("type"))
	if err != nil {
		writeErr(w, err)
		return "", nil, false
	}
	return uid, k, true
}

func readBody(r *http.Request) (json.RawMessage, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		b = []byte("{}")
	}
	return b, nil
}

// ParseQuery reads list parameters: q, status, priority, since, order, limit.
func ParseQuery(r *http.Request) Query {
	v := r.URL.Query()
	bucket := v.Get("since")
	if bucket == "" {
		bucket = v.Get("bucket")
	}
	q := Query{
		Filter: views.Filter{
			Query:    v.Get("q"),
			Status:   views.ParseStatus(v.Get("status")),
			Priority: v.Get("priority"),
			Bucket:   views.ParseBucket(bucket),
		},
		Order: store.ParseOrder(v.Get("order")),
	}
	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	return q
}

// List serves GET /entities/{type}.
func (h Handlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, k, ok := h.resolve(w, r)
		if !ok {
			return
		}
		l, err := AsLister(k)
		if err != nil {
			writeErr(w, err)
			return
		}
		items, err := l.List(r.Context(), uid, ParseQuery(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		respond.JSON(w, http.StatusOK, items)
	}
}

// Create serves POST /entities/{type}. Calendar events accept "sync": true
// to push the new event to the connected calendar.
func (h Handlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, k, ok := h.resolve(w, r)
		if !ok {
			return
		}
		c, err := AsCreator(k)
		if err != nil {
			writeErr(w, err)
			return
		}
		body, err := readBody(r)
		if err != nil {
			respond.BadRequest(w, "unreadable body")
			return
		}

		rec, err := c.Create(r.Context(), uid, body)
		if err != nil {
			writeErr(w, err)
			return
		}
		h.changed(uid)
		h.Recorder.Log(r.Context(), analytics.FromRequest(r), analytics.EventEntityCreated, map[string]any{"type": k.Name()}, analytics.SourceEventKeyFromRequest(r))

		resp := map[string]any{"record": rec}
		if ev, isEvent := rec.(models.CalendarEvent); isEvent {
			var opts struct {
				Sync bool `json:"sync"`
			}
			_ = json.Unmarshal(body, &opts)
			report := models.SyncReport{Status: models.SyncSkipped}
			if opts.Sync && h.Calendar != nil {
				report = h.Calendar.PushCreate(r.Context(), uid, ev)
				if report.Status == models.SyncSynced {
					ext := report.ExternalID
					ev.ExternalCalendarID, ev.ExternalSyncEnabled = &ext, true
					resp["record"] = ev
					h.changed(uid)
				}
			}
			resp["sync"] = report
		}
		respond.JSON(w, http.StatusCreated, resp)
	}
}

// Update serves PATCH /entities/{type}/{id}.
func (h Handlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, k, ok := h.resolve(w, r)
		if !ok {
			return
		}
		e, err := AsEditable(k)
		if err != nil {
			writeErr(w, err)
			return
		}
		body, err := readBody(r)
		if err != nil {
			respond.BadRequest(w, "unreadable body")
			return
		}
		if err := e.Update(r.Context(), uid, r.PathValue("id"), body); err != nil {
			writeErr(w, err)
			return
		}
		h.changed(uid)
		respond.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// Delete serves DELETE /entities/{type}/{id}. Deleting a synced calendar
// event also removes it from the external calendar, best effort.
func (h Handlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, k, ok := h.resolve(w, r)
		if !ok {
			return
		}
		d, err := AsDeletable(k)
		if err != nil {
			writeErr(w, err)
			return
		}
		id := r.PathValue("id")

		var synced *models.CalendarEvent
		if ev, isEvents := k.(events); isEvents {
			if got, err := ev.Get(r.Context(), uid, id); err == nil && got.ExternalCalendarID != nil {
				synced = &got
			}
		}

		if err := d.Delete(r.Context(), uid, id); err != nil {
			writeErr(w, err)
			return
		}
		h.changed(uid)

		resp := map[string]any{"ok": true}
		if synced != nil && h.Calendar != nil {
			resp["sync"] = h.Calendar.PushDelete(r.Context(), uid, *synced)
		}
		respond.JSON(w, http.StatusOK, resp)
	}
}

// Reorder serves POST /entities/{type}/reorder with {"id_a", "id_b"}.
func (h Handlers) Reorder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, k, ok := h.resolve(w, r)
		if !ok {
			return
		}
		o, err := AsOrderable(k)
		if err != nil {
			writeErr(w, err)
			return
		}
		var body struct {
			IDA string `json:"id_a"`
			IDB string `json:"id_b"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IDA == "" || body.IDB == "" {
			respond.BadRequest(w, "id_a and id_b are required")
			return
		}
		if err := o.Swap(r.Context(), uid, body.IDA, body.IDB); err != nil {
			writeErr(w, err)
			return
		}
		h.changed(uid)
		h.Recorder.Log(r.Context(), analytics.FromRequest(r), analytics.EventEntityReordered, map[string]any{"type": k.Name()}, "")
		respond.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// Toggle serves POST /tasks/{id}/toggle.
func (h Handlers) Toggle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		k, err := h.Registry.Resolve("tasks")
		if err != nil {
			writeErr(w, err)
			return
		}
		t, ok := k.(Toggler)
		if !ok {
			writeErr(w, unsupported(k, "toggle"))
			return
		}
		task, err := t.Toggle(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		h.changed(uid)
		h.Recorder.Log(r.Context(), analytics.FromRequest(r), analytics.EventTaskToggled, map[string]any{"completed": task.Completed}, "")
		respond.JSON(w, http.StatusOK, task)
	}
}
