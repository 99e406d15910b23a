package models

import (
	"strings"
	"time"
)

// Date and time layouts used for calendar events. Values are stored verbatim.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type JournalEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Task struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	JournalEntryID *string   `json:"journal_entry_id"`
	Title          string    `json:"title"`
	Completed      bool      `json:"completed"`
	Priority       Priority  `json:"priority"`
	CreatedAt      time.Time `json:"created_at"`
}

// TaskPatch carries the mutable task fields. Nil means unchanged.
// created_at is not patchable; only the reorder swap moves it.
type TaskPatch struct {
	Title     *string   `json:"title,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	Priority  *Priority `json:"priority,omitempty"`
}

type CalendarEvent struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	JournalEntryID      *string   `json:"journal_entry_id"`
	Title               string    `json:"title"`
	EventDate           *string   `json:"event_date"`
	EventTime           *string   `json:"event_time"`
	CreatedAt           time.Time `json:"created_at"`
	ExternalCalendarID  *string   `json:"external_calendar_id"`
	ExternalSyncEnabled bool      `json:"external_sync_enabled"`
}

type EventPatch struct {
	Title     *string `json:"title,omitempty"`
	EventDate *string `json:"event_date,omitempty"`
	EventTime *string `json:"event_time,omitempty"`
	// ClearDate and ClearTime null out the field; a patch cannot express
	// "set to null" with a nil pointer.
	ClearDate bool `json:"clear_date,omitempty"`
	ClearTime bool `json:"clear_time,omitempty"`
}

type Note struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	JournalEntryID *string   `json:"journal_entry_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type HealthMention struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	JournalEntryID *string   `json:"journal_entry_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContentPatch is the patch for notes and health mentions.
type ContentPatch struct {
	Content *string `json:"content,omitempty"`
}

// CalendarCredential is never serialized to clients; only Connected is exposed.
type CalendarCredential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
}

func (c CalendarCredential) Expired(now time.Time) bool {
	return !c.TokenExpiry.IsZero() && c.TokenExpiry.Before(now)
}

// Extraction is the typed bundle produced from one journal entry.
type Extraction struct {
	Tasks  []ExtractedTask  `json:"tasks"`
	Events []ExtractedEvent `json:"events"`
	Notes  []ExtractedText  `json:"notes"`
	Health []ExtractedText  `json:"health"`
}

type ExtractedTask struct {
	Title    string   `json:"title"`
	Priority Priority `json:"priority"`
}

type ExtractedEvent struct {
	Title string  `json:"title"`
	Date  *string `json:"date,omitempty"`
	Time  *string `json:"time,omitempty"`
}

type ExtractedText struct {
	Content string `json:"content"`
}

// Empty reports whether no category carries any item.
func (e Extraction) Empty() bool {
	return len(e.Tasks) == 0 && len(e.Events) == 0 && len(e.Notes) == 0 && len(e.Health) == 0
}

// Record accessors shared by list views.

func (e JournalEntry) RecordID() string { return e.ID }
func (e JournalEntry) Created() time.Time { return e.CreatedAt }
func (e JournalEntry) SearchText() string { return e.Content }
func (t Task) RecordID() string { return t.ID }
func (t Task) Created() time.Time { return t.CreatedAt }
func (t Task) SearchText() string { return t.Title }
func (e CalendarEvent) RecordID() string { return e.ID }
func (e CalendarEvent) Created() time.Time { return e.CreatedAt }
func (e CalendarEvent) SearchText() string { return e.Title }
func (n Note) RecordID() string { return n.ID }
func (n Note) Created() time.Time { return n.CreatedAt }
func (n Note) SearchText() string { return n.Content }
func (h HealthMention) RecordID() string { return h.ID }
func (h HealthMention) Created() time.Time { return h.CreatedAt }
func (h HealthMention) SearchText() string { return h.Content }

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeTime accepts HH:MM or HH:MM:SS and returns HH:MM.
func NormalizeTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeLayout, "15:04:05", "3:04 PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), true
		}
	}
	return "", false
}

// Sync statuses reported next to a local calendar event write.
const (
	SyncSynced       = "synced"
	SyncNotConnected = "not_connected"
	SyncFailed       = "failed"
	SyncSkipped      = "skipped"
)

// SyncReport is the outcome of a best-effort external calendar push. It
// travels on its own channel; the local write has already succeeded.
type SyncReport struct {
	Status     string `json:"status"`
	ExternalID string `json:"external_id,omitempty"`
	Message    string `json:"message,omitempty"`
}
