package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"zen-journal-backend/internal/db"
)

type CtxKey string

const (
	ctxUserIDKey   CtxKey = "analytics_user_id"
	ctxEnvelopeKey CtxKey = "analytics_envelope"
)

// Event names.
const (
	EventAppOpened        = "app_opened"
	EventJournalSubmitted = "journal_submitted"
	EventEntityCreated    = "entity_created"
	EventEntityReordered  = "entity_reordered"
	EventTaskToggled      = "task_toggled"
	EventCalendarSynced   = "calendar_synced"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       string
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web", "cli":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxUserIDKey).(string)
	return uid, ok && uid != ""
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// A duplicate key makes the insert a no-op.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder writes usage events. It never breaks the caller's flow: a nil
// Recorder, a missing user or a failed insert are all ignored.
type Recorder struct {
	db  *db.DB
	now func() time.Time
}

func NewRecorder(d *db.DB) *Recorder {
	return &Recorder{db: d, now: time.Now}
}

// Log inserts one analytics event. Callers pass sanitized props only;
// raw journal text never goes in here.
func (rec *Recorder) Log(ctx context.Context, env Envelope, eventName string, props any, sourceEventKey string) {
	if rec == nil || eventName == "" {
		return
	}

	userID := env.UserID
	if userID == "" {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return
		}
		userID = uid
	}
	if env.Platform == "" {
		env.Platform = "unknown"
	}

	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return
	}

	q := `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if sourceEventKey != "" {
		q += ` ON CONFLICT (source_event_key) DO NOTHING`
	}

	_, err = rec.db.ExecContext(ctx, rec.db.Rebind(q),
		eventName, rec.now().UTC().Format(time.RFC3339Nano),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		log.Printf("[WARN] analytics: %s not recorded: %v", eventName, err)
	}
}

// Count returns how many events of a name a user has. Used by the CLI
// and tests.
func (rec *Recorder) Count(ctx context.Context, userID, eventName string) (int, error) {
	var n int
	err := rec.db.QueryRowContext(ctx,
		rec.db.Rebind(`SELECT COUNT(*) FROM analytics_events WHERE user_id = ? AND event_name = ?`),
		userID, eventName,
	).Scan(&n)
	return n, err
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// WithEnvelope stores request envelope fields for code further down the
// call chain that records events.
func WithEnvelope(ctx context.Context, env Envelope) context.Context {
	return context.WithValue(ctx, ctxEnvelopeKey, env)
}

func EnvelopeFromContext(ctx context.Context) Envelope {
	env, _ := ctx.Value(ctxEnvelopeKey).(Envelope)
	return env
}
