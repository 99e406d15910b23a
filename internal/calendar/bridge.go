// Package calendar mirrors local calendar events to an external calendar
// provider. Every push is best effort; a failure here never undoes a local
// write.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"zen-journal-backend/internal/models"
)

// ErrEventUndated is returned when an event without a date is pushed.
var ErrEventUndated = fmt.Errorf("%w: event has no date", models.ErrInvalidInput)

type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionCreate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown sync action %q", models.ErrInvalidInput, s)
}

const (
	DefaultAPIBaseURL = "https://www.googleapis.com/calendar/v3"
	DefaultAuthURL    = "https://accounts.google.com/o/oauth2/auth"
	DefaultTokenURL   = "https://oauth2.googleapis.com/token"
	DefaultScope      = "https://www.googleapis.com/auth/calendar.events"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	APIBaseURL   string
	CalendarID   string
	TimeZone     string
}

// Store is the persistence the bridge needs.
type Store interface {
	GetCredential(ctx context.Context, userID string) (models.CalendarCredential, error)
	UpsertCredential(ctx context.Context, c models.CalendarCredential) error
	UpdateCredentialToken(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error
	DeleteCredential(ctx context.Context, userID string) error
	GetEvent(ctx context.Context, userID, id string) (models.CalendarEvent, error)
	SetExternalSync(ctx context.Context, userID, id string, externalID *string) error
}

type SyncResult struct {
	ExternalID string `json:"external_id,omitempty"`
}

type Bridge struct {
	store Store
	oauth *oauth2.Config
	api   *apiClient
	loc   *time.Location
	http  *http.Client
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBridge(cfg Config, st Store) (*Bridge, error) {
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("calendar time zone: %w", err)
		}
		loc = l
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}

	httpClient := &http.Client{Timeout: 20 * time.Second}
	return &Bridge{
		store: st,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{DefaultScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api:   &apiClient{baseURL: strings.TrimRight(cfg.APIBaseURL, "/"), calendarID: cfg.CalendarID, http: httpClient},
		loc:   loc,
		http:  httpClient,
		now:   time.Now,
		locks: map[string]*sync.Mutex{},
	}, nil
}

func (b *Bridge) userLock(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[userID] = l
	}
	return l
}

func (b *Bridge) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.http)
}

// accessToken returns a usable token, refreshing it first if it expired.
// Refreshes for one user are serialized and the credential is re-read
// under the lock, so concurrent callers refresh at most once.
func (b *Bridge) accessToken(ctx context.Context, userID string) (string, error) {
	l := b.userLock(userID)
	l.Lock()
	defer l.Unlock()

	cred, err := b.store.GetCredential(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return "", models.ErrNotConnected
	}
	if err != nil {
		return "", err
	}
	if !cred.Expired(b.now()) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", models.ErrAuthExpired)
	}

	src := b.oauth.TokenSource(b.oauthContext(ctx), &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
	})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrAuthExpired, err)
	}

	refresh := tok.RefreshToken
	if refresh == cred.RefreshToken {
		refresh = ""
	}
	if err := b.store.UpdateCredentialToken(ctx, userID, tok.AccessToken, refresh, tok.Expiry); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	log.Printf("[INFO] calendar: refreshed token for user=%s", userID)
	return tok.AccessToken, nil
}

// Sync pushes one action for ev to the external calendar.
func (b *Bridge) Sync(ctx context.Context, action Action, ev models.CalendarEvent, userID string) (SyncResult, error) {
	switch action {
	case ActionCreate:
		token, err := b.accessToken(ctx, userID)
		if err != nil {
			return SyncResult{}, err
		}
		start, err := b.startOf(ev)
		if err != nil {
			return SyncResult{}, err
		}
		id, err := b.api.insert(ctx, token, ev.Title, start, start.Add(time.Hour))
		if err != nil {
			return SyncResult{}, err
		}
		return SyncResult{ExternalID: id}, nil

	case ActionDelete:
		if ev.ExternalCalendarID == nil || *ev.ExternalCalendarID == "" {
			return SyncResult{}, fmt.Errorf("%w: event is not synced", models.ErrInvalidInput)
		}
		token, err := b.accessToken(ctx, userID)
		if err != nil {
			return SyncResult{}, err
		}
		return SyncResult{}, b.api.delete(ctx, token, *ev.ExternalCalendarID)
	}
	return SyncResult{}, fmt.Errorf("%w: unknown sync action %q", models.ErrInvalidInput, action)
}

// startOf anchors the event at its date and time in the bridge's zone;
// a missing time means midnight.
func (b *Bridge) startOf(ev models.CalendarEvent) (time.Time, error) {
	if ev.EventDate == nil || *ev.EventDate == "" {
		return time.Time{}, ErrEventUndated
	}
	clock := "00:00"
	if ev.EventTime != nil && *ev.EventTime != "" {
		clock = *ev.EventTime
	}
	t, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, *ev.EventDate+" "+clock, b.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	return t, nil
}

// PushCreate syncs a freshly created event and links the external id onto
// the local record.
func (b *Bridge) PushCreate(ctx context.Context, userID string, ev models.CalendarEvent) models.SyncReport {
	res, err := b.Sync(ctx, ActionCreate, ev, userID)
	if err != nil {
		return report(userID, ev, err)
	}
	ext := res.ExternalID
	if err := b.store.SetExternalSync(ctx, userID, ev.ID, &ext); err != nil {
		log.Printf("[WARN] calendar: event=%s synced as %s but link not saved: %v", ev.ID, ext, err)
		return models.SyncReport{Status: models.SyncFailed, ExternalID: ext, Message: "Event saved, but its calendar link could not be stored."}
	}
	return models.SyncReport{Status: models.SyncSynced, ExternalID: ext}
}

func (b *Bridge) PushDelete(ctx context.Context, userID string, ev models.CalendarEvent) models.SyncReport {
	if _, err := b.Sync(ctx, ActionDelete, ev, userID); err != nil {
		return report(userID, ev, err)
	}
	return models.SyncReport{Status: models.SyncSynced}
}

func report(userID string, ev models.CalendarEvent, err error) models.SyncReport {
	switch {
	case errors.Is(err, models.ErrNotConnected):
		return models.SyncReport{Status: models.SyncNotConnected}
	case errors.Is(err, ErrEventUndated):
		return models.SyncReport{Status: models.SyncSkipped, Message: "Event saved. Add a date to sync it to your calendar."}
	}
	log.Printf("[WARN] calendar: sync user=%s event=%s failed: %v", userID, ev.ID, err)
	return models.SyncReport{Status: models.SyncFailed, Message: "Event saved, but calendar sync failed. " + models.UserMessage(err)}
}

// Connected reports whether a credential exists. Tokens are never exposed.
func (b *Bridge) Connected(ctx context.Context, userID string) (bool, error) {
	_, err := b.store.GetCredential(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// AuthCodeURL starts the consent flow. state must round-trip to Exchange.
func (b *Bridge) AuthCodeURL(state string) string {
	return b.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them.
func (b *Bridge) Exchange(ctx context.Context, userID, code string) error {
	tok, err := b.oauth.Exchange(b.oauthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrAuthExpired, err)
	}
	return b.store.UpsertCredential(ctx, models.CalendarCredential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
	})
}

func (b *Bridge) Disconnect(ctx context.Context, userID string) error {
	err := b.store.DeleteCredential(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
