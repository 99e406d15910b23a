package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/db"
	"zen-journal-backend/internal/entities"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/store"
)

// provider fakes the token endpoint and the events API.
type provider struct {
	t          *testing.T
	srv        *httptest.Server
	refreshes  atomic.Int32
	failTokens bool
	deleteCode int

	mu       sync.Mutex
	inserted []eventBody
	deleted  []string
	bearers  []string
}

func newProvider(t *testing.T) *provider {
	p := &provider{t: t, deleteCode: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseForm()) {
			return
		}
		if p.failTokens {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		access := "exchanged"
		if r.Form.Get("grant_type") == "refresh_token" {
			p.refreshes.Add(1)
			access = "refreshed"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + access + `","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-2"}`))
	})
	mux.HandleFunc("POST /calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		var body eventBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		p.mu.Lock()
		p.inserted = append(p.inserted, body)
		p.bearers = append(p.bearers, r.Header.Get("Authorization"))
		n := len(p.inserted)
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ext-` + string(rune('0'+n)) + `"}`))
	})
	mux.HandleFunc("DELETE /calendars/primary/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.deleted = append(p.deleted, r.PathValue("id"))
		p.mu.Unlock()
		w.WriteHeader(p.deleteCode)
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func newTestBridge(t *testing.T, p *provider) (*Bridge, *store.Store) {
	t.Helper()
	d, err := db.Connect(db.DriverSQLite, filepath.Join(t.TempDir(), "calendar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.Migrate(context.Background()))
	st := store.New(d)

	b, err := NewBridge(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      p.srv.URL + "/auth",
		TokenURL:     p.srv.URL + "/token",
		RedirectURL:  "http://localhost/calendar/callback",
		APIBaseURL:   p.srv.URL,
		TimeZone:     "UTC",
	}, st)
	require.NoError(t, err)
	return b, st
}

func connect(t *testing.T, st *store.Store, user string, expiry time.Time) {
	t.Helper()
	require.NoError(t, st.UpsertCredential(context.Background(), models.CalendarCredential{
		UserID: user, AccessToken: "stored", RefreshToken: "rt-1", TokenExpiry: expiry,
	}))
}

func insertEvent(t *testing.T, st *store.Store, user, title string, date, clock *string) models.CalendarEvent {
	t.Helper()
	out, err := st.InsertEvents(context.Background(), []models.CalendarEvent{{UserID: user, Title: title, EventDate: date, EventTime: clock}})
	require.NoError(t, err)
	return out[0]
}

func strp(s string) *string { return &s }

func TestPushCreateWithoutCredentialKeepsLocalEvent(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)

	h := entities.Handlers{Registry: entities.NewRegistry(st), Calendar: b}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /entities/{type}", h.Create())

	r := httptest.NewRequest(http.MethodPost, "/entities/events", strings.NewReader(`{"title":"dentist","event_date":"2025-03-10","sync":true}`))
	r = r.WithContext(auth.WithUserID(r.Context(), "alice"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Record models.CalendarEvent `json:"record"`
		Sync   models.SyncReport    `json:"sync"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.SyncNotConnected, resp.Sync.Status)

	got, err := st.GetEvent(context.Background(), "alice", resp.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "dentist", got.Title)
	assert.Nil(t, got.ExternalCalendarID)
	assert.Empty(t, p.inserted)
}

func TestPushCreateSyncsOneHourBlock(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Now().Add(time.Hour))
	ev := insertEvent(t, st, "alice", "dentist", strp("2025-03-10"), strp("14:00"))

	rep := b.PushCreate(context.Background(), "alice", ev)
	require.Equal(t, models.SyncSynced, rep.Status, rep.Message)
	assert.Equal(t, "ext-1", rep.ExternalID)

	require.Len(t, p.inserted, 1)
	assert.Equal(t, "dentist", p.inserted[0].Summary)
	assert.Equal(t, "2025-03-10T14:00:00Z", p.inserted[0].Start.DateTime)
	assert.Equal(t, "2025-03-10T15:00:00Z", p.inserted[0].End.DateTime)
	assert.Equal(t, "UTC", p.inserted[0].Start.TimeZone)
	assert.Equal(t, "Bearer stored", p.bearers[0])

	got, err := st.GetEvent(context.Background(), "alice", ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalCalendarID)
	assert.Equal(t, "ext-1", *got.ExternalCalendarID)
	assert.True(t, got.ExternalSyncEnabled)
}

func TestUntimedEventStartsAtMidnight(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Time{})
	ev := insertEvent(t, st, "alice", "holiday", strp("2025-04-01"), nil)

	_, err := b.Sync(context.Background(), ActionCreate, ev, "alice")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01T00:00:00Z", p.inserted[0].Start.DateTime)
}

func TestUndatedEventIsSkipped(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Now().Add(time.Hour))
	ev := insertEvent(t, st, "alice", "someday", nil, nil)

	_, err := b.Sync(context.Background(), ActionCreate, ev, "alice")
	assert.ErrorIs(t, err, ErrEventUndated)

	rep := b.PushCreate(context.Background(), "alice", ev)
	assert.Equal(t, models.SyncSkipped, rep.Status)
	assert.Empty(t, p.inserted)
}

func TestUndatedEventWithoutCredentialIsNotConnected(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	ev := insertEvent(t, st, "alice", "someday", nil, nil)

	_, err := b.Sync(context.Background(), ActionCreate, ev, "alice")
	assert.ErrorIs(t, err, models.ErrNotConnected)
	assert.Equal(t, models.SyncNotConnected, b.PushCreate(context.Background(), "alice", ev).Status)
}

func TestConcurrentSyncRefreshesOnce(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Now().Add(-time.Hour))
	ev := insertEvent(t, st, "alice", "standup", strp("2025-03-10"), strp("09:30"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Sync(context.Background(), ActionCreate, ev, "alice")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, p.refreshes.Load())
	for _, bearer := range p.bearers {
		assert.Equal(t, "Bearer refreshed", bearer)
	}

	cred, err := st.GetCredential(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", cred.AccessToken)
	assert.Equal(t, "rt-2", cred.RefreshToken)
	assert.False(t, cred.Expired(time.Now()))
}

func TestRefreshFailureIsAuthExpired(t *testing.T) {
	p := newProvider(t)
	p.failTokens = true
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Now().Add(-time.Hour))
	ev := insertEvent(t, st, "alice", "standup", strp("2025-03-10"), nil)

	_, err := b.Sync(context.Background(), ActionCreate, ev, "alice")
	assert.ErrorIs(t, err, models.ErrAuthExpired)

	rep := b.PushCreate(context.Background(), "alice", ev)
	assert.Equal(t, models.SyncFailed, rep.Status)
	assert.NotEmpty(t, rep.Message)
}

func TestDeleteToleratesMissingRemote(t *testing.T) {
	p := newProvider(t)
	p.deleteCode = http.StatusGone
	b, st := newTestBridge(t, p)
	connect(t, st, "alice", time.Now().Add(time.Hour))

	ev := models.CalendarEvent{ID: "local", ExternalCalendarID: strp("ext-9")}
	rep := b.PushDelete(context.Background(), "alice", ev)
	assert.Equal(t, models.SyncSynced, rep.Status)
	assert.Equal(t, []string{"ext-9"}, p.deleted)

	_, err := b.Sync(context.Background(), ActionDelete, models.CalendarEvent{ID: "unsynced"}, "alice")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestConnectCallbackFlow(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	secret := []byte("test-secret")
	h := Handlers{Bridge: b, Secret: secret}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar/connect", h.Connect())
	mux.HandleFunc("GET /calendar/callback", h.Callback())
	mux.HandleFunc("GET /calendar/status", h.Status())
	mux.HandleFunc("DELETE /calendar/credentials", h.Disconnect())

	do := func(method, path string, authed bool) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, path, nil)
		if authed {
			r = r.WithContext(auth.WithUserID(r.Context(), "alice"))
		}
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		return w
	}
	status := func() bool {
		w := do(http.MethodGet, "/calendar/status", true)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]bool
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body["connected"]
	}
	assert.False(t, status())

	w := do(http.MethodGet, "/calendar/connect", true)
	require.Equal(t, http.StatusOK, w.Code)
	var link map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	consent, err := url.Parse(link["url"])
	require.NoError(t, err)
	assert.Equal(t, "offline", consent.Query().Get("access_type"))
	state := consent.Query().Get("state")

	w = do(http.MethodGet, "/calendar/callback?code=abc&state=forged", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bearer, err := auth.GenerateToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	w = do(http.MethodGet, "/calendar/callback?code=abc&state="+url.QueryEscape(bearer), false)
	assert.Equal(t, http.StatusBadRequest, w.Code, "a bearer token is not a state")

	gate := auth.New(secret).Wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r := httptest.NewRequest(http.MethodGet, "/entities/tasks", nil)
	r.Header.Set("Authorization", "Bearer "+state)
	w = httptest.NewRecorder()
	gate(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "the consent state is not a bearer token")

	w = do(http.MethodGet, "/calendar/callback?code=abc&state="+url.QueryEscape(state), false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, status())

	cred, err := st.GetCredential(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "exchanged", cred.AccessToken)

	w = do(http.MethodDelete, "/calendar/credentials", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, status())
}

func TestSyncHandler(t *testing.T) {
	p := newProvider(t)
	b, st := newTestBridge(t, p)
	h := Handlers{Bridge: b}
	ev := insertEvent(t, st, "alice", "dentist", strp("2025-03-10"), strp("14:00"))

	post := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/calendar/sync", strings.NewReader(body))
		r = r.WithContext(auth.WithUserID(r.Context(), "alice"))
		w := httptest.NewRecorder()
		h.Sync().ServeHTTP(w, r)
		return w
	}

	w := post(`{"action":"create","event_id":"` + ev.ID + `"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	connect(t, st, "alice", time.Now().Add(time.Hour))
	w = post(`{"action":"teleport","event_id":"` + ev.ID + `"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{"action":"create","event_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(`{"action":"create","event_id":"` + ev.ID + `"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got, err := st.GetEvent(context.Background(), "alice", ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalCalendarID)

	w = post(`{"action":"delete","event_id":"` + ev.ID + `"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{*got.ExternalCalendarID}, p.deleted)

	got, err = st.GetEvent(context.Background(), "alice", ev.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExternalCalendarID)
}
